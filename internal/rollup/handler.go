package rollup

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/opsboard/metricsd/internal/core/day"
	httperr "github.com/opsboard/metricsd/internal/core/errors"
	"github.com/opsboard/metricsd/internal/core/snapshot"
)

// RegisterRoutes registers the report and snapshot inspection routes.
func (s *Service) RegisterRoutes(r gin.IRouter) {
	r.GET("/v1/report", s.HandleReport)
	r.GET("/v1/snapshots/:day", s.HandleSnapshot)
}

// HandleReport handles GET /v1/report?day=2006-01-02 (day defaults to today).
func (s *Service) HandleReport(c *gin.Context) {
	target := day.Of(s.nowFn().In(s.loc))
	if raw := c.Query("day"); raw != "" {
		parsed, err := day.Parse(raw, s.loc)
		if err != nil {
			c.JSON(http.StatusBadRequest, httperr.ErrorResponse{
				ErrorType: httperr.HttpInvalidDayError,
				Message:   "Invalid day parameter",
				Details:   err.Error(),
			})
			return
		}
		target = parsed
	}

	report, err := s.BuildReport(c.Request.Context(), target)
	if err != nil {
		c.JSON(http.StatusInternalServerError, httperr.ErrorResponse{
			ErrorType: httperr.HttpInternalError,
			Message:   "Failed to build report",
			Details:   err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, report)
}

// HandleSnapshot handles GET /v1/snapshots/:day — the raw stored column set,
// mainly for operators inspecting what a refresh actually wrote.
func (s *Service) HandleSnapshot(c *gin.Context) {
	target, err := day.Parse(c.Param("day"), s.loc)
	if err != nil {
		c.JSON(http.StatusBadRequest, httperr.ErrorResponse{
			ErrorType: httperr.HttpInvalidDayError,
			Message:   "Invalid day path parameter",
			Details:   err.Error(),
		})
		return
	}

	snap, err := s.history.Snapshot(c.Request.Context(), target)
	if errors.Is(err, snapshot.ErrNotFound) {
		c.JSON(http.StatusNotFound, httperr.ErrorResponse{
			ErrorType: httperr.HttpDayNotFoundError,
			Message:   "No snapshot for day",
			Details:   target.String(),
		})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, httperr.ErrorResponse{
			ErrorType: httperr.HttpInternalError,
			Message:   "Failed to read snapshot",
			Details:   err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"day":     target.String(),
		"columns": snap.Columns,
	})
}
