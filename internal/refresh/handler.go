package refresh

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/opsboard/metricsd/internal/core/day"
	httperr "github.com/opsboard/metricsd/internal/core/errors"
)

// Service exposes the explicit "refresh" trigger over HTTP.
type Service struct {
	runner *Runner
	loc    *time.Location
	nowFn  func() time.Time
}

// NewService creates the refresh HTTP surface.
func NewService(runner *Runner, loc *time.Location) *Service {
	if loc == nil {
		loc = time.Local
	}
	return &Service{runner: runner, loc: loc, nowFn: time.Now}
}

// RegisterRoutes registers the refresh trigger route.
func (s *Service) RegisterRoutes(r gin.IRouter) {
	r.POST("/v1/refresh", s.HandleRefresh)
}

// HandleRefresh handles POST /v1/refresh?day=2006-01-02 (day defaults to today).
// It runs one synchronous aggregation pass and reports the writer outcome.
func (s *Service) HandleRefresh(c *gin.Context) {
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

	outcome, err := s.runner.Run(c.Request.Context(), target)
	switch outcome {
	case OutcomeFatal:
		c.JSON(http.StatusInternalServerError, httperr.ErrorResponse{
			ErrorType: httperr.HttpInternalError,
			Message:   "Aggregation run aborted",
			Details:   err.Error(),
		})
	case OutcomeConflict:
		// Best effort by design: report the giving-up, not a failure.
		c.JSON(http.StatusConflict, gin.H{
			"day":     target.String(),
			"outcome": string(outcome),
		})
	default:
		c.JSON(http.StatusOK, gin.H{
			"day":     target.String(),
			"outcome": string(outcome),
		})
	}
}
