package refresh

import (
	"context"
	"log/slog"
	"time"

	"github.com/lib/pq"

	"github.com/opsboard/metricsd/internal/core/day"
)

const (
	listenMinReconnect = 10 * time.Second
	listenMaxReconnect = time.Minute

	// Re-runs triggered in quick succession (a burst of status changes)
	// collapse into at most one run per debounce window.
	listenDebounce = 2 * time.Second
)

// Listener is the inbound real-time port: a Postgres NOTIFY on the
// configured channel (sent by triggers on the source tables, or by an
// operator) re-runs the aggregation for the current day.
//
// The notification payload is ignored; every run recomputes from scratch,
// so the signal only needs to say "something changed".
type Listener struct {
	channel string
	runner  *Runner
	loc     *time.Location
	pq      *pq.Listener
	nowFn   func() time.Time
}

// NewListener creates a NOTIFY-driven refresh trigger on the given channel.
func NewListener(dsn, channel string, runner *Runner, loc *time.Location) *Listener {
	if loc == nil {
		loc = time.Local
	}
	pqListener := pq.NewListener(dsn, listenMinReconnect, listenMaxReconnect,
		func(event pq.ListenerEventType, err error) {
			if err != nil {
				slog.Warn("[Listener] Connection event", "event", event, "error", err)
			}
		})
	return &Listener{
		channel: channel,
		runner:  runner,
		loc:     loc,
		pq:      pqListener,
		nowFn:   time.Now,
	}
}

// Start subscribes and dispatches runs until the context is cancelled.
func (l *Listener) Start(ctx context.Context) error {
	if err := l.pq.Listen(l.channel); err != nil {
		return err
	}
	defer l.pq.Close()

	slog.Info("[Listener] Listening for refresh notifications", "channel", l.channel)

	var debounce *time.Timer
	var debounceC <-chan time.Time

	for {
		select {
		case n := <-l.pq.Notify:
			if n == nil {
				// Reconnect marker; the pending state may be stale, run once.
				slog.Info("[Listener] Reconnected, scheduling refresh run")
			}
			if debounce == nil {
				debounce = time.NewTimer(listenDebounce)
				debounceC = debounce.C
			} else {
				debounce.Reset(listenDebounce)
			}
		case <-debounceC:
			debounce = nil
			debounceC = nil
			today := day.Of(l.nowFn().In(l.loc))
			if _, err := l.runner.Run(ctx, today); err != nil {
				slog.Error("[Listener] Notified run failed", "day", today.String(), "error", err)
			}
		case <-ctx.Done():
			slog.Info("[Listener] Stopping (context cancelled)")
			return nil
		}
	}
}
