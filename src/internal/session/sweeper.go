package session

import (
	"context"
	"time"

	"studyhub-session-svc/src/internal/config"

	"github.com/sirupsen/logrus"
)

// Sweeper is the backstop for sessions whose members never call complete:
// every tick it settles started sessions whose completion window has closed.
// The Mongo TTL rule on expires_at independently removes anything it misses.
type Sweeper struct {
	repo     Repository
	service  Service
	interval time.Duration
	grace    time.Duration
	now      func() time.Time
}

func NewSweeper(repo Repository, service Service, cfg *config.Configuration) *Sweeper {
	return &Sweeper{
		repo:     repo,
		service:  service,
		interval: time.Duration(cfg.Session.SweepIntervalSeconds) * time.Second,
		grace:    time.Duration(cfg.Session.ToleranceSeconds) * time.Second,
		now:      time.Now,
	}
}

// Run ticks until the context is cancelled.
func (w *Sweeper) Run(ctx context.Context) {
	logrus.WithField("interval", w.interval).Info("Session sweeper started")

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logrus.Info("Session sweeper stopped")
			return
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

// sweep settles every session past its completion window. Failures are
// isolated per session so one bad record never halts the loop.
func (w *Sweeper) sweep(ctx context.Context) {
	// Leave the tolerance window to explicit complete calls; sweep only
	// what is past it.
	cutoff := w.now().Add(-w.grace)

	sessions, err := w.repo.FindExpiredActive(ctx, cutoff)
	if err != nil {
		logrus.WithError(err).Error("Sweep scan failed")
		return
	}
	if len(sessions) == 0 {
		return
	}

	logrus.WithField("count", len(sessions)).Info("Sweeping expired study sessions")

	for _, sess := range sessions {
		if err := w.service.SettleExpired(ctx, sess); err != nil {
			logrus.WithError(err).WithField("session_id", sess.SessionID).Error("Failed to settle expired session")
		}
	}
}
