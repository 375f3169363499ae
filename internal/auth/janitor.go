package auth

import (
	"context"
	"log/slog"
	"time"
)

// SessionCleaner deletes sessions whose expiry has passed.
type SessionCleaner interface {
	DeleteExpired(ctx context.Context) (int64, error)
}

// SessionJanitor periodically purges expired sessions. Expired sessions are
// already rejected at resolve time, so the janitor only reclaims storage;
// a missed run is harmless.
type SessionJanitor struct {
	sessions SessionCleaner
	interval time.Duration
	logger   *slog.Logger
}

// NewSessionJanitor creates a janitor that purges every interval.
func NewSessionJanitor(sessions SessionCleaner, interval time.Duration, logger *slog.Logger) *SessionJanitor {
	if interval <= 0 {
		interval = time.Hour
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionJanitor{
		sessions: sessions,
		interval: interval,
		logger:   logger,
	}
}

// Run blocks until ctx is cancelled, purging expired sessions on each tick.
func (j *SessionJanitor) Run(ctx context.Context) {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			j.purge(ctx)
		}
	}
}

func (j *SessionJanitor) purge(ctx context.Context) {
	deleted, err := j.sessions.DeleteExpired(ctx)
	if err != nil {
		j.logger.Warn("expired session purge failed", "error", err)
		return
	}
	if deleted > 0 {
		j.logger.Info("purged expired sessions", "count", deleted)
	}
}
