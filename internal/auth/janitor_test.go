package auth

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

type fakeCleaner struct {
	calls chan struct{}
	count int64
	err   error
}

func (f *fakeCleaner) DeleteExpired(_ context.Context) (int64, error) {
	select {
	case f.calls <- struct{}{}:
	default:
	}
	return f.count, f.err
}

func TestSessionJanitor_PurgesOnTick(t *testing.T) {
	cleaner := &fakeCleaner{calls: make(chan struct{}, 1), count: 3}
	janitor := NewSessionJanitor(cleaner, 10*time.Millisecond, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go janitor.Run(ctx)

	select {
	case <-cleaner.calls:
	case <-time.After(2 * time.Second):
		t.Fatal("janitor never purged")
	}
}

func TestSessionJanitor_StopsOnCancel(t *testing.T) {
	cleaner := &fakeCleaner{calls: make(chan struct{}, 1)}
	janitor := NewSessionJanitor(cleaner, time.Hour, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan struct{})
	go func() {
		janitor.Run(ctx)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("janitor did not stop on cancel")
	}
}

func TestSessionJanitor_PurgeErrorKeepsRunning(t *testing.T) {
	cleaner := &fakeCleaner{calls: make(chan struct{}, 1), err: errors.New("db down")}
	janitor := NewSessionJanitor(cleaner, 10*time.Millisecond, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go janitor.Run(ctx)

	for i := 0; i < 2; i++ {
		select {
		case <-cleaner.calls:
		case <-time.After(2 * time.Second):
			t.Fatalf("purge %d never happened", i+1)
		}
	}
}

func TestNewSessionJanitor_DefaultInterval(t *testing.T) {
	janitor := NewSessionJanitor(&fakeCleaner{}, 0, nil)
	assert.Equal(t, time.Hour, janitor.interval)
}
