package health

import (
	"context"
	"runtime"
	"runtime/debug"
	"time"

	"github.com/go-faster/errors"
)

// Pinger is a dependency that can be pinged, such as *pgxpool.Pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingCheck reports p unhealthy when its Ping fails.
func PingCheck(p Pinger) CheckFunc {
	return func(ctx context.Context) error {
		if err := p.Ping(ctx); err != nil {
			return errors.Wrap(err, "ping")
		}
		return nil
	}
}

// GoroutineCountCheck fails when more than limit goroutines are running,
// which usually means a leak.
func GoroutineCountCheck(limit int) CheckFunc {
	return func(context.Context) error {
		if n := runtime.NumGoroutine(); n > limit {
			return errors.Errorf("goroutine count %d exceeds threshold %d", n, limit)
		}
		return nil
	}
}

// GCMaxPauseCheck fails when a recent stop-the-world GC pause exceeded limit.
func GCMaxPauseCheck(limit time.Duration) CheckFunc {
	return func(context.Context) error {
		var stats debug.GCStats
		debug.ReadGCStats(&stats)
		for _, pause := range stats.Pause {
			if pause > limit {
				return errors.Errorf("GC pause %s exceeds threshold %s", pause, limit)
			}
		}
		return nil
	}
}
