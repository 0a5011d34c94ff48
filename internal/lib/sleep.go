package lib

import (
	"context"
	"time"
)

// Sleep blocks for the given duration or until the context is cancelled,
// whichever comes first.
func Sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
