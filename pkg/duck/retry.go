package duck

import (
	"context"
	"strings"
	"time"
)

const (
	maxRetries     = 8
	initialBackoff = 50 * time.Millisecond
	maxBackoff     = 5 * time.Second
)

// retry reruns fn on transient storage errors with exponential backoff.
// Non-transient errors return immediately.
func (d *DB) retry(ctx context.Context, op string, fn func() error) error {
	backoff := initialBackoff
	var err error
	for attempt := 0; attempt < maxRetries; attempt++ {
		err = fn()
		if err == nil {
			return nil
		}
		if !isTransient(err) {
			return err
		}
		d.log.Warn("retrying after transient error", "op", op, "attempt", attempt+1, "error", err)

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
	return err
}

var transientMarkers = []string{
	"connection reset",
	"connection refused",
	"broken pipe",
	"timed out",
	"timeout",
	"temporarily unavailable",
	"service unavailable",
	"slow down",
	"internal error",
	"unexpected eof",
}

func isTransient(err error) bool {
	msg := strings.ToLower(err.Error())
	for _, marker := range transientMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
