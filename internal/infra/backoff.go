package infra

import (
	"time"
)

const (
	backoffBase = 1 * time.Second
	backoffMax  = 60 * time.Second
)

// ReconnectDelay returns the exponential backoff for the given attempt:
// base * 2^attempt, capped at the maximum.
func ReconnectDelay(attempt int) time.Duration {
	if attempt < 0 {
		return backoffBase
	}
	// 2^30s already exceeds the cap, guard the shift
	if attempt > 30 {
		return backoffMax
	}
	delay := backoffBase * time.Duration(1<<attempt)
	if delay > backoffMax {
		return backoffMax
	}
	return delay
}
