package binance

import (
	"context"
	"time"
)

// reconnectPolicy decides how long to pause between stream connection
// attempts. The delay is fixed; changing the policy only requires touching
// this type.
type reconnectPolicy struct {
	delay time.Duration
}

func newReconnectPolicy(delay time.Duration) reconnectPolicy {
	if delay <= 0 {
		delay = 5 * time.Second
	}
	return reconnectPolicy{delay: delay}
}

// Wait blocks for the policy's delay. It returns false when the context is
// cancelled before the delay elapses.
func (p reconnectPolicy) Wait(ctx context.Context) bool {
	select {
	case <-time.After(p.delay):
		return true
	case <-ctx.Done():
		return false
	}
}
