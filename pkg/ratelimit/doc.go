// Package ratelimit paces screenshot captures so a full refresh of a large
// tilde server does not hammer the public web host.
//
// Two algorithms are available behind the Limiter interface:
//
// Token Bucket (mode "token"):
//   - Fixed capacity that refills completely after each period
//   - Tolerates bursts followed by quiet periods
//
// Sliding Window (mode "window", the default):
//   - Tracks requests within a moving window
//   - Never exceeds the rate over any minute
//
// Wait honours context cancellation, so a cancelled update stops waiting
// for its next slot.
//
// Usage:
//
//	limiter := ratelimit.New(cfg.Capture.RequestsPerMinute, cfg.Capture.RateLimitMode)
//	if err := limiter.Wait(ctx); err != nil {
//	    return err
//	}
package ratelimit
