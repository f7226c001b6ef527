package twitter

import "golang.org/x/time/rate"

// newLimiter builds the client-side request limiter. Defaults stay well
// under the remote per-window quotas for a single account.
func newLimiter(rps float64, burst int) *rate.Limiter {
	if rps <= 0 {
		rps = 2.0
	}
	if burst <= 0 {
		burst = 10
	}
	return rate.NewLimiter(rate.Limit(rps), burst)
}
