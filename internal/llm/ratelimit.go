package llm

import "golang.org/x/time/rate"

// defaultRequestsPerSec keeps a client under typical free-tier quotas
// when the configuration does not set a rate.
const defaultRequestsPerSec = 2

// newLimiter builds the request limiter shared by a client's calls.
// Burst of one smooths request spacing instead of allowing spikes.
func newLimiter(requestsPerSec float64) *rate.Limiter {
	if requestsPerSec <= 0 {
		requestsPerSec = defaultRequestsPerSec
	}
	return rate.NewLimiter(rate.Limit(requestsPerSec), 1)
}
