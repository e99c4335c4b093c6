package notification

import "context"

// RecipientRateLimiter caps how often one address on one channel is contacted.
// Implementations live in infra/ratelimit/.
type RecipientRateLimiter interface {
	// Allow records an attempt and reports whether it is within the limit.
	Allow(ctx context.Context, ch Channel, recipient string) (bool, error)
}
