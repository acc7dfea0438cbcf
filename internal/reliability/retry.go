package reliability

import "time"

// IsRetryableDeliveryStatus classifies notification-channel HTTP statuses
// worth retrying. 4xx responses other than 429 mean the payload or address
// is bad and retrying cannot help.
func IsRetryableDeliveryStatus(code int) bool {
	switch code {
	case 429, 500, 502, 503, 504:
		return true
	default:
		return false
	}
}

// ExponentialBackoff computes a deterministic capped backoff duration.
func ExponentialBackoff(attempt int, base, cap time.Duration) time.Duration {
	if attempt <= 0 {
		return base
	}
	d := base
	for i := 0; i < attempt; i++ {
		d *= 2
		if d >= cap {
			return cap
		}
	}
	return d
}
