// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package generation

// fallbackDuration replaces an unset planned duration before bucketing.
const fallbackDuration = 6.0

// BucketDuration maps a planned shot duration onto a clip length the
// provider accepts: up to 5s is 4, up to 7s is 6, anything longer is 8.
func BucketDuration(planned float64) int {
	if planned == 0 {
		planned = fallbackDuration
	}
	switch {
	case planned <= 5:
		return 4
	case planned <= 7:
		return 6
	default:
		return 8
	}
}
