package metric

import (
	"fmt"
	"time"
)

// ParseBucketSize parses a bucket duration.
// Supports Go duration syntax (e.g., "10s", "1m", "1h") plus "Xd" for days.
func ParseBucketSize(s string) (time.Duration, error) {
	if s == "" {
		return 0, fmt.Errorf("bucket must not be empty")
	}

	// "d" is not understood by time.ParseDuration.
	if len(s) > 1 && s[len(s)-1] == 'd' {
		var days int
		if _, err := fmt.Sscanf(s, "%dd", &days); err != nil {
			return 0, fmt.Errorf("invalid bucket %q: %w", s, err)
		}
		if days <= 0 {
			return 0, fmt.Errorf("bucket must be positive, got %q", s)
		}
		return time.Duration(days) * 24 * time.Hour, nil
	}

	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid bucket %q: %w", s, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("bucket must be positive, got %q", s)
	}
	return d, nil
}

// BucketStartFor returns the start of the bucket containing tsNs, for buckets
// of sizeNs aligned on originNs. Timestamps before originNs map to originNs.
// Example: BucketStartFor(125s, 0, 60s) → 120s
func BucketStartFor(tsNs, originNs, sizeNs int64) int64 {
	if tsNs <= originNs || sizeNs <= 0 {
		return originNs
	}
	return originNs + ((tsNs-originNs)/sizeNs)*sizeNs
}
