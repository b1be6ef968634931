package auth

import "time"

// IsWithinThresholdPeriod checks if t happened less than pattern ago,
// measured from now.
func IsWithinThresholdPeriod(t, now time.Time, pattern string) (bool, error) {
	duration, err := time.ParseDuration(pattern)
	if err != nil {
		return false, err
	}

	threshold := now.Add(-duration)
	if t.After(threshold) {
		return true, nil
	}

	return false, nil
}
