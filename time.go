package identity

import "time"

// IsWithinThresholdPeriod reports whether t falls inside the trailing
// threshold window ending at now.
func IsWithinThresholdPeriod(t, now time.Time, threshold time.Duration) bool {
	return t.After(now.Add(-threshold))
}

// IsOutsideThresholdPeriod is the negation of IsWithinThresholdPeriod
func IsOutsideThresholdPeriod(t, now time.Time, threshold time.Duration) bool {
	return !IsWithinThresholdPeriod(t, now, threshold)
}
