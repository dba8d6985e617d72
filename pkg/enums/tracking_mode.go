package enums

import (
	"fmt"
	"time"
)

// TrackingMode is the intensity level governing driver location sampling.
type TrackingMode string

const (
	TrackingModeHigh    TrackingMode = "high"
	TrackingModeMedium  TrackingMode = "medium"
	TrackingModeLow     TrackingMode = "low"
	TrackingModeMinimal TrackingMode = "minimal"
)

var validTrackingModes = []TrackingMode{
	TrackingModeHigh,
	TrackingModeMedium,
	TrackingModeLow,
	TrackingModeMinimal,
}

// String implements fmt.Stringer.
func (m TrackingMode) String() string {
	return string(m)
}

// IsValid reports whether the value is a known TrackingMode.
func (m TrackingMode) IsValid() bool {
	for _, candidate := range validTrackingModes {
		if candidate == m {
			return true
		}
	}
	return false
}

// Interval returns the polling interval associated with the mode.
func (m TrackingMode) Interval() time.Duration {
	switch m {
	case TrackingModeHigh:
		return 10 * time.Second
	case TrackingModeMedium:
		return 30 * time.Second
	case TrackingModeLow:
		return 60 * time.Second
	case TrackingModeMinimal:
		return 180 * time.Second
	}
	return 30 * time.Second
}

// ParseTrackingMode converts raw input into a TrackingMode.
func ParseTrackingMode(value string) (TrackingMode, error) {
	for _, candidate := range validTrackingModes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid tracking mode %q", value)
}
