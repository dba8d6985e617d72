package enums

import "fmt"

// SyncPriority orders queued mutations during a flush.
type SyncPriority string

const (
	SyncPriorityHigh   SyncPriority = "high"
	SyncPriorityNormal SyncPriority = "normal"
	SyncPriorityLow    SyncPriority = "low"
)

var validSyncPriorities = []SyncPriority{
	SyncPriorityHigh,
	SyncPriorityNormal,
	SyncPriorityLow,
}

// Rank returns a sortable weight; lower ranks drain first.
func (p SyncPriority) Rank() int {
	switch p {
	case SyncPriorityHigh:
		return 0
	case SyncPriorityNormal:
		return 1
	case SyncPriorityLow:
		return 2
	}
	return 1
}

// IsValid reports whether the value is a known SyncPriority.
func (p SyncPriority) IsValid() bool {
	for _, candidate := range validSyncPriorities {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParseSyncPriority converts raw input into a SyncPriority.
func ParseSyncPriority(value string) (SyncPriority, error) {
	for _, candidate := range validSyncPriorities {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid sync priority %q", value)
}

// ConflictStrategy declares how a queued write resolves when the server
// row diverged from the state it was queued against.
type ConflictStrategy string

const (
	ConflictStrategyServerWins    ConflictStrategy = "server_wins"
	ConflictStrategyClientWins    ConflictStrategy = "client_wins"
	ConflictStrategyTimestampWins ConflictStrategy = "timestamp_wins"
	ConflictStrategyMerge         ConflictStrategy = "merge"
	ConflictStrategyManual        ConflictStrategy = "manual"
)

var validConflictStrategies = []ConflictStrategy{
	ConflictStrategyServerWins,
	ConflictStrategyClientWins,
	ConflictStrategyTimestampWins,
	ConflictStrategyMerge,
	ConflictStrategyManual,
}

// IsValid reports whether the value is a known ConflictStrategy.
func (c ConflictStrategy) IsValid() bool {
	for _, candidate := range validConflictStrategies {
		if candidate == c {
			return true
		}
	}
	return false
}

// ParseConflictStrategy converts raw input into a ConflictStrategy.
func ParseConflictStrategy(value string) (ConflictStrategy, error) {
	for _, candidate := range validConflictStrategies {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid conflict strategy %q", value)
}

// SyncEntryStatus tracks a queue entry through its lifecycle.
type SyncEntryStatus string

const (
	SyncEntryStatusPending   SyncEntryStatus = "pending"
	SyncEntryStatusSuspended SyncEntryStatus = "suspended"
	SyncEntryStatusFailed    SyncEntryStatus = "failed"
	SyncEntryStatusApplied   SyncEntryStatus = "applied"
)

var validSyncEntryStatuses = []SyncEntryStatus{
	SyncEntryStatusPending,
	SyncEntryStatusSuspended,
	SyncEntryStatusFailed,
	SyncEntryStatusApplied,
}

// IsValid reports whether the value is a known SyncEntryStatus.
func (s SyncEntryStatus) IsValid() bool {
	for _, candidate := range validSyncEntryStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}
