package core

import "time"

// PatternRecord is one observation saved in a user's long-term memory, for
// example a completed study session.
type PatternRecord struct {
	Timestamp time.Time      `json:"timestamp"`
	Data      map[string]any `json:"data"`
}

// MemoryStore keeps per-user behavioral patterns across sessions. Short
// method names align with the other *Store interfaces.
type MemoryStore interface {
	// Save appends data under patternType for userID.
	Save(userID, patternType string, data map[string]any) error
	// Patterns returns the records of patternType in insertion order.
	Patterns(userID, patternType string) ([]PatternRecord, error)
}
