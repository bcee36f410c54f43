package models

// MaxGesturesLearned caps the learned counter at the size of the catalog.
const MaxGesturesLearned = 30

type Progress struct {
	GesturesLearned  int64 `json:"gestures_learned"`
	PracticeSessions int64 `json:"practice_sessions"`
	TotalAttempts    int64 `json:"total_attempts"`
}
