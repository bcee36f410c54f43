package models

import "strings"

type PracticeState string

const (
	PracticeReady     PracticeState = "ready"
	PracticeDetecting PracticeState = "detecting"
	PracticeSuccess   PracticeState = "success"
	PracticeFail      PracticeState = "fail"
)

const (
	PerfectScore = 100
	PartialScore = 75
	PassingScore = PartialScore
)

// PracticeTarget comes from the gesture catalog and is never modified here.
type PracticeTarget struct {
	ID          int      `json:"id"`
	Name        string   `json:"name"`
	Hindi       string   `json:"hindi"`
	Category    string   `json:"category,omitempty"`
	Difficulty  string   `json:"difficulty"`
	Description string   `json:"description"`
	Tips        []string `json:"tips"`
}

type PracticeSession struct {
	Target       string        `json:"target"`
	State        PracticeState `json:"state"`
	Detected     string        `json:"detected"`
	Accuracy     int           `json:"accuracy"`
	Attempts     int           `json:"attempts"`
	BestAccuracy int           `json:"best_accuracy"`
}

// Score compares a detected label against the target label, ignoring case.
// An exact match scores 100, containment either way scores 75, anything
// else scores 0.
func Score(detected, target string) int {
	d := strings.ToLower(strings.TrimSpace(detected))
	t := strings.ToLower(strings.TrimSpace(target))
	switch {
	case d == "" || t == "":
		return 0
	case d == t:
		return PerfectScore
	case strings.Contains(t, d) || strings.Contains(d, t):
		return PartialScore
	}
	return 0
}
