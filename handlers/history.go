package handlers

import (
	"sync"

	"github.com/Perceptus-Labs/samvaad-go-sdk/models"
)

const DefaultHistorySize = 10

// History is the bounded newest-first log of recent translations.
type History struct {
	mu       sync.Mutex
	entries  []models.HistoryEntry
	capacity int
}

// NewHistory holds at most DefaultHistorySize entries; a non-positive or
// larger capacity falls back to it.
func NewHistory(capacity int) *History {
	if capacity <= 0 || capacity > DefaultHistorySize {
		capacity = DefaultHistorySize
	}
	return &History{capacity: capacity, entries: make([]models.HistoryEntry, 0, capacity)}
}

// Append inserts at the front and silently evicts anything past capacity.
func (h *History) Append(entry models.HistoryEntry) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries = append(h.entries, models.HistoryEntry{})
	copy(h.entries[1:], h.entries)
	h.entries[0] = entry
	if len(h.entries) > h.capacity {
		h.entries = h.entries[:h.capacity]
	}
}

// PatchLatest fills in the refinement on the newest entry, but only when that
// entry is still the gesture the refinement was requested for. Blank values
// keep what the entry already had.
func (h *History) PatchLatest(gesture, refined, hindi string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.entries) == 0 || h.entries[0].Raw != gesture {
		return false
	}
	if refined != "" {
		h.entries[0].Refined = refined
	}
	if hindi != "" {
		h.entries[0].Hindi = hindi
	}
	return true
}

func (h *History) Latest() (models.HistoryEntry, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.entries) == 0 {
		return models.HistoryEntry{}, false
	}
	return h.entries[0], true
}

func (h *History) Find(id string) (models.HistoryEntry, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, e := range h.entries {
		if e.ID == id {
			return e, true
		}
	}
	return models.HistoryEntry{}, false
}

// Entries returns a copy, newest first.
func (h *History) Entries() []models.HistoryEntry {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]models.HistoryEntry, len(h.entries))
	copy(out, h.entries)
	return out
}

func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.entries)
}
