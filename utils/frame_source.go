package utils

import (
	"encoding/base64"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/Perceptus-Labs/samvaad-go-sdk/models"
)

// FrameSource holds the most recent frame pushed by the client's webcam.
type FrameSource struct {
	mu     sync.Mutex
	frame  *models.Snapshot
	maxAge time.Duration
	clock  Clock
}

// NewFrameSource returns a source that treats frames older than maxAge as
// missing. A zero maxAge never expires frames.
func NewFrameSource(maxAge time.Duration, clock Clock) *FrameSource {
	return &FrameSource{maxAge: maxAge, clock: clock}
}

// Update stores a frame given as raw base64 or as a data URL.
func (s *FrameSource) Update(encoded string) error {
	mime := "image/jpeg"
	payload := encoded
	if strings.HasPrefix(encoded, "data:") {
		header, data, ok := strings.Cut(encoded, ",")
		if !ok {
			return fmt.Errorf("malformed data URL")
		}
		mime = strings.TrimSuffix(strings.TrimPrefix(header, "data:"), ";base64")
		payload = data
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return fmt.Errorf("failed to decode video_data: %w", err)
	}
	if len(data) == 0 {
		return fmt.Errorf("empty frame")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.frame = &models.Snapshot{Data: data, MimeType: mime, CapturedAt: s.clock.Now()}
	return nil
}

func (s *FrameSource) Snapshot() (models.Snapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.frame == nil {
		return models.Snapshot{}, false
	}
	if s.maxAge > 0 && s.clock.Now().Sub(s.frame.CapturedAt) > s.maxAge {
		return models.Snapshot{}, false
	}
	return *s.frame, true
}

// Reset forgets the current frame, e.g. when the camera is switched off.
func (s *FrameSource) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frame = nil
}
