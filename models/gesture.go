package models

import (
	"encoding/base64"
	"fmt"
	"strings"
	"time"
)

const (
	// NoGesture is the recognizer's sentinel for "nothing recognized".
	NoGesture = "No gesture"
)

type Language string

const (
	LanguageEnglish Language = "en"
	LanguageHindi   Language = "hi"
)

// Locale maps the language tag to the speech driver locale.
func (l Language) Locale() string {
	if l == LanguageHindi {
		return "hi-IN"
	}
	return "en-IN"
}

func ParseLanguage(s string) (Language, error) {
	switch Language(strings.ToLower(strings.TrimSpace(s))) {
	case LanguageEnglish:
		return LanguageEnglish, nil
	case LanguageHindi:
		return LanguageHindi, nil
	}
	return "", fmt.Errorf("unsupported language %q", s)
}

// Snapshot is one encoded still frame taken from the camera feed.
type Snapshot struct {
	Data       []byte
	MimeType   string
	CapturedAt time.Time
}

// DataURL encodes the frame the way the predict endpoint expects it.
func (s Snapshot) DataURL() string {
	mime := s.MimeType
	if mime == "" {
		mime = "image/jpeg"
	}
	return fmt.Sprintf("data:%s;base64,%s", mime, base64.StdEncoding.EncodeToString(s.Data))
}

type RecognitionResult struct {
	Gesture       string
	TranslationEn string
	TranslationHi string
	Latency       time.Duration
}

// HasGesture is false for an empty label or the NoGesture sentinel.
func (r *RecognitionResult) HasGesture() bool {
	return r != nil && IsGesture(r.Gesture)
}

func IsGesture(label string) bool {
	label = strings.TrimSpace(label)
	return label != "" && label != NoGesture
}

type ContextResult struct {
	English string
	Hindi   string
	Latency time.Duration
}

// Empty reports that none of the aliased fields carried a value.
func (c *ContextResult) Empty() bool {
	return c == nil || (c.English == "" && c.Hindi == "")
}

type HistoryEntry struct {
	ID        string    `json:"id"`
	Raw       string    `json:"raw"`
	Refined   string    `json:"refined"`
	Hindi     string    `json:"hi"`
	Timestamp time.Time `json:"timestamp"`
}
