package models

const (
	DefaultSpeechRate  = 1.0
	DefaultSpeechPitch = 1.0
	PracticeSpeechRate = 0.9
)

type NarrationRequest struct {
	Text     string
	Language Language
	Rate     float64
	Pitch    float64
}

// Utterance is what the narrator hands to the speech driver.
type Utterance struct {
	ID     string
	Text   string
	Locale string
	Rate   float64
	Pitch  float64
}

type SpeechEventKind string

const (
	SpeechStarted SpeechEventKind = "started"
	SpeechEnded   SpeechEventKind = "ended"
	SpeechFailed  SpeechEventKind = "failed"
)

type SpeechEvent struct {
	UtteranceID string
	Kind        SpeechEventKind
	Err         error
}
