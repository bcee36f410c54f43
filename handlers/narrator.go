package handlers

import (
	"strings"
	"sync"

	"github.com/Perceptus-Labs/samvaad-go-sdk/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SpeechDriver is the external text-to-speech engine.
type SpeechDriver interface {
	// Speak dispatches an utterance; started/ended/failed events are
	// reported asynchronously through onEvent.
	Speak(u models.Utterance, onEvent func(models.SpeechEvent)) error
	// Cancel drops whatever the driver is still doing.
	Cancel()
}

// Narrator speaks one utterance at a time. Requests that arrive while an
// utterance is active are dropped.
type Narrator struct {
	driver SpeechDriver
	logger *zap.Logger

	mu        sync.Mutex
	speaking  bool
	currentID string
}

func NewNarrator(driver SpeechDriver, logger *zap.Logger) *Narrator {
	return &Narrator{driver: driver, logger: logger}
}

func (n *Narrator) Speak(text string, lang models.Language) bool {
	return n.SpeakRequest(models.NarrationRequest{Text: text, Language: lang})
}

// SpeakRequest reports whether the request was dispatched.
func (n *Narrator) SpeakRequest(req models.NarrationRequest) bool {
	text := strings.TrimSpace(req.Text)
	if text == "" || n.driver == nil {
		return false
	}

	n.mu.Lock()
	if n.speaking {
		n.mu.Unlock()
		n.logger.Debug("Narrator busy, dropping request", zap.String("text", text))
		return false
	}
	id := uuid.New().String()
	n.speaking = true
	n.currentID = id
	n.mu.Unlock()

	utterance := models.Utterance{
		ID:     id,
		Text:   text,
		Locale: req.Language.Locale(),
		Rate:   orDefault(req.Rate, models.DefaultSpeechRate),
		Pitch:  orDefault(req.Pitch, models.DefaultSpeechPitch),
	}

	n.driver.Cancel()
	if err := n.driver.Speak(utterance, n.onEvent); err != nil {
		n.logger.Warn("Speech dispatch failed", zap.String("utterance_id", id), zap.Error(err))
		n.release(id)
		return false
	}

	n.logger.Debug("Utterance dispatched", zap.String("utterance_id", id), zap.String("locale", utterance.Locale))
	return true
}

// Speaking reports whether an utterance is active.
func (n *Narrator) Speaking() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.speaking
}

func (n *Narrator) Close() {
	if n.driver != nil {
		n.driver.Cancel()
	}
	n.mu.Lock()
	n.speaking = false
	n.currentID = ""
	n.mu.Unlock()
}

func (n *Narrator) onEvent(ev models.SpeechEvent) {
	switch ev.Kind {
	case models.SpeechEnded:
		n.release(ev.UtteranceID)
	case models.SpeechFailed:
		n.logger.Warn("Speech driver reported an error", zap.String("utterance_id", ev.UtteranceID), zap.Error(ev.Err))
		n.release(ev.UtteranceID)
	}
}

// release clears the flag, ignoring events from an utterance that is no
// longer current.
func (n *Narrator) release(id string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.currentID != id {
		return
	}
	n.speaking = false
	n.currentID = ""
}

func orDefault(v, def float64) float64 {
	if v <= 0 {
		return def
	}
	return v
}
