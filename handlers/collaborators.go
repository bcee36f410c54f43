package handlers

import (
	"context"

	"github.com/Perceptus-Labs/samvaad-go-sdk/models"
)

// Outbound websocket message types.
const (
	MessageGestureUpdate = "gesture_update"
	MessageContextUpdate = "context_update"
	MessageHistory       = "history"
	MessagePracticeState = "practice_state"
	MessageProgress      = "progress"
	MessageSpeechAudio   = "speech_audio"
)

// SnapshotSource produces the current camera frame, or false when the feed
// has nothing to offer yet.
type SnapshotSource interface {
	Snapshot() (models.Snapshot, bool)
}

type Recognizer interface {
	Recognize(ctx context.Context, snapshot models.Snapshot) (*models.RecognitionResult, error)
}

type Refiner interface {
	Refine(ctx context.Context, gesture string) (*models.ContextResult, error)
}

// ProgressTracker is the learner's persistent practice record.
type ProgressTracker interface {
	IncrementLearned(ctx context.Context) (int64, error)
	RecordAttempt(ctx context.Context) error
	RecordSession(ctx context.Context) error
	Load(ctx context.Context) (models.Progress, error)
}

// Notifier pushes state changes to whoever renders the view.
type Notifier interface {
	Notify(msgType string, data interface{})
}

type NotifierFunc func(msgType string, data interface{})

func (f NotifierFunc) Notify(msgType string, data interface{}) { f(msgType, data) }

type discardNotifier struct{}

func (discardNotifier) Notify(string, interface{}) {}
