package handlers

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Perceptus-Labs/samvaad-go-sdk/models"
	"github.com/Perceptus-Labs/samvaad-go-sdk/utils"
)

var epoch0 = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

// sequentialSource hands out frame-1, frame-2, ... until disabled.
type sequentialSource struct {
	mu      sync.Mutex
	n       int
	missing bool
}

func (s *sequentialSource) Snapshot() (models.Snapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.missing {
		return models.Snapshot{}, false
	}
	s.n++
	return models.Snapshot{Data: []byte(fmt.Sprintf("frame-%d", s.n))}, true
}

// scriptedRecognizer answers calls in order from labels. An entry of "!"
// produces a transport error. Frames listed in byFrame override the script.
type scriptedRecognizer struct {
	mu      sync.Mutex
	labels  []string
	byFrame map[string]string
	calls   int
}

func (r *scriptedRecognizer) Recognize(_ context.Context, snap models.Snapshot) (*models.RecognitionResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	label, ok := r.byFrame[string(snap.Data)]
	if !ok {
		if len(r.labels) == 0 {
			return &models.RecognitionResult{Gesture: models.NoGesture}, nil
		}
		label = r.labels[0]
		r.labels = r.labels[1:]
	}
	if label == "!" {
		return nil, errors.New("connection refused")
	}
	return &models.RecognitionResult{Gesture: label, TranslationEn: label, TranslationHi: "hi:" + label}, nil
}

type recordingRefiner struct {
	mu     sync.Mutex
	calls  []string
	err    error
	errFor map[string]error
	empty  bool
}

func (r *recordingRefiner) Refine(_ context.Context, gesture string) (*models.ContextResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, gesture)
	if r.err != nil {
		return nil, r.err
	}
	if err := r.errFor[gesture]; err != nil {
		return nil, err
	}
	if r.empty {
		return &models.ContextResult{}, nil
	}
	return &models.ContextResult{English: "I say " + gesture + ".", Hindi: "मैं " + gesture}, nil
}

func (r *recordingRefiner) Calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

// fakeDriver records utterances. With autoEnd it reports completion before
// Speak returns; otherwise the test finishes utterances by hand.
type fakeDriver struct {
	mu         sync.Mutex
	utterances []models.Utterance
	handlers   map[string]func(models.SpeechEvent)
	cancels    int
	autoEnd    bool
	err        error
}

func (d *fakeDriver) Speak(u models.Utterance, onEvent func(models.SpeechEvent)) error {
	d.mu.Lock()
	if d.err != nil {
		d.mu.Unlock()
		return d.err
	}
	d.utterances = append(d.utterances, u)
	if d.handlers == nil {
		d.handlers = make(map[string]func(models.SpeechEvent))
	}
	d.handlers[u.ID] = onEvent
	autoEnd := d.autoEnd
	d.mu.Unlock()

	onEvent(models.SpeechEvent{UtteranceID: u.ID, Kind: models.SpeechStarted})
	if autoEnd {
		onEvent(models.SpeechEvent{UtteranceID: u.ID, Kind: models.SpeechEnded})
	}
	return nil
}

func (d *fakeDriver) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cancels++
}

func (d *fakeDriver) finish(id string, kind models.SpeechEventKind) {
	d.mu.Lock()
	handler := d.handlers[id]
	d.mu.Unlock()
	handler(models.SpeechEvent{UtteranceID: id, Kind: kind})
}

func (d *fakeDriver) Utterances() []models.Utterance {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]models.Utterance(nil), d.utterances...)
}

type notification struct {
	msgType string
	data    interface{}
}

type recordingNotifier struct {
	mu    sync.Mutex
	items []notification
}

func (n *recordingNotifier) Notify(msgType string, data interface{}) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.items = append(n.items, notification{msgType, data})
}

// practiceTrace lists the distinct consecutive practice states published.
func (n *recordingNotifier) practiceTrace() []models.PracticeState {
	n.mu.Lock()
	defer n.mu.Unlock()
	var trace []models.PracticeState
	for _, item := range n.items {
		session, ok := item.data.(models.PracticeSession)
		if !ok || item.msgType != MessagePracticeState {
			continue
		}
		if len(trace) == 0 || trace[len(trace)-1] != session.State {
			trace = append(trace, session.State)
		}
	}
	return trace
}

func (n *recordingNotifier) count(msgType string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	c := 0
	for _, item := range n.items {
		if item.msgType == msgType {
			c++
		}
	}
	return c
}

// queueRunner holds tasks until the test runs them, in any order.
type queueRunner struct {
	mu    sync.Mutex
	tasks []func()
}

func (q *queueRunner) Go(f func()) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.tasks = append(q.tasks, f)
}

func (q *queueRunner) run(i int) {
	q.mu.Lock()
	task := q.tasks[i]
	q.mu.Unlock()
	task()
}

func (q *queueRunner) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tasks)
}

type fakeProgress struct {
	mu       sync.Mutex
	progress models.Progress
	err      error
}

func (p *fakeProgress) IncrementLearned(context.Context) (int64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return 0, p.err
	}
	if p.progress.GesturesLearned < models.MaxGesturesLearned {
		p.progress.GesturesLearned++
	}
	return p.progress.GesturesLearned, nil
}

func (p *fakeProgress) RecordAttempt(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.progress.TotalAttempts++
	return p.err
}

func (p *fakeProgress) RecordSession(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.progress.PracticeSessions++
	return p.err
}

func (p *fakeProgress) Load(context.Context) (models.Progress, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.progress, p.err
}

var _ utils.Runner = (*queueRunner)(nil)
