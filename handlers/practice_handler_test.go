package handlers

import (
	"testing"
	"time"

	"github.com/Perceptus-Labs/samvaad-go-sdk/models"
	"github.com/Perceptus-Labs/samvaad-go-sdk/utils"
	"go.uber.org/zap/zaptest"
)

var helloTarget = models.PracticeTarget{
	ID:          1,
	Name:        "Hello",
	Hindi:       "नमस्ते",
	Difficulty:  "Easy",
	Description: "Wave your open palm near your forehead.",
}

type practiceFixture struct {
	clock      *utils.ManualClock
	source     *sequentialSource
	recognizer *scriptedRecognizer
	progress   *fakeProgress
	driver     *fakeDriver
	notifier   *recordingNotifier
	handler    *PracticeHandler
}

func newPracticeFixture(t *testing.T, runner utils.Runner, labels ...string) *practiceFixture {
	t.Helper()
	logger := zaptest.NewLogger(t)
	f := &practiceFixture{
		clock:      utils.NewManualClock(epoch0),
		source:     &sequentialSource{},
		recognizer: &scriptedRecognizer{labels: labels},
		progress:   &fakeProgress{},
		driver:     &fakeDriver{autoEnd: true},
		notifier:   &recordingNotifier{},
	}
	f.handler = NewPracticeHandler(PracticeHandlerOptions{
		Source:     f.source,
		Recognizer: f.recognizer,
		Progress:   f.progress,
		Narrator:   NewNarrator(f.driver, logger),
		Notifier:   f.notifier,
		Runner:     runner,
		Clock:      f.clock,
		Logger:     logger,
	})
	t.Cleanup(f.handler.Close)
	return f
}

func TestPracticeHandler_StateTrace(t *testing.T) {
	t.Parallel()

	f := newPracticeFixture(t, utils.InlineRunner{}, models.NoGesture, "hell", "Hello")
	f.handler.SelectTarget(helloTarget)
	f.handler.SetCamera(true)
	f.clock.Advance(5 * time.Second)

	want := []models.PracticeState{
		models.PracticeReady,
		models.PracticeDetecting, models.PracticeFail, models.PracticeReady,
		models.PracticeDetecting, models.PracticeSuccess, models.PracticeReady,
		models.PracticeDetecting, models.PracticeSuccess,
	}
	got := f.notifier.practiceTrace()
	if len(got) != len(want) {
		t.Fatalf("expected trace %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected trace %v, got %v", want, got)
		}
	}

	session := f.handler.Session()
	if session.Attempts != 2 || session.BestAccuracy != 100 || session.Accuracy != 100 {
		t.Errorf("unexpected session %+v", session)
	}

	progress, err := f.handler.Progress()
	if err != nil {
		t.Fatalf("progress: %v", err)
	}
	if progress.GesturesLearned != 1 || progress.TotalAttempts != 2 || progress.PracticeSessions != 1 {
		t.Errorf("unexpected progress %+v", progress)
	}
}

func TestPracticeHandler_SuccessResetClearsDetected(t *testing.T) {
	t.Parallel()

	f := newPracticeFixture(t, utils.InlineRunner{}, "Hello")
	f.handler.SelectTarget(helloTarget)
	f.handler.SetCamera(true)

	f.clock.Advance(800 * time.Millisecond)
	if s := f.handler.Session(); s.State != models.PracticeSuccess || s.Detected != "hello" {
		t.Fatalf("expected success with detected label, got %+v", s)
	}

	f.clock.Advance(2 * time.Second)
	if s := f.handler.Session(); s.State == models.PracticeSuccess || s.Detected != "" {
		t.Errorf("expected reset after success hold, got %+v", s)
	}
}

func TestPracticeHandler_FailHoldKeepsDetected(t *testing.T) {
	t.Parallel()

	f := newPracticeFixture(t, utils.InlineRunner{}, "Water")
	f.handler.SelectTarget(helloTarget)
	f.handler.SetCamera(true)

	f.clock.Advance(800 * time.Millisecond)
	s := f.handler.Session()
	if s.State != models.PracticeFail || s.Accuracy != 0 || s.Attempts != 1 {
		t.Fatalf("unexpected session %+v", s)
	}

	f.clock.Advance(1500 * time.Millisecond)
	s = f.handler.Session()
	if s.State != models.PracticeReady || s.Detected != "water" {
		t.Errorf("expected ready with the last label kept, got %+v", s)
	}
}

func TestPracticeHandler_NoSnapshotStaysReady(t *testing.T) {
	t.Parallel()

	f := newPracticeFixture(t, utils.InlineRunner{}, "Hello")
	f.source.missing = true
	f.handler.SelectTarget(helloTarget)
	f.handler.SetCamera(true)
	f.clock.Advance(3 * time.Second)

	if s := f.handler.Session(); s.State != models.PracticeReady || s.Attempts != 0 {
		t.Errorf("expected idle ready session, got %+v", s)
	}
	if f.recognizer.calls != 0 {
		t.Errorf("expected no recognition calls, got %d", f.recognizer.calls)
	}
}

func TestPracticeHandler_OneDetectionInFlight(t *testing.T) {
	t.Parallel()

	queue := &queueRunner{}
	f := newPracticeFixture(t, queue, "Hello")
	f.handler.SelectTarget(helloTarget)
	f.handler.SetCamera(true)
	f.clock.Advance(5 * time.Second)

	if queue.len() != 1 {
		t.Errorf("expected a single pending detection, got %d", queue.len())
	}
	if f.handler.Session().State != models.PracticeDetecting {
		t.Errorf("expected detecting, got %s", f.handler.Session().State)
	}
}

func TestPracticeHandler_SelectTargetResets(t *testing.T) {
	t.Parallel()

	f := newPracticeFixture(t, utils.InlineRunner{}, "hell")
	f.handler.SelectTarget(helloTarget)
	f.handler.SetCamera(true)
	f.clock.Advance(800 * time.Millisecond)

	if f.handler.Session().Attempts != 1 {
		t.Fatalf("expected one attempt, got %+v", f.handler.Session())
	}

	f.handler.SelectTarget(models.PracticeTarget{ID: 2, Name: "Water"})
	s := f.handler.Session()
	if s.Target != "Water" || s.State != models.PracticeReady || s.Attempts != 0 || s.BestAccuracy != 0 || s.Detected != "" || s.Accuracy != 0 {
		t.Errorf("expected a fresh session, got %+v", s)
	}

	// The success hold armed for the old target must not fire into the new one.
	if f.clock.Pending() != 1 {
		t.Errorf("expected only the capture timer armed, got %d", f.clock.Pending())
	}
	if f.progress.progress.PracticeSessions != 2 {
		t.Errorf("expected 2 recorded sessions, got %d", f.progress.progress.PracticeSessions)
	}
}

func TestPracticeHandler_LateDetectionAfterReselectDropped(t *testing.T) {
	t.Parallel()

	queue := &queueRunner{}
	f := newPracticeFixture(t, queue, "Hello")
	f.handler.SelectTarget(helloTarget)
	f.handler.SetCamera(true)
	f.clock.Advance(800 * time.Millisecond)

	f.handler.SelectTarget(helloTarget)
	queue.run(0)

	s := f.handler.Session()
	if s.State != models.PracticeReady || s.Attempts != 0 {
		t.Errorf("late detection applied to a new session: %+v", s)
	}
	if f.progress.progress.GesturesLearned != 0 {
		t.Error("late detection must not touch progress")
	}
}

func TestPracticeHandler_CameraOffReturnsToReady(t *testing.T) {
	t.Parallel()

	queue := &queueRunner{}
	f := newPracticeFixture(t, queue, "Hello")
	f.handler.SelectTarget(helloTarget)
	f.handler.SetCamera(true)
	f.clock.Advance(800 * time.Millisecond)
	f.handler.SetCamera(false)
	queue.run(0)

	s := f.handler.Session()
	if s.State != models.PracticeReady || s.Target != "Hello" || s.Attempts != 0 {
		t.Errorf("unexpected session after camera off %+v", s)
	}
	if f.clock.Pending() != 0 {
		t.Errorf("expected no armed timers, got %d", f.clock.Pending())
	}
}

func TestPracticeHandler_CloseDiscardsInFlight(t *testing.T) {
	t.Parallel()

	queue := &queueRunner{}
	f := newPracticeFixture(t, queue, "Hello")
	f.handler.SelectTarget(helloTarget)
	f.handler.SetCamera(true)
	f.clock.Advance(800 * time.Millisecond)
	before := f.notifier.count(MessagePracticeState)

	f.handler.Close()
	queue.run(0)

	if f.notifier.count(MessagePracticeState) != before {
		t.Error("late detection published after close")
	}
	if _, ok := f.handler.Target(); ok {
		t.Error("expected target cleared on close")
	}
	f.handler.SelectTarget(helloTarget)
	if _, ok := f.handler.Target(); ok {
		t.Error("closed handler accepted a new target")
	}
}

func TestPracticeHandler_DescribeTarget(t *testing.T) {
	t.Parallel()

	f := newPracticeFixture(t, utils.InlineRunner{})
	if f.handler.DescribeTarget() {
		t.Error("describe without a target must be a no-op")
	}

	f.handler.SelectTarget(helloTarget)
	if !f.handler.DescribeTarget() {
		t.Fatal("expected describe to dispatch")
	}

	u := f.driver.Utterances()[0]
	if u.Text != "Hello. Wave your open palm near your forehead." || u.Rate != models.PracticeSpeechRate || u.Locale != "en-IN" {
		t.Errorf("unexpected utterance %+v", u)
	}
}
