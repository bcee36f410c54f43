package handlers

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/Perceptus-Labs/samvaad-go-sdk/models"
	"github.com/Perceptus-Labs/samvaad-go-sdk/utils"
	"go.uber.org/zap"
)

const (
	DefaultPracticeInterval = 800 * time.Millisecond
	successHold             = 2 * time.Second
	failHold                = 1500 * time.Millisecond
)

type PracticeHandlerOptions struct {
	Source     SnapshotSource
	Recognizer Recognizer
	Progress   ProgressTracker
	Narrator   *Narrator
	Notifier   Notifier
	Runner     utils.Runner
	Clock      utils.Clock
	Logger     *zap.Logger
	Interval   time.Duration
}

// PracticeHandler scores live attempts against a chosen target gesture.
//
// The session moves ready -> detecting on a capture, detecting -> success
// or fail on the result, and back to ready on a timer. Only a ready session
// accepts a capture, so at most one detection is ever in flight.
type PracticeHandler struct {
	ctx        context.Context
	cancel     context.CancelFunc
	source     SnapshotSource
	recognizer Recognizer
	progress   ProgressTracker
	narrator   *Narrator
	notifier   Notifier
	runner     utils.Runner
	clock      utils.Clock
	logger     *zap.Logger
	scheduler  *CaptureScheduler

	mu         sync.Mutex
	target     *models.PracticeTarget
	session    models.PracticeSession
	cameraOn   bool
	closed     bool
	epoch      uint64
	resetTimer utils.Timer
}

func NewPracticeHandler(opts PracticeHandlerOptions) *PracticeHandler {
	if opts.Notifier == nil {
		opts.Notifier = discardNotifier{}
	}
	if opts.Runner == nil {
		opts.Runner = utils.GoRunner{}
	}
	if opts.Clock == nil {
		opts.Clock = utils.RealClock{}
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Interval <= 0 {
		opts.Interval = DefaultPracticeInterval
	}

	ctx, cancel := context.WithCancel(context.Background())
	h := &PracticeHandler{
		ctx:        ctx,
		cancel:     cancel,
		source:     opts.Source,
		recognizer: opts.Recognizer,
		progress:   opts.Progress,
		narrator:   opts.Narrator,
		notifier:   opts.Notifier,
		runner:     opts.Runner,
		clock:      opts.Clock,
		logger:     opts.Logger,
		session:    models.PracticeSession{State: models.PracticeReady},
	}
	h.scheduler = NewCaptureScheduler("practice", opts.Clock, opts.Interval, h.captureTick, opts.Logger)
	return h
}

// SelectTarget starts a fresh session for target, discarding every counter
// and anything still in flight from the previous one.
func (h *PracticeHandler) SelectTarget(target models.PracticeTarget) {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.epoch++
	h.stopResetLocked()
	h.target = &target
	h.session = models.PracticeSession{Target: target.Name, State: models.PracticeReady}
	session := h.session
	h.mu.Unlock()

	h.logger.Info("Practice target selected", zap.String("target", target.Name))
	h.notifier.Notify(MessagePracticeState, session)

	if h.progress != nil {
		if err := h.progress.RecordSession(h.ctx); err != nil {
			h.logger.Warn("Failed to record practice session", zap.Error(err))
		}
		h.publishProgress()
	}
}

// SetCamera starts or stops the practice loop. Stopping abandons a pending
// detection and returns the session to ready, keeping its counters.
func (h *PracticeHandler) SetCamera(on bool) {
	h.mu.Lock()
	if h.closed || h.cameraOn == on {
		h.mu.Unlock()
		return
	}
	h.cameraOn = on
	if !on {
		h.epoch++
		h.stopResetLocked()
		h.session.State = models.PracticeReady
	}
	session := h.session
	h.mu.Unlock()

	if on {
		h.scheduler.Start()
	} else {
		h.scheduler.Stop()
	}
	h.notifier.Notify(MessagePracticeState, session)
}

func (h *PracticeHandler) SetInterval(d time.Duration) {
	h.scheduler.SetPeriod(d)
}

// End closes the practice view: camera off, target cleared, session reset.
func (h *PracticeHandler) End() {
	h.mu.Lock()
	h.cameraOn = false
	h.epoch++
	h.stopResetLocked()
	h.target = nil
	h.session = models.PracticeSession{State: models.PracticeReady}
	h.mu.Unlock()

	h.scheduler.Stop()
}

func (h *PracticeHandler) Close() {
	h.End()
	h.mu.Lock()
	h.closed = true
	h.mu.Unlock()
	h.cancel()
	h.logger.Info("Practice handler closed")
}

func (h *PracticeHandler) Session() models.PracticeSession {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.session
}

func (h *PracticeHandler) Target() (models.PracticeTarget, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.target == nil {
		return models.PracticeTarget{}, false
	}
	return *h.target, true
}

// DescribeTarget reads the target's name and description aloud, a little
// slower than live narration.
func (h *PracticeHandler) DescribeTarget() bool {
	target, ok := h.Target()
	if !ok || h.narrator == nil {
		return false
	}
	return h.narrator.SpeakRequest(models.NarrationRequest{
		Text:     target.Name + ". " + target.Description,
		Language: models.LanguageEnglish,
		Rate:     models.PracticeSpeechRate,
	})
}

func (h *PracticeHandler) captureTick() {
	h.mu.Lock()
	if h.closed || !h.cameraOn || h.target == nil || h.session.State != models.PracticeReady {
		h.mu.Unlock()
		return
	}
	epoch := h.epoch
	h.mu.Unlock()

	snapshot, ok := h.source.Snapshot()
	if !ok {
		return
	}

	h.mu.Lock()
	if epoch != h.epoch || h.session.State != models.PracticeReady {
		h.mu.Unlock()
		return
	}
	h.session.State = models.PracticeDetecting
	target := h.target.Name
	session := h.session
	h.mu.Unlock()

	h.notifier.Notify(MessagePracticeState, session)
	h.runner.Go(func() { h.detect(epoch, target, snapshot) })
}

func (h *PracticeHandler) detect(epoch uint64, target string, snapshot models.Snapshot) {
	result, err := h.recognizer.Recognize(h.ctx, snapshot)

	h.mu.Lock()
	if epoch != h.epoch || h.session.State != models.PracticeDetecting {
		h.mu.Unlock()
		h.logger.Debug("Dropping practice detection for an abandoned session")
		return
	}

	var scored, perfect bool
	switch {
	case err != nil:
		h.logger.Warn("Practice prediction error", zap.Error(err))
		h.failLocked(epoch)
	case !result.HasGesture():
		h.failLocked(epoch)
	default:
		detected := strings.ToLower(strings.TrimSpace(result.Gesture))
		score := models.Score(detected, target)
		h.session.Detected = detected
		h.session.Accuracy = score
		h.session.Attempts++
		if score > h.session.BestAccuracy {
			h.session.BestAccuracy = score
		}
		scored = true
		perfect = score == models.PerfectScore

		if score >= models.PassingScore {
			h.session.State = models.PracticeSuccess
			h.armResetLocked(epoch, successHold, true)
		} else {
			h.failLocked(epoch)
		}
	}
	session := h.session
	h.mu.Unlock()

	h.logger.Debug("Practice attempt scored",
		zap.String("state", string(session.State)),
		zap.String("detected", session.Detected),
		zap.Int("accuracy", session.Accuracy))
	h.notifier.Notify(MessagePracticeState, session)

	if scored {
		h.recordAttempt(perfect)
	}
}

func (h *PracticeHandler) failLocked(epoch uint64) {
	h.session.State = models.PracticeFail
	h.armResetLocked(epoch, failHold, false)
}

func (h *PracticeHandler) armResetLocked(epoch uint64, hold time.Duration, clearDetected bool) {
	h.stopResetLocked()
	h.resetTimer = h.clock.AfterFunc(hold, func() { h.resetToReady(epoch, clearDetected) })
}

func (h *PracticeHandler) stopResetLocked() {
	if h.resetTimer != nil {
		h.resetTimer.Stop()
		h.resetTimer = nil
	}
}

func (h *PracticeHandler) resetToReady(epoch uint64, clearDetected bool) {
	h.mu.Lock()
	if epoch != h.epoch || (h.session.State != models.PracticeSuccess && h.session.State != models.PracticeFail) {
		h.mu.Unlock()
		return
	}
	h.session.State = models.PracticeReady
	if clearDetected {
		h.session.Detected = ""
	}
	h.resetTimer = nil
	session := h.session
	h.mu.Unlock()

	h.notifier.Notify(MessagePracticeState, session)
}

func (h *PracticeHandler) recordAttempt(perfect bool) {
	if h.progress == nil {
		return
	}
	if err := h.progress.RecordAttempt(h.ctx); err != nil {
		h.logger.Warn("Failed to record practice attempt", zap.Error(err))
	}
	if perfect {
		learned, err := h.progress.IncrementLearned(h.ctx)
		if err != nil {
			h.logger.Warn("Failed to increment gestures learned", zap.Error(err))
		} else {
			h.logger.Info("Gesture learned", zap.Int64("gestures_learned", learned))
		}
	}
	h.publishProgress()
}

func (h *PracticeHandler) publishProgress() {
	progress, err := h.progress.Load(h.ctx)
	if err != nil {
		h.logger.Warn("Failed to load progress", zap.Error(err))
		return
	}
	h.notifier.Notify(MessageProgress, progress)
}

// Progress returns the learner's stored counters.
func (h *PracticeHandler) Progress() (models.Progress, error) {
	if h.progress == nil {
		return models.Progress{}, nil
	}
	return h.progress.Load(h.ctx)
}
