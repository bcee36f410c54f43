package handlers

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/Perceptus-Labs/samvaad-go-sdk/models"
	"github.com/Perceptus-Labs/samvaad-go-sdk/utils"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const DefaultLiveInterval = 1200 * time.Millisecond

// TranslationState is what the live view renders.
type TranslationState struct {
	Gesture       string          `json:"gesture"`
	TranslationEn string          `json:"translation_en"`
	TranslationHi string          `json:"translation_hi"`
	ContextEn     string          `json:"context_en"`
	ContextHi     string          `json:"context_hi"`
	Language      models.Language `json:"language"`
	CameraOn      bool            `json:"camera_on"`
	SpeakEnabled  bool            `json:"speak_enabled"`
	PanelTTS      bool            `json:"panel_tts"`
}

// Output is the best text available for the selected language.
func (s TranslationState) Output() string {
	if s.Language == models.LanguageHindi {
		return firstNonEmpty(s.ContextHi, s.TranslationHi)
	}
	return firstNonEmpty(s.ContextEn, s.TranslationEn)
}

type TranslateHandlerOptions struct {
	Source      SnapshotSource
	Recognizer  Recognizer
	Refiner     Refiner
	Narrator    *Narrator
	Notifier    Notifier
	Runner      utils.Runner
	Clock       utils.Clock
	Logger      *zap.Logger
	Interval    time.Duration
	HistorySize int
}

// TranslateHandler runs the live capture-and-translate loop for one view.
type TranslateHandler struct {
	ctx        context.Context
	cancel     context.CancelFunc
	source     SnapshotSource
	recognizer Recognizer
	refiner    Refiner
	narrator   *Narrator
	history    *History
	notifier   Notifier
	runner     utils.Runner
	clock      utils.Clock
	logger     *zap.Logger
	scheduler  *CaptureScheduler

	mu    sync.Mutex
	state TranslationState
	// lastRefined is the gesture that last triggered a refinement. It is
	// claimed at trigger time, so a failed refinement still consumes it.
	lastRefined string
	closed      bool
	// epoch changes on camera-off and teardown; completions from an older
	// epoch are dropped.
	epoch uint64
	// Recognition and refinement responses may land out of order. Every
	// completion settles its sequence number, whether it carried a label,
	// "No gesture", or an error; anything older than the last settled
	// response is stale.
	dispatched       uint64
	settled          uint64
	refineDispatched uint64
	refineSettled    uint64
}

func NewTranslateHandler(opts TranslateHandlerOptions) *TranslateHandler {
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
		opts.Interval = DefaultLiveInterval
	}

	ctx, cancel := context.WithCancel(context.Background())
	h := &TranslateHandler{
		ctx:        ctx,
		cancel:     cancel,
		source:     opts.Source,
		recognizer: opts.Recognizer,
		refiner:    opts.Refiner,
		narrator:   opts.Narrator,
		history:    NewHistory(opts.HistorySize),
		notifier:   opts.Notifier,
		runner:     opts.Runner,
		clock:      opts.Clock,
		logger:     opts.Logger,
		state: TranslationState{
			Language:     models.LanguageEnglish,
			SpeakEnabled: true,
			PanelTTS:     true,
		},
	}
	h.scheduler = NewCaptureScheduler("live", opts.Clock, opts.Interval, h.captureFrame, opts.Logger)
	return h
}

// SetCamera starts or stops the capture loop. Switching off also drops any
// request still in flight.
func (h *TranslateHandler) SetCamera(on bool) {
	h.mu.Lock()
	if h.closed || h.state.CameraOn == on {
		h.mu.Unlock()
		return
	}
	h.state.CameraOn = on
	if !on {
		h.epoch++
	}
	state := h.state
	h.mu.Unlock()

	if on {
		h.scheduler.Start()
	} else {
		h.scheduler.Stop()
	}
	h.logger.Info("Live camera toggled", zap.Bool("on", on))
	h.notifier.Notify(MessageGestureUpdate, state)
}

func (h *TranslateHandler) SetInterval(d time.Duration) {
	h.scheduler.SetPeriod(d)
}

func (h *TranslateHandler) SetLanguage(lang models.Language) {
	h.update(func(s *TranslationState) { s.Language = lang })
}

// SetSpeakEnabled toggles automatic narration of refined sentences.
func (h *TranslateHandler) SetSpeakEnabled(on bool) {
	h.update(func(s *TranslationState) { s.SpeakEnabled = on })
}

// SetPanelTTS is the output panel's own TTS switch; both switches must be on
// for automatic narration.
func (h *TranslateHandler) SetPanelTTS(on bool) {
	h.update(func(s *TranslationState) { s.PanelTTS = on })
}

func (h *TranslateHandler) update(f func(s *TranslationState)) {
	h.mu.Lock()
	f(&h.state)
	state := h.state
	h.mu.Unlock()
	h.notifier.Notify(MessageGestureUpdate, state)
}

func (h *TranslateHandler) State() TranslationState {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

func (h *TranslateHandler) History() []models.HistoryEntry {
	return h.history.Entries()
}

// Play narrates the current output in the selected language.
func (h *TranslateHandler) Play() bool {
	state := h.State()
	if h.narrator == nil {
		return false
	}
	return h.narrator.Speak(state.Output(), state.Language)
}

// PlayHistory narrates a recent entry's English sentence.
func (h *TranslateHandler) PlayHistory(id string) bool {
	entry, ok := h.history.Find(id)
	if !ok || h.narrator == nil {
		return false
	}
	return h.narrator.Speak(entry.Refined, models.LanguageEnglish)
}

// Close stops the loop for good and abandons in-flight calls.
func (h *TranslateHandler) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	h.epoch++
	h.state.CameraOn = false
	h.mu.Unlock()

	h.scheduler.Stop()
	h.cancel()
	h.logger.Info("Translate handler closed")
}

func (h *TranslateHandler) captureFrame() {
	h.mu.Lock()
	if h.closed || !h.state.CameraOn {
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
	if epoch != h.epoch {
		h.mu.Unlock()
		return
	}
	h.dispatched++
	seq := h.dispatched
	h.mu.Unlock()

	h.runner.Go(func() { h.recognize(epoch, seq, snapshot) })
}

func (h *TranslateHandler) recognize(epoch, seq uint64, snapshot models.Snapshot) {
	start := h.clock.Now()
	result, err := h.recognizer.Recognize(h.ctx, snapshot)

	h.mu.Lock()
	if epoch != h.epoch {
		h.mu.Unlock()
		h.logger.Debug("Dropping recognition after teardown", zap.Uint64("seq", seq))
		return
	}
	if settled := h.settled; seq < settled {
		h.mu.Unlock()
		h.logger.Debug("Dropping stale recognition", zap.Uint64("seq", seq), zap.Uint64("settled", settled))
		return
	}
	h.settled = seq

	if err != nil {
		h.mu.Unlock()
		h.logger.Warn("Error in /predict", zap.Uint64("seq", seq), zap.Error(err))
		return
	}
	if !result.HasGesture() {
		h.mu.Unlock()
		return
	}
	label := strings.TrimSpace(result.Gesture)

	h.state.Gesture = label
	h.state.TranslationEn = firstNonEmpty(result.TranslationEn, label)
	h.state.TranslationHi = result.TranslationHi

	if latest, ok := h.history.Latest(); !ok || latest.Raw != label {
		h.history.Append(models.HistoryEntry{
			ID:        uuid.New().String(),
			Raw:       label,
			Refined:   h.state.TranslationEn,
			Hindi:     h.state.TranslationHi,
			Timestamp: h.clock.Now(),
		})
	}

	refineSeq, trigger := h.claimRefinementLocked(label)
	state := h.state
	h.mu.Unlock()

	h.logger.Debug("/predict latency", zap.Uint64("seq", seq), zap.Duration("latency", h.clock.Now().Sub(start)))
	h.notifier.Notify(MessageGestureUpdate, state)
	h.notifier.Notify(MessageHistory, h.history.Entries())

	if trigger {
		h.runner.Go(func() { h.refine(epoch, refineSeq, label) })
	}
}

// claimRefinementLocked applies the debounce-by-value rule.
func (h *TranslateHandler) claimRefinementLocked(label string) (uint64, bool) {
	if h.refiner == nil || !models.IsGesture(label) || label == h.lastRefined {
		return 0, false
	}
	h.lastRefined = label
	h.refineDispatched++
	return h.refineDispatched, true
}

func (h *TranslateHandler) refine(epoch, seq uint64, label string) {
	start := h.clock.Now()
	result, err := h.refiner.Refine(h.ctx, label)

	h.mu.Lock()
	if epoch != h.epoch || seq < h.refineSettled {
		h.mu.Unlock()
		h.logger.Debug("Dropping stale refinement", zap.String("gesture", label), zap.Uint64("seq", seq))
		return
	}
	h.refineSettled = seq

	if err != nil {
		h.mu.Unlock()
		h.logger.Warn("Error in /context-translate", zap.String("gesture", label), zap.Error(err))
		return
	}
	if result.Empty() {
		h.mu.Unlock()
		h.logger.Debug("Refinement returned no sentence", zap.String("gesture", label))
		return
	}
	h.logger.Debug("/context-translate latency", zap.String("gesture", label), zap.Duration("latency", h.clock.Now().Sub(start)))

	previous := h.state.ContextEn
	if result.English != "" {
		h.state.ContextEn = result.English
	}
	if result.Hindi != "" {
		h.state.ContextHi = result.Hindi
	}
	h.history.PatchLatest(label, result.English, result.Hindi)

	var speech string
	lang := h.state.Language
	if h.state.SpeakEnabled && h.state.PanelTTS && result.English != "" {
		speech = result.English
		if lang == models.LanguageHindi && result.Hindi != "" {
			speech = result.Hindi
		}
		if speech == previous {
			speech = ""
		}
	}
	state := h.state
	h.mu.Unlock()

	h.notifier.Notify(MessageContextUpdate, state)
	h.notifier.Notify(MessageHistory, h.history.Entries())

	if speech != "" && h.narrator != nil {
		h.narrator.Speak(speech, lang)
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
