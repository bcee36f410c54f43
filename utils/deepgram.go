package utils

import (
	"context"
	"fmt"
	"sync"

	"github.com/Perceptus-Labs/samvaad-go-sdk/models"
	speakapi "github.com/deepgram/deepgram-go-sdk/pkg/api/speak/v1/rest"
	"github.com/deepgram/deepgram-go-sdk/pkg/client/interfaces"
	"github.com/deepgram/deepgram-go-sdk/pkg/client/speak"
	"go.uber.org/zap"
)

// AudioSink receives synthesized audio for one utterance.
type AudioSink func(u models.Utterance, audio []byte) error

// synthesizer is the slice of the Deepgram speak client the driver needs.
type synthesizer interface {
	Synthesize(ctx context.Context, text, model string) ([]byte, error)
}

type deepgramSynthesizer struct {
	dg *speakapi.Client
}

func (s *deepgramSynthesizer) Synthesize(ctx context.Context, text, model string) ([]byte, error) {
	var buffer interfaces.RawResponse
	options := &interfaces.SpeakOptions{Model: model}
	if _, err := s.dg.ToStream(ctx, text, options, &buffer); err != nil {
		return nil, err
	}
	return buffer.Bytes(), nil
}

// DeepgramSpeechDriver turns utterances into audio with Deepgram Aura and
// hands the audio to a sink, usually the client's websocket.
type DeepgramSpeechDriver struct {
	synth        synthesizer
	sink         AudioSink
	defaultModel string
	localeModels map[string]string
	logger       *zap.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
}

type DeepgramSpeechConfig struct {
	APIKey       string
	DefaultModel string
	// LocaleModels overrides the model per locale, e.g. "hi-IN".
	LocaleModels map[string]string
}

func NewDeepgramSpeechDriver(cfg DeepgramSpeechConfig, sink AudioSink, logger *zap.Logger) (*DeepgramSpeechDriver, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("DEEPGRAM_API_KEY is not set")
	}

	client := speak.NewREST(cfg.APIKey, &interfaces.ClientOptions{})
	return newDeepgramSpeechDriver(&deepgramSynthesizer{dg: speakapi.New(client)}, cfg, sink, logger), nil
}

func newDeepgramSpeechDriver(synth synthesizer, cfg DeepgramSpeechConfig, sink AudioSink, logger *zap.Logger) *DeepgramSpeechDriver {
	model := cfg.DefaultModel
	if model == "" {
		model = "aura-asteria-en"
	}
	localeModels := make(map[string]string, len(cfg.LocaleModels))
	for locale, m := range cfg.LocaleModels {
		if m != "" {
			localeModels[locale] = m
		}
	}
	return &DeepgramSpeechDriver{
		synth:        synth,
		sink:         sink,
		defaultModel: model,
		localeModels: localeModels,
		logger:       logger,
	}
}

func (d *DeepgramSpeechDriver) modelFor(locale string) string {
	if m, ok := d.localeModels[locale]; ok {
		return m
	}
	return d.defaultModel
}

// Speak starts synthesis in the background. Events arrive on onEvent from
// the synthesis goroutine.
func (d *DeepgramSpeechDriver) Speak(u models.Utterance, onEvent func(models.SpeechEvent)) error {
	if u.Text == "" {
		return fmt.Errorf("empty utterance")
	}

	ctx, cancel := context.WithCancel(context.Background())
	d.mu.Lock()
	if d.cancel != nil {
		d.cancel()
	}
	d.cancel = cancel
	d.mu.Unlock()

	model := d.modelFor(u.Locale)
	// Aura has no rate or pitch controls.
	d.logger.Debug("Dispatching utterance",
		zap.String("utterance_id", u.ID),
		zap.String("locale", u.Locale),
		zap.String("model", model),
		zap.Float64("rate", u.Rate),
		zap.Float64("pitch", u.Pitch))

	go func() {
		defer cancel()
		onEvent(models.SpeechEvent{UtteranceID: u.ID, Kind: models.SpeechStarted})

		audio, err := d.synth.Synthesize(ctx, u.Text, model)
		if err == nil && d.sink != nil {
			err = d.sink(u, audio)
		}
		if err != nil {
			d.logger.Warn("Speech synthesis failed", zap.String("utterance_id", u.ID), zap.Error(err))
			onEvent(models.SpeechEvent{UtteranceID: u.ID, Kind: models.SpeechFailed, Err: err})
			return
		}
		onEvent(models.SpeechEvent{UtteranceID: u.ID, Kind: models.SpeechEnded})
	}()
	return nil
}

// Cancel aborts any synthesis still in flight.
func (d *DeepgramSpeechDriver) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
}
