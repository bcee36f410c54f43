package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/Perceptus-Labs/samvaad-go-sdk/models"
	"github.com/Perceptus-Labs/samvaad-go-sdk/utils"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	DefaultHeartbeatInterval = 30 * time.Second
	writeWait                = 10 * time.Second
	anonymousLearner         = "anonymous"
)

// SessionDeps are the process-wide collaborators every session is built from.
type SessionDeps struct {
	Recognizer Recognizer
	Refiner    Refiner
	// Progress opens the store for a learner; nil disables progress tracking.
	Progress func(learnerID string) ProgressTracker
	// Speech builds a driver that delivers synthesized audio to sink. It may
	// return nil when no engine is configured.
	Speech func(sink utils.AudioSink) SpeechDriver
	// Snapshots picks the frame source; by default the client-pushed frames.
	Snapshots func(frames *utils.FrameSource) SnapshotSource

	Clock             utils.Clock
	Runner            utils.Runner
	LiveInterval      time.Duration
	PracticeInterval  time.Duration
	HistorySize       int
	FrameMaxAge       time.Duration
	HeartbeatInterval time.Duration
}

// GestureSession is one connected view: a live translator, a practice
// coach, and the narrator they share.
type GestureSession struct {
	ID        string
	LearnerID string
	Logger    *zap.Logger
	StartTime time.Time

	ctx        context.Context
	cancel     context.CancelFunc
	connection *websocket.Conn
	heartbeat  time.Duration

	writeMu sync.Mutex
	closed  bool

	Frames    *utils.FrameSource
	Narrator  *Narrator
	Translate *TranslateHandler
	Practice  *PracticeHandler
	progress  ProgressTracker

	stopOnce sync.Once
}

type WebSocketMessage struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data"`
	Timestamp time.Time   `json:"timestamp"`
}

// inboundMessage defers decoding of data until the type is known.
type inboundMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type SessionConfig struct {
	LiveInterval     string `json:"live_interval,omitempty"`
	PracticeInterval string `json:"practice_interval,omitempty"`
	Language         string `json:"language,omitempty"`
}

type toggleData struct {
	On bool `json:"on"`
}

type ttsData struct {
	SpeakEnabled *bool `json:"speak_enabled"`
	PanelTTS     *bool `json:"panel_tts"`
}

type speakData struct {
	Text     string `json:"text"`
	Language string `json:"language"`
}

type speechAudio struct {
	UtteranceID string `json:"utterance_id"`
	Locale      string `json:"locale"`
	Audio       []byte `json:"audio"`
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow connections from any origin
	},
}

func NewGestureSession(conn *websocket.Conn, learnerID string, deps SessionDeps) *GestureSession {
	if deps.Clock == nil {
		deps.Clock = utils.RealClock{}
	}
	if deps.HeartbeatInterval <= 0 {
		deps.HeartbeatInterval = DefaultHeartbeatInterval
	}
	if learnerID == "" {
		learnerID = anonymousLearner
	}

	id := uuid.New().String()
	ctx, cancel := context.WithCancel(context.Background())
	logger := zap.L().With(zap.String("session_id", id))

	s := &GestureSession{
		ID:         id,
		LearnerID:  learnerID,
		Logger:     logger,
		StartTime:  time.Now(),
		ctx:        ctx,
		cancel:     cancel,
		connection: conn,
		heartbeat:  deps.HeartbeatInterval,
		Frames:     utils.NewFrameSource(deps.FrameMaxAge, deps.Clock),
	}

	var driver SpeechDriver
	if deps.Speech != nil {
		driver = deps.Speech(s.deliverAudio)
	}
	s.Narrator = NewNarrator(driver, logger.Named("narrator"))

	var source SnapshotSource = s.Frames
	if deps.Snapshots != nil {
		source = deps.Snapshots(s.Frames)
	}
	if deps.Progress != nil {
		s.progress = deps.Progress(learnerID)
	}

	notifier := NotifierFunc(s.sendWebSocketMessage)
	s.Translate = NewTranslateHandler(TranslateHandlerOptions{
		Source:      source,
		Recognizer:  deps.Recognizer,
		Refiner:     deps.Refiner,
		Narrator:    s.Narrator,
		Notifier:    notifier,
		Runner:      deps.Runner,
		Clock:       deps.Clock,
		Logger:      logger.Named("live"),
		Interval:    deps.LiveInterval,
		HistorySize: deps.HistorySize,
	})
	s.Practice = NewPracticeHandler(PracticeHandlerOptions{
		Source:     source,
		Recognizer: deps.Recognizer,
		Progress:   s.progress,
		Narrator:   s.Narrator,
		Notifier:   notifier,
		Runner:     deps.Runner,
		Clock:      deps.Clock,
		Logger:     logger.Named("practice"),
		Interval:   deps.PracticeInterval,
	})
	return s
}

// Stop tears the session down: loops halted, in-flight calls abandoned,
// narrator silenced, connection closed.
func (s *GestureSession) Stop() {
	s.stopOnce.Do(func() {
		s.Logger.Info("Stopping session")
		s.cancel()
		s.Translate.Close()
		s.Practice.Close()
		s.Narrator.Close()

		s.writeMu.Lock()
		s.closed = true
		s.writeMu.Unlock()

		if s.connection != nil {
			s.connection.Close()
		}
	})
}

// HealthCheckHandler answers liveness probes.
func HealthCheckHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "OK"})
}

func HandleGestureSession(w http.ResponseWriter, r *http.Request, deps SessionDeps) {
	// Upgrade HTTP connection to WebSocket
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		zap.L().Error("Failed to upgrade to websocket", zap.Error(err))
		return
	}

	session := NewGestureSession(conn, r.URL.Query().Get("learner"), deps)
	session.Logger.Info("New gesture session started", zap.String("learner", session.LearnerID))

	go session.heartbeatLoop()
	session.listenWebsocketMessages()

	session.Logger.Info("Gesture session ended", zap.Duration("uptime", time.Since(session.StartTime)))
	session.Stop()
}

func (s *GestureSession) heartbeatLoop() {
	ticker := time.NewTicker(s.heartbeat)
	defer ticker.Stop()
	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.Logger.Debug("Session heartbeat")
			s.sendWebSocketMessage("heartbeat", map[string]interface{}{
				"session_id": s.ID,
				"uptime":     time.Since(s.StartTime).String(),
			})
		}
	}
}

func (s *GestureSession) listenWebsocketMessages() {
	for {
		var msg inboundMessage
		if err := s.connection.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				s.Logger.Error("WebSocket error", zap.Error(err))
			}
			return
		}

		if err := s.dispatch(msg); err != nil {
			if errors.Is(err, errStopRequested) {
				return
			}
			s.Logger.Warn("Rejected client message", zap.String("type", msg.Type), zap.Error(err))
			s.sendWebSocketMessage("error", map[string]interface{}{
				"type":    msg.Type,
				"message": err.Error(),
			})
		}
	}
}

var errStopRequested = errors.New("stop requested")

func (s *GestureSession) dispatch(msg inboundMessage) error {
	switch msg.Type {
	case "config":
		return s.handleConfigMessage(msg.Data)
	case "video_data":
		return s.handleVideoData(msg.Data)
	case "camera":
		var d toggleData
		if err := decodeData(msg.Data, &d); err != nil {
			return err
		}
		if !d.On {
			s.Frames.Reset()
		}
		s.Translate.SetCamera(d.On)
	case "language":
		var d SessionConfig
		if err := decodeData(msg.Data, &d); err != nil {
			return err
		}
		lang, err := models.ParseLanguage(d.Language)
		if err != nil {
			return err
		}
		s.Translate.SetLanguage(lang)
	case "tts":
		var d ttsData
		if err := decodeData(msg.Data, &d); err != nil {
			return err
		}
		if d.SpeakEnabled != nil {
			s.Translate.SetSpeakEnabled(*d.SpeakEnabled)
		}
		if d.PanelTTS != nil {
			s.Translate.SetPanelTTS(*d.PanelTTS)
		}
	case "speak":
		var d speakData
		if err := decodeData(msg.Data, &d); err != nil {
			return err
		}
		lang := models.LanguageEnglish
		if d.Language != "" {
			parsed, err := models.ParseLanguage(d.Language)
			if err != nil {
				return err
			}
			lang = parsed
		}
		s.Narrator.Speak(d.Text, lang)
	case "play":
		s.Translate.Play()
	case "play_history":
		var d struct {
			ID string `json:"id"`
		}
		if err := decodeData(msg.Data, &d); err != nil {
			return err
		}
		if !s.Translate.PlayHistory(d.ID) {
			s.Logger.Debug("History entry not played", zap.String("id", d.ID))
		}
	case "practice_start":
		var target models.PracticeTarget
		if err := decodeData(msg.Data, &target); err != nil {
			return err
		}
		if target.Name == "" {
			return fmt.Errorf("practice target needs a name")
		}
		s.Practice.SelectTarget(target)
	case "practice_camera":
		var d toggleData
		if err := decodeData(msg.Data, &d); err != nil {
			return err
		}
		s.Practice.SetCamera(d.On)
	case "practice_describe":
		s.Practice.DescribeTarget()
	case "practice_close":
		s.Practice.End()
	case "progress":
		progress, err := s.Practice.Progress()
		if err != nil {
			return fmt.Errorf("failed to load progress: %w", err)
		}
		s.sendWebSocketMessage(MessageProgress, progress)
	case "ping":
		s.sendWebSocketMessage("pong", nil)
	case "stop":
		s.Logger.Info("Received stop command from client")
		s.sendWebSocketMessage("stop_confirmation", map[string]interface{}{
			"session_id": s.ID,
			"message":    "Session stopped successfully",
		})
		return errStopRequested
	default:
		s.Logger.Warn("Unknown message type", zap.String("type", msg.Type))
	}
	return nil
}

func (s *GestureSession) handleConfigMessage(data json.RawMessage) error {
	var cfg SessionConfig
	if err := decodeData(data, &cfg); err != nil {
		return err
	}

	if cfg.LiveInterval != "" {
		d, err := time.ParseDuration(cfg.LiveInterval)
		if err != nil || d <= 0 {
			return fmt.Errorf("invalid live_interval %q", cfg.LiveInterval)
		}
		s.Translate.SetInterval(d)
		s.Logger.Info("Updated live interval", zap.Duration("interval", d))
	}
	if cfg.PracticeInterval != "" {
		d, err := time.ParseDuration(cfg.PracticeInterval)
		if err != nil || d <= 0 {
			return fmt.Errorf("invalid practice_interval %q", cfg.PracticeInterval)
		}
		s.Practice.SetInterval(d)
		s.Logger.Info("Updated practice interval", zap.Duration("interval", d))
	}
	if cfg.Language != "" {
		lang, err := models.ParseLanguage(cfg.Language)
		if err != nil {
			return err
		}
		s.Translate.SetLanguage(lang)
	}

	s.sendWebSocketMessage("config_updated", map[string]interface{}{
		"live_interval":     s.Translate.scheduler.Period().String(),
		"practice_interval": s.Practice.scheduler.Period().String(),
		"language":          s.Translate.State().Language,
	})
	return nil
}

// handleVideoData accepts a frame either as a bare string or as {"image": ...}.
func (s *GestureSession) handleVideoData(data json.RawMessage) error {
	var encoded string
	if err := json.Unmarshal(data, &encoded); err != nil {
		var frame struct {
			Image string `json:"image"`
		}
		if err := json.Unmarshal(data, &frame); err != nil {
			return fmt.Errorf("invalid video_data payload: %w", err)
		}
		encoded = frame.Image
	}
	return s.Frames.Update(encoded)
}

func decodeData(data json.RawMessage, dest interface{}) error {
	if len(data) == 0 {
		return fmt.Errorf("missing data")
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("failed to decode message data: %w", err)
	}
	return nil
}

// deliverAudio is the speech driver's sink: synthesized audio goes to the
// client for playback.
func (s *GestureSession) deliverAudio(u models.Utterance, audio []byte) error {
	return s.writeMessage(MessageSpeechAudio, speechAudio{
		UtteranceID: u.ID,
		Locale:      u.Locale,
		Audio:       audio,
	})
}

func (s *GestureSession) sendWebSocketMessage(msgType string, data interface{}) {
	if err := s.writeMessage(msgType, data); err != nil {
		s.Logger.Error("Failed to send websocket message", zap.Error(err), zap.String("type", msgType))
	}
}

func (s *GestureSession) writeMessage(msgType string, data interface{}) error {
	msg := WebSocketMessage{
		Type:      msgType,
		Data:      data,
		Timestamp: time.Now(),
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if s.closed {
		return fmt.Errorf("session closed")
	}
	s.connection.SetWriteDeadline(time.Now().Add(writeWait))
	return s.connection.WriteJSON(msg)
}
