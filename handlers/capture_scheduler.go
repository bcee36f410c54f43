package handlers

import (
	"context"
	"sync"
	"time"

	"github.com/Perceptus-Labs/samvaad-go-sdk/utils"
	"go.uber.org/zap"
)

// CaptureScheduler fires a capture step at a fixed period while enabled.
// It does not wait for the previous step's network call to finish; callers
// that care about overlap guard against it themselves.
type CaptureScheduler struct {
	name   string
	clock  utils.Clock
	step   func()
	logger *zap.Logger

	mu         sync.Mutex
	period     time.Duration
	timer      utils.Timer
	running    bool
	generation uint64
}

func NewCaptureScheduler(name string, clock utils.Clock, period time.Duration, step func(), logger *zap.Logger) *CaptureScheduler {
	return &CaptureScheduler{
		name:   name,
		clock:  clock,
		step:   step,
		period: period,
		logger: logger.With(zap.String("loop", name)),
	}
}

// Start arms the first tick one period from now. Starting a running
// scheduler is a no-op.
func (s *CaptureScheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.running = true
	s.generation++
	s.armLocked(s.generation)
	s.logger.Debug("Capture loop started", zap.Duration("period", s.period))
}

// Stop releases the pending timer. Safe to call any number of times.
func (s *CaptureScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	s.running = false
	s.generation++
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.logger.Debug("Capture loop stopped")
}

func (s *CaptureScheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// SetPeriod changes the cadence, taking effect from the next tick.
func (s *CaptureScheduler) SetPeriod(period time.Duration) {
	if period <= 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.period = period
	if s.running {
		s.timer.Stop()
		s.generation++
		s.armLocked(s.generation)
	}
}

func (s *CaptureScheduler) Period() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.period
}

// Run drives the scheduler until ctx is done.
func (s *CaptureScheduler) Run(ctx context.Context) {
	s.Start()
	defer s.Stop()
	<-ctx.Done()
}

func (s *CaptureScheduler) armLocked(gen uint64) {
	s.timer = s.clock.AfterFunc(s.period, func() { s.fire(gen) })
}

func (s *CaptureScheduler) fire(gen uint64) {
	s.mu.Lock()
	if !s.running || gen != s.generation {
		s.mu.Unlock()
		return
	}
	// Re-arm before stepping so a slow step cannot stretch the cadence.
	s.armLocked(gen)
	s.mu.Unlock()

	s.runStep()
}

func (s *CaptureScheduler) runStep() {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Capture step panicked", zap.Any("panic", r))
		}
	}()
	s.step()
}
