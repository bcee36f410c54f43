package utils

import (
	"context"
	"fmt"
	"strconv"

	"github.com/Perceptus-Labs/samvaad-go-sdk/models"
	"github.com/redis/go-redis/v9"
)

const (
	fieldGesturesLearned  = "gestures_learned"
	fieldPracticeSessions = "practice_sessions"
	fieldTotalAttempts    = "total_attempts"
)

// Increments the learned counter without letting it pass ARGV[1].
var incrementCappedScript = redis.NewScript(`
local v = redis.call('HINCRBY', KEYS[1], ARGV[2], 1)
local cap = tonumber(ARGV[1])
if v > cap then
	redis.call('HSET', KEYS[1], ARGV[2], cap)
	v = cap
end
return v
`)

// ProgressStore keeps a learner's practice counters in a Redis hash.
type ProgressStore struct {
	client     *redis.Client
	key        string
	maxLearned int64
}

func NewProgressStore(client *redis.Client, learnerID string) *ProgressStore {
	return &ProgressStore{
		client:     client,
		key:        fmt.Sprintf("samvaad:progress:%s", learnerID),
		maxLearned: models.MaxGesturesLearned,
	}
}

// IncrementLearned bumps the gestures-learned counter, capped at
// models.MaxGesturesLearned, and returns the new value.
func (s *ProgressStore) IncrementLearned(ctx context.Context) (int64, error) {
	v, err := incrementCappedScript.Run(ctx, s.client, []string{s.key}, s.maxLearned, fieldGesturesLearned).Int64()
	if err != nil {
		return 0, fmt.Errorf("failed to increment gestures learned: %w", err)
	}
	return v, nil
}

func (s *ProgressStore) RecordAttempt(ctx context.Context) error {
	if err := s.client.HIncrBy(ctx, s.key, fieldTotalAttempts, 1).Err(); err != nil {
		return fmt.Errorf("failed to record attempt: %w", err)
	}
	return nil
}

func (s *ProgressStore) RecordSession(ctx context.Context) error {
	if err := s.client.HIncrBy(ctx, s.key, fieldPracticeSessions, 1).Err(); err != nil {
		return fmt.Errorf("failed to record practice session: %w", err)
	}
	return nil
}

func (s *ProgressStore) Load(ctx context.Context) (models.Progress, error) {
	fields, err := s.client.HGetAll(ctx, s.key).Result()
	if err != nil {
		return models.Progress{}, fmt.Errorf("failed to load progress: %w", err)
	}

	var progress models.Progress
	for name, dest := range map[string]*int64{
		fieldGesturesLearned:  &progress.GesturesLearned,
		fieldPracticeSessions: &progress.PracticeSessions,
		fieldTotalAttempts:    &progress.TotalAttempts,
	} {
		raw, ok := fields[name]
		if !ok {
			continue
		}
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return models.Progress{}, fmt.Errorf("corrupt progress field %s: %w", name, err)
		}
		*dest = v
	}
	return progress, nil
}
