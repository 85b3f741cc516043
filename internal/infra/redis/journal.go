package redis

import (
	"context"
	"strconv"
	"time"

	"exam-attempt-service/internal/attempt"
	"github.com/redis/go-redis/v9"
)

// remainingField holds the countdown next to the answers; question ids are numeric.
const remainingField = "remaining"

// Journal mirrors answers and the countdown into a hash per attempt so a
// reconnecting test-taker, possibly on another instance, resumes with them.
// Layout: HSET attempt:{key}:progress {questionID} {answer} remaining {seconds}
type Journal struct {
	client *redis.Client
	ttl    time.Duration
}

func NewJournal(client *redis.Client, ttl time.Duration) *Journal {
	return &Journal{client: client, ttl: ttl}
}

func (j *Journal) Restore(ctx context.Context, key string) (attempt.Progress, error) {
	raw, err := j.client.HGetAll(ctx, j.hashKey(key)).Result()
	if err != nil {
		return attempt.Progress{}, err
	}
	progress := attempt.Progress{Answers: make(map[int64]string, len(raw))}
	for field, value := range raw {
		if field == remainingField {
			if seconds, err := strconv.Atoi(value); err == nil {
				progress.Remaining = seconds
				progress.TimerSaved = true
			}
			continue
		}
		id, err := strconv.ParseInt(field, 10, 64)
		if err != nil {
			continue
		}
		progress.Answers[id] = value
	}
	return progress, nil
}

func (j *Journal) Record(ctx context.Context, key string, questionID int64, answer string) error {
	return j.set(ctx, key, strconv.FormatInt(questionID, 10), answer)
}

func (j *Journal) RecordRemaining(ctx context.Context, key string, seconds int) error {
	return j.set(ctx, key, remainingField, strconv.Itoa(seconds))
}

func (j *Journal) Clear(ctx context.Context, key string) error {
	return j.client.Del(ctx, j.hashKey(key)).Err()
}

func (j *Journal) set(ctx context.Context, key, field, value string) error {
	hashKey := j.hashKey(key)
	pipe := j.client.TxPipeline()
	pipe.HSet(ctx, hashKey, field, value)
	if j.ttl > 0 {
		pipe.Expire(ctx, hashKey, j.ttl)
	}
	_, err := pipe.Exec(ctx)
	return err
}

func (j *Journal) hashKey(key string) string {
	return "attempt:" + key + ":progress"
}
