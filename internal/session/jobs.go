package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const (
	jobsPendingKey = "render:pending"
	jobsWipKey     = "render:wip"
	jobsDoneKey    = "render:done"
)

// Jobs is the deferred map-render queue. Jobs move through three Redis
// sets: pending, in-progress, done. SPOP makes acquisition atomic per
// member; the pop-then-mark pair is not one transaction, so a crash
// between the two loses the in-progress marker and the job is simply
// re-enqueued on the next final fix. Rendering is idempotent, so
// at-least-once execution is fine.
type Jobs struct {
	rdb *redis.Client
}

func NewJobs(rdb *redis.Client) *Jobs {
	return &Jobs{rdb: rdb}
}

// Enqueue registers a session for rendering.
func (j *Jobs) Enqueue(ctx context.Context, sessionID string) error {
	if err := j.rdb.SAdd(ctx, jobsPendingKey, sessionID).Err(); err != nil {
		return fmt.Errorf("enqueue render job: %w", err)
	}
	return nil
}

// Acquire pops one pending job and marks it in-progress. ok is false when
// the queue is empty.
func (j *Jobs) Acquire(ctx context.Context) (sessionID string, ok bool, err error) {
	id, err := j.rdb.SPop(ctx, jobsPendingKey).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("acquire render job: %w", err)
	}
	if err := j.rdb.SAdd(ctx, jobsWipKey, id).Err(); err != nil {
		return "", false, fmt.Errorf("mark render job: %w", err)
	}
	return id, true, nil
}

// Complete moves a job from in-progress to done.
func (j *Jobs) Complete(ctx context.Context, sessionID string) error {
	if err := j.rdb.SRem(ctx, jobsWipKey, sessionID).Err(); err != nil {
		return fmt.Errorf("complete render job: %w", err)
	}
	if err := j.rdb.SAdd(ctx, jobsDoneKey, sessionID).Err(); err != nil {
		return fmt.Errorf("complete render job: %w", err)
	}
	return nil
}

// Discard drops an in-progress job without marking it done. Used when a
// track turns out to be too small to render; Ready stays false for it.
func (j *Jobs) Discard(ctx context.Context, sessionID string) error {
	if err := j.rdb.SRem(ctx, jobsWipKey, sessionID).Err(); err != nil {
		return fmt.Errorf("discard render job: %w", err)
	}
	return nil
}

// Ready reports whether a rendered artifact exists for the session.
func (j *Jobs) Ready(ctx context.Context, sessionID string) (bool, error) {
	ok, err := j.rdb.SIsMember(ctx, jobsDoneKey, sessionID).Result()
	if err != nil {
		return false, fmt.Errorf("render ready: %w", err)
	}
	return ok, nil
}
