package render

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/denesterov/geolog/internal/session"
	"github.com/denesterov/geolog/internal/track"
)

const defaultPollInterval = 2 * time.Second

// Worker drains the render-job queue in the background: acquire a job,
// reconstruct the track, rasterize it, publish the artifact, mark the job
// done. Duplicate acquisition across replicas just rebuilds the same image.
type Worker struct {
	jobs     *session.Jobs
	tracks   *track.Service
	store    *Artifacts
	interval time.Duration
}

func NewWorker(jobs *session.Jobs, tracks *track.Service, store *Artifacts) *Worker {
	return &Worker{
		jobs:     jobs,
		tracks:   tracks,
		store:    store,
		interval: defaultPollInterval,
	}
}

// Run polls until the context is cancelled.
func (w *Worker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		for {
			processed, err := w.ProcessOne(ctx)
			if err != nil {
				log.Printf("render worker: %v", err)
				break
			}
			if !processed {
				break
			}
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// ProcessOne handles a single pending job. It reports whether a job was
// acquired at all.
func (w *Worker) ProcessOne(ctx context.Context) (bool, error) {
	sessionID, ok, err := w.jobs.Acquire(ctx)
	if err != nil || !ok {
		return false, err
	}

	tr, err := w.tracks.Reconstruct(ctx, sessionID)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) || errors.Is(err, session.ErrTooManyPoints) {
			log.Printf("render %s skipped: %v", sessionID, err)
			return true, w.jobs.Discard(ctx, sessionID)
		}
		// Transient store trouble: park the job back in pending.
		_ = w.jobs.Discard(ctx, sessionID)
		_ = w.jobs.Enqueue(ctx, sessionID)
		return true, err
	}

	img, err := RenderPNG(tr)
	if err != nil {
		if errors.Is(err, ErrTrackTooSmall) {
			log.Printf("render %s skipped: %v", sessionID, err)
			return true, w.jobs.Discard(ctx, sessionID)
		}
		_ = w.jobs.Discard(ctx, sessionID)
		return true, err
	}

	if err := w.store.Save(sessionID, img); err != nil {
		_ = w.jobs.Discard(ctx, sessionID)
		_ = w.jobs.Enqueue(ctx, sessionID)
		return true, err
	}

	if err := w.jobs.Complete(ctx, sessionID); err != nil {
		return true, err
	}
	log.Printf("render %s done. points=%d", sessionID, tr.Info.TotalPoints)
	return true, nil
}
