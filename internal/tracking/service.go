package tracking

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/denesterov/geolog/internal/session"
	"github.com/denesterov/geolog/internal/shared/geo"
)

// Event is one inbound fix from the chat transport.
type Event struct {
	OwnerID   int64     `json:"owner_id"`
	ChatID    int64     `json:"chat_id"`
	MsgID     int64     `json:"msg_id"`
	ChatKind  string    `json:"chat_kind"`
	ChatLabel string    `json:"chat_label"`
	Lat       float64   `json:"lat"`
	Lon       float64   `json:"lon"`
	Ts        time.Time `json:"ts"`
	Final     bool      `json:"final"`
}

// Result reports what one fix did to its session.
type Result struct {
	Session     session.Session `json:"session"`
	Created     bool            `json:"created"`
	PointStored bool            `json:"point_stored"`
}

// Service drives the per-fix cycle: resolve the session, run the filter,
// persist the diff and the point, enqueue a render job on the final fix.
type Service struct {
	store  *session.Store
	jobs   *session.Jobs
	engine *Engine
}

func NewService(store *session.Store, jobs *session.Jobs, engine *Engine) *Service {
	return &Service{store: store, jobs: jobs, engine: engine}
}

// HandleFix processes one location event end to end. The first fix of a
// triple creates the session and is stored unconditionally; every later
// fix goes through the engine.
func (s *Service) HandleFix(ctx context.Context, ev Event) (Result, error) {
	if !geo.ValidCoord(ev.Lat, ev.Lon) {
		return Result{}, fmt.Errorf("%w: coords (%v, %v)", ErrMalformedFix, ev.Lat, ev.Lon)
	}
	if ev.Ts.IsZero() {
		return Result{}, fmt.Errorf("%w: zero timestamp", ErrMalformedFix)
	}

	chatKind := ev.ChatKind
	if chatKind == "" {
		chatKind = session.ChatKindPrivate
	}
	chatLabel := ev.ChatLabel
	if chatLabel == "" {
		chatLabel = "-"
	}

	sess, created, err := s.store.ResolveOrCreate(ctx,
		ev.OwnerID, ev.ChatID, ev.MsgID, chatKind, chatLabel, ev.Lat, ev.Lon, ev.Ts)
	if err != nil {
		return Result{}, err
	}

	stored := false
	if created {
		err = s.store.AppendPoint(ctx, session.Point{
			SessionID:  sess.ID,
			OwnerID:    ev.OwnerID,
			Lat:        ev.Lat,
			Lon:        ev.Lon,
			Ts:         ev.Ts,
			SegmentIdx: sess.SegmentIdx,
		})
		if err != nil {
			return Result{}, err
		}
		stored = true
	} else {
		decision, err := s.engine.Evaluate(sess, Fix{Lat: ev.Lat, Lon: ev.Lon, Ts: ev.Ts})
		if err != nil {
			return Result{}, err
		}
		if err := s.store.ApplyUpdate(ctx, sess.ID, decision.Update); err != nil {
			return Result{}, err
		}
		if decision.StorePoint {
			err = s.store.AppendPoint(ctx, session.Point{
				SessionID:  sess.ID,
				OwnerID:    ev.OwnerID,
				Lat:        ev.Lat,
				Lon:        ev.Lon,
				Ts:         ev.Ts,
				SegmentIdx: sess.SegmentIdx,
			})
			if err != nil {
				return Result{}, err
			}
			stored = true
		}
		decision.Update.Apply(&sess)
	}

	if ev.Final {
		if s.jobs != nil {
			if err := s.jobs.Enqueue(ctx, sess.ID); err != nil {
				// Rendering is best effort; the fix itself is safe.
				log.Printf("enqueue render for %s failed: %v", sess.ID, err)
			}
		}
	}

	return Result{Session: sess, Created: created, PointStored: stored}, nil
}
