package tracking

import (
	"errors"
	"fmt"
	"time"

	"github.com/denesterov/geolog/internal/config"
	"github.com/denesterov/geolog/internal/session"
	"github.com/denesterov/geolog/internal/shared/geo"
)

var (
	// ErrMalformedFix marks input the engine refuses to evaluate. The fix
	// is dropped without touching session state; redelivery is the
	// transport's call.
	ErrMalformedFix = errors.New("malformed fix")

	// ErrBadSession marks a session record that fails integrity checks.
	// Fabricating defaults here would corrupt cumulative totals.
	ErrBadSession = errors.New("session integrity violation")
)

// Fix is one raw location sample.
type Fix struct {
	Lat float64
	Lon float64
	Ts  time.Time
}

// Decision is the outcome of evaluating one fix: whether to persist it as a
// track point, and the session field diff to write back.
type Decision struct {
	StorePoint bool
	Update     session.Update
}

// Thresholds tune the movement filter.
type Thresholds struct {
	// MinGeoDelta is the smallest displacement in meters counted as real
	// movement; anything below is GPS jitter.
	MinGeoDelta float64
	// MaxSpeed in m/s; a faster apparent move is a sensor error.
	MaxSpeed float64
	// AfterPauseTime in seconds; an idle stretch longer than this breaks
	// the track into a new segment.
	AfterPauseTime float64
}

func ThresholdsFromConfig(cfg config.Config) Thresholds {
	return Thresholds{
		MinGeoDelta:    cfg.MinGeoDelta,
		MaxSpeed:       cfg.MaxSpeed,
		AfterPauseTime: cfg.AfterPauseTime,
	}
}

// Engine decides, fix by fix, what is movement, what is jitter and what is
// a bad reading. It holds no state of its own; everything lives in the
// Session record.
type Engine struct {
	thr Thresholds
}

func NewEngine(thr Thresholds) *Engine {
	return &Engine{thr: thr}
}

// Evaluate classifies a fix against the session's last reference position.
//
// Three branches, in order:
//  1. idle: displacement below MinGeoDelta. Jitter, no point. A long
//     enough idle stretch closes the segment; the reference position is
//     kept since the fix carries no reliable movement.
//  2. overspeed: implausible velocity. The segment closes and the
//     reference advances to the bad fix so one bad reading does not
//     poison the next delta. No point.
//  3. accepted: the reference advances, totals grow (unless the segment
//     is empty and the delta was measured against a stale pre-break
//     reference), the point is stored.
//
// The session's very first fix never reaches Evaluate; it is accepted
// unconditionally at creation as point 1 of segment 1.
func (e *Engine) Evaluate(sess session.Session, fix Fix) (Decision, error) {
	if !geo.ValidCoord(fix.Lat, fix.Lon) {
		return Decision{}, fmt.Errorf("%w: coords (%v, %v)", ErrMalformedFix, fix.Lat, fix.Lon)
	}
	if fix.Ts.IsZero() {
		return Decision{}, fmt.Errorf("%w: zero timestamp", ErrMalformedFix)
	}
	if err := checkSession(sess); err != nil {
		return Decision{}, err
	}
	if fix.Ts.Before(sess.LastUpdate) {
		return Decision{}, fmt.Errorf("%w: timestamp %s before session reference %s",
			ErrMalformedFix, fix.Ts.Format(time.RFC3339), sess.LastUpdate.Format(time.RFC3339))
	}

	delta := geo.DistanceMeters(sess.LastLat, sess.LastLon, fix.Lat, fix.Lon)
	period := fix.Ts.Sub(sess.LastUpdate).Seconds()
	velocity := 0.0
	if period > 0.1 {
		velocity = delta / period
	}

	var upd session.Update
	switch {
	case delta < e.thr.MinGeoDelta:
		if period > e.thr.AfterPauseTime {
			closeSegment(sess, &upd)
			ts := fix.Ts
			upd.LastUpdate = &ts
		}
		return Decision{StorePoint: false, Update: upd}, nil

	case velocity > e.thr.MaxSpeed:
		closeSegment(sess, &upd)
		advanceReference(fix, &upd)
		return Decision{StorePoint: false, Update: upd}, nil

	default:
		advanceReference(fix, &upd)
		if sess.SegmentPoints > 0 {
			length := sess.LengthM + delta
			duration := sess.DurationS + period
			upd.LengthM = &length
			upd.DurationS = &duration
		}
		points := sess.SegmentPoints + 1
		upd.SegmentPoints = &points
		return Decision{StorePoint: true, Update: upd}, nil
	}
}

// closeSegment advances the segment counter. An empty segment has nothing
// to close; segment indices are never reused.
func closeSegment(sess session.Session, upd *session.Update) {
	if sess.SegmentPoints == 0 {
		return
	}
	idx := sess.SegmentIdx + 1
	points := 0
	upd.SegmentIdx = &idx
	upd.SegmentPoints = &points
}

func advanceReference(fix Fix, upd *session.Update) {
	lat, lon, ts := fix.Lat, fix.Lon, fix.Ts
	upd.LastLat = &lat
	upd.LastLon = &lon
	upd.LastUpdate = &ts
}

func checkSession(sess session.Session) error {
	if sess.ID == "" {
		return fmt.Errorf("%w: empty session key", ErrBadSession)
	}
	if sess.SegmentIdx < 1 {
		return fmt.Errorf("%w: segment index %d", ErrBadSession, sess.SegmentIdx)
	}
	if sess.LastUpdate.IsZero() {
		return fmt.Errorf("%w: missing reference timestamp", ErrBadSession)
	}
	if !geo.ValidCoord(sess.LastLat, sess.LastLon) {
		return fmt.Errorf("%w: reference coords (%v, %v)", ErrBadSession, sess.LastLat, sess.LastLon)
	}
	return nil
}
