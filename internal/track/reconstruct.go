package track

import (
	"context"
	"sort"
	"time"

	"github.com/denesterov/geolog/internal/session"
)

// Info is the aggregate view of a recorded track.
type Info struct {
	LengthM     float64   `json:"length_m"`
	DurationS   float64   `json:"duration_s"`
	StartedAt   time.Time `json:"started_at"`
	TotalPoints int       `json:"total_points"`
}

// Track is the reconstructed, export-ready representation: segments in
// creation order, points in time order within each segment.
type Track struct {
	Info     Info              `json:"info"`
	Segments [][]session.Point `json:"segments"`
}

// Service is the read side: it never mutates anything and is safe to run
// concurrently with ongoing writes to the same session. A point landing
// mid-read simply shows up next time.
type Service struct {
	store *session.Store
}

func NewService(store *session.Store) *Service {
	return &Service{store: store}
}

// Reconstruct fetches a session's full point set and rebuilds the ordered
// segment structure.
func (s *Service) Reconstruct(ctx context.Context, sessionID string) (Track, error) {
	sess, err := s.store.Get(ctx, sessionID)
	if err != nil {
		return Track{}, err
	}

	points, err := s.store.ListPoints(ctx, sessionID)
	if err != nil {
		return Track{}, err
	}

	bySegment := make(map[int][]session.Point)
	for _, p := range points {
		bySegment[p.SegmentIdx] = append(bySegment[p.SegmentIdx], p)
	}

	indices := make([]int, 0, len(bySegment))
	for idx := range bySegment {
		indices = append(indices, idx)
	}
	sort.Ints(indices)

	segments := make([][]session.Point, 0, len(indices))
	for _, idx := range indices {
		seg := bySegment[idx]
		sort.Slice(seg, func(i, j int) bool { return seg[i].Ts.Before(seg[j].Ts) })
		segments = append(segments, seg)
	}

	return Track{
		Info: Info{
			LengthM:     sess.LengthM,
			DurationS:   sess.DurationS,
			StartedAt:   sess.StartedAt,
			TotalPoints: len(points),
		},
		Segments: segments,
	}, nil
}

// List pages through an owner's sessions for the menu surface.
func (s *Service) List(ctx context.Context, ownerID int64, offset, pageSize int, countPoints bool) ([]session.ListEntry, int, error) {
	return s.store.ListSessions(ctx, ownerID, offset, pageSize, countPoints)
}
