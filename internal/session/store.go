package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/denesterov/geolog/internal/db"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

var (
	// ErrNotFound is returned when a session key resolves to nothing.
	ErrNotFound = errors.New("session not found")

	// ErrTooManyPoints guards reconstruction against unbounded sessions.
	ErrTooManyPoints = errors.New("session exceeds point limit")
)

const (
	pointsPageSize = 100
	maxTrackPoints = 10000
)

// Store persists sessions and points in Postgres. It is the only mutation
// path for session state.
type Store struct {
	db db.Querier
}

func NewStore(q db.Querier) *Store {
	return &Store{db: q}
}

const sessionColumns = `id, owner_id, chat_id, msg_id, chat_kind, chat_label, started_at,
		length_m, duration_s, last_update, last_lat, last_lon, segment_idx, segment_points`

func scanSession(row pgx.Row) (Session, error) {
	var s Session
	err := row.Scan(&s.ID, &s.OwnerID, &s.ChatID, &s.MsgID, &s.ChatKind, &s.ChatLabel,
		&s.StartedAt, &s.LengthM, &s.DurationS, &s.LastUpdate, &s.LastLat, &s.LastLon,
		&s.SegmentIdx, &s.SegmentPoints)
	return s, err
}

// ResolveOrCreate returns the session for the (owner, chat, msg) triple,
// creating it from the first fix when none exists. The unique constraint on
// the triple makes concurrent creation race-safe: the loser of the insert
// re-reads the winner's row. A freshly created session already counts the
// first fix as point 1 of segment 1; the caller appends that point.
func (s *Store) ResolveOrCreate(ctx context.Context, ownerID, chatID, msgID int64, chatKind, chatLabel string, lat, lon float64, ts time.Time) (Session, bool, error) {
	sess, err := s.lookupByTriple(ctx, ownerID, chatID, msgID)
	if err == nil {
		return sess, false, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return Session{}, false, fmt.Errorf("resolve session: %w", err)
	}

	id := uuid.NewString()
	row := s.db.QueryRow(ctx, `
		INSERT INTO geo_sessions (id, owner_id, chat_id, msg_id, chat_kind, chat_label,
			started_at, length_m, duration_s, last_update, last_lat, last_lon, segment_idx, segment_points)
		VALUES ($1,$2,$3,$4,$5,$6,$7,0,0,$7,$8,$9,1,1)
		ON CONFLICT (owner_id, chat_id, msg_id) DO NOTHING
		RETURNING `+sessionColumns+`
	`, id, ownerID, chatID, msgID, chatKind, chatLabel, ts, lat, lon)

	sess, err = scanSession(row)
	if err == nil {
		log.Printf("session created. id=%s owner=%d chat=%d msg=%d", sess.ID, ownerID, chatID, msgID)
		return sess, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return Session{}, false, fmt.Errorf("create session: %w", err)
	}

	// Lost the insert race; the other writer's row must exist now.
	sess, err = s.lookupByTriple(ctx, ownerID, chatID, msgID)
	if err != nil {
		return Session{}, false, fmt.Errorf("resolve session after conflict: %w", err)
	}
	return sess, false, nil
}

func (s *Store) lookupByTriple(ctx context.Context, ownerID, chatID, msgID int64) (Session, error) {
	row := s.db.QueryRow(ctx, `
		SELECT `+sessionColumns+`
		FROM geo_sessions
		WHERE owner_id = $1 AND chat_id = $2 AND msg_id = $3
	`, ownerID, chatID, msgID)
	return scanSession(row)
}

// Get fetches a session by key.
func (s *Store) Get(ctx context.Context, id string) (Session, error) {
	row := s.db.QueryRow(ctx, `
		SELECT `+sessionColumns+`
		FROM geo_sessions
		WHERE id = $1
	`, id)
	sess, err := scanSession(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Session{}, ErrNotFound
	}
	if err != nil {
		return Session{}, fmt.Errorf("get session: %w", err)
	}
	return sess, nil
}

// ApplyUpdate writes a partial update of mutable session fields. An empty
// update is a no-op.
func (s *Store) ApplyUpdate(ctx context.Context, id string, u Update) error {
	if u.IsEmpty() {
		return nil
	}

	sets := make([]string, 0, 7)
	args := make([]any, 0, 8)
	add := func(col string, v any) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}
	if u.LengthM != nil {
		add("length_m", *u.LengthM)
	}
	if u.DurationS != nil {
		add("duration_s", *u.DurationS)
	}
	if u.LastUpdate != nil {
		add("last_update", *u.LastUpdate)
	}
	if u.LastLat != nil {
		add("last_lat", *u.LastLat)
	}
	if u.LastLon != nil {
		add("last_lon", *u.LastLon)
	}
	if u.SegmentIdx != nil {
		add("segment_idx", *u.SegmentIdx)
	}
	if u.SegmentPoints != nil {
		add("segment_points", *u.SegmentPoints)
	}
	args = append(args, id)

	query := fmt.Sprintf("UPDATE geo_sessions SET %s WHERE id = $%d",
		strings.Join(sets, ", "), len(args))
	tag, err := s.db.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// AppendPoint persists one accepted fix.
func (s *Store) AppendPoint(ctx context.Context, p Point) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO geo_points (session_id, owner_id, lat, lon, ts, segment_idx)
		VALUES ($1,$2,$3,$4,$5,$6)
	`, p.SessionID, p.OwnerID, p.Lat, p.Lon, p.Ts, p.SegmentIdx)
	if err != nil {
		return fmt.Errorf("append point: %w", err)
	}
	return nil
}

// ListSessions pages through an owner's sessions, newest first. Point
// counting costs one extra query per row and is optional.
func (s *Store) ListSessions(ctx context.Context, ownerID int64, offset, pageSize int, countPoints bool) ([]ListEntry, int, error) {
	var total int
	if err := s.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM geo_sessions WHERE owner_id = $1`, ownerID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count sessions: %w", err)
	}

	rows, err := s.db.Query(ctx, `
		SELECT id, started_at, chat_label, length_m, duration_s
		FROM geo_sessions
		WHERE owner_id = $1
		ORDER BY started_at DESC
		LIMIT $2 OFFSET $3
	`, ownerID, pageSize, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var entries []ListEntry
	for rows.Next() {
		var e ListEntry
		if err := rows.Scan(&e.ID, &e.StartedAt, &e.ChatLabel, &e.LengthM, &e.DurationS); err != nil {
			return nil, 0, fmt.Errorf("scan session: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("list sessions: %w", err)
	}

	if countPoints {
		for i := range entries {
			if err := s.db.QueryRow(ctx,
				`SELECT COUNT(*) FROM geo_points WHERE session_id = $1`, entries[i].ID).Scan(&entries[i].Points); err != nil {
				return nil, 0, fmt.Errorf("count points: %w", err)
			}
		}
	}
	return entries, total, nil
}

// ListPoints returns every point of a session ordered by timestamp. It pages
// internally so callers always see the complete track, and errors out past
// maxTrackPoints rather than chase a runaway session.
func (s *Store) ListPoints(ctx context.Context, sessionID string) ([]Point, error) {
	var points []Point
	for offset := 0; ; offset += pointsPageSize {
		page, err := s.listPointsPage(ctx, sessionID, offset)
		if err != nil {
			return nil, err
		}
		points = append(points, page...)
		if len(points) > maxTrackPoints {
			return nil, ErrTooManyPoints
		}
		if len(page) < pointsPageSize {
			return points, nil
		}
	}
}

func (s *Store) listPointsPage(ctx context.Context, sessionID string, offset int) ([]Point, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, session_id, owner_id, lat, lon, ts, segment_idx
		FROM geo_points
		WHERE session_id = $1
		ORDER BY ts
		LIMIT $2 OFFSET $3
	`, sessionID, pointsPageSize, offset)
	if err != nil {
		return nil, fmt.Errorf("list points: %w", err)
	}
	defer rows.Close()

	var page []Point
	for rows.Next() {
		var p Point
		if err := rows.Scan(&p.ID, &p.SessionID, &p.OwnerID, &p.Lat, &p.Lon, &p.Ts, &p.SegmentIdx); err != nil {
			return nil, fmt.Errorf("scan point: %w", err)
		}
		page = append(page, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list points: %w", err)
	}
	return page, nil
}
