package tracking

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/denesterov/geolog/internal/session"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/redis/go-redis/v9"
)

var sessionCols = []string{
	"id", "owner_id", "chat_id", "msg_id", "chat_kind", "chat_label", "started_at",
	"length_m", "duration_s", "last_update", "last_lat", "last_lon", "segment_idx", "segment_points",
}

func newTestService(t *testing.T) (*Service, pgxmock.PgxPoolIface, *miniredis.Miniredis) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	t.Cleanup(mock.Close)

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	svc := NewService(session.NewStore(mock), session.NewJobs(rdb), testEngine())
	return svc, mock, mr
}

func TestHandleFixCreatesSession(t *testing.T) {
	svc, mock, _ := newTestService(t)
	now := time.Now().UTC().Truncate(time.Second)

	mock.ExpectQuery(`SELECT .+ FROM geo_sessions\s+WHERE owner_id`).
		WithArgs(int64(100500), int64(100600), int64(100800)).
		WillReturnRows(pgxmock.NewRows(sessionCols))

	mock.ExpectQuery(`INSERT INTO geo_sessions`).
		WithArgs(pgxmock.AnyArg(), int64(100500), int64(100600), int64(100800),
			session.ChatKindPublic, "EUC Tusovka", now, 45.2393, 19.8412).
		WillReturnRows(pgxmock.NewRows(sessionCols).
			AddRow("sess-new", int64(100500), int64(100600), int64(100800),
				session.ChatKindPublic, "EUC Tusovka", now, 0.0, 0.0, now, 45.2393, 19.8412, 1, 1))

	mock.ExpectExec(`INSERT INTO geo_points`).
		WithArgs("sess-new", int64(100500), 45.2393, 19.8412, now, 1).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	result, err := svc.HandleFix(context.Background(), Event{
		OwnerID:   100500,
		ChatID:    100600,
		MsgID:     100800,
		ChatKind:  session.ChatKindPublic,
		ChatLabel: "EUC Tusovka",
		Lat:       45.2393,
		Lon:       19.8412,
		Ts:        now,
	})
	if err != nil {
		t.Fatalf("handle fix: %v", err)
	}
	if !result.Created || !result.PointStored {
		t.Fatalf("first fix must create the session and store its point: %+v", result)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestHandleFixAcceptedMovement(t *testing.T) {
	svc, mock, _ := newTestService(t)
	start := time.Now().UTC().Truncate(time.Second)
	next := start.Add(30 * time.Second)

	mock.ExpectQuery(`SELECT .+ FROM geo_sessions\s+WHERE owner_id`).
		WithArgs(int64(100500), int64(100600), int64(100800)).
		WillReturnRows(pgxmock.NewRows(sessionCols).
			AddRow("sess-1", int64(100500), int64(100600), int64(100800),
				session.ChatKindPublic, "EUC Tusovka", start, 0.0, 0.0, start, 45.23930, 19.84120, 1, 1))

	// SET order: length_m, duration_s, last_update, last_lat, last_lon,
	// segment_points, then the id. Totals are haversine-derived floats.
	mock.ExpectExec(`UPDATE geo_sessions SET`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), next, 45.24060, 19.84200, 2, "sess-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	mock.ExpectExec(`INSERT INTO geo_points`).
		WithArgs("sess-1", int64(100500), 45.24060, 19.84200, next, 1).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	result, err := svc.HandleFix(context.Background(), Event{
		OwnerID: 100500, ChatID: 100600, MsgID: 100800,
		Lat: 45.24060, Lon: 19.84200, Ts: next,
	})
	if err != nil {
		t.Fatalf("handle fix: %v", err)
	}
	if result.Created {
		t.Fatalf("expected existing session")
	}
	if !result.PointStored {
		t.Fatalf("movement fix must store a point")
	}
	if result.Session.SegmentPoints != 2 {
		t.Fatalf("expected updated in-memory session, got %+v", result.Session)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestHandleFixIdleWritesNothing(t *testing.T) {
	svc, mock, _ := newTestService(t)
	start := time.Now().UTC().Truncate(time.Second)

	mock.ExpectQuery(`SELECT .+ FROM geo_sessions\s+WHERE owner_id`).
		WithArgs(int64(100500), int64(100600), int64(100800)).
		WillReturnRows(pgxmock.NewRows(sessionCols).
			AddRow("sess-1", int64(100500), int64(100600), int64(100800),
				session.ChatKindPublic, "EUC Tusovka", start, 0.0, 0.0, start, 45.23930, 19.84120, 1, 1))

	// Jitter below every threshold: no UPDATE, no INSERT.
	result, err := svc.HandleFix(context.Background(), Event{
		OwnerID: 100500, ChatID: 100600, MsgID: 100800,
		Lat: 45.23932, Lon: 19.84122, Ts: start.Add(30 * time.Second),
	})
	if err != nil {
		t.Fatalf("handle fix: %v", err)
	}
	if result.PointStored {
		t.Fatalf("idle fix must not store a point")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestHandleFixFinalEnqueuesRender(t *testing.T) {
	svc, mock, mr := newTestService(t)
	start := time.Now().UTC().Truncate(time.Second)

	mock.ExpectQuery(`SELECT .+ FROM geo_sessions\s+WHERE owner_id`).
		WithArgs(int64(100500), int64(100600), int64(100800)).
		WillReturnRows(pgxmock.NewRows(sessionCols).
			AddRow("sess-1", int64(100500), int64(100600), int64(100800),
				session.ChatKindPublic, "EUC Tusovka", start, 0.0, 0.0, start, 45.23930, 19.84120, 1, 1))

	result, err := svc.HandleFix(context.Background(), Event{
		OwnerID: 100500, ChatID: 100600, MsgID: 100800,
		Lat: 45.23932, Lon: 19.84122, Ts: start.Add(30 * time.Second),
		Final: true,
	})
	if err != nil {
		t.Fatalf("handle fix: %v", err)
	}
	if result.PointStored {
		t.Fatalf("idle final fix must not store a point")
	}

	members, err := mr.SMembers("render:pending")
	if err != nil || len(members) != 1 || members[0] != "sess-1" {
		t.Fatalf("expected render job for sess-1, got %v (%v)", members, err)
	}
}

func TestHandleFixRejectsMalformed(t *testing.T) {
	svc, mock, _ := newTestService(t)

	_, err := svc.HandleFix(context.Background(), Event{
		OwnerID: 1, ChatID: 2, MsgID: 3,
		Lat: 120.0, Lon: 19.0, Ts: time.Now(),
	})
	if err == nil {
		t.Fatalf("expected malformed fix error")
	}

	_, err = svc.HandleFix(context.Background(), Event{
		OwnerID: 1, ChatID: 2, MsgID: 3, Lat: 45.0, Lon: 19.0,
	})
	if err == nil {
		t.Fatalf("expected zero timestamp error")
	}

	// No store traffic for rejected fixes.
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
