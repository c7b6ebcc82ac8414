package tracking

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/pashagolub/pgxmock/v3"
)

func TestLocationHandlerCreates(t *testing.T) {
	svc, mock, _ := newTestService(t)
	now := time.Now().UTC().Truncate(time.Second)

	mock.ExpectQuery(`SELECT .+ FROM geo_sessions\s+WHERE owner_id`).
		WithArgs(int64(1), int64(2), int64(3)).
		WillReturnRows(pgxmock.NewRows(sessionCols))
	// Timestamps cross a JSON round trip here, so match them loosely.
	mock.ExpectQuery(`INSERT INTO geo_sessions`).
		WithArgs(pgxmock.AnyArg(), int64(1), int64(2), int64(3), "PRIV", "-",
			pgxmock.AnyArg(), 45.2393, 19.8412).
		WillReturnRows(pgxmock.NewRows(sessionCols).
			AddRow("sess-new", int64(1), int64(2), int64(3), "PRIV", "-", now,
				0.0, 0.0, now, 45.2393, 19.8412, 1, 1))
	mock.ExpectExec(`INSERT INTO geo_points`).
		WithArgs("sess-new", int64(1), 45.2393, 19.8412, pgxmock.AnyArg(), 1).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	app := fiber.New()
	RegisterRoutes(app, svc)

	body, _ := json.Marshal(Event{
		OwnerID: 1, ChatID: 2, MsgID: 3, Lat: 45.2393, Lon: 19.8412, Ts: now,
	})
	req := httptest.NewRequest(http.MethodPost, "/locations", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	if err != nil || resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected created, got %v (%v)", resp.StatusCode, err)
	}
}

func TestLocationHandlerMissingIDs(t *testing.T) {
	svc, _, _ := newTestService(t)
	app := fiber.New()
	RegisterRoutes(app, svc)

	req := httptest.NewRequest(http.MethodPost, "/locations", bytes.NewReader([]byte(`{"lat":45.0,"lon":19.0}`)))
	req.Header.Set("Content-Type", "application/json")
	resp, _ := app.Test(req)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected bad request, got %v", resp.StatusCode)
	}
}

func TestLocationHandlerBadBody(t *testing.T) {
	svc, _, _ := newTestService(t)
	app := fiber.New()
	RegisterRoutes(app, svc)

	req := httptest.NewRequest(http.MethodPost, "/locations", bytes.NewReader([]byte("{")))
	req.Header.Set("Content-Type", "application/json")
	resp, _ := app.Test(req)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected bad request, got %v", resp.StatusCode)
	}
}

func TestLocationHandlerMalformedCoords(t *testing.T) {
	svc, _, _ := newTestService(t)
	app := fiber.New()
	RegisterRoutes(app, svc)

	body, _ := json.Marshal(Event{
		OwnerID: 1, ChatID: 2, MsgID: 3, Lat: 120.0, Lon: 19.0, Ts: time.Now(),
	})
	req := httptest.NewRequest(http.MethodPost, "/locations", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, _ := app.Test(req)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected bad request for out-of-range coords, got %v", resp.StatusCode)
	}
}
