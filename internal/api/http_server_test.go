package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"riad/internal/config"
	"riad/internal/database"
	"riad/internal/domain"
	"riad/internal/events"
	"riad/internal/export"
	"riad/internal/models"
	"riad/internal/pricing"
	"riad/internal/repository"
	"riad/internal/service"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

var fixedNow = time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

type testAPI struct {
	server *HTTPServer
	db     *database.DB
	rooms  map[string]*models.Room
}

func newTestAPI(t *testing.T, cfg config.APIConfig, checks ...ReadinessCheck) *testAPI {
	t.Helper()
	logger := zerolog.New(io.Discard)

	db, err := database.NewDB(":memory:", &logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	ctx := context.Background()
	types := []*models.RoomType{{Name: "Patio Double"}, {Name: "Atlas Suite"}, {Name: "Family Duplex"}}
	rooms := []*models.Room{
		{Number: "101", TypeName: "Patio Double", Capacity: 2, Price: 950000},
		{Number: "201", TypeName: "Atlas Suite", Capacity: 3, Price: 1650000},
		{Number: "301", TypeName: "Family Duplex", Capacity: 4, Price: 2150000},
		{Number: "302", TypeName: "Family Duplex", Capacity: 4, Price: 2150000, StatusCode: models.RoomStatusOutOfService},
	}
	require.NoError(t, db.SyncCatalog(ctx, types, rooms))

	bus := events.NewEventBus()
	calc := pricing.NewCalculator(15, 0)
	ledger := service.NewPaymentLedger(db, bus, &logger)
	policy := service.NewCancellationPolicy(3, 50, models.PenaltyBasisPaid)
	reservations := service.NewReservationService(db, ledger, policy, calc, bus, &logger)
	wizard := service.NewWizardService(repository.NewMemoryWizardStore(), db, calc, reservations, 30*time.Minute, &logger)

	srv := NewHTTPServer(&cfg, Services{
		Wizard:       wizard,
		Reservations: reservations,
		Ledger:       ledger,
		Rooms:        db,
		Exporter:     export.NewExporter(db, t.TempDir(), &logger),
	}, checks, &logger)
	srv.now = func() time.Time { return fixedNow }

	byNumber := make(map[string]*models.Room, len(rooms))
	for _, r := range rooms {
		byNumber[r.Number] = r
	}
	return &testAPI{server: srv, db: db, rooms: byNumber}
}

func openConfig() config.APIConfig {
	return config.APIConfig{Enabled: true, HTTP: config.APIHTTPConfig{Enabled: true}}
}

func authConfig() config.APIConfig {
	cfg := openConfig()
	cfg.Auth = config.APIAuthConfig{
		Enabled:      true,
		HeaderAPIKey: "x-api-key",
		APIKeys: []config.APIClientKey{
			{Key: "desk-key", Name: "front desk", StaffID: 7},
			{Key: "night-key", Name: "night shift", StaffID: 8},
		},
	}
	return cfg
}

func (a *testAPI) do(t *testing.T, method, path string, body any, apiKey string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	if apiKey != "" {
		req.Header.Set("x-api-key", apiKey)
	}
	rec := httptest.NewRecorder()
	a.server.Handler().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

// walkWizard drives a session up to date confirmation for room 201.
func (a *testAPI) walkWizard(t *testing.T, apiKey, checkIn, checkOut string) string {
	t.Helper()
	rec := a.do(t, http.MethodPost, "/api/v1/wizards", nil, apiKey)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	id := decode[models.WizardSession](t, rec).ID

	rec = a.do(t, http.MethodPost, "/api/v1/wizards/"+id+"/identity", map[string]any{"name": "Amina Tazi", "phone": "+212600000000"}, apiKey)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = a.do(t, http.MethodPost, "/api/v1/wizards/"+id+"/guests", map[string]any{"guest_count": 3}, apiKey)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = a.do(t, http.MethodPost, "/api/v1/wizards/"+id+"/room", map[string]any{"room_id": a.rooms["201"].ID}, apiKey)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = a.do(t, http.MethodPost, "/api/v1/wizards/"+id+"/dates", map[string]any{"check_in": checkIn, "check_out": checkOut}, apiKey)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return id
}

func TestHealthz(t *testing.T) {
	a := newTestAPI(t, authConfig())

	rec := a.do(t, http.MethodGet, "/healthz", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(requestIDHeader))
}

func TestReadyz(t *testing.T) {
	a := newTestAPI(t, openConfig(),
		ReadinessCheck{Name: "database", Check: func(context.Context) error { return nil }},
		ReadinessCheck{Name: "redis", Check: func(context.Context) error { return errors.New("connection refused") }},
	)

	rec := a.do(t, http.MethodGet, "/readyz", nil, "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	body := decode[struct {
		Checks map[string]string `json:"checks"`
	}](t, rec)
	assert.Equal(t, "ok", body.Checks["database"])
	assert.Equal(t, "connection refused", body.Checks["redis"])
}

func TestAuth(t *testing.T) {
	a := newTestAPI(t, authConfig())

	t.Run("MissingKey", func(t *testing.T) {
		rec := a.do(t, http.MethodPost, "/api/v1/wizards", nil, "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("InvalidKey", func(t *testing.T) {
		rec := a.do(t, http.MethodPost, "/api/v1/wizards", nil, "wrong")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("ValidKeyBecomesOwner", func(t *testing.T) {
		rec := a.do(t, http.MethodPost, "/api/v1/wizards", nil, "desk-key")
		require.Equal(t, http.StatusCreated, rec.Code)
		session := decode[models.WizardSession](t, rec)
		assert.Equal(t, "staff:7", session.Owner)
		assert.Equal(t, int64(7), session.StaffID)
	})
}

func TestRateLimit(t *testing.T) {
	cfg := authConfig()
	cfg.RateLimit = config.APIRateLimitConfig{RPS: 0.001, Burst: 1}
	a := newTestAPI(t, cfg)

	rec := a.do(t, http.MethodGet, "/api/v1/reservations?from=2025-06-01&to=2025-06-30", nil, "desk-key")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = a.do(t, http.MethodGet, "/api/v1/reservations?from=2025-06-01&to=2025-06-30", nil, "desk-key")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	// у другого ключа своя квота
	rec = a.do(t, http.MethodGet, "/api/v1/reservations?from=2025-06-01&to=2025-06-30", nil, "night-key")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestWizardToCheckOut(t *testing.T) {
	a := newTestAPI(t, authConfig())
	const key = "desk-key"

	rec := a.do(t, http.MethodPost, "/api/v1/wizards", nil, key)
	require.Equal(t, http.StatusCreated, rec.Code)
	id := decode[models.WizardSession](t, rec).ID

	rec = a.do(t, http.MethodPost, "/api/v1/wizards/"+id+"/identity", map[string]any{"name": "Amina Tazi"}, key)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = a.do(t, http.MethodPost, "/api/v1/wizards/"+id+"/guests", map[string]any{"guest_count": 3}, key)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = a.do(t, http.MethodGet, "/api/v1/wizards/"+id+"/rooms", nil, key)
	require.Equal(t, http.StatusOK, rec.Code)
	candidates := decode[struct {
		Rooms []*models.Room `json:"rooms"`
	}](t, rec).Rooms
	numbers := make([]string, 0, len(candidates))
	for _, r := range candidates {
		numbers = append(numbers, r.Number)
	}
	assert.Equal(t, []string{"201", "301"}, numbers)

	rec = a.do(t, http.MethodPost, "/api/v1/wizards/"+id+"/room", map[string]any{"room_id": a.rooms["201"].ID}, key)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = a.do(t, http.MethodPost, "/api/v1/wizards/"+id+"/dates", map[string]any{"check_in": "2025-07-10", "check_out": "2025-07-12"}, key)
	require.Equal(t, http.StatusOK, rec.Code)
	session := decode[models.WizardSession](t, rec)
	require.NotNil(t, session.Quote)
	assert.Equal(t, int64(3300000), session.Quote.Total)
	assert.Equal(t, int64(495000), session.Quote.Deposit)

	rec = a.do(t, http.MethodPost, "/api/v1/wizards/"+id+"/finalize", map[string]any{"deposit": 495000}, key)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	res := decode[models.Reservation](t, rec)
	assert.Equal(t, models.StatusReservation, res.Status)
	assert.Equal(t, int64(7), res.CreatedBy)

	// сессия удалена после успешного завершения
	rec = a.do(t, http.MethodGet, "/api/v1/wizards/"+id, nil, key)
	assert.Equal(t, http.StatusConflict, rec.Code)

	resPath := fmt.Sprintf("/api/v1/reservations/%d", res.ID)

	rec = a.do(t, http.MethodGet, resPath+"/balance", nil, key)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(2805000), decode[map[string]int64](t, rec)["balance"])

	rec = a.do(t, http.MethodPost, resPath+"/check-in", nil, key)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.StatusCheckedIn, decode[models.Reservation](t, rec).Status)

	rec = a.do(t, http.MethodPost, resPath+"/payments", map[string]any{"kind": "settlement", "amount": 2805000}, key)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = a.do(t, http.MethodPost, resPath+"/payments", map[string]any{"kind": "settlement", "amount": 1}, key)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "overpayment is rejected")

	rec = a.do(t, http.MethodPost, resPath+"/check-out", nil, key)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = a.do(t, http.MethodPost, resPath+"/cancel", map[string]any{"reason": "late"}, key)
	assert.Equal(t, http.StatusConflict, rec.Code, "checked-out reservations cannot be cancelled")

	rec = a.do(t, http.MethodGet, resPath+"/payments", nil, key)
	require.Equal(t, http.StatusOK, rec.Code)
	entries := decode[struct {
		Entries []*models.PaymentEntry `json:"entries"`
	}](t, rec).Entries
	assert.Len(t, entries, 2)
}

func TestWizardSessionsAreOwnerScoped(t *testing.T) {
	a := newTestAPI(t, authConfig())

	rec := a.do(t, http.MethodPost, "/api/v1/wizards", nil, "desk-key")
	require.Equal(t, http.StatusCreated, rec.Code)
	id := decode[models.WizardSession](t, rec).ID

	rec = a.do(t, http.MethodGet, "/api/v1/wizards/"+id, nil, "night-key")
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = a.do(t, http.MethodDelete, "/api/v1/wizards/"+id, nil, "night-key")
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = a.do(t, http.MethodDelete, "/api/v1/wizards/"+id, nil, "desk-key")
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestWizardSkippingStepsIsRejected(t *testing.T) {
	a := newTestAPI(t, openConfig())

	rec := a.do(t, http.MethodPost, "/api/v1/wizards", map[string]any{"staff_id": 3}, "")
	require.Equal(t, http.StatusCreated, rec.Code)
	session := decode[models.WizardSession](t, rec)
	assert.Equal(t, anonymousOwner, session.Owner)
	assert.Equal(t, int64(3), session.StaffID)

	rec = a.do(t, http.MethodPost, "/api/v1/wizards/"+session.ID+"/finalize", map[string]any{"deposit": 0}, "")
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestFinalizeConflictKeepsSession(t *testing.T) {
	a := newTestAPI(t, authConfig())

	first := a.walkWizard(t, "desk-key", "2025-07-10", "2025-07-13")
	second := a.walkWizard(t, "night-key", "2025-07-12", "2025-07-14")

	rec := a.do(t, http.MethodPost, "/api/v1/wizards/"+first+"/finalize", map[string]any{"deposit": 742500}, "desk-key")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = a.do(t, http.MethodPost, "/api/v1/wizards/"+second+"/finalize", map[string]any{"deposit": 495000}, "night-key")
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = a.do(t, http.MethodGet, "/api/v1/wizards/"+second, nil, "night-key")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.WizardDateConfirmation, decode[models.WizardSession](t, rec).Step)
}

func TestCancelWithinGracePeriod(t *testing.T) {
	a := newTestAPI(t, authConfig())

	// заезд через 2 дня, штраф 50% от внесенного
	id := a.walkWizard(t, "desk-key", "2025-06-03", "2025-06-05")
	rec := a.do(t, http.MethodPost, "/api/v1/wizards/"+id+"/finalize", map[string]any{"deposit": 600000}, "desk-key")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	res := decode[models.Reservation](t, rec)

	rec = a.do(t, http.MethodPost, fmt.Sprintf("/api/v1/reservations/%d/cancel", res.ID), map[string]any{"reason": "flight cancelled"}, "desk-key")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	outcome := decode[models.CancellationOutcome](t, rec)
	assert.Equal(t, models.OutcomePenalty, outcome.Decision.Outcome)
	assert.Equal(t, int64(300000), outcome.Decision.Penalty)
	require.NotNil(t, outcome.Entry)
	assert.Equal(t, models.PaymentPenalty, outcome.Entry.Kind)

	rec = a.do(t, http.MethodGet, fmt.Sprintf("/api/v1/reservations/%d/balance", res.ID), nil, "desk-key")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(0), decode[map[string]int64](t, rec)["balance"])

	rec = a.do(t, http.MethodPost, fmt.Sprintf("/api/v1/reservations/%d/cancel", res.ID), nil, "desk-key")
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestReservationRequests(t *testing.T) {
	a := newTestAPI(t, openConfig())

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		want   int
	}{
		{"unknown reservation", http.MethodGet, "/api/v1/reservations/999", nil, http.StatusNotFound},
		{"bad id", http.MethodGet, "/api/v1/reservations/abc", nil, http.StatusBadRequest},
		{"missing window", http.MethodGet, "/api/v1/reservations", nil, http.StatusBadRequest},
		{"inverted window", http.MethodGet, "/api/v1/reservations?from=2025-07-01&to=2025-06-01", nil, http.StatusBadRequest},
		{"unknown room", http.MethodGet, "/api/v1/reservations?room_id=999", nil, http.StatusNotFound},
		{"refund is not recordable", http.MethodPost, "/api/v1/reservations/1/payments", map[string]any{"kind": "refund", "amount": 10}, http.StatusBadRequest},
		{"unknown fields", http.MethodPost, "/api/v1/reservations/1/cancel", map[string]any{"why": "x"}, http.StatusBadRequest},
		{"wrong method", http.MethodDelete, "/api/v1/reservations/1", nil, http.StatusMethodNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := a.do(t, tt.method, tt.path, tt.body, "")
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
		})
	}
}

func TestRoomStatus(t *testing.T) {
	a := newTestAPI(t, openConfig())
	path := fmt.Sprintf("/api/v1/rooms/%d/status", a.rooms["301"].ID)

	rec := a.do(t, http.MethodPut, path, map[string]any{"status": "oos"}, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = a.do(t, http.MethodGet, "/api/v1/rooms", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	rooms := decode[struct {
		Rooms []*models.Room `json:"rooms"`
	}](t, rec).Rooms
	require.Len(t, rooms, 4)
	assert.Equal(t, models.RoomStatusOutOfService, rooms[2].StatusCode)

	rec = a.do(t, http.MethodPut, path, map[string]any{"status": "dirty"}, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = a.do(t, http.MethodPut, "/api/v1/rooms/999/status", map[string]any{"status": "AVL"}, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestExportEndpoint(t *testing.T) {
	a := newTestAPI(t, openConfig())

	id := a.walkWizard(t, "", "2025-07-10", "2025-07-12")
	rec := a.do(t, http.MethodPost, "/api/v1/wizards/"+id+"/finalize", map[string]any{"deposit": 495000}, "")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = a.do(t, http.MethodGet, "/api/v1/reports/reservations.xlsx?from=2025-07-01&to=2025-07-31", nil, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "reservations_2025-07-01_to_2025-07-31.xlsx")

	f, err := excelize.OpenReader(bytes.NewReader(rec.Body.Bytes()))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Reservations")
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}

func TestStatusForError(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{domain.ErrInvalidRange, http.StatusBadRequest},
		{fmt.Errorf("wrap: %w", domain.ErrInvalidAmount), http.StatusBadRequest},
		{domain.ErrInvalidInput, http.StatusBadRequest},
		{domain.ErrNotFound, http.StatusNotFound},
		{domain.ErrConflict, http.StatusConflict},
		{domain.ErrConcurrentModification, http.StatusConflict},
		{domain.ErrInvalidWizardState, http.StatusConflict},
		{errors.New("disk I/O error"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, statusForError(tt.err), tt.err.Error())
	}
}
