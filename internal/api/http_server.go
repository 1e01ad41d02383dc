package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"riad/internal/config"
	"riad/internal/domain"
	"riad/internal/export"
	"riad/internal/metrics"
	"riad/internal/models"
	"riad/internal/service"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// RoomCatalog is the room inventory as seen by front desk staff.
type RoomCatalog interface {
	GetRooms(ctx context.Context) ([]*models.Room, error)
	UpdateRoomStatus(ctx context.Context, id int64, status string) error
}

// Services are the application components the HTTP API drives.
type Services struct {
	Wizard       *service.WizardService
	Reservations *service.ReservationService
	Ledger       *service.PaymentLedger
	Rooms        RoomCatalog
	Exporter     *export.Exporter
}

// ReadinessCheck reports whether a dependency can serve traffic.
type ReadinessCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// HTTPServer exposes the reservation engine as a JSON API.
type HTTPServer struct {
	cfg      *config.APIConfig
	svc      Services
	checks   []ReadinessCheck
	server   *http.Server
	auth     *HTTPAuth
	logger   zerolog.Logger
	now      func() time.Time
	maxRange time.Duration
}

func NewHTTPServer(cfg *config.APIConfig, svc Services, checks []ReadinessCheck, logger *zerolog.Logger) *HTTPServer {
	srv := &HTTPServer{
		cfg:      cfg,
		svc:      svc,
		checks:   checks,
		auth:     NewHTTPAuth(cfg),
		logger:   logger.With().Str("component", "http").Logger(),
		now:      time.Now,
		maxRange: 366 * 24 * time.Hour,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", srv.handleHealth)
	mux.HandleFunc("GET /readyz", srv.handleReady)

	// Все маршруты /api/v1 требуют ключ API
	protect := func(pattern string, h http.HandlerFunc) {
		mux.Handle(pattern, srv.auth.Wrap(h))
	}

	protect("POST /api/v1/wizards", srv.handleWizardStart)
	protect("GET /api/v1/wizards/{id}", srv.handleWizardGet)
	protect("DELETE /api/v1/wizards/{id}", srv.handleWizardCancel)
	protect("POST /api/v1/wizards/{id}/identity", srv.handleWizardIdentity)
	protect("POST /api/v1/wizards/{id}/guests", srv.handleWizardGuests)
	protect("GET /api/v1/wizards/{id}/rooms", srv.handleWizardRooms)
	protect("POST /api/v1/wizards/{id}/room", srv.handleWizardRoom)
	protect("POST /api/v1/wizards/{id}/dates", srv.handleWizardDates)
	protect("POST /api/v1/wizards/{id}/finalize", srv.handleWizardFinalize)

	protect("GET /api/v1/reservations", srv.handleReservationList)
	protect("GET /api/v1/reservations/{id}", srv.handleReservationGet)
	protect("POST /api/v1/reservations/{id}/cancel", srv.handleReservationCancel)
	protect("POST /api/v1/reservations/{id}/check-in", srv.handleReservationCheckIn)
	protect("POST /api/v1/reservations/{id}/check-out", srv.handleReservationCheckOut)
	protect("GET /api/v1/reservations/{id}/payments", srv.handlePaymentList)
	protect("POST /api/v1/reservations/{id}/payments", srv.handlePaymentRecord)
	protect("GET /api/v1/reservations/{id}/balance", srv.handleBalance)
	protect("GET /api/v1/rooms", srv.handleRoomList)
	protect("PUT /api/v1/rooms/{id}/status", srv.handleRoomStatus)
	protect("GET /api/v1/reports/reservations.xlsx", srv.handleExport)

	srv.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           srv.loggingMiddleware(mux),
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
	}

	return srv
}

// Handler exposes the full middleware chain, mainly for tests.
func (s *HTTPServer) Handler() http.Handler {
	return s.server.Handler
}

func (s *HTTPServer) Start() error {
	if s.server == nil {
		return fmt.Errorf("http server is not initialized")
	}
	s.logger.Info().Str("addr", s.server.Addr).Msg("HTTP API listening")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *HTTPServer) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	results := make(map[string]string, len(s.checks))
	for _, c := range s.checks {
		if err := c.Check(ctx); err != nil {
			results[c.Name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		results[c.Name] = "ok"
	}
	writeJSON(w, status, map[string]any{"checks": results})
}

const requestIDHeader = "X-Request-ID"

func (s *HTTPServer) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := strings.TrimSpace(r.Header.Get(requestIDHeader))
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, requestID)

		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error().Str("request_id", requestID).Interface("panic", rec).Msg("http handler panic")
				writeError(recorder, http.StatusInternalServerError, "internal error")
			}

			endpoint := r.Pattern
			if endpoint == "" {
				endpoint = "unmatched"
			}
			metrics.IncHTTP(endpoint)

			s.logger.Info().
				Str("request_id", requestID).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", recorder.status).
				Dur("duration", time.Since(start)).
				Msg("http request")
		}()

		next.ServeHTTP(recorder, r)
	})
}

// writeDomainError maps the domain error taxonomy to HTTP status codes.
func (s *HTTPServer) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusForError(err)
	if status == http.StatusInternalServerError {
		s.logger.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		writeError(w, status, "internal error")
		return
	}
	writeError(w, status, err.Error())
}

func statusForError(err error) int {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidRange),
		errors.Is(err, domain.ErrInvalidInput),
		errors.Is(err, domain.ErrInvalidAmount):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrConflict),
		errors.Is(err, domain.ErrInvalidState),
		errors.Is(err, domain.ErrInvalidWizardState):
		return http.StatusConflict
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{"error": message})
}

// decodeBody reads a JSON body; an empty body leaves dst untouched.
func decodeBody(r *http.Request, dst any) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		return fmt.Errorf("%w: invalid JSON body", domain.ErrInvalidInput)
	}
	return nil
}

func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: invalid id %q", domain.ErrInvalidInput, r.PathValue("id"))
	}
	return id, nil
}

func parseDate(field, raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, fmt.Errorf("%w: %s is required", domain.ErrInvalidInput, field)
	}
	t, err := time.Parse(models.DateLayout, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: invalid %s; expected YYYY-MM-DD", domain.ErrInvalidInput, field)
	}
	return t, nil
}

// queryWindow parses ?from=&to= and caps the window length.
func (s *HTTPServer) queryWindow(r *http.Request) (time.Time, time.Time, error) {
	from, err := parseDate("from", r.URL.Query().Get("from"))
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	to, err := parseDate("to", r.URL.Query().Get("to"))
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	if to.Before(from) {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: to is before from", domain.ErrInvalidRange)
	}
	if to.Sub(from) > s.maxRange {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: window is longer than a year", domain.ErrInvalidRange)
	}
	return from, to, nil
}

type statusRecorder struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (r *statusRecorder) WriteHeader(status int) {
	if r.wroteHeader {
		return
	}
	r.wroteHeader = true
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if !r.wroteHeader {
		r.WriteHeader(http.StatusOK)
	}
	return r.ResponseWriter.Write(b)
}
