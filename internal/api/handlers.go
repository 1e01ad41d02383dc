package api

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"riad/internal/domain"
	"riad/internal/models"
	"riad/internal/service"
)

type startWizardRequest struct {
	// StaffID переопределяет сотрудника только при выключенной авторизации
	StaffID int64 `json:"staff_id"`
}

type guestCountRequest struct {
	GuestCount int `json:"guest_count"`
}

type roomRequest struct {
	RoomID int64 `json:"room_id"`
}

type datesRequest struct {
	CheckIn  string `json:"check_in"`
	CheckOut string `json:"check_out"`
}

type finalizeRequest struct {
	Deposit int64 `json:"deposit"`
}

type cancelRequest struct {
	Reason string `json:"reason"`
}

type roomStatusRequest struct {
	Status string `json:"status"`
}

type paymentRequest struct {
	Kind   string `json:"kind"`
	Amount int64  `json:"amount"`
}

func (s *HTTPServer) handleWizardStart(w http.ResponseWriter, r *http.Request) {
	var body startWizardRequest
	if err := decodeBody(r, &body); err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	p := PrincipalFrom(r.Context())
	staffID := p.StaffID
	if !s.cfg.Auth.Enabled && body.StaffID > 0 {
		staffID = body.StaffID
	}

	session, err := s.svc.Wizard.Start(r.Context(), p.Owner, staffID)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, session)
}

func (s *HTTPServer) handleWizardGet(w http.ResponseWriter, r *http.Request) {
	session, err := s.svc.Wizard.Get(r.Context(), PrincipalFrom(r.Context()).Owner, r.PathValue("id"))
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func (s *HTTPServer) handleWizardCancel(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Wizard.Cancel(r.Context(), PrincipalFrom(r.Context()).Owner, r.PathValue("id")); err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *HTTPServer) handleWizardIdentity(w http.ResponseWriter, r *http.Request) {
	var body service.IdentityInput
	if err := decodeBody(r, &body); err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	session, err := s.svc.Wizard.SelectIdentity(r.Context(), PrincipalFrom(r.Context()).Owner, r.PathValue("id"), body)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func (s *HTTPServer) handleWizardGuests(w http.ResponseWriter, r *http.Request) {
	var body guestCountRequest
	if err := decodeBody(r, &body); err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	session, err := s.svc.Wizard.EnterGuestCount(r.Context(), PrincipalFrom(r.Context()).Owner, r.PathValue("id"), body.GuestCount)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func (s *HTTPServer) handleWizardRooms(w http.ResponseWriter, r *http.Request) {
	rooms, err := s.svc.Wizard.CandidateRooms(r.Context(), PrincipalFrom(r.Context()).Owner, r.PathValue("id"))
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"rooms": rooms})
}

func (s *HTTPServer) handleWizardRoom(w http.ResponseWriter, r *http.Request) {
	var body roomRequest
	if err := decodeBody(r, &body); err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	session, err := s.svc.Wizard.SelectRoom(r.Context(), PrincipalFrom(r.Context()).Owner, r.PathValue("id"), body.RoomID)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func (s *HTTPServer) handleWizardDates(w http.ResponseWriter, r *http.Request) {
	var body datesRequest
	if err := decodeBody(r, &body); err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	checkIn, err := parseDate("check_in", body.CheckIn)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	checkOut, err := parseDate("check_out", body.CheckOut)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	session, err := s.svc.Wizard.ConfirmDates(r.Context(), PrincipalFrom(r.Context()).Owner, r.PathValue("id"), checkIn, checkOut, s.now())
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func (s *HTTPServer) handleWizardFinalize(w http.ResponseWriter, r *http.Request) {
	var body finalizeRequest
	if err := decodeBody(r, &body); err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	res, err := s.svc.Wizard.Finalize(r.Context(), PrincipalFrom(r.Context()).Owner, r.PathValue("id"), body.Deposit)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

// handleReservationList filters by ?room_id= or by a ?from=&to= window.
func (s *HTTPServer) handleReservationList(w http.ResponseWriter, r *http.Request) {
	var (
		list []*models.Reservation
		err  error
	)

	if raw := strings.TrimSpace(r.URL.Query().Get("room_id")); raw != "" {
		roomID, perr := strconv.ParseInt(raw, 10, 64)
		if perr != nil || roomID <= 0 {
			s.writeDomainError(w, r, fmt.Errorf("%w: invalid room_id", domain.ErrInvalidInput))
			return
		}
		list, err = s.svc.Reservations.ListByRoom(r.Context(), roomID)
	} else {
		from, to, werr := s.queryWindow(r)
		if werr != nil {
			s.writeDomainError(w, r, werr)
			return
		}
		list, err = s.svc.Reservations.ListByDateRange(r.Context(), from, to)
	}
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	if list == nil {
		list = []*models.Reservation{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"reservations": list})
}

func (s *HTTPServer) handleReservationGet(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	res, err := s.svc.Reservations.Get(r.Context(), id)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *HTTPServer) handleReservationCancel(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	var body cancelRequest
	if err := decodeBody(r, &body); err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	outcome, err := s.svc.Reservations.Cancel(r.Context(), id, strings.TrimSpace(body.Reason), s.now())
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, outcome)
}

func (s *HTTPServer) handleReservationCheckIn(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	res, err := s.svc.Reservations.CheckIn(r.Context(), id, s.now())
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *HTTPServer) handleReservationCheckOut(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	res, err := s.svc.Reservations.CheckOut(r.Context(), id, s.now())
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *HTTPServer) handlePaymentList(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	entries, err := s.svc.Ledger.Entries(r.Context(), id)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	if entries == nil {
		entries = []*models.PaymentEntry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

// handlePaymentRecord accepts deposit and settlement only. Refund and penalty
// entries are written by cancellation.
func (s *HTTPServer) handlePaymentRecord(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	var body paymentRequest
	if err := decodeBody(r, &body); err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	var entry *models.PaymentEntry
	switch strings.ToLower(strings.TrimSpace(body.Kind)) {
	case models.PaymentDeposit:
		entry, err = s.svc.Ledger.RecordDeposit(r.Context(), id, body.Amount)
	case models.PaymentSettlement, "":
		entry, err = s.svc.Ledger.RecordSettlement(r.Context(), id, body.Amount)
	default:
		err = fmt.Errorf("%w: payment kind %q cannot be recorded directly", domain.ErrInvalidInput, body.Kind)
	}
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, entry)
}

func (s *HTTPServer) handleBalance(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	balance, err := s.svc.Ledger.Balance(r.Context(), id)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"reservation_id": id, "balance": balance})
}

func (s *HTTPServer) handleRoomList(w http.ResponseWriter, r *http.Request) {
	rooms, err := s.svc.Rooms.GetRooms(r.Context())
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"rooms": rooms})
}

// handleRoomStatus changes the housekeeping status. OOS rooms drop out of
// wizard candidates but keep their reservations.
func (s *HTTPServer) handleRoomStatus(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	var body roomStatusRequest
	if err := decodeBody(r, &body); err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	status := strings.ToUpper(strings.TrimSpace(body.Status))
	if err := s.svc.Rooms.UpdateRoomStatus(r.Context(), id, status); err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"room_id": id, "status": status})
}

func (s *HTTPServer) handleExport(w http.ResponseWriter, r *http.Request) {
	if s.svc.Exporter == nil {
		writeError(w, http.StatusNotFound, "export is not configured")
		return
	}
	from, to, err := s.queryWindow(r)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	var buf bytes.Buffer
	if err := s.svc.Exporter.Write(r.Context(), &buf, from, to); err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	fileName := fmt.Sprintf("reservations_%s_to_%s.xlsx", from.Format(models.DateLayout), to.Format(models.DateLayout))
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", fileName))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}
