package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/mvannier/tablebook/internal/booking"
	"github.com/mvannier/tablebook/internal/model"
)

type ReservationHandler struct {
	svc    *booking.Service
	logger *slog.Logger
}

func NewReservationHandler(svc *booking.Service, logger *slog.Logger) *ReservationHandler {
	return &ReservationHandler{svc: svc, logger: logger}
}

// Register mounts all reservation routes on the mux. Public routes are the
// guest-facing booking surface; the rest back the host dashboard.
func (h *ReservationHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/api/v1/public/slots", h.Slots)
	mux.HandleFunc("/api/v1/public/alternatives", h.Alternatives)
	mux.HandleFunc("/api/v1/public/reservations", h.Create)
	mux.HandleFunc("/api/v1/public/next-open", h.NextOpen)
	mux.HandleFunc("/api/v1/reservations", h.List)
	mux.HandleFunc("/api/v1/reservations/cancel", h.Cancel)
	mux.HandleFunc("/api/v1/reservations/reschedule", h.Reschedule)
	mux.HandleFunc("/api/v1/reservations/checkin", h.CheckIn)
}

type slotItem struct {
	Label     string `json:"label"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

type createReservationRequest struct {
	Date       string  `json:"date"`
	Time       string  `json:"time"`
	PartySize  int     `json:"party_size"`
	GuestName  string  `json:"guest_name"`
	GuestEmail string  `json:"guest_email"`
	GuestPhone string  `json:"guest_phone"`
	EventID    *string `json:"event_id,omitempty"`
}

type reservationResponse struct {
	ReservationID string  `json:"reservation_id"`
	TableID       *string `json:"table_id"`
	StartTime     string  `json:"start_time"`
	EndTime       string  `json:"end_time"`
	PartySize     int     `json:"party_size"`
	Status        string  `json:"status"`
	GuestName     string  `json:"guest_name"`
	CheckedInAt   string  `json:"checked_in_at,omitempty"`
}

type cancelRequest struct {
	ReservationID string `json:"reservation_id"`
}

type rescheduleRequest struct {
	ReservationID string `json:"reservation_id"`
	Date          string `json:"date"`
	Time          string `json:"time"`
	PartySize     int    `json:"party_size"`
}

func (h *ReservationHandler) Slots(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	dateStr, partySize, ok := slotQuery(w, r)
	if !ok {
		return
	}

	slots, err := h.svc.AvailableSlots(r.Context(), dateStr, partySize)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	items := make([]slotItem, 0, len(slots))
	for _, s := range slots {
		items = append(items, slotView(s))
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *ReservationHandler) Alternatives(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	dateStr, partySize, ok := slotQuery(w, r)
	if !ok {
		return
	}
	timeStr := strings.TrimSpace(r.URL.Query().Get("time"))
	if timeStr == "" {
		http.Error(w, "time is required", http.StatusBadRequest)
		return
	}

	before, after, err := h.svc.AlternativeTimes(r.Context(), dateStr, partySize, timeStr)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	resp := struct {
		Before *slotItem `json:"before"`
		After  *slotItem `json:"after"`
	}{}
	if before != nil {
		v := slotView(*before)
		resp.Before = &v
	}
	if after != nil {
		v := slotView(*after)
		resp.After = &v
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *ReservationHandler) Create(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req createReservationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}

	res, err := h.svc.CreateReservation(r.Context(), booking.CreateRequest{
		Date:       req.Date,
		Time:       req.Time,
		PartySize:  req.PartySize,
		GuestName:  req.GuestName,
		GuestEmail: req.GuestEmail,
		GuestPhone: req.GuestPhone,
		EventID:    req.EventID,
	})
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, reservationView(res))
}

func (h *ReservationHandler) NextOpen(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	fromStr := strings.TrimSpace(r.URL.Query().Get("from"))
	from, err := time.Parse(time.RFC3339, fromStr)
	if err != nil {
		http.Error(w, "invalid from (RFC3339 required)", http.StatusBadRequest)
		return
	}
	partySize, err := strconv.Atoi(strings.TrimSpace(r.URL.Query().Get("party_size")))
	if err != nil || partySize < 1 {
		http.Error(w, "invalid party_size", http.StatusBadRequest)
		return
	}

	next, svcErr := h.svc.NextOpenSlot(r.Context(), from, partySize)
	if svcErr != nil {
		h.writeServiceError(w, svcErr)
		return
	}

	resp := struct {
		NextOpen string `json:"next_open,omitempty"`
	}{}
	if next != nil {
		resp.NextOpen = next.UTC().Format(time.RFC3339)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *ReservationHandler) List(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	dateStr := strings.TrimSpace(r.URL.Query().Get("date"))
	if dateStr == "" {
		http.Error(w, "date is required", http.StatusBadRequest)
		return
	}

	reservations, err := h.svc.DayReservations(r.Context(), dateStr)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	items := make([]reservationResponse, 0, len(reservations))
	for i := range reservations {
		items = append(items, reservationView(&reservations[i]))
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *ReservationHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req cancelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}

	res, err := h.svc.CancelReservation(r.Context(), req.ReservationID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, reservationView(res))
}

func (h *ReservationHandler) Reschedule(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req rescheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}

	res, err := h.svc.Reschedule(r.Context(), req.ReservationID, req.Date, req.Time, req.PartySize)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, reservationView(res))
}

func (h *ReservationHandler) CheckIn(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req cancelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}

	if err := h.svc.CheckIn(r.Context(), req.ReservationID); err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "checked_in"})
}

// writeServiceError maps service sentinels to the API error vocabulary.
// Calendar rejections are 422 so clients can distinguish "never bookable at
// this time" from the 409 of a fully committed evening.
func (h *ReservationHandler) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, booking.ErrInvalidInput):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_input"})
	case errors.Is(err, booking.ErrOutsideBookingWindow):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": "outside_booking_window"})
	case errors.Is(err, booking.ErrVenueClosed):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": "venue_closed"})
	case errors.Is(err, booking.ErrNoTableAvailable):
		writeJSON(w, http.StatusConflict, map[string]string{"error": "no_table_available"})
	case errors.Is(err, booking.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not_found"})
	default:
		h.logger.Error("reservation request failed", "err", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal"})
	}
}

func slotQuery(w http.ResponseWriter, r *http.Request) (string, int, bool) {
	dateStr := strings.TrimSpace(r.URL.Query().Get("date"))
	if dateStr == "" {
		http.Error(w, "date is required", http.StatusBadRequest)
		return "", 0, false
	}
	partySize, err := strconv.Atoi(strings.TrimSpace(r.URL.Query().Get("party_size")))
	if err != nil || partySize < 1 {
		http.Error(w, "invalid party_size", http.StatusBadRequest)
		return "", 0, false
	}
	return dateStr, partySize, true
}

func slotView(s booking.Slot) slotItem {
	return slotItem{
		Label:     s.Label,
		StartTime: s.Start.UTC().Format(time.RFC3339),
		EndTime:   s.End.UTC().Format(time.RFC3339),
	}
}

func reservationView(res *model.Reservation) reservationResponse {
	out := reservationResponse{
		ReservationID: res.ID,
		TableID:       res.TableID,
		StartTime:     res.StartTime.UTC().Format(time.RFC3339),
		EndTime:       res.EndTime.UTC().Format(time.RFC3339),
		PartySize:     res.PartySize,
		Status:        res.Status,
		GuestName:     res.GuestName,
	}
	if res.CheckedInAt != nil {
		out.CheckedInAt = res.CheckedInAt.UTC().Format(time.RFC3339)
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		http.Error(w, "failed to build response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}
