package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/petcare-labs/clinibook/services/booking-service/internal/booking"
	"github.com/petcare-labs/clinibook/services/booking-service/internal/model"
)

type BookingHandler struct {
	svc    *booking.Service
	logger *slog.Logger
}

func NewBookingHandler(svc *booking.Service, logger *slog.Logger) *BookingHandler {
	return &BookingHandler{svc: svc, logger: logger}
}

// Routes registers the booking endpoints on mux.
func (h *BookingHandler) Routes(mux *http.ServeMux) {
	mux.HandleFunc("/v1/bookings", h.bookings)
	mux.HandleFunc("/v1/bookings/update", h.Update)
	mux.HandleFunc("/v1/bookings/cancel", h.statusChange(model.StatusCancelled))
	mux.HandleFunc("/v1/bookings/abort", h.statusChange(model.StatusAborted))
	mux.HandleFunc("/v1/bookings/complete", h.statusChange(model.StatusCompleted))
	mux.HandleFunc("/v1/bookings/upcoming", h.Upcoming)
	mux.HandleFunc("/v1/bookings/history", h.History)
	mux.HandleFunc("/v1/agenda", h.Agenda)
	mux.HandleFunc("/v1/slots", h.Slots)
}

type createBookingRequest struct {
	PetID             string `json:"pet_id"`
	StaffID           string `json:"staff_id"`
	StartsAt          string `json:"starts_at"`
	Type              string `json:"type"`
	ReminderRequested bool   `json:"reminder_requested"`
}

type updateBookingRequest struct {
	BookingID         string  `json:"booking_id"`
	StaffID           *string `json:"staff_id"`
	StartsAt          *string `json:"starts_at"`
	Type              *string `json:"type"`
	ReminderRequested *bool   `json:"reminder_requested"`
}

type statusChangeRequest struct {
	BookingID string `json:"booking_id"`
	Reason    string `json:"reason"`
}

type bookingItem struct {
	BookingID         string `json:"booking_id"`
	PetID             string `json:"pet_id"`
	StaffID           string `json:"staff_id"`
	StartsAt          string `json:"starts_at"`
	Type              string `json:"type"`
	Status            string `json:"status"`
	ReminderRequested bool   `json:"reminder_requested"`
	CancelReason      string `json:"cancel_reason,omitempty"`
	CreatedAt         string `json:"created_at"`
}

func toItem(b model.Booking) bookingItem {
	return bookingItem{
		BookingID:         b.ID,
		PetID:             b.PetID,
		StaffID:           b.StaffID,
		StartsAt:          b.StartsAt.Format(time.RFC3339),
		Type:              string(b.Type),
		Status:            string(b.Status),
		ReminderRequested: b.ReminderRequested,
		CancelReason:      b.CancelReason,
		CreatedAt:         b.CreatedAt.Format(time.RFC3339),
	}
}

// bookings dispatches POST (create) and GET (?pet_id= listing) on the
// collection endpoint.
func (h *BookingHandler) bookings(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.Create(w, r)
	case http.MethodGet:
		h.ListByPet(w, r)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *BookingHandler) Create(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(r)
	if !ok {
		http.Error(w, "unauthenticated", http.StatusUnauthorized)
		return
	}

	var req createBookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}

	startsAt, err := time.Parse(time.RFC3339, strings.TrimSpace(req.StartsAt))
	if err != nil {
		http.Error(w, "invalid starts_at", http.StatusBadRequest)
		return
	}

	b, err := h.svc.Create(r.Context(), actor, booking.CreateInput{
		PetID:             strings.TrimSpace(req.PetID),
		StaffID:           strings.TrimSpace(req.StaffID),
		StartsAt:          startsAt,
		Type:              model.BookingType(strings.TrimSpace(req.Type)),
		ReminderRequested: req.ReminderRequested,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(toItem(b))
}

func (h *BookingHandler) Update(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	actor, ok := actorFrom(r)
	if !ok {
		http.Error(w, "unauthenticated", http.StatusUnauthorized)
		return
	}

	var req updateBookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.BookingID = strings.TrimSpace(req.BookingID)
	if req.BookingID == "" {
		http.Error(w, "booking_id required", http.StatusBadRequest)
		return
	}

	var in booking.UpdateInput
	if req.StartsAt != nil {
		t, err := time.Parse(time.RFC3339, strings.TrimSpace(*req.StartsAt))
		if err != nil {
			http.Error(w, "invalid starts_at", http.StatusBadRequest)
			return
		}
		in.StartsAt = &t
	}
	if req.StaffID != nil {
		id := strings.TrimSpace(*req.StaffID)
		in.StaffID = &id
	}
	if req.Type != nil {
		t := model.BookingType(strings.TrimSpace(*req.Type))
		in.Type = &t
	}
	in.ReminderRequested = req.ReminderRequested

	b, err := h.svc.Update(r.Context(), actor, req.BookingID, in)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(toItem(b))
}

// statusChange builds the handler for one lifecycle endpoint; role and
// transition rules live in the service, not here.
func (h *BookingHandler) statusChange(target model.Status) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		actor, ok := actorFrom(r)
		if !ok {
			http.Error(w, "unauthenticated", http.StatusUnauthorized)
			return
		}

		var req statusChangeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json body", http.StatusBadRequest)
			return
		}
		req.BookingID = strings.TrimSpace(req.BookingID)
		if req.BookingID == "" {
			http.Error(w, "booking_id required", http.StatusBadRequest)
			return
		}

		b, err := h.svc.UpdateStatus(r.Context(), actor, req.BookingID, target, strings.TrimSpace(req.Reason))
		if err != nil {
			writeDomainError(w, err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(toItem(b))
	}
}

func (h *BookingHandler) ListByPet(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(r)
	if !ok {
		http.Error(w, "unauthenticated", http.StatusUnauthorized)
		return
	}
	petID := strings.TrimSpace(r.URL.Query().Get("pet_id"))
	if petID == "" {
		http.Error(w, "pet_id required", http.StatusBadRequest)
		return
	}

	bookings, err := h.svc.BookingsByPet(r.Context(), actor, petID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	h.writeList(w, bookings)
}

func (h *BookingHandler) Upcoming(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	actor, ok := actorFrom(r)
	if !ok {
		http.Error(w, "unauthenticated", http.StatusUnauthorized)
		return
	}

	bookings, err := h.svc.UpcomingForClient(r.Context(), actor)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	h.writeList(w, bookings)
}

func (h *BookingHandler) History(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	actor, ok := actorFrom(r)
	if !ok {
		http.Error(w, "unauthenticated", http.StatusUnauthorized)
		return
	}

	bookings, err := h.svc.HistoryForClient(r.Context(), actor)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	h.writeList(w, bookings)
}

func (h *BookingHandler) Agenda(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	actor, ok := actorFrom(r)
	if !ok {
		http.Error(w, "unauthenticated", http.StatusUnauthorized)
		return
	}
	upcomingOnly := strings.TrimSpace(r.URL.Query().Get("upcoming")) == "true"

	bookings, err := h.svc.AgendaForStaff(r.Context(), actor, upcomingOnly)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	h.writeList(w, bookings)
}

type slotsResponse struct {
	StaffID  string   `json:"staff_id"`
	Date     string   `json:"date"`
	Occupied []string `json:"occupied"`
	Free     []string `json:"free"`
}

func (h *BookingHandler) Slots(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if _, ok := actorFrom(r); !ok {
		http.Error(w, "unauthenticated", http.StatusUnauthorized)
		return
	}

	staffID := strings.TrimSpace(r.URL.Query().Get("staff_id"))
	dateStr := strings.TrimSpace(r.URL.Query().Get("date"))
	if staffID == "" || dateStr == "" {
		http.Error(w, "staff_id and date are required", http.StatusBadRequest)
		return
	}
	day, err := time.ParseInLocation("2006-01-02", dateStr, time.UTC)
	if err != nil {
		http.Error(w, "invalid date", http.StatusBadRequest)
		return
	}

	occupied, free, err := h.svc.StaffSlots(r.Context(), staffID, day)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	resp := slotsResponse{
		StaffID:  staffID,
		Date:     dateStr,
		Occupied: make([]string, 0, len(occupied)),
		Free:     make([]string, 0, len(free)),
	}
	for _, t := range occupied {
		resp.Occupied = append(resp.Occupied, t.Format(time.RFC3339))
	}
	for _, t := range free {
		resp.Free = append(resp.Free, t.Format(time.RFC3339))
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func (h *BookingHandler) writeList(w http.ResponseWriter, bookings []model.Booking) {
	items := make([]bookingItem, 0, len(bookings))
	for _, b := range bookings {
		items = append(items, toItem(b))
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(items)
}
