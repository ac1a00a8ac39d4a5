package httpapi

import (
	"encoding/json"
	"errors"
	"expvar"
	"net/http"
	"strings"
	"time"

	"vms/ticket-service/internal/models"
	"vms/ticket-service/internal/store"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

type Handler struct {
	store    store.TicketStore
	validate *validator.Validate
}

func NewHandler(st store.TicketStore) *Handler {
	return &Handler{
		store:    st,
		validate: validator.New(),
	}
}

func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", expvar.Handler())
	mux.HandleFunc("/healthz", h.handleHealth)
	mux.HandleFunc("/api/health", h.handleHealth)
	mux.HandleFunc("/api/tickets", h.handleTickets)
	mux.HandleFunc("/api/tickets/all", h.handleListAll)
	mux.HandleFunc("/api/tickets/stats/dashboard", h.handleDashboard)
	mux.HandleFunc("/api/tickets/", h.handleTicketByID)
	mux.HandleFunc("/api/guest-tickets", h.handleGuestTickets)
	mux.HandleFunc("/api/guest-tickets/", h.handleGuestTicketByID)
	return mux
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "OK"})
}

type createTicketRequest struct {
	Date         string   `json:"date" validate:"required,datetime=2006-01-02"`
	Time         string   `json:"time" validate:"required,datetime=15:04"`
	Subject      string   `json:"subject" validate:"required"`
	Participants []string `json:"participants" validate:"dive,required"`
	GuestName    string   `json:"guest_name"`
	GuestCompany string   `json:"guest_company"`
	GuestContact string   `json:"guest_contact"`
}

type updateTicketRequest struct {
	Date         string   `json:"date" validate:"required,datetime=2006-01-02"`
	Time         string   `json:"time" validate:"required,datetime=15:04"`
	Subject      string   `json:"subject" validate:"required"`
	Response     string   `json:"response"`
	Participants []string `json:"participants" validate:"dive,required"`
	GuestName    string   `json:"guest_name"`
	GuestCompany string   `json:"guest_company"`
	GuestContact string   `json:"guest_contact"`
}

type statusRequest struct {
	Status string `json:"status" validate:"required"`
}

func (h *Handler) handleTickets(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.handleList(w, r)
	case http.MethodPost:
		h.handleCreate(w, r)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// handleList serves the monitor view: without an explicit status filter only
// tickets still in play (waiting, in_room) are shown, scheduled time
// ascending.
func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	filter, ok := listFilterFromQuery(w, r)
	if !ok {
		return
	}

	tickets, err := h.store.ListTickets(r.Context(), filter)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeList(w, tickets)
}

func (h *Handler) handleListAll(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if !requireRole(w, r, RoleAdmin) {
		return
	}

	tickets, err := h.store.ListAllTickets(r.Context())
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeList(w, tickets)
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	if !requireRole(w, r, RoleReceptionist, RoleAdmin) {
		return
	}

	var req createTicketRequest
	if !h.decodeValid(w, r, &req) {
		return
	}

	input := store.CreateTicketInput{
		Date:         req.Date,
		Time:         req.Time,
		Subject:      req.Subject,
		GuestName:    req.GuestName,
		GuestCompany: req.GuestCompany,
		GuestContact: req.GuestContact,
		Participants: participantInputs(req.Participants),
	}
	if session, ok := sessionFromContext(r.Context()); ok {
		input.CreatedBy = session.UserID
	}

	ticket, err := h.store.CreateTicket(r.Context(), input)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, successResponse{
		Success: true,
		Message: "ticket created",
		Data:    ticket,
	})
}

func (h *Handler) handleTicketByID(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/tickets/"), "/"), "/")

	switch {
	case len(parts) == 1:
		ticketID, ok := ticketIDFromPath(w, parts[0])
		if !ok {
			return
		}
		switch r.Method {
		case http.MethodGet:
			h.handleGet(w, r, ticketID)
		case http.MethodPut:
			h.handleUpdate(w, r, ticketID)
		case http.MethodDelete:
			h.handleDelete(w, r, ticketID)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	case len(parts) == 2 && parts[1] == "status":
		if r.Method != http.MethodPatch {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		ticketID, ok := ticketIDFromPath(w, parts[0])
		if !ok {
			return
		}
		h.handleStatus(w, r, ticketID)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request, ticketID string) {
	ticket, err := h.store.GetTicket(r.Context(), ticketID)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeData(w, http.StatusOK, ticket)
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request, ticketID string) {
	if !requireRole(w, r, RoleReceptionist, RoleAdmin) {
		return
	}

	var req updateTicketRequest
	if !h.decodeValid(w, r, &req) {
		return
	}

	ticket, err := h.store.UpdateTicket(r.Context(), ticketID, store.UpdateTicketInput{
		Date:         req.Date,
		Time:         req.Time,
		Subject:      req.Subject,
		Response:     req.Response,
		GuestName:    req.GuestName,
		GuestCompany: req.GuestCompany,
		GuestContact: req.GuestContact,
		Participants: participantInputs(req.Participants),
	})
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, successResponse{
		Success: true,
		Message: "ticket updated",
		Data:    ticket,
	})
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request, ticketID string) {
	if !requireRole(w, r, RoleReceptionist, RoleApprover, RoleAdmin) {
		return
	}

	var req statusRequest
	if !h.decodeValid(w, r, &req) {
		return
	}

	// Reject unknown labels before any store round-trip.
	status, err := store.NormalizeStatus(req.Status)
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_error",
			"status must be one of: waiting, in_room, completed, cancelled, rejected")
		return
	}

	ticket, err := h.store.UpdateStatus(r.Context(), ticketID, status)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, successResponse{
		Success: true,
		Message: "status updated",
		Data:    ticket,
	})
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request, ticketID string) {
	if !requireRole(w, r, RoleReceptionist, RoleAdmin) {
		return
	}

	if err := h.store.DeleteTicket(r.Context(), ticketID); err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, successResponse{
		Success: true,
		Message: "ticket deleted",
	})
}

func (h *Handler) handleDashboard(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	today := time.Now().Format("2006-01-02")
	stats, err := h.store.DashboardStats(r.Context(), today)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeData(w, http.StatusOK, stats)
}

func listFilterFromQuery(w http.ResponseWriter, r *http.Request) (store.ListFilter, bool) {
	filter := store.ListFilter{}

	if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
		for _, label := range strings.Split(raw, ",") {
			status, err := store.NormalizeStatus(label)
			if err != nil {
				writeError(w, http.StatusBadRequest, "validation_error",
					"status must be one of: waiting, in_room, completed, cancelled, rejected")
				return store.ListFilter{}, false
			}
			filter.Statuses = append(filter.Statuses, status)
		}
	} else {
		filter.Statuses = []string{models.StatusWaiting, models.StatusInRoom}
	}

	if date := strings.TrimSpace(r.URL.Query().Get("date")); date != "" {
		if _, err := time.Parse("2006-01-02", date); err != nil {
			writeError(w, http.StatusBadRequest, "validation_error", "date must be YYYY-MM-DD")
			return store.ListFilter{}, false
		}
		filter.Date = date
	}

	return filter, true
}

func participantInputs(names []string) []store.ParticipantInput {
	inputs := make([]store.ParticipantInput, 0, len(names))
	for _, name := range names {
		inputs = append(inputs, store.ParticipantInput{Name: strings.TrimSpace(name)})
	}
	return inputs
}

func ticketIDFromPath(w http.ResponseWriter, raw string) (string, bool) {
	if !isValidUUID(raw) {
		writeError(w, http.StatusBadRequest, "validation_error", "ticket id must be a UUID")
		return "", false
	}
	return raw, true
}

func isValidUUID(value string) bool {
	_, err := uuid.Parse(value)
	return err == nil
}

// decodeValid decodes a JSON body, trims string fields, and runs struct
// validation. It writes the 400 response itself when the payload is bad.
func (h *Handler) decodeValid(w http.ResponseWriter, r *http.Request, target interface{}) bool {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(target); err != nil {
		writeError(w, http.StatusBadRequest, "validation_error", "invalid JSON payload")
		return false
	}
	trimRequest(target)
	if err := h.validate.Struct(target); err != nil {
		writeError(w, http.StatusBadRequest, "validation_error", validationMessage(err))
		return false
	}
	return true
}

func trimRequest(target interface{}) {
	switch req := target.(type) {
	case *createTicketRequest:
		req.Date = strings.TrimSpace(req.Date)
		req.Time = strings.TrimSpace(req.Time)
		req.Subject = strings.TrimSpace(req.Subject)
	case *updateTicketRequest:
		req.Date = strings.TrimSpace(req.Date)
		req.Time = strings.TrimSpace(req.Time)
		req.Subject = strings.TrimSpace(req.Subject)
	case *statusRequest:
		req.Status = strings.TrimSpace(req.Status)
	case *guestTicketRequest:
		req.AppointmentTime = strings.TrimSpace(req.AppointmentTime)
		req.Purpose = strings.TrimSpace(req.Purpose)
	}
}

func validationMessage(err error) string {
	var invalid *validator.InvalidValidationError
	if errors.As(err, &invalid) {
		return "invalid request payload"
	}
	var fields validator.ValidationErrors
	if errors.As(err, &fields) && len(fields) > 0 {
		var missing []string
		for _, field := range fields {
			missing = append(missing, strings.ToLower(field.Field()))
		}
		return "missing or invalid fields: " + strings.Join(missing, ", ")
	}
	return "invalid request payload"
}

type successResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
	Count   *int        `json:"count,omitempty"`
}

type errorResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Kind    string `json:"kind"`
}

func writeList(w http.ResponseWriter, tickets []models.Ticket) {
	if tickets == nil {
		tickets = []models.Ticket{}
	}
	count := len(tickets)
	writeJSON(w, http.StatusOK, successResponse{
		Success: true,
		Data:    tickets,
		Count:   &count,
	})
}

func writeData(w http.ResponseWriter, status int, data interface{}) {
	writeJSON(w, status, successResponse{
		Success: true,
		Data:    data,
	})
}

// writeStoreError maps sentinel store errors to the wire taxonomy. Raw driver
// detail never reaches the caller; the logging middleware records the status.
func writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrTicketNotFound):
		writeError(w, http.StatusNotFound, "not_found", "ticket not found")
	case errors.Is(err, store.ErrInvalidStatus):
		writeError(w, http.StatusBadRequest, "validation_error",
			"status must be one of: waiting, in_room, completed, cancelled, rejected")
	case errors.Is(err, store.ErrSessionNotFound):
		writeError(w, http.StatusUnauthorized, "unauthorized", "invalid session")
	case errors.Is(err, store.ErrAccessDenied):
		writeError(w, http.StatusForbidden, "access_denied", "access denied")
	case errors.Is(err, store.ErrPoolTimeout):
		writeError(w, http.StatusServiceUnavailable, "pool_timeout", "datastore is busy, retry shortly")
	default:
		writeError(w, http.StatusInternalServerError, "store_error", "internal server error")
	}
}

func writeError(w http.ResponseWriter, status int, kind, message string) {
	writeJSON(w, status, errorResponse{
		Success: false,
		Message: message,
		Kind:    kind,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(payload)
}
