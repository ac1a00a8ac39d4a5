package httpapi

import (
	"net/http"
	"strings"
	"time"

	"vms/ticket-service/internal/models"
	"vms/ticket-service/internal/store"
)

// The guest-ticket routes are a compatibility surface for clients built
// against the older visit-scheduling API. They speak in appointment_time and
// purpose; internally everything maps onto the same store operations as
// /api/tickets.

type guestTicketRequest struct {
	AppointmentTime string             `json:"appointment_time" validate:"required"`
	Purpose         string             `json:"purpose" validate:"required"`
	Response        string             `json:"response"`
	Guest           guestInfo          `json:"guest"`
	Participants    []guestParticipant `json:"participants" validate:"dive"`
}

type guestInfo struct {
	Name    string `json:"name"`
	Company string `json:"company"`
	Contact string `json:"contact"`
}

type guestParticipant struct {
	Name     string `json:"name" validate:"required"`
	PersonID string `json:"person_id"`
}

type guestStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

type guestTicketView struct {
	TicketID        string               `json:"ticket_id"`
	AppointmentTime string               `json:"appointment_time"`
	Purpose         string               `json:"purpose"`
	Status          string               `json:"status"`
	Response        string               `json:"response"`
	Guest           guestInfo            `json:"guest"`
	Participants    []models.Participant `json:"participants"`
	CreatedAt       time.Time            `json:"created_at"`
	UpdatedAt       time.Time            `json:"updated_at"`
}

func (h *Handler) handleGuestTickets(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		filter, ok := listFilterFromQuery(w, r)
		if !ok {
			return
		}
		tickets, err := h.store.ListTickets(r.Context(), filter)
		if err != nil {
			writeStoreError(w, err)
			return
		}
		views := make([]guestTicketView, 0, len(tickets))
		for _, ticket := range tickets {
			views = append(views, guestView(ticket))
		}
		count := len(views)
		writeJSON(w, http.StatusOK, successResponse{
			Success: true,
			Data:    views,
			Count:   &count,
		})
	case http.MethodPost:
		h.handleGuestCreate(w, r)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *Handler) handleGuestCreate(w http.ResponseWriter, r *http.Request) {
	if !requireRole(w, r, RoleReceptionist, RoleAdmin) {
		return
	}

	var req guestTicketRequest
	if !h.decodeValid(w, r, &req) {
		return
	}
	date, clock, err := splitAppointmentTime(req.AppointmentTime)
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_error",
			"appointment_time must be YYYY-MM-DD HH:MM or RFC 3339")
		return
	}

	input := store.CreateTicketInput{
		Date:         date,
		Time:         clock,
		Subject:      req.Purpose,
		GuestName:    strings.TrimSpace(req.Guest.Name),
		GuestCompany: strings.TrimSpace(req.Guest.Company),
		GuestContact: strings.TrimSpace(req.Guest.Contact),
		Participants: guestParticipantInputs(req.Participants),
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
		Data:    guestView(ticket),
	})
}

func (h *Handler) handleGuestTicketByID(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/guest-tickets/"), "/"), "/")

	switch {
	case len(parts) == 1:
		ticketID, ok := ticketIDFromPath(w, parts[0])
		if !ok {
			return
		}
		switch r.Method {
		case http.MethodGet:
			ticket, err := h.store.GetTicket(r.Context(), ticketID)
			if err != nil {
				writeStoreError(w, err)
				return
			}
			writeData(w, http.StatusOK, guestView(ticket))
		case http.MethodPut:
			h.handleGuestUpdate(w, r, ticketID)
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
		h.handleGuestStatus(w, r, ticketID)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *Handler) handleGuestUpdate(w http.ResponseWriter, r *http.Request, ticketID string) {
	if !requireRole(w, r, RoleReceptionist, RoleAdmin) {
		return
	}

	var req guestTicketRequest
	if !h.decodeValid(w, r, &req) {
		return
	}
	date, clock, err := splitAppointmentTime(req.AppointmentTime)
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_error",
			"appointment_time must be YYYY-MM-DD HH:MM or RFC 3339")
		return
	}

	ticket, err := h.store.UpdateTicket(r.Context(), ticketID, store.UpdateTicketInput{
		Date:         date,
		Time:         clock,
		Subject:      req.Purpose,
		Response:     req.Response,
		GuestName:    strings.TrimSpace(req.Guest.Name),
		GuestCompany: strings.TrimSpace(req.Guest.Company),
		GuestContact: strings.TrimSpace(req.Guest.Contact),
		Participants: guestParticipantInputs(req.Participants),
	})
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, successResponse{
		Success: true,
		Message: "ticket updated",
		Data:    guestView(ticket),
	})
}

func (h *Handler) handleGuestStatus(w http.ResponseWriter, r *http.Request, ticketID string) {
	if !requireRole(w, r, RoleReceptionist, RoleApprover, RoleAdmin) {
		return
	}

	var req guestStatusRequest
	if !h.decodeValid(w, r, &req) {
		return
	}
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
		Data:    guestView(ticket),
	})
}

// splitAppointmentTime accepts either "2006-01-02 15:04" or an RFC 3339
// timestamp and returns the date and wall-clock parts the store works with.
func splitAppointmentTime(raw string) (date, clock string, err error) {
	raw = strings.TrimSpace(raw)
	if ts, parseErr := time.Parse(time.RFC3339, raw); parseErr == nil {
		return ts.Format("2006-01-02"), ts.Format("15:04"), nil
	}
	ts, parseErr := time.Parse("2006-01-02 15:04", raw)
	if parseErr != nil {
		return "", "", parseErr
	}
	return ts.Format("2006-01-02"), ts.Format("15:04"), nil
}

func guestParticipantInputs(participants []guestParticipant) []store.ParticipantInput {
	inputs := make([]store.ParticipantInput, 0, len(participants))
	for _, p := range participants {
		inputs = append(inputs, store.ParticipantInput{
			Name:     strings.TrimSpace(p.Name),
			PersonID: strings.TrimSpace(p.PersonID),
		})
	}
	return inputs
}

func guestView(ticket models.Ticket) guestTicketView {
	view := guestTicketView{
		TicketID:        ticket.TicketID,
		AppointmentTime: ticket.Date + " " + ticket.Time,
		Purpose:         ticket.Subject,
		Status:          ticket.Status,
		Response:        ticket.Response,
		Guest: guestInfo{
			Name:    ticket.GuestName,
			Company: ticket.GuestCompany,
			Contact: ticket.GuestContact,
		},
		Participants: ticket.Participants,
		CreatedAt:    ticket.CreatedAt,
		UpdatedAt:    ticket.UpdatedAt,
	}
	if view.Participants == nil {
		view.Participants = []models.Participant{}
	}
	return view
}
