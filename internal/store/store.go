package store

import (
	"context"
	"time"

	"vms/ticket-service/internal/models"
)

type CreateTicketInput struct {
	Date         string
	Time         string
	Subject      string
	GuestName    string
	GuestCompany string
	GuestContact string
	Participants []ParticipantInput
	CreatedBy    string
}

type UpdateTicketInput struct {
	Date         string
	Time         string
	Subject      string
	Response     string
	GuestName    string
	GuestCompany string
	GuestContact string
	Participants []ParticipantInput
}

type ParticipantInput struct {
	Name     string
	PersonID string
}

// ListFilter narrows ListTickets. An empty Statuses slice means no status
// predicate; an empty Date means no date predicate.
type ListFilter struct {
	Statuses []string
	Date     string
}

type DashboardStats struct {
	Waiting    int `json:"waiting"`
	InRoom     int `json:"in_room"`
	Completed  int `json:"completed"`
	Cancelled  int `json:"cancelled"`
	Rejected   int `json:"rejected"`
	TotalToday int `json:"total_today"`
	TotalAll   int `json:"total_all"`
}

type TicketStore interface {
	CreateTicket(ctx context.Context, input CreateTicketInput) (models.Ticket, error)
	GetTicket(ctx context.Context, ticketID string) (models.Ticket, error)
	ListTickets(ctx context.Context, filter ListFilter) ([]models.Ticket, error)
	ListAllTickets(ctx context.Context) ([]models.Ticket, error)
	UpdateTicket(ctx context.Context, ticketID string, input UpdateTicketInput) (models.Ticket, error)
	UpdateStatus(ctx context.Context, ticketID, status string) (models.Ticket, error)
	DeleteTicket(ctx context.Context, ticketID string) error
	DashboardStats(ctx context.Context, day string) (DashboardStats, error)
	GetSession(ctx context.Context, sessionID string) (Session, error)
}

type Session struct {
	SessionID string
	UserID    string
	Name      string
	Role      string
	ExpiresAt time.Time
}
