package models

import "time"

type Ticket struct {
	TicketID     string        `json:"ticket_id"`
	Date         string        `json:"date"`
	Time         string        `json:"time"`
	Subject      string        `json:"subject"`
	Status       string        `json:"status"`
	Response     string        `json:"response"`
	GuestName    string        `json:"guest_name,omitempty"`
	GuestCompany string        `json:"guest_company,omitempty"`
	GuestContact string        `json:"guest_contact,omitempty"`
	CreatedBy    *string       `json:"created_by,omitempty"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
	Participants []Participant `json:"participants"`
}

const (
	StatusWaiting   = "waiting"
	StatusInRoom    = "in_room"
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"
	StatusRejected  = "rejected"
)
