package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"vms/ticket-service/internal/models"
	"vms/ticket-service/internal/store"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const defaultAcquireTimeout = 5 * time.Second

type Store struct {
	pool           *pgxpool.Pool
	acquireTimeout time.Duration
}

type Options struct {
	AcquireTimeout time.Duration
}

func NewStore(pool *pgxpool.Pool, options Options) *Store {
	timeout := options.AcquireTimeout
	if timeout <= 0 {
		timeout = defaultAcquireTimeout
	}
	return &Store{
		pool:           pool,
		acquireTimeout: timeout,
	}
}

func (s *Store) withTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	return s.withConn(ctx, func(conn *pgxpool.Conn) error {
		tx, err := conn.BeginTx(ctx, pgx.TxOptions{})
		if err != nil {
			return err
		}
		defer func() {
			_ = tx.Rollback(ctx)
		}()
		if err := fn(tx); err != nil {
			return err
		}
		return tx.Commit(ctx)
	})
}

const ticketColumns = `
	t.ticket_id, to_char(t.date, 'YYYY-MM-DD'), to_char(t.time, 'HH24:MI'), t.subject, t.status, t.response,
	t.guest_name, t.guest_company, t.guest_contact, t.created_by, t.created_at, t.updated_at`

// participantsJSON aggregates child rows into an ordered JSON array so a
// ticket and its participant list come back in one scan. Zero participants
// yield an empty array, never null.
const participantsJSON = `
	COALESCE(json_agg(json_build_object(
		'participant_id', p.participant_id,
		'person_id', p.person_id,
		'name', p.name
	) ORDER BY p.participant_id) FILTER (WHERE p.participant_id IS NOT NULL), '[]')`

func (s *Store) CreateTicket(ctx context.Context, input store.CreateTicketInput) (models.Ticket, error) {
	ticketID := uuid.NewString()

	var ticket models.Ticket
	err := s.withTx(ctx, func(tx pgx.Tx) error {
		var guestName, guestCompany, guestContact, createdBy sql.NullString
		row := tx.QueryRow(ctx, `
			INSERT INTO tickets (ticket_id, date, time, subject, status, response, guest_name, guest_company, guest_contact, created_by)
			VALUES ($1, $2, $3, $4, $5, '', $6, $7, $8, $9)
			RETURNING ticket_id, to_char(date, 'YYYY-MM-DD'), to_char(time, 'HH24:MI'), subject, status, response,
				guest_name, guest_company, guest_contact, created_by, created_at, updated_at
		`, ticketID, input.Date, input.Time, input.Subject, models.StatusWaiting,
			nullIfEmpty(input.GuestName), nullIfEmpty(input.GuestCompany), nullIfEmpty(input.GuestContact), nullIfEmpty(input.CreatedBy))
		if err := row.Scan(&ticket.TicketID, &ticket.Date, &ticket.Time, &ticket.Subject, &ticket.Status, &ticket.Response,
			&guestName, &guestCompany, &guestContact, &createdBy, &ticket.CreatedAt, &ticket.UpdatedAt); err != nil {
			return err
		}
		setGuestFields(&ticket, guestName, guestCompany, guestContact)
		ticket.CreatedBy = nullStringPtr(createdBy)

		participants, err := insertParticipants(ctx, tx, ticketID, input.Participants)
		if err != nil {
			return err
		}
		ticket.Participants = participants
		return nil
	})
	if err != nil {
		return models.Ticket{}, err
	}
	return ticket, nil
}

func (s *Store) GetTicket(ctx context.Context, ticketID string) (models.Ticket, error) {
	var ticket models.Ticket
	err := s.withConn(ctx, func(conn *pgxpool.Conn) error {
		row := conn.QueryRow(ctx, `
			SELECT `+ticketColumns+`, `+participantsJSON+` AS participants
			FROM tickets t
			LEFT JOIN ticket_participants p ON p.ticket_id = t.ticket_id
			WHERE t.ticket_id = $1
			GROUP BY t.ticket_id
		`, ticketID)
		scanned, err := scanTicketRow(row)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return store.ErrTicketNotFound
			}
			return err
		}
		ticket = scanned
		return nil
	})
	if err != nil {
		return models.Ticket{}, err
	}
	return ticket, nil
}

func (s *Store) ListTickets(ctx context.Context, filter store.ListFilter) ([]models.Ticket, error) {
	var clauses []string
	var args []interface{}
	if len(filter.Statuses) > 0 {
		args = append(args, filter.Statuses)
		clauses = append(clauses, fmt.Sprintf("t.status = ANY($%d)", len(args)))
	}
	if filter.Date != "" {
		args = append(args, filter.Date)
		clauses = append(clauses, fmt.Sprintf("t.date = $%d", len(args)))
	}
	where := ""
	if len(clauses) > 0 {
		where = "WHERE " + strings.Join(clauses, " AND ")
	}
	return s.selectTickets(ctx, where, "ORDER BY t.date ASC, t.time ASC", args...)
}

func (s *Store) ListAllTickets(ctx context.Context) ([]models.Ticket, error) {
	return s.selectTickets(ctx, "", "ORDER BY t.date DESC, t.time ASC")
}

func (s *Store) selectTickets(ctx context.Context, where, orderBy string, args ...interface{}) ([]models.Ticket, error) {
	query := `
		SELECT ` + ticketColumns + `, ` + participantsJSON + ` AS participants
		FROM tickets t
		LEFT JOIN ticket_participants p ON p.ticket_id = t.ticket_id
		` + where + `
		GROUP BY t.ticket_id
		` + orderBy

	var tickets []models.Ticket
	err := s.withConn(ctx, func(conn *pgxpool.Conn) error {
		rows, err := conn.Query(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			ticket, err := scanTicketRow(rows)
			if err != nil {
				return err
			}
			tickets = append(tickets, ticket)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return tickets, nil
}

func (s *Store) UpdateTicket(ctx context.Context, ticketID string, input store.UpdateTicketInput) (models.Ticket, error) {
	var ticket models.Ticket
	err := s.withTx(ctx, func(tx pgx.Tx) error {
		var guestName, guestCompany, guestContact, createdBy sql.NullString
		row := tx.QueryRow(ctx, `
			UPDATE tickets
			SET date = $1, time = $2, subject = $3, response = $4,
				guest_name = $5, guest_company = $6, guest_contact = $7,
				updated_at = NOW()
			WHERE ticket_id = $8
			RETURNING ticket_id, to_char(date, 'YYYY-MM-DD'), to_char(time, 'HH24:MI'), subject, status, response,
				guest_name, guest_company, guest_contact, created_by, created_at, updated_at
		`, input.Date, input.Time, input.Subject, input.Response,
			nullIfEmpty(input.GuestName), nullIfEmpty(input.GuestCompany), nullIfEmpty(input.GuestContact), ticketID)
		if err := row.Scan(&ticket.TicketID, &ticket.Date, &ticket.Time, &ticket.Subject, &ticket.Status, &ticket.Response,
			&guestName, &guestCompany, &guestContact, &createdBy, &ticket.CreatedAt, &ticket.UpdatedAt); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return store.ErrTicketNotFound
			}
			return err
		}
		setGuestFields(&ticket, guestName, guestCompany, guestContact)
		ticket.CreatedBy = nullStringPtr(createdBy)

		// Replace-all: the stored participant list becomes exactly the
		// supplied list, in the supplied order.
		if _, err := tx.Exec(ctx, `
			DELETE FROM ticket_participants
			WHERE ticket_id = $1
		`, ticketID); err != nil {
			return err
		}

		participants, err := insertParticipants(ctx, tx, ticketID, input.Participants)
		if err != nil {
			return err
		}
		ticket.Participants = participants
		return nil
	})
	if err != nil {
		return models.Ticket{}, err
	}
	return ticket, nil
}

func (s *Store) UpdateStatus(ctx context.Context, ticketID, status string) (models.Ticket, error) {
	if !store.ValidStatus(status) {
		return models.Ticket{}, store.ErrInvalidStatus
	}

	var ticket models.Ticket
	err := s.withTx(ctx, func(tx pgx.Tx) error {
		var guestName, guestCompany, guestContact, createdBy sql.NullString
		row := tx.QueryRow(ctx, `
			UPDATE tickets
			SET status = $1, updated_at = NOW()
			WHERE ticket_id = $2
			RETURNING ticket_id, to_char(date, 'YYYY-MM-DD'), to_char(time, 'HH24:MI'), subject, status, response,
				guest_name, guest_company, guest_contact, created_by, created_at, updated_at
		`, status, ticketID)
		if err := row.Scan(&ticket.TicketID, &ticket.Date, &ticket.Time, &ticket.Subject, &ticket.Status, &ticket.Response,
			&guestName, &guestCompany, &guestContact, &createdBy, &ticket.CreatedAt, &ticket.UpdatedAt); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return store.ErrTicketNotFound
			}
			return err
		}
		setGuestFields(&ticket, guestName, guestCompany, guestContact)
		ticket.CreatedBy = nullStringPtr(createdBy)

		participants, err := selectParticipants(ctx, tx, ticketID)
		if err != nil {
			return err
		}
		ticket.Participants = participants
		return nil
	})
	if err != nil {
		return models.Ticket{}, err
	}
	return ticket, nil
}

func (s *Store) DeleteTicket(ctx context.Context, ticketID string) error {
	return s.withConn(ctx, func(conn *pgxpool.Conn) error {
		// ticket_participants rows go with the ticket via ON DELETE CASCADE.
		tag, err := conn.Exec(ctx, `
			DELETE FROM tickets
			WHERE ticket_id = $1
		`, ticketID)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return store.ErrTicketNotFound
		}
		return nil
	})
}

// DashboardStats computes every counter in a single scan over the ticket
// table; per-status buckets are restricted to the given day.
func (s *Store) DashboardStats(ctx context.Context, day string) (store.DashboardStats, error) {
	var stats store.DashboardStats
	err := s.withConn(ctx, func(conn *pgxpool.Conn) error {
		row := conn.QueryRow(ctx, `
			SELECT
				COUNT(*) FILTER (WHERE status = 'waiting' AND date = $1),
				COUNT(*) FILTER (WHERE status = 'in_room' AND date = $1),
				COUNT(*) FILTER (WHERE status = 'completed' AND date = $1),
				COUNT(*) FILTER (WHERE status = 'cancelled' AND date = $1),
				COUNT(*) FILTER (WHERE status = 'rejected' AND date = $1),
				COUNT(*) FILTER (WHERE date = $1),
				COUNT(*)
			FROM tickets
		`, day)
		return row.Scan(&stats.Waiting, &stats.InRoom, &stats.Completed, &stats.Cancelled, &stats.Rejected, &stats.TotalToday, &stats.TotalAll)
	})
	if err != nil {
		return store.DashboardStats{}, err
	}
	return stats, nil
}

func (s *Store) GetSession(ctx context.Context, sessionID string) (store.Session, error) {
	var session store.Session
	err := s.withConn(ctx, func(conn *pgxpool.Conn) error {
		row := conn.QueryRow(ctx, `
			SELECT s.session_id, s.user_id, u.name, u.role, s.expires_at
			FROM sessions s
			JOIN users u ON u.user_id = s.user_id
			WHERE s.session_id = $1 AND s.expires_at > NOW() AND u.active = TRUE
		`, sessionID)
		if err := row.Scan(&session.SessionID, &session.UserID, &session.Name, &session.Role, &session.ExpiresAt); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return store.ErrSessionNotFound
			}
			return err
		}
		return nil
	})
	if err != nil {
		return store.Session{}, err
	}
	return session, nil
}

func insertParticipants(ctx context.Context, tx pgx.Tx, ticketID string, inputs []store.ParticipantInput) ([]models.Participant, error) {
	participants := make([]models.Participant, 0, len(inputs))
	for _, input := range inputs {
		var participant models.Participant
		row := tx.QueryRow(ctx, `
			INSERT INTO ticket_participants (ticket_id, person_id, name)
			VALUES ($1, $2, $3)
			RETURNING participant_id
		`, ticketID, nullIfEmpty(input.PersonID), input.Name)
		if err := row.Scan(&participant.ParticipantID); err != nil {
			return nil, err
		}
		participant.Name = input.Name
		if input.PersonID != "" {
			personID := input.PersonID
			participant.PersonID = &personID
		}
		participants = append(participants, participant)
	}
	return participants, nil
}

func selectParticipants(ctx context.Context, tx pgx.Tx, ticketID string) ([]models.Participant, error) {
	rows, err := tx.Query(ctx, `
		SELECT participant_id, person_id, name
		FROM ticket_participants
		WHERE ticket_id = $1
		ORDER BY participant_id ASC
	`, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	participants := make([]models.Participant, 0)
	for rows.Next() {
		var participant models.Participant
		var personID sql.NullString
		if err := rows.Scan(&participant.ParticipantID, &personID, &participant.Name); err != nil {
			return nil, err
		}
		participant.PersonID = nullStringPtr(personID)
		participants = append(participants, participant)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return participants, nil
}

func scanTicketRow(row pgx.Row) (models.Ticket, error) {
	var ticket models.Ticket
	var guestName, guestCompany, guestContact, createdBy sql.NullString
	var participantsRaw []byte
	if err := row.Scan(&ticket.TicketID, &ticket.Date, &ticket.Time, &ticket.Subject, &ticket.Status, &ticket.Response,
		&guestName, &guestCompany, &guestContact, &createdBy, &ticket.CreatedAt, &ticket.UpdatedAt, &participantsRaw); err != nil {
		return models.Ticket{}, err
	}
	setGuestFields(&ticket, guestName, guestCompany, guestContact)
	ticket.CreatedBy = nullStringPtr(createdBy)
	if err := json.Unmarshal(participantsRaw, &ticket.Participants); err != nil {
		return models.Ticket{}, err
	}
	if ticket.Participants == nil {
		ticket.Participants = []models.Participant{}
	}
	return ticket, nil
}

func setGuestFields(ticket *models.Ticket, name, company, contact sql.NullString) {
	if name.Valid {
		ticket.GuestName = name.String
	}
	if company.Valid {
		ticket.GuestCompany = company.String
	}
	if contact.Valid {
		ticket.GuestContact = contact.String
	}
}

func nullIfEmpty(value string) interface{} {
	if value == "" {
		return nil
	}
	return value
}

func nullStringPtr(value sql.NullString) *string {
	if !value.Valid {
		return nil
	}
	return &value.String
}
