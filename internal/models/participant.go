package models

// Participant is owned by its ticket. Rows are replaced wholesale on every
// ticket update, never merged.
type Participant struct {
	ParticipantID int64   `json:"participant_id"`
	PersonID      *string `json:"person_id"`
	Name          string  `json:"name"`
}
