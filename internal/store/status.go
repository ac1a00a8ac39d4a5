package store

import (
	"strings"

	"vms/ticket-service/internal/models"
)

// statusAliases maps the labels the two legacy route families used on the
// wire onto the canonical set. Matching is case-insensitive.
var statusAliases = map[string]string{
	"waiting":     models.StatusWaiting,
	"in_room":     models.StatusInRoom,
	"in-room":     models.StatusInRoom,
	"inroom":      models.StatusInRoom,
	"in the room": models.StatusInRoom,
	"completed":   models.StatusCompleted,
	"finished":    models.StatusCompleted,
	"cancelled":   models.StatusCancelled,
	"rejected":    models.StatusRejected,
	"reject":      models.StatusRejected,
}

// NormalizeStatus resolves a wire label to its canonical status value.
// Unrecognized labels return ErrInvalidStatus; callers must reject those
// before touching storage.
func NormalizeStatus(label string) (string, error) {
	key := strings.ToLower(strings.TrimSpace(label))
	status, ok := statusAliases[key]
	if !ok {
		return "", ErrInvalidStatus
	}
	return status, nil
}

func ValidStatus(status string) bool {
	switch status {
	case models.StatusWaiting, models.StatusInRoom, models.StatusCompleted, models.StatusCancelled, models.StatusRejected:
		return true
	default:
		return false
	}
}
