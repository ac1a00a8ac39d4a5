package store

import (
	"errors"
	"testing"

	"vms/ticket-service/internal/models"
)

func TestNormalizeStatus(t *testing.T) {
	cases := []struct {
		label string
		want  string
		ok    bool
	}{
		{"waiting", models.StatusWaiting, true},
		{"Waiting", models.StatusWaiting, true},
		{"in_room", models.StatusInRoom, true},
		{"In The Room", models.StatusInRoom, true},
		{"InRoom", models.StatusInRoom, true},
		{"completed", models.StatusCompleted, true},
		{"Finished", models.StatusCompleted, true},
		{"cancelled", models.StatusCancelled, true},
		{"rejected", models.StatusRejected, true},
		{"Reject", models.StatusRejected, true},
		{"  waiting  ", models.StatusWaiting, true},
		{"overdue", "", false},
		{"scheduled", "", false},
		{"", "", false},
	}

	for _, tt := range cases {
		got, err := NormalizeStatus(tt.label)
		if tt.ok {
			if err != nil {
				t.Fatalf("NormalizeStatus(%q) unexpected error: %v", tt.label, err)
			}
			if got != tt.want {
				t.Fatalf("NormalizeStatus(%q)=%q, want %q", tt.label, got, tt.want)
			}
			continue
		}
		if !errors.Is(err, ErrInvalidStatus) {
			t.Fatalf("NormalizeStatus(%q) expected ErrInvalidStatus, got %v", tt.label, err)
		}
	}
}

func TestValidStatus(t *testing.T) {
	for _, status := range []string{
		models.StatusWaiting,
		models.StatusInRoom,
		models.StatusCompleted,
		models.StatusCancelled,
		models.StatusRejected,
	} {
		if !ValidStatus(status) {
			t.Fatalf("ValidStatus(%q)=false, want true", status)
		}
	}
	for _, status := range []string{"Waiting", "overdue", "done", ""} {
		if ValidStatus(status) {
			t.Fatalf("ValidStatus(%q)=true, want false", status)
		}
	}
}
