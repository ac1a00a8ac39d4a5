package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"vms/ticket-service/internal/models"
	"vms/ticket-service/internal/store"
)

const testTicketID = "4f9f24e1-0f0e-4bcb-b3a1-6c5f2a4b8d11"

type fakeStore struct {
	createTicketFn   func(ctx context.Context, input store.CreateTicketInput) (models.Ticket, error)
	getTicketFn      func(ctx context.Context, ticketID string) (models.Ticket, error)
	listTicketsFn    func(ctx context.Context, filter store.ListFilter) ([]models.Ticket, error)
	listAllFn        func(ctx context.Context) ([]models.Ticket, error)
	updateTicketFn   func(ctx context.Context, ticketID string, input store.UpdateTicketInput) (models.Ticket, error)
	updateStatusFn   func(ctx context.Context, ticketID, status string) (models.Ticket, error)
	deleteTicketFn   func(ctx context.Context, ticketID string) error
	dashboardFn      func(ctx context.Context, day string) (store.DashboardStats, error)
	getSessionFn     func(ctx context.Context, sessionID string) (store.Session, error)
	createCalls      int
	listCalls        int
	updateStatusCall int
	dashboardCalls   int
}

func (f *fakeStore) CreateTicket(ctx context.Context, input store.CreateTicketInput) (models.Ticket, error) {
	f.createCalls++
	if f.createTicketFn != nil {
		return f.createTicketFn(ctx, input)
	}
	return models.Ticket{TicketID: testTicketID, Status: models.StatusWaiting}, nil
}

func (f *fakeStore) GetTicket(ctx context.Context, ticketID string) (models.Ticket, error) {
	if f.getTicketFn != nil {
		return f.getTicketFn(ctx, ticketID)
	}
	return models.Ticket{TicketID: ticketID}, nil
}

func (f *fakeStore) ListTickets(ctx context.Context, filter store.ListFilter) ([]models.Ticket, error) {
	f.listCalls++
	if f.listTicketsFn != nil {
		return f.listTicketsFn(ctx, filter)
	}
	return []models.Ticket{}, nil
}

func (f *fakeStore) ListAllTickets(ctx context.Context) ([]models.Ticket, error) {
	if f.listAllFn != nil {
		return f.listAllFn(ctx)
	}
	return []models.Ticket{}, nil
}

func (f *fakeStore) UpdateTicket(ctx context.Context, ticketID string, input store.UpdateTicketInput) (models.Ticket, error) {
	if f.updateTicketFn != nil {
		return f.updateTicketFn(ctx, ticketID, input)
	}
	return models.Ticket{TicketID: ticketID}, nil
}

func (f *fakeStore) UpdateStatus(ctx context.Context, ticketID, status string) (models.Ticket, error) {
	f.updateStatusCall++
	if f.updateStatusFn != nil {
		return f.updateStatusFn(ctx, ticketID, status)
	}
	return models.Ticket{TicketID: ticketID, Status: status}, nil
}

func (f *fakeStore) DeleteTicket(ctx context.Context, ticketID string) error {
	if f.deleteTicketFn != nil {
		return f.deleteTicketFn(ctx, ticketID)
	}
	return nil
}

func (f *fakeStore) DashboardStats(ctx context.Context, day string) (store.DashboardStats, error) {
	f.dashboardCalls++
	if f.dashboardFn != nil {
		return f.dashboardFn(ctx, day)
	}
	return store.DashboardStats{}, nil
}

func (f *fakeStore) GetSession(ctx context.Context, sessionID string) (store.Session, error) {
	if f.getSessionFn != nil {
		return f.getSessionFn(ctx, sessionID)
	}
	return store.Session{}, store.ErrSessionNotFound
}

func doRequest(t *testing.T, h *Handler, method, path, body string, session *store.Session) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body == "" {
		reader = bytes.NewReader(nil)
	} else {
		reader = bytes.NewReader([]byte(body))
	}
	req := httptest.NewRequest(method, path, reader)
	if session != nil {
		req = req.WithContext(context.WithValue(req.Context(), sessionContextKey{}, *session))
	}
	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, req)
	return rec
}

func receptionistSession() *store.Session {
	return &store.Session{SessionID: "sess-1", UserID: "user-1", Name: "Front Desk", Role: RoleReceptionist}
}

func adminSession() *store.Session {
	return &store.Session{SessionID: "sess-2", UserID: "user-2", Name: "Admin", Role: RoleAdmin}
}

func approverSession() *store.Session {
	return &store.Session{SessionID: "sess-3", UserID: "user-3", Name: "Approver", Role: RoleApprover}
}

func TestListDefaultsToActiveStatuses(t *testing.T) {
	fs := &fakeStore{}
	var gotFilter store.ListFilter
	fs.listTicketsFn = func(ctx context.Context, filter store.ListFilter) ([]models.Ticket, error) {
		gotFilter = filter
		return []models.Ticket{}, nil
	}
	h := NewHandler(fs)

	rec := doRequest(t, h, http.MethodGet, "/api/tickets", "", receptionistSession())
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if len(gotFilter.Statuses) != 2 ||
		gotFilter.Statuses[0] != models.StatusWaiting ||
		gotFilter.Statuses[1] != models.StatusInRoom {
		t.Fatalf("default filter = %v, want [waiting in_room]", gotFilter.Statuses)
	}
}

func TestListStatusAliasNormalized(t *testing.T) {
	fs := &fakeStore{}
	var gotFilter store.ListFilter
	fs.listTicketsFn = func(ctx context.Context, filter store.ListFilter) ([]models.Ticket, error) {
		gotFilter = filter
		return []models.Ticket{}, nil
	}
	h := NewHandler(fs)

	rec := doRequest(t, h, http.MethodGet, "/api/tickets?status=In+The+Room", "", receptionistSession())
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if len(gotFilter.Statuses) != 1 || gotFilter.Statuses[0] != models.StatusInRoom {
		t.Fatalf("filter = %v, want [in_room]", gotFilter.Statuses)
	}
}

func TestListRejectsUnknownStatus(t *testing.T) {
	fs := &fakeStore{}
	h := NewHandler(fs)

	rec := doRequest(t, h, http.MethodGet, "/api/tickets?status=overdue", "", receptionistSession())
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if fs.listCalls != 0 {
		t.Fatalf("store touched %d times for an invalid status", fs.listCalls)
	}
	var resp errorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding error body: %v", err)
	}
	if resp.Kind != "validation_error" || resp.Success {
		t.Fatalf("unexpected error body: %+v", resp)
	}
}

func TestListResponseShape(t *testing.T) {
	fs := &fakeStore{}
	fs.listTicketsFn = func(ctx context.Context, filter store.ListFilter) ([]models.Ticket, error) {
		return []models.Ticket{
			{TicketID: testTicketID, Status: models.StatusWaiting, Participants: []models.Participant{}},
		}, nil
	}
	h := NewHandler(fs)

	rec := doRequest(t, h, http.MethodGet, "/api/tickets", "", receptionistSession())
	var resp struct {
		Success bool            `json:"success"`
		Data    []models.Ticket `json:"data"`
		Count   int             `json:"count"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if !resp.Success || resp.Count != 1 || len(resp.Data) != 1 {
		t.Fatalf("unexpected list body: %s", rec.Body.String())
	}
}

func TestCreateTicket(t *testing.T) {
	fs := &fakeStore{}
	var gotInput store.CreateTicketInput
	fs.createTicketFn = func(ctx context.Context, input store.CreateTicketInput) (models.Ticket, error) {
		gotInput = input
		return models.Ticket{
			TicketID:     testTicketID,
			Date:         input.Date,
			Time:         input.Time,
			Subject:      input.Subject,
			Status:       models.StatusWaiting,
			Participants: []models.Participant{},
		}, nil
	}
	h := NewHandler(fs)

	body := `{"date":"2026-03-05","time":"14:30","subject":"Quarterly review","participants":["Dewi","Bayu"]}`
	rec := doRequest(t, h, http.MethodPost, "/api/tickets", body, receptionistSession())
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if gotInput.Subject != "Quarterly review" || gotInput.Date != "2026-03-05" || gotInput.Time != "14:30" {
		t.Fatalf("store input mismatch: %+v", gotInput)
	}
	if len(gotInput.Participants) != 2 || gotInput.Participants[0].Name != "Dewi" {
		t.Fatalf("participants mismatch: %+v", gotInput.Participants)
	}
	if gotInput.CreatedBy != "user-1" {
		t.Fatalf("CreatedBy = %q, want user-1", gotInput.CreatedBy)
	}
}

func TestCreateValidation(t *testing.T) {
	fs := &fakeStore{}
	h := NewHandler(fs)

	cases := []struct {
		name string
		body string
	}{
		{"missing subject", `{"date":"2026-03-05","time":"14:30"}`},
		{"bad date", `{"date":"05-03-2026","time":"14:30","subject":"x"}`},
		{"bad time", `{"date":"2026-03-05","time":"2pm","subject":"x"}`},
		{"not json", `not json`},
		{"unknown field", `{"date":"2026-03-05","time":"14:30","subject":"x","bogus":1}`},
	}
	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(t, h, http.MethodPost, "/api/tickets", tt.body, receptionistSession())
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
			}
		})
	}
	if fs.createCalls != 0 {
		t.Fatalf("store touched %d times for invalid payloads", fs.createCalls)
	}
}

func TestCreateRequiresWriterRole(t *testing.T) {
	fs := &fakeStore{}
	h := NewHandler(fs)

	body := `{"date":"2026-03-05","time":"14:30","subject":"x"}`
	rec := doRequest(t, h, http.MethodPost, "/api/tickets", body, approverSession())
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
	if fs.createCalls != 0 {
		t.Fatal("store touched despite role rejection")
	}
}

func TestGetTicketNotFound(t *testing.T) {
	fs := &fakeStore{}
	fs.getTicketFn = func(ctx context.Context, ticketID string) (models.Ticket, error) {
		return models.Ticket{}, store.ErrTicketNotFound
	}
	h := NewHandler(fs)

	rec := doRequest(t, h, http.MethodGet, "/api/tickets/"+testTicketID, "", receptionistSession())
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	var resp errorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding error body: %v", err)
	}
	if resp.Kind != "not_found" {
		t.Fatalf("kind = %q, want not_found", resp.Kind)
	}
}

func TestGetTicketRejectsBadID(t *testing.T) {
	fs := &fakeStore{}
	h := NewHandler(fs)

	rec := doRequest(t, h, http.MethodGet, "/api/tickets/not-a-uuid", "", receptionistSession())
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestStatusPatchInvalidLabel(t *testing.T) {
	fs := &fakeStore{}
	h := NewHandler(fs)

	body := `{"status":"overdue"}`
	rec := doRequest(t, h, http.MethodPatch, "/api/tickets/"+testTicketID+"/status", body, approverSession())
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
	}
	if fs.updateStatusCall != 0 {
		t.Fatal("store touched for an invalid status label")
	}
}

func TestStatusPatchNormalizesAlias(t *testing.T) {
	fs := &fakeStore{}
	var gotStatus string
	fs.updateStatusFn = func(ctx context.Context, ticketID, status string) (models.Ticket, error) {
		gotStatus = status
		return models.Ticket{TicketID: ticketID, Status: status}, nil
	}
	h := NewHandler(fs)

	rec := doRequest(t, h, http.MethodPatch, "/api/tickets/"+testTicketID+"/status", `{"status":"Finished"}`, approverSession())
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if gotStatus != models.StatusCompleted {
		t.Fatalf("store received status %q, want %q", gotStatus, models.StatusCompleted)
	}
}

func TestUpdateAcceptsEmptyParticipants(t *testing.T) {
	fs := &fakeStore{}
	var gotInput store.UpdateTicketInput
	fs.updateTicketFn = func(ctx context.Context, ticketID string, input store.UpdateTicketInput) (models.Ticket, error) {
		gotInput = input
		return models.Ticket{TicketID: ticketID, Participants: []models.Participant{}}, nil
	}
	h := NewHandler(fs)

	body := `{"date":"2026-03-05","time":"09:00","subject":"Rescheduled","participants":[]}`
	rec := doRequest(t, h, http.MethodPut, "/api/tickets/"+testTicketID, body, receptionistSession())
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if gotInput.Participants == nil || len(gotInput.Participants) != 0 {
		t.Fatalf("participants = %v, want empty non-nil slice", gotInput.Participants)
	}
}

func TestDeleteTicket(t *testing.T) {
	fs := &fakeStore{}
	deleted := ""
	fs.deleteTicketFn = func(ctx context.Context, ticketID string) error {
		deleted = ticketID
		return nil
	}
	h := NewHandler(fs)

	rec := doRequest(t, h, http.MethodDelete, "/api/tickets/"+testTicketID, "", adminSession())
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if deleted != testTicketID {
		t.Fatalf("deleted id = %q, want %q", deleted, testTicketID)
	}
}

func TestDashboardSingleStoreCall(t *testing.T) {
	fs := &fakeStore{}
	fs.dashboardFn = func(ctx context.Context, day string) (store.DashboardStats, error) {
		return store.DashboardStats{Waiting: 2, Completed: 1, TotalToday: 3, TotalAll: 10}, nil
	}
	h := NewHandler(fs)

	rec := doRequest(t, h, http.MethodGet, "/api/tickets/stats/dashboard", "", adminSession())
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if fs.dashboardCalls != 1 {
		t.Fatalf("dashboard hit the store %d times, want exactly 1", fs.dashboardCalls)
	}
	var resp struct {
		Data store.DashboardStats `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if resp.Data.Waiting != 2 || resp.Data.TotalAll != 10 {
		t.Fatalf("unexpected stats: %+v", resp.Data)
	}
}

func TestListAllRequiresAdmin(t *testing.T) {
	fs := &fakeStore{}
	h := NewHandler(fs)

	rec := doRequest(t, h, http.MethodGet, "/api/tickets/all", "", receptionistSession())
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
	rec = doRequest(t, h, http.MethodGet, "/api/tickets/all", "", adminSession())
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for admin, got %d", rec.Code)
	}
}

func TestPoolTimeoutMapsTo503(t *testing.T) {
	fs := &fakeStore{}
	fs.listTicketsFn = func(ctx context.Context, filter store.ListFilter) ([]models.Ticket, error) {
		return nil, store.ErrPoolTimeout
	}
	h := NewHandler(fs)

	rec := doRequest(t, h, http.MethodGet, "/api/tickets", "", receptionistSession())
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
	var resp errorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding error body: %v", err)
	}
	if resp.Kind != "pool_timeout" {
		t.Fatalf("kind = %q, want pool_timeout", resp.Kind)
	}
}

func TestGuestCreateMapsFields(t *testing.T) {
	fs := &fakeStore{}
	var gotInput store.CreateTicketInput
	fs.createTicketFn = func(ctx context.Context, input store.CreateTicketInput) (models.Ticket, error) {
		gotInput = input
		return models.Ticket{
			TicketID:     testTicketID,
			Date:         input.Date,
			Time:         input.Time,
			Subject:      input.Subject,
			Status:       models.StatusWaiting,
			GuestName:    input.GuestName,
			GuestCompany: input.GuestCompany,
			Participants: []models.Participant{},
		}, nil
	}
	h := NewHandler(fs)

	body := `{"appointment_time":"2026-03-05 14:30","purpose":"Vendor meeting","guest":{"name":"Sari","company":"PT Makmur"},"participants":[{"name":"Dewi","person_id":"emp-7"}]}`
	rec := doRequest(t, h, http.MethodPost, "/api/guest-tickets", body, receptionistSession())
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if gotInput.Date != "2026-03-05" || gotInput.Time != "14:30" {
		t.Fatalf("appointment split mismatch: date=%q time=%q", gotInput.Date, gotInput.Time)
	}
	if gotInput.Subject != "Vendor meeting" || gotInput.GuestName != "Sari" {
		t.Fatalf("store input mismatch: %+v", gotInput)
	}
	if len(gotInput.Participants) != 1 || gotInput.Participants[0].PersonID != "emp-7" {
		t.Fatalf("participants mismatch: %+v", gotInput.Participants)
	}

	var resp struct {
		Data guestTicketView `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if resp.Data.AppointmentTime != "2026-03-05 14:30" || resp.Data.Purpose != "Vendor meeting" {
		t.Fatalf("guest view mismatch: %+v", resp.Data)
	}
}

func TestGuestCreateAcceptsRFC3339(t *testing.T) {
	fs := &fakeStore{}
	var gotInput store.CreateTicketInput
	fs.createTicketFn = func(ctx context.Context, input store.CreateTicketInput) (models.Ticket, error) {
		gotInput = input
		return models.Ticket{TicketID: testTicketID, Date: input.Date, Time: input.Time}, nil
	}
	h := NewHandler(fs)

	body := `{"appointment_time":"2026-03-05T14:30:00Z","purpose":"Site visit"}`
	rec := doRequest(t, h, http.MethodPost, "/api/guest-tickets", body, receptionistSession())
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if gotInput.Date != "2026-03-05" || gotInput.Time != "14:30" {
		t.Fatalf("appointment split mismatch: date=%q time=%q", gotInput.Date, gotInput.Time)
	}
}

func TestGuestCreateRejectsBadAppointmentTime(t *testing.T) {
	fs := &fakeStore{}
	h := NewHandler(fs)

	body := `{"appointment_time":"tomorrow at noon","purpose":"Site visit"}`
	rec := doRequest(t, h, http.MethodPost, "/api/guest-tickets", body, receptionistSession())
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if fs.createCalls != 0 {
		t.Fatal("store touched for an unparseable appointment_time")
	}
}

func TestHealthzNeedsNoSession(t *testing.T) {
	fs := &fakeStore{}
	h := NewHandler(fs)
	srv := AuthMiddleware(fs, h.Routes())

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "OK") {
		t.Fatalf("unexpected health body: %s", rec.Body.String())
	}
}

func TestAuthMiddlewareRejectsMissingToken(t *testing.T) {
	fs := &fakeStore{}
	h := NewHandler(fs)
	srv := AuthMiddleware(fs, h.Routes())

	req := httptest.NewRequest(http.MethodGet, "/api/tickets", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestAuthMiddlewareResolvesBearerToken(t *testing.T) {
	fs := &fakeStore{}
	fs.getSessionFn = func(ctx context.Context, sessionID string) (store.Session, error) {
		if sessionID != "sess-9" {
			return store.Session{}, store.ErrSessionNotFound
		}
		return store.Session{SessionID: "sess-9", UserID: "user-9", Role: RoleAdmin}, nil
	}
	h := NewHandler(fs)
	srv := AuthMiddleware(fs, h.Routes())

	req := httptest.NewRequest(http.MethodGet, "/api/tickets/all", nil)
	req.Header.Set("Authorization", "Bearer sess-9")
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestAuthMiddlewareExpiredSession(t *testing.T) {
	fs := &fakeStore{}
	fs.getSessionFn = func(ctx context.Context, sessionID string) (store.Session, error) {
		return store.Session{}, store.ErrSessionNotFound
	}
	h := NewHandler(fs)
	srv := AuthMiddleware(fs, h.Routes())

	req := httptest.NewRequest(http.MethodGet, "/api/tickets", nil)
	req.Header.Set("X-Session-ID", "stale")
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}
