package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/iete-tsec/ascension-registration/handlers"
	"github.com/iete-tsec/ascension-registration/ledger"
	"github.com/iete-tsec/ascension-registration/models"
	"github.com/iete-tsec/ascension-registration/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testJWTSecret = "routes-test-secret"

type stubRegistrationService struct {
	submitted *models.Registration
	submitErr error
	proof     bool
}

func (s *stubRegistrationService) Submit(ctx context.Context, input services.SubmitInput, proof *services.ProofUpload) (*models.Registration, error) {
	if s.submitErr != nil {
		return nil, s.submitErr
	}
	if s.submitted != nil {
		return s.submitted, nil
	}
	return &models.Registration{
		ID:            1,
		TeamName:      input.TeamName,
		PaymentStatus: models.PaymentPendingVerification,
		RegisteredAt:  time.Date(2025, 8, 1, 12, 0, 0, 0, time.UTC),
	}, nil
}

func (s *stubRegistrationService) ProofRequired() bool { return s.proof }

type stubModerationService struct {
	regs      []models.Registration
	statusErr error
	deleteErr error

	lastID     int
	lastStatus models.PaymentStatus
	deletedID  int
}

func (s *stubModerationService) List(ctx context.Context) ([]models.Registration, error) {
	return s.regs, nil
}

func (s *stubModerationService) SetPaymentStatus(ctx context.Context, id int, status models.PaymentStatus) error {
	if s.statusErr != nil {
		return s.statusErr
	}
	s.lastID = id
	s.lastStatus = status
	return nil
}

func (s *stubModerationService) Delete(ctx context.Context, id int) error {
	if s.deleteErr != nil {
		return s.deleteErr
	}
	s.deletedID = id
	return nil
}

type stubAuthService struct{}

func (s *stubAuthService) Login(ctx context.Context, creds models.Credentials) (*models.Admin, error) {
	if creds.Email != "admin@ascension.com" || creds.Password != "hunter2hunter2" {
		return nil, services.ErrInvalidCredentials
	}
	return &models.Admin{ID: 1, Email: creds.Email}, nil
}

func (s *stubAuthService) EnsureAdmin(ctx context.Context, email, password string) error {
	return nil
}

type staticSource struct {
	teams []models.TeamSummary
}

func (s *staticSource) ListSummaries(ctx context.Context) ([]models.TeamSummary, error) {
	return s.teams, nil
}

type routerFixture struct {
	router     *chi.Mux
	regService *stubRegistrationService
	modService *stubModerationService
}

func newTestRouter(t *testing.T, teams ...models.TeamSummary) *routerFixture {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ldg := ledger.New(&staticSource{teams: teams}, 16, logger)
	require.NoError(t, ldg.Refresh(context.Background()))
	hub := ledger.NewHub(logger)

	regService := &stubRegistrationService{}
	modService := &stubModerationService{}

	router := chi.NewRouter()
	SetupRoutes(
		router,
		handlers.NewRegistrationHandler(regService, ldg, time.Time{}),
		handlers.NewAdminHandler(modService),
		handlers.NewAuthHandler(&stubAuthService{}, testJWTSecret),
		handlers.NewWebSocketHandler(hub, ldg),
		testJWTSecret,
		[]string{"*"},
	)
	return &routerFixture{router: router, regService: regService, modService: modService}
}

func (f *routerFixture) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(encoded)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func (f *routerFixture) login(t *testing.T) string {
	t.Helper()
	rec := f.do(t, http.MethodPost, "/admin/login", "", map[string]string{
		"email":    "admin@ascension.com",
		"password": "hunter2hunter2",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	token, ok := body["token"].(string)
	require.True(t, ok, "login response carries a token")
	require.NotEmpty(t, token)
	return token
}

func TestPublicStatusAndRoster(t *testing.T) {
	fixture := newTestRouter(t,
		models.TeamSummary{ID: 4, TeamName: "Alpha"},
		models.TeamSummary{ID: 9, TeamName: "Bravo"},
	)

	rec := fixture.do(t, http.MethodGet, "/registrations/status", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	status := decodeBody(t, rec)
	assert.Equal(t, float64(2), status["count"])
	assert.Equal(t, float64(16), status["capacity"])
	assert.Equal(t, false, status["closed"])
	assert.Equal(t, false, status["loading"])
	assert.Equal(t, false, status["proof_required"])

	rec = fixture.do(t, http.MethodGet, "/registrations", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	roster := decodeBody(t, rec)
	teams, ok := roster["teams"].([]any)
	require.True(t, ok)
	require.Len(t, teams, 2)

	// Slots are positional, database IDs stay private.
	first := teams[0].(map[string]any)
	assert.Equal(t, float64(1), first["slot"])
	assert.Equal(t, "Alpha", first["team_name"])
	assert.NotContains(t, first, "id")
}

func TestSubmitRoute(t *testing.T) {
	fixture := newTestRouter(t)

	payload := map[string]any{
		"team_name":     "Phoenix Five",
		"captain_name":  "Arjun Mehta",
		"captain_email": "arjun@example.com",
		"captain_phone": "9876543210",
		"players": []map[string]string{
			{"name": "Player Two", "valorant_id": "Duelist#1234"},
			{"name": "Player Three", "valorant_id": "Sentinel#5678"},
			{"name": "Player Four", "valorant_id": "Smokes#9012"},
			{"name": "Player Five", "valorant_id": "Flex#3456"},
		},
	}

	rec := fixture.do(t, http.MethodPost, "/registrations", "", payload)
	require.Equal(t, http.StatusCreated, rec.Code)
	body := decodeBody(t, rec)
	reg, ok := body["registration"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "Phoenix Five", reg["team_name"])
}

func TestSubmitRoute_ErrorMapping(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
	}{
		{"duplicate team name", services.ErrTeamNameTaken, http.StatusConflict},
		{"registration closed", services.ErrRegistrationClosed, http.StatusConflict},
		{"proof required", services.ErrProofRequired, http.StatusBadRequest},
		{
			"validation failure",
			&services.ValidationError{Fields: map[string]string{"team_name": "must be provided"}},
			http.StatusUnprocessableEntity,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fixture := newTestRouter(t)
			fixture.regService.submitErr = tt.err

			rec := fixture.do(t, http.MethodPost, "/registrations", "", map[string]any{
				"team_name": "whatever",
			})
			assert.Equal(t, tt.wantCode, rec.Code)
		})
	}
}

func TestAdminRoutesRequireToken(t *testing.T) {
	fixture := newTestRouter(t)

	routes := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/admin/session"},
		{http.MethodPost, "/admin/logout"},
		{http.MethodGet, "/admin/registrations"},
		{http.MethodPatch, "/admin/registrations/1/payment-status"},
		{http.MethodDelete, "/admin/registrations/1"},
	}

	for _, route := range routes {
		rec := fixture.do(t, route.method, route.path, "", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, "%s %s", route.method, route.path)
	}
}

func TestLoginSessionLogoutFlow(t *testing.T) {
	fixture := newTestRouter(t)

	// Wrong credentials never mint a token.
	rec := fixture.do(t, http.MethodPost, "/admin/login", "", map[string]string{
		"email":    "admin@ascension.com",
		"password": "wrong",
	})
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	token := fixture.login(t)

	rec = fixture.do(t, http.MethodGet, "/admin/session", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	session := decodeBody(t, rec)
	admin, ok := session["admin"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, float64(1), admin["id"])
	assert.Equal(t, "admin@ascension.com", admin["email"])

	rec = fixture.do(t, http.MethodPost, "/admin/logout", token, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	// Logout is stateless: the token keeps working until it expires.
	rec = fixture.do(t, http.MethodGet, "/admin/session", token, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAdminModerationRoutes(t *testing.T) {
	fixture := newTestRouter(t)
	fixture.modService.regs = []models.Registration{
		{ID: 1, TeamName: "Alpha", PaymentStatus: models.PaymentPendingVerification},
	}
	token := fixture.login(t)

	rec := fixture.do(t, http.MethodGet, "/admin/registrations", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	regs, ok := body["registrations"].([]any)
	require.True(t, ok)
	require.Len(t, regs, 1)

	rec = fixture.do(t, http.MethodPatch, "/admin/registrations/1/payment-status", token, map[string]string{
		"status": "approved",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, fixture.modService.lastID)
	assert.Equal(t, models.PaymentApproved, fixture.modService.lastStatus)

	rec = fixture.do(t, http.MethodDelete, "/admin/registrations/1", token, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, 1, fixture.modService.deletedID)
}

func TestAdminModerationRoutes_BadInput(t *testing.T) {
	fixture := newTestRouter(t)
	token := fixture.login(t)

	rec := fixture.do(t, http.MethodPatch, "/admin/registrations/not-a-number/payment-status", token, map[string]string{
		"status": "approved",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	fixture.modService.statusErr = services.ErrInvalidPaymentStatus
	rec = fixture.do(t, http.MethodPatch, "/admin/registrations/1/payment-status", token, map[string]string{
		"status": "pending_verification",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	fixture.modService.deleteErr = services.ErrRegistrationNotFound
	rec = fixture.do(t, http.MethodDelete, "/admin/registrations/404", token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
