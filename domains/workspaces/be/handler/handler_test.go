package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/lumenboard/lumenboard/domains/workspaces/be/repo"
	"github.com/lumenboard/lumenboard/domains/workspaces/be/service"
)

type stubProvisioner struct {
	createErr error
}

func (s stubProvisioner) CreateDatabase(ctx context.Context, name, region string) (service.Resource, error) {
	if s.createErr != nil {
		return service.Resource{}, s.createErr
	}
	return service.Resource{ID: "proj-1", ConnectionURI: "postgres://tenant/" + name}, nil
}

func (s stubProvisioner) DeleteDatabase(ctx context.Context, resourceID string) error {
	return nil
}

type stubWaiter struct {
	err error
}

func (s stubWaiter) WaitUntilReady(ctx context.Context, connURI string, timeout time.Duration) error {
	return s.err
}

type stubBootstrapper struct{}

func (stubBootstrapper) RunMigrations(ctx context.Context, connURI string) error {
	return nil
}

func (stubBootstrapper) SeedInitialData(ctx context.Context, connURI string, seed service.Seed) (uuid.UUID, error) {
	return uuid.New(), nil
}

func (stubBootstrapper) IssueOneTimeToken(ctx context.Context, connURI string, userID uuid.UUID) (string, error) {
	return "handoff-token", nil
}

type stubTokens struct {
	checkErr error
}

func (s stubTokens) CheckToken(ctx context.Context, email, token string) error {
	return s.checkErr
}

func (s stubTokens) ConsumeToken(ctx context.Context, email string) error {
	return nil
}

type fixture struct {
	provisioner stubProvisioner
	waiter      stubWaiter
	tokens      stubTokens
}

func newTestRouter(t *testing.T, fx fixture) http.Handler {
	t.Helper()
	svc := service.New(repo.NewMemoryRepository(), fx.provisioner, fx.waiter, stubBootstrapper{}, fx.tokens, zaptest.NewLogger(t), service.Config{
		BaseDomain:   "lumenboard.test",
		ReadyTimeout: 100 * time.Millisecond,
	})
	h := New(svc, zaptest.NewLogger(t))

	r := chi.NewRouter()
	h.Register(r)
	h.RegisterProvisioning(r)
	return r
}

func doRequest(t *testing.T, router http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

const createBody = `{"email":"owner@acme.com","name":"Acme","slug":"acme","verificationToken":"tok"}`

func TestCreateWorkspaceSuccess(t *testing.T) {
	t.Parallel()

	router := newTestRouter(t, fixture{})

	rec := doRequest(t, router, http.MethodPost, "/signup/workspaces", createBody)
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp struct {
		Success     bool   `json:"success"`
		WorkspaceID string `json:"workspaceId"`
		Slug        string `json:"slug"`
		RedirectURL string `json:"redirectUrl"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.True(t, resp.Success)
	require.Equal(t, "acme", resp.Slug)
	_, err := uuid.Parse(resp.WorkspaceID)
	require.NoError(t, err)
	require.Contains(t, resp.RedirectURL, "https://acme.lumenboard.test/auth/handoff?token=handoff-token")
}

func TestCreateWorkspaceStatusMapping(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		fx     fixture
		status int
	}{
		{"invalid token", fixture{tokens: stubTokens{checkErr: service.ErrInvalidToken}}, http.StatusBadRequest},
		{"provider failure", fixture{provisioner: stubProvisioner{createErr: service.ErrProvisioningFailed}}, http.StatusBadGateway},
		{"readiness timeout", fixture{waiter: stubWaiter{err: service.ErrProvisioningTimeout}}, http.StatusGatewayTimeout},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			router := newTestRouter(t, tt.fx)
			rec := doRequest(t, router, http.MethodPost, "/signup/workspaces", createBody)
			require.Equal(t, tt.status, rec.Code)
			require.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
		})
	}
}

func TestCreateWorkspaceConflictOnDuplicateSlug(t *testing.T) {
	t.Parallel()

	router := newTestRouter(t, fixture{})

	rec := doRequest(t, router, http.MethodPost, "/signup/workspaces", createBody)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doRequest(t, router, http.MethodPost, "/signup/workspaces", createBody)
	require.Equal(t, http.StatusConflict, rec.Code)
}

func TestCreateWorkspaceValidatesInput(t *testing.T) {
	t.Parallel()

	router := newTestRouter(t, fixture{})

	for _, body := range []string{
		`{"email":"bad","name":"Acme","slug":"acme","verificationToken":"tok"}`,
		`{"email":"owner@acme.com","name":"  ","slug":"acme","verificationToken":"tok"}`,
		`not-json`,
	} {
		rec := doRequest(t, router, http.MethodPost, "/signup/workspaces", body)
		require.Equal(t, http.StatusBadRequest, rec.Code, "body %s", body)
	}
}

func TestCheckSlugAvailability(t *testing.T) {
	t.Parallel()

	router := newTestRouter(t, fixture{})

	rec := doRequest(t, router, http.MethodGet, "/signup/slug-availability?slug=acme", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Available bool   `json:"available"`
		Reason    string `json:"reason"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.True(t, resp.Available)

	rec = doRequest(t, router, http.MethodGet, "/signup/slug-availability?slug=admin", "")
	require.Equal(t, http.StatusOK, rec.Code)
	resp = struct {
		Available bool   `json:"available"`
		Reason    string `json:"reason"`
	}{}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.False(t, resp.Available)
	require.NotEmpty(t, resp.Reason)

	rec = doRequest(t, router, http.MethodGet, "/signup/slug-availability", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
}
