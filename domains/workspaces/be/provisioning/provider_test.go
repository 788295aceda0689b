package provisioning

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/lumenboard/lumenboard/domains/workspaces/be/service"
)

func newTestClient(t *testing.T, handler http.Handler) (*ProviderClient, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := NewProviderClient(ProviderConfig{
		BaseURL:     srv.URL,
		APIKey:      "test-key",
		MaxAttempts: 3,
		BackoffBase: time.Millisecond,
		BackoffCap:  5 * time.Millisecond,
	})
	require.NoError(t, err)
	return client, srv
}

func writeProject(w http.ResponseWriter, id, uri string) {
	resp := map[string]any{
		"project":         map[string]any{"id": id},
		"connection_uris": []map[string]any{{"connection_uri": uri}},
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func TestCreateDatabase(t *testing.T) {
	t.Parallel()

	var gotAuth, gotRegion string
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/projects", r.URL.Path)
		gotAuth = r.Header.Get("Authorization")

		var req struct {
			Project struct {
				Name     string `json:"name"`
				RegionID string `json:"region_id"`
			} `json:"project"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		gotRegion = req.Project.RegionID

		writeProject(w, "proj-abc", "postgres://tenant.example/db")
	}))

	resource, err := client.CreateDatabase(context.Background(), "acme", "aws-us-east-1")
	require.NoError(t, err)
	require.Equal(t, "proj-abc", resource.ID)
	require.Equal(t, "postgres://tenant.example/db", resource.ConnectionURI)
	require.Equal(t, "Bearer test-key", gotAuth)
	require.Equal(t, "aws-us-east-1", gotRegion)
}

func TestCreateDatabaseRetriesTransientFailures(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch calls.Add(1) {
		case 1:
			w.WriteHeader(http.StatusTooManyRequests)
		case 2:
			w.WriteHeader(http.StatusServiceUnavailable)
		default:
			writeProject(w, "proj-retry", "postgres://tenant.example/db")
		}
	}))

	resource, err := client.CreateDatabase(context.Background(), "acme", "aws-us-east-1")
	require.NoError(t, err)
	require.Equal(t, "proj-retry", resource.ID)
	require.EqualValues(t, 3, calls.Load())
}

func TestCreateDatabaseExhaustsRetries(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))

	_, err := client.CreateDatabase(context.Background(), "acme", "aws-us-east-1")
	require.ErrorIs(t, err, service.ErrProvisioningFailed)
	require.EqualValues(t, 3, calls.Load())
}

func TestCreateDatabaseDoesNotRetryClientErrors(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, `{"message":"name already in use"}`, http.StatusBadRequest)
	}))

	_, err := client.CreateDatabase(context.Background(), "acme", "aws-us-east-1")
	require.Error(t, err)
	require.NotErrorIs(t, err, service.ErrProvisioningFailed)
	require.Contains(t, err.Error(), "400")
	require.EqualValues(t, 1, calls.Load())
}

func TestCreateDatabaseRejectsIncompletePayload(t *testing.T) {
	t.Parallel()

	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"project":{"id":""}}`))
	}))

	_, err := client.CreateDatabase(context.Background(), "acme", "aws-us-east-1")
	require.ErrorIs(t, err, service.ErrProvisioningFailed)
}

func TestDeleteDatabase(t *testing.T) {
	t.Parallel()

	var gotPath string
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodDelete, r.Method)
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusOK)
	}))

	require.NoError(t, client.DeleteDatabase(context.Background(), "proj-abc"))
	require.Equal(t, "/projects/proj-abc", gotPath)
}

func TestDeleteDatabaseDoesNotRetry(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))

	err := client.DeleteDatabase(context.Background(), "proj-abc")
	require.Error(t, err)
	require.EqualValues(t, 1, calls.Load())
}

func TestNewProviderClientValidatesConfig(t *testing.T) {
	t.Parallel()

	_, err := NewProviderClient(ProviderConfig{APIKey: "k"})
	require.Error(t, err)

	_, err = NewProviderClient(ProviderConfig{BaseURL: "https://api.example"})
	require.Error(t, err)
}
