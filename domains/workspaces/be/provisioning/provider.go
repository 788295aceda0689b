package provisioning

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/lumenboard/lumenboard/domains/workspaces/be/service"
)

// ProviderConfig holds the knobs for the managed-database provider client.
type ProviderConfig struct {
	BaseURL string
	APIKey  string

	// HTTPClient overrides the default client (30s timeout).
	HTTPClient *http.Client

	// MaxAttempts bounds total tries for transient failures (default 3).
	MaxAttempts int
	// BackoffBase is the first retry delay (default 1s); it doubles per
	// attempt with jitter, capped at BackoffCap (default 10s).
	BackoffBase time.Duration
	BackoffCap  time.Duration
}

// ProviderClient provisions isolated tenant databases through the provider's
// HTTP API. Requests that fail with 429 or a 5xx are retried with capped
// exponential backoff and jitter; other failures propagate immediately.
type ProviderClient struct {
	baseURL     *url.URL
	apiKey      string
	httpClient  *http.Client
	maxAttempts int
	backoffBase time.Duration
	backoffCap  time.Duration
}

// NewProviderClient constructs a client; base URL and API key are required.
func NewProviderClient(cfg ProviderConfig) (*ProviderClient, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, fmt.Errorf("provider base url is required")
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("provider api key is required")
	}

	parsed, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse provider base url: %w", err)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = time.Second
	}
	if cfg.BackoffCap <= 0 {
		cfg.BackoffCap = 10 * time.Second
	}

	return &ProviderClient{
		baseURL:     parsed,
		apiKey:      cfg.APIKey,
		httpClient:  httpClient,
		maxAttempts: cfg.MaxAttempts,
		backoffBase: cfg.BackoffBase,
		backoffCap:  cfg.BackoffCap,
	}, nil
}

type createProjectRequest struct {
	Project struct {
		Name     string `json:"name"`
		RegionID string `json:"region_id"`
	} `json:"project"`
}

type createProjectResponse struct {
	Project struct {
		ID string `json:"id"`
	} `json:"project"`
	ConnectionURIs []struct {
		ConnectionURI string `json:"connection_uri"`
	} `json:"connection_uris"`
}

// CreateDatabase allocates a dedicated database for a new tenant. Allocation
// is asynchronous on the provider side: the returned connection string is not
// necessarily usable yet (see Waiter).
func (c *ProviderClient) CreateDatabase(ctx context.Context, name, region string) (service.Resource, error) {
	var req createProjectRequest
	req.Project.Name = name
	req.Project.RegionID = region

	var resp createProjectResponse
	if err := c.doWithRetry(ctx, http.MethodPost, "projects", req, &resp); err != nil {
		return service.Resource{}, err
	}

	if resp.Project.ID == "" || len(resp.ConnectionURIs) == 0 {
		return service.Resource{}, fmt.Errorf("%w: provider returned incomplete project payload", service.ErrProvisioningFailed)
	}

	return service.Resource{
		ID:            resp.Project.ID,
		ConnectionURI: resp.ConnectionURIs[0].ConnectionURI,
	}, nil
}

// DeleteDatabase releases a provider resource. Rollback-only: the caller
// logs a failure and moves on, so there is no retry loop here.
func (c *ProviderClient) DeleteDatabase(ctx context.Context, resourceID string) error {
	return c.doOnce(ctx, http.MethodDelete, "projects/"+url.PathEscape(resourceID), nil, nil)
}

// doWithRetry retries transient failures with capped exponential backoff and
// jitter, and converts exhaustion into ErrProvisioningFailed.
func (c *ProviderClient) doWithRetry(ctx context.Context, method, path string, body, out any) error {
	backoff := c.backoffBase

	var lastErr error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		err := c.doOnce(ctx, method, path, body, out)
		if err == nil {
			return nil
		}
		lastErr = err

		var transient *transientError
		if !errors.As(err, &transient) {
			return err
		}
		if attempt == c.maxAttempts {
			break
		}

		delay := backoff + time.Duration(rand.Int63n(int64(backoff)/2+1))
		if delay > c.backoffCap {
			delay = c.backoffCap
		}
		backoff *= 2

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	return fmt.Errorf("%w: %d attempts: %v", service.ErrProvisioningFailed, c.maxAttempts, lastErr)
}

func (c *ProviderClient) doOnce(ctx context.Context, method, path string, body, out any) error {
	u := *c.baseURL
	u.Path = strings.TrimSuffix(u.Path, "/") + "/" + path

	var reqBody io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal provider request: %w", err)
		}
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reqBody)
	if err != nil {
		return fmt.Errorf("build provider request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// Network-level failures are as transient as a 503.
		return &transientError{cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &transientError{cause: fmt.Errorf("provider returned %d: %s", resp.StatusCode, strings.TrimSpace(string(payload)))}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("provider returned %d: %s", resp.StatusCode, strings.TrimSpace(string(payload)))
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode provider response: %w", err)
	}
	return nil
}

// transientError marks a failure class worth retrying (429, 5xx, transport).
type transientError struct {
	cause error
}

func (t *transientError) Error() string { return t.cause.Error() }
func (t *transientError) Unwrap() error { return t.cause }

var _ service.ResourceProvisioner = (*ProviderClient)(nil)
