package provisioning

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/lumenboard/lumenboard/domains/workspaces/be/service"
)

// Prober checks whether a database answers a trivial query.
type Prober func(ctx context.Context, connURI string) error

// PgProbe connects with pgx and runs SELECT 1.
func PgProbe(ctx context.Context, connURI string) error {
	conn, err := pgx.Connect(ctx, connURI)
	if err != nil {
		return err
	}
	defer conn.Close(ctx) // nolint:errcheck

	var one int
	return conn.QueryRow(ctx, "SELECT 1").Scan(&one)
}

// Waiter polls a fresh database until it becomes reachable. Provider
// allocation is asynchronous, so the connection string handed back by
// CreateDatabase may refuse connections for a while.
type Waiter struct {
	interval time.Duration
	probe    Prober
}

// NewWaiter constructs a Waiter; zero interval defaults to 2s, nil probe
// defaults to PgProbe.
func NewWaiter(interval time.Duration, probe Prober) *Waiter {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	if probe == nil {
		probe = PgProbe
	}
	return &Waiter{interval: interval, probe: probe}
}

// WaitUntilReady probes on a fixed interval until the database answers or the
// timeout elapses, returning ErrProvisioningTimeout on expiry. It sleeps
// between polls rather than busy-looping.
func (w *Waiter) WaitUntilReady(ctx context.Context, connURI string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)

	var lastErr error
	for {
		probeCtx, cancel := context.WithTimeout(ctx, w.interval)
		err := w.probe(probeCtx, connURI)
		cancel()
		if err == nil {
			return nil
		}
		lastErr = err

		if time.Now().After(deadline) {
			return fmt.Errorf("%w after %s: %v", service.ErrProvisioningTimeout, timeout, lastErr)
		}

		select {
		case <-time.After(w.interval):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

var _ service.ReadinessWaiter = (*Waiter)(nil)
