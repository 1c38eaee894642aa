// Package fetch defines the per-provider retrieval boundary. Retry,
// backoff and rate limiting live behind this interface so the pipeline's
// error handling stays uniform regardless of which provider failed.
package fetch

import (
	"context"
	"fmt"

	"github.com/everstacklabs/curator/internal/catalog"
)

// Fetcher retrieves one provider's current entries.
type Fetcher interface {
	// Name returns the provider name (e.g. "anthropic").
	Name() string
	// Fetch returns the provider's current entries. A failure is
	// isolated to this provider; the pipeline carries on with the rest.
	Fetch(ctx context.Context) ([]*catalog.Entry, error)
}

// HealthChecker is an optional interface fetchers can implement to guard
// against truncated provider responses.
type HealthChecker interface {
	// HealthCheck performs a lightweight liveness probe.
	HealthCheck(ctx context.Context) error
	// MinExpectedEntries is the floor below which a fetch result is
	// treated as a data-quality failure rather than a real shrink.
	MinExpectedEntries() int
}

// Failure wraps a provider fetch error so callers can recover the
// provider name from an aggregated error list.
type Failure struct {
	Provider string
	Err      error
}

func (f *Failure) Error() string {
	return fmt.Sprintf("fetching %s: %v", f.Provider, f.Err)
}

func (f *Failure) Unwrap() error { return f.Err }
