package credentials

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/vksync/internal/common"
	"github.com/dmitrijs2005/vksync/internal/logging"
	"github.com/dmitrijs2005/vksync/internal/metrics"
	"github.com/dmitrijs2005/vksync/internal/timex"
)

const (
	DefaultBackoff         = time.Second
	DefaultRefreshAttempts = 5
)

// Rotator selects credentials for one provider name. It is safe for
// concurrent use; per-call state lives in the caller's exclusion Set.
type Rotator struct {
	provider        Provider
	name            string
	backoff         time.Duration
	refreshAttempts int
	log             logging.Logger
	sleep           timex.SleepFunc
}

type Option func(*Rotator)

// WithBackoff sets the wait used when every credential is excluded and
// between refresh attempts.
func WithBackoff(d time.Duration) Option {
	return func(r *Rotator) { r.backoff = d }
}

// WithRefreshAttempts bounds upstream refresh attempts.
func WithRefreshAttempts(n int) Option {
	return func(r *Rotator) {
		if n > 0 {
			r.refreshAttempts = n
		}
	}
}

func WithLogger(l logging.Logger) Option {
	return func(r *Rotator) { r.log = l }
}

func withSleep(fn timex.SleepFunc) Option {
	return func(r *Rotator) { r.sleep = fn }
}

func NewRotator(p Provider, name string, opts ...Option) *Rotator {
	r := &Rotator{
		provider:        p,
		name:            name,
		backoff:         DefaultBackoff,
		refreshAttempts: DefaultRefreshAttempts,
		log:             logging.NewNopLogger(),
		sleep:           timex.Sleep,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Name is the provider name this rotator serves.
func (r *Rotator) Name() string { return r.name }

// Acquire returns the first active credential matching tag that is not in
// excluding.
//
// When every candidate is excluded, Acquire waits for the backoff and clears
// excluding in place, so the caller's chain starts a new cycle. When the
// provider has nothing at all, it refreshes upstream first. Only a refresh
// that keeps failing, or a refresh that still yields nothing, is returned as
// an error.
func (r *Rotator) Acquire(ctx context.Context, tag string, excluding Set) (Credential, error) {
	refreshed := false
	for {
		list, err := r.provider.ListActive(ctx, r.name, tag)
		if err != nil && !errors.Is(err, common.ErrNoActiveCredentials) {
			return Credential{}, fmt.Errorf("list %s credentials: %w", r.name, err)
		}

		for _, c := range list {
			if !excluding.Has(c) {
				return c, nil
			}
		}

		if excluding.Len() > 0 {
			r.log.Warn(ctx, "all credentials excluded, backing off",
				"provider", r.name, "tag", tag, "excluded", excluding.Len(), "backoff", r.backoff)
			metrics.CredentialBackoffs.WithLabelValues(r.name).Inc()
			if err := r.sleep(ctx, r.backoff); err != nil {
				return Credential{}, err
			}
			excluding.Clear()
			continue
		}

		if refreshed {
			return Credential{}, fmt.Errorf("%w for provider %q after refresh", common.ErrNoActiveCredentials, r.name)
		}
		if err := r.Refresh(ctx); err != nil {
			return Credential{}, err
		}
		refreshed = true
	}
}

// Refresh asks the provider for new credentials, retrying with backoff up to
// the configured number of attempts.
func (r *Rotator) Refresh(ctx context.Context) error {
	var last error
	for attempt := 1; attempt <= r.refreshAttempts; attempt++ {
		err := r.provider.Refresh(ctx, r.name)
		if err == nil {
			metrics.CredentialRefreshes.WithLabelValues(r.name, "ok").Inc()
			r.log.Info(ctx, "credentials refreshed", "provider", r.name, "attempt", attempt)
			return nil
		}
		metrics.CredentialRefreshes.WithLabelValues(r.name, "error").Inc()
		last = err
		r.log.Warn(ctx, "credential refresh failed", "provider", r.name, "attempt", attempt, "error", err)

		if attempt < r.refreshAttempts {
			if err := r.sleep(ctx, r.backoff); err != nil {
				return err
			}
		}
	}
	return fmt.Errorf("refresh %s credentials after %d attempts: %w", r.name, r.refreshAttempts, last)
}
