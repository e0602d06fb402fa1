package vkapi

import (
	"context"
	"errors"
	"net/url"
	"sync"
	"time"

	"github.com/dmitrijs2005/vksync/internal/credentials"
	"github.com/dmitrijs2005/vksync/internal/logging"
	"github.com/dmitrijs2005/vksync/internal/metrics"
	"github.com/dmitrijs2005/vksync/internal/timex"
	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

const (
	DefaultMaxAttempts = 25
	DefaultRetryDelay  = time.Second
)

// Request is one logical remote call. Params must already carry the method
// version ("v"); the credential is added by the Invoker.
type Request struct {
	Method    string
	Params    url.Values
	AccessTag string
}

// RetryPolicy bounds a call chain. Every transport round trip counts as one
// attempt.
type RetryPolicy struct {
	MaxAttempts int
	Delay       time.Duration
}

// CredentialSource is what the Invoker needs from the rotator.
type CredentialSource interface {
	Acquire(ctx context.Context, tag string, excluding credentials.Set) (credentials.Credential, error)
	Refresh(ctx context.Context) error
}

// Invoker executes remote calls and recovers from the error codes the remote
// uses for expired sessions, rate limiting and internal failures.
type Invoker struct {
	transport Transport
	creds     CredentialSource
	override  string
	policy    RetryPolicy
	rps       float64
	log       logging.Logger
	sleep     timex.SleepFunc

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

type InvokerOption func(*Invoker)

// WithOverrideToken pins every call to token and bypasses rotation.
func WithOverrideToken(token string) InvokerOption {
	return func(i *Invoker) { i.override = token }
}

func WithRetryPolicy(p RetryPolicy) InvokerOption {
	return func(i *Invoker) {
		if p.MaxAttempts > 0 {
			i.policy.MaxAttempts = p.MaxAttempts
		}
		if p.Delay >= 0 {
			i.policy.Delay = p.Delay
		}
	}
}

// WithRateLimit paces calls per credential; rps <= 0 disables pacing.
func WithRateLimit(rps float64) InvokerOption {
	return func(i *Invoker) { i.rps = rps }
}

func WithInvokerLogger(l logging.Logger) InvokerOption {
	return func(i *Invoker) { i.log = l }
}

func withInvokerSleep(fn timex.SleepFunc) InvokerOption {
	return func(i *Invoker) { i.sleep = fn }
}

func NewInvoker(t Transport, creds CredentialSource, opts ...InvokerOption) *Invoker {
	i := &Invoker{
		transport: t,
		creds:     creds,
		policy:    RetryPolicy{MaxAttempts: DefaultMaxAttempts, Delay: DefaultRetryDelay},
		log:       logging.NewNopLogger(),
		sleep:     timex.Sleep,
		limiters:  map[string]*rate.Limiter{},
	}
	for _, o := range opts {
		o(i)
	}
	return i
}

type action int

const (
	actionFatal action = iota
	actionRefresh
	actionRotate
	actionFlood
	actionTransient
	actionUnknown
)

func classify(err error) action {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case CodeAuthFailed:
			return actionRefresh
		case CodeTooManyRequests:
			return actionRotate
		case CodeFloodControl:
			return actionFlood
		}
		if IsTransient(err) {
			return actionTransient
		}
		return actionFatal
	}

	var httpErr *HTTPError
	var malformed *MalformedError
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return actionFatal
	case IsTransient(err):
		return actionTransient
	case errors.As(err, &httpErr), errors.As(err, &malformed):
		return actionFatal
	}
	return actionUnknown
}

// Call runs req until it succeeds, fails fatally or exhausts the retry
// budget. Credentials excluded for rate limiting stay excluded for the rest
// of this chain; the set resets when credentials are refreshed or when the
// rotator has cycled through all of them.
func (i *Invoker) Call(ctx context.Context, req Request) (any, error) {
	chainLog := i.log.With("chain_id", uuid.NewString(), "method", req.Method)
	start := time.Now()
	defer func() {
		metrics.APICallDuration.WithLabelValues(req.Method).Observe(time.Since(start).Seconds())
	}()

	excluded := credentials.NewSet()
	var last error

	for attempt := 1; attempt <= i.policy.MaxAttempts; attempt++ {
		log := chainLog.With("recursion_count", attempt-1)
		cred, err := i.credential(ctx, req.AccessTag, excluded)
		if err != nil {
			metrics.APICalls.WithLabelValues(req.Method, "no_credentials").Inc()
			return nil, err
		}
		if err := i.pace(ctx, cred.Token); err != nil {
			return nil, err
		}

		resp, err := i.transport.Do(ctx, cred.Token, req.Method, req.Params)
		if err == nil {
			metrics.APICalls.WithLabelValues(req.Method, "ok").Inc()
			return resp, nil
		}
		last = err

		switch classify(err) {
		case actionRefresh:
			if i.override != "" {
				metrics.APICalls.WithLabelValues(req.Method, "remote_error").Inc()
				return nil, err
			}
			log.Warn(ctx, "session invalid, refreshing credentials", "error", err)
			metrics.APIRetries.WithLabelValues("auth").Inc()
			if err := i.creds.Refresh(ctx); err != nil {
				metrics.APICalls.WithLabelValues(req.Method, "no_credentials").Inc()
				return nil, err
			}
			excluded.Clear()

		case actionRotate:
			metrics.APIRetries.WithLabelValues("rate_limit").Inc()
			if i.override != "" {
				log.Warn(ctx, "rate limited on fixed credential, sleeping")
				if err := i.sleep(ctx, i.policy.Delay); err != nil {
					return nil, err
				}
				continue
			}
			log.Warn(ctx, "rate limited, excluding credential", "credential_id", cred.ID)
			excluded.Add(cred)

		case actionFlood:
			metrics.APIRetries.WithLabelValues("flood").Inc()
			if i.override == "" {
				excluded.Add(cred)
			}
			log.Warn(ctx, "flood control, excluding credential and sleeping", "credential_id", cred.ID, "delay", i.policy.Delay)
			if err := i.sleep(ctx, i.policy.Delay); err != nil {
				return nil, err
			}

		case actionTransient:
			metrics.APIRetries.WithLabelValues("transient").Inc()
			log.Warn(ctx, "transient failure, retrying", "delay", i.policy.Delay, "error", err)
			if err := i.sleep(ctx, i.policy.Delay); err != nil {
				return nil, err
			}

		case actionFatal:
			metrics.APICalls.WithLabelValues(req.Method, "remote_error").Inc()
			return nil, err

		default:
			log.Error(ctx, "unrecognised transport error", "error", err)
			metrics.APICalls.WithLabelValues(req.Method, "transport_error").Inc()
			return nil, err
		}
	}

	metrics.APICalls.WithLabelValues(req.Method, "exhausted").Inc()
	chainLog.Error(ctx, "retry budget exhausted", "attempts", i.policy.MaxAttempts, "error", last)
	return nil, &ExhaustedError{Method: req.Method, Attempts: i.policy.MaxAttempts, Last: last}
}

func (i *Invoker) credential(ctx context.Context, tag string, excluded credentials.Set) (credentials.Credential, error) {
	if i.override != "" {
		return credentials.Credential{Token: i.override}, nil
	}
	return i.creds.Acquire(ctx, tag, excluded)
}

func (i *Invoker) pace(ctx context.Context, token string) error {
	if i.rps <= 0 {
		return nil
	}
	i.mu.Lock()
	l, ok := i.limiters[token]
	if !ok {
		l = rate.NewLimiter(rate.Limit(i.rps), 1)
		i.limiters[token] = l
	}
	i.mu.Unlock()
	return l.Wait(ctx)
}
