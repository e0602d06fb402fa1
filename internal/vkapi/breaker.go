package vkapi

import (
	"context"
	"errors"
	"net/url"
	"time"

	"github.com/dmitrijs2005/vksync/internal/logging"
	"github.com/dmitrijs2005/vksync/internal/metrics"
	gobreaker "github.com/sony/gobreaker/v2"
)

// BreakerTransport guards another Transport with a circuit breaker. Only
// transient failures count against the breaker: a remote error envelope is
// still a healthy round trip.
type BreakerTransport struct {
	next Transport
	cb   *gobreaker.CircuitBreaker[any]
}

// NewBreakerTransport opens after 5 consecutive transient failures and
// lets one trial request through after timeout.
func NewBreakerTransport(next Transport, name string, timeout time.Duration, log logging.Logger) *BreakerTransport {
	metrics.BreakerState.WithLabelValues(name).Set(0)

	cb := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		IsSuccessful: func(err error) bool {
			return err == nil || !IsTransient(err)
		},
		IsExcluded: func(err error) bool {
			return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn(context.Background(), "transport breaker state change", "breaker", name, "from", from.String(), "to", to.String())
			metrics.BreakerState.WithLabelValues(name).Set(stateValue(to))
		},
	})

	return &BreakerTransport{next: next, cb: cb}
}

func (b *BreakerTransport) Do(ctx context.Context, token, method string, params url.Values) (any, error) {
	return b.cb.Execute(func() (any, error) {
		return b.next.Do(ctx, token, method, params)
	})
}

// State exposes the breaker state for diagnostics.
func (b *BreakerTransport) State() gobreaker.State {
	return b.cb.State()
}

func stateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}
