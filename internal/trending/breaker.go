package trending

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"trending-coordinator/internal/platform/logger"
	"trending-coordinator/internal/platform/metrics"

	gobreaker "github.com/sony/gobreaker/v2"
)

const (
	breakerName         = "trending-api"
	breakerTripFailures = 5
	breakerOpenTimeout  = 30 * time.Second

	// Requests admitted while half-open; also the run of successes needed
	// to close again.
	breakerHalfOpenRequests = 3

	// A rejected half-open request polls for a free slot for up to
	// breakerSlotWait. Slots are usually held by superseded requests that
	// are still unwinding.
	breakerSlotPoll = 25 * time.Millisecond
	breakerSlotWait = 2 * time.Second
)

// BreakerFetcher guards a Fetcher with a circuit breaker. After
// breakerTripFailures consecutive failures it rejects fetches with
// ErrServiceUnavailable until the open timeout elapses. Cancelled
// fetches count as neither success nor failure.
type BreakerFetcher struct {
	next     Fetcher
	cb       *gobreaker.CircuitBreaker[[]TrendingVideo]
	slotWait time.Duration
}

// NewBreakerFetcher wraps next. m may be nil.
func NewBreakerFetcher(next Fetcher, log *slog.Logger, m *metrics.Metrics) *BreakerFetcher {
	return newBreakerFetcher(next, log, m, breakerOpenTimeout)
}

func newBreakerFetcher(next Fetcher, log *slog.Logger, m *metrics.Metrics, openTimeout time.Duration) *BreakerFetcher {
	if log == nil {
		log = logger.Nop()
	}
	m.SetBreakerState(breakerStateValue(gobreaker.StateClosed))

	cb := gobreaker.NewCircuitBreaker[[]TrendingVideo](gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: breakerHalfOpenRequests,
		Timeout:     openTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= breakerTripFailures
		},
		IsExcluded: func(err error) bool {
			return errors.Is(err, ErrCancelled) || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("circuit breaker state change",
				slog.String("breaker", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()))
			m.SetBreakerState(breakerStateValue(to))
		},
	})
	return &BreakerFetcher{next: next, cb: cb, slotWait: breakerSlotWait}
}

// FetchTrending implements Fetcher.
func (b *BreakerFetcher) FetchTrending(ctx context.Context, q Query) ([]TrendingVideo, error) {
	deadline := time.Now().Add(b.slotWait)
	for {
		videos, err := b.cb.Execute(func() ([]TrendingVideo, error) {
			return b.next.FetchTrending(ctx, q)
		})
		if errors.Is(err, gobreaker.ErrTooManyRequests) && time.Now().Before(deadline) {
			t := time.NewTimer(breakerSlotPoll)
			select {
			case <-ctx.Done():
				t.Stop()
				return nil, ErrCancelled
			case <-t.C:
			}
			continue
		}
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, ErrServiceUnavailable
		}
		return videos, err
	}
}

// State reports the breaker state ("closed", "half-open" or "open").
func (b *BreakerFetcher) State() string {
	return b.cb.State().String()
}

func breakerStateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}
