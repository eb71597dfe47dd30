package dsp

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"

	"github.com/Youpit44/camillamix/internal/domain"
	"github.com/Youpit44/camillamix/internal/metrics"
)

type GuardSettings struct {
	// Consecutive query failures before the breaker opens.
	FailureThreshold uint32
	// How long the breaker stays open before a trial query.
	OpenTimeout time.Duration
}

var DefaultGuardSettings = GuardSettings{
	FailureThreshold: 5,
	OpenTimeout:      10 * time.Second,
}

// guarded sends adapter queries through a circuit breaker so a dead
// backend answers immediately instead of stalling every tick. Commands
// pass through untouched.
type guarded struct {
	domain.Adapter
	breaker *gobreaker.CircuitBreaker
}

// guardedBatch keeps the batch mute capability visible through the guard.
type guardedBatch struct {
	*guarded
	batch domain.BatchMuter
}

func (g *guardedBatch) SetMutes(batch []domain.MuteCommand) error {
	return g.batch.SetMutes(batch)
}

// Guard wraps a with a query circuit breaker. The result implements
// BatchMuter exactly when a does, and always implements SpectrumSource.
func Guard(a domain.Adapter, settings GuardSettings) domain.Adapter {
	g := &guarded{
		Adapter: a,
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "dsp-queries",
			MaxRequests: 1,
			Timeout:     settings.OpenTimeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= settings.FailureThreshold
			},
			IsSuccessful: func(err error) bool {
				return err == nil || errors.Is(err, context.Canceled)
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				slog.Warn("DSP circuit breaker state changed", "name", name, "from", from.String(), "to", to.String())
				metrics.AdapterBreakerState.Set(float64(to))
			},
		}),
	}

	if bm, ok := a.(domain.BatchMuter); ok {
		return &guardedBatch{guarded: g, batch: bm}
	}
	return g
}

func execute[T any](g *guarded, query func() (T, error)) (T, error) {
	v, err := g.breaker.Execute(func() (any, error) {
		return query()
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return v.(T), nil
}

func (g *guarded) CurrentState(ctx context.Context) (*domain.DSPState, error) {
	return execute(g, func() (*domain.DSPState, error) { return g.Adapter.CurrentState(ctx) })
}

func (g *guarded) PlaybackLevels(ctx context.Context) (*domain.PlaybackLevels, error) {
	return execute(g, func() (*domain.PlaybackLevels, error) { return g.Adapter.PlaybackLevels(ctx) })
}

// Spectrum answers nil when the wrapped adapter has no spectrum source.
func (g *guarded) Spectrum(ctx context.Context) ([]float64, error) {
	src, ok := g.Adapter.(domain.SpectrumSource)
	if !ok {
		return nil, nil
	}
	return execute(g, func() ([]float64, error) { return src.Spectrum(ctx) })
}
