// Package resilience wraps calls to flaky remote services with a circuit
// breaker and bounded retries.
package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/sony/gobreaker"
)

// ErrCircuitOpen is returned without calling the operation while the breaker
// is open.
var ErrCircuitOpen = gobreaker.ErrOpenState

// Config configures a Breaker.
type Config struct {
	Name string
	// MaxFailures consecutive failures open the circuit.
	MaxFailures int
	// Cooldown is how long the circuit stays open before a probe is allowed.
	Cooldown time.Duration
	// Attempts is the number of tries per call, including the first.
	Attempts int
	// RetryDelay is the initial backoff between tries.
	RetryDelay time.Duration
	// Permanent reports errors that must neither be retried nor count as a
	// failure of the remote service, such as a user who blocked the bot.
	Permanent func(err error) bool
}

// Breaker runs operations through a circuit breaker, retrying transient
// failures with exponential backoff while the circuit is closed.
type Breaker struct {
	cfg    Config
	cb     *gobreaker.CircuitBreaker
	logger *slog.Logger
}

func New(cfg Config, log *slog.Logger) *Breaker {
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 5
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = time.Minute
	}
	if cfg.Attempts <= 0 {
		cfg.Attempts = 1
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 200 * time.Millisecond
	}
	if cfg.Permanent == nil {
		cfg.Permanent = func(error) bool { return false }
	}
	if log == nil {
		log = slog.Default()
	}
	log = log.With("component", "circuit_breaker", "name", cfg.Name)

	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: 1,
		Timeout:     cfg.Cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= uint32(cfg.MaxFailures)
		},
		IsSuccessful: func(err error) bool {
			return err == nil || cfg.Permanent(err) || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("Circuit breaker state changed", "from", from.String(), "to", to.String())
		},
	}

	return &Breaker{
		cfg:    cfg,
		cb:     gobreaker.NewCircuitBreaker(settings),
		logger: log,
	}
}

// Execute calls op until it succeeds, fails permanently, the attempts run out,
// ctx ends or the circuit opens. Only the last error is returned.
func (b *Breaker) Execute(ctx context.Context, op func(ctx context.Context) error) error {
	err := retry.Do(
		func() error {
			_, err := b.cb.Execute(func() (interface{}, error) {
				return nil, op(ctx)
			})
			return err
		},
		retry.Context(ctx),
		retry.Attempts(uint(b.cfg.Attempts)),
		retry.Delay(b.cfg.RetryDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			return !errors.Is(err, ErrCircuitOpen) && !b.cfg.Permanent(err)
		}),
		retry.OnRetry(func(n uint, err error) {
			b.logger.Debug("Retrying operation", "attempt", n+1, "error", err)
		}),
	)
	if err != nil {
		return fmt.Errorf("%s: %w", b.cfg.Name, err)
	}
	return nil
}

// State returns the breaker state name: closed, half-open or open.
func (b *Breaker) State() string {
	return b.cb.State().String()
}
