package booking

import (
	"context"
	"math/rand"
	"sync"

	"github.com/pankajsagvekar/flight-booking-simulator/internal/domain"
)

type Outcome string

const (
	OutcomeSuccess Outcome = "SUCCESS"
	OutcomeFail    Outcome = "FAIL"
)

// OutcomeDecider resolves the result of a simulated payment attempt when the
// caller does not force one. The rule is configuration, not an invariant of
// the booking workflow.
type OutcomeDecider interface {
	Decide(ctx context.Context, booking *domain.Booking) Outcome
}

type AlwaysSucceed struct{}

func (AlwaysSucceed) Decide(context.Context, *domain.Booking) Outcome {
	return OutcomeSuccess
}

// RandomOutcome succeeds with the configured probability. A rate outside
// [0, 1] is clamped.
type RandomOutcome struct {
	SuccessRate float64

	mu  sync.Mutex
	rng *rand.Rand
}

func NewRandomOutcome(successRate float64, seed int64) *RandomOutcome {
	if successRate < 0 {
		successRate = 0
	}
	if successRate > 1 {
		successRate = 1
	}
	return &RandomOutcome{SuccessRate: successRate, rng: rand.New(rand.NewSource(seed))}
}

func (r *RandomOutcome) Decide(context.Context, *domain.Booking) Outcome {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.rng.Float64() < r.SuccessRate {
		return OutcomeSuccess
	}
	return OutcomeFail
}
