package fsrs

import (
	"fmt"
	"math"
	"time"
)

// Params holds the FSRS-4.5 model weights and scheduling configuration.
// The weights are a tunable configuration, not part of the contract; the
// defaults are the published FSRS-4.5 starting values.
type Params struct {
	// Weights are the 17 model weights:
	// w[0..3]  initial stability per grade
	// w[4..5]  initial difficulty
	// w[6..7]  difficulty update and mean reversion
	// w[8..10] recall stability growth
	// w[11..14] forget stability
	// w[15..16] hard penalty / easy bonus
	Weights [17]float64

	// DesiredRetention is the target recall probability at the scheduled
	// review time, e.g. 0.9 for 90%.
	DesiredRetention float64

	// MaximumInterval caps the scheduled interval in days.
	MaximumInterval int

	// LearningSteps are the short intervals used before a new card
	// graduates to Review.
	LearningSteps []time.Duration

	// RelearningSteps are the short intervals used after a lapse.
	RelearningSteps []time.Duration
}

// DefaultParams returns the stock FSRS-4.5 configuration: 90% target
// retention, a 100-year interval cap, learning steps of 1m and 10m, and a
// single 10m relearning step.
func DefaultParams() *Params {
	return &Params{
		Weights: [17]float64{
			0.4, 0.6, 2.4, 5.8,
			4.93, 0.94,
			0.86, 0.01,
			1.49, 0.14, 0.94,
			2.18, 0.05, 0.34, 1.26,
			0.29, 2.61,
		},
		DesiredRetention: 0.9,
		MaximumInterval:  36500,
		LearningSteps:    []time.Duration{time.Minute, 10 * time.Minute},
		RelearningSteps:  []time.Duration{10 * time.Minute},
	}
}

// Validate checks the configuration for values the scheduler cannot work with.
func (p *Params) Validate() error {
	if p.DesiredRetention <= 0 || p.DesiredRetention >= 1 {
		return fmt.Errorf("fsrs: desired retention %f out of range (0, 1)", p.DesiredRetention)
	}
	if p.MaximumInterval < 1 {
		return fmt.Errorf("fsrs: maximum interval %d must be at least 1 day", p.MaximumInterval)
	}
	for _, s := range p.LearningSteps {
		if s <= 0 {
			return fmt.Errorf("fsrs: learning step %s must be positive", s)
		}
	}
	for _, s := range p.RelearningSteps {
		if s <= 0 {
			return fmt.Errorf("fsrs: relearning step %s must be positive", s)
		}
	}
	return nil
}

const (
	minStability  = 0.001
	minDifficulty = 1.0
	maxDifficulty = 10.0
)

// retrievability computes R(t, S) = (1 + t/(9S))^-1 for elapsed days t.
func retrievability(elapsedDays, stability float64) float64 {
	return 1 / (1 + elapsedDays/(9*stability))
}

// initStability returns S0(G) = clamp(w[G-1]).
func (p *Params) initStability(g int) float64 {
	return clampS(p.Weights[g-1])
}

// initDifficulty returns D0(G) = w[4] - (G-3)*w[5], clamped to [1, 10].
func (p *Params) initDifficulty(g int) float64 {
	return clampD(p.Weights[4] - float64(g-3)*p.Weights[5])
}

// nextDifficulty applies the difficulty delta with linear damping, then mean
// reversion toward D0(Easy).
func (p *Params) nextDifficulty(d float64, g int) float64 {
	deltaD := -p.Weights[6] * float64(g-3)
	damped := d + deltaD*(maxDifficulty-d)/9
	reverted := p.Weights[7]*p.initDifficulty(4) + (1-p.Weights[7])*damped
	return clampD(reverted)
}

// nextRecallStability computes stability after a successful recall:
// S' = S * (1 + e^w[8] * (11-D) * S^-w[9] * (e^((1-R)*w[10]) - 1) * penalty * bonus)
// The growth factor falls with retrievability, so a surprising recall of a
// near-forgotten item earns the largest gain.
func (p *Params) nextRecallStability(d, s, r float64, g int) float64 {
	hardPenalty := 1.0
	if g == 2 {
		hardPenalty = p.Weights[15]
	}
	easyBonus := 1.0
	if g == 4 {
		easyBonus = p.Weights[16]
	}
	grown := s * (1 + math.Exp(p.Weights[8])*
		(11-d)*
		math.Pow(s, -p.Weights[9])*
		(math.Exp((1-r)*p.Weights[10])-1)*
		hardPenalty*easyBonus)
	return clampS(grown)
}

// nextForgetStability computes stability after a lapse:
// S' = w[11] * D^-w[12] * ((S+1)^w[13] - 1) * e^((1-R)*w[14])
// capped below the prior stability so a lapse never grows the memory.
func (p *Params) nextForgetStability(d, s, r float64) float64 {
	shrunk := p.Weights[11] *
		math.Pow(d, -p.Weights[12]) *
		(math.Pow(s+1, p.Weights[13]) - 1) *
		math.Exp((1-r)*p.Weights[14])
	return clampS(math.Min(shrunk, s))
}

// interval solves the retrievability curve for the elapsed days at which
// R equals the desired retention: I = 9S(1/r - 1), clamped to [1, max].
func (p *Params) interval(stability float64) int {
	raw := 9 * stability * (1/p.DesiredRetention - 1)
	days := int(math.Round(raw))
	if days < 1 {
		days = 1
	}
	if days > p.MaximumInterval {
		days = p.MaximumInterval
	}
	return days
}

func clampS(s float64) float64 {
	return math.Max(s, minStability)
}

func clampD(d float64) float64 {
	return math.Min(math.Max(d, minDifficulty), maxDifficulty)
}
