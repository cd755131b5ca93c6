// Package fsrs implements the FSRS-4.5 spaced-repetition scheduler.
//
// Schedule is a pure function of (card, grade, now) and the fixed Params: it
// performs no I/O, reads no clock, and never mutates its input. Callers are
// responsible for persisting the returned card.
package fsrs

import (
	"errors"
	"fmt"
	"time"

	"github.com/recallforge/recallforge/internal/domain"
)

// ErrOutOfOrderReview is returned when a review is timestamped before the
// card's recorded last review. The caller must not persist anything.
var ErrOutOfOrderReview = errors.New("fsrs: review timestamp precedes last review")

// Schedule computes the card state after grading at time now. The input card
// is unchanged; the returned card carries the updated memory state, lifecycle
// state, counters, due date, and LastReview = now.
func (p *Params) Schedule(card domain.Card, grade domain.Grade, now time.Time) (domain.Card, error) {
	if !grade.IsValid() {
		return domain.Card{}, fmt.Errorf("%w: %d", domain.ErrInvalidGrade, int(grade))
	}
	if card.Reviewed() && now.Before(card.LastReview) {
		return domain.Card{}, fmt.Errorf("%w: review at %s, last review at %s",
			ErrOutOfOrderReview, now.Format(time.RFC3339), card.LastReview.Format(time.RFC3339))
	}

	c := card
	p.updateMemory(&c, grade, now)

	var interval time.Duration
	if grade == domain.Again {
		interval = p.lapse(&c)
	} else {
		c.Reps++
		interval = p.advance(&c, grade)
	}

	c.Due = now.Add(interval)
	if grade != domain.Again && card.State == domain.StateReview && !c.Due.After(card.Due) {
		// A success on a Review card must move the due date forward even when
		// zero elapsed time leaves the memory state unchanged.
		c.Due = card.Due.Add(24 * time.Hour)
	}
	c.LastReview = now
	return c, nil
}

// Preview returns the card state that each of the four grades would produce.
func (p *Params) Preview(card domain.Card, now time.Time) map[domain.Grade]domain.Card {
	out := make(map[domain.Grade]domain.Card, 4)
	for _, g := range []domain.Grade{domain.Again, domain.Hard, domain.Good, domain.Easy} {
		c, err := p.Schedule(card, g, now)
		if err != nil {
			continue
		}
		out[g] = c
	}
	return out
}

// Retrievability estimates the card's recall probability at time now.
// A card that has never been reviewed has no memory state and returns 0.
func (p *Params) Retrievability(card domain.Card, now time.Time) float64 {
	if !card.Reviewed() {
		return 0
	}
	elapsed := now.Sub(card.LastReview).Hours() / 24
	if elapsed < 0 {
		elapsed = 0
	}
	return retrievability(elapsed, card.Stability)
}

// updateMemory recomputes stability and difficulty. The first review
// initializes both from the grade; later reviews fold in the retrievability
// at review time.
func (p *Params) updateMemory(c *domain.Card, grade domain.Grade, now time.Time) {
	g := int(grade)
	if !c.Reviewed() {
		c.Stability = p.initStability(g)
		c.Difficulty = p.initDifficulty(g)
		return
	}
	elapsed := now.Sub(c.LastReview).Hours() / 24
	r := retrievability(elapsed, c.Stability)
	if grade == domain.Again {
		c.Stability = p.nextForgetStability(c.Difficulty, c.Stability, r)
	} else {
		c.Stability = p.nextRecallStability(c.Difficulty, c.Stability, r, g)
	}
	c.Difficulty = p.nextDifficulty(c.Difficulty, g)
}

// lapse handles an Again grade: the card restarts its short steps, and the
// lapse counter increments for any card that had already left New.
func (p *Params) lapse(c *domain.Card) time.Duration {
	if c.State != domain.StateNew {
		c.Lapses++
	}

	switch c.State {
	case domain.StateNew, domain.StateLearning:
		c.State = domain.StateLearning
		c.Step = 0
		if len(p.LearningSteps) == 0 {
			return p.graduate(c)
		}
		return p.LearningSteps[0]
	case domain.StateRelearning:
		c.Step = 0
		if len(p.RelearningSteps) == 0 {
			return p.graduate(c)
		}
		return p.RelearningSteps[0]
	default: // StateReview
		if len(p.RelearningSteps) == 0 {
			// No relearning steps configured: stay in Review with the
			// stability-derived interval.
			return p.dayInterval(c)
		}
		c.State = domain.StateRelearning
		c.Step = 0
		return p.RelearningSteps[0]
	}
}

// advance handles a successful grade (Hard/Good/Easy).
func (p *Params) advance(c *domain.Card, grade domain.Grade) time.Duration {
	switch c.State {
	case domain.StateNew:
		if grade == domain.Easy || len(p.LearningSteps) == 0 {
			return p.graduate(c)
		}
		c.State = domain.StateLearning
		c.Step = 0
		return p.LearningSteps[0]
	case domain.StateLearning:
		return p.advanceSteps(c, grade, p.LearningSteps)
	case domain.StateRelearning:
		return p.advanceSteps(c, grade, p.RelearningSteps)
	default: // StateReview
		return p.dayInterval(c)
	}
}

// advanceSteps walks the short-step sequence for Learning and Relearning.
func (p *Params) advanceSteps(c *domain.Card, grade domain.Grade, steps []time.Duration) time.Duration {
	// Steps removed from config since the card entered them: graduate.
	if len(steps) == 0 || c.Step >= len(steps) {
		return p.graduate(c)
	}

	switch grade {
	case domain.Hard:
		// Hold the current step. At the first step the interval is padded
		// so Hard is always slower than Again.
		if c.Step == 0 && len(steps) == 1 {
			return time.Duration(float64(steps[0]) * 1.5)
		}
		if c.Step == 0 {
			return (steps[0] + steps[1]) / 2
		}
		return steps[c.Step]
	case domain.Good:
		next := c.Step + 1
		if next >= len(steps) {
			return p.graduate(c)
		}
		c.Step = next
		return steps[next]
	default: // Easy
		return p.graduate(c)
	}
}

// graduate moves the card into Review and returns the stability interval.
func (p *Params) graduate(c *domain.Card) time.Duration {
	c.State = domain.StateReview
	c.Step = 0
	return p.dayInterval(c)
}

func (p *Params) dayInterval(c *domain.Card) time.Duration {
	return time.Duration(p.interval(c.Stability)) * 24 * time.Hour
}
