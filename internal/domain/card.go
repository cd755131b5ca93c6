package domain

import (
	"time"

	"github.com/google/uuid"
)

// Card is the spaced-repetition scheduling state for one (user, question) pair.
// It is a value type: the scheduler returns a new Card rather than mutating.
type Card struct {
	UserID     uuid.UUID `json:"user_id"`
	QuestionID uuid.UUID `json:"question_id"`
	State      State     `json:"state"`
	Step       int       `json:"step"` // learning/relearning step index; 0 outside those states
	Stability  float64   `json:"stability"`
	Difficulty float64   `json:"difficulty"`
	Due        time.Time `json:"due"`
	LastReview time.Time `json:"last_review,omitzero"` // zero when never reviewed
	Reps       int       `json:"reps"`
	Lapses     int       `json:"lapses"`
}

// NewCard creates a fresh card in the New state, due immediately.
func NewCard(userID, questionID uuid.UUID, now time.Time) Card {
	return Card{
		UserID:     userID,
		QuestionID: questionID,
		State:      StateNew,
		Due:        now,
	}
}

// Reviewed reports whether the card has ever been graded.
func (c Card) Reviewed() bool {
	return !c.LastReview.IsZero()
}

// ReviewLog records a single grading event for a card.
type ReviewLog struct {
	UserID     uuid.UUID `json:"user_id"`
	QuestionID uuid.UUID `json:"question_id"`
	Grade      Grade     `json:"grade"`
	ReviewedAt time.Time `json:"reviewed_at"`
}
