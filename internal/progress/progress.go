// Package progress derives streaks, mastery points, and badges from the
// stored review history. It holds no state of its own.
package progress

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/recallforge/recallforge/internal/fsrs"
	"github.com/recallforge/recallforge/internal/storage"
)

// Service computes progress aggregates for dashboard widgets.
type Service struct {
	db     *storage.DB
	params *fsrs.Params
}

// NewService creates a progress service backed by db. The scheduler params
// are used to estimate retrievability for mastery percentages.
func NewService(db *storage.DB, params *fsrs.Params) *Service {
	return &Service{db: db, params: params}
}

// Summary is the aggregate consumed by the dashboard.
type Summary struct {
	Streak        int     `json:"streak"`
	MasteryPoints int     `json:"mastery_points"`
	TotalReviews  int     `json:"total_reviews"`
	DueCount      int     `json:"due_count"`
	Badges        []Badge `json:"badges"`
}

// Overview assembles the full progress summary for a user.
func (s *Service) Overview(ctx context.Context, userID uuid.UUID, now time.Time) (Summary, error) {
	sessions, err := s.db.CompletedSessions(ctx, userID)
	if err != nil {
		return Summary{}, err
	}

	streak := streakFromSessions(sessions, now)
	points := masteryPoints(sessions)

	reviews, err := s.db.CountReviews(ctx, userID)
	if err != nil {
		return Summary{}, err
	}

	due, err := s.db.CountDue(ctx, userID, now)
	if err != nil {
		return Summary{}, err
	}

	return Summary{
		Streak:        streak,
		MasteryPoints: points,
		TotalReviews:  reviews,
		DueCount:      due,
		Badges:        earnedBadges(streak, points, reviews),
	}, nil
}

// Streak returns the user's current consecutive-day study streak.
func (s *Service) Streak(ctx context.Context, userID uuid.UUID, now time.Time) (int, error) {
	sessions, err := s.db.CompletedSessions(ctx, userID)
	if err != nil {
		return 0, err
	}
	return streakFromSessions(sessions, now), nil
}

// ObjectiveMastery recomputes the mastery percentage for a learning
// objective as the user's mean retrievability over its cards, persists it,
// and returns it. Questions without a card count as zero.
func (s *Service) ObjectiveMastery(ctx context.Context, userID, objectiveID uuid.UUID, now time.Time) (float64, error) {
	questions, err := s.db.QuestionsByObjective(ctx, objectiveID)
	if err != nil {
		return 0, err
	}
	if len(questions) == 0 {
		return 0, nil
	}

	cards, err := s.db.CardsByObjective(ctx, userID, objectiveID)
	if err != nil {
		return 0, err
	}

	var total float64
	for _, card := range cards {
		total += s.params.Retrievability(card, now)
	}
	mastery := total / float64(len(questions)) * 100

	if err := s.db.UpdateObjectiveMastery(ctx, objectiveID, mastery); err != nil {
		return 0, err
	}
	return mastery, nil
}
