// Package review records grading events: it feeds the scheduler and persists
// the resulting card state, resolving write races with a bounded retry.
package review

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/recallforge/recallforge/internal/domain"
	"github.com/recallforge/recallforge/internal/fsrs"
	"github.com/recallforge/recallforge/internal/storage"
)

// maxSaveAttempts bounds the re-read/recompute loop on write conflicts.
const maxSaveAttempts = 3

// ErrSessionCompleted is returned when answers are submitted to a session
// that has already been closed out.
var ErrSessionCompleted = errors.New("review: session already completed")

// Service coordinates the scheduler and the card store.
type Service struct {
	db     *storage.DB
	params *fsrs.Params
}

// NewService creates a review service backed by db and scheduled by params.
func NewService(db *storage.DB, params *fsrs.Params) *Service {
	return &Service{db: db, params: params}
}

// Record applies one grading event for (userID, questionID) at time now and
// returns the persisted card state. A card is created on first exposure. When
// a concurrent review wins the write race the card is re-read and the grade
// recomputed against the fresh state, at most maxSaveAttempts times.
// Scheduler errors (invalid grade, out-of-order review) are never retried.
func (s *Service) Record(ctx context.Context, userID, questionID uuid.UUID, grade domain.Grade, now time.Time) (domain.Card, error) {
	var lastErr error
	for attempt := 0; attempt < maxSaveAttempts; attempt++ {
		card, err := s.db.GetOrCreateCard(ctx, userID, questionID, now)
		if err != nil {
			return domain.Card{}, err
		}

		next, err := s.params.Schedule(card, grade, now)
		if err != nil {
			return domain.Card{}, err
		}

		if err := s.db.SaveCard(ctx, next, card.LastReview); err != nil {
			if errors.Is(err, storage.ErrStaleWrite) {
				lastErr = err
				slog.Warn("concurrent review detected, retrying",
					"user_id", userID, "question_id", questionID, "attempt", attempt+1)
				continue
			}
			return domain.Card{}, err
		}

		if err := s.db.InsertReviewLog(ctx, domain.ReviewLog{
			UserID:     userID,
			QuestionID: questionID,
			Grade:      grade,
			ReviewedAt: now,
		}); err != nil {
			// The card state is already durable; a missing history row is
			// logged, not fatal.
			slog.Warn("failed to record review log",
				"user_id", userID, "question_id", questionID, "error", err)
		}
		return next, nil
	}
	return domain.Card{}, fmt.Errorf("review for %s/%s not recorded after %d attempts: %w",
		userID, questionID, maxSaveAttempts, lastErr)
}

// Preview returns the card state each grade would produce, without persisting.
func (s *Service) Preview(ctx context.Context, userID, questionID uuid.UUID, now time.Time) (map[domain.Grade]domain.Card, error) {
	card, err := s.db.GetOrCreateCard(ctx, userID, questionID, now)
	if err != nil {
		return nil, err
	}
	return s.params.Preview(card, now), nil
}

// StartSession opens a new study session for the user.
func (s *Service) StartSession(ctx context.Context, userID uuid.UUID, sessionType domain.SessionType, now time.Time) (domain.StudySession, error) {
	session := domain.StudySession{
		ID:        uuid.New(),
		UserID:    userID,
		Type:      sessionType,
		StartedAt: now,
	}
	if err := s.db.InsertSession(ctx, session); err != nil {
		return domain.StudySession{}, err
	}
	return session, nil
}

// Answer is one submitted answer within a session.
type Answer struct {
	SessionID    uuid.UUID
	QuestionID   uuid.UUID
	UserAnswer   string
	ResponseTime time.Duration
	SelfRating   string // easy / medium / hard
}

// AnswerResult reports correctness and the updated schedule to the caller.
type AnswerResult struct {
	IsCorrect     bool         `json:"is_correct"`
	CorrectAnswer string       `json:"correct_answer"`
	Explanation   string       `json:"explanation,omitempty"`
	Grade         domain.Grade `json:"grade"`
	Card          domain.Card  `json:"card"`
}

// SubmitAnswer checks the answer against the question, derives the scheduler
// grade from correctness and self-rating, records the review, and stores the
// attempt for session statistics.
func (s *Service) SubmitAnswer(ctx context.Context, a Answer, now time.Time) (AnswerResult, error) {
	session, err := s.db.GetSession(ctx, a.SessionID)
	if err != nil {
		return AnswerResult{}, err
	}
	if session.Completed() {
		return AnswerResult{}, fmt.Errorf("session %s: %w", a.SessionID, ErrSessionCompleted)
	}

	question, err := s.db.GetQuestion(ctx, a.QuestionID)
	if err != nil {
		return AnswerResult{}, err
	}

	isCorrect := a.UserAnswer == question.Answer
	grade := domain.GradeFromAttempt(isCorrect, a.SelfRating)

	card, err := s.Record(ctx, session.UserID, a.QuestionID, grade, now)
	if err != nil {
		return AnswerResult{}, err
	}

	if err := s.db.InsertAttempt(ctx, domain.QuestionAttempt{
		ID:           uuid.New(),
		SessionID:    a.SessionID,
		QuestionID:   a.QuestionID,
		UserAnswer:   a.UserAnswer,
		IsCorrect:    isCorrect,
		ResponseTime: a.ResponseTime,
		SelfRating:   a.SelfRating,
		Grade:        grade,
		CreatedAt:    now,
	}); err != nil {
		return AnswerResult{}, err
	}

	return AnswerResult{
		IsCorrect:     isCorrect,
		CorrectAnswer: question.Answer,
		Explanation:   question.Explanation,
		Grade:         grade,
		Card:          card,
	}, nil
}

// CompleteSession tallies the session's attempts and closes it.
func (s *Service) CompleteSession(ctx context.Context, sessionID uuid.UUID, now time.Time) (domain.StudySession, error) {
	session, err := s.db.GetSession(ctx, sessionID)
	if err != nil {
		return domain.StudySession{}, err
	}
	if session.Completed() {
		return domain.StudySession{}, fmt.Errorf("session %s: %w", sessionID, ErrSessionCompleted)
	}

	attempts, err := s.db.AttemptsBySession(ctx, sessionID)
	if err != nil {
		return domain.StudySession{}, err
	}

	session.CompletedAt = now
	session.TotalQuestions = len(attempts)
	for _, attempt := range attempts {
		if attempt.IsCorrect {
			session.CorrectAnswers++
		}
	}
	if session.TotalQuestions > 0 {
		session.Accuracy = float64(session.CorrectAnswers) / float64(session.TotalQuestions) * 100
	}

	if err := s.db.CompleteSession(ctx, session); err != nil {
		return domain.StudySession{}, err
	}
	return session, nil
}
