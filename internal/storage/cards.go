package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/recallforge/recallforge/internal/domain"
)

// GetOrCreateCard returns the scheduling card for (userID, questionID),
// inserting a fresh New card due at now if none exists. The insert uses
// ON CONFLICT DO NOTHING so concurrent first access yields exactly one row.
func (db *DB) GetOrCreateCard(ctx context.Context, userID, questionID uuid.UUID, now time.Time) (domain.Card, error) {
	fresh := domain.NewCard(userID, questionID, now)
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO cards (user_id, question_id, state, step, stability, difficulty, due_date, last_review, reps, lapses)
		VALUES (?, ?, ?, ?, ?, ?, ?, NULL, ?, ?)
		ON CONFLICT(user_id, question_id) DO NOTHING
	`,
		fresh.UserID.String(),
		fresh.QuestionID.String(),
		int(fresh.State),
		fresh.Step,
		fresh.Stability,
		fresh.Difficulty,
		fresh.Due.UTC(),
		fresh.Reps,
		fresh.Lapses,
	)
	if err != nil {
		return domain.Card{}, fmt.Errorf("failed to upsert card %s/%s: %w", userID, questionID, err)
	}
	return db.GetCard(ctx, userID, questionID)
}

// GetCard retrieves the card for (userID, questionID).
// Returns ErrNotFound if no card exists.
func (db *DB) GetCard(ctx context.Context, userID, questionID uuid.UUID) (domain.Card, error) {
	row := db.conn.QueryRowContext(ctx, `
		SELECT user_id, question_id, state, step, stability, difficulty, due_date, last_review, reps, lapses
		FROM cards WHERE user_id = ? AND question_id = ?
	`, userID.String(), questionID.String())

	card, err := scanCard(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return domain.Card{}, fmt.Errorf("card %s/%s: %w", userID, questionID, ErrNotFound)
		}
		return domain.Card{}, fmt.Errorf("failed to get card %s/%s: %w", userID, questionID, err)
	}
	return card, nil
}

// SaveCard overwrites the card row, but only if no newer review has been
// persisted since the caller read the card. prevLastReview is the LastReview
// value the caller observed (zero for a never-reviewed card); if the stored
// row's last_review is strictly newer, the write is rejected with
// ErrStaleWrite and storage is unchanged.
func (db *DB) SaveCard(ctx context.Context, card domain.Card, prevLastReview time.Time) error {
	var lastReview any
	if card.Reviewed() {
		lastReview = card.LastReview.UTC()
	}

	res, err := db.conn.ExecContext(ctx, `
		UPDATE cards
		SET state = ?, step = ?, stability = ?, difficulty = ?, due_date = ?, last_review = ?, reps = ?, lapses = ?
		WHERE user_id = ? AND question_id = ?
		  AND (last_review IS NULL OR last_review <= ?)
	`,
		int(card.State),
		card.Step,
		card.Stability,
		card.Difficulty,
		card.Due.UTC(),
		lastReview,
		card.Reps,
		card.Lapses,
		card.UserID.String(),
		card.QuestionID.String(),
		prevLastReview.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to save card %s/%s: %w", card.UserID, card.QuestionID, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to save card %s/%s: %w", card.UserID, card.QuestionID, err)
	}
	if affected == 0 {
		// Either the row is gone or a newer review won the race.
		if _, getErr := db.GetCard(ctx, card.UserID, card.QuestionID); getErr != nil {
			return getErr
		}
		return fmt.Errorf("card %s/%s: %w", card.UserID, card.QuestionID, ErrStaleWrite)
	}
	return nil
}

// DueQuery selects a page of due cards. AfterDue/AfterQuestion form the
// keyset cursor: results strictly after that (due_date, question_id) pair.
type DueQuery struct {
	Before        time.Time
	Limit         int
	AfterDue      time.Time
	AfterQuestion uuid.UUID
}

// DueCards returns the user's cards with due_date <= q.Before, ascending by
// (due_date, question_id). A zero cursor starts from the beginning; a zero
// limit returns everything.
func (db *DB) DueCards(ctx context.Context, userID uuid.UUID, q DueQuery) ([]domain.Card, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = -1 // sqlite: no limit
	}
	rows, err := db.conn.QueryContext(ctx, `
		SELECT user_id, question_id, state, step, stability, difficulty, due_date, last_review, reps, lapses
		FROM cards
		WHERE user_id = ? AND due_date <= ?
		  AND (due_date > ? OR (due_date = ? AND question_id > ?))
		ORDER BY due_date ASC, question_id ASC
		LIMIT ?
	`,
		userID.String(),
		q.Before.UTC(),
		q.AfterDue.UTC(),
		q.AfterDue.UTC(),
		q.AfterQuestion.String(),
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query due cards for %s: %w", userID, err)
	}
	defer rows.Close()

	var cards []domain.Card
	for rows.Next() {
		card, err := scanCard(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan due card row: %w", err)
		}
		cards = append(cards, card)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read due cards for %s: %w", userID, err)
	}
	return cards, nil
}

// CountDue returns the number of cards due for the user at or before the
// given time.
func (db *DB) CountDue(ctx context.Context, userID uuid.UUID, before time.Time) (int, error) {
	var count int
	err := db.conn.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM cards WHERE user_id = ? AND due_date <= ?
	`, userID.String(), before.UTC()).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count due cards for %s: %w", userID, err)
	}
	return count, nil
}

// CardsByObjective returns all of the user's cards for questions under the
// given learning objective.
func (db *DB) CardsByObjective(ctx context.Context, userID, objectiveID uuid.UUID) ([]domain.Card, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT c.user_id, c.question_id, c.state, c.step, c.stability, c.difficulty, c.due_date, c.last_review, c.reps, c.lapses
		FROM cards c
		JOIN questions q ON q.id = c.question_id
		WHERE c.user_id = ? AND q.objective_id = ?
	`, userID.String(), objectiveID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to query cards for objective %s: %w", objectiveID, err)
	}
	defer rows.Close()

	var cards []domain.Card
	for rows.Next() {
		card, err := scanCard(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan objective card row: %w", err)
		}
		cards = append(cards, card)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read cards for objective %s: %w", objectiveID, err)
	}
	return cards, nil
}

// InsertReviewLog appends a grading event to the review history.
func (db *DB) InsertReviewLog(ctx context.Context, log domain.ReviewLog) error {
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO review_logs (user_id, question_id, grade, reviewed_at)
		VALUES (?, ?, ?, ?)
	`, log.UserID.String(), log.QuestionID.String(), int(log.Grade), log.ReviewedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to insert review log for %s/%s: %w", log.UserID, log.QuestionID, err)
	}
	return nil
}

// CountReviews returns the total number of grading events for the user.
func (db *DB) CountReviews(ctx context.Context, userID uuid.UUID) (int, error) {
	var count int
	err := db.conn.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM review_logs WHERE user_id = ?
	`, userID.String()).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count reviews for %s: %w", userID, err)
	}
	return count, nil
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanCard(s scanner) (domain.Card, error) {
	var (
		card       domain.Card
		userID     string
		questionID string
		state      int
		lastReview sql.NullTime
	)
	err := s.Scan(
		&userID,
		&questionID,
		&state,
		&card.Step,
		&card.Stability,
		&card.Difficulty,
		&card.Due,
		&lastReview,
		&card.Reps,
		&card.Lapses,
	)
	if err != nil {
		return domain.Card{}, err
	}
	if card.UserID, err = uuid.Parse(userID); err != nil {
		return domain.Card{}, fmt.Errorf("bad user id %q: %w", userID, err)
	}
	if card.QuestionID, err = uuid.Parse(questionID); err != nil {
		return domain.Card{}, fmt.Errorf("bad question id %q: %w", questionID, err)
	}
	card.State = domain.State(state)
	if lastReview.Valid {
		card.LastReview = lastReview.Time
	}
	return card, nil
}
