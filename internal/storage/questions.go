package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/recallforge/recallforge/internal/domain"
)

// InsertObjective persists a learning objective. A zero sourceID marks a
// manually created objective; imported objectives carry their deck source so
// deleting the source cascades.
func (db *DB) InsertObjective(ctx context.Context, lo domain.LearningObjective, sourceID int64) error {
	tags, err := json.Marshal(lo.Tags)
	if err != nil {
		return fmt.Errorf("failed to encode tags for objective %s: %w", lo.ID, err)
	}
	_, err = db.conn.ExecContext(ctx, `
		INSERT INTO learning_objectives (id, title, priority, tags, mastery_percent, source_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		lo.ID.String(),
		lo.Title,
		string(lo.Priority),
		string(tags),
		lo.MasteryPercent,
		nullInt64(sourceID),
		lo.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert objective %s: %w", lo.ID, err)
	}
	return nil
}

// GetObjective retrieves a learning objective by ID.
func (db *DB) GetObjective(ctx context.Context, id uuid.UUID) (domain.LearningObjective, error) {
	row := db.conn.QueryRowContext(ctx, `
		SELECT id, title, priority, tags, mastery_percent, created_at
		FROM learning_objectives WHERE id = ?
	`, id.String())
	lo, err := scanObjective(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return domain.LearningObjective{}, fmt.Errorf("objective %s: %w", id, ErrNotFound)
		}
		return domain.LearningObjective{}, fmt.Errorf("failed to get objective %s: %w", id, err)
	}
	return lo, nil
}

// ListObjectives returns all learning objectives, newest first.
func (db *DB) ListObjectives(ctx context.Context) ([]domain.LearningObjective, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT id, title, priority, tags, mastery_percent, created_at
		FROM learning_objectives ORDER BY created_at DESC, id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list objectives: %w", err)
	}
	defer rows.Close()

	var objectives []domain.LearningObjective
	for rows.Next() {
		lo, err := scanObjective(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan objective row: %w", err)
		}
		objectives = append(objectives, lo)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read objectives: %w", err)
	}
	return objectives, nil
}

// FindObjectiveBySource returns the objective created for a deck source.
// Returns ErrNotFound when the source has no objective yet.
func (db *DB) FindObjectiveBySource(ctx context.Context, sourceID int64) (domain.LearningObjective, error) {
	row := db.conn.QueryRowContext(ctx, `
		SELECT id, title, priority, tags, mastery_percent, created_at
		FROM learning_objectives WHERE source_id = ?
	`, sourceID)
	lo, err := scanObjective(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return domain.LearningObjective{}, fmt.Errorf("objective for source %d: %w", sourceID, ErrNotFound)
		}
		return domain.LearningObjective{}, fmt.Errorf("failed to find objective for source %d: %w", sourceID, err)
	}
	return lo, nil
}

// UpdateObjectiveMastery stores a recomputed mastery percentage.
func (db *DB) UpdateObjectiveMastery(ctx context.Context, id uuid.UUID, masteryPercent float64) error {
	_, err := db.conn.ExecContext(ctx, `
		UPDATE learning_objectives SET mastery_percent = ? WHERE id = ?
	`, masteryPercent, id.String())
	if err != nil {
		return fmt.Errorf("failed to update mastery for objective %s: %w", id, err)
	}
	return nil
}

// InsertQuestion persists a question under its objective. Returns
// ErrDuplicate when a question with the same content hash already exists.
func (db *DB) InsertQuestion(ctx context.Context, q domain.Question, sourceID int64) error {
	options, err := json.Marshal(q.Options)
	if err != nil {
		return fmt.Errorf("failed to encode options for question %s: %w", q.ID, err)
	}
	_, err = db.conn.ExecContext(ctx, `
		INSERT INTO questions (id, objective_id, question_text, options, answer, explanation, hash, source_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		q.ID.String(),
		q.ObjectiveID.String(),
		q.Text,
		string(options),
		q.Answer,
		q.Explanation,
		q.Hash,
		nullInt64(sourceID),
		q.CreatedAt.UTC(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("a question with identical content already exists: %w", ErrDuplicate)
		}
		return fmt.Errorf("failed to insert question %s: %w", q.ID, err)
	}
	return nil
}

// GetQuestion retrieves a question by ID.
func (db *DB) GetQuestion(ctx context.Context, id uuid.UUID) (domain.Question, error) {
	row := db.conn.QueryRowContext(ctx, `
		SELECT id, objective_id, question_text, options, answer, explanation, hash, created_at
		FROM questions WHERE id = ?
	`, id.String())
	q, err := scanQuestion(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return domain.Question{}, fmt.Errorf("question %s: %w", id, ErrNotFound)
		}
		return domain.Question{}, fmt.Errorf("failed to get question %s: %w", id, err)
	}
	return q, nil
}

// FindQuestionByHash retrieves a question by its normalized content hash.
// Returns ErrNotFound when no question matches.
func (db *DB) FindQuestionByHash(ctx context.Context, hash string) (domain.Question, error) {
	row := db.conn.QueryRowContext(ctx, `
		SELECT id, objective_id, question_text, options, answer, explanation, hash, created_at
		FROM questions WHERE hash = ?
	`, hash)
	q, err := scanQuestion(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return domain.Question{}, fmt.Errorf("question hash %s: %w", hash, ErrNotFound)
		}
		return domain.Question{}, fmt.Errorf("failed to find question by hash %s: %w", hash, err)
	}
	return q, nil
}

// QuestionsByObjective returns all questions under a learning objective.
func (db *DB) QuestionsByObjective(ctx context.Context, objectiveID uuid.UUID) ([]domain.Question, error) {
	return db.queryQuestions(ctx, `
		SELECT id, objective_id, question_text, options, answer, explanation, hash, created_at
		FROM questions WHERE objective_id = ? ORDER BY created_at, id
	`, objectiveID.String())
}

// QuestionsBySource returns all questions imported from a deck source.
func (db *DB) QuestionsBySource(ctx context.Context, sourceID int64) ([]domain.Question, error) {
	return db.queryQuestions(ctx, `
		SELECT id, objective_id, question_text, options, answer, explanation, hash, created_at
		FROM questions WHERE source_id = ? ORDER BY created_at, id
	`, sourceID)
}

// DeleteQuestion removes a question; cards and attempts cascade.
func (db *DB) DeleteQuestion(ctx context.Context, id uuid.UUID) error {
	res, err := db.conn.ExecContext(ctx, `DELETE FROM questions WHERE id = ?`, id.String())
	if err != nil {
		return fmt.Errorf("failed to delete question %s: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete question %s: %w", id, err)
	}
	if affected == 0 {
		return fmt.Errorf("question %s: %w", id, ErrNotFound)
	}
	return nil
}

// DueCardsWithQuestions returns the user's due cards joined with their
// questions, for the review surface.
func (db *DB) DueCardsWithQuestions(ctx context.Context, userID uuid.UUID, q DueQuery) ([]domain.DueCard, error) {
	cards, err := db.DueCards(ctx, userID, q)
	if err != nil {
		return nil, err
	}
	due := make([]domain.DueCard, 0, len(cards))
	for _, card := range cards {
		question, err := db.GetQuestion(ctx, card.QuestionID)
		if err != nil {
			return nil, err
		}
		due = append(due, domain.DueCard{Card: card, Question: question})
	}
	return due, nil
}

func (db *DB) queryQuestions(ctx context.Context, query string, args ...any) ([]domain.Question, error) {
	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query questions: %w", err)
	}
	defer rows.Close()

	var questions []domain.Question
	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan question row: %w", err)
		}
		questions = append(questions, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read questions: %w", err)
	}
	return questions, nil
}

func scanObjective(s scanner) (domain.LearningObjective, error) {
	var (
		lo       domain.LearningObjective
		id       string
		priority string
		tags     string
	)
	if err := s.Scan(&id, &lo.Title, &priority, &tags, &lo.MasteryPercent, &lo.CreatedAt); err != nil {
		return domain.LearningObjective{}, err
	}
	var err error
	if lo.ID, err = uuid.Parse(id); err != nil {
		return domain.LearningObjective{}, fmt.Errorf("bad objective id %q: %w", id, err)
	}
	lo.Priority = domain.Priority(priority)
	if err := json.Unmarshal([]byte(tags), &lo.Tags); err != nil {
		return domain.LearningObjective{}, fmt.Errorf("bad tags for objective %s: %w", id, err)
	}
	return lo, nil
}

func scanQuestion(s scanner) (domain.Question, error) {
	var (
		q           domain.Question
		id          string
		objectiveID string
		options     string
	)
	if err := s.Scan(&id, &objectiveID, &q.Text, &options, &q.Answer, &q.Explanation, &q.Hash, &q.CreatedAt); err != nil {
		return domain.Question{}, err
	}
	var err error
	if q.ID, err = uuid.Parse(id); err != nil {
		return domain.Question{}, fmt.Errorf("bad question id %q: %w", id, err)
	}
	if q.ObjectiveID, err = uuid.Parse(objectiveID); err != nil {
		return domain.Question{}, fmt.Errorf("bad objective id %q: %w", objectiveID, err)
	}
	if err := json.Unmarshal([]byte(options), &q.Options); err != nil {
		return domain.Question{}, fmt.Errorf("bad options for question %s: %w", id, err)
	}
	return q, nil
}

func nullInt64(v int64) any {
	if v == 0 {
		return nil
	}
	return v
}
