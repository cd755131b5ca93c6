package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/recallforge/recallforge/internal/domain"
)

// InsertSession persists a newly started study session.
func (db *DB) InsertSession(ctx context.Context, s domain.StudySession) error {
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO study_sessions (id, user_id, session_type, started_at, completed_at, total_questions, correct_answers, accuracy)
		VALUES (?, ?, ?, ?, NULL, 0, 0, 0)
	`, s.ID.String(), s.UserID.String(), string(s.Type), s.StartedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to insert session %s: %w", s.ID, err)
	}
	return nil
}

// GetSession retrieves a study session by ID.
func (db *DB) GetSession(ctx context.Context, id uuid.UUID) (domain.StudySession, error) {
	row := db.conn.QueryRowContext(ctx, `
		SELECT id, user_id, session_type, started_at, completed_at, total_questions, correct_answers, accuracy
		FROM study_sessions WHERE id = ?
	`, id.String())
	s, err := scanSession(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return domain.StudySession{}, fmt.Errorf("session %s: %w", id, ErrNotFound)
		}
		return domain.StudySession{}, fmt.Errorf("failed to get session %s: %w", id, err)
	}
	return s, nil
}

// CompleteSession closes the session with its final totals.
func (db *DB) CompleteSession(ctx context.Context, s domain.StudySession) error {
	res, err := db.conn.ExecContext(ctx, `
		UPDATE study_sessions
		SET completed_at = ?, total_questions = ?, correct_answers = ?, accuracy = ?
		WHERE id = ?
	`, s.CompletedAt.UTC(), s.TotalQuestions, s.CorrectAnswers, s.Accuracy, s.ID.String())
	if err != nil {
		return fmt.Errorf("failed to complete session %s: %w", s.ID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to complete session %s: %w", s.ID, err)
	}
	if affected == 0 {
		return fmt.Errorf("session %s: %w", s.ID, ErrNotFound)
	}
	return nil
}

// CompletedSessions returns the user's completed sessions, newest first.
func (db *DB) CompletedSessions(ctx context.Context, userID uuid.UUID) ([]domain.StudySession, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT id, user_id, session_type, started_at, completed_at, total_questions, correct_answers, accuracy
		FROM study_sessions
		WHERE user_id = ? AND completed_at IS NOT NULL
		ORDER BY completed_at DESC
	`, userID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions for %s: %w", userID, err)
	}
	defer rows.Close()

	var sessions []domain.StudySession
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session row: %w", err)
		}
		sessions = append(sessions, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read sessions for %s: %w", userID, err)
	}
	return sessions, nil
}

// InsertAttempt records one answered question within a session.
func (db *DB) InsertAttempt(ctx context.Context, a domain.QuestionAttempt) error {
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO question_attempts (id, session_id, question_id, user_answer, is_correct, response_time_ms, self_rating, grade, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		a.ID.String(),
		a.SessionID.String(),
		a.QuestionID.String(),
		a.UserAnswer,
		a.IsCorrect,
		a.ResponseTime.Milliseconds(),
		a.SelfRating,
		int(a.Grade),
		a.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert attempt %s: %w", a.ID, err)
	}
	return nil
}

// AttemptsBySession returns the attempts recorded in a session, oldest first.
func (db *DB) AttemptsBySession(ctx context.Context, sessionID uuid.UUID) ([]domain.QuestionAttempt, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT id, session_id, question_id, user_answer, is_correct, response_time_ms, self_rating, grade, created_at
		FROM question_attempts WHERE session_id = ? ORDER BY created_at, id
	`, sessionID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to query attempts for session %s: %w", sessionID, err)
	}
	defer rows.Close()

	var attempts []domain.QuestionAttempt
	for rows.Next() {
		var (
			a          domain.QuestionAttempt
			id         string
			sessionStr string
			questionID string
			responseMS int64
			grade      int
		)
		if err := rows.Scan(&id, &sessionStr, &questionID, &a.UserAnswer, &a.IsCorrect, &responseMS, &a.SelfRating, &grade, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan attempt row: %w", err)
		}
		if a.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("bad attempt id %q: %w", id, err)
		}
		if a.SessionID, err = uuid.Parse(sessionStr); err != nil {
			return nil, fmt.Errorf("bad session id %q: %w", sessionStr, err)
		}
		if a.QuestionID, err = uuid.Parse(questionID); err != nil {
			return nil, fmt.Errorf("bad question id %q: %w", questionID, err)
		}
		a.ResponseTime = time.Duration(responseMS) * time.Millisecond
		a.Grade = domain.Grade(grade)
		attempts = append(attempts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read attempts for session %s: %w", sessionID, err)
	}
	return attempts, nil
}

func scanSession(s scanner) (domain.StudySession, error) {
	var (
		session     domain.StudySession
		id          string
		userID      string
		sessionType string
		completedAt sql.NullTime
	)
	err := s.Scan(&id, &userID, &sessionType, &session.StartedAt, &completedAt,
		&session.TotalQuestions, &session.CorrectAnswers, &session.Accuracy)
	if err != nil {
		return domain.StudySession{}, err
	}
	if session.ID, err = uuid.Parse(id); err != nil {
		return domain.StudySession{}, fmt.Errorf("bad session id %q: %w", id, err)
	}
	if session.UserID, err = uuid.Parse(userID); err != nil {
		return domain.StudySession{}, fmt.Errorf("bad user id %q: %w", userID, err)
	}
	session.Type = domain.SessionType(sessionType)
	if completedAt.Valid {
		session.CompletedAt = completedAt.Time
	}
	return session, nil
}
