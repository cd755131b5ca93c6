package domain

import (
	"time"

	"github.com/google/uuid"
)

// SessionType distinguishes untimed study from graded test sessions.
type SessionType string

const (
	SessionStudy SessionType = "study"
	SessionTest  SessionType = "test"
)

// StudySession is one sitting of reviews. Accuracy is filled on completion.
type StudySession struct {
	ID             uuid.UUID   `json:"id"`
	UserID         uuid.UUID   `json:"user_id"`
	Type           SessionType `json:"type"`
	StartedAt      time.Time   `json:"started_at"`
	CompletedAt    time.Time   `json:"completed_at,omitzero"`
	TotalQuestions int         `json:"total_questions"`
	CorrectAnswers int         `json:"correct_answers"`
	Accuracy       float64     `json:"accuracy"`
}

// Completed reports whether the session has been closed out.
func (s StudySession) Completed() bool {
	return !s.CompletedAt.IsZero()
}

// QuestionAttempt is one answered question within a session. SelfRating is the
// raw easy/medium/hard feedback from the UI; the scheduler grade derived from
// it is stored alongside for replay.
type QuestionAttempt struct {
	ID           uuid.UUID     `json:"id"`
	SessionID    uuid.UUID     `json:"session_id"`
	QuestionID   uuid.UUID     `json:"question_id"`
	UserAnswer   string        `json:"user_answer"`
	IsCorrect    bool          `json:"is_correct"`
	ResponseTime time.Duration `json:"response_time"`
	SelfRating   string        `json:"self_rating"`
	Grade        Grade         `json:"grade"`
	CreatedAt    time.Time     `json:"created_at"`
}
