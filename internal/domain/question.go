package domain

import (
	"time"

	"github.com/google/uuid"
)

// Priority ranks a learning objective for review recommendations.
type Priority string

const (
	PriorityHigh   Priority = "High"
	PriorityMedium Priority = "Medium"
	PriorityLow    Priority = "Low"
)

// LearningObjective groups questions under a single topic extracted from a
// source document or an imported deck.
type LearningObjective struct {
	ID             uuid.UUID `json:"id"`
	Title          string    `json:"title"`
	Priority       Priority  `json:"priority"`
	Tags           []string  `json:"tags,omitempty"`
	MasteryPercent float64   `json:"mastery_percent"`
	CreatedAt      time.Time `json:"created_at"`
}

// Question is a multiple-choice question belonging to a learning objective.
// Hash is the normalized content hash used to dedupe imported questions.
type Question struct {
	ID          uuid.UUID `json:"id"`
	ObjectiveID uuid.UUID `json:"objective_id"`
	Text        string    `json:"text"`
	Options     []string  `json:"options"`
	Answer      string    `json:"answer"`
	Explanation string    `json:"explanation,omitempty"`
	Hash        string    `json:"-"`
	CreatedAt   time.Time `json:"created_at"`
}

// DueCard pairs a due scheduling card with its question for the review UI.
type DueCard struct {
	Card     Card     `json:"card"`
	Question Question `json:"question"`
}
