package web

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/recallforge/recallforge/internal/domain"
	"github.com/recallforge/recallforge/internal/importer"
	"github.com/recallforge/recallforge/internal/knol"
	"github.com/recallforge/recallforge/internal/review"
	"github.com/recallforge/recallforge/internal/storage"
)

// handleGetDue returns the caller's due cards joined with their questions.
// Pagination: ?limit=N&after_due=RFC3339&after_question=uuid resume from the
// last row of the previous page.
func (s *Server) handleGetDue() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, err := userID(r)
		if err != nil {
			respondBadRequest(w, err.Error())
			return
		}

		q := storage.DueQuery{Before: time.Now()}
		if raw := r.URL.Query().Get("limit"); raw != "" {
			if q.Limit, err = strconv.Atoi(raw); err != nil || q.Limit < 0 {
				respondBadRequest(w, "invalid limit")
				return
			}
		}
		if raw := r.URL.Query().Get("after_due"); raw != "" {
			if q.AfterDue, err = time.Parse(time.RFC3339, raw); err != nil {
				respondBadRequest(w, "invalid after_due timestamp")
				return
			}
		}
		if raw := r.URL.Query().Get("after_question"); raw != "" {
			if q.AfterQuestion, err = uuid.Parse(raw); err != nil {
				respondBadRequest(w, "invalid after_question id")
				return
			}
		}

		due, err := s.db.DueCardsWithQuestions(r.Context(), uid, q)
		if err != nil {
			respondError(w, err)
			return
		}
		respondJSON(w, http.StatusOK, map[string]any{"due": due, "count": len(due)})
	}
}

func (s *Server) handleGetDueCount() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, err := userID(r)
		if err != nil {
			respondBadRequest(w, err.Error())
			return
		}
		count, err := s.db.CountDue(r.Context(), uid, time.Now())
		if err != nil {
			respondError(w, err)
			return
		}
		respondJSON(w, http.StatusOK, map[string]int{"due_count": count})
	}
}

type reviewRequest struct {
	Grade      domain.Grade `json:"grade"`
	ReviewedAt time.Time    `json:"reviewed_at,omitzero"`
}

// handlePostReview records a direct grading event for a question.
func (s *Server) handlePostReview() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, err := userID(r)
		if err != nil {
			respondBadRequest(w, err.Error())
			return
		}
		questionID, err := uuid.Parse(r.PathValue("questionID"))
		if err != nil {
			respondBadRequest(w, "invalid question id")
			return
		}

		var req reviewRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondBadRequest(w, "invalid request body: "+err.Error())
			return
		}
		now := req.ReviewedAt
		if now.IsZero() {
			now = time.Now()
		}

		// Reviewing a question that does not exist is a 404, not a
		// foreign-key error.
		if _, err := s.db.GetQuestion(r.Context(), questionID); err != nil {
			respondError(w, err)
			return
		}

		card, err := s.reviews.Record(r.Context(), uid, questionID, req.Grade, now)
		if err != nil {
			respondError(w, err)
			return
		}
		respondJSON(w, http.StatusOK, card)
	}
}

func (s *Server) handleGetPreview() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, err := userID(r)
		if err != nil {
			respondBadRequest(w, err.Error())
			return
		}
		questionID, err := uuid.Parse(r.PathValue("questionID"))
		if err != nil {
			respondBadRequest(w, "invalid question id")
			return
		}
		if _, err := s.db.GetQuestion(r.Context(), questionID); err != nil {
			respondError(w, err)
			return
		}
		preview, err := s.reviews.Preview(r.Context(), uid, questionID, time.Now())
		if err != nil {
			respondError(w, err)
			return
		}
		respondJSON(w, http.StatusOK, preview)
	}
}

type sessionRequest struct {
	Type domain.SessionType `json:"type" validate:"required,oneof=study test"`
}

func (s *Server) handlePostSession() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, err := userID(r)
		if err != nil {
			respondBadRequest(w, err.Error())
			return
		}
		var req sessionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondBadRequest(w, "invalid request body: "+err.Error())
			return
		}
		if err := s.validate.Struct(req); err != nil {
			respondBadRequest(w, err.Error())
			return
		}
		session, err := s.reviews.StartSession(r.Context(), uid, req.Type, time.Now())
		if err != nil {
			respondError(w, err)
			return
		}
		respondJSON(w, http.StatusCreated, session)
	}
}

type answerRequest struct {
	QuestionID     uuid.UUID `json:"question_id" validate:"required"`
	UserAnswer     string    `json:"user_answer" validate:"required"`
	ResponseTimeMS int64     `json:"response_time_ms" validate:"min=0"`
	SelfRating     string    `json:"self_rating" validate:"omitempty,oneof=easy medium hard"`
}

func (s *Server) handlePostAnswer() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID, err := uuid.Parse(r.PathValue("sessionID"))
		if err != nil {
			respondBadRequest(w, "invalid session id")
			return
		}
		var req answerRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondBadRequest(w, "invalid request body: "+err.Error())
			return
		}
		if err := s.validate.Struct(req); err != nil {
			respondBadRequest(w, err.Error())
			return
		}
		result, err := s.reviews.SubmitAnswer(r.Context(), review.Answer{
			SessionID:    sessionID,
			QuestionID:   req.QuestionID,
			UserAnswer:   req.UserAnswer,
			ResponseTime: time.Duration(req.ResponseTimeMS) * time.Millisecond,
			SelfRating:   req.SelfRating,
		}, time.Now())
		if err != nil {
			respondError(w, err)
			return
		}
		respondJSON(w, http.StatusOK, result)
	}
}

func (s *Server) handlePostComplete() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID, err := uuid.Parse(r.PathValue("sessionID"))
		if err != nil {
			respondBadRequest(w, "invalid session id")
			return
		}
		session, err := s.reviews.CompleteSession(r.Context(), sessionID, time.Now())
		if err != nil {
			respondError(w, err)
			return
		}
		respondJSON(w, http.StatusOK, session)
	}
}

func (s *Server) handleGetObjectives() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		objectives, err := s.db.ListObjectives(r.Context())
		if err != nil {
			respondError(w, err)
			return
		}
		respondJSON(w, http.StatusOK, map[string]any{"objectives": objectives})
	}
}

type objectiveRequest struct {
	Title    string   `json:"title" validate:"required"`
	Priority string   `json:"priority" validate:"omitempty,oneof=High Medium Low"`
	Tags     []string `json:"tags"`
}

func (s *Server) handlePostObjective() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req objectiveRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondBadRequest(w, "invalid request body: "+err.Error())
			return
		}
		if err := s.validate.Struct(req); err != nil {
			respondBadRequest(w, err.Error())
			return
		}
		priority := domain.Priority(req.Priority)
		if priority == "" {
			priority = domain.PriorityMedium
		}
		objective := domain.LearningObjective{
			ID:        uuid.New(),
			Title:     req.Title,
			Priority:  priority,
			Tags:      req.Tags,
			CreatedAt: time.Now().UTC(),
		}
		if err := s.db.InsertObjective(r.Context(), objective, 0); err != nil {
			respondError(w, err)
			return
		}
		respondJSON(w, http.StatusCreated, objective)
	}
}

func (s *Server) handleGetObjectiveQuestions() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		objectiveID, err := uuid.Parse(r.PathValue("objectiveID"))
		if err != nil {
			respondBadRequest(w, "invalid objective id")
			return
		}
		if _, err := s.db.GetObjective(r.Context(), objectiveID); err != nil {
			respondError(w, err)
			return
		}
		questions, err := s.db.QuestionsByObjective(r.Context(), objectiveID)
		if err != nil {
			respondError(w, err)
			return
		}
		respondJSON(w, http.StatusOK, map[string]any{"questions": questions})
	}
}

func (s *Server) handleGetObjectiveMastery() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, err := userID(r)
		if err != nil {
			respondBadRequest(w, err.Error())
			return
		}
		objectiveID, err := uuid.Parse(r.PathValue("objectiveID"))
		if err != nil {
			respondBadRequest(w, "invalid objective id")
			return
		}
		if _, err := s.db.GetObjective(r.Context(), objectiveID); err != nil {
			respondError(w, err)
			return
		}
		mastery, err := s.progress.ObjectiveMastery(r.Context(), uid, objectiveID, time.Now())
		if err != nil {
			respondError(w, err)
			return
		}
		respondJSON(w, http.StatusOK, map[string]float64{"mastery_percent": mastery})
	}
}

type questionRequest struct {
	ObjectiveID uuid.UUID `json:"objective_id" validate:"required"`
	Text        string    `json:"text" validate:"required"`
	Options     []string  `json:"options" validate:"omitempty,min=2,dive,required"`
	Answer      string    `json:"answer" validate:"required"`
	Explanation string    `json:"explanation"`
}

func (s *Server) handlePostQuestion() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req questionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondBadRequest(w, "invalid request body: "+err.Error())
			return
		}
		if err := s.validate.Struct(req); err != nil {
			respondBadRequest(w, err.Error())
			return
		}
		if _, err := s.db.GetObjective(r.Context(), req.ObjectiveID); err != nil {
			respondError(w, err)
			return
		}
		question := domain.Question{
			ID:          uuid.New(),
			ObjectiveID: req.ObjectiveID,
			Text:        req.Text,
			Options:     req.Options,
			Answer:      req.Answer,
			Explanation: req.Explanation,
			Hash: knol.Hash(domain.DeckEntry{
				Text:    req.Text,
				Options: req.Options,
				Answer:  req.Answer,
			}),
			CreatedAt: time.Now().UTC(),
		}
		if err := s.db.InsertQuestion(r.Context(), question, 0); err != nil {
			respondError(w, err)
			return
		}
		respondJSON(w, http.StatusCreated, question)
	}
}

func (s *Server) handleDeleteQuestion() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		questionID, err := uuid.Parse(r.PathValue("questionID"))
		if err != nil {
			respondBadRequest(w, "invalid question id")
			return
		}
		if err := s.db.DeleteQuestion(r.Context(), questionID); err != nil {
			respondError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) handleGetProgress() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, err := userID(r)
		if err != nil {
			respondBadRequest(w, err.Error())
			return
		}
		summary, err := s.progress.Overview(r.Context(), uid, time.Now())
		if err != nil {
			respondError(w, err)
			return
		}
		respondJSON(w, http.StatusOK, summary)
	}
}

func (s *Server) handleGetSources() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sources, err := s.db.GetAllSources(r.Context())
		if err != nil {
			respondError(w, err)
			return
		}
		respondJSON(w, http.StatusOK, map[string]any{"sources": sources})
	}
}

type sourceRequest struct {
	Path string `json:"path" validate:"required"`
}

func (s *Server) handlePostSource() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req sourceRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondBadRequest(w, "invalid request body: "+err.Error())
			return
		}
		if err := s.validate.Struct(req); err != nil {
			respondBadRequest(w, err.Error())
			return
		}
		sourceType := importer.SourceType(req.Path)
		id, err := s.db.InsertSource(r.Context(), req.Path, sourceType)
		if err != nil {
			respondError(w, err)
			return
		}
		respondJSON(w, http.StatusCreated, map[string]any{"id": id, "path": req.Path, "type": sourceType})
	}
}

func (s *Server) handleDeleteSource() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(r.PathValue("sourceID"), 10, 64)
		if err != nil {
			respondBadRequest(w, "invalid source id")
			return
		}
		if err := s.db.DeleteSource(r.Context(), id); err != nil {
			respondError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// handlePostSync triggers a reconcile of all deck sources in the foreground.
func (s *Server) handlePostSync() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.importer == nil {
			respondJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "deck import not configured"})
			return
		}
		if err := s.importer.SyncAll(r.Context()); err != nil {
			respondError(w, err)
			return
		}
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
