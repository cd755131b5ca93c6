package web

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recallforge/recallforge/internal/domain"
	"github.com/recallforge/recallforge/internal/fsrs"
	"github.com/recallforge/recallforge/internal/progress"
	"github.com/recallforge/recallforge/internal/review"
	"github.com/recallforge/recallforge/internal/storage"
)

func newTestServer(t *testing.T) (*Server, *storage.DB) {
	t.Helper()
	db, err := storage.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	params := fsrs.DefaultParams()
	srv := NewServer(db, review.NewService(db, params), progress.NewService(db, params), nil,
		[]string{"http://localhost:5173"})
	return srv, db
}

// doJSON performs a request with an optional JSON body and the test user's
// identity header, and decodes the JSON response into out when non-nil.
func doJSON(t *testing.T, srv *Server, method, path string, userID uuid.UUID, body, out any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if userID != uuid.Nil {
		req.Header.Set("X-User-ID", userID.String())
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	if out != nil && rec.Code < 300 {
		require.NoError(t, json.NewDecoder(rec.Body).Decode(out))
	}
	return rec
}

func seedQuestion(t *testing.T, db *storage.DB) domain.Question {
	t.Helper()
	ctx := context.Background()
	lo := domain.LearningObjective{
		ID:        uuid.New(),
		Title:     "Seeded",
		Priority:  domain.PriorityMedium,
		Tags:      []string{},
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, db.InsertObjective(ctx, lo, 0))

	id := uuid.New()
	q := domain.Question{
		ID:          id,
		ObjectiveID: lo.ID,
		Text:        fmt.Sprintf("Seeded question %s?", id),
		Options:     []string{"yes", "no"},
		Answer:      "yes",
		Hash:        fmt.Sprintf("hash-%s", id),
		CreatedAt:   time.Now().UTC(),
	}
	require.NoError(t, db.InsertQuestion(ctx, q, 0))
	return q
}

func TestMissingUserHeader(t *testing.T) {
	srv, _ := newTestServer(t)
	rec := doJSON(t, srv, http.MethodGet, "/api/reviews/due", uuid.Nil, nil, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetDue(t *testing.T) {
	srv, db := newTestServer(t)
	userID := uuid.New()
	q := seedQuestion(t, db)

	// A card due in the past shows up; one due in the future does not.
	_, err := db.GetOrCreateCard(context.Background(), userID, q.ID, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	future := seedQuestion(t, db)
	_, err = db.GetOrCreateCard(context.Background(), userID, future.ID, time.Now().Add(time.Hour))
	require.NoError(t, err)

	var resp struct {
		Due   []domain.DueCard `json:"due"`
		Count int              `json:"count"`
	}
	rec := doJSON(t, srv, http.MethodGet, "/api/reviews/due", userID, nil, &resp)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, 1, resp.Count)
	assert.Equal(t, q.ID, resp.Due[0].Question.ID)

	var count struct {
		DueCount int `json:"due_count"`
	}
	rec = doJSON(t, srv, http.MethodGet, "/api/reviews/due/count", userID, nil, &count)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, count.DueCount)
}

func TestGetDueBadQueryParams(t *testing.T) {
	srv, _ := newTestServer(t)
	userID := uuid.New()

	for _, path := range []string{
		"/api/reviews/due?limit=abc",
		"/api/reviews/due?limit=-1",
		"/api/reviews/due?after_due=notatime",
		"/api/reviews/due?after_question=notauuid",
	} {
		rec := doJSON(t, srv, http.MethodGet, path, userID, nil, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code, path)
	}
}

func TestPostReview(t *testing.T) {
	srv, db := newTestServer(t)
	userID := uuid.New()
	q := seedQuestion(t, db)

	var card domain.Card
	rec := doJSON(t, srv, http.MethodPost, "/api/reviews/"+q.ID.String(), userID,
		map[string]any{"grade": "Good"}, &card)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, domain.StateLearning, card.State)
	assert.Equal(t, 1, card.Reps)
}

func TestPostReviewInvalidGrade(t *testing.T) {
	srv, db := newTestServer(t)
	q := seedQuestion(t, db)

	rec := doJSON(t, srv, http.MethodPost, "/api/reviews/"+q.ID.String(), uuid.New(),
		map[string]any{"grade": "Perfect"}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPostReviewUnknownQuestion(t *testing.T) {
	srv, _ := newTestServer(t)
	rec := doJSON(t, srv, http.MethodPost, "/api/reviews/"+uuid.NewString(), uuid.New(),
		map[string]any{"grade": "Good"}, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPostReviewOutOfOrder(t *testing.T) {
	srv, db := newTestServer(t)
	userID := uuid.New()
	q := seedQuestion(t, db)

	now := time.Now().UTC().Truncate(time.Second)
	rec := doJSON(t, srv, http.MethodPost, "/api/reviews/"+q.ID.String(), userID,
		map[string]any{"grade": "Good", "reviewed_at": now}, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, srv, http.MethodPost, "/api/reviews/"+q.ID.String(), userID,
		map[string]any{"grade": "Good", "reviewed_at": now.Add(-time.Hour)}, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestGetPreview(t *testing.T) {
	srv, db := newTestServer(t)
	q := seedQuestion(t, db)

	var preview map[string]domain.Card
	rec := doJSON(t, srv, http.MethodGet, "/api/reviews/"+q.ID.String()+"/preview", uuid.New(), nil, &preview)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, preview, 4)
	assert.Contains(t, preview, "Again")
	assert.Contains(t, preview, "Easy")
}

func TestSessionFlow(t *testing.T) {
	srv, db := newTestServer(t)
	userID := uuid.New()
	right := seedQuestion(t, db)
	wrong := seedQuestion(t, db)

	var session domain.StudySession
	rec := doJSON(t, srv, http.MethodPost, "/api/sessions", userID,
		map[string]any{"type": "study"}, &session)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, domain.SessionStudy, session.Type)

	base := "/api/sessions/" + session.ID.String()

	var result review.AnswerResult
	rec = doJSON(t, srv, http.MethodPost, base+"/answers", userID, map[string]any{
		"question_id":      right.ID,
		"user_answer":      "yes",
		"response_time_ms": 2500,
		"self_rating":      "easy",
	}, &result)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, result.IsCorrect)
	assert.Equal(t, domain.Easy, result.Grade)

	rec = doJSON(t, srv, http.MethodPost, base+"/answers", userID, map[string]any{
		"question_id": wrong.ID,
		"user_answer": "no",
	}, &result)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, result.IsCorrect)
	assert.Equal(t, domain.Again, result.Grade)
	assert.Equal(t, "yes", result.CorrectAnswer)

	var done domain.StudySession
	rec = doJSON(t, srv, http.MethodPost, base+"/complete", userID, nil, &done)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2, done.TotalQuestions)
	assert.Equal(t, 1, done.CorrectAnswers)
	assert.Equal(t, 50.0, done.Accuracy)

	// Answers after completion conflict.
	rec = doJSON(t, srv, http.MethodPost, base+"/answers", userID, map[string]any{
		"question_id": right.ID,
		"user_answer": "yes",
	}, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestPostSessionInvalidType(t *testing.T) {
	srv, _ := newTestServer(t)
	rec := doJSON(t, srv, http.MethodPost, "/api/sessions", uuid.New(),
		map[string]any{"type": "exam"}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestObjectiveAndQuestionCRUD(t *testing.T) {
	srv, _ := newTestServer(t)
	userID := uuid.New()

	var objective domain.LearningObjective
	rec := doJSON(t, srv, http.MethodPost, "/api/objectives", userID, map[string]any{
		"title": "SQL joins",
		"tags":  []string{"sql"},
	}, &objective)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, domain.PriorityMedium, objective.Priority, "priority defaults to Medium")

	var question domain.Question
	rec = doJSON(t, srv, http.MethodPost, "/api/questions", userID, map[string]any{
		"objective_id": objective.ID,
		"text":         "Which join keeps unmatched left rows?",
		"options":      []string{"INNER", "LEFT", "CROSS"},
		"answer":       "LEFT",
		"explanation":  "LEFT JOIN preserves the left side.",
	}, &question)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.NotEmpty(t, question.ID)

	var list struct {
		Objectives []domain.LearningObjective `json:"objectives"`
	}
	rec = doJSON(t, srv, http.MethodGet, "/api/objectives", userID, nil, &list)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, list.Objectives, 1)

	var questions struct {
		Questions []domain.Question `json:"questions"`
	}
	rec = doJSON(t, srv, http.MethodGet, "/api/objectives/"+objective.ID.String()+"/questions", userID, nil, &questions)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, questions.Questions, 1)

	rec = doJSON(t, srv, http.MethodDelete, "/api/questions/"+question.ID.String(), userID, nil, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = doJSON(t, srv, http.MethodDelete, "/api/questions/"+question.ID.String(), userID, nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPostQuestionDuplicateContent(t *testing.T) {
	srv, db := newTestServer(t)
	userID := uuid.New()
	lo := seedQuestion(t, db).ObjectiveID

	payload := map[string]any{
		"objective_id": lo,
		"text":         "Which join keeps unmatched left rows?",
		"options":      []string{"INNER", "LEFT"},
		"answer":       "LEFT",
	}
	rec := doJSON(t, srv, http.MethodPost, "/api/questions", userID, payload, nil)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, srv, http.MethodPost, "/api/questions", userID, payload, nil)
	assert.Equal(t, http.StatusConflict, rec.Code, "identical content hashes the same and conflicts")
}

func TestPostQuestionUnknownObjective(t *testing.T) {
	srv, _ := newTestServer(t)
	rec := doJSON(t, srv, http.MethodPost, "/api/questions", uuid.New(), map[string]any{
		"objective_id": uuid.New(),
		"text":         "Orphan?",
		"answer":       "yes",
	}, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetObjectiveMastery(t *testing.T) {
	srv, db := newTestServer(t)
	userID := uuid.New()
	q := seedQuestion(t, db)

	rec := doJSON(t, srv, http.MethodPost, "/api/reviews/"+q.ID.String(), userID,
		map[string]any{"grade": "Good"}, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]float64
	rec = doJSON(t, srv, http.MethodGet, "/api/objectives/"+q.ObjectiveID.String()+"/mastery", userID, nil, &resp)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.InDelta(t, 100, resp["mastery_percent"], 1)
}

func TestGetProgress(t *testing.T) {
	srv, _ := newTestServer(t)

	var summary progress.Summary
	rec := doJSON(t, srv, http.MethodGet, "/api/progress", uuid.New(), nil, &summary)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Zero(t, summary.Streak)
	assert.Len(t, summary.Badges, 9)
}

func TestSourcesCRUD(t *testing.T) {
	srv, _ := newTestServer(t)
	userID := uuid.New()

	var local map[string]any
	rec := doJSON(t, srv, http.MethodPost, "/api/sources", userID,
		map[string]any{"path": "/decks/networking"}, &local)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "local", local["type"])

	var git map[string]any
	rec = doJSON(t, srv, http.MethodPost, "/api/sources", userID,
		map[string]any{"path": "https://example.com/decks.git"}, &git)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "git", git["type"])

	rec = doJSON(t, srv, http.MethodPost, "/api/sources", userID,
		map[string]any{"path": "/decks/networking"}, nil)
	assert.Equal(t, http.StatusConflict, rec.Code, "re-registering a path conflicts")

	var list struct {
		Sources []storage.Source `json:"sources"`
	}
	rec = doJSON(t, srv, http.MethodGet, "/api/sources", userID, nil, &list)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, list.Sources, 2)

	id := int64(local["id"].(float64))
	rec = doJSON(t, srv, http.MethodDelete, fmt.Sprintf("/api/sources/%d", id), userID, nil, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = doJSON(t, srv, http.MethodDelete, fmt.Sprintf("/api/sources/%d", id), userID, nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPostSyncWithoutImporter(t *testing.T) {
	srv, _ := newTestServer(t)
	rec := doJSON(t, srv, http.MethodPost, "/api/sync", uuid.New(), nil, nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestCORSPreflight(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/progress", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	req.Header.Set("Access-Control-Request-Headers", "X-User-ID")
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	assert.Equal(t, "http://localhost:5173", rec.Header().Get("Access-Control-Allow-Origin"))

	// An origin outside the allow list gets no CORS headers.
	req = httptest.NewRequest(http.MethodOptions, "/api/progress", nil)
	req.Header.Set("Origin", "http://evil.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}
