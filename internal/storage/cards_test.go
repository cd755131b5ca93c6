package storage

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recallforge/recallforge/internal/domain"
)

func TestGetOrCreateCard(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	lo := seedObjective(t, db)
	q := seedQuestion(t, db, lo.ID)
	userID := uuid.New()

	card, err := db.GetOrCreateCard(ctx, userID, q.ID, baseTime)
	require.NoError(t, err)
	assert.Equal(t, domain.StateNew, card.State)
	assert.True(t, card.Due.Equal(baseTime))
	assert.False(t, card.Reviewed())
	assert.Zero(t, card.Reps)

	// A second call with a different now must not reset the card.
	again, err := db.GetOrCreateCard(ctx, userID, q.ID, baseTime.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, card, again)
}

func TestGetOrCreateCardConcurrent(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	lo := seedObjective(t, db)
	q := seedQuestion(t, db, lo.ID)
	userID := uuid.New()

	const workers = 8
	cards := make([]domain.Card, workers)
	errs := make([]error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			cards[i], errs[i] = db.GetOrCreateCard(ctx, userID, q.ID, baseTime)
		}(i)
	}
	wg.Wait()

	for i := 0; i < workers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, cards[0], cards[i])
	}

	count, err := db.CountDue(ctx, userID, baseTime.AddDate(100, 0, 0))
	require.NoError(t, err)
	assert.Equal(t, 1, count, "concurrent first access must create exactly one row")
}

func TestGetCardNotFound(t *testing.T) {
	db := newTestDB(t)
	_, err := db.GetCard(context.Background(), uuid.New(), uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSaveCardOptimisticConcurrency(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	lo := seedObjective(t, db)
	q := seedQuestion(t, db, lo.ID)
	userID := uuid.New()

	card, err := db.GetOrCreateCard(ctx, userID, q.ID, baseTime)
	require.NoError(t, err)

	// Two readers observe the unreviewed card.
	first := card
	first.State = domain.StateLearning
	first.Stability = 2.4
	first.Difficulty = 4.9
	first.Due = baseTime.Add(time.Minute)
	first.LastReview = baseTime
	first.Reps = 1

	second := card
	second.State = domain.StateLearning
	second.Due = baseTime.Add(10 * time.Minute)
	second.LastReview = baseTime.Add(time.Second)
	second.Reps = 1

	// The first write wins.
	require.NoError(t, db.SaveCard(ctx, first, card.LastReview))

	// The second write carries the stale prior and must be rejected, leaving
	// the stored card untouched.
	err = db.SaveCard(ctx, second, card.LastReview)
	assert.ErrorIs(t, err, ErrStaleWrite)

	stored, err := db.GetCard(ctx, userID, q.ID)
	require.NoError(t, err)
	assert.True(t, stored.LastReview.Equal(first.LastReview))
	assert.Equal(t, first.Stability, stored.Stability)

	// Re-reading and writing with the current prior succeeds.
	next := stored
	next.Due = stored.Due.Add(10 * time.Minute)
	next.LastReview = stored.LastReview.Add(time.Minute)
	next.Reps = 2
	require.NoError(t, db.SaveCard(ctx, next, stored.LastReview))
}

func TestSaveCardMissingRow(t *testing.T) {
	db := newTestDB(t)
	card := domain.NewCard(uuid.New(), uuid.New(), baseTime)
	err := db.SaveCard(context.Background(), card, time.Time{})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDueCardsBoundary(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	lo := seedObjective(t, db)
	userID := uuid.New()
	cutoff := baseTime

	// Cards due one hour before, exactly at, and one hour after the cutoff.
	for _, due := range []time.Time{cutoff.Add(-time.Hour), cutoff, cutoff.Add(time.Hour)} {
		q := seedQuestion(t, db, lo.ID)
		_, err := db.GetOrCreateCard(ctx, userID, q.ID, due)
		require.NoError(t, err)
	}

	due, err := db.DueCards(ctx, userID, DueQuery{Before: cutoff})
	require.NoError(t, err)
	require.Len(t, due, 2, "due-at-cutoff is included, later is not")
	assert.True(t, due[0].Due.Before(due[1].Due), "ascending by due date")
	assert.True(t, due[1].Due.Equal(cutoff))

	count, err := db.CountDue(ctx, userID, cutoff)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestDueCardsPagination(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	lo := seedObjective(t, db)
	userID := uuid.New()

	for i := 0; i < 3; i++ {
		q := seedQuestion(t, db, lo.ID)
		_, err := db.GetOrCreateCard(ctx, userID, q.ID, baseTime.Add(time.Duration(i)*time.Minute))
		require.NoError(t, err)
	}
	cutoff := baseTime.Add(time.Hour)

	page, err := db.DueCards(ctx, userID, DueQuery{Before: cutoff, Limit: 2})
	require.NoError(t, err)
	require.Len(t, page, 2)

	last := page[len(page)-1]
	rest, err := db.DueCards(ctx, userID, DueQuery{
		Before:        cutoff,
		Limit:         2,
		AfterDue:      last.Due,
		AfterQuestion: last.QuestionID,
	})
	require.NoError(t, err)
	require.Len(t, rest, 1)
	assert.True(t, rest[0].Due.After(last.Due))
}

func TestDueCardsTieBreakOnQuestionID(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	lo := seedObjective(t, db)
	userID := uuid.New()

	// Three cards sharing a due date order by question id, so paging through
	// them never skips or repeats a card.
	for i := 0; i < 3; i++ {
		q := seedQuestion(t, db, lo.ID)
		_, err := db.GetOrCreateCard(ctx, userID, q.ID, baseTime)
		require.NoError(t, err)
	}

	all, err := db.DueCards(ctx, userID, DueQuery{Before: baseTime})
	require.NoError(t, err)
	require.Len(t, all, 3)
	for i := 1; i < len(all); i++ {
		assert.Less(t, all[i-1].QuestionID.String(), all[i].QuestionID.String())
	}

	var paged []domain.Card
	cursor := DueQuery{Before: baseTime, Limit: 1}
	for {
		page, err := db.DueCards(ctx, userID, cursor)
		require.NoError(t, err)
		if len(page) == 0 {
			break
		}
		paged = append(paged, page...)
		cursor.AfterDue = page[len(page)-1].Due
		cursor.AfterQuestion = page[len(page)-1].QuestionID
	}
	assert.Equal(t, all, paged)
}

func TestDueCardsScopedToUser(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	lo := seedObjective(t, db)
	q := seedQuestion(t, db, lo.ID)

	alice, bob := uuid.New(), uuid.New()
	_, err := db.GetOrCreateCard(ctx, alice, q.ID, baseTime)
	require.NoError(t, err)

	due, err := db.DueCards(ctx, bob, DueQuery{Before: baseTime})
	require.NoError(t, err)
	assert.Empty(t, due)
}

func TestCardsByObjective(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	first := seedObjective(t, db)
	second := seedObjective(t, db)
	userID := uuid.New()

	q1 := seedQuestion(t, db, first.ID)
	q2 := seedQuestion(t, db, first.ID)
	q3 := seedQuestion(t, db, second.ID)
	for _, q := range []domain.Question{q1, q2, q3} {
		_, err := db.GetOrCreateCard(ctx, userID, q.ID, baseTime)
		require.NoError(t, err)
	}

	cards, err := db.CardsByObjective(ctx, userID, first.ID)
	require.NoError(t, err)
	assert.Len(t, cards, 2)
}

func TestReviewLogs(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	userID := uuid.New()

	count, err := db.CountReviews(ctx, userID)
	require.NoError(t, err)
	assert.Zero(t, count)

	for i := 0; i < 3; i++ {
		err := db.InsertReviewLog(ctx, domain.ReviewLog{
			UserID:     userID,
			QuestionID: uuid.New(),
			Grade:      domain.Good,
			ReviewedAt: baseTime.Add(time.Duration(i) * time.Minute),
		})
		require.NoError(t, err)
	}

	count, err = db.CountReviews(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}
