package progress

import (
	"time"

	"github.com/recallforge/recallforge/internal/domain"
)

// Badge is an achievement with a threshold on one of the tracked stats.
type Badge struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
	Requirement int    `json:"requirement"`
	Earned      bool   `json:"earned"`
}

type badgeKind int

const (
	badgeStreak badgeKind = iota
	badgePoints
	badgeReviews
)

type badgeSpec struct {
	Badge
	kind badgeKind
}

// The fixed badge catalogue. Thresholds follow the original gamification
// rules: streak days, mastery points, and total review counts.
var badgeCatalogue = []badgeSpec{
	{Badge{ID: "streak-3", Name: "Getting Started", Description: "3 day streak", Icon: "🔥", Requirement: 3}, badgeStreak},
	{Badge{ID: "streak-7", Name: "Week Warrior", Description: "7 day streak", Icon: "⚡", Requirement: 7}, badgeStreak},
	{Badge{ID: "streak-30", Name: "Monthly Master", Description: "30 day streak", Icon: "🏆", Requirement: 30}, badgeStreak},
	{Badge{ID: "points-100", Name: "First Steps", Description: "100 mastery points", Icon: "🌱", Requirement: 100}, badgePoints},
	{Badge{ID: "points-500", Name: "Knowledge Builder", Description: "500 mastery points", Icon: "📚", Requirement: 500}, badgePoints},
	{Badge{ID: "points-2000", Name: "Scholar", Description: "2000 mastery points", Icon: "🎓", Requirement: 2000}, badgePoints},
	{Badge{ID: "reviews-10", Name: "Curious Mind", Description: "10 reviews", Icon: "💡", Requirement: 10}, badgeReviews},
	{Badge{ID: "reviews-100", Name: "Dedicated", Description: "100 reviews", Icon: "🧠", Requirement: 100}, badgeReviews},
	{Badge{ID: "reviews-500", Name: "Memory Athlete", Description: "500 reviews", Icon: "🥇", Requirement: 500}, badgeReviews},
}

// earnedBadges returns the catalogue with earned flags set from the stats.
func earnedBadges(streak, points, reviews int) []Badge {
	badges := make([]Badge, 0, len(badgeCatalogue))
	for _, spec := range badgeCatalogue {
		b := spec.Badge
		switch spec.kind {
		case badgeStreak:
			b.Earned = streak >= b.Requirement
		case badgePoints:
			b.Earned = points >= b.Requirement
		case badgeReviews:
			b.Earned = reviews >= b.Requirement
		}
		badges = append(badges, b)
	}
	return badges
}

// streakFromSessions counts consecutive calendar days with a completed
// session, ending today or yesterday (a streak is not broken until a full
// day passes without study). Sessions must be ordered newest first.
func streakFromSessions(sessions []domain.StudySession, now time.Time) int {
	seen := make(map[string]bool, len(sessions))
	for _, s := range sessions {
		seen[s.CompletedAt.UTC().Format(time.DateOnly)] = true
	}
	if len(seen) == 0 {
		return 0
	}

	day := now.UTC().Truncate(24 * time.Hour)
	if !seen[day.Format(time.DateOnly)] {
		// No session yet today: the streak may still be alive from yesterday.
		day = day.AddDate(0, 0, -1)
	}

	streak := 0
	for seen[day.Format(time.DateOnly)] {
		streak++
		day = day.AddDate(0, 0, -1)
	}
	return streak
}

// masteryPoints scores completed sessions: 10 points per question plus an
// accuracy bonus of up to half the base.
func masteryPoints(sessions []domain.StudySession) int {
	total := 0
	for _, s := range sessions {
		base := s.TotalQuestions * 10
		bonus := int(float64(base) * (s.Accuracy / 100) * 0.5)
		total += base + bonus
	}
	return total
}
