package store

import (
	"testing"
	"time"

	"quizfunnel/api/models"
)

func threeSlides() []models.Slide {
	return []models.Slide{
		{QuizID: "lead2", SlideID: "slide-1", SlideTitle: "Welcome", SlideType: "question", Sequence: 1},
		{QuizID: "lead2", SlideID: "slide-2", SlideTitle: "Budget", SlideType: "question", Sequence: 2},
		{QuizID: "lead2", SlideID: "slide-3", SlideTitle: "Contact", SlideType: "question", Sequence: 3},
	}
}

// Two sessions reach slide-1, one continues to slide-2 and abandons there.
func TestBuildFunnelAbandonment(t *testing.T) {
	reached := map[string]int{"slide-1": 2, "slide-2": 1}
	exits := map[string]int{"slide-2": 1}

	rows := BuildFunnel(threeSlides(), reached, exits)
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(rows))
	}

	first := rows[0]
	if first.UsersReached != 2 || first.RetentionRate != 100 || first.DropOff != 0 {
		t.Fatalf("unexpected first row: %+v", first)
	}

	second := rows[1]
	if second.UsersReached != 1 {
		t.Fatalf("slide-2 users_reached = %d, want 1", second.UsersReached)
	}
	if second.RetentionRate != 50 {
		t.Fatalf("slide-2 retention_rate = %v, want 50", second.RetentionRate)
	}
	if second.DropOff != 1 || second.DropOffPercentage != 100 {
		t.Fatalf("unexpected slide-2 drop-off: %+v", second)
	}

	third := rows[2]
	if third.UsersReached != 0 || third.RetentionRate != 0 || third.DropOffPercentage != 0 {
		t.Fatalf("unexpected slide-3 row: %+v", third)
	}
}

// The first slide is the baseline regardless of how many sessions reached it.
func TestBuildFunnelFirstSlideAlwaysFullRetention(t *testing.T) {
	rows := BuildFunnel(threeSlides(), map[string]int{}, map[string]int{})
	if rows[0].RetentionRate != 100 {
		t.Fatalf("first slide retention = %v, want 100", rows[0].RetentionRate)
	}
	for _, row := range rows[1:] {
		if row.RetentionRate != 0 {
			t.Fatalf("zero-traffic slide retention = %v, want 0", row.RetentionRate)
		}
	}
}

func TestBuildFunnelEmptyCatalog(t *testing.T) {
	rows := BuildFunnel(nil, map[string]int{"slide-1": 5}, nil)
	if rows == nil {
		t.Fatal("expected empty slice, got nil")
	}
	if len(rows) != 0 {
		t.Fatalf("expected 0 rows, got %d", len(rows))
	}
}

func TestBuildDropOffs(t *testing.T) {
	reached := map[string]int{"slide-1": 4, "slide-2": 3}
	exits := map[string]int{"slide-1": 1, "slide-2": 3}

	rows := BuildDropOffs(threeSlides(), reached, exits)
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(rows))
	}
	if rows[0].DropOffCount != 1 || rows[0].DropOffPercentage != 25 {
		t.Fatalf("unexpected slide-1 row: %+v", rows[0])
	}
	if rows[1].DropOffCount != 3 || rows[1].DropOffPercentage != 100 {
		t.Fatalf("unexpected slide-2 row: %+v", rows[1])
	}
	if rows[2].DropOffCount != 0 || rows[2].DropOffPercentage != 0 {
		t.Fatalf("unexpected slide-3 row: %+v", rows[2])
	}
}

func TestBuildAnswerAnalytics(t *testing.T) {
	counts := []AnswerCount{
		{SlideID: "slide-2", AnswerValue: "maybe", AnswerText: "Maybe", Sessions: 1},
		{SlideID: "slide-2", AnswerValue: "yes", AnswerText: "Yes", Sessions: 3},
		{SlideID: "slide-1", AnswerValue: "a", AnswerText: "A", Sessions: 2},
	}
	reached := map[string]int{"slide-1": 4, "slide-2": 4}

	rows := BuildAnswerAnalytics(counts, reached)
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(rows))
	}

	// Slide id ascending, then selection count descending.
	if rows[0].SlideID != "slide-1" {
		t.Fatalf("rows[0].SlideID = %q, want slide-1", rows[0].SlideID)
	}
	if rows[1].AnswerValue != "yes" || rows[2].AnswerValue != "maybe" {
		t.Fatalf("unexpected slide-2 order: %+v", rows[1:])
	}

	if rows[1].SelectionPercentage != 75 {
		t.Fatalf("yes percentage = %v, want 75", rows[1].SelectionPercentage)
	}
	for _, row := range rows {
		if row.SelectionPercentage < 0 || row.SelectionPercentage > 100 {
			t.Fatalf("percentage out of range: %+v", row)
		}
	}
}

func TestBuildAnswerAnalyticsTiesKeepInsertionOrder(t *testing.T) {
	counts := []AnswerCount{
		{SlideID: "slide-1", AnswerValue: "first", Sessions: 2},
		{SlideID: "slide-1", AnswerValue: "second", Sessions: 2},
	}
	rows := BuildAnswerAnalytics(counts, map[string]int{"slide-1": 4})
	if rows[0].AnswerValue != "first" || rows[1].AnswerValue != "second" {
		t.Fatalf("tied rows reordered: %+v", rows)
	}
}

func TestBuildBasicStats(t *testing.T) {
	reached := map[string]int{"slide-1": 2, "slide-2": 1}

	stats := BuildBasicStats(threeSlides(), reached, 1, 2, 1)
	if stats.TotalUsers != 2 {
		t.Fatalf("total_users = %d, want 2", stats.TotalUsers)
	}
	if stats.CompletedUsers != 1 {
		t.Fatalf("completed_users = %d, want 1", stats.CompletedUsers)
	}
	if stats.CompletionRate != 50 {
		t.Fatalf("completion_rate = %v, want 50", stats.CompletionRate)
	}
	if stats.RecentUsers != 2 || stats.RecentCompletions != 1 {
		t.Fatalf("unexpected recent counts: %+v", stats)
	}
}

func TestBuildBasicStatsNoSlides(t *testing.T) {
	stats := BuildBasicStats(nil, map[string]int{}, 0, 0, 0)
	if stats.TotalUsers != 0 || stats.CompletionRate != 0 {
		t.Fatalf("unexpected stats for empty catalog: %+v", stats)
	}
}

func TestBuildSlideStatsZeroFills(t *testing.T) {
	visited := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
	visits := map[string]SlideVisitAgg{
		"slide-1": {SlideID: "slide-1", TotalVisits: 5, UniqueUsers: 3, ActiveUsers: 1, LastVisited: &visited},
	}

	rows := BuildSlideStats(threeSlides(), visits)
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(rows))
	}
	if rows[0].TotalVisits != 5 || rows[0].UniqueUsers != 3 || rows[0].LastVisited == nil {
		t.Fatalf("unexpected slide-1 row: %+v", rows[0])
	}
	if rows[1].TotalVisits != 0 || rows[1].LastVisited != nil {
		t.Fatalf("slide-2 not zero-filled: %+v", rows[1])
	}
	if rows[2].SlideSequence != 3 {
		t.Fatalf("slide-3 sequence = %d, want 3", rows[2].SlideSequence)
	}
}
