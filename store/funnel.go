package store

import (
	"sort"
	"time"

	"quizfunnel/api/models"
	"quizfunnel/api/utils"
)

// AnswerCount is the raw distinct-session selection count for one
// (slide, answer value) pair, in slide order then first-seen order.
type AnswerCount struct {
	SlideID     string
	AnswerValue string
	AnswerText  string
	Sessions    int
}

// SlideVisitAgg is the raw per-slide visit aggregate behind slide stats.
type SlideVisitAgg struct {
	SlideID     string
	TotalVisits int
	UniqueUsers int
	ActiveUsers int
	LastVisited *time.Time
}

// BuildFunnel assembles the funnel view from the slide catalog and the two
// shared primitives. Slides must already be in ascending sequence order.
//
// Retention is measured against the previous slide in sequence; the first
// slide is the baseline and is always 100 by convention, whatever its
// reached count. Every other ratio with a zero denominator yields 0.
func BuildFunnel(slides []models.Slide, reached, exits map[string]int) []models.FunnelRow {
	rows := make([]models.FunnelRow, 0, len(slides))
	previous := 0
	for i, slide := range slides {
		r := reached[slide.SlideID]
		x := exits[slide.SlideID]

		retention := 100.0
		if i > 0 {
			retention = utils.RoundPercent(r, previous)
		}

		rows = append(rows, models.FunnelRow{
			SlideID:           slide.SlideID,
			SlideTitle:        slide.SlideTitle,
			SlideType:         slide.SlideType,
			Sequence:          slide.Sequence,
			UsersReached:      r,
			DropOff:           x,
			DropOffPercentage: utils.RoundPercent(x, r),
			RetentionRate:     retention,
		})
		previous = r
	}
	return rows
}

// BuildDropOffs reframes the funnel numbers as per-slide loss.
func BuildDropOffs(slides []models.Slide, reached, exits map[string]int) []models.DropOffRow {
	rows := make([]models.DropOffRow, 0, len(slides))
	for _, slide := range slides {
		r := reached[slide.SlideID]
		x := exits[slide.SlideID]
		rows = append(rows, models.DropOffRow{
			SlideID:           slide.SlideID,
			SlideTitle:        slide.SlideTitle,
			SlideType:         slide.SlideType,
			SequenceOrder:     slide.Sequence,
			UsersReached:      r,
			DropOffCount:      x,
			DropOffPercentage: utils.RoundPercent(x, r),
		})
	}
	return rows
}

// BuildAnswerAnalytics expresses each (slide, answer) count as a share of
// the sessions that reached that slide, sorted by slide id ascending then
// selection count descending. counts must arrive in first-seen order per
// slide; the stable sort keeps that order for equal counts.
func BuildAnswerAnalytics(counts []AnswerCount, reached map[string]int) []models.AnswerRow {
	rows := make([]models.AnswerRow, 0, len(counts))
	for _, c := range counts {
		rows = append(rows, models.AnswerRow{
			SlideID:             c.SlideID,
			AnswerValue:         c.AnswerValue,
			AnswerText:          c.AnswerText,
			SelectionCount:      c.Sessions,
			SelectionPercentage: utils.RoundPercent(c.Sessions, reached[c.SlideID]),
		})
	}
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].SlideID != rows[j].SlideID {
			return rows[i].SlideID < rows[j].SlideID
		}
		return rows[i].SelectionCount > rows[j].SelectionCount
	})
	return rows
}

// BuildBasicStats derives the headline counters. "Started" means the session
// reached the lowest-sequence slide in the catalog; a session row with no
// recorded first-slide visit does not count as a start.
func BuildBasicStats(slides []models.Slide, reached map[string]int, completed, recentStarted, recentCompleted int) models.BasicStats {
	started := 0
	if len(slides) > 0 {
		started = reached[slides[0].SlideID]
	}
	return models.BasicStats{
		TotalUsers:        started,
		CompletedUsers:    completed,
		CompletionRate:    utils.RoundPercent(completed, started),
		RecentUsers:       recentStarted,
		RecentCompletions: recentCompleted,
	}
}

// BuildSlideStats merges raw visit aggregates over the full catalog so every
// slide appears, zero-filled when it has no visits yet.
func BuildSlideStats(slides []models.Slide, visits map[string]SlideVisitAgg) []models.SlideStats {
	rows := make([]models.SlideStats, 0, len(slides))
	for _, slide := range slides {
		agg := visits[slide.SlideID]
		rows = append(rows, models.SlideStats{
			SlideID:       slide.SlideID,
			SlideTitle:    slide.SlideTitle,
			SlideSequence: slide.Sequence,
			TotalVisits:   agg.TotalVisits,
			UniqueUsers:   agg.UniqueUsers,
			ActiveUsers:   agg.ActiveUsers,
			LastVisited:   agg.LastVisited,
		})
	}
	return rows
}
