package models

import "time"

// Quiz is created lazily on the first session for an unknown quiz id and is
// never deleted in normal operation.
type Quiz struct {
	ID        int64     `json:"-"`
	QuizID    string    `json:"quiz_id"`
	Title     string    `json:"title"`
	URLPath   string    `json:"url_path"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

// QuizSummary is a Quiz plus session counts, for the quiz listing endpoint.
type QuizSummary struct {
	Quiz
	TotalSessions     int     `json:"total_sessions"`
	CompletedSessions int     `json:"completed_sessions"`
	CompletionRate    float64 `json:"completion_rate"`
}

// Slide is catalog metadata for one step of a quiz, discovered lazily from
// the first slide_visit event that names it (first writer wins).
type Slide struct {
	QuizID     string `json:"quiz_id"`
	SlideID    string `json:"slide_id"`
	SlideTitle string `json:"slide_title"`
	SlideType  string `json:"slide_type"` // "question" or "popup"
	Sequence   int    `json:"sequence"`
}

// FunnelRow is one slide's entry in the retention funnel, in sequence order.
type FunnelRow struct {
	SlideID           string  `json:"slide_id"`
	SlideTitle        string  `json:"slide_title"`
	SlideType         string  `json:"slide_type"`
	Sequence          int     `json:"sequence"`
	UsersReached      int     `json:"users_reached"`
	DropOff           int     `json:"drop_off"`
	DropOffPercentage float64 `json:"drop_off_percentage"`
	RetentionRate     float64 `json:"retention_rate"`
}

// DropOffRow carries the same underlying numbers as FunnelRow, framed as
// per-slide loss for the drop-off analysis view.
type DropOffRow struct {
	SlideID           string  `json:"slide_id"`
	SlideTitle        string  `json:"slide_title"`
	SlideType         string  `json:"slide_type"`
	SequenceOrder     int     `json:"sequence_order"`
	UsersReached      int     `json:"users_reached"`
	DropOffCount      int     `json:"drop_off_count"`
	DropOffPercentage float64 `json:"drop_off_percentage"`
}

// AnswerRow is one (slide, answer value) selection count, expressed against
// the number of sessions that reached that slide.
type AnswerRow struct {
	SlideID             string  `json:"slide_id"`
	AnswerValue         string  `json:"answer_value"`
	AnswerText          string  `json:"answer_text"`
	SelectionCount      int     `json:"selection_count"`
	SelectionPercentage float64 `json:"selection_percentage"`
}

// BasicStats is the headline view: starts, completions and the trailing-24h
// activity window.
type BasicStats struct {
	TotalUsers        int     `json:"total_users"`
	CompletedUsers    int     `json:"completed_users"`
	CompletionRate    float64 `json:"completion_rate"`
	RecentUsers       int     `json:"recent_users"`
	RecentCompletions int     `json:"recent_completions"`
}

// SlideStats is the live-dashboard descriptive view for one slide. Visit
// counts here are raw event counts, not de-duplicated funnel math.
type SlideStats struct {
	SlideID       string     `json:"slide_id"`
	SlideTitle    string     `json:"slide_title"`
	SlideSequence int        `json:"slide_sequence"`
	TotalVisits   int        `json:"total_visits"`
	UniqueUsers   int        `json:"unique_users"`
	ActiveUsers   int        `json:"active_users"`
	LastVisited   *time.Time `json:"last_visited"`
}

// ExitCount is one row of the page_exit distribution (debug view).
type ExitCount struct {
	LastSlide string `json:"last_slide"`
	Count     int    `json:"count"`
}
