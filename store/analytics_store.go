package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	"quizfunnel/api/models"
)

// Trailing windows used by the analytics views.
const (
	// RecentWindow bounds the "recent activity" counts in basic stats.
	RecentWindow = 24 * time.Hour

	// ActiveWindow bounds the live "active now" count in slide stats.
	ActiveWindow = 5 * time.Minute
)

// AnalyticsStore is the read-only aggregation side: every view is a pure
// function of the stored event log, so results are safe to cache and safe to
// recompute at any time. It may run concurrently with ingestion and
// tolerates seeing a snapshot that misses the newest events.
type AnalyticsStore struct {
	db  *sql.DB
	log *zap.Logger
}

func NewAnalyticsStore(db *sql.DB, log *zap.Logger) *AnalyticsStore {
	return &AnalyticsStore{db: db, log: log}
}

// GetFunnel returns per-slide reached/exit/retention rows in ascending
// sequence order.
func (s *AnalyticsStore) GetFunnel(ctx context.Context, quizID string) ([]models.FunnelRow, error) {
	slides, err := s.GetSlides(ctx, quizID)
	if err != nil {
		return nil, err
	}
	reached, err := s.reachedCounts(ctx, quizID)
	if err != nil {
		return nil, err
	}
	exits, err := s.exitCounts(ctx, quizID)
	if err != nil {
		return nil, err
	}
	return BuildFunnel(slides, reached, exits), nil
}

// GetDropOffs returns the same underlying numbers as the funnel, framed as
// per-slide loss.
func (s *AnalyticsStore) GetDropOffs(ctx context.Context, quizID string) ([]models.DropOffRow, error) {
	slides, err := s.GetSlides(ctx, quizID)
	if err != nil {
		return nil, err
	}
	reached, err := s.reachedCounts(ctx, quizID)
	if err != nil {
		return nil, err
	}
	exits, err := s.exitCounts(ctx, quizID)
	if err != nil {
		return nil, err
	}
	return BuildDropOffs(slides, reached, exits), nil
}

// GetAnswerAnalytics returns per (slide, answer value) selection counts as a
// share of the sessions that reached each slide.
func (s *AnalyticsStore) GetAnswerAnalytics(ctx context.Context, quizID string) ([]models.AnswerRow, error) {
	counts, err := s.answerCounts(ctx, quizID)
	if err != nil {
		return nil, err
	}
	reached, err := s.reachedCounts(ctx, quizID)
	if err != nil {
		return nil, err
	}
	return BuildAnswerAnalytics(counts, reached), nil
}

// GetBasicStats returns starts, completions, completion rate and the
// trailing-24h activity counts. "Started" means reached the first slide in
// the catalog, not merely having a session row.
func (s *AnalyticsStore) GetBasicStats(ctx context.Context, quizID string) (*models.BasicStats, error) {
	slides, err := s.GetSlides(ctx, quizID)
	if err != nil {
		return nil, err
	}
	reached, err := s.reachedCounts(ctx, quizID)
	if err != nil {
		return nil, err
	}
	completed, err := s.countCompleted(ctx, quizID)
	if err != nil {
		return nil, err
	}
	recentStarted, recentCompleted, err := s.recentActivity(ctx, quizID, time.Now().Add(-RecentWindow))
	if err != nil {
		return nil, err
	}
	stats := BuildBasicStats(slides, reached, completed, recentStarted, recentCompleted)
	return &stats, nil
}

// GetSlideStats returns the per-slide descriptive view, covering every slide
// in the catalog even when it has no visits yet.
func (s *AnalyticsStore) GetSlideStats(ctx context.Context, quizID string) ([]models.SlideStats, error) {
	slides, err := s.GetSlides(ctx, quizID)
	if err != nil {
		return nil, err
	}
	visits, err := s.slideVisitAggregates(ctx, quizID, time.Now().Add(-ActiveWindow))
	if err != nil {
		return nil, err
	}
	return BuildSlideStats(slides, visits), nil
}

// GetExitDistribution returns raw page_exit counts per reported last slide,
// most frequent first (the debug view).
func (s *AnalyticsStore) GetExitDistribution(ctx context.Context, quizID string) ([]models.ExitCount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT COALESCE(e.event_data->>'last_slide', '') AS last_slide, COUNT(*) AS exit_count
		FROM quiz_events e
		JOIN quiz_sessions s ON s.session_id = e.session_id
		WHERE s.quiz_id = $1 AND e.event_type = 'page_exit'
		GROUP BY 1
		ORDER BY exit_count DESC, last_slide`,
		quizID)
	if err != nil {
		return nil, fmt.Errorf("%w: exit distribution: %v", models.ErrStoreUnavailable, err)
	}
	defer rows.Close()

	var result []models.ExitCount
	for rows.Next() {
		var ec models.ExitCount
		if err := rows.Scan(&ec.LastSlide, &ec.Count); err != nil {
			return nil, fmt.Errorf("%w: scan exit distribution: %v", models.ErrStoreUnavailable, err)
		}
		result = append(result, ec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: exit distribution: %v", models.ErrStoreUnavailable, err)
	}
	return result, nil
}

// GetSlides returns the quiz's slide catalog in ascending sequence order.
func (s *AnalyticsStore) GetSlides(ctx context.Context, quizID string) ([]models.Slide, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT quiz_id, slide_id, slide_title, slide_type, sequence_order
		FROM quiz_slides
		WHERE quiz_id = $1
		ORDER BY sequence_order, slide_id`,
		quizID)
	if err != nil {
		return nil, fmt.Errorf("%w: list slides: %v", models.ErrStoreUnavailable, err)
	}
	defer rows.Close()

	var slides []models.Slide
	for rows.Next() {
		var sl models.Slide
		if err := rows.Scan(&sl.QuizID, &sl.SlideID, &sl.SlideTitle, &sl.SlideType, &sl.Sequence); err != nil {
			return nil, fmt.Errorf("%w: scan slide: %v", models.ErrStoreUnavailable, err)
		}
		slides = append(slides, sl)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: list slides: %v", models.ErrStoreUnavailable, err)
	}
	return slides, nil
}

// reachedCounts is the shared "users reached slide S" primitive: distinct
// sessions with at least one slide_visit naming S, regardless of revisits.
func (s *AnalyticsStore) reachedCounts(ctx context.Context, quizID string) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT e.event_data->>'slide_id' AS slide_id, COUNT(DISTINCT e.session_id)
		FROM quiz_events e
		JOIN quiz_sessions s ON s.session_id = e.session_id
		WHERE s.quiz_id = $1 AND e.event_type = 'slide_visit'
		  AND e.event_data->>'slide_id' IS NOT NULL
		GROUP BY 1`,
		quizID)
	if err != nil {
		return nil, fmt.Errorf("%w: reached counts: %v", models.ErrStoreUnavailable, err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var slideID string
		var n int
		if err := rows.Scan(&slideID, &n); err != nil {
			return nil, fmt.Errorf("%w: scan reached count: %v", models.ErrStoreUnavailable, err)
		}
		counts[slideID] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: reached counts: %v", models.ErrStoreUnavailable, err)
	}
	return counts, nil
}

// exitCounts is the shared "users exited at slide S" primitive. A session
// may report several page_exit events (tab hidden, then closed); only its
// last exit by client timestamp attributes the abandonment point.
func (s *AnalyticsStore) exitCounts(ctx context.Context, quizID string) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT last_slide, COUNT(*)
		FROM (
			SELECT DISTINCT ON (e.session_id) e.event_data->>'last_slide' AS last_slide
			FROM quiz_events e
			JOIN quiz_sessions s ON s.session_id = e.session_id
			WHERE s.quiz_id = $1 AND e.event_type = 'page_exit'
			ORDER BY e.session_id, e.client_timestamp DESC, e.id DESC
		) last_exits
		WHERE last_slide IS NOT NULL AND last_slide <> ''
		GROUP BY last_slide`,
		quizID)
	if err != nil {
		return nil, fmt.Errorf("%w: exit counts: %v", models.ErrStoreUnavailable, err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var slideID string
		var n int
		if err := rows.Scan(&slideID, &n); err != nil {
			return nil, fmt.Errorf("%w: scan exit count: %v", models.ErrStoreUnavailable, err)
		}
		counts[slideID] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: exit counts: %v", models.ErrStoreUnavailable, err)
	}
	return counts, nil
}

func (s *AnalyticsStore) countCompleted(ctx context.Context, quizID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(DISTINCT e.session_id)
		FROM quiz_events e
		JOIN quiz_sessions s ON s.session_id = e.session_id
		WHERE s.quiz_id = $1 AND e.event_type = 'quiz_completion'`,
		quizID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("%w: completed count: %v", models.ErrStoreUnavailable, err)
	}
	return n, nil
}

// recentActivity counts sessions created after the cutoff and, of those, the
// ones with a completion event.
func (s *AnalyticsStore) recentActivity(ctx context.Context, quizID string, since time.Time) (int, int, error) {
	var started, completed int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(DISTINCT s.session_id),
		       COUNT(DISTINCT CASE WHEN e.event_type = 'quiz_completion' THEN s.session_id END)
		FROM quiz_sessions s
		LEFT JOIN quiz_events e ON e.session_id = s.session_id AND e.event_type = 'quiz_completion'
		WHERE s.quiz_id = $1 AND s.created_at >= $2`,
		quizID, since).Scan(&started, &completed)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: recent activity: %v", models.ErrStoreUnavailable, err)
	}
	return started, completed, nil
}

// answerCounts returns distinct-session selection counts per (slide, answer
// value), ordered by slide then first insertion so ties stay deterministic.
func (s *AnalyticsStore) answerCounts(ctx context.Context, quizID string) ([]AnswerCount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT e.event_data->>'slide_id' AS slide_id,
		       e.event_data->>'answer_value' AS answer_value,
		       MIN(e.event_data->>'answer_text') AS answer_text,
		       COUNT(DISTINCT e.session_id) AS selections
		FROM quiz_events e
		JOIN quiz_sessions s ON s.session_id = e.session_id
		WHERE s.quiz_id = $1 AND e.event_type = 'answer_selection'
		  AND e.event_data->>'slide_id' IS NOT NULL
		  AND e.event_data->>'answer_value' IS NOT NULL
		GROUP BY 1, 2
		ORDER BY slide_id, MIN(e.id)`,
		quizID)
	if err != nil {
		return nil, fmt.Errorf("%w: answer counts: %v", models.ErrStoreUnavailable, err)
	}
	defer rows.Close()

	var counts []AnswerCount
	for rows.Next() {
		var ac AnswerCount
		if err := rows.Scan(&ac.SlideID, &ac.AnswerValue, &ac.AnswerText, &ac.Sessions); err != nil {
			return nil, fmt.Errorf("%w: scan answer count: %v", models.ErrStoreUnavailable, err)
		}
		counts = append(counts, ac)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: answer counts: %v", models.ErrStoreUnavailable, err)
	}
	return counts, nil
}

// slideVisitAggregates returns raw visit statistics per slide id, with the
// "active now" count bounded by activeSince.
func (s *AnalyticsStore) slideVisitAggregates(ctx context.Context, quizID string, activeSince time.Time) (map[string]SlideVisitAgg, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT e.event_data->>'slide_id' AS slide_id,
		       COUNT(*) AS total_visits,
		       COUNT(DISTINCT e.session_id) AS unique_users,
		       COUNT(DISTINCT e.session_id) FILTER (WHERE e.client_timestamp >= $2) AS active_users,
		       MAX(e.client_timestamp) AS last_visited
		FROM quiz_events e
		JOIN quiz_sessions s ON s.session_id = e.session_id
		WHERE s.quiz_id = $1 AND e.event_type = 'slide_visit'
		  AND e.event_data->>'slide_id' IS NOT NULL
		GROUP BY 1`,
		quizID, activeSince)
	if err != nil {
		return nil, fmt.Errorf("%w: slide visit stats: %v", models.ErrStoreUnavailable, err)
	}
	defer rows.Close()

	aggs := make(map[string]SlideVisitAgg)
	for rows.Next() {
		var agg SlideVisitAgg
		var last sql.NullTime
		if err := rows.Scan(&agg.SlideID, &agg.TotalVisits, &agg.UniqueUsers, &agg.ActiveUsers, &last); err != nil {
			return nil, fmt.Errorf("%w: scan slide visit stats: %v", models.ErrStoreUnavailable, err)
		}
		if last.Valid {
			t := last.Time
			agg.LastVisited = &t
		}
		aggs[agg.SlideID] = agg
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: slide visit stats: %v", models.ErrStoreUnavailable, err)
	}
	return aggs, nil
}
