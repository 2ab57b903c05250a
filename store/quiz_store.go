package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	"quizfunnel/api/models"
	"quizfunnel/api/utils"
)

// QuizStore owns the write path: quizzes, sessions, the slide catalog and the
// append-only event log, all in one Postgres database.
type QuizStore struct {
	db  *sql.DB
	log *zap.Logger
}

func NewQuizStore(db *sql.DB, log *zap.Logger) *QuizStore {
	return &QuizStore{db: db, log: log}
}

// IngestResult is the receipt returned for an accepted event.
type IngestResult struct {
	EventID    int64     `json:"event_id"`
	ReceivedAt time.Time `json:"received_at"`
}

// IngestEvent persists one validated event submission. Quiz creation, session
// upsert, slide catalog discovery, session counter updates and the event
// append run in a single transaction: either all persist or none do.
//
// The session insert is an idempotent insert-if-absent keyed on the unique
// session_id, so N concurrent first events for the same new session leave
// exactly one session row without any locking here.
func (s *QuizStore) IngestEvent(ctx context.Context, req models.TrackRequest) (*IngestResult, error) {
	payload, err := req.Event.DecodePayload()
	if err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: begin: %v", models.ErrTransactionFailure, err)
	}
	defer tx.Rollback()

	if err := s.ensureQuiz(ctx, tx, req.QuizID); err != nil {
		return nil, err
	}
	if err := s.ensureSession(ctx, tx, req); err != nil {
		return nil, err
	}

	switch data := payload.(type) {
	case models.SlideVisitData:
		if err := s.ensureSlide(ctx, tx, req.QuizID, data); err != nil {
			return nil, err
		}
		if err := s.touchSessionSlide(ctx, tx, req.SessionID, data.Sequence); err != nil {
			return nil, err
		}
	case models.QuizCompletionData:
		if err := s.markCompleted(ctx, tx, req.SessionID); err != nil {
			return nil, err
		}
	}

	result, err := s.appendEvent(ctx, tx, req)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%w: commit: %v", models.ErrTransactionFailure, err)
	}
	return result, nil
}

// ensureQuiz lazily creates the quiz row. Existing rows win: the title and
// url_path recorded by the first submission stick.
func (s *QuizStore) ensureQuiz(ctx context.Context, tx *sql.Tx, quizID string) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO quizzes (quiz_id, title, url_path, is_active)
		VALUES ($1, $2, $3, TRUE)
		ON CONFLICT (quiz_id) DO NOTHING`,
		quizID, "Quiz: "+quizID, "/"+quizID,
	)
	if err != nil {
		return fmt.Errorf("%w: ensure quiz: %v", models.ErrTransactionFailure, err)
	}
	return nil
}

func (s *QuizStore) ensureSession(ctx context.Context, tx *sql.Tx, req models.TrackRequest) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO quiz_sessions (quiz_id, session_id, user_id)
		VALUES ($1, $2, $3)
		ON CONFLICT (session_id) DO NOTHING`,
		req.QuizID, req.SessionID, req.UserID,
	)
	if err != nil {
		return fmt.Errorf("%w: ensure session: %v", models.ErrTransactionFailure, err)
	}
	return nil
}

// ensureSlide records lazily-discovered slide catalog metadata. First writer
// wins; later submissions with different metadata for the same slide id are
// ignored for catalog purposes but still stored as events.
func (s *QuizStore) ensureSlide(ctx context.Context, tx *sql.Tx, quizID string, data models.SlideVisitData) error {
	slideType := data.SlideType
	if slideType == "" {
		slideType = "question"
	}
	_, err := tx.ExecContext(ctx, `
		INSERT INTO quiz_slides (quiz_id, slide_id, slide_title, slide_type, sequence_order)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (quiz_id, slide_id) DO NOTHING`,
		quizID, data.SlideID, data.SlideTitle, slideType, data.Sequence,
	)
	if err != nil {
		return fmt.Errorf("%w: ensure slide: %v", models.ErrTransactionFailure, err)
	}
	return nil
}

func (s *QuizStore) touchSessionSlide(ctx context.Context, tx *sql.Tx, sessionID string, sequence int) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE quiz_sessions
		SET total_slides_visited = total_slides_visited + 1,
		    last_slide_sequence = $2
		WHERE session_id = $1`,
		sessionID, sequence,
	)
	if err != nil {
		return fmt.Errorf("%w: update session slide counters: %v", models.ErrTransactionFailure, err)
	}
	return nil
}

func (s *QuizStore) markCompleted(ctx context.Context, tx *sql.Tx, sessionID string) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE quiz_sessions
		SET is_completed = TRUE, completed_at = NOW()
		WHERE session_id = $1 AND NOT is_completed`,
		sessionID,
	)
	if err != nil {
		return fmt.Errorf("%w: mark session completed: %v", models.ErrTransactionFailure, err)
	}
	return nil
}

func (s *QuizStore) appendEvent(ctx context.Context, tx *sql.Tx, req models.TrackRequest) (*IngestResult, error) {
	var result IngestResult
	err := tx.QueryRowContext(ctx, `
		INSERT INTO quiz_events (session_id, event_type, event_data, client_timestamp)
		VALUES ($1, $2, $3, $4)
		RETURNING id, received_at`,
		req.SessionID, string(req.Event.Type), []byte(req.Event.Data), req.Event.ClientTime(),
	).Scan(&result.EventID, &result.ReceivedAt)
	if err != nil {
		return nil, fmt.Errorf("%w: append event: %v", models.ErrTransactionFailure, err)
	}
	return &result, nil
}

// StartSession explicitly opens a session with a server-assigned id, creating
// the quiz lazily from the page URL path.
func (s *QuizStore) StartSession(ctx context.Context, sessionID, urlPath, userID string) (string, error) {
	quizID := utils.ExtractQuizID(urlPath)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("%w: begin: %v", models.ErrTransactionFailure, err)
	}
	defer tx.Rollback()

	if err := s.ensureQuiz(ctx, tx, quizID); err != nil {
		return "", err
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO quiz_sessions (quiz_id, session_id, user_id)
		VALUES ($1, $2, $3)
		ON CONFLICT (session_id) DO NOTHING`,
		quizID, sessionID, userID,
	); err != nil {
		return "", fmt.Errorf("%w: create session: %v", models.ErrTransactionFailure, err)
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("%w: commit: %v", models.ErrTransactionFailure, err)
	}
	return quizID, nil
}

// CompleteSession marks an existing session completed. Unlike ingestion this
// path does not upsert, so a missing session is reported as such.
func (s *QuizStore) CompleteSession(ctx context.Context, sessionID string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE quiz_sessions
		SET is_completed = TRUE, completed_at = NOW()
		WHERE session_id = $1`,
		sessionID,
	)
	if err != nil {
		return fmt.Errorf("%w: complete session: %v", models.ErrTransactionFailure, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: complete session: %v", models.ErrTransactionFailure, err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %q", models.ErrSessionNotFound, sessionID)
	}
	return nil
}

// GetQuizzes lists every quiz with session totals and completion rate.
func (s *QuizStore) GetQuizzes(ctx context.Context) ([]models.QuizSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT q.quiz_id, q.title, q.url_path, q.is_active, q.created_at,
		       COUNT(s.id) AS total_sessions,
		       COUNT(s.id) FILTER (WHERE s.is_completed) AS completed_sessions
		FROM quizzes q
		LEFT JOIN quiz_sessions s ON s.quiz_id = q.quiz_id
		GROUP BY q.quiz_id, q.title, q.url_path, q.is_active, q.created_at
		ORDER BY q.quiz_id`)
	if err != nil {
		return nil, fmt.Errorf("%w: list quizzes: %v", models.ErrStoreUnavailable, err)
	}
	defer rows.Close()

	var quizzes []models.QuizSummary
	for rows.Next() {
		var q models.QuizSummary
		if err := rows.Scan(&q.QuizID, &q.Title, &q.URLPath, &q.IsActive, &q.CreatedAt,
			&q.TotalSessions, &q.CompletedSessions); err != nil {
			return nil, fmt.Errorf("%w: scan quiz: %v", models.ErrStoreUnavailable, err)
		}
		q.CompletionRate = utils.RoundPercent(q.CompletedSessions, q.TotalSessions)
		quizzes = append(quizzes, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: list quizzes: %v", models.ErrStoreUnavailable, err)
	}
	return quizzes, nil
}
