package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"go.uber.org/zap"
)

// Mirror copies accepted events into ClickHouse for long-horizon OLAP
// queries. It is best-effort by design: the authoritative record is the
// Postgres event log, so a full buffer or a failed batch costs nothing but
// mirror completeness. Ingestion never blocks on it.

const (
	// mirrorFlushTimeout bounds each batch insert.
	mirrorFlushTimeout = 5 * time.Second

	// DefaultMirrorCapacity is the buffered channel size.
	DefaultMirrorCapacity = 1000

	// DefaultMirrorFlushInterval is how often a partial batch is flushed.
	DefaultMirrorFlushInterval = time.Second

	// DefaultMirrorFlushThreshold flushes a batch once it reaches this size.
	DefaultMirrorFlushThreshold = 200
)

// MirrorEvent is the denormalized row shape written to ClickHouse.
type MirrorEvent struct {
	QuizID          string
	SessionID       string
	UserID          string
	EventType       string
	EventData       string
	ClientTimestamp time.Time
	ReceivedAt      time.Time
}

// EventInserter writes one batch of mirror rows.
type EventInserter interface {
	InsertEvents(ctx context.Context, events []MirrorEvent) error
}

// ClickHouseInserter implements EventInserter over a native connection.
type ClickHouseInserter struct {
	Conn clickhouse.Conn
}

func (i *ClickHouseInserter) InsertEvents(ctx context.Context, events []MirrorEvent) error {
	if len(events) == 0 {
		return nil
	}

	batch, err := i.Conn.PrepareBatch(ctx, `
		INSERT INTO quiz_events_mirror (
			quiz_id, session_id, user_id, event_type, event_data, client_timestamp, received_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare batch insert: %w", err)
	}

	for _, event := range events {
		if err := batch.Append(
			event.QuizID,
			event.SessionID,
			event.UserID,
			event.EventType,
			event.EventData,
			event.ClientTimestamp,
			event.ReceivedAt,
		); err != nil {
			return fmt.Errorf("failed to append event to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("failed to send batch: %w", err)
	}
	return nil
}

// Mirror buffers events on a channel and batch-inserts them from a single
// background goroutine.
type Mirror struct {
	events         chan MirrorEvent
	closed         chan struct{}
	once           sync.Once
	inserter       EventInserter
	log            *zap.Logger
	flushInterval  time.Duration
	flushThreshold int
	wg             sync.WaitGroup
}

func NewMirror(inserter EventInserter, log *zap.Logger, capacity, flushThreshold int, flushInterval time.Duration) *Mirror {
	if capacity <= 0 {
		capacity = DefaultMirrorCapacity
	}
	if flushThreshold <= 0 {
		flushThreshold = DefaultMirrorFlushThreshold
	}
	if flushInterval <= 0 {
		flushInterval = DefaultMirrorFlushInterval
	}
	return &Mirror{
		events:         make(chan MirrorEvent, capacity),
		closed:         make(chan struct{}),
		inserter:       inserter,
		log:            log,
		flushInterval:  flushInterval,
		flushThreshold: flushThreshold,
	}
}

// Enqueue performs a non-blocking send. It returns false when the buffer is
// full and the event is dropped from the mirror.
func (m *Mirror) Enqueue(event MirrorEvent) bool {
	select {
	case m.events <- event:
		return true
	default:
		return false
	}
}

// Len returns the number of events waiting in the buffer.
func (m *Mirror) Len() int {
	return len(m.events)
}

// Start launches the background flush goroutine.
func (m *Mirror) Start() {
	m.wg.Add(1)
	go m.flushLoop()
}

// Stop closes the buffer, flushes what remains and waits for the goroutine.
// Safe to call multiple times.
func (m *Mirror) Stop() {
	m.once.Do(func() {
		close(m.closed)
	})
	m.wg.Wait()
}

func (m *Mirror) flushLoop() {
	defer m.wg.Done()

	ticker := time.NewTicker(m.flushInterval)
	defer ticker.Stop()

	batch := make([]MirrorEvent, 0, m.flushThreshold)

	for {
		select {
		case event := <-m.events:
			batch = append(batch, event)
			if len(batch) >= m.flushThreshold {
				m.flush(batch)
				batch = make([]MirrorEvent, 0, m.flushThreshold)
			}

		case <-ticker.C:
			if len(batch) > 0 {
				m.flush(batch)
				batch = make([]MirrorEvent, 0, m.flushThreshold)
			}

		case <-m.closed:
			m.drain(&batch)
			if len(batch) > 0 {
				m.flush(batch)
			}
			return
		}
	}
}

func (m *Mirror) drain(batch *[]MirrorEvent) {
	for {
		select {
		case event := <-m.events:
			*batch = append(*batch, event)
		default:
			return
		}
	}
}

func (m *Mirror) flush(batch []MirrorEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), mirrorFlushTimeout)
	defer cancel()

	if err := m.inserter.InsertEvents(ctx, batch); err != nil {
		m.log.Error("Failed to mirror event batch",
			zap.Error(err),
			zap.Int("batch_size", len(batch)),
		)
		return
	}
	m.log.Debug("Mirrored event batch", zap.Int("batch_size", len(batch)))
}
