package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// EventType is the closed set of event kinds the tracker emits.
type EventType string

const (
	EventPageEntry       EventType = "page_entry"
	EventSlideVisit      EventType = "slide_visit"
	EventAnswerSelection EventType = "answer_selection"
	EventQuizCompletion  EventType = "quiz_completion"
	EventPageExit        EventType = "page_exit"
)

// ValidEventType reports whether t is one of the five known event kinds.
func ValidEventType(t EventType) bool {
	switch t {
	case EventPageEntry, EventSlideVisit, EventAnswerSelection, EventQuizCompletion, EventPageExit:
		return true
	default:
		return false
	}
}

// Event is the wire shape of a single tracked event. Data stays raw until the
// kind is known; DecodePayload produces the kind-specific struct.
type Event struct {
	Type      EventType       `json:"type"`
	Timestamp int64           `json:"timestamp"` // client clock, Unix milliseconds
	Data      json.RawMessage `json:"data,omitempty"`
}

// ClientTime converts the client-supplied millisecond timestamp to time.Time.
// Analytics order events by this, not by insertion order, because exit and
// beacon events can arrive late or out of order.
func (e Event) ClientTime() time.Time {
	return time.UnixMilli(e.Timestamp).UTC()
}

// TrackRequest is the envelope the tracking endpoint receives.
type TrackRequest struct {
	QuizID    string `json:"quiz_id"`
	SessionID string `json:"session_id"`
	UserID    string `json:"user_id"`
	Event     Event  `json:"event"`
}

// PageEntryData is informational only and takes no part in funnel math.
type PageEntryData struct {
	PageURL          string `json:"page_url"`
	Referrer         string `json:"referrer"`
	UserAgent        string `json:"user_agent"`
	ScreenResolution string `json:"screen_resolution"`
	Timezone         string `json:"timezone"`
}

// SlideVisitData marks "this session reached this slide".
type SlideVisitData struct {
	SlideID    string `json:"slide_id"`
	SlideTitle string `json:"slide_title"`
	SlideType  string `json:"slide_type"`
	Sequence   int    `json:"sequence"`
	TimeOnPage int64  `json:"time_on_page"` // ms since page load
}

// AnswerSelectionData records one answer pick on a question slide.
type AnswerSelectionData struct {
	SlideID     string `json:"slide_id"`
	SlideTitle  string `json:"slide_title"`
	AnswerValue string `json:"answer_value"`
	AnswerText  string `json:"answer_text"`
	TimeOnSlide int64  `json:"time_on_slide"` // ms spent on the slide
}

// QuizCompletionData is the terminal success event for a session.
type QuizCompletionData struct {
	TotalSlidesVisited int      `json:"total_slides_visited"`
	AnswersProvided    int      `json:"answers_provided"`
	TotalTime          int64    `json:"total_time"` // ms
	CompletionPath     []string `json:"completion_path"`
}

// Exit reasons reported by the client.
const (
	ExitTabClose         = "tab_close"
	ExitVisibilityChange = "visibility_change"
	ExitPageUnload       = "page_unload"
)

// PageExitData is the abandonment signal. A session may emit several of
// these (tab hidden, then closed); analytics take the last by timestamp.
type PageExitData struct {
	TotalTime       int64  `json:"total_time"` // ms
	LastSlide       string `json:"last_slide"`
	SlidesVisited   int    `json:"slides_visited"`
	AnswersProvided int    `json:"answers_provided"`
	ExitReason      string `json:"exit_reason"`
}

// Validate checks the envelope fields and the kind-specific required payload
// fields. Nothing it rejects is ever persisted.
func (r TrackRequest) Validate() error {
	if r.QuizID == "" || r.SessionID == "" || r.UserID == "" {
		return fmt.Errorf("%w: quiz_id, session_id and user_id are required", ErrInvalidInput)
	}
	if r.Event.Timestamp == 0 {
		return fmt.Errorf("%w: event timestamp is required", ErrInvalidInput)
	}
	if !ValidEventType(r.Event.Type) {
		return fmt.Errorf("%w: unknown event type %q", ErrInvalidInput, r.Event.Type)
	}
	_, err := r.Event.DecodePayload()
	return err
}

// DecodePayload unmarshals Data into the struct for the event's kind and
// checks the kind's required fields.
func (e Event) DecodePayload() (any, error) {
	switch e.Type {
	case EventPageEntry:
		var d PageEntryData
		if err := decodeInto(e.Data, &d); err != nil {
			return nil, err
		}
		return d, nil
	case EventSlideVisit:
		var d SlideVisitData
		if err := decodeInto(e.Data, &d); err != nil {
			return nil, err
		}
		if d.SlideID == "" {
			return nil, fmt.Errorf("%w: slide_visit requires slide_id", ErrInvalidInput)
		}
		return d, nil
	case EventAnswerSelection:
		var d AnswerSelectionData
		if err := decodeInto(e.Data, &d); err != nil {
			return nil, err
		}
		if d.SlideID == "" || d.AnswerValue == "" {
			return nil, fmt.Errorf("%w: answer_selection requires slide_id and answer_value", ErrInvalidInput)
		}
		return d, nil
	case EventQuizCompletion:
		var d QuizCompletionData
		if err := decodeInto(e.Data, &d); err != nil {
			return nil, err
		}
		return d, nil
	case EventPageExit:
		var d PageExitData
		if err := decodeInto(e.Data, &d); err != nil {
			return nil, err
		}
		if d.ExitReason == "" {
			return nil, fmt.Errorf("%w: page_exit requires exit_reason", ErrInvalidInput)
		}
		return d, nil
	default:
		return nil, fmt.Errorf("%w: unknown event type %q", ErrInvalidInput, e.Type)
	}
}

func decodeInto(raw json.RawMessage, dst any) error {
	if len(raw) == 0 {
		return fmt.Errorf("%w: event data is required", ErrInvalidInput)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("%w: malformed event data: %v", ErrInvalidInput, err)
	}
	return nil
}
