package models

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func validSlideVisit() TrackRequest {
	return TrackRequest{
		QuizID:    "lead2",
		SessionID: "sess-1",
		UserID:    "user-1",
		Event: Event{
			Type:      EventSlideVisit,
			Timestamp: 1700000000000,
			Data:      json.RawMessage(`{"slide_id":"slide-1","slide_title":"Welcome","slide_type":"question","sequence":1}`),
		},
	}
}

func TestTrackRequestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*TrackRequest)
		wantErr bool
	}{
		{
			name:   "valid slide_visit",
			mutate: func(r *TrackRequest) {},
		},
		{
			name:    "missing quiz_id",
			mutate:  func(r *TrackRequest) { r.QuizID = "" },
			wantErr: true,
		},
		{
			name:    "missing session_id",
			mutate:  func(r *TrackRequest) { r.SessionID = "" },
			wantErr: true,
		},
		{
			name:    "missing user_id",
			mutate:  func(r *TrackRequest) { r.UserID = "" },
			wantErr: true,
		},
		{
			name:    "zero timestamp",
			mutate:  func(r *TrackRequest) { r.Event.Timestamp = 0 },
			wantErr: true,
		},
		{
			name:    "unknown event type",
			mutate:  func(r *TrackRequest) { r.Event.Type = "button_click" },
			wantErr: true,
		},
		{
			name:    "missing event data",
			mutate:  func(r *TrackRequest) { r.Event.Data = nil },
			wantErr: true,
		},
		{
			name:    "malformed event data",
			mutate:  func(r *TrackRequest) { r.Event.Data = json.RawMessage(`{"slide_id":`) },
			wantErr: true,
		},
		{
			name: "slide_visit without slide_id",
			mutate: func(r *TrackRequest) {
				r.Event.Data = json.RawMessage(`{"slide_title":"Welcome"}`)
			},
			wantErr: true,
		},
		{
			name: "answer_selection without answer_value",
			mutate: func(r *TrackRequest) {
				r.Event.Type = EventAnswerSelection
				r.Event.Data = json.RawMessage(`{"slide_id":"slide-2"}`)
			},
			wantErr: true,
		},
		{
			name: "valid answer_selection",
			mutate: func(r *TrackRequest) {
				r.Event.Type = EventAnswerSelection
				r.Event.Data = json.RawMessage(`{"slide_id":"slide-2","answer_value":"yes","answer_text":"Yes"}`)
			},
		},
		{
			name: "page_exit without exit_reason",
			mutate: func(r *TrackRequest) {
				r.Event.Type = EventPageExit
				r.Event.Data = json.RawMessage(`{"last_slide":"slide-2"}`)
			},
			wantErr: true,
		},
		{
			name: "valid page_exit",
			mutate: func(r *TrackRequest) {
				r.Event.Type = EventPageExit
				r.Event.Data = json.RawMessage(`{"last_slide":"slide-2","exit_reason":"tab_close","total_time":9000}`)
			},
		},
		{
			name: "valid page_entry",
			mutate: func(r *TrackRequest) {
				r.Event.Type = EventPageEntry
				r.Event.Data = json.RawMessage(`{"page_url":"https://example.com/lead2","referrer":""}`)
			},
		},
		{
			name: "valid quiz_completion",
			mutate: func(r *TrackRequest) {
				r.Event.Type = EventQuizCompletion
				r.Event.Data = json.RawMessage(`{"total_slides_visited":5,"answers_provided":4,"total_time":60000}`)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validSlideVisit()
			tt.mutate(&req)
			err := req.Validate()
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected validation error, got nil")
				}
				if !errors.Is(err, ErrInvalidInput) {
					t.Fatalf("expected ErrInvalidInput, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestDecodePayloadTypes(t *testing.T) {
	req := validSlideVisit()
	payload, err := req.Event.DecodePayload()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	visit, ok := payload.(SlideVisitData)
	if !ok {
		t.Fatalf("expected SlideVisitData, got %T", payload)
	}
	if visit.SlideID != "slide-1" || visit.Sequence != 1 {
		t.Fatalf("unexpected payload: %+v", visit)
	}
}

func TestValidEventType(t *testing.T) {
	for _, typ := range []EventType{EventPageEntry, EventSlideVisit, EventAnswerSelection, EventQuizCompletion, EventPageExit} {
		if !ValidEventType(typ) {
			t.Errorf("ValidEventType(%q) = false, want true", typ)
		}
	}
	if ValidEventType("scroll") {
		t.Error("ValidEventType(\"scroll\") = true, want false")
	}
}

func TestClientTime(t *testing.T) {
	e := Event{Timestamp: 1700000000000}
	want := time.UnixMilli(1700000000000).UTC()
	if got := e.ClientTime(); !got.Equal(want) {
		t.Fatalf("ClientTime() = %v, want %v", got, want)
	}
}
