package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"quizfunnel/api/models"
	"quizfunnel/api/store"
	"quizfunnel/api/utils"
)

// TrackHandlers owns the write-side endpoints: event ingestion and the
// explicit session lifecycle calls.
type TrackHandlers struct {
	Store  *store.QuizStore
	Mirror *store.Mirror // nil when the ClickHouse mirror is disabled
	log    *zap.Logger
}

func NewTrackHandlers(s *store.QuizStore, mirror *store.Mirror, log *zap.Logger) *TrackHandlers {
	return &TrackHandlers{Store: s, Mirror: mirror, log: log}
}

// TrackEvent ingests one client event. Validation and sanitization happen
// before any persistence; the store call is a single transaction.
func (h *TrackHandlers) TrackEvent(c *gin.Context) {
	var req models.TrackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_input",
			"message": "Invalid JSON input",
		})
		return
	}

	req.QuizID = utils.SanitizeIdentifier(req.QuizID)
	req.SessionID = utils.SanitizeIdentifier(req.SessionID)
	req.UserID = utils.SanitizeIdentifier(req.UserID)

	if err := req.Validate(); err != nil {
		respondError(c, err)
		return
	}

	result, err := h.Store.IngestEvent(c.Request.Context(), req)
	if err != nil {
		h.log.Error("Event ingestion failed",
			zap.String("quiz_id", req.QuizID),
			zap.String("event_type", string(req.Event.Type)),
			zap.Error(err),
		)
		respondError(c, err)
		return
	}

	h.mirrorEvent(req, result)

	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"message":   "Event tracked successfully",
		"event_id":  result.EventID,
		"timestamp": result.ReceivedAt.Unix(),
	})
}

// mirrorEvent forwards an accepted event to the OLAP mirror, if enabled.
// Drops are logged and otherwise ignored; the Postgres log is authoritative.
func (h *TrackHandlers) mirrorEvent(req models.TrackRequest, result *store.IngestResult) {
	if h.Mirror == nil {
		return
	}
	ok := h.Mirror.Enqueue(store.MirrorEvent{
		QuizID:          req.QuizID,
		SessionID:       req.SessionID,
		UserID:          req.UserID,
		EventType:       string(req.Event.Type),
		EventData:       string(req.Event.Data),
		ClientTimestamp: req.Event.ClientTime(),
		ReceivedAt:      result.ReceivedAt,
	})
	if !ok {
		h.log.Warn("Mirror buffer full, dropping event",
			zap.String("session_id", req.SessionID),
		)
	}
}

type startSessionRequest struct {
	URLPath string `json:"url_path" binding:"required"`
	UserID  string `json:"user_id"`
}

// StartSession opens a session with a server-assigned uuid, deriving the
// quiz id from the page URL path and creating the quiz lazily.
func (h *TrackHandlers) StartSession(c *gin.Context) {
	var req startSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_input",
			"message": "url_path is required",
		})
		return
	}

	sessionID := uuid.New().String()
	userID := utils.SanitizeIdentifier(req.UserID)
	if userID == "" {
		userID = uuid.New().String()
	}

	quizID, err := h.Store.StartSession(c.Request.Context(), sessionID, req.URLPath, userID)
	if err != nil {
		h.log.Error("Session start failed", zap.Error(err))
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"session_id": sessionID,
		"quiz_id":    quizID,
		"user_id":    userID,
		"message":    "Session started successfully",
	})
}

type completeSessionRequest struct {
	SessionID string `json:"session_id" binding:"required"`
}

// CompleteSession marks an existing session completed. Unknown sessions are
// a 404, not an upsert.
func (h *TrackHandlers) CompleteSession(c *gin.Context) {
	var req completeSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_input",
			"message": "session_id is required",
		})
		return
	}

	sessionID := utils.SanitizeIdentifier(req.SessionID)
	if err := h.Store.CompleteSession(c.Request.Context(), sessionID); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Session completed successfully",
	})
}
