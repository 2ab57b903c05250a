package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"quizfunnel/api/cache"
	"quizfunnel/api/models"
	"quizfunnel/api/utils"
)

// CacheTTL is how long a computed analytics view stays memoized.
const CacheTTL = 15 * time.Minute

// Analytics view types. "realtime" is never cached.
const (
	ViewStats    = "stats"
	ViewFunnel   = "funnel"
	ViewDropOff  = "dropoff"
	ViewAnswers  = "answers"
	ViewSlides   = "slides"
	ViewDebug    = "debug"
	ViewRealtime = "realtime"
	ViewFull     = "full"
)

// AnalyticsProvider is what the handlers need from the analytics engine.
// Narrow on purpose: tests count store hits through it to verify caching.
type AnalyticsProvider interface {
	GetFunnel(ctx context.Context, quizID string) ([]models.FunnelRow, error)
	GetDropOffs(ctx context.Context, quizID string) ([]models.DropOffRow, error)
	GetAnswerAnalytics(ctx context.Context, quizID string) ([]models.AnswerRow, error)
	GetBasicStats(ctx context.Context, quizID string) (*models.BasicStats, error)
	GetSlideStats(ctx context.Context, quizID string) ([]models.SlideStats, error)
	GetExitDistribution(ctx context.Context, quizID string) ([]models.ExitCount, error)
}

// QuizLister lists quizzes with their session totals.
type QuizLister interface {
	GetQuizzes(ctx context.Context) ([]models.QuizSummary, error)
}

type AnalyticsHandlers struct {
	Provider AnalyticsProvider
	Quizzes  QuizLister
	Cache    *cache.Cache
	log      *zap.Logger
	now      func() time.Time
}

func NewAnalyticsHandlers(provider AnalyticsProvider, quizzes QuizLister, resultCache *cache.Cache, log *zap.Logger) *AnalyticsHandlers {
	return &AnalyticsHandlers{
		Provider: provider,
		Quizzes:  quizzes,
		Cache:    resultCache,
		log:      log,
		now:      time.Now,
	}
}

// GetAnalytics serves GET /api/analytics?quiz_id=...&type=..., the combined
// endpoint with the full view switch.
func (h *AnalyticsHandlers) GetAnalytics(c *gin.Context) {
	quizID := utils.SanitizeIdentifier(c.Query("quiz_id"))
	if quizID == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_input",
			"message": "quiz_id query parameter is required",
		})
		return
	}

	view := c.DefaultQuery("type", ViewFull)
	h.serveView(c, quizID, view)
}

// GetQuizView serves the per-view routes /api/analytics/quiz/:quizId/<view>.
func (h *AnalyticsHandlers) GetQuizView(view string) gin.HandlerFunc {
	return func(c *gin.Context) {
		quizID := utils.SanitizeIdentifier(c.Param("quizId"))
		h.serveView(c, quizID, view)
	}
}

// GetQuizzes serves the quiz listing. Never cached: it is a cheap single
// aggregate and the dashboard landing page wants it fresh.
func (h *AnalyticsHandlers) GetQuizzes(c *gin.Context) {
	quizzes, err := h.Quizzes.GetQuizzes(c.Request.Context())
	if err != nil {
		h.log.Error("Quiz listing failed", zap.Error(err))
		respondError(c, err)
		return
	}
	if quizzes == nil {
		quizzes = []models.QuizSummary{}
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": quizzes})
}

// serveView returns a cached payload when one exists for the current hour
// bucket, otherwise computes, caches and returns it. The realtime view
// always recomputes.
func (h *AnalyticsHandlers) serveView(c *gin.Context, quizID, view string) {
	cacheKey := cache.Key(quizID, view, utils.HourBucket(h.now()))

	if view != ViewRealtime {
		if data, ok := h.Cache.Get(cacheKey); ok {
			c.Data(http.StatusOK, "application/json; charset=utf-8", data)
			return
		}
	}

	payload, err := h.computeView(c.Request.Context(), quizID, view, cacheKey)
	if err != nil {
		h.log.Error("Analytics view failed",
			zap.String("quiz_id", quizID),
			zap.String("view", view),
			zap.Error(err),
		)
		respondError(c, err)
		return
	}

	data, err := json.Marshal(payload)
	if err != nil {
		respondError(c, err)
		return
	}

	if view != ViewRealtime {
		h.Cache.Put(cacheKey, data, CacheTTL)
	}
	c.Data(http.StatusOK, "application/json; charset=utf-8", data)
}

// computeView assembles one view payload. A view either fully succeeds or
// fully fails; no partial results leave this function.
func (h *AnalyticsHandlers) computeView(ctx context.Context, quizID, view, cacheKey string) (gin.H, error) {
	payload := gin.H{
		"quiz_id":      quizID,
		"generated_at": h.now().UTC().Format(time.RFC3339),
		"cache_key":    cacheKey,
	}

	switch view {
	case ViewStats:
		stats, err := h.Provider.GetBasicStats(ctx, quizID)
		if err != nil {
			return nil, err
		}
		payload["stats"] = stats

	case ViewFunnel:
		funnel, err := h.Provider.GetFunnel(ctx, quizID)
		if err != nil {
			return nil, err
		}
		payload["funnel"] = funnel

	case ViewDropOff:
		dropOffs, err := h.Provider.GetDropOffs(ctx, quizID)
		if err != nil {
			return nil, err
		}
		payload["drop_off_analysis"] = dropOffs

	case ViewAnswers:
		answers, err := h.Provider.GetAnswerAnalytics(ctx, quizID)
		if err != nil {
			return nil, err
		}
		payload["answer_analytics"] = answers

	case ViewSlides:
		slides, err := h.Provider.GetSlideStats(ctx, quizID)
		if err != nil {
			return nil, err
		}
		payload["slides"] = slides

	case ViewDebug:
		exits, err := h.Provider.GetExitDistribution(ctx, quizID)
		if err != nil {
			return nil, err
		}
		if exits == nil {
			exits = []models.ExitCount{}
		}
		payload["debug_page_exit_events"] = exits

	case ViewRealtime:
		stats, err := h.Provider.GetBasicStats(ctx, quizID)
		if err != nil {
			return nil, err
		}
		funnel, err := h.Provider.GetFunnel(ctx, quizID)
		if err != nil {
			return nil, err
		}
		payload["stats"] = stats
		payload["funnel"] = funnel

	case ViewFull:
		stats, err := h.Provider.GetBasicStats(ctx, quizID)
		if err != nil {
			return nil, err
		}
		funnel, err := h.Provider.GetFunnel(ctx, quizID)
		if err != nil {
			return nil, err
		}
		dropOffs, err := h.Provider.GetDropOffs(ctx, quizID)
		if err != nil {
			return nil, err
		}
		answers, err := h.Provider.GetAnswerAnalytics(ctx, quizID)
		if err != nil {
			return nil, err
		}
		payload["stats"] = stats
		payload["funnel"] = funnel
		payload["drop_off_analysis"] = dropOffs
		payload["answer_analytics"] = answers

	default:
		return nil, fmt.Errorf("%w: unknown analytics type %q", models.ErrInvalidInput, view)
	}

	return payload, nil
}
