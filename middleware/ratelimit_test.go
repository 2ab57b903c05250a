package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newLimitedRouter(maxRequests int, window time.Duration, done <-chan struct{}) *gin.Engine {
	r := gin.New()
	r.Use(RateLimiter(maxRequests, window, done))
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	return r
}

func getFrom(r *gin.Engine, addr string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.RemoteAddr = addr
	r.ServeHTTP(w, req)
	return w
}

func TestRateLimiterBlocksOverLimit(t *testing.T) {
	done := make(chan struct{})
	defer close(done)
	r := newLimitedRouter(2, time.Minute, done)

	for i := 0; i < 2; i++ {
		if w := getFrom(r, "10.0.0.1:1234"); w.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d, want 200", i+1, w.Code)
		}
	}
	if w := getFrom(r, "10.0.0.1:1234"); w.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", w.Code)
	}
}

func TestRateLimiterTracksIPsIndependently(t *testing.T) {
	done := make(chan struct{})
	defer close(done)
	r := newLimitedRouter(1, time.Minute, done)

	if w := getFrom(r, "10.0.0.1:1234"); w.Code != http.StatusOK {
		t.Fatalf("first ip: status = %d, want 200", w.Code)
	}
	if w := getFrom(r, "10.0.0.2:1234"); w.Code != http.StatusOK {
		t.Fatalf("second ip: status = %d, want 200", w.Code)
	}
	if w := getFrom(r, "10.0.0.1:5678"); w.Code != http.StatusTooManyRequests {
		t.Fatalf("same ip new port: status = %d, want 429", w.Code)
	}
}

// Behind a reverse proxy every request shares one RemoteAddr; the limiter
// must bucket on the forwarded client address instead.
func TestRateLimiterBucketsForwardedClients(t *testing.T) {
	done := make(chan struct{})
	defer close(done)
	r := newLimitedRouter(1, time.Minute, done)

	forwarded := func(clientIP string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		req.RemoteAddr = "127.0.0.1:9000"
		req.Header.Set("X-Forwarded-For", clientIP)
		r.ServeHTTP(w, req)
		return w
	}

	if w := forwarded("203.0.113.1"); w.Code != http.StatusOK {
		t.Fatalf("first client: status = %d, want 200", w.Code)
	}
	if w := forwarded("203.0.113.2"); w.Code != http.StatusOK {
		t.Fatalf("second client: status = %d, want 200", w.Code)
	}
	if w := forwarded("203.0.113.1"); w.Code != http.StatusTooManyRequests {
		t.Fatalf("repeat client: status = %d, want 429", w.Code)
	}
}

func TestRateLimiterWindowResets(t *testing.T) {
	done := make(chan struct{})
	defer close(done)
	r := newLimitedRouter(1, 50*time.Millisecond, done)

	if w := getFrom(r, "10.0.0.1:1234"); w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if w := getFrom(r, "10.0.0.1:1234"); w.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", w.Code)
	}

	time.Sleep(60 * time.Millisecond)
	if w := getFrom(r, "10.0.0.1:1234"); w.Code != http.StatusOK {
		t.Fatalf("status after window = %d, want 200", w.Code)
	}
}
