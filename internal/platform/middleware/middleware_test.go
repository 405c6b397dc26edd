package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/opd/opd/internal/platform/auth"
)

func run(mw echo.MiddlewareFunc, req *http.Request, handler echo.HandlerFunc) (*httptest.ResponseRecorder, error) {
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	err := mw(handler)(c)
	return rec, err
}

func okHandler(c echo.Context) error { return c.NoContent(http.StatusOK) }

func TestRequestID_Generates(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec, err := run(RequestID(), req, okHandler)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Header().Get(RequestIDHeader) == "" {
		t.Error("expected a generated request id header")
	}
}

func TestRequestID_HonorsIncoming(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "rid-123")
	rec, err := run(RequestID(), req, okHandler)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := rec.Header().Get(RequestIDHeader); got != "rid-123" {
		t.Errorf("expected rid-123, got %q", got)
	}
}

func TestRecovery(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	_, err := run(Recovery(zerolog.Nop()), req, func(c echo.Context) error {
		panic("boom")
	})
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusInternalServerError {
		t.Errorf("expected 500 after panic, got %v", err)
	}
}

func TestRateLimit_Exceeded(t *testing.T) {
	mw := RateLimit(RateLimitConfig{RequestsPerSecond: 0.001, BurstSize: 2})

	e := echo.New()
	var lastErr error
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)
		lastErr = mw(okHandler)(c)
	}

	he, ok := lastErr.(*echo.HTTPError)
	if !ok || he.Code != http.StatusTooManyRequests {
		t.Errorf("expected 429 on third request, got %v", lastErr)
	}
}

func TestRateLimit_KeyedByOperator(t *testing.T) {
	mw := RateLimit(RateLimitConfig{RequestsPerSecond: 0.001, BurstSize: 1})
	e := echo.New()

	call := func(operator string) error {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		ctx := context.WithValue(req.Context(), auth.UserIDKey, operator)
		req = req.WithContext(ctx)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)
		return mw(okHandler)(c)
	}

	if err := call("op-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// A different operator from the same IP gets its own bucket.
	if err := call("op-2"); err != nil {
		t.Errorf("expected op-2 to pass, got %v", err)
	}
	if err := call("op-1"); err == nil {
		t.Error("expected op-1 to be limited")
	}
}

func TestRequestTimeout(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/queue", nil)
	rec, err := run(RequestTimeout(20*time.Millisecond), req, func(c echo.Context) error {
		select {
		case <-c.Request().Context().Done():
			return c.Request().Context().Err()
		case <-time.After(time.Second):
			return c.NoContent(http.StatusOK)
		}
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusGatewayTimeout {
		t.Errorf("expected 504, got %d", rec.Code)
	}
}

func TestRequestTimeout_SkipsWebSocket(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/ws", nil)
	_, err := run(RequestTimeout(10*time.Millisecond), req, func(c echo.Context) error {
		if _, ok := c.Request().Context().Deadline(); ok {
			t.Error("websocket path must not get a deadline")
		}
		return c.NoContent(http.StatusOK)
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestAudit_RecordsMutations(t *testing.T) {
	var mu sync.Mutex
	var entries []AuditEntry
	recorder := AuditRecorderFunc(func(e AuditEntry) error {
		mu.Lock()
		defer mu.Unlock()
		entries = append(entries, e)
		return nil
	})

	mw := Audit(zerolog.Nop(), recorder)

	post := httptest.NewRequest(http.MethodPost, "/api/v1/queue/call-next", nil)
	ctx := context.WithValue(post.Context(), auth.UserIDKey, "op-9")
	post = post.WithContext(ctx)
	if _, err := run(mw, post, okHandler); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	get := httptest.NewRequest(http.MethodGet, "/api/v1/queue", nil)
	if _, err := run(mw, get, okHandler); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(entries) != 1 {
		t.Fatalf("expected 1 audit entry, got %d", len(entries))
	}
	if entries[0].UserID != "op-9" || entries[0].Action != "create" {
		t.Errorf("unexpected audit entry: %+v", entries[0])
	}
}
