package analyzer

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dgallion1/omrgest/internal/omr"
)

const succeededBody = `{
  "status": "succeeded",
  "analyzeResult": {
    "apiVersion": "2024-11-30",
    "modelId": "prebuilt-layout",
    "pages": [
      {
        "pageNumber": 1,
        "selectionMarks": [
          {"state": "selected", "confidence": 0.97, "polygon": [10, 100, 20, 100, 20, 110, 10, 110]},
          {"state": "unselected", "confidence": 0.9, "polygon": [40, 100, 50, 100, 50, 110, 40, 110]},
          {"state": "selected", "polygon": [null, 200, 20, 200, 20]}
        ]
      },
      {"pageNumber": 2}
    ]
  }
}`

// fakeService emulates the submit-then-poll flow. The operation reports
// "running" for the first pending polls.
func fakeService(t *testing.T, pending int32, final string) (*httptest.Server, *int32) {
	t.Helper()
	var polls int32
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Ocp-Apim-Subscription-Key") != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			io.WriteString(w, `{"error":{"code":"401","message":"bad key"}}`)
			return
		}
		switch {
		case r.Method == http.MethodPost:
			if !strings.Contains(r.URL.Path, "/documentModels/prebuilt-layout:analyze") {
				t.Errorf("unexpected submit path %q", r.URL.Path)
			}
			if r.URL.Query().Get("api-version") != "2024-11-30" {
				t.Errorf("unexpected api-version %q", r.URL.Query().Get("api-version"))
			}
			w.Header().Set("Operation-Location", srv.URL+"/operations/1")
			w.WriteHeader(http.StatusAccepted)
		case r.Method == http.MethodGet && r.URL.Path == "/operations/1":
			n := atomic.AddInt32(&polls, 1)
			if n <= pending {
				io.WriteString(w, `{"status":"running"}`)
				return
			}
			io.WriteString(w, final)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)
	return srv, &polls
}

func newTestClient(endpoint string) *Client {
	return NewClient(Options{
		Endpoint:     endpoint,
		APIKey:       "secret",
		PollInterval: time.Millisecond,
		Timeout:      5 * time.Second,
	})
}

func TestAnalyze_PollsUntilSucceeded(t *testing.T) {
	srv, polls := fakeService(t, 2, succeededBody)
	c := newTestClient(srv.URL)
	defer c.Close()

	pages, err := c.Analyze(context.Background(), omr.Document{Data: []byte("img"), ContentType: "image/png"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := atomic.LoadInt32(polls); got != 3 {
		t.Errorf("expected 3 polls, got %d", got)
	}
	if len(pages) != 2 {
		t.Fatalf("expected 2 pages, got %d", len(pages))
	}
	marks := pages[0].SelectionMarks
	if len(marks) != 3 {
		t.Fatalf("expected 3 marks, got %d", len(marks))
	}
	if len(marks[0].Polygon) != 4 || *marks[0].Polygon[2].X != 20 || *marks[0].Polygon[2].Y != 110 {
		t.Errorf("unexpected polygon %+v", marks[0].Polygon)
	}
	if marks[2].Confidence != nil {
		t.Error("expected missing confidence to stay absent")
	}
	if marks[2].Polygon[0].X != nil {
		t.Error("expected null x to stay absent")
	}
	if last := marks[2].Polygon[len(marks[2].Polygon)-1]; last.Y != nil {
		t.Error("expected trailing odd entry to have no y")
	}
	if c.Stats.Snapshot().Count != 1 {
		t.Errorf("expected one recorded call")
	}
}

func TestAnalyze_FeedsPipeline(t *testing.T) {
	srv, _ := fakeService(t, 0, succeededBody)
	c := newTestClient(srv.URL)

	res := omr.NewPipeline(omr.DefaultConfig(), c, nil).Process(context.Background(), omr.Document{Data: []byte("x")})
	if !res.Success {
		t.Fatalf("expected success, warnings=%v", res.Warnings)
	}
	if len(res.Items) != 1 || res.Items[0].ID != "P1" || res.Items[0].Value != "A" {
		t.Errorf("unexpected items %+v", res.Items)
	}
}

func TestAnalyze_MissingCredentials(t *testing.T) {
	c := NewClient(Options{Endpoint: "https://example.invalid"})
	_, err := c.Analyze(context.Background(), omr.Document{})
	if !errors.Is(err, ErrMissingCredentials) {
		t.Fatalf("expected ErrMissingCredentials, got %v", err)
	}
	if c.Stats.Snapshot().Count != 0 {
		t.Error("config errors should not be recorded as calls")
	}
}

func TestAnalyze_OperationFailed(t *testing.T) {
	srv, _ := fakeService(t, 0, `{"status":"failed","error":{"code":"InvalidContent","message":"corrupt image"}}`)
	c := newTestClient(srv.URL)

	_, err := c.Analyze(context.Background(), omr.Document{})
	if err == nil || !strings.Contains(err.Error(), "corrupt image") {
		t.Fatalf("expected service error, got %v", err)
	}
	if c.Stats.Snapshot().Failures != 1 {
		t.Error("expected failure to be recorded")
	}
}

func TestAnalyze_RetryableStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		io.WriteString(w, `{"error":{"code":"429","message":"slow down"}}`)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).Analyze(context.Background(), omr.Document{})
	var retryErr *RetryableError
	if !errors.As(err, &retryErr) {
		t.Fatalf("expected RetryableError, got %v", err)
	}
	if retryErr.StatusCode != http.StatusTooManyRequests {
		t.Errorf("expected status 429, got %d", retryErr.StatusCode)
	}
}

func TestAnalyze_ClientErrorNotRetryable(t *testing.T) {
	srv, _ := fakeService(t, 0, succeededBody)
	c := NewClient(Options{Endpoint: srv.URL, APIKey: "wrong", PollInterval: time.Millisecond})

	_, err := c.Analyze(context.Background(), omr.Document{})
	var retryErr *RetryableError
	if err == nil || errors.As(err, &retryErr) {
		t.Fatalf("expected non-retryable error, got %v", err)
	}
	if !strings.Contains(err.Error(), "bad key") {
		t.Errorf("expected service message in error, got %v", err)
	}
}

func TestAnalyze_ContextCancelledWhilePolling(t *testing.T) {
	srv, _ := fakeService(t, 1<<30, succeededBody)
	c := newTestClient(srv.URL)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	_, err := c.Analyze(ctx, omr.Document{})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestRetryAfter(t *testing.T) {
	cases := map[string]time.Duration{
		"":    0,
		"2":   2 * time.Second,
		"-1":  0,
		"abc": 0,
	}
	for in, want := range cases {
		if got := retryAfter(in); got != want {
			t.Errorf("retryAfter(%q) = %v, want %v", in, got, want)
		}
	}
}
