// Package analyzer submits documents to Azure Document Intelligence and
// returns the selection marks it finds.
package analyzer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/dgallion1/omrgest/internal/omr"
)

// ErrMissingCredentials is returned when the endpoint or key is not configured.
var ErrMissingCredentials = errors.New("azure document intelligence credentials missing")

// Options configures a Client.
type Options struct {
	Endpoint     string
	APIKey       string
	Model        string
	APIVersion   string
	PollInterval time.Duration
	Timeout      time.Duration
}

// Client calls the Document Intelligence analyze API. It implements
// omr.Analyzer.
type Client struct {
	endpoint     string
	apiKey       string
	model        string
	apiVersion   string
	pollInterval time.Duration
	timeout      time.Duration
	httpClient   *http.Client

	Stats *Stats
}

func NewClient(opts Options) *Client {
	if opts.Model == "" {
		opts.Model = "prebuilt-layout"
	}
	if opts.APIVersion == "" {
		opts.APIVersion = "2024-11-30"
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = time.Second
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 2 * time.Minute
	}
	return &Client{
		endpoint:     strings.TrimRight(opts.Endpoint, "/"),
		apiKey:       opts.APIKey,
		model:        opts.Model,
		apiVersion:   opts.APIVersion,
		pollInterval: opts.PollInterval,
		timeout:      opts.Timeout,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		Stats: NewStats(time.Hour),
	}
}

// Model returns the analysis model ID.
func (c *Client) Model() string {
	return c.model
}

// Analyze submits doc and polls until the analysis completes.
func (c *Client) Analyze(ctx context.Context, doc omr.Document) ([]omr.Page, error) {
	if c.endpoint == "" || c.apiKey == "" {
		return nil, ErrMissingCredentials
	}

	start := time.Now()
	pages, err := c.analyze(ctx, doc)
	c.Stats.Record(time.Since(start).Milliseconds(), err != nil)
	return pages, err
}

func (c *Client) analyze(ctx context.Context, doc omr.Document) ([]omr.Page, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	opURL, err := c.submit(ctx, doc)
	if err != nil {
		return nil, err
	}

	for {
		op, retryAfter, err := c.poll(ctx, opURL)
		if err != nil {
			return nil, err
		}
		switch op.Status {
		case "succeeded":
			return toPages(op.AnalyzeResult), nil
		case "failed", "canceled":
			if op.Error != nil {
				return nil, fmt.Errorf("analysis %s: %s: %s", op.Status, op.Error.Code, op.Error.Message)
			}
			return nil, fmt.Errorf("analysis %s", op.Status)
		}

		wait := c.pollInterval
		if retryAfter > 0 {
			wait = retryAfter
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("waiting for analysis: %w", ctx.Err())
		case <-time.After(wait):
		}
	}
}

func (c *Client) analyzeURL() string {
	q := url.Values{}
	q.Set("api-version", c.apiVersion)
	return fmt.Sprintf("%s/documentintelligence/documentModels/%s:analyze?%s",
		c.endpoint, url.PathEscape(c.model), q.Encode())
}

// submit starts an analysis and returns its Operation-Location.
func (c *Client) submit(ctx context.Context, doc omr.Document) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.analyzeURL(), bytes.NewReader(doc.Data))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	ct := doc.ContentType
	if ct == "" {
		ct = "application/octet-stream"
	}
	req.Header.Set("Content-Type", ct)
	req.Header.Set("Ocp-Apim-Subscription-Key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("document intelligence: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
		return "", statusError("submit", resp.StatusCode, body)
	}
	loc := resp.Header.Get("Operation-Location")
	if loc == "" {
		return "", fmt.Errorf("submit: response missing Operation-Location")
	}
	return loc, nil
}

func (c *Client) poll(ctx context.Context, opURL string) (*operation, time.Duration, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, opURL, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Ocp-Apim-Subscription-Key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("poll analysis: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
	if err != nil {
		return nil, 0, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, 0, statusError("poll", resp.StatusCode, body)
	}

	var op operation
	if err := json.Unmarshal(body, &op); err != nil {
		return nil, 0, fmt.Errorf("decode operation: %w", err)
	}
	return &op, retryAfter(resp.Header.Get("Retry-After")), nil
}

func retryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	return 0
}

func statusError(phase string, code int, body []byte) error {
	msg := string(body)
	var env errorEnvelope
	if json.Unmarshal(body, &env) == nil && env.Error != nil {
		msg = env.Error.Code + ": " + env.Error.Message
	}
	if code == http.StatusTooManyRequests || code >= 500 {
		return &RetryableError{StatusCode: code, Message: msg}
	}
	return fmt.Errorf("%s: document intelligence status %d: %s", phase, code, truncate(msg, 200))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// RetryableError indicates a transient failure that can be retried.
type RetryableError struct {
	StatusCode int
	Message    string
}

func (e *RetryableError) Error() string {
	return fmt.Sprintf("retryable error (status %d): %s", e.StatusCode, truncate(e.Message, 200))
}

// Close releases resources.
func (c *Client) Close() {
	c.httpClient.CloseIdleConnections()
}
