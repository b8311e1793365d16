// Package client calls the analysis relay from the drawing studio.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ofumi529/Little-Artists-Studio/domain/analysis"
)

const (
	// DefaultBaseURL is where a locally started relay listens.
	DefaultBaseURL = "http://localhost:8080"
	AnalyzePath    = "/api/analyze-art"
	DefaultTimeout = 90 * time.Second

	MsgInvalidResponse = "サーバーから無効なレスポンスが返されました"
	MsgConnection      = "サーバーとの通信に失敗しました。"

	// response bodies are never read past this size
	maxResponseBytes = 1 << 20
)

// RelayError is a non-2xx JSON answer from the relay.
type RelayError struct {
	Status  int
	Message string
	Debug   string
}

func (e *RelayError) Error() string {
	if e.Debug != "" {
		return fmt.Sprintf("relay %d: %s (%s)", e.Status, e.Message, e.Debug)
	}
	return fmt.Sprintf("relay %d: %s", e.Status, e.Message)
}

// Temporary reports whether the same drawing may succeed later (429 or 503).
func (e *RelayError) Temporary() bool {
	return e.Status == http.StatusTooManyRequests || e.Status == http.StatusServiceUnavailable
}

// TransportError means no usable answer came back: the relay was
// unreachable or did not speak JSON.
type TransportError struct {
	Message string
	Status  int
	Err     error
}

func (e *TransportError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *TransportError) Unwrap() error { return e.Err }

// Client posts drawings to the relay.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithLogger sets the client logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// New creates a client for the relay at baseURL.
func New(baseURL string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: DefaultTimeout},
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type analyzeRequest struct {
	ImageData string `json:"imageData"`
}

type analyzeResponse struct {
	Analysis string `json:"analysis"`
	Error    string `json:"error"`
	Debug    string `json:"debug"`
}

// Analyze sends a PNG data URL and returns the parsed analysis.
func (c *Client) Analyze(ctx context.Context, dataURL string) (analysis.Result, error) {
	body, err := json.Marshal(analyzeRequest{ImageData: dataURL})
	if err != nil {
		return analysis.Result{}, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+AnalyzePath, bytes.NewReader(body))
	if err != nil {
		return analysis.Result{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return analysis.Result{}, ctxErr
		}
		return analysis.Result{}, &TransportError{Message: MsgConnection, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return analysis.Result{}, &TransportError{Message: MsgConnection, Status: resp.StatusCode, Err: err}
	}

	c.logger.Debug("Relay responded",
		zap.Int("status", resp.StatusCode),
		zap.Int("bytes", len(raw)),
		zap.String("request_id", resp.Header.Get("X-Request-ID")),
	)

	var out analyzeResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return analysis.Result{}, &TransportError{
			Message: fmt.Sprintf("%s: %s", MsgInvalidResponse, resp.Status),
			Status:  resp.StatusCode,
			Err:     err,
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return analysis.Result{}, &RelayError{Status: resp.StatusCode, Message: out.Error, Debug: out.Debug}
	}
	return analysis.Parse(out.Analysis), nil
}
