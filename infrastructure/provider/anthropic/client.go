// Package anthropic calls the Anthropic Messages API with one image and one
// text prompt.
package anthropic

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"syscall"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/ofumi529/Little-Artists-Studio/domain/analysis"
	"github.com/ofumi529/Little-Artists-Studio/infrastructure/observability"
)

const (
	DefaultEndpoint = "https://api.anthropic.com/v1/messages"
	DefaultVersion  = "2023-06-01"
	DefaultTimeout  = 60 * time.Second

	// provider error bodies are cut to this many bytes before logging
	maxErrorBody = 4 << 10
)

// Options configures a Client.
type Options struct {
	Endpoint string
	Version  string
	Timeout  time.Duration
}

// Client is a Messages API client.
type Client struct {
	httpClient *http.Client
	endpoint   string
	version    string
	logger     *zap.Logger
	metrics    *observability.Collector
	tracer     trace.Tracer
}

// NewClient creates a client. metrics may be nil.
func NewClient(opts Options, logger *zap.Logger, metrics *observability.Collector) *Client {
	if opts.Endpoint == "" {
		opts.Endpoint = DefaultEndpoint
	}
	if opts.Version == "" {
		opts.Version = DefaultVersion
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	return &Client{
		httpClient: &http.Client{Timeout: opts.Timeout},
		endpoint:   opts.Endpoint,
		version:    opts.Version,
		logger:     logger,
		metrics:    metrics,
		tracer:     otel.Tracer("github.com/ofumi529/Little-Artists-Studio/infrastructure/provider/anthropic"),
	}
}

type messagesRequest struct {
	Model     string    `json:"model"`
	MaxTokens int       `json:"max_tokens"`
	Messages  []message `json:"messages"`
}

type message struct {
	Role    string        `json:"role"`
	Content []contentPart `json:"content"`
}

type contentPart struct {
	Type   string       `json:"type"`
	Text   string       `json:"text,omitempty"`
	Source *imageSource `json:"source,omitempty"`
}

type imageSource struct {
	Type      string `json:"type"`
	MediaType string `json:"media_type"`
	Data      string `json:"data"`
}

type messagesResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
	Usage      struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

type errorResponse struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// Analyze sends the prompt and image as a single user message and returns
// the text of the first content block.
func (c *Client) Analyze(ctx context.Context, req analysis.Request) (string, error) {
	ctx, span := c.tracer.Start(ctx, "anthropic.messages",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("llm.model", req.Model),
			attribute.Int("llm.max_tokens", req.MaxTokens),
			attribute.Int("image.base64_bytes", len(req.Data)),
		),
	)
	defer span.End()

	text, status, err := c.do(ctx, req)
	span.SetAttributes(attribute.Int("http.status_code", status))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "provider call failed")
		return "", err
	}
	return text, nil
}

func (c *Client) do(ctx context.Context, req analysis.Request) (string, int, error) {
	mediaType := req.MediaType
	if mediaType == "" {
		mediaType = "image/png"
	}
	payload := messagesRequest{
		Model:     req.Model,
		MaxTokens: req.MaxTokens,
		Messages: []message{{
			Role: "user",
			Content: []contentPart{
				{Type: "text", Text: req.Prompt},
				{Type: "image", Source: &imageSource{Type: "base64", MediaType: mediaType, Data: req.Data}},
			},
		}},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", 0, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", 0, fmt.Errorf("create http request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", req.APIKey)
	httpReq.Header.Set("anthropic-version", c.version)

	c.logger.Debug("Sending analysis request",
		zap.String("model", req.Model),
		zap.Int("payload_size", len(body)),
	)

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.observe(0, time.Since(start))
		return "", 0, classify(err)
	}
	defer resp.Body.Close()
	duration := time.Since(start)
	c.observe(resp.StatusCode, duration)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		msg := resp.Status
		var er errorResponse
		if json.Unmarshal(raw, &er) == nil && er.Error.Message != "" {
			msg = er.Error.Message
		}
		c.logger.Warn("Provider returned error status",
			zap.Int("status", resp.StatusCode),
			zap.String("message", msg),
			zap.Duration("duration", duration),
		)
		return "", resp.StatusCode, &analysis.StatusError{Status: resp.StatusCode, Message: msg}
	}

	var mr messagesResponse
	if err := json.NewDecoder(resp.Body).Decode(&mr); err != nil {
		return "", resp.StatusCode, fmt.Errorf("decode response: %w", err)
	}
	if len(mr.Content) == 0 {
		return "", resp.StatusCode, errors.New("response has no content")
	}

	c.logger.Debug("Analysis response received",
		zap.Duration("duration", duration),
		zap.Int("input_tokens", mr.Usage.InputTokens),
		zap.Int("output_tokens", mr.Usage.OutputTokens),
		zap.String("stop_reason", mr.StopReason),
	)
	return mr.Content[0].Text, resp.StatusCode, nil
}

func (c *Client) observe(status int, d time.Duration) {
	if c.metrics == nil {
		return
	}
	c.metrics.RecordProviderCall(strconv.Itoa(status), d)
}

// classify maps unreachable-host failures to a NetworkError and leaves
// everything else wrapped as is.
func classify(err error) error {
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return &analysis.NetworkError{Code: analysis.CodeNotFound, Err: err}
	}
	if errors.Is(err, syscall.ECONNREFUSED) {
		return &analysis.NetworkError{Code: analysis.CodeConnectionRefused, Err: err}
	}
	return fmt.Errorf("http request failed: %w", err)
}
