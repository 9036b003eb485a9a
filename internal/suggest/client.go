package suggest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sentilabel/sentilabel-server/internal/ratelimit"
)

const (
	defaultTimeout = 10 * time.Second
	defaultRPS     = 5.0
	defaultBurst   = 5

	limiterKey = "model"
)

var (
	// ErrServer is returned for 5xx responses.
	ErrServer = errors.New("sentiment service error")
	// ErrBadResponse is returned when the response cannot be used.
	ErrBadResponse = errors.New("malformed sentiment response")
)

// ClientConfig configures the remote model client.
type ClientConfig struct {
	BaseURL string
	Timeout time.Duration
	RPS     float64
}

// Client calls a remote sentiment model over HTTP.
type Client struct {
	http    *http.Client
	baseURL string
	limiter *ratelimit.KeyedRateLimiter
	logger  *slog.Logger
}

// NewClient creates a rate-limited model client.
func NewClient(cfg ClientConfig, logger *slog.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	rps := cfg.RPS
	if rps <= 0 {
		rps = defaultRPS
	}
	return &Client{
		http:    &http.Client{Timeout: timeout},
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		limiter: ratelimit.New(rps, defaultBurst),
		logger:  logger,
	}
}

// Close releases resources held by the client.
func (c *Client) Close() {
	c.limiter.Stop()
}

type analyzeRequest struct {
	Text string `json:"text"`
}

type analyzeResponse struct {
	Label         string  `json:"label"`
	Confidence    float64 `json:"confidence"`
	OriginalLabel string  `json:"original_label"`
	Error         string  `json:"error"`
}

// Analyze posts text to the model's /analyze endpoint.
func (c *Client) Analyze(ctx context.Context, text string) (string, float64, error) {
	if err := c.limiter.Wait(ctx, limiterKey); err != nil {
		return "", 0, fmt.Errorf("rate limit wait: %w", err)
	}

	body, err := json.Marshal(analyzeRequest{Text: text})
	if err != nil {
		return "", 0, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/analyze", bytes.NewReader(body))
	if err != nil {
		return "", 0, fmt.Errorf("create request: %w", err)
	}

	requestID := uuid.New().String()
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", requestID)

	c.logger.Debug("sentiment request", "request_id", requestID, "chars", len(text))

	resp, err := c.http.Do(req)
	if err != nil {
		return "", 0, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", 0, fmt.Errorf("read response: %w", err)
	}

	switch {
	case resp.StatusCode >= 500:
		return "", 0, ErrServer
	case resp.StatusCode != http.StatusOK:
		return "", 0, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(raw))
	}

	var out analyzeResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", 0, fmt.Errorf("%w: %v", ErrBadResponse, err)
	}

	label := out.OriginalLabel
	if label == "" {
		label = modelLabelFor(out.Label)
	}
	if label == "" {
		return "", 0, ErrBadResponse
	}
	return label, out.Confidence, nil
}

// modelLabelFor maps a plain label name back to the model label.
func modelLabelFor(name string) string {
	switch strings.ToLower(name) {
	case "positive":
		return LabelPositive
	case "neutral":
		return LabelNeutral
	case "negative":
		return LabelNegative
	default:
		return ""
	}
}
