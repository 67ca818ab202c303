// Package api is the HTTP client for the agent API. Every call is a JSON POST
// authenticated with a bearer token supplied by the caller.
package api

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

	"github.com/hairguard/hairguard/internal/models"
)

// Endpoint paths.
const (
	PathAnalyze      = "/api/v1/photos/analyze"
	PathReport       = "/api/v1/reports/generate"
	PathRecommend    = "/api/v1/food-sniper/recommend"
	PathMentalShield = "/api/v1/mental-shield/chat"
)

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return strings.TrimSpace(fmt.Sprintf("%s failed (%d) %s", e.Op, e.StatusCode, e.Body))
}

// Client talks to one agent API base URL.
type Client struct {
	base   string
	http   *http.Client
	logger *zap.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.http = c }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(cl *Client) { cl.logger = l }
}

// New returns a client for base, e.g. "http://localhost:8080".
func New(base string, opts ...Option) *Client {
	c := &Client{
		base:   strings.TrimRight(base, "/"),
		http:   &http.Client{Timeout: 60 * time.Second},
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Base returns the base URL.
func (c *Client) Base() string {
	return c.base
}

// AnalyzePhoto calls POST /api/v1/photos/analyze.
func (c *Client) AnalyzePhoto(ctx context.Context, token string, req models.AnalyzePhotoRequest) (*models.AnalyzePhotoResponse, error) {
	var resp models.AnalyzePhotoResponse
	if err := c.post(ctx, "analyze", PathAnalyze, token, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GenerateReport calls POST /api/v1/reports/generate.
func (c *Client) GenerateReport(ctx context.Context, token string, req models.ReportGenerateRequest) (*models.ReportGenerateResponse, error) {
	var resp models.ReportGenerateResponse
	if err := c.post(ctx, "report generation", PathReport, token, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Recommend calls POST /api/v1/food-sniper/recommend.
func (c *Client) Recommend(ctx context.Context, token string, req models.FoodSniperRequest) (*models.FoodSniperResponse, error) {
	var resp models.FoodSniperResponse
	if err := c.post(ctx, "recommendation", PathRecommend, token, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Chat calls POST /api/v1/mental-shield/chat.
func (c *Client) Chat(ctx context.Context, token string, req models.MentalShieldRequest) (*models.MentalShieldResponse, error) {
	var resp models.MentalShieldResponse
	if err := c.post(ctx, "chat", PathMentalShield, token, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) post(ctx context.Context, op, path, token string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("failed to encode %s request: %w", op, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s request: %w", op, err)
	}
	defer resp.Body.Close()

	c.logger.Debug("agent api call",
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		text, _ := io.ReadAll(resp.Body)
		return &StatusError{Op: op, StatusCode: resp.StatusCode, Body: string(text)}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", op, err)
	}
	return nil
}
