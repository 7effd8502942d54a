// Package render talks to the external service that turns an HTML template
// and its data into a screenshot.
package render

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
)

// ErrEmptyImage is returned when the renderer answers with no image data.
var ErrEmptyImage = errors.New("renderer returned an empty image")

// Viewport is the browser viewport used for the screenshot.
type Viewport struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Request describes one render.
type Request struct {
	TemplatePath string        `json:"template_path"`
	TemplateName string        `json:"template_name"`
	Data         any           `json:"data"`
	Viewport     Viewport      `json:"viewport"`
	BaseURL      string        `json:"base_url"`
	Wait         time.Duration `json:"-"`
}

// Renderer produces a PNG from a template.
type Renderer interface {
	Render(ctx context.Context, req Request) ([]byte, error)
}

type wireRequest struct {
	Request
	WaitMS    int64  `json:"wait_ms"`
	RequestID string `json:"request_id"`
}

// HTTPRenderer posts render requests as JSON and reads the PNG from the
// response body.
type HTTPRenderer struct {
	endpoint   string
	httpClient *http.Client
}

// NewHTTPRenderer creates a renderer client for endpoint.
func NewHTTPRenderer(endpoint string, timeout time.Duration) *HTTPRenderer {
	return &HTTPRenderer{
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Render implements Renderer.
func (r *HTTPRenderer) Render(ctx context.Context, req Request) ([]byte, error) {
	wire := wireRequest{
		Request:   req,
		WaitMS:    req.Wait.Milliseconds(),
		RequestID: uuid.NewString(),
	}
	body, err := json.Marshal(wire)
	if err != nil {
		return nil, fmt.Errorf("failed to encode render request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build render request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "image/png")
	httpReq.Header.Set("X-Request-ID", wire.RequestID)

	slog.Debug("Rendering template",
		"template", req.TemplateName,
		"request_id", wire.RequestID,
		"viewport_width", req.Viewport.Width,
		"viewport_height", req.Viewport.Height)

	resp, err := r.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("render request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read rendered image: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("renderer returned HTTP %d: %s", resp.StatusCode, excerpt(data))
	}
	if len(data) == 0 {
		return nil, ErrEmptyImage
	}
	return data, nil
}

func excerpt(b []byte) string {
	const max = 200
	s := strings.TrimSpace(string(b))
	if len(s) > max {
		return s[:max] + "..."
	}
	return s
}
