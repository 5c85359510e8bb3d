package render

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Request is the body of a render call.
type Request struct {
	HTML string `json:"html"`
}

// ErrorBody is returned by a render service when printing fails.
type ErrorBody struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// HTTP delegates rendering to a remote service.
type HTTP struct {
	url    string
	client *http.Client
}

// NewHTTP returns a backend posting to url. Each call is bounded by timeout.
func NewHTTP(url string, timeout time.Duration) *HTTP {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &HTTP{url: url, client: &http.Client{Timeout: timeout}}
}

// Close releases idle connections.
func (h *HTTP) Close() error {
	h.client.CloseIdleConnections()
	return nil
}

// Render posts doc and returns the PDF in the response body.
func (h *HTTP) Render(ctx context.Context, doc string) ([]byte, error) {
	body, err := json.Marshal(Request{HTML: doc})
	if err != nil {
		return nil, fmt.Errorf("encode render request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build render request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/pdf")

	resp, err := h.client.Do(req)
	if err != nil {
		var netErr interface{ Timeout() bool }
		if errors.As(err, &netErr) && netErr.Timeout() && ctx.Err() == nil {
			return nil, fmt.Errorf("render service: %w", context.DeadlineExceeded)
		}
		return nil, fmt.Errorf("render service: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read render response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var e ErrorBody
		if json.Unmarshal(data, &e) == nil && e.Error != "" {
			if e.Details != "" {
				return nil, fmt.Errorf("render service returned %d: %s: %s", resp.StatusCode, e.Error, e.Details)
			}
			return nil, fmt.Errorf("render service returned %d: %s", resp.StatusCode, e.Error)
		}
		return nil, fmt.Errorf("render service returned %d", resp.StatusCode)
	}
	return data, nil
}
