// Package textgen talks to the remote practice-text generator.
package textgen

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/verte-zerg/typebook/internal/model"
)

const (
	// MaxProblemChars caps the characters sent per request.
	MaxProblemChars = 8
	// MaxSnippet caps the snippet length in runes.
	MaxSnippet = 500
	// DailyQuota is the number of generations per identity per calendar day.
	DailyQuota = 5
)

// Request asks for practice text that exercises the problem characters.
type Request struct {
	ProblemChars []string `json:"problemChars"`
	BookTitle    string   `json:"bookTitle"`
	ChapterTitle string   `json:"chapterTitle"`
	TextSnippet  string   `json:"textSnippet"`
}

// Response carries generated text and the identity's remaining allowance.
type Response struct {
	Text      string `json:"text"`
	Remaining int    `json:"remaining"`
}

// Normalize enforces the request limits.
func (r Request) Normalize() Request {
	if len(r.ProblemChars) > MaxProblemChars {
		r.ProblemChars = r.ProblemChars[:MaxProblemChars]
	}
	if runes := []rune(r.TextSnippet); len(runes) > MaxSnippet {
		r.TextSnippet = string(runes[:MaxSnippet])
	}
	return r
}

// Client is an HTTP client for the generation endpoint.
type Client struct {
	URL    string
	Token  string
	client *http.Client
}

// NewClient creates a client posting to url.
func NewClient(url, token string) *Client {
	return &Client{
		URL:    url,
		Token:  token,
		client: &http.Client{Timeout: 60 * time.Second},
	}
}

// Generate sends one request to the endpoint.
func (c *Client) Generate(ctx context.Context, req Request) (Response, error) {
	body, err := json.Marshal(req.Normalize())
	if err != nil {
		return Response{}, fmt.Errorf("failed to marshal request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL, bytes.NewReader(body))
	if err != nil {
		return Response{}, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.Token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.Token)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return Response{}, fmt.Errorf("failed to send request: %w", err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			// Best-effort close.
			_ = cerr
		}
	}()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return Response{}, fmt.Errorf("generator refused request: %w", model.ErrRateLimited)
	case resp.StatusCode != http.StatusOK:
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return Response{}, fmt.Errorf("bad status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var out Response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Response{}, fmt.Errorf("failed to decode response: %w", err)
	}
	if strings.TrimSpace(out.Text) == "" {
		return Response{}, fmt.Errorf("generator returned no text")
	}
	return out, nil
}
