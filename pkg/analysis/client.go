package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"

	"github.com/Amr-Mustafa/deutsch-spectrum/pkg/token"
)

// maxErrorBody bounds how much of an error response is read back into the
// error message.
const maxErrorBody = 4 << 10

// Client speaks the analyzer service's JSON API.
type Client struct {
	base string
	http *http.Client
}

// NewClient builds a client for the analyzer at base, e.g.
// "http://localhost:8000". A nil httpClient gets a 30 second timeout client.
func NewClient(base string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		base: strings.TrimRight(base, "/"),
		http: httpClient,
	}
}

type analyzeRequest struct {
	Text           string `json:"text"`
	TargetWord     string `json:"target_word"`
	TargetPosition int    `json:"target_position"`
}

type analyzeResponse struct {
	Tokens token.Analysis `json:"tokens"`
}

// Analyze asks the service for the token analysis of text.
func (c *Client) Analyze(ctx context.Context, text, targetWord string, targetPosition int) (token.Analysis, error) {
	payload, err := json.Marshal(analyzeRequest{
		Text:           text,
		TargetWord:     targetWord,
		TargetPosition: targetPosition,
	})
	if err != nil {
		return nil, errors.Errorf("encoding analyze request: %w", err)
	}

	url := c.base + "/api/v1/analyze"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, errors.Errorf("building analyze request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.Errorf("calling analyzer: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, errors.Errorf("analyzer returned %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}

	var decoded analyzeResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, errors.Errorf("decoding analyze response: %w", err)
	}

	zerolog.Ctx(ctx).Debug().
		Int("tokens", len(decoded.Tokens)).
		Dur("took", time.Since(start)).
		Msg("analyzed sentence")
	return decoded.Tokens, nil
}

// Health is the analyzer's self-report.
type Health struct {
	Status      string `json:"status"`
	ModelLoaded bool   `json:"model_loaded"`
}

// Health checks the analyzer's health endpoint.
func (c *Client) Health(ctx context.Context) (Health, error) {
	url := c.base + "/api/v1/health"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Health{}, errors.Errorf("building health request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return Health{}, errors.Errorf("calling analyzer health: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return Health{}, errors.Errorf("analyzer health returned %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}

	var health Health
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		return Health{}, errors.Errorf("decoding health response: %w", err)
	}
	return health, nil
}
