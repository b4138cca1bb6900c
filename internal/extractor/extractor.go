package extractor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"jobscout/internal/config"
	"jobscout/internal/metrics"
	"jobscout/internal/models"
)

// ErrRateLimited is the distinguished rate-limit signal from the
// extraction service, as opposed to a generic failure.
var ErrRateLimited = errors.New("extraction service rate limited")

// Client turns normalized email text into job records via an
// OpenAI-compatible chat-completions call. It owns the retry and
// model-fallback policy: a rate limit advances to the next model in the
// configured list immediately; past the last model the index wraps to the
// first and a fixed back-off sleep is taken. The active model index is
// shared across calls, so degradation on one message carries over to the
// next.
type Client struct {
	cfg        *config.ExtractorConfig
	filter     *config.FilterConfig
	httpClient *http.Client
	metrics    *metrics.Metrics

	mu       sync.Mutex
	modelIdx int

	// sleep is swappable so tests can observe back-off without waiting
	sleep func(time.Duration)
}

// chat completions wire types
type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	Temperature    float64         `json:"temperature"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// jobCandidate is the loosely shaped record the model returns; it is
// converted into models.JobRecord at this boundary and nowhere else.
type jobCandidate struct {
	Role        string `json:"role"`
	Company     string `json:"company"`
	Salary      string `json:"salary"`
	Experience  string `json:"experience"`
	Location    string `json:"location"`
	MatchReason string `json:"match_reason"`
	ApplyLink   string `json:"apply_link"`
}

// NewClient creates a new extraction client
func NewClient(cfg *config.ExtractorConfig, filter *config.FilterConfig, m *metrics.Metrics) *Client {
	return &Client{
		cfg:    cfg,
		filter: filter,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		metrics: m,
		sleep:   time.Sleep,
	}
}

// Extract submits the text to the extraction service and returns zero or
// more job records. The input is truncated to the configured character
// budget first. Exhausting the attempt budget is a degrade, not a
// failure: the message is treated as yielding no jobs and a nil slice is
// returned. The only error returned is context cancellation.
func (c *Client) Extract(ctx context.Context, text string) ([]models.JobRecord, error) {
	if len(text) > c.cfg.MaxPromptChars {
		text = text[:c.cfg.MaxPromptChars]
	}
	prompt := c.buildPrompt(text)

	for attempt := 1; attempt <= c.cfg.MaxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		model := c.activeModel()
		jobs, err := c.call(ctx, model, prompt)
		if err == nil {
			return jobs, nil
		}

		if errors.Is(err, ErrRateLimited) {
			c.metrics.RateLimitHits.Inc()
			if c.advanceModel() {
				logrus.Warnf("Rate limited on model %s, falling back to %s", model, c.activeModel())
				continue
			}
			logrus.Warnf("Rate limited on model %s with no fallback left, backing off %v", model, c.cfg.RateLimitBackoff)
			c.sleep(c.cfg.RateLimitBackoff)
			continue
		}

		logrus.Errorf("Extraction attempt %d/%d failed: %v", attempt, c.cfg.MaxAttempts, err)
		c.metrics.ExtractionRetries.Inc()
		c.sleep(c.cfg.RetryDelay)
	}

	logrus.Errorf("Extraction attempts exhausted, treating message as having no jobs")
	return nil, nil
}

// activeModel returns the currently active model identifier
func (c *Client) activeModel() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cfg.Models[c.modelIdx]
}

// advanceModel moves to the next model in the ordered list. It returns
// true when an untried fallback model exists; false when the index
// wrapped back to the first model, meaning the caller must back off.
func (c *Client) advanceModel() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.cfg.Models) == 1 {
		return false
	}
	c.modelIdx++
	if c.modelIdx >= len(c.cfg.Models) {
		c.modelIdx = 0
		return false
	}
	return true
}

// call performs a single chat-completions request against one model
func (c *Client) call(ctx context.Context, model, prompt string) ([]models.JobRecord, error) {
	req := chatRequest{
		Model: model,
		Messages: []chatMessage{
			{Role: "system", Content: "You are a JSON-only extraction API."},
			{Role: "user", Content: prompt},
		},
		Temperature:    c.cfg.Temperature,
		ResponseFormat: &responseFormat{Type: "json_object"},
	}

	reqBody, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.APIBase+"/chat/completions", bytes.NewBuffer(reqBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		io.Copy(io.Discard, resp.Body)
		return nil, ErrRateLimited
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("extraction API error (status %d): %s", resp.StatusCode, string(body))
	}

	var chatResp chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if len(chatResp.Choices) == 0 {
		return nil, fmt.Errorf("no choices in extraction response")
	}

	return parseJobs(chatResp.Choices[0].Message.Content), nil
}

// parseJobs extracts the "jobs" array from the model output. A missing
// or malformed array is zero results, not an error.
func parseJobs(content string) []models.JobRecord {
	var payload struct {
		Jobs []jobCandidate `json:"jobs"`
	}
	if err := json.Unmarshal([]byte(extractJSON(content)), &payload); err != nil {
		logrus.Warnf("Extraction response was not valid JSON, treating as empty: %v", err)
		return nil
	}

	records := make([]models.JobRecord, 0, len(payload.Jobs))
	for _, job := range payload.Jobs {
		records = append(records, models.JobRecord{
			Role:        job.Role,
			Company:     job.Company,
			Salary:      job.Salary,
			Experience:  job.Experience,
			Location:    job.Location,
			MatchReason: job.MatchReason,
			ApplyLink:   job.ApplyLink,
		})
	}
	return records
}

// extractJSON trims any prose the model wrapped around the JSON object
func extractJSON(text string) string {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end == -1 || end <= start {
		return text
	}
	return text[start : end+1]
}
