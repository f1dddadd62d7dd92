// internal/narration/sampling.go
package narration

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"kids-meal-log/internal/config"
	"kids-meal-log/internal/logging"
	"kids-meal-log/internal/metrics"
	"kids-meal-log/internal/recommend"
)

// ErrNotConfigured is returned when no API credential is available.
var ErrNotConfigured = errors.New("text-completion service unavailable: OPENAI_API_KEY is not set")

// Summarizer turns a ranked food list into one recommending sentence.
type Summarizer interface {
	Summarize(ctx context.Context, foods []string, mealType string) (string, error)
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type completionRequest struct {
	Model       string    `json:"model"`
	Messages    []message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens"`
}

type completionResponse struct {
	Choices []struct {
		Message message `json:"message"`
	} `json:"choices"`
}

// SamplingClient calls an OpenAI-compatible chat completions endpoint. One
// request per Summarize call; no retries.
type SamplingClient struct {
	httpClient  *http.Client
	baseURL     string
	apiKey      string
	model       string
	temperature float64
	maxTokens   int
}

func NewSamplingClient(cfg config.NarrationConfig) *SamplingClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &SamplingClient{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:      cfg.APIKey,
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
	}
}

// Configured reports whether a credential is present.
func (s *SamplingClient) Configured() bool {
	return s.apiKey != ""
}

func (s *SamplingClient) Summarize(ctx context.Context, foods []string, mealType string) (string, error) {
	if !s.Configured() {
		return "", ErrNotConfigured
	}

	req := &completionRequest{
		Model: s.model,
		Messages: []message{
			{Role: "user", Content: BuildPrompt(foods, mealType)},
		},
		Temperature: s.temperature,
		MaxTokens:   s.maxTokens,
	}

	start := time.Now()
	text, err := s.callCompletion(ctx, req)
	metrics.ObserveNarration(time.Since(start), err)
	if err != nil {
		return "", fmt.Errorf("failed to get AI completion: %w", err)
	}

	logging.Ctx(ctx).Debug().
		Str("meal_type", mealType).
		Int("foods", len(foods)).
		Dur("took", time.Since(start)).
		Msg("Narration completed")

	return text, nil
}

// BuildPrompt renders the single user message sent to the model.
func BuildPrompt(foods []string, mealType string) string {
	return fmt.Sprintf(`You are a helpful assistant.

Return ONE short sentence recommending these foods for a meal.

Meal type: %s
Foods: %s

Rules:
- Answer with ONE sentence only.
- Do not add extra explanation.`, mealType, recommend.JoinFoods(foods))
}

func (s *SamplingClient) callCompletion(ctx context.Context, completion *completionRequest) (string, error) {
	url := s.baseURL + "/chat/completions"

	jsonData, err := json.Marshal(completion)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create HTTP request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if err != nil {
			return "", fmt.Errorf("request failed with status %d and couldn't read body: %v", resp.StatusCode, err)
		}
		return "", fmt.Errorf("request failed with status %d: %s", resp.StatusCode, strings.TrimSpace(string(bodyBytes)))
	}

	var out completionResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	if len(out.Choices) == 0 {
		return "", errors.New("unexpected response format: no choices")
	}

	return strings.TrimSpace(out.Choices[0].Message.Content), nil
}

// Stub is a deterministic Summarizer for tests and offline runs.
type Stub struct {
	mu    sync.Mutex
	Text  string
	Err   error
	calls int
	last  []string
}

func (s *Stub) Summarize(_ context.Context, foods []string, mealType string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	s.last = append([]string(nil), foods...)
	if s.Err != nil {
		return "", s.Err
	}
	if s.Text != "" {
		return s.Text, nil
	}
	return fmt.Sprintf("Try %s for %s.", recommend.JoinFoods(foods), strings.ToLower(mealType)), nil
}

func (s *Stub) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func (s *Stub) LastFoods() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}
