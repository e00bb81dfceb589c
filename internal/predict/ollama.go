package predict

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/AdamBeresnev/arena-hub/internal/bracket"
	"golang.org/x/time/rate"
)

// OllamaConfig configures the Ollama backed predictor.
type OllamaConfig struct {
	// BaseURL is the Ollama API endpoint.
	BaseURL string

	// Model is the model name to use.
	Model string

	// Timeout bounds a single generate request.
	Timeout time.Duration

	// RequestsPerSecond caps how fast predictions are requested, zero means unlimited.
	RequestsPerSecond float64

	// Temperature is passed through to the model.
	Temperature float64
}

func DefaultOllamaConfig() *OllamaConfig {
	return &OllamaConfig{
		BaseURL:           "http://localhost:11434",
		Model:             "qwen3:8b",
		Timeout:           60 * time.Second,
		RequestsPerSecond: 2,
		Temperature:       0.4,
	}
}

type generateRequest struct {
	Model   string           `json:"model"`
	System  string           `json:"system,omitempty"`
	Prompt  string           `json:"prompt"`
	Format  string           `json:"format,omitempty"`
	Stream  bool             `json:"stream"`
	Options *generateOptions `json:"options,omitempty"`
}

type generateOptions struct {
	Temperature float64 `json:"temperature,omitempty"`
}

type generateResponse struct {
	Model    string `json:"model"`
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

// modelVerdict is what the model is asked to answer with.
type modelVerdict struct {
	Confidence      float64 `json:"confidence"`
	SuggestedWinner string  `json:"suggestedWinner"`
	Reason          string  `json:"reason"`
}

const systemPrompt = `You are an esports analyst. Given two teams, estimate who is more likely to win.
Answer with a single JSON object and nothing else:
{"confidence": <number 0-100>, "suggestedWinner": "team1" or "team2", "reason": "<one short sentence>"}`

type OllamaPredictor struct {
	config     *OllamaConfig
	httpClient *http.Client
	limiter    *rate.Limiter
}

func NewOllamaPredictor(config *OllamaConfig) *OllamaPredictor {
	if config == nil {
		config = DefaultOllamaConfig()
	}

	limit := rate.Inf
	if config.RequestsPerSecond > 0 {
		limit = rate.Limit(config.RequestsPerSecond)
	}

	return &OllamaPredictor{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		limiter: rate.NewLimiter(limit, 1),
	}
}

func (p *OllamaPredictor) Predict(ctx context.Context, team1, team2 bracket.TeamSnapshot) (*bracket.Prediction, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: rate limiter: %w", ErrPredictionUnavailable, err)
	}

	text, err := p.generate(ctx, buildPrompt(team1, team2))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPredictionUnavailable, err)
	}

	return parseVerdict(text, team1, team2)
}

func buildPrompt(team1, team2 bracket.TeamSnapshot) string {
	var b strings.Builder
	fmt.Fprintf(&b, "team1: %s (game: %s)\n", team1.Name, orUnknown(team1.GameID))
	fmt.Fprintf(&b, "team2: %s (game: %s)\n", team2.Name, orUnknown(team2.GameID))
	b.WriteString("Who wins?")
	return b.String()
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}

func (p *OllamaPredictor) generate(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(&generateRequest{
		Model:   p.config.Model,
		System:  systemPrompt,
		Prompt:  prompt,
		Format:  "json",
		Stream:  false,
		Options: &generateOptions{Temperature: p.config.Temperature},
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.config.BaseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("generate request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("generate failed with status %d: %s", resp.StatusCode, string(bodyBytes))
	}

	var genResp generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&genResp); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	return genResp.Response, nil
}

// parseVerdict pulls the JSON object out of the model text. Models like to wrap it
// in prose or code fences, so everything outside the outermost braces is dropped.
func parseVerdict(text string, team1, team2 bracket.TeamSnapshot) (*bracket.Prediction, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("%w: no JSON object in model output", ErrPredictionUnavailable)
	}

	var verdict modelVerdict
	if err := json.Unmarshal([]byte(text[start:end+1]), &verdict); err != nil {
		return nil, fmt.Errorf("%w: malformed model output: %w", ErrPredictionUnavailable, err)
	}

	winner, ok := resolveWinner(verdict.SuggestedWinner, team1, team2)
	if !ok {
		return nil, fmt.Errorf("%w: unknown suggested winner %q", ErrPredictionUnavailable, verdict.SuggestedWinner)
	}

	return Normalize(&bracket.Prediction{
		Confidence:      verdict.Confidence,
		SuggestedWinner: winner,
		Reason:          verdict.Reason,
	})
}

// resolveWinner accepts the side names and, as a fallback, the team names themselves.
func resolveWinner(s string, team1, team2 bracket.TeamSnapshot) (bracket.Side, bool) {
	s = strings.TrimSpace(s)
	if side, err := bracket.ParseSide(strings.ToLower(s)); err == nil {
		return side, true
	}
	if team1.Name != team2.Name {
		if strings.EqualFold(s, team1.Name) {
			return bracket.Team1, true
		}
		if strings.EqualFold(s, team2.Name) {
			return bracket.Team2, true
		}
	}
	return "", false
}
