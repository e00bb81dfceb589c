package predict

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/AdamBeresnev/arena-hub/internal/bracket"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	alpha = bracket.TeamSnapshot{RegistrationID: uuid.New(), Name: "Alpha", GameID: "valorant"}
	bravo = bracket.TeamSnapshot{RegistrationID: uuid.New(), Name: "Bravo", GameID: "valorant"}
)

func TestNormalize(t *testing.T) {
	testCases := []struct {
		name       string
		input      *bracket.Prediction
		expected   *bracket.Prediction
		expectFail bool
	}{
		{
			name:     "well formed",
			input:    &bracket.Prediction{Confidence: 72.5, SuggestedWinner: bracket.Team1, Reason: " better aim "},
			expected: &bracket.Prediction{Confidence: 72.5, SuggestedWinner: bracket.Team1, Reason: "better aim"},
		},
		{
			name:     "confidence above range is clamped",
			input:    &bracket.Prediction{Confidence: 140, SuggestedWinner: bracket.Team2, Reason: "x"},
			expected: &bracket.Prediction{Confidence: 100, SuggestedWinner: bracket.Team2, Reason: "x"},
		},
		{
			name:     "negative confidence is clamped",
			input:    &bracket.Prediction{Confidence: -3, SuggestedWinner: bracket.Team2, Reason: "x"},
			expected: &bracket.Prediction{Confidence: 0, SuggestedWinner: bracket.Team2, Reason: "x"},
		},
		{
			name:       "nil prediction",
			input:      nil,
			expectFail: true,
		},
		{
			name:       "unknown side",
			input:      &bracket.Prediction{Confidence: 50, SuggestedWinner: "draw", Reason: "x"},
			expectFail: true,
		},
		{
			name:       "missing reason",
			input:      &bracket.Prediction{Confidence: 50, SuggestedWinner: bracket.Team1, Reason: "  "},
			expectFail: true,
		},
		{
			name:       "NaN confidence",
			input:      &bracket.Prediction{Confidence: math.NaN(), SuggestedWinner: bracket.Team1, Reason: "x"},
			expectFail: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			actual, err := Normalize(tc.input)
			if tc.expectFail {
				assert.ErrorIs(t, err, ErrPredictionUnavailable)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.expected, actual)
		})
	}
}

func TestNew(t *testing.T) {
	p, err := New("none", nil)
	require.NoError(t, err)
	assert.Nil(t, p)

	p, err = New("heuristic", nil)
	require.NoError(t, err)
	assert.IsType(t, &HeuristicPredictor{}, p)

	p, err = New("Ollama", nil)
	require.NoError(t, err)
	assert.IsType(t, &OllamaPredictor{}, p)

	_, err = New("crystal-ball", nil)
	assert.Error(t, err)
}

func TestHeuristicPredictor(t *testing.T) {
	h := NewHeuristicPredictor()
	ctx := context.Background()

	first, err := h.Predict(ctx, alpha, bravo)
	require.NoError(t, err)
	second, err := h.Predict(ctx, alpha, bravo)
	require.NoError(t, err)

	assert.Equal(t, first, second, "same pairing should give the same prediction")
	assert.GreaterOrEqual(t, first.Confidence, 50.0)
	assert.LessOrEqual(t, first.Confidence, 100.0)
	assert.Contains(t, []bracket.Side{bracket.Team1, bracket.Team2}, first.SuggestedWinner)
	assert.Contains(t, first.Reason, "valorant")

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = h.Predict(cancelled, alpha, bravo)
	assert.ErrorIs(t, err, ErrPredictionUnavailable)
}

func newOllamaServer(t *testing.T, handler func(req generateRequest) (int, string)) *OllamaPredictor {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			http.NotFound(w, r)
			return
		}
		var req generateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		status, text := handler(req)
		w.WriteHeader(status)
		if status == http.StatusOK {
			_ = json.NewEncoder(w).Encode(generateResponse{Model: req.Model, Response: text, Done: true})
			return
		}
		_, _ = w.Write([]byte(text))
	}))
	t.Cleanup(server.Close)

	return NewOllamaPredictor(&OllamaConfig{
		BaseURL: server.URL,
		Model:   "test-model",
		Timeout: 5 * time.Second,
	})
}

func TestOllamaPredictor_Predict(t *testing.T) {
	t.Run("parses a wrapped JSON verdict", func(t *testing.T) {
		var seen generateRequest
		p := newOllamaServer(t, func(req generateRequest) (int, string) {
			seen = req
			return http.StatusOK, "Sure!\n```json\n{\"confidence\": 81, \"suggestedWinner\": \"team2\", \"reason\": \"Bravo won the last scrim\"}\n```"
		})

		prediction, err := p.Predict(context.Background(), alpha, bravo)
		require.NoError(t, err)
		assert.Equal(t, 81.0, prediction.Confidence)
		assert.Equal(t, bracket.Team2, prediction.SuggestedWinner)
		assert.Equal(t, "Bravo won the last scrim", prediction.Reason)

		assert.Equal(t, "test-model", seen.Model)
		assert.Equal(t, "json", seen.Format)
		assert.False(t, seen.Stream)
		assert.Contains(t, seen.Prompt, "team1: Alpha (game: valorant)")
		assert.Contains(t, seen.Prompt, "team2: Bravo (game: valorant)")
	})

	t.Run("accepts a team name as the winner", func(t *testing.T) {
		p := newOllamaServer(t, func(req generateRequest) (int, string) {
			return http.StatusOK, `{"confidence": 55, "suggestedWinner": "alpha", "reason": "coin flip"}`
		})

		prediction, err := p.Predict(context.Background(), alpha, bravo)
		require.NoError(t, err)
		assert.Equal(t, bracket.Team1, prediction.SuggestedWinner)
	})

	t.Run("failure cases", func(t *testing.T) {
		testCases := []struct {
			name   string
			status int
			text   string
		}{
			{name: "server error", status: http.StatusInternalServerError, text: "model crashed"},
			{name: "no json", status: http.StatusOK, text: "I think Alpha wins"},
			{name: "broken json", status: http.StatusOK, text: `{"confidence": "high"}`},
			{name: "unknown winner", status: http.StatusOK, text: `{"confidence": 60, "suggestedWinner": "Charlie", "reason": "?"}`},
			{name: "missing reason", status: http.StatusOK, text: `{"confidence": 60, "suggestedWinner": "team1"}`},
		}

		for _, tc := range testCases {
			t.Run(tc.name, func(t *testing.T) {
				p := newOllamaServer(t, func(req generateRequest) (int, string) {
					return tc.status, tc.text
				})
				_, err := p.Predict(context.Background(), alpha, bravo)
				assert.ErrorIs(t, err, ErrPredictionUnavailable)
			})
		}
	})

	t.Run("unreachable server", func(t *testing.T) {
		p := NewOllamaPredictor(&OllamaConfig{BaseURL: "http://127.0.0.1:1", Timeout: time.Second})
		_, err := p.Predict(context.Background(), alpha, bravo)
		assert.ErrorIs(t, err, ErrPredictionUnavailable)
	})
}
