// Package predict produces advisory match predictions. Nothing downstream depends on a
// prediction being right, it only has to be well formed.
package predict

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/AdamBeresnev/arena-hub/internal/bracket"
)

var ErrPredictionUnavailable = errors.New("prediction unavailable")

type Predictor interface {
	Predict(ctx context.Context, team1, team2 bracket.TeamSnapshot) (*bracket.Prediction, error)
}

const (
	BackendNone      = "none"
	BackendHeuristic = "heuristic"
	BackendOllama    = "ollama"
)

// New builds the predictor for a backend name. "none" returns a nil Predictor,
// which the matchmaker treats as "skip predictions".
func New(backend string, ollama *OllamaConfig) (Predictor, error) {
	switch strings.ToLower(backend) {
	case "", BackendNone:
		return nil, nil
	case BackendHeuristic:
		return NewHeuristicPredictor(), nil
	case BackendOllama:
		return NewOllamaPredictor(ollama), nil
	}
	return nil, fmt.Errorf("unknown predictor backend %q", backend)
}

// Normalize checks the shape of a prediction and clamps the confidence into 0-100.
func Normalize(p *bracket.Prediction) (*bracket.Prediction, error) {
	if p == nil {
		return nil, fmt.Errorf("%w: empty prediction", ErrPredictionUnavailable)
	}
	if _, err := bracket.ParseSide(string(p.SuggestedWinner)); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPredictionUnavailable, err)
	}
	if math.IsNaN(p.Confidence) || math.IsInf(p.Confidence, 0) {
		return nil, fmt.Errorf("%w: confidence is not a number", ErrPredictionUnavailable)
	}
	reason := strings.TrimSpace(p.Reason)
	if reason == "" {
		return nil, fmt.Errorf("%w: missing reason", ErrPredictionUnavailable)
	}

	return &bracket.Prediction{
		Confidence:      math.Min(100, math.Max(0, p.Confidence)),
		SuggestedWinner: p.SuggestedWinner,
		Reason:          reason,
	}, nil
}
