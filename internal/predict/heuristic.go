package predict

import (
	"context"
	"fmt"
	"hash/fnv"
	"strings"

	"github.com/AdamBeresnev/arena-hub/internal/bracket"
)

// HeuristicPredictor is a rule based stand-in for the language model. The same
// two teams always get the same prediction.
type HeuristicPredictor struct{}

func NewHeuristicPredictor() *HeuristicPredictor {
	return &HeuristicPredictor{}
}

func (h *HeuristicPredictor) Predict(ctx context.Context, team1, team2 bracket.TeamSnapshot) (*bracket.Prediction, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPredictionUnavailable, err)
	}

	score1 := teamScore(team1)
	score2 := teamScore(team2)

	winner, favourite := bracket.Team1, team1
	if score2 > score1 {
		winner, favourite = bracket.Team2, team2
	}

	// 50 for a coin flip, up to 95 for a lopsided pairing
	gap := score1 - score2
	if gap < 0 {
		gap = -gap
	}
	confidence := 50 + float64(gap%46)

	return Normalize(&bracket.Prediction{
		Confidence:      confidence,
		SuggestedWinner: winner,
		Reason:          fmt.Sprintf("%s rates higher on the seeding heuristic for %s", favourite.Name, gameLabel(team1, team2)),
	})
}

func teamScore(team bracket.TeamSnapshot) int {
	h := fnv.New32a()
	h.Write([]byte(strings.ToLower(team.Name)))
	h.Write([]byte{0})
	h.Write([]byte(strings.ToLower(team.GameID)))
	return int(h.Sum32() % 1000)
}

func gameLabel(team1, team2 bracket.TeamSnapshot) string {
	if team1.GameID != "" && team1.GameID == team2.GameID {
		return team1.GameID
	}
	return "this pairing"
}
