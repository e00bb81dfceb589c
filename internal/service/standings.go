package service

import (
	"sort"

	"github.com/AdamBeresnev/arena-hub/internal/bracket"
	"github.com/google/uuid"
)

// computeStandings expects matches newest first, so the first name seen for a team is its latest one.
// A bye counts as a bye, and also as a win once it has been declared.
func computeStandings(matches []bracket.Match) []bracket.Standing {
	byTeam := make(map[uuid.UUID]*bracket.Standing)
	var order []uuid.UUID

	get := func(team bracket.TeamSnapshot) *bracket.Standing {
		st, ok := byTeam[team.RegistrationID]
		if !ok {
			st = &bracket.Standing{RegistrationID: team.RegistrationID, Name: team.Name}
			byTeam[team.RegistrationID] = st
			order = append(order, team.RegistrationID)
		}
		return st
	}

	for i := range matches {
		m := &matches[i]
		team1 := get(m.Team1)

		if m.IsBye() {
			team1.Byes++
			if m.IsWinner(bracket.Team1) {
				team1.Wins++
			}
			continue
		}

		team2 := get(*m.Team2)
		if m.Status != bracket.MatchCompleted {
			continue
		}

		team1.Played++
		team2.Played++
		if m.IsWinner(bracket.Team1) {
			team1.Wins++
			team2.Losses++
		} else if m.IsWinner(bracket.Team2) {
			team2.Wins++
			team1.Losses++
		}
	}

	standings := make([]bracket.Standing, 0, len(order))
	for _, id := range order {
		standings = append(standings, *byTeam[id])
	}
	sort.SliceStable(standings, func(i, j int) bool {
		a, b := standings[i], standings[j]
		if a.Wins != b.Wins {
			return a.Wins > b.Wins
		}
		if a.Losses != b.Losses {
			return a.Losses < b.Losses
		}
		return a.Name < b.Name
	})
	return standings
}
