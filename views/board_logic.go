package views

import (
	"sort"

	"github.com/AdamBeresnev/arena-hub/internal/bracket"
	"github.com/AdamBeresnev/arena-hub/internal/video"
)

type BoardColumn struct {
	Status  bracket.MatchStatus
	Title   string
	Matches []MatchCard
}

type MatchCard struct {
	Match      bracket.Match
	Highlights []video.EmbedInfo
}

type BoardData struct {
	Columns   []BoardColumn
	Total     int
	Completed int
}

// Live matches first, finished ones last
var boardColumns = []struct {
	status bracket.MatchStatus
	title  string
}{
	{bracket.MatchInProgress, "In progress"},
	{bracket.MatchReady, "Ready"},
	{bracket.MatchPending, "Pending"},
	{bracket.MatchWaiting, "Byes"},
	{bracket.MatchCompleted, "Completed"},
}

// PrepareBoardData groups the matches of an event by status. Empty columns are left out.
func PrepareBoardData(matches []bracket.Match) BoardData {
	byStatus := make(map[bracket.MatchStatus][]MatchCard)
	completed := 0
	for _, m := range matches {
		card := MatchCard{Match: m}
		if m.Stats != nil {
			card.Highlights = video.HighlightEmbeds(m.Stats.Highlights)
		}
		byStatus[m.Status] = append(byStatus[m.Status], card)
		if m.Status == bracket.MatchCompleted {
			completed++
		}
	}

	var columns []BoardColumn
	for _, col := range boardColumns {
		cards := byStatus[col.status]
		if len(cards) == 0 {
			continue
		}
		sortCards(cards)
		columns = append(columns, BoardColumn{Status: col.status, Title: col.title, Matches: cards})
	}

	return BoardData{
		Columns:   columns,
		Total:     len(matches),
		Completed: completed,
	}
}

func sortCards(cards []MatchCard) {
	sort.SliceStable(cards, func(i, j int) bool {
		a, b := cards[i].Match, cards[j].Match
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.MatchOrder < b.MatchOrder
	})
}
