package views

import (
	"context"
	"fmt"
	"io"

	"github.com/AdamBeresnev/arena-hub/internal/bracket"
	"github.com/AdamBeresnev/arena-hub/internal/video"
	"github.com/a-h/templ"
)

// page keeps the first write error so components can write without checking every call.
type page struct {
	w   io.Writer
	err error
}

func (p *page) printf(format string, args ...any) {
	if p.err != nil {
		return
	}
	_, p.err = fmt.Fprintf(p.w, format, args...)
}

func (p *page) render(ctx context.Context, c templ.Component) {
	if p.err != nil {
		return
	}
	p.err = c.Render(ctx, p.w)
}

func esc(s string) string {
	return templ.EscapeString(s)
}

// escURL is esc for href and src values, unsafe schemes are replaced the way templ does.
func escURL(s string) string {
	return esc(string(templ.URL(s)))
}

func Layout(title string, body templ.Component) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		p := &page{w: w}
		p.printf(`<!DOCTYPE html><html lang="en"><head><meta charset="utf-8">`)
		p.printf(`<meta name="viewport" content="width=device-width, initial-scale=1">`)
		p.printf(`<title>%s | Arena Hub</title><link rel="stylesheet" href="/static/style.css"></head><body>`, esc(title))
		p.printf(`<nav><a href="/">Arena Hub</a>`)
		if user := GetUser(ctx); user != nil {
			p.printf(`<span class="user">%s</span>`, esc(user.Username))
			p.printf(`<form method="post" action="/logout"><button type="submit">Log out</button></form>`)
		} else {
			p.printf(`<a href="/login">Log in</a>`)
		}
		p.printf(`</nav><main>`)
		p.render(ctx, body)
		p.printf(`</main></body></html>`)
		return p.err
	})
}

func Index(events []bracket.Event) templ.Component {
	body := templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		p := &page{w: w}
		p.printf(`<h1>Events</h1>`)
		if len(events) == 0 {
			p.printf(`<p class="empty">No events yet.</p>`)
			return p.err
		}
		p.printf(`<ul class="events">`)
		for _, ev := range events {
			p.printf(`<li><a href="/events/%s">%s</a> <span class="game">%s</span></li>`,
				esc(ev.Slug), esc(ev.Name), esc(ev.GameID))
		}
		p.printf(`</ul>`)
		return p.err
	})
	return Layout("Events", body)
}

func LoginPage(providers []string) templ.Component {
	body := templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		p := &page{w: w}
		p.printf(`<h1>Log in</h1><div class="login">`)
		for _, provider := range providers {
			p.printf(`<a class="provider" href="/auth/%s">Continue with %s</a>`, esc(provider), esc(provider))
		}
		p.printf(`<form method="post" action="/auth/guest"><button type="submit">Continue as guest</button></form>`)
		p.printf(`</div>`)
		return p.err
	})
	return Layout("Log in", body)
}

// EventBoard is the match board of one event. It reloads itself whenever the live feed
// reports a newer snapshot.
func EventBoard(event bracket.Event, board BoardData, standings []bracket.Standing) templ.Component {
	body := templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		p := &page{w: w}
		p.printf(`<h1>%s</h1><p class="meta">%s &middot; %d/%d matches completed</p>`,
			esc(event.Name), esc(event.GameID), board.Completed, board.Total)

		if len(board.Columns) == 0 {
			p.printf(`<p class="empty">No matches yet.</p>`)
		}
		p.printf(`<div class="board">`)
		for _, col := range board.Columns {
			p.printf(`<section class="column status-%s"><h2>%s</h2>`, esc(string(col.Status)), esc(col.Title))
			for _, card := range col.Matches {
				p.render(ctx, matchCard(card))
			}
			p.printf(`</section>`)
		}
		p.printf(`</div>`)

		if len(standings) > 0 {
			p.render(ctx, standingsTable(standings))
		}

		p.printf(`<script>(function(){var proto=location.protocol==="https:"?"wss://":"ws://";`)
		p.printf(`var ws=new WebSocket(proto+location.host+"/ws/events/%s/matches");`, esc(event.ID.String()))
		p.printf(`ws.onmessage=function(e){var m=JSON.parse(e.data);if(m.type==="matches:snapshot"&&m.data.seq>1){location.reload();}};`)
		p.printf(`})();</script>`)
		return p.err
	})
	return Layout(event.Name, body)
}

func matchCard(card MatchCard) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		p := &page{w: w}
		m := card.Match
		p.printf(`<article class="match" id="match-%s">`, esc(m.ID.String()))
		p.printf(`<div class="team%s">%s</div>`, sideClass(&m, bracket.Team1), esc(m.Team1.Name))
		if m.IsBye() {
			p.printf(`<div class="team bye">bye</div>`)
		} else {
			p.printf(`<div class="vs">vs</div><div class="team%s">%s</div>`, sideClass(&m, bracket.Team2), esc(m.Team2.Name))
		}

		if pr := m.Prediction; pr != nil {
			if favourite := m.Team(pr.SuggestedWinner); favourite != nil {
				p.printf(`<p class="prediction">%s favoured (%.0f%%): %s</p>`,
					esc(favourite.Name), pr.Confidence, esc(pr.Reason))
			}
		}
		if s := m.Stats; s != nil && s.Score1 != nil && s.Score2 != nil {
			p.printf(`<p class="score">%d : %d</p>`, *s.Score1, *s.Score2)
		}
		for _, h := range card.Highlights {
			switch h.Type {
			case video.EmbedTypeYouTube, video.EmbedTypeTwitchClip:
				p.printf(`<iframe src="%s" allowfullscreen loading="lazy"></iframe>`, escURL(h.URL))
			case video.EmbedTypeVideo:
				p.printf(`<video src="%s" controls preload="metadata"></video>`, escURL(h.URL))
			default:
				p.printf(`<a class="highlight" href="%s" rel="noopener" target="_blank">Highlight</a>`, escURL(h.URL))
			}
		}
		p.printf(`</article>`)
		return p.err
	})
}

func sideClass(m *bracket.Match, side bracket.Side) string {
	switch {
	case m.IsWinner(side):
		return " winner"
	case m.IsLoser(side):
		return " loser"
	}
	return ""
}

func standingsTable(standings []bracket.Standing) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		p := &page{w: w}
		p.printf(`<h2>Standings</h2><table class="standings"><thead><tr>`)
		p.printf(`<th>Team</th><th>Played</th><th>W</th><th>L</th><th>Byes</th></tr></thead><tbody>`)
		for _, st := range standings {
			p.printf(`<tr><td>%s</td><td>%d</td><td>%d</td><td>%d</td><td>%d</td></tr>`,
				esc(st.Name), st.Played, st.Wins, st.Losses, st.Byes)
		}
		p.printf(`</tbody></table>`)
		return p.err
	})
}
