// Package video turns highlight links attached to match stats into something the board can embed.
package video

import (
	"net/url"
	"strings"
)

type EmbedType int

const (
	EmbedTypeNone EmbedType = iota
	EmbedTypeYouTube
	EmbedTypeTwitchClip
	EmbedTypeVideo
	EmbedTypeLink
)

type EmbedInfo struct {
	Type EmbedType
	URL  string
}

// Twitch refuses to be framed unless the embedding host is named in the URL
const twitchParent = "localhost"

func GetEmbedInfo(link string) EmbedInfo {
	link = strings.TrimSpace(link)
	if link == "" {
		return EmbedInfo{Type: EmbedTypeNone}
	}

	u, err := url.Parse(link)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return EmbedInfo{Type: EmbedTypeNone}
	}
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")

	switch host {
	case "youtube.com", "m.youtube.com":
		if strings.HasPrefix(u.Path, "/embed/") {
			return EmbedInfo{Type: EmbedTypeYouTube, URL: link}
		}
		if id := u.Query().Get("v"); id != "" {
			return youtube(id)
		}
		if id, ok := strings.CutPrefix(u.Path, "/shorts/"); ok && id != "" {
			return youtube(id)
		}
	case "youtu.be":
		if id := strings.Trim(u.Path, "/"); id != "" {
			return youtube(id)
		}
	case "clips.twitch.tv":
		if slug := strings.Trim(u.Path, "/"); slug != "" {
			return twitchClip(slug)
		}
	case "twitch.tv":
		// twitch.tv/<channel>/clip/<slug>
		parts := strings.Split(strings.Trim(u.Path, "/"), "/")
		if len(parts) == 3 && parts[1] == "clip" {
			return twitchClip(parts[2])
		}
	}

	lower := strings.ToLower(u.Path)
	for _, ext := range []string{".mp4", ".webm", ".ogg", ".mov"} {
		if strings.HasSuffix(lower, ext) {
			return EmbedInfo{Type: EmbedTypeVideo, URL: link}
		}
	}

	// Anything else is shown as a plain link rather than framed
	return EmbedInfo{Type: EmbedTypeLink, URL: link}
}

// HighlightEmbeds resolves every link and drops the ones that are not usable at all.
func HighlightEmbeds(links []string) []EmbedInfo {
	embeds := make([]EmbedInfo, 0, len(links))
	for _, link := range links {
		if info := GetEmbedInfo(link); info.Type != EmbedTypeNone {
			embeds = append(embeds, info)
		}
	}
	return embeds
}

func youtube(id string) EmbedInfo {
	return EmbedInfo{Type: EmbedTypeYouTube, URL: "https://www.youtube.com/embed/" + url.PathEscape(id)}
}

func twitchClip(slug string) EmbedInfo {
	return EmbedInfo{
		Type: EmbedTypeTwitchClip,
		URL:  "https://clips.twitch.tv/embed?clip=" + url.QueryEscape(slug) + "&parent=" + twitchParent,
	}
}
