// Package newsletter renders articles as a pasteable newsletter snippet.
package newsletter

import (
	"net/url"
	"strings"

	"github.com/tkilaker/curator/internal/database"
)

// Format renders one line per article, separated by a blank line:
//
//	{title} - [{source or domain}]({url}){emoji}
func Format(articles []*database.Article) string {
	lines := make([]string, 0, len(articles))
	for _, a := range articles {
		lines = append(lines, Line(a))
	}
	return strings.Join(lines, "\n\n")
}

// Line renders a single article
func Line(a *database.Article) string {
	label := strings.TrimSpace(a.Source)
	if label == "" {
		label = Domain(a.URL)
	}
	return a.Title + " - [" + label + "](" + a.URL + ")" + accessEmoji(a.AccessStatus)
}

func accessEmoji(status *string) string {
	if status == nil {
		return ""
	}
	switch strings.ToLower(*status) {
	case "paywall":
		return " 💰"
	case "registration":
		return " 📝"
	}
	return ""
}

// Domain returns the lower-cased host of raw without a leading "www.",
// or "" when raw is not a URL with a host.
func Domain(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return ""
	}
	host := strings.ToLower(u.Hostname())
	return strings.TrimPrefix(host, "www.")
}
