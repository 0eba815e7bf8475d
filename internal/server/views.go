package server

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/tkilaker/curator/internal/classifier"
	"github.com/tkilaker/curator/internal/database"
	"github.com/tkilaker/curator/internal/newsletter"
)

// dashboardData is what the dashboard page renders
type dashboardData struct {
	Articles []*database.Article
	MinScore int
	Archived bool
	ByScore  bool
	Category string
	Now      time.Time
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	filter := listFilter(r)
	data := dashboardData{
		MinScore: *filter.MinScore,
		Archived: q.Get("view") == "archived",
		ByScore:  q.Get("sort") == "score",
		Category: filter.Category,
		Now:      time.Now(),
	}
	filter.ReadOnly = data.Archived
	filter.SortByScore = data.ByScore
	filter.Limit = 1000
	if data.Archived {
		filter.Limit = 100
	}

	articles, err := s.db.ListArticles(ctx, filter)
	if err != nil {
		http.Error(w, fmt.Sprintf("Failed to fetch articles: %v", err), http.StatusInternalServerError)
		return
	}
	data.Articles = articles

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := DashboardPage(data).Render(ctx, w); err != nil {
		s.logger.Error("failed to render dashboard", "error", err)
	}
}

func (s *Server) handleAdmin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	feeds, err := s.registry.ListFeeds(ctx)
	if err != nil {
		http.Error(w, fmt.Sprintf("Failed to fetch feeds: %v", err), http.StatusInternalServerError)
		return
	}
	keywords, err := s.registry.ListKeywords(ctx)
	if err != nil {
		http.Error(w, fmt.Sprintf("Failed to fetch blacklist: %v", err), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := AdminPage(feeds, keywords).Render(ctx, w); err != nil {
		s.logger.Error("failed to render admin page", "error", err)
	}
}

// handleSharePage shows the share form, prefilled from the query string
// a share target or bookmarklet sends.
func (s *Server) handleSharePage(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	link := strings.TrimSpace(q.Get("url"))
	if link == "" {
		link = strings.TrimSpace(q.Get("text"))
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := SharePage(link, strings.TrimSpace(q.Get("title"))).Render(r.Context(), w); err != nil {
		s.logger.Error("failed to render share page", "error", err)
	}
}

// Title is the page heading for the current view
func (d dashboardData) Title() string {
	if d.Archived {
		return "Archives"
	}
	return "Articles"
}

// articleGroup is a run of articles shown under one heading
type articleGroup struct {
	Heading  string
	Articles []*database.Article
}

// Groups splits the articles by day. Sorting by score keeps a single
// untitled group.
func (d dashboardData) Groups() []articleGroup {
	if d.ByScore {
		return []articleGroup{{Articles: d.Articles}}
	}
	var groups []articleGroup
	for _, a := range d.Articles {
		h := dayHeading(a.CreatedAt, d.Now)
		if n := len(groups); n > 0 && groups[n-1].Heading == h {
			groups[n-1].Articles = append(groups[n-1].Articles, a)
			continue
		}
		groups = append(groups, articleGroup{Heading: h, Articles: []*database.Article{a}})
	}
	return groups
}

func rowID(kind string, id int64) string {
	return kind + "-" + strconv.FormatInt(id, 10)
}

func articleAction(id int64, action string) string {
	return "/api/articles/" + strconv.FormatInt(id, 10) + "/" + action
}

func scoreLabel(a *database.Article) string {
	if a.RelevanceScore == nil {
		return "–"
	}
	return strconv.Itoa(*a.RelevanceScore)
}

func sourceLabel(a *database.Article) string {
	if a.Source != "" {
		return a.Source
	}
	return newsletter.Domain(a.URL)
}

func summaryText(a *database.Article) string {
	if a.Summary == nil {
		return ""
	}
	return *a.Summary
}

func categoryOf(a *database.Article) string {
	if a.Category == nil {
		return ""
	}
	return *a.Category
}

func accessBadge(status *string) string {
	if status == nil {
		return ""
	}
	switch *status {
	case classifier.AccessPaywall:
		return " 💰"
	case classifier.AccessRegistration:
		return " 📝"
	case classifier.AccessVideo:
		return " 🎥"
	case classifier.AccessAudio:
		return " 🎧"
	}
	return ""
}

var (
	frenchWeekdays = [...]string{"dimanche", "lundi", "mardi", "mercredi", "jeudi", "vendredi", "samedi"}
	frenchMonths   = [...]string{"janvier", "février", "mars", "avril", "mai", "juin", "juillet", "août", "septembre", "octobre", "novembre", "décembre"}
)

// dayHeading labels the day t falls on relative to now, in French
func dayHeading(t, now time.Time) string {
	t = t.In(now.Location())
	y1, m1, d1 := t.Date()
	y2, m2, d2 := now.Date()
	if y1 == y2 && m1 == m2 && d1 == d2 {
		return "Aujourd'hui"
	}
	yy, ym, yd := now.AddDate(0, 0, -1).Date()
	if y1 == yy && m1 == ym && d1 == yd {
		return "Hier"
	}
	return fmt.Sprintf("%s %d %s", frenchWeekdays[t.Weekday()], d1, frenchMonths[m1-1])
}
