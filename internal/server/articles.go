package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/tkilaker/curator/internal/classifier"
	"github.com/tkilaker/curator/internal/database"
	"github.com/tkilaker/curator/internal/newsletter"
)

const defaultMinScore = 5

// articleResponse is an article plus its display domain
type articleResponse struct {
	*database.Article
	Domain string `json:"domain"`
}

// listFilter reads the minScore/includeRead/category query parameters.
// An unparsable minScore falls back to the default.
func listFilter(r *http.Request) database.ArticleFilter {
	q := r.URL.Query()

	minScore := defaultMinScore
	if v := q.Get("minScore"); v != "" {
		if n, err := strconv.ParseFloat(v, 64); err == nil {
			minScore = classifier.ClampScore(n)
		}
	}

	return database.ArticleFilter{
		MinScore:    &minScore,
		IncludeRead: q.Get("includeRead") == "true",
		Category:    strings.TrimSpace(q.Get("category")),
	}
}

// handleListArticles returns articles at or above minScore; unscored
// articles are always included.
func (s *Server) handleListArticles(w http.ResponseWriter, r *http.Request) {
	articles, err := s.db.ListArticles(r.Context(), listFilter(r))
	if err != nil {
		s.logger.Error("failed to list articles", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to fetch articles")
		return
	}

	data := make([]articleResponse, 0, len(articles))
	for _, a := range articles {
		data = append(data, articleResponse{Article: a, Domain: newsletter.Domain(a.URL)})
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": data})
}

func (s *Server) handleMarkRead(w http.ResponseWriter, r *http.Request) {
	s.setReadState(w, r, true)
}

func (s *Server) handleMarkUnread(w http.ResponseWriter, r *http.Request) {
	s.setReadState(w, r, false)
}

func (s *Server) setReadState(w http.ResponseWriter, r *http.Request, isRead bool) {
	id, ok := parseID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid id")
		return
	}

	n, err := s.db.SetReadState(r.Context(), []int64{id}, isRead)
	if err != nil {
		s.logger.Error("failed to set read state", "article_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to update read state")
		return
	}
	if n == 0 {
		writeError(w, http.StatusNotFound, "Not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "id": id, "is_read": isRead})
}

type bulkReadRequest struct {
	IDs    []int64 `json:"ids"`
	IsRead *bool   `json:"is_read"`
}

func (s *Server) handleMarkReadBulk(w http.ResponseWriter, r *http.Request) {
	var req bulkReadRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	if len(req.IDs) == 0 {
		writeError(w, http.StatusBadRequest, "No ids provided")
		return
	}

	isRead := true
	if req.IsRead != nil {
		isRead = *req.IsRead
	}

	n, err := s.db.SetReadState(r.Context(), req.IDs, isRead)
	if err != nil {
		s.logger.Error("failed to set read state (bulk)", "count", len(req.IDs), "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to mark articles as read")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "updated": n})
}

// handleSetCategory applies a manual category correction
func (s *Server) handleSetCategory(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid id")
		return
	}
	fields, err := readFields(w, r, "category")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	category, ok := classifier.MatchCategory(fields["category"])
	if !ok {
		writeError(w, http.StatusBadRequest, "Unknown category")
		return
	}

	err = s.db.UpdateArticleCategory(r.Context(), id, category)
	if errors.Is(err, database.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Not found")
		return
	}
	if err != nil {
		s.logger.Error("failed to update category", "article_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to update category")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "id": id, "category": category})
}

// handleNewsletter renders the selected articles (ids=1,2,3 or repeated ids)
// in the order given, or the filtered list when no ids are passed.
func (s *Server) handleNewsletter(w http.ResponseWriter, r *http.Request) {
	ids, err := parseIDList(r.URL.Query()["ids"])
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	filter := listFilter(r)
	if len(ids) > 0 {
		filter = database.ArticleFilter{IDs: ids, IncludeRead: true}
	}

	articles, err := s.db.ListArticles(r.Context(), filter)
	if err != nil {
		s.logger.Error("failed to load newsletter articles", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to fetch articles")
		return
	}
	if len(ids) > 0 {
		articles = orderByIDs(articles, ids)
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(newsletter.Format(articles)))
}

func parseIDList(values []string) ([]int64, error) {
	var ids []int64
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			id, err := strconv.ParseInt(part, 10, 64)
			if err != nil || id <= 0 {
				return nil, fmt.Errorf("invalid id %q", part)
			}
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func orderByIDs(articles []*database.Article, ids []int64) []*database.Article {
	byID := make(map[int64]*database.Article, len(articles))
	for _, a := range articles {
		byID[a.ID] = a
	}
	out := make([]*database.Article, 0, len(articles))
	seen := make(map[int64]bool, len(ids))
	for _, id := range ids {
		if a, ok := byID[id]; ok && !seen[id] {
			out = append(out, a)
			seen[id] = true
		}
	}
	return out
}
