package server

import (
	"errors"
	"net/http"

	"github.com/tkilaker/curator/internal/database"
	"github.com/tkilaker/curator/internal/registry"
)

func (s *Server) handleListFeeds(w http.ResponseWriter, r *http.Request) {
	feeds, err := s.registry.ListFeeds(r.Context())
	if err != nil {
		s.logger.Error("failed to list feeds", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to fetch feeds")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": nonNil(feeds)})
}

func (s *Server) handleAddFeed(w http.ResponseWriter, r *http.Request) {
	fields, err := readFields(w, r, "name", "url", "category")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	feed, err := s.registry.AddFeed(r.Context(), fields["name"], fields["url"], fields["category"])
	if errors.Is(err, registry.ErrInvalid) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		s.logger.Error("failed to add feed", "url", fields["url"], "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to add feed")
		return
	}

	if wantsHTML(r) {
		http.Redirect(w, r, "/admin", http.StatusSeeOther)
		return
	}
	writeJSON(w, http.StatusCreated, feed)
}

// handleDeleteFeed deactivates a feed; its articles are kept
func (s *Server) handleDeleteFeed(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid id")
		return
	}

	err := s.registry.DeactivateFeed(r.Context(), id)
	if errors.Is(err, database.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Not found")
		return
	}
	if err != nil {
		s.logger.Error("failed to deactivate feed", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to delete feed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handleListBlacklist(w http.ResponseWriter, r *http.Request) {
	keywords, err := s.registry.ListKeywords(r.Context())
	if err != nil {
		s.logger.Error("failed to list blacklist", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to fetch blacklist")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": nonNil(keywords)})
}

func (s *Server) handleAddKeyword(w http.ResponseWriter, r *http.Request) {
	fields, err := readFields(w, r, "keyword")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	kw, err := s.registry.AddKeyword(r.Context(), fields["keyword"])
	if errors.Is(err, registry.ErrInvalid) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if errors.Is(err, database.ErrConflict) {
		writeError(w, http.StatusConflict, "Keyword already exists")
		return
	}
	if err != nil {
		s.logger.Error("failed to add keyword", "keyword", fields["keyword"], "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to add keyword")
		return
	}

	if wantsHTML(r) {
		http.Redirect(w, r, "/admin", http.StatusSeeOther)
		return
	}
	writeJSON(w, http.StatusCreated, kw)
}

func (s *Server) handleDeleteKeyword(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid id")
		return
	}

	err := s.registry.DeleteKeyword(r.Context(), id)
	if errors.Is(err, database.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Not found")
		return
	}
	if err != nil {
		s.logger.Error("failed to delete keyword", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to delete keyword")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// nonNil keeps empty lists encoded as [] rather than null
func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
