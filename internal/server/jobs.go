package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/tkilaker/curator/internal/classifier"
	"github.com/tkilaker/curator/internal/fetcher"
	"github.com/tkilaker/curator/internal/ingest"
	"github.com/tkilaker/curator/internal/tasks"
)

// handleIngest runs one ingestion pass. Only an unreachable store fails the
// request; feed and item errors are reported through the counts, and a
// pass cut short by the request deadline still answers with what it stored.
func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	res, err := s.pipeline.Run(r.Context())
	if err != nil {
		s.logger.Error("ingestion failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]any{"success": false, "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":     true,
		"ingested":    res.Ingested,
		"duplicates":  res.Duplicates,
		"blacklisted": res.Blacklisted,
		"failures":    res.Failures,
		"interrupted": res.Interrupted,
	})
}

// handleCron ingests, then analyzes one batch when the classifier is enabled
func (s *Server) handleCron(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	ingested, err := s.pipeline.Run(ctx)
	if err != nil {
		s.logger.Error("ingestion failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]any{"success": false, "error": err.Error()})
		return
	}

	resp := map[string]any{
		"success":     true,
		"ingested":    ingested.Ingested,
		"analyzed":    0,
		"interrupted": ingested.Interrupted,
	}
	if s.analyzer.Enabled() && !ingested.Interrupted {
		analyzed, err := s.analyzer.AnalyzeNext(ctx, s.config.AnalyzeBatchSize)
		if err != nil {
			s.logger.Error("analysis failed", "error", err)
			resp["analysis_error"] = err.Error()
		}
		resp["analyzed"] = analyzed.Analyzed
		resp["interrupted"] = analyzed.Interrupted
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleAnalyze classifies the next batch. With ?async=true the batch runs
// as a background task and the response carries its ID.
func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	if !s.analyzer.Enabled() {
		writeError(w, http.StatusServiceUnavailable, classifier.ErrDisabled.Error())
		return
	}

	batch := s.config.AnalyzeBatchSize
	if v := r.URL.Query().Get("batch"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "Invalid batch size")
			return
		}
		batch = n
	}

	if r.URL.Query().Get("async") == "true" {
		s.submitTask(w, "analyze", func(ctx context.Context) (any, error) {
			return s.analyzer.AnalyzeNext(ctx, batch)
		})
		return
	}

	res, err := s.analyzer.AnalyzeNext(r.Context(), batch)
	if err != nil {
		s.logger.Error("analysis failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]any{"success": false, "error": err.Error()})
		return
	}
	if res.Selected == 0 {
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "analyzed": 0, "message": "Nothing to analyze"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":     true,
		"analyzed":    res.Analyzed,
		"skipped":     res.Skipped,
		"failures":    res.Failures,
		"interrupted": res.Interrupted,
	})
}

// handleReanalyze queues a forced reanalysis of one article
func (s *Server) handleReanalyze(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid id")
		return
	}
	if !s.analyzer.Enabled() {
		writeError(w, http.StatusServiceUnavailable, classifier.ErrDisabled.Error())
		return
	}

	article, err := s.db.GetArticleByID(r.Context(), id)
	if err != nil {
		s.logger.Error("failed to load article", "article_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to reanalyze article")
		return
	}
	if article == nil {
		writeError(w, http.StatusNotFound, "Not found")
		return
	}

	s.submitTask(w, "reanalyze", func(ctx context.Context) (any, error) {
		return map[string]int64{"id": id}, s.analyzer.Reanalyze(ctx, id)
	})
}

func (s *Server) submitTask(w http.ResponseWriter, name string, fn tasks.Func) {
	task, err := s.tasks.Submit(name, fn)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, tasks.ErrQueueFull) || errors.Is(err, tasks.ErrClosed) {
			status = http.StatusServiceUnavailable
		}
		writeError(w, status, err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{
		"success": true,
		"task_id": task.ID,
		"status":  task.Status,
	})
}

func (s *Server) handleTaskStatus(w http.ResponseWriter, r *http.Request) {
	task, ok := s.tasks.Get(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusNotFound, "Not found")
		return
	}
	writeJSON(w, http.StatusOK, task)
}

// handleShare accepts a URL from the share page, a mobile share target or
// a bookmarklet. Form posts are redirected to the dashboard.
func (s *Server) handleShare(w http.ResponseWriter, r *http.Request) {
	fields, err := readFields(w, r, "url", "title", "text")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	link := fields["url"]
	// Share targets often put the link in the text field.
	if link == "" && fetcher.IsHTTPURL(fields["text"]) {
		link = fields["text"]
	}
	if link == "" {
		writeError(w, http.StatusBadRequest, "Missing url")
		return
	}

	res, err := s.pipeline.AddShared(r.Context(), link, fields["title"])
	if errors.Is(err, ingest.ErrInvalidURL) {
		writeError(w, http.StatusBadRequest, "Invalid url")
		return
	}
	if err != nil {
		s.logger.Error("failed to save shared article", "url", link, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to save article")
		return
	}

	if wantsHTML(r) {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "id": res.ID, "inserted": res.Inserted})
}
