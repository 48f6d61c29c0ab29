package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/scout/internal/research"
	"github.com/MikeSquared-Agency/scout/internal/state"
	"github.com/MikeSquared-Agency/scout/internal/store"
)

type createThreadRequest struct {
	ProductLink string `json:"product_link"`
	ThreadID    string `json:"thread_id,omitempty"`
}

type messageRequest struct {
	Content string `json:"content"`
}

type threadResponse struct {
	ThreadID       string                  `json:"thread_id"`
	ReportID       string                  `json:"report_id,omitempty"`
	ProductLink    string                  `json:"product_link"`
	ProductQuery   string                  `json:"product_query"`
	Report         string                  `json:"report"`
	Sentiment      *state.SentimentSummary `json:"sentiment"`
	EvidenceCount  map[string]int          `json:"evidence_count"`
	RunningSummary string                  `json:"running_summary,omitempty"`
	History        []state.Turn            `json:"history"`
}

type replyResponse struct {
	ThreadID  string `json:"thread_id"`
	Answer    string `json:"answer"`
	ToolCalls int    `json:"tool_calls"`
	Compacted bool   `json:"compacted"`
}

func toThreadResponse(threadID string, s state.Session) threadResponse {
	bySource := s.EvidenceBySource()
	counts := make(map[string]int, len(state.Sources))
	for _, src := range state.Sources {
		counts[string(src)] = bySource[src]
	}

	history := s.History
	if history == nil {
		history = []state.Turn{}
	}

	return threadResponse{
		ThreadID:       threadID,
		ProductLink:    s.ProductLink,
		ProductQuery:   s.ProductQuery,
		Report:         s.FinalReport,
		Sentiment:      s.Sentiment,
		EvidenceCount:  counts,
		RunningSummary: s.RunningSummary,
		History:        history,
	}
}

// createThread handles POST /api/v1/threads
func (s *Server) createThread(w http.ResponseWriter, r *http.Request) {
	var req createThreadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	if strings.TrimSpace(req.ProductLink) == "" {
		writeError(w, http.StatusBadRequest, "product_link is required")
		return
	}

	res, err := s.research.Start(r.Context(), req.ThreadID, req.ProductLink)
	switch {
	case err == nil:
	case errors.Is(err, research.ErrEmptyInput):
		writeError(w, http.StatusBadRequest, "product_link is required")
		return
	case errors.Is(err, research.ErrNotConfigured):
		writeError(w, http.StatusServiceUnavailable, "research is not configured")
		return
	case errors.Is(err, research.ErrThreadExists):
		writeError(w, http.StatusConflict, "thread already exists")
		return
	default:
		s.logger.Error("create thread failed", "link", req.ProductLink, "error", err)
		writeError(w, http.StatusBadGateway, research.NoReportMessage)
		return
	}

	resp := toThreadResponse(res.ThreadID, res.State)
	resp.ReportID = res.ReportID
	writeJSON(w, http.StatusCreated, resp)
}

// getThread handles GET /api/v1/threads/{threadID}
func (s *Server) getThread(w http.ResponseWriter, r *http.Request) {
	threadID := chi.URLParam(r, "threadID")
	sess, err := s.research.Thread(threadID)
	if err != nil {
		writeError(w, http.StatusNotFound, "thread not found")
		return
	}
	writeJSON(w, http.StatusOK, toThreadResponse(threadID, sess))
}

// addMessage handles POST /api/v1/threads/{threadID}/messages
func (s *Server) addMessage(w http.ResponseWriter, r *http.Request) {
	threadID := chi.URLParam(r, "threadID")

	var req messageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	if strings.TrimSpace(req.Content) == "" {
		writeError(w, http.StatusBadRequest, "content is required")
		return
	}

	reply, err := s.research.Ask(r.Context(), threadID, req.Content)
	switch {
	case err == nil:
	case errors.Is(err, research.ErrUnknownThread):
		writeError(w, http.StatusNotFound, "thread not found")
		return
	case errors.Is(err, research.ErrEmptyInput):
		writeError(w, http.StatusBadRequest, "content is required")
		return
	case errors.Is(err, research.ErrNotConfigured):
		writeError(w, http.StatusServiceUnavailable, "research is not configured")
		return
	default:
		s.logger.Error("chat failed", "thread_id", threadID, "error", err)
		writeError(w, http.StatusBadGateway, "We couldn't answer that question. Please try again.")
		return
	}

	writeJSON(w, http.StatusOK, replyResponse{
		ThreadID:  reply.ThreadID,
		Answer:    reply.Answer,
		ToolCalls: reply.ToolCalls,
		Compacted: reply.Compacted,
	})
}

// getReport handles GET /api/v1/reports/{reportID}
func (s *Server) getReport(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "reportID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid report id")
		return
	}

	rec, err := s.research.Report(r.Context(), id)
	switch {
	case err == nil:
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "report not found")
		return
	case errors.Is(err, research.ErrNoArchive):
		writeError(w, http.StatusServiceUnavailable, "report archive is not configured")
		return
	default:
		s.logger.Error("get report failed", "report_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load report")
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// listThreadReports handles GET /api/v1/threads/{threadID}/reports
func (s *Server) listThreadReports(w http.ResponseWriter, r *http.Request) {
	threadID := chi.URLParam(r, "threadID")
	ids, err := s.research.ThreadReports(r.Context(), threadID)
	if errors.Is(err, research.ErrNoArchive) {
		writeError(w, http.StatusServiceUnavailable, "report archive is not configured")
		return
	}
	if err != nil {
		s.logger.Error("list thread reports failed", "thread_id", threadID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list reports")
		return
	}
	if ids == nil {
		ids = []uuid.UUID{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"thread_id": threadID, "report_ids": ids})
}
