package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/ziadkadry99/nae/internal/engine"
	"github.com/ziadkadry99/nae/internal/history"
	"github.com/ziadkadry99/nae/internal/report"
	"github.com/ziadkadry99/nae/internal/workbench"
)

type ingestRequest struct {
	Asset string `json:"asset"`
	Event string `json:"event"`
}

type contextRequest struct {
	Asset   string               `json:"asset"`
	Event   string               `json:"event"`
	Context engine.ContextObject `json:"context"`
}

type askRequest struct {
	Question string `json:"question"`
}

type askResponse struct {
	Answer string `json:"answer"`
	Error  string `json:"error,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
	Path  string `json:"path,omitempty"`
}

func (s *Server) registerRoutes(r chi.Router) {
	r.Route("/api/session", func(r chi.Router) {
		r.Get("/", s.handleGetSession)
		r.Put("/context", s.handleUpdateContext)
		r.Post("/ingest", s.handleIngest)
		r.Post("/analyze", s.handleAnalyze)
		r.Post("/ask", s.handleAsk)
	})
	r.Route("/api/history", func(r chi.Router) {
		r.Use(middleware.Timeout(30 * time.Second))
		r.Get("/", s.handleListHistory)
		r.Delete("/", s.handleClearHistory)
		r.Get("/{id}", s.handleGetRecord)
		r.Post("/{id}/select", s.handleSelectRecord)
		r.Get("/{id}/report", s.handleRecordReport)
	})
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.session.Snapshot())
}

func (s *Server) handleUpdateContext(w http.ResponseWriter, r *http.Request) {
	var req contextRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body", Kind: "bad_request"})
		return
	}
	s.session.UpdateContext(req.Asset, req.Event, req.Context)
	writeJSON(w, http.StatusOK, s.session.Snapshot())
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	var req ingestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Asset == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "asset is required", Kind: "bad_request"})
		return
	}
	if _, err := s.session.FetchContext(r.Context(), req.Asset, req.Event); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.session.Snapshot())
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	rec, err := s.session.Analyze(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Question == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "question is required", Kind: "bad_request"})
		return
	}
	answer, err := s.session.Ask(r.Context(), req.Question)
	if err != nil {
		status, _ := statusFor(err)
		writeJSON(w, status, askResponse{Answer: answer, Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, askResponse{Answer: answer})
}

func (s *Server) handleListHistory(w http.ResponseWriter, r *http.Request) {
	records, err := s.history.Filter(r.Context(), r.URL.Query().Get("asset"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error(), Kind: "bad_request"})
		return
	}
	writeJSON(w, http.StatusOK, records)
}

func (s *Server) handleClearHistory(w http.ResponseWriter, r *http.Request) {
	if err := s.session.ClearHistory(r.Context()); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGetRecord(w http.ResponseWriter, r *http.Request) {
	rec, err := s.history.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleSelectRecord(w http.ResponseWriter, r *http.Request) {
	if _, err := s.session.Select(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.session.Snapshot())
}

func (s *Server) handleRecordReport(w http.ResponseWriter, r *http.Request) {
	rec, err := s.history.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	format := report.Format(r.URL.Query().Get("format"))
	if format == "" {
		format = report.FormatHTML
	}
	body, err := report.Render(rec, format)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error(), Kind: "bad_request"})
		return
	}
	if format == report.FormatHTML {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
	} else {
		w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	}
	w.WriteHeader(http.StatusOK)
	w.Write(body)
}

// statusFor maps a pipeline error to an HTTP status and error kind.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, workbench.ErrSuperseded):
		return http.StatusConflict, "superseded"
	case errors.Is(err, history.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, engine.ErrSchemaViolation):
		return http.StatusUnprocessableEntity, engine.Outcome(err)
	case errors.Is(err, engine.ErrIngestionFailure), errors.Is(err, engine.ErrInferenceFailure):
		return http.StatusBadGateway, engine.Outcome(err)
	default:
		return http.StatusInternalServerError, "internal"
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status, kind := statusFor(err)
	resp := errorResponse{Error: err.Error(), Kind: kind}
	var sv *engine.SchemaViolationError
	if errors.As(err, &sv) {
		resp.Path = sv.Path
	}
	writeJSON(w, status, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
