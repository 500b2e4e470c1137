package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/veil-sh/veil/internal/detect"
	"github.com/veil-sh/veil/internal/pii"
	"github.com/veil-sh/veil/internal/session"
)

type detectRequest struct {
	Text       string     `json:"text"`
	Types      []pii.Type `json:"types,omitempty"`
	DocumentID string     `json:"documentId,omitempty"`
	SessionID  string     `json:"sessionId,omitempty"`
	PageNumber int        `json:"pageNumber,omitempty"`
}

type detectResponse struct {
	SessionID     string          `json:"sessionId"`
	Report        *detect.Report  `json:"report"`
	CachedMatches []session.Match `json:"cachedMatches,omitempty"`
}

type maskRequest struct {
	Text      string `json:"text"`
	SessionID string `json:"sessionId"`
}

type maskResponse struct {
	SessionID  string `json:"sessionId"`
	MaskedText string `json:"maskedText"`
	Matches    int    `json:"matches"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleDetect runs the full detection pipeline on the request text. Cached
// redactions from the caller's session are surfaced alongside fresh
// detections but never merged into them; the client decides precedence.
func (s *Server) handleDetect(w http.ResponseWriter, r *http.Request) {
	var req detectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	if !s.limiter.Allow(sessionID) {
		writeError(w, http.StatusTooManyRequests, "rate limit exceeded for session")
		return
	}

	start := time.Now()
	entities, err := s.engine.DetectAll(r.Context(), req.Text, detect.Options{
		Types:      req.Types,
		DocumentID: req.DocumentID,
		PageNumber: req.PageNumber,
	})
	if err != nil {
		if detect.IsInputError(err) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	totalMs := time.Since(start).Milliseconds()

	resp := detectResponse{
		SessionID: sessionID,
		Report:    detect.BuildReport(entities, req.DocumentID, 0, totalMs),
	}
	if req.Text != "" {
		resp.CachedMatches = s.sessions.get(sessionID).FindMatches(req.Text)
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleMask rewrites the request text using only the session cache. No
// model call is made; unknown values pass through untouched.
func (s *Server) handleMask(w http.ResponseWriter, r *http.Request) {
	var req maskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.SessionID == "" {
		writeError(w, http.StatusBadRequest, "sessionId is required")
		return
	}
	if req.Text == "" {
		writeError(w, http.StatusBadRequest, "text is empty")
		return
	}
	if !s.limiter.Allow(req.SessionID) {
		writeError(w, http.StatusTooManyRequests, "rate limit exceeded for session")
		return
	}

	cache := s.sessions.get(req.SessionID)
	matches := cache.FindMatches(req.Text)

	masked := make([]byte, 0, len(req.Text))
	last := 0
	for _, m := range matches {
		masked = append(masked, req.Text[last:m.Span.Start]...)
		masked = append(masked, m.MaskedValue...)
		last = m.Span.End
	}
	masked = append(masked, req.Text[last:]...)

	writeJSON(w, http.StatusOK, maskResponse{
		SessionID:  req.SessionID,
		MaskedText: string(masked),
		Matches:    len(matches),
	})
}

type cacheAddRequest struct {
	Redactions []session.Redaction `json:"redactions"`
}

func (s *Server) handleCacheAdd(w http.ResponseWriter, r *http.Request) {
	var req cacheAddRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if len(req.Redactions) == 0 {
		writeError(w, http.StatusBadRequest, "redactions is empty")
		return
	}
	for i, red := range req.Redactions {
		if red.Value == "" || red.MaskedValue == "" || !red.Type.Valid() {
			writeError(w, http.StatusBadRequest, "invalid redaction at index "+strconv.Itoa(i))
			return
		}
	}

	cache := s.sessions.get(sessionID(r))
	cache.AddMany(req.Redactions)
	writeJSON(w, http.StatusOK, map[string]int{"entries": cache.Len()})
}

type cacheFindRequest struct {
	Text string `json:"text"`
}

func (s *Server) handleCacheFind(w http.ResponseWriter, r *http.Request) {
	var req cacheFindRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Text == "" {
		writeError(w, http.StatusBadRequest, "text is empty")
		return
	}
	matches := s.sessions.get(sessionID(r)).FindMatches(req.Text)
	writeJSON(w, http.StatusOK, map[string][]session.Match{"matches": matches})
}

func (s *Server) handleCacheExport(w http.ResponseWriter, r *http.Request) {
	records := s.sessions.get(sessionID(r)).Export()
	writeJSON(w, http.StatusOK, map[string][]session.CachedRedaction{"records": records})
}

type cacheImportRequest struct {
	Records []session.CachedRedaction `json:"records"`
	Merge   bool                      `json:"merge"`
}

func (s *Server) handleCacheImport(w http.ResponseWriter, r *http.Request) {
	var req cacheImportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	cache := s.sessions.get(sessionID(r))
	if err := cache.Import(req.Records, req.Merge); err != nil {
		var fe *session.FormatError
		if errors.As(err, &fe) {
			writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"entries": cache.Len()})
}

func (s *Server) handleCacheClear(w http.ResponseWriter, r *http.Request) {
	s.sessions.drop(sessionID(r))
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCacheRemove(w http.ResponseWriter, r *http.Request) {
	entryID := chi.URLParam(r, "entryID")
	if !s.sessions.get(sessionID(r)).Remove(entryID) {
		writeError(w, http.StatusNotFound, "no cache entry with id "+entryID)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func sessionID(r *http.Request) string {
	return chi.URLParam(r, "sessionID")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
