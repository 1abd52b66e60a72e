package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/shelfgrade/shelfgrade/internal/interfaces"
	"github.com/shelfgrade/shelfgrade/internal/models"
)

// maxSubmissionBytes bounds one multipart submission including photos.
const maxSubmissionBytes = 64 << 20

// handleEvaluations handles /api/evaluations (POST submit, GET list).
func (s *Server) handleEvaluations(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.handleEvaluationSubmit(w, r)
	case http.MethodGet:
		s.handleEvaluationList(w, r)
	default:
		RequireMethod(w, r, http.MethodPost, http.MethodGet)
	}
}

// handleEvaluationSubmit handles POST /api/evaluations — a multipart field
// capture from a device or the sync agent.
func (s *Server) handleEvaluationSubmit(w http.ResponseWriter, r *http.Request) {
	if !requireRole(w, r, models.RoleField) {
		return
	}

	sub, ok := parseSubmission(w, r)
	if !ok {
		return
	}

	result, err := s.app.EvaluationService.Submit(r.Context(), sub)
	if err != nil {
		writeServiceError(w, s.logger, err)
		return
	}

	status := http.StatusCreated
	if result.Duplicate {
		status = http.StatusOK
	}
	WriteJSON(w, status, map[string]interface{}{
		"evaluation": result.Evaluation,
		"duplicate":  result.Duplicate,
	})
}

// parseSubmission decodes one multipart submission. Returns false after
// writing a 400 when the request cannot be parsed; semantic validation
// stays in the evaluation service.
func parseSubmission(w http.ResponseWriter, r *http.Request) (*interfaces.Submission, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxSubmissionBytes)
	if err := r.ParseMultipartForm(maxSubmissionBytes); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid multipart body: "+err.Error())
		return nil, false
	}

	sub := &interfaces.Submission{
		ClientEvalID: r.FormValue("client_evaluation_id"),
		StoreCode:    r.FormValue("store_code"),
		EvaluatorID:  r.FormValue("evaluator_id"),
	}

	if raw := r.FormValue("captured_at"); raw != "" {
		ts, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			WriteError(w, http.StatusBadRequest, "captured_at must be RFC3339")
			return nil, false
		}
		sub.CapturedAt = ts
	}
	if v, err := strconv.ParseFloat(r.FormValue("latitude"), 64); err == nil {
		sub.Latitude = v
	}
	if v, err := strconv.ParseFloat(r.FormValue("longitude"), 64); err == nil {
		sub.Longitude = v
	}

	if raw := r.FormValue("price_slots"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &sub.PriceSlots); err != nil {
			WriteError(w, http.StatusBadRequest, "price_slots must be a JSON array")
			return nil, false
		}
	}

	// The AI payload is passed through opaque; the evaluation service
	// validates its shape and falls back to the placeholder on deviation.
	if raw := r.FormValue("ai"); raw != "" {
		sub.RawAI = json.RawMessage(raw)
	}

	for _, header := range r.MultipartForm.File["photos"] {
		f, err := header.Open()
		if err != nil {
			WriteError(w, http.StatusBadRequest, "failed to read photo "+header.Filename)
			return nil, false
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			WriteError(w, http.StatusBadRequest, "failed to read photo "+header.Filename)
			return nil, false
		}
		sub.Photos = append(sub.Photos, interfaces.PhotoBlob{
			Name:        header.Filename,
			ContentType: header.Header.Get("Content-Type"),
			Data:        data,
		})
	}

	return sub, true
}

// handleEvaluationList handles GET /api/evaluations.
func (s *Server) handleEvaluationList(w http.ResponseWriter, r *http.Request) {
	if !requireRole(w, r, models.RoleField) {
		return
	}

	opts, ok := parseListOptions(w, r)
	if !ok {
		return
	}

	items, total, err := s.app.EvaluationService.List(r.Context(), opts)
	if err != nil {
		writeServiceError(w, s.logger, err)
		return
	}
	if items == nil {
		items = []*models.Evaluation{}
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"items":    items,
		"total":    total,
		"page":     opts.Page,
		"per_page": opts.PerPage,
	})
}

// parseListOptions decodes the shared evaluation filter query parameters.
func parseListOptions(w http.ResponseWriter, r *http.Request) (interfaces.EvaluationListOptions, bool) {
	q := r.URL.Query()
	opts := interfaces.EvaluationListOptions{
		StoreCode:   q.Get("store_code"),
		EvaluatorID: q.Get("evaluator_id"),
		Page:        queryInt(r, "page", 1),
		PerPage:     queryInt(r, "per_page", 20),
		Sort:        q.Get("sort"),
	}

	if raw := q.Get("rating"); raw != "" {
		rating := models.Rating(raw)
		if !models.ValidRatings[rating] {
			WriteError(w, http.StatusBadRequest, fmt.Sprintf("invalid rating %q", raw))
			return opts, false
		}
		opts.Rating = rating
	}
	for _, p := range []struct {
		name string
		dst  **time.Time
	}{
		{"since", &opts.Since},
		{"before", &opts.Before},
	} {
		if raw := q.Get(p.name); raw != "" {
			ts, err := time.Parse(time.RFC3339, raw)
			if err != nil {
				WriteError(w, http.StatusBadRequest, p.name+" must be RFC3339")
				return opts, false
			}
			*p.dst = &ts
		}
	}

	return opts, true
}

// handleEvaluationGet handles GET /api/evaluations/{id}.
func (s *Server) handleEvaluationGet(w http.ResponseWriter, r *http.Request, id string) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	if !requireRole(w, r, models.RoleField) {
		return
	}

	eval, err := s.app.EvaluationService.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, s.logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, eval)
}

// handleEvaluationOverride handles POST /api/evaluations/{id}/override.
// The manager-tier check lives in the evaluation service alongside the
// other override preconditions.
func (s *Server) handleEvaluationOverride(w http.ResponseWriter, r *http.Request, id string) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}
	if !requireRole(w, r, models.RoleField) {
		return
	}

	// Older capture clients send newRating; both names are accepted.
	var req struct {
		Rating    models.Rating `json:"rating"`
		NewRating models.Rating `json:"newRating"`
		Reason    string        `json:"reason"`
	}
	if !DecodeJSON(w, r, &req) {
		return
	}
	rating := req.Rating
	if rating == "" {
		rating = req.NewRating
	}

	eval, err := s.app.EvaluationService.ApplyOverride(r.Context(), id, rating, req.Reason)
	if err != nil {
		writeServiceError(w, s.logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, eval)
}

// handleEvaluationsExport handles GET /api/evaluations/export — CSV download.
func (s *Server) handleEvaluationsExport(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	if !requireRole(w, r, models.RoleManager) {
		return
	}

	opts, ok := parseListOptions(w, r)
	if !ok {
		return
	}

	// Rendered to a buffer first so a storage failure mid-export still
	// yields a clean error response instead of a truncated file.
	var buf bytes.Buffer
	if err := s.app.EvaluationService.ExportCSV(r.Context(), &buf, opts); err != nil {
		writeServiceError(w, s.logger, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="evaluations.csv"`)
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}
