package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/insightdeck/insightdeck/config"
	"github.com/insightdeck/insightdeck/internal/aggregate"
	"github.com/insightdeck/insightdeck/internal/dataset"
	"github.com/insightdeck/insightdeck/internal/embed"
	"github.com/insightdeck/insightdeck/internal/filter"
	"github.com/insightdeck/insightdeck/internal/session"
	"github.com/insightdeck/insightdeck/pkg/httperr"
	"github.com/insightdeck/insightdeck/pkg/validation"
	"github.com/insightdeck/insightdeck/pkg/version"
)

// summaryResponse is the render payload backing the KPI cards, both chart
// views, and the filter controls.
type summaryResponse struct {
	HasDataset     bool                      `json:"hasDataset"`
	DatasetVersion int64                     `json:"datasetVersion"`
	Fields         []dataset.Field           `json:"fields"`
	Summary        aggregate.Summary         `json:"summary"`
	Categories     []aggregate.CategoryCount `json:"categories"`
	Timeline       []aggregate.TimePoint     `json:"timeline"`
	EmbedVisible   bool                      `json:"embedVisible"`
}

func toSummaryResponse(v session.View) summaryResponse {
	return summaryResponse{
		HasDataset:     v.HasDataset,
		DatasetVersion: v.Version,
		Fields:         v.Fields,
		Summary:        v.Summary,
		Categories:     v.Categories,
		Timeline:       v.Timeline,
		EmbedVisible:   v.EmbedVisible,
	}
}

func (s *Server) lookup(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	sess, ok := s.sessions.Get(r.PathValue("id"))
	if !ok {
		httperr.Write(w, httperr.SessionNotFound, "")
		return nil, false
	}
	return sess, true
}

func (s *Server) createSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.sessions.Create(r.Context())
	if err != nil {
		httperr.Write(w, httperr.BusyResource, "open session limit reached; retry shortly")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"sessionId": sess.ID,
		"createdAt": sess.CreatedAt.UTC().Format(time.RFC3339),
	})
}

func (s *Server) deleteSession(w http.ResponseWriter, r *http.Request) {
	if err := s.sessions.Remove(r.PathValue("id")); err != nil {
		httperr.Write(w, httperr.SessionNotFound, "")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type uploadRequest struct {
	Filename string `validate:"required,upload_ext"`
}

func (s *Server) uploadDataset(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}

	maxBytes := s.ctrl.LimitsSnapshot().MaxUploadBytes
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	if err := r.ParseMultipartForm(maxBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			httperr.Wrapf(w, httperr.PayloadTooLarge, "uploaded file exceeds %d bytes", maxBytes)
			return
		}
		httperr.Write(w, httperr.Validation, "expected multipart form with a file field")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		httperr.Write(w, httperr.Validation, "file is required")
		return
	}
	defer file.Close()

	if msg := validation.ValidateStruct(uploadRequest{Filename: header.Filename}); msg != "" {
		httperr.Write(w, httperr.UnsupportedFormat, msg)
		return
	}

	if err := sess.Ingest(header.Filename, file); err != nil {
		switch {
		case errors.Is(err, dataset.ErrUnsupportedFormat):
			httperr.Write(w, httperr.UnsupportedFormat, "")
		case errors.Is(err, session.ErrStaleUpload):
			httperr.Write(w, httperr.StaleUpload, "")
		case errors.Is(err, dataset.ErrParseFailure):
			httperr.WriteDetails(w, httperr.ParseFailure, "", trimParseDetail(err))
		default:
			httperr.Write(w, httperr.Internal, "")
		}
		return
	}

	writeJSON(w, http.StatusOK, toSummaryResponse(sess.Snapshot()))
}

// trimParseDetail strips the sentinel prefix so the details field reads as a
// plain diagnostic.
func trimParseDetail(err error) string {
	return strings.TrimPrefix(err.Error(), dataset.ErrParseFailure.Error()+": ")
}

// filterRequest is the wire shape of the filter controls. Dates arrive as
// strings and are parsed with the same permissive layouts the filter engine
// uses; empty strings clear an axis.
type filterRequest struct {
	Query    string                  `json:"query"`
	DateFrom string                  `json:"dateFrom"`
	DateTo   string                  `json:"dateTo"`
	Bounds   map[string]filter.Bound `json:"bounds"`
}

func (s *Server) updateFilters(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}

	var req filterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httperr.Write(w, httperr.Validation, "invalid JSON body")
		return
	}

	cfg := filter.Config{Query: req.Query, Bounds: req.Bounds}
	var bad string
	cfg.DateFrom, bad = parseFilterDate(req.DateFrom, "dateFrom")
	if bad != "" {
		httperr.Write(w, httperr.Validation, bad)
		return
	}
	cfg.DateTo, bad = parseFilterDate(req.DateTo, "dateTo")
	if bad != "" {
		httperr.Write(w, httperr.Validation, bad)
		return
	}

	sess.SetFilter(cfg)
	writeJSON(w, http.StatusOK, toSummaryResponse(sess.Snapshot()))
}

func parseFilterDate(raw, name string) (*time.Time, string) {
	if strings.TrimSpace(raw) == "" {
		return nil, ""
	}
	t, ok := dataset.ParseDate(raw)
	if !ok {
		return nil, fmt.Sprintf("%s is not a recognized date", name)
	}
	return &t, ""
}

func (s *Server) resetSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	sess.Reset()
	writeJSON(w, http.StatusOK, toSummaryResponse(sess.Snapshot()))
}

type embedVisibleRequest struct {
	Visible bool `json:"visible"`
}

func (s *Server) setEmbedVisible(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	var req embedVisibleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httperr.Write(w, httperr.Validation, "invalid JSON body")
		return
	}
	sess.SetEmbedVisible(req.Visible)
	writeJSON(w, http.StatusOK, toSummaryResponse(sess.Snapshot()))
}

func (s *Server) getSummary(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, toSummaryResponse(sess.Snapshot()))
}

func (s *Server) exportRows(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	view := sess.Snapshot()
	if !view.HasDataset {
		httperr.Write(w, httperr.Validation, "no dataset loaded")
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", config.ExportFilename))
	if err := dataset.WriteCSV(w, view.Fields, view.Records); err != nil {
		// Headers are already on the wire; record the failure and stop.
		s.logger.Error().Err(err).Str("session_id", sess.ID).Msg("export write failed")
	}
}

func (s *Server) embedToken(w http.ResponseWriter, r *http.Request) {
	token, err := s.relay.Token(r.Context())
	if err != nil {
		switch {
		case errors.Is(err, embed.ErrConfigIncomplete):
			httperr.WriteDetails(w, httperr.ConfigIncomplete, "", err.Error())
		case errors.Is(err, embed.ErrUpstreamAuth):
			httperr.WriteDetails(w, httperr.UpstreamAuthFailed, "", err.Error())
		case errors.Is(err, embed.ErrUpstreamToken):
			httperr.WriteDetails(w, httperr.UpstreamTokenFailed, "", err.Error())
		default:
			httperr.Write(w, httperr.Internal, "")
		}
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusOK, token)
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"version":  version.Version(),
		"sessions": s.sessions.Count(),
	})
}
