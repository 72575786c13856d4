package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/tnpagents/processmate/pkg/bpmn/preview"
	perrors "github.com/tnpagents/processmate/pkg/errors"
	"github.com/tnpagents/processmate/pkg/pipeline"
	"github.com/tnpagents/processmate/pkg/process"
)

// Content types.
const (
	contentTypeJSON = "application/json"
	contentTypeXML  = "application/xml; charset=utf-8"
	contentTypeSVG  = "image/svg+xml"
	contentTypePNG  = "image/png"
	contentTypeDOT  = "text/vnd.graphviz; charset=utf-8"
)

// Response headers.
const (
	headerFallback = "X-Fallback-Branches"
	headerCache    = "X-Cache"
)

// errorBody is the JSON error response.
type errorBody struct {
	Code    perrors.Code `json:"code"`
	Message string       `json:"message"`
}

// diagramResponse is the JSON envelope for /diagrams.
type diagramResponse struct {
	XML         string               `json:"xml"`
	Diagnostics pipeline.Diagnostics `json:"diagnostics"`
	Stats       pipeline.Stats       `json:"stats"`
	Cache       pipeline.CacheInfo   `json:"cache"`
}

// layoutResponse is the body of /diagrams/layout.
type layoutResponse struct {
	Layout      any                  `json:"layout"`
	Paths       any                  `json:"paths"`
	Diagnostics pipeline.Diagnostics `json:"diagnostics"`
}

// validateResponse is the body of /steps/validate.
type validateResponse struct {
	Valid  bool            `json:"valid"`
	Issues []process.Issue `json:"issues"`
}

// =============================================================================
// Diagrams
// =============================================================================

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleDiagram(w http.ResponseWriter, r *http.Request) {
	t, err := readTable(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeDiagram(w, r, t)
}

func (s *Server) writeDiagram(w http.ResponseWriter, r *http.Request, t *process.Table) {
	opts, err := s.options(r, t)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	res, err := s.runner.Generate(r.Context(), t.Steps, opts)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	w.Header().Set(headerFallback, strconv.Itoa(res.Diagnostics.FallbackBranches))
	w.Header().Set(headerCache, cacheHeader(res.CacheInfo.DiagramHit))
	if wantsJSON(r) {
		writeJSON(w, http.StatusOK, diagramResponse{
			XML:         res.XML,
			Diagnostics: res.Diagnostics,
			Stats:       res.Stats,
			Cache:       res.CacheInfo,
		})
		return
	}
	w.Header().Set("Content-Type", contentTypeXML)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(res.XML))
}

func (s *Server) handleLayout(w http.ResponseWriter, r *http.Request) {
	t, err := readTable(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	opts, err := s.options(r, t)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	res, err := s.runner.Generate(r.Context(), t.Steps, opts)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set(headerCache, cacheHeader(res.CacheInfo.DiagramHit))
	writeJSON(w, http.StatusOK, layoutResponse{
		Layout:      res.Layout,
		Paths:       res.Paths,
		Diagnostics: res.Diagnostics,
	})
}

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	t, err := readTable(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	opts, err := s.options(r, t)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out, hit, err := s.runner.PreviewWithCacheInfo(r.Context(), t.Steps, opts)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	switch opts.PreviewFormat {
	case preview.FormatPNG:
		w.Header().Set("Content-Type", contentTypePNG)
	case preview.FormatDOT:
		w.Header().Set("Content-Type", contentTypeDOT)
	default:
		w.Header().Set("Content-Type", contentTypeSVG)
	}
	w.Header().Set(headerCache, cacheHeader(hit))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(out)
}

func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	t, err := readTable(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	issues, _ := process.Validate(t)
	if issues == nil {
		issues = []process.Issue{}
	}
	writeJSON(w, http.StatusOK, validateResponse{Valid: len(issues) == 0, Issues: issues})
}

// =============================================================================
// Processes
// =============================================================================

func (s *Server) handleListProcesses(w http.ResponseWriter, r *http.Request) {
	list, err := s.store.List(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleCreateProcess(w http.ResponseWriter, r *http.Request) {
	t, err := readTable(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if t.ID != "" {
		_, err := s.store.Get(r.Context(), t.ID)
		switch {
		case err == nil:
			s.writeError(w, r, perrors.New(perrors.ErrCodeInvalidInput, "process %q already exists; use PUT to replace it", t.ID))
			return
		case !perrors.Is(err, perrors.ErrCodeNotFound):
			s.writeError(w, r, err)
			return
		}
	}
	if err := s.store.Save(r.Context(), t); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Location", "/api/v1/processes/"+t.ID)
	writeJSON(w, http.StatusCreated, t)
}

func (s *Server) handleGetProcess(w http.ResponseWriter, r *http.Request) {
	t, err := s.store.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) handlePutProcess(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	t, err := readTable(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if t.ID != "" && t.ID != id {
		s.writeError(w, r, perrors.New(perrors.ErrCodeInvalidInput, "body id %q does not match path id %q", t.ID, id))
		return
	}
	t.ID = id
	if err := s.store.Save(r.Context(), t); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) handleDeleteProcess(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleProcessDiagram(w http.ResponseWriter, r *http.Request) {
	t, err := s.store.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeDiagram(w, r, t)
}

// =============================================================================
// Helpers
// =============================================================================

// readTable decodes the request body as a JSON step table.
func readTable(r *http.Request) (*process.Table, error) {
	return process.Read(r.Body, process.FormatJSON)
}

// options merges the server defaults, the table title and query overrides:
// ?title=, ?strict=, ?no_colors=, ?refresh=, ?format= (preview).
func (s *Server) options(r *http.Request, t *process.Table) (pipeline.Options, error) {
	opts := s.defaults
	opts.Logger = nil
	if t.Title != "" {
		opts.Title = t.Title
	}
	q := r.URL.Query()
	if v := q.Get("title"); v != "" {
		opts.Title = v
	}
	for name, dst := range map[string]*bool{
		"strict":    &opts.Strict,
		"no_colors": &opts.NoColors,
		"refresh":   &opts.Refresh,
	} {
		v := q.Get(name)
		if v == "" {
			continue
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return opts, perrors.New(perrors.ErrCodeInvalidInput, "query parameter %s: %q is not a boolean", name, v)
		}
		*dst = b
	}
	if v := q.Get("format"); v != "" {
		if err := pipeline.ValidatePreviewFormat(v); err != nil {
			return opts, err
		}
		opts.PreviewFormat = v
	}
	return opts, nil
}

func wantsJSON(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), contentTypeJSON)
}

func cacheHeader(hit bool) string {
	if hit {
		return "HIT"
	}
	return "MISS"
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps err to a status and a {code, message} body. Errors without
// a code are logged and reported as a generic internal error.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		writeJSON(w, http.StatusRequestEntityTooLarge, errorBody{
			Code:    perrors.ErrCodeInvalidInput,
			Message: fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit),
		})
		return
	}

	status := perrors.HTTPStatus(err)
	body := errorBody{Code: perrors.GetCode(err), Message: perrors.UserMessage(err)}
	if body.Code == "" {
		s.logger.Error("request failed", "path", r.URL.Path, "request_id", middleware.GetReqID(r.Context()), "err", err)
		body = errorBody{Code: perrors.ErrCodeInternal, Message: "internal error"}
	}
	writeJSON(w, status, body)
}
