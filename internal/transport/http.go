package transport

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/baydersh/markscan/internal/capture"
	"github.com/baydersh/markscan/internal/detect"
	"github.com/baydersh/markscan/internal/domain/entry"
	"github.com/baydersh/markscan/internal/domain/workflow"
	"github.com/baydersh/markscan/internal/export"
	"github.com/baydersh/markscan/internal/repository"
)

// Workflow is the operator command surface the router drives. Each
// endpoint maps directly onto one workflow transition.
type Workflow interface {
	Capture(ctx context.Context) (workflow.Review, error)
	Rescan(ctx context.Context) error
	Save(ctx context.Context, overrideMark string) (*entry.Entry, error)
	State() workflow.State
}

// Entries is the store view surface.
type Entries interface {
	All() []entry.Entry
	Render() []entry.View
	Count() int
}

// Server wires HTTP handlers for the operator commands.
type Server struct {
	workflow Workflow
	entries  Entries
	logger   *slog.Logger
	now      func() time.Time
}

// NewRouter creates the operator API router with middleware.
func NewRouter(wf Workflow, entries Entries, logger *slog.Logger, middleware ...mux.MiddlewareFunc) *mux.Router {
	if logger == nil {
		logger = slog.Default()
	}
	srv := &Server{workflow: wf, entries: entries, logger: logger, now: time.Now}

	r := mux.NewRouter()
	for _, m := range middleware {
		r.Use(m)
	}

	r.HandleFunc("/health", srv.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/api/state", srv.handleState).Methods(http.MethodGet)
	r.HandleFunc("/api/capture", srv.handleCapture).Methods(http.MethodPost)
	r.HandleFunc("/api/rescan", srv.handleRescan).Methods(http.MethodPost)
	r.HandleFunc("/api/save", srv.handleSave).Methods(http.MethodPost)
	r.HandleFunc("/api/entries", srv.handleEntries).Methods(http.MethodGet)
	r.HandleFunc("/api/export", srv.handleExport).Methods(http.MethodGet)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleState(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"state": s.workflow.State()})
}

type captureResponse struct {
	workflow.Review
	MarkError string `json:"mark_error,omitempty"`
}

func (s *Server) handleCapture(w http.ResponseWriter, r *http.Request) {
	rev, err := s.workflow.Capture(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}

	resp := captureResponse{Review: rev}
	if rev.MarkErr != nil {
		resp.MarkError = errorCode(rev.MarkErr)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleRescan(w http.ResponseWriter, r *http.Request) {
	if err := s.workflow.Rescan(r.Context()); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"state": s.workflow.State()})
}

type saveRequest struct {
	Mark string `json:"mark"`
}

type saveResponse struct {
	Entry   *entry.Entry `json:"entry"`
	Warning string       `json:"warning,omitempty"`
}

func (s *Server) handleSave(w http.ResponseWriter, r *http.Request) {
	// An empty body means "no override". A body that fails to decode is
	// rejected outright: silently dropping it would save the detected
	// mark in place of the operator's correction.
	var req saveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "bad_request", Detail: "malformed save body"})
		return
	}

	e, err := s.workflow.Save(r.Context(), req.Mark)
	if e == nil {
		s.writeError(w, err)
		return
	}

	resp := saveResponse{Entry: e}
	if err != nil {
		// entry retained in memory; disk write was rejected
		resp.Warning = errorCode(err)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleEntries(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"count":   s.entries.Count(),
		"entries": s.entries.Render(),
	})
}

func (s *Server) handleExport(w http.ResponseWriter, _ *http.Request) {
	data, err := export.CSV(s.entries.All())
	if err != nil {
		s.writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+export.Filename(s.now())+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

type errorBody struct {
	Error  string `json:"error"`
	Detail string `json:"detail,omitempty"`
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status, code := statusFor(err)
	if status >= 500 {
		s.logger.Error("request failed", "code", code, "error", err)
	}
	writeJSON(w, status, errorBody{Error: code, Detail: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// statusFor maps domain errors onto HTTP statuses and stable error codes.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, capture.ErrCameraUnavailable):
		return http.StatusServiceUnavailable, "camera_unavailable"
	case errors.Is(err, capture.ErrFrameNotReady):
		return http.StatusConflict, "frame_not_ready"
	case errors.Is(err, detect.ErrUnauthorized):
		return http.StatusBadGateway, "detection_unauthorized"
	case errors.Is(err, detect.ErrUnreachable):
		return http.StatusBadGateway, "detection_unreachable"
	case errors.Is(err, detect.ErrTimeout):
		return http.StatusGatewayTimeout, "detection_timeout"
	case errors.Is(err, entry.ErrMissingStudentID):
		return http.StatusUnprocessableEntity, "missing_student_id"
	case errors.Is(err, entry.ErrMissingMark):
		return http.StatusUnprocessableEntity, "missing_mark"
	case errors.Is(err, entry.ErrInvalidMark):
		return http.StatusUnprocessableEntity, "invalid_mark"
	case errors.Is(err, export.ErrNothingToExport):
		return http.StatusConflict, "nothing_to_export"
	case errors.Is(err, repository.ErrWriteFailed):
		return http.StatusInternalServerError, "persistence_write_error"
	case errors.Is(err, workflow.ErrNotLive), errors.Is(err, workflow.ErrNotReviewing),
		errors.Is(err, workflow.ErrAlreadyStarted):
		return http.StatusConflict, "invalid_state"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

func errorCode(err error) string {
	_, code := statusFor(err)
	return code
}
