package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/hdcn/ledenportaal/pkg/authz"
	"github.com/hdcn/ledenportaal/pkg/exports"
	"github.com/hdcn/ledenportaal/pkg/httputil"
	"github.com/hdcn/ledenportaal/pkg/middleware"
	"github.com/hdcn/ledenportaal/pkg/observability"
)

// ExportHandlers starts extract runs and exposes their status. Starts
// go through the export rate limiter on top of the regular one.
type ExportHandlers struct {
	runner    *exports.Runner
	evaluator *authz.Evaluator
	limits    *middleware.RateLimitMiddleware
}

// NewExportHandlers creates handlers for extract runs. limits may be
// nil, in which case starts are only bounded by the regular limiter.
func NewExportHandlers(runner *exports.Runner, evaluator *authz.Evaluator, limits *middleware.RateLimitMiddleware) *ExportHandlers {
	return &ExportHandlers{runner: runner, evaluator: evaluator, limits: limits}
}

// RegisterRoutes registers the export API routes.
func (h *ExportHandlers) RegisterRoutes(router *mux.Router) {
	start := http.Handler(http.HandlerFunc(h.create))
	if h.limits != nil {
		start = h.limits.ForExports(start)
	}
	canExport := middleware.RequirePermission(h.evaluator, authz.ResourceMembers, authz.ActionExport)
	canView := middleware.RequirePermission(h.evaluator, authz.ResourceExports, authz.ActionRead)

	router.Handle("/exports", canExport(start)).Methods("POST")
	router.Handle("/exports", canView(http.HandlerFunc(h.list))).Methods("GET")
	router.HandleFunc("/exports/{id}", h.get).Methods("GET")
	router.HandleFunc("/exports/{id}/download", h.download).Methods("GET")
}

// create runs an extract synchronously and returns the finished run
// record. The route guard establishes the export capability; the
// runner re-checks it against the requested region.
func (h *ExportHandlers) create(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r)

	var req CreateExportRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.RequireNonEmpty(w, req.Kind, "kind") {
		return
	}
	if !httputil.RequireNonEmpty(w, req.Region, "region") {
		return
	}
	if !exports.Kind(req.Kind).Valid() {
		httputil.WriteBadRequest(w, "unknown export kind: "+req.Kind)
		return
	}

	run, err := h.runner.Run(r.Context(), exports.Request{
		Kind:   exports.Kind(req.Kind),
		Region: authz.Region(req.Region),
		User:   user,
	})
	if err != nil {
		switch {
		case errors.Is(err, exports.ErrPermissionDenied):
			httputil.WriteForbidden(w, "insufficient permissions for region "+req.Region)
		case errors.Is(err, exports.ErrUnknownKind):
			httputil.WriteBadRequest(w, err.Error())
		case run != nil:
			// The run record carries the failure detail.
			httputil.WriteJSON(w, http.StatusInternalServerError, run)
		default:
			httputil.WriteInternalError(w, err)
		}
		return
	}

	httputil.WriteCreated(w, run)
}

// list returns recent runs, newest first.
func (h *ExportHandlers) list(w http.ResponseWriter, r *http.Request) {
	runs := h.runner.List()
	if runs == nil {
		runs = []*exports.Export{}
	}
	httputil.WriteSuccess(w, ListExportsResponse{Exports: runs})
}

// get returns one run. Users without the exports capability can still
// see runs they started themselves.
func (h *ExportHandlers) get(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r)
	if user == nil {
		httputil.WriteUnauthorized(w, "authentication required")
		return
	}
	id, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}

	run, err := h.runner.Get(id)
	if err != nil {
		if errors.Is(err, exports.ErrNotFound) {
			httputil.WriteNotFound(w, "export not found")
			return
		}
		httputil.WriteInternalError(w, err)
		return
	}

	if run.RequestedBy != user.ID &&
		!h.evaluator.Check(user, authz.ResourceExports, authz.ActionRead, "") {
		httputil.WriteForbidden(w, "insufficient permissions")
		return
	}

	httputil.WriteSuccess(w, run)
}

// download streams a completed run's CSV back from the sink. Access
// follows the same owner-or-capability rule as get.
func (h *ExportHandlers) download(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r)
	if user == nil {
		httputil.WriteUnauthorized(w, "authentication required")
		return
	}
	id, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}

	run, err := h.runner.Get(id)
	if err != nil {
		if errors.Is(err, exports.ErrNotFound) {
			httputil.WriteNotFound(w, "export not found")
			return
		}
		httputil.WriteInternalError(w, err)
		return
	}

	if run.RequestedBy != user.ID &&
		!h.evaluator.Check(user, authz.ResourceExports, authz.ActionRead, "") {
		httputil.WriteForbidden(w, "insufficient permissions")
		return
	}

	_, reader, err := h.runner.Open(r.Context(), id)
	if err != nil {
		if errors.Is(err, exports.ErrNotReady) {
			httputil.WriteConflict(w, "export "+id+" is "+string(run.Status))
			return
		}
		httputil.WriteInternalError(w, err)
		return
	}
	defer reader.Close()

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+run.FileName+`"`)
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, reader); err != nil {
		// Headers are gone, nothing left to send but a log line.
		observability.GetLogger(r.Context()).Errorf("Streaming export %s failed: %v", id, err)
	}
}
