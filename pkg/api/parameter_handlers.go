package api

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/hdcn/ledenportaal/pkg/audit"
	"github.com/hdcn/ledenportaal/pkg/authz"
	"github.com/hdcn/ledenportaal/pkg/httputil"
	"github.com/hdcn/ledenportaal/pkg/middleware"
	"github.com/hdcn/ledenportaal/pkg/parameters"
)

// ParameterHandlers serves the configuration entries that drive the
// portal's dropdowns and the export schedule.
type ParameterHandlers struct {
	store     parameters.Store
	evaluator *authz.Evaluator
}

// NewParameterHandlers creates handlers for configuration parameters.
func NewParameterHandlers(store parameters.Store, evaluator *authz.Evaluator) *ParameterHandlers {
	return &ParameterHandlers{store: store, evaluator: evaluator}
}

// RegisterRoutes registers the parameter API routes. The regions
// convenience endpoint is open to every authenticated user because the
// frontend needs it to render region dropdowns; the raw parameter
// management routes require the parameters capability.
func (h *ParameterHandlers) RegisterRoutes(router *mux.Router) {
	read := middleware.RequirePermission(h.evaluator, authz.ResourceParameters, authz.ActionRead)
	write := middleware.RequirePermission(h.evaluator, authz.ResourceParameters, authz.ActionWrite)

	// Fixed route first so {category} never swallows it.
	router.HandleFunc("/parameters/regions", h.regions).Methods("GET")
	router.Handle("/parameters", read(http.HandlerFunc(h.categories))).Methods("GET")
	router.Handle("/parameters/{category}", read(http.HandlerFunc(h.listCategory))).Methods("GET")
	router.Handle("/parameters/{category}", write(http.HandlerFunc(h.create))).Methods("POST")
	router.Handle("/parameters/{category}/{name}", write(http.HandlerFunc(h.update))).Methods("PUT")
	router.Handle("/parameters/{category}/{name}", write(http.HandlerFunc(h.delete))).Methods("DELETE")
}

// regions returns the configured region identifiers in display order.
func (h *ParameterHandlers) regions(w http.ResponseWriter, r *http.Request) {
	regions, err := h.store.Regions(r.Context())
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}
	if regions == nil {
		regions = []string{}
	}
	httputil.WriteSuccess(w, map[string][]string{"regions": regions})
}

func (h *ParameterHandlers) categories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.store.Categories(r.Context())
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}
	if categories == nil {
		categories = []string{}
	}
	httputil.WriteSuccess(w, map[string][]string{"categories": categories})
}

func (h *ParameterHandlers) listCategory(w http.ResponseWriter, r *http.Request) {
	category, ok := httputil.ParsePathStringOrError(w, r, "category")
	if !ok {
		return
	}

	params, err := h.store.ListCategory(r.Context(), category)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}
	if params == nil {
		params = []*parameters.Parameter{}
	}
	httputil.WriteSuccess(w, map[string][]*parameters.Parameter{"parameters": params})
}

func (h *ParameterHandlers) create(w http.ResponseWriter, r *http.Request) {
	category, ok := httputil.ParsePathStringOrError(w, r, "category")
	if !ok {
		return
	}

	var param parameters.Parameter
	if !httputil.ParseJSONOrError(w, r, &param) {
		return
	}
	if !httputil.RequireNonEmpty(w, param.Name, "name") {
		return
	}
	if !httputil.RequireNonEmpty(w, param.Value, "value") {
		return
	}
	param.Category = category

	if err := h.store.Create(r.Context(), &param); err != nil {
		if errors.Is(err, parameters.ErrDuplicate) {
			httputil.WriteConflict(w, "parameter already exists")
			return
		}
		httputil.WriteInternalError(w, err)
		return
	}

	audit.RecordMutation(r.Context(), r, audit.EventTypeDataParameterCreate,
		authz.ResourceParameters, category+"/"+param.Name, nil, "parameter created")
	httputil.WriteCreated(w, param)
}

func (h *ParameterHandlers) update(w http.ResponseWriter, r *http.Request) {
	category, ok := httputil.ParsePathStringOrError(w, r, "category")
	if !ok {
		return
	}
	name, ok := httputil.ParsePathStringOrError(w, r, "name")
	if !ok {
		return
	}

	var req parameters.UpdateParameterRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	current, err := h.store.Get(r.Context(), category, name)
	if err != nil {
		if errors.Is(err, parameters.ErrNotFound) {
			httputil.WriteNotFound(w, "parameter not found")
			return
		}
		httputil.WriteInternalError(w, err)
		return
	}

	if err := h.store.Update(r.Context(), category, name, &req); err != nil {
		if errors.Is(err, parameters.ErrNotFound) {
			httputil.WriteNotFound(w, "parameter not found")
			return
		}
		httputil.WriteInternalError(w, err)
		return
	}

	updated, err := h.store.Get(r.Context(), category, name)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}

	var changes *audit.ChangeDetails
	if req.Value != nil && *req.Value != current.Value {
		changes = &audit.ChangeDetails{
			Before: map[string]interface{}{"value": current.Value},
			After:  map[string]interface{}{"value": *req.Value},
		}
	}

	audit.RecordMutation(r.Context(), r, audit.EventTypeDataParameterUpdate,
		authz.ResourceParameters, category+"/"+name, changes, "parameter updated")
	httputil.WriteSuccess(w, updated)
}

func (h *ParameterHandlers) delete(w http.ResponseWriter, r *http.Request) {
	category, ok := httputil.ParsePathStringOrError(w, r, "category")
	if !ok {
		return
	}
	name, ok := httputil.ParsePathStringOrError(w, r, "name")
	if !ok {
		return
	}

	if err := h.store.Delete(r.Context(), category, name); err != nil {
		if errors.Is(err, parameters.ErrNotFound) {
			httputil.WriteNotFound(w, "parameter not found")
			return
		}
		httputil.WriteInternalError(w, err)
		return
	}

	audit.RecordMutation(r.Context(), r, audit.EventTypeDataParameterDelete,
		authz.ResourceParameters, category+"/"+name, nil, "parameter deleted")
	httputil.WriteNoContent(w)
}
