package api

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/hdcn/ledenportaal/pkg/audit"
	"github.com/hdcn/ledenportaal/pkg/authz"
	"github.com/hdcn/ledenportaal/pkg/httputil"
	"github.com/hdcn/ledenportaal/pkg/middleware"
	"github.com/hdcn/ledenportaal/pkg/products"
)

// ProductHandlers serves the club shop catalogue. Products are not
// region-scoped, so plain capability guards are enough.
type ProductHandlers struct {
	store     products.Store
	evaluator *authz.Evaluator
}

// NewProductHandlers creates handlers for the shop catalogue.
func NewProductHandlers(store products.Store, evaluator *authz.Evaluator) *ProductHandlers {
	return &ProductHandlers{store: store, evaluator: evaluator}
}

// RegisterRoutes registers the product API routes.
func (h *ProductHandlers) RegisterRoutes(router *mux.Router) {
	read := middleware.RequirePermission(h.evaluator, authz.ResourceProducts, authz.ActionRead)
	write := middleware.RequirePermission(h.evaluator, authz.ResourceProducts, authz.ActionWrite)

	router.Handle("/products", read(http.HandlerFunc(h.list))).Methods("GET")
	router.Handle("/products", write(http.HandlerFunc(h.create))).Methods("POST")
	router.Handle("/products/{id}", read(http.HandlerFunc(h.get))).Methods("GET")
	router.Handle("/products/{id}", write(http.HandlerFunc(h.update))).Methods("PUT")
	router.Handle("/products/{id}", write(http.HandlerFunc(h.delete))).Methods("DELETE")
}

func (h *ProductHandlers) list(w http.ResponseWriter, r *http.Request) {
	var filter products.Filter
	filter.Category = httputil.ParseQueryString(r, "category", "")
	if r.URL.Query().Has("available") {
		available, err := httputil.ParseQueryBool(r, "available", false)
		if err != nil {
			httputil.WriteBadRequest(w, "invalid available parameter")
			return
		}
		filter.Available = &available
	}

	limit, err := httputil.ParseQueryInt(r, "limit", 0)
	if err != nil || limit < 0 {
		httputil.WriteBadRequest(w, "invalid limit parameter")
		return
	}
	offset, err := httputil.ParseQueryInt(r, "offset", 0)
	if err != nil || offset < 0 {
		httputil.WriteBadRequest(w, "invalid offset parameter")
		return
	}
	filter.Limit = limit
	filter.Offset = offset

	list, err := h.store.List(r.Context(), filter)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}
	if list == nil {
		list = []*products.Product{}
	}

	httputil.WriteSuccess(w, ListProductsResponse{Products: list})
}

func (h *ProductHandlers) get(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}

	product, err := h.store.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, products.ErrNotFound) {
			httputil.WriteNotFound(w, "product not found")
			return
		}
		httputil.WriteInternalError(w, err)
		return
	}

	httputil.WriteSuccess(w, product)
}

func (h *ProductHandlers) create(w http.ResponseWriter, r *http.Request) {
	var product products.Product
	if !httputil.ParseJSONOrError(w, r, &product) {
		return
	}
	if !httputil.RequireNonEmpty(w, product.ID, "id") {
		return
	}
	if !httputil.RequireNonEmpty(w, product.Name, "name") {
		return
	}
	if product.PriceCents < 0 {
		httputil.WriteBadRequest(w, "price_cents must not be negative")
		return
	}

	if err := h.store.Create(r.Context(), &product); err != nil {
		if errors.Is(err, products.ErrDuplicate) {
			httputil.WriteConflict(w, "product id already taken")
			return
		}
		httputil.WriteInternalError(w, err)
		return
	}

	audit.RecordMutation(r.Context(), r, audit.EventTypeDataProductCreate,
		authz.ResourceProducts, product.ID, nil, "product created")
	httputil.WriteCreated(w, product)
}

func (h *ProductHandlers) update(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}

	var req products.UpdateProductRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if req.PriceCents != nil && *req.PriceCents < 0 {
		httputil.WriteBadRequest(w, "price_cents must not be negative")
		return
	}

	current, err := h.store.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, products.ErrNotFound) {
			httputil.WriteNotFound(w, "product not found")
			return
		}
		httputil.WriteInternalError(w, err)
		return
	}

	if err := h.store.Update(r.Context(), id, &req); err != nil {
		if errors.Is(err, products.ErrNotFound) {
			httputil.WriteNotFound(w, "product not found")
			return
		}
		httputil.WriteInternalError(w, err)
		return
	}

	updated, err := h.store.Get(r.Context(), id)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}

	audit.RecordMutation(r.Context(), r, audit.EventTypeDataProductUpdate,
		authz.ResourceProducts, id, productChanges(current, &req), "product updated")
	httputil.WriteSuccess(w, updated)
}

func (h *ProductHandlers) delete(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}

	current, err := h.store.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, products.ErrNotFound) {
			httputil.WriteNotFound(w, "product not found")
			return
		}
		httputil.WriteInternalError(w, err)
		return
	}

	if err := h.store.Delete(r.Context(), id); err != nil {
		if errors.Is(err, products.ErrNotFound) {
			httputil.WriteNotFound(w, "product not found")
			return
		}
		httputil.WriteInternalError(w, err)
		return
	}

	audit.RecordMutation(r.Context(), r, audit.EventTypeDataProductDelete,
		authz.ResourceProducts, id, &audit.ChangeDetails{
			Before: map[string]interface{}{
				"id":   current.ID,
				"name": current.Name,
			},
		}, "product deleted")
	httputil.WriteNoContent(w)
}

func productChanges(before *products.Product, updates *products.UpdateProductRequest) *audit.ChangeDetails {
	was := make(map[string]interface{})
	now := make(map[string]interface{})
	set := func(field string, old, changed interface{}) {
		was[field] = old
		now[field] = changed
	}

	if updates.Name != nil {
		set("name", before.Name, *updates.Name)
	}
	if updates.Description != nil {
		set("description", before.Description, *updates.Description)
	}
	if updates.PriceCents != nil {
		set("price_cents", before.PriceCents, *updates.PriceCents)
	}
	if updates.Category != nil {
		set("category", before.Category, *updates.Category)
	}
	if updates.Available != nil {
		set("available", before.Available, *updates.Available)
	}
	if updates.Stock != nil {
		set("stock", before.Stock, *updates.Stock)
	}

	if len(now) == 0 {
		return nil
	}
	return &audit.ChangeDetails{Before: was, After: now}
}
