package web

import (
	"net/http"

	"bikeshop-pos/internal/core"

	"github.com/go-chi/chi/v5"
)

// apiListProducts handles GET /api/products. ?include_inactive=true lists deactivated products too.
func (h *Handler) apiListProducts(w http.ResponseWriter, r *http.Request) {
	includeInactive := r.URL.Query().Get("include_inactive") == "true"
	result, err := h.svc.ListProducts(r.Context(), includeInactive)
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}
	writeJSON(w, result)
}

// apiGetProduct handles GET /api/products/{ref}; ref is a numeric ID or a SKU.
func (h *Handler) apiGetProduct(w http.ResponseWriter, r *http.Request) {
	snap, err := h.svc.LookupProduct(r.Context(), chi.URLParam(r, "ref"))
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}
	writeJSON(w, snap)
}

func (h *Handler) apiCreateProduct(w http.ResponseWriter, r *http.Request) {
	var in core.ProductInput
	if !decodeJSON(w, r, &in) {
		return
	}
	p, err := h.svc.CreateProduct(r.Context(), in)
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, p)
}

func (h *Handler) apiUpdateProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var upd core.ProductUpdate
	if !decodeJSON(w, r, &upd) {
		return
	}
	p, err := h.svc.UpdateProduct(r.Context(), id, upd)
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}
	writeJSON(w, p)
}

func (h *Handler) apiDeactivateProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	p, err := h.svc.DeactivateProduct(r.Context(), id)
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}
	writeJSON(w, p)
}

func (h *Handler) apiListCategories(w http.ResponseWriter, r *http.Request) {
	cats, err := h.svc.ListCategories(r.Context())
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}
	writeJSON(w, map[string]any{"categories": cats})
}

func (h *Handler) apiCreateCategory(w http.ResponseWriter, r *http.Request) {
	var in core.CategoryInput
	if !decodeJSON(w, r, &in) {
		return
	}
	c, err := h.svc.CreateCategory(r.Context(), in)
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, c)
}

func (h *Handler) apiListSuppliers(w http.ResponseWriter, r *http.Request) {
	sups, err := h.svc.ListSuppliers(r.Context())
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}
	writeJSON(w, map[string]any{"suppliers": sups})
}

func (h *Handler) apiCreateSupplier(w http.ResponseWriter, r *http.Request) {
	var in core.SupplierInput
	if !decodeJSON(w, r, &in) {
		return
	}
	s, err := h.svc.CreateSupplier(r.Context(), in)
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, s)
}
