package web

import (
	"net/http"
	"strconv"

	"bikeshop-pos/internal/app"

	"github.com/go-chi/chi/v5"
)

// apiCompleteSale handles POST /api/sales. The response body is always a SaleResult;
// failures carry the status that matches their code.
func (h *Handler) apiCompleteSale(w http.ResponseWriter, r *http.Request) {
	var req app.CompleteSaleRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.OperatorID = authFromContext(r.Context()).UserID

	result := h.svc.CompleteSale(r.Context(), req)
	if !result.Success {
		writeJSONStatus(w, statusForCode(result.Code), result)
		return
	}
	writeJSONStatus(w, http.StatusCreated, result)
}

// apiListSales handles GET /api/sales?status=&from=YYYY-MM-DD&to=YYYY-MM-DD&limit=N.
func (h *Handler) apiListSales(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req := app.ListSalesRequest{
		Status: q.Get("status"),
		From:   q.Get("from"),
		To:     q.Get("to"),
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, r, "limit must be a non-negative integer", app.CodeValidation, http.StatusBadRequest)
			return
		}
		req.Limit = n
	}

	result, err := h.svc.ListSales(r.Context(), req)
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}
	writeJSON(w, result)
}

// apiGetSale handles GET /api/sales/{ref}; ref is a numeric ID or a sale number.
func (h *Handler) apiGetSale(w http.ResponseWriter, r *http.Request) {
	sale, err := h.svc.GetSale(r.Context(), chi.URLParam(r, "ref"))
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}
	writeJSON(w, sale)
}

func (h *Handler) apiCancelSale(w http.ResponseWriter, r *http.Request) {
	sale, err := h.svc.CancelSale(r.Context(), chi.URLParam(r, "ref"), authFromContext(r.Context()).UserID)
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}
	writeJSON(w, sale)
}
