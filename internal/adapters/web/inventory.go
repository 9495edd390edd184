package web

import (
	"net/http"
	"time"

	"bikeshop-pos/internal/app"
	"bikeshop-pos/internal/core"
)

func (h *Handler) apiStockLevels(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.GetStockLevels(r.Context())
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}
	writeJSON(w, result)
}

// apiLowStock handles GET /api/stock/low: OutOfStock first, then Critical, then LowStock.
func (h *Handler) apiLowStock(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.GetLowStock(r.Context())
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}
	writeJSON(w, result)
}

// apiDashboard handles GET /api/dashboard?day=YYYY-MM-DD (default today).
func (h *Handler) apiDashboard(w http.ResponseWriter, r *http.Request) {
	day := time.Now()
	if v := r.URL.Query().Get("day"); v != "" {
		parsed, err := time.ParseInLocation("2006-01-02", v, time.Local)
		if err != nil {
			writeError(w, r, "day must be YYYY-MM-DD", app.CodeValidation, http.StatusBadRequest)
			return
		}
		day = parsed
	}
	d, err := h.svc.GetDashboard(r.Context(), day)
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}

	type response struct {
		*core.Dashboard
		LowStockCount int `json:"low_stock_count"`
	}
	writeJSON(w, response{Dashboard: d, LowStockCount: d.LowStockCount()})
}
