package web

import (
	"net/http"

	"bikeshop-pos/internal/core"
)

// apiListReceipts handles GET /api/goods-receipts?status=Draft|Approved|Cancelled.
func (h *Handler) apiListReceipts(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.ListReceipts(r.Context(), r.URL.Query().Get("status"))
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}
	writeJSON(w, result)
}

func (h *Handler) apiGetReceipt(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	receipt, err := h.svc.GetReceipt(r.Context(), id)
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}
	writeJSON(w, receipt)
}

// apiCreateReceipt handles POST /api/goods-receipts. The receipt is stored as Draft.
func (h *Handler) apiCreateReceipt(w http.ResponseWriter, r *http.Request) {
	var in core.GoodsReceiptInput
	if !decodeJSON(w, r, &in) {
		return
	}
	in.OperatorID = authFromContext(r.Context()).UserID

	receipt, err := h.svc.CreateReceipt(r.Context(), in)
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, receipt)
}

func (h *Handler) apiApproveReceipt(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	receipt, err := h.svc.ApproveReceipt(r.Context(), id, authFromContext(r.Context()).UserID)
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}
	writeJSON(w, receipt)
}

func (h *Handler) apiCancelReceipt(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	receipt, err := h.svc.CancelReceipt(r.Context(), id, authFromContext(r.Context()).UserID)
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}
	writeJSON(w, receipt)
}
