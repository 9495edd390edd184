package web

import (
	"net/http"

	"bikeshop-pos/internal/core"
)

func (h *Handler) apiListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.svc.ListUsers(r.Context())
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}
	writeJSON(w, map[string]any{"users": users})
}

func (h *Handler) apiCreateUser(w http.ResponseWriter, r *http.Request) {
	var in core.UserInput
	if !decodeJSON(w, r, &in) {
		return
	}
	u, err := h.svc.CreateUser(r.Context(), in)
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, u)
}
