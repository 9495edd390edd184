package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"bikeshop-pos/internal/app"
	"bikeshop-pos/internal/core"
	"bikeshop-pos/internal/metrics"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// Config carries the router's collaborators.
type Config struct {
	AllowedOrigins []string
	JWTSecret      string
	Logger         *zap.Logger
	Metrics        *metrics.Metrics
	// Gatherer backs GET /metrics. Nil disables the endpoint.
	Gatherer prometheus.Gatherer
}

// Handler holds the ApplicationService and the chi router.
type Handler struct {
	svc       app.ApplicationService
	router    chi.Router
	jwtSecret string
	logger    *zap.Logger
}

// NewHandler creates and wires the chi router with all routes.
func NewHandler(svc app.ApplicationService, cfg Config) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	h := &Handler{
		svc:       svc,
		jwtSecret: cfg.JWTSecret,
		logger:    logger,
	}

	r := chi.NewRouter()
	r.Use(RequestID)
	r.Use(Logger(logger, cfg.Metrics))
	r.Use(Recoverer(logger))
	r.Use(CORS(cfg.AllowedOrigins))

	// ── Public ───────────────────────────────────────────────────────────────
	r.Get("/api/health", h.health)
	if cfg.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", metrics.Handler(cfg.Gatherer))
	}

	// ── Protected API routes (return 401 JSON if unauthenticated) ────────────
	r.Group(func(r chi.Router) {
		r.Use(h.RequireAuth)
		r.Use(RequestBodyLimit(1 << 20)) // 1 MB

		r.Get("/api/auth/me", h.me)

		// ── Catalog ──────────────────────────────────────────────────────────
		r.Get("/api/products", h.apiListProducts)
		r.Get("/api/products/{ref}", h.apiGetProduct)
		r.Get("/api/categories", h.apiListCategories)
		r.Get("/api/suppliers", h.apiListSuppliers)

		r.Group(func(r chi.Router) {
			r.Use(RequireRole(core.RoleAdmin, core.RoleManager))
			r.Post("/api/products", h.apiCreateProduct)
			r.Patch("/api/products/{id}", h.apiUpdateProduct)
			r.Post("/api/products/{id}/deactivate", h.apiDeactivateProduct)
			r.Post("/api/categories", h.apiCreateCategory)
			r.Post("/api/suppliers", h.apiCreateSupplier)
		})

		// ── Inventory ────────────────────────────────────────────────────────
		r.Get("/api/stock", h.apiStockLevels)
		r.Get("/api/stock/low", h.apiLowStock)
		r.Get("/api/dashboard", h.apiDashboard)

		// ── Goods receipts ───────────────────────────────────────────────────
		r.Get("/api/goods-receipts", h.apiListReceipts)
		r.Get("/api/goods-receipts/{id}", h.apiGetReceipt)
		r.Post("/api/goods-receipts", h.apiCreateReceipt)
		r.Group(func(r chi.Router) {
			r.Use(RequireRole(core.RoleAdmin, core.RoleManager))
			r.Post("/api/goods-receipts/{id}/approve", h.apiApproveReceipt)
			r.Post("/api/goods-receipts/{id}/cancel", h.apiCancelReceipt)
		})

		// ── Sales ────────────────────────────────────────────────────────────
		r.Get("/api/sales", h.apiListSales)
		r.Post("/api/sales", h.apiCompleteSale)
		r.Get("/api/sales/{ref}", h.apiGetSale)
		r.With(RequireRole(core.RoleAdmin, core.RoleManager)).Post("/api/sales/{ref}/cancel", h.apiCancelSale)

		// ── Operators ────────────────────────────────────────────────────────
		r.Group(func(r chi.Router) {
			r.Use(RequireRole(core.RoleAdmin))
			r.Get("/api/users", h.apiListUsers)
			r.Post("/api/users", h.apiCreateUser)
		})
	})

	h.router = r
	return r
}

// health reports liveness only; it does not touch storage.
func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{"status": "ok"})
}

// pathID parses a positive integer URL parameter, writing a 400 on failure.
func pathID(w http.ResponseWriter, r *http.Request, name string) (int, bool) {
	id, err := strconv.Atoi(chi.URLParam(r, name))
	if err != nil || id <= 0 {
		writeError(w, r, "invalid "+name+": must be a positive integer", app.CodeValidation, http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

// decodeJSON decodes the request body into v and returns false + writes an appropriate
// error response on failure. Returns HTTP 413 when the body exceeds the size limit set
// by RequestBodyLimit middleware; HTTP 400 for all other decode errors.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			writeError(w, r, "request body too large", "REQUEST_TOO_LARGE", http.StatusRequestEntityTooLarge)
			return false
		}
		writeError(w, r, "invalid JSON body: "+err.Error(), "BAD_REQUEST", http.StatusBadRequest)
		return false
	}
	return true
}
