package api

import (
	"encoding/json"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"durgatraders/m/internal/auth"
	"durgatraders/m/internal/billing"
	"durgatraders/m/internal/catalog"
)

// Options tune the HTTP surface. An empty CORSOrigins serves same-origin clients only.
type Options struct {
	StaticDir         string
	CORSOrigins       []string
	LowStockThreshold int64
	SecureCookies     bool
}

// Handler bundles dependencies for HTTP handlers.
type Handler struct {
	tiles  *catalog.Store
	bills  *billing.Ledger
	orders *billing.Processor
	auth   auth.Authenticator
	log    *zap.Logger
	opts   Options
}

// New constructs a Handler.
func New(tiles *catalog.Store, bills *billing.Ledger, orders *billing.Processor, authn auth.Authenticator, log *zap.Logger, opts Options) *Handler {
	return &Handler{tiles: tiles, bills: bills, orders: orders, auth: authn, log: log, opts: opts}
}

// Router wires up the HTTP API.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	if len(h.opts.CORSOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   h.opts.CORSOrigins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Content-Type", "Authorization"},
			AllowCredentials: !anyOrigin(h.opts.CORSOrigins),
		}))
	}

	r.Get("/health", h.health)

	r.Route("/api", func(r chi.Router) {
		r.Post("/login", h.login)
		r.Post("/logout", h.logout)
		r.Get("/auth/status", h.authStatus)

		r.Group(func(pr chi.Router) {
			pr.Use(h.authMiddleware)

			pr.Route("/tiles", func(r chi.Router) {
				r.Get("/", h.listTiles)
				r.Post("/", h.createTile)
				r.Get("/low-stock", h.lowStockTiles)
				r.Get("/{id}", h.getTile)
				r.Put("/{id}", h.updateTile)
				r.Delete("/{id}", h.deleteTile)
			})

			pr.Route("/bills", func(r chi.Router) {
				r.Post("/", h.createBill)
				r.Get("/", h.listBills)
				r.Get("/{id}", h.getBill)
			})

			pr.Get("/reports/sales", h.salesReport)
		})
	})

	if dir := h.opts.StaticDir; dir != "" {
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			r.Handle("/*", http.FileServer(http.Dir(dir)))
		}
	}

	return r
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Helpers

// anyOrigin reports whether origins contains the wildcard. Session cookies are never shared with a wildcard.
func anyOrigin(origins []string) bool {
	for _, o := range origins {
		if o == "*" {
			return true
		}
	}
	return false
}

func idParam(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func decodeJSON(r *http.Request, dest interface{}) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(dest)
}

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	encoder := json.NewEncoder(w)
	encoder.SetEscapeHTML(false)
	_ = encoder.Encode(payload)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if len(header) > len("bearer ") && strings.EqualFold(header[:len("bearer ")], "bearer ") {
		return strings.TrimSpace(header[len("bearer "):])
	}
	if c, err := r.Cookie(sessionCookie); err == nil {
		return c.Value
	}
	return ""
}

func requestID(r *http.Request) string {
	return middleware.GetReqID(r.Context())
}
