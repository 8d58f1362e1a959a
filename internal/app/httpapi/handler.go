// Package httpapi exposes the storefront REST API. It is a thin layer over
// the orders service: decoding, error-to-status mapping and static assets
// live here, all admission decisions live in the service.
package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/mardaloop/bakery-backend/internal/app/domain/order"
	"github.com/mardaloop/bakery-backend/internal/app/services/orders"
	"github.com/mardaloop/bakery-backend/internal/app/storage"
	"github.com/mardaloop/bakery-backend/internal/auth/initdata"
	"github.com/mardaloop/bakery-backend/internal/middleware"
	"github.com/mardaloop/bakery-backend/internal/ratelimit"
	"github.com/mardaloop/bakery-backend/pkg/logger"
)

// Config carries the handler's collaborators and static asset locations.
// TrustProxy controls whether X-Forwarded-For is honored for the rate limit
// identity.
type Config struct {
	Orders     *orders.Service
	MenuPath   string
	StaticDir  string
	TrustProxy bool
	Logger     *logger.Logger
}

type handler struct {
	orders     *orders.Service
	menuPath   string
	staticDir  string
	trustProxy bool
	log        *logger.Logger
}

// NewHandler returns a router exposing the storefront API.
func NewHandler(cfg Config) http.Handler {
	log := cfg.Logger
	if log == nil {
		log = logger.NewDefault("httpapi")
	}
	h := &handler{
		orders:     cfg.Orders,
		menuPath:   cfg.MenuPath,
		staticDir:  cfg.StaticDir,
		trustProxy: cfg.TrustProxy,
		log:        log,
	}

	r := mux.NewRouter()
	r.HandleFunc("/", h.index).Methods(http.MethodGet)
	r.HandleFunc("/menu.json", h.menu).Methods(http.MethodGet)
	r.HandleFunc("/health", h.health).Methods(http.MethodGet)
	r.HandleFunc("/api/order", h.createOrder).Methods(http.MethodPost)
	r.HandleFunc("/api/orders/history", h.orderHistory).Methods(http.MethodGet)
	r.HandleFunc("/api/orders/{id:[0-9]+}", h.getOrder).Methods(http.MethodGet)
	return r
}

func (h *handler) index(w http.ResponseWriter, r *http.Request) {
	http.ServeFile(w, r, filepath.Join(h.staticDir, "index.html"))
}

func (h *handler) menu(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "public, max-age=300")
	http.ServeFile(w, r, h.menuPath)
}

func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	count, err := h.orders.Count(r.Context())
	if err != nil {
		h.log.WithContext(r.Context()).WithError(err).Error("health check failed")
		writeError(w, http.StatusServiceUnavailable, errors.New("service unhealthy"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":       "healthy",
		"database":     "connected",
		"orders_count": count,
		"timestamp":    time.Now().UTC().Format(time.RFC3339),
	})
}

func (h *handler) createOrder(w http.ResponseWriter, r *http.Request) {
	var sub order.Submission
	if err := decodeJSON(r.Body, &sub); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	created, _, err := h.orders.Submit(r.Context(), middleware.ClientIP(r, h.trustProxy), sub)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"order_id":        created.ID,
		"status":          created.Status,
		"estimated_ready": "15-20 min",
		"total":           created.Total,
	})
}

func (h *handler) orderHistory(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))

	history, err := h.orders.History(r.Context(), q.Get("init_data"), q.Get("user_id"), limit)
	if err != nil {
		// History treats an identity mismatch as an authentication failure
		// rather than leaking that the records exist.
		if errors.Is(err, orders.ErrAccessDenied) {
			writeError(w, http.StatusUnauthorized, errors.New("unauthorized"))
			return
		}
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, history)
}

func (h *handler) getOrder(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid order id"))
		return
	}

	ord, err := h.orders.Get(r.Context(), r.URL.Query().Get("init_data"), id)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ord)
}

// writeServiceError maps service errors onto HTTP statuses: authentication
// failures are 401, rate limiting 429, validation failures 400, ownership
// violations 403, missing records 404.
func (h *handler) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, initdata.ErrMalformedPayload),
		errors.Is(err, initdata.ErrInvalidSignature),
		errors.Is(err, initdata.ErrExpiredSignature),
		errors.Is(err, initdata.ErrMalformedUser):
		writeError(w, http.StatusUnauthorized, errors.New("invalid authentication"))
	case errors.Is(err, ratelimit.ErrRateLimited):
		w.Header().Set("Retry-After", "60")
		writeError(w, http.StatusTooManyRequests, errors.New("rate limit exceeded, try again in a minute"))
	case errors.Is(err, orders.ErrAccessDenied):
		writeError(w, http.StatusForbidden, errors.New("access denied"))
	case errors.Is(err, storage.ErrNotFound):
		writeError(w, http.StatusNotFound, errors.New("order not found"))
	case isValidationError(err):
		writeError(w, http.StatusBadRequest, err)
	default:
		h.log.WithError(err).Error("request failed")
		writeError(w, http.StatusInternalServerError, errors.New("internal server error"))
	}
}

func isValidationError(err error) bool {
	var mismatch *orders.TotalMismatchError
	return errors.Is(err, orders.ErrEmptyOrder) ||
		errors.Is(err, orders.ErrTooManyItems) ||
		errors.Is(err, orders.ErrInvalidQuantity) ||
		errors.Is(err, orders.ErrInvalidPrice) ||
		errors.Is(err, orders.ErrInvalidTotal) ||
		errors.Is(err, orders.ErrNoteTooLong) ||
		errors.As(err, &mismatch)
}

func decodeJSON(body io.ReadCloser, dst interface{}) error {
	defer body.Close()
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}
