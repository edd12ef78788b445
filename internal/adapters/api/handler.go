package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/poyrazK/dyndns/internal/adapters/identity"
	"github.com/poyrazK/dyndns/internal/core/domain"
	"github.com/poyrazK/dyndns/internal/core/ports"
	"github.com/poyrazK/dyndns/internal/infrastructure/logging"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Options carries the human-facing settings of the HTTP surface.
type Options struct {
	Logger        *slog.Logger
	Identity      ports.IdentityProvider
	Login         *identity.Login // nil when OIDC is not configured
	LoginURL      string
	SecureCookies bool
}

// APIHandler serves the DynDNS2 update endpoint and the ownership/key
// management endpoints.
type APIHandler struct {
	updates ports.UpdateService
	owners  ports.OwnershipService
	opts    Options
}

func NewAPIHandler(updates ports.UpdateService, owners ports.OwnershipService, opts Options) *APIHandler {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Identity == nil {
		opts.Identity = identity.Chain{}
	}
	if opts.LoginURL == "" {
		opts.LoginURL = "/auth/login"
	}
	return &APIHandler{updates: updates, owners: owners, opts: opts}
}

// Routes returns the fully wrapped router.
func (h *APIHandler) Routes() http.Handler {
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)
	return CorrelationMiddleware(h.opts.Logger)(mux)
}

func (h *APIHandler) RegisterRoutes(mux *http.ServeMux) {
	// Public Routes
	mux.HandleFunc("GET /health", h.HealthCheck)
	mux.Handle("GET /metrics", promhttp.Handler())

	// DynDNS2 clients use both paths and both methods.
	for _, p := range []string{"/nic/update", "/update"} {
		mux.HandleFunc("GET "+p, h.Update)
		mux.HandleFunc("POST "+p, h.Update)
	}

	mux.HandleFunc("GET /auth/login", h.opts.Login.HandleLogin)
	mux.HandleFunc("GET /auth/callback", h.opts.Login.HandleCallback)
	mux.HandleFunc("POST /auth/logout", identity.HandleLogout(h.opts.SecureCookies))

	// Session Routes
	who := IdentityMiddleware(h.opts.Identity)
	session := func(next http.HandlerFunc) http.Handler {
		return who(RequireIdentity(h.opts.LoginURL)(next))
	}
	mux.Handle("GET /manage/{hostname}", session(h.Dashboard))
	mux.Handle("POST /manage/{hostname}/keys", session(h.GenerateKey))
	mux.Handle("POST /manage/{hostname}/keys/revoke", session(h.RevokeKey))
	mux.Handle("POST /manage/{hostname}/keys/revoke-all", session(h.RevokeAll))
}

// Update answers with a bare DynDNS2 token in a text/plain body.
func (h *APIHandler) Update(w http.ResponseWriter, r *http.Request) {
	code := h.updates.Update(r.Context(), ports.UpdateRequest{
		Authorization: r.Header.Get("Authorization"),
		Hostname:      r.FormValue("hostname"),
		MyIP:          r.FormValue("myip"),
		HTTP:          r,
	})

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	if code == domain.ResultBadAuth {
		w.Header().Set("WWW-Authenticate", `Basic realm="dyndns"`)
	}
	w.WriteHeader(code.HTTPStatus())
	if _, err := io.WriteString(w, string(code)); err != nil {
		logging.FromContext(r.Context()).Debug("failed to write update response", "error", err)
	}
}

func (h *APIHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	status := "UP"
	details := make(map[string]string)
	checks := h.updates.HealthCheck(r.Context())

	for name, checkErr := range checks {
		if checkErr != nil {
			status = "DEGRADED"
			details[name] = checkErr.Error()
		} else {
			details[name] = "OK"
		}
	}

	resp := map[string]interface{}{
		"status":  status,
		"details": details,
	}

	code := http.StatusOK
	if status == "DEGRADED" {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, r, code, resp)
}

func (h *APIHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	caller := IdentityFrom(r.Context())
	dash, err := h.owners.Dashboard(r.Context(), r.PathValue("hostname"), *caller)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, dash)
}

func (h *APIHandler) GenerateKey(w http.ResponseWriter, r *http.Request) {
	caller := IdentityFrom(r.Context())
	hostname := r.PathValue("hostname")
	secret, err := h.owners.GenerateKey(r.Context(), hostname, *caller)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	// The secret is shown once; it is not retrievable afterwards.
	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, r, http.StatusCreated, map[string]string{"hostname": hostname, "key": secret})
}

func (h *APIHandler) RevokeKey(w http.ResponseWriter, r *http.Request) {
	keyHash := r.FormValue("keyhash")
	if keyHash == "" {
		http.Error(w, "missing keyhash", http.StatusBadRequest)
		return
	}
	caller := IdentityFrom(r.Context())
	revoked, err := h.owners.RevokeKey(r.Context(), r.PathValue("hostname"), keyHash, *caller)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]bool{"revoked": revoked})
}

func (h *APIHandler) RevokeAll(w http.ResponseWriter, r *http.Request) {
	caller := IdentityFrom(r.Context())
	n, err := h.owners.RevokeAll(r.Context(), r.PathValue("hostname"), *caller)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]int{"revoked": n})
}

func (h *APIHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrForbidden):
		http.Error(w, "Forbidden: hostname is owned by another user", http.StatusForbidden)
	case errors.Is(err, domain.ErrInvalidHostname):
		http.Error(w, "Invalid hostname", http.StatusBadRequest)
	case errors.Is(err, domain.ErrNotFound):
		http.Error(w, "Not found", http.StatusNotFound)
	case errors.Is(err, domain.ErrUnauthenticated):
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
	default:
		logging.FromContext(r.Context()).Error("manage request failed", "path", r.URL.Path, "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, r *http.Request, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.FromContext(r.Context()).Error("failed to encode response", "error", err)
	}
}
