package gateway

import (
	"crypto/subtle"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"
)

const adminKeyHeader = "X-Admin-Key"

// Handler is the public edge: it forwards /api/* to the API service and
// gates the back-office routes behind the admin key before anything leaves
// the gateway.
type Handler struct {
	apiProxy *ServiceProxy
	adminKey string
	logger   *slog.Logger
}

func NewHandler(apiProxy *ServiceProxy, adminKey string, logger *slog.Logger) *Handler {
	return &Handler{
		apiProxy: apiProxy,
		adminKey: adminKey,
		logger:   logger,
	}
}

func (h *Handler) HandleAPI(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api")
	if path == "" {
		path = "/"
	}

	if strings.HasPrefix(path, "/admin/") && !h.authorizeAdmin(r) {
		h.logger.Warn("rejected admin request", "method", r.Method, "path", path)
		h.writeError(w, http.StatusUnauthorized, "invalid admin key")
		return
	}

	h.proxyRequest(w, r, path)
}

func (h *Handler) authorizeAdmin(r *http.Request) bool {
	if h.adminKey == "" {
		return false
	}
	key := r.Header.Get(adminKeyHeader)
	return subtle.ConstantTimeCompare([]byte(key), []byte(h.adminKey)) == 1
}

func (h *Handler) proxyRequest(w http.ResponseWriter, r *http.Request, path string) {
	resp, err := h.apiProxy.ForwardRequest(r.Context(), r, path)
	if err != nil {
		h.logger.Error("failed to forward request", "error", err, "path", path)
		h.writeError(w, http.StatusBadGateway, "service unavailable")
		return
	}
	defer func() { _ = resp.Body.Close() }()

	if contentType := resp.Header.Get("Content-Type"); contentType != "" {
		w.Header().Set("Content-Type", contentType)
	}

	w.WriteHeader(resp.StatusCode)

	h.logger.Info("request proxied", "method", r.Method, "path", path, "status", resp.StatusCode)

	if _, err := io.Copy(w, resp.Body); err != nil {
		h.logger.Error("failed to copy response body", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(map[string]string{"error": message}); err != nil {
		h.logger.Error("failed to encode error response", "error", err)
	}
}
