package checkout

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/technorecep1-spec/sus-tavuk-satis-sub000/internal/catalog"
)

const sessionHeader = "X-Session-ID"

type Handler struct {
	service *Service
	logger  *slog.Logger
}

func NewHandler(service *Service, logger *slog.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

type placeOrderRequest struct {
	CustomerID    string `json:"customer_id"`
	CustomerEmail string `json:"customer_email"`
}

func (h *Handler) HandlePlaceOrder(w http.ResponseWriter, r *http.Request) {
	sessionID := r.Header.Get(sessionHeader)
	if sessionID == "" {
		h.writeError(w, http.StatusBadRequest, "missing session id")
		return
	}

	var req placeOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.CustomerID == "" {
		h.writeError(w, http.StatusBadRequest, "customer_id is required")
		return
	}
	if !strings.Contains(req.CustomerEmail, "@") {
		h.writeError(w, http.StatusBadRequest, "valid customer_email is required")
		return
	}

	order, err := h.service.PlaceOrder(r.Context(), sessionID, req.CustomerID, req.CustomerEmail)
	if err != nil {
		switch {
		case errors.Is(err, ErrEmptyCart):
			h.writeError(w, http.StatusBadRequest, "cart is empty")
		case errors.Is(err, catalog.ErrProductNotFound):
			h.writeError(w, http.StatusNotFound, err.Error())
		case errors.Is(err, catalog.ErrInsufficientStock):
			h.writeError(w, http.StatusConflict, err.Error())
		default:
			h.logger.Error("failed to place order", "error", err)
			h.writeError(w, http.StatusInternalServerError, "internal server error")
		}
		return
	}

	h.writeJSON(w, http.StatusCreated, order)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
