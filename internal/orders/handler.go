package orders

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/technorecep1-spec/sus-tavuk-satis-sub000/internal/domain"
)

type Handler struct {
	lifecycle *Lifecycle
	logger    *slog.Logger
}

func NewHandler(lifecycle *Lifecycle, logger *slog.Logger) *Handler {
	return &Handler{
		lifecycle: lifecycle,
		logger:    logger,
	}
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		h.writeError(w, http.StatusBadRequest, "missing order id")
		return
	}

	order, err := h.lifecycle.Get(r.Context(), id)
	if err != nil {
		h.respondError(w, err, "failed to get order", "order_id", id)
		return
	}

	h.writeJSON(w, http.StatusOK, order)
}

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	filter := ListFilter{}
	if v := r.URL.Query().Get("status"); v != "" {
		status, err := domain.ParseOrderStatus(v)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "invalid status filter")
			return
		}
		filter.Status = status
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			h.writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		filter.Limit = n
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			h.writeError(w, http.StatusBadRequest, "invalid offset")
			return
		}
		filter.Offset = n
	}

	orders, err := h.lifecycle.List(r.Context(), filter)
	if err != nil {
		h.respondError(w, err, "failed to list orders")
		return
	}

	h.logger.Info("orders listed", "count", len(orders), "status", filter.Status)
	h.writeJSON(w, http.StatusOK, orders)
}

type changeStatusRequest struct {
	Status          string `json:"status"`
	ActorID         string `json:"actor_id"`
	Note            string `json:"note"`
	ExpectedVersion int    `json:"expected_version"`
}

func (h *Handler) HandleChangeStatus(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		h.writeError(w, http.StatusBadRequest, "missing order id")
		return
	}

	var req changeStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	order, err := h.lifecycle.ChangeStatus(r.Context(), id, ChangeStatusParams{
		NewStatus:       req.Status,
		ActorID:         req.ActorID,
		Note:            req.Note,
		ExpectedVersion: req.ExpectedVersion,
	})
	if err != nil {
		h.respondError(w, err, "failed to change order status", "order_id", id)
		return
	}

	h.writeJSON(w, http.StatusOK, order)
}

type bulkChangeStatusRequest struct {
	OrderIDs []string `json:"order_ids"`
	Status   string   `json:"status"`
	ActorID  string   `json:"actor_id"`
	Note     string   `json:"note"`
}

const maxBulkOrders = 100

func (h *Handler) HandleBulkChangeStatus(w http.ResponseWriter, r *http.Request) {
	var req bulkChangeStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if len(req.OrderIDs) == 0 {
		h.writeError(w, http.StatusBadRequest, "order_ids is required")
		return
	}
	if len(req.OrderIDs) > maxBulkOrders {
		h.writeError(w, http.StatusBadRequest, "too many order ids")
		return
	}

	results := h.lifecycle.BulkChangeStatus(r.Context(), req.OrderIDs, ChangeStatusParams{
		NewStatus: req.Status,
		ActorID:   req.ActorID,
		Note:      req.Note,
	})

	failed := 0
	for _, res := range results {
		if !res.OK {
			failed++
		}
	}
	h.logger.Info("bulk status change finished", "total", len(results), "failed", failed, "status", req.Status)

	h.writeJSON(w, http.StatusOK, map[string]any{"results": results})
}

type recordShipmentRequest struct {
	TrackingNumber  string `json:"tracking_number"`
	ShippingCompany string `json:"shipping_company"`
}

func (h *Handler) HandleRecordShipment(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		h.writeError(w, http.StatusBadRequest, "missing order id")
		return
	}

	var req recordShipmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.TrackingNumber == "" {
		h.writeError(w, http.StatusBadRequest, "tracking_number is required")
		return
	}

	order, err := h.lifecycle.RecordShipment(r.Context(), id, req.TrackingNumber, req.ShippingCompany)
	if err != nil {
		h.respondError(w, err, "failed to record shipment", "order_id", id)
		return
	}

	h.writeJSON(w, http.StatusOK, order)
}

type updateNotesRequest struct {
	Notes string `json:"notes"`
}

func (h *Handler) HandleUpdateNotes(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		h.writeError(w, http.StatusBadRequest, "missing order id")
		return
	}

	var req updateNotesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	order, err := h.lifecycle.UpdateNotes(r.Context(), id, req.Notes)
	if err != nil {
		h.respondError(w, err, "failed to update order notes", "order_id", id)
		return
	}

	h.writeJSON(w, http.StatusOK, order)
}

func (h *Handler) HandleMarkPaid(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		h.writeError(w, http.StatusBadRequest, "missing order id")
		return
	}

	order, err := h.lifecycle.MarkPaid(r.Context(), id)
	if err != nil {
		h.respondError(w, err, "failed to mark order paid", "order_id", id)
		return
	}

	h.writeJSON(w, http.StatusOK, order)
}

func (h *Handler) HandleMarkDelivered(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		h.writeError(w, http.StatusBadRequest, "missing order id")
		return
	}

	order, err := h.lifecycle.MarkDelivered(r.Context(), id)
	if err != nil {
		h.respondError(w, err, "failed to mark order delivered", "order_id", id)
		return
	}

	h.writeJSON(w, http.StatusOK, order)
}

func (h *Handler) respondError(w http.ResponseWriter, err error, msg string, args ...any) {
	switch {
	case errors.Is(err, ErrOrderNotFound):
		h.writeError(w, http.StatusNotFound, "order not found")
	case errors.Is(err, domain.ErrInvalidStatus),
		errors.Is(err, ErrMissingActor),
		errors.Is(err, ErrNoteTooLong):
		h.writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrInvalidTransition):
		h.writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, ErrVersionConflict):
		h.writeError(w, http.StatusConflict, err.Error())
	default:
		h.logger.Error(msg, append([]any{"error", err}, args...)...)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
	}
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
