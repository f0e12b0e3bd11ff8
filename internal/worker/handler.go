package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/technorecep1-spec/sus-tavuk-satis-sub000/internal/domain"
)

// NotificationHandler turns order events into customer emails. Notification
// is best-effort: a failed send is logged and the event is still committed,
// so a dead mail provider never wedges the stream.
type NotificationHandler struct {
	emailServiceURL string
	httpClient      *http.Client
	logger          *slog.Logger
}

func NewNotificationHandler(emailServiceURL string, client *http.Client, logger *slog.Logger) *NotificationHandler {
	return &NotificationHandler{
		emailServiceURL: emailServiceURL,
		httpClient:      client,
		logger:          logger,
	}
}

func (h *NotificationHandler) HandleOrderCreated(ctx context.Context, payload []byte) error {
	var event domain.OrderCreatedEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return fmt.Errorf("unmarshal order created event: %w", err)
	}

	h.logger.Info("processing order created event", "order_id", event.OrderID, "customer_id", event.CustomerID)

	subject := "Siparişiniz alındı: " + event.OrderID
	body := fmt.Sprintf("Merhaba,\n\n%d kalemlik siparişiniz alındı. Toplam tutar: %.2f TL.\nSiparişiniz hazırlanmaya başlandığında tekrar haber vereceğiz.",
		len(event.Items), float64(event.Total)/100)

	if err := h.sendEmail(ctx, event.CustomerEmail, subject, body); err != nil {
		h.logger.Error("failed to send order confirmation", "error", err, "order_id", event.OrderID)
		return nil
	}

	h.logger.Info("order confirmation sent", "order_id", event.OrderID)
	return nil
}

func (h *NotificationHandler) HandleStatusChanged(ctx context.Context, payload []byte) error {
	var event domain.OrderStatusChangedEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return fmt.Errorf("unmarshal status changed event: %w", err)
	}

	h.logger.Info("processing status changed event",
		"order_id", event.OrderID, "from", event.OldStatus, "to", event.NewStatus)

	subject := fmt.Sprintf("Sipariş %s: %s", event.OrderID, statusLine(event.NewStatus))
	body := fmt.Sprintf("Merhaba,\n\n%s siparişinizin durumu güncellendi: %s.",
		event.OrderID, statusLine(event.NewStatus))

	if err := h.sendEmail(ctx, event.CustomerEmail, subject, body); err != nil {
		h.logger.Error("failed to send status update", "error", err, "order_id", event.OrderID)
		return nil
	}

	h.logger.Info("status update sent", "order_id", event.OrderID, "status", event.NewStatus)
	return nil
}

func statusLine(status domain.OrderStatus) string {
	switch status {
	case domain.OrderStatusPending:
		return "siparişiniz alındı"
	case domain.OrderStatusProcessing:
		return "siparişiniz hazırlanıyor"
	case domain.OrderStatusShipped:
		return "siparişiniz kargoya verildi"
	case domain.OrderStatusCompleted:
		return "siparişiniz teslim edildi"
	case domain.OrderStatusCancelled:
		return "siparişiniz iptal edildi"
	default:
		return string(status)
	}
}

func (h *NotificationHandler) sendEmail(ctx context.Context, to, subject, body string) error {
	payload := map[string]string{
		"to":      to,
		"subject": subject,
		"body":    body,
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.emailServiceURL+"/send", bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("email service returned status %d", resp.StatusCode)
	}

	return nil
}
