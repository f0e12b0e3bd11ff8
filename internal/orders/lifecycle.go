package orders

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/technorecep1-spec/sus-tavuk-satis-sub000/internal/domain"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	ErrMissingActor = errors.New("actor id is required")
	ErrNoteTooLong  = fmt.Errorf("note exceeds %d characters", domain.MaxStatusNoteLength)
)

var statusChangeCounter, _ = otel.Meter("orders").Int64Counter(
	"orders.status_changes",
	metric.WithDescription("Order status transitions applied."),
)

// Store is the persistence boundary the lifecycle drives. *Repository is the
// Postgres implementation; tests supply an in-memory one.
type Store interface {
	GetByID(ctx context.Context, id string) (*domain.Order, error)
	List(ctx context.Context, filter ListFilter) ([]domain.Order, error)
	ChangeStatus(ctx context.Context, id string, params StatusChangeParams) (*StatusChangeResult, error)
	RecordShipment(ctx context.Context, id, trackingNumber, shippingCompany string) (*domain.Order, error)
	UpdateNotes(ctx context.Context, id, notes string) (*domain.Order, error)
	MarkPaid(ctx context.Context, id string) (*domain.Order, error)
	MarkDelivered(ctx context.Context, id string) (*domain.Order, error)
}

type EventPublisher interface {
	Publish(ctx context.Context, topic, key string, event any) error
}

// Lifecycle owns every mutation of an order after checkout: validated status
// transitions with their audit trail and cancellation restock, plus operator
// metadata edits. Customer notification rides on the status-changed event and
// is best-effort; a failed publish never rolls back the state change.
type Lifecycle struct {
	store     Store
	publisher EventPublisher
	logger    *slog.Logger
}

func NewLifecycle(store Store, publisher EventPublisher, logger *slog.Logger) *Lifecycle {
	return &Lifecycle{
		store:     store,
		publisher: publisher,
		logger:    logger,
	}
}

type ChangeStatusParams struct {
	NewStatus       string
	ActorID         string
	Note            string
	ExpectedVersion int
}

func (l *Lifecycle) ChangeStatus(ctx context.Context, orderID string, params ChangeStatusParams) (*domain.Order, error) {
	newStatus, err := domain.ParseOrderStatus(params.NewStatus)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", err, params.NewStatus)
	}
	if params.ActorID == "" {
		return nil, ErrMissingActor
	}
	if len(params.Note) > domain.MaxStatusNoteLength {
		return nil, ErrNoteTooLong
	}

	result, err := l.store.ChangeStatus(ctx, orderID, StatusChangeParams{
		NewStatus:       newStatus,
		ActorID:         params.ActorID,
		Note:            params.Note,
		ExpectedVersion: params.ExpectedVersion,
	})
	if err != nil {
		return nil, err
	}

	order := result.Order
	statusChangeCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("from", string(result.PreviousStatus)),
		attribute.String("to", string(order.Status)),
	))
	l.logger.Info("order status changed",
		"order_id", order.ID,
		"from", result.PreviousStatus,
		"to", order.Status,
		"actor", params.ActorID,
	)

	if l.publisher != nil {
		event := domain.OrderStatusChangedEvent{
			OrderID:       order.ID,
			CustomerID:    order.CustomerID,
			CustomerEmail: order.CustomerEmail,
			OldStatus:     result.PreviousStatus,
			NewStatus:     order.Status,
			ChangedBy:     params.ActorID,
			Timestamp:     time.Now().UTC(),
		}
		if err := l.publisher.Publish(ctx, domain.TopicOrderStatusChanged, order.ID, event); err != nil {
			l.logger.Error("failed to publish status changed event", "error", err, "order_id", order.ID)
		}
	}

	return order, nil
}

type BulkResult struct {
	OrderID string `json:"order_id"`
	OK      bool   `json:"ok"`
	Error   string `json:"error,omitempty"`
}

// BulkChangeStatus applies the same transition to each order in turn. A
// failure on one order never aborts the rest; results come back in input
// order so the caller can report exactly which ids were skipped.
func (l *Lifecycle) BulkChangeStatus(ctx context.Context, orderIDs []string, params ChangeStatusParams) []BulkResult {
	results := make([]BulkResult, 0, len(orderIDs))
	for _, id := range orderIDs {
		result := BulkResult{OrderID: id, OK: true}
		if _, err := l.ChangeStatus(ctx, id, params); err != nil {
			result.OK = false
			result.Error = err.Error()
		}
		results = append(results, result)
	}
	return results
}

func (l *Lifecycle) RecordShipment(ctx context.Context, orderID, trackingNumber, shippingCompany string) (*domain.Order, error) {
	if trackingNumber == "" {
		return nil, errors.New("tracking number is required")
	}

	order, err := l.store.RecordShipment(ctx, orderID, trackingNumber, shippingCompany)
	if err != nil {
		return nil, err
	}

	l.logger.Info("shipment recorded", "order_id", orderID, "tracking_number", trackingNumber, "shipping_company", shippingCompany)
	return order, nil
}

func (l *Lifecycle) UpdateNotes(ctx context.Context, orderID, notes string) (*domain.Order, error) {
	if len(notes) > domain.MaxStatusNoteLength {
		return nil, ErrNoteTooLong
	}
	return l.store.UpdateNotes(ctx, orderID, notes)
}

func (l *Lifecycle) MarkPaid(ctx context.Context, orderID string) (*domain.Order, error) {
	order, err := l.store.MarkPaid(ctx, orderID)
	if err != nil {
		return nil, err
	}
	l.logger.Info("order marked paid", "order_id", orderID)
	return order, nil
}

func (l *Lifecycle) MarkDelivered(ctx context.Context, orderID string) (*domain.Order, error) {
	order, err := l.store.MarkDelivered(ctx, orderID)
	if err != nil {
		return nil, err
	}
	l.logger.Info("order marked delivered", "order_id", orderID)
	return order, nil
}

func (l *Lifecycle) Get(ctx context.Context, orderID string) (*domain.Order, error) {
	return l.store.GetByID(ctx, orderID)
}

func (l *Lifecycle) List(ctx context.Context, filter ListFilter) ([]domain.Order, error) {
	return l.store.List(ctx, filter)
}
