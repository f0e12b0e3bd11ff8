package checkout

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/technorecep1-spec/sus-tavuk-satis-sub000/internal/cart"
	"github.com/technorecep1-spec/sus-tavuk-satis-sub000/internal/domain"
)

var ErrEmptyCart = errors.New("cart is empty")

// OrderCreator persists a new order, decrementing stock and capturing unit
// prices in one transaction. *orders.Repository is the implementation.
type OrderCreator interface {
	Create(ctx context.Context, order *domain.Order) error
}

type EventPublisher interface {
	Publish(ctx context.Context, topic, key string, event any) error
}

type Service struct {
	carts     cart.Store
	orders    OrderCreator
	publisher EventPublisher
	logger    *slog.Logger
}

func NewService(carts cart.Store, orders OrderCreator, publisher EventPublisher, logger *slog.Logger) *Service {
	return &Service{
		carts:     carts,
		orders:    orders,
		publisher: publisher,
		logger:    logger,
	}
}

// PlaceOrder turns the session's cart into a pending order. Stock is taken
// when the order row is written; any line without enough stock aborts the
// whole checkout. The cart is only cleared after the order exists, and a
// failed clear is logged rather than surfaced.
func (s *Service) PlaceOrder(ctx context.Context, sessionID, customerID, customerEmail string) (*domain.Order, error) {
	c, err := s.carts.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if c.IsEmpty() {
		return nil, ErrEmptyCart
	}

	order := &domain.Order{
		CustomerID:    customerID,
		CustomerEmail: customerEmail,
	}
	// The cart store is an open interface, so stored blobs may carry lines the
	// handler would never write. Non-positive quantities buy nothing; drop them.
	for _, item := range c.Items {
		if item.Quantity <= 0 {
			continue
		}
		order.Items = append(order.Items, domain.OrderItem{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
		})
	}
	if len(order.Items) == 0 {
		return nil, ErrEmptyCart
	}

	if err := s.orders.Create(ctx, order); err != nil {
		return nil, err
	}

	s.logger.Info("order placed", "order_id", order.ID, "customer_id", customerID, "total", order.Total)

	if s.publisher != nil {
		event := domain.OrderCreatedEvent{
			OrderID:       order.ID,
			CustomerID:    order.CustomerID,
			CustomerEmail: order.CustomerEmail,
			Items:         order.Items,
			Total:         order.Total,
			Timestamp:     time.Now().UTC(),
		}
		if err := s.publisher.Publish(ctx, domain.TopicOrderCreated, order.ID, event); err != nil {
			s.logger.Error("failed to publish order created event", "error", err, "order_id", order.ID)
		}
	}

	if err := s.carts.Clear(ctx, sessionID); err != nil {
		s.logger.Error("failed to clear cart after checkout", "error", err, "order_id", order.ID)
	}

	return order, nil
}
