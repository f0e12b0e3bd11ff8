package domain

import "time"

const (
	TopicOrderCreated       = "order.created"
	TopicOrderStatusChanged = "order.status_changed"
)

type OrderCreatedEvent struct {
	OrderID       string      `json:"order_id"`
	CustomerID    string      `json:"customer_id"`
	CustomerEmail string      `json:"customer_email"`
	Items         []OrderItem `json:"items"`
	Total         int64       `json:"total"`
	Timestamp     time.Time   `json:"timestamp"`
}

type OrderStatusChangedEvent struct {
	OrderID       string      `json:"order_id"`
	CustomerID    string      `json:"customer_id"`
	CustomerEmail string      `json:"customer_email"`
	OldStatus     OrderStatus `json:"old_status"`
	NewStatus     OrderStatus `json:"new_status"`
	ChangedBy     string      `json:"changed_by"`
	Timestamp     time.Time   `json:"timestamp"`
}
