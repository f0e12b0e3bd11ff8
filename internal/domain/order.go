package domain

import (
	"errors"
	"time"
)

type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusCompleted  OrderStatus = "completed"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

var (
	ErrInvalidStatus     = errors.New("invalid order status")
	ErrInvalidTransition = errors.New("invalid status transition")
)

// MaxStatusNoteLength caps the free-text note attached to a status change.
const MaxStatusNoteLength = 500

// Forward-or-cancel graph. Completed and cancelled are terminal.
var statusTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:    {OrderStatusProcessing, OrderStatusCancelled},
	OrderStatusProcessing: {OrderStatusShipped, OrderStatusCancelled},
	OrderStatusShipped:    {OrderStatusCompleted},
	OrderStatusCompleted:  {},
	OrderStatusCancelled:  {},
}

func ParseOrderStatus(s string) (OrderStatus, error) {
	status := OrderStatus(s)
	if _, ok := statusTransitions[status]; !ok {
		return "", ErrInvalidStatus
	}
	return status, nil
}

func (s OrderStatus) IsTerminal() bool {
	return len(statusTransitions[s]) == 0
}

// CanTransition reports whether an order may move from one status to another.
// Re-applying the current status is allowed on non-terminal orders; every
// application still appends a history entry.
func CanTransition(from, to OrderStatus) bool {
	if from == to {
		return !from.IsTerminal()
	}
	for _, next := range statusTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

type OrderItem struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
	UnitPrice int64  `json:"unit_price"`
}

// StatusChange is one entry in an order's append-only audit trail.
type StatusChange struct {
	Status    OrderStatus `json:"status"`
	ChangedBy string      `json:"changed_by"`
	Note      string      `json:"note,omitempty"`
	ChangedAt time.Time   `json:"changed_at"`
}

type Order struct {
	ID              string         `json:"id"`
	CustomerID      string         `json:"customer_id"`
	CustomerEmail   string         `json:"customer_email"`
	Items           []OrderItem    `json:"items"`
	Total           int64          `json:"total"`
	Status          OrderStatus    `json:"status"`
	IsPaid          bool           `json:"is_paid"`
	PaidAt          *time.Time     `json:"paid_at,omitempty"`
	IsDelivered     bool           `json:"is_delivered"`
	DeliveredAt     *time.Time     `json:"delivered_at,omitempty"`
	TrackingNumber  string         `json:"tracking_number,omitempty"`
	ShippingCompany string         `json:"shipping_company,omitempty"`
	OrderNotes      string         `json:"order_notes,omitempty"`
	StatusHistory   []StatusChange `json:"status_history,omitempty"`
	Version         int            `json:"version"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}
