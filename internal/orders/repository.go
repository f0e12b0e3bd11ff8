package orders

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/technorecep1-spec/sus-tavuk-satis-sub000/internal/catalog"
	"github.com/technorecep1-spec/sus-tavuk-satis-sub000/internal/domain"
)

var (
	ErrOrderNotFound   = errors.New("order not found")
	ErrVersionConflict = errors.New("order was modified concurrently")
)

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Create inserts a new pending order. Inside one transaction it decrements
// stock for every line, captures unit prices as they are at that instant,
// and seeds the status history with the initial pending entry. Any line
// without enough stock aborts the whole order.
func (r *Repository) Create(ctx context.Context, order *domain.Order) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	order.ID = uuid.New().String()
	order.Status = domain.OrderStatusPending
	order.Version = 1
	now := time.Now().UTC()
	order.CreatedAt = now
	order.UpdatedAt = now

	order.Total = 0
	for i := range order.Items {
		item := &order.Items[i]

		err := tx.QueryRowContext(ctx, `
			UPDATE products
			SET stock = stock - $2, updated_at = NOW()
			WHERE id = $1 AND stock >= $2
			RETURNING price
		`, item.ProductID, item.Quantity).Scan(&item.UnitPrice)
		if err != nil {
			if err == sql.ErrNoRows {
				var exists bool
				if err := tx.QueryRowContext(ctx,
					`SELECT EXISTS (SELECT 1 FROM products WHERE id = $1)`,
					item.ProductID).Scan(&exists); err != nil {
					return err
				}
				if !exists {
					return fmt.Errorf("product %s: %w", item.ProductID, catalog.ErrProductNotFound)
				}
				return fmt.Errorf("product %s: %w", item.ProductID, catalog.ErrInsufficientStock)
			}
			return err
		}

		order.Total += int64(item.Quantity) * item.UnitPrice
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO orders (id, customer_id, customer_email, status, total, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
	`, order.ID, order.CustomerID, order.CustomerEmail, order.Status, order.Total, order.Version, now)
	if err != nil {
		return err
	}

	for _, item := range order.Items {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO order_items (id, order_id, product_id, quantity, unit_price)
			VALUES ($1, $2, $3, $4, $5)
		`, uuid.New().String(), order.ID, item.ProductID, item.Quantity, item.UnitPrice)
		if err != nil {
			return err
		}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO order_status_history (order_id, status, changed_by, note, changed_at)
		VALUES ($1, $2, $3, $4, $5)
	`, order.ID, order.Status, order.CustomerID, "order placed", now)
	if err != nil {
		return err
	}

	order.StatusHistory = []domain.StatusChange{{
		Status:    order.Status,
		ChangedBy: order.CustomerID,
		Note:      "order placed",
		ChangedAt: now,
	}}

	return tx.Commit()
}

func (r *Repository) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	order := &domain.Order{}

	err := r.db.QueryRowContext(ctx, `
		SELECT id, customer_id, customer_email, status, total,
		       is_paid, paid_at, is_delivered, delivered_at,
		       tracking_number, shipping_company, order_notes,
		       version, created_at, updated_at
		FROM orders
		WHERE id = $1
	`, id).Scan(&order.ID, &order.CustomerID, &order.CustomerEmail, &order.Status, &order.Total,
		&order.IsPaid, &order.PaidAt, &order.IsDelivered, &order.DeliveredAt,
		&order.TrackingNumber, &order.ShippingCompany, &order.OrderNotes,
		&order.Version, &order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT product_id, quantity, unit_price
		FROM order_items
		WHERE order_id = $1
	`, id)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var item domain.OrderItem
		if err := rows.Scan(&item.ProductID, &item.Quantity, &item.UnitPrice); err != nil {
			return nil, err
		}
		order.Items = append(order.Items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	historyRows, err := r.db.QueryContext(ctx, `
		SELECT status, changed_by, note, changed_at
		FROM order_status_history
		WHERE order_id = $1
		ORDER BY id
	`, id)
	if err != nil {
		return nil, err
	}
	defer func() { _ = historyRows.Close() }()

	for historyRows.Next() {
		var change domain.StatusChange
		if err := historyRows.Scan(&change.Status, &change.ChangedBy, &change.Note, &change.ChangedAt); err != nil {
			return nil, err
		}
		order.StatusHistory = append(order.StatusHistory, change)
	}
	if err := historyRows.Err(); err != nil {
		return nil, err
	}

	return order, nil
}

type ListFilter struct {
	Status domain.OrderStatus
	Limit  int
	Offset int
}

// List returns orders newest first with their line items batch-loaded.
// History is only loaded on GetByID; the back-office table view does not
// need it.
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]domain.Order, error) {
	limit := filter.Limit
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, customer_id, customer_email, status, total,
		       is_paid, paid_at, is_delivered, delivered_at,
		       tracking_number, shipping_company, order_notes,
		       version, created_at, updated_at
		FROM orders
		WHERE ($1 = '' OR status = $1)
		ORDER BY created_at DESC, id
		LIMIT $2 OFFSET $3
	`, string(filter.Status), limit, filter.Offset)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	orderMap := make(map[string]*domain.Order)
	var orderIDs []string

	for rows.Next() {
		var order domain.Order
		if err := rows.Scan(&order.ID, &order.CustomerID, &order.CustomerEmail, &order.Status, &order.Total,
			&order.IsPaid, &order.PaidAt, &order.IsDelivered, &order.DeliveredAt,
			&order.TrackingNumber, &order.ShippingCompany, &order.OrderNotes,
			&order.Version, &order.CreatedAt, &order.UpdatedAt); err != nil {
			return nil, err
		}
		order.Items = []domain.OrderItem{}
		orderMap[order.ID] = &order
		orderIDs = append(orderIDs, order.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(orderIDs) == 0 {
		return []domain.Order{}, nil
	}

	itemRows, err := r.db.QueryContext(ctx, `
		SELECT order_id, product_id, quantity, unit_price
		FROM order_items
		WHERE order_id = ANY($1)
	`, pq.Array(orderIDs))
	if err != nil {
		return nil, err
	}
	defer func() { _ = itemRows.Close() }()

	for itemRows.Next() {
		var orderID string
		var item domain.OrderItem
		if err := itemRows.Scan(&orderID, &item.ProductID, &item.Quantity, &item.UnitPrice); err != nil {
			return nil, err
		}
		order := orderMap[orderID]
		order.Items = append(order.Items, item)
	}
	if err := itemRows.Err(); err != nil {
		return nil, err
	}

	orders := make([]domain.Order, 0, len(orderIDs))
	for _, id := range orderIDs {
		orders = append(orders, *orderMap[id])
	}

	return orders, nil
}

type StatusChangeParams struct {
	NewStatus       domain.OrderStatus
	ActorID         string
	Note            string
	ExpectedVersion int
}

type StatusChangeResult struct {
	Order          *domain.Order
	PreviousStatus domain.OrderStatus
}

// ChangeStatus performs the status transition, the history append and, for
// cancellations, the restock of every line item as one transaction. The row
// lock makes the restock safe against concurrent checkouts; the optional
// version check surfaces concurrent admin edits instead of dropping one.
func (r *Repository) ChangeStatus(ctx context.Context, id string, params StatusChangeParams) (*StatusChangeResult, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	var current domain.OrderStatus
	var version int
	err = tx.QueryRowContext(ctx, `
		SELECT status, version FROM orders WHERE id = $1 FOR UPDATE
	`, id).Scan(&current, &version)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}

	if params.ExpectedVersion > 0 && params.ExpectedVersion != version {
		return nil, fmt.Errorf("%w: expected version %d, have %d", ErrVersionConflict, params.ExpectedVersion, version)
	}

	if !domain.CanTransition(current, params.NewStatus) {
		return nil, fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, current, params.NewStatus)
	}

	now := time.Now().UTC()

	_, err = tx.ExecContext(ctx, `
		UPDATE orders SET status = $2, version = version + 1, updated_at = $3
		WHERE id = $1
	`, id, params.NewStatus, now)
	if err != nil {
		return nil, err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO order_status_history (order_id, status, changed_by, note, changed_at)
		VALUES ($1, $2, $3, $4, $5)
	`, id, params.NewStatus, params.ActorID, params.Note, now)
	if err != nil {
		return nil, err
	}

	if params.NewStatus == domain.OrderStatusCancelled && current != domain.OrderStatusCancelled {
		if err := restockItems(ctx, tx, id); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	order, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	return &StatusChangeResult{Order: order, PreviousStatus: current}, nil
}

func restockItems(ctx context.Context, tx *sql.Tx, orderID string) error {
	rows, err := tx.QueryContext(ctx, `
		SELECT product_id, quantity FROM order_items WHERE order_id = $1
	`, orderID)
	if err != nil {
		return err
	}
	defer func() { _ = rows.Close() }()

	type line struct {
		productID string
		quantity  int
	}
	var lines []line
	for rows.Next() {
		var l line
		if err := rows.Scan(&l.productID, &l.quantity); err != nil {
			return err
		}
		lines = append(lines, l)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	for _, l := range lines {
		_, err := tx.ExecContext(ctx, `
			UPDATE products SET stock = stock + $2, updated_at = NOW()
			WHERE id = $1
		`, l.productID, l.quantity)
		if err != nil {
			return fmt.Errorf("restock product %s: %w", l.productID, err)
		}
	}

	return nil
}

// RecordShipment updates carrier metadata without touching the status or the
// audit trail. Tracking edits deliberately leave no history entry.
func (r *Repository) RecordShipment(ctx context.Context, id, trackingNumber, shippingCompany string) (*domain.Order, error) {
	return r.updateMetadata(ctx, id, `
		UPDATE orders SET tracking_number = $2, shipping_company = $3, updated_at = NOW()
		WHERE id = $1
	`, trackingNumber, shippingCompany)
}

func (r *Repository) UpdateNotes(ctx context.Context, id, notes string) (*domain.Order, error) {
	return r.updateMetadata(ctx, id, `
		UPDATE orders SET order_notes = $2, updated_at = NOW()
		WHERE id = $1
	`, notes)
}

func (r *Repository) MarkPaid(ctx context.Context, id string) (*domain.Order, error) {
	return r.updateMetadata(ctx, id, `
		UPDATE orders SET is_paid = TRUE, paid_at = NOW(), updated_at = NOW()
		WHERE id = $1
	`)
}

func (r *Repository) MarkDelivered(ctx context.Context, id string) (*domain.Order, error) {
	return r.updateMetadata(ctx, id, `
		UPDATE orders SET is_delivered = TRUE, delivered_at = NOW(), updated_at = NOW()
		WHERE id = $1
	`)
}

func (r *Repository) updateMetadata(ctx context.Context, id, query string, args ...any) (*domain.Order, error) {
	queryArgs := append([]any{id}, args...)
	result, err := r.db.ExecContext(ctx, query, queryArgs...)
	if err != nil {
		return nil, err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, err
	}

	if rowsAffected == 0 {
		return nil, ErrOrderNotFound
	}

	return r.GetByID(ctx, id)
}
