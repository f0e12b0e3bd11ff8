//go:build integration

package test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/technorecep1-spec/sus-tavuk-satis-sub000/internal/cart"
	"github.com/technorecep1-spec/sus-tavuk-satis-sub000/internal/catalog"
	"github.com/technorecep1-spec/sus-tavuk-satis-sub000/internal/checkout"
	"github.com/technorecep1-spec/sus-tavuk-satis-sub000/internal/domain"
	"github.com/technorecep1-spec/sus-tavuk-satis-sub000/internal/messaging"
	"github.com/technorecep1-spec/sus-tavuk-satis-sub000/internal/orders"
	"github.com/technorecep1-spec/sus-tavuk-satis-sub000/internal/worker"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func createProduct(ctx context.Context, t *testing.T, repo *catalog.ProductRepository, name string, price int64, stock int) *domain.Product {
	t.Helper()
	product := &domain.Product{
		Name:     name,
		Category: "tavuk",
		Price:    price,
		Stock:    stock,
	}
	if err := repo.Create(ctx, product); err != nil {
		t.Fatalf("failed to create product: %v", err)
	}
	return product
}

func TestCheckoutToCompletionFlow(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	pg := SetupPostgres(ctx, t)
	defer pg.Cleanup()

	redisAddr, redisCleanup := SetupRedis(ctx, t)
	defer redisCleanup()

	db, err := ShopDB(pg.ConnStr)
	if err != nil {
		t.Fatalf("failed to open shop DB: %v", err)
	}
	defer func() { _ = db.Close() }()

	logger := discardLogger()

	productRepo := catalog.NewProductRepository(db)
	product := createProduct(ctx, t, productRepo, "Silkie tavuk", 95000, 10)

	cartStore := cart.NewRedisStore(redisAddr, "", 0)
	defer func() { _ = cartStore.Close() }()

	sessionID := "sess-flow-1"
	if err := cartStore.Put(ctx, sessionID, &domain.Cart{
		Items: []domain.CartItem{{ProductID: product.ID, Quantity: 3}},
	}); err != nil {
		t.Fatalf("failed to store cart: %v", err)
	}

	orderRepo := orders.NewRepository(db)
	checkoutService := checkout.NewService(cartStore, orderRepo, nil, logger)

	order, err := checkoutService.PlaceOrder(ctx, sessionID, "cust-1", "cust-1@example.com")
	if err != nil {
		t.Fatalf("failed to place order: %v", err)
	}

	if order.Status != domain.OrderStatusPending {
		t.Fatalf("expected status %s, got %s", domain.OrderStatusPending, order.Status)
	}
	if order.Total != 3*95000 {
		t.Fatalf("expected total %d, got %d", 3*95000, order.Total)
	}
	if len(order.StatusHistory) != 1 {
		t.Fatalf("expected 1 history entry after checkout, got %d", len(order.StatusHistory))
	}

	updated, err := productRepo.GetByID(ctx, product.ID)
	if err != nil {
		t.Fatalf("failed to get product: %v", err)
	}
	if updated.Stock != 7 {
		t.Fatalf("expected stock 7 after checkout, got %d", updated.Stock)
	}

	c, err := cartStore.Get(ctx, sessionID)
	if err != nil {
		t.Fatalf("failed to get cart: %v", err)
	}
	if !c.IsEmpty() {
		t.Fatal("expected cart to be cleared after checkout")
	}

	lifecycle := orders.NewLifecycle(orderRepo, nil, logger)

	for i, status := range []string{"processing", "shipped"} {
		order, err = lifecycle.ChangeStatus(ctx, order.ID, orders.ChangeStatusParams{
			NewStatus: status,
			ActorID:   "admin-1",
		})
		if err != nil {
			t.Fatalf("failed to change status to %s: %v", status, err)
		}
		if len(order.StatusHistory) != i+2 {
			t.Fatalf("expected %d history entries after %s, got %d", i+2, status, len(order.StatusHistory))
		}
	}

	if order.IsDelivered {
		t.Fatal("shipped order must not be marked delivered")
	}

	// Tracking metadata changes without touching the audit trail.
	order, err = lifecycle.RecordShipment(ctx, order.ID, "TRK-123", "Aras Kargo")
	if err != nil {
		t.Fatalf("failed to record shipment: %v", err)
	}
	if order.TrackingNumber != "TRK-123" {
		t.Fatalf("expected tracking number TRK-123, got %s", order.TrackingNumber)
	}
	if len(order.StatusHistory) != 3 {
		t.Fatalf("expected shipment to leave history at 3 entries, got %d", len(order.StatusHistory))
	}

	if _, err := lifecycle.MarkPaid(ctx, order.ID); err != nil {
		t.Fatalf("failed to mark paid: %v", err)
	}
	if _, err := lifecycle.MarkDelivered(ctx, order.ID); err != nil {
		t.Fatalf("failed to mark delivered: %v", err)
	}

	order, err = lifecycle.ChangeStatus(ctx, order.ID, orders.ChangeStatusParams{
		NewStatus: "completed",
		ActorID:   "admin-1",
	})
	if err != nil {
		t.Fatalf("failed to complete order: %v", err)
	}
	if !order.IsPaid || !order.IsDelivered {
		t.Fatalf("expected completed order paid and delivered, got paid=%v delivered=%v", order.IsPaid, order.IsDelivered)
	}
	if len(order.StatusHistory) != 4 {
		t.Fatalf("expected 4 history entries, got %d", len(order.StatusHistory))
	}
}

func TestCancellationRestocksProducts(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	pg := SetupPostgres(ctx, t)
	defer pg.Cleanup()

	db, err := ShopDB(pg.ConnStr)
	if err != nil {
		t.Fatalf("failed to open shop DB: %v", err)
	}
	defer func() { _ = db.Close() }()

	logger := discardLogger()
	productRepo := catalog.NewProductRepository(db)
	product := createProduct(ctx, t, productRepo, "Brahma civciv", 35000, 20)

	orderRepo := orders.NewRepository(db)
	order := &domain.Order{
		CustomerID:    "cust-2",
		CustomerEmail: "cust-2@example.com",
		Items:         []domain.OrderItem{{ProductID: product.ID, Quantity: 4}},
	}
	if err := orderRepo.Create(ctx, order); err != nil {
		t.Fatalf("failed to create order: %v", err)
	}

	afterOrder, err := productRepo.GetByID(ctx, product.ID)
	if err != nil {
		t.Fatalf("failed to get product: %v", err)
	}
	if afterOrder.Stock != 16 {
		t.Fatalf("expected stock 16 after order, got %d", afterOrder.Stock)
	}

	lifecycle := orders.NewLifecycle(orderRepo, nil, logger)
	cancelled, err := lifecycle.ChangeStatus(ctx, order.ID, orders.ChangeStatusParams{
		NewStatus: "cancelled",
		ActorID:   "admin-1",
		Note:      "customer request",
	})
	if err != nil {
		t.Fatalf("failed to cancel order: %v", err)
	}
	if cancelled.Status != domain.OrderStatusCancelled {
		t.Fatalf("expected status cancelled, got %s", cancelled.Status)
	}

	restocked, err := productRepo.GetByID(ctx, product.ID)
	if err != nil {
		t.Fatalf("failed to get product: %v", err)
	}
	if restocked.Stock != 20 {
		t.Fatalf("expected stock restored to 20, got %d", restocked.Stock)
	}

	// Cancelled is terminal, so a second cancel cannot restock again.
	_, err = lifecycle.ChangeStatus(ctx, order.ID, orders.ChangeStatusParams{
		NewStatus: "cancelled",
		ActorID:   "admin-1",
	})
	if !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("expected invalid transition on second cancel, got %v", err)
	}

	final, err := productRepo.GetByID(ctx, product.ID)
	if err != nil {
		t.Fatalf("failed to get product: %v", err)
	}
	if final.Stock != 20 {
		t.Fatalf("expected stock unchanged at 20, got %d", final.Stock)
	}
}

func TestStatusChangeVersionConflict(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	pg := SetupPostgres(ctx, t)
	defer pg.Cleanup()

	db, err := ShopDB(pg.ConnStr)
	if err != nil {
		t.Fatalf("failed to open shop DB: %v", err)
	}
	defer func() { _ = db.Close() }()

	productRepo := catalog.NewProductRepository(db)
	product := createProduct(ctx, t, productRepo, "Sebright horoz", 120000, 5)

	orderRepo := orders.NewRepository(db)
	order := &domain.Order{
		CustomerID:    "cust-3",
		CustomerEmail: "cust-3@example.com",
		Items:         []domain.OrderItem{{ProductID: product.ID, Quantity: 1}},
	}
	if err := orderRepo.Create(ctx, order); err != nil {
		t.Fatalf("failed to create order: %v", err)
	}

	lifecycle := orders.NewLifecycle(orderRepo, nil, discardLogger())

	updated, err := lifecycle.ChangeStatus(ctx, order.ID, orders.ChangeStatusParams{
		NewStatus:       "processing",
		ActorID:         "admin-1",
		ExpectedVersion: 1,
	})
	if err != nil {
		t.Fatalf("failed to change status: %v", err)
	}
	if updated.Version != 2 {
		t.Fatalf("expected version 2 after change, got %d", updated.Version)
	}

	// A second admin still holding version 1 must get a conflict.
	_, err = lifecycle.ChangeStatus(ctx, order.ID, orders.ChangeStatusParams{
		NewStatus:       "cancelled",
		ActorID:         "admin-2",
		ExpectedVersion: 1,
	})
	if !errors.Is(err, orders.ErrVersionConflict) {
		t.Fatalf("expected version conflict, got %v", err)
	}
}

func TestBulkStatusChange(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	pg := SetupPostgres(ctx, t)
	defer pg.Cleanup()

	db, err := ShopDB(pg.ConnStr)
	if err != nil {
		t.Fatalf("failed to open shop DB: %v", err)
	}
	defer func() { _ = db.Close() }()

	productRepo := catalog.NewProductRepository(db)
	product := createProduct(ctx, t, productRepo, "Kuluçkalık yumurta", 45000, 50)

	orderRepo := orders.NewRepository(db)
	var ids []string
	for i := 0; i < 2; i++ {
		order := &domain.Order{
			CustomerID:    "cust-bulk",
			CustomerEmail: "bulk@example.com",
			Items:         []domain.OrderItem{{ProductID: product.ID, Quantity: 1}},
		}
		if err := orderRepo.Create(ctx, order); err != nil {
			t.Fatalf("failed to create order %d: %v", i, err)
		}
		ids = append(ids, order.ID)
	}

	lifecycle := orders.NewLifecycle(orderRepo, nil, discardLogger())

	results := lifecycle.BulkChangeStatus(ctx, []string{ids[0], "missing-order", ids[1]}, orders.ChangeStatusParams{
		NewStatus: "processing",
		ActorID:   "admin-1",
	})

	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	if !results[0].OK || !results[2].OK {
		t.Fatalf("expected valid orders to succeed: %+v", results)
	}
	if results[1].OK {
		t.Fatal("expected missing order to fail")
	}

	for _, id := range ids {
		order, err := orderRepo.GetByID(ctx, id)
		if err != nil {
			t.Fatalf("failed to get order %s: %v", id, err)
		}
		if order.Status != domain.OrderStatusProcessing {
			t.Fatalf("expected order %s processing, got %s", id, order.Status)
		}
	}
}

type emailCapture struct {
	mu     sync.Mutex
	emails []map[string]string
}

func (e *emailCapture) handler(w http.ResponseWriter, r *http.Request) {
	var req map[string]string
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}

	e.mu.Lock()
	e.emails = append(e.emails, req)
	e.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, `{"status":"sent"}`)
}

func (e *emailCapture) getEmails() []map[string]string {
	e.mu.Lock()
	defer e.mu.Unlock()
	result := make([]map[string]string, len(e.emails))
	copy(result, e.emails)
	return result
}

func TestStatusChangedEventNotifiesCustomer(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	brokers, cleanup := SetupKafka(ctx, t)
	defer cleanup()

	logger := discardLogger()

	emailCap := &emailCapture{}
	emailMux := http.NewServeMux()
	emailMux.HandleFunc("POST /send", emailCap.handler)
	emailServer := httptest.NewServer(emailMux)
	defer emailServer.Close()

	producer := messaging.NewProducer(brokers)
	defer func() { _ = producer.Close() }()

	event := domain.OrderStatusChangedEvent{
		OrderID:       "ord-evt-1",
		CustomerID:    "cust-evt",
		CustomerEmail: "cust-evt@example.com",
		OldStatus:     domain.OrderStatusProcessing,
		NewStatus:     domain.OrderStatusShipped,
		ChangedBy:     "admin-1",
		Timestamp:     time.Now().UTC(),
	}
	if err := producer.Publish(ctx, domain.TopicOrderStatusChanged, event.OrderID, event); err != nil {
		t.Fatalf("failed to publish event: %v", err)
	}

	httpClient := &http.Client{Timeout: 10 * time.Second}
	notificationHandler := worker.NewNotificationHandler(emailServer.URL, httpClient, logger)

	consumer := messaging.NewConsumer(brokers, domain.TopicOrderStatusChanged, "test-worker", logger,
		messaging.WithStartOffset(kafka.FirstOffset))
	defer func() { _ = consumer.Close() }()

	consumerCtx, stopConsumer := context.WithCancel(ctx)
	defer stopConsumer()

	go func() {
		_ = consumer.Consume(consumerCtx, notificationHandler.HandleStatusChanged)
	}()

	deadline := time.After(90 * time.Second)
	for {
		if emails := emailCap.getEmails(); len(emails) > 0 {
			email := emails[0]
			if email["to"] != "cust-evt@example.com" {
				t.Fatalf("expected email to cust-evt@example.com, got %s", email["to"])
			}
			if !strings.Contains(email["subject"], "ord-evt-1") {
				t.Fatalf("expected subject to contain order id, got: %s", email["subject"])
			}
			return
		}
		select {
		case <-deadline:
			t.Fatal("timed out waiting for notification email")
		case <-time.After(500 * time.Millisecond):
		}
	}
}
