package cart

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/technorecep1-spec/sus-tavuk-satis-sub000/internal/domain"
)

type memCartStore struct {
	carts map[string]*domain.Cart
}

func newMemCartStore() *memCartStore {
	return &memCartStore{carts: make(map[string]*domain.Cart)}
}

func (s *memCartStore) Get(_ context.Context, sessionID string) (*domain.Cart, error) {
	if cart, ok := s.carts[sessionID]; ok {
		copied := *cart
		return &copied, nil
	}
	return &domain.Cart{}, nil
}

func (s *memCartStore) Put(_ context.Context, sessionID string, cart *domain.Cart) error {
	copied := *cart
	s.carts[sessionID] = &copied
	return nil
}

func (s *memCartStore) Clear(_ context.Context, sessionID string) error {
	delete(s.carts, sessionID)
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestHandler_HandleSetItem(t *testing.T) {
	t.Run("adds item to session cart", func(t *testing.T) {
		store := newMemCartStore()
		handler := NewHandler(store, testLogger())

		req := httptest.NewRequest(http.MethodPut, "/cart",
			strings.NewReader(`{"product_id":"prod-1","quantity":3}`))
		req.Header.Set("X-Session-ID", "sess-1")
		rec := httptest.NewRecorder()

		handler.HandleSetItem(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
		}

		var cart domain.Cart
		if err := json.Unmarshal(rec.Body.Bytes(), &cart); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if len(cart.Items) != 1 || cart.Items[0].Quantity != 3 {
			t.Errorf("unexpected cart contents: %+v", cart.Items)
		}
	})

	t.Run("sessions are isolated", func(t *testing.T) {
		store := newMemCartStore()
		handler := NewHandler(store, testLogger())

		for _, sess := range []string{"sess-1", "sess-2"} {
			req := httptest.NewRequest(http.MethodPut, "/cart",
				strings.NewReader(`{"product_id":"prod-`+sess+`","quantity":1}`))
			req.Header.Set("X-Session-ID", sess)
			rec := httptest.NewRecorder()
			handler.HandleSetItem(rec, req)
			if rec.Code != http.StatusOK {
				t.Fatalf("expected status 200 for %s, got %d", sess, rec.Code)
			}
		}

		cart, _ := store.Get(context.Background(), "sess-1")
		if len(cart.Items) != 1 || cart.Items[0].ProductID != "prod-sess-1" {
			t.Errorf("unexpected sess-1 cart: %+v", cart.Items)
		}
	})

	t.Run("missing session header returns 400", func(t *testing.T) {
		handler := NewHandler(newMemCartStore(), testLogger())

		req := httptest.NewRequest(http.MethodPut, "/cart",
			strings.NewReader(`{"product_id":"prod-1","quantity":1}`))
		rec := httptest.NewRecorder()

		handler.HandleSetItem(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rec.Code)
		}
	})

	t.Run("negative quantity returns 400", func(t *testing.T) {
		handler := NewHandler(newMemCartStore(), testLogger())

		req := httptest.NewRequest(http.MethodPut, "/cart",
			strings.NewReader(`{"product_id":"prod-1","quantity":-2}`))
		req.Header.Set("X-Session-ID", "sess-1")
		rec := httptest.NewRecorder()

		handler.HandleSetItem(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rec.Code)
		}
	})
}

func TestHandler_HandleClear(t *testing.T) {
	t.Run("empties the session cart", func(t *testing.T) {
		store := newMemCartStore()
		_ = store.Put(context.Background(), "sess-1", &domain.Cart{
			Items: []domain.CartItem{{ProductID: "prod-1", Quantity: 2}},
		})
		handler := NewHandler(store, testLogger())

		req := httptest.NewRequest(http.MethodDelete, "/cart", nil)
		req.Header.Set("X-Session-ID", "sess-1")
		rec := httptest.NewRecorder()

		handler.HandleClear(rec, req)

		if rec.Code != http.StatusNoContent {
			t.Fatalf("expected status 204, got %d", rec.Code)
		}

		cart, _ := store.Get(context.Background(), "sess-1")
		if !cart.IsEmpty() {
			t.Errorf("expected empty cart, got %+v", cart.Items)
		}
	})
}
