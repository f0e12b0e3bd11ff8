package email

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestHandler_HandleSend(t *testing.T) {
	handler := NewHandler(slog.New(slog.NewTextHandler(io.Discard, nil)))

	t.Run("accepts a valid send request", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/send",
			strings.NewReader(`{"to":"cust-1@example.com","subject":"Order update","body":"hello"}`))
		rec := httptest.NewRecorder()

		handler.HandleSend(rec, req)

		if rec.Code != http.StatusOK {
			t.Errorf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
		}
	})

	t.Run("rejects bad recipient", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/send",
			strings.NewReader(`{"to":"not-an-address","subject":"Order update"}`))
		rec := httptest.NewRecorder()

		handler.HandleSend(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rec.Code)
		}
	})

	t.Run("rejects missing subject", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/send",
			strings.NewReader(`{"to":"cust-1@example.com"}`))
		rec := httptest.NewRecorder()

		handler.HandleSend(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rec.Code)
		}
	})
}
