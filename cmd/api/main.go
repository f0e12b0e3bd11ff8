package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"

	"github.com/technorecep1-spec/sus-tavuk-satis-sub000/internal/cart"
	"github.com/technorecep1-spec/sus-tavuk-satis-sub000/internal/catalog"
	"github.com/technorecep1-spec/sus-tavuk-satis-sub000/internal/checkout"
	"github.com/technorecep1-spec/sus-tavuk-satis-sub000/internal/config"
	"github.com/technorecep1-spec/sus-tavuk-satis-sub000/internal/messaging"
	"github.com/technorecep1-spec/sus-tavuk-satis-sub000/internal/orders"
	"github.com/technorecep1-spec/sus-tavuk-satis-sub000/internal/telemetry"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/contrib/instrumentation/runtime"
)

func main() {
	ctx := context.Background()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg := config.Load("8081")

	if cfg.PostgresURL == "" {
		logger.Error("POSTGRES_URL environment variable is required")
		os.Exit(1)
	}
	if cfg.RedisAddr == "" {
		logger.Error("REDIS_ADDR environment variable is required")
		os.Exit(1)
	}

	shutdownTracer, err := telemetry.InitTracerProvider(ctx, "api", "0.1.0")
	if err != nil {
		logger.Error("failed to initialize tracer", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownTracer(ctx) }()

	metricsHandler, shutdownMeter, err := telemetry.InitMeterProvider("api", "0.1.0")
	if err != nil {
		logger.Error("failed to initialize meter", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownMeter(ctx) }()

	if err := runtime.Start(); err != nil {
		logger.Error("failed to start runtime instrumentation", "error", err)
		os.Exit(1)
	}

	db, err := telemetry.OpenDB("postgres", telemetry.WithSearchPath(cfg.PostgresURL, "shop"))
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	if err := db.Ping(); err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}

	cartStore := cart.NewRedisStore(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	defer func() { _ = cartStore.Close() }()

	pingCtx, cancelPing := context.WithTimeout(ctx, 5*time.Second)
	if err := cartStore.Ping(pingCtx); err != nil {
		cancelPing()
		logger.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}
	cancelPing()

	var producer *messaging.Producer
	var orderEvents orders.EventPublisher
	var checkoutEvents checkout.EventPublisher
	if len(cfg.KafkaBrokers) > 0 {
		producer = messaging.NewProducer(cfg.KafkaBrokers)
		defer func() { _ = producer.Close() }()
		orderEvents = producer
		checkoutEvents = producer
	}

	productRepo := catalog.NewProductRepository(db)
	catalogHandler := catalog.NewHandler(productRepo, logger)

	orderRepo := orders.NewRepository(db)
	lifecycle := orders.NewLifecycle(orderRepo, orderEvents, logger)
	orderHandler := orders.NewHandler(lifecycle, logger)

	cartHandler := cart.NewHandler(cartStore, logger)

	checkoutService := checkout.NewService(cartStore, orderRepo, checkoutEvents, logger)
	checkoutHandler := checkout.NewHandler(checkoutService, logger)

	mux := http.NewServeMux()

	// Storefront.
	mux.HandleFunc("GET /products", telemetry.WithHTTPRoute(catalogHandler.HandleList))
	mux.HandleFunc("GET /products/{id}", telemetry.WithHTTPRoute(catalogHandler.HandleGet))
	mux.HandleFunc("GET /cart", telemetry.WithHTTPRoute(cartHandler.HandleGet))
	mux.HandleFunc("PUT /cart", telemetry.WithHTTPRoute(cartHandler.HandleSetItem))
	mux.HandleFunc("DELETE /cart", telemetry.WithHTTPRoute(cartHandler.HandleClear))
	mux.HandleFunc("POST /checkout", telemetry.WithHTTPRoute(checkoutHandler.HandlePlaceOrder))
	mux.HandleFunc("GET /orders/{id}", telemetry.WithHTTPRoute(orderHandler.HandleGet))

	// Back office. The gateway authenticates /admin routes before they land here.
	mux.HandleFunc("GET /admin/orders", telemetry.WithHTTPRoute(orderHandler.HandleList))
	mux.HandleFunc("GET /admin/orders/{id}", telemetry.WithHTTPRoute(orderHandler.HandleGet))
	mux.HandleFunc("PATCH /admin/orders/{id}/status", telemetry.WithHTTPRoute(orderHandler.HandleChangeStatus))
	mux.HandleFunc("POST /admin/orders/bulk-status", telemetry.WithHTTPRoute(orderHandler.HandleBulkChangeStatus))
	mux.HandleFunc("PATCH /admin/orders/{id}/shipment", telemetry.WithHTTPRoute(orderHandler.HandleRecordShipment))
	mux.HandleFunc("PATCH /admin/orders/{id}/notes", telemetry.WithHTTPRoute(orderHandler.HandleUpdateNotes))
	mux.HandleFunc("POST /admin/orders/{id}/paid", telemetry.WithHTTPRoute(orderHandler.HandleMarkPaid))
	mux.HandleFunc("POST /admin/orders/{id}/delivered", telemetry.WithHTTPRoute(orderHandler.HandleMarkDelivered))
	mux.HandleFunc("POST /admin/products", telemetry.WithHTTPRoute(catalogHandler.HandleCreate))
	mux.HandleFunc("PUT /admin/products/{id}", telemetry.WithHTTPRoute(catalogHandler.HandleUpdate))
	mux.HandleFunc("DELETE /admin/products/{id}", telemetry.WithHTTPRoute(catalogHandler.HandleDelete))
	mux.HandleFunc("POST /admin/products/{id}/stock", telemetry.WithHTTPRoute(catalogHandler.HandleAdjustStock))

	mux.Handle("GET /metrics", metricsHandler)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := db.PingContext(r.Context()); err != nil {
			http.Error(w, "database unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	server := &http.Server{
		Addr: ":" + cfg.Port,
		Handler: otelhttp.NewHandler(mux, "api",
			otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
				if r.Pattern != "" {
					return r.Pattern
				}
				return r.Method + " " + r.URL.Path
			}),
		),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("starting api service", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
		os.Exit(1)
	}
}
