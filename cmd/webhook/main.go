package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/bloomlane/payflow/internal/coupon"
	"github.com/bloomlane/payflow/internal/invoice"
	"github.com/bloomlane/payflow/internal/ledger"
	"github.com/bloomlane/payflow/internal/messaging"
	"github.com/bloomlane/payflow/internal/notify"
	"github.com/bloomlane/payflow/internal/signature"
	"github.com/bloomlane/payflow/internal/stock"
	"github.com/bloomlane/payflow/internal/storage"
	"github.com/bloomlane/payflow/internal/telemetry"
	"github.com/bloomlane/payflow/internal/webhook"
)

func main() {
	ctx := context.Background()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	shutdownTracer, err := telemetry.InitTracerProvider(ctx, "payflow-webhook", "0.1.0")
	if err != nil {
		logger.Error("failed to initialize tracer", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownTracer(ctx) }()

	metricsHandler, shutdownMeter, err := telemetry.InitMeterProvider("payflow-webhook", "0.1.0")
	if err != nil {
		logger.Error("failed to initialize meter", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownMeter(ctx) }()

	postgresURL := os.Getenv("POSTGRES_URL")
	if postgresURL == "" {
		logger.Error("POSTGRES_URL environment variable is required")
		os.Exit(1)
	}

	db, err := telemetry.OpenDB("postgres", postgresURL)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	if err := db.Ping(); err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}

	store, err := storage.New(storage.Config{
		Endpoint:      os.Getenv("STORAGE_ENDPOINT"),
		AccessKey:     os.Getenv("STORAGE_ACCESS_KEY"),
		SecretKey:     os.Getenv("STORAGE_SECRET_KEY"),
		Bucket:        envOr("STORAGE_BUCKET", "invoices"),
		PublicBaseURL: os.Getenv("STORAGE_PUBLIC_URL"),
		UseSSL:        os.Getenv("STORAGE_USE_SSL") != "false",
	})
	if err != nil {
		logger.Error("failed to create storage client", "error", err)
		os.Exit(1)
	}

	var producer *messaging.Producer
	if kafkaBrokers := os.Getenv("KAFKA_BROKERS"); kafkaBrokers != "" {
		producer = messaging.NewProducer(strings.Split(kafkaBrokers, ","), "order.paid")
		defer func() { _ = producer.Close() }()
	}

	freeShipping, _ := strconv.ParseInt(os.Getenv("FREE_SHIPPING_THRESHOLD"), 10, 64)

	orders := ledger.NewRepository(db)
	verifier := signature.NewVerifier(os.Getenv("GATEWAY_PASSPHRASE"))
	engine := stock.NewEngine(db, logger)
	generator := invoice.NewGenerator(store, orders, invoice.Config{
		SiteName:              envOr("SITE_NAME", "Bloomlane"),
		SiteURL:               envOr("SITE_URL", "https://bloomlane.example"),
		FreeShippingThreshold: freeShipping,
	}, logger)
	accountant := coupon.NewAccountant(db)

	httpClient := &http.Client{
		Timeout:   10 * time.Second,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}
	dispatcher := notify.NewDispatcher(os.Getenv("NOTIFY_URL"), httpClient, logger)

	var publisher webhook.EventPublisher
	if producer != nil {
		publisher = producer
	}
	notifyHandler := webhook.NewHandler(verifier, orders, engine, generator, accountant, dispatcher, publisher, logger)
	invoiceHandler := invoice.NewHandler(orders, generator, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /webhooks/payment", telemetry.WithHTTPRoute(notifyHandler.HandleNotify))
	mux.HandleFunc("GET /invoices", telemetry.WithHTTPRoute(invoiceHandler.HandleRetrieve))
	mux.HandleFunc("POST /invoices", telemetry.WithHTTPRoute(invoiceHandler.HandleRetrieve))
	mux.Handle("GET /metrics", metricsHandler)

	port := envOr("PORT", "8080")

	server := &http.Server{
		Addr: ":" + port,
		Handler: otelhttp.NewHandler(mux, "payflow-webhook",
			otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
				if r.Pattern != "" {
					return r.Pattern
				}
				return r.Method + " " + r.URL.Path
			}),
		),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 25 * time.Second,
	}

	go func() {
		logger.Info("starting webhook service", "port", port)
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

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
