package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/joho/godotenv/autoload"

	"github.com/josh-kwaku/payment-orchestrator/api"
	"github.com/josh-kwaku/payment-orchestrator/internal/auth"
	"github.com/josh-kwaku/payment-orchestrator/internal/clearing"
	"github.com/josh-kwaku/payment-orchestrator/internal/config"
	"github.com/josh-kwaku/payment-orchestrator/internal/domain"
	"github.com/josh-kwaku/payment-orchestrator/internal/events"
	"github.com/josh-kwaku/payment-orchestrator/internal/fraud"
	"github.com/josh-kwaku/payment-orchestrator/internal/handler"
	"github.com/josh-kwaku/payment-orchestrator/internal/ledger"
	"github.com/josh-kwaku/payment-orchestrator/internal/logging"
	"github.com/josh-kwaku/payment-orchestrator/internal/middleware"
	"github.com/josh-kwaku/payment-orchestrator/internal/repository"
	"github.com/josh-kwaku/payment-orchestrator/internal/saga"
	"github.com/josh-kwaku/payment-orchestrator/internal/service"
	"github.com/josh-kwaku/payment-orchestrator/internal/service/payment"
	"github.com/josh-kwaku/payment-orchestrator/internal/statemachine"
	"github.com/josh-kwaku/payment-orchestrator/internal/telco"
	"github.com/josh-kwaku/payment-orchestrator/internal/validation"
	"github.com/josh-kwaku/payment-orchestrator/internal/workflow"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := logging.Init("payment-orchestrator", cfg.LogLevel, cfg.AppEnv)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	db, err := repository.NewPostgresDB(ctx, cfg.DatabaseURL, repository.PoolConfig{
		MaxOpenConns:     cfg.DBMaxOpenConns,
		MaxIdleConns:     cfg.DBMaxIdleConns,
		ConnMaxLifetimeS: cfg.DBConnMaxLifetimeS,
		ConnMaxIdleTimeS: cfg.DBConnMaxIdleTimeS,
	})
	cancel()
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	publisher, err := newPublisher(cfg, logger)
	if err != nil {
		slog.Error("failed to create event publisher", "error", err)
		os.Exit(1)
	}
	publisher.Start()
	defer publisher.Close()

	otp, err := newOTPVerifier(cfg)
	if err != nil {
		slog.Error("failed to create OTP verifier", "error", err)
		os.Exit(1)
	}

	clientTimeout := time.Duration(cfg.ClientTimeoutSeconds) * time.Second
	ledgerClient := ledger.NewClient(cfg.LedgerURL, clientTimeout)
	clearingClient := clearing.NewClient(cfg.ClearingURL, clientTimeout)
	operators := telco.NewGateway(cfg.OperatorGatewayURL, clientTimeout)

	paymentRepo := repository.NewPaymentRepository(db)
	transitionRepo := repository.NewTransitionRepository(db)
	settlementRepo := repository.NewSettlementEventRepository(db)

	cutoff, _ := cfg.SEPACutoffClock()
	settings := workflow.Settings{
		InstantMaxAmount: cfg.InstantMaxAmount,
		InstantTimeout:   time.Duration(cfg.InstantTimeoutSeconds) * time.Second,
		OperatorTimeout:  time.Duration(cfg.OperatorTimeoutSeconds) * time.Second,
		SwiftFee:         cfg.SwiftFlatFee,
		SEPACutoff:       cutoff,
		SEPALocation:     cfg.SEPALocation(),
	}

	machine := statemachine.New(repository.NewPaymentStore(db))
	validator := validation.NewValidator(paymentRepo, validation.Limits{
		Daily:   cfg.DailyLimit,
		Monthly: cfg.MonthlyLimit,
	}, cfg.SanctionsMarkers)
	detector := fraud.NewDetector(paymentRepo, fraud.Config{
		HighAmountThreshold:    cfg.FraudHighAmountThreshold,
		MaxTransactionsPerHour: cfg.FraudMaxTransactionsPerHour,
	})

	executors := workflow.Executors(workflow.Collaborators{
		Ledger:    ledgerClient,
		Clearing:  clearingClient,
		Operators: operators,
	}, settings)
	orch := saga.NewOrchestrator(machine, ledgerClient, detector, publisher, executors)
	intake := workflow.NewIntake(paymentRepo, validator, ledgerClient, machine)
	registry := workflow.NewRegistry(intake, orch, settings)

	paymentService := payment.NewService(paymentRepo, transitionRepo, registry, orch, otp)

	processorCtx, stopProcessor := context.WithCancel(context.Background())
	defer stopProcessor()
	processor := service.NewSettlementProcessor(
		settlementRepo,
		paymentService,
		db,
		logger,
		time.Duration(cfg.SettlementPollIntervalMs)*time.Millisecond,
	)
	go processor.Start(processorCtx)

	paymentHandler := handler.NewPaymentHandler(paymentService)
	webhookHandler := handler.NewWebhookHandler(settlementRepo, cfg.SettlementWebhookSecret)
	healthHandler := handler.NewHealthHandler(db)

	v1 := http.NewServeMux()
	for path, pt := range map[string]domain.PaymentType{
		"internal":        domain.PaymentTypeInternalTransfer,
		"sepa":            domain.PaymentTypeSEPATransfer,
		"instant":         domain.PaymentTypeInstantTransfer,
		"swift":           domain.PaymentTypeSwiftTransfer,
		"merchant":        domain.PaymentTypeMerchantPayment,
		"mobile-recharge": domain.PaymentTypeMobileRecharge,
	} {
		v1.HandleFunc("POST /api/v1/payments/"+path, paymentHandler.Create(pt))
	}
	v1.HandleFunc("POST /api/v1/payments/{id}/authorize", paymentHandler.Authorize)
	v1.HandleFunc("GET /api/v1/payments/{id}", paymentHandler.Get)
	v1.HandleFunc("GET /api/v1/payments/{id}/transitions", paymentHandler.Transitions)
	v1.HandleFunc("GET /api/v1/payments", paymentHandler.List)

	mux := http.NewServeMux()
	mux.Handle("/api/v1/", middleware.Chain(v1, middleware.Auth(cfg.JWTSecret), middleware.Logging))
	mux.Handle("POST /webhooks/settlement", middleware.Logging(http.HandlerFunc(webhookHandler.ReceiveSettlement)))
	mux.HandleFunc("GET /health", healthHandler.Liveness)
	mux.HandleFunc("GET /health/ready", healthHandler.Readiness)
	mux.HandleFunc("GET /docs", handler.ServeDocs())
	mux.HandleFunc("GET /docs/openapi.yaml", handler.ServeSpec(api.Spec))

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           middleware.Chain(mux, middleware.Tracing, middleware.Recovery),
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		slog.Info("server started", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server")
	stopProcessor()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}
	slog.Info("server stopped")
}

func newPublisher(cfg *config.Config, logger *slog.Logger) (*events.AsyncPublisher, error) {
	var sink events.Sink = events.NewLogSink(logger)
	if cfg.EventsQueueURL != "" {
		sqsSink, err := events.NewSQSSink(cfg.AWSRegion, cfg.AWSEndpoint, cfg.EventsQueueURL)
		if err != nil {
			return nil, fmt.Errorf("newPublisher: %w", err)
		}
		sink = sqsSink
	}
	return events.NewAsyncPublisher(sink, cfg.EventsBufferSize, logger), nil
}

func newOTPVerifier(cfg *config.Config) (*auth.HashedOTPVerifier, error) {
	hash := cfg.SCAOTPHash
	if hash == "" {
		h, err := auth.HashOTP(cfg.SCADemoOTP)
		if err != nil {
			return nil, fmt.Errorf("newOTPVerifier: %w", err)
		}
		slog.Warn("SCA_OTP_HASH not set, using demo OTP")
		hash = h
	}
	v, err := auth.NewHashedOTPVerifier(hash)
	if err != nil {
		return nil, fmt.Errorf("newOTPVerifier: %w", err)
	}
	return v, nil
}
