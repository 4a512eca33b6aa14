package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"agegate/internal/account"
	"agegate/internal/dealer"
	"agegate/internal/kyc"
	"agegate/internal/ledger"
	"agegate/internal/payment"
	"agegate/internal/platform/config"
	"agegate/internal/platform/httpserver"
	"agegate/internal/platform/kafka"
	"agegate/internal/platform/logger"
	"agegate/internal/platform/metrics"
	"agegate/internal/platform/postgres"
	redisplatform "agegate/internal/platform/redis"
	"agegate/internal/proof"
	"agegate/internal/settlement"
	"agegate/internal/token"
	httptransport "agegate/internal/transport/http"
	"agegate/internal/webhook"
)

// main wires storage, providers, services, and the HTTP surface. Every
// backing store degrades to an in-process implementation when its URL is
// absent, so a bare `go run` serves the full API.
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	if err := run(cfg, log); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Server, log *slog.Logger) error {
	ctx := context.Background()

	var db *sql.DB
	if cfg.PostgresURL != "" {
		var err error
		db, err = sql.Open("pgx", cfg.PostgresURL)
		if err != nil {
			return err
		}
		defer db.Close()
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := db.PingContext(pingCtx); err != nil {
			return err
		}
		if err := postgres.ApplySchema(pingCtx, db); err != nil {
			return err
		}
		log.Info("postgres stores enabled")
	}

	redisClient, err := redisplatform.New(cfg.RedisURL)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer redisClient.Close()
		log.Info("redis coordination enabled")
	}

	producer, err := kafka.NewProducer(ctx, cfg.KafkaBrokers, cfg.KafkaAuditTopic, log)
	if err != nil {
		return err
	}
	if producer != nil {
		defer producer.Close()
		log.Info("kafka ledger mirror enabled", "topic", cfg.KafkaAuditTopic)
	}

	// Stores. Postgres wins when configured; the dealer quota meter can also
	// run on redis for multi-process deployments without a database.
	var (
		accountStore account.Store    = account.NewMemoryStore()
		paymentStore payment.Store    = payment.NewMemoryStore()
		ledgerStore  ledger.Store     = ledger.NewMemoryStore()
		dealerStore  dealer.Store     = dealer.NewMemoryStore()
		sessionStore kyc.SessionStore = kyc.NewMemorySessionStore()
	)
	if db != nil {
		accountStore = account.NewPostgresStore(db)
		paymentStore = payment.NewPostgresStore(db)
		ledgerStore = ledger.NewPostgresStore(db)
		dealerStore = dealer.NewPostgresStore(db)
	} else if redisClient != nil {
		redisDealers, err := dealer.NewRedisStore(redisClient.Client)
		if err != nil {
			return err
		}
		dealerStore = redisDealers
	}

	paymentProvider := payment.NewBreakerProvider(payment.NewFakeProvider())
	paymentSvc, err := payment.New(paymentProvider, paymentStore,
		payment.WithLogger(log), payment.WithMetrics(payment.NewMetrics()))
	if err != nil {
		return err
	}
	kycSvc, err := kyc.New(kyc.NewFakeProvider(), sessionStore, kyc.WithLogger(log))
	if err != nil {
		return err
	}

	ledgerOpts := []ledger.Option{ledger.WithLogger(log), ledger.WithAnchor(proof.NewFakeAnchor())}
	if producer != nil {
		ledgerOpts = append(ledgerOpts, ledger.WithMirror(producer))
	}
	ledgerSvc, err := ledger.New(ledgerStore, ledgerOpts...)
	if err != nil {
		return err
	}

	accountSvc, err := account.New(accountStore, account.WithLogger(log), account.WithLedger(ledgerSvc))
	if err != nil {
		return err
	}

	dealerSvc, err := dealer.New(dealerStore, dealer.WithLogger(log), dealer.WithMetrics(dealer.NewMetrics()))
	if err != nil {
		return err
	}

	settlementOpts := []settlement.Option{
		settlement.WithLogger(log),
		settlement.WithMetrics(settlement.NewMetrics()),
		settlement.WithQuota(dealerSvc),
	}
	if redisClient != nil {
		locker, err := settlement.NewRedisLocker(redisClient.Client)
		if err != nil {
			return err
		}
		settlementOpts = append(settlementOpts, settlement.WithLocker(locker))
	}
	settlementSvc, err := settlement.New(
		accountStore, paymentSvc, kycSvc, proof.NewEngine(cfg.Policy), ledgerSvc,
		settlement.Config{
			AmountCents:     cfg.VerificationAmountCents,
			VerificationTTL: cfg.VerificationTTL,
			Policy:          cfg.Policy,
		},
		settlementOpts...,
	)
	if err != nil {
		return err
	}

	webhookOpts := []webhook.Option{webhook.WithLogger(log), webhook.WithMetrics(webhook.NewMetrics())}
	if redisClient != nil {
		tracker, err := webhook.NewRedisTracker(redisClient.Client)
		if err != nil {
			return err
		}
		webhookOpts = append(webhookOpts, webhook.WithTracker(tracker))
	}
	webhookSvc, err := webhook.New(accountStore, settlementSvc, webhookOpts...)
	if err != nil {
		return err
	}

	tokenSvc := token.NewService(cfg.JWTSigningKey, "agegate")

	router := httptransport.NewRouter(httptransport.RouterConfig{
		Buyers:      httptransport.NewBuyerHandler(accountSvc, settlementSvc, webhookSvc, ledgerSvc, tokenSvc, log),
		Dealers:     httptransport.NewDealerHandler(settlementSvc, ledgerSvc, dealerSvc, log),
		Webhooks:    httptransport.NewWebhookHandler(webhookSvc, log),
		DealerAuth:  dealerSvc,
		Tokens:      tokenSvc,
		AdminToken:  cfg.AdminToken,
		Logger:      log,
		HTTPMetrics: metrics.NewHTTP(),
	})

	srv := httpserver.New(cfg.Addr, router)

	errCh := make(chan error, 1)
	go func() {
		log.Info("agegate listening", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-quit:
		log.Info("shutting down", "signal", sig.String())
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
