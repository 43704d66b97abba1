/**
 * @description
 * This is the main entry point for the transaction-service: the transfer
 * orchestrator. It wires the Postgres ledger, the RabbitMQ event producer
 * (with a fallback so a broker outage does not block boot), the bank-link
 * oracle and payment simulator clients, the account mirror client, the
 * outbox dispatcher, and the mirror reconciler, then serves the HTTP API.
 */

package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/paylink/fintech-backend/internal/api"
	"github.com/paylink/fintech-backend/internal/app"
	"github.com/paylink/fintech-backend/internal/config"
	"github.com/paylink/fintech-backend/internal/store"
	"github.com/paylink/fintech-backend/pkg/bankclient"
	"github.com/paylink/fintech-backend/pkg/mirrorclient"
	"github.com/paylink/fintech-backend/pkg/paymentsim"
	"github.com/paylink/fintech-backend/pkg/rabbitmq"
)

func main() {
	// Load .env for local development; in production the platform injects
	// the environment directly.
	if err := godotenv.Load(); err != nil {
		log.Printf("level=info component=main msg=\"no .env file found, relying on environment\"")
	}

	cfg, err := config.LoadConfig(".")
	if err != nil {
		log.Fatalf("level=fatal component=main msg=\"could not load config\" err=%v", err)
	}
	if cfg.DatabaseURL == "" {
		log.Fatalf("level=fatal component=main msg=\"DATABASE_URL is required\"")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Postgres connection pool for the ledger and outbox.
	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("level=fatal component=main msg=\"invalid DATABASE_URL\" err=%v", err)
	}
	poolConfig.MaxConns = 100
	poolConfig.MinConns = 20
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute
	poolConfig.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol

	dbpool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		log.Fatalf("level=fatal component=main msg=\"unable to create connection pool\" err=%v", err)
	}
	defer dbpool.Close()

	if err := dbpool.Ping(ctx); err != nil {
		log.Fatalf("level=fatal component=main msg=\"unable to ping database\" err=%v", err)
	}
	log.Printf("level=info component=main msg=\"connected to postgres\"")

	repo := store.NewPostgresRepository(dbpool)

	// Event producer. A broker outage at startup degrades to the fallback:
	// events stay durably enqueued in the outbox and the dispatcher retries
	// them once the broker returns.
	var producer rabbitmq.Publisher
	if p, err := rabbitmq.NewEventProducer(cfg.RabbitMQURL); err != nil {
		log.Printf("level=warn component=main msg=\"rabbitmq unavailable, using fallback producer\" err=%v", err)
		producer = &rabbitmq.EventProducerFallback{}
	} else {
		producer = p
	}
	defer producer.Close()

	oracle := bankclient.NewClient(cfg.BankLinkServiceURL, 5*time.Second)
	simulator := paymentsim.NewClient(cfg.PaymentSimURL, cfg.PaymentSimAPIKey, 10*time.Second)
	mirror := mirrorclient.NewClient(cfg.AccountServiceURL, cfg.InternalAPIKey, 5*time.Second)

	service := app.NewService(repo, oracle, simulator, mirror, producer)

	// Background loops: outbox retry and mirror reconciliation.
	dispatcher := app.NewOutboxDispatcher(repo, producer)
	go dispatcher.Run(ctx)

	reconciler := app.NewMirrorReconciler(repo, mirror, cfg.MirrorReconcileSchedule)
	reconciler.Start()

	handlers := api.NewTransactionHandlers(service)
	router := api.TransactionRoutes(handlers)

	server := &http.Server{
		Addr:    ":" + cfg.ServerPort,
		Handler: router,
	}

	go func() {
		log.Printf("level=info component=main msg=\"transaction-service listening\" port=%s", cfg.ServerPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("level=fatal component=main msg=\"server failed\" err=%v", err)
		}
	}()

	<-ctx.Done()
	log.Printf("level=info component=main msg=\"shutdown signal received\"")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("level=warn component=main msg=\"server shutdown error\" err=%v", err)
	}
	<-reconciler.Stop().Done()
	log.Printf("level=info component=main msg=\"transaction-service stopped\"")
}
