/**
 * @description
 * This is the main entry point for the account-service: the read-facing
 * mirror of the transaction ledger. It receives finalized transactions on an
 * internal endpoint and serves per-user transaction history from its own
 * Postgres store.
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
	"github.com/paylink/fintech-backend/internal/config"
	"github.com/paylink/fintech-backend/internal/store"
)

func main() {
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
	if cfg.InternalAPIKey == "" {
		log.Printf("level=warn component=main msg=\"INTERNAL_API_KEY is empty; internal endpoints are unprotected\"")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("level=fatal component=main msg=\"invalid DATABASE_URL\" err=%v", err)
	}
	poolConfig.MaxConns = 50
	poolConfig.MinConns = 10
	poolConfig.MaxConnLifetime = time.Hour
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

	mirror := store.NewPostgresMirrorRepository(dbpool)
	handlers := api.NewAccountHandlers(mirror)
	router := api.AccountRoutes(handlers, cfg.InternalAPIKey)

	server := &http.Server{
		Addr:    ":" + cfg.ServerPort,
		Handler: router,
	}

	go func() {
		log.Printf("level=info component=main msg=\"account-service listening\" port=%s", cfg.ServerPort)
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
	log.Printf("level=info component=main msg=\"account-service stopped\"")
}
