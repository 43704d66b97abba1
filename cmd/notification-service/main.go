/**
 * @description
 * This is the main entry point for the notification-service. It consumes
 * finalized-transaction events from the durable queue, sends the payer an
 * email, and appends an idempotent record to the Mongo notification log. An
 * optional Redis cache short-circuits known duplicates; correctness never
 * depends on it.
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

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/paylink/fintech-backend/internal/api"
	"github.com/paylink/fintech-backend/internal/app"
	"github.com/paylink/fintech-backend/internal/config"
	"github.com/paylink/fintech-backend/internal/domain"
	"github.com/paylink/fintech-backend/internal/store"
	"github.com/paylink/fintech-backend/pkg/mailer"
	"github.com/paylink/fintech-backend/pkg/rabbitmq"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("level=info component=main msg=\"no .env file found, relying on environment\"")
	}

	cfg, err := config.LoadConfig(".")
	if err != nil {
		log.Fatalf("level=fatal component=main msg=\"could not load config\" err=%v", err)
	}
	if cfg.MongoURI == "" {
		log.Fatalf("level=fatal component=main msg=\"MONGO_URI is required\"")
	}
	if cfg.RabbitMQURL == "" {
		log.Fatalf("level=fatal component=main msg=\"RABBITMQ_URL is required\"")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Mongo: the durable notification log.
	connectCtx, cancelConnect := context.WithTimeout(ctx, 10*time.Second)
	defer cancelConnect()
	mongoClient, err := mongo.Connect(connectCtx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		log.Fatalf("level=fatal component=main msg=\"unable to connect to mongo\" err=%v", err)
	}
	defer func() {
		disconnectCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		mongoClient.Disconnect(disconnectCtx)
	}()

	if err := mongoClient.Ping(connectCtx, nil); err != nil {
		log.Fatalf("level=fatal component=main msg=\"unable to ping mongo\" err=%v", err)
	}
	log.Printf("level=info component=main msg=\"connected to mongo\" database=%s", cfg.MongoDatabase)

	records, err := store.NewMongoNotificationRepository(ctx, mongoClient.Database(cfg.MongoDatabase))
	if err != nil {
		log.Fatalf("level=fatal component=main msg=\"unable to initialize notification store\" err=%v", err)
	}

	// Mail. Without SMTP credentials the log-only mailer keeps the pipeline
	// running end to end.
	var mail mailer.Mailer
	if cfg.SMTPHost != "" && cfg.SMTPFrom != "" {
		mail = mailer.NewSMTPMailer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPFrom, cfg.SMTPPassword)
		log.Printf("level=info component=main msg=\"smtp mailer configured\" host=%s", cfg.SMTPHost)
	} else {
		mail = &mailer.LogMailer{}
		log.Printf("level=warn component=main msg=\"smtp not configured; using log-only mailer\"")
	}

	consumer := app.NewTransactionEventConsumer(records, mail)

	// Optional Redis dedup fast path: ping and degrade rather than fail.
	if cfg.RedisURL != "" {
		if redisOpts, err := redis.ParseURL(cfg.RedisURL); err != nil {
			log.Printf("level=warn component=main msg=\"invalid REDIS_URL; dedup cache disabled\" err=%v", err)
		} else {
			redisClient := redis.NewClient(redisOpts)
			pingCtx, cancelPing := context.WithTimeout(ctx, 5*time.Second)
			if err := redisClient.Ping(pingCtx).Err(); err != nil {
				log.Printf("level=warn component=main msg=\"redis unreachable; dedup cache disabled\" err=%v", err)
				redisClient.Close()
			} else {
				consumer.SetDedupCache(redisClient)
				defer redisClient.Close()
				log.Printf("level=info component=main msg=\"redis dedup cache enabled\"")
			}
			cancelPing()
		}
	}

	// Event channel subscription.
	queueConsumer, err := rabbitmq.NewConsumer(cfg.RabbitMQURL)
	if err != nil {
		log.Fatalf("level=fatal component=main msg=\"unable to connect to rabbitmq\" err=%v", err)
	}
	defer queueConsumer.Close()

	err = queueConsumer.ConsumeWithBindings(domain.TransactionsExchange, cfg.TransactionEventQueue, map[string]func([]byte) bool{
		domain.TransactionFinalizedKey: consumer.HandleMessage,
	})
	if err != nil {
		log.Fatalf("level=fatal component=main msg=\"unable to start consuming\" err=%v", err)
	}
	log.Printf("level=info component=main msg=\"consuming transaction events\" queue=%s", cfg.TransactionEventQueue)

	// HTTP surface: notification history by recipient.
	handlers := api.NewNotificationHandlers(records)
	router := api.NotificationRoutes(handlers)

	server := &http.Server{
		Addr:    ":" + cfg.ServerPort,
		Handler: router,
	}

	go func() {
		log.Printf("level=info component=main msg=\"notification-service listening\" port=%s", cfg.ServerPort)
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
	log.Printf("level=info component=main msg=\"notification-service stopped\"")
}
