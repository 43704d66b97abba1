/**
 * @description
 * This package handles the configuration management for the transfer
 * backend's services. It uses the Viper library to read configuration from
 * environment variables (with an optional .env file), providing a
 * centralized and straightforward way to manage application settings.
 *
 * @dependencies
 * - github.com/spf13/viper: A popular library for Go application configuration.
 */

package config

import (
	"log"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all the configuration variables shared by the three service
// binaries. Each binary reads the subset it needs.
type Config struct {
	ServerPort string `mapstructure:"SERVER_PORT"`

	// Postgres: ledger + outbox (transaction-service), mirror (account-service).
	DatabaseURL string `mapstructure:"DATABASE_URL"`

	// Mongo: notification log (notification-service).
	MongoURI      string `mapstructure:"MONGO_URI"`
	MongoDatabase string `mapstructure:"MONGO_DATABASE"`

	// Event channel.
	RabbitMQURL           string `mapstructure:"RABBITMQ_URL"`
	TransactionEventQueue string `mapstructure:"TRANSACTION_EVENT_QUEUE"`

	// Optional consumer dedup fast path.
	RedisURL string `mapstructure:"REDIS_URL"`

	// Peer services.
	BankLinkServiceURL string `mapstructure:"BANK_LINK_SERVICE_URL"`
	PaymentSimURL      string `mapstructure:"PAYMENT_SIM_URL"`
	PaymentSimAPIKey   string `mapstructure:"PAYMENT_SIM_API_KEY"`
	AccountServiceURL  string `mapstructure:"ACCOUNT_SERVICE_URL"`
	InternalAPIKey     string `mapstructure:"INTERNAL_API_KEY"`

	// Mirror reconciliation sweep schedule (cron expression).
	MirrorReconcileSchedule string `mapstructure:"MIRROR_RECONCILE_SCHEDULE"`

	// SMTP relay for the notification side effect.
	SMTPHost     string `mapstructure:"SMTP_HOST"`
	SMTPPort     string `mapstructure:"SMTP_PORT"`
	SMTPFrom     string `mapstructure:"SMTP_FROM"`
	SMTPPassword string `mapstructure:"SMTP_PASSWORD"`
}

// LoadConfig reads configuration from environment variables, with an
// optional .env file in the given path.
func LoadConfig(path string) (config Config, err error) {
	// Tell viper the path to look for the optional .env file.
	viper.AddConfigPath(path)
	viper.SetConfigName(".env")
	viper.SetConfigType("env")

	// Enable automatic binding of environment variables.
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Set default values
	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("MONGO_DATABASE", "notification-service-db")
	viper.SetDefault("TRANSACTION_EVENT_QUEUE", "notification_service.transactions")
	viper.SetDefault("MIRROR_RECONCILE_SCHEDULE", "@every 1m")
	viper.SetDefault("SMTP_PORT", "587")

	// Bind environment variables explicitly to ensure they appear in Unmarshal
	_ = viper.BindEnv("SERVER_PORT")
	_ = viper.BindEnv("PORT")
	_ = viper.BindEnv("DATABASE_URL")
	_ = viper.BindEnv("MONGO_URI")
	_ = viper.BindEnv("MONGO_DATABASE")
	_ = viper.BindEnv("RABBITMQ_URL")
	_ = viper.BindEnv("TRANSACTION_EVENT_QUEUE")
	_ = viper.BindEnv("REDIS_URL")
	_ = viper.BindEnv("BANK_LINK_SERVICE_URL")
	_ = viper.BindEnv("PAYMENT_SIM_URL")
	_ = viper.BindEnv("PAYMENT_SIM_API_KEY")
	_ = viper.BindEnv("ACCOUNT_SERVICE_URL")
	_ = viper.BindEnv("INTERNAL_API_KEY", "INTERNAL_API_KEY", "ACCOUNT_SERVICE_INTERNAL_API_KEY")
	_ = viper.BindEnv("MIRROR_RECONCILE_SCHEDULE")
	_ = viper.BindEnv("SMTP_HOST")
	_ = viper.BindEnv("SMTP_PORT")
	_ = viper.BindEnv("SMTP_FROM")
	_ = viper.BindEnv("SMTP_PASSWORD")

	// Attempt to read the config file. It's okay if it doesn't exist.
	if err = viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Printf("level=warn component=config msg=\"failed to read config file; using environment values\" err=%v", err)
		}
		err = nil
	}

	// Unmarshal the configuration into the Config struct.
	if err = viper.Unmarshal(&config); err != nil {
		return
	}

	// Platform-assigned PORT wins over SERVER_PORT.
	if port := strings.TrimSpace(os.Getenv("PORT")); port != "" {
		config.ServerPort = port
	}

	config.InternalAPIKey = strings.TrimSpace(config.InternalAPIKey)
	if config.InternalAPIKey == "" {
		config.InternalAPIKey = strings.TrimSpace(os.Getenv("ACCOUNT_SERVICE_INTERNAL_API_KEY"))
	}
	config.RedisURL = strings.TrimSpace(config.RedisURL)
	config.MongoURI = strings.TrimSpace(config.MongoURI)
	if strings.TrimSpace(config.MirrorReconcileSchedule) == "" {
		config.MirrorReconcileSchedule = "@every 1m"
	}

	return
}
