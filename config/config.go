package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/chimeradev/chimera-navigator/internal/logger"
)

var (
	customLog = logger.NewLogger()
)

// Config holds application configuration values, resolved once at startup
// and injected into the delegates that need them.
type Config struct {
	ServerPort   string
	DatabaseDir  string
	DatabaseFile string

	// AI delegate. An empty key means the delegate is unconfigured and every
	// AI operation fails closed; the upload path tolerates that (degraded mode).
	OpenAIAPIKey  string
	OpenAIBaseURL string
	OpenAIModel   string

	// Billing delegate.
	StripeSecretKey     string
	StripeWebhookSecret string
	StripePriceIDPro    string

	// Short-lived tickets for the websocket handshake.
	WSTicketSecret string
	WSTicketTTL    time.Duration

	// Command line for the external transformation pipeline (opaque subprocess).
	PipelineCommand string

	AllowedOrigins []string
}

// AIEnabled reports whether an AI credential was configured at startup.
func (c *Config) AIEnabled() bool {
	return c.OpenAIAPIKey != ""
}

// StripeEnabled reports whether a billing credential was configured at startup.
func (c *Config) StripeEnabled() bool {
	return c.StripeSecretKey != ""
}

// LoadConfig loads configuration from environment variables.
// It uses a .env file for local development if present (ignores it for production).
func LoadConfig() (*Config, error) {
	customLog.Println("Loading configuration from environment variables...")

	if os.Getenv("APP_ENV") != "production" {
		if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
			customLog.Warnf("Warning: Error loading .env file: %v", err)
		}
	}

	port := getEnv("SERVER_PORT", "8080")
	dbDir := getEnv("DATABASE_DIRECTORY", "data")
	dbFile := getEnv("DATABASE_FILE", "chimera.db")

	openAIKey := getEnv("OPENAI_API_KEY", "")
	openAIBase := strings.TrimRight(getEnv("OPENAI_BASE_URL", "https://api.openai.com"), "/")
	openAIModel := getEnv("OPENAI_MODEL", "gpt-4o")

	stripeKey := getEnv("STRIPE_SECRET_KEY", "")
	stripeWebhookSecret := getEnv("STRIPE_WEBHOOK_SECRET", "")
	stripePricePro := getEnv("STRIPE_PRICE_ID_PRO", "")

	ticketSecret := getEnv("WS_TICKET_SECRET", "")
	if ticketSecret == "" {
		return nil, errors.New("WS_TICKET_SECRET environment variable must be set")
	}

	ticketTTLMinsStr := getEnv("WS_TICKET_TTL_MINUTES", "5")
	ticketTTLMins, err := strconv.Atoi(ticketTTLMinsStr)
	if err != nil || ticketTTLMins <= 0 {
		customLog.Warnf("Invalid WS_TICKET_TTL_MINUTES '%s'. Using default 5m. Error: %v", ticketTTLMinsStr, err)
		ticketTTLMins = 5
	}

	pipelineCommand := getEnv("PIPELINE_COMMAND", "python3 server/pipeline.py --build-only")

	origins := strings.Split(getEnv("ALLOWED_ORIGINS", "http://localhost:5173"), ",")
	for i := range origins {
		origins[i] = strings.TrimSpace(origins[i])
	}

	cfg := &Config{
		ServerPort:          port,
		DatabaseDir:         dbDir,
		DatabaseFile:        dbFile,
		OpenAIAPIKey:        openAIKey,
		OpenAIBaseURL:       openAIBase,
		OpenAIModel:         openAIModel,
		StripeSecretKey:     stripeKey,
		StripeWebhookSecret: stripeWebhookSecret,
		StripePriceIDPro:    stripePricePro,
		WSTicketSecret:      ticketSecret,
		WSTicketTTL:         time.Duration(ticketTTLMins) * time.Minute,
		PipelineCommand:     pipelineCommand,
		AllowedOrigins:      origins,
	}

	if !cfg.AIEnabled() {
		customLog.Warnln("OPENAI_API_KEY not set: AI analysis and chat will run in degraded mode")
	}
	if !cfg.StripeEnabled() {
		customLog.Warnln("STRIPE_SECRET_KEY not set: billing endpoints disabled")
	}

	customLog.Printf("Configuration loaded successfully. Port: %s, AI enabled: %t, Stripe enabled: %t",
		cfg.ServerPort, cfg.AIEnabled(), cfg.StripeEnabled())
	return cfg, nil
}

// getEnv reads an environment variable or returns a default value.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}
