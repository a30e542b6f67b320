package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
)

const (
	StoreFirestore = "firestore"
	StorePostgres  = "postgres"
)

type Config struct {
	Port        string `envconfig:"PORT" default:"8080"`
	Environment string `envconfig:"ENV" default:"production"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=trace debug info warn error"`

	// Persistence
	StoreBackend       string `envconfig:"STORE_BACKEND" default:"firestore" validate:"oneof=firestore postgres"`
	GCPProjectID       string `envconfig:"GCP_PROJECT_ID"`
	UsersCollection    string `envconfig:"FIRESTORE_USERS_COLLECTION" default:"users"`
	TierConfigDocPath  string `envconfig:"FIRESTORE_TIER_CONFIG_DOC" default:"config/subscriptionTiers"`
	DBConnectionString string `envconfig:"DB_CONNECTION_STRING"`

	// Stripe
	StripeSecretKey            string `envconfig:"STRIPE_SECRET_KEY"`
	StripeWebhookSecret        string `envconfig:"STRIPE_WEBHOOK_SECRET"`
	StripeWebhookSecretName    string `envconfig:"STRIPE_WEBHOOK_SECRET_NAME"`
	StripeIgnoreAPIVersion     bool   `envconfig:"STRIPE_IGNORE_API_VERSION_MISMATCH" default:"true"`
	StripeWebhookMaxBodyBytes  int64  `envconfig:"STRIPE_WEBHOOK_MAX_BODY_BYTES" default:"65536" validate:"gt=0"`
	StripeEventDedupTTLSeconds int    `envconfig:"STRIPE_EVENT_DEDUP_TTL_SEC" default:"259200" validate:"gte=0"`

	// Firebase Auth, used by the user-facing read endpoints
	FirebaseProjectID string `envconfig:"FIREBASE_PROJECT_ID"`
	FirebaseJWKSURL   string `envconfig:"FIREBASE_JWKS_URL" default:"https://www.googleapis.com/service_accounts/v1/jwk/securetoken@system.gserviceaccount.com"`

	// Optional integrations. Empty values disable them.
	RedisAddr          string `envconfig:"REDIS_ADDR"`
	RedisPassword      string `envconfig:"REDIS_PASSWORD"`
	RedisDB            int    `envconfig:"REDIS_DB" default:"0"`
	PubSubTierTopic    string `envconfig:"PUBSUB_TIER_CHANGED_TOPIC"`
	PubSubEmulatorHost string `envconfig:"PUBSUB_EMULATOR_HOST"`
	ArchiveS3Bucket    string `envconfig:"EVENT_ARCHIVE_S3_BUCKET"`
	ArchiveS3URL       string `envconfig:"EVENT_ARCHIVE_S3_URL"`
	ArchiveS3Region    string `envconfig:"EVENT_ARCHIVE_S3_REGION" default:"us-east-1"`
	ArchiveS3AccessKey string `envconfig:"EVENT_ARCHIVE_S3_ACCESS_KEY"`
	ArchiveS3SecretKey string `envconfig:"EVENT_ARCHIVE_S3_SECRET_KEY"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks field constraints and the settings each store backend needs.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	switch c.StoreBackend {
	case StoreFirestore:
		if c.GCPProjectID == "" {
			return fmt.Errorf("invalid config: GCP_PROJECT_ID is required for the firestore store")
		}
	case StorePostgres:
		if c.DBConnectionString == "" {
			return fmt.Errorf("invalid config: DB_CONNECTION_STRING is required for the postgres store")
		}
	}
	return nil
}

// IsDevelopment reports whether the service runs locally.
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}
