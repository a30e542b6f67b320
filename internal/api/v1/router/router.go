package router

import (
	"context"
	"net/http"
	"time"

	"veloryn/internal/api/v1/handler"
	"veloryn/internal/config"
	"veloryn/internal/middleware"
	"veloryn/internal/pubsub"
	"veloryn/internal/repository"
	"veloryn/internal/service"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	awsmiddleware "github.com/aws/smithy-go/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
)

// New wires every collaborator from cfg and returns the HTTP handler along
// with a cleanup func that releases the clients it opened.
//
// Failures of the store or the webhook secret are logged, not fatal: the
// webhook endpoint then answers 500 so Stripe keeps redelivering until the
// deployment is fixed. Optional integrations are skipped when unset.
func New(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (http.Handler, func(), error) {
	var closers []func() error
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i](); err != nil {
				logger.Warn().Err(err).Msg("Failed to close client")
			}
		}
	}

	logger.Info().Str("environment", cfg.Environment).Str("store", cfg.StoreBackend).Msg("Router initialized")

	// 1. Persistence
	var (
		store      repository.Store
		subService service.SubscriptionService
	)
	store, err := repository.OpenStore(ctx, cfg, logger)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to open subscription store")
	} else {
		closers = append(closers, store.Close)
		subService = service.NewSubscriptionService(store, logger)
	}

	// 2. Stripe
	var verifier handler.EventVerifier
	var fetcher service.SubscriptionFetcher
	if stripeSvc := newStripeService(ctx, cfg, logger); stripeSvc != nil {
		verifier = stripeSvc
		fetcher = stripeSvc
	}

	// 3. Reconciler and its optional collaborators
	var processor handler.EventProcessor
	if store != nil {
		rcfg := service.ReconcilerConfig{
			Subscriptions: store,
			TierConfig:    store,
			Stripe:        fetcher,
		}
		if cfg.RedisAddr != "" {
			rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
			closers = append(closers, rdb.Close)
			ttl := time.Duration(cfg.StripeEventDedupTTLSeconds) * time.Second
			rcfg.ProcessedEvents = repository.NewRedisProcessedEventRepo(rdb, ttl)
			logger.Info().Str("addr", cfg.RedisAddr).Msg("Event deduplication enabled")
		}
		if cfg.PubSubTierTopic != "" {
			publisher, err := pubsub.NewPublisher(ctx, cfg)
			if err != nil {
				logger.Error().Err(err).Msg("Failed to create Pub/Sub publisher; tier changes will not be published")
			} else {
				closers = append(closers, publisher.Close)
				rcfg.Notifier = service.NewPubSubTierNotifier(publisher, cfg.PubSubTierTopic)
			}
		}
		reconciler, err := service.NewReconciler(rcfg, logger)
		if err != nil {
			logger.Error().Err(err).Msg("Failed to create reconciler")
		} else {
			processor = reconciler
		}
	}

	archiver, err := newEventArchiver(ctx, cfg, logger)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to initialize event archive; payloads will not be archived")
		archiver = service.NewNoopEventArchiver()
	}

	// 4. Auth
	var tokenVerifier middleware.TokenVerifier
	if cfg.FirebaseProjectID != "" {
		fv, err := middleware.NewFirebaseVerifier(cfg.FirebaseJWKSURL, cfg.FirebaseProjectID)
		if err != nil {
			logger.Error().Err(err).Msg("Failed to initialize Firebase token verifier")
		} else {
			closers = append(closers, func() error { fv.Close(); return nil })
			tokenVerifier = fv
		}
	}
	authMiddleware := middleware.AuthMiddleware(tokenVerifier, logger)

	// 5. Handlers
	webhookHandler := handler.NewWebhookHandler(verifier, processor, archiver, cfg.StripeWebhookMaxBodyBytes, logger)

	apiV1Mux := http.NewServeMux()
	webhookHandler.RegisterRoutes(apiV1Mux)
	if subService != nil {
		handler.NewSubscriptionHandler(subService, logger).RegisterRoutes(apiV1Mux, authMiddleware)
	}

	mux := http.NewServeMux()
	mux.Handle("/v1/", http.StripPrefix("/v1", apiV1Mux))
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	// 6. Apply CORS middleware
	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "Stripe-Signature"},
		AllowCredentials: false,
	})

	return middleware.LoggerMiddleware(logger)(c.Handler(mux)), cleanup, nil
}

// newStripeService resolves the webhook secret, from Secret Manager if
// configured, and returns nil when no secret is available.
func newStripeService(ctx context.Context, cfg *config.Config, logger zerolog.Logger) *service.StripeService {
	var sm service.SecretManagerService
	if cfg.StripeWebhookSecret == "" && cfg.StripeWebhookSecretName != "" {
		client, err := service.NewSecretManagerService(ctx, cfg.GCPProjectID)
		if err != nil {
			logger.Error().Err(err).Msg("Failed to create Secret Manager client")
		} else {
			sm = client
			defer sm.Close()
		}
	}
	secret, err := service.ResolveWebhookSecret(ctx, cfg.StripeWebhookSecret, cfg.StripeWebhookSecretName, sm)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to resolve Stripe webhook secret")
		return nil
	}
	svc, err := service.NewStripeService(cfg.StripeSecretKey, secret, cfg.StripeIgnoreAPIVersion, logger)
	if err != nil {
		logger.Error().Err(err).Msg("Stripe webhook verification disabled; deliveries will be rejected")
		return nil
	}
	if cfg.StripeSecretKey == "" {
		logger.Warn().Msg("STRIPE_SECRET_KEY is empty; invoice events cannot re-fetch subscriptions")
	}
	return svc
}

func newEventArchiver(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (service.EventArchiver, error) {
	if cfg.ArchiveS3Bucket == "" {
		return service.NewNoopEventArchiver(), nil
	}
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.ArchiveS3Region),
		awsconfig.WithAPIOptions([]func(*awsmiddleware.Stack) error{removeDisableGzip()}),
	}
	if cfg.ArchiveS3AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.ArchiveS3AccessKey, cfg.ArchiveS3SecretKey, "")))
	}
	s3Config, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, err
	}
	client := s3.NewFromConfig(s3Config, func(o *s3.Options) {
		if cfg.ArchiveS3URL != "" {
			o.BaseEndpoint = aws.String(cfg.ArchiveS3URL)
			o.UsePathStyle = true
		}
	})
	logger.Info().Str("bucket", cfg.ArchiveS3Bucket).Msg("Webhook payload archive enabled")
	return service.NewS3EventArchiver(client, cfg.ArchiveS3Bucket, logger), nil
}

// removeDisableGzip is a workaround for S3 signature errors with some S3-compatible services.
// See: https://github.com/supabase/storage/issues/577
func removeDisableGzip() func(*awsmiddleware.Stack) error {
	return func(stack *awsmiddleware.Stack) error {
		if _, ok := stack.Finalize.Get("DisableAcceptEncodingGzip"); ok {
			_, err := stack.Finalize.Remove("DisableAcceptEncodingGzip")
			return err
		}
		return nil
	}
}
