package main

import (
	"context"
	"errors"
	"flag"
	"time"

	"veloryn/internal/config"
	"veloryn/internal/logger"

	"cloud.google.com/go/pubsub"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

const retention = 7 * 24 * time.Hour

func main() {
	reset := flag.Bool("reset", false, "Delete every topic and subscription in the emulator first")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		bootLog := logger.New("info")
		bootLog.Warn().Msg("No .env file found, relying on system environment variables.")
	}
	cfg, err := config.Load()
	if err != nil {
		bootLog := logger.New("info")
		bootLog.Fatal().Msgf("Failed to load config: %v", err)
	}
	logger := logger.New(cfg.LogLevel)
	logger.Info().Msg("Starting Pub/Sub setup for the local environment.")

	if cfg.PubSubEmulatorHost == "" {
		logger.Fatal().Msg("PUBSUB_EMULATOR_HOST must be set for local environment.")
	}
	if cfg.PubSubTierTopic == "" {
		logger.Fatal().Msg("PUBSUB_TIER_CHANGED_TOPIC is not set; nothing to create.")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	client, err := pubsub.NewClient(ctx, cfg.GCPProjectID,
		option.WithEndpoint(cfg.PubSubEmulatorHost),
		option.WithoutAuthentication(),
	)
	if err != nil {
		logger.Fatal().Msgf("Failed to create Pub/Sub client: %v", err)
	}
	defer func() {
		if err := client.Close(); err != nil {
			logger.Error().Msgf("Failed to close pubsub client: %v", err)
		}
	}()

	if *reset {
		if err := resetEmulator(ctx, client, logger); err != nil {
			logger.Fatal().Err(err).Msg("Failed to reset emulator")
		}
	}
	if err := ensureTierChangedResources(ctx, client, cfg.PubSubTierTopic, logger); err != nil {
		logger.Fatal().Err(err).Msg("Failed to create Pub/Sub resources")
	}
	logger.Info().Msg("Pub/Sub setup for local environment complete.")
}

// resetEmulator deletes all subscriptions and topics. Only ever point it at the emulator.
func resetEmulator(ctx context.Context, client *pubsub.Client, logger zerolog.Logger) error {
	subs := client.Subscriptions(ctx)
	for {
		sub, err := subs.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return err
		}
		logger.Info().Msgf("Deleting subscription: %s", sub.ID())
		if err := sub.Delete(ctx); err != nil {
			logger.Warn().Err(err).Msgf("Failed to delete subscription %s", sub.ID())
		}
	}

	topics := client.Topics(ctx)
	for {
		topic, err := topics.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return err
		}
		logger.Info().Msgf("Deleting topic: %s", topic.ID())
		if err := topic.Delete(ctx); err != nil {
			logger.Warn().Err(err).Msgf("Failed to delete topic %s", topic.ID())
		}
	}
	return nil
}

// ensureTierChangedResources creates the tier change topic, its dead letter
// topic and a pull subscription local consumers can read from.
func ensureTierChangedResources(ctx context.Context, client *pubsub.Client, topicID string, logger zerolog.Logger) error {
	dlqTopic, err := ensureTopic(ctx, client, topicID+"-dlq", logger)
	if err != nil {
		return err
	}
	topic, err := ensureTopic(ctx, client, topicID, logger)
	if err != nil {
		return err
	}
	return ensureSubscription(ctx, client, subscriptionConfig(topic, dlqTopic), topicID+"-sub", logger)
}

func subscriptionConfig(topic, dlqTopic *pubsub.Topic) pubsub.SubscriptionConfig {
	return pubsub.SubscriptionConfig{
		Topic:             topic,
		AckDeadline:       60 * time.Second,
		RetentionDuration: retention,
		ExpirationPolicy:  31 * 24 * time.Hour,
		RetryPolicy: &pubsub.RetryPolicy{
			MinimumBackoff: 10 * time.Second,
			MaximumBackoff: 600 * time.Second,
		},
		DeadLetterPolicy: &pubsub.DeadLetterPolicy{
			DeadLetterTopic:     dlqTopic.String(),
			MaxDeliveryAttempts: 5,
		},
	}
}

func ensureTopic(ctx context.Context, client *pubsub.Client, topicID string, logger zerolog.Logger) (*pubsub.Topic, error) {
	topic := client.Topic(topicID)
	exists, err := topic.Exists(ctx)
	if err != nil {
		return nil, err
	}
	if exists {
		logger.Info().Msgf("Topic %s already exists.", topicID)
		return topic, nil
	}
	logger.Info().Msgf("Creating topic: %s with %v retention", topicID, retention)
	return client.CreateTopicWithConfig(ctx, topicID, &pubsub.TopicConfig{RetentionDuration: retention})
}

func ensureSubscription(ctx context.Context, client *pubsub.Client, subCfg pubsub.SubscriptionConfig, subID string, logger zerolog.Logger) error {
	sub := client.Subscription(subID)
	exists, err := sub.Exists(ctx)
	if err != nil {
		return err
	}
	if !exists {
		logger.Info().Msgf("Creating pull subscription %s", subID)
		_, err := client.CreateSubscription(ctx, subID, subCfg)
		return err
	}

	existing, err := sub.Config(ctx)
	if err != nil {
		return err
	}
	if existing.AckDeadline == subCfg.AckDeadline && sameRetryPolicy(existing.RetryPolicy, subCfg.RetryPolicy) {
		logger.Info().Msgf("Subscription %s is up to date.", subID)
		return nil
	}
	logger.Info().Msgf("Updating subscription %s", subID)
	_, err = sub.Update(ctx, pubsub.SubscriptionConfigToUpdate{
		AckDeadline: subCfg.AckDeadline,
		RetryPolicy: subCfg.RetryPolicy,
	})
	return err
}

func sameRetryPolicy(a, b *pubsub.RetryPolicy) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.MinimumBackoff == b.MinimumBackoff && a.MaximumBackoff == b.MaximumBackoff
}
