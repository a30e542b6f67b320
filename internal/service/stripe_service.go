package service

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/stripe/stripe-go/v82"
	subscriptionpkg "github.com/stripe/stripe-go/v82/subscription"
	"github.com/stripe/stripe-go/v82/webhook"
)

// StripeService wraps the Stripe calls the billing integration needs: webhook
// signature verification and subscription lookups.
type StripeService struct {
	webhookSecret    string
	ignoreAPIVersion bool
	subscriptions    subscriptionpkg.Client
	hasSecretKey     bool
	logger           zerolog.Logger
}

// NewStripeService fails with ErrNotConfigured when no webhook secret is set,
// since unverifiable deliveries must never be processed.
func NewStripeService(secretKey, webhookSecret string, ignoreAPIVersion bool, logger zerolog.Logger) (*StripeService, error) {
	if webhookSecret == "" {
		return nil, fmt.Errorf("%w: stripe webhook secret is empty", ErrNotConfigured)
	}
	return &StripeService{
		webhookSecret:    webhookSecret,
		ignoreAPIVersion: ignoreAPIVersion,
		subscriptions:    subscriptionpkg.Client{B: stripe.GetBackend(stripe.APIBackend), Key: secretKey},
		hasSecretKey:     secretKey != "",
		logger:           logger.With().Str("service", "StripeService").Logger(),
	}, nil
}

// ConstructEvent verifies the Stripe-Signature header against the raw payload
// and decodes the event envelope.
func (s *StripeService) ConstructEvent(payload []byte, signature string) (stripe.Event, error) {
	return webhook.ConstructEventWithOptions(payload, signature, s.webhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: s.ignoreAPIVersion,
	})
}

// GetSubscription fetches the subscription with its items.
func (s *StripeService) GetSubscription(ctx context.Context, subscriptionID string) (*stripe.Subscription, error) {
	if !s.hasSecretKey {
		return nil, fmt.Errorf("%w: stripe secret key is empty", ErrNotConfigured)
	}
	params := &stripe.SubscriptionParams{}
	params.Context = ctx
	sub, err := s.subscriptions.Get(subscriptionID, params)
	if err != nil {
		s.logger.Error().Err(err).Str("subscription_id", subscriptionID).Msg("Failed to fetch subscription details")
		return nil, err
	}
	return sub, nil
}
