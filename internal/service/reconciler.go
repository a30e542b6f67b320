package service

import (
	"context"
	"fmt"
	"time"

	"veloryn/internal/metrics"
	"veloryn/internal/model"
	"veloryn/internal/repository"

	"github.com/rs/zerolog"
	"github.com/stripe/stripe-go/v82"
)

// SubscriptionFetcher loads the current state of a Stripe subscription.
type SubscriptionFetcher interface {
	GetSubscription(ctx context.Context, subscriptionID string) (*stripe.Subscription, error)
}

// ReconcilerConfig carries everything the reconciler talks to. Subscriptions
// and TierConfig are required; the rest may be nil.
type ReconcilerConfig struct {
	Subscriptions   repository.SubscriptionRepository
	TierConfig      repository.TierConfigRepository
	Stripe          SubscriptionFetcher
	ProcessedEvents repository.ProcessedEventRepository
	Notifier        TierChangeNotifier
	Now             func() time.Time
}

type eventHandler func(ctx context.Context, event stripe.Event) (Outcome, error)

// Reconciler keeps user subscription records in line with Stripe events.
//
// Reads and writes of a record are not wrapped in a transaction: two
// deliveries for the same user that overlap resolve as last write wins.
type Reconciler struct {
	subs     repository.SubscriptionRepository
	tiers    repository.TierConfigRepository
	stripe   SubscriptionFetcher
	events   repository.ProcessedEventRepository
	notifier TierChangeNotifier
	now      func() time.Time
	logger   zerolog.Logger
	handlers map[EventKind]eventHandler
}

// NewReconciler validates the configuration and builds the dispatch table.
func NewReconciler(cfg ReconcilerConfig, logger zerolog.Logger) (*Reconciler, error) {
	if cfg.Subscriptions == nil || cfg.TierConfig == nil {
		return nil, fmt.Errorf("%w: subscription store is required", ErrNotConfigured)
	}
	r := &Reconciler{
		subs:     cfg.Subscriptions,
		tiers:    cfg.TierConfig,
		stripe:   cfg.Stripe,
		events:   cfg.ProcessedEvents,
		notifier: cfg.Notifier,
		now:      cfg.Now,
		logger:   logger.With().Str("service", "Reconciler").Logger(),
	}
	if r.events == nil {
		r.events = repository.NewNoopProcessedEventRepo()
	}
	if r.notifier == nil {
		r.notifier = noopNotifier{}
	}
	if r.now == nil {
		r.now = time.Now
	}
	r.handlers = map[EventKind]eventHandler{
		KindSubscriptionCreated: r.onSubscriptionChanged,
		KindSubscriptionUpdated: r.onSubscriptionChanged,
		KindSubscriptionDeleted: r.onSubscriptionDeleted,
		KindPaymentSucceeded:    r.onPaymentSucceeded,
		KindPaymentFailed:       r.onPaymentFailed,
	}
	return r, nil
}

// HandleEvent applies a verified Stripe event. A returned error means the
// delivery should be retried by Stripe, except for ErrMalformedEvent.
func (r *Reconciler) HandleEvent(ctx context.Context, event stripe.Event) (Outcome, error) {
	kind := KindOf(event.Type)
	start := time.Now()
	defer func() {
		metrics.WebhookDuration.WithLabelValues(string(kind)).Observe(time.Since(start).Seconds())
	}()

	log := r.logger.With().Str("event_id", event.ID).Str("event_type", string(event.Type)).Logger()

	handler, ok := r.handlers[kind]
	if !ok {
		log.Debug().Msg("Ignoring unhandled billing event")
		metrics.WebhookEventsTotal.WithLabelValues(string(kind), string(OutcomeIgnored)).Inc()
		return OutcomeIgnored, nil
	}

	done, err := r.events.IsProcessed(ctx, event.ID)
	if err != nil {
		log.Warn().Err(err).Msg("Could not check processed events; handling event anyway")
	} else if done {
		log.Info().Msg("Billing event already processed")
		metrics.WebhookEventsTotal.WithLabelValues(string(kind), string(OutcomeDuplicate)).Inc()
		return OutcomeDuplicate, nil
	}

	outcome, err := handler(log.WithContext(ctx), event)
	if err != nil {
		log.Error().Err(err).Msg("Failed to handle billing event")
		metrics.WebhookEventsFailed.WithLabelValues(string(kind)).Inc()
		return outcome, err
	}

	if err := r.events.MarkProcessed(ctx, event.ID); err != nil {
		log.Warn().Err(err).Msg("Failed to mark billing event as processed")
	}
	metrics.WebhookEventsTotal.WithLabelValues(string(kind), string(outcome)).Inc()
	log.Info().Str("outcome", string(outcome)).Msg("Billing event handled")
	return outcome, nil
}

func (r *Reconciler) onSubscriptionChanged(ctx context.Context, event stripe.Event) (Outcome, error) {
	sub, err := decodeSubscription(event)
	if err != nil {
		return "", err
	}
	return r.reconcileSubscription(ctx, sub, false)
}

func (r *Reconciler) onSubscriptionDeleted(ctx context.Context, event stripe.Event) (Outcome, error) {
	sub, err := decodeSubscription(event)
	if err != nil {
		return "", err
	}
	return r.reconcileSubscription(ctx, sub, true)
}

// onPaymentSucceeded re-reads the subscription from Stripe rather than
// trusting the invoice, then reconciles it like any other update.
func (r *Reconciler) onPaymentSucceeded(ctx context.Context, event stripe.Event) (Outcome, error) {
	inv, err := decodeInvoice(event)
	if err != nil {
		return "", err
	}
	subID := inv.SubscriptionID()
	if subID == "" {
		zerolog.Ctx(ctx).Info().Str("invoice_id", inv.ID).Msg("Invoice has no subscription, skipping subscription update")
		return OutcomeSkipped, nil
	}
	sub, err := r.fetchSubscription(ctx, subID)
	if err != nil {
		return "", err
	}
	return r.reconcileSubscription(ctx, sub, false)
}

// onPaymentFailed marks the user past due and drops them to the free tier.
// Favorite tickers are left as stored while the payment is outstanding.
func (r *Reconciler) onPaymentFailed(ctx context.Context, event stripe.Event) (Outcome, error) {
	log := zerolog.Ctx(ctx)
	inv, err := decodeInvoice(event)
	if err != nil {
		return "", err
	}

	userID := inv.UserID()
	if userID == "" {
		if subID := inv.SubscriptionID(); subID != "" {
			sub, err := r.fetchSubscription(ctx, subID)
			if err != nil {
				return "", err
			}
			userID = userIDFromMetadata(sub.Metadata)
		}
	}
	if userID == "" {
		log.Error().Str("invoice_id", inv.ID).Msg("Missing userId metadata on failed invoice; event dropped")
		return OutcomeSkipped, nil
	}

	update := model.SubscriptionUpdate{
		Status:    model.StatusPastDue,
		Tier:      model.TierFree,
		UpdatedAt: r.now().UTC(),
	}
	if err := r.subs.UpsertSubscriptionRecord(ctx, userID, update); err != nil {
		return "", fmt.Errorf("mark user %s past due: %w", userID, err)
	}
	log.Info().Str("user_id", userID).Str("invoice_id", inv.ID).Msg("Marked subscription past due")
	return OutcomeStatusUpdated, nil
}

func (r *Reconciler) fetchSubscription(ctx context.Context, subID string) (*stripe.Subscription, error) {
	if r.stripe == nil {
		return nil, fmt.Errorf("%w: stripe client is required to fetch subscription %s", ErrNotConfigured, subID)
	}
	sub, err := r.stripe.GetSubscription(ctx, subID)
	if err != nil {
		return nil, fmt.Errorf("fetch subscription %s: %w", subID, err)
	}
	return sub, nil
}

// reconcileSubscription brings the stored record in line with sub. When
// deleted is set the tier is forced to free and the status to canceled.
func (r *Reconciler) reconcileSubscription(ctx context.Context, sub *stripe.Subscription, deleted bool) (Outcome, error) {
	log := zerolog.Ctx(ctx).With().Str("subscription_id", sub.ID).Logger()

	userID := userIDFromMetadata(sub.Metadata)
	if userID == "" {
		log.Error().Msg("Missing userId metadata on subscription; event dropped")
		return OutcomeSkipped, nil
	}
	log = log.With().Str("user_id", userID).Logger()

	status := string(sub.Status)
	priceID, periodEnd := firstItem(sub)

	newTier := model.TierFree
	if deleted {
		status = model.StatusCanceled
	} else {
		tier, err := r.resolveTier(ctx, priceID)
		if err != nil {
			return "", err
		}
		newTier = tier
	}

	existing, err := r.subs.GetSubscriptionRecord(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("load subscription record for user %s: %w", userID, err)
	}
	if existing == nil {
		existing = model.NewFreeRecord(userID)
	}

	oldTier := existing.SubscriptionTier
	tickers := existing.FavoriteTickers
	if oldTier != newTier {
		tickers = TrimFavoriteTickers(oldTier, newTier, existing.FavoriteTickers)
	}
	if tickers == nil {
		tickers = []model.FavoriteTicker{}
	}

	var subID *string
	if sub.ID != "" {
		id := sub.ID
		subID = &id
	}
	update := model.SubscriptionUpdate{
		Status:    status,
		Tier:      newTier,
		UpdatedAt: r.now().UTC(),
		Billing: &model.BillingFields{
			SubscriptionID:   subID,
			CurrentPeriodEnd: periodEnd,
			FavoriteTickers:  tickers,
		},
	}
	if err := r.subs.UpsertSubscriptionRecord(ctx, userID, update); err != nil {
		return "", fmt.Errorf("save subscription record for user %s: %w", userID, err)
	}

	if oldTier != newTier {
		dropped := droppedSymbols(existing.FavoriteTickers, tickers)
		metrics.TickersTrimmed.Add(float64(len(dropped)))
		log.Info().
			Str("old_tier", string(oldTier)).
			Str("new_tier", string(newTier)).
			Strs("dropped_tickers", dropped).
			Msg("Subscription tier changed")

		change := TierChange{
			UserID:         userID,
			SubscriptionID: sub.ID,
			OldTier:        oldTier,
			NewTier:        newTier,
			Status:         status,
			DroppedTickers: dropped,
			ChangedAt:      update.UpdatedAt,
		}
		if err := r.notifier.NotifyTierChanged(ctx, change); err != nil {
			log.Warn().Err(err).Msg("Failed to publish tier change")
		}
	}
	return OutcomeReconciled, nil
}

func (r *Reconciler) resolveTier(ctx context.Context, priceID string) (model.Tier, error) {
	if priceID == "" {
		return model.TierFree, nil
	}
	mapping, err := r.tiers.GetPriceTierMapping(ctx)
	if err != nil {
		return "", fmt.Errorf("load tier configuration: %w", err)
	}
	name, ok := mapping[priceID]
	if !ok {
		zerolog.Ctx(ctx).Warn().Str("price_id", priceID).Msg("Price has no tier mapping; using free")
		return model.TierFree, nil
	}
	return model.ParseTier(name), nil
}

// firstItem returns the price ID and period end of the subscription's first item.
func firstItem(sub *stripe.Subscription) (string, *time.Time) {
	if sub.Items == nil || len(sub.Items.Data) == 0 || sub.Items.Data[0] == nil {
		return "", nil
	}
	item := sub.Items.Data[0]
	var priceID string
	if item.Price != nil {
		priceID = item.Price.ID
	}
	var periodEnd *time.Time
	if item.CurrentPeriodEnd > 0 {
		t := time.Unix(item.CurrentPeriodEnd, 0).UTC()
		periodEnd = &t
	}
	return priceID, periodEnd
}
