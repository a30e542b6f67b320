package service

import (
	"context"

	"veloryn/internal/model"
	"veloryn/internal/repository"

	"github.com/rs/zerolog"
)

// SubscriptionService defines read access to a user's subscription record.
type SubscriptionService interface {
	GetSubscription(ctx context.Context, userID string) (*model.SubscriptionRecord, error)
}

type subscriptionService struct {
	repo   repository.SubscriptionRepository
	logger zerolog.Logger
}

// NewSubscriptionService creates a new SubscriptionService with a scoped logger.
func NewSubscriptionService(repo repository.SubscriptionRepository, logger zerolog.Logger) SubscriptionService {
	return &subscriptionService{
		repo:   repo,
		logger: logger.With().Str("service", "SubscriptionService").Logger(),
	}
}

// GetSubscription returns the user's record, or a free record if none was written yet.
func (s *subscriptionService) GetSubscription(ctx context.Context, userID string) (*model.SubscriptionRecord, error) {
	rec, err := s.repo.GetSubscriptionRecord(ctx, userID)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to fetch subscription")
		return nil, err
	}
	if rec == nil {
		return model.NewFreeRecord(userID), nil
	}
	return rec, nil
}
