package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"veloryn/internal/api/v1/dto"
	"veloryn/internal/middleware"
	"veloryn/internal/model"
	"veloryn/internal/service"

	"github.com/rs/zerolog"
)

// SubscriptionHandler serves the signed-in user's subscription record.
type SubscriptionHandler struct {
	subSvc service.SubscriptionService
	logger zerolog.Logger
}

// NewSubscriptionHandler creates a new SubscriptionHandler.
func NewSubscriptionHandler(subSvc service.SubscriptionService, logger zerolog.Logger) *SubscriptionHandler {
	return &SubscriptionHandler{subSvc: subSvc, logger: logger}
}

// RegisterRoutes registers the subscription endpoints.
func (h *SubscriptionHandler) RegisterRoutes(mux *http.ServeMux, authMw func(http.Handler) http.Handler) {
	mux.Handle("/users/me/subscription", authMw(http.HandlerFunc(h.getSubscription)))
}

func (h *SubscriptionHandler) getSubscription(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	// 1. Extract UserID from context
	userID, ok := r.Context().Value(middleware.UserContextKey).(string)
	if !ok || userID == "" {
		http.Error(w, "Unauthorized: User ID not found in context", http.StatusUnauthorized)
		return
	}

	// 2. Load record
	rec, err := h.subSvc.GetSubscription(r.Context(), userID)
	if err != nil {
		h.logger.Error().Err(err).Str("user_id", userID).Msg("failed to load subscription")
		http.Error(w, "failed to load subscription", http.StatusInternalServerError)
		return
	}

	// 3. Respond
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(toSubscriptionResponse(rec)); err != nil {
		h.logger.Error().Err(err).Msg("failed to encode response")
	}
}

func toSubscriptionResponse(rec *model.SubscriptionRecord) dto.SubscriptionResponseDTO {
	tickers := make([]dto.FavoriteTickerDTO, 0, len(rec.FavoriteTickers))
	for _, t := range rec.FavoriteTickers {
		tickers = append(tickers, dto.FavoriteTickerDTO{Symbol: t.Symbol, Name: t.Name, DailyUpdates: t.DailyUpdates})
	}
	tier := model.ParseTier(string(rec.SubscriptionTier))
	resp := dto.SubscriptionResponseDTO{
		UserID:              rec.UserID,
		SubscriptionID:      rec.SubscriptionID,
		SubscriptionStatus:  rec.SubscriptionStatus,
		SubscriptionTier:    string(tier),
		CurrentPeriodEnd:    rec.CurrentPeriodEnd,
		FavoriteTickers:     tickers,
		FavoriteTickerLimit: tier.Limit(),
	}
	if !rec.UpdatedAt.IsZero() {
		updated := rec.UpdatedAt.In(time.UTC)
		resp.UpdatedAt = &updated
	}
	return resp
}
