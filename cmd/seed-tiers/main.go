package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"veloryn/internal/config"
	"veloryn/internal/logger"
	"veloryn/internal/model"
	"veloryn/internal/repository"

	"github.com/joho/godotenv"
)

// seed-tiers writes Stripe price to tier mappings into the configured store.
//
//	seed-tiers -map price_123=standard -map price_456=premium
//	seed-tiers -list
func main() {
	var mappings mappingFlag
	flag.Var(&mappings, "map", "price_id=tier mapping to write (repeatable)")
	list := flag.Bool("list", false, "Print the current mapping and exit")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		bootLog := logger.New("info")
		bootLog.Warn().Msg("Warning: no .env file found")
	}
	cfg, err := config.Load()
	if err != nil {
		bootLog := logger.New("info")
		bootLog.Fatal().Msgf("Error loading config: %v", err)
	}
	logger := logger.New(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := repository.OpenStore(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to open store")
	}
	defer store.Close()

	if !*list && len(mappings) == 0 {
		flag.Usage()
		os.Exit(2)
	}

	for _, m := range mappings {
		if err := store.SetPriceTier(ctx, m.priceID, string(m.tier)); err != nil {
			logger.Fatal().Err(err).Str("price_id", m.priceID).Msg("Failed to write mapping")
		}
		logger.Info().Str("price_id", m.priceID).Str("tier", string(m.tier)).Msg("Mapping written")
	}

	if *list {
		current, err := store.GetPriceTierMapping(ctx)
		if err != nil {
			logger.Fatal().Err(err).Msg("Failed to read mapping")
		}
		for priceID, tier := range current {
			fmt.Printf("%s\t%s\n", priceID, tier)
		}
	}
}

type priceTier struct {
	priceID string
	tier    model.Tier
}

type mappingFlag []priceTier

func (f *mappingFlag) String() string {
	parts := make([]string, 0, len(*f))
	for _, m := range *f {
		parts = append(parts, m.priceID+"="+string(m.tier))
	}
	return strings.Join(parts, ",")
}

func (f *mappingFlag) Set(v string) error {
	m, err := parseMapping(v)
	if err != nil {
		return err
	}
	*f = append(*f, m)
	return nil
}

// parseMapping rejects unknown tier names; the reconciler would treat them as free.
func parseMapping(v string) (priceTier, error) {
	priceID, tier, ok := strings.Cut(v, "=")
	priceID = strings.TrimSpace(priceID)
	tier = strings.ToLower(strings.TrimSpace(tier))
	if !ok || priceID == "" || tier == "" {
		return priceTier{}, fmt.Errorf("expected price_id=tier, got %q", v)
	}
	if !model.Tier(tier).Valid() {
		return priceTier{}, fmt.Errorf("unknown tier %q", tier)
	}
	return priceTier{priceID: priceID, tier: model.Tier(tier)}, nil
}
