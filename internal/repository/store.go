package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"veloryn/internal/config"

	"cloud.google.com/go/firestore"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/rs/zerolog"
)

// Store is a subscription record backend together with its tier mapping.
type Store interface {
	SubscriptionRepository
	TierConfigRepository
	Close() error
}

// OpenStore connects to the backend selected by STORE_BACKEND.
func OpenStore(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (Store, error) {
	switch cfg.StoreBackend {
	case config.StorePostgres:
		db, err := openPostgres(ctx, cfg)
		if err != nil {
			return nil, err
		}
		logger.Info().Msg("Database connection successful")
		return NewPostgresStore(db), nil
	case config.StoreFirestore, "":
		client, err := firestore.NewClient(ctx, cfg.GCPProjectID)
		if err != nil {
			return nil, fmt.Errorf("failed to create Firestore client: %w", err)
		}
		logger.Info().Str("collection", cfg.UsersCollection).Msg("Firestore client initialized")
		return NewFirestoreStore(client, cfg.UsersCollection, cfg.TierConfigDocPath), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}

func openPostgres(ctx context.Context, cfg *config.Config) (*sql.DB, error) {
	db, err := sql.Open("pgx", postgresDSN(cfg.DBConnectionString, cfg.IsDevelopment()))
	if err != nil {
		return nil, fmt.Errorf("failed to open DB connection: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping DB: %w", err)
	}

	// Set reasonable connection pool limits
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return db, nil
}

// postgresDSN disables SSL for local development and, elsewhere, switches to
// the simple query protocol so the service works behind pgbouncer.
func postgresDSN(dsn string, development bool) string {
	if development {
		if strings.Contains(dsn, "sslmode") {
			return dsn
		}
		return dsn + dsnSeparator(dsn) + "sslmode=disable"
	}
	if strings.Contains(dsn, "prefer_simple_protocol") {
		return dsn
	}
	return dsn + dsnSeparator(dsn) + "prefer_simple_protocol=true"
}

func dsnSeparator(dsn string) string {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		if strings.Contains(dsn, "?") {
			return "&"
		}
		return "?"
	}
	return " "
}

func (r *PostgresStore) Close() error {
	return r.db.Close()
}

func (s *FirestoreStore) Close() error {
	return s.client.Close()
}
