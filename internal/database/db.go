package database

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"citylink/internal/config"
	"citylink/internal/repository/mongodb"
	"citylink/internal/repository/postgres"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Open connects the PostgreSQL pool and applies the schema.
func Open(ctx context.Context, cfg config.Config) (*pgxpool.Pool, error) {
	pcfg, err := pgxpool.ParseConfig(cfg.DBURL)
	if err != nil {
		return nil, err
	}
	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres ping: %w", err)
	}
	if err := postgres.Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres migrate: %w", err)
	}
	return pool, nil
}

// ConnectMongo dials MongoDB, pings it and ensures indexes. Index failures
// are logged, not fatal.
func ConnectMongo(ctx context.Context, cfg config.Config, l zerolog.Logger) (*mongo.Client, *mongo.Database, error) {
	start := time.Now()
	l.Info().Str("uri", redactURI(cfg.MongoURI)).Str("db", cfg.MongoDB).Msg("mongo: connecting")

	dctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	c, err := mongo.Connect(dctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		return nil, nil, fmt.Errorf("mongo connect: %w", err)
	}
	if err := c.Ping(dctx, nil); err != nil {
		_ = c.Disconnect(context.Background())
		return nil, nil, fmt.Errorf("mongo ping: %w", err)
	}
	db := c.Database(cfg.MongoDB)

	ictx, icancel := context.WithTimeout(ctx, 10*time.Second)
	defer icancel()
	if err := mongodb.EnsureIndexes(ictx, db); err != nil {
		l.Warn().Err(err).Msg("mongo: index creation warnings")
	}

	l.Info().Dur("took", time.Since(start).Round(time.Millisecond)).Msg("mongo: connected")
	return c, db, nil
}

func redactURI(raw string) string {
	if raw == "" || !strings.Contains(raw, "://") {
		return raw
	}
	u, err := url.Parse(raw)
	if err != nil || u.User == nil {
		return raw
	}
	u.User = url.UserPassword("****", "****")
	return u.String()
}
