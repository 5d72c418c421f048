package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/hisabkitab/backend/internal/models"
	"go.uber.org/zap"
)

const catalogCacheKey = "catalog:apps"

// AppCatalog answers which payment apps exist and what they support
type AppCatalog interface {
	Lookup(ctx context.Context, key string) (*models.SupportedApp, error)
	List(ctx context.Context) ([]models.SupportedApp, error)
}

// CatalogService reads the supported_apps table through a Redis cache.
// Without Redis every call goes to the database.
type CatalogService struct {
	db     *sql.DB
	redis  *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

func NewCatalogService(db *sql.DB, redisClient *redis.Client, ttl time.Duration, logger *zap.Logger) *CatalogService {
	return &CatalogService{
		db:     db,
		redis:  redisClient,
		ttl:    ttl,
		logger: logger.Named("catalog"),
	}
}

// Lookup returns the app registered under key or ErrAppNotFound.
func (c *CatalogService) Lookup(ctx context.Context, key string) (*models.SupportedApp, error) {
	apps, err := c.List(ctx)
	if err != nil {
		return nil, err
	}
	for i := range apps {
		if apps[i].Key == key {
			return &apps[i], nil
		}
	}
	return nil, ErrAppNotFound
}

// List returns the whole catalog ordered by display name.
func (c *CatalogService) List(ctx context.Context) ([]models.SupportedApp, error) {
	if apps, ok := c.cached(ctx); ok {
		return apps, nil
	}

	rows, err := c.db.QueryContext(ctx,
		`SELECT key, name, supports_wallet, icon FROM supported_apps ORDER BY name ASC`)
	if err != nil {
		return nil, fmt.Errorf("list supported apps: %w", err)
	}
	defer rows.Close()

	apps := []models.SupportedApp{}
	for rows.Next() {
		var app models.SupportedApp
		if err := rows.Scan(&app.Key, &app.Name, &app.SupportsWallet, &app.Icon); err != nil {
			return nil, fmt.Errorf("scan supported app: %w", err)
		}
		apps = append(apps, app)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	c.store(ctx, apps)
	return apps, nil
}

func (c *CatalogService) cached(ctx context.Context) ([]models.SupportedApp, bool) {
	if c.redis == nil {
		return nil, false
	}

	data, err := c.redis.Get(ctx, catalogCacheKey).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("catalog cache read failed", zap.Error(err))
		}
		return nil, false
	}

	var apps []models.SupportedApp
	if err := json.Unmarshal(data, &apps); err != nil {
		c.logger.Warn("discarding corrupt catalog cache entry", zap.Error(err))
		return nil, false
	}
	return apps, true
}

func (c *CatalogService) store(ctx context.Context, apps []models.SupportedApp) {
	if c.redis == nil {
		return
	}

	data, err := json.Marshal(apps)
	if err != nil {
		return
	}
	if err := c.redis.Set(ctx, catalogCacheKey, data, c.ttl).Err(); err != nil {
		c.logger.Warn("catalog cache write failed", zap.Error(err))
	}
}
