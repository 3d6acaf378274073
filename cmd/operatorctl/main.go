package main

import (
	"context"
	"fmt"
	"os"

	"github.com/bizops/backend/internal/application/operator"
	"github.com/bizops/backend/internal/infrastructure/cache"
	"github.com/bizops/backend/internal/infrastructure/config"
	"github.com/bizops/backend/internal/infrastructure/logger"
	"github.com/bizops/backend/internal/infrastructure/persistence"
	"github.com/bizops/backend/internal/tools/operatorctl"
	"go.uber.org/zap"
)

func main() {
	if err := operatorctl.NewRootCommand(open).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// open connects to the database and, when the operator cache is enabled, to
// Redis so that changes take effect before cached answers expire.
func open(ctx context.Context) (*operator.Service, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}

	log, err := logger.New(&logger.Config{
		Level:      "warn",
		Format:     "console",
		Output:     "stderr",
		TimeFormat: "2006-01-02 15:04:05",
	})
	if err != nil {
		return nil, nil, err
	}

	db, err := persistence.NewDatabase(&cfg.Database)
	if err != nil {
		_ = logger.Sync(log)
		return nil, nil, err
	}

	repo := persistence.NewGormOperatorRepository(db.DB)
	opts := []operator.Option{}
	release := func() {
		_ = db.Close()
		_ = logger.Sync(log)
	}

	if cfg.Operator.CacheEnabled {
		client, err := cache.NewRedisClient(ctx, cfg.Redis.Addr(), cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			log.Warn("Redis unavailable, cached operator answers expire with their TTL",
				zap.Duration("ttl", cfg.Operator.CacheTTL), zap.Error(err))
		} else {
			opts = append(opts, operator.WithCache(cache.NewRedisOperatorChecker(repo, client, cfg.Operator.CacheTTL, log)))
			dbRelease := release
			release = func() {
				_ = client.Close()
				dbRelease()
			}
		}
	}

	return operator.NewService(repo, log, opts...), release, nil
}
