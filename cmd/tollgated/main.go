package main

import (
	"log"

	"tollgate/internal/config"
	"tollgate/internal/infra/db"
	httpinfra "tollgate/internal/infra/http"
	"tollgate/internal/infra/logging"
)

func main() {
	cfg := config.FromEnv()

	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync()

	store, err := db.NewStore(cfg)
	if err != nil {
		logger.Fatalw("failed to init store", "error", err)
	}
	if store != nil && store.DB != nil {
		if err := store.AutoMigrate(); err != nil {
			logger.Fatalw("failed to migrate schema", "error", err)
		}
	}

	srv := httpinfra.NewServer(cfg, store, logger)
	if err := srv.Run(); err != nil {
		logger.Fatalw("server exited", "error", err)
	}
}
