package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/SeakMengs/AutoSign/internal/config"
	"github.com/SeakMengs/AutoSign/internal/database"
	"github.com/SeakMengs/AutoSign/internal/env"
	"github.com/SeakMengs/AutoSign/internal/repository"
	"github.com/SeakMengs/AutoSign/internal/signing"
	"github.com/SeakMengs/AutoSign/internal/util"
)

// this function run before main
func init() {
	env.LoadEnv(".env")
}

func main() {
	cfg := config.GetConfig()
	logger := util.NewLogger(cfg.ENV)
	defer logger.Sync()

	db, err := database.ConnectReturnGormDB(cfg.DB)
	if err != nil {
		logger.Panic(err)
	}

	sqlDb, err := db.DB()
	if err != nil {
		logger.Panic(err)
	}
	defer sqlDb.Close()
	logger.Info("Database connected \n")

	repo := repository.NewRepository(db, logger, nil, nil)
	tokens := signing.NewEngine(repo, logger, cfg.Signing).Tokens()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ticker := time.NewTicker(cfg.Signing.SessionSweepInterval)
	defer ticker.Stop()

	logger.Infof("Sweeping expired signer sessions every %s", cfg.Signing.SessionSweepInterval)

	for {
		select {
		case <-ctx.Done():
			logger.Info("Shutting down session sweeper")
			return
		case <-ticker.C:
			n, err := tokens.SweepExpiredSessions(ctx)
			if err != nil {
				logger.Errorf("Failed to sweep signer sessions: %v", err)
				continue
			}
			if n > 0 {
				logger.Infof("Expired %d signer sessions", n)
			}
		}
	}
}
