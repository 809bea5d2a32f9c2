package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/SeakMengs/AutoSign/internal/config"
	"github.com/SeakMengs/AutoSign/internal/credential"
	"github.com/SeakMengs/AutoSign/internal/database"
	"github.com/SeakMengs/AutoSign/internal/env"
	"github.com/SeakMengs/AutoSign/internal/export"
	filestorage "github.com/SeakMengs/AutoSign/internal/file_storage"
	"github.com/SeakMengs/AutoSign/internal/metrics"
	"github.com/SeakMengs/AutoSign/internal/queue"
	"github.com/SeakMengs/AutoSign/internal/repository"
	"github.com/SeakMengs/AutoSign/internal/util"
	"github.com/SeakMengs/AutoSign/pkg/autosign"
)

// this function run before main
func init() {
	env.LoadEnv(".env")
}

const MAX_WORKERS = 3

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

	s3, err := filestorage.NewMinioClient(&cfg.Minio)
	if err != nil {
		logger.Error("Error connecting to minio")
		logger.Panic(err)
	}
	logger.Info("Minio connected \n")

	cipher, err := credential.NewCipher(cfg.Crypto)
	if err != nil {
		logger.Panicf("Failed to initialize credential cipher: %v", err)
	}

	exporter, err := export.NewDefaultExporter(cipher, cfg.Storage, logger)
	if err != nil {
		logger.Panicf("Failed to initialize exporter: %v", err)
	}

	metrics.MustRegister()

	repo := repository.NewRepository(db, logger, nil, s3)
	app := queue.ExportConsumerContext{
		Config:     &cfg,
		Logger:     logger,
		Repository: repo,
		S3:         s3,
		Renderer:   autosign.NewRenderer(*autosign.NewDefaultConfig()),
		Exporter:   exporter,
	}

	rabbitMQ, err := queue.NewRabbitMQ(cfg.RabbitMQ.GetConnectionString())
	if err != nil {
		logger.Panic("Error connecting to RabbitMQ: ", err)
	}
	logger.Info("RabbitMQ connected \n")
	defer func() {
		if err := rabbitMQ.Close(); err != nil {
			logger.Errorf("Failed to close RabbitMQ connection: %v", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rabbitMQ.ConsumeExportJob(ctx, queue.FinalizeDocumentJob, queue.MarkExportFailed, MAX_WORKERS, &app); err != nil {
		logger.Fatalf("Failed to consume export job: %v", err)
	}

	logger.Infof("Started consuming export job with %d workers", MAX_WORKERS)

	<-ctx.Done()
	logger.Info("Shutting down export consumer")
}
