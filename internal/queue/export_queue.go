package queue

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/SeakMengs/AutoSign/internal/config"
	"github.com/SeakMengs/AutoSign/internal/export"
	"github.com/SeakMengs/AutoSign/internal/repository"
	"github.com/SeakMengs/AutoSign/internal/signing"
	"github.com/SeakMengs/AutoSign/pkg/autosign"
	"github.com/minio/minio-go/v7"
	"github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

type ExportConsumerContext struct {
	// Config holds application settings provided from .env file.
	Config     *config.Config
	Logger     *zap.SugaredLogger
	Repository *repository.Repository
	S3         *minio.Client
	Renderer   *autosign.Renderer
	Exporter   *export.Exporter
}

// ExportJobPayload renders the finished file of DocumentID. When ExportID is set
// the file is also uploaded to the provider recorded on that export.
type ExportJobPayload struct {
	DocumentID string `json:"document_id"`
	ExportID   string `json:"export_id,omitempty"`
	CreatedAt  string `json:"created_at"`
	Try        int    `json:"try" default:"0"`
}

func NewExportJobPayload(job signing.ExportJob) ExportJobPayload {
	return ExportJobPayload{
		DocumentID: job.DocumentID,
		ExportID:   job.ExportID,
		CreatedAt:  time.Now().UTC().Format(time.RFC3339),
	}
}

// Return shouldRequeue, err
type ExportJobHandler func(ctx context.Context, jobPayload ExportJobPayload, app *ExportConsumerContext) (bool, error)

// ExportFailureHandler runs once a job is dropped for good.
type ExportFailureHandler func(ctx context.Context, jobPayload ExportJobPayload, app *ExportConsumerContext, cause error)

func (r *RabbitMQ) ConsumeExportJob(ctx context.Context, handler ExportJobHandler, onFailure ExportFailureHandler, maxWorker int, app *ExportConsumerContext) error {
	msgs, err := r.Consume(QueueExport)
	if err != nil {
		return fmt.Errorf("failed to start consuming export jobs: %w", err)
	}

	for i := range maxWorker {
		go func(workerNumber int) {
			for {
				select {
				case <-ctx.Done():
					log.Printf("[Export Worker %d] Shutting down", workerNumber)
					return
				case msg, ok := <-msgs:
					if !ok {
						log.Printf("[Export Worker %d] Message channel closed", workerNumber)
						return
					}
					processExportJob(ctx, r, workerNumber, msg, handler, onFailure, app)
				}
			}
		}(i + 1)
	}

	return nil
}

func processExportJob(ctx context.Context, rabbitMQ *RabbitMQ, workerNumber int, msg amqp091.Delivery, handler ExportJobHandler, onFailure ExportFailureHandler, app *ExportConsumerContext) {
	var jobPayload ExportJobPayload
	if err := decode("Export Worker", workerNumber, msg, &jobPayload); err != nil {
		log.Print(err)
		rabbitMQ.Nack(msg, false)
		return
	}

	workerPrefix := fmt.Sprintf("[Export Worker %d: Retry %d]", workerNumber, jobPayload.Try)
	start := time.Now()

	shouldRequeue, err := handler(ctx, jobPayload, app)
	switch decideOutcome(shouldRequeue, err, jobPayload.Try) {
	case outcomeAck:
		log.Printf("%s Processed export job for document %s in %s", workerPrefix, jobPayload.DocumentID, time.Since(start))
		rabbitMQ.Ack(msg)
	case outcomeRequeue:
		log.Printf("%s Requeuing export job for document %s: %v", workerPrefix, jobPayload.DocumentID, err)
		jobPayload.Try++
		republish(rabbitMQ, QueueExport, workerPrefix, msg, jobPayload)
	case outcomeDrop:
		log.Printf("%s Dropping export job for document %s (shouldRequeue: %v): %v", workerPrefix, jobPayload.DocumentID, shouldRequeue, err)
		if onFailure != nil {
			onFailure(ctx, jobPayload, app, err)
		}
		rabbitMQ.Nack(msg, false)
	}
}
