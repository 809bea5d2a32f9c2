package queue

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/SeakMengs/AutoSign/internal/config"
	"github.com/SeakMengs/AutoSign/internal/constant"
	"github.com/SeakMengs/AutoSign/internal/mailer"
	"github.com/SeakMengs/AutoSign/internal/metrics"
	"github.com/SeakMengs/AutoSign/internal/model"
	"github.com/SeakMengs/AutoSign/internal/repository"
	"github.com/SeakMengs/AutoSign/internal/signing"
	"github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

type MailConsumerContext struct {
	Config     *config.Config
	Logger     *zap.SugaredLogger
	Repository *repository.Repository
	Mailer     mailer.Client
}

type MailJobPayload struct {
	DocumentID string            `json:"document_id"`
	SignerID   *string           `json:"signer_id,omitempty"`
	Template   string            `json:"template"`
	ToEmail    string            `json:"to_email"`
	ToName     string            `json:"to_name"`
	Data       map[string]string `json:"data"`
	CreatedAt  string            `json:"created_at"`
	Try        int               `json:"try" default:"0"`
}

func NewMailJobPayload(n signing.Notification) MailJobPayload {
	return MailJobPayload{
		DocumentID: n.DocumentID,
		SignerID:   n.SignerID,
		Template:   string(n.Kind),
		ToEmail:    n.ToEmail,
		ToName:     n.ToName,
		Data:       n.Data,
		CreatedAt:  time.Now().UTC().Format(time.RFC3339),
	}
}

type MailJobHandler func(ctx context.Context, jobPayload MailJobPayload, app *MailConsumerContext) (bool, error)

// SendMailJob delivers one notification and records the attempt in email_logs.
// Return shouldRequeue, err
func SendMailJob(ctx context.Context, jobPayload MailJobPayload, app *MailConsumerContext) (bool, error) {
	templateFile, err := mailer.TemplateFor(jobPayload.Template)
	if err != nil {
		return false, err
	}

	status, sendErr := app.Mailer.Send(templateFile, jobPayload.ToEmail, jobPayload.Data)
	if sendErr == nil && status >= http.StatusBadRequest {
		sendErr = fmt.Errorf("email sending failed with status: %d", status)
	}

	entry := &model.EmailLog{
		DocumentID: jobPayload.DocumentID,
		SignerID:   jobPayload.SignerID,
		Template:   jobPayload.Template,
		ToEmail:    jobPayload.ToEmail,
		Status:     constant.EmailStatusSent,
	}
	result := "sent"
	if sendErr != nil {
		entry.Status = constant.EmailStatusFailed
		entry.Error = sendErr.Error()
		result = "failed"
	}
	metrics.NotificationsTotal.WithLabelValues(jobPayload.Template, result).Inc()

	if _, err := app.Repository.EmailLog.Create(ctx, nil, entry); err != nil {
		app.Logger.Errorf("Failed to write email log for document %s: %v", jobPayload.DocumentID, err)
	}

	if sendErr != nil {
		return true, sendErr
	}
	return false, nil
}

func (r *RabbitMQ) ConsumeMailJob(ctx context.Context, handler MailJobHandler, maxWorker int, app *MailConsumerContext) error {
	msgs, err := r.Consume(QueueMail)
	if err != nil {
		return fmt.Errorf("failed to start consuming mail jobs: %w", err)
	}

	for i := range maxWorker {
		go func(workerNumber int) {
			runMailWorker(ctx, r, workerNumber, msgs, handler, app)
		}(i + 1)
	}

	return nil
}

func runMailWorker(ctx context.Context, rabbitMQ *RabbitMQ, workerNumber int, msgs <-chan amqp091.Delivery, handler MailJobHandler, app *MailConsumerContext) {
	for {
		select {
		case <-ctx.Done():
			log.Printf("[Mail Worker %d] Shutting down", workerNumber)
			return
		case msg, ok := <-msgs:
			if !ok {
				log.Printf("[Mail Worker %d] Message channel closed", workerNumber)
				return
			}
			processMailJob(ctx, rabbitMQ, workerNumber, msg, handler, app)
		}
	}
}

func processMailJob(ctx context.Context, rabbitMQ *RabbitMQ, workerNumber int, msg amqp091.Delivery, handler MailJobHandler, app *MailConsumerContext) {
	var jobPayload MailJobPayload
	if err := decode("Mail Worker", workerNumber, msg, &jobPayload); err != nil {
		log.Print(err)
		rabbitMQ.Nack(msg, false)
		return
	}

	workerPrefix := fmt.Sprintf("[Mail Worker %d: Retry %d]", workerNumber, jobPayload.Try)

	shouldRequeue, err := handler(ctx, jobPayload, app)
	switch decideOutcome(shouldRequeue, err, jobPayload.Try) {
	case outcomeAck:
		log.Printf("%s Successfully processed mail job for recipient: %s, template: %s",
			workerPrefix, jobPayload.ToEmail, jobPayload.Template)
		rabbitMQ.Ack(msg)
	case outcomeRequeue:
		log.Printf("%s Requeuing mail job for recipient: %s, template: %s: %v",
			workerPrefix, jobPayload.ToEmail, jobPayload.Template, err)
		jobPayload.Try++
		republish(rabbitMQ, QueueMail, workerPrefix, msg, jobPayload)
	case outcomeDrop:
		log.Printf("%s Dropping mail job for recipient: %s, template: %s (retry: %d, shouldRequeue: %v): %v",
			workerPrefix, jobPayload.ToEmail, jobPayload.Template, jobPayload.Try, shouldRequeue, err)
		rabbitMQ.Nack(msg, false)
	}
}
