package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/SeakMengs/AutoSign/internal/signing"
)

// Publisher turns engine side effects into queue messages. It is the production
// signing.Notifier and signing.ExportScheduler.
type Publisher struct {
	broker Broker
}

var (
	_ signing.Notifier        = (*Publisher)(nil)
	_ signing.ExportScheduler = (*Publisher)(nil)
)

func NewPublisher(broker Broker) *Publisher {
	return &Publisher{broker: broker}
}

func (p *Publisher) publish(queueName QueueName, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal %s payload: %w", queueName, err)
	}
	return p.broker.Publish(queueName, body)
}

func (p *Publisher) Notify(_ context.Context, n signing.Notification) error {
	if n.ToEmail == "" {
		return fmt.Errorf("notification %s for document %s has no recipient", n.Kind, n.DocumentID)
	}
	return p.publish(QueueMail, NewMailJobPayload(n))
}

func (p *Publisher) ScheduleExport(_ context.Context, job signing.ExportJob) error {
	return p.publish(QueueExport, NewExportJobPayload(job))
}
