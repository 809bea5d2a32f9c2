package queue

import (
	"encoding/json"
	"fmt"
	"log"

	"github.com/rabbitmq/amqp091-go"
)

// Broker is the publishing side of RabbitMQ.
type Broker interface {
	Publish(routingKey QueueName, body []byte) error
}

type jobOutcome int

const (
	outcomeAck jobOutcome = iota
	outcomeRequeue
	outcomeDrop
)

// decideOutcome applies the retry policy shared by every queue: a failed job is
// published again with Try+1 while the handler asks for it and MAX_QUEUE_RETRY
// is not reached.
func decideOutcome(shouldRequeue bool, err error, try int) jobOutcome {
	if err == nil {
		return outcomeAck
	}
	if !shouldRequeue || try >= MAX_QUEUE_RETRY {
		return outcomeDrop
	}
	return outcomeRequeue
}

// republish acks the original delivery only once the retry copy is published.
func republish(r *RabbitMQ, queueName QueueName, workerPrefix string, msg amqp091.Delivery, payload any) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		log.Printf("%s Failed to marshal payload for requeue: %v", workerPrefix, err)
		r.Nack(msg, false)
		return
	}

	if err := r.Publish(queueName, payloadBytes); err != nil {
		log.Printf("%s Failed to requeue job: %v", workerPrefix, err)
		r.Nack(msg, false)
		return
	}

	r.Ack(msg)
}

func decode(workerName string, workerNumber int, msg amqp091.Delivery, out any) error {
	if msg.Body == nil {
		return fmt.Errorf("[%s %d] Received empty message body", workerName, workerNumber)
	}
	if err := json.Unmarshal(msg.Body, out); err != nil {
		return fmt.Errorf("[%s %d] Invalid payload: %v", workerName, workerNumber, err)
	}
	return nil
}
