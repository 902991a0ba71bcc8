package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"journal-insights/internal/domain"
	"journal-insights/internal/infra/metrics"
)

const defaultPollInterval = time.Second

// AMQPSummaryQueue реализует очередь задач поверх RabbitMQ.
type AMQPSummaryQueue struct {
	conn         *amqp.Connection
	ch           *amqp.Channel
	queue        string
	pollInterval time.Duration
}

var _ domain.SummaryQueue = (*AMQPSummaryQueue)(nil)

// NewAMQPSummaryQueue подключается к RabbitMQ и объявляет durable-очередь.
func NewAMQPSummaryQueue(url, queue string) (*AMQPSummaryQueue, error) {
	if url == "" {
		return nil, errors.New("amqp url is empty")
	}
	if queue == "" {
		return nil, errors.New("queue name is empty")
	}
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("amqp dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("amqp channel: %w", err)
	}
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("amqp queue declare: %w", err)
	}
	return &AMQPSummaryQueue{conn: conn, ch: ch, queue: queue, pollInterval: defaultPollInterval}, nil
}

// Enqueue публикует задачу в очередь.
func (q *AMQPSummaryQueue) Enqueue(ctx context.Context, job domain.SummaryJob) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	start := time.Now()
	err = q.ch.PublishWithContext(ctx, "", q.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         payload,
	})
	metrics.ObserveNetworkRequest("rabbitmq", "publish", q.queue, start, err)
	if err != nil {
		return fmt.Errorf("publish job: %w", err)
	}
	return nil
}

// Pop блокирующе читает задачу из очереди.
func (q *AMQPSummaryQueue) Pop(ctx context.Context) (domain.SummaryJob, error) {
	for {
		if err := ctx.Err(); err != nil {
			return domain.SummaryJob{}, err
		}
		start := time.Now()
		msg, ok, err := q.ch.Get(q.queue, true)
		metrics.ObserveNetworkRequest("rabbitmq", "get", q.queue, start, err)
		if err != nil {
			return domain.SummaryJob{}, fmt.Errorf("get message: %w", err)
		}
		if !ok {
			select {
			case <-ctx.Done():
				return domain.SummaryJob{}, ctx.Err()
			case <-time.After(q.pollInterval):
			}
			continue
		}
		var job domain.SummaryJob
		if err := json.Unmarshal(msg.Body, &job); err != nil {
			return domain.SummaryJob{}, fmt.Errorf("decode job: %w", err)
		}
		return job, nil
	}
}

// Close закрывает канал и соединение.
func (q *AMQPSummaryQueue) Close() error {
	if err := q.ch.Close(); err != nil {
		_ = q.conn.Close()
		return err
	}
	return q.conn.Close()
}
