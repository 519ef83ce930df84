package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"

	"pulsecheck/internal/domain"
)

// RabbitPassQueue реализует очередь задач на проходы через AMQP.
type RabbitPassQueue struct {
	conn       *amqp.Connection
	ch         *amqp.Channel
	queue      string
	deliveries <-chan amqp.Delivery
}

var _ domain.PassQueue = (*RabbitPassQueue)(nil)

// NewRabbitPassQueue подключается к брокеру и объявляет устойчивую очередь.
func NewRabbitPassQueue(amqpURL, queue string) (*RabbitPassQueue, error) {
	if amqpURL == "" {
		return nil, errors.New("amqp url is empty")
	}
	if queue == "" {
		return nil, errors.New("queue name is empty")
	}
	conn, err := amqp.Dial(amqpURL)
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
		return nil, fmt.Errorf("declare queue: %w", err)
	}
	return &RabbitPassQueue{conn: conn, ch: ch, queue: queue}, nil
}

// Enqueue публикует задачу в очередь.
func (q *RabbitPassQueue) Enqueue(ctx context.Context, job domain.PassJob) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	err = q.ch.PublishWithContext(ctx, "", q.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         payload,
	})
	if err != nil {
		return fmt.Errorf("publish job: %w", err)
	}
	return nil
}

// Pop блокирующе читает задачу из очереди. Подписка создаётся один раз
// при первом вызове и переиспользуется.
func (q *RabbitPassQueue) Pop(ctx context.Context) (domain.PassJob, error) {
	if q.deliveries == nil {
		deliveries, err := q.ch.Consume(q.queue, "", false, false, false, false, nil)
		if err != nil {
			return domain.PassJob{}, fmt.Errorf("consume: %w", err)
		}
		q.deliveries = deliveries
	}
	for {
		select {
		case <-ctx.Done():
			return domain.PassJob{}, ctx.Err()
		case d, ok := <-q.deliveries:
			if !ok {
				return domain.PassJob{}, errors.New("amqp queue: канал доставки закрыт")
			}
			var job domain.PassJob
			if err := json.Unmarshal(d.Body, &job); err != nil {
				// Нечитаемое сообщение не возвращаем в очередь.
				_ = d.Nack(false, false)
				return domain.PassJob{}, fmt.Errorf("decode job: %w", err)
			}
			if err := d.Ack(false); err != nil {
				return domain.PassJob{}, fmt.Errorf("ack: %w", err)
			}
			return job, nil
		}
	}
}

// Close освобождает канал и соединение.
func (q *RabbitPassQueue) Close() error {
	if err := q.ch.Close(); err != nil {
		_ = q.conn.Close()
		return err
	}
	return q.conn.Close()
}
