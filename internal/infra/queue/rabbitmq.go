package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"fic-recs-bot/internal/domain"
	"fic-recs-bot/internal/infra/metrics"
)

// RabbitContinuationQueue реализует очередь задач поверх AMQP.
type RabbitContinuationQueue struct {
	conn  *amqp.Connection
	queue string

	mu         sync.Mutex
	publishCh  *amqp.Channel
	consumeCh  *amqp.Channel
	deliveries <-chan amqp.Delivery
}

var _ domain.ContinuationQueue = (*RabbitContinuationQueue)(nil)

// NewRabbitContinuationQueue подключается к брокеру и объявляет durable очередь.
func NewRabbitContinuationQueue(amqpURL, queue string) (*RabbitContinuationQueue, error) {
	if amqpURL == "" {
		return nil, errors.New("amqp url is empty")
	}
	if queue == "" {
		return nil, errors.New("queue name is empty")
	}
	conn, err := amqp.Dial(amqpURL)
	if err != nil {
		return nil, fmt.Errorf("dial amqp: %w", err)
	}
	publishCh, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if _, err := publishCh.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		conn.Close()
		return nil, fmt.Errorf("declare queue: %w", err)
	}
	return &RabbitContinuationQueue{conn: conn, queue: queue, publishCh: publishCh}, nil
}

// Close закрывает соединение с брокером.
func (q *RabbitContinuationQueue) Close() error {
	return q.conn.Close()
}

// Enqueue публикует задачу в очередь.
func (q *RabbitContinuationQueue) Enqueue(ctx context.Context, job domain.ContinuationJob) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	start := time.Now()
	err = q.publishCh.PublishWithContext(ctx, "", q.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    job.ID,
		Timestamp:    job.RequestedAt,
		Body:         payload,
	})
	metrics.ObserveNetworkRequest("rabbitmq", "publish", q.queue, start, err)
	if err != nil {
		return fmt.Errorf("publish job: %w", err)
	}
	return nil
}

func (q *RabbitContinuationQueue) consume() (<-chan amqp.Delivery, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.deliveries != nil {
		return q.deliveries, nil
	}
	ch, err := q.conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open consume channel: %w", err)
	}
	if err := ch.Qos(1, 0, false); err != nil {
		ch.Close()
		return nil, fmt.Errorf("set qos: %w", err)
	}
	deliveries, err := ch.Consume(q.queue, "", false, false, false, false, nil)
	if err != nil {
		ch.Close()
		return nil, fmt.Errorf("consume: %w", err)
	}
	q.consumeCh = ch
	q.deliveries = deliveries
	return deliveries, nil
}

// Receive ждёт следующую задачу. ack(false) возвращает сообщение брокеру.
func (q *RabbitContinuationQueue) Receive(ctx context.Context) (domain.ContinuationJob, domain.AckFunc, error) {
	deliveries, err := q.consume()
	if err != nil {
		return domain.ContinuationJob{}, nil, err
	}
	for {
		select {
		case <-ctx.Done():
			return domain.ContinuationJob{}, nil, ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				q.mu.Lock()
				q.deliveries = nil
				q.mu.Unlock()
				return domain.ContinuationJob{}, nil, errors.New("rabbitmq: delivery channel closed")
			}
			var job domain.ContinuationJob
			if err := json.Unmarshal(d.Body, &job); err != nil {
				_ = d.Nack(false, false)
				continue
			}
			ack := func(success bool) error {
				if success {
					return d.Ack(false)
				}
				return d.Nack(false, true)
			}
			return job, ack, nil
		}
	}
}
