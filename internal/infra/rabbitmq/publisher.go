package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"chat-quiz-bot/internal/domain"
	amqp "github.com/rabbitmq/amqp091-go"
)

// DefaultQueue receives one message per finished quiz.
const DefaultQueue = "quiz.completed"

type channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// Publisher pushes QuizCompleted events onto a durable queue.
type Publisher struct {
	conn    *amqp.Connection
	channel channel
	queue   string
}

func NewPublisher(url, queue string) (*Publisher, error) {
	if queue == "" {
		queue = DefaultQueue
	}
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	if _, err := ch.QueueDeclare(
		queue,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,   // arguments
	); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare queue: %w", err)
	}

	return &Publisher{conn: conn, channel: ch, queue: queue}, nil
}

func (p *Publisher) PublishQuizCompleted(ctx context.Context, event domain.QuizCompleted) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode quiz completed: %w", err)
	}
	return p.channel.PublishWithContext(
		ctx,
		"",      // exchange
		p.queue, // routing key
		false,   // mandatory
		false,   // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    event.SessionID,
			Type:         "quiz.completed",
			Body:         body,
			Timestamp:    time.Now(),
		},
	)
}

func (p *Publisher) Close() error {
	if p.channel != nil {
		p.channel.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}
