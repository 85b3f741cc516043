package rabbit

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"exam-attempt-service/internal/domain"
	amqp "github.com/rabbitmq/amqp091-go"
)

// AttemptSubmittedKey is the routing key of graded-attempt events.
const AttemptSubmittedKey = "attempt.submitted"

// Publisher announces graded attempts on a topic exchange so other services
// (leaderboards, notifications) can react without polling the backend.
type Publisher struct {
	conn     *amqp.Connection
	exchange string

	mu sync.Mutex // amqp channels are not safe for concurrent publishing
	ch *amqp.Channel
}

// Dial connects to the broker and declares exchange as a durable topic exchange.
func Dial(url, exchange string) (*Publisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("declare exchange %s: %w", exchange, err)
	}
	return &Publisher{conn: conn, exchange: exchange, ch: ch}, nil
}

func (p *Publisher) PublishAttempt(ctx context.Context, record domain.AttemptRecord) error {
	msg, err := attemptMessage(record)
	if err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ch.PublishWithContext(ctx, p.exchange, AttemptSubmittedKey, false, false, msg)
}

func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	_ = p.ch.Close()
	return p.conn.Close()
}

type attemptSubmitted struct {
	SessionID      string    `json:"sessionId"`
	Username       string    `json:"username"`
	QuizID         int64     `json:"quizId"`
	QuizTitle      string    `json:"quizTitle"`
	MarksGot       float64   `json:"marksGot"`
	CorrectAnswers int       `json:"correctAnswers"`
	Attempted      int       `json:"attempted"`
	Forced         bool      `json:"forced"`
	SubmittedAt    time.Time `json:"submittedAt"`
}

// attemptMessage drops the per-question answers; consumers only need the grade.
func attemptMessage(record domain.AttemptRecord) (amqp.Publishing, error) {
	body, err := json.Marshal(attemptSubmitted{
		SessionID:      record.SessionID,
		Username:       record.Username,
		QuizID:         record.QuizID,
		QuizTitle:      record.QuizTitle,
		MarksGot:       record.Result.MarksGot,
		CorrectAnswers: record.Result.CorrectAnswers,
		Attempted:      record.Result.Attempted,
		Forced:         record.Forced,
		SubmittedAt:    record.SubmittedAt,
	})
	if err != nil {
		return amqp.Publishing{}, fmt.Errorf("marshal attempt event: %w", err)
	}
	return amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    record.SessionID,
		Timestamp:    record.SubmittedAt,
		Type:         AttemptSubmittedKey,
		Body:         body,
	}, nil
}
