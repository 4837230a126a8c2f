// Package events публикует доменные события в Kafka.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/mmeshcher/coursemart/internal/model"
)

// EventCourseEnrolled публикуется после выдачи записи на курс.
const EventCourseEnrolled = "CourseEnrolled"

// Envelope описывает общую обёртку события.
type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	Payload       json.RawMessage `json:"payload"`
}

// CourseEnrolledPayload описывает содержимое события CourseEnrolled.
type CourseEnrolledPayload struct {
	UserID      int64  `json:"user_id"`
	CourseID    int64  `json:"course_id"`
	PurchaseID  string `json:"purchase_id,omitempty"`
	AmountCents int64  `json:"amount_cents"`
	Source      string `json:"source"`
}

// NewEnrollmentMessage собирает сообщение Kafka для события записи на курс.
// Ключ сообщения равен идентификатору курса, чтобы события одного курса шли по порядку.
func NewEnrollmentMessage(e model.Enrollment, producer string, now time.Time) (kafka.Message, error) {
	payload := CourseEnrolledPayload{
		UserID:      e.UserID,
		CourseID:    e.CourseID,
		AmountCents: e.AmountCents,
		Source:      string(e.Source),
	}
	if e.PurchaseID != uuid.Nil {
		payload.PurchaseID = e.PurchaseID.String()
	}

	rawPayload, err := json.Marshal(payload)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("encode payload: %w", err)
	}

	courseKey := strconv.FormatInt(e.CourseID, 10)
	env := Envelope{
		EventID:       uuid.NewString(),
		EventType:     EventCourseEnrolled,
		EventVersion:  1,
		OccurredAt:    now.UTC(),
		Producer:      producer,
		CorrelationID: payload.PurchaseID,
		Payload:       rawPayload,
	}

	value, err := json.Marshal(env)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("encode envelope: %w", err)
	}

	return kafka.Message{
		Key:   []byte(courseKey),
		Value: value,
		Time:  now,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(EventCourseEnrolled)},
		},
	}, nil
}

// Publisher отправляет события о записи на курс в Kafka.
type Publisher struct {
	w        *kafka.Writer
	producer string
}

// NewPublisher создаёт асинхронного издателя. Ошибки доставки пишутся в лог.
func NewPublisher(brokers []string, topic, producer string, logger *zap.Logger) *Publisher {
	return &Publisher{
		w: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
			Async:        true,
			Completion: func(messages []kafka.Message, err error) {
				if err != nil {
					logger.Warn("publish enrollment events failed", zap.Error(err), zap.Int("count", len(messages)))
				}
			},
		},
		producer: producer,
	}
}

// PublishEnrollment ставит событие записи на курс в очередь отправки.
func (p *Publisher) PublishEnrollment(ctx context.Context, e model.Enrollment) error {
	msg, err := NewEnrollmentMessage(e, p.producer, time.Now())
	if err != nil {
		return err
	}
	if err := p.w.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write enrollment event: %w", err)
	}
	return nil
}

// Close дожидается отправки буфера и закрывает соединения.
func (p *Publisher) Close() error {
	return p.w.Close()
}
