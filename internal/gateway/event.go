package gateway

import (
	"encoding/json"
	"fmt"
)

// Типы событий вебхука, которые обрабатывает сервис.
const (
	EventPaymentCaptured = "payment.captured"
	EventPaymentFailed   = "payment.failed"
)

// Заголовки запроса вебхука.
const (
	HeaderSignature = "X-Razorpay-Signature"
	HeaderEventID   = "X-Razorpay-Event-Id"
)

// Payment описывает платёж из тела события.
type Payment struct {
	ID       string `json:"id"`
	OrderID  string `json:"order_id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Status   string `json:"status"`
}

// Event описывает событие вебхука шлюза.
type Event struct {
	Event   string `json:"event"`
	Payload struct {
		Payment struct {
			Entity Payment `json:"entity"`
		} `json:"payment"`
	} `json:"payload"`
}

// Payment возвращает платёж, к которому относится событие.
func (e *Event) Payment() Payment {
	return e.Payload.Payment.Entity
}

// ParseEvent разбирает тело вебхука. Подпись должна быть проверена заранее.
func ParseEvent(body []byte) (*Event, error) {
	var e Event
	if err := json.Unmarshal(body, &e); err != nil {
		return nil, fmt.Errorf("decode webhook event: %w", err)
	}
	if e.Event == "" {
		return nil, fmt.Errorf("decode webhook event: missing event type")
	}
	return &e, nil
}
