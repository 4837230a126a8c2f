// Package gateway предоставляет клиент внешнего платёжного шлюза,
// проверку подписей и разбор событий вебхука.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

var (
	// ErrUnavailable возвращается, если шлюз недоступен или не ответил вовремя.
	ErrUnavailable = errors.New("payment gateway unavailable")
	// ErrRejected возвращается, если шлюз отклонил запрос.
	ErrRejected = errors.New("payment gateway rejected request")
)

// Client инкапсулирует HTTP-взаимодействие с платёжным шлюзом.
type Client struct {
	baseURL    string
	keyID      string
	keySecret  string
	timeout    time.Duration
	httpClient *retryablehttp.Client
}

// OrderRequest описывает параметры создания заказа в шлюзе.
type OrderRequest struct {
	// Amount задаётся в минимальных единицах валюты.
	Amount   int64             `json:"amount"`
	Currency string            `json:"currency"`
	Receipt  string            `json:"receipt"`
	Notes    map[string]string `json:"notes,omitempty"`
}

// Order описывает заказ, созданный шлюзом.
type Order struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
	Status   string `json:"status"`
}

// NewClient создаёт клиент шлюза. timeout ограничивает весь вызов вместе с повторами.
func NewClient(baseURL, keyID, keySecret string, timeout time.Duration) *Client {
	rc := retryablehttp.NewClient()
	rc.RetryMax = 2
	rc.RetryWaitMin = 200 * time.Millisecond
	rc.RetryWaitMax = time.Second
	rc.Logger = nil
	rc.CheckRetry = retryOrderCreate
	rc.HTTPClient.Timeout = timeout

	base := strings.TrimRight(baseURL, "/")
	if base != "" && !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "https://" + base
	}

	return &Client{
		baseURL:    base,
		keyID:      keyID,
		keySecret:  keySecret,
		timeout:    timeout,
		httpClient: rc,
	}
}

// retryOrderCreate повторяет создание заказа, только если шлюз его точно не принял:
// соединение не установлено или получен 429. После 5xx и обрыва ответа заказ
// мог быть создан, повтор оставил бы в шлюзе лишний заказ.
func retryOrderCreate(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	if err != nil {
		var opErr *net.OpError
		return errors.As(err, &opErr) && opErr.Op == "dial", nil
	}
	return resp.StatusCode == http.StatusTooManyRequests, nil
}

// CreateOrder создаёт заказ на оплату в шлюзе.
func (c *Client) CreateOrder(ctx context.Context, req OrderRequest) (*Order, error) {
	if c == nil || c.baseURL == "" {
		return nil, fmt.Errorf("%w: client not configured", ErrUnavailable)
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode order request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	httpReq, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/orders", body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.SetBasicAuth(c.keyID, c.keySecret)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		return nil, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: status %d: %s", ErrRejected, resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var order Order
	if err := json.NewDecoder(resp.Body).Decode(&order); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if order.ID == "" {
		return nil, fmt.Errorf("%w: empty order id", ErrRejected)
	}

	return &order, nil
}
