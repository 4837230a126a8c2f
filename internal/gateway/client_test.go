package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateOrder_OK(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if r.URL.Path != "/v1/orders" {
			t.Errorf("path = %s, want /v1/orders", r.URL.Path)
		}
		user, pass, ok := r.BasicAuth()
		if !ok || user != "key-id" || pass != "key-secret" {
			t.Errorf("unexpected basic auth %q:%q", user, pass)
		}

		var req OrderRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode: %v", err)
		}
		if req.Amount != 80000 || req.Currency != "INR" || req.Notes["courseName"] != "Go" {
			t.Errorf("unexpected request: %+v", req)
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(Order{
			ID:       "order_123",
			Amount:   req.Amount,
			Currency: req.Currency,
			Receipt:  req.Receipt,
			Status:   "created",
		})
	}))
	defer ts.Close()

	client := NewClient(ts.URL, "key-id", "key-secret", time.Second)

	order, err := client.CreateOrder(context.Background(), OrderRequest{
		Amount:   80000,
		Currency: "INR",
		Receipt:  "receipt_1",
		Notes:    map[string]string{"courseName": "Go"},
	})
	require.NoError(t, err)
	assert.Equal(t, "order_123", order.ID)
	assert.Equal(t, int64(80000), order.Amount)
	assert.Equal(t, "INR", order.Currency)
}

func TestCreateOrder_ServerErrorIsUnavailable(t *testing.T) {
	var calls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer ts.Close()

	client := NewClient(ts.URL, "id", "secret", 5*time.Second)

	_, err := client.CreateOrder(context.Background(), OrderRequest{Amount: 100, Currency: "INR"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnavailable), "got %v", err)
	assert.Equal(t, int32(1), calls.Load(), "order creation must not be repeated after 5xx")
}

func TestCreateOrder_RetriesTooManyRequests(t *testing.T) {
	var calls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"order_7","amount":100,"currency":"INR"}`))
	}))
	defer ts.Close()

	client := NewClient(ts.URL, "id", "secret", 5*time.Second)

	order, err := client.CreateOrder(context.Background(), OrderRequest{Amount: 100, Currency: "INR"})
	require.NoError(t, err)
	assert.Equal(t, "order_7", order.ID)
	assert.Equal(t, int32(3), calls.Load())
}

func TestCreateOrder_ConnectionRefusedIsUnavailable(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	addr := ts.URL
	ts.Close()

	client := NewClient(addr, "id", "secret", 5*time.Second)

	_, err := client.CreateOrder(context.Background(), OrderRequest{Amount: 100, Currency: "INR"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnavailable), "got %v", err)
}

func TestRetryOrderCreate(t *testing.T) {
	canceled, cancel := context.WithCancel(context.Background())
	cancel()

	tests := []struct {
		name string
		ctx  context.Context
		resp *http.Response
		err  error
		want bool
	}{
		{name: "connection refused", ctx: context.Background(), err: &url.Error{Op: "Post", URL: "/v1/orders", Err: &net.OpError{Op: "dial", Err: syscall.ECONNREFUSED}}, want: true},
		{name: "response lost", ctx: context.Background(), err: &url.Error{Op: "Post", URL: "/v1/orders", Err: &net.OpError{Op: "read", Err: syscall.ECONNRESET}}, want: false},
		{name: "client timeout", ctx: context.Background(), err: context.DeadlineExceeded, want: false},
		{name: "too many requests", ctx: context.Background(), resp: &http.Response{StatusCode: http.StatusTooManyRequests}, want: true},
		{name: "server error", ctx: context.Background(), resp: &http.Response{StatusCode: http.StatusBadGateway}, want: false},
		{name: "created", ctx: context.Background(), resp: &http.Response{StatusCode: http.StatusOK}, want: false},
		{name: "caller gone", ctx: canceled, resp: &http.Response{StatusCode: http.StatusTooManyRequests}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, _ := retryOrderCreate(tt.ctx, tt.resp, tt.err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCreateOrder_BadRequestIsRejected(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"description":"amount too small"}}`))
	}))
	defer ts.Close()

	client := NewClient(ts.URL, "id", "secret", time.Second)

	_, err := client.CreateOrder(context.Background(), OrderRequest{Amount: 1, Currency: "INR"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrRejected), "got %v", err)
}

func TestCreateOrder_TimeoutIsUnavailable(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer ts.Close()

	client := NewClient(ts.URL, "id", "secret", 100*time.Millisecond)

	start := time.Now()
	_, err := client.CreateOrder(context.Background(), OrderRequest{Amount: 100, Currency: "INR"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnavailable), "got %v", err)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestCreateOrder_NotConfigured(t *testing.T) {
	var client *Client

	_, err := client.CreateOrder(context.Background(), OrderRequest{Amount: 100})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnavailable))
}
