// Package dedup отсекает повторные доставки вебхуков с помощью Redis.
package dedup

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// keyFormat: dedup:{scope}:{delivery id}
const keyFormat = "dedup:%s:%s"

// DefaultTTL определяет, сколько помнить обработанную доставку.
const DefaultTTL = 48 * time.Hour

// RedisDeduper запоминает идентификаторы обработанных доставок.
type RedisDeduper struct {
	rdb   *redis.Client
	scope string
	ttl   time.Duration
}

// New создаёт дедупликатор поверх Redis по адресу addr.
func New(addr, scope string, ttl time.Duration) *RedisDeduper {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return NewWithClient(redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	}), scope, ttl)
}

// NewWithClient создаёт дедупликатор поверх готового клиента.
func NewWithClient(rdb *redis.Client, scope string, ttl time.Duration) *RedisDeduper {
	return &RedisDeduper{rdb: rdb, scope: scope, ttl: ttl}
}

// Key возвращает ключ Redis для идентификатора доставки.
func (d *RedisDeduper) Key(id string) string {
	return fmt.Sprintf(keyFormat, d.scope, id)
}

// Claim атомарно помечает доставку как взятую в обработку.
// Возвращает false, если доставка уже была обработана.
func (d *RedisDeduper) Claim(ctx context.Context, id string) (bool, error) {
	ok, err := d.rdb.SetNX(ctx, d.Key(id), time.Now().UTC().Format(time.RFC3339), d.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("claim delivery %s: %w", id, err)
	}
	return ok, nil
}

// Release снимает пометку, чтобы повторная доставка была обработана.
func (d *RedisDeduper) Release(ctx context.Context, id string) error {
	if err := d.rdb.Del(ctx, d.Key(id)).Err(); err != nil {
		return fmt.Errorf("release delivery %s: %w", id, err)
	}
	return nil
}

// Ping проверяет доступность Redis.
func (d *RedisDeduper) Ping(ctx context.Context) error {
	return d.rdb.Ping(ctx).Err()
}

// Close закрывает соединение с Redis.
func (d *RedisDeduper) Close() error {
	return d.rdb.Close()
}
