// Package storage 提供以字串為值的鍵值儲存，用來保存購物車快照、付款參考與登入資訊
package storage

import (
	"context"
	"errors"
)

// Keys shared across components.
const (
	KeyCart               = "carrito"
	KeyLastOrderID        = "last_pedido_id"
	KeyLastOrderTimestamp = "last_pedido_timestamp"
	KeyPaymentReference   = "mp_preference_id"
	KeyToken              = "token"
	KeyUser               = "user"
	eventKeyPrefix        = "event:"
)

var ErrNotFound = errors.New("storage: key not found")

// Store is a string-only key-value store. Keys are independent; there is no
// transaction spanning more than one key.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// EventKey returns the key under which a processed payment event is recorded.
func EventKey(id string) string {
	return eventKeyPrefix + id
}

// DeleteAll removes every key and returns the first error encountered.
func DeleteAll(ctx context.Context, s Store, keys ...string) error {
	var first error
	for _, key := range keys {
		if err := s.Delete(ctx, key); err != nil && first == nil {
			first = err
		}
	}
	return first
}
