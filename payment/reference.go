// Package payment launches the hosted checkout and waits for the backend to
// confirm how it resolved.
package payment

import (
	"context"
	"errors"
	"fmt"

	"gofalre.io/hendrix/storage"
)

var ErrNoReference = errors.New("payment: no payment session reference stored")

// ReferenceStore keeps the payment-session reference of the last launched
// checkout.
type ReferenceStore struct {
	store storage.Store
}

func NewReferenceStore(store storage.Store) *ReferenceStore {
	return &ReferenceStore{store: store}
}

func (r *ReferenceStore) Get(ctx context.Context) (string, error) {
	ref, err := r.store.Get(ctx, storage.KeyPaymentReference)
	if errors.Is(err, storage.ErrNotFound) || (err == nil && ref == "") {
		return "", ErrNoReference
	}
	if err != nil {
		return "", fmt.Errorf("failed to read payment reference: %w", err)
	}
	return ref, nil
}

func (r *ReferenceStore) Set(ctx context.Context, ref string) error {
	if err := r.store.Set(ctx, storage.KeyPaymentReference, ref); err != nil {
		return fmt.Errorf("failed to store payment reference: %w", err)
	}
	return nil
}

// ClearAfterPayment drops the reference and the last order markers.
func (r *ReferenceStore) ClearAfterPayment(ctx context.Context) error {
	return storage.DeleteAll(ctx, r.store,
		storage.KeyPaymentReference,
		storage.KeyLastOrderID,
		storage.KeyLastOrderTimestamp)
}
