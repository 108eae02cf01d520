// Package kv provides the durable key/value media a session snapshot can be mirrored to.
package kv

import "context"

// Store is a durable key/value medium holding small string values.
// GetItem reports ok=false for a missing key; that is not an error.
type Store interface {
	GetItem(ctx context.Context, key string) (value string, ok bool, err error)
	SetItem(ctx context.Context, key, value string) error
	RemoveItem(ctx context.Context, key string) error
}
