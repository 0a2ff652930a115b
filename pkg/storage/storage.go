// Package storage defines the durable key-value register the client persists
// its configuration, pending authorization requests and session into.
//
// Writes are not transactional across keys. Take is the only operation that
// must be atomic: a value taken once can never be taken again.
package storage

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("key not found")

type Store interface {
	// Get returns ErrNotFound for missing or expired keys.
	Get(ctx context.Context, key string) ([]byte, error)
	// Set stores value under key. A ttl <= 0 never expires.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Take atomically reads and deletes key. It returns ErrNotFound when
	// the key is missing, expired or was already taken.
	Take(ctx context.Context, key string) ([]byte, error)
	// Delete removes keys. Missing keys are ignored.
	Delete(ctx context.Context, keys ...string) error
}

// Entry is the envelope used by backends without native expiry.
type Entry struct {
	Value     []byte    `json:"value"`
	ExpiresAt time.Time `json:"expires_at,omitzero"`
}

func NewEntry(value []byte, ttl time.Duration, now time.Time) Entry {
	e := Entry{Value: value}
	if ttl > 0 {
		e.ExpiresAt = now.Add(ttl)
	}

	return e
}

func (e Entry) Expired(now time.Time) bool {
	return !e.ExpiresAt.IsZero() && !now.Before(e.ExpiresAt)
}
