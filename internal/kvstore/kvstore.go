// Package kvstore holds scheduled-video metadata and dispatch leases.
//
// Every backend stores opaque string values under string keys and supports
// set-if-absent with expiry, which is all the lease protocol needs.
package kvstore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/desertthunder/ytsched/internal/shared"
)

// Store is the key-value contract.
//
// Get returns an error wrapping [shared.ErrNotFound] for missing or expired keys.
// SetNX stores value only when key is absent (or expired) and reports whether it did.
// CompareAndDelete removes key only while it still holds value.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
	Delete(ctx context.Context, key string) error
	CompareAndDelete(ctx context.Context, key, value string) (bool, error)
}

// New builds the backend selected by cfg.Backend. db is only used by the sqlite backend.
func New(ctx context.Context, cfg shared.KVConfig, db *sql.DB) (Store, error) {
	switch cfg.Backend {
	case shared.KVRest:
		return NewRESTStore(cfg.RESTURL, cfg.RESTToken, nil), nil
	case shared.KVRedis:
		return NewRedisStore(cfg.RedisURL)
	case shared.KVSQLite:
		if db == nil {
			return nil, fmt.Errorf("%w: sqlite backend needs a database", shared.ErrInvalidConfig)
		}
		return NewSQLiteStore(db), nil
	case shared.KVFirestore:
		return NewFirestoreStore(ctx, cfg.ProjectID, cfg.Collection)
	default:
		return nil, fmt.Errorf("%w: unknown kv backend %q", shared.ErrInvalidConfig, cfg.Backend)
	}
}

func notFound(key string) error {
	return fmt.Errorf("%w: key %s", shared.ErrNotFound, key)
}
