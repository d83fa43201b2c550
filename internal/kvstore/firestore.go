package kvstore

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/desertthunder/ytsched/internal/shared"
)

// DefaultCollection is used when no collection is configured.
const DefaultCollection = "ytsched"

// FirestoreStore is a [Store] keeping one document per key in a Firestore collection.
type FirestoreStore struct {
	client     *firestore.Client
	collection string
	now        func() time.Time
}

// entry is the stored document shape.
type entry struct {
	Key       string    `firestore:"key"`
	Value     string    `firestore:"value"`
	ExpiresAt time.Time `firestore:"expiresAt,omitempty"`
}

func (e entry) expired(now time.Time) bool {
	return !e.ExpiresAt.IsZero() && !now.Before(e.ExpiresAt)
}

// NewFirestoreStore connects to projectID.
func NewFirestoreStore(ctx context.Context, projectID, collection string, opts ...option.ClientOption) (*FirestoreStore, error) {
	if projectID == "" {
		return nil, fmt.Errorf("%w: firestore project id is required", shared.ErrInvalidConfig)
	}
	if collection == "" {
		collection = DefaultCollection
	}

	client, err := firestore.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create firestore client: %w", err)
	}
	return &FirestoreStore{client: client, collection: collection, now: time.Now}, nil
}

// Close releases the client.
func (s *FirestoreStore) Close() error {
	return s.client.Close()
}

// docID escapes key into a valid document id; keys contain slashes.
func docID(key string) string {
	return url.PathEscape(key)
}

func (s *FirestoreStore) doc(key string) *firestore.DocumentRef {
	return s.client.Collection(s.collection).Doc(docID(key))
}

func isNotFound(err error) bool {
	return status.Code(err) == codes.NotFound
}

func wrapFirestore(op, key string, err error) error {
	return fmt.Errorf("%w: firestore %s %s: %v", shared.ErrUpstream, op, key, err)
}

// Get fetches the unexpired value at key.
func (s *FirestoreStore) Get(ctx context.Context, key string) (string, error) {
	snap, err := s.doc(key).Get(ctx)
	if isNotFound(err) {
		return "", notFound(key)
	}
	if err != nil {
		return "", wrapFirestore("get", key, err)
	}

	var e entry
	if err := snap.DataTo(&e); err != nil {
		return "", wrapFirestore("decode", key, err)
	}
	if e.expired(s.now()) {
		return "", notFound(key)
	}
	return e.Value, nil
}

// Set writes value at key without expiry.
func (s *FirestoreStore) Set(ctx context.Context, key, value string) error {
	if _, err := s.doc(key).Set(ctx, entry{Key: key, Value: value}); err != nil {
		return wrapFirestore("set", key, err)
	}
	return nil
}

// SetNX writes value at key inside a transaction unless an unexpired entry exists.
func (s *FirestoreStore) SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	ref := s.doc(key)
	acquired := false

	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		acquired = false
		now := s.now()

		snap, err := tx.Get(ref)
		if err != nil && !isNotFound(err) {
			return err
		}
		if err == nil {
			var current entry
			if err := snap.DataTo(&current); err != nil {
				return err
			}
			if !current.expired(now) {
				return nil
			}
		}

		e := entry{Key: key, Value: value}
		if ttl > 0 {
			e.ExpiresAt = now.Add(ttl)
		}
		acquired = true
		return tx.Set(ref, e)
	})
	if err != nil {
		return false, wrapFirestore("setnx", key, err)
	}
	return acquired, nil
}

// Delete removes key.
func (s *FirestoreStore) Delete(ctx context.Context, key string) error {
	if _, err := s.doc(key).Delete(ctx); err != nil && !isNotFound(err) {
		return wrapFirestore("delete", key, err)
	}
	return nil
}

// CompareAndDelete removes key inside a transaction if it still holds value.
func (s *FirestoreStore) CompareAndDelete(ctx context.Context, key, value string) (bool, error) {
	ref := s.doc(key)
	deleted := false

	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		deleted = false

		snap, err := tx.Get(ref)
		if isNotFound(err) {
			return nil
		}
		if err != nil {
			return err
		}

		var current entry
		if err := snap.DataTo(&current); err != nil {
			return err
		}
		if current.Value != value {
			return nil
		}
		deleted = true
		return tx.Delete(ref)
	})
	if err != nil {
		return false, wrapFirestore("compare-and-delete", key, err)
	}
	return deleted, nil
}
