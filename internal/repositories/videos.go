package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/ytsched/internal/kvstore"
	"github.com/desertthunder/ytsched/internal/models"
	"github.com/desertthunder/ytsched/internal/shared"
)

// DefaultLeaseTTL bounds how long a crashed dispatcher can block an entry.
const DefaultLeaseTTL = 30 * time.Minute

// VideoRepository stores [models.ScheduledVideo] records.
type VideoRepository struct {
	store  kvstore.Store
	logger *log.Logger
}

// NewVideoRepository creates a repository over store.
func NewVideoRepository(store kvstore.Store, logger *log.Logger) *VideoRepository {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &VideoRepository{store: store, logger: shared.WithLogger(logger, "component", "videos")}
}

// Save writes v under its key, replacing any earlier record.
func (r *VideoRepository) Save(ctx context.Context, v *models.ScheduledVideo) error {
	if err := v.Validate(); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}

	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode video %s: %w", v.Pathname, err)
	}
	if err := r.store.Set(ctx, v.Key(), string(data)); err != nil {
		return fmt.Errorf("failed to save video %s: %w", v.Pathname, err)
	}

	r.logger.Debug("saved video", "pathname", v.Pathname, "scheduledDate", v.ScheduledDate)
	return nil
}

// Get loads the record for pathname. A missing record wraps [shared.ErrNotFound].
func (r *VideoRepository) Get(ctx context.Context, pathname string) (*models.ScheduledVideo, error) {
	data, err := r.store.Get(ctx, models.VideoKey(pathname))
	if err != nil {
		return nil, err
	}

	var v models.ScheduledVideo
	if err := json.Unmarshal([]byte(data), &v); err != nil {
		return nil, fmt.Errorf("failed to decode video %s: %w", pathname, err)
	}
	if v.Pathname == "" {
		v.Pathname = pathname
	}
	return &v, nil
}

// Delete removes the record for pathname.
func (r *VideoRepository) Delete(ctx context.Context, pathname string) error {
	if err := r.store.Delete(ctx, models.VideoKey(pathname)); err != nil {
		return fmt.Errorf("failed to delete video %s: %w", pathname, err)
	}
	return nil
}

// Lease is a held claim on one entry.
type Lease struct {
	Key     string
	Owner   string
	Expires time.Time
	store   kvstore.Store
}

// Release frees the lease if this owner still holds it.
func (l *Lease) Release(ctx context.Context) error {
	if _, err := l.store.CompareAndDelete(ctx, l.Key, l.Owner); err != nil {
		return fmt.Errorf("failed to release lease %s: %w", l.Key, err)
	}
	return nil
}

// Claim takes the dispatch lease for pathname for ttl.
// It fails with [shared.ErrLeaseHeld] when another owner holds an unexpired lease.
func (r *VideoRepository) Claim(ctx context.Context, pathname string, ttl time.Duration) (*Lease, error) {
	if ttl <= 0 {
		ttl = DefaultLeaseTTL
	}

	lease := &Lease{
		Key:     models.LeaseKey(pathname),
		Owner:   shared.GenerateID(),
		Expires: time.Now().Add(ttl),
		store:   r.store,
	}

	ok, err := r.store.SetNX(ctx, lease.Key, lease.Owner, ttl)
	if err != nil {
		return nil, fmt.Errorf("failed to claim %s: %w", pathname, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", shared.ErrLeaseHeld, pathname)
	}
	return lease, nil
}

// IsNotFound reports whether err means the record does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, shared.ErrNotFound)
}
