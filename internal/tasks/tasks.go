package tasks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/ytsched/internal/models"
	"github.com/desertthunder/ytsched/internal/repositories"
	"github.com/desertthunder/ytsched/internal/shared"
)

// Clock returns the current time. Tests pin it.
type Clock func() time.Time

// UTCToday returns the calendar date of now in UTC.
func UTCToday(now Clock) string {
	return models.DateOf(now())
}

// VideoStore persists scheduled-video records and hands out dispatch leases.
//
// [repositories.VideoRepository] implements it.
type VideoStore interface {
	Save(ctx context.Context, v *models.ScheduledVideo) error
	Get(ctx context.Context, pathname string) (*models.ScheduledVideo, error)
	Delete(ctx context.Context, pathname string) error
	Claim(ctx context.Context, pathname string, ttl time.Duration) (*repositories.Lease, error)
}

// sendProgress sends a progress update through the channel without blocking.
func sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

// upstream marks err as an external-service failure unless it already is one.
func upstream(op string, err error) error {
	if errors.Is(err, shared.ErrUpstream) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%w: %s: %v", shared.ErrUpstream, op, err)
}
