// Package blobstore stores uploaded video payloads.
//
// Three backends implement [Store]:
//   - [VercelStore] : Vercel Blob over its REST API
//   - [GCSStore] : a Google Cloud Storage bucket
//   - [LocalStore] : a directory on disk, served back over HTTP by the server
package blobstore

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/desertthunder/ytsched/internal/shared"
)

// Blob describes a stored object.
type Blob struct {
	URL         string    `json:"url"`
	DownloadURL string    `json:"downloadUrl,omitempty"`
	Pathname    string    `json:"pathname"`
	ContentType string    `json:"contentType,omitempty"`
	Size        int64     `json:"size,omitempty"`
	UploadedAt  time.Time `json:"uploadedAt,omitzero"`
}

// PutOptions carries optional metadata for [Store.Put].
type PutOptions struct {
	ContentType string
	Size        int64
}

// Store is the blob persistence contract used by intake and dispatch.
//
// Put never overwrites: every backend adds a random suffix so the returned pathname is unique.
// Open and Delete address blobs by the URL Put returned.
type Store interface {
	Put(ctx context.Context, pathname string, r io.Reader, opts PutOptions) (Blob, error)
	List(ctx context.Context, prefix string) ([]Blob, error)
	Open(ctx context.Context, url string) (io.ReadCloser, error)
	Delete(ctx context.Context, url string) error
}

// New builds the backend selected by cfg.Backend.
func New(ctx context.Context, cfg shared.BlobConfig) (Store, error) {
	switch cfg.Backend {
	case shared.BlobVercel:
		return NewVercelStore(cfg.Token, WithAPIURL(cfg.APIURL)), nil
	case shared.BlobGCS:
		return NewGCSStore(ctx, cfg.Bucket)
	case shared.BlobLocal:
		return NewLocalStore(cfg.Dir, cfg.PublicURL)
	default:
		return nil, fmt.Errorf("%w: unknown blob backend %q", shared.ErrInvalidConfig, cfg.Backend)
	}
}

// withSuffix inserts suffix before the extension of pathname: "videos/a.mp4" becomes "videos/a-<suffix>.mp4".
func withSuffix(pathname, suffix string) string {
	ext := path.Ext(pathname)
	base := strings.TrimSuffix(pathname, ext)
	return base + "-" + suffix + ext
}
