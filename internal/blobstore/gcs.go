package blobstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/desertthunder/ytsched/internal/shared"
)

const gcsPublicHost = "https://storage.googleapis.com"

// GCSStore is a [Store] backed by a Google Cloud Storage bucket.
//
// Objects are addressed by their public storage.googleapis.com URL.
type GCSStore struct {
	client *storage.Client
	bucket string
}

// NewGCSStore creates a store for bucket using application default credentials unless opts say otherwise.
func NewGCSStore(ctx context.Context, bucket string, opts ...option.ClientOption) (*GCSStore, error) {
	if bucket == "" {
		return nil, fmt.Errorf("%w: gcs bucket is required", shared.ErrInvalidConfig)
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("could not create storage client: %w", err)
	}
	return &GCSStore{client: client, bucket: bucket}, nil
}

// Close releases the underlying storage client.
func (s *GCSStore) Close() error {
	return s.client.Close()
}

func (s *GCSStore) publicURL(object string) string {
	return fmt.Sprintf("%s/%s/%s", gcsPublicHost, s.bucket, object)
}

// objectName extracts the object name from a URL produced by publicURL.
func (s *GCSStore) objectName(u string) (string, error) {
	parsed, err := url.Parse(u)
	if err != nil {
		return "", fmt.Errorf("%w: blob url %q", shared.ErrInvalidInput, u)
	}

	object, ok := strings.CutPrefix(strings.TrimPrefix(parsed.Path, "/"), s.bucket+"/")
	if !ok || object == "" {
		return "", fmt.Errorf("%w: %q is not in bucket %s", shared.ErrInvalidInput, u, s.bucket)
	}
	return object, nil
}

// Put writes r to a suffixed object name.
func (s *GCSStore) Put(ctx context.Context, pathname string, r io.Reader, opts PutOptions) (Blob, error) {
	object := withSuffix(pathname, shared.ShortSuffix())

	w := s.client.Bucket(s.bucket).Object(object).If(storage.Conditions{DoesNotExist: true}).NewWriter(ctx)
	w.ContentType = opts.ContentType

	if _, err := io.Copy(w, r); err != nil {
		w.Close()
		return Blob{}, fmt.Errorf("%w: could not write object %s: %v", shared.ErrUpstream, object, err)
	}
	if err := w.Close(); err != nil {
		return Blob{}, fmt.Errorf("%w: could not close object writer: %v", shared.ErrUpstream, err)
	}

	attrs := w.Attrs()
	blob := Blob{
		URL:         s.publicURL(object),
		DownloadURL: s.publicURL(object),
		Pathname:    object,
		ContentType: opts.ContentType,
		Size:        opts.Size,
	}
	if attrs != nil {
		blob.Size = attrs.Size
		blob.UploadedAt = attrs.Created
	}
	return blob, nil
}

// List returns every object under prefix.
func (s *GCSStore) List(ctx context.Context, prefix string) ([]Blob, error) {
	var blobs []Blob
	it := s.client.Bucket(s.bucket).Objects(ctx, &storage.Query{Prefix: prefix})
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: could not list objects: %v", shared.ErrUpstream, err)
		}

		blobs = append(blobs, Blob{
			URL:         s.publicURL(attrs.Name),
			DownloadURL: s.publicURL(attrs.Name),
			Pathname:    attrs.Name,
			ContentType: attrs.ContentType,
			Size:        attrs.Size,
			UploadedAt:  attrs.Created,
		})
	}
	return blobs, nil
}

// Open reads the object behind u.
func (s *GCSStore) Open(ctx context.Context, u string) (io.ReadCloser, error) {
	object, err := s.objectName(u)
	if err != nil {
		return nil, err
	}

	r, err := s.client.Bucket(s.bucket).Object(object).NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil, fmt.Errorf("%w: object %s", shared.ErrNotFound, object)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: could not read object %s: %v", shared.ErrUpstream, object, err)
	}
	return r, nil
}

// Delete removes the object behind u.
func (s *GCSStore) Delete(ctx context.Context, u string) error {
	object, err := s.objectName(u)
	if err != nil {
		return err
	}

	err = s.client.Bucket(s.bucket).Object(object).Delete(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return fmt.Errorf("%w: object %s", shared.ErrNotFound, object)
	}
	if err != nil {
		return fmt.Errorf("%w: could not delete object %s: %v", shared.ErrUpstream, object, err)
	}
	return nil
}
