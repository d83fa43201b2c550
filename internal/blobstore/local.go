package blobstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"mime"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/desertthunder/ytsched/internal/shared"
)

// LocalStore is a [Store] that keeps blobs in a directory.
//
// URLs are publicURL + "/" + pathname; [LocalStore.Handler] serves them.
type LocalStore struct {
	dir       string
	publicURL string
}

// NewLocalStore creates dir if needed and returns a store rooted there.
func NewLocalStore(dir, publicURL string) (*LocalStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("%w: blob dir is required", shared.ErrInvalidConfig)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create blob directory: %w", err)
	}
	return &LocalStore{dir: dir, publicURL: strings.TrimRight(publicURL, "/")}, nil
}

// Dir returns the root directory.
func (s *LocalStore) Dir() string { return s.dir }

func (s *LocalStore) urlFor(pathname string) string {
	return s.publicURL + "/" + pathname
}

// resolve maps a store URL or bare pathname to a file path inside dir.
func (s *LocalStore) resolve(u string) (string, string, error) {
	pathname := strings.TrimPrefix(strings.TrimPrefix(u, s.publicURL), "/")
	clean := path.Clean("/" + pathname)[1:]
	if clean == "" || clean != pathname {
		return "", "", fmt.Errorf("%w: blob url %q", shared.ErrInvalidInput, u)
	}
	return clean, filepath.Join(s.dir, filepath.FromSlash(clean)), nil
}

// Put writes r to a suffixed file under dir.
func (s *LocalStore) Put(_ context.Context, pathname string, r io.Reader, opts PutOptions) (Blob, error) {
	pathname = withSuffix(pathname, shared.ShortSuffix())
	_, full, err := s.resolve(pathname)
	if err != nil {
		return Blob{}, err
	}

	if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
		return Blob{}, fmt.Errorf("failed to create blob directory: %w", err)
	}

	f, err := os.OpenFile(full, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		return Blob{}, fmt.Errorf("failed to create blob: %w", err)
	}

	n, err := io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(full)
		return Blob{}, fmt.Errorf("failed to write blob: %w", err)
	}

	info, err := os.Stat(full)
	if err != nil {
		return Blob{}, fmt.Errorf("failed to stat blob: %w", err)
	}

	return Blob{
		URL:         s.urlFor(pathname),
		DownloadURL: s.urlFor(pathname),
		Pathname:    pathname,
		ContentType: opts.ContentType,
		Size:        n,
		UploadedAt:  info.ModTime().UTC(),
	}, nil
}

// List walks dir and returns files whose pathname starts with prefix, sorted by pathname.
func (s *LocalStore) List(_ context.Context, prefix string) ([]Blob, error) {
	var blobs []Blob
	err := filepath.WalkDir(s.dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		rel, err := filepath.Rel(s.dir, p)
		if err != nil {
			return err
		}
		pathname := filepath.ToSlash(rel)
		if !strings.HasPrefix(pathname, prefix) {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}
		blobs = append(blobs, Blob{
			URL:         s.urlFor(pathname),
			DownloadURL: s.urlFor(pathname),
			Pathname:    pathname,
			ContentType: mime.TypeByExtension(path.Ext(pathname)),
			Size:        info.Size(),
			UploadedAt:  info.ModTime().UTC(),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list blobs: %w", err)
	}

	sort.Slice(blobs, func(i, j int) bool { return blobs[i].Pathname < blobs[j].Pathname })
	return blobs, nil
}

// Open opens the file behind u.
func (s *LocalStore) Open(_ context.Context, u string) (io.ReadCloser, error) {
	pathname, full, err := s.resolve(u)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(full)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: blob %s", shared.ErrNotFound, pathname)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open blob: %w", err)
	}
	return f, nil
}

// Delete removes the file behind u.
func (s *LocalStore) Delete(_ context.Context, u string) error {
	pathname, full, err := s.resolve(u)
	if err != nil {
		return err
	}

	err = os.Remove(full)
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: blob %s", shared.ErrNotFound, pathname)
	}
	if err != nil {
		return fmt.Errorf("failed to delete blob: %w", err)
	}
	return nil
}

// Handler serves stored blobs read-only, for mounting at the public URL's path.
func (s *LocalStore) Handler() http.Handler {
	return http.FileServer(http.Dir(s.dir))
}
