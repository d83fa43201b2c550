package testing

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/desertthunder/ytsched/internal/blobstore"
	"github.com/desertthunder/ytsched/internal/services"
	"github.com/desertthunder/ytsched/internal/shared"
)

// MemoryBlobStore is an in-memory [blobstore.Store] that can be told to fail per operation.
type MemoryBlobStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	order   []string
	seq     int

	PutErr    error
	ListErr   error
	OpenErr   error
	DeleteErr error
	Deleted   []string
}

// NewMemoryBlobStore returns an empty store.
func NewMemoryBlobStore() *MemoryBlobStore {
	return &MemoryBlobStore{objects: map[string][]byte{}}
}

// URLFor is the URL the store reports for pathname.
func URLFor(pathname string) string {
	return "https://blob.test/" + pathname
}

// Put stores a copy of r under a suffixed pathname.
func (m *MemoryBlobStore) Put(_ context.Context, pathname string, r io.Reader, opts blobstore.PutOptions) (blobstore.Blob, error) {
	if m.PutErr != nil {
		return blobstore.Blob{}, m.PutErr
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return blobstore.Blob{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	ext := ""
	if i := strings.LastIndex(pathname, "."); i > strings.LastIndex(pathname, "/") {
		pathname, ext = pathname[:i], pathname[i:]
	}
	stored := fmt.Sprintf("%s-%04d%s", pathname, m.seq, ext)
	m.objects[stored] = data
	m.order = append(m.order, stored)

	return blobstore.Blob{
		URL:         URLFor(stored),
		DownloadURL: URLFor(stored),
		Pathname:    stored,
		ContentType: opts.ContentType,
		Size:        int64(len(data)),
		UploadedAt:  time.Now().UTC(),
	}, nil
}

// Seed stores data under the exact pathname, bypassing suffixing.
func (m *MemoryBlobStore) Seed(pathname string, data []byte) blobstore.Blob {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.objects[pathname]; !ok {
		m.order = append(m.order, pathname)
	}
	m.objects[pathname] = data
	return blobstore.Blob{URL: URLFor(pathname), Pathname: pathname, Size: int64(len(data))}
}

// List returns blobs under prefix in insertion order.
func (m *MemoryBlobStore) List(_ context.Context, prefix string) ([]blobstore.Blob, error) {
	if m.ListErr != nil {
		return nil, m.ListErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []blobstore.Blob
	for _, p := range m.order {
		data, ok := m.objects[p]
		if !ok || !strings.HasPrefix(p, prefix) {
			continue
		}
		out = append(out, blobstore.Blob{URL: URLFor(p), Pathname: p, Size: int64(len(data))})
	}
	return out, nil
}

// Open returns the stored bytes for url.
func (m *MemoryBlobStore) Open(_ context.Context, url string) (io.ReadCloser, error) {
	if m.OpenErr != nil {
		return nil, m.OpenErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	data, ok := m.objects[strings.TrimPrefix(url, URLFor(""))]
	if !ok {
		return nil, fmt.Errorf("%w: blob %s", shared.ErrNotFound, url)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

// Delete removes the blob at url.
func (m *MemoryBlobStore) Delete(_ context.Context, url string) error {
	if m.DeleteErr != nil {
		return m.DeleteErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	p := strings.TrimPrefix(url, URLFor(""))
	if _, ok := m.objects[p]; !ok {
		return fmt.Errorf("%w: blob %s", shared.ErrNotFound, url)
	}
	delete(m.objects, p)
	m.Deleted = append(m.Deleted, p)
	return nil
}

// Has reports whether pathname is stored.
func (m *MemoryBlobStore) Has(pathname string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.objects[pathname]
	return ok
}

// Len returns the number of stored blobs.
func (m *MemoryBlobStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.objects)
}

type memoryEntry struct {
	value   string
	expires time.Time
}

// MemoryKV is an in-memory kvstore.Store with per-operation failure injection.
type MemoryKV struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	Now     func() time.Time

	GetErr    error
	SetErr    error
	DeleteErr error
	// FailGet fails Get for the listed keys only.
	FailGet map[string]error
	Calls   int
}

// NewMemoryKV returns an empty store on the system clock.
func NewMemoryKV() *MemoryKV {
	return &MemoryKV{entries: map[string]memoryEntry{}, Now: time.Now}
}

func (m *MemoryKV) live(key string) (memoryEntry, bool) {
	e, ok := m.entries[key]
	if !ok {
		return e, false
	}
	if !e.expires.IsZero() && !m.Now().Before(e.expires) {
		delete(m.entries, key)
		return e, false
	}
	return e, true
}

func (m *MemoryKV) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls++
	if err := m.FailGet[key]; err != nil {
		return "", err
	}
	if m.GetErr != nil {
		return "", m.GetErr
	}
	e, ok := m.live(key)
	if !ok {
		return "", fmt.Errorf("%w: key %s", shared.ErrNotFound, key)
	}
	return e.value, nil
}

func (m *MemoryKV) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls++
	if m.SetErr != nil {
		return m.SetErr
	}
	m.entries[key] = memoryEntry{value: value}
	return nil
}

func (m *MemoryKV) SetNX(_ context.Context, key, value string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls++
	if m.SetErr != nil {
		return false, m.SetErr
	}
	if _, ok := m.live(key); ok {
		return false, nil
	}
	e := memoryEntry{value: value}
	if ttl > 0 {
		e.expires = m.Now().Add(ttl)
	}
	m.entries[key] = e
	return true, nil
}

func (m *MemoryKV) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls++
	if m.DeleteErr != nil {
		return m.DeleteErr
	}
	delete(m.entries, key)
	return nil
}

func (m *MemoryKV) CompareAndDelete(_ context.Context, key, value string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls++
	e, ok := m.live(key)
	if !ok || e.value != value {
		return false, nil
	}
	delete(m.entries, key)
	return true, nil
}

// Keys returns the live keys in sorted order.
func (m *MemoryKV) Keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var keys []string
	for k := range m.entries {
		if _, ok := m.live(k); ok {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

// FakeUploader is a [services.Uploader] returning scripted ids or errors per title.
type FakeUploader struct {
	mu     sync.Mutex
	Errs   map[string]error
	Calls  []services.VideoMetadata
	Bodies []string
	next   int
	// Hook runs inside Upload before it returns, e.g. to start a competing dispatch.
	Hook func()
}

// Upload records the call and returns "vid-N" unless an error is scripted for the title.
func (f *FakeUploader) Upload(_ context.Context, media io.Reader, meta services.VideoMetadata) (string, error) {
	data, err := io.ReadAll(media)
	if err != nil {
		return "", err
	}

	f.mu.Lock()
	f.Calls = append(f.Calls, meta)
	f.Bodies = append(f.Bodies, string(data))
	f.next++
	n := f.next
	hook := f.Hook
	scripted := f.Errs[meta.Title]
	f.mu.Unlock()

	if hook != nil {
		hook()
	}
	if scripted != nil {
		return "", scripted
	}
	return fmt.Sprintf("vid-%d", n), nil
}

// Count returns the number of Upload calls.
func (f *FakeUploader) Count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Calls)
}
