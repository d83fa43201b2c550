package blobstore

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/desertthunder/ytsched/internal/shared"
)

// DefaultVercelAPIURL is the Vercel Blob REST endpoint.
const DefaultVercelAPIURL = "https://blob.vercel-storage.com"

const vercelAPIVersion = "7"

// listPageSize is the page size requested from the list endpoint.
const listPageSize = 1000

// VercelStore is a [Store] backed by the Vercel Blob REST API.
type VercelStore struct {
	api        *shared.APIClient
	httpClient *http.Client
	apiURL     string
	token      string
}

// VercelOption configures a [VercelStore].
type VercelOption func(*VercelStore)

// WithAPIURL overrides the Blob API endpoint. Empty values are ignored.
func WithAPIURL(u string) VercelOption {
	return func(s *VercelStore) {
		if u != "" {
			s.apiURL = u
		}
	}
}

// WithHTTPClient sets the client used for API calls and downloads.
func WithHTTPClient(c *http.Client) VercelOption {
	return func(s *VercelStore) {
		if c != nil {
			s.httpClient = c
		}
	}
}

// NewVercelStore creates a store authenticated with a read-write token.
func NewVercelStore(token string, opts ...VercelOption) *VercelStore {
	s := &VercelStore{apiURL: DefaultVercelAPIURL, token: token, httpClient: http.DefaultClient}
	for _, opt := range opts {
		opt(s)
	}
	s.api = shared.NewAPIClient(s.apiURL, token, s.httpClient)
	return s
}

func (s *VercelStore) headers(extra map[string]string) map[string]string {
	h := map[string]string{"x-api-version": vercelAPIVersion}
	for k, v := range extra {
		h[k] = v
	}
	return h
}

// Put uploads r with public access and a random suffix.
func (s *VercelStore) Put(ctx context.Context, pathname string, r io.Reader, opts PutOptions) (Blob, error) {
	headers := s.headers(map[string]string{
		"x-add-random-suffix": "1",
		"x-access":            "public",
	})
	if opts.ContentType != "" {
		headers["x-content-type"] = opts.ContentType
	}
	if opts.Size > 0 {
		headers["x-content-length"] = strconv.FormatInt(opts.Size, 10)
	}

	resp, err := s.api.Do(ctx, http.MethodPut, "/?pathname="+url.QueryEscape(pathname), r, headers)
	if err != nil {
		return Blob{}, err
	}
	if err := resp.Err("blob put"); err != nil {
		return Blob{}, err
	}

	var blob Blob
	if err := resp.Decode(&blob); err != nil {
		return Blob{}, err
	}
	if opts.Size > 0 && blob.Size == 0 {
		blob.Size = opts.Size
	}
	return blob, nil
}

type vercelListResponse struct {
	Blobs   []Blob `json:"blobs"`
	Cursor  string `json:"cursor"`
	HasMore bool   `json:"hasMore"`
}

// List returns every blob under prefix, following pagination cursors.
func (s *VercelStore) List(ctx context.Context, prefix string) ([]Blob, error) {
	var blobs []Blob
	cursor := ""
	for {
		q := url.Values{}
		q.Set("prefix", prefix)
		q.Set("limit", strconv.Itoa(listPageSize))
		if cursor != "" {
			q.Set("cursor", cursor)
		}

		resp, err := s.api.Do(ctx, http.MethodGet, "/?"+q.Encode(), nil, s.headers(nil))
		if err != nil {
			return nil, err
		}
		if err := resp.Err("blob list"); err != nil {
			return nil, err
		}

		var page vercelListResponse
		if err := resp.Decode(&page); err != nil {
			return nil, err
		}
		blobs = append(blobs, page.Blobs...)

		if !page.HasMore || page.Cursor == "" {
			return blobs, nil
		}
		cursor = page.Cursor
	}
}

// Open downloads the public blob at u.
func (s *VercelStore) Open(ctx context.Context, u string) (io.ReadCloser, error) {
	return openURL(ctx, s.httpClient, u)
}

// Delete removes the blob at u.
func (s *VercelStore) Delete(ctx context.Context, u string) error {
	body := map[string][]string{"urls": {u}}
	resp, err := s.api.PostJSON(ctx, "/delete", body)
	if err != nil {
		return err
	}
	return resp.Err("blob delete")
}

// openURL streams the body of a GET to u. The caller closes it.
func openURL(ctx context.Context, client *http.Client, u string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: blob download: %v", shared.ErrUpstream, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		resp.Body.Close()
		if resp.StatusCode == http.StatusNotFound {
			return nil, fmt.Errorf("%w: blob %s", shared.ErrNotFound, u)
		}
		return nil, fmt.Errorf("%w: blob download: status %d", shared.ErrUpstream, resp.StatusCode)
	}
	return resp.Body, nil
}
