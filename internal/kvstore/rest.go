package kvstore

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/desertthunder/ytsched/internal/shared"
)

// compareAndDeleteScript deletes KEYS[1] only while it holds ARGV[1].
const compareAndDeleteScript = `if redis.call("GET", KEYS[1]) == ARGV[1] then return redis.call("DEL", KEYS[1]) else return 0 end`

// RESTStore is a [Store] that speaks the Upstash REST protocol used by Vercel KV:
// each command is POSTed as a JSON array and answered with {"result": ...}.
type RESTStore struct {
	api *shared.APIClient
}

// NewRESTStore creates a client for the KV REST endpoint at url.
func NewRESTStore(url, token string, client *http.Client) *RESTStore {
	return &RESTStore{api: shared.NewAPIClient(url, token, client)}
}

type restResult struct {
	Result json.RawMessage `json:"result"`
	Error  string          `json:"error,omitempty"`
}

// command runs one Redis command and returns the raw result.
func (s *RESTStore) command(ctx context.Context, args ...string) (json.RawMessage, error) {
	resp, err := s.api.PostJSON(ctx, "/", args)
	if err != nil {
		return nil, err
	}
	if err := resp.Err("kv " + args[0]); err != nil {
		return nil, err
	}

	var out restResult
	if err := resp.Decode(&out); err != nil {
		return nil, err
	}
	if out.Error != "" {
		return nil, fmt.Errorf("%w: kv %s: %s", shared.ErrUpstream, args[0], out.Error)
	}
	return out.Result, nil
}

func isNull(raw json.RawMessage) bool {
	return len(raw) == 0 || string(raw) == "null"
}

// Get fetches the string stored at key.
func (s *RESTStore) Get(ctx context.Context, key string) (string, error) {
	raw, err := s.command(ctx, "GET", key)
	if err != nil {
		return "", err
	}
	if isNull(raw) {
		return "", notFound(key)
	}

	var value string
	if err := json.Unmarshal(raw, &value); err != nil {
		return "", fmt.Errorf("%w: kv GET %s: unexpected result %s", shared.ErrUpstream, key, raw)
	}
	return value, nil
}

// Set stores value at key without expiry.
func (s *RESTStore) Set(ctx context.Context, key, value string) error {
	_, err := s.command(ctx, "SET", key, value)
	return err
}

// SetNX stores value at key with a millisecond expiry if the key is absent.
func (s *RESTStore) SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	args := []string{"SET", key, value, "NX"}
	if ttl > 0 {
		args = append(args, "PX", strconv.FormatInt(ttl.Milliseconds(), 10))
	}

	raw, err := s.command(ctx, args...)
	if err != nil {
		return false, err
	}
	return !isNull(raw), nil
}

// Delete removes key. Deleting a missing key is not an error.
func (s *RESTStore) Delete(ctx context.Context, key string) error {
	_, err := s.command(ctx, "DEL", key)
	return err
}

// CompareAndDelete removes key if it still holds value.
func (s *RESTStore) CompareAndDelete(ctx context.Context, key, value string) (bool, error) {
	raw, err := s.command(ctx, "EVAL", compareAndDeleteScript, "1", key, value)
	if err != nil {
		return false, err
	}

	var n int
	if err := json.Unmarshal(raw, &n); err != nil {
		return false, fmt.Errorf("%w: kv EVAL: unexpected result %s", shared.ErrUpstream, raw)
	}
	return n == 1, nil
}
