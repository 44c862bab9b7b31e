package cache

import (
	"context"
	"io"
	"net/http"
	"time"
)

// Snapshot is a stored copy of an HTTP response. Entries carry no TTL;
// they live until their generation is purged or they are refreshed in
// place by a revalidation fetch.
type Snapshot struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	StoredAt   time.Time
}

// Store is a response cache partitioned into named generations. Failures
// inside an implementation degrade to "not found"/no-op; none of the
// operations report errors to callers.
type Store interface {
	Match(ctx context.Context, generation, key string) (*Snapshot, bool)
	Put(ctx context.Context, generation, key string, snap *Snapshot)
	Delete(ctx context.Context, generation, key string)
	Generations(ctx context.Context) []string
	DeleteGeneration(ctx context.Context, generation string)
}

// Key derives the cache key for a request. Only GET requests are ever
// cached, so the method is part of the key purely for symmetry with logs.
func Key(req *http.Request) string {
	u := *req.URL
	return req.Method + " " + u.String()
}

// SnapshotResponse materializes a response into a cacheable snapshot,
// consuming the body. The caller still owns closing resp.Body.
func SnapshotResponse(resp *http.Response) (*Snapshot, error) {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	return &Snapshot{
		StatusCode: resp.StatusCode,
		Header:     resp.Header.Clone(),
		Body:       body,
		StoredAt:   time.Now().UTC(),
	}, nil
}
