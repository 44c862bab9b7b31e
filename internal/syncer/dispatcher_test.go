package syncer

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"couriergate/internal/logging"
	"couriergate/internal/origin"
	"couriergate/internal/queue"
)

type originRecorder struct {
	mu       sync.Mutex
	requests []recordedRequest
	failFor  map[string]bool // orderId -> fail replay
	earnings string
}

type recordedRequest struct {
	Method string
	Path   string
	Body   string
}

func (o *originRecorder) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)

		o.mu.Lock()
		o.requests = append(o.requests, recordedRequest{Method: r.Method, Path: r.URL.Path, Body: string(body)})
		o.mu.Unlock()

		switch r.URL.Path {
		case "/api/orders/status", "/api/location/update":
			var item struct {
				OrderID string `json:"orderId"`
			}
			_ = json.Unmarshal(body, &item)
			o.mu.Lock()
			fail := o.failFor[item.OrderID]
			o.mu.Unlock()
			if fail {
				w.WriteHeader(http.StatusInternalServerError)
				return
			}
			w.WriteHeader(http.StatusOK)
		case "/api/earnings/sync":
			w.Header().Set("Content-Type", "application/json")
			io.WriteString(w, o.earnings)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})
}

func (o *originRecorder) recorded() []recordedRequest {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]recordedRequest(nil), o.requests...)
}

func (o *originRecorder) countPath(path string) int {
	n := 0
	for _, r := range o.recorded() {
		if r.Path == path {
			n++
		}
	}
	return n
}

func newTestDispatcher(t *testing.T, rec *originRecorder) (*Dispatcher, *queue.Store) {
	t.Helper()

	srv := httptest.NewServer(rec.handler())
	t.Cleanup(srv.Close)

	u, err := url.Parse(srv.URL)
	require.NoError(t, err)
	pool := origin.NewPool([]*origin.Endpoint{{URL: u}}, nil, nil)

	q, err := queue.Open(filepath.Join(t.TempDir(), "queue.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = q.Close() })

	return New(q, origin.NewClient(pool, nil), logging.New()), q
}

func TestHandleSync_OrderDrain_ClearsDespitePerItemFailure(t *testing.T) {
	rec := &originRecorder{failFor: map[string]bool{"o2": true}, earnings: "{}"}
	d, q := newTestDispatcher(t, rec)
	ctx := context.Background()

	for _, id := range []string{"o1", "o2", "o3"} {
		require.NoError(t, q.Append(ctx, queue.KeyPendingOrderUpdates, json.RawMessage(`{"orderId":"`+id+`"}`)))
	}

	d.HandleSync(ctx, TagOrderStatusSync)

	// Exactly 3 POST attempts, in arrival order; o2's failure does not
	// abort the loop.
	posts := rec.recorded()
	require.Len(t, posts, 3)
	for i, wantID := range []string{"o1", "o2", "o3"} {
		assert.Equal(t, http.MethodPost, posts[i].Method)
		assert.Equal(t, "/api/orders/status", posts[i].Path)
		assert.Contains(t, posts[i].Body, wantID)
	}

	// The queue is cleared even though o2 failed.
	items, err := q.List(ctx, queue.KeyPendingOrderUpdates)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestHandleSync_LocationDrain(t *testing.T) {
	rec := &originRecorder{earnings: "{}"}
	d, q := newTestDispatcher(t, rec)
	ctx := context.Background()

	require.NoError(t, q.Append(ctx, queue.KeyPendingLocationUpdates, json.RawMessage(`{"lat":23.66,"lng":87.68}`)))

	d.HandleSync(ctx, TagLocationSync)

	assert.Equal(t, 1, rec.countPath("/api/location/update"))

	items, err := q.List(ctx, queue.KeyPendingLocationUpdates)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestHandleSync_EmptyQueueMakesNoNetworkCalls(t *testing.T) {
	rec := &originRecorder{earnings: "{}"}
	d, _ := newTestDispatcher(t, rec)

	d.HandleSync(context.Background(), TagOrderStatusSync)

	assert.Empty(t, rec.recorded())
}

func TestHandleSync_EarningsPersistsSnapshot(t *testing.T) {
	rec := &originRecorder{earnings: `{"today":412.5,"deliveries":9}`}
	d, q := newTestDispatcher(t, rec)
	ctx := context.Background()

	d.HandleSync(ctx, TagEarningsSync)

	got, err := q.Get(ctx, queue.KeyLatestEarnings)
	require.NoError(t, err)
	assert.JSONEq(t, `{"today":412.5,"deliveries":9}`, string(got))
}

func TestHandleSync_UnknownTagRunsAllCategories(t *testing.T) {
	rec := &originRecorder{earnings: `{"today":1}`}
	d, q := newTestDispatcher(t, rec)
	ctx := context.Background()

	require.NoError(t, q.Append(ctx, queue.KeyPendingOrderUpdates, json.RawMessage(`{"orderId":"o9"}`)))
	require.NoError(t, q.Append(ctx, queue.KeyPendingLocationUpdates, json.RawMessage(`{"lat":1}`)))

	d.HandleSync(ctx, "something-else")

	assert.Equal(t, 1, rec.countPath("/api/orders/status"))
	assert.Equal(t, 1, rec.countPath("/api/location/update"))
	assert.Equal(t, 1, rec.countPath("/api/earnings/sync"))

	orders, err := q.List(ctx, queue.KeyPendingOrderUpdates)
	require.NoError(t, err)
	assert.Empty(t, orders)
}

func TestHandlePeriodicSync(t *testing.T) {
	rec := &originRecorder{earnings: `{"today":2}`}
	d, q := newTestDispatcher(t, rec)
	ctx := context.Background()

	require.NoError(t, q.Append(ctx, queue.KeyPendingOrderUpdates, json.RawMessage(`{"orderId":"o1"}`)))

	d.HandlePeriodicSync(ctx, PeriodicTagEarningsUpdate)

	// Only the earnings pull runs; the order queue is untouched.
	assert.Equal(t, 1, rec.countPath("/api/earnings/sync"))
	assert.Equal(t, 0, rec.countPath("/api/orders/status"))

	orders, err := q.List(ctx, queue.KeyPendingOrderUpdates)
	require.NoError(t, err)
	assert.Len(t, orders, 1)

	// Unrecognized periodic tags are ignored outright.
	d.HandlePeriodicSync(ctx, "some-other-tag")
	assert.Equal(t, 1, rec.countPath("/api/earnings/sync"))
}
