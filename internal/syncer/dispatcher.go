// Package syncer drains the offline queue when connectivity returns.
package syncer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"

	"couriergate/internal/logging"
	"couriergate/internal/metrics"
	"couriergate/internal/origin"
	"couriergate/internal/queue"
)

// Sync tags delivered by the platform on reconnect; anything else falls
// back to running all three categories.
const (
	TagOrderStatusSync = "order-status-sync"
	TagLocationSync    = "location-sync"
	TagEarningsSync    = "earnings-sync"

	PeriodicTagEarningsUpdate = "earnings-update"
)

// Origin endpoints replayed against during a drain.
const (
	orderStatusPath    = "/api/orders/status"
	locationUpdatePath = "/api/location/update"
	earningsSyncPath   = "/api/earnings/sync"
)

type Dispatcher struct {
	Queue  *queue.Store
	Origin origin.Fetcher
	Logger logging.Logger
}

func New(q *queue.Store, fetcher origin.Fetcher, logger logging.Logger) *Dispatcher {
	return &Dispatcher{Queue: q, Origin: fetcher, Logger: logger}
}

// HandleSync runs the category named by tag. Unrecognized tags run all
// three categories concurrently; they touch disjoint queue keys so no
// coordination between them is needed.
func (d *Dispatcher) HandleSync(ctx context.Context, tag string) {
	metrics.IncSyncRun(tag)

	switch tag {
	case TagOrderStatusSync:
		d.drain(ctx, tag, queue.KeyPendingOrderUpdates, orderStatusPath)
	case TagLocationSync:
		d.drain(ctx, tag, queue.KeyPendingLocationUpdates, locationUpdatePath)
	case TagEarningsSync:
		d.refreshEarnings(ctx)
	default:
		d.runAll(ctx)
	}
}

// HandlePeriodicSync reacts to periodic platform wake-ups.
func (d *Dispatcher) HandlePeriodicSync(ctx context.Context, tag string) {
	if tag == PeriodicTagEarningsUpdate {
		metrics.IncSyncRun(tag)
		d.refreshEarnings(ctx)
	}
}

func (d *Dispatcher) runAll(ctx context.Context) {
	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		d.drain(ctx, TagOrderStatusSync, queue.KeyPendingOrderUpdates, orderStatusPath)
	}()
	go func() {
		defer wg.Done()
		d.drain(ctx, TagLocationSync, queue.KeyPendingLocationUpdates, locationUpdatePath)
	}()
	go func() {
		defer wg.Done()
		d.refreshEarnings(ctx)
	}()
	wg.Wait()
}

// drain replays every pending item and then clears the queue key,
// including items whose replay failed. Persistent failures therefore lose
// data; retry/backoff is intentionally absent.
func (d *Dispatcher) drain(ctx context.Context, tag, key, path string) {
	items, err := d.Queue.List(ctx, key)
	if err != nil {
		d.Logger.Error("queue read failed, skipping drain", "tag", tag, "key", key, "err", err.Error())
		return
	}
	if len(items) == 0 {
		return
	}

	for _, item := range items {
		if err := d.replay(ctx, path, item); err != nil {
			d.Logger.Warn("failed to replay queued item", "tag", tag, "err", err.Error())
			metrics.ObserveSyncItem(tag, "failed")
			continue
		}
		metrics.ObserveSyncItem(tag, "ok")
	}

	if err := d.Queue.Clear(ctx, key); err != nil {
		d.Logger.Error("queue clear failed", "tag", tag, "key", key, "err", err.Error())
	}
}

func (d *Dispatcher) replay(ctx context.Context, path string, item json.RawMessage) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, path, bytes.NewReader(item))
	if err != nil {
		return fmt.Errorf("build replay request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.Origin.Fetch(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 400 {
		return fmt.Errorf("replay %s: status %d", path, resp.StatusCode)
	}
	return nil
}

// refreshEarnings is pull, not push: fetch the latest earnings and persist
// them for offline display.
func (d *Dispatcher) refreshEarnings(ctx context.Context) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, earningsSyncPath, nil)
	if err != nil {
		return
	}

	resp, err := d.Origin.Fetch(req)
	if err != nil {
		d.Logger.Warn("earnings refresh failed", "err", err.Error())
		metrics.ObserveSyncItem(TagEarningsSync, "failed")
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		d.Logger.Warn("earnings refresh failed", "status", resp.StatusCode)
		metrics.ObserveSyncItem(TagEarningsSync, "failed")
		return
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		d.Logger.Warn("earnings refresh read failed", "err", err.Error())
		return
	}

	if err := d.Queue.Put(ctx, queue.KeyLatestEarnings, body); err != nil {
		d.Logger.Error("earnings snapshot store failed", "err", err.Error())
		return
	}
	metrics.ObserveSyncItem(TagEarningsSync, "ok")
}
