// Package lifecycle drives the install/activate state machine and the
// rollover of cache generations between versions.
package lifecycle

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"couriergate/internal/cache"
	"couriergate/internal/logging"
	"couriergate/internal/origin"
)

type State int

const (
	StateInstalling State = iota
	StateInstalled
	StateActivating
	StateActivated
)

func (s State) String() string {
	switch s {
	case StateInstalling:
		return "installing"
	case StateInstalled:
		return "installed"
	case StateActivating:
		return "activating"
	case StateActivated:
		return "activated"
	}
	return "unknown"
}

// MessageSkipWaiting is posted by the hosting page to force a waiting
// version to take over.
const MessageSkipWaiting = "SKIP_WAITING"

// Broadcaster reaches the open app windows (claim and update signals).
type Broadcaster interface {
	Broadcast(message []byte)
}

type Controller struct {
	mu    sync.Mutex
	state State

	version string
	static  string
	dynamic string
	seeds   []string

	// ForceTakeover skips the waiting phase after install, the default
	// deploy behavior. When off, the controller waits for a SKIP_WAITING
	// message and announces the update to open windows instead.
	ForceTakeover bool

	cache   cache.Store
	origin  origin.Fetcher
	clients Broadcaster
	logger  logging.Logger
}

func NewController(version, static, dynamic string, seeds []string, store cache.Store, fetcher origin.Fetcher, clients Broadcaster, logger logging.Logger) *Controller {
	return &Controller{
		state:         StateInstalling,
		version:       version,
		static:        static,
		dynamic:       dynamic,
		seeds:         seeds,
		ForceTakeover: true,
		cache:         store,
		origin:        fetcher,
		clients:       clients,
		logger:        logger,
	}
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Controller) Version() string {
	return c.version
}

func (c *Controller) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// Install populates the static generation from the seed manifest. The
// batch is all-or-nothing: every seed is fetched before anything is
// written, and any fetch failure fails the whole install. A half-seeded
// shell is worse than none.
func (c *Controller) Install(ctx context.Context) error {
	c.setState(StateInstalling)
	c.logger.Info("installing", "version", c.version, "seeds", len(c.seeds))

	type seeded struct {
		key  string
		snap *cache.Snapshot
	}

	batch := make([]seeded, 0, len(c.seeds))
	for _, seed := range c.seeds {
		key, snap, err := c.fetchSeed(ctx, seed)
		if err != nil {
			return fmt.Errorf("install seed %q: %w", seed, err)
		}
		batch = append(batch, seeded{key: key, snap: snap})
	}

	for _, item := range batch {
		c.cache.Put(ctx, c.static, item.key, item.snap)
	}

	c.setState(StateInstalled)
	c.logger.Info("installed", "version", c.version)

	if !c.ForceTakeover {
		c.announce("UPDATE_AVAILABLE")
	}
	return nil
}

func (c *Controller) fetchSeed(ctx context.Context, seed string) (string, *cache.Snapshot, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, seed, nil)
	if err != nil {
		return "", nil, err
	}

	resp, err := c.origin.Fetch(req)
	if err != nil {
		return "", nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", nil, fmt.Errorf("status %d", resp.StatusCode)
	}

	snap, err := cache.SnapshotResponse(resp)
	if err != nil {
		return "", nil, err
	}
	return cache.Key(req), snap, nil
}

// Activate purges every generation that is not one of the two live names
// and then claims the open windows so the new version governs requests
// immediately.
func (c *Controller) Activate(ctx context.Context) error {
	c.setState(StateActivating)
	c.logger.Info("activating", "version", c.version)

	for _, gen := range c.cache.Generations(ctx) {
		if gen == c.static || gen == c.dynamic {
			continue
		}
		c.logger.Info("deleting stale cache generation", "generation", gen)
		c.cache.DeleteGeneration(ctx, gen)
	}

	c.setState(StateActivated)
	c.announce("CONTROLLER_CHANGE")
	c.logger.Info("activated", "version", c.version)
	return nil
}

// HandleMessage processes inter-context messages from the hosting page.
// Unknown messages are ignored; a malformed message never crashes the
// dispatcher.
func (c *Controller) HandleMessage(ctx context.Context, raw []byte) {
	var msg struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(raw, &msg); err != nil {
		c.logger.Warn("malformed message ignored", "err", err.Error())
		return
	}

	switch msg.Type {
	case MessageSkipWaiting:
		if c.State() != StateInstalled {
			c.logger.Info("skip-waiting ignored", "state", c.State().String())
			return
		}
		if err := c.Activate(ctx); err != nil {
			c.logger.Error("skip-waiting activation failed", "err", err.Error())
		}
	default:
		c.logger.Info("unknown message ignored", "type", msg.Type)
	}
}

func (c *Controller) announce(kind string) {
	if c.clients == nil {
		return
	}
	msg, err := json.Marshal(map[string]string{
		"type":    kind,
		"version": c.version,
	})
	if err != nil {
		return
	}
	c.clients.Broadcast(msg)
}
