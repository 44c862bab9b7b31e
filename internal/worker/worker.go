// Package worker ties the event surface together: one dispatch table maps
// platform event names onto the lifecycle controller, the sync dispatcher
// and the notification gateway, and one keep-alive group holds shutdown
// until in-flight background work has finished.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"couriergate/internal/lifecycle"
	"couriergate/internal/logging"
	"couriergate/internal/notify"
	"couriergate/internal/strategy"
	"couriergate/internal/syncer"
	"couriergate/internal/windows"
)

// Event names accepted by Dispatch. Fetch traffic does not go through the
// table; the strategy engine serves it directly as an http.Handler.
const (
	EventInstall           = "install"
	EventActivate          = "activate"
	EventMessage           = "message"
	EventPush              = "push"
	EventNotificationClick = "notificationclick"
	EventSync              = "sync"
	EventPeriodicSync      = "periodicsync"
)

type EventHandler func(ctx context.Context, payload []byte) error

type Worker struct {
	Lifecycle *lifecycle.Controller
	Engine    *strategy.Engine
	Syncer    *syncer.Dispatcher
	Notifier  *notify.Gateway
	Hub       *windows.Hub
	Logger    logging.Logger

	handlers  map[string]EventHandler
	keepAlive sync.WaitGroup
}

func New(lc *lifecycle.Controller, eng *strategy.Engine, sy *syncer.Dispatcher, gw *notify.Gateway, hub *windows.Hub, logger logging.Logger) *Worker {
	w := &Worker{
		Lifecycle: lc,
		Engine:    eng,
		Syncer:    sy,
		Notifier:  gw,
		Hub:       hub,
		Logger:    logger,
	}
	w.handlers = map[string]EventHandler{
		EventInstall:           w.onInstall,
		EventActivate:          w.onActivate,
		EventMessage:           w.onMessage,
		EventPush:              w.onPush,
		EventNotificationClick: w.onNotificationClick,
		EventSync:              w.onSync,
		EventPeriodicSync:      w.onPeriodicSync,
	}

	// Background revalidation started by the engine must not be cut off
	// by shutdown mid-write.
	if eng != nil {
		eng.Track = w.WaitUntil
	}
	return w
}

// Dispatch routes one event through the table. Sync and lifecycle work
// runs to completion before Dispatch returns; only work explicitly handed
// to WaitUntil outlives the call.
func (w *Worker) Dispatch(ctx context.Context, event string, payload []byte) error {
	h, ok := w.handlers[event]
	if !ok {
		return fmt.Errorf("unknown event %q", event)
	}
	return h(ctx, payload)
}

// WaitUntil runs fn in the background and holds Shutdown until it
// returns.
func (w *Worker) WaitUntil(fn func()) {
	w.keepAlive.Add(1)
	go func() {
		defer w.keepAlive.Done()
		fn()
	}()
}

// Shutdown blocks until all tracked background work has drained, or until
// ctx expires.
func (w *Worker) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		w.keepAlive.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *Worker) onInstall(ctx context.Context, _ []byte) error {
	return w.Lifecycle.Install(ctx)
}

func (w *Worker) onActivate(ctx context.Context, _ []byte) error {
	return w.Lifecycle.Activate(ctx)
}

func (w *Worker) onMessage(ctx context.Context, payload []byte) error {
	w.Lifecycle.HandleMessage(ctx, payload)
	return nil
}

// onPush renders a push payload into a notification and fans it out to
// the open windows. Drops are silent: a garbled payload produces nothing.
func (w *Worker) onPush(_ context.Context, payload []byte) error {
	intent, ok := w.Notifier.OnPush(payload)
	if !ok {
		return nil
	}

	msg, err := json.Marshal(map[string]any{
		"type":         "NOTIFICATION",
		"notification": intent,
	})
	if err != nil {
		return err
	}
	w.Hub.Broadcast(msg)
	return nil
}

type clickEvent struct {
	Action string         `json:"action"`
	Data   map[string]any `json:"data"`
}

func (w *Worker) onNotificationClick(ctx context.Context, payload []byte) error {
	var ev clickEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		return fmt.Errorf("decode click event: %w", err)
	}
	w.NotificationClick(ctx, ev.Action, ev.Data)
	return nil
}

// NotificationClick resolves a click and, when an open window matched,
// tells that window to come to the foreground. The focused window is not
// navigated; it reads the deep link itself.
func (w *Worker) NotificationClick(_ context.Context, action string, data map[string]any) notify.ClickOutcome {
	outcome := w.Notifier.OnNotificationClick(action, data, w.Hub)

	if outcome.Kind == notify.OutcomeFocus {
		msg, err := json.Marshal(map[string]string{
			"type": "FOCUS",
			"url":  outcome.URL,
		})
		if err == nil {
			w.Hub.Send(outcome.WindowID, msg)
		}
	}
	return outcome
}

func (w *Worker) onSync(ctx context.Context, payload []byte) error {
	w.Syncer.HandleSync(ctx, string(payload))
	return nil
}

func (w *Worker) onPeriodicSync(ctx context.Context, payload []byte) error {
	w.Syncer.HandlePeriodicSync(ctx, string(payload))
	return nil
}
