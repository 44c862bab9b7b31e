// Package notify turns push payloads into notification intents and routes
// notification clicks back into the app via deep links.
package notify

import (
	"encoding/json"

	"github.com/google/uuid"

	"couriergate/internal/logging"
	"couriergate/internal/metrics"
)

const (
	DefaultTitle = "New delivery order available"
	DefaultTag   = "delivery-notification"

	defaultIcon = "/favicon-192x192.png"
)

// Payload is the producer-defined push schema.
type Payload struct {
	Title  string         `json:"title"`
	Body   string         `json:"body"`
	Image  string         `json:"image"`
	Data   map[string]any `json:"data"`
	Tag    string         `json:"tag"`
	Urgent bool           `json:"urgent"`
}

type Action struct {
	ID    string `json:"action"`
	Title string `json:"title"`
	Icon  string `json:"icon"`
}

// Intent is the fully resolved notification. It is ephemeral: built for
// rendering and the subsequent click decision, never persisted.
type Intent struct {
	ID                 string         `json:"id"`
	Title              string         `json:"title"`
	Body               string         `json:"body"`
	Icon               string         `json:"icon"`
	Badge              string         `json:"badge"`
	Image              string         `json:"image,omitempty"`
	Data               map[string]any `json:"data"`
	Tag                string         `json:"tag"`
	RequireInteraction bool           `json:"requireInteraction"`
	Vibration          []int          `json:"vibration"`
	Actions            []Action       `json:"actions"`
}

var (
	urgentVibration = []int{200, 100, 200, 100, 200}
	normalVibration = []int{200, 100, 200}
)

func defaultActions() []Action {
	return []Action{
		{ID: "accept", Title: "Accept Order", Icon: "/icon-accept.png"},
		{ID: "view", Title: "View Details", Icon: "/icon-view.png"},
		{ID: "dismiss", Title: "Dismiss", Icon: "/icon-dismiss.png"},
	}
}

type Gateway struct {
	Logger logging.Logger
}

func NewGateway(logger logging.Logger) *Gateway {
	return &Gateway{Logger: logger}
}

// OnPush parses a push payload defensively. Empty or malformed payloads
// are dropped silently: no intent, no error. Push transports are lossy
// and garbled payloads must never crash the dispatcher.
func (g *Gateway) OnPush(raw []byte) (*Intent, bool) {
	if len(raw) == 0 {
		metrics.IncNotification("dropped")
		return nil, false
	}

	var p Payload
	if err := json.Unmarshal(raw, &p); err != nil {
		g.Logger.Warn("malformed push payload dropped", "err", err.Error())
		metrics.IncNotification("dropped")
		return nil, false
	}

	intent := &Intent{
		ID:                 uuid.NewString(),
		Title:              p.Title,
		Body:               p.Body,
		Icon:               defaultIcon,
		Badge:              defaultIcon,
		Image:              p.Image,
		Data:               p.Data,
		Tag:                p.Tag,
		RequireInteraction: p.Urgent,
		Vibration:          normalVibration,
		Actions:            defaultActions(),
	}
	if intent.Title == "" {
		intent.Title = DefaultTitle
	}
	if intent.Tag == "" {
		intent.Tag = DefaultTag
	}
	if intent.Data == nil {
		intent.Data = map[string]any{}
	}
	if p.Urgent {
		intent.Vibration = urgentVibration
	}

	metrics.IncNotification("shown")
	return intent, true
}
