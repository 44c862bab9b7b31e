package notify

import (
	"net/url"
	"strings"
)

// Window is a snapshot of one open app window.
type Window struct {
	ID  string
	URL string
}

// Registry enumerates the currently open app windows.
type Registry interface {
	MatchAll() []Window
}

// Click outcomes. Exactly one applies per click: a matching window is
// focused, or a new window is opened, or nothing happens at all.
const (
	OutcomeFocus = "focus"
	OutcomeOpen  = "open"
	OutcomeNone  = "none"
)

type ClickOutcome struct {
	Kind     string `json:"kind"`
	URL      string `json:"url,omitempty"`
	WindowID string `json:"windowId,omitempty"`
}

// OnNotificationClick decides how a click on a rendered notification
// re-enters the app. The notification itself is already closed by the
// caller. accept/view produce a deep link carrying the action and order
// id; dismiss does nothing further; a plain body click falls back to the
// shell root.
//
// A focused window is not navigated to the deep link; the app reads the
// query parameters itself on focus. Only when no window matches is a new
// one opened at the deep link.
func (g *Gateway) OnNotificationClick(action string, data map[string]any, windows Registry) ClickOutcome {
	var target string

	switch action {
	case "accept", "view":
		target = DeepLink(action, orderID(data))
	case "dismiss":
		return ClickOutcome{Kind: OutcomeNone}
	default:
		target = "/"
	}

	path := target
	if i := strings.IndexByte(target, '?'); i >= 0 {
		path = target[:i]
	}

	if windows != nil {
		for _, w := range windows.MatchAll() {
			if strings.Contains(w.URL, path) {
				return ClickOutcome{Kind: OutcomeFocus, URL: target, WindowID: w.ID}
			}
		}
	}

	return ClickOutcome{Kind: OutcomeOpen, URL: target}
}

// DeepLink builds the URL the app parses to resume an in-app action,
// e.g. "/?action=accept&orderId=o1".
func DeepLink(action, orderID string) string {
	v := url.Values{}
	v.Set("action", action)
	v.Set("orderId", orderID)
	return "/?" + v.Encode()
}

func orderID(data map[string]any) string {
	if data == nil {
		return ""
	}
	if id, ok := data["orderId"].(string); ok {
		return id
	}
	return ""
}
