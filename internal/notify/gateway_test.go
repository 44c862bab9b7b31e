package notify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"couriergate/internal/logging"
)

type fakeRegistry struct {
	windows []Window
}

func (f *fakeRegistry) MatchAll() []Window { return f.windows }

func TestOnPush_BuildsIntent(t *testing.T) {
	g := NewGateway(logging.New())

	intent, ok := g.OnPush([]byte(`{"title":"T","body":"B","data":{"orderId":"o1"}}`))
	require.True(t, ok)

	assert.Equal(t, "T", intent.Title)
	assert.Equal(t, "B", intent.Body)
	assert.Equal(t, "delivery-notification", intent.Tag)
	assert.Equal(t, "o1", intent.Data["orderId"])
	assert.False(t, intent.RequireInteraction)
	assert.Equal(t, []int{200, 100, 200}, intent.Vibration)

	require.Len(t, intent.Actions, 3)
	assert.Equal(t, "accept", intent.Actions[0].ID)
	assert.Equal(t, "view", intent.Actions[1].ID)
	assert.Equal(t, "dismiss", intent.Actions[2].ID)
}

func TestOnPush_Defaults(t *testing.T) {
	g := NewGateway(logging.New())

	intent, ok := g.OnPush([]byte(`{}`))
	require.True(t, ok)

	assert.Equal(t, DefaultTitle, intent.Title)
	assert.Equal(t, DefaultTag, intent.Tag)
	assert.NotNil(t, intent.Data)
	assert.NotEmpty(t, intent.ID)
}

func TestOnPush_UrgentPayload(t *testing.T) {
	g := NewGateway(logging.New())

	intent, ok := g.OnPush([]byte(`{"title":"Hot order","urgent":true,"tag":"rush"}`))
	require.True(t, ok)

	assert.True(t, intent.RequireInteraction)
	assert.Equal(t, []int{200, 100, 200, 100, 200}, intent.Vibration)
	assert.Equal(t, "rush", intent.Tag)
}

func TestOnPush_MalformedPayloadDroppedSilently(t *testing.T) {
	g := NewGateway(logging.New())

	tests := []struct {
		name string
		raw  []byte
	}{
		{"Empty", nil},
		{"InvalidJSON", []byte(`{title:`)},
		{"PlainText", []byte("hello")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			intent, ok := g.OnPush(tt.raw)
			assert.False(t, ok)
			assert.Nil(t, intent)
		})
	}
}

func TestOnNotificationClick_AcceptDeepLink(t *testing.T) {
	g := NewGateway(logging.New())
	data := map[string]any{"orderId": "o1"}

	outcome := g.OnNotificationClick("accept", data, &fakeRegistry{})

	assert.Equal(t, OutcomeOpen, outcome.Kind)
	assert.Equal(t, "/?action=accept&orderId=o1", outcome.URL)
}

func TestOnNotificationClick_FocusesMatchingWindow(t *testing.T) {
	g := NewGateway(logging.New())
	reg := &fakeRegistry{windows: []Window{
		{ID: "w1", URL: "https://app.example/"},
	}}

	outcome := g.OnNotificationClick("view", map[string]any{"orderId": "o7"}, reg)

	// Focus the existing window; never open a second one.
	assert.Equal(t, OutcomeFocus, outcome.Kind)
	assert.Equal(t, "w1", outcome.WindowID)
	assert.Equal(t, "/?action=view&orderId=o7", outcome.URL)
}

func TestOnNotificationClick_OpensWhenNoWindowMatches(t *testing.T) {
	g := NewGateway(logging.New())

	outcome := g.OnNotificationClick("accept", map[string]any{"orderId": "o1"}, &fakeRegistry{})

	assert.Equal(t, OutcomeOpen, outcome.Kind)
	assert.Empty(t, outcome.WindowID)
}

func TestOnNotificationClick_Dismiss(t *testing.T) {
	g := NewGateway(logging.New())
	reg := &fakeRegistry{windows: []Window{{ID: "w1", URL: "https://app.example/"}}}

	outcome := g.OnNotificationClick("dismiss", map[string]any{"orderId": "o1"}, reg)

	assert.Equal(t, OutcomeNone, outcome.Kind)
	assert.Empty(t, outcome.URL)
	assert.Empty(t, outcome.WindowID)
}

func TestOnNotificationClick_BodyClickFallsBackToRoot(t *testing.T) {
	g := NewGateway(logging.New())

	outcome := g.OnNotificationClick("", nil, &fakeRegistry{})

	assert.Equal(t, OutcomeOpen, outcome.Kind)
	assert.Equal(t, "/", outcome.URL)
}

func TestOnNotificationClick_MissingOrderID(t *testing.T) {
	g := NewGateway(logging.New())

	outcome := g.OnNotificationClick("accept", nil, &fakeRegistry{})

	assert.Equal(t, "/?action=accept&orderId=", outcome.URL)
}

func TestDeepLink(t *testing.T) {
	assert.Equal(t, "/?action=accept&orderId=o1", DeepLink("accept", "o1"))
	assert.Equal(t, "/?action=view&orderId=o%2F2", DeepLink("view", "o/2"))
}
