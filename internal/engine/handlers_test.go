package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kalidas7337/whatsapp-saas-sub000/internal/conversation"
	"github.com/kalidas7337/whatsapp-saas-sub000/internal/models"
)

func TestHandleGreetingTimeOfDay(t *testing.T) {
	tests := []struct {
		name string
		utc  time.Time
		want string
	}{
		// The default timezone is Asia/Kolkata, UTC+5:30.
		{name: "morning", utc: time.Date(2026, 3, 1, 3, 0, 0, 0, time.UTC), want: "Good morning"},
		{name: "afternoon", utc: time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC), want: "Good afternoon"},
		{name: "evening", utc: time.Date(2026, 3, 1, 14, 0, 0, 0, time.UTC), want: "Good evening"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			e := newTestEngine(t, nil, WithClock(func() time.Time { return tc.utc }))
			msg := textMessage("hello")
			msg.Contact = models.Contact{Name: "Amit"}

			resp, err := e.ProcessMessage(context.Background(), msg)
			require.NoError(t, err)
			require.Len(t, resp.Messages, 1)
			assert.Contains(t, resp.Messages[0].Text, tc.want)
			assert.Contains(t, resp.Messages[0].Text, "Amit")
			assert.Len(t, resp.Messages[0].Buttons, 3)
		})
	}
}

func TestHandleHumanHandoff(t *testing.T) {
	e := newTestEngine(t, nil)
	msg := textMessage("talk to agent")
	msg.Context = map[string]any{"current_flow_id": "f1", "current_node_id": "n1"}

	resp, err := e.ProcessMessage(context.Background(), msg)
	require.NoError(t, err)
	assert.True(t, resp.TransferToHuman)
	assert.Equal(t, "customer requested human agent", resp.TransferReason)
	require.Len(t, resp.Actions, 1)
	assert.Equal(t, models.ActionSendNotification, resp.Actions[0].Type)
	assert.Empty(t, resp.ContextUpdates["current_flow_id"])
}

func TestHandleUnknownEscalatesOnThirdTurn(t *testing.T) {
	e := newTestEngine(t, nil)
	gibberish := "qwfp zxcv"

	ctx := context.Background()
	first, err := e.ProcessMessage(ctx, textMessage(gibberish))
	require.NoError(t, err)
	assert.NotContains(t, first.Messages[0].Text, "trouble understanding")

	second := textMessage(gibberish)
	second.Context = first.ContextUpdates
	resp2, err := e.ProcessMessage(ctx, second)
	require.NoError(t, err)
	assert.NotContains(t, resp2.Messages[0].Text, "trouble understanding")

	third := textMessage(gibberish)
	third.Context = resp2.ContextUpdates
	resp3, err := e.ProcessMessage(ctx, third)
	require.NoError(t, err)
	assert.Contains(t, resp3.Messages[0].Text, "trouble understanding")
	require.NotEmpty(t, resp3.Messages[0].Buttons)
	assert.Equal(t, "escalate_talk_to_agent", resp3.Messages[0].Buttons[0].ID)
}

func TestHandleUnknownSingleTurnStaysGeneric(t *testing.T) {
	e := newTestEngine(t, nil)
	msg := textMessage("qwfp zxcv")
	msg.Context = map[string]any{"last_intents": []any{"greeting", "unknown"}}

	resp, err := e.ProcessMessage(context.Background(), msg)
	require.NoError(t, err)
	assert.NotContains(t, resp.Messages[0].Text, "trouble understanding")
}

func TestInterpolate(t *testing.T) {
	e := newTestEngine(t, nil)
	msg := textMessage("anything")
	msg.Contact = models.Contact{
		Name:       "Amit",
		Phone:      "+919876543210",
		Attributes: map[string]string{"city": "Pune"},
	}
	convo := conversation.New()
	convo.SetVariable("order_id", "ORD-991")
	convo.SetVariable("count", 3)

	tests := []struct {
		in   string
		want string
	}{
		{"Hello {{contact.name}}!", "Hello Amit!"},
		{"Call {{ contact.phone }}", "Call +919876543210"},
		{"From {{contact.city}}", "From Pune"},
		{"Order {{order_id}} has {{var.count}} items", "Order ORD-991 has 3 items"},
		{"Prefix {{context.order_id}}", "Prefix ORD-991"},
		{"Keep {{missing.x}} as-is", "Keep {{missing.x}} as-is"},
		{"No placeholders here", "No placeholders here"},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, e.interpolate(tc.in, msg, convo), tc.in)
	}
}

func TestResponseHistoryRecorded(t *testing.T) {
	e := newTestEngine(t, nil)

	resp, err := e.ProcessMessage(context.Background(), textMessage("thank you"))
	require.NoError(t, err)

	responses, ok := resp.ContextUpdates["last_responses"].([]string)
	require.True(t, ok)
	require.Len(t, responses, 1)
	assert.Contains(t, responses[0], "text:")

	intents, ok := resp.ContextUpdates["last_intents"].([]string)
	require.True(t, ok)
	assert.Equal(t, []string{"thanks"}, intents)
}
