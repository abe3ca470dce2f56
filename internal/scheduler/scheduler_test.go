package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kalidas7337/whatsapp-saas-sub000/internal/engine"
	"github.com/kalidas7337/whatsapp-saas-sub000/internal/flowcache"
	"github.com/kalidas7337/whatsapp-saas-sub000/internal/intent"
	"github.com/kalidas7337/whatsapp-saas-sub000/internal/models"
	"github.com/kalidas7337/whatsapp-saas-sub000/internal/store"
)

func nudgeFlow() models.ChatbotFlow {
	return models.ChatbotFlow{
		ID:          "nudge",
		TenantID:    "t1",
		TriggerType: models.TriggerInactivity,
		Priority:    10,
		IsActive:    true,
		FlowDefinition: models.FlowDefinition{
			StartNodeID: "n1",
			Nodes: []models.FlowNode{
				{ID: "n1", Type: models.NodeSendMessage, Data: map[string]any{"text": "Still there?"}},
				{ID: "n2", Type: models.NodeEnd, Data: map[string]any{}},
			},
			Edges: []models.FlowEdge{{Source: "n1", Target: "n2"}},
		},
	}
}

func TestInactivitySweep(t *testing.T) {
	st := store.NewInMemoryStore()
	st.SeedFlows("t1", []models.ChatbotFlow{nudgeFlow()})

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	// Idle for ten minutes.
	require.NoError(t, st.SaveContextEntry(store.ContextEntry{
		TenantID:       "t1",
		ConversationID: "idle-conv",
		Record:         map[string]any{"last_interaction_at": now.Add(-10 * time.Minute).Format(time.RFC3339)},
	}))
	// Active one minute ago.
	require.NoError(t, st.SaveContextEntry(store.ContextEntry{
		TenantID:       "t1",
		ConversationID: "fresh-conv",
		Record:         map[string]any{"last_interaction_at": now.Add(-time.Minute).Format(time.RFC3339)},
	}))
	// Idle but mid-flow; the sweep must leave it alone.
	require.NoError(t, st.SaveContextEntry(store.ContextEntry{
		TenantID:       "t1",
		ConversationID: "midflow-conv",
		Record: map[string]any{
			"current_flow_id":     "nudge",
			"current_node_id":     "n1",
			"last_interaction_at": now.Add(-10 * time.Minute).Format(time.RFC3339),
		},
	}))

	cache := flowcache.New(st.FetchFlows)
	eng := engine.New(cache, intent.NewDetector(intent.DefaultConfig()))

	var delivered []string
	sweep := NewInactivitySweep(eng, st, func(ctx context.Context, entry store.ContextEntry, resp *models.BotResponse) {
		delivered = append(delivered, entry.ConversationID)
		require.Len(t, resp.Messages, 1)
		assert.Equal(t, "Still there?", resp.Messages[0].Text)
	}, 5*time.Minute)
	sweep.now = func() time.Time { return now }

	sweep.Run(context.Background())

	assert.Equal(t, []string{"idle-conv"}, delivered)

	// The idle conversation's record was refreshed, so a second pass at the
	// same instant does nothing.
	delivered = nil
	sweep.Run(context.Background())
	assert.Empty(t, delivered)
}

func TestSchedulerAddJob(t *testing.T) {
	s := NewScheduler()
	defer s.Stop()

	assert.NoError(t, s.AddJob("* * * * *", func() {}))
	assert.Error(t, s.AddJob("not a cron expr", func() {}))
}
