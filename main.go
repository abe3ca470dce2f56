package main

import (
	"context"
	"encoding/json"
	"log"
	"os"

	"github.com/kalidas7337/whatsapp-saas-sub000/internal/engine"
	"github.com/kalidas7337/whatsapp-saas-sub000/internal/flowcache"
	"github.com/kalidas7337/whatsapp-saas-sub000/internal/intent"
	"github.com/kalidas7337/whatsapp-saas-sub000/internal/models"
	"github.com/kalidas7337/whatsapp-saas-sub000/internal/store"
)

// Minimal demonstration: seed one keyword flow, process one message, print
// the response. The real service lives in cmd/flowbot.
func main() {
	st := store.NewInMemoryStore()
	st.SeedFlows("demo-tenant", []models.ChatbotFlow{{
		ID:              "order-flow",
		TenantID:        "demo-tenant",
		Name:            "Order status",
		TriggerType:     models.TriggerKeyword,
		TriggerKeywords: []string{"order"},
		Priority:        10,
		IsActive:        true,
		FlowDefinition: models.FlowDefinition{
			StartNodeID: "ask",
			Nodes: []models.FlowNode{
				{ID: "ask", Type: models.NodeAskQuestion, Data: map[string]any{"question": "What's your order ID?", "variableName": "order_id"}},
				{ID: "ack", Type: models.NodeSendMessage, Data: map[string]any{"text": "Looking up {{order_id}} for you."}},
				{ID: "done", Type: models.NodeEnd, Data: map[string]any{}},
			},
			Edges: []models.FlowEdge{
				{Source: "ask", Target: "ack"},
				{Source: "ack", Target: "done"},
			},
		},
	}})

	cache := flowcache.New(st.FetchFlows)
	eng := engine.New(cache, intent.NewDetector(intent.DefaultConfig()))

	resp, err := eng.ProcessMessage(context.Background(), models.BotIncomingMessage{
		TenantID:       "demo-tenant",
		ConversationID: "demo-conversation",
		Contact:        models.Contact{Name: "Amit"},
		Type:           models.MessageTypeText,
		Text:           "where is my order?",
	})
	if err != nil {
		log.Fatalf("process message: %v", err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(resp); err != nil {
		log.Fatalf("encode response: %v", err)
	}
}
