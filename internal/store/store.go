// Package store defines the persistence contracts the engine's callers
// implement and ships an in-memory implementation for tests and standalone
// mode.
package store

import (
	"context"
	"sync"

	"github.com/kalidas7337/whatsapp-saas-sub000/internal/models"
)

// FlowStore loads a tenant's flow definitions. Implementations back onto the
// platform's flow storage; the engine only ever reads through the flow cache.
type FlowStore interface {
	FetchFlows(ctx context.Context, tenantID string) ([]models.ChatbotFlow, error)
}

// ContextStore persists conversation context records keyed by conversation
// ID. The record is opaque to the store; the engine owns its shape.
type ContextStore interface {
	GetContext(ctx context.Context, conversationID string) (map[string]any, error)
	SaveContext(ctx context.Context, conversationID string, record map[string]any) error
}

// ContextEntry pairs a conversation with its stored context record, for
// whole-store scans like the inactivity sweep.
type ContextEntry struct {
	TenantID       string
	ConversationID string
	Contact        models.Contact
	Record         map[string]any
}

// InMemoryStore implements FlowStore and ContextStore in process memory.
type InMemoryStore struct {
	mu       sync.RWMutex
	flows    map[string][]models.ChatbotFlow
	contexts map[string]ContextEntry
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		flows:    make(map[string][]models.ChatbotFlow),
		contexts: make(map[string]ContextEntry),
	}
}

// SeedFlows replaces the stored flows for a tenant.
func (s *InMemoryStore) SeedFlows(tenantID string, flows []models.ChatbotFlow) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flows[tenantID] = append([]models.ChatbotFlow(nil), flows...)
}

func (s *InMemoryStore) FetchFlows(ctx context.Context, tenantID string) ([]models.ChatbotFlow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.ChatbotFlow(nil), s.flows[tenantID]...), nil
}

func (s *InMemoryStore) GetContext(ctx context.Context, conversationID string) (map[string]any, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.contexts[conversationID]
	if !ok {
		return nil, nil
	}
	record := make(map[string]any, len(entry.Record))
	for key, value := range entry.Record {
		record[key] = value
	}
	return record, nil
}

func (s *InMemoryStore) SaveContext(ctx context.Context, conversationID string, record map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry := s.contexts[conversationID]
	entry.ConversationID = conversationID
	entry.Record = record
	s.contexts[conversationID] = entry
	return nil
}

// SaveContextEntry stores a full entry, including tenant and contact, so the
// inactivity sweep can rebuild messages for idle conversations.
func (s *InMemoryStore) SaveContextEntry(entry ContextEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.contexts[entry.ConversationID] = entry
	return nil
}

// ListContexts snapshots every stored context entry.
func (s *InMemoryStore) ListContexts(ctx context.Context) ([]ContextEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entries := make([]ContextEntry, 0, len(s.contexts))
	for _, entry := range s.contexts {
		entries = append(entries, entry)
	}
	return entries, nil
}
