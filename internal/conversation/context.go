// Package conversation manages the durable per-conversation state carried
// between turns and its codec to and from the persisted, loosely-typed record.
package conversation

import (
	"time"
)

// InputType constrains what the next inbound message is expected to be while
// a flow is awaiting input.
type InputType string

const (
	InputText   InputType = "text"
	InputButton InputType = "button"
	InputList   InputType = "list"
	InputAny    InputType = "any"
)

// Defaults applied when the persisted record does not say otherwise.
const (
	DefaultLanguage = "en"
	DefaultTimezone = "Asia/Kolkata"

	// HistoryLimit bounds lastIntents and lastResponses.
	HistoryLimit = 10

	// DefaultFlowTimeout is how long an active flow may sit before being abandoned.
	DefaultFlowTimeout = 30 * time.Minute
	// DefaultIdleThreshold is how long without interaction a conversation counts as idle.
	DefaultIdleThreshold = 5 * time.Minute
)

// Context is the strongly-shaped per-conversation state. CurrentNodeID is only
// meaningful together with CurrentFlowID; ClearFlow unsets both atomically.
type Context struct {
	CurrentFlowID     string
	CurrentNodeID     string
	AwaitingInput     bool
	AwaitingInputType InputType
	Variables         map[string]any
	LastIntents       []string
	LastResponses     []string
	FlowStartedAt     time.Time
	LastInteractionAt time.Time
	Language          string
	Timezone          string
}

// New returns a default-constructed context for a fresh conversation.
func New() *Context {
	return &Context{
		Variables:         make(map[string]any),
		LastIntents:       []string{},
		LastResponses:     []string{},
		LastInteractionAt: time.Now(),
		Language:          DefaultLanguage,
		Timezone:          DefaultTimezone,
	}
}

// IsInActiveFlow reports whether the conversation is inside a flow.
func (c *Context) IsInActiveFlow() bool {
	return c.CurrentFlowID != "" && c.CurrentNodeID != ""
}

// IsAwaitingInput reports whether the next inbound message should be captured
// as flow input rather than re-classified.
func (c *Context) IsAwaitingInput() bool {
	return c.IsInActiveFlow() && c.AwaitingInput
}

// IsFlowTimedOut reports whether the active flow has outlived the timeout.
// A zero timeout selects DefaultFlowTimeout.
func (c *Context) IsFlowTimedOut(timeout time.Duration, now time.Time) bool {
	if !c.IsInActiveFlow() || c.FlowStartedAt.IsZero() {
		return false
	}
	if timeout <= 0 {
		timeout = DefaultFlowTimeout
	}
	return now.Sub(c.FlowStartedAt) > timeout
}

// IsIdle reports whether the conversation has had no interaction for the given
// threshold. A zero threshold selects DefaultIdleThreshold.
func (c *Context) IsIdle(threshold time.Duration, now time.Time) bool {
	if c.LastInteractionAt.IsZero() {
		return false
	}
	if threshold <= 0 {
		threshold = DefaultIdleThreshold
	}
	return now.Sub(c.LastInteractionAt) > threshold
}

// StartFlow points the context at the given flow and node.
func (c *Context) StartFlow(flowID, nodeID string, now time.Time) {
	c.CurrentFlowID = flowID
	c.CurrentNodeID = nodeID
	c.FlowStartedAt = now
	c.AwaitingInput = false
	c.AwaitingInputType = ""
}

// ClearFlow unsets all flow-progress fields together. CurrentFlowID and
// CurrentNodeID must never be cleared independently.
func (c *Context) ClearFlow() {
	c.CurrentFlowID = ""
	c.CurrentNodeID = ""
	c.FlowStartedAt = time.Time{}
	c.AwaitingInput = false
	c.AwaitingInputType = ""
}

// SetVariable stores a flow variable, allocating the map on first use.
func (c *Context) SetVariable(name string, value any) {
	if c.Variables == nil {
		c.Variables = make(map[string]any)
	}
	c.Variables[name] = value
}

// AddIntentToHistory appends an intent name, evicting the oldest entry past
// the history limit.
func (c *Context) AddIntentToHistory(name string) {
	c.LastIntents = appendBounded(c.LastIntents, name)
}

// AddResponseToHistory appends a response summary, evicting the oldest entry
// past the history limit.
func (c *Context) AddResponseToHistory(summary string) {
	c.LastResponses = appendBounded(c.LastResponses, summary)
}

func appendBounded(list []string, entry string) []string {
	list = append(list, entry)
	if len(list) > HistoryLimit {
		list = list[len(list)-HistoryLimit:]
	}
	return list
}
