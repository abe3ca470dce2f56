package conversation

import (
	"log/slog"
	"time"
)

// Persisted record keys. The store treats the record as opaque JSON; only this
// codec interprets it.
const (
	keyCurrentFlowID     = "current_flow_id"
	keyCurrentNodeID     = "current_node_id"
	keyAwaitingInput     = "awaiting_input"
	keyAwaitingInputType = "awaiting_input_type"
	keyVariables         = "variables"
	keyLastIntents       = "last_intents"
	keyLastResponses     = "last_responses"
	keyFlowStartedAt     = "flow_started_at"
	keyLastInteractionAt = "last_interaction_at"
	keyLanguage          = "language"
	keyTimezone          = "timezone"
)

// Parse converts a persisted record into a Context. It is defensive: any
// missing or malformed field falls back to a type-correct default and parsing
// never fails.
func Parse(raw map[string]any) *Context {
	c := New()
	if raw == nil {
		return c
	}

	c.CurrentFlowID = asString(raw[keyCurrentFlowID])
	c.CurrentNodeID = asString(raw[keyCurrentNodeID])
	// The pointer pair must be cleared together; a record carrying only one of
	// them is corrupt and treated as "not in a flow".
	if c.CurrentFlowID == "" || c.CurrentNodeID == "" {
		if c.CurrentFlowID != "" || c.CurrentNodeID != "" {
			slog.Warn("conversation.Parse: dangling flow pointer in persisted record, clearing", "flowID", c.CurrentFlowID, "nodeID", c.CurrentNodeID)
		}
		c.CurrentFlowID = ""
		c.CurrentNodeID = ""
	}

	c.AwaitingInput = asBool(raw[keyAwaitingInput])
	if t := asString(raw[keyAwaitingInputType]); t != "" {
		c.AwaitingInputType = InputType(t)
	}
	// Copied, not aliased: the context mutates variables freely and the
	// caller's record must stay untouched until it commits the updates.
	if vars := asMap(raw[keyVariables]); vars != nil {
		c.Variables = make(map[string]any, len(vars))
		for name, v := range vars {
			c.Variables[name] = v
		}
	}
	c.LastIntents = asStringSlice(raw[keyLastIntents])
	c.LastResponses = asStringSlice(raw[keyLastResponses])
	c.FlowStartedAt = asTime(raw[keyFlowStartedAt])
	if t := asTime(raw[keyLastInteractionAt]); !t.IsZero() {
		c.LastInteractionAt = t
	}
	if lang := asString(raw[keyLanguage]); lang != "" {
		c.Language = lang
	}
	if tz := asString(raw[keyTimezone]); tz != "" {
		c.Timezone = tz
	}
	return c
}

// Serialize converts a Context back into the persisted record shape. Both
// history lists are truncated to the last HistoryLimit entries and
// lastInteractionAt is refreshed to now.
func (c *Context) Serialize(now time.Time) map[string]any {
	raw := map[string]any{
		keyAwaitingInput:     c.AwaitingInput,
		keyVariables:         c.Variables,
		keyLastIntents:       lastN(c.LastIntents, HistoryLimit),
		keyLastResponses:     lastN(c.LastResponses, HistoryLimit),
		keyLastInteractionAt: now.Format(time.RFC3339),
		keyLanguage:          c.Language,
		keyTimezone:          c.Timezone,
	}
	if c.CurrentFlowID != "" {
		raw[keyCurrentFlowID] = c.CurrentFlowID
	}
	if c.CurrentNodeID != "" {
		raw[keyCurrentNodeID] = c.CurrentNodeID
	}
	if c.AwaitingInputType != "" {
		raw[keyAwaitingInputType] = string(c.AwaitingInputType)
	}
	if !c.FlowStartedAt.IsZero() {
		raw[keyFlowStartedAt] = c.FlowStartedAt.Format(time.RFC3339)
	}
	return raw
}

// Update shallow-merges a partial record into the context, except for
// variables, which are deep-merged key by key.
func (c *Context) Update(partial map[string]any) {
	for key, value := range partial {
		switch key {
		case keyCurrentFlowID:
			c.CurrentFlowID = asString(value)
		case keyCurrentNodeID:
			c.CurrentNodeID = asString(value)
		case keyAwaitingInput:
			c.AwaitingInput = asBool(value)
		case keyAwaitingInputType:
			c.AwaitingInputType = InputType(asString(value))
		case keyVariables:
			for name, v := range asMap(value) {
				c.SetVariable(name, v)
			}
		case keyLastIntents:
			c.LastIntents = asStringSlice(value)
		case keyLastResponses:
			c.LastResponses = asStringSlice(value)
		case keyFlowStartedAt:
			c.FlowStartedAt = asTime(value)
		case keyLastInteractionAt:
			if t := asTime(value); !t.IsZero() {
				c.LastInteractionAt = t
			}
		case keyLanguage:
			if lang := asString(value); lang != "" {
				c.Language = lang
			}
		case keyTimezone:
			if tz := asString(value); tz != "" {
				c.Timezone = tz
			}
		}
	}
}

func lastN(list []string, n int) []string {
	if len(list) > n {
		return list[len(list)-n:]
	}
	return list
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func asBool(v any) bool {
	b, _ := v.(bool)
	return b
}

func asMap(v any) map[string]any {
	m, _ := v.(map[string]any)
	return m
}

func asStringSlice(v any) []string {
	switch list := v.(type) {
	case []string:
		return append([]string{}, list...)
	case []any:
		out := make([]string, 0, len(list))
		for _, item := range list {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return []string{}
	}
}

func asTime(v any) time.Time {
	switch t := v.(type) {
	case time.Time:
		return t
	case string:
		if parsed, err := time.Parse(time.RFC3339, t); err == nil {
			return parsed
		}
	case float64:
		// Unix seconds, the shape JSON numbers decode to.
		if t > 0 {
			return time.Unix(int64(t), 0)
		}
	}
	return time.Time{}
}
