package models

// TriggerType is the rule that causes a flow to start.
type TriggerType string

const (
	// TriggerKeyword matches an exact or substring keyword in the message text.
	TriggerKeyword TriggerType = "KEYWORD"
	// TriggerFirstMessage matches only when the conversation has no intent history.
	TriggerFirstMessage TriggerType = "FIRST_MESSAGE"
	// TriggerButtonReply matches when a button reply id is listed in TriggerKeywords.
	TriggerButtonReply TriggerType = "BUTTON_REPLY"
	// TriggerListReply matches when a list reply id is listed in TriggerKeywords.
	TriggerListReply TriggerType = "LIST_REPLY"
	// TriggerRegexPattern matches the message text against TriggerPattern.
	TriggerRegexPattern TriggerType = "REGEX_PATTERN"
	// TriggerAllMessages is a last-resort catch-all; it matches only when the
	// detected intent is unknown.
	TriggerAllMessages TriggerType = "ALL_MESSAGES"
	// TriggerInactivity is fired by the inactivity sweep, never by inbound matching.
	TriggerInactivity TriggerType = "INACTIVITY"
)

// NodeType is the step kind of a flow node.
type NodeType string

const (
	NodeSendMessage NodeType = "SEND_MESSAGE"
	NodeSendButtons NodeType = "SEND_BUTTONS"
	NodeSendList    NodeType = "SEND_LIST"
	NodeAskQuestion NodeType = "ASK_QUESTION"
	NodeSetVariable NodeType = "SET_VARIABLE"
	NodeAssignAgent NodeType = "ASSIGN_AGENT"
	NodeAddTag      NodeType = "ADD_TAG"
	NodeRemoveTag   NodeType = "REMOVE_TAG"
	NodeDelay       NodeType = "DELAY"
	NodeEnd         NodeType = "END"

	// Declared in the flow vocabulary but without an executor in this core.
	// Flows referencing them are rejected at load time.
	NodeSendTemplate NodeType = "SEND_TEMPLATE"
	NodeSendMedia    NodeType = "SEND_MEDIA"
	NodeCondition    NodeType = "CONDITION"
	NodeHTTPRequest  NodeType = "HTTP_REQUEST"
)

// FlowNode is one step of a flow. Data carries the node-type-specific
// configuration as persisted; it is decoded into a typed config at load time.
type FlowNode struct {
	ID   string         `json:"id"`
	Type NodeType       `json:"type"`
	Data map[string]any `json:"data,omitempty"`
}

// FlowEdge is a directed, optionally conditional transition between nodes.
// An absent condition means "always take if reached and no conditioned edge
// matched first".
type FlowEdge struct {
	Source    string `json:"source"`
	Target    string `json:"target"`
	Condition string `json:"condition,omitempty"`
}

// FlowDefinition is the graph body of a flow.
type FlowDefinition struct {
	StartNodeID string     `json:"start_node_id"`
	Nodes       []FlowNode `json:"nodes"`
	Edges       []FlowEdge `json:"edges"`
	Variables   []string   `json:"variables,omitempty"`
}

// ChatbotFlow is a tenant-owned automation definition. It is created and
// edited outside this core and is read-only to the engine.
type ChatbotFlow struct {
	ID              string         `json:"id"`
	TenantID        string         `json:"tenant_id"`
	Name            string         `json:"name"`
	TriggerType     TriggerType    `json:"trigger_type"`
	TriggerKeywords []string       `json:"trigger_keywords,omitempty"`
	TriggerPattern  string         `json:"trigger_pattern,omitempty"`
	Priority        int            `json:"priority"`
	IsActive        bool           `json:"is_active"`
	FlowDefinition  FlowDefinition `json:"flow_definition"`
}
