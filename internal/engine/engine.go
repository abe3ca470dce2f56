// Package engine implements the conversational flow state machine: it resumes
// in-progress flows, classifies messages, selects flows by trigger rule and
// priority, executes node chains, and assembles the final bot response.
package engine

import (
	"context"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kalidas7337/whatsapp-saas-sub000/internal/conversation"
	"github.com/kalidas7337/whatsapp-saas-sub000/internal/flowcache"
	"github.com/kalidas7337/whatsapp-saas-sub000/internal/flowgraph"
	"github.com/kalidas7337/whatsapp-saas-sub000/internal/intent"
	"github.com/kalidas7337/whatsapp-saas-sub000/internal/models"
	"github.com/kalidas7337/whatsapp-saas-sub000/internal/rules"
)

// DefaultMaxHops caps how many nodes one message may traverse, so a cycle of
// non-blocking nodes in a malformed graph cannot spin forever.
const DefaultMaxHops = 25

// ExternalDataFunc looks up a business record in an external backend.
// Reserved hook: no node executor calls it in this core version.
type ExternalDataFunc func(ctx context.Context, entityID, dataType string) (any, error)

// Engine processes inbound messages against tenant flows and fallback
// handlers. It holds no per-conversation state; everything durable travels in
// the message's context record.
type Engine struct {
	flows       *flowcache.Cache
	detector    *intent.Detector
	evaluator   rules.Evaluator
	handlers    map[string]Handler
	external    ExternalDataFunc
	flowTimeout time.Duration
	maxHops     int
	now         func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithFlowTimeout overrides the active-flow abandonment timeout.
func WithFlowTimeout(timeout time.Duration) Option {
	return func(e *Engine) {
		if timeout > 0 {
			e.flowTimeout = timeout
		}
	}
}

// WithMaxHops overrides the per-message node traversal cap.
func WithMaxHops(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxHops = n
		}
	}
}

// WithClock overrides the engine clock, used by tests.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithExternalData installs the external business-record lookup hook.
func WithExternalData(fn ExternalDataFunc) Option {
	return func(e *Engine) { e.external = fn }
}

// WithHandler registers or overrides a fallback handler for an intent name.
func WithHandler(intentName string, h Handler) Option {
	return func(e *Engine) { e.handlers[intentName] = h }
}

// New creates an Engine over the given flow cache and intent detector.
func New(flows *flowcache.Cache, detector *intent.Detector, opts ...Option) *Engine {
	e := &Engine{
		flows:       flows,
		detector:    detector,
		evaluator:   rules.NewExprEvaluator(),
		flowTimeout: conversation.DefaultFlowTimeout,
		maxHops:     DefaultMaxHops,
		now:         time.Now,
	}
	e.handlers = defaultHandlers(e)
	for _, opt := range opts {
		opt(e)
	}
	slog.Debug("engine.New: engine created", "handlers", len(e.handlers), "maxHops", e.maxHops)
	return e
}

// ProcessMessage handles one inbound message and returns the complete
// response: outbound messages, context updates, side-effect actions, and the
// human-handoff flag. Unexpected failures never propagate; the customer gets
// the fixed fallback response instead. Flow-store fetch failures are the one
// exception and are returned to the caller.
func (e *Engine) ProcessMessage(ctx context.Context, msg models.BotIncomingMessage) (resp *models.BotResponse, err error) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("engine.ProcessMessage: recovered from panic", "panic", r, "conversationID", msg.ConversationID)
			resp = e.finalize(e.fallbackResponse(), conversation.Parse(msg.Context))
			err = nil
		}
	}()

	if verr := msg.Validate(); verr != nil {
		return nil, verr
	}

	slog.Debug("engine.ProcessMessage: message received", "tenantID", msg.TenantID, "conversationID", msg.ConversationID, "type", msg.Type)
	convo := conversation.Parse(msg.Context)

	if convo.IsInActiveFlow() {
		if convo.IsFlowTimedOut(e.flowTimeout, e.now()) {
			slog.Info("engine.ProcessMessage: active flow timed out, clearing", "conversationID", msg.ConversationID, "flowID", convo.CurrentFlowID)
			convo.ClearFlow()
		} else {
			resumed, rerr := e.resumeFlow(ctx, msg, convo)
			if rerr != nil {
				return nil, rerr
			}
			if resumed != nil {
				return e.finalize(resumed, convo), nil
			}
			// Flow or node vanished; resumeFlow already cleared the context
			// and we fall through to the intent path.
		}
	}

	detected := e.detector.Detect(msg)
	slog.Debug("engine.ProcessMessage: intent detected", "conversationID", msg.ConversationID, "intent", detected.Name, "confidence", detected.Confidence)

	flows, ferr := e.flows.GetActiveFlows(ctx, msg.TenantID)
	if ferr != nil {
		return nil, ferr
	}

	if flow := e.matchFlow(flows, msg, detected, convo); flow != nil {
		slog.Info("engine.ProcessMessage: flow triggered", "conversationID", msg.ConversationID, "flowID", flow.ID, "trigger", flow.TriggerType, "priority", flow.Priority)
		response := e.startFlow(ctx, msg, convo, flow)
		convo.AddIntentToHistory(detected.Name)
		return e.finalize(response, convo), nil
	}

	// The handler inspects history as it stood before this turn; the current
	// intent is appended afterwards.
	response := e.handlerFor(detected.Name)(ctx, msg, convo)
	convo.AddIntentToHistory(detected.Name)
	return e.finalize(response, convo), nil
}

// resumeFlow continues an active flow. It returns a nil response (and clears
// the flow) when the stored flow or node no longer exists, letting the caller
// fall through to the intent path. Fetch errors propagate.
func (e *Engine) resumeFlow(ctx context.Context, msg models.BotIncomingMessage, convo *conversation.Context) (*models.BotResponse, error) {
	flows, err := e.flows.GetActiveFlows(ctx, msg.TenantID)
	if err != nil {
		return nil, err
	}

	var flow *models.ChatbotFlow
	for i := range flows {
		if flows[i].ID == convo.CurrentFlowID {
			flow = &flows[i]
			break
		}
	}
	if flow == nil {
		slog.Warn("engine.resumeFlow: stored flow no longer exists, clearing", "conversationID", msg.ConversationID, "flowID", convo.CurrentFlowID)
		convo.ClearFlow()
		return nil, nil
	}

	graph, cerr := flowgraph.Compile(flow.FlowDefinition, e.evaluator)
	if cerr != nil {
		slog.Error("engine.resumeFlow: stored flow no longer compiles, clearing", "conversationID", msg.ConversationID, "flowID", flow.ID, "error", cerr)
		convo.ClearFlow()
		return nil, nil
	}

	node, ok := graph.Node(convo.CurrentNodeID)
	if !ok {
		slog.Warn("engine.resumeFlow: stored node no longer exists, clearing", "conversationID", msg.ConversationID, "flowID", flow.ID, "nodeID", convo.CurrentNodeID)
		convo.ClearFlow()
		return nil, nil
	}

	if convo.IsAwaitingInput() {
		variableName := "lastInput"
		if cfg, isAsk := node.Config.(flowgraph.AskQuestionConfig); isAsk && cfg.VariableName != "" {
			variableName = cfg.VariableName
		}
		input := msg.Text
		if msg.ReplyID != "" {
			input = msg.ReplyID
		}
		convo.SetVariable(variableName, input)
		convo.AwaitingInput = false
		convo.AwaitingInputType = ""
		slog.Debug("engine.resumeFlow: input captured", "conversationID", msg.ConversationID, "variable", variableName)

		next, hasNext := graph.ResolveNext(node.ID, e.edgeEnv(msg, convo))
		if !hasNext {
			convo.ClearFlow()
			return &models.BotResponse{}, nil
		}
		return e.executeChain(msg, convo, graph, next), nil
	}

	return e.executeChain(msg, convo, graph, node.ID), nil
}

// startFlow begins a matched flow at its start node. A flow that fails to
// compile degrades to the fallback response rather than an error.
func (e *Engine) startFlow(ctx context.Context, msg models.BotIncomingMessage, convo *conversation.Context, flow *models.ChatbotFlow) *models.BotResponse {
	graph, err := flowgraph.Compile(flow.FlowDefinition, e.evaluator)
	if err != nil {
		slog.Error("engine.startFlow: flow failed to compile", "flowID", flow.ID, "error", err)
		return e.fallbackResponse()
	}
	convo.StartFlow(flow.ID, graph.StartNodeID, e.now())
	return e.executeChain(msg, convo, graph, graph.StartNodeID)
}

// matchFlow evaluates flows (already sorted by priority descending) against
// the message; the first matching flow wins.
func (e *Engine) matchFlow(flows []models.ChatbotFlow, msg models.BotIncomingMessage, detected models.DetectedIntent, convo *conversation.Context) *models.ChatbotFlow {
	text := strings.ToLower(strings.TrimSpace(msg.Text))
	for i := range flows {
		flow := &flows[i]
		if e.triggerMatches(flow, msg, text, detected, convo) {
			return flow
		}
	}
	return nil
}

func (e *Engine) triggerMatches(flow *models.ChatbotFlow, msg models.BotIncomingMessage, text string, detected models.DetectedIntent, convo *conversation.Context) bool {
	switch flow.TriggerType {
	case models.TriggerKeyword:
		if text == "" {
			return false
		}
		for _, keyword := range flow.TriggerKeywords {
			keyword = strings.ToLower(strings.TrimSpace(keyword))
			if keyword == "" {
				continue
			}
			if text == keyword || strings.Contains(text, keyword) {
				return true
			}
		}
		return false

	case models.TriggerFirstMessage:
		return len(convo.LastIntents) == 0

	case models.TriggerButtonReply:
		return msg.Type == models.MessageTypeButtonReply && replyIDListed(flow.TriggerKeywords, msg.ReplyID)

	case models.TriggerListReply:
		return msg.Type == models.MessageTypeListReply && replyIDListed(flow.TriggerKeywords, msg.ReplyID)

	case models.TriggerRegexPattern:
		re, err := regexp.Compile(flow.TriggerPattern)
		if err != nil {
			slog.Warn("engine.triggerMatches: invalid trigger pattern skipped", "flowID", flow.ID, "pattern", flow.TriggerPattern, "error", err)
			return false
		}
		return re.MatchString(msg.Text)

	case models.TriggerAllMessages:
		// Catch-all acts as a last resort: it only claims messages nothing
		// else understood.
		return detected.Name == intent.IntentUnknown

	default:
		// TriggerInactivity is fired by the sweep, never by inbound matching.
		return false
	}
}

func replyIDListed(keywords []string, replyID string) bool {
	if replyID == "" {
		return false
	}
	for _, keyword := range keywords {
		if keyword == replyID {
			return true
		}
	}
	return false
}

// TriggerInactivityFlow starts the tenant's highest-priority INACTIVITY flow
// for an idle conversation. It returns nil when the conversation is mid-flow
// or the tenant has no inactivity flows.
func (e *Engine) TriggerInactivityFlow(ctx context.Context, msg models.BotIncomingMessage) (*models.BotResponse, error) {
	convo := conversation.Parse(msg.Context)
	if convo.IsInActiveFlow() {
		return nil, nil
	}

	flows, err := e.flows.GetActiveFlows(ctx, msg.TenantID)
	if err != nil {
		return nil, err
	}
	for i := range flows {
		if flows[i].TriggerType != models.TriggerInactivity {
			continue
		}
		slog.Info("engine.TriggerInactivityFlow: inactivity flow triggered", "conversationID", msg.ConversationID, "flowID", flows[i].ID)
		response := e.startFlow(ctx, msg, convo, &flows[i])
		return e.finalize(response, convo), nil
	}
	return nil, nil
}

// handlerFor resolves a fallback handler, defaulting to the unknown handler.
func (e *Engine) handlerFor(intentName string) Handler {
	if h, ok := e.handlers[intentName]; ok {
		return h
	}
	return e.handlers[intent.IntentUnknown]
}

// finalize attaches the serialized context snapshot and a response summary to
// the outgoing response.
func (e *Engine) finalize(resp *models.BotResponse, convo *conversation.Context) *models.BotResponse {
	if resp == nil {
		resp = &models.BotResponse{}
	}
	for i := range resp.Messages {
		if resp.Messages[i].ID == "" {
			resp.Messages[i].ID = uuid.NewString()
		}
	}
	if len(resp.Messages) > 0 {
		convo.AddResponseToHistory(summarize(resp.Messages[0]))
	} else if resp.TransferToHuman {
		convo.AddResponseToHistory("transfer_to_human")
	}
	resp.ContextUpdates = convo.Serialize(e.now())
	return resp
}

// summarize produces the short history entry for one outbound message,
// truncating on rune boundaries so emoji-bearing texts stay valid UTF-8.
func summarize(msg models.BotResponseMessage) string {
	text := msg.Text
	if runes := []rune(text); len(runes) > 60 {
		text = string(runes[:60])
	}
	return string(msg.Type) + ":" + text
}

// edgeEnv builds the condition-evaluation environment for one resolution.
func (e *Engine) edgeEnv(msg models.BotIncomingMessage, convo *conversation.Context) flowgraph.Env {
	raw := msg.Text
	if msg.ReplyID != "" {
		raw = msg.ReplyID
	}
	return flowgraph.Env{
		Variables: convo.Variables,
		RawText:   raw,
		Evaluator: e.evaluator,
	}
}
