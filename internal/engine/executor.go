package engine

import (
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/kalidas7337/whatsapp-saas-sub000/internal/conversation"
	"github.com/kalidas7337/whatsapp-saas-sub000/internal/flowgraph"
	"github.com/kalidas7337/whatsapp-saas-sub000/internal/models"
)

// chainState accumulates output while a node chain executes.
type chainState struct {
	resp         *models.BotResponse
	pendingDelay time.Duration
}

func (s *chainState) append(msg models.BotResponseMessage) {
	msg.ID = uuid.NewString()
	msg.Delay = s.pendingDelay
	s.pendingDelay = 0
	s.resp.Messages = append(s.resp.Messages, msg)
}

func (s *chainState) addAction(actionType models.ActionType, payload map[string]any) {
	s.resp.Actions = append(s.resp.Actions, models.BotAction{Type: actionType, Payload: payload})
}

// executeChain walks the graph from startID, accumulating messages and
// actions until a node requests input, ends the flow, hands off, or the hop
// cap trips. Non-blocking nodes chain straight through, so one inbound
// message can yield several consecutive outbound messages.
func (e *Engine) executeChain(msg models.BotIncomingMessage, convo *conversation.Context, graph *flowgraph.Graph, startID string) *models.BotResponse {
	state := &chainState{resp: &models.BotResponse{}}
	nodeID := startID

	for hops := 0; hops < e.maxHops; hops++ {
		node, ok := graph.Node(nodeID)
		if !ok {
			slog.Warn("engine.executeChain: node missing mid-chain, ending flow", "conversationID", msg.ConversationID, "nodeID", nodeID)
			convo.ClearFlow()
			return state.resp
		}
		convo.CurrentNodeID = node.ID

		if halt := e.executeNode(node, msg, convo, state); halt {
			return state.resp
		}

		next, hasNext := graph.ResolveNext(node.ID, e.edgeEnv(msg, convo))
		if !hasNext {
			slog.Debug("engine.executeChain: no outgoing edge, flow complete", "conversationID", msg.ConversationID, "nodeID", node.ID)
			convo.ClearFlow()
			return state.resp
		}
		nodeID = next
	}

	slog.Warn("engine.executeChain: hop cap reached, ending flow", "conversationID", msg.ConversationID, "maxHops", e.maxHops, "flowID", convo.CurrentFlowID)
	convo.ClearFlow()
	return state.resp
}

// executeNode runs one node and reports whether the chain must halt.
func (e *Engine) executeNode(node flowgraph.Node, msg models.BotIncomingMessage, convo *conversation.Context, state *chainState) bool {
	switch cfg := node.Config.(type) {
	case flowgraph.SendMessageConfig:
		state.append(models.BotResponseMessage{
			Type: models.ResponseTypeText,
			Text: e.interpolate(cfg.Text, msg, convo),
		})
		return false

	case flowgraph.SendButtonsConfig:
		buttons := make([]models.Button, len(cfg.Buttons))
		for i, b := range cfg.Buttons {
			buttons[i] = models.Button{ID: b.ID, Title: e.interpolate(b.Title, msg, convo)}
		}
		state.append(models.BotResponseMessage{
			Type:    models.ResponseTypeButtons,
			Text:    e.interpolate(cfg.Text, msg, convo),
			Header:  cfg.Header,
			Footer:  cfg.Footer,
			Buttons: buttons,
		})
		return false

	case flowgraph.SendListConfig:
		state.append(models.BotResponseMessage{
			Type:       models.ResponseTypeList,
			Text:       e.interpolate(cfg.Text, msg, convo),
			ButtonText: cfg.ButtonText,
			Sections:   cfg.Sections,
		})
		return false

	case flowgraph.AskQuestionConfig:
		state.append(models.BotResponseMessage{
			Type: models.ResponseTypeText,
			Text: e.interpolate(cfg.Question, msg, convo),
		})
		convo.AwaitingInput = true
		convo.AwaitingInputType = cfg.InputType
		slog.Debug("engine.executeNode: awaiting input", "conversationID", msg.ConversationID, "nodeID", node.ID, "inputType", cfg.InputType)
		return true

	case flowgraph.SetVariableConfig:
		value := cfg.Value
		if s, isString := value.(string); isString {
			value = e.interpolate(s, msg, convo)
		}
		convo.SetVariable(cfg.Name, value)
		return false

	case flowgraph.AssignAgentConfig:
		reason := cfg.Note
		if reason == "" {
			reason = "assigned to agent by flow"
		}
		state.resp.TransferToHuman = true
		state.resp.TransferReason = reason
		state.addAction(models.ActionSendNotification, map[string]any{
			"reason":          reason,
			"team":            cfg.Team,
			"conversation_id": msg.ConversationID,
		})
		convo.ClearFlow()
		return true

	case flowgraph.TagConfig:
		actionType := models.ActionAddTag
		if node.Type == models.NodeRemoveTag {
			actionType = models.ActionRemoveTag
		}
		state.addAction(actionType, map[string]any{"tag": cfg.Tag})
		return false

	case flowgraph.DelayConfig:
		// Delays are not slept here; the caller honors them when sending.
		state.pendingDelay += cfg.Duration
		return false

	case flowgraph.EndConfig:
		if cfg.Message != "" {
			state.append(models.BotResponseMessage{
				Type: models.ResponseTypeText,
				Text: e.interpolate(cfg.Message, msg, convo),
			})
		}
		convo.ClearFlow()
		return true

	default:
		// Unreachable for compiled graphs; Compile rejects unknown types.
		slog.Error("engine.executeNode: node without executor, ending flow", "nodeID", node.ID, "type", node.Type)
		convo.ClearFlow()
		return true
	}
}
