package flowgraph

import (
	"fmt"
	"time"

	"github.com/kalidas7337/whatsapp-saas-sub000/internal/conversation"
	"github.com/kalidas7337/whatsapp-saas-sub000/internal/models"
)

// NodeConfig is the typed configuration of one node, decoded from the
// persisted data bag once at flow-load time.
type NodeConfig interface {
	nodeConfig()
}

// SendMessageConfig sends one text message.
type SendMessageConfig struct {
	Text string
}

// SendButtonsConfig sends a message with up to three reply buttons.
type SendButtonsConfig struct {
	Text    string
	Header  string
	Footer  string
	Buttons []models.Button
}

// SendListConfig sends a sectioned list message.
type SendListConfig struct {
	Text       string
	ButtonText string
	Sections   []models.ListSection
}

// AskQuestionConfig pauses the flow until the customer answers.
type AskQuestionConfig struct {
	Question     string
	InputType    conversation.InputType
	VariableName string
}

// SetVariableConfig writes a flow variable.
type SetVariableConfig struct {
	Name  string
	Value any
}

// AssignAgentConfig hands the conversation off to a human.
type AssignAgentConfig struct {
	Team string
	Note string
}

// TagConfig adds or removes a contact tag.
type TagConfig struct {
	Tag string
}

// DelayConfig delays the next outbound message.
type DelayConfig struct {
	Duration time.Duration
}

// EndConfig ends the flow, optionally with a closing message.
type EndConfig struct {
	Message string
}

func (SendMessageConfig) nodeConfig() {}
func (SendButtonsConfig) nodeConfig() {}
func (SendListConfig) nodeConfig()    {}
func (AskQuestionConfig) nodeConfig() {}
func (SetVariableConfig) nodeConfig() {}
func (AssignAgentConfig) nodeConfig() {}
func (TagConfig) nodeConfig()         {}
func (DelayConfig) nodeConfig()       {}
func (EndConfig) nodeConfig()         {}

// decodeNodeConfig turns a persisted node data bag into the typed config for
// its node type. Field-level problems fall back to safe defaults; an
// unsupported node type is a load error so a flow never stalls mid-chain.
func decodeNodeConfig(node models.FlowNode) (NodeConfig, error) {
	data := node.Data
	switch node.Type {
	case models.NodeSendMessage:
		text := dataString(data, "text", "message")
		if text == "" {
			return nil, fmt.Errorf("node %s: %w: SEND_MESSAGE requires text", node.ID, ErrInvalidNodeData)
		}
		return SendMessageConfig{Text: text}, nil

	case models.NodeSendButtons:
		cfg := SendButtonsConfig{
			Text:   dataString(data, "text", "message"),
			Header: dataString(data, "header"),
			Footer: dataString(data, "footer"),
		}
		for _, item := range dataSlice(data, "buttons") {
			b, _ := item.(map[string]any)
			cfg.Buttons = append(cfg.Buttons, models.Button{
				ID:    dataString(b, "id"),
				Title: dataString(b, "title", "label"),
			})
		}
		if cfg.Text == "" || len(cfg.Buttons) == 0 {
			return nil, fmt.Errorf("node %s: %w: SEND_BUTTONS requires text and buttons", node.ID, ErrInvalidNodeData)
		}
		return cfg, nil

	case models.NodeSendList:
		cfg := SendListConfig{
			Text:       dataString(data, "text", "message"),
			ButtonText: dataString(data, "button_text"),
		}
		for _, item := range dataSlice(data, "sections") {
			s, _ := item.(map[string]any)
			section := models.ListSection{Title: dataString(s, "title")}
			for _, r := range dataSlice(s, "rows") {
				row, _ := r.(map[string]any)
				section.Rows = append(section.Rows, models.ListRow{
					ID:          dataString(row, "id"),
					Title:       dataString(row, "title"),
					Description: dataString(row, "description"),
				})
			}
			cfg.Sections = append(cfg.Sections, section)
		}
		if cfg.Text == "" || len(cfg.Sections) == 0 {
			return nil, fmt.Errorf("node %s: %w: SEND_LIST requires text and sections", node.ID, ErrInvalidNodeData)
		}
		return cfg, nil

	case models.NodeAskQuestion:
		// Flow builders author keys in either snake_case or camelCase.
		cfg := AskQuestionConfig{
			Question:     dataString(data, "question", "text"),
			InputType:    conversation.InputType(dataString(data, "input_type", "inputType")),
			VariableName: dataString(data, "variable_name", "variableName", "variable"),
		}
		if cfg.Question == "" {
			return nil, fmt.Errorf("node %s: %w: ASK_QUESTION requires a question", node.ID, ErrInvalidNodeData)
		}
		if cfg.InputType == "" {
			cfg.InputType = conversation.InputAny
		}
		return cfg, nil

	case models.NodeSetVariable:
		name := dataString(data, "name", "variable_name", "variableName")
		if name == "" {
			return nil, fmt.Errorf("node %s: %w: SET_VARIABLE requires a name", node.ID, ErrInvalidNodeData)
		}
		return SetVariableConfig{Name: name, Value: data["value"]}, nil

	case models.NodeAssignAgent:
		return AssignAgentConfig{
			Team: dataString(data, "team"),
			Note: dataString(data, "note", "reason"),
		}, nil

	case models.NodeAddTag, models.NodeRemoveTag:
		tag := dataString(data, "tag", "name")
		if tag == "" {
			return nil, fmt.Errorf("node %s: %w: tag node requires a tag", node.ID, ErrInvalidNodeData)
		}
		return TagConfig{Tag: tag}, nil

	case models.NodeDelay:
		seconds := dataFloat(data, "seconds", "delay")
		if seconds <= 0 {
			return nil, fmt.Errorf("node %s: %w: DELAY requires positive seconds", node.ID, ErrInvalidNodeData)
		}
		return DelayConfig{Duration: time.Duration(seconds * float64(time.Second))}, nil

	case models.NodeEnd:
		return EndConfig{Message: dataString(data, "message", "text")}, nil

	case models.NodeSendTemplate, models.NodeSendMedia, models.NodeCondition, models.NodeHTTPRequest:
		return nil, fmt.Errorf("node %s: %w: %s", node.ID, ErrUnsupportedNodeType, node.Type)

	default:
		return nil, fmt.Errorf("node %s: %w: %s", node.ID, ErrUnknownNodeType, node.Type)
	}
}

// dataString returns the first non-empty string under any of the given keys.
func dataString(data map[string]any, keys ...string) string {
	for _, key := range keys {
		if s, ok := data[key].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

func dataSlice(data map[string]any, key string) []any {
	s, _ := data[key].([]any)
	return s
}

func dataFloat(data map[string]any, keys ...string) float64 {
	for _, key := range keys {
		switch v := data[key].(type) {
		case float64:
			return v
		case int:
			return float64(v)
		}
	}
	return 0
}
