// Package models defines the core data structures for the conversational flow engine.
//
// It includes the inbound message envelope, the engine's response types, and the
// flow definition shapes shared across modules.
package models

import (
	"errors"
	"time"
)

// DeploymentMode distinguishes a standalone deployment from one integrated
// with an external backend that owns contacts and business records.
type DeploymentMode string

const (
	// ModeStandalone runs entirely on the bundled in-memory store.
	ModeStandalone DeploymentMode = "standalone"
	// ModeIntegrated delegates contact and business data to an external backend.
	ModeIntegrated DeploymentMode = "integrated"
)

// MessageType identifies the kind of inbound channel message.
type MessageType string

const (
	MessageTypeText        MessageType = "text"
	MessageTypeButtonReply MessageType = "button_reply"
	MessageTypeListReply   MessageType = "list_reply"
	MessageTypeImage       MessageType = "image"
	MessageTypeDocument    MessageType = "document"
	MessageTypeAudio       MessageType = "audio"
	MessageTypeVideo       MessageType = "video"
	MessageTypeLocation    MessageType = "location"
)

// IsMedia reports whether the message type carries a media attachment.
func (t MessageType) IsMedia() bool {
	switch t {
	case MessageTypeImage, MessageTypeDocument, MessageTypeAudio, MessageTypeVideo:
		return true
	default:
		return false
	}
}

// Contact is the channel profile of the customer on the other end of the conversation.
type Contact struct {
	ID         string            `json:"id"`
	Name       string            `json:"name,omitempty"`
	Phone      string            `json:"phone"`
	Language   string            `json:"language,omitempty"`
	Tags       []string          `json:"tags,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// BotIncomingMessage is the unit of work handed to the engine: one inbound
// message plus the conversation's persisted context.
type BotIncomingMessage struct {
	MessageID      string         `json:"message_id"`
	TenantID       string         `json:"tenant_id"`
	ConversationID string         `json:"conversation_id"`
	From           string         `json:"from"`
	Type           MessageType    `json:"type"`
	Text           string         `json:"text,omitempty"`
	ReplyID        string         `json:"reply_id,omitempty"`    // button/list reply identifier
	ReplyTitle     string         `json:"reply_title,omitempty"` // button/list reply label
	MediaURL       string         `json:"media_url,omitempty"`
	MimeType       string         `json:"mime_type,omitempty"`
	Latitude       float64        `json:"latitude,omitempty"`
	Longitude      float64        `json:"longitude,omitempty"`
	Contact        Contact        `json:"contact"`
	Context        map[string]any `json:"context,omitempty"` // persisted conversation context, opaque to the caller
	Mode           DeploymentMode `json:"mode,omitempty"`
	Timestamp      time.Time      `json:"timestamp"`
}

// DetectedIntent is the classified purpose of one inbound message. It is
// ephemeral: only the intent name is appended to the conversation history.
type DetectedIntent struct {
	Name       string         `json:"name"`
	Confidence float64        `json:"confidence"`
	Entities   map[string]any `json:"entities,omitempty"`
	RawInput   string         `json:"raw_input"`
}

// ResponseMessageType identifies the shape of an outbound message.
type ResponseMessageType string

const (
	ResponseTypeText    ResponseMessageType = "text"
	ResponseTypeButtons ResponseMessageType = "buttons"
	ResponseTypeList    ResponseMessageType = "list"
)

// Button is one reply button offered to the customer.
type Button struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// ListRow is one selectable row inside a list section.
type ListRow struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
}

// ListSection groups list rows under an optional section title.
type ListSection struct {
	Title string    `json:"title,omitempty"`
	Rows  []ListRow `json:"rows"`
}

// BotResponseMessage is one outbound message produced by the engine. The
// caller is responsible for honoring Delay before sending it.
type BotResponseMessage struct {
	ID         string              `json:"id"`
	Type       ResponseMessageType `json:"type"`
	Text       string              `json:"text,omitempty"`
	Header     string              `json:"header,omitempty"`
	Footer     string              `json:"footer,omitempty"`
	Buttons    []Button            `json:"buttons,omitempty"`
	ButtonText string              `json:"button_text,omitempty"` // list opener label
	Sections   []ListSection       `json:"sections,omitempty"`
	Delay      time.Duration       `json:"delay,omitempty"`
}

// ActionType identifies a side effect the caller must execute.
type ActionType string

const (
	ActionAddTag           ActionType = "add_tag"
	ActionRemoveTag        ActionType = "remove_tag"
	ActionSetVariable      ActionType = "set_variable"
	ActionUpdateContact    ActionType = "update_contact"
	ActionCreateTask       ActionType = "create_task"
	ActionSendNotification ActionType = "send_notification"
)

// BotAction is a side-effect request emitted alongside outbound messages.
type BotAction struct {
	Type    ActionType     `json:"type"`
	Payload map[string]any `json:"payload,omitempty"`
}

// BotResponse is the engine's complete output for one inbound message. It is
// never persisted by the engine itself; the caller owns commit-after-send.
type BotResponse struct {
	Messages        []BotResponseMessage `json:"messages"`
	ContextUpdates  map[string]any       `json:"context_updates,omitempty"`
	Actions         []BotAction          `json:"actions,omitempty"`
	TransferToHuman bool                 `json:"transfer_to_human"`
	TransferReason  string               `json:"transfer_reason,omitempty"`
}

// Channel field limits enforced defensively at the wire boundary.
const (
	// MaxButtonTitleLength is the channel limit for reply button titles.
	MaxButtonTitleLength = 20
	// MaxListRowTitleLength is the channel limit for list row titles.
	MaxListRowTitleLength = 24
	// MaxListRowDescriptionLength is the channel limit for list row descriptions.
	MaxListRowDescriptionLength = 72
	// MaxListSectionTitleLength is the channel limit for list section titles.
	MaxListSectionTitleLength = 24
	// MaxButtonsPerMessage is the channel limit for reply buttons on one message.
	MaxButtonsPerMessage = 3
	// MaxListRowsPerMessage is the channel limit for rows across all sections.
	MaxListRowsPerMessage = 10
)

// Validation errors shared across modules.
var (
	ErrEmptyTenant       = errors.New("tenant id cannot be empty")
	ErrEmptyConversation = errors.New("conversation id cannot be empty")
)

// Validate checks the minimal identifiers the engine requires.
func (m *BotIncomingMessage) Validate() error {
	if m.TenantID == "" {
		return ErrEmptyTenant
	}
	if m.ConversationID == "" {
		return ErrEmptyConversation
	}
	return nil
}
