package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/kalidas7337/whatsapp-saas-sub000/internal/conversation"
	"github.com/kalidas7337/whatsapp-saas-sub000/internal/intent"
	"github.com/kalidas7337/whatsapp-saas-sub000/internal/models"
)

// Handler is a stateless responder for an intent not bound to any flow.
type Handler func(ctx context.Context, msg models.BotIncomingMessage, convo *conversation.Context) *models.BotResponse

func mainMenuButtons() []models.Button {
	return []models.Button{
		{ID: "menu_services", Title: "Our Services"},
		{ID: "menu_order_status", Title: "Order Status"},
		{ID: "menu_talk_to_agent", Title: "Talk to Agent"},
	}
}

// defaultHandlers builds the built-in fallback handler table.
func defaultHandlers(e *Engine) map[string]Handler {
	return map[string]Handler{
		intent.IntentGreeting:       e.handleGreeting,
		intent.IntentHelp:           handleHelp,
		intent.IntentHumanHandoff:   handleHumanHandoff,
		intent.IntentOrderStatus:    handleOrderStatus,
		intent.IntentPayment:        handlePayment,
		intent.IntentThanks:         handleThanks,
		intent.IntentGoodbye:        handleGoodbye,
		intent.IntentDocumentUpload: handleDocumentUpload,
		intent.IntentLocationShared: handleLocationShared,
		intent.IntentUnknown:        handleUnknown,
	}
}

// handleGreeting selects a time-of-day salutation in the conversation's
// timezone and offers the main menu.
func (e *Engine) handleGreeting(ctx context.Context, msg models.BotIncomingMessage, convo *conversation.Context) *models.BotResponse {
	now := e.now()
	if loc, err := time.LoadLocation(convo.Timezone); err == nil {
		now = now.In(loc)
	} else {
		slog.Warn("engine.handleGreeting: unknown timezone, using engine clock", "timezone", convo.Timezone, "error", err)
	}

	var salutation string
	switch hour := now.Hour(); {
	case hour < 12:
		salutation = "Good morning"
	case hour < 17:
		salutation = "Good afternoon"
	default:
		salutation = "Good evening"
	}

	greeting := salutation + "! 👋"
	if msg.Contact.Name != "" {
		greeting = salutation + ", " + msg.Contact.Name + "! 👋"
	}

	return &models.BotResponse{
		Messages: []models.BotResponseMessage{{
			Type:    models.ResponseTypeButtons,
			Text:    greeting + " Welcome! How can I help you today?",
			Buttons: mainMenuButtons(),
		}},
	}
}

func handleHelp(ctx context.Context, msg models.BotIncomingMessage, convo *conversation.Context) *models.BotResponse {
	return &models.BotResponse{
		Messages: []models.BotResponseMessage{{
			Type:    models.ResponseTypeButtons,
			Text:    "Here's what I can help you with. Pick an option below, or just type your question.",
			Buttons: mainMenuButtons(),
		}},
	}
}

// handleHumanHandoff always transfers, clears any active flow, and notifies
// the agent team.
func handleHumanHandoff(ctx context.Context, msg models.BotIncomingMessage, convo *conversation.Context) *models.BotResponse {
	convo.ClearFlow()
	return &models.BotResponse{
		Messages: []models.BotResponseMessage{{
			Type: models.ResponseTypeText,
			Text: "Sure, I'm connecting you with one of our team members. Please hold on, someone will be with you shortly. 🙋",
		}},
		Actions: []models.BotAction{{
			Type: models.ActionSendNotification,
			Payload: map[string]any{
				"reason":          "customer requested human agent",
				"conversation_id": msg.ConversationID,
				"tenant_id":       msg.TenantID,
			},
		}},
		TransferToHuman: true,
		TransferReason:  "customer requested human agent",
	}
}

func handleOrderStatus(ctx context.Context, msg models.BotIncomingMessage, convo *conversation.Context) *models.BotResponse {
	return &models.BotResponse{
		Messages: []models.BotResponseMessage{{
			Type: models.ResponseTypeText,
			Text: "I can check that for you. Please share your order ID (for example: ORD-12345).",
		}},
	}
}

func handlePayment(ctx context.Context, msg models.BotIncomingMessage, convo *conversation.Context) *models.BotResponse {
	return &models.BotResponse{
		Messages: []models.BotResponseMessage{{
			Type: models.ResponseTypeText,
			Text: "You can pay via UPI, card, or net banking. Share your invoice number and I'll send you a payment link.",
		}},
	}
}

func handleThanks(ctx context.Context, msg models.BotIncomingMessage, convo *conversation.Context) *models.BotResponse {
	return &models.BotResponse{
		Messages: []models.BotResponseMessage{{
			Type: models.ResponseTypeText,
			Text: "You're welcome! 😊 Is there anything else I can help you with?",
		}},
	}
}

func handleGoodbye(ctx context.Context, msg models.BotIncomingMessage, convo *conversation.Context) *models.BotResponse {
	return &models.BotResponse{
		Messages: []models.BotResponseMessage{{
			Type: models.ResponseTypeText,
			Text: "Thank you for chatting with us. Have a great day! 👋",
		}},
	}
}

func handleDocumentUpload(ctx context.Context, msg models.BotIncomingMessage, convo *conversation.Context) *models.BotResponse {
	return &models.BotResponse{
		Messages: []models.BotResponseMessage{{
			Type: models.ResponseTypeText,
			Text: "Got it, we've received your file. Our team will take a look and get back to you.",
		}},
	}
}

func handleLocationShared(ctx context.Context, msg models.BotIncomingMessage, convo *conversation.Context) *models.BotResponse {
	return &models.BotResponse{
		Messages: []models.BotResponseMessage{{
			Type: models.ResponseTypeText,
			Text: "Thanks for sharing your location. We'll use it to find the nearest option for you.",
		}},
	}
}

// handleUnknown is the loop-breaking fallback: after two consecutive unknown
// turns it offers a human instead of repeating the generic menu.
func handleUnknown(ctx context.Context, msg models.BotIncomingMessage, convo *conversation.Context) *models.BotResponse {
	if lastTwoUnknown(convo.LastIntents) {
		slog.Info("engine.handleUnknown: repeated unknown intents, offering agent", "conversationID", msg.ConversationID)
		return &models.BotResponse{
			Messages: []models.BotResponseMessage{{
				Type: models.ResponseTypeButtons,
				Text: "I'm having trouble understanding. Would you like to talk to one of our team members instead?",
				Buttons: []models.Button{
					{ID: "escalate_talk_to_agent", Title: "Talk to Agent"},
					{ID: "escalate_main_menu", Title: "Main Menu"},
				},
			}},
		}
	}

	return &models.BotResponse{
		Messages: []models.BotResponseMessage{{
			Type:    models.ResponseTypeButtons,
			Text:    "Sorry, I didn't quite get that. Here are some things I can help with:",
			Buttons: mainMenuButtons(),
		}},
	}
}

func lastTwoUnknown(history []string) bool {
	if len(history) < 2 {
		return false
	}
	return history[len(history)-1] == intent.IntentUnknown && history[len(history)-2] == intent.IntentUnknown
}

// fallbackResponse is the fixed apologetic reply for unexpected failures. It
// never transfers to a human on its own.
func (e *Engine) fallbackResponse() *models.BotResponse {
	return &models.BotResponse{
		Messages: []models.BotResponseMessage{{
			Type: models.ResponseTypeButtons,
			Text: "Sorry, something went wrong on our side. Please try again.",
			Buttons: []models.Button{
				{ID: "fallback_main_menu", Title: "Main Menu"},
				{ID: "fallback_talk_to_agent", Title: "Talk to Agent"},
			},
		}},
	}
}
