package engine

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/kalidas7337/whatsapp-saas-sub000/internal/conversation"
	"github.com/kalidas7337/whatsapp-saas-sub000/internal/models"
)

var placeholderRe = regexp.MustCompile(`\{\{\s*([\w.]+)\s*\}\}`)

// interpolate substitutes {{name}}, {{contact.field}}, {{var.name}} and
// {{context.name}} placeholders. Unresolved placeholders stay verbatim so a
// broken template is visible in the output instead of silently blanked.
func (e *Engine) interpolate(text string, msg models.BotIncomingMessage, convo *conversation.Context) string {
	if !strings.Contains(text, "{{") {
		return text
	}
	return placeholderRe.ReplaceAllStringFunc(text, func(match string) string {
		name := strings.TrimSpace(strings.TrimSuffix(strings.TrimPrefix(match, "{{"), "}}"))
		if value, ok := resolvePlaceholder(name, msg, convo); ok {
			return value
		}
		return match
	})
}

func resolvePlaceholder(name string, msg models.BotIncomingMessage, convo *conversation.Context) (string, bool) {
	if field, ok := strings.CutPrefix(name, "contact."); ok {
		return contactField(msg.Contact, field)
	}
	if rest, ok := strings.CutPrefix(name, "var."); ok {
		return variableValue(convo, rest)
	}
	if rest, ok := strings.CutPrefix(name, "context."); ok {
		return variableValue(convo, rest)
	}
	return variableValue(convo, name)
}

func contactField(contact models.Contact, field string) (string, bool) {
	var value string
	switch field {
	case "name":
		value = contact.Name
	case "phone":
		value = contact.Phone
	case "id":
		value = contact.ID
	case "language":
		value = contact.Language
	default:
		value = contact.Attributes[field]
	}
	if value == "" {
		return "", false
	}
	return value, true
}

func variableValue(convo *conversation.Context, name string) (string, bool) {
	value, ok := convo.Variables[name]
	if !ok || value == nil {
		return "", false
	}
	if s, isString := value.(string); isString {
		return s, true
	}
	return fmt.Sprintf("%v", value), true
}
