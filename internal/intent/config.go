// Package intent classifies inbound messages into named intents with
// confidence scores and extracted entities, using keyword and pattern
// matching driven by an explicit configuration object.
package intent

import (
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"
)

// Rule describes one intent in the detection table.
type Rule struct {
	// Name is the intent emitted on a match.
	Name string `yaml:"name"`
	// Keywords score 1.0 on exact match and 0.8 on substring match.
	Keywords []string `yaml:"keywords,omitempty"`
	// Patterns are regular expressions scoring 0.9 on match. Invalid
	// patterns are skipped, never fatal.
	Patterns []string `yaml:"patterns,omitempty"`
	// Priority breaks ties between rules with equal confidence; higher wins.
	Priority int `yaml:"priority"`
	// Categories, when set, are scanned in the text and emitted as a
	// "category" entity.
	Categories []string `yaml:"categories,omitempty"`
	// ExtractAmount enables currency-amount entity extraction for this intent.
	ExtractAmount bool `yaml:"extract_amount,omitempty"`
}

// Config is the full detection table. It is passed to the detector at
// construction so tenants can override it without mutating shared state.
type Config struct {
	Intents []Rule `yaml:"intents"`
	// ReplyIntents maps structured-reply id segments to intent names.
	ReplyIntents map[string]string `yaml:"reply_intents,omitempty"`
}

// Canonical intent names used by the default table and the fallback handlers.
const (
	IntentGreeting       = "greeting"
	IntentHelp           = "help"
	IntentHumanHandoff   = "human_handoff"
	IntentOrderStatus    = "order_status"
	IntentPayment        = "payment"
	IntentThanks         = "thanks"
	IntentGoodbye        = "goodbye"
	IntentYes            = "yes"
	IntentNo             = "no"
	IntentUnknown        = "unknown"
	IntentButtonResponse = "button_response"
	IntentDocumentUpload = "document_upload"
	IntentLocationShared = "location_shared"
)

// DefaultConfig returns the built-in detection table.
func DefaultConfig() Config {
	return Config{
		Intents: []Rule{
			{
				Name:     IntentGreeting,
				Keywords: []string{"hi", "hello", "hey", "namaste", "good morning", "good afternoon", "good evening"},
				Patterns: []string{`^h+[ie]+y*[!.\s]*$`},
				Priority: 10,
			},
			{
				Name:     IntentHelp,
				Keywords: []string{"help", "menu", "options", "what can you do"},
				Priority: 20,
			},
			{
				Name:     IntentHumanHandoff,
				Keywords: []string{"agent", "human", "representative", "talk to someone", "customer care", "support"},
				Patterns: []string{`(?i)\b(speak|talk|connect)\b.*\b(agent|human|person|someone)\b`},
				Priority: 40,
			},
			{
				Name:       IntentOrderStatus,
				Keywords:   []string{"status", "track", "where is my order", "delivery"},
				Patterns:   []string{`(?i)\border\b.*\b(status|track|update)\b`},
				Priority:   30,
				Categories: []string{"order", "delivery", "refund", "replacement"},
			},
			{
				Name:          IntentPayment,
				Keywords:      []string{"pay", "payment", "bill", "invoice", "upi"},
				Priority:      30,
				ExtractAmount: true,
			},
			{
				Name:     IntentThanks,
				Keywords: []string{"thanks", "thank you", "thx"},
				Priority: 10,
			},
			{
				Name:     IntentGoodbye,
				Keywords: []string{"bye", "goodbye", "see you"},
				Priority: 10,
			},
			{
				Name:     IntentYes,
				Keywords: []string{"yes", "yeah", "ok", "okay", "sure", "confirm"},
				Priority: 5,
			},
			{
				Name:     IntentNo,
				Keywords: []string{"no", "nope", "cancel", "not now"},
				Priority: 5,
			},
		},
		ReplyIntents: map[string]string{
			"help":    IntentHelp,
			"menu":    IntentHelp,
			"pay":     IntentPayment,
			"payment": IntentPayment,
			"confirm": IntentYes,
			"yes":     IntentYes,
			"no":      IntentNo,
			"cancel":  IntentNo,
			"agent":   IntentHumanHandoff,
			"human":   IntentHumanHandoff,
			"status":  IntentOrderStatus,
			"track":   IntentOrderStatus,
		},
	}
}

// LoadConfig reads a detection table from a YAML file. Missing sections fall
// back to the defaults, so a file may override just the intent list or just
// the reply table.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read intent config: %w", err)
	}

	var loaded Config
	if err := yaml.Unmarshal(data, &loaded); err != nil {
		return Config{}, fmt.Errorf("failed to parse intent config: %w", err)
	}

	defaults := DefaultConfig()
	if len(loaded.Intents) == 0 {
		loaded.Intents = defaults.Intents
	}
	if len(loaded.ReplyIntents) == 0 {
		loaded.ReplyIntents = defaults.ReplyIntents
	}
	slog.Info("intent.LoadConfig: detection table loaded", "path", path, "intents", len(loaded.Intents), "replyIntents", len(loaded.ReplyIntents))
	return loaded, nil
}
