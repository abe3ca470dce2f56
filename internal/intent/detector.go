package intent

import (
	"log/slog"
	"regexp"
	"strings"

	"github.com/kalidas7337/whatsapp-saas-sub000/internal/models"
)

// Confidence levels assigned by the matchers.
const (
	confidenceExact     = 1.0
	confidenceRegex     = 0.9
	confidenceSubstring = 0.8
	confidenceUnknown   = 0.1
	confidenceSynthetic = 0.9
)

// compiledRule is a Rule with its patterns compiled once at construction.
type compiledRule struct {
	Rule
	patterns []*regexp.Regexp
}

// Detector classifies inbound messages. It is a pure function of its inputs
// and safe for concurrent use once constructed.
type Detector struct {
	rules        []compiledRule
	replyIntents map[string]string
	amountRe     *regexp.Regexp
}

// NewDetector builds a detector from the given detection table. Invalid
// regular expressions in the table are logged and skipped so a bad pattern
// can never take classification down.
func NewDetector(cfg Config) *Detector {
	d := &Detector{
		replyIntents: cfg.ReplyIntents,
		// Currency-prefixed ("₹ 250", "rs. 250") or suffixed ("250 rupees") amounts.
		amountRe: regexp.MustCompile(`(?i)(?:(?:₹|rs\.?|inr)\s*(\d+(?:\.\d{1,2})?))|(?:(\d+(?:\.\d{1,2})?)\s*(?:rupees|rs))`),
	}
	for _, rule := range cfg.Intents {
		cr := compiledRule{Rule: rule}
		for _, pattern := range rule.Patterns {
			re, err := regexp.Compile(pattern)
			if err != nil {
				slog.Warn("intent.NewDetector: invalid pattern skipped", "intent", rule.Name, "pattern", pattern, "error", err)
				continue
			}
			cr.patterns = append(cr.patterns, re)
		}
		d.rules = append(d.rules, cr)
	}
	slog.Debug("intent.NewDetector: detector built", "rules", len(d.rules))
	return d
}

// Detect classifies one inbound message into a DetectedIntent.
func (d *Detector) Detect(msg models.BotIncomingMessage) models.DetectedIntent {
	// Structured replies resolve first and deterministically.
	if msg.ReplyID != "" {
		return d.detectReply(msg)
	}

	if msg.Type.IsMedia() {
		return models.DetectedIntent{
			Name:       IntentDocumentUpload,
			Confidence: confidenceSynthetic,
			Entities: map[string]any{
				"media_url": msg.MediaURL,
				"mime_type": msg.MimeType,
			},
			RawInput: msg.Text,
		}
	}

	if msg.Type == models.MessageTypeLocation {
		return models.DetectedIntent{
			Name:       IntentLocationShared,
			Confidence: confidenceSynthetic,
			Entities: map[string]any{
				"latitude":  msg.Latitude,
				"longitude": msg.Longitude,
			},
			RawInput: msg.Text,
		}
	}

	return d.detectText(msg.Text)
}

// detectReply resolves an interactive reply id by splitting it on underscores
// and matching each segment against the reply table; the first matching
// segment wins. Unmatched replies are returned verbatim as button_response.
func (d *Detector) detectReply(msg models.BotIncomingMessage) models.DetectedIntent {
	for _, segment := range strings.Split(strings.ToLower(msg.ReplyID), "_") {
		if name, ok := d.replyIntents[segment]; ok {
			slog.Debug("intent.Detect: structured reply resolved", "replyID", msg.ReplyID, "segment", segment, "intent", name)
			return models.DetectedIntent{
				Name:       name,
				Confidence: confidenceExact,
				Entities:   map[string]any{"reply_id": msg.ReplyID, "reply_title": msg.ReplyTitle},
				RawInput:   msg.ReplyID,
			}
		}
	}
	return models.DetectedIntent{
		Name:       IntentButtonResponse,
		Confidence: confidenceExact,
		Entities:   map[string]any{"reply_id": msg.ReplyID, "reply_title": msg.ReplyTitle},
		RawInput:   msg.ReplyID,
	}
}

// detectText scores free text against every rule, tracking the best match by
// strict confidence comparison with priority as the tie-break.
func (d *Detector) detectText(text string) models.DetectedIntent {
	normalized := strings.ToLower(strings.TrimSpace(text))

	best := models.DetectedIntent{
		Name:       IntentUnknown,
		Confidence: confidenceUnknown,
		RawInput:   text,
	}
	bestPriority := -1

	for _, rule := range d.rules {
		confidence := 0.0
		for _, keyword := range rule.Keywords {
			if normalized == keyword {
				confidence = confidenceExact
				break
			}
			if strings.Contains(normalized, keyword) && confidence < confidenceSubstring {
				confidence = confidenceSubstring
			}
		}
		if confidence < confidenceRegex {
			for _, re := range rule.patterns {
				if re.MatchString(normalized) {
					confidence = confidenceRegex
					break
				}
			}
		}
		if confidence == 0 {
			continue
		}
		if confidence > best.Confidence || (confidence == best.Confidence && rule.Priority > bestPriority) {
			best = models.DetectedIntent{
				Name:       rule.Name,
				Confidence: confidence,
				Entities:   d.extractEntities(rule, normalized),
				RawInput:   text,
			}
			bestPriority = rule.Priority
		}
	}

	slog.Debug("intent.Detect: text classified", "intent", best.Name, "confidence", best.Confidence)
	return best
}

// extractEntities runs the rule's post-extraction over the normalized text.
func (d *Detector) extractEntities(rule compiledRule, normalized string) map[string]any {
	var entities map[string]any
	put := func(key string, value any) {
		if entities == nil {
			entities = make(map[string]any)
		}
		entities[key] = value
	}

	for _, category := range rule.Categories {
		if strings.Contains(normalized, category) {
			put("category", category)
			break
		}
	}
	if rule.ExtractAmount {
		if m := d.amountRe.FindStringSubmatch(normalized); m != nil {
			amount := m[1]
			if amount == "" {
				amount = m[2]
			}
			put("amount", amount)
		}
	}
	return entities
}
