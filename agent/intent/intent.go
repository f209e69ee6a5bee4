// Package intent maps free-text utterances to a closed set of intent labels
// via keyword containment. Deliberately simple: memory-resident keyword
// tables, no model calls.
package intent

import (
	"strings"

	contractx "github.com/baazlab/voicereach/agent/contract"
)

// Config holds the keyword sets. Comma-separated env lists override the
// default English sets.
type Config struct {
	ConfirmKeywords []string `envconfig:"CONFIRM_KEYWORDS" split_words:"true"`
	RejectKeywords  []string `envconfig:"REJECT_KEYWORDS" split_words:"true"`
}

var (
	defaultConfirmKeywords = []string{"yes", "interested", "sure", "okay", "agree"}
	defaultRejectKeywords  = []string{"no", "not interested", "stop", "never", "leave me"}
)

// Classifier performs keyword-containment classification.
type Classifier struct {
	confirm []string
	reject  []string
}

// New builds a Classifier from cfg, falling back to the default keyword sets
// when a list is empty. Keywords are matched case-insensitively.
func New(cfg Config) *Classifier {
	confirm := normalizeKeywords(cfg.ConfirmKeywords)
	if len(confirm) == 0 {
		confirm = defaultConfirmKeywords
	}
	reject := normalizeKeywords(cfg.RejectKeywords)
	if len(reject) == 0 {
		reject = defaultRejectKeywords
	}
	return &Classifier{confirm: confirm, reject: reject}
}

// Classify returns the intent for an utterance. Confirm keywords take
// priority over reject keywords when both match. Always returns a value from
// the closed enumeration; unmatched input is IntentNeutral.
func (c *Classifier) Classify(utterance string) contractx.Intent {
	text := strings.ToLower(utterance)

	if containsAny(text, c.confirm) {
		return contractx.IntentStrongConfirm
	}
	if containsAny(text, c.reject) {
		return contractx.IntentStrongReject
	}
	return contractx.IntentNeutral
}

func containsAny(text string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}

func normalizeKeywords(keywords []string) []string {
	out := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw != "" {
			out = append(out, kw)
		}
	}
	return out
}
