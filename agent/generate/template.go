// Package generate provides reply generators for non-decisive turns: a
// deterministic template driver that needs no network, and an LLM driver
// backed by an OpenAI-compatible chat API.
package generate

import (
	"context"
	"fmt"
	"strings"

	contractx "github.com/baazlab/voicereach/agent/contract"
)

var questionWords = []string{"how", "what", "where", "when", "why"}

// TemplateGenerator returns canned phone-friendly replies, rotated by
// exchange count so consecutive turns do not repeat. It is the degraded-mode
// driver when no LLM key is configured, and fast enough to never hit the
// generation timeout.
type TemplateGenerator struct{}

func NewTemplate() *TemplateGenerator {
	return &TemplateGenerator{}
}

func (g *TemplateGenerator) Reply(ctx context.Context, req contractx.ReplyRequest) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	profit := req.Lead.Profit()
	roi := req.Lead.ROIPercent()

	if containsAnyWord(req.Utterance, questionWords) {
		return "Great question! The strategy is simple - sell at peak value, then acquire two or three apartments in high-growth areas. That multiplies both rental income and capital appreciation. Interested in the specifics?", nil
	}

	responses := []string{
		fmt.Sprintf("Your property gained %d Arab Emirates Dirhams since %d. That's %.0f percent return, and the timing is right to maximize it further. What matters most to you about your investment?", profit, req.Lead.PurchaseYear, roi),
		fmt.Sprintf("With the current momentum in %s, smart investors are repositioning now. Would you like to hear the strategic options?", req.Lead.Location),
		fmt.Sprintf("Based on your %.0f percent return, you clearly make smart decisions. Are you ready to potentially double those returns through repositioning?", roi),
	}
	return responses[req.Exchange%len(responses)], nil
}

func containsAnyWord(text string, words []string) bool {
	text = strings.ToLower(text)
	for _, w := range words {
		if strings.Contains(text, w) {
			return true
		}
	}
	return false
}
