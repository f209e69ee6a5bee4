package generate

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"
	"github.com/openai/openai-go/shared"

	contractx "github.com/baazlab/voicereach/agent/contract"
)

// maxSpokenChars is the point past which an LLM reply gets trimmed to its
// first two sentences. Phone replies longer than this drag the call.
const maxSpokenChars = 200

// LLMConfig configures the chat-completion generator. BaseURL allows any
// OpenAI-compatible endpoint.
type LLMConfig struct {
	BaseURL             string        `envconfig:"BASE_URL" split_words:"true"`
	APIKey              string        `envconfig:"API_KEY" split_words:"true"`
	Model               string        `envconfig:"MODEL" split_words:"true" default:"gpt-4o-mini"`
	MaxCompletionTokens int64         `envconfig:"MAX_COMPLETION_TOKENS" split_words:"true" default:"120"`
	Temperature         float64       `envconfig:"TEMPERATURE" split_words:"true" default:"0.7"`
	Timeout             time.Duration `envconfig:"TIMEOUT" split_words:"true" default:"10s"`
}

// LLMGenerator produces replies via a chat-completion call. The orchestrator
// applies its own per-turn deadline; the HTTP client timeout here is only a
// hard upper bound for leaked requests.
type LLMGenerator struct {
	client oai.Client
	cfg    LLMConfig
}

// NewLLM creates the generator. Returns an error when no API key is set;
// callers fall back to the template driver in that case.
func NewLLM(cfg LLMConfig) (*LLMGenerator, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("%w: llm api key is required", contractx.ErrValidation)
	}

	opts := []option.RequestOption{
		option.WithAPIKey(strings.TrimSpace(cfg.APIKey)),
	}
	if trimmed := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"); trimmed != "" {
		opts = append(opts, option.WithBaseURL(trimmed))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, option.WithHTTPClient(&http.Client{Timeout: cfg.Timeout}))
	}

	return &LLMGenerator{
		client: oai.NewClient(opts...),
		cfg:    cfg,
	}, nil
}

func (g *LLMGenerator) Reply(ctx context.Context, req contractx.ReplyRequest) (string, error) {
	params := oai.ChatCompletionNewParams{
		Model: shared.ChatModel(g.cfg.Model),
		Messages: []oai.ChatCompletionMessageParamUnion{
			oai.SystemMessage(systemPrompt(req.Lead)),
			oai.UserMessage(req.Utterance),
		},
		Temperature:         param.NewOpt(g.cfg.Temperature),
		MaxCompletionTokens: param.NewOpt(g.cfg.MaxCompletionTokens),
	}

	resp, err := g.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("%w: %v", contractx.ErrGenerate, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: empty choices in response", contractx.ErrGenerate)
	}

	return trimSpoken(resp.Choices[0].Message.Content), nil
}

func systemPrompt(lead contractx.LeadProfile) string {
	return fmt.Sprintf(`You are Alexa from Baaz Landmark Real Estate Dubai, on a phone call.

Client: %s owns a %d-bed property in %s.
Investment: bought %d for %d AED, now worth %d AED (%d AED profit, %.0f%% return).

Respond as a phone conversation:
- 1-2 sentences maximum
- natural, conversational tone
- focus on the investment opportunity
- end with an engaging question
- phrase for phone clarity (say "Arab Emirates Dirham", not "AED")`,
		lead.Name, lead.Bedrooms, lead.Location,
		lead.PurchaseYear, lead.BoughtPrice, lead.CurrentPrice,
		lead.Profit(), lead.ROIPercent())
}

// trimSpoken caps an LLM reply at its first two sentences once it exceeds
// the spoken-length budget.
func trimSpoken(text string) string {
	text = strings.TrimSpace(text)
	if len(text) <= maxSpokenChars {
		return text
	}
	sentences := strings.Split(text, ".")
	if len(sentences) < 2 {
		return text
	}
	return strings.TrimSpace(strings.Join(sentences[:2], ".")) + "."
}
