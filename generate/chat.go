package generate

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/jonwraymond/cropadvisor/artifact"
)

// DefaultModel is used when ChatConfig.Model is empty.
const DefaultModel = "gpt-4o-mini"

// ChatConfig configures a Chat generator.
type ChatConfig struct {
	// APIKey authenticates against the endpoint.
	APIKey string

	// BaseURL overrides the endpoint, for OpenAI-compatible providers.
	// Empty uses the OpenAI default.
	BaseURL string

	// Model is the chat model name. Default: DefaultModel.
	Model string

	// Temperature is the sampling temperature. Zero is sent as zero.
	Temperature float64

	// MaxTokens caps the completion length. Zero leaves it unset.
	MaxTokens int64

	// Prompts overrides the system prompt per kind. Kinds not present use
	// DefaultPrompts.
	Prompts map[artifact.Kind]string
}

// DefaultPrompts holds the built-in system prompt per kind.
var DefaultPrompts = map[artifact.Kind]string{
	artifact.KindSoil:    "You are an agronomist. Describe the typical soil of the given location and its suitability for the given crop: texture, pH, organic matter and major nutrients.",
	artifact.KindWater:   "You are an agronomist. Describe irrigation water availability and quality at the given location for the given crop.",
	artifact.KindWeather: "You are an agro-meteorologist. Summarize current and near-term weather at the given location and its effect on the given crop.",
	artifact.KindStage: "You are a crop scientist. Produce a growth stage plan for the crop from its sowing date. " +
		"List every stage as:\nStage N: <name>\nStart Date: YYYY-MM-DD\nEnd Date: YYYY-MM-DD\n" +
		"Then add a CRITICAL ASSUMPTIONS: section.",
	artifact.KindNutrient:   "You are an agronomist. Recommend a nutrient and fertilizer plan for the crop's current growth stage.",
	artifact.KindPest:       "You are an entomologist. List likely pests for the crop at its current growth stage with prevention and control measures.",
	artifact.KindDisease:    "You are a plant pathologist. List likely diseases for the crop at its current growth stage with prevention and control measures.",
	artifact.KindIrrigation: "You are an irrigation engineer. Recommend an irrigation schedule for the crop at its current growth stage.",
	artifact.KindMerge:      "You are a farm advisor. Merge the following reports into one concise advisory for the farmer.",
}

// Chat generates payloads with an OpenAI-compatible chat completions API.
type Chat struct {
	client      openai.Client
	model       string
	temperature float64
	maxTokens   int64
	prompts     map[artifact.Kind]string
}

// NewChat creates a Chat generator. It never retries on its own; retries
// are left to the caller.
func NewChat(cfg ChatConfig, opts ...option.RequestOption) *Chat {
	reqOpts := []option.RequestOption{option.WithMaxRetries(0)}
	if cfg.APIKey != "" {
		reqOpts = append(reqOpts, option.WithAPIKey(cfg.APIKey))
	}
	if cfg.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.BaseURL))
	}
	reqOpts = append(reqOpts, opts...)

	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}

	prompts := make(map[artifact.Kind]string, len(DefaultPrompts))
	for k, v := range DefaultPrompts {
		prompts[k] = v
	}
	for k, v := range cfg.Prompts {
		if strings.TrimSpace(v) != "" {
			prompts[k] = v
		}
	}

	return &Chat{
		client:      openai.NewClient(reqOpts...),
		model:       model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		prompts:     prompts,
	}
}

// Generate sends one chat completion for req and returns the first choice.
func (c *Chat) Generate(ctx context.Context, req Request) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(c.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(c.prompts[req.Kind]),
			openai.UserMessage(UserPrompt(req)),
		},
		Temperature: openai.Float(c.temperature),
	}
	if c.maxTokens > 0 {
		params.MaxTokens = openai.Int(c.maxTokens)
	}

	completion, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			return "", Wrap(req.Kind, fmt.Errorf("chat completion status %d: %w", apiErr.StatusCode, err))
		}
		return "", Wrap(req.Kind, fmt.Errorf("chat completion: %w", err))
	}
	if len(completion.Choices) == 0 {
		return "", Wrap(req.Kind, ErrEmptyPayload)
	}
	text := strings.TrimSpace(completion.Choices[0].Message.Content)
	if text == "" {
		return "", Wrap(req.Kind, ErrEmptyPayload)
	}
	return text, nil
}

// UserPrompt renders the request key and dependency payloads as the user
// message. Dependencies appear in declaration order of the kind.
func UserPrompt(req Request) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Location: %s\n", req.Key.Location)
	fmt.Fprintf(&b, "Crop: %s\n", req.Key.CropName)
	if req.Key.SowingDate != "" {
		fmt.Fprintf(&b, "Sowing date: %s\n", req.Key.SowingDate)
	}
	for _, dep := range promptOrder(req) {
		payload, ok := req.Dependencies[dep]
		if !ok {
			continue
		}
		fmt.Fprintf(&b, "\n## %s\n%s\n", strings.ToUpper(string(dep)), strings.TrimSpace(payload))
	}
	return b.String()
}

// promptOrder lists the dependency kinds to render: the declared ones for
// artifact kinds, every kind for merge.
func promptOrder(req Request) []artifact.Kind {
	if req.Kind.Valid() {
		return req.Kind.Dependencies()
	}
	return artifact.Kinds
}

var _ Generator = (*Chat)(nil)
