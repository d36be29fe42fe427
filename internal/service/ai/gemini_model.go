package ai

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/googleapis/gax-go/v2/apierror"
	"google.golang.org/genai"
)

// ContentGenerator is the subset of the Gemini models API used here.
// *genai.Models satisfies it.
type ContentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
	GenerateContentStream(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) iter.Seq2[*genai.GenerateContentResponse, error]
}

// GeminiChatModel adapts the Gemini content API to eino's chat model interface
// so it can sit in a compose chain.
type GeminiChatModel struct {
	models      ContentGenerator
	model       string
	temperature *float32
	topP        *float32
	maxTokens   *int
}

// GeminiChatModelConfig mirrors the sampling knobs of ark.ChatModelConfig.
type GeminiChatModelConfig struct {
	Model       string
	Temperature *float32
	TopP        *float32
	MaxTokens   *int
}

var _ model.ChatModel = (*GeminiChatModel)(nil)

// NewGeminiChatModel wraps a Gemini models client.
func NewGeminiChatModel(models ContentGenerator, modelName string, temperature *float32) *GeminiChatModel {
	return NewGeminiChatModelWithConfig(models, GeminiChatModelConfig{Model: modelName, Temperature: temperature})
}

// NewGeminiChatModelWithConfig wraps a Gemini models client with full sampling settings.
func NewGeminiChatModelWithConfig(models ContentGenerator, cfg GeminiChatModelConfig) *GeminiChatModel {
	return &GeminiChatModel{
		models:      models,
		model:       cfg.Model,
		temperature: cfg.Temperature,
		topP:        cfg.TopP,
		maxTokens:   cfg.MaxTokens,
	}
}

// Generate runs a single non-streaming completion.
func (g *GeminiChatModel) Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	modelName, cfg, contents, err := g.convert(input, opts...)
	if err != nil {
		return nil, err
	}
	resp, err := g.models.GenerateContent(ctx, modelName, contents, cfg)
	if err != nil {
		return nil, NormalizeError(err)
	}
	return schema.AssistantMessage(resp.Text(), nil), nil
}

// Stream runs a streaming completion, one message chunk per response chunk.
func (g *GeminiChatModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	modelName, cfg, contents, err := g.convert(input, opts...)
	if err != nil {
		return nil, err
	}

	sr, sw := schema.Pipe[*schema.Message](8)
	go func() {
		defer sw.Close()
		for chunk, err := range g.models.GenerateContentStream(ctx, modelName, contents, cfg) {
			if err != nil {
				sw.Send(nil, NormalizeError(err))
				return
			}
			text := chunk.Text()
			if text == "" {
				continue
			}
			if closed := sw.Send(schema.AssistantMessage(text, nil), nil); closed {
				return
			}
		}
	}()
	return sr, nil
}

// BindTools is a no-op; the tutor does not use tool calls.
func (g *GeminiChatModel) BindTools([]*schema.ToolInfo) error {
	return nil
}

func (g *GeminiChatModel) convert(input []*schema.Message, opts ...model.Option) (string, *genai.GenerateContentConfig, []*genai.Content, error) {
	options := model.GetCommonOptions(&model.Options{
		Model:       &g.model,
		Temperature: g.temperature,
		TopP:        g.topP,
		MaxTokens:   g.maxTokens,
	}, opts...)

	cfg := &genai.GenerateContentConfig{Temperature: options.Temperature}
	if options.TopP != nil {
		cfg.TopP = options.TopP
	}
	if options.MaxTokens != nil {
		cfg.MaxOutputTokens = int32(*options.MaxTokens)
	}

	var system []string
	contents := make([]*genai.Content, 0, len(input))
	for _, msg := range input {
		if msg == nil {
			continue
		}
		switch msg.Role {
		case schema.System:
			if msg.Content != "" {
				system = append(system, msg.Content)
			}
		case schema.Assistant:
			contents = appendContent(contents, genai.RoleModel, msg.Content)
		default:
			contents = appendContent(contents, genai.RoleUser, msg.Content)
		}
	}
	if len(contents) == 0 {
		return "", nil, nil, errors.New("gemini: no contents")
	}
	if len(system) > 0 {
		cfg.SystemInstruction = genai.NewContentFromText(strings.Join(system, "\n\n"), genai.RoleUser)
	}

	modelName := g.model
	if options.Model != nil && *options.Model != "" {
		modelName = *options.Model
	}
	return modelName, cfg, contents, nil
}

// appendContent merges consecutive turns of the same role, which the API rejects.
func appendContent(contents []*genai.Content, role, text string) []*genai.Content {
	if n := len(contents); n > 0 && contents[n-1].Role == role {
		contents[n-1].Parts = append(contents[n-1].Parts, genai.NewPartFromText(text))
		return contents
	}
	return append(contents, genai.NewContentFromText(text, genai.Role(role)))
}

// NormalizeError unwraps googleapis errors so callers see the API message.
func NormalizeError(err error) error {
	var apiErr *apierror.APIError
	if errors.As(err, &apiErr) {
		if inner := apiErr.Unwrap(); inner != nil {
			return fmt.Errorf("gemini api: %w", inner)
		}
	}
	return fmt.Errorf("gemini: %w", err)
}
