package ai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/zhouzirui/atlas/backend/internal/config"
	"github.com/zhouzirui/atlas/backend/internal/model/chat"
	"github.com/zhouzirui/atlas/backend/internal/model/tutor"
)

// ErrStreamingDisabled is returned by StreamReply when streaming is turned off.
var ErrStreamingDisabled = errors.New("streaming disabled in configuration")

// Service encapsulates AI-powered tutor conversation.
type Service struct {
	chatModel    model.BaseChatModel
	prompts      *PromptBuilder
	historyLimit int
	streaming    bool
	chain        compose.Runnable[map[string]any, *schema.Message]
}

// Options tunes a Service built directly from a chat model.
type Options struct {
	HistoryLimit int
	Streaming    bool
}

// NewService creates the AI service from configuration, picking the chat
// provider named by cfg.Provider.
func NewService(ctx context.Context, cfg config.AIConfig) (*Service, error) {
	chatModel, err := NewChatModel(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat model: %w", err)
	}
	return NewServiceWithModel(ctx, chatModel, Options{HistoryLimit: cfg.HistoryLimit, Streaming: cfg.StreamResponse})
}

// NewChatModel builds the configured chat model provider.
func NewChatModel(ctx context.Context, cfg config.AIConfig) (model.BaseChatModel, error) {
	switch cfg.Provider {
	case config.ProviderArk:
		return cfg.NewArkChatModel(ctx)
	default:
		client, err := cfg.NewGeminiClient(ctx)
		if err != nil {
			return nil, err
		}
		return NewGeminiChatModelWithConfig(client.Models, GeminiChatModelConfig{
			Model:       cfg.ChatModel,
			Temperature: cfg.Temperature32(),
			TopP:        cfg.TopP32(),
			MaxTokens:   cfg.MaxTokens,
		}), nil
	}
}

// NewServiceWithModel compiles the tutor chain around an existing chat model.
func NewServiceWithModel(ctx context.Context, chatModel model.BaseChatModel, opts Options) (*Service, error) {
	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage("{system}"),
		schema.MessagesPlaceholder("history", true),
		schema.UserMessage("{query}"),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile chat chain: %w", err)
	}

	return &Service{
		chatModel:    chatModel,
		prompts:      NewPromptBuilder(),
		historyLimit: opts.HistoryLimit,
		streaming:    opts.Streaming,
		chain:        runnable,
	}, nil
}

// StreamingEnabled 指示是否开启 SSE 流式输出。
func (s *Service) StreamingEnabled() bool {
	return s.streaming
}

// ChatModel 返回底层的聊天模型
func (s *Service) ChatModel() model.BaseChatModel {
	return s.chatModel
}

// GenerateReply produces the tutor's answer to userMessage given the prior history.
func (s *Service) GenerateReply(ctx context.Context, t tutor.Tutor, history []chat.Message, userMessage string) (string, error) {
	response, err := s.chain.Invoke(ctx, s.buildChainInput(t, history, userMessage))
	if err != nil {
		return "", fmt.Errorf("failed to run AI chain: %w", err)
	}

	log.Printf("[ai] generated reply tutor=%s length=%d", t.ID, len(response.Content))
	return response.Content, nil
}

// StreamReply streams the tutor's answer, calling onDelta for every non-empty
// chunk, and returns the concatenated reply.
func (s *Service) StreamReply(ctx context.Context, t tutor.Tutor, history []chat.Message, userMessage string, onDelta func(string)) (string, error) {
	if !s.streaming {
		return "", ErrStreamingDisabled
	}

	stream, err := s.chain.Stream(ctx, s.buildChainInput(t, history, userMessage))
	if err != nil {
		return "", fmt.Errorf("failed to stream AI chain output: %w", err)
	}
	defer stream.Close()

	chunks := make([]*schema.Message, 0, 8)
	for {
		chunk, recvErr := stream.Recv()
		if errors.Is(recvErr, io.EOF) {
			break
		}
		if recvErr != nil {
			return "", fmt.Errorf("ai stream recv failed: %w", recvErr)
		}
		if chunk == nil {
			continue
		}
		chunks = append(chunks, chunk)
		if chunk.Content != "" && onDelta != nil {
			onDelta(chunk.Content)
		}
	}
	if len(chunks) == 0 {
		return "", nil
	}

	merged, err := schema.ConcatMessages(chunks)
	if err != nil {
		return "", fmt.Errorf("concat ai chunks failed: %w", err)
	}
	return merged.Content, nil
}

func (s *Service) buildChainInput(t tutor.Tutor, history []chat.Message, userMessage string) map[string]any {
	return map[string]any{
		"system":  s.prompts.SystemPrompt(t),
		"history": s.buildHistoryMessages(history),
		"query":   userMessage,
	}
}

func (s *Service) buildHistoryMessages(messages []chat.Message) []*schema.Message {
	messages = chat.ModelContext(messages)
	if len(messages) == 0 {
		return nil
	}

	startIdx := 0
	if s.historyLimit > 0 && len(messages) > s.historyLimit {
		startIdx = len(messages) - s.historyLimit
	}

	history := make([]*schema.Message, 0, len(messages)-startIdx)
	for _, msg := range messages[startIdx:] {
		switch msg.Role {
		case chat.RoleUser:
			history = append(history, schema.UserMessage(msg.Text))
		case chat.RoleModel:
			history = append(history, schema.AssistantMessage(msg.Text, nil))
		}
	}
	return history
}
