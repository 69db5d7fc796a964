package ai

import (
	"context"
	"net/http"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	openai "github.com/sashabaranov/go-openai"
)

// NewGroqModelFactory returns a factory producing OpenAI-compatible chat models
// pointed at baseURL. A nil httpClient keeps the library default.
func NewGroqModelFactory(baseURL, modelName string, httpClient *http.Client) ModelFactory {
	return func(_ context.Context, credential string) (model.BaseChatModel, error) {
		cfg := openai.DefaultConfig(credential)
		if baseURL != "" {
			cfg.BaseURL = baseURL
		}
		if httpClient != nil {
			cfg.HTTPClient = httpClient
		}
		return &OpenAIChatModel{client: openai.NewClientWithConfig(cfg), model: modelName}, nil
	}
}

// OpenAIChatModel adapts a go-openai client to eino's chat model interface.
type OpenAIChatModel struct {
	client *openai.Client
	model  string
}

// Generate issues one non-streaming chat completion.
func (m *OpenAIChatModel) Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	options := model.GetCommonOptions(&model.Options{Model: &m.model}, opts...)

	req := openai.ChatCompletionRequest{
		Model:    *options.Model,
		Messages: toOpenAIMessages(input),
	}
	if options.Temperature != nil {
		req.Temperature = *options.Temperature
	}
	if options.MaxTokens != nil {
		req.MaxTokens = *options.MaxTokens
	}

	resp, err := m.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, err
	}
	if len(resp.Choices) == 0 {
		return nil, ErrEmptyCompletion
	}

	return schema.AssistantMessage(resp.Choices[0].Message.Content, nil), nil
}

// Stream wraps Generate; the endpoint is only ever called in blocking mode.
func (m *OpenAIChatModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	msg, err := m.Generate(ctx, input, opts...)
	if err != nil {
		return nil, err
	}
	return schema.StreamReaderFromArray([]*schema.Message{msg}), nil
}

func toOpenAIMessages(input []*schema.Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(input))
	for _, msg := range input {
		if msg == nil {
			continue
		}
		role := openai.ChatMessageRoleUser
		switch msg.Role {
		case schema.Assistant:
			role = openai.ChatMessageRoleAssistant
		case schema.System:
			role = openai.ChatMessageRoleSystem
		}
		out = append(out, openai.ChatCompletionMessage{Role: role, Content: msg.Content})
	}
	return out
}
