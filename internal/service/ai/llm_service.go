package ai

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/zhouzirui/voicebot/backend/internal/config"
	"github.com/zhouzirui/voicebot/backend/internal/model/chat"
)

var (
	ErrCredentialRequired = errors.New("completion credential is required")
	ErrEmptyCompletion    = errors.New("no response from the completion API")
)

// ModelFactory builds a chat model bound to one credential.
type ModelFactory func(ctx context.Context, credential string) (model.BaseChatModel, error)

// Service encapsulates the chat-completion call made once per turn.
type Service struct {
	newModel ModelFactory
	provider string
}

// NewService creates a completion service for the configured provider.
func NewService(cfg config.CompletionConfig) (*Service, error) {
	switch cfg.Provider {
	case config.ProviderArk:
		return &Service{newModel: cfg.NewArkChatModel, provider: cfg.Provider}, nil
	case config.ProviderGroq, "":
		return &Service{newModel: NewGroqModelFactory(cfg.BaseURL, cfg.Model, nil), provider: config.ProviderGroq}, nil
	default:
		return nil, fmt.Errorf("unknown completion provider %q", cfg.Provider)
	}
}

// NewServiceWithFactory creates a service around a custom model factory.
func NewServiceWithFactory(factory ModelFactory) *Service {
	return &Service{newModel: factory, provider: "custom"}
}

// Provider names the backend in use.
func (s *Service) Provider() string {
	return s.provider
}

// Complete sends the whole transcript and returns the first completion's text.
func (s *Service) Complete(ctx context.Context, credential string, transcript []chat.Message) (string, error) {
	if strings.TrimSpace(credential) == "" {
		return "", ErrCredentialRequired
	}

	chatModel, err := s.newModel(ctx, credential)
	if err != nil {
		return "", fmt.Errorf("failed to create chat model: %w", err)
	}

	history := buildHistoryMessages(transcript)
	response, err := chatModel.Generate(ctx, history)
	if err != nil {
		if errors.Is(err, ErrEmptyCompletion) {
			return "", err
		}
		return "", fmt.Errorf("completion request failed: %w", err)
	}
	if response == nil {
		return "", ErrEmptyCompletion
	}

	log.Printf("[ai] completion via %s, history=%d, length=%d", s.provider, len(history), len(response.Content))
	return response.Content, nil
}

// buildHistoryMessages keeps user and assistant turns only, in transcript order.
func buildHistoryMessages(messages []chat.Message) []*schema.Message {
	history := make([]*schema.Message, 0, len(messages))
	for _, msg := range messages {
		switch msg.Role {
		case chat.RoleUser:
			history = append(history, schema.UserMessage(msg.Content))
		case chat.RoleAssistant:
			history = append(history, schema.AssistantMessage(msg.Content, nil))
		}
	}
	return history
}
