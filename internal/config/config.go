package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino/components/model"

	speechmodel "github.com/zhouzirui/voicebot/backend/internal/model/speech"
)

const (
	ProviderGroq = "groq"
	ProviderArk  = "ark"

	// DefaultGroqBaseURL 是 Groq 的 OpenAI 兼容接口地址。
	DefaultGroqBaseURL = "https://api.groq.com/openai/v1"
	// DefaultCompletionModel 是固定使用的对话模型。
	DefaultCompletionModel = "llama-3.3-70b-versatile"
)

// Config 聚合整个服务的配置项。
type Config struct {
	Server     ServerConfig
	Completion CompletionConfig
	Speech     SpeechConfig
}

// Load 从环境变量加载配置。
func Load() (*Config, error) {
	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}

	completion, err := loadCompletionConfig()
	if err != nil {
		return nil, err
	}

	speech, err := loadSpeechConfig()
	if err != nil {
		return nil, err
	}

	return &Config{Server: server, Completion: completion, Speech: speech}, nil
}

// ServerConfig 描述 HTTP 服务配置。
type ServerConfig struct {
	Addr string
}

// loadServerConfig 解析服务器监听地址。
func loadServerConfig() (ServerConfig, error) {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "8080"
	}

	if strings.Contains(port, ":") {
		// 允许用户直接传入 ":8080" 或 "127.0.0.1:8080"。
		return ServerConfig{Addr: port}, nil
	}

	if strings.Contains(port, " ") {
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	}

	return ServerConfig{Addr: ":" + port}, nil
}

// CompletionConfig 描述对话补全接口配置。凭证由会话提供，DefaultCredential 仅用于预填。
type CompletionConfig struct {
	Provider          string
	Model             string
	BaseURL           string
	DefaultCredential string
	ArkBaseURL        string
	ArkRegion         string
}

// NewArkChatModel 使用会话凭证创建 Ark 模型实例，每轮对话调用一次。
func (c CompletionConfig) NewArkChatModel(ctx context.Context, credential string) (model.BaseChatModel, error) {
	credential = strings.TrimSpace(credential)
	if credential == "" {
		return nil, fmt.Errorf("Ark 凭证缺失")
	}

	chatModel, err := ark.NewChatModel(ctx, &ark.ChatModelConfig{
		BaseURL: c.ArkBaseURL,
		Region:  c.ArkRegion,
		APIKey:  credential,
		Model:   c.Model,
	})
	if err != nil {
		return nil, err
	}
	return chatModel, nil
}

func loadCompletionConfig() (CompletionConfig, error) {
	provider := strings.ToLower(getEnvOrDefault("COMPLETION_PROVIDER", ProviderGroq))
	if provider != ProviderGroq && provider != ProviderArk {
		return CompletionConfig{}, fmt.Errorf("invalid COMPLETION_PROVIDER value %q", provider)
	}

	return CompletionConfig{
		Provider:          provider,
		Model:             getEnvOrDefault("COMPLETION_MODEL", DefaultCompletionModel),
		BaseURL:           strings.TrimRight(getEnvOrDefault("GROQ_BASE_URL", DefaultGroqBaseURL), "/"),
		DefaultCredential: strings.TrimSpace(os.Getenv("GROQ_API_KEY")),
		ArkBaseURL:        getEnvOrDefault("ARK_BASE_URL", "https://ark.cn-beijing.volces.com/api/v3"),
		ArkRegion:         getEnvOrDefault("ARK_REGION", "cn-beijing"),
	}, nil
}

// SpeechConfig 描述语音合成相关配置
type SpeechConfig struct {
	Enabled         bool
	BaseURL         string
	TLD             string
	DefaultLanguage string
	DefaultSlow     bool
	Timeout         int
}

// Model 转换为语音服务使用的配置结构。
func (c SpeechConfig) Model() *speechmodel.SpeechConfig {
	return &speechmodel.SpeechConfig{
		BaseURL:         c.BaseURL,
		TLD:             c.TLD,
		DefaultLanguage: c.DefaultLanguage,
		DefaultSlow:     c.DefaultSlow,
		Timeout:         c.Timeout,
	}
}

func loadSpeechConfig() (SpeechConfig, error) {
	enabled, err := parseBoolEnv("SPEECH_ENABLED", true)
	if err != nil {
		return SpeechConfig{}, err
	}

	slow, err := parseBoolEnv("SPEECH_SLOW", false)
	if err != nil {
		return SpeechConfig{}, err
	}

	timeout, err := parseOptionalIntEnv("SPEECH_TIMEOUT")
	if err != nil {
		return SpeechConfig{}, err
	}
	timeoutSeconds := 0
	if timeout != nil && *timeout > 0 {
		timeoutSeconds = *timeout
	}

	language := getEnvOrDefault("SPEECH_DEFAULT_LANGUAGE", string(speechmodel.English))
	if !speechmodel.IsSupported(language) {
		return SpeechConfig{}, fmt.Errorf("invalid SPEECH_DEFAULT_LANGUAGE value %q", language)
	}

	return SpeechConfig{
		Enabled:         enabled,
		BaseURL:         strings.TrimRight(getEnvOrDefault("SPEECH_BASE_URL", ""), "/"),
		TLD:             getEnvOrDefault("SPEECH_TLD", "com"),
		DefaultLanguage: language,
		DefaultSlow:     slow,
		Timeout:         timeoutSeconds,
	}, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func parseBoolEnv(key string, defaultValue bool) (bool, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	val, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return val, nil
}

func parseOptionalIntEnv(key string) (*int, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.Atoi(value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}
