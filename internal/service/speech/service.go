package speech

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/zhouzirui/voicebot/backend/internal/model/speech"
)

var (
	ErrEmptyText = errors.New("TTS text is empty")
	ErrNoAudio   = errors.New("no audio stream in TTS response, check the language and text")
)

// Synthesizer converts text to encoded audio.
type Synthesizer interface {
	SynthesizeSpeech(ctx context.Context, req *speech.TTSRequest) (*speech.TTSResponse, error)
}

// Service 语音服务核心业务逻辑
type Service struct {
	config *speech.SpeechConfig
	tts    Synthesizer
}

// NewService 创建语音服务实例，默认使用 Google Translate TTS
func NewService(config *speech.SpeechConfig, httpClient *http.Client) *Service {
	return NewServiceWithSynthesizer(config, NewGoogleTTSClient(config, httpClient))
}

// NewServiceWithSynthesizer 使用自定义合成器创建语音服务
func NewServiceWithSynthesizer(config *speech.SpeechConfig, tts Synthesizer) *Service {
	if config == nil {
		config = &speech.SpeechConfig{}
	}
	return &Service{config: config, tts: tts}
}

// SynthesizeSpeech validates the request and synthesizes it. Nothing is cached,
// repeated text is synthesized again.
func (s *Service) SynthesizeSpeech(ctx context.Context, req *speech.TTSRequest) (*speech.TTSResponse, error) {
	if req == nil || strings.TrimSpace(req.Text) == "" {
		return nil, ErrEmptyText
	}

	normalized := *req
	normalized.Language = strings.TrimSpace(normalized.Language)
	if normalized.Language == "" {
		normalized.Language = s.config.DefaultLanguage
	}
	if normalized.Language == "" {
		normalized.Language = string(speech.English)
	}
	if !speech.IsSupported(normalized.Language) {
		return nil, speech.ErrUnsupportedLanguage
	}

	return s.tts.SynthesizeSpeech(ctx, &normalized)
}

// SynthesizeToBuffer 文字转语音（返回字节数组）
func (s *Service) SynthesizeToBuffer(ctx context.Context, sessionID, text, language string, slow bool) (*speech.TTSResponse, error) {
	return s.SynthesizeSpeech(ctx, &speech.TTSRequest{
		SessionID: sessionID,
		Text:      text,
		Language:  language,
		Slow:      slow,
	})
}

// Languages lists the supported synthesis languages.
func (s *Service) Languages() []speech.LanguageOption {
	return speech.Languages()
}
