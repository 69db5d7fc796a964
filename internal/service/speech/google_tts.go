package speech

import (
	"bufio"
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"github.com/zhouzirui/voicebot/backend/internal/model/speech"
)

const (
	googleTTSRPC      = "jQ1olc"
	googleTTSPath     = "/_/TranslateWebserverUi/data/batchexecute"
	googleTTSReferer  = "http://translate.google.com/"
	googleTTSAgent    = "Mozilla/5.0 (Windows NT 10.0; WOW64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/47.0.2526.106 Safari/537.36"
	googleAudioFormat = "mp3"
)

var googleAudioPattern = regexp.MustCompile(`jQ1olc","\[\\"(.*)\\"]`)

// GoogleTTSClient talks to Google Translate's speech endpoint, the same
// service gTTS uses. Each chunk of text is one request; the mp3 fragments
// are concatenated in order.
type GoogleTTSClient struct {
	endpoint   string
	httpClient *http.Client
}

// NewGoogleTTSClient 创建 Google Translate TTS 客户端
func NewGoogleTTSClient(config *speech.SpeechConfig, httpClient *http.Client) *GoogleTTSClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: config.TimeoutDuration()}
	}

	return &GoogleTTSClient{
		endpoint:   resolveEndpoint(config),
		httpClient: httpClient,
	}
}

func resolveEndpoint(config *speech.SpeechConfig) string {
	if config != nil && strings.TrimSpace(config.BaseURL) != "" {
		return strings.TrimRight(config.BaseURL, "/") + googleTTSPath
	}

	tld := "com"
	if config != nil && strings.TrimSpace(config.TLD) != "" {
		tld = strings.TrimSpace(config.TLD)
	}
	return "https://translate.google." + tld + googleTTSPath
}

// SynthesizeSpeech converts req.Text to mp3 audio.
func (c *GoogleTTSClient) SynthesizeSpeech(ctx context.Context, req *speech.TTSRequest) (*speech.TTSResponse, error) {
	chunks := splitText(req.Text, maxChunkRunes)
	if len(chunks) == 0 {
		return nil, ErrEmptyText
	}

	var audio bytes.Buffer
	for idx, chunk := range chunks {
		data, err := c.synthesizeChunk(ctx, chunk, req.Language, req.Slow)
		if err != nil {
			return nil, fmt.Errorf("TTS chunk %d/%d failed: %w", idx+1, len(chunks), err)
		}
		audio.Write(data)
	}

	log.Printf("[TTS] synthesized %d chunk(s), lang=%s, slow=%t, bytes=%d", len(chunks), req.Language, req.Slow, audio.Len())

	return &speech.TTSResponse{
		SessionID: req.SessionID,
		AudioData: audio.Bytes(),
		Format:    googleAudioFormat,
		Chunks:    len(chunks),
		RequestID: uuid.NewString(),
		CreatedAt: time.Now(),
	}, nil
}

func (c *GoogleTTSClient) synthesizeChunk(ctx context.Context, text, language string, slow bool) ([]byte, error) {
	body, err := packageRPC(text, language, slow)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, strings.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build TTS request: %w", err)
	}
	httpReq.Header.Set("Referer", googleTTSReferer)
	httpReq.Header.Set("User-Agent", googleTTSAgent)
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded;charset=utf-8")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to call TTS endpoint: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("TTS endpoint returned %d (%s)", resp.StatusCode, http.StatusText(resp.StatusCode))
	}

	return extractAudio(resp.Body)
}

// packageRPC builds the form body carrying the jQ1olc call.
// The third parameter is true for slow speech and null otherwise.
func packageRPC(text, language string, slow bool) (string, error) {
	var speed any
	if slow {
		speed = true
	}

	params, err := sonic.Marshal([]any{text, language, speed, "null"})
	if err != nil {
		return "", fmt.Errorf("failed to marshal TTS parameters: %w", err)
	}

	rpc, err := sonic.Marshal([][][]any{{{googleTTSRPC, string(params), nil, "generic"}}})
	if err != nil {
		return "", fmt.Errorf("failed to marshal TTS rpc: %w", err)
	}

	return url.Values{"f.req": {string(rpc)}}.Encode(), nil
}

func extractAudio(r io.Reader) ([]byte, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)

	for scanner.Scan() {
		line := scanner.Text()
		if !strings.Contains(line, googleTTSRPC) {
			continue
		}
		match := googleAudioPattern.FindStringSubmatch(line)
		if match == nil {
			continue
		}
		audio, err := base64.StdEncoding.DecodeString(match[1])
		if err != nil {
			return nil, fmt.Errorf("failed to decode base64 audio chunk: %w", err)
		}
		return audio, nil
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read TTS response: %w", err)
	}

	return nil, ErrNoAudio
}
