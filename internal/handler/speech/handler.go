package speech

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/voicebot/backend/internal/model/speech"
	chatservice "github.com/zhouzirui/voicebot/backend/internal/service/chat"
	speechsvc "github.com/zhouzirui/voicebot/backend/internal/service/speech"
	"github.com/zhouzirui/voicebot/backend/pkg/utils"
)

// SpeechService 抽象语音业务，便于测试与替换实现
type SpeechService interface {
	SynthesizeSpeech(rCtx context.Context, req *speech.TTSRequest) (*speech.TTSResponse, error)
	Languages() []speech.LanguageOption
}

// Handler 语音服务的HTTP处理器
type Handler struct {
	speechSvc SpeechService
	chatSvc   *chatservice.Service
}

// New 创建语音处理器；chatSvc 可为空，此时不读取会话设置
func New(speechSvc SpeechService, chatSvc *chatservice.Service) *Handler {
	return &Handler{
		speechSvc: speechSvc,
		chatSvc:   chatSvc,
	}
}

// RegisterRoutes 注册语音相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/speech", func(speechRouter chi.Router) {
		speechRouter.Get("/languages", h.handleLanguages)

		// TTS 端点
		speechRouter.Post("/synthesize", h.handleSynthesize)
		speechRouter.Post("/synthesize/{sessionID}", h.handleSynthesizeWithSession)

		// 健康检查
		speechRouter.Get("/health", h.handleHealth)
	})
}

type synthesizeRequest struct {
	SessionID string `json:"sessionId"`
	Text      string `json:"text"`
	Language  string `json:"language"`
	Slow      *bool  `json:"slow"`
}

// handleLanguages 返回可选的合成语言
func (h *Handler) handleLanguages(w http.ResponseWriter, r *http.Request) {
	utils.RespondJSON(w, http.StatusOK, map[string]any{"languages": h.speechSvc.Languages()})
}

// handleSynthesize 处理文本转语音请求
func (h *Handler) handleSynthesize(w http.ResponseWriter, r *http.Request) {
	h.processSynthesize(w, r, "")
}

// handleSynthesizeWithSession 使用会话的语言与语速设置合成
func (h *Handler) handleSynthesizeWithSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	if sessionID == "" {
		utils.RespondError(w, http.StatusBadRequest, "sessionID is required")
		return
	}

	h.processSynthesize(w, r, sessionID)
}

func (h *Handler) processSynthesize(w http.ResponseWriter, r *http.Request, overrideSessionID string) {
	var payload synthesizeRequest
	if err := utils.DecodeJSON(r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if overrideSessionID != "" {
		payload.SessionID = overrideSessionID
	}

	if strings.TrimSpace(payload.Text) == "" {
		utils.RespondError(w, http.StatusBadRequest, "text is required")
		return
	}

	req := &speech.TTSRequest{
		SessionID: payload.SessionID,
		Text:      payload.Text,
		Language:  strings.TrimSpace(payload.Language),
	}
	if payload.Slow != nil {
		req.Slow = *payload.Slow
	}
	if req.SessionID == "" {
		req.SessionID = "default"
	}

	if err := h.applySessionSettings(r.Context(), req, payload.Slow == nil); err != nil {
		utils.RespondErrorCode(w, http.StatusNotFound, "session_not_found", err.Error())
		return
	}

	resp, err := h.speechSvc.SynthesizeSpeech(r.Context(), req)
	if err != nil {
		log.Printf("[speech] TTS error: %v", err)
		switch {
		case errors.Is(err, speech.ErrUnsupportedLanguage):
			utils.RespondErrorCode(w, http.StatusBadRequest, "unsupported_language", err.Error())
		case errors.Is(err, speechsvc.ErrEmptyText):
			utils.RespondError(w, http.StatusBadRequest, "text is required")
		default:
			utils.RespondErrorCode(w, http.StatusBadGateway, "synthesis_failed", "speech synthesis failed: "+err.Error())
		}
		return
	}

	if len(resp.AudioData) > 0 {
		format := resp.Format
		if format == "" {
			format = "octet-stream"
		}
		w.Header().Set("Content-Type", "audio/"+format)
		w.Header().Set("Content-Length", strconv.Itoa(len(resp.AudioData)))
		w.Header().Set("Content-Disposition", "attachment; filename=speech."+format)
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write(resp.AudioData); err != nil {
			log.Printf("failed to write audio response: %v", err)
		}
	} else {
		utils.RespondJSON(w, http.StatusOK, resp)
	}
}

// applySessionSettings 未指定语言或语速时沿用会话设置。
// 只有显式指定的会话不存在时才返回错误。
func (h *Handler) applySessionSettings(ctx context.Context, req *speech.TTSRequest, inheritSlow bool) error {
	if h.chatSvc == nil || req.SessionID == "default" {
		return nil
	}

	session, err := h.chatSvc.GetSession(ctx, req.SessionID)
	if err != nil {
		return err
	}

	if req.Language == "" {
		req.Language = session.Settings.Language
	}
	if inheritSlow {
		req.Slow = session.Settings.Slow
	}
	return nil
}

// handleHealth 健康检查端点
func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	utils.RespondJSON(w, http.StatusOK, map[string]any{
		"status":    "healthy",
		"service":   "speech",
		"languages": len(h.speechSvc.Languages()),
	})
}
