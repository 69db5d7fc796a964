package chat

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/voicebot/backend/internal/model/chat"
	"github.com/zhouzirui/voicebot/backend/internal/model/speech"
	chatService "github.com/zhouzirui/voicebot/backend/internal/service/chat"
	"github.com/zhouzirui/voicebot/backend/internal/service/turn"
	"github.com/zhouzirui/voicebot/backend/pkg/utils"
)

// TurnService 抽象单轮对话流程，便于测试替换
type TurnService interface {
	Submit(ctx context.Context, sessionID, text string, observer turn.Observer) (*turn.Result, error)
}

// Handler 聊天服务的HTTP处理器
type Handler struct {
	chatSvc *chatService.Service
	turnSvc TurnService
}

// New 创建聊天处理器
func New(chatSvc *chatService.Service, turnSvc TurnService) *Handler {
	return &Handler{
		chatSvc: chatSvc,
		turnSvc: turnSvc,
	}
}

// SettingsView 对外展示的设置，不回传凭证
type SettingsView struct {
	Language      string `json:"language"`
	Slow          bool   `json:"slow"`
	CredentialSet bool   `json:"credentialSet"`
}

// SessionView 会话摘要
type SessionView struct {
	ID        string       `json:"id"`
	Settings  SettingsView `json:"settings"`
	CreatedAt time.Time    `json:"createdAt"`
}

// NewSettingsView 隐去凭证
func NewSettingsView(s chat.Settings) SettingsView {
	return SettingsView{Language: s.Language, Slow: s.Slow, CredentialSet: s.CredentialSet()}
}

func newSessionView(s chat.Session) SessionView {
	return SessionView{ID: s.ID, Settings: NewSettingsView(s.Settings), CreatedAt: s.CreatedAt}
}

// RegisterRoutes 注册聊天相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/session", h.handleCreateSession)
	r.Route("/session/{sessionID}", func(sr chi.Router) {
		sr.Get("/", h.handleGetSession)
		sr.Put("/settings", h.handleUpdateSettings)
		sr.Get("/messages", h.handleListMessages)
		sr.Delete("/messages", h.handleClearMessages)
		sr.Post("/turn", h.handleTurn)
	})
}

// handleCreateSession 创建会话，请求体可选
func (h *Handler) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var payload chat.SettingsUpdate
	if r.ContentLength != 0 {
		if err := utils.DecodeJSON(r, &payload); err != nil {
			utils.RespondError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	session, err := h.chatSvc.CreateSession(r.Context(), payload)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	utils.RespondJSON(w, http.StatusCreated, newSessionView(session))
}

// handleGetSession 查询会话
func (h *Handler) handleGetSession(w http.ResponseWriter, r *http.Request) {
	session, err := h.chatSvc.GetSession(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, newSessionView(session))
}

// handleUpdateSettings 更新凭证与语音设置
func (h *Handler) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	var payload chat.SettingsUpdate
	if err := utils.DecodeJSON(r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	settings, err := h.chatSvc.UpdateSettings(r.Context(), chi.URLParam(r, "sessionID"), payload)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, NewSettingsView(settings))
}

// handleListMessages 返回完整对话记录
func (h *Handler) handleListMessages(w http.ResponseWriter, r *http.Request) {
	messages, err := h.chatSvc.LoadTranscript(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, map[string]any{"messages": messages})
}

// handleClearMessages 清空对话记录
func (h *Handler) handleClearMessages(w http.ResponseWriter, r *http.Request) {
	if err := h.chatSvc.ClearTranscript(r.Context(), chi.URLParam(r, "sessionID")); err != nil {
		respondServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleTurn 执行一轮对话：补全、合成、记录
func (h *Handler) handleTurn(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Text string `json:"text"`
	}
	if err := utils.DecodeJSON(r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := h.turnSvc.Submit(r.Context(), chi.URLParam(r, "sessionID"), payload.Text, nil)
	if err != nil {
		RespondTurnError(w, result, err)
		return
	}

	body := map[string]any{
		"userMessage":      result.UserMessage,
		"assistantMessage": result.AssistantMessage,
	}
	if result.Err != nil {
		body["warning"] = turn.UserMessage(result.Err)
	}
	utils.RespondJSON(w, http.StatusOK, body)
}

// RespondTurnError 将一轮对话的错误映射为HTTP响应
func RespondTurnError(w http.ResponseWriter, result *turn.Result, err error) {
	status, code := TurnErrorStatus(err)
	body := map[string]any{
		"error": turn.UserMessage(err),
		"code":  code,
	}
	if result != nil {
		body["userMessage"] = result.UserMessage
	}
	utils.RespondJSON(w, status, body)
}

// TurnErrorStatus 返回错误对应的状态码与错误码
func TurnErrorStatus(err error) (int, string) {
	var turnErr *turn.Error
	switch {
	case errors.Is(err, turn.ErrEmptyInput):
		return http.StatusBadRequest, "empty_input"
	case errors.Is(err, turn.ErrCredentialRequired):
		return http.StatusBadRequest, "credential_required"
	case errors.Is(err, chatService.ErrSessionNotFound):
		return http.StatusNotFound, "session_not_found"
	case errors.As(err, &turnErr) && turnErr.Kind == turn.KindCompletion:
		return http.StatusBadGateway, "completion_failed"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

func respondServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, chatService.ErrSessionNotFound):
		utils.RespondErrorCode(w, http.StatusNotFound, "session_not_found", err.Error())
	case errors.Is(err, speech.ErrUnsupportedLanguage):
		utils.RespondErrorCode(w, http.StatusBadRequest, "unsupported_language", err.Error())
	default:
		utils.RespondErrorCode(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}
