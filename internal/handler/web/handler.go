package web

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"log"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/voicebot/backend/internal/model/chat"
	"github.com/zhouzirui/voicebot/backend/internal/model/speech"
	chatService "github.com/zhouzirui/voicebot/backend/internal/service/chat"
	"github.com/zhouzirui/voicebot/backend/internal/service/turn"
)

//go:embed templates/*.html static/*
var assets embed.FS

// SessionCookie 绑定浏览器与会话
const SessionCookie = "voicebot_session"

const groqKeysURL = "https://console.groq.com/keys"

// TurnService 执行一轮对话
type TurnService interface {
	Submit(ctx context.Context, sessionID, text string, observer turn.Observer) (*turn.Result, error)
}

// Handler 渲染聊天页面并处理表单提交
type Handler struct {
	chatSvc *chatService.Service
	turnSvc TurnService
	page    *template.Template
	static  http.Handler
}

// New 解析内嵌模板
func New(chatSvc *chatService.Service, turnSvc TurnService) (*Handler, error) {
	page, err := template.ParseFS(assets, "templates/index.html")
	if err != nil {
		return nil, fmt.Errorf("parse page template: %w", err)
	}

	staticFS, err := fs.Sub(assets, "static")
	if err != nil {
		return nil, fmt.Errorf("static assets: %w", err)
	}

	return &Handler{
		chatSvc: chatSvc,
		turnSvc: turnSvc,
		page:    page,
		static:  http.FileServer(http.FS(staticFS)),
	}, nil
}

// RegisterRoutes 注册页面与表单路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.handleIndex)
	r.Post("/turn", h.handleTurn)
	r.Post("/settings", h.handleSettings)
	r.Post("/clear", h.handleClear)
	r.Handle("/static/*", http.StripPrefix("/static/", h.static))
}

type languageOption struct {
	Code     string
	Name     string
	Selected bool
}

type messageView struct {
	Role     string
	IsUser   bool
	Content  string
	Time     string
	AudioSrc template.URL
}

type pageData struct {
	SessionID     string
	CredentialSet bool
	Slow          bool
	Languages     []languageOption
	Messages      []messageView
	Notice        string
	KeysURL       string
}

func (h *Handler) handleIndex(w http.ResponseWriter, r *http.Request) {
	session, err := h.ensureSession(w, r)
	if err != nil {
		log.Printf("[web] failed to resolve session: %v", err)
		http.Error(w, "failed to create session", http.StatusInternalServerError)
		return
	}

	messages, err := h.chatSvc.LoadTranscript(r.Context(), session.ID)
	if err != nil {
		log.Printf("[web] failed to load transcript: %v", err)
		http.Error(w, "failed to load transcript", http.StatusInternalServerError)
		return
	}

	data := pageData{
		SessionID:     session.ID,
		CredentialSet: session.Settings.CredentialSet(),
		Slow:          session.Settings.Slow,
		Languages:     languageOptions(session.Settings.Language),
		Messages:      messageViews(messages),
		Notice:        h.chatSvc.TakeNotice(r.Context(), session.ID),
		KeysURL:       groqKeysURL,
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := h.page.Execute(w, data); err != nil {
		log.Printf("[web] render failed: %v", err)
	}
}

func (h *Handler) handleTurn(w http.ResponseWriter, r *http.Request) {
	session, err := h.ensureSession(w, r)
	if err != nil {
		http.Error(w, "failed to create session", http.StatusInternalServerError)
		return
	}

	result, err := h.turnSvc.Submit(r.Context(), session.ID, r.FormValue("message"), nil)
	switch {
	case err != nil:
		h.setNotice(r.Context(), session.ID, turn.UserMessage(err))
	case result.Err != nil:
		h.setNotice(r.Context(), session.ID, turn.UserMessage(result.Err))
	}

	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// handleSettings 更新设置。密码框留空时保留已保存的凭证。
func (h *Handler) handleSettings(w http.ResponseWriter, r *http.Request) {
	session, err := h.ensureSession(w, r)
	if err != nil {
		http.Error(w, "failed to create session", http.StatusInternalServerError)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}

	var update chat.SettingsUpdate
	if credential := strings.TrimSpace(r.PostFormValue("credential")); credential != "" {
		update.Credential = &credential
	}
	if r.PostForm.Has("language") {
		language := r.PostFormValue("language")
		update.Language = &language
	}
	slow := r.PostFormValue("slow") != ""
	update.Slow = &slow

	if _, err := h.chatSvc.UpdateSettings(r.Context(), session.ID, update); err != nil {
		if errors.Is(err, speech.ErrUnsupportedLanguage) {
			h.setNotice(r.Context(), session.ID, "Unsupported language: "+r.PostFormValue("language"))
		} else {
			h.setNotice(r.Context(), session.ID, turn.UserMessage(err))
		}
	}

	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (h *Handler) handleClear(w http.ResponseWriter, r *http.Request) {
	session, err := h.ensureSession(w, r)
	if err != nil {
		http.Error(w, "failed to create session", http.StatusInternalServerError)
		return
	}

	if err := h.chatSvc.ClearTranscript(r.Context(), session.ID); err != nil {
		log.Printf("[web] clear failed: %v", err)
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// ensureSession 按 cookie 查找会话，不存在时新建并写回 cookie
func (h *Handler) ensureSession(w http.ResponseWriter, r *http.Request) (chat.Session, error) {
	if cookie, err := r.Cookie(SessionCookie); err == nil && cookie.Value != "" {
		session, err := h.chatSvc.GetSession(r.Context(), cookie.Value)
		if err == nil {
			return session, nil
		}
		if !errors.Is(err, chatService.ErrSessionNotFound) {
			return chat.Session{}, err
		}
	}

	session, err := h.chatSvc.CreateSession(r.Context(), chat.SettingsUpdate{})
	if err != nil {
		return chat.Session{}, err
	}

	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    session.ID,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	log.Printf("[web] created session %s", session.ID)
	return session, nil
}

func (h *Handler) setNotice(ctx context.Context, sessionID, notice string) {
	if err := h.chatSvc.SetNotice(ctx, sessionID, notice); err != nil {
		log.Printf("[web] failed to store notice: %v", err)
	}
}

func languageOptions(selected string) []languageOption {
	all := speech.Languages()
	options := make([]languageOption, 0, len(all))
	for _, opt := range all {
		options = append(options, languageOption{
			Code:     string(opt.Code),
			Name:     opt.Name,
			Selected: string(opt.Code) == selected,
		})
	}
	return options
}

func messageViews(messages []chat.Message) []messageView {
	views := make([]messageView, 0, len(messages))
	for _, msg := range messages {
		view := messageView{
			Role:    string(msg.Role),
			IsUser:  msg.Role == chat.RoleUser,
			Content: msg.Content,
			Time:    msg.Time,
		}
		if msg.Role == chat.RoleAssistant && msg.HasAudio() {
			view.AudioSrc = audioDataURL(msg)
		}
		views = append(views, view)
	}
	return views
}

// audioDataURL 音频为服务端生成的 base64，可直接作为可信 URL 输出
func audioDataURL(msg chat.Message) template.URL {
	format := msg.AudioFormat
	if format == "" {
		format = "mp3"
	}
	return template.URL("data:audio/" + format + ";base64," + msg.Audio)
}
