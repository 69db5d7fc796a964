package handler

import (
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/zhouzirui/voicebot/backend/internal/handler/chat"
	"github.com/zhouzirui/voicebot/backend/internal/handler/speech"
	"github.com/zhouzirui/voicebot/backend/internal/handler/stream"
	"github.com/zhouzirui/voicebot/backend/internal/handler/web"
	middlewarePkg "github.com/zhouzirui/voicebot/backend/internal/middleware"
	chatService "github.com/zhouzirui/voicebot/backend/internal/service/chat"
	"github.com/zhouzirui/voicebot/backend/internal/service/turn"
	"github.com/zhouzirui/voicebot/backend/pkg/utils"
)

// NewRouter wires HTTP routes to core services. speechSvc may be nil when
// synthesis is disabled.
func NewRouter(chatSvc *chatService.Service, turnSvc *turn.Service, speechSvc speech.SpeechService) (http.Handler, error) {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	webHandler, err := web.New(chatSvc, turnSvc)
	if err != nil {
		return nil, err
	}
	webHandler.RegisterRoutes(r)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		utils.RespondJSON(w, http.StatusOK, map[string]any{
			"status": "ok",
			"speech": speechSvc != nil,
		})
	})

	chatHandler := chat.New(chatSvc, turnSvc)
	wsHandler := chat.NewWebSocketHandler(chatSvc, turnSvc)
	streamHandler := stream.New(turnSvc)

	r.Route("/api", func(api chi.Router) {
		api.Use(middlewarePkg.CORS)

		chatHandler.RegisterRoutes(api)
		wsHandler.RegisterWebSocketRoutes(api)

		api.Get("/stream/{sessionID}", func(w http.ResponseWriter, r *http.Request) {
			sessionID := chi.URLParam(r, "sessionID")
			userMessage := r.URL.Query().Get("message")

			if userMessage == "" {
				utils.RespondError(w, http.StatusBadRequest, "message query parameter is required")
				return
			}

			if err := streamHandler.HandleStreamRequest(r.Context(), w, sessionID, userMessage); err != nil {
				log.Printf("[stream] error handling request: %v", err)
				utils.RespondError(w, http.StatusInternalServerError, "streaming failed")
			}
		})

		if speechSvc != nil {
			speech.New(speechSvc, chatSvc).RegisterRoutes(api)
		} else {
			api.Get("/speech/health", func(w http.ResponseWriter, _ *http.Request) {
				utils.RespondError(w, http.StatusServiceUnavailable, "speech synthesis disabled")
			})
		}
	})

	return r, nil
}
