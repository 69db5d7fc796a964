package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/zhouzirui/voicebot/backend/internal/config"
	"github.com/zhouzirui/voicebot/backend/internal/handler"
	speechHandler "github.com/zhouzirui/voicebot/backend/internal/handler/speech"
	chatModel "github.com/zhouzirui/voicebot/backend/internal/model/chat"
	"github.com/zhouzirui/voicebot/backend/internal/service/ai"
	"github.com/zhouzirui/voicebot/backend/internal/service/chat"
	"github.com/zhouzirui/voicebot/backend/internal/service/speech"
	"github.com/zhouzirui/voicebot/backend/internal/service/turn"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Printf("warning: failed to load .env file: %v", err)
		log.Println("continuing with system environment variables only")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	chatService := chat.NewService(chatModel.Settings{
		Credential: cfg.Completion.DefaultCredential,
		Language:   cfg.Speech.DefaultLanguage,
		Slow:       cfg.Speech.DefaultSlow,
	})
	if cfg.Completion.DefaultCredential != "" {
		log.Println("GROQ_API_KEY found, new sessions start with it")
	}

	aiService, err := ai.NewService(cfg.Completion)
	if err != nil {
		log.Fatalf("failed to initialize completion service: %v", err)
	}
	log.Printf("completion provider %s, model %s", aiService.Provider(), cfg.Completion.Model)

	// 接口变量保持 nil，避免把空指针包装进接口
	var synth turn.Synthesizer
	var speechAPI speechHandler.SpeechService
	if cfg.Speech.Enabled {
		speechService := speech.NewService(cfg.Speech.Model(), nil)
		synth = speechService
		speechAPI = speechService
		log.Println("Speech service initialized successfully")
	} else {
		log.Println("语音合成已关闭，回复将只包含文本")
	}

	turnService := turn.NewService(chatService, aiService, synth)

	router, err := handler.NewRouter(chatService, turnService, speechAPI)
	if err != nil {
		log.Fatalf("failed to build router: %v", err)
	}

	startServer(ctx, cfg.Server, router)
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler) {
	addr := serverCfg.Addr
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Printf("Voice bot listening on %s", addr)
	if err := runServer(ctx, srv); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
