package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/zhouzirui/voicebot/backend/internal/model/chat"
	speechmodel "github.com/zhouzirui/voicebot/backend/internal/model/speech"
	chatService "github.com/zhouzirui/voicebot/backend/internal/service/chat"
	"github.com/zhouzirui/voicebot/backend/internal/service/turn"
)

type echoCompleter struct{}

func (echoCompleter) Complete(_ context.Context, _ string, transcript []chat.Message) (string, error) {
	return "echo: " + transcript[len(transcript)-1].Content, nil
}

type fakeSpeech struct{}

func (fakeSpeech) SynthesizeSpeech(_ context.Context, req *speechmodel.TTSRequest) (*speechmodel.TTSResponse, error) {
	return &speechmodel.TTSResponse{AudioData: []byte(req.Text), Format: "mp3"}, nil
}

func (fakeSpeech) Languages() []speechmodel.LanguageOption {
	return speechmodel.Languages()
}

func newTestRouter(t *testing.T, withSpeech bool) http.Handler {
	t.Helper()
	chatSvc := chatService.NewService(chat.Settings{Credential: "k"})

	var router http.Handler
	var err error
	if withSpeech {
		router, err = NewRouter(chatSvc, turn.NewService(chatSvc, echoCompleter{}, fakeSpeech{}), fakeSpeech{})
	} else {
		router, err = NewRouter(chatSvc, turn.NewService(chatSvc, echoCompleter{}, nil), nil)
	}
	if err != nil {
		t.Fatalf("NewRouter err: %v", err)
	}
	return router
}

func serve(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	return rr
}

func TestRouterServesPageAndHealth(t *testing.T) {
	r := newTestRouter(t, true)

	if rr := serve(r, http.MethodGet, "/", ""); rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), "Voice Bot") {
		t.Fatalf("unexpected page response %d", rr.Code)
	}
	if rr := serve(r, http.MethodGet, "/healthz", ""); rr.Code != http.StatusOK {
		t.Fatalf("unexpected health status %d", rr.Code)
	}
	if rr := serve(r, http.MethodGet, "/api/speech/health", ""); rr.Code != http.StatusOK {
		t.Fatalf("unexpected speech health status %d", rr.Code)
	}
}

func TestRouterSpeechDisabled(t *testing.T) {
	r := newTestRouter(t, false)

	if rr := serve(r, http.MethodGet, "/api/speech/health", ""); rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rr.Code)
	}
}

func TestRouterStreamRequiresMessage(t *testing.T) {
	r := newTestRouter(t, true)

	if rr := serve(r, http.MethodGet, "/api/stream/abc", ""); rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

func TestRouterStreamRunsTurn(t *testing.T) {
	r := newTestRouter(t, true)

	created := serve(r, http.MethodPost, "/api/session", "")
	if created.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", created.Code)
	}
	id := created.Body.String()
	id = id[strings.Index(id, `"id":"`)+6:]
	id = id[:strings.Index(id, `"`)]

	rr := serve(r, http.MethodGet, "/api/stream/"+id+"?message=hello", "")
	body := rr.Body.String()
	if !strings.Contains(body, "echo: hello") || !strings.Contains(body, `"event":"done"`) {
		t.Fatalf("unexpected stream body %s", body)
	}
}

func TestRouterCORSPreflight(t *testing.T) {
	r := newTestRouter(t, true)

	rr := serve(r, http.MethodOptions, "/api/session", "")
	if rr.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Fatal("missing CORS header on /api")
	}
}
