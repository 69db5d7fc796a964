package chat

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	chatmodel "github.com/zhouzirui/voicebot/backend/internal/model/chat"
	chatservice "github.com/zhouzirui/voicebot/backend/internal/service/chat"
	"github.com/zhouzirui/voicebot/backend/internal/service/turn"
)

type wsEvent struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

func readEvent(t *testing.T, conn *websocket.Conn) wsEvent {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var ev wsEvent
	if err := conn.ReadJSON(&ev); err != nil {
		t.Fatalf("ReadJSON err: %v", err)
	}
	return ev
}

func TestWebSocketTurnEmitsStatesInOrder(t *testing.T) {
	r, _ := setupRouter(&stubCompleter{reply: "pong"}, &stubSynth{})
	srv := httptest.NewServer(r)
	defer srv.Close()

	view := createSession(t, r, map[string]string{"credential": "k"})

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/" + view.ID
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial err: %v", err)
	}
	defer conn.Close()

	if ev := readEvent(t, conn); ev.Type != "connected" {
		t.Fatalf("expected connected, got %s", ev.Type)
	}

	if err := conn.WriteJSON(map[string]any{"type": "turn", "data": map[string]string{"text": "ping"}}); err != nil {
		t.Fatalf("WriteJSON err: %v", err)
	}

	var types []string
	var states []string
	for len(types) < 5 {
		ev := readEvent(t, conn)
		types = append(types, ev.Type)
		if len(types) == 1 && !strings.Contains(string(ev.Data), `"role":"user"`) {
			t.Fatalf("first event must echo the user message, got %s", ev.Data)
		}
		if ev.Type == "state" {
			var payload struct {
				State string `json:"state"`
			}
			_ = json.Unmarshal(ev.Data, &payload)
			states = append(states, payload.State)
		}
	}

	wantStates := []string{"awaiting_completion", "awaiting_synthesis", "idle"}
	if strings.Join(states, ",") != strings.Join(wantStates, ",") {
		t.Fatalf("states = %v, want %v", states, wantStates)
	}
	wantTypes := "message,state,state,message,state"
	if strings.Join(types, ",") != wantTypes {
		t.Fatalf("event order = %v, want %s", types, wantTypes)
	}
}

func TestWebSocketTurnWithoutCredential(t *testing.T) {
	r, _ := setupRouter(&stubCompleter{reply: "x"}, &stubSynth{})
	srv := httptest.NewServer(r)
	defer srv.Close()

	view := createSession(t, r, nil)
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/" + view.ID
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial err: %v", err)
	}
	defer conn.Close()
	readEvent(t, conn)

	if err := conn.WriteJSON(map[string]any{"type": "turn", "data": map[string]string{"text": "hi"}}); err != nil {
		t.Fatalf("WriteJSON err: %v", err)
	}

	for {
		ev := readEvent(t, conn)
		if ev.Type == "state" {
			continue
		}
		if ev.Type != "error" || !strings.Contains(string(ev.Data), "credential_required") {
			t.Fatalf("expected credential error, got %s %s", ev.Type, ev.Data)
		}
		return
	}
}

func TestWebSocketUnknownSession(t *testing.T) {
	r, _ := setupRouter(&stubCompleter{}, &stubSynth{})
	srv := httptest.NewServer(r)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/missing"
	if _, _, err := websocket.DefaultDialer.Dial(url, nil); err == nil {
		t.Fatal("expected handshake failure for unknown session")
	}
}

func TestWebSocketSurvivesTurnLongerThanReadTimeout(t *testing.T) {
	chatSvc := chatservice.NewService(chatmodel.Settings{})
	turnSvc := turn.NewService(chatSvc, &stubCompleter{reply: "slow", delay: 250 * time.Millisecond}, &stubSynth{})
	wsHandler := NewWebSocketHandler(chatSvc, turnSvc)
	wsHandler.readTimeout = 100 * time.Millisecond

	r := chi.NewRouter()
	New(chatSvc, turnSvc).RegisterRoutes(r)
	wsHandler.RegisterWebSocketRoutes(r)
	srv := httptest.NewServer(r)
	defer srv.Close()

	view := createSession(t, r, map[string]string{"credential": "k"})
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/" + view.ID
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial err: %v", err)
	}
	defer conn.Close()
	readEvent(t, conn)

	if err := conn.WriteJSON(map[string]any{"type": "turn", "data": map[string]string{"text": "hi"}}); err != nil {
		t.Fatalf("WriteJSON err: %v", err)
	}
	for {
		ev := readEvent(t, conn)
		if ev.Type == "state" && strings.Contains(string(ev.Data), "idle") {
			break
		}
	}

	if err := conn.WriteJSON(map[string]any{"type": "ping"}); err != nil {
		t.Fatalf("WriteJSON err: %v", err)
	}
	if ev := readEvent(t, conn); ev.Type != "pong" {
		t.Fatalf("connection must stay usable after a long turn, got %s", ev.Type)
	}
}
