package stream

import (
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/zhouzirui/voicebot/backend/internal/model/chat"
	"github.com/zhouzirui/voicebot/backend/internal/service/turn"
)

type fakeTurnService struct {
	events []turn.Event
	result *turn.Result
	err    error
}

func (f *fakeTurnService) Submit(_ context.Context, _ string, _ string, observer turn.Observer) (*turn.Result, error) {
	for _, ev := range f.events {
		if observer != nil {
			observer(ev)
		}
	}
	return f.result, f.err
}

func stateEvent(s turn.State) turn.Event {
	return turn.Event{State: s}
}

func messageEvent(msg chat.Message) turn.Event {
	return turn.Event{Message: &msg}
}

// parseEvents reads "event:" / "data:" frames and checks that both name the same event.
func parseEvents(t *testing.T, body string) []StreamResponse {
	t.Helper()
	var events []StreamResponse
	for _, frame := range strings.Split(strings.TrimSpace(body), "\n\n") {
		lines := strings.Split(frame, "\n")
		if len(lines) != 2 || !strings.HasPrefix(lines[0], "event: ") || !strings.HasPrefix(lines[1], "data: ") {
			t.Fatalf("malformed frame %q", frame)
		}
		var ev StreamResponse
		if err := json.Unmarshal([]byte(strings.TrimPrefix(lines[1], "data: ")), &ev); err != nil {
			t.Fatalf("decode event %q: %v", lines[1], err)
		}
		if name := strings.TrimPrefix(lines[0], "event: "); name != ev.Event {
			t.Fatalf("event line %q does not match payload %q", name, ev.Event)
		}
		events = append(events, ev)
	}
	return events
}

func eventNames(events []StreamResponse) string {
	names := make([]string, 0, len(events))
	for _, ev := range events {
		names = append(names, ev.Event)
	}
	return strings.Join(names, ",")
}

func TestHandleStreamRequestSuccess(t *testing.T) {
	user := chat.Message{Role: chat.RoleUser, Content: "hi"}
	assistant := chat.Message{Role: chat.RoleAssistant, Content: "hello", Audio: "AAA=", AudioFormat: "mp3"}
	svc := &fakeTurnService{
		events: []turn.Event{
			messageEvent(user),
			stateEvent(turn.StateAwaitingCompletion),
			stateEvent(turn.StateAwaitingSynthesis),
			messageEvent(assistant),
			stateEvent(turn.StateIdle),
		},
		result: &turn.Result{UserMessage: user, AssistantMessage: &assistant},
	}
	resp := httptest.NewRecorder()

	if err := New(svc).HandleStreamRequest(context.Background(), resp, "s1", "hi"); err != nil {
		t.Fatalf("HandleStreamRequest err: %v", err)
	}

	if ct := resp.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("unexpected content type %q", ct)
	}

	events := parseEvents(t, resp.Body.String())
	if got, want := eventNames(events), "message,state,state,message,state,done"; got != want {
		t.Fatalf("events = %s, want %s", got, want)
	}
	if !strings.HasPrefix(resp.Body.String(), "event: message\n") {
		t.Fatalf("user message must be the first frame: %q", resp.Body.String())
	}
	if events[0].Message == nil || events[0].Message.Role != chat.RoleUser {
		t.Fatalf("unexpected first event %+v", events[0])
	}
	if events[1].State != string(turn.StateAwaitingCompletion) || events[4].State != string(turn.StateIdle) {
		t.Fatalf("unexpected states %+v", events)
	}
	if events[3].Message == nil || events[3].Message.Content != "hello" || events[3].Message.Audio != "AAA=" {
		t.Fatalf("unexpected assistant event %+v", events[3])
	}
	if !events[5].Finished {
		t.Fatal("done event must be finished")
	}
}

func TestHandleStreamRequestCredentialMissing(t *testing.T) {
	svc := &fakeTurnService{
		events: []turn.Event{stateEvent(turn.StateIdle)},
		err:    turn.ErrCredentialRequired,
	}
	resp := httptest.NewRecorder()

	if err := New(svc).HandleStreamRequest(context.Background(), resp, "s1", "hi"); err != nil {
		t.Fatalf("HandleStreamRequest err: %v", err)
	}

	events := parseEvents(t, resp.Body.String())
	if got, want := eventNames(events), "state,error,done"; got != want {
		t.Fatalf("events = %s, want %s", got, want)
	}
	if events[1].Code != "credential_required" || !strings.Contains(events[1].Error, "Groq API key") {
		t.Fatalf("unexpected error event %+v", events[1])
	}
}

func TestHandleStreamRequestCompletionFailure(t *testing.T) {
	user := chat.Message{Role: chat.RoleUser, Content: "hi"}
	svc := &fakeTurnService{
		events: []turn.Event{
			messageEvent(user),
			stateEvent(turn.StateAwaitingCompletion),
			stateEvent(turn.StateIdle),
		},
		result: &turn.Result{UserMessage: user},
		err:    &turn.Error{Kind: turn.KindCompletion, Err: errors.New("rate limited")},
	}
	resp := httptest.NewRecorder()

	if err := New(svc).HandleStreamRequest(context.Background(), resp, "s1", "hi"); err != nil {
		t.Fatalf("HandleStreamRequest err: %v", err)
	}

	events := parseEvents(t, resp.Body.String())
	if got, want := eventNames(events), "message,state,state,error,done"; got != want {
		t.Fatalf("events = %s, want %s", got, want)
	}
	if events[3].Code != "completion_failed" || !strings.Contains(events[3].Error, "rate limited") {
		t.Fatalf("unexpected error event %+v", events[3])
	}
}

func TestHandleStreamRequestSynthesisWarning(t *testing.T) {
	user := chat.Message{Role: chat.RoleUser, Content: "hi"}
	assistant := chat.Message{Role: chat.RoleAssistant, Content: "hello"}
	svc := &fakeTurnService{
		events: []turn.Event{messageEvent(user), messageEvent(assistant), stateEvent(turn.StateIdle)},
		result: &turn.Result{
			UserMessage:      user,
			AssistantMessage: &assistant,
			Err:              &turn.Error{Kind: turn.KindSynthesis, Err: errors.New("tts down")},
		},
	}
	resp := httptest.NewRecorder()

	if err := New(svc).HandleStreamRequest(context.Background(), resp, "s1", "hi"); err != nil {
		t.Fatalf("HandleStreamRequest err: %v", err)
	}

	events := parseEvents(t, resp.Body.String())
	warning := events[len(events)-2]
	if warning.Event != "error" || warning.Code != "synthesis_failed" || !strings.HasPrefix(warning.Error, "An error occurred:") {
		t.Fatalf("expected synthesis warning, got %+v", events)
	}
}
