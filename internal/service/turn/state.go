package turn

import "github.com/zhouzirui/voicebot/backend/internal/model/chat"

// State is a step of the turn-taking loop.
type State string

const (
	StateIdle               State = "idle"
	StateAwaitingCompletion State = "awaiting_completion"
	StateAwaitingSynthesis  State = "awaiting_synthesis"
)

// Event is either a state transition or a message that was just recorded.
// Exactly one of State and Message is set.
type Event struct {
	State   State
	Message *chat.Message
}

// Observer receives turn events in order. It runs on the turn's goroutine.
type Observer func(Event)

// OnState adapts fn into an Observer that ignores recorded messages.
func OnState(fn func(State)) Observer {
	return func(ev Event) {
		if ev.Message == nil {
			fn(ev.State)
		}
	}
}

func (o Observer) notify(state State) {
	if o != nil {
		o(Event{State: state})
	}
}

func (o Observer) recorded(msg chat.Message) {
	if o != nil {
		o(Event{Message: &msg})
	}
}
