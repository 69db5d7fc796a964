package turn

import (
	"errors"
	"fmt"

	"github.com/zhouzirui/voicebot/backend/internal/service/ai"
)

var (
	ErrEmptyInput = errors.New("message is empty")
	// ErrCredentialRequired aliases the completion sentinel so callers need one import.
	ErrCredentialRequired = ai.ErrCredentialRequired
)

// Kind classifies a failed turn for display.
type Kind string

const (
	KindCompletion Kind = "completion"
	KindSynthesis  Kind = "synthesis"
	KindUnexpected Kind = "unexpected"
)

// Error is a recoverable turn failure shown inline to the user.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// UserMessage renders err the way the page shows it.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, ErrCredentialRequired) {
		return "Please enter your Groq API key in the settings."
	}
	if errors.Is(err, ErrEmptyInput) {
		return "Please type a message first."
	}
	if errors.Is(err, ai.ErrEmptyCompletion) {
		return "No response from the completion API."
	}

	var turnErr *Error
	if errors.As(err, &turnErr) && turnErr.Kind == KindCompletion {
		return fmt.Sprintf("Error calling the completion API: %v", turnErr.Err)
	}
	return fmt.Sprintf("An error occurred: %v", err)
}
