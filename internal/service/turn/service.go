package turn

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/zhouzirui/voicebot/backend/internal/model/chat"
	"github.com/zhouzirui/voicebot/backend/internal/model/speech"
)

// Transcript is the session store used by a turn.
type Transcript interface {
	GetSession(ctx context.Context, sessionID string) (chat.Session, error)
	AppendMessage(ctx context.Context, sessionID string, message chat.Message) (chat.Message, error)
	LoadTranscript(ctx context.Context, sessionID string) ([]chat.Message, error)
	LockTurn(ctx context.Context, sessionID string) (func(), error)
}

// Completer returns the assistant reply for a transcript.
type Completer interface {
	Complete(ctx context.Context, credential string, transcript []chat.Message) (string, error)
}

// Synthesizer turns the reply into audio.
type Synthesizer interface {
	SynthesizeSpeech(ctx context.Context, req *speech.TTSRequest) (*speech.TTSResponse, error)
}

// Result reports the messages a turn appended. Err carries a synthesis failure
// that did not stop the reply from being recorded.
type Result struct {
	UserMessage      chat.Message  `json:"userMessage"`
	AssistantMessage *chat.Message `json:"assistantMessage,omitempty"`
	Err              error         `json:"-"`
}

// Service runs one user turn end to end: completion, then synthesis.
type Service struct {
	transcript Transcript
	completer  Completer
	speech     Synthesizer
	now        func() time.Time
}

// NewService wires the turn loop. A nil synth disables audio.
func NewService(transcript Transcript, completer Completer, synth Synthesizer) *Service {
	return &Service{
		transcript: transcript,
		completer:  completer,
		speech:     synth,
		now:        time.Now,
	}
}

// Submit runs a turn. Turns on one session never overlap. The observer sees
// the user message as soon as it is recorded, then the state transitions, then
// the reply, and finally StateIdle.
//
// A missing credential or empty input returns before anything is recorded. A
// completion failure leaves only the user message behind. A synthesis failure
// still records the reply, without audio, and is reported through Result.Err.
func (s *Service) Submit(ctx context.Context, sessionID, text string, observer Observer) (*Result, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyInput
	}

	unlock, err := s.transcript.LockTurn(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	defer unlock()
	defer observer.notify(StateIdle)

	session, err := s.transcript.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	settings := session.Settings
	if !settings.CredentialSet() {
		return nil, ErrCredentialRequired
	}

	userMsg, err := s.transcript.AppendMessage(ctx, sessionID, s.stamp(chat.Message{Role: chat.RoleUser, Content: text}))
	if err != nil {
		return nil, &Error{Kind: KindUnexpected, Err: err}
	}
	result := &Result{UserMessage: userMsg}
	observer.recorded(userMsg)

	history, err := s.transcript.LoadTranscript(ctx, sessionID)
	if err != nil {
		return result, &Error{Kind: KindUnexpected, Err: err}
	}

	observer.notify(StateAwaitingCompletion)
	reply, err := s.completer.Complete(ctx, settings.Credential, history)
	if err != nil {
		log.Printf("[turn] completion failed for session=%s: %v", sessionID, err)
		return result, &Error{Kind: KindCompletion, Err: err}
	}

	assistant := s.stamp(chat.Message{Role: chat.RoleAssistant, Content: reply})

	if s.speech != nil {
		observer.notify(StateAwaitingSynthesis)
		audio, synthErr := s.speech.SynthesizeSpeech(ctx, &speech.TTSRequest{
			SessionID: sessionID,
			Text:      reply,
			Language:  settings.Language,
			Slow:      settings.Slow,
		})
		switch {
		case synthErr != nil:
			log.Printf("[turn] synthesis failed for session=%s: %v", sessionID, synthErr)
			result.Err = &Error{Kind: KindSynthesis, Err: synthErr}
		case audio == nil || len(audio.AudioData) == 0:
			result.Err = &Error{Kind: KindSynthesis, Err: errors.New("synthesis returned no audio")}
		default:
			assistant.Audio = base64.StdEncoding.EncodeToString(audio.AudioData)
			assistant.AudioFormat = audio.Format
		}
	}

	stored, err := s.transcript.AppendMessage(ctx, sessionID, assistant)
	if err != nil {
		return result, &Error{Kind: KindUnexpected, Err: fmt.Errorf("failed to record reply: %w", err)}
	}
	result.AssistantMessage = &stored
	observer.recorded(stored)

	log.Printf("[turn] session=%s reply=%d chars audio=%t", sessionID, len(reply), stored.Audio != "")
	return result, nil
}

func (s *Service) stamp(msg chat.Message) chat.Message {
	now := s.now()
	msg.CreatedAt = now
	msg.Time = now.Format(chat.TimeLayout)
	return msg
}
