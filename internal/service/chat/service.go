package chat

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/zhouzirui/voicebot/backend/internal/model/chat"
	"github.com/zhouzirui/voicebot/backend/internal/model/speech"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrInvalidRole     = errors.New("message role must be user or assistant")
)

type sessionState struct {
	session  chat.Session
	messages []chat.Message
	notice   string
	// turn holds one token while a turn runs on the session.
	turn chan struct{}
}

// Service keeps every session's settings and transcript in process memory.
type Service struct {
	mu       sync.RWMutex
	defaults chat.Settings
	sessions map[string]*sessionState
}

// NewService bootstraps the in-memory transcript store. defaults seed new sessions.
func NewService(defaults chat.Settings) *Service {
	if defaults.Language == "" {
		defaults.Language = string(speech.English)
	}
	return &Service{
		defaults: defaults,
		sessions: make(map[string]*sessionState),
	}
}

// CreateSession provisions an empty session. Zero-valued fields of update fall back to the defaults.
func (s *Service) CreateSession(_ context.Context, update chat.SettingsUpdate) (chat.Session, error) {
	settings := update.Apply(s.defaults)
	if err := validateSettings(settings); err != nil {
		return chat.Session{}, err
	}

	session := chat.Session{
		ID:        uuid.NewString(),
		Settings:  settings,
		CreatedAt: time.Now().UTC(),
	}

	s.mu.Lock()
	s.sessions[session.ID] = &sessionState{
		session:  session,
		messages: make([]chat.Message, 0, 16),
		turn:     make(chan struct{}, 1),
	}
	s.mu.Unlock()

	return session, nil
}

// GetSession retrieves a session by identifier.
func (s *Service) GetSession(_ context.Context, sessionID string) (chat.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	state, ok := s.sessions[sessionID]
	if !ok {
		return chat.Session{}, ErrSessionNotFound
	}
	return state.session, nil
}

// UpdateSettings applies a partial settings change and returns the result.
func (s *Service) UpdateSettings(_ context.Context, sessionID string, update chat.SettingsUpdate) (chat.Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, ok := s.sessions[sessionID]
	if !ok {
		return chat.Settings{}, ErrSessionNotFound
	}

	settings := update.Apply(state.session.Settings)
	if err := validateSettings(settings); err != nil {
		return chat.Settings{}, err
	}
	state.session.Settings = settings
	return settings, nil
}

// AppendMessage adds a message at the end of the transcript and returns the stored copy.
func (s *Service) AppendMessage(_ context.Context, sessionID string, message chat.Message) (chat.Message, error) {
	if message.Role != chat.RoleUser && message.Role != chat.RoleAssistant {
		return chat.Message{}, ErrInvalidRole
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	state, ok := s.sessions[sessionID]
	if !ok {
		return chat.Message{}, ErrSessionNotFound
	}

	message.ID = uuid.NewString()
	if message.CreatedAt.IsZero() {
		message.CreatedAt = time.Now()
	}
	if message.Time == "" {
		message.Time = message.CreatedAt.Format(chat.TimeLayout)
	}

	state.messages = append(state.messages, message)
	return message, nil
}

// LoadTranscript returns a copy of the session's messages in insertion order.
func (s *Service) LoadTranscript(_ context.Context, sessionID string) ([]chat.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	state, ok := s.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}

	copied := make([]chat.Message, len(state.messages))
	copy(copied, state.messages)
	return copied, nil
}

// ClearTranscript resets the transcript to empty.
func (s *Service) ClearTranscript(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, ok := s.sessions[sessionID]
	if !ok {
		return ErrSessionNotFound
	}

	state.messages = make([]chat.Message, 0, 16)
	state.notice = ""
	return nil
}

// SetNotice stores a one-shot message for the next page render.
func (s *Service) SetNotice(_ context.Context, sessionID, notice string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, ok := s.sessions[sessionID]
	if !ok {
		return ErrSessionNotFound
	}
	state.notice = notice
	return nil
}

// TakeNotice returns and clears the pending notice.
func (s *Service) TakeNotice(_ context.Context, sessionID string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, ok := s.sessions[sessionID]
	if !ok {
		return ""
	}
	notice := state.notice
	state.notice = ""
	return notice
}

// LockTurn serializes turns on one session. The returned func releases the lock.
// A caller still waiting when ctx ends gets ctx.Err() and holds nothing.
func (s *Service) LockTurn(ctx context.Context, sessionID string) (func(), error) {
	s.mu.RLock()
	state, ok := s.sessions[sessionID]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrSessionNotFound
	}

	select {
	case state.turn <- struct{}{}:
		var once sync.Once
		return func() { once.Do(func() { <-state.turn }) }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func validateSettings(settings chat.Settings) error {
	if !speech.IsSupported(settings.Language) {
		return speech.ErrUnsupportedLanguage
	}
	return nil
}
