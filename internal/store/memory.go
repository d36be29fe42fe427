package store

import (
	"context"
	"sync"

	"github.com/zhouzirui/atlas/backend/internal/model/chat"
	"github.com/zhouzirui/atlas/backend/internal/model/progress"
)

// Memory keeps everything in process. Data is lost on restart.
type Memory struct {
	mu       sync.RWMutex
	sessions map[string]chat.Session
	messages map[string][]chat.Message
	progress map[string]progress.Progression
}

// NewMemory returns an empty in-memory repository.
func NewMemory() *Memory {
	return &Memory{
		sessions: make(map[string]chat.Session),
		messages: make(map[string][]chat.Message),
		progress: make(map[string]progress.Progression),
	}
}

func (m *Memory) CreateSession(_ context.Context, session chat.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[session.ID] = session
	m.messages[session.ID] = make([]chat.Message, 0, 16)
	m.progress[session.ID] = progress.New(session.ID)
	return nil
}

func (m *Memory) GetSession(_ context.Context, sessionID string) (chat.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	session, ok := m.sessions[sessionID]
	if !ok {
		return chat.Session{}, ErrNotFound
	}
	return session, nil
}

func (m *Memory) AppendMessage(_ context.Context, msg chat.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[msg.SessionID]; !ok {
		return ErrNotFound
	}
	m.messages[msg.SessionID] = append(m.messages[msg.SessionID], msg)
	return nil
}

func (m *Memory) LoadHistory(_ context.Context, sessionID string) ([]chat.Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	messages, ok := m.messages[sessionID]
	if !ok {
		return nil, ErrNotFound
	}
	copied := make([]chat.Message, len(messages))
	copy(copied, messages)
	return copied, nil
}

func (m *Memory) GetProgress(_ context.Context, sessionID string) (progress.Progression, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.progress[sessionID]
	if !ok {
		return progress.Progression{}, ErrNotFound
	}
	return p, nil
}

func (m *Memory) SaveProgress(_ context.Context, p progress.Progression) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[p.SessionID]; !ok {
		return ErrNotFound
	}
	m.progress[p.SessionID] = p
	return nil
}

func (m *Memory) Ping(context.Context) error { return nil }

func (m *Memory) Close() error { return nil }
