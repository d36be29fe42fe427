package chat

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/zhouzirui/atlas/backend/internal/model/chat"
	progressModel "github.com/zhouzirui/atlas/backend/internal/model/progress"
	"github.com/zhouzirui/atlas/backend/internal/model/tutor"
	progressService "github.com/zhouzirui/atlas/backend/internal/service/progress"
	"github.com/zhouzirui/atlas/backend/internal/store"
)

// FallbackReply is appended in place of the tutor reply when the model call fails.
const FallbackReply = "Sorry, I encountered an error. Please try again."

var (
	ErrTutorRequired   = errors.New("tutor id is required")
	ErrTutorNotFound   = errors.New("tutor not found")
	ErrSessionNotFound = errors.New("session not found")
	ErrEmptyMessage    = errors.New("message is empty")
	ErrBusy            = errors.New("a reply is already in progress for this session")
	errNoResponder     = errors.New("ai service unavailable")
)

// Responder generates tutor replies. *ai.Service satisfies it.
type Responder interface {
	GenerateReply(ctx context.Context, t tutor.Tutor, history []chat.Message, userMessage string) (string, error)
	StreamReply(ctx context.Context, t tutor.Tutor, history []chat.Message, userMessage string, onDelta func(string)) (string, error)
	StreamingEnabled() bool
}

// Turn is the outcome of one exchange.
type Turn struct {
	Reply     chat.Message              `json:"reply"`
	XPAwarded int                       `json:"xpAwarded"`
	Failed    bool                      `json:"failed"`
	Progress  progressModel.Progression `json:"progress"`
}

// Service encapsulates conversation state management.
type Service struct {
	repo      store.Repository
	tutors    tutor.Store
	progress  *progressService.Service
	responder Responder
	now       func() time.Time

	busyMu sync.Mutex
	busy   map[string]struct{}
}

// NewService wires the chat service. responder may be nil, in which case
// every exchange yields the fallback reply.
func NewService(repo store.Repository, tutors tutor.Store, progress *progressService.Service, responder Responder) *Service {
	return &Service{
		repo:      repo,
		tutors:    tutors,
		progress:  progress,
		responder: responder,
		now:       time.Now,
		busy:      make(map[string]struct{}),
	}
}

// CreateSession provisions an anonymous session bound to a tutor.
func (s *Service) CreateSession(ctx context.Context, tutorID string) (chat.Session, error) {
	if tutorID == "" {
		return chat.Session{}, ErrTutorRequired
	}
	if _, ok := s.tutors.FindByID(tutorID); !ok {
		return chat.Session{}, ErrTutorNotFound
	}

	session := chat.Session{
		ID:        uuid.NewString(),
		TutorID:   tutorID,
		CreatedAt: s.now().UTC(),
	}
	if err := s.repo.CreateSession(ctx, session); err != nil {
		return chat.Session{}, fmt.Errorf("create session: %w", err)
	}
	return session, nil
}

// GetSession retrieves a session by identifier.
func (s *Service) GetSession(ctx context.Context, sessionID string) (chat.Session, error) {
	session, err := s.repo.GetSession(ctx, sessionID)
	if errors.Is(err, store.ErrNotFound) {
		return chat.Session{}, ErrSessionNotFound
	}
	return session, err
}

// SessionTutor resolves a session together with its tutor profile.
func (s *Service) SessionTutor(ctx context.Context, sessionID string) (chat.Session, tutor.Tutor, error) {
	session, err := s.GetSession(ctx, sessionID)
	if err != nil {
		return chat.Session{}, tutor.Tutor{}, err
	}
	t, ok := s.tutors.FindByID(session.TutorID)
	if !ok {
		return chat.Session{}, tutor.Tutor{}, fmt.Errorf("tutor %s: %w", session.TutorID, ErrTutorNotFound)
	}
	return session, t, nil
}

// LoadTranscript returns the learner-visible messages of a session.
func (s *Service) LoadTranscript(ctx context.Context, sessionID string) ([]chat.Message, error) {
	messages, err := s.loadHistory(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return chat.Transcript(messages), nil
}

func (s *Service) loadHistory(ctx context.Context, sessionID string) ([]chat.Message, error) {
	messages, err := s.repo.LoadHistory(ctx, sessionID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrSessionNotFound
	}
	return messages, err
}

// Greet runs the opening turn. The greeting is stored as a hidden user
// message so the model keeps it in context while the transcript starts
// with the tutor's reply.
func (s *Service) Greet(ctx context.Context, sessionID string) (Turn, error) {
	_, t, err := s.SessionTutor(ctx, sessionID)
	if err != nil {
		return Turn{}, err
	}
	return s.exchange(ctx, sessionID, t.Greeting, true, nil)
}

// Send submits a learner message and waits for the full reply.
func (s *Service) Send(ctx context.Context, sessionID, text string) (Turn, error) {
	return s.exchange(ctx, sessionID, text, false, nil)
}

// Stream is Send with incremental reply deltas delivered to onDelta.
func (s *Service) Stream(ctx context.Context, sessionID, text string, onDelta func(string)) (Turn, error) {
	if onDelta == nil {
		onDelta = func(string) {}
	}
	return s.exchange(ctx, sessionID, text, false, onDelta)
}

func (s *Service) acquire(sessionID string) bool {
	s.busyMu.Lock()
	defer s.busyMu.Unlock()
	if _, ok := s.busy[sessionID]; ok {
		return false
	}
	s.busy[sessionID] = struct{}{}
	return true
}

func (s *Service) release(sessionID string) {
	s.busyMu.Lock()
	delete(s.busy, sessionID)
	s.busyMu.Unlock()
}

func (s *Service) exchange(ctx context.Context, sessionID, text string, initial bool, onDelta func(string)) (Turn, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Turn{}, ErrEmptyMessage
	}

	_, t, err := s.SessionTutor(ctx, sessionID)
	if err != nil {
		return Turn{}, err
	}

	if !s.acquire(sessionID) {
		return Turn{}, ErrBusy
	}
	defer s.release(sessionID)

	history, err := s.loadHistory(ctx, sessionID)
	if err != nil {
		return Turn{}, err
	}

	if _, err := s.appendMessage(ctx, chat.Message{SessionID: sessionID, Role: chat.RoleUser, Text: text, Hidden: initial}); err != nil {
		return Turn{}, err
	}
	if !initial {
		if _, err := s.progress.Touch(ctx, sessionID); err != nil {
			log.Printf("[chat] streak update failed session=%s: %v", sessionID, err)
		}
	}

	reply, genErr := s.generate(ctx, t, chat.ModelContext(history), text, onDelta)
	turn := Turn{}
	if genErr != nil {
		log.Printf("[chat] reply failed session=%s: %v", sessionID, genErr)
		reply = FallbackReply
		turn.Failed = true
		if onDelta != nil {
			onDelta(reply)
		}
	}

	msg, err := s.appendMessage(ctx, chat.Message{SessionID: sessionID, Role: chat.RoleModel, Text: reply, Failed: turn.Failed})
	if err != nil {
		return Turn{}, err
	}
	turn.Reply = msg

	if !turn.Failed {
		if xp, ok := progressModel.ExtractXP(reply); ok {
			if _, err := s.progress.Award(ctx, sessionID, xp); err != nil {
				log.Printf("[chat] xp award failed session=%s: %v", sessionID, err)
			} else {
				turn.XPAwarded = xp
			}
		}
	}

	p, err := s.progress.Get(ctx, sessionID)
	if err != nil {
		return Turn{}, err
	}
	turn.Progress = p
	return turn, nil
}

func (s *Service) generate(ctx context.Context, t tutor.Tutor, history []chat.Message, text string, onDelta func(string)) (string, error) {
	if s.responder == nil {
		return "", errNoResponder
	}
	if onDelta != nil && s.responder.StreamingEnabled() {
		return s.responder.StreamReply(ctx, t, history, text, onDelta)
	}
	reply, err := s.responder.GenerateReply(ctx, t, history, text)
	if err == nil && onDelta != nil {
		onDelta(reply)
	}
	return reply, err
}

func (s *Service) appendMessage(ctx context.Context, msg chat.Message) (chat.Message, error) {
	msg.ID = uuid.NewString()
	msg.CreatedAt = s.now().UTC()
	if err := s.repo.AppendMessage(ctx, msg); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return chat.Message{}, ErrSessionNotFound
		}
		return chat.Message{}, fmt.Errorf("save %s message: %w", msg.Role, err)
	}
	return msg, nil
}
