// Package practice generates structured exercises for a session and grades
// the learner's answers.
package practice

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/zhouzirui/atlas/backend/internal/model/chat"
	"github.com/zhouzirui/atlas/backend/internal/model/exercise"
	"github.com/zhouzirui/atlas/backend/internal/model/progress"
	"github.com/zhouzirui/atlas/backend/internal/model/tutor"
	"github.com/zhouzirui/atlas/backend/internal/service/ai"
)

var (
	ErrBusy       = errors.New("an exercise is already being generated")
	ErrNoExercise = errors.New("no active exercise")
	ErrNoAnswer   = errors.New("answer is empty")
)

// SessionResolver looks up the tutor bound to a session.
type SessionResolver interface {
	SessionTutor(ctx context.Context, sessionID string) (chat.Session, tutor.Tutor, error)
}

// Awarder credits XP to a session.
type Awarder interface {
	Award(ctx context.Context, sessionID string, n int) (progress.Progression, error)
}

// State is what a client sees for a session: the question without its
// answer and the feedback once graded.
type State struct {
	Exercise *exercise.View     `json:"exercise,omitempty"`
	Feedback *exercise.Feedback `json:"feedback,omitempty"`
	Loading  bool               `json:"loading"`
}

type slot struct {
	loading  bool
	checking bool
	current  *exercise.Exercise
	feedback *exercise.Feedback
}

// Service keeps exercises in memory only; they are lost on restart.
type Service struct {
	sessions  SessionResolver
	generator ai.ExerciseGenerator
	awarder   Awarder

	mu    sync.Mutex
	slots map[string]*slot
}

// NewService wires the practice service.
func NewService(sessions SessionResolver, generator ai.ExerciseGenerator, awarder Awarder) *Service {
	return &Service{
		sessions:  sessions,
		generator: generator,
		awarder:   awarder,
		slots:     make(map[string]*slot),
	}
}

func (s *Service) slotLocked(sessionID string) *slot {
	sl, ok := s.slots[sessionID]
	if !ok {
		sl = &slot{}
		s.slots[sessionID] = sl
	}
	return sl
}

// Generate replaces the session's exercise with a freshly generated one.
func (s *Service) Generate(ctx context.Context, sessionID string) (exercise.View, error) {
	_, t, err := s.sessions.SessionTutor(ctx, sessionID)
	if err != nil {
		return exercise.View{}, err
	}

	s.mu.Lock()
	sl := s.slotLocked(sessionID)
	if sl.loading {
		s.mu.Unlock()
		return exercise.View{}, ErrBusy
	}
	sl.loading = true
	sl.current = nil
	sl.feedback = nil
	s.mu.Unlock()

	ex, genErr := s.generator.GenerateExercise(ctx, t)

	s.mu.Lock()
	defer s.mu.Unlock()
	sl.loading = false
	if genErr != nil {
		log.Printf("[practice] generate failed session=%s: %v", sessionID, genErr)
		return exercise.View{}, fmt.Errorf("generate exercise: %w", genErr)
	}
	sl.current = &ex
	log.Printf("[practice] session=%s new %s exercise", sessionID, ex.Type)
	return ex.Public(), nil
}

// Check grades answer against the current exercise. Only the first
// successful check awards XP; later checks return the stored feedback. When
// the award fails nothing is stored, so the answer can be checked again.
func (s *Service) Check(ctx context.Context, sessionID, answer string) (exercise.Feedback, error) {
	s.mu.Lock()
	sl, ok := s.slots[sessionID]
	if !ok || sl.current == nil {
		s.mu.Unlock()
		return exercise.Feedback{}, ErrNoExercise
	}
	if sl.feedback != nil {
		fb := *sl.feedback
		s.mu.Unlock()
		return fb, nil
	}
	if sl.checking {
		s.mu.Unlock()
		return exercise.Feedback{}, ErrBusy
	}
	if strings.TrimSpace(answer) == "" {
		s.mu.Unlock()
		return exercise.Feedback{}, ErrNoAnswer
	}

	cur := sl.current
	ex := *cur
	fb := exercise.Feedback{
		IsCorrect:     ex.Grade(answer),
		Answer:        answer,
		CorrectAnswer: ex.CorrectAnswer,
		Explanation:   ex.Explanation,
	}
	if !fb.IsCorrect {
		sl.feedback = &fb
		s.mu.Unlock()
		return fb, nil
	}
	sl.checking = true
	s.mu.Unlock()

	_, err := s.awarder.Award(ctx, sessionID, progress.ExerciseReward)

	s.mu.Lock()
	defer s.mu.Unlock()
	sl.checking = false
	if err != nil {
		log.Printf("[practice] award failed session=%s: %v", sessionID, err)
		return exercise.Feedback{}, fmt.Errorf("award xp: %w", err)
	}
	fb.XPAwarded = progress.ExerciseReward
	// A new exercise may have been generated while awarding.
	if sl.current == cur {
		sl.feedback = &fb
	}
	return fb, nil
}

// Current reports the session's exercise state.
func (s *Service) Current(ctx context.Context, sessionID string) (State, error) {
	if _, _, err := s.sessions.SessionTutor(ctx, sessionID); err != nil {
		return State{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sl, ok := s.slots[sessionID]
	if !ok {
		return State{}, nil
	}
	state := State{Loading: sl.loading}
	if sl.current != nil {
		view := sl.current.Public()
		state.Exercise = &view
	}
	if sl.feedback != nil {
		fb := *sl.feedback
		state.Feedback = &fb
	}
	return state, nil
}
