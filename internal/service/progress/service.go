// Package progress applies XP awards and streak updates to the persisted
// progression of a session.
package progress

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	progressModel "github.com/zhouzirui/atlas/backend/internal/model/progress"
	"github.com/zhouzirui/atlas/backend/internal/store"
)

// ErrSessionNotFound is returned for unknown sessions.
var ErrSessionNotFound = errors.New("session not found")

// Service serializes read-modify-write cycles per session.
type Service struct {
	repo store.Repository
	now  func() time.Time

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewService creates a progression service on top of repo.
func NewService(repo store.Repository) *Service {
	return &Service{
		repo:  repo,
		now:   time.Now,
		locks: make(map[string]*sync.Mutex),
	}
}

func (s *Service) lock(sessionID string) func() {
	s.mu.Lock()
	l, ok := s.locks[sessionID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[sessionID] = l
	}
	s.mu.Unlock()

	l.Lock()
	return l.Unlock
}

// Get returns the current progression of a session.
func (s *Service) Get(ctx context.Context, sessionID string) (progressModel.Progression, error) {
	p, err := s.repo.GetProgress(ctx, sessionID)
	if errors.Is(err, store.ErrNotFound) {
		return progressModel.Progression{}, ErrSessionNotFound
	}
	return p, err
}

// Award adds n XP and persists the result. Non-positive amounts leave the
// record untouched.
func (s *Service) Award(ctx context.Context, sessionID string, n int) (progressModel.Progression, error) {
	return s.update(ctx, sessionID, func(p *progressModel.Progression) bool {
		if n <= 0 {
			return false
		}
		if gained := p.AddXP(n); gained > 0 {
			log.Printf("[progress] session=%s reached level %d", sessionID, p.Level)
		}
		return true
	})
}

// Touch records learner activity for the daily streak.
func (s *Service) Touch(ctx context.Context, sessionID string) (progressModel.Progression, error) {
	return s.update(ctx, sessionID, func(p *progressModel.Progression) bool {
		before := p.LastActiveDay
		p.Touch(s.now())
		return p.LastActiveDay != before
	})
}

func (s *Service) update(ctx context.Context, sessionID string, fn func(*progressModel.Progression) bool) (progressModel.Progression, error) {
	unlock := s.lock(sessionID)
	defer unlock()

	p, err := s.Get(ctx, sessionID)
	if err != nil {
		return progressModel.Progression{}, err
	}
	if !fn(&p) {
		return p, nil
	}
	p.UpdatedAt = s.now().UTC()
	if err := s.repo.SaveProgress(ctx, p); err != nil {
		return progressModel.Progression{}, fmt.Errorf("save progress: %w", err)
	}
	return p, nil
}
