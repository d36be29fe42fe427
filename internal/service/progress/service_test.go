package progress

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/atlas/backend/internal/model/chat"
	"github.com/zhouzirui/atlas/backend/internal/store"
)

func newTestService(t *testing.T) (*Service, string) {
	t.Helper()
	repo := store.NewMemory()
	require.NoError(t, repo.CreateSession(context.Background(), chat.Session{ID: "s", TutorID: "atlas", CreatedAt: time.Now()}))
	return NewService(repo), "s"
}

func TestAwardPersists(t *testing.T) {
	svc, id := newTestService(t)
	ctx := context.Background()

	_, err := svc.Award(ctx, id, 90)
	require.NoError(t, err)
	p, err := svc.Award(ctx, id, 25)
	require.NoError(t, err)
	assert.Equal(t, 2, p.Level)
	assert.Equal(t, 15, p.XP)

	stored, err := svc.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, p.Level, stored.Level)
	assert.Equal(t, p.XP, stored.XP)
}

func TestAwardConcurrent(t *testing.T) {
	svc, id := newTestService(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Award(ctx, id, 25)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	// 1000 XP total: levels 1..4 consume 100+200+300+400.
	p, err := svc.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 5, p.Level)
	assert.Equal(t, 0, p.XP)
}

func TestTouchStreak(t *testing.T) {
	svc, id := newTestService(t)
	day := time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return day }

	p, err := svc.Touch(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, 1, p.Streak)

	day = day.AddDate(0, 0, 1)
	p, err = svc.Touch(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, 2, p.Streak)
}

func TestUnknownSession(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.Award(context.Background(), "missing", 10)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}
