package practice

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/atlas/backend/internal/model/chat"
	"github.com/zhouzirui/atlas/backend/internal/model/exercise"
	"github.com/zhouzirui/atlas/backend/internal/model/progress"
	"github.com/zhouzirui/atlas/backend/internal/model/tutor"
)

type fakeSessions struct{}

func (fakeSessions) SessionTutor(_ context.Context, sessionID string) (chat.Session, tutor.Tutor, error) {
	if sessionID != "s1" {
		return chat.Session{}, tutor.Tutor{}, errors.New("session not found")
	}
	return chat.Session{ID: sessionID, TutorID: tutor.DefaultID}, tutor.Seed()[0], nil
}

type fakeGenerator struct {
	ex    exercise.Exercise
	err   error
	block chan struct{}
	calls chan struct{}
}

func (g *fakeGenerator) GenerateExercise(context.Context, tutor.Tutor) (exercise.Exercise, error) {
	if g.calls != nil {
		g.calls <- struct{}{}
	}
	if g.block != nil {
		<-g.block
	}
	return g.ex, g.err
}

type fakeAwarder struct {
	awards []int
	err    error
}

func (a *fakeAwarder) Award(_ context.Context, sessionID string, n int) (progress.Progression, error) {
	if a.err != nil {
		return progress.Progression{}, a.err
	}
	a.awards = append(a.awards, n)
	return progress.New(sessionID), nil
}

func sampleExercise() exercise.Exercise {
	return exercise.Exercise{
		Question:      "Come si dice 'knee' in italiano?",
		Type:          exercise.MultipleChoice,
		Options:       []string{"ginocchio", "gomito", "caviglia"},
		CorrectAnswer: "ginocchio",
		Explanation:   "Il ginocchio è l'articolazione della gamba.",
	}
}

func TestGenerateHidesAnswer(t *testing.T) {
	svc := NewService(fakeSessions{}, &fakeGenerator{ex: sampleExercise()}, &fakeAwarder{})

	view, err := svc.Generate(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, "Come si dice 'knee' in italiano?", view.Question)
	assert.Len(t, view.Options, 3)

	state, err := svc.Current(context.Background(), "s1")
	require.NoError(t, err)
	require.NotNil(t, state.Exercise)
	assert.Nil(t, state.Feedback)
	assert.False(t, state.Loading)
}

func TestGenerateUnknownSession(t *testing.T) {
	svc := NewService(fakeSessions{}, &fakeGenerator{ex: sampleExercise()}, &fakeAwarder{})
	_, err := svc.Generate(context.Background(), "nope")
	assert.Error(t, err)
}

func TestGenerateFailureClearsState(t *testing.T) {
	gen := &fakeGenerator{ex: sampleExercise()}
	svc := NewService(fakeSessions{}, gen, &fakeAwarder{})
	ctx := context.Background()

	_, err := svc.Generate(ctx, "s1")
	require.NoError(t, err)

	gen.err = errors.New("model unavailable")
	_, err = svc.Generate(ctx, "s1")
	require.Error(t, err)

	state, err := svc.Current(ctx, "s1")
	require.NoError(t, err)
	assert.Nil(t, state.Exercise)
	assert.False(t, state.Loading)
}

func TestGenerateRejectsWhileLoading(t *testing.T) {
	gen := &fakeGenerator{ex: sampleExercise(), block: make(chan struct{}), calls: make(chan struct{}, 1)}
	svc := NewService(fakeSessions{}, gen, &fakeAwarder{})
	ctx := context.Background()

	done := make(chan error, 1)
	go func() {
		_, err := svc.Generate(ctx, "s1")
		done <- err
	}()

	select {
	case <-gen.calls:
	case <-time.After(time.Second):
		t.Fatal("generator was not called")
	}
	state, err := svc.Current(ctx, "s1")
	require.NoError(t, err)
	assert.True(t, state.Loading)

	_, err = svc.Generate(ctx, "s1")
	assert.ErrorIs(t, err, ErrBusy)

	close(gen.block)
	require.NoError(t, <-done)
}

func TestCheckAwardsOnce(t *testing.T) {
	awarder := &fakeAwarder{}
	svc := NewService(fakeSessions{}, &fakeGenerator{ex: sampleExercise()}, awarder)
	ctx := context.Background()

	_, err := svc.Generate(ctx, "s1")
	require.NoError(t, err)

	fb, err := svc.Check(ctx, "s1", "  Ginocchio ")
	require.NoError(t, err)
	assert.True(t, fb.IsCorrect)
	assert.Equal(t, progress.ExerciseReward, fb.XPAwarded)

	again, err := svc.Check(ctx, "s1", "gomito")
	require.NoError(t, err)
	assert.Equal(t, fb, again)
	assert.Equal(t, []int{progress.ExerciseReward}, awarder.awards)
}

func TestCheckWrongAnswer(t *testing.T) {
	awarder := &fakeAwarder{}
	svc := NewService(fakeSessions{}, &fakeGenerator{ex: sampleExercise()}, awarder)
	ctx := context.Background()

	_, err := svc.Generate(ctx, "s1")
	require.NoError(t, err)

	fb, err := svc.Check(ctx, "s1", "gomito")
	require.NoError(t, err)
	assert.False(t, fb.IsCorrect)
	assert.Zero(t, fb.XPAwarded)
	assert.Equal(t, "ginocchio", fb.CorrectAnswer)
	assert.Empty(t, awarder.awards)
}

func TestCheckWithoutExercise(t *testing.T) {
	svc := NewService(fakeSessions{}, &fakeGenerator{}, &fakeAwarder{})
	_, err := svc.Check(context.Background(), "s1", "x")
	assert.ErrorIs(t, err, ErrNoExercise)
}

func TestCheckEmptyAnswer(t *testing.T) {
	svc := NewService(fakeSessions{}, &fakeGenerator{ex: sampleExercise()}, &fakeAwarder{})
	ctx := context.Background()
	_, err := svc.Generate(ctx, "s1")
	require.NoError(t, err)

	_, err = svc.Check(ctx, "s1", " ")
	assert.ErrorIs(t, err, ErrNoAnswer)
}

func TestCheckRetriesAfterAwardFailure(t *testing.T) {
	awarder := &fakeAwarder{err: errors.New("store down")}
	svc := NewService(fakeSessions{}, &fakeGenerator{ex: sampleExercise()}, awarder)
	ctx := context.Background()

	_, err := svc.Generate(ctx, "s1")
	require.NoError(t, err)

	_, err = svc.Check(ctx, "s1", "ginocchio")
	require.Error(t, err)

	state, err := svc.Current(ctx, "s1")
	require.NoError(t, err)
	assert.Nil(t, state.Feedback)

	awarder.err = nil
	fb, err := svc.Check(ctx, "s1", "ginocchio")
	require.NoError(t, err)
	assert.True(t, fb.IsCorrect)
	assert.Equal(t, progress.ExerciseReward, fb.XPAwarded)
	assert.Equal(t, []int{progress.ExerciseReward}, awarder.awards)
}

func TestCurrentUnknownSession(t *testing.T) {
	svc := NewService(fakeSessions{}, &fakeGenerator{}, &fakeAwarder{})
	_, err := svc.Current(context.Background(), "nope")
	assert.Error(t, err)
}
