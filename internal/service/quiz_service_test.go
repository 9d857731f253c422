package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stemsi/exstem-quiz/internal/catalog"
	"github.com/stemsi/exstem-quiz/internal/model"
	"github.com/stemsi/exstem-quiz/internal/quiz"
)

type fakeSource struct {
	questions []model.Question
	err       error
	gotLimit  int
}

func (f *fakeSource) ListQuestions(_ context.Context, _ []string, limit int) ([]model.Question, error) {
	f.gotLimit = limit
	if f.err != nil {
		return nil, f.err
	}
	if len(f.questions) > limit {
		return f.questions[:limit], nil
	}
	return f.questions, nil
}

type fakePublisher struct {
	mu       sync.Mutex
	attempts []*model.Attempt
}

func (p *fakePublisher) Push(_ context.Context, a *model.Attempt) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.attempts = append(p.attempts, a)
	return nil
}

func (p *fakePublisher) all() []*model.Attempt {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*model.Attempt(nil), p.attempts...)
}

// slowClock never ticks within a test and lets the test move Now.
type slowClock struct {
	quiz.SystemClock
	mu  sync.Mutex
	now time.Time
}

func (c *slowClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *slowClock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func questions(n int) []model.Question {
	qs := make([]model.Question, n)
	for i := range qs {
		qs[i] = model.Question{
			ID:      uuid.NewString(),
			Prompt:  "Pick A",
			Options: []model.Option{{ID: "A", Value: "a"}, {ID: "B", Value: "b"}},
			Answer:  "A",
		}
	}
	return qs
}

func newQuizService(t *testing.T, src QuestionSource, pub AttemptPublisher) (*QuizService, *slowClock) {
	t.Helper()
	clock := &slowClock{now: time.Unix(1700000000, 0)}
	s := NewQuizService(src, pub, QuizOptions{
		TickInterval:         time.Hour,
		IdleTTL:              30 * time.Minute,
		MaxQuestionCount:     100,
		MaxSessionsPerPlayer: 2,
		Clock:                clock,
	}, zerolog.Nop())
	t.Cleanup(func() { _ = s.Shutdown(context.Background()) })
	return s, clock
}

func createReq(count int) model.CreateQuizRequest {
	return model.CreateQuizRequest{ModuleIDs: []string{"1"}, Count: count}
}

func TestQuizService_Create(t *testing.T) {
	src := &fakeSource{questions: questions(3)}
	s, _ := newQuizService(t, src, nil)

	snap, err := s.Create(context.Background(), uuid.New(), createReq(5))
	require.NoError(t, err)

	assert.Equal(t, 5, src.gotLimit)
	assert.Equal(t, 3, snap.Total)
	assert.Equal(t, 600, snap.DurationSeconds, "budget follows the requested count")
	assert.Equal(t, 0, snap.Index)
	assert.True(t, snap.TimerRunning)
	assert.Equal(t, 1, s.Active())
}

func TestQuizService_CreateFailures(t *testing.T) {
	player := uuid.New()

	t.Run("load error", func(t *testing.T) {
		loadErr := &catalog.LoadError{Op: "load questions", Err: assert.AnError}
		s, _ := newQuizService(t, &fakeSource{err: loadErr}, nil)

		_, err := s.Create(context.Background(), player, createReq(5))
		var target *catalog.LoadError
		require.ErrorAs(t, err, &target)
		assert.Equal(t, 0, s.Active())
	})

	t.Run("empty set", func(t *testing.T) {
		s, _ := newQuizService(t, &fakeSource{}, nil)
		_, err := s.Create(context.Background(), player, createReq(5))
		require.ErrorIs(t, err, ErrNoQuestions)
		assert.Equal(t, 0, s.Active())
	})

	t.Run("count too large", func(t *testing.T) {
		s, _ := newQuizService(t, &fakeSource{questions: questions(1)}, nil)
		_, err := s.Create(context.Background(), player, createReq(101))
		require.ErrorIs(t, err, ErrCountTooLarge)
	})

	t.Run("too many sessions", func(t *testing.T) {
		s, _ := newQuizService(t, &fakeSource{questions: questions(1)}, nil)
		for i := 0; i < 2; i++ {
			_, err := s.Create(context.Background(), player, createReq(1))
			require.NoError(t, err)
		}
		_, err := s.Create(context.Background(), player, createReq(1))
		require.ErrorIs(t, err, ErrTooManyQuizzes)

		_, err = s.Create(context.Background(), uuid.New(), createReq(1))
		require.NoError(t, err, "limit is per player")
	})
}

// gatedSource holds every load until release is closed.
type gatedSource struct {
	arrived chan struct{}
	release chan struct{}
}

func (g *gatedSource) ListQuestions(ctx context.Context, _ []string, limit int) ([]model.Question, error) {
	g.arrived <- struct{}{}
	select {
	case <-g.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return questions(limit), nil
}

func TestQuizService_CreateCapUnderConcurrency(t *testing.T) {
	const callers = 5
	src := &gatedSource{arrived: make(chan struct{}, callers), release: make(chan struct{})}
	s, _ := newQuizService(t, src, nil)
	player := uuid.New()

	errs := make(chan error, callers)
	for i := 0; i < callers; i++ {
		go func() {
			_, err := s.Create(context.Background(), player, createReq(1))
			errs <- err
		}()
	}
	for i := 0; i < callers; i++ {
		select {
		case <-src.arrived:
		case <-time.After(time.Second):
			t.Fatal("create did not reach the question load")
		}
	}
	close(src.release)

	created, rejected := 0, 0
	for i := 0; i < callers; i++ {
		err := <-errs
		switch {
		case err == nil:
			created++
		case errors.Is(err, ErrTooManyQuizzes):
			rejected++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 2, created)
	assert.Equal(t, callers-2, rejected)
	assert.Equal(t, 2, s.Active())
}

func TestQuizService_RunnerOwnership(t *testing.T) {
	s, _ := newQuizService(t, &fakeSource{questions: questions(2)}, nil)
	owner := uuid.New()

	snap, err := s.Create(context.Background(), owner, createReq(2))
	require.NoError(t, err)

	r, err := s.Runner(owner, snap.ID)
	require.NoError(t, err)
	assert.Equal(t, snap.ID, r.ID())

	_, err = s.Runner(uuid.New(), snap.ID)
	require.ErrorIs(t, err, ErrQuizNotFound)
	require.ErrorIs(t, s.Delete(uuid.New(), snap.ID), ErrQuizNotFound)

	_, err = s.Runner(owner, uuid.New())
	require.ErrorIs(t, err, ErrQuizNotFound)
}

func TestQuizService_SubmitPublishesAttempt(t *testing.T) {
	pub := &fakePublisher{}
	s, _ := newQuizService(t, &fakeSource{questions: questions(3)}, pub)
	ctx := context.Background()
	player := uuid.New()

	snap, err := s.Create(ctx, player, model.CreateQuizRequest{ModuleIDs: []string{"4", "9"}, Count: 3})
	require.NoError(t, err)
	r, err := s.Runner(player, snap.ID)
	require.NoError(t, err)

	for i, opt := range []string{"A", "B", "A"} {
		_, err := r.SelectAnswer(ctx, i, opt)
		require.NoError(t, err)
	}
	_, accepted, err := r.Submit(ctx)
	require.NoError(t, err)
	require.True(t, accepted)

	require.Eventually(t, func() bool { return len(pub.all()) == 1 }, time.Second, 5*time.Millisecond)
	a := pub.all()[0]
	assert.Equal(t, player, a.PlayerID)
	assert.Equal(t, snap.ID, a.SessionID)
	assert.Equal(t, []string{"4", "9"}, a.ModuleIDs)
	assert.Equal(t, 2, a.CorrectCount)
	assert.Equal(t, 3, a.Total)
	assert.Equal(t, 67, a.AccuracyPercent)
	assert.Equal(t, model.FinalizeSubmitted, a.FinalizeReason)
	require.Len(t, a.Answers, 3)
	assert.False(t, a.Answers[1].Correct)
	assert.Equal(t, "B", a.Answers[1].SelectedOptionID)

	// A restart followed by a second submission is a separate attempt.
	_, err = r.Restart(ctx)
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		_, err := r.SelectAnswer(ctx, i, "A")
		require.NoError(t, err)
	}
	_, accepted, err = r.Submit(ctx)
	require.NoError(t, err)
	require.True(t, accepted)
	require.Eventually(t, func() bool { return len(pub.all()) == 2 }, time.Second, 5*time.Millisecond)
	assert.NotEqual(t, pub.all()[0].ID, pub.all()[1].ID)
}

func TestQuizService_Delete(t *testing.T) {
	s, _ := newQuizService(t, &fakeSource{questions: questions(2)}, nil)
	player := uuid.New()

	snap, err := s.Create(context.Background(), player, createReq(2))
	require.NoError(t, err)
	r, err := s.Runner(player, snap.ID)
	require.NoError(t, err)

	require.NoError(t, s.Delete(player, snap.ID))
	<-r.Done()

	_, err = r.Snapshot(context.Background())
	require.ErrorIs(t, err, quiz.ErrClosed)
	_, err = s.Runner(player, snap.ID)
	require.ErrorIs(t, err, ErrQuizNotFound)
	require.ErrorIs(t, s.Delete(player, snap.ID), ErrQuizNotFound)
}

func TestQuizService_ReapIdle(t *testing.T) {
	s, clock := newQuizService(t, &fakeSource{questions: questions(1)}, nil)
	ctx := context.Background()
	player := uuid.New()

	stale, err := s.Create(ctx, player, createReq(1))
	require.NoError(t, err)
	r, err := s.Runner(player, stale.ID)
	require.NoError(t, err)
	_, err = r.SelectAnswer(ctx, 0, "A")
	require.NoError(t, err)
	_, accepted, err := r.Submit(ctx)
	require.NoError(t, err)
	require.True(t, accepted)

	clock.advance(20 * time.Minute)
	fresh, err := s.Create(ctx, uuid.New(), createReq(1))
	require.NoError(t, err)

	clock.advance(15 * time.Minute)
	assert.Equal(t, 1, s.ReapIdle())
	assert.Equal(t, 1, s.Active())
	<-r.Done()

	s.mu.RLock()
	_, staleLive := s.sessions[stale.ID]
	_, freshLive := s.sessions[fresh.ID]
	s.mu.RUnlock()
	assert.False(t, staleLive)
	assert.True(t, freshLive)
}

func TestQuizService_ReapIdleKeepsRunningTimer(t *testing.T) {
	s, clock := newQuizService(t, &fakeSource{questions: questions(40)}, nil)
	ctx := context.Background()
	player := uuid.New()

	snap, err := s.Create(ctx, player, createReq(40))
	require.NoError(t, err)
	require.Equal(t, 4800, snap.DurationSeconds)
	r, err := s.Runner(player, snap.ID)
	require.NoError(t, err)
	idleSince := r.LastActive()

	clock.advance(35 * time.Minute)
	assert.Equal(t, 0, s.ReapIdle(), "unfinished session with time left stays")
	assert.Equal(t, 1, s.Active())
	assert.Equal(t, idleSince, r.LastActive(), "a sweep is not player activity")

	got, err := r.Snapshot(ctx)
	require.NoError(t, err)
	assert.False(t, got.Finalized)
	assert.Equal(t, 4800, got.RemainingSeconds)
}

func TestQuizService_Shutdown(t *testing.T) {
	s, _ := newQuizService(t, &fakeSource{questions: questions(1)}, nil)
	player := uuid.New()
	snap, err := s.Create(context.Background(), player, createReq(1))
	require.NoError(t, err)
	r, err := s.Runner(player, snap.ID)
	require.NoError(t, err)

	require.NoError(t, s.Shutdown(context.Background()))
	assert.Equal(t, 0, s.Active())
	<-r.Done()
}
