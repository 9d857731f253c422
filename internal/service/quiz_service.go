package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-quiz/internal/logger"
	"github.com/stemsi/exstem-quiz/internal/model"
	"github.com/stemsi/exstem-quiz/internal/quiz"
)

// Quiz service errors.
var (
	ErrQuizNotFound   = errors.New("quiz not found")
	ErrNoQuestions    = errors.New("no questions found for the selected modules")
	ErrCountTooLarge  = errors.New("question count exceeds the configured maximum")
	ErrTooManyQuizzes = errors.New("too many active quizzes")
)

const (
	persistTimeout   = 5 * time.Second
	reapCheckTimeout = time.Second
)

// QuestionSource loads the question set for a quiz.
type QuestionSource interface {
	ListQuestions(ctx context.Context, moduleIDs []string, limit int) ([]model.Question, error)
}

// AttemptPublisher hands finished attempts off for persistence.
type AttemptPublisher interface {
	Push(ctx context.Context, a *model.Attempt) error
}

// QuizOptions configures session creation and lifetime.
type QuizOptions struct {
	SecondsPerQuestion   int
	TickInterval         time.Duration
	AutoNextDelay        time.Duration
	IdleTTL              time.Duration
	MaxQuestionCount     int
	MaxSessionsPerPlayer int
	Clock                quiz.Clock
}

// QuizService is the registry of live quiz sessions. Every session is owned
// by a quiz.Runner; the service creates, looks up and tears them down.
type QuizService struct {
	source    QuestionSource
	publisher AttemptPublisher
	opts      QuizOptions
	log       zerolog.Logger

	mu       sync.RWMutex
	sessions map[uuid.UUID]*quizEntry

	persisting sync.WaitGroup
}

type quizEntry struct {
	runner    *quiz.Runner
	playerID  uuid.UUID
	moduleIDs []string
}

// NewQuizService creates a new QuizService.
func NewQuizService(source QuestionSource, publisher AttemptPublisher, opts QuizOptions, log zerolog.Logger) *QuizService {
	if opts.SecondsPerQuestion <= 0 {
		opts.SecondsPerQuestion = quiz.DefaultSecondsPerQuestion
	}
	if opts.Clock == nil {
		opts.Clock = quiz.SystemClock{}
	}
	return &QuizService{
		source:    source,
		publisher: publisher,
		opts:      opts,
		log:       logger.Component(log, "quiz_service"),
		sessions:  make(map[uuid.UUID]*quizEntry),
	}
}

// Create loads the question set and starts a new session for playerID. Load
// failures are returned as *catalog.LoadError (wrapped); an empty set yields
// ErrNoQuestions. No session exists unless the load succeeded.
func (s *QuizService) Create(ctx context.Context, playerID uuid.UUID, req model.CreateQuizRequest) (quiz.Snapshot, error) {
	if s.opts.MaxQuestionCount > 0 && req.Count > s.opts.MaxQuestionCount {
		return quiz.Snapshot{}, ErrCountTooLarge
	}
	if s.atCapacity(playerID) {
		return quiz.Snapshot{}, ErrTooManyQuizzes
	}

	questions, err := s.source.ListQuestions(ctx, req.ModuleIDs, req.Count)
	if err != nil {
		return quiz.Snapshot{}, fmt.Errorf("load questions: %w", err)
	}

	session, err := quiz.NewSession(questions, req.Count, s.opts.SecondsPerQuestion)
	if err != nil {
		if errors.Is(err, quiz.ErrNoQuestions) {
			return quiz.Snapshot{}, ErrNoQuestions
		}
		return quiz.Snapshot{}, err
	}

	id := uuid.New()
	entry := &quizEntry{
		playerID:  playerID,
		moduleIDs: append([]string(nil), req.ModuleIDs...),
	}
	entry.runner = quiz.NewRunner(id, session, quiz.RunnerOptions{
		TickInterval:  s.opts.TickInterval,
		AutoNextDelay: s.opts.AutoNextDelay,
		AutoNext:      req.AutoNext,
		Clock:         s.opts.Clock,
		OnFinalize:    func(o quiz.Outcome) { s.persist(entry, o) },
		Logger:        s.log,
	})

	// The load above ran unlocked, so the cap is checked again before the
	// insert.
	s.mu.Lock()
	if s.atCapacityLocked(playerID) {
		s.mu.Unlock()
		entry.runner.Close()
		return quiz.Snapshot{}, ErrTooManyQuizzes
	}
	s.sessions[id] = entry
	s.mu.Unlock()

	entry.runner.Start()

	s.log.Info().
		Str("session_id", id.String()).
		Str("player_id", playerID.String()).
		Int("requested", req.Count).
		Int("loaded", session.Len()).
		Msg("Quiz session created")

	return entry.runner.Snapshot(ctx)
}

// Runner returns the player's session runner. Sessions owned by someone
// else are reported as ErrQuizNotFound.
func (s *QuizService) Runner(playerID, id uuid.UUID) (*quiz.Runner, error) {
	s.mu.RLock()
	entry, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok || entry.playerID != playerID {
		return nil, ErrQuizNotFound
	}
	return entry.runner, nil
}

// Delete tears the session down. The timer is stopped before it returns.
func (s *QuizService) Delete(playerID, id uuid.UUID) error {
	s.mu.Lock()
	entry, ok := s.sessions[id]
	if !ok || entry.playerID != playerID {
		s.mu.Unlock()
		return ErrQuizNotFound
	}
	delete(s.sessions, id)
	s.mu.Unlock()

	entry.runner.Close()
	s.log.Info().Str("session_id", id.String()).Msg("Quiz session deleted")
	return nil
}

// Active reports how many sessions are live.
func (s *QuizService) Active() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

func (s *QuizService) atCapacity(playerID uuid.UUID) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.atCapacityLocked(playerID)
}

// atCapacityLocked must be called with s.mu held.
func (s *QuizService) atCapacityLocked(playerID uuid.UUID) bool {
	if s.opts.MaxSessionsPerPlayer <= 0 {
		return false
	}
	n := 0
	for _, e := range s.sessions {
		if e.playerID == playerID {
			n++
		}
	}
	return n >= s.opts.MaxSessionsPerPlayer
}

// ─── Idle reaping ───────────────────────────────────────────────────

// StartReaper closes sessions idle for longer than IdleTTL until ctx is
// cancelled. Call in a goroutine.
func (s *QuizService) StartReaper(ctx context.Context) {
	if s.opts.IdleTTL <= 0 {
		return
	}
	interval := min(s.opts.IdleTTL/2, time.Minute)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.ReapIdle(); n > 0 {
				s.log.Info().Int("reaped", n).Msg("Idle quiz sessions closed")
			}
		}
	}
}

// ReapIdle closes every settled session whose last command is older than
// IdleTTL and returns how many were closed. A session whose timer still has
// budget is left alone: it finalizes as a timeout on its own and is reaped
// on a later sweep.
func (s *QuizService) ReapIdle() int {
	cutoff := s.opts.Clock.Now().Add(-s.opts.IdleTTL)

	stale := make(map[uuid.UUID]*quizEntry)
	s.mu.RLock()
	for id, e := range s.sessions {
		if e.runner.LastActive().Before(cutoff) {
			stale[id] = e
		}
	}
	s.mu.RUnlock()

	reaped := 0
	for id, e := range stale {
		ctx, cancel := context.WithTimeout(context.Background(), reapCheckTimeout)
		settled, err := e.runner.Settled(ctx)
		cancel()
		if err == nil && !settled {
			continue
		}

		s.mu.Lock()
		owned := s.sessions[id] == e
		if owned {
			delete(s.sessions, id)
		}
		s.mu.Unlock()
		if !owned {
			continue
		}

		e.runner.Close()
		reaped++
	}
	return reaped
}

// Shutdown closes every session and waits for in-flight attempt writes.
func (s *QuizService) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	entries := make([]*quizEntry, 0, len(s.sessions))
	for id, e := range s.sessions {
		entries = append(entries, e)
		delete(s.sessions, id)
	}
	s.mu.Unlock()

	for _, e := range entries {
		e.runner.Close()
	}

	done := make(chan struct{})
	go func() {
		s.persisting.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ─── Attempt persistence ────────────────────────────────────────────

// persist runs on the runner goroutine, so the queue write happens on its
// own goroutine.
func (s *QuizService) persist(entry *quizEntry, o quiz.Outcome) {
	if s.publisher == nil {
		return
	}
	attempt := attemptFromOutcome(entry.playerID, entry.moduleIDs, o)

	s.persisting.Add(1)
	go func() {
		defer s.persisting.Done()
		ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		defer cancel()

		if err := s.publisher.Push(ctx, attempt); err != nil {
			s.log.Error().Err(err).
				Str("session_id", o.SessionID.String()).
				Msg("Failed to queue attempt")
		}
	}()
}

func attemptFromOutcome(playerID uuid.UUID, moduleIDs []string, o quiz.Outcome) *model.Attempt {
	answers := make([]model.AttemptAnswer, len(o.Items))
	for i, it := range o.Items {
		answers[i] = model.AttemptAnswer{
			ItemIndex:        i,
			QuestionID:       it.Question.ID,
			SelectedOptionID: it.SelectedOptionID,
			Correct:          it.Correct(),
		}
	}
	return &model.Attempt{
		ID:              uuid.New(),
		PlayerID:        playerID,
		SessionID:       o.SessionID,
		ModuleIDs:       moduleIDs,
		QuestionCount:   len(o.Items),
		CorrectCount:    o.Score.Correct,
		Total:           o.Score.Total,
		AccuracyPercent: o.Score.AccuracyPercent,
		ElapsedSeconds:  o.Elapsed,
		DurationSeconds: o.Duration,
		FinalizeReason:  o.Reason,
		FinishedAt:      o.FinishedAt.UTC(),
		Answers:         answers,
	}
}
