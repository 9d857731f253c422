package quiz

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-quiz/internal/model"
)

const (
	DefaultTickInterval  = time.Second
	DefaultAutoNextDelay = 150 * time.Millisecond

	subscriberBuffer = 16
)

// ErrClosed is returned by Runner methods after Close.
var ErrClosed = errors.New("quiz: session closed")

// EventType names what changed in a pushed Event.
type EventType string

const (
	EventState     EventType = "state"
	EventTick      EventType = "tick"
	EventFinalized EventType = "finalized"
	EventClosed    EventType = "closed"
)

// Event is pushed to subscribers after every change.
type Event struct {
	Type     EventType `json:"event"`
	Snapshot Snapshot  `json:"state"`
}

// Snapshot is the read-only view of a session handed to the presentation
// layer. Score is only set once the session is finalized.
type Snapshot struct {
	ID               uuid.UUID               `json:"id"`
	Index            int                     `json:"index"`
	Total            int                     `json:"total"`
	Current          model.QuestionForPlayer `json:"current"`
	SelectedOptionID string                  `json:"selected_option_id,omitempty"`
	Answered         []bool                  `json:"answered"`
	AnsweredCount    int                     `json:"answered_count"`
	AllAnswered      bool                    `json:"all_answered"`
	ElapsedSeconds   int                     `json:"elapsed_seconds"`
	DurationSeconds  int                     `json:"duration_seconds"`
	RemainingSeconds int                     `json:"remaining_seconds"`
	Finalized        bool                    `json:"finalized"`
	FinalizeReason   model.FinalizeReason    `json:"finalize_reason,omitempty"`
	AutoNext         bool                    `json:"auto_next"`
	TimerRunning     bool                    `json:"timer_running"`
	Score            *Score                  `json:"score,omitempty"`
}

// Outcome is handed to RunnerOptions.OnFinalize once per finalization.
type Outcome struct {
	SessionID  uuid.UUID
	Reason     model.FinalizeReason
	Elapsed    int
	Duration   int
	Score      Score
	Items      []Item
	FinishedAt time.Time
}

// RunnerOptions configures a Runner. Zero values fall back to defaults.
type RunnerOptions struct {
	TickInterval  time.Duration
	AutoNextDelay time.Duration
	AutoNext      bool
	Clock         Clock
	// OnFinalize runs on the runner goroutine. It must not block and must
	// not call back into the runner.
	OnFinalize func(Outcome)
	Logger     zerolog.Logger
}

// Runner owns a Session and serializes every mutation on it: player
// commands, timer ticks and deferred auto-advances are events processed one
// at a time by a single goroutine.
type Runner struct {
	id      uuid.UUID
	session *Session
	opts    RunnerOptions
	log     zerolog.Logger

	events    chan func()
	quit      chan struct{}
	done      chan struct{}
	startOnce sync.Once
	closeOnce sync.Once

	lastActive atomic.Int64

	// Owned by the loop goroutine.
	ticker     Ticker
	advance    Timer
	advanceSeq uint64
	autoNext   bool
	subs       map[int]chan Event
	nextSub    int
}

// NewRunner wraps session. Call Start to begin the timer.
func NewRunner(id uuid.UUID, session *Session, opts RunnerOptions) *Runner {
	if opts.TickInterval <= 0 {
		opts.TickInterval = DefaultTickInterval
	}
	if opts.AutoNextDelay <= 0 {
		opts.AutoNextDelay = DefaultAutoNextDelay
	}
	if opts.Clock == nil {
		opts.Clock = SystemClock{}
	}

	r := &Runner{
		id:       id,
		session:  session,
		opts:     opts,
		log:      opts.Logger.With().Str("session_id", id.String()).Logger(),
		events:   make(chan func()),
		quit:     make(chan struct{}),
		done:     make(chan struct{}),
		autoNext: opts.AutoNext,
		subs:     make(map[int]chan Event),
	}
	r.touch()
	return r
}

func (r *Runner) ID() uuid.UUID { return r.id }

// Done is closed once the runner goroutine has exited.
func (r *Runner) Done() <-chan struct{} { return r.done }

// LastActive is the time of the most recent player command.
func (r *Runner) LastActive() time.Time {
	return time.Unix(0, r.lastActive.Load())
}

// Start launches the event loop and the timer. Calling it again is a no-op.
func (r *Runner) Start() {
	r.startOnce.Do(func() {
		r.startTimer()
		go r.loop()
	})
}

// Close stops the timer, cancels any pending auto-advance and waits for the
// event loop to exit. No tick is applied once Close has returned. It is safe
// to call more than once, but never from OnFinalize.
func (r *Runner) Close() {
	r.closeOnce.Do(func() { close(r.quit) })
	r.startOnce.Do(func() { close(r.done) })
	<-r.done
}

func (r *Runner) Snapshot(ctx context.Context) (Snapshot, error) {
	var snap Snapshot
	err := r.exec(ctx, func() { snap = r.snapshot() })
	return snap, err
}

// SelectAnswer records optionID for item i. Selections on a finalized
// session or for an out-of-range item are silently ignored. An option that
// does not belong to the item yields ErrUnknownOption and no change.
func (r *Runner) SelectAnswer(ctx context.Context, i int, optionID string) (Snapshot, error) {
	var (
		snap  Snapshot
		opErr error
	)
	err := r.exec(ctx, func() {
		defer func() { snap = r.snapshot() }()

		item, ok := r.session.Item(i)
		if ok && !r.session.Finalized() && !item.HasOption(optionID) {
			opErr = ErrUnknownOption
			return
		}
		if !r.session.SelectAnswer(i, optionID) {
			return
		}

		r.cancelAdvance()
		if r.autoNext && i == r.session.Index() && i < r.session.Len()-1 {
			r.scheduleAdvance(i)
		}
		r.publish(EventState)
	})
	if err != nil {
		return Snapshot{}, err
	}
	return snap, opErr
}

func (r *Runner) GoPrev(ctx context.Context) (Snapshot, error) {
	return r.navigate(ctx, func() bool { return r.session.GoPrev() })
}

func (r *Runner) GoNext(ctx context.Context) (Snapshot, error) {
	return r.navigate(ctx, func() bool { return r.session.GoNext() })
}

// GoTo jumps to item i or fails with ErrOutOfRange.
func (r *Runner) GoTo(ctx context.Context, i int) (Snapshot, error) {
	var goErr error
	snap, err := r.navigate(ctx, func() bool {
		before := r.session.Index()
		goErr = r.session.GoTo(i)
		return goErr == nil && before != r.session.Index()
	})
	if err != nil {
		return Snapshot{}, err
	}
	return snap, goErr
}

// Submit finalizes the session if every item is answered. The boolean
// reports whether this call finalized it.
func (r *Runner) Submit(ctx context.Context) (Snapshot, bool, error) {
	var (
		snap     Snapshot
		accepted bool
	)
	err := r.exec(ctx, func() {
		accepted = r.session.Submit()
		if accepted {
			r.onFinalized()
		}
		snap = r.snapshot()
	})
	return snap, accepted, err
}

// Restart clears the attempt and puts the timer back to RUNNING.
func (r *Runner) Restart(ctx context.Context) (Snapshot, error) {
	var snap Snapshot
	err := r.exec(ctx, func() {
		r.cancelAdvance()
		r.session.Restart()
		r.startTimer()
		r.publish(EventState)
		snap = r.snapshot()
		r.log.Debug().Msg("Session restarted")
	})
	return snap, err
}

func (r *Runner) SetAutoNext(ctx context.Context, enabled bool) (Snapshot, error) {
	var snap Snapshot
	err := r.exec(ctx, func() {
		r.autoNext = enabled
		if !enabled {
			r.cancelAdvance()
		}
		r.publish(EventState)
		snap = r.snapshot()
	})
	return snap, err
}

// Review returns the score and the per-item review of the current state.
func (r *Runner) Review(ctx context.Context) (Snapshot, []ReviewItem, error) {
	var (
		snap   Snapshot
		review []ReviewItem
	)
	err := r.exec(ctx, func() {
		snap = r.snapshot()
		review = r.session.Review()
	})
	return snap, review, err
}

// Settled reports whether the session has nothing left to run: it is
// finalized or its time budget is spent. It does not count as activity.
func (r *Runner) Settled(ctx context.Context) (bool, error) {
	var settled bool
	err := r.do(ctx, false, func() {
		settled = r.session.Finalized() || r.session.Remaining() == 0
	})
	return settled, err
}

// Subscribe registers for pushed events. The first event on the channel is
// the current state. The channel is closed by the returned cancel func or
// when the runner closes.
func (r *Runner) Subscribe(ctx context.Context) (<-chan Event, func(), error) {
	var (
		id int
		ch chan Event
	)
	err := r.exec(ctx, func() {
		id = r.nextSub
		r.nextSub++
		ch = make(chan Event, subscriberBuffer)
		r.subs[id] = ch
		ch <- Event{Type: EventState, Snapshot: r.snapshot()}
	})
	if err != nil {
		return nil, nil, err
	}

	cancel := func() {
		r.post(func() {
			if c, ok := r.subs[id]; ok {
				delete(r.subs, id)
				close(c)
			}
		})
	}
	return ch, cancel, nil
}

// ────────────────────────────────────────────────────────────────────────────
// Event loop
// ────────────────────────────────────────────────────────────────────────────

func (r *Runner) loop() {
	defer close(r.done)
	defer r.shutdown()

	for {
		var tick <-chan time.Time
		if r.ticker != nil {
			tick = r.ticker.C()
		}

		select {
		case <-r.quit:
			return
		case <-tick:
			if r.closing() {
				return
			}
			r.onTick()
		case fn := <-r.events:
			fn()
		}
	}
}

func (r *Runner) closing() bool {
	select {
	case <-r.quit:
		return true
	default:
		return false
	}
}

// exec runs fn on the loop goroutine and waits for it to finish. It counts
// as player activity.
func (r *Runner) exec(ctx context.Context, fn func()) error {
	return r.do(ctx, true, fn)
}

func (r *Runner) do(ctx context.Context, active bool, fn func()) error {
	reply := make(chan struct{})
	task := func() {
		fn()
		close(reply)
	}

	select {
	case r.events <- task:
	case <-r.quit:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	if active {
		r.touch()
	}

	select {
	case <-reply:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// post queues fn without waiting. It is dropped once the runner is closing.
func (r *Runner) post(fn func()) {
	select {
	case r.events <- fn:
	case <-r.quit:
	}
}

func (r *Runner) touch() {
	r.lastActive.Store(r.opts.Clock.Now().UnixNano())
}

func (r *Runner) navigate(ctx context.Context, move func() bool) (Snapshot, error) {
	var snap Snapshot
	err := r.exec(ctx, func() {
		r.cancelAdvance()
		if move() {
			r.publish(EventState)
		}
		snap = r.snapshot()
	})
	return snap, err
}

func (r *Runner) onTick() {
	if r.session.Tick() {
		r.onFinalized()
		return
	}
	r.publish(EventTick)
}

// onFinalized runs exactly once per finalization, whichever path caused it.
func (r *Runner) onFinalized() {
	r.stopTimer()
	r.cancelAdvance()
	r.publish(EventFinalized)

	out := Outcome{
		SessionID:  r.id,
		Reason:     r.session.Reason(),
		Elapsed:    r.session.Elapsed(),
		Duration:   r.session.Duration(),
		Score:      r.session.Score(),
		Items:      r.session.Items(),
		FinishedAt: r.opts.Clock.Now(),
	}

	r.log.Info().
		Str("reason", string(out.Reason)).
		Int("correct", out.Score.Correct).
		Int("total", out.Score.Total).
		Int("elapsed", out.Elapsed).
		Msg("Session finalized")

	if r.opts.OnFinalize != nil {
		r.opts.OnFinalize(out)
	}
}

func (r *Runner) startTimer() {
	if r.ticker != nil || r.session.Finalized() {
		return
	}
	r.ticker = r.opts.Clock.NewTicker(r.opts.TickInterval)
}

func (r *Runner) stopTimer() {
	if r.ticker == nil {
		return
	}
	r.ticker.Stop()
	r.ticker = nil
}

// scheduleAdvance arms a one-shot GoNext for item from. The callback only
// applies if it is still the latest scheduled advance, the session is live
// and the player is still on item from.
func (r *Runner) scheduleAdvance(from int) {
	r.advanceSeq++
	seq := r.advanceSeq

	r.advance = r.opts.Clock.AfterFunc(r.opts.AutoNextDelay, func() {
		r.post(func() {
			if seq != r.advanceSeq || r.session.Finalized() || r.session.Index() != from {
				return
			}
			r.advance = nil
			if r.session.GoNext() {
				r.publish(EventState)
			}
		})
	})
}

func (r *Runner) cancelAdvance() {
	r.advanceSeq++
	if r.advance != nil {
		r.advance.Stop()
		r.advance = nil
	}
}

func (r *Runner) publish(t EventType) {
	if len(r.subs) == 0 {
		return
	}
	ev := Event{Type: t, Snapshot: r.snapshot()}
	for _, ch := range r.subs {
		select {
		case ch <- ev:
		default:
			// Slow subscriber; it catches up on the next event.
		}
	}
}

func (r *Runner) shutdown() {
	r.stopTimer()
	r.cancelAdvance()
	r.publish(EventClosed)
	for id, ch := range r.subs {
		delete(r.subs, id)
		close(ch)
	}
}

func (r *Runner) snapshot() Snapshot {
	cur := r.session.Current()
	snap := Snapshot{
		ID:               r.id,
		Index:            r.session.Index(),
		Total:            r.session.Len(),
		Current:          cur.Question.ForPlayer(),
		SelectedOptionID: cur.SelectedOptionID,
		Answered:         r.session.AnsweredFlags(),
		AnsweredCount:    r.session.AnsweredCount(),
		AllAnswered:      r.session.AllAnswered(),
		ElapsedSeconds:   r.session.Elapsed(),
		DurationSeconds:  r.session.Duration(),
		RemainingSeconds: r.session.Remaining(),
		Finalized:        r.session.Finalized(),
		FinalizeReason:   r.session.Reason(),
		AutoNext:         r.autoNext,
		TimerRunning:     r.ticker != nil,
	}
	if snap.Finalized {
		sc := r.session.Score()
		snap.Score = &sc
	}
	return snap
}
