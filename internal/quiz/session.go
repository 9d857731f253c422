// Package quiz holds the quiz session state machine: answer tracking,
// bounded navigation, the elapsed-time budget and scoring.
package quiz

import (
	"errors"

	"github.com/stemsi/exstem-quiz/internal/model"
)

// DefaultSecondsPerQuestion is the time budget granted per requested question.
const DefaultSecondsPerQuestion = 120

var (
	// ErrOutOfRange is returned by GoTo for a target outside [0, Len()).
	ErrOutOfRange = errors.New("quiz: item index out of range")
	// ErrUnknownOption is returned when an option ID does not belong to the item.
	ErrUnknownOption = errors.New("quiz: option does not belong to item")
	// ErrNoQuestions is returned when a session would have no items.
	ErrNoQuestions = errors.New("quiz: session needs at least one question")
	// ErrInvalidCount is returned for a non-positive requested question count.
	ErrInvalidCount = errors.New("quiz: requested count must be positive")
)

// Item pairs a question with the player's selection. An empty
// SelectedOptionID means the item is unanswered.
type Item struct {
	Question         model.Question
	SelectedOptionID string
}

// Answered reports whether a selection is present.
func (it Item) Answered() bool {
	return it.SelectedOptionID != ""
}

// HasOption reports whether optionID is one of the question's options.
func (it Item) HasOption(optionID string) bool {
	if optionID == "" {
		return false
	}
	for _, o := range it.Question.Options {
		if o.ID == optionID {
			return true
		}
	}
	return false
}

// Correct reports whether the selection matches the recorded answer.
// Unanswered items are never correct.
func (it Item) Correct() bool {
	return it.Answered() && it.SelectedOptionID == it.Question.Answer
}

// Session is one quiz attempt. The item sequence is fixed at construction.
// Session is not safe for concurrent use; Runner serializes access.
type Session struct {
	items     []Item
	index     int
	elapsed   int
	duration  int
	finalized bool
	reason    model.FinalizeReason
}

// NewSession builds a session over questions. The time budget is
// requestedCount × secondsPerQuestion and does not depend on how many
// questions the source actually returned.
func NewSession(questions []model.Question, requestedCount, secondsPerQuestion int) (*Session, error) {
	if len(questions) == 0 {
		return nil, ErrNoQuestions
	}
	if requestedCount < 1 {
		return nil, ErrInvalidCount
	}
	if secondsPerQuestion < 1 {
		secondsPerQuestion = DefaultSecondsPerQuestion
	}

	items := make([]Item, len(questions))
	for i, q := range questions {
		items[i] = Item{Question: q}
	}

	return &Session{
		items:    items,
		duration: requestedCount * secondsPerQuestion,
	}, nil
}

func (s *Session) Len() int { return len(s.items) }

func (s *Session) Index() int { return s.index }

func (s *Session) Elapsed() int { return s.elapsed }

func (s *Session) Duration() int { return s.duration }

func (s *Session) Finalized() bool { return s.finalized }

func (s *Session) Reason() model.FinalizeReason { return s.reason }

// Current returns the item at the current index.
func (s *Session) Current() Item { return s.items[s.index] }

// Score can be computed at any time; it is final once the session is.
func (s *Session) Score() Score { return ScoreItems(s.items) }

func (s *Session) Review() []ReviewItem { return ReviewItems(s.items) }

func (s *Session) Item(i int) (Item, bool) {
	if !s.inRange(i) {
		return Item{}, false
	}
	return s.items[i], true
}

func (s *Session) inRange(i int) bool { return i >= 0 && i < len(s.items) }

// Remaining returns the unspent part of the time budget, never negative.
func (s *Session) Remaining() int {
	if r := s.duration - s.elapsed; r > 0 {
		return r
	}
	return 0
}

// Items returns a copy of the item sequence.
func (s *Session) Items() []Item {
	out := make([]Item, len(s.items))
	copy(out, s.items)
	return out
}

// SelectAnswer sets or replaces the selection of item i. It is a no-op when
// the session is finalized, i is out of range or optionID is not one of the
// item's options. The return value reports whether the selection was applied.
func (s *Session) SelectAnswer(i int, optionID string) bool {
	if s.finalized || !s.inRange(i) {
		return false
	}
	if !s.items[i].HasOption(optionID) {
		return false
	}
	s.items[i].SelectedOptionID = optionID
	return true
}

// ClearAnswer removes the selection of item i.
func (s *Session) ClearAnswer(i int) bool {
	if s.finalized || !s.inRange(i) || !s.items[i].Answered() {
		return false
	}
	s.items[i].SelectedOptionID = ""
	return true
}

func (s *Session) IsAnswered(i int) bool {
	return s.inRange(i) && s.items[i].Answered()
}

// AllAnswered gates manual submission only.
func (s *Session) AllAnswered() bool {
	for _, it := range s.items {
		if !it.Answered() {
			return false
		}
	}
	return true
}

func (s *Session) AnsweredCount() int {
	n := 0
	for _, it := range s.items {
		if it.Answered() {
			n++
		}
	}
	return n
}

// AnsweredFlags returns one flag per item, for progress display.
func (s *Session) AnsweredFlags() []bool {
	flags := make([]bool, len(s.items))
	for i, it := range s.items {
		flags[i] = it.Answered()
	}
	return flags
}

// GoPrev moves one item back, stopping at the first item.
func (s *Session) GoPrev() bool {
	if s.finalized || s.index == 0 {
		return false
	}
	s.index--
	return true
}

// GoNext moves one item forward, stopping at the last item.
func (s *Session) GoNext() bool {
	if s.finalized || s.index >= len(s.items)-1 {
		return false
	}
	s.index++
	return true
}

// GoTo jumps to item i. Targets outside the sequence are rejected with
// ErrOutOfRange and leave the index untouched.
func (s *Session) GoTo(i int) error {
	if !s.inRange(i) {
		return ErrOutOfRange
	}
	if s.finalized {
		return nil
	}
	s.index = i
	return nil
}

// Submit finalizes the session when every item is answered. Otherwise, or
// when already finalized, it does nothing and returns false.
func (s *Session) Submit() bool {
	if s.finalized || !s.AllAnswered() {
		return false
	}
	s.finalize(model.FinalizeSubmitted)
	return true
}

// Tick adds one time unit. It returns true only on the tick that exhausts
// the budget and finalizes the session, regardless of completeness.
func (s *Session) Tick() bool {
	if s.finalized {
		return false
	}
	s.elapsed++
	if s.elapsed >= s.duration {
		s.finalize(model.FinalizeTimeout)
		return true
	}
	return false
}

// Restart clears every selection and resets index, elapsed time and the
// finalized flag. Questions are kept as loaded.
func (s *Session) Restart() {
	for i := range s.items {
		s.items[i].SelectedOptionID = ""
	}
	s.index = 0
	s.elapsed = 0
	s.finalized = false
	s.reason = ""
}

func (s *Session) finalize(reason model.FinalizeReason) {
	s.finalized = true
	s.reason = reason
}
