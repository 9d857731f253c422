package model

import (
	"time"

	"github.com/google/uuid"
)

// FinalizeReason tells how a quiz session ended.
type FinalizeReason string

const (
	FinalizeSubmitted FinalizeReason = "SUBMITTED"
	FinalizeTimeout   FinalizeReason = "TIMEOUT"
)

// Attempt is the persisted record of one finalized quiz run.
type Attempt struct {
	ID              uuid.UUID       `json:"id"`
	PlayerID        uuid.UUID       `json:"player_id"`
	SessionID       uuid.UUID       `json:"session_id"`
	ModuleIDs       []string        `json:"module_ids"`
	QuestionCount   int             `json:"question_count"`
	CorrectCount    int             `json:"correct_count"`
	Total           int             `json:"total"`
	AccuracyPercent int             `json:"accuracy_percent"`
	ElapsedSeconds  int             `json:"elapsed_seconds"`
	DurationSeconds int             `json:"duration_seconds"`
	FinalizeReason  FinalizeReason  `json:"finalize_reason"`
	FinishedAt      time.Time       `json:"finished_at"`
	Answers         []AttemptAnswer `json:"answers,omitempty"`
}

// AttemptAnswer is one item of a persisted attempt.
type AttemptAnswer struct {
	ItemIndex        int    `json:"item_index"`
	QuestionID       string `json:"question_id"`
	SelectedOptionID string `json:"selected_option_id,omitempty"`
	Correct          bool   `json:"correct"`
}
