package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/exstem-quiz/internal/model"
)

// ErrAttemptNotFound is returned when no attempt matches.
var ErrAttemptNotFound = errors.New("attempt not found")

// AttemptRepository handles quiz attempt history.
type AttemptRepository struct {
	pool *pgxpool.Pool
}

// NewAttemptRepository creates a new AttemptRepository.
func NewAttemptRepository(pool *pgxpool.Pool) *AttemptRepository {
	return &AttemptRepository{pool: pool}
}

// InsertBatch writes many attempts in one statement using UNNEST. Attempts
// whose id already exists are skipped, so a requeued batch is harmless.
func (r *AttemptRepository) InsertBatch(ctx context.Context, attempts []model.Attempt) error {
	n := len(attempts)
	if n == 0 {
		return nil
	}

	var (
		ids       = make([]uuid.UUID, n)
		players   = make([]uuid.UUID, n)
		sessions  = make([]uuid.UUID, n)
		modules   = make([]string, n)
		counts    = make([]int32, n)
		corrects  = make([]int32, n)
		totals    = make([]int32, n)
		accuracy  = make([]int32, n)
		elapsed   = make([]int32, n)
		durations = make([]int32, n)
		reasons   = make([]string, n)
		finished  = make([]time.Time, n)
		answers   = make([]string, n)
	)

	for i, a := range attempts {
		mods, err := json.Marshal(a.ModuleIDs)
		if err != nil {
			return fmt.Errorf("encode module ids: %w", err)
		}
		ans, err := json.Marshal(a.Answers)
		if err != nil {
			return fmt.Errorf("encode answers: %w", err)
		}
		ids[i] = a.ID
		players[i] = a.PlayerID
		sessions[i] = a.SessionID
		modules[i] = string(mods)
		counts[i] = int32(a.QuestionCount)
		corrects[i] = int32(a.CorrectCount)
		totals[i] = int32(a.Total)
		accuracy[i] = int32(a.AccuracyPercent)
		elapsed[i] = int32(a.ElapsedSeconds)
		durations[i] = int32(a.DurationSeconds)
		reasons[i] = string(a.FinalizeReason)
		finished[i] = a.FinishedAt
		answers[i] = string(ans)
	}

	_, err := r.pool.Exec(ctx, `
		INSERT INTO quiz_attempts (
			id, player_id, session_id, module_ids, question_count, correct_count,
			total, accuracy_percent, elapsed_seconds, duration_seconds,
			finalize_reason, finished_at, answers
		)
		SELECT
			u.id, u.player_id, u.session_id,
			ARRAY(SELECT jsonb_array_elements_text(u.module_ids::jsonb)),
			u.question_count, u.correct_count, u.total, u.accuracy_percent,
			u.elapsed_seconds, u.duration_seconds, u.finalize_reason,
			u.finished_at, u.answers::jsonb
		FROM UNNEST(
			$1::uuid[], $2::uuid[], $3::uuid[], $4::text[],
			$5::int[], $6::int[], $7::int[], $8::int[], $9::int[], $10::int[],
			$11::text[], $12::timestamptz[], $13::text[]
		) AS u (
			id, player_id, session_id, module_ids, question_count, correct_count,
			total, accuracy_percent, elapsed_seconds, duration_seconds,
			finalize_reason, finished_at, answers
		)
		ON CONFLICT (id) DO NOTHING`,
		ids, players, sessions, modules, counts, corrects, totals, accuracy,
		elapsed, durations, reasons, finished, answers,
	)
	return err
}

// Insert writes a single attempt. It is the fallback when a batch fails.
func (r *AttemptRepository) Insert(ctx context.Context, a *model.Attempt) error {
	answers, err := json.Marshal(a.Answers)
	if err != nil {
		return fmt.Errorf("encode answers: %w", err)
	}

	_, err = r.pool.Exec(ctx,
		`INSERT INTO quiz_attempts (
			id, player_id, session_id, module_ids, question_count, correct_count,
			total, accuracy_percent, elapsed_seconds, duration_seconds,
			finalize_reason, finished_at, answers
		 ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		 ON CONFLICT (id) DO NOTHING`,
		a.ID, a.PlayerID, a.SessionID, a.ModuleIDs, a.QuestionCount, a.CorrectCount,
		a.Total, a.AccuracyPercent, a.ElapsedSeconds, a.DurationSeconds,
		string(a.FinalizeReason), a.FinishedAt, answers,
	)
	return err
}

// ListByPlayerPaginated returns a page of a player's attempts, newest first,
// without per-item answers, and the player's total attempt count.
func (r *AttemptRepository) ListByPlayerPaginated(ctx context.Context, playerID uuid.UUID, limit, offset int) ([]model.Attempt, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM quiz_attempts WHERE player_id = $1`, playerID,
	).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.pool.Query(ctx,
		`SELECT id, player_id, session_id, module_ids, question_count, correct_count,
		        total, accuracy_percent, elapsed_seconds, duration_seconds,
		        finalize_reason, finished_at
		 FROM quiz_attempts
		 WHERE player_id = $1
		 ORDER BY finished_at DESC
		 LIMIT $2 OFFSET $3`, playerID, limit, offset,
	)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var attempts []model.Attempt
	for rows.Next() {
		var (
			a      model.Attempt
			reason string
		)
		if err := rows.Scan(&a.ID, &a.PlayerID, &a.SessionID, &a.ModuleIDs, &a.QuestionCount,
			&a.CorrectCount, &a.Total, &a.AccuracyPercent, &a.ElapsedSeconds,
			&a.DurationSeconds, &reason, &a.FinishedAt); err != nil {
			return nil, 0, err
		}
		a.FinalizeReason = model.FinalizeReason(reason)
		attempts = append(attempts, a)
	}
	return attempts, total, rows.Err()
}

// GetByID retrieves one of the player's attempts including its answers.
func (r *AttemptRepository) GetByID(ctx context.Context, playerID, id uuid.UUID) (*model.Attempt, error) {
	var (
		a       model.Attempt
		reason  string
		answers []byte
	)
	err := r.pool.QueryRow(ctx,
		`SELECT id, player_id, session_id, module_ids, question_count, correct_count,
		        total, accuracy_percent, elapsed_seconds, duration_seconds,
		        finalize_reason, finished_at, answers
		 FROM quiz_attempts
		 WHERE id = $1 AND player_id = $2`, id, playerID,
	).Scan(&a.ID, &a.PlayerID, &a.SessionID, &a.ModuleIDs, &a.QuestionCount,
		&a.CorrectCount, &a.Total, &a.AccuracyPercent, &a.ElapsedSeconds,
		&a.DurationSeconds, &reason, &a.FinishedAt, &answers)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAttemptNotFound
		}
		return nil, err
	}

	a.FinalizeReason = model.FinalizeReason(reason)
	if len(answers) > 0 {
		if err := json.Unmarshal(answers, &a.Answers); err != nil {
			return nil, fmt.Errorf("decode answers: %w", err)
		}
	}
	return &a, nil
}
