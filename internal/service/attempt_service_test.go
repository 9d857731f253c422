package service

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/stemsi/exstem-quiz/internal/model"
	"github.com/stemsi/exstem-quiz/internal/repository"
)

type fakeAttemptReader struct {
	attempts []model.Attempt
}

func (f *fakeAttemptReader) ListByPlayerPaginated(_ context.Context, playerID uuid.UUID, limit, offset int) ([]model.Attempt, int, error) {
	var mine []model.Attempt
	for _, a := range f.attempts {
		if a.PlayerID == playerID {
			mine = append(mine, a)
		}
	}
	if offset >= len(mine) {
		return nil, len(mine), nil
	}
	end := min(offset+limit, len(mine))
	return mine[offset:end], len(mine), nil
}

func (f *fakeAttemptReader) GetByID(_ context.Context, playerID, id uuid.UUID) (*model.Attempt, error) {
	for _, a := range f.attempts {
		if a.ID == id && a.PlayerID == playerID {
			return &a, nil
		}
	}
	return nil, repository.ErrAttemptNotFound
}

func seedAttempts(player uuid.UUID, n int) *fakeAttemptReader {
	r := &fakeAttemptReader{}
	for i := 0; i < n; i++ {
		r.attempts = append(r.attempts, model.Attempt{
			ID:              uuid.New(),
			PlayerID:        player,
			ModuleIDs:       []string{"1", "2"},
			Total:           4,
			CorrectCount:    i % 5,
			AccuracyPercent: (i % 5) * 25,
			FinalizeReason:  model.FinalizeTimeout,
			FinishedAt:      time.Date(2026, 1, 1, 10, i, 0, 0, time.UTC),
		})
	}
	return r
}

func TestAttemptService_List(t *testing.T) {
	player := uuid.New()
	s := NewAttemptService(seedAttempts(player, 23))

	attempts, p, err := s.List(context.Background(), player, 3, 10)
	require.NoError(t, err)
	assert.Len(t, attempts, 3)
	assert.Equal(t, 23, p.TotalItems)
	assert.Equal(t, 3, p.TotalPages)

	attempts, p, err = s.List(context.Background(), uuid.New(), 0, 0)
	require.NoError(t, err)
	assert.NotNil(t, attempts)
	assert.Empty(t, attempts)
	assert.Equal(t, 1, p.Page)
	assert.Equal(t, 10, p.PerPage)
}

func TestAttemptService_Get(t *testing.T) {
	player := uuid.New()
	repo := seedAttempts(player, 1)
	s := NewAttemptService(repo)

	a, err := s.Get(context.Background(), player, repo.attempts[0].ID)
	require.NoError(t, err)
	assert.Equal(t, repo.attempts[0].ID, a.ID)

	_, err = s.Get(context.Background(), uuid.New(), repo.attempts[0].ID)
	require.ErrorIs(t, err, ErrAttemptNotFound)
}

func TestAttemptService_ExportXLSX(t *testing.T) {
	player := uuid.New()
	s := NewAttemptService(seedAttempts(player, 3))

	buf, err := s.ExportXLSX(context.Background(), player)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Attempts")
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, "Finished At", rows[0][0])
	assert.Equal(t, "1, 2", rows[1][1])
	assert.Equal(t, "TIMEOUT", rows[3][7])
}
