package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/stemsi/exstem-quiz/internal/model"
	"github.com/stemsi/exstem-quiz/internal/repository"
	"github.com/stemsi/exstem-quiz/internal/response"
	"github.com/xuri/excelize/v2"
)

// ErrAttemptNotFound is returned when the player has no such attempt.
var ErrAttemptNotFound = errors.New("attempt not found")

const exportPageSize = 500

// AttemptReader is the read side of the attempt history store.
type AttemptReader interface {
	ListByPlayerPaginated(ctx context.Context, playerID uuid.UUID, limit, offset int) ([]model.Attempt, int, error)
	GetByID(ctx context.Context, playerID, id uuid.UUID) (*model.Attempt, error)
}

// AttemptService exposes a player's finished quiz attempts.
type AttemptService struct {
	repo AttemptReader
}

// NewAttemptService creates a new AttemptService.
func NewAttemptService(repo AttemptReader) *AttemptService {
	return &AttemptService{repo: repo}
}

// List returns one page of the player's attempts, newest first.
func (s *AttemptService) List(ctx context.Context, playerID uuid.UUID, page, perPage int) ([]model.Attempt, *response.Pagination, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 10
	}
	if perPage > 100 {
		perPage = 100
	}

	limit := perPage
	offset := (page - 1) * perPage

	attempts, total, err := s.repo.ListByPlayerPaginated(ctx, playerID, limit, offset)
	if err != nil {
		return nil, nil, fmt.Errorf("list attempts: %w", err)
	}

	if attempts == nil {
		attempts = []model.Attempt{}
	}

	return attempts, response.NewPagination(page, perPage, total), nil
}

// Get returns one attempt with its per-item answers.
func (s *AttemptService) Get(ctx context.Context, playerID, id uuid.UUID) (*model.Attempt, error) {
	a, err := s.repo.GetByID(ctx, playerID, id)
	if err != nil {
		if errors.Is(err, repository.ErrAttemptNotFound) {
			return nil, ErrAttemptNotFound
		}
		return nil, fmt.Errorf("get attempt: %w", err)
	}
	return a, nil
}

// ExportXLSX renders every attempt of the player as a spreadsheet.
func (s *AttemptService) ExportXLSX(ctx context.Context, playerID uuid.UUID) (*bytes.Buffer, error) {
	var all []model.Attempt
	for offset := 0; ; offset += exportPageSize {
		page, total, err := s.repo.ListByPlayerPaginated(ctx, playerID, exportPageSize, offset)
		if err != nil {
			return nil, fmt.Errorf("list attempts: %w", err)
		}
		all = append(all, page...)
		if len(page) < exportPageSize || len(all) >= total {
			break
		}
	}
	return renderAttemptsXLSX(all)
}

var exportHeader = []any{
	"Finished At", "Modules", "Questions", "Correct", "Accuracy (%)",
	"Elapsed (s)", "Duration (s)", "Ended By",
}

func renderAttemptsXLSX(attempts []model.Attempt) (*bytes.Buffer, error) {
	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Attempts"
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return nil, fmt.Errorf("name sheet: %w", err)
	}
	if err := f.SetSheetRow(sheet, "A1", &exportHeader); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}

	for i, a := range attempts {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		row := []any{
			a.FinishedAt.Format("2006-01-02 15:04:05"),
			strings.Join(a.ModuleIDs, ", "),
			a.Total,
			a.CorrectCount,
			a.AccuracyPercent,
			a.ElapsedSeconds,
			a.DurationSeconds,
			string(a.FinalizeReason),
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return nil, fmt.Errorf("write row %d: %w", i+2, err)
		}
	}

	if err := f.SetColWidth(sheet, "A", "B", 22); err != nil {
		return nil, err
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("render xlsx: %w", err)
	}
	return buf, nil
}
