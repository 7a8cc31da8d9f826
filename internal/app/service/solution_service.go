package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"bildung/internal/common"
	"bildung/internal/domain/model"
	"bildung/internal/domain/repository"

	"github.com/google/uuid"
)

type SolutionService struct {
	solutions repository.SolutionRepository
	sheets    repository.SheetRepository
}

func NewSolutionService(solutions repository.SolutionRepository, sheets repository.SheetRepository) *SolutionService {
	return &SolutionService{solutions: solutions, sheets: sheets}
}

// StartSolve ensures the student has a solution snapshot for the sheet's
// current version. If the latest snapshot already matches, nothing happens;
// if the sheet has been edited since (or no snapshot exists), a fresh copy
// of the sheet content is snapshotted, pinned to the sheet's changed
// timestamp. Idempotent.
func (s *SolutionService) StartSolve(ctx context.Context, sheetID uuid.UUID, userID int) error {
	sheet, err := s.sheets.GetByID(ctx, sheetID)
	if err != nil {
		return err
	}

	latest, err := s.solutions.GetLatest(ctx, sheetID, userID)
	switch {
	case err == nil:
		if latest.Metadata.SheetVersion.Before(sheet.Metadata.Changed) {
			return s.createSnapshot(ctx, sheet, userID)
		}
		return nil
	case errors.Is(err, common.ErrNotFound):
		return s.createSnapshot(ctx, sheet, userID)
	default:
		return err
	}
}

func (s *SolutionService) createSnapshot(ctx context.Context, sheet *model.Sheet, userID int) error {
	_, err := s.solutions.Create(ctx, model.NewFreshSolution(sheet, userID))
	if err != nil {
		// A concurrent StartSolve won the race to this version; the
		// snapshot exists, which is all we wanted.
		if errors.Is(err, common.ErrConflict) {
			return nil
		}
		return err
	}
	return nil
}

// GetLatest returns the student's current solution for the sheet.
func (s *SolutionService) GetLatest(ctx context.Context, sheetID uuid.UUID, userID int) (*model.Solution, error) {
	return s.solutions.GetLatest(ctx, sheetID, userID)
}

// GetMine returns the solution only to its owner, and only through the
// sheet it belongs to.
func (s *SolutionService) GetMine(ctx context.Context, userID int, sheetID uuid.UUID, solutionID int) (*model.Solution, error) {
	solution, err := s.solutions.GetByID(ctx, solutionID)
	if err != nil {
		return nil, err
	}
	if solution.Metadata.Owner.ID != userID {
		log.Printf("INFO: user %d is not the owner of solution %d", userID, solutionID)
		return nil, fmt.Errorf("user %d is not the owner of solution %d: %w", userID, solutionID, common.ErrForbidden)
	}
	if solution.Metadata.SheetID == nil || *solution.Metadata.SheetID != sheetID {
		return nil, fmt.Errorf("solution %d does not belong to sheet %s: %w", solutionID, sheetID, common.ErrNotFound)
	}
	return solution, nil
}

// Update stores new content. The sheet_version pin is untouched: editing a
// solution does not move it to a newer sheet version.
func (s *SolutionService) Update(ctx context.Context, userID int, sheetID uuid.UUID, solutionID int, content json.RawMessage) error {
	return s.solutions.Update(ctx, userID, sheetID, solutionID, content, time.Now().UTC())
}

func (s *SolutionService) Delete(ctx context.Context, userID int, sheetID uuid.UUID, solutionID int) (model.DeleteOutcome, error) {
	return s.solutions.Delete(ctx, userID, sheetID, solutionID)
}

func (s *SolutionService) Restore(ctx context.Context, userID int, sheetID uuid.UUID, solutionID int) error {
	return s.solutions.Restore(ctx, userID, sheetID, solutionID)
}

func (s *SolutionService) ListMine(ctx context.Context, userID int) ([]model.SolutionMetadata, error) {
	return s.solutions.ListByOwner(ctx, userID)
}

func (s *SolutionService) ListTrash(ctx context.Context, userID int) ([]model.SolutionMetadata, error) {
	return s.solutions.ListTrash(ctx, userID)
}

func (s *SolutionService) ListRecent(ctx context.Context, userID int) ([]model.SolutionMetadata, error) {
	return s.solutions.ListRecent(ctx, userID)
}

// ListForSheetOwner is the teacher's overview of all live solutions handed
// in against their sheets.
func (s *SolutionService) ListForSheetOwner(ctx context.Context, teacherID int) ([]model.SolutionMetadata, error) {
	return s.solutions.ListBySheetOwner(ctx, teacherID)
}

// ListForSheet lists every student's solutions for one sheet the teacher
// owns.
func (s *SolutionService) ListForSheet(ctx context.Context, teacherID int, sheetID uuid.UUID) ([]model.SolutionMetadata, error) {
	if err := s.checkSheetOwnership(ctx, teacherID, sheetID); err != nil {
		return nil, err
	}
	return s.solutions.ListForSheet(ctx, sheetID)
}

// ListForSheetStudent lists the student's own solutions for one sheet.
func (s *SolutionService) ListForSheetStudent(ctx context.Context, userID int, sheetID uuid.UUID) ([]model.SolutionMetadata, error) {
	return s.solutions.ListForSheetAndOwner(ctx, sheetID, userID)
}

// GetForTeacher resolves a specific solution for the owner of its sheet.
// Teachers can read solutions but there is deliberately no teacher write
// path.
func (s *SolutionService) GetForTeacher(ctx context.Context, teacherID int, sheetID uuid.UUID, studentID, solutionID int) (*model.Solution, error) {
	if err := s.checkSheetOwnership(ctx, teacherID, sheetID); err != nil {
		return nil, err
	}
	solution, err := s.solutions.GetByID(ctx, solutionID)
	if err != nil {
		return nil, err
	}
	if solution.Metadata.SheetID == nil || *solution.Metadata.SheetID != sheetID || solution.Metadata.Owner.ID != studentID {
		return nil, fmt.Errorf("solution %d does not match sheet %s or user %d: %w",
			solutionID, sheetID, studentID, common.ErrNotFound)
	}
	return solution, nil
}

// GetLatestForTeacher returns a student's current solution for a sheet the
// teacher owns.
func (s *SolutionService) GetLatestForTeacher(ctx context.Context, teacherID int, sheetID uuid.UUID, studentID int) (*model.Solution, error) {
	if err := s.checkSheetOwnership(ctx, teacherID, sheetID); err != nil {
		return nil, err
	}
	return s.solutions.GetLatest(ctx, sheetID, studentID)
}

func (s *SolutionService) checkSheetOwnership(ctx context.Context, userID int, sheetID uuid.UUID) error {
	sheet, err := s.sheets.GetByID(ctx, sheetID)
	if err != nil {
		return err
	}
	if sheet.Metadata.Owner.ID != userID {
		log.Printf("INFO: user %d is not owner of sheet %s", userID, sheetID)
		return fmt.Errorf("user %d is not owner of sheet %s: %w", userID, sheetID, common.ErrForbidden)
	}
	return nil
}
