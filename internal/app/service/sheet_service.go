package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"bildung/internal/common"
	"bildung/internal/domain/model"
	"bildung/internal/domain/repository"

	"github.com/google/uuid"
)

type SheetService struct {
	sheets repository.SheetRepository
}

func NewSheetService(sheets repository.SheetRepository) *SheetService {
	return &SheetService{sheets: sheets}
}

func (s *SheetService) Create(ctx context.Context, ownerID int, title string, content json.RawMessage) (uuid.UUID, error) {
	if title == "" {
		return uuid.Nil, fmt.Errorf("sheet title must not be empty: %w", common.ErrBadRequest)
	}
	if len(content) == 0 {
		return uuid.Nil, fmt.Errorf("sheet content must not be empty: %w", common.ErrBadRequest)
	}
	return s.sheets.Create(ctx, ownerID, title, content, time.Now().UTC())
}

// CreateEmpty creates a sheet seeded with the default editor document.
func (s *SheetService) CreateEmpty(ctx context.Context, ownerID int, title string) (uuid.UUID, error) {
	return s.Create(ctx, ownerID, title, json.RawMessage(model.EmptySheetContent))
}

// Get returns the sheet regardless of ownership; trashed sheets remain
// readable until hard-deleted.
func (s *SheetService) Get(ctx context.Context, id uuid.UUID) (*model.Sheet, error) {
	return s.sheets.GetByID(ctx, id)
}

// GetForEdit returns the sheet only to its owner.
func (s *SheetService) GetForEdit(ctx context.Context, ownerID int, id uuid.UUID) (*model.Sheet, error) {
	sheet, err := s.sheets.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if sheet.Metadata.Owner.ID != ownerID {
		log.Printf("INFO: user %d is not owner of sheet %s", ownerID, id)
		return nil, fmt.Errorf("user %d is not owner of sheet %s: %w", ownerID, id, common.ErrForbidden)
	}
	return sheet, nil
}

func (s *SheetService) Update(ctx context.Context, ownerID int, id uuid.UUID, title string, content json.RawMessage) error {
	if title == "" {
		return fmt.Errorf("sheet title must not be empty: %w", common.ErrBadRequest)
	}
	return s.sheets.Update(ctx, ownerID, id, title, content, time.Now().UTC())
}

// Delete is two-phase: a live sheet is moved to the trash, a trashed sheet
// is removed for good.
func (s *SheetService) Delete(ctx context.Context, ownerID int, id uuid.UUID) (model.DeleteOutcome, error) {
	return s.sheets.Delete(ctx, ownerID, id)
}

func (s *SheetService) Restore(ctx context.Context, ownerID int, id uuid.UUID) error {
	return s.sheets.Restore(ctx, ownerID, id)
}

func (s *SheetService) ListAll(ctx context.Context, ownerID int) ([]model.SheetMetadata, error) {
	return s.sheets.ListAll(ctx, ownerID)
}

func (s *SheetService) ListTrash(ctx context.Context, ownerID int) ([]model.SheetMetadata, error) {
	return s.sheets.ListTrash(ctx, ownerID)
}

func (s *SheetService) ListRecent(ctx context.Context, ownerID int) ([]model.SheetMetadata, error) {
	return s.sheets.ListRecent(ctx, ownerID)
}

// ListUpdated returns sheets the student has started whose current version
// they have not yet snapshotted.
func (s *SheetService) ListUpdated(ctx context.Context, userID int) ([]model.SheetMetadata, error) {
	return s.sheets.ListUpdated(ctx, userID)
}
