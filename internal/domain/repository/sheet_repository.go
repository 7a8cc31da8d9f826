package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"bildung/internal/common"
	"bildung/internal/domain/model"

	"github.com/google/uuid"
)

// SheetRepository is the ownership-scoped store for sheet documents.
//
// All mutations encode the ownership predicate in the statement's WHERE
// clause, so the check and the write are a single atomic operation. When a
// conditional mutation matches no row, the repository runs one follow-up
// read purely to classify the failure as NotFound or Forbidden.
type SheetRepository interface {
	Create(ctx context.Context, ownerID int, title string, content json.RawMessage, now time.Time) (uuid.UUID, error)
	GetByID(ctx context.Context, id uuid.UUID) (*model.Sheet, error)
	GetTitle(ctx context.Context, id uuid.UUID) (string, error)
	Update(ctx context.Context, ownerID int, id uuid.UUID, title string, content json.RawMessage, changed time.Time) error
	Delete(ctx context.Context, ownerID int, id uuid.UUID) (model.DeleteOutcome, error)
	Restore(ctx context.Context, ownerID int, id uuid.UUID) error

	ListAll(ctx context.Context, ownerID int) ([]model.SheetMetadata, error)
	ListTrash(ctx context.Context, ownerID int) ([]model.SheetMetadata, error)
	ListRecent(ctx context.Context, ownerID int) ([]model.SheetMetadata, error)
	ListUpdated(ctx context.Context, userID int) ([]model.SheetMetadata, error)
}

type pgSheetRepository struct {
	db *sql.DB
}

func NewPgSheetRepository(db *sql.DB) SheetRepository {
	return &pgSheetRepository{db: db}
}

const sheetMetadataColumns = `s.id, s.title, u.id, u.username, s.created, s.changed, s.trashed`

func (r *pgSheetRepository) Create(ctx context.Context, ownerID int, title string, content json.RawMessage, now time.Time) (uuid.UUID, error) {
	query := `INSERT INTO sheets (title, owner_id, created, changed, content, trashed)
	          VALUES ($1, $2, $3, $3, $4, NULL)
	          RETURNING id`
	var id uuid.UUID
	err := r.db.QueryRowContext(ctx, query, title, ownerID, now, content).Scan(&id)
	if err != nil {
		return uuid.Nil, fmt.Errorf("pgSheetRepository.Create: %w", err)
	}
	return id, nil
}

// GetByID returns the sheet with its owner embedded. Trashed sheets remain
// readable until hard-deleted.
func (r *pgSheetRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Sheet, error) {
	query := `SELECT s.id, s.title, u.id, u.username, s.created, s.changed, s.trashed, s.content
	          FROM sheets s JOIN users u ON s.owner_id = u.id
	          WHERE s.id = $1`
	sheet := &model.Sheet{}
	m := &sheet.Metadata
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&m.ID, &m.Title, &m.Owner.ID, &m.Owner.Username, &m.Created, &m.Changed, &m.Trashed, &sheet.Content,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("sheet %s: %w", id, common.ErrNotFound)
		}
		return nil, fmt.Errorf("pgSheetRepository.GetByID: %w", err)
	}
	return sheet, nil
}

func (r *pgSheetRepository) GetTitle(ctx context.Context, id uuid.UUID) (string, error) {
	var title string
	err := r.db.QueryRowContext(ctx, `SELECT title FROM sheets WHERE id = $1`, id).Scan(&title)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", fmt.Errorf("sheet %s: %w", id, common.ErrNotFound)
		}
		return "", fmt.Errorf("pgSheetRepository.GetTitle: %w", err)
	}
	return title, nil
}

func (r *pgSheetRepository) Update(ctx context.Context, ownerID int, id uuid.UUID, title string, content json.RawMessage, changed time.Time) error {
	query := `UPDATE sheets SET title = $1, content = $2, changed = $3
	          WHERE id = $4 AND owner_id = $5`
	res, err := r.db.ExecContext(ctx, query, title, content, changed, id, ownerID)
	if err != nil {
		return fmt.Errorf("pgSheetRepository.Update: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return r.classifyMiss(ctx, ownerID, id)
	}
	return nil
}

// Delete implements the two-phase delete: the first call moves the sheet to
// the trash, the second removes the row for good. Dependent solutions keep
// their rows; the FK sets their sheet_id to NULL.
func (r *pgSheetRepository) Delete(ctx context.Context, ownerID int, id uuid.UUID) (model.DeleteOutcome, error) {
	trash := `UPDATE sheets SET trashed = $1 WHERE id = $2 AND owner_id = $3 AND trashed IS NULL`
	res, err := r.db.ExecContext(ctx, trash, time.Now().UTC(), id, ownerID)
	if err != nil {
		return "", fmt.Errorf("pgSheetRepository.Delete trash: %w", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return model.OutcomeTrashed, nil
	}

	del := `DELETE FROM sheets WHERE id = $1 AND owner_id = $2 AND trashed IS NOT NULL`
	res, err = r.db.ExecContext(ctx, del, id, ownerID)
	if err != nil {
		return "", fmt.Errorf("pgSheetRepository.Delete: %w", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return model.OutcomeDeleted, nil
	}
	return "", r.classifyMiss(ctx, ownerID, id)
}

func (r *pgSheetRepository) Restore(ctx context.Context, ownerID int, id uuid.UUID) error {
	query := `UPDATE sheets SET trashed = NULL WHERE id = $1 AND owner_id = $2`
	res, err := r.db.ExecContext(ctx, query, id, ownerID)
	if err != nil {
		return fmt.Errorf("pgSheetRepository.Restore: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return r.classifyMiss(ctx, ownerID, id)
	}
	return nil
}

// classifyMiss explains why a conditional mutation matched nothing.
func (r *pgSheetRepository) classifyMiss(ctx context.Context, ownerID int, id uuid.UUID) error {
	var actualOwner int
	err := r.db.QueryRowContext(ctx, `SELECT owner_id FROM sheets WHERE id = $1`, id).Scan(&actualOwner)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("sheet %s: %w", id, common.ErrNotFound)
		}
		return fmt.Errorf("pgSheetRepository.classifyMiss: %w", err)
	}
	if actualOwner != ownerID {
		log.Printf("INFO: user %d is not owner of sheet %s", ownerID, id)
		return fmt.Errorf("user %d is not owner of sheet %s: %w", ownerID, id, common.ErrForbidden)
	}
	// Row exists and is owned; the state predicate (e.g. trashed) was the
	// mismatch. Treat as not found in its requested state.
	return fmt.Errorf("sheet %s: %w", id, common.ErrNotFound)
}

func (r *pgSheetRepository) ListAll(ctx context.Context, ownerID int) ([]model.SheetMetadata, error) {
	query := `SELECT ` + sheetMetadataColumns + `
	          FROM sheets s JOIN users u ON s.owner_id = u.id
	          WHERE s.owner_id = $1 AND s.trashed IS NULL
	          ORDER BY s.title ASC`
	return r.listMetadata(ctx, "ListAll", query, ownerID)
}

func (r *pgSheetRepository) ListTrash(ctx context.Context, ownerID int) ([]model.SheetMetadata, error) {
	query := `SELECT ` + sheetMetadataColumns + `
	          FROM sheets s JOIN users u ON s.owner_id = u.id
	          WHERE s.owner_id = $1 AND s.trashed IS NOT NULL
	          ORDER BY s.trashed DESC`
	return r.listMetadata(ctx, "ListTrash", query, ownerID)
}

func (r *pgSheetRepository) ListRecent(ctx context.Context, ownerID int) ([]model.SheetMetadata, error) {
	query := `SELECT ` + sheetMetadataColumns + `
	          FROM sheets s JOIN users u ON s.owner_id = u.id
	          WHERE s.owner_id = $1 AND s.trashed IS NULL
	          ORDER BY s.changed DESC`
	return r.listMetadata(ctx, "ListRecent", query, ownerID)
}

// ListUpdated returns sheets the user has started but which have been edited
// since: a non-trashed solution exists below the sheet's current version and
// none at the current version.
func (r *pgSheetRepository) ListUpdated(ctx context.Context, userID int) ([]model.SheetMetadata, error) {
	query := `SELECT ` + sheetMetadataColumns + `
	          FROM sheets s JOIN users u ON s.owner_id = u.id
	          WHERE s.trashed IS NULL
	            AND EXISTS (
	              SELECT 1 FROM solutions sol
	              WHERE sol.trashed IS NULL AND sol.owner_id = $1
	                AND sol.sheet_id = s.id AND sol.sheet_version < s.changed)
	            AND NOT EXISTS (
	              SELECT 1 FROM solutions sol
	              WHERE sol.trashed IS NULL AND sol.owner_id = $1
	                AND sol.sheet_id = s.id AND sol.sheet_version = s.changed)
	          ORDER BY s.changed DESC`
	return r.listMetadata(ctx, "ListUpdated", query, userID)
}

func (r *pgSheetRepository) listMetadata(ctx context.Context, op, query string, args ...interface{}) ([]model.SheetMetadata, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("pgSheetRepository.%s query: %w", op, err)
	}
	defer rows.Close()

	sheets := []model.SheetMetadata{}
	for rows.Next() {
		var m model.SheetMetadata
		if err := rows.Scan(&m.ID, &m.Title, &m.Owner.ID, &m.Owner.Username, &m.Created, &m.Changed, &m.Trashed); err != nil {
			return nil, fmt.Errorf("pgSheetRepository.%s scan: %w", op, err)
		}
		sheets = append(sheets, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("pgSheetRepository.%s rows.Err: %w", op, err)
	}
	return sheets, nil
}
