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

// SolutionRepository stores versioned solution snapshots. Like the sheet
// store, every mutation carries the ownership and coherence predicates in
// its WHERE clause; a missed conditional mutation is classified afterwards.
type SolutionRepository interface {
	Create(ctx context.Context, fresh model.FreshSolution) (int, error)
	GetByID(ctx context.Context, id int) (*model.Solution, error)
	GetLatest(ctx context.Context, sheetID uuid.UUID, userID int) (*model.Solution, error)
	Update(ctx context.Context, userID int, sheetID uuid.UUID, solutionID int, content json.RawMessage, changed time.Time) error
	Delete(ctx context.Context, userID int, sheetID uuid.UUID, solutionID int) (model.DeleteOutcome, error)
	Restore(ctx context.Context, userID int, sheetID uuid.UUID, solutionID int) error

	ListByOwner(ctx context.Context, userID int) ([]model.SolutionMetadata, error)
	ListTrash(ctx context.Context, userID int) ([]model.SolutionMetadata, error)
	ListRecent(ctx context.Context, userID int) ([]model.SolutionMetadata, error)
	ListBySheetOwner(ctx context.Context, sheetOwnerID int) ([]model.SolutionMetadata, error)
	ListForSheet(ctx context.Context, sheetID uuid.UUID) ([]model.SolutionMetadata, error)
	ListForSheetAndOwner(ctx context.Context, sheetID uuid.UUID, userID int) ([]model.SolutionMetadata, error)
}

type pgSolutionRepository struct {
	db *sql.DB
}

func NewPgSolutionRepository(db *sql.DB) SolutionRepository {
	return &pgSolutionRepository{db: db}
}

const solutionMetadataColumns = `sol.id, sol.title, sol.sheet_id, sol.sheet_version, u.id, u.username, sol.created, sol.changed, sol.trashed`

// Create inserts a fresh snapshot. A unique index on
// (sheet_id, owner_id, sheet_version) turns the start-solve race between two
// concurrent requests into an ErrConflict the caller treats as benign.
func (r *pgSolutionRepository) Create(ctx context.Context, fresh model.FreshSolution) (int, error) {
	query := `INSERT INTO solutions (title, sheet_id, sheet_version, owner_id, created, changed, trashed, content)
	          VALUES ($1, $2, $3, $4, $5, $6, NULL, $7)
	          RETURNING id`
	var id int
	err := r.db.QueryRowContext(ctx, query,
		fresh.Title, fresh.SheetID, fresh.SheetVersion, fresh.OwnerID, fresh.Created, fresh.Changed, fresh.Content,
	).Scan(&id)
	if err != nil {
		if common.IsUniqueViolation(err) {
			return 0, fmt.Errorf("solution snapshot already exists for sheet %s version %s: %w",
				fresh.SheetID, fresh.SheetVersion.Format(time.RFC3339Nano), common.ErrConflict)
		}
		return 0, fmt.Errorf("pgSolutionRepository.Create: %w", err)
	}
	return id, nil
}

func (r *pgSolutionRepository) GetByID(ctx context.Context, id int) (*model.Solution, error) {
	query := `SELECT sol.id, sol.title, sol.sheet_id, sol.sheet_version, u.id, u.username,
	                 sol.created, sol.changed, sol.trashed, sol.content
	          FROM solutions sol JOIN users u ON sol.owner_id = u.id
	          WHERE sol.id = $1`
	return r.scanSolution(r.db.QueryRowContext(ctx, query, id), "GetByID", fmt.Sprintf("solution %d", id))
}

// GetLatest returns the snapshot with the highest sheet_version for the
// (sheet, user) pair; that row is the one "continue working" resumes.
func (r *pgSolutionRepository) GetLatest(ctx context.Context, sheetID uuid.UUID, userID int) (*model.Solution, error) {
	query := `SELECT sol.id, sol.title, sol.sheet_id, sol.sheet_version, u.id, u.username,
	                 sol.created, sol.changed, sol.trashed, sol.content
	          FROM solutions sol JOIN users u ON sol.owner_id = u.id
	          WHERE sol.sheet_id = $1 AND sol.owner_id = $2
	          ORDER BY sol.sheet_version DESC
	          LIMIT 1`
	return r.scanSolution(r.db.QueryRowContext(ctx, query, sheetID, userID), "GetLatest",
		fmt.Sprintf("solution for sheet %s by user %d", sheetID, userID))
}

func (r *pgSolutionRepository) scanSolution(row *sql.Row, op, desc string) (*model.Solution, error) {
	solution := &model.Solution{}
	m := &solution.Metadata
	var sheetID uuid.NullUUID
	err := row.Scan(
		&m.ID, &m.Title, &sheetID, &m.SheetVersion, &m.Owner.ID, &m.Owner.Username,
		&m.Created, &m.Changed, &m.Trashed, &solution.Content,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", desc, common.ErrNotFound)
		}
		return nil, fmt.Errorf("pgSolutionRepository.%s: %w", op, err)
	}
	if sheetID.Valid {
		m.SheetID = &sheetID.UUID
	}
	return solution, nil
}

// Update stores new content and bumps changed. The sheet_version pin is
// deliberately untouched: content edits do not re-pin the snapshot.
func (r *pgSolutionRepository) Update(ctx context.Context, userID int, sheetID uuid.UUID, solutionID int, content json.RawMessage, changed time.Time) error {
	query := `UPDATE solutions SET content = $1, changed = $2
	          WHERE id = $3 AND owner_id = $4 AND sheet_id = $5`
	res, err := r.db.ExecContext(ctx, query, content, changed, solutionID, userID, sheetID)
	if err != nil {
		return fmt.Errorf("pgSolutionRepository.Update: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return r.classifyMiss(ctx, userID, sheetID, solutionID)
	}
	return nil
}

func (r *pgSolutionRepository) Delete(ctx context.Context, userID int, sheetID uuid.UUID, solutionID int) (model.DeleteOutcome, error) {
	trash := `UPDATE solutions SET trashed = $1
	          WHERE id = $2 AND owner_id = $3 AND sheet_id = $4 AND trashed IS NULL`
	res, err := r.db.ExecContext(ctx, trash, time.Now().UTC(), solutionID, userID, sheetID)
	if err != nil {
		return "", fmt.Errorf("pgSolutionRepository.Delete trash: %w", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return model.OutcomeTrashed, nil
	}

	del := `DELETE FROM solutions
	        WHERE id = $1 AND owner_id = $2 AND sheet_id = $3 AND trashed IS NOT NULL`
	res, err = r.db.ExecContext(ctx, del, solutionID, userID, sheetID)
	if err != nil {
		return "", fmt.Errorf("pgSolutionRepository.Delete: %w", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return model.OutcomeDeleted, nil
	}
	return "", r.classifyMiss(ctx, userID, sheetID, solutionID)
}

func (r *pgSolutionRepository) Restore(ctx context.Context, userID int, sheetID uuid.UUID, solutionID int) error {
	query := `UPDATE solutions SET trashed = NULL
	          WHERE id = $1 AND owner_id = $2 AND sheet_id = $3`
	res, err := r.db.ExecContext(ctx, query, solutionID, userID, sheetID)
	if err != nil {
		return fmt.Errorf("pgSolutionRepository.Restore: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return r.classifyMiss(ctx, userID, sheetID, solutionID)
	}
	return nil
}

// classifyMiss explains a missed conditional mutation: absent row is
// NotFound, foreign owner is Forbidden, a sheet mismatch is NotFound by the
// coherence rule (a solution must not be reachable through the wrong sheet).
func (r *pgSolutionRepository) classifyMiss(ctx context.Context, userID int, sheetID uuid.UUID, solutionID int) error {
	var ownerID int
	var actualSheet uuid.NullUUID
	err := r.db.QueryRowContext(ctx,
		`SELECT owner_id, sheet_id FROM solutions WHERE id = $1`, solutionID,
	).Scan(&ownerID, &actualSheet)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("solution %d: %w", solutionID, common.ErrNotFound)
		}
		return fmt.Errorf("pgSolutionRepository.classifyMiss: %w", err)
	}
	if ownerID != userID {
		log.Printf("INFO: user %d is not the owner of solution %d", userID, solutionID)
		return fmt.Errorf("user %d is not the owner of solution %d: %w", userID, solutionID, common.ErrForbidden)
	}
	if !actualSheet.Valid || actualSheet.UUID != sheetID {
		return fmt.Errorf("solution %d does not belong to sheet %s: %w", solutionID, sheetID, common.ErrNotFound)
	}
	return fmt.Errorf("solution %d: %w", solutionID, common.ErrNotFound)
}

func (r *pgSolutionRepository) ListByOwner(ctx context.Context, userID int) ([]model.SolutionMetadata, error) {
	query := `SELECT ` + solutionMetadataColumns + `
	          FROM solutions sol JOIN users u ON sol.owner_id = u.id
	          WHERE sol.owner_id = $1 AND sol.trashed IS NULL
	          ORDER BY sol.sheet_version DESC`
	return r.listMetadata(ctx, "ListByOwner", query, userID)
}

func (r *pgSolutionRepository) ListTrash(ctx context.Context, userID int) ([]model.SolutionMetadata, error) {
	query := `SELECT ` + solutionMetadataColumns + `
	          FROM solutions sol JOIN users u ON sol.owner_id = u.id
	          WHERE sol.owner_id = $1 AND sol.trashed IS NOT NULL
	          ORDER BY sol.trashed DESC`
	return r.listMetadata(ctx, "ListTrash", query, userID)
}

func (r *pgSolutionRepository) ListRecent(ctx context.Context, userID int) ([]model.SolutionMetadata, error) {
	query := `SELECT ` + solutionMetadataColumns + `
	          FROM solutions sol JOIN users u ON sol.owner_id = u.id
	          WHERE sol.owner_id = $1 AND sol.trashed IS NULL
	          ORDER BY sol.changed DESC`
	return r.listMetadata(ctx, "ListRecent", query, userID)
}

// ListBySheetOwner is the teacher overview: every live solution handed in
// against any of the teacher's live sheets.
func (r *pgSolutionRepository) ListBySheetOwner(ctx context.Context, sheetOwnerID int) ([]model.SolutionMetadata, error) {
	query := `SELECT ` + solutionMetadataColumns + `
	          FROM solutions sol
	          JOIN users u ON sol.owner_id = u.id
	          JOIN sheets s ON sol.sheet_id = s.id
	          WHERE s.owner_id = $1 AND s.trashed IS NULL AND sol.trashed IS NULL
	          ORDER BY sol.changed DESC, u.username ASC`
	return r.listMetadata(ctx, "ListBySheetOwner", query, sheetOwnerID)
}

func (r *pgSolutionRepository) ListForSheet(ctx context.Context, sheetID uuid.UUID) ([]model.SolutionMetadata, error) {
	query := `SELECT ` + solutionMetadataColumns + `
	          FROM solutions sol JOIN users u ON sol.owner_id = u.id
	          WHERE sol.sheet_id = $1 AND sol.trashed IS NULL
	          ORDER BY u.username ASC, sol.sheet_version DESC`
	return r.listMetadata(ctx, "ListForSheet", query, sheetID)
}

func (r *pgSolutionRepository) ListForSheetAndOwner(ctx context.Context, sheetID uuid.UUID, userID int) ([]model.SolutionMetadata, error) {
	query := `SELECT ` + solutionMetadataColumns + `
	          FROM solutions sol JOIN users u ON sol.owner_id = u.id
	          WHERE sol.sheet_id = $1 AND sol.owner_id = $2 AND sol.trashed IS NULL
	          ORDER BY sol.sheet_version DESC`
	return r.listMetadata(ctx, "ListForSheetAndOwner", query, sheetID, userID)
}

func (r *pgSolutionRepository) listMetadata(ctx context.Context, op, query string, args ...interface{}) ([]model.SolutionMetadata, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("pgSolutionRepository.%s query: %w", op, err)
	}
	defer rows.Close()

	solutions := []model.SolutionMetadata{}
	for rows.Next() {
		var m model.SolutionMetadata
		var sheetID uuid.NullUUID
		if err := rows.Scan(&m.ID, &m.Title, &sheetID, &m.SheetVersion, &m.Owner.ID, &m.Owner.Username,
			&m.Created, &m.Changed, &m.Trashed); err != nil {
			return nil, fmt.Errorf("pgSolutionRepository.%s scan: %w", op, err)
		}
		if sheetID.Valid {
			m.SheetID = &sheetID.UUID
		}
		solutions = append(solutions, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("pgSolutionRepository.%s rows.Err: %w", op, err)
	}
	return solutions, nil
}
