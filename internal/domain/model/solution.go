package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Solution is a student's snapshot of work against one sheet version.
// SheetID is nullable: hard-deleting a sheet keeps its solutions as
// dangling historical records.
type Solution struct {
	Metadata SolutionMetadata `json:"metadata"`
	Content  json.RawMessage  `json:"content"`
}

type SolutionMetadata struct {
	ID           int        `json:"id"`
	Title        string     `json:"title"`
	SheetID      *uuid.UUID `json:"sheet_id"`
	SheetVersion time.Time  `json:"sheet_version"`
	Owner        UserInfo   `json:"owner"`
	Created      time.Time  `json:"created"`
	Changed      time.Time  `json:"changed"`
	Trashed      *time.Time `json:"trashed"`
}

// FreshSolution is the insert payload for a new snapshot: title and content
// copied from the sheet, version pinned to the sheet's Changed timestamp.
type FreshSolution struct {
	Title        string
	SheetID      uuid.UUID
	SheetVersion time.Time
	OwnerID      int
	Created      time.Time
	Changed      time.Time
	Content      json.RawMessage
}

// NewFreshSolution snapshots a sheet for the given student.
func NewFreshSolution(sheet *Sheet, userID int) FreshSolution {
	now := time.Now().UTC()
	return FreshSolution{
		Title:        sheet.Metadata.Title,
		SheetID:      sheet.Metadata.ID,
		SheetVersion: sheet.Metadata.Changed,
		OwnerID:      userID,
		Created:      now,
		Changed:      now,
		Content:      sheet.Content,
	}
}
