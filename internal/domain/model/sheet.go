package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Sheet is a teacher-authored document. Its version is the Changed
// timestamp: every title or content mutation bumps it, and solutions pin
// themselves to the value current at snapshot time.
type Sheet struct {
	Metadata SheetMetadata   `json:"metadata"`
	Content  json.RawMessage `json:"content"`
}

type SheetMetadata struct {
	ID      uuid.UUID  `json:"id"`
	Title   string     `json:"title"`
	Owner   UserInfo   `json:"owner"`
	Created time.Time  `json:"created"`
	Changed time.Time  `json:"changed"`
	Trashed *time.Time `json:"trashed"`
}

// EmptySheetContent is the document seeded into a freshly created sheet.
const EmptySheetContent = `{"type": "doc", "content": [{"type": "paragraph", "content": [], "marks": []}], "marks": []}`

// DeleteOutcome distinguishes the two phases of deletion: the first call
// moves the resource to the trash, the second removes it for good.
type DeleteOutcome string

const (
	OutcomeTrashed DeleteOutcome = "trashed"
	OutcomeDeleted DeleteOutcome = "deleted"
)
