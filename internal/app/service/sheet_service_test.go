package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"bildung/internal/common"
	"bildung/internal/domain/model"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

var testUsernames = map[int]string{
	1: "lehrer1",
	2: "lehrer2",
	3: "schueler1",
	4: "schueler2",
}

const (
	teacherID      = 1
	otherTeacherID = 2
	studentID      = 3
	otherStudentID = 4
)

func setupSheetService(t *testing.T) (*SheetService, *fakeSheetRepo, *fakeSolutionRepo) {
	t.Helper()
	sheets, solutions := newFakeRepos(testUsernames)
	return NewSheetService(sheets), sheets, solutions
}

func TestSheetCreateGetRoundTrip(t *testing.T) {
	svc, _, _ := setupSheetService(t)
	content := json.RawMessage(`{"type": "doc", "content": []}`)

	id, err := svc.Create(context.Background(), teacherID, "Sortieralgorithmen", content)
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, id)

	sheet, err := svc.Get(context.Background(), id)
	require.NoError(t, err)
	require.Equal(t, "Sortieralgorithmen", sheet.Metadata.Title)
	require.Equal(t, teacherID, sheet.Metadata.Owner.ID)
	require.Equal(t, "lehrer1", sheet.Metadata.Owner.Username)
	require.JSONEq(t, string(content), string(sheet.Content))
	require.True(t, sheet.Metadata.Created.Equal(sheet.Metadata.Changed))
	require.Nil(t, sheet.Metadata.Trashed)
}

func TestSheetCreateEmptyTitleRejected(t *testing.T) {
	svc, _, _ := setupSheetService(t)

	_, err := svc.Create(context.Background(), teacherID, "", json.RawMessage(`{}`))
	require.ErrorIs(t, err, common.ErrBadRequest)

	_, err = svc.Create(context.Background(), teacherID, "Titel", nil)
	require.ErrorIs(t, err, common.ErrBadRequest)
}

func TestSheetCreateEmptySeedsDefaultDocument(t *testing.T) {
	svc, _, _ := setupSheetService(t)

	id, err := svc.CreateEmpty(context.Background(), teacherID, "Neues Blatt")
	require.NoError(t, err)

	sheet, err := svc.Get(context.Background(), id)
	require.NoError(t, err)
	require.JSONEq(t, model.EmptySheetContent, string(sheet.Content))
}

func TestSheetGetMissing(t *testing.T) {
	svc, _, _ := setupSheetService(t)

	_, err := svc.Get(context.Background(), uuid.New())
	require.ErrorIs(t, err, common.ErrNotFound)
}

func TestSheetGetForEdit(t *testing.T) {
	svc, _, _ := setupSheetService(t)
	id, err := svc.CreateEmpty(context.Background(), teacherID, "Blatt")
	require.NoError(t, err)

	_, err = svc.GetForEdit(context.Background(), teacherID, id)
	require.NoError(t, err)

	_, err = svc.GetForEdit(context.Background(), otherTeacherID, id)
	require.ErrorIs(t, err, common.ErrForbidden)
}

func TestSheetUpdateBumpsVersion(t *testing.T) {
	svc, _, _ := setupSheetService(t)
	id, err := svc.CreateEmpty(context.Background(), teacherID, "Blatt")
	require.NoError(t, err)
	created, err := svc.Get(context.Background(), id)
	require.NoError(t, err)

	err = svc.Update(context.Background(), teacherID, id, "Blatt v2", json.RawMessage(`{"v": 2}`))
	require.NoError(t, err)

	sheet, err := svc.Get(context.Background(), id)
	require.NoError(t, err)
	require.Equal(t, "Blatt v2", sheet.Metadata.Title)
	require.JSONEq(t, `{"v": 2}`, string(sheet.Content))
	require.False(t, sheet.Metadata.Changed.Before(created.Metadata.Changed))
	require.True(t, sheet.Metadata.Created.Equal(created.Metadata.Created))
}

func TestSheetUpdateByNonOwnerLeavesSheetUntouched(t *testing.T) {
	svc, _, _ := setupSheetService(t)
	id, err := svc.Create(context.Background(), teacherID, "Original", json.RawMessage(`{"v": 1}`))
	require.NoError(t, err)

	err = svc.Update(context.Background(), otherTeacherID, id, "Gekapert", json.RawMessage(`{"v": 666}`))
	require.ErrorIs(t, err, common.ErrForbidden)

	sheet, err := svc.Get(context.Background(), id)
	require.NoError(t, err)
	require.Equal(t, "Original", sheet.Metadata.Title)
	require.JSONEq(t, `{"v": 1}`, string(sheet.Content))
}

func TestSheetUpdateMissing(t *testing.T) {
	svc, _, _ := setupSheetService(t)

	err := svc.Update(context.Background(), teacherID, uuid.New(), "Titel", json.RawMessage(`{}`))
	require.ErrorIs(t, err, common.ErrNotFound)
}

func TestSheetDeleteTwoPhase(t *testing.T) {
	svc, _, _ := setupSheetService(t)
	id, err := svc.CreateEmpty(context.Background(), teacherID, "Blatt")
	require.NoError(t, err)

	outcome, err := svc.Delete(context.Background(), teacherID, id)
	require.NoError(t, err)
	require.Equal(t, model.OutcomeTrashed, outcome)

	// Trashed sheets stay readable and move from the live list to the trash.
	sheet, err := svc.Get(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, sheet.Metadata.Trashed)

	live, err := svc.ListAll(context.Background(), teacherID)
	require.NoError(t, err)
	require.Empty(t, live)

	trash, err := svc.ListTrash(context.Background(), teacherID)
	require.NoError(t, err)
	require.Len(t, trash, 1)

	outcome, err = svc.Delete(context.Background(), teacherID, id)
	require.NoError(t, err)
	require.Equal(t, model.OutcomeDeleted, outcome)

	_, err = svc.Get(context.Background(), id)
	require.ErrorIs(t, err, common.ErrNotFound)
}

func TestSheetDeleteByNonOwner(t *testing.T) {
	svc, _, _ := setupSheetService(t)
	id, err := svc.CreateEmpty(context.Background(), teacherID, "Blatt")
	require.NoError(t, err)

	_, err = svc.Delete(context.Background(), otherTeacherID, id)
	require.ErrorIs(t, err, common.ErrForbidden)

	sheet, err := svc.Get(context.Background(), id)
	require.NoError(t, err)
	require.Nil(t, sheet.Metadata.Trashed)
}

func TestSheetRestore(t *testing.T) {
	svc, _, _ := setupSheetService(t)
	id, err := svc.CreateEmpty(context.Background(), teacherID, "Blatt")
	require.NoError(t, err)

	_, err = svc.Delete(context.Background(), teacherID, id)
	require.NoError(t, err)
	err = svc.Restore(context.Background(), teacherID, id)
	require.NoError(t, err)

	sheet, err := svc.Get(context.Background(), id)
	require.NoError(t, err)
	require.Nil(t, sheet.Metadata.Trashed)

	live, err := svc.ListAll(context.Background(), teacherID)
	require.NoError(t, err)
	require.Len(t, live, 1)
}

func TestSheetListAllScopedToOwner(t *testing.T) {
	svc, _, _ := setupSheetService(t)
	_, err := svc.CreateEmpty(context.Background(), teacherID, "B-Blatt")
	require.NoError(t, err)
	_, err = svc.CreateEmpty(context.Background(), teacherID, "A-Blatt")
	require.NoError(t, err)
	_, err = svc.CreateEmpty(context.Background(), otherTeacherID, "Fremdes Blatt")
	require.NoError(t, err)

	list, err := svc.ListAll(context.Background(), teacherID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, "A-Blatt", list[0].Title)
	require.Equal(t, "B-Blatt", list[1].Title)
}

// ListUpdated must contain exactly the sheets the student has started whose
// current version they have not snapshotted yet.
func TestSheetListUpdated(t *testing.T) {
	svc, sheets, solutions := setupSheetService(t)
	solutionSvc := NewSolutionService(solutions, sheets)

	id, err := svc.Create(context.Background(), teacherID, "Blatt", json.RawMessage(`{"v": 1}`))
	require.NoError(t, err)

	// Not started yet: not listed.
	list, err := svc.ListUpdated(context.Background(), studentID)
	require.NoError(t, err)
	require.Empty(t, list)

	require.NoError(t, solutionSvc.StartSolve(context.Background(), id, studentID))

	// Snapshot is at the current version: not listed.
	list, err = svc.ListUpdated(context.Background(), studentID)
	require.NoError(t, err)
	require.Empty(t, list)

	sheets.sheets[id].Metadata.Changed = sheets.sheets[id].Metadata.Changed.Add(time.Minute)

	list, err = svc.ListUpdated(context.Background(), studentID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, id, list[0].ID)

	// A different student never started the sheet: not listed for them.
	list, err = svc.ListUpdated(context.Background(), otherStudentID)
	require.NoError(t, err)
	require.Empty(t, list)

	// Re-snapshotting the current version clears the entry.
	require.NoError(t, solutionSvc.StartSolve(context.Background(), id, studentID))
	list, err = svc.ListUpdated(context.Background(), studentID)
	require.NoError(t, err)
	require.Empty(t, list)
}
