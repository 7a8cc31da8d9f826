package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"bildung/internal/common"
	"bildung/internal/domain/model"

	"github.com/google/uuid"
)

// In-memory repositories with the same contract as the Postgres
// implementations: ownership and state predicates decide whether a mutation
// hits, and a miss is classified as NotFound or Forbidden the same way.

// ── fake SessionRepository ──

type fakeSessionRepo struct {
	users    map[int]*model.User
	byName   map[string]int
	sessions map[string]model.Session
}

func newFakeSessionRepo() *fakeSessionRepo {
	return &fakeSessionRepo{
		users:    make(map[int]*model.User),
		byName:   make(map[string]int),
		sessions: make(map[string]model.Session),
	}
}

func (f *fakeSessionRepo) addUser(id int, username, passwordHash string, roles ...model.Role) {
	f.users[id] = &model.User{ID: id, Username: username, PasswordHash: passwordHash, Roles: roles}
	f.byName[username] = id
}

func (f *fakeSessionRepo) Create(_ context.Context, userID int, token string, expires time.Time) error {
	if _, ok := f.sessions[token]; ok {
		return fmt.Errorf("session token already exists: %w", common.ErrConflict)
	}
	f.sessions[token] = model.Session{Token: token, UserID: userID, Expires: expires}
	return nil
}

func (f *fakeSessionRepo) Renew(_ context.Context, token string, expires time.Time) error {
	if s, ok := f.sessions[token]; ok {
		s.Expires = expires
		f.sessions[token] = s
	}
	return nil
}

func (f *fakeSessionRepo) DeleteByUser(_ context.Context, userID int) error {
	for token, s := range f.sessions {
		if s.UserID == userID {
			delete(f.sessions, token)
		}
	}
	return nil
}

func (f *fakeSessionRepo) DeleteByToken(_ context.Context, token string) error {
	delete(f.sessions, token)
	return nil
}

func (f *fakeSessionRepo) FindUserByToken(_ context.Context, token string) (*model.User, error) {
	s, ok := f.sessions[token]
	if !ok {
		return nil, fmt.Errorf("session: %w", common.ErrNotFound)
	}
	user := *f.users[s.UserID]
	user.Session = &s
	return &user, nil
}

func (f *fakeSessionRepo) FindUserByUsername(_ context.Context, username string) (*model.User, error) {
	id, ok := f.byName[username]
	if !ok {
		return nil, fmt.Errorf("user %q: %w", username, common.ErrNotFound)
	}
	user := *f.users[id]
	for _, s := range f.sessions {
		if s.UserID == id {
			session := s
			user.Session = &session
			break
		}
	}
	return &user, nil
}

// ── fake SheetRepository ──

type fakeSheetRepo struct {
	sheets    map[uuid.UUID]*model.Sheet
	usernames map[int]string
	solutions *fakeSolutionRepo // for ListUpdated
}

func (f *fakeSheetRepo) Create(_ context.Context, ownerID int, title string, content json.RawMessage, now time.Time) (uuid.UUID, error) {
	id := uuid.New()
	f.sheets[id] = &model.Sheet{
		Metadata: model.SheetMetadata{
			ID:      id,
			Title:   title,
			Owner:   model.UserInfo{ID: ownerID, Username: f.usernames[ownerID]},
			Created: now,
			Changed: now,
		},
		Content: content,
	}
	return id, nil
}

func (f *fakeSheetRepo) GetByID(_ context.Context, id uuid.UUID) (*model.Sheet, error) {
	sheet, ok := f.sheets[id]
	if !ok {
		return nil, fmt.Errorf("sheet %s: %w", id, common.ErrNotFound)
	}
	return cloneSheet(sheet), nil
}

func (f *fakeSheetRepo) GetTitle(_ context.Context, id uuid.UUID) (string, error) {
	sheet, ok := f.sheets[id]
	if !ok {
		return "", fmt.Errorf("sheet %s: %w", id, common.ErrNotFound)
	}
	return sheet.Metadata.Title, nil
}

func (f *fakeSheetRepo) Update(_ context.Context, ownerID int, id uuid.UUID, title string, content json.RawMessage, changed time.Time) error {
	sheet, ok := f.sheets[id]
	if !ok || sheet.Metadata.Owner.ID != ownerID {
		return f.classifyMiss(ownerID, id)
	}
	sheet.Metadata.Title = title
	sheet.Content = content
	sheet.Metadata.Changed = changed
	return nil
}

func (f *fakeSheetRepo) Delete(_ context.Context, ownerID int, id uuid.UUID) (model.DeleteOutcome, error) {
	sheet, ok := f.sheets[id]
	if !ok || sheet.Metadata.Owner.ID != ownerID {
		return "", f.classifyMiss(ownerID, id)
	}
	if sheet.Metadata.Trashed == nil {
		now := time.Now().UTC()
		sheet.Metadata.Trashed = &now
		return model.OutcomeTrashed, nil
	}
	delete(f.sheets, id)
	return model.OutcomeDeleted, nil
}

func (f *fakeSheetRepo) Restore(_ context.Context, ownerID int, id uuid.UUID) error {
	sheet, ok := f.sheets[id]
	if !ok || sheet.Metadata.Owner.ID != ownerID {
		return f.classifyMiss(ownerID, id)
	}
	sheet.Metadata.Trashed = nil
	return nil
}

func (f *fakeSheetRepo) classifyMiss(ownerID int, id uuid.UUID) error {
	sheet, ok := f.sheets[id]
	if !ok {
		return fmt.Errorf("sheet %s: %w", id, common.ErrNotFound)
	}
	if sheet.Metadata.Owner.ID != ownerID {
		return fmt.Errorf("user %d is not owner of sheet %s: %w", ownerID, id, common.ErrForbidden)
	}
	return fmt.Errorf("sheet %s: %w", id, common.ErrNotFound)
}

func (f *fakeSheetRepo) ListAll(_ context.Context, ownerID int) ([]model.SheetMetadata, error) {
	list := f.collect(func(s *model.Sheet) bool {
		return s.Metadata.Owner.ID == ownerID && s.Metadata.Trashed == nil
	})
	sort.Slice(list, func(i, j int) bool { return list[i].Title < list[j].Title })
	return list, nil
}

func (f *fakeSheetRepo) ListTrash(_ context.Context, ownerID int) ([]model.SheetMetadata, error) {
	list := f.collect(func(s *model.Sheet) bool {
		return s.Metadata.Owner.ID == ownerID && s.Metadata.Trashed != nil
	})
	sort.Slice(list, func(i, j int) bool { return list[i].Trashed.After(*list[j].Trashed) })
	return list, nil
}

func (f *fakeSheetRepo) ListRecent(_ context.Context, ownerID int) ([]model.SheetMetadata, error) {
	list := f.collect(func(s *model.Sheet) bool {
		return s.Metadata.Owner.ID == ownerID && s.Metadata.Trashed == nil
	})
	sort.Slice(list, func(i, j int) bool { return list[i].Changed.After(list[j].Changed) })
	return list, nil
}

func (f *fakeSheetRepo) ListUpdated(_ context.Context, userID int) ([]model.SheetMetadata, error) {
	list := f.collect(func(s *model.Sheet) bool {
		if s.Metadata.Trashed != nil {
			return false
		}
		older, current := false, false
		for _, sol := range f.solutions.solutions {
			m := sol.Metadata
			if m.Trashed != nil || m.Owner.ID != userID || m.SheetID == nil || *m.SheetID != s.Metadata.ID {
				continue
			}
			if m.SheetVersion.Before(s.Metadata.Changed) {
				older = true
			}
			if m.SheetVersion.Equal(s.Metadata.Changed) {
				current = true
			}
		}
		return older && !current
	})
	sort.Slice(list, func(i, j int) bool { return list[i].Changed.After(list[j].Changed) })
	return list, nil
}

func (f *fakeSheetRepo) collect(keep func(*model.Sheet) bool) []model.SheetMetadata {
	list := []model.SheetMetadata{}
	for _, s := range f.sheets {
		if keep(s) {
			list = append(list, cloneSheet(s).Metadata)
		}
	}
	return list
}

func cloneSheet(s *model.Sheet) *model.Sheet {
	clone := *s
	if s.Metadata.Trashed != nil {
		t := *s.Metadata.Trashed
		clone.Metadata.Trashed = &t
	}
	return &clone
}

// ── fake SolutionRepository ──

type fakeSolutionRepo struct {
	solutions map[int]*model.Solution
	usernames map[int]string
	sheets    *fakeSheetRepo // for ListBySheetOwner
	nextID    int
}

func (f *fakeSolutionRepo) Create(_ context.Context, fresh model.FreshSolution) (int, error) {
	for _, sol := range f.solutions {
		m := sol.Metadata
		if m.SheetID != nil && *m.SheetID == fresh.SheetID &&
			m.Owner.ID == fresh.OwnerID && m.SheetVersion.Equal(fresh.SheetVersion) {
			return 0, fmt.Errorf("solution snapshot already exists for sheet %s: %w",
				fresh.SheetID, common.ErrConflict)
		}
	}
	f.nextID++
	sheetID := fresh.SheetID
	f.solutions[f.nextID] = &model.Solution{
		Metadata: model.SolutionMetadata{
			ID:           f.nextID,
			Title:        fresh.Title,
			SheetID:      &sheetID,
			SheetVersion: fresh.SheetVersion,
			Owner:        model.UserInfo{ID: fresh.OwnerID, Username: f.usernames[fresh.OwnerID]},
			Created:      fresh.Created,
			Changed:      fresh.Changed,
		},
		Content: fresh.Content,
	}
	return f.nextID, nil
}

func (f *fakeSolutionRepo) GetByID(_ context.Context, id int) (*model.Solution, error) {
	sol, ok := f.solutions[id]
	if !ok {
		return nil, fmt.Errorf("solution %d: %w", id, common.ErrNotFound)
	}
	return cloneSolution(sol), nil
}

func (f *fakeSolutionRepo) GetLatest(_ context.Context, sheetID uuid.UUID, userID int) (*model.Solution, error) {
	var latest *model.Solution
	for _, sol := range f.solutions {
		m := sol.Metadata
		if m.SheetID == nil || *m.SheetID != sheetID || m.Owner.ID != userID {
			continue
		}
		if latest == nil || m.SheetVersion.After(latest.Metadata.SheetVersion) {
			latest = sol
		}
	}
	if latest == nil {
		return nil, fmt.Errorf("solution for sheet %s by user %d: %w", sheetID, userID, common.ErrNotFound)
	}
	return cloneSolution(latest), nil
}

func (f *fakeSolutionRepo) Update(_ context.Context, userID int, sheetID uuid.UUID, solutionID int, content json.RawMessage, changed time.Time) error {
	sol, ok := f.solutions[solutionID]
	if !ok || !f.matches(sol, userID, sheetID) {
		return f.classifyMiss(userID, sheetID, solutionID)
	}
	sol.Content = content
	sol.Metadata.Changed = changed
	return nil
}

func (f *fakeSolutionRepo) Delete(_ context.Context, userID int, sheetID uuid.UUID, solutionID int) (model.DeleteOutcome, error) {
	sol, ok := f.solutions[solutionID]
	if !ok || !f.matches(sol, userID, sheetID) {
		return "", f.classifyMiss(userID, sheetID, solutionID)
	}
	if sol.Metadata.Trashed == nil {
		now := time.Now().UTC()
		sol.Metadata.Trashed = &now
		return model.OutcomeTrashed, nil
	}
	delete(f.solutions, solutionID)
	return model.OutcomeDeleted, nil
}

func (f *fakeSolutionRepo) Restore(_ context.Context, userID int, sheetID uuid.UUID, solutionID int) error {
	sol, ok := f.solutions[solutionID]
	if !ok || !f.matches(sol, userID, sheetID) {
		return f.classifyMiss(userID, sheetID, solutionID)
	}
	sol.Metadata.Trashed = nil
	return nil
}

func (f *fakeSolutionRepo) matches(sol *model.Solution, userID int, sheetID uuid.UUID) bool {
	m := sol.Metadata
	return m.Owner.ID == userID && m.SheetID != nil && *m.SheetID == sheetID
}

func (f *fakeSolutionRepo) classifyMiss(userID int, sheetID uuid.UUID, solutionID int) error {
	sol, ok := f.solutions[solutionID]
	if !ok {
		return fmt.Errorf("solution %d: %w", solutionID, common.ErrNotFound)
	}
	if sol.Metadata.Owner.ID != userID {
		return fmt.Errorf("user %d is not the owner of solution %d: %w", userID, solutionID, common.ErrForbidden)
	}
	if sol.Metadata.SheetID == nil || *sol.Metadata.SheetID != sheetID {
		return fmt.Errorf("solution %d does not belong to sheet %s: %w", solutionID, sheetID, common.ErrNotFound)
	}
	return fmt.Errorf("solution %d: %w", solutionID, common.ErrNotFound)
}

func (f *fakeSolutionRepo) ListByOwner(_ context.Context, userID int) ([]model.SolutionMetadata, error) {
	list := f.collect(func(m model.SolutionMetadata) bool {
		return m.Owner.ID == userID && m.Trashed == nil
	})
	sort.Slice(list, func(i, j int) bool { return list[i].SheetVersion.After(list[j].SheetVersion) })
	return list, nil
}

func (f *fakeSolutionRepo) ListTrash(_ context.Context, userID int) ([]model.SolutionMetadata, error) {
	list := f.collect(func(m model.SolutionMetadata) bool {
		return m.Owner.ID == userID && m.Trashed != nil
	})
	sort.Slice(list, func(i, j int) bool { return list[i].Trashed.After(*list[j].Trashed) })
	return list, nil
}

func (f *fakeSolutionRepo) ListRecent(_ context.Context, userID int) ([]model.SolutionMetadata, error) {
	list := f.collect(func(m model.SolutionMetadata) bool {
		return m.Owner.ID == userID && m.Trashed == nil
	})
	sort.Slice(list, func(i, j int) bool { return list[i].Changed.After(list[j].Changed) })
	return list, nil
}

func (f *fakeSolutionRepo) ListBySheetOwner(_ context.Context, sheetOwnerID int) ([]model.SolutionMetadata, error) {
	// Wired up by newFakeRepos; solutions against another owner's sheets or
	// trashed sheets are excluded.
	list := f.collect(func(m model.SolutionMetadata) bool {
		if m.Trashed != nil || m.SheetID == nil {
			return false
		}
		sheet, ok := f.sheets.sheets[*m.SheetID]
		return ok && sheet.Metadata.Owner.ID == sheetOwnerID && sheet.Metadata.Trashed == nil
	})
	sort.Slice(list, func(i, j int) bool { return list[i].Changed.After(list[j].Changed) })
	return list, nil
}

func (f *fakeSolutionRepo) ListForSheet(_ context.Context, sheetID uuid.UUID) ([]model.SolutionMetadata, error) {
	list := f.collect(func(m model.SolutionMetadata) bool {
		return m.SheetID != nil && *m.SheetID == sheetID && m.Trashed == nil
	})
	sort.Slice(list, func(i, j int) bool {
		if list[i].Owner.Username != list[j].Owner.Username {
			return list[i].Owner.Username < list[j].Owner.Username
		}
		return list[i].SheetVersion.After(list[j].SheetVersion)
	})
	return list, nil
}

func (f *fakeSolutionRepo) ListForSheetAndOwner(_ context.Context, sheetID uuid.UUID, userID int) ([]model.SolutionMetadata, error) {
	list := f.collect(func(m model.SolutionMetadata) bool {
		return m.SheetID != nil && *m.SheetID == sheetID && m.Owner.ID == userID && m.Trashed == nil
	})
	sort.Slice(list, func(i, j int) bool { return list[i].SheetVersion.After(list[j].SheetVersion) })
	return list, nil
}

func (f *fakeSolutionRepo) collect(keep func(model.SolutionMetadata) bool) []model.SolutionMetadata {
	list := []model.SolutionMetadata{}
	for _, sol := range f.solutions {
		if keep(sol.Metadata) {
			list = append(list, cloneSolution(sol).Metadata)
		}
	}
	return list
}

func cloneSolution(s *model.Solution) *model.Solution {
	clone := *s
	if s.Metadata.SheetID != nil {
		id := *s.Metadata.SheetID
		clone.Metadata.SheetID = &id
	}
	if s.Metadata.Trashed != nil {
		t := *s.Metadata.Trashed
		clone.Metadata.Trashed = &t
	}
	return &clone
}

func newFakeRepos(usernames map[int]string) (*fakeSheetRepo, *fakeSolutionRepo) {
	solutions := &fakeSolutionRepo{
		solutions: make(map[int]*model.Solution),
		usernames: usernames,
	}
	sheets := &fakeSheetRepo{
		sheets:    make(map[uuid.UUID]*model.Sheet),
		usernames: usernames,
		solutions: solutions,
	}
	solutions.sheets = sheets
	return sheets, solutions
}
