package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"bildung/internal/api/middleware"
	"bildung/internal/app/service"
	"bildung/internal/common"
	"bildung/internal/domain/model"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gosimple/slug"
)

type SheetHandler struct {
	sheetService *service.SheetService
}

func NewSheetHandler(sheetService *service.SheetService) *SheetHandler {
	return &SheetHandler{sheetService: sheetService}
}

func (h *SheetHandler) RegisterRoutes(r chi.Router) {
	// Any authenticated user may view a sheet; everything else is scoped
	// by role.
	r.Get("/{sheetID}", h.getSheet)

	r.Group(func(teacher chi.Router) {
		teacher.Use(middleware.RequireRole(model.RoleTeacher))
		teacher.Get("/", h.listSheets)
		teacher.Post("/", h.createSheet)
		teacher.Post("/import", h.importSheet)
		teacher.Get("/trash", h.listTrash)
		teacher.Get("/recent", h.listRecent)
		teacher.Put("/{sheetID}", h.updateSheet)
		teacher.Delete("/{sheetID}", h.deleteSheet)
		teacher.Post("/{sheetID}/restore", h.restoreSheet)
		teacher.Get("/{sheetID}/export", h.exportSheet)
	})

	r.Group(func(student chi.Router) {
		student.Use(middleware.RequireRole(model.RoleStudent))
		student.Get("/updated", h.listUpdated)
	})
}

type createSheetRequest struct {
	Title   string          `json:"title"`
	Content json.RawMessage `json:"content,omitempty"`
}

func (h *SheetHandler) createSheet(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		common.RespondWithError(w, http.StatusUnauthorized, "Missing user context")
		return
	}

	var req createSheetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.RespondWithError(w, http.StatusBadRequest, "Invalid request payload: "+err.Error())
		return
	}

	id, err := h.sheetService.CreateEmpty(r.Context(), user.ID, req.Title)
	if err != nil {
		common.RespondWithError(w, common.HTTPStatusFromError(err), err.Error())
		return
	}
	common.RespondWithJSON(w, http.StatusCreated, map[string]string{"id": id.String()})
}

// importSheet creates a sheet from an exported document instead of the
// empty template.
func (h *SheetHandler) importSheet(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		common.RespondWithError(w, http.StatusUnauthorized, "Missing user context")
		return
	}

	var req createSheetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.RespondWithError(w, http.StatusBadRequest, "Invalid request payload: "+err.Error())
		return
	}

	id, err := h.sheetService.Create(r.Context(), user.ID, req.Title, req.Content)
	if err != nil {
		common.RespondWithError(w, common.HTTPStatusFromError(err), err.Error())
		return
	}
	common.RespondWithJSON(w, http.StatusCreated, map[string]string{"id": id.String()})
}

func (h *SheetHandler) getSheet(w http.ResponseWriter, r *http.Request) {
	id, ok := sheetIDParam(w, r)
	if !ok {
		return
	}
	sheet, err := h.sheetService.Get(r.Context(), id)
	if err != nil {
		common.RespondWithError(w, common.HTTPStatusFromError(err), err.Error())
		return
	}
	common.RespondWithJSON(w, http.StatusOK, sheet)
}

type updateSheetRequest struct {
	Title   string          `json:"title"`
	Content json.RawMessage `json:"content"`
}

func (h *SheetHandler) updateSheet(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		common.RespondWithError(w, http.StatusUnauthorized, "Missing user context")
		return
	}
	id, ok := sheetIDParam(w, r)
	if !ok {
		return
	}

	var req updateSheetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.RespondWithError(w, http.StatusBadRequest, "Invalid request payload: "+err.Error())
		return
	}

	if err := h.sheetService.Update(r.Context(), user.ID, id, req.Title, req.Content); err != nil {
		common.RespondWithError(w, common.HTTPStatusFromError(err), err.Error())
		return
	}
	common.RespondNoContent(w)
}

func (h *SheetHandler) deleteSheet(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		common.RespondWithError(w, http.StatusUnauthorized, "Missing user context")
		return
	}
	id, ok := sheetIDParam(w, r)
	if !ok {
		return
	}

	outcome, err := h.sheetService.Delete(r.Context(), user.ID, id)
	if err != nil {
		common.RespondWithError(w, common.HTTPStatusFromError(err), err.Error())
		return
	}
	common.RespondWithJSON(w, http.StatusOK, map[string]model.DeleteOutcome{"outcome": outcome})
}

func (h *SheetHandler) restoreSheet(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		common.RespondWithError(w, http.StatusUnauthorized, "Missing user context")
		return
	}
	id, ok := sheetIDParam(w, r)
	if !ok {
		return
	}

	if err := h.sheetService.Restore(r.Context(), user.ID, id); err != nil {
		common.RespondWithError(w, common.HTTPStatusFromError(err), err.Error())
		return
	}
	common.RespondNoContent(w)
}

// exportSheet serves the owner's sheet as a JSON download.
func (h *SheetHandler) exportSheet(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		common.RespondWithError(w, http.StatusUnauthorized, "Missing user context")
		return
	}
	id, ok := sheetIDParam(w, r)
	if !ok {
		return
	}

	sheet, err := h.sheetService.GetForEdit(r.Context(), user.ID, id)
	if err != nil {
		common.RespondWithError(w, common.HTTPStatusFromError(err), err.Error())
		return
	}

	w.Header().Set("Content-Disposition", `attachment; filename="`+slug.Make(sheet.Metadata.Title)+`.json"`)
	common.RespondWithJSON(w, http.StatusOK, sheet)
}

func (h *SheetHandler) listSheets(w http.ResponseWriter, r *http.Request) {
	h.respondList(w, r, h.sheetService.ListAll)
}

func (h *SheetHandler) listTrash(w http.ResponseWriter, r *http.Request) {
	h.respondList(w, r, h.sheetService.ListTrash)
}

func (h *SheetHandler) listRecent(w http.ResponseWriter, r *http.Request) {
	h.respondList(w, r, h.sheetService.ListRecent)
}

func (h *SheetHandler) listUpdated(w http.ResponseWriter, r *http.Request) {
	h.respondList(w, r, h.sheetService.ListUpdated)
}

func (h *SheetHandler) respondList(w http.ResponseWriter, r *http.Request, list func(ctx context.Context, userID int) ([]model.SheetMetadata, error)) {
	user, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		common.RespondWithError(w, http.StatusUnauthorized, "Missing user context")
		return
	}
	sheets, err := list(r.Context(), user.ID)
	if err != nil {
		common.RespondWithError(w, common.HTTPStatusFromError(err), err.Error())
		return
	}
	common.RespondWithJSON(w, http.StatusOK, sheets)
}

func sheetIDParam(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "sheetID"))
	if err != nil {
		common.RespondWithError(w, http.StatusBadRequest, "Invalid sheet id")
		return uuid.Nil, false
	}
	return id, true
}
