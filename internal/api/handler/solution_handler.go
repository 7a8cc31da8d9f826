package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"bildung/internal/api/middleware"
	"bildung/internal/app/service"
	"bildung/internal/common"
	"bildung/internal/domain/model"

	"github.com/go-chi/chi/v5"
)

type SolutionHandler struct {
	solutionService *service.SolutionService
}

func NewSolutionHandler(solutionService *service.SolutionService) *SolutionHandler {
	return &SolutionHandler{solutionService: solutionService}
}

// RegisterSheetRoutes mounts the routes hanging off a sheet.
func (h *SolutionHandler) RegisterSheetRoutes(r chi.Router) {
	r.Group(func(teacher chi.Router) {
		teacher.Use(middleware.RequireRole(model.RoleTeacher))
		teacher.Get("/{sheetID}/solutions", h.listForSheet)
		teacher.Get("/{sheetID}/solutions/student/{studentID}", h.getLatestForTeacher)
		teacher.Get("/{sheetID}/solutions/student/{studentID}/{solutionID}", h.getForTeacher)
	})

	r.Group(func(student chi.Router) {
		student.Use(middleware.RequireRole(model.RoleStudent))
		student.Post("/{sheetID}/solve", h.startSolve)
		student.Get("/{sheetID}/solutions/my", h.getMyLatest)
		student.Get("/{sheetID}/solutions/my/all", h.listMyForSheet)
		student.Put("/{sheetID}/solutions/{solutionID}", h.updateSolution)
		student.Delete("/{sheetID}/solutions/{solutionID}", h.deleteSolution)
		student.Post("/{sheetID}/solutions/{solutionID}/restore", h.restoreSolution)
	})
}

// RegisterOverviewRoutes mounts the cross-sheet listings.
func (h *SolutionHandler) RegisterOverviewRoutes(r chi.Router) {
	r.Group(func(teacher chi.Router) {
		teacher.Use(middleware.RequireRole(model.RoleTeacher))
		teacher.Get("/solutions", h.listForSheetOwner)
	})

	r.Group(func(student chi.Router) {
		student.Use(middleware.RequireRole(model.RoleStudent))
		student.Get("/my/solutions", h.listMine)
		student.Get("/my/solutions/trash", h.listMyTrash)
		student.Get("/my/solutions/recent", h.listMyRecent)
	})
}

func (h *SolutionHandler) startSolve(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		common.RespondWithError(w, http.StatusUnauthorized, "Missing user context")
		return
	}
	sheetID, ok := sheetIDParam(w, r)
	if !ok {
		return
	}

	if err := h.solutionService.StartSolve(r.Context(), sheetID, user.ID); err != nil {
		common.RespondWithError(w, common.HTTPStatusFromError(err), err.Error())
		return
	}
	common.RespondNoContent(w)
}

func (h *SolutionHandler) getMyLatest(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		common.RespondWithError(w, http.StatusUnauthorized, "Missing user context")
		return
	}
	sheetID, ok := sheetIDParam(w, r)
	if !ok {
		return
	}

	solution, err := h.solutionService.GetLatest(r.Context(), sheetID, user.ID)
	if err != nil {
		common.RespondWithError(w, common.HTTPStatusFromError(err), err.Error())
		return
	}
	common.RespondWithJSON(w, http.StatusOK, solution)
}

type updateSolutionRequest struct {
	Content json.RawMessage `json:"content"`
}

func (h *SolutionHandler) updateSolution(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		common.RespondWithError(w, http.StatusUnauthorized, "Missing user context")
		return
	}
	sheetID, ok := sheetIDParam(w, r)
	if !ok {
		return
	}
	solutionID, ok := solutionIDParam(w, r)
	if !ok {
		return
	}

	var req updateSolutionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.RespondWithError(w, http.StatusBadRequest, "Invalid request payload: "+err.Error())
		return
	}

	if err := h.solutionService.Update(r.Context(), user.ID, sheetID, solutionID, req.Content); err != nil {
		common.RespondWithError(w, common.HTTPStatusFromError(err), err.Error())
		return
	}
	common.RespondNoContent(w)
}

func (h *SolutionHandler) deleteSolution(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		common.RespondWithError(w, http.StatusUnauthorized, "Missing user context")
		return
	}
	sheetID, ok := sheetIDParam(w, r)
	if !ok {
		return
	}
	solutionID, ok := solutionIDParam(w, r)
	if !ok {
		return
	}

	outcome, err := h.solutionService.Delete(r.Context(), user.ID, sheetID, solutionID)
	if err != nil {
		common.RespondWithError(w, common.HTTPStatusFromError(err), err.Error())
		return
	}
	common.RespondWithJSON(w, http.StatusOK, map[string]model.DeleteOutcome{"outcome": outcome})
}

func (h *SolutionHandler) restoreSolution(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		common.RespondWithError(w, http.StatusUnauthorized, "Missing user context")
		return
	}
	sheetID, ok := sheetIDParam(w, r)
	if !ok {
		return
	}
	solutionID, ok := solutionIDParam(w, r)
	if !ok {
		return
	}

	if err := h.solutionService.Restore(r.Context(), user.ID, sheetID, solutionID); err != nil {
		common.RespondWithError(w, common.HTTPStatusFromError(err), err.Error())
		return
	}
	common.RespondNoContent(w)
}

func (h *SolutionHandler) listForSheet(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		common.RespondWithError(w, http.StatusUnauthorized, "Missing user context")
		return
	}
	sheetID, ok := sheetIDParam(w, r)
	if !ok {
		return
	}

	solutions, err := h.solutionService.ListForSheet(r.Context(), user.ID, sheetID)
	if err != nil {
		common.RespondWithError(w, common.HTTPStatusFromError(err), err.Error())
		return
	}
	common.RespondWithJSON(w, http.StatusOK, solutions)
}

func (h *SolutionHandler) listMyForSheet(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		common.RespondWithError(w, http.StatusUnauthorized, "Missing user context")
		return
	}
	sheetID, ok := sheetIDParam(w, r)
	if !ok {
		return
	}

	solutions, err := h.solutionService.ListForSheetStudent(r.Context(), user.ID, sheetID)
	if err != nil {
		common.RespondWithError(w, common.HTTPStatusFromError(err), err.Error())
		return
	}
	common.RespondWithJSON(w, http.StatusOK, solutions)
}

func (h *SolutionHandler) getForTeacher(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		common.RespondWithError(w, http.StatusUnauthorized, "Missing user context")
		return
	}
	sheetID, ok := sheetIDParam(w, r)
	if !ok {
		return
	}
	studentID, err := strconv.Atoi(chi.URLParam(r, "studentID"))
	if err != nil {
		common.RespondWithError(w, http.StatusBadRequest, "Invalid student id")
		return
	}
	solutionID, ok := solutionIDParam(w, r)
	if !ok {
		return
	}

	solution, err := h.solutionService.GetForTeacher(r.Context(), user.ID, sheetID, studentID, solutionID)
	if err != nil {
		common.RespondWithError(w, common.HTTPStatusFromError(err), err.Error())
		return
	}
	common.RespondWithJSON(w, http.StatusOK, solution)
}

func (h *SolutionHandler) getLatestForTeacher(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		common.RespondWithError(w, http.StatusUnauthorized, "Missing user context")
		return
	}
	sheetID, ok := sheetIDParam(w, r)
	if !ok {
		return
	}
	studentID, err := strconv.Atoi(chi.URLParam(r, "studentID"))
	if err != nil {
		common.RespondWithError(w, http.StatusBadRequest, "Invalid student id")
		return
	}

	solution, err := h.solutionService.GetLatestForTeacher(r.Context(), user.ID, sheetID, studentID)
	if err != nil {
		common.RespondWithError(w, common.HTTPStatusFromError(err), err.Error())
		return
	}
	common.RespondWithJSON(w, http.StatusOK, solution)
}

func (h *SolutionHandler) listForSheetOwner(w http.ResponseWriter, r *http.Request) {
	h.respondList(w, r, h.solutionService.ListForSheetOwner)
}

func (h *SolutionHandler) listMine(w http.ResponseWriter, r *http.Request) {
	h.respondList(w, r, h.solutionService.ListMine)
}

func (h *SolutionHandler) listMyTrash(w http.ResponseWriter, r *http.Request) {
	h.respondList(w, r, h.solutionService.ListTrash)
}

func (h *SolutionHandler) listMyRecent(w http.ResponseWriter, r *http.Request) {
	h.respondList(w, r, h.solutionService.ListRecent)
}

func (h *SolutionHandler) respondList(w http.ResponseWriter, r *http.Request, list func(ctx context.Context, userID int) ([]model.SolutionMetadata, error)) {
	user, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		common.RespondWithError(w, http.StatusUnauthorized, "Missing user context")
		return
	}
	solutions, err := list(r.Context(), user.ID)
	if err != nil {
		common.RespondWithError(w, common.HTTPStatusFromError(err), err.Error())
		return
	}
	common.RespondWithJSON(w, http.StatusOK, solutions)
}

func solutionIDParam(w http.ResponseWriter, r *http.Request) (int, bool) {
	id, err := strconv.Atoi(chi.URLParam(r, "solutionID"))
	if err != nil {
		common.RespondWithError(w, http.StatusBadRequest, "Invalid solution id")
		return 0, false
	}
	return id, true
}
