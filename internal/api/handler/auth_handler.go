package handler

import (
	"encoding/json"
	"net/http"

	"bildung/internal/api/middleware"
	"bildung/internal/app/service"
	"bildung/internal/common"
	"bildung/internal/common/security"
	"bildung/internal/domain/model"

	"github.com/go-chi/chi/v5"
)

type AuthHandler struct {
	authService *service.AuthService
}

func NewAuthHandler(authService *service.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

func (h *AuthHandler) RegisterRoutes(r chi.Router) {
	r.Post("/login", h.login)
	r.Group(func(authed chi.Router) {
		authed.Use(middleware.Authenticator(h.authService))
		authed.Post("/logout", h.logout)
		authed.Get("/me", h.me)
	})
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	ID       int          `json:"id"`
	Username string       `json:"username"`
	Roles    []model.Role `json:"roles"`
}

func (h *AuthHandler) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.RespondWithError(w, http.StatusBadRequest, "Invalid request payload: "+err.Error())
		return
	}
	if req.Username == "" || req.Password == "" {
		common.RespondWithError(w, http.StatusBadRequest, "Username and password are required")
		return
	}

	token, err := h.authService.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		common.RespondWithError(w, common.HTTPStatusFromError(err), "Internal server error")
		return
	}
	if token == "" {
		// Not an error condition: bad credentials get a uniform answer.
		common.RespondWithError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	if err := security.SetSessionCookie(w, token); err != nil {
		common.RespondWithError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	user, err := h.authService.ValidateSession(r.Context(), token)
	if err != nil || user == nil {
		common.RespondWithError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	common.RespondWithJSON(w, http.StatusOK, loginResponse{ID: user.ID, Username: user.Username, Roles: user.Roles})
}

func (h *AuthHandler) logout(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		common.RespondWithError(w, http.StatusUnauthorized, "Missing user context")
		return
	}

	security.ClearSessionCookie(w)
	if err := h.authService.Logout(r.Context(), user.ID); err != nil {
		common.RespondWithError(w, common.HTTPStatusFromError(err), "Internal server error")
		return
	}
	common.RespondNoContent(w)
}

func (h *AuthHandler) me(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		common.RespondWithError(w, http.StatusUnauthorized, "Missing user context")
		return
	}
	common.RespondWithJSON(w, http.StatusOK, loginResponse{ID: user.ID, Username: user.Username, Roles: user.Roles})
}
