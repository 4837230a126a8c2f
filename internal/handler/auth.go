package handler

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/mmeshcher/coursemart/internal/model"
	"github.com/mmeshcher/coursemart/internal/service"
)

type registerRequest struct {
	Name     string     `json:"name" validate:"required,max=100"`
	Email    string     `json:"email" validate:"required,email"`
	Password string     `json:"password" validate:"required"`
	Role     model.Role `json:"role" validate:"omitempty,oneof=student educator"`
	ImageURL string     `json:"imageUrl" validate:"omitempty,url"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type authResponse struct {
	Success bool     `json:"success"`
	Token   string   `json:"token"`
	User    userView `json:"user"`
}

type profileRequest struct {
	Name     string `json:"name" validate:"max=100"`
	ImageURL string `json:"imageUrl" validate:"omitempty,url"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" validate:"required"`
	NewPassword     string `json:"newPassword" validate:"required"`
}

type userResponse struct {
	Success bool     `json:"success"`
	User    userView `json:"user"`
}

// Register обрабатывает регистрацию нового пользователя.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, "register user", err)
		return
	}

	u, err := h.service.Register(r.Context(), service.Registration{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Role:     req.Role,
		ImageURL: req.ImageURL,
	})
	if err != nil {
		h.writeError(w, "register user", err)
		return
	}

	h.respondWithToken(w, http.StatusCreated, u)
}

// Login выполняет аутентификацию пользователя и выдаёт токен доступа.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, "login user", err)
		return
	}

	u, err := h.service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.writeError(w, "login user", err)
		return
	}

	h.respondWithToken(w, http.StatusOK, u)
}

func (h *Handler) respondWithToken(w http.ResponseWriter, status int, u *model.User) {
	token, err := h.authMiddleware.IssueToken(u.ID, u.Role)
	if err != nil {
		h.logger.Error("issue token error", zap.Error(err), zap.Int64("user_id", u.ID))
		writeMessage(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.authMiddleware.SetAuthCookie(w, token)
	writeJSON(w, status, authResponse{Success: true, Token: token, User: newUserView(u)})
}

// Logout удаляет cookie с токеном доступа.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	h.authMiddleware.ClearAuthCookie(w)
	writeMessage(w, http.StatusOK, "logged out")
}

// Profile возвращает профиль текущего пользователя.
func (h *Handler) Profile(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentActor(r)
	if !ok {
		writeMessage(w, http.StatusUnauthorized, "not authorized, login again")
		return
	}

	u, err := h.service.Profile(r.Context(), actor.UserID)
	if err != nil {
		h.writeError(w, "get profile", err)
		return
	}

	writeJSON(w, http.StatusOK, userResponse{Success: true, User: newUserView(u)})
}

// UpdateProfile меняет имя и аватар текущего пользователя.
func (h *Handler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentActor(r)
	if !ok {
		writeMessage(w, http.StatusUnauthorized, "not authorized, login again")
		return
	}

	var req profileRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, "update profile", err)
		return
	}

	u, err := h.service.UpdateProfile(r.Context(), actor.UserID, req.Name, req.ImageURL)
	if err != nil {
		h.writeError(w, "update profile", err)
		return
	}

	writeJSON(w, http.StatusOK, userResponse{Success: true, User: newUserView(u)})
}

// ChangePassword меняет пароль текущего пользователя.
func (h *Handler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentActor(r)
	if !ok {
		writeMessage(w, http.StatusUnauthorized, "not authorized, login again")
		return
	}

	var req changePasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, "change password", err)
		return
	}

	if err := h.service.ChangePassword(r.Context(), actor.UserID, req.CurrentPassword, req.NewPassword); err != nil {
		h.writeError(w, "change password", err)
		return
	}

	writeMessage(w, http.StatusOK, "password updated")
}

// UpdateRoleToEducator переводит текущего пользователя в роль преподавателя
// и выдаёт новый токен с обновлённой ролью.
func (h *Handler) UpdateRoleToEducator(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentActor(r)
	if !ok {
		writeMessage(w, http.StatusUnauthorized, "not authorized, login again")
		return
	}

	u, err := h.service.BecomeEducator(r.Context(), actor.UserID)
	if err != nil {
		h.writeError(w, "update role", err)
		return
	}

	h.respondWithToken(w, http.StatusOK, u)
}
