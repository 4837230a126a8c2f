package handler

import (
	"net/http"

	"github.com/mmeshcher/coursemart/internal/model"
)

type progressRequest struct {
	CourseID  int64  `json:"courseId" validate:"required,gt=0"`
	LectureID string `json:"lectureId" validate:"required"`
}

type courseRefRequest struct {
	CourseID int64 `json:"courseId" validate:"required,gt=0"`
}

type ratingRequest struct {
	CourseID int64 `json:"courseId" validate:"required,gt=0"`
	Rating   int   `json:"rating"`
}

// UserData возвращает данные текущего пользователя.
func (h *Handler) UserData(w http.ResponseWriter, r *http.Request) {
	h.Profile(w, r)
}

// EnrolledCourses возвращает курсы, на которые записан текущий пользователь.
func (h *Handler) EnrolledCourses(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentActor(r)
	if !ok {
		writeMessage(w, http.StatusUnauthorized, "not authorized, login again")
		return
	}

	courses, err := h.service.EnrolledCourses(r.Context(), actor.UserID)
	if err != nil {
		h.writeError(w, "enrolled courses", err)
		return
	}

	writeJSON(w, http.StatusOK, struct {
		Success bool         `json:"success"`
		Courses []courseView `json:"enrolledCourses"`
	}{Success: true, Courses: newCourseViews(courses)})
}

// UpdateProgress отмечает лекцию пройденной.
func (h *Handler) UpdateProgress(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentActor(r)
	if !ok {
		writeMessage(w, http.StatusUnauthorized, "not authorized, login again")
		return
	}

	var req progressRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, "update progress", err)
		return
	}

	already, err := h.service.UpdateProgress(r.Context(), actor.UserID, req.CourseID, req.LectureID)
	if err != nil {
		h.writeError(w, "update progress", err)
		return
	}

	if already {
		writeMessage(w, http.StatusOK, "lecture already completed")
		return
	}
	writeMessage(w, http.StatusOK, "progress updated")
}

// GetProgress возвращает прогресс текущего пользователя по курсу.
func (h *Handler) GetProgress(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentActor(r)
	if !ok {
		writeMessage(w, http.StatusUnauthorized, "not authorized, login again")
		return
	}

	var req courseRefRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, "get progress", err)
		return
	}

	progress, err := h.service.GetProgress(r.Context(), actor.UserID, req.CourseID)
	if err != nil {
		h.writeError(w, "get progress", err)
		return
	}

	writeJSON(w, http.StatusOK, struct {
		Success  bool            `json:"success"`
		Progress *model.Progress `json:"progressData"`
	}{Success: true, Progress: progress})
}

// AddRating сохраняет оценку курса текущим пользователем.
// Диапазон оценки проверяет сервис.
func (h *Handler) AddRating(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentActor(r)
	if !ok {
		writeMessage(w, http.StatusUnauthorized, "not authorized, login again")
		return
	}

	var req ratingRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, "add rating", err)
		return
	}

	if err := h.service.RateCourse(r.Context(), actor.UserID, req.CourseID, req.Rating); err != nil {
		h.writeError(w, "add rating", err)
		return
	}

	writeMessage(w, http.StatusOK, "rating added")
}
