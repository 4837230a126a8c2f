// Package handler содержит HTTP-обработчики API сервиса coursemart.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/mmeshcher/coursemart/internal/middleware"
	"github.com/mmeshcher/coursemart/internal/model"
	"github.com/mmeshcher/coursemart/internal/service"
	"github.com/mmeshcher/coursemart/internal/validation"
)

const maxBodySize = 1 << 20

// Service определяет контракт бизнес-логики, используемой HTTP-обработчиками.
type Service interface {
	Register(ctx context.Context, r service.Registration) (*model.User, error)
	Login(ctx context.Context, email, password string) (*model.User, error)
	Profile(ctx context.Context, userID int64) (*model.User, error)
	UpdateProfile(ctx context.Context, userID int64, name, imageURL string) (*model.User, error)
	ChangePassword(ctx context.Context, userID int64, current, next string) error
	BecomeEducator(ctx context.Context, userID int64) (*model.User, error)

	ListCourses(ctx context.Context) ([]model.CourseSummary, error)
	GetCourse(ctx context.Context, courseID int64) (*model.Course, error)
	CreateCourse(ctx context.Context, actor service.Actor, in service.CourseInput) (*model.Course, error)
	UpdateCourse(ctx context.Context, actor service.Actor, courseID int64, in service.CourseInput) (*model.Course, error)
	DeleteCourse(ctx context.Context, actor service.Actor, courseID int64) error
	EducatorCourses(ctx context.Context, educatorID int64) ([]model.Course, error)
	EducatorDashboard(ctx context.Context, educatorID int64) (*model.Dashboard, error)
	EnrolledStudents(ctx context.Context, educatorID int64) ([]model.EnrolledStudent, error)
	EnrolledCourses(ctx context.Context, userID int64) ([]model.Course, error)

	InitiateCheckout(ctx context.Context, userID, courseID int64) (*service.CheckoutResult, error)
	ConfirmPayment(ctx context.Context, c service.Confirmation) (*service.Settlement, error)
	HandleGatewayEvent(ctx context.Context, body []byte, signature, deliveryID string) error

	RateCourse(ctx context.Context, userID, courseID int64, rating int) error
	UpdateProgress(ctx context.Context, userID, courseID int64, lectureID string) (bool, error)
	GetProgress(ctx context.Context, userID, courseID int64) (*model.Progress, error)
}

// Handler реализует HTTP-обработчики API сервиса coursemart.
type Handler struct {
	service        Service
	logger         *zap.Logger
	authMiddleware *middleware.AuthMiddleware
	gatewayKeyID   string
}

// NewHandler создаёт новый экземпляр обработчика HTTP-запросов.
// gatewayKeyID передаётся клиенту для открытия формы оплаты.
func NewHandler(s Service, logger *zap.Logger, auth *middleware.AuthMiddleware, gatewayKeyID string) *Handler {
	return &Handler{
		service:        s,
		logger:         logger,
		authMiddleware: auth,
		gatewayKeyID:   gatewayKeyID,
	}
}

// Health отвечает, что сервис запущен.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("API working"))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type messageResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func writeMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, messageResponse{Success: status < http.StatusBadRequest, Message: message})
}

// writeError сопоставляет ошибку бизнес-логики с кодом ответа.
// Непредвиденные ошибки пишутся в лог, клиенту уходит общее сообщение.
func (h *Handler) writeError(w http.ResponseWriter, op string, err error) {
	status, message := errorResponse(err)
	if status == http.StatusInternalServerError {
		h.logger.Error(op+" error", zap.Error(err))
	}
	writeMessage(w, status, message)
}

func errorResponse(err error) (int, string) {
	switch {
	case errors.Is(err, service.ErrInvalidInput):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, service.ErrSignatureInvalid):
		return http.StatusBadRequest, "payment verification failed"
	case errors.Is(err, service.ErrInvalidCredentials):
		return http.StatusUnauthorized, service.ErrInvalidCredentials.Error()
	case errors.Is(err, service.ErrForbidden):
		return http.StatusForbidden, err.Error()
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound, err.Error()
	case errors.Is(err, service.ErrAlreadyEnrolled):
		return http.StatusConflict, service.ErrAlreadyEnrolled.Error()
	case errors.Is(err, service.ErrEmailTaken):
		return http.StatusConflict, service.ErrEmailTaken.Error()
	case errors.Is(err, service.ErrPurchaseClosed):
		return http.StatusConflict, "payment for this purchase has failed, start a new checkout"
	case errors.Is(err, service.ErrGatewayUnavailable):
		return http.StatusServiceUnavailable, "payment gateway is unavailable, please try again later"
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}

// decodeJSON читает тело запроса и проверяет его по тегам validate.
func decodeJSON(r *http.Request, dst any) error {
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodySize)).Decode(dst); err != nil {
		return fmt.Errorf("%w: malformed request body", service.ErrInvalidInput)
	}
	if err := validation.Struct(dst); err != nil {
		return fmt.Errorf("%w: %v", service.ErrInvalidInput, err)
	}
	return nil
}

func currentActor(r *http.Request) (service.Actor, bool) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		return service.Actor{}, false
	}
	role, _ := middleware.GetRoleFromContext(r.Context())
	return service.Actor{UserID: userID, Role: role}, true
}

func courseIDParam(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: malformed course id", service.ErrInvalidInput)
	}
	return id, nil
}

type userView struct {
	ID              int64      `json:"id"`
	Name            string     `json:"name"`
	Email           string     `json:"email"`
	Role            model.Role `json:"role"`
	ImageURL        string     `json:"imageUrl"`
	EnrolledCourses []int64    `json:"enrolledCourses"`
}

func newUserView(u *model.User) userView {
	enrolled := u.EnrolledCourses
	if enrolled == nil {
		enrolled = []int64{}
	}
	return userView{
		ID:              u.ID,
		Name:            u.Name,
		Email:           u.Email,
		Role:            u.Role,
		ImageURL:        u.ImageURL,
		EnrolledCourses: enrolled,
	}
}
