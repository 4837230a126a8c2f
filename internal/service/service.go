// Package service реализует бизнес-логику маркетплейса курсов coursemart.
package service

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mmeshcher/coursemart/internal/gateway"
	"github.com/mmeshcher/coursemart/internal/model"
	"github.com/mmeshcher/coursemart/internal/repository"
)

// Repository описывает контракт доступа к данным, используемый сервисом.
type Repository interface {
	Close() error

	CreateUser(ctx context.Context, u *model.User) (int64, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	GetUserByID(ctx context.Context, id int64) (*model.User, error)
	UpdateUserProfile(ctx context.Context, id int64, name, imageURL string) error
	UpdateUserPassword(ctx context.Context, id int64, passwordHash []byte) error
	UpdateUserRole(ctx context.Context, id int64, role model.Role) error
	IsEnrolled(ctx context.Context, userID, courseID int64) (bool, error)

	CreateCourse(ctx context.Context, c *model.Course) (int64, error)
	GetCourseByID(ctx context.Context, id int64) (*model.Course, error)
	ListPublishedCourses(ctx context.Context) ([]model.CourseSummary, error)
	UpdateCourse(ctx context.Context, c *model.Course) error
	DeleteCourse(ctx context.Context, id int64) error
	GetCoursesByEducator(ctx context.Context, educatorID int64) ([]model.Course, error)
	GetEnrolledCourses(ctx context.Context, userID int64) ([]model.Course, error)
	GetEducatorEarnings(ctx context.Context, educatorID int64) (int64, error)
	GetEnrolledStudents(ctx context.Context, educatorID int64) ([]model.EnrolledStudent, error)
	UpsertRating(ctx context.Context, courseID, userID int64, rating int) error

	AddCompletedLecture(ctx context.Context, userID, courseID int64, lectureID string) (bool, error)
	GetCompletedLectures(ctx context.Context, userID, courseID int64) ([]string, error)

	CreatePendingPurchase(ctx context.Context, p *model.Purchase) (*model.Purchase, bool, error)
	AttachGatewayOrder(ctx context.Context, purchaseID uuid.UUID, orderID string) (string, error)
	ReconcileEnrollments(ctx context.Context) (int64, error)
	InTx(ctx context.Context, fn func(repository.LedgerTx) error) error
}

// Gateway описывает платёжный шлюз, в котором создаются заказы на оплату.
type Gateway interface {
	CreateOrder(ctx context.Context, req gateway.OrderRequest) (*gateway.Order, error)
}

// Deduper отсекает повторные доставки вебхука.
type Deduper interface {
	Claim(ctx context.Context, id string) (bool, error)
	Release(ctx context.Context, id string) error
}

// EnrollmentPublisher публикует события о записи на курс.
type EnrollmentPublisher interface {
	PublishEnrollment(ctx context.Context, e model.Enrollment) error
}

// PaymentConfig содержит параметры оплаты.
type PaymentConfig struct {
	Currency      string
	KeySecret     string
	WebhookSecret string
}

// Option настраивает необязательные зависимости сервиса.
type Option func(*Service)

// WithDeduper включает отсечение повторных доставок вебхука.
func WithDeduper(d Deduper) Option {
	return func(s *Service) {
		s.deduper = d
	}
}

// WithPublisher включает публикацию событий о записи на курс.
func WithPublisher(p EnrollmentPublisher) Option {
	return func(s *Service) {
		s.publisher = p
	}
}

// Service содержит бизнес-логику маркетплейса курсов.
type Service struct {
	repo      Repository
	gateway   Gateway
	payments  PaymentConfig
	logger    *zap.Logger
	deduper   Deduper
	publisher EnrollmentPublisher
}

// NewService создаёт новый сервис с указанным репозиторием и клиентом платёжного шлюза.
func NewService(repo Repository, gw Gateway, payments PaymentConfig, logger *zap.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if payments.Currency == "" {
		payments.Currency = DefaultCurrency
	}

	s := &Service{
		repo:     repo,
		gateway:  gw,
		payments: payments,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Close закрывает ресурсы сервиса.
func (s *Service) Close() error {
	if s.repo != nil {
		return s.repo.Close()
	}
	return nil
}

func (s *Service) publishEnrollment(ctx context.Context, e model.Enrollment) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishEnrollment(ctx, e); err != nil {
		s.logger.Warn("publish enrollment event failed",
			zap.Error(err),
			zap.Int64("user_id", e.UserID),
			zap.Int64("course_id", e.CourseID),
		)
	}
}
