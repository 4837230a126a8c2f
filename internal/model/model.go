// Package model содержит доменные сущности сервиса coursemart.
package model

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound является базовой ошибкой для всех отсутствующих сущностей.
var ErrNotFound = errors.New("not found")

// Role описывает роль пользователя на платформе.
type Role string

const (
	RoleStudent  Role = "student"
	RoleEducator Role = "educator"
	RoleAdmin    Role = "admin"
)

// Valid сообщает, является ли роль одной из известных.
func (r Role) Valid() bool {
	switch r {
	case RoleStudent, RoleEducator, RoleAdmin:
		return true
	}
	return false
}

// User представляет зарегистрированного пользователя платформы.
type User struct {
	ID              int64
	Name            string
	Email           string
	PasswordHash    []byte
	Role            Role
	ImageURL        string
	EnrolledCourses []int64
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Lecture описывает одну лекцию внутри главы курса.
type Lecture struct {
	ID            string `json:"lectureId" validate:"required"`
	Title         string `json:"lectureTitle" validate:"required"`
	Duration      int    `json:"lectureDuration" validate:"gte=0"`
	URL           string `json:"lectureUrl"`
	IsPreviewFree bool   `json:"isPreviewFree"`
	Order         int    `json:"lectureOrder"`
}

// Chapter описывает главу курса.
type Chapter struct {
	ID       string    `json:"chapterId" validate:"required"`
	Title    string    `json:"chapterTitle" validate:"required"`
	Order    int       `json:"chapterOrder"`
	Lectures []Lecture `json:"chapterContent" validate:"dive"`
}

// Rating описывает оценку курса пользователем.
type Rating struct {
	UserID int64 `json:"userId"`
	Rating int   `json:"rating"`
}

// Course описывает курс каталога.
type Course struct {
	ID               int64
	EducatorID       int64
	Title            string
	Description      string
	Thumbnail        string
	PriceCents       int64
	Discount         int
	Content          []Chapter
	IsPublished      bool
	EnrolledStudents []int64
	Ratings          []Rating
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// LectureIDs возвращает идентификаторы всех лекций курса.
func (c *Course) LectureIDs() []string {
	var ids []string
	for _, ch := range c.Content {
		for _, l := range ch.Lectures {
			ids = append(ids, l.ID)
		}
	}
	return ids
}

// HasLecture сообщает, содержит ли курс лекцию с указанным идентификатором.
func (c *Course) HasLecture(lectureID string) bool {
	for _, id := range c.LectureIDs() {
		if id == lectureID {
			return true
		}
	}
	return false
}

// CourseSummary описывает курс в публичном списке каталога.
type CourseSummary struct {
	ID            int64
	EducatorID    int64
	EducatorName  string
	Title         string
	Description   string
	Thumbnail     string
	PriceCents    int64
	Discount      int
	StudentsCount int
	RatingsCount  int
	AverageRating float64
	CreatedAt     time.Time
}

// PaymentStatus описывает статус оплаты покупки.
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusCompleted PaymentStatus = "completed"
	PaymentStatusFailed    PaymentStatus = "failed"
)

// Purchase описывает запись журнала покупок: одна запись на одну попытку оформления.
type Purchase struct {
	ID               uuid.UUID
	CourseID         int64
	UserID           int64
	AmountCents      int64
	Currency         string
	Status           PaymentStatus
	GatewayOrderID   string
	GatewayPaymentID string
	GatewaySignature string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Progress описывает прогресс пользователя по курсу.
type Progress struct {
	UserID           int64    `json:"userId"`
	CourseID         int64    `json:"courseId"`
	LectureCompleted []string `json:"lectureCompleted"`
	Completed        bool     `json:"completed"`
}

// EnrolledStudent описывает студента, записанного на курс преподавателя.
type EnrolledStudent struct {
	StudentID    int64     `json:"studentId"`
	StudentName  string    `json:"studentName"`
	StudentImage string    `json:"studentImage"`
	CourseID     int64     `json:"courseId"`
	CourseTitle  string    `json:"courseTitle"`
	PurchaseDate time.Time `json:"purchaseDate"`
}

// Dashboard содержит сводку преподавателя.
type Dashboard struct {
	TotalCourses     int               `json:"totalCourses"`
	TotalEarnings    float64           `json:"totalEarnings"`
	EnrolledStudents []EnrolledStudent `json:"enrolledStudentsData"`
}

// EnrollmentSource описывает, каким путём была выдана запись на курс.
type EnrollmentSource string

const (
	EnrollmentSourceFree    EnrollmentSource = "free_checkout"
	EnrollmentSourceConfirm EnrollmentSource = "payment_confirmation"
	EnrollmentSourceWebhook EnrollmentSource = "gateway_webhook"
)

// Enrollment описывает факт записи пользователя на курс.
type Enrollment struct {
	UserID      int64
	CourseID    int64
	PurchaseID  uuid.UUID
	AmountCents int64
	Source      EnrollmentSource
}
