package service

import (
	"context"
	"fmt"

	"github.com/mmeshcher/coursemart/internal/model"
	"github.com/mmeshcher/coursemart/internal/repository"
	"github.com/mmeshcher/coursemart/internal/validation"
)

// Actor описывает пользователя, от имени которого выполняется операция.
type Actor struct {
	UserID int64
	Role   model.Role
}

func (a Actor) canTeach() bool {
	return a.Role == model.RoleEducator || a.Role == model.RoleAdmin
}

// CourseInput содержит редактируемые поля курса.
type CourseInput struct {
	Title       string          `validate:"required,max=200"`
	Description string          `validate:"max=20000"`
	Thumbnail   string          `validate:"omitempty,url"`
	PriceCents  int64           `validate:"gte=0,lte=100000000000"`
	Discount    int             `validate:"gte=0,lte=100"`
	Content     []model.Chapter `validate:"dive"`
	IsPublished bool
}

func (in CourseInput) validate() error {
	if err := validation.Struct(in); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	seen := make(map[string]struct{})
	for _, ch := range in.Content {
		for _, l := range ch.Lectures {
			if _, dup := seen[l.ID]; dup {
				return fmt.Errorf("%w: duplicate lecture id %q", ErrInvalidInput, l.ID)
			}
			seen[l.ID] = struct{}{}
		}
	}
	return nil
}

// ListCourses возвращает опубликованные курсы каталога.
func (s *Service) ListCourses(ctx context.Context) ([]model.CourseSummary, error) {
	return s.repo.ListPublishedCourses(ctx)
}

// GetCourse возвращает опубликованный курс. Ссылки на лекции без бесплатного
// предпросмотра скрываются.
func (s *Service) GetCourse(ctx context.Context, courseID int64) (*model.Course, error) {
	course, err := s.repo.GetCourseByID(ctx, courseID)
	if err != nil {
		return nil, err
	}
	if !course.IsPublished {
		return nil, repository.ErrCourseNotFound
	}

	for i := range course.Content {
		for j := range course.Content[i].Lectures {
			if !course.Content[i].Lectures[j].IsPreviewFree {
				course.Content[i].Lectures[j].URL = ""
			}
		}
	}
	return course, nil
}

// CreateCourse добавляет курс от имени преподавателя.
func (s *Service) CreateCourse(ctx context.Context, actor Actor, in CourseInput) (*model.Course, error) {
	if !actor.canTeach() {
		return nil, fmt.Errorf("%w: only educators can create courses", ErrForbidden)
	}
	if err := in.validate(); err != nil {
		return nil, err
	}

	c := &model.Course{
		EducatorID:  actor.UserID,
		Title:       in.Title,
		Description: in.Description,
		Thumbnail:   in.Thumbnail,
		PriceCents:  in.PriceCents,
		Discount:    in.Discount,
		Content:     in.Content,
		IsPublished: in.IsPublished,
	}
	id, err := s.repo.CreateCourse(ctx, c)
	if err != nil {
		return nil, err
	}
	c.ID = id
	return c, nil
}

// UpdateCourse перезаписывает поля курса. Изменять курс может его автор или администратор.
func (s *Service) UpdateCourse(ctx context.Context, actor Actor, courseID int64, in CourseInput) (*model.Course, error) {
	course, err := s.ownedCourse(ctx, actor, courseID)
	if err != nil {
		return nil, err
	}
	if err := in.validate(); err != nil {
		return nil, err
	}

	course.Title = in.Title
	course.Description = in.Description
	course.Thumbnail = in.Thumbnail
	course.PriceCents = in.PriceCents
	course.Discount = in.Discount
	course.Content = in.Content
	course.IsPublished = in.IsPublished

	if err := s.repo.UpdateCourse(ctx, course); err != nil {
		return nil, err
	}
	return course, nil
}

// DeleteCourse удаляет курс. Удалять курс может его автор или администратор.
func (s *Service) DeleteCourse(ctx context.Context, actor Actor, courseID int64) error {
	if _, err := s.ownedCourse(ctx, actor, courseID); err != nil {
		return err
	}
	return s.repo.DeleteCourse(ctx, courseID)
}

func (s *Service) ownedCourse(ctx context.Context, actor Actor, courseID int64) (*model.Course, error) {
	if !actor.canTeach() {
		return nil, fmt.Errorf("%w: only educators can manage courses", ErrForbidden)
	}
	course, err := s.repo.GetCourseByID(ctx, courseID)
	if err != nil {
		return nil, err
	}
	if actor.Role != model.RoleAdmin && course.EducatorID != actor.UserID {
		return nil, fmt.Errorf("%w: course belongs to another educator", ErrForbidden)
	}
	return course, nil
}

// EducatorCourses возвращает курсы преподавателя.
func (s *Service) EducatorCourses(ctx context.Context, educatorID int64) ([]model.Course, error) {
	return s.repo.GetCoursesByEducator(ctx, educatorID)
}

// EducatorDashboard собирает сводку преподавателя: число курсов, доход и студентов.
func (s *Service) EducatorDashboard(ctx context.Context, educatorID int64) (*model.Dashboard, error) {
	courses, err := s.repo.GetCoursesByEducator(ctx, educatorID)
	if err != nil {
		return nil, err
	}
	earnings, err := s.repo.GetEducatorEarnings(ctx, educatorID)
	if err != nil {
		return nil, err
	}
	students, err := s.repo.GetEnrolledStudents(ctx, educatorID)
	if err != nil {
		return nil, err
	}
	if students == nil {
		students = []model.EnrolledStudent{}
	}

	return &model.Dashboard{
		TotalCourses:     len(courses),
		TotalEarnings:    FromCents(earnings),
		EnrolledStudents: students,
	}, nil
}

// EnrolledStudents возвращает студентов, записанных на курсы преподавателя.
func (s *Service) EnrolledStudents(ctx context.Context, educatorID int64) ([]model.EnrolledStudent, error) {
	return s.repo.GetEnrolledStudents(ctx, educatorID)
}

// EnrolledCourses возвращает курсы, на которые записан пользователь.
func (s *Service) EnrolledCourses(ctx context.Context, userID int64) ([]model.Course, error) {
	return s.repo.GetEnrolledCourses(ctx, userID)
}
