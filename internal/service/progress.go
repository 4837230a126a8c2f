package service

import (
	"context"
	"fmt"

	"github.com/mmeshcher/coursemart/internal/model"
)

// UpdateProgress отмечает лекцию курса пройденной.
// Возвращает true, если лекция уже была отмечена ранее.
func (s *Service) UpdateProgress(ctx context.Context, userID, courseID int64, lectureID string) (bool, error) {
	if userID <= 0 || courseID <= 0 || lectureID == "" {
		return false, fmt.Errorf("%w: course and lecture are required", ErrInvalidInput)
	}

	course, err := s.repo.GetCourseByID(ctx, courseID)
	if err != nil {
		return false, err
	}
	enrolled, err := s.repo.IsEnrolled(ctx, userID, courseID)
	if err != nil {
		return false, err
	}
	if !enrolled {
		return false, fmt.Errorf("%w: user has not purchased this course", ErrForbidden)
	}
	if !course.HasLecture(lectureID) {
		return false, fmt.Errorf("%w: lecture %q does not belong to course", ErrInvalidInput, lectureID)
	}

	added, err := s.repo.AddCompletedLecture(ctx, userID, courseID, lectureID)
	if err != nil {
		return false, err
	}
	return !added, nil
}

// GetProgress возвращает прогресс пользователя по курсу.
func (s *Service) GetProgress(ctx context.Context, userID, courseID int64) (*model.Progress, error) {
	if userID <= 0 || courseID <= 0 {
		return nil, fmt.Errorf("%w: course is required", ErrInvalidInput)
	}

	course, err := s.repo.GetCourseByID(ctx, courseID)
	if err != nil {
		return nil, err
	}
	done, err := s.repo.GetCompletedLectures(ctx, userID, courseID)
	if err != nil {
		return nil, err
	}
	if done == nil {
		done = []string{}
	}

	return &model.Progress{
		UserID:           userID,
		CourseID:         courseID,
		LectureCompleted: done,
		Completed:        isCourseCompleted(course, done),
	}, nil
}

func isCourseCompleted(course *model.Course, done []string) bool {
	lectures := course.LectureIDs()
	if len(lectures) == 0 {
		return false
	}

	seen := make(map[string]struct{}, len(done))
	for _, id := range done {
		seen[id] = struct{}{}
	}
	for _, id := range lectures {
		if _, ok := seen[id]; !ok {
			return false
		}
	}
	return true
}
