package service

import (
	"context"
	"fmt"

	"github.com/mmeshcher/coursemart/internal/validation"
)

// RateCourse сохраняет оценку курса пользователем. Повторная оценка заменяет предыдущую.
func (s *Service) RateCourse(ctx context.Context, userID, courseID int64, rating int) error {
	if userID <= 0 || courseID <= 0 {
		return fmt.Errorf("%w: user and course are required", ErrInvalidInput)
	}
	if !validation.IsValidRating(rating) {
		return fmt.Errorf("%w: rating must be between %d and %d", ErrInvalidInput, validation.MinRating, validation.MaxRating)
	}

	if _, err := s.repo.GetCourseByID(ctx, courseID); err != nil {
		return err
	}

	enrolled, err := s.repo.IsEnrolled(ctx, userID, courseID)
	if err != nil {
		return err
	}
	if !enrolled {
		return fmt.Errorf("%w: user has not purchased this course", ErrForbidden)
	}

	return s.repo.UpsertRating(ctx, courseID, userID, rating)
}
