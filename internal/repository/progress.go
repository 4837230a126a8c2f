package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// AddCompletedLecture отмечает лекцию пройденной. Возвращает false, если она уже была отмечена.
func (r *PostgresRepository) AddCompletedLecture(ctx context.Context, userID, courseID int64, lectureID string) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`INSERT INTO lecture_progress (user_id, course_id, lecture_id)
		 VALUES ($1, $2, $3)
		 ON CONFLICT DO NOTHING`,
		userID, courseID, lectureID,
	)
	if err != nil {
		return false, fmt.Errorf("insert lecture progress: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// GetCompletedLectures возвращает идентификаторы пройденных лекций в порядке прохождения.
func (r *PostgresRepository) GetCompletedLectures(ctx context.Context, userID, courseID int64) ([]string, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT lecture_id FROM lecture_progress
		 WHERE user_id = $1 AND course_id = $2
		 ORDER BY completed_at, lecture_id`,
		userID, courseID,
	)
	if err != nil {
		return nil, fmt.Errorf("select lecture progress: %w", err)
	}

	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("collect lecture progress: %w", err)
	}
	return ids, nil
}
