package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/mmeshcher/coursemart/internal/model"
)

const courseColumns = `id, educator_id, title, description, thumbnail, price_cents, discount, content, is_published, created_at, updated_at`

func scanCourse(row pgx.Row) (*model.Course, error) {
	var (
		c       model.Course
		content []byte
	)
	err := row.Scan(&c.ID, &c.EducatorID, &c.Title, &c.Description, &c.Thumbnail,
		&c.PriceCents, &c.Discount, &content, &c.IsPublished, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCourseNotFound
		}
		return nil, fmt.Errorf("scan course: %w", err)
	}
	if len(content) > 0 {
		if err := json.Unmarshal(content, &c.Content); err != nil {
			return nil, fmt.Errorf("decode course content: %w", err)
		}
	}
	return &c, nil
}

func collectCourses(rows pgx.Rows) ([]model.Course, error) {
	defer rows.Close()

	var res []model.Course
	for rows.Next() {
		c, err := scanCourse(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return res, nil
}

func encodeContent(content []model.Chapter) ([]byte, error) {
	if content == nil {
		content = []model.Chapter{}
	}
	b, err := json.Marshal(content)
	if err != nil {
		return nil, fmt.Errorf("encode course content: %w", err)
	}
	return b, nil
}

// CreateCourse сохраняет новый курс и возвращает его идентификатор.
func (r *PostgresRepository) CreateCourse(ctx context.Context, c *model.Course) (int64, error) {
	content, err := encodeContent(c.Content)
	if err != nil {
		return 0, err
	}

	var id int64
	err = r.pool.QueryRow(ctx,
		`INSERT INTO courses (educator_id, title, description, thumbnail, price_cents, discount, content, is_published)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING id`,
		c.EducatorID, c.Title, c.Description, c.Thumbnail, c.PriceCents, c.Discount, content, c.IsPublished,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("create course: %w", err)
	}
	return id, nil
}

// GetCourseByID возвращает курс вместе со списком студентов и оценками.
func (r *PostgresRepository) GetCourseByID(ctx context.Context, id int64) (*model.Course, error) {
	c, err := scanCourse(r.pool.QueryRow(ctx,
		`SELECT `+courseColumns+` FROM courses WHERE id = $1`,
		id,
	))
	if err != nil {
		return nil, err
	}

	rows, err := r.pool.Query(ctx,
		`SELECT user_id FROM enrollments WHERE course_id = $1 ORDER BY enrolled_at`,
		id,
	)
	if err != nil {
		return nil, fmt.Errorf("select enrolled students: %w", err)
	}
	c.EnrolledStudents, err = pgx.CollectRows(rows, pgx.RowTo[int64])
	if err != nil {
		return nil, fmt.Errorf("collect enrolled students: %w", err)
	}

	rows, err = r.pool.Query(ctx,
		`SELECT user_id, rating FROM course_ratings WHERE course_id = $1 ORDER BY user_id`,
		id,
	)
	if err != nil {
		return nil, fmt.Errorf("select ratings: %w", err)
	}
	c.Ratings, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.Rating, error) {
		var rt model.Rating
		err := row.Scan(&rt.UserID, &rt.Rating)
		return rt, err
	})
	if err != nil {
		return nil, fmt.Errorf("collect ratings: %w", err)
	}

	return c, nil
}

// ListPublishedCourses возвращает опубликованные курсы с агрегатами оценок.
func (r *PostgresRepository) ListPublishedCourses(ctx context.Context) ([]model.CourseSummary, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT c.id, c.educator_id, u.name, c.title, c.description, c.thumbnail,
		        c.price_cents, c.discount, c.created_at,
		        (SELECT COUNT(*) FROM enrollments e WHERE e.course_id = c.id),
		        (SELECT COUNT(*) FROM course_ratings cr WHERE cr.course_id = c.id),
		        (SELECT COALESCE(AVG(cr.rating), 0) FROM course_ratings cr WHERE cr.course_id = c.id)
		 FROM courses c
		 JOIN users u ON u.id = c.educator_id
		 WHERE c.is_published
		 ORDER BY c.created_at DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("select published courses: %w", err)
	}
	defer rows.Close()

	var res []model.CourseSummary
	for rows.Next() {
		var s model.CourseSummary
		if err := rows.Scan(&s.ID, &s.EducatorID, &s.EducatorName, &s.Title, &s.Description, &s.Thumbnail,
			&s.PriceCents, &s.Discount, &s.CreatedAt, &s.StudentsCount, &s.RatingsCount, &s.AverageRating); err != nil {
			return nil, fmt.Errorf("scan course summary: %w", err)
		}
		res = append(res, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// UpdateCourse перезаписывает редактируемые поля курса.
func (r *PostgresRepository) UpdateCourse(ctx context.Context, c *model.Course) error {
	content, err := encodeContent(c.Content)
	if err != nil {
		return err
	}

	tag, err := r.pool.Exec(ctx,
		`UPDATE courses
		 SET title = $2, description = $3, thumbnail = $4, price_cents = $5,
		     discount = $6, content = $7, is_published = $8, updated_at = now()
		 WHERE id = $1`,
		c.ID, c.Title, c.Description, c.Thumbnail, c.PriceCents, c.Discount, content, c.IsPublished,
	)
	if err != nil {
		return fmt.Errorf("update course: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrCourseNotFound
	}
	return nil
}

// DeleteCourse удаляет курс. Записи журнала покупок сохраняются.
func (r *PostgresRepository) DeleteCourse(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM courses WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete course: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrCourseNotFound
	}
	return nil
}

// GetCoursesByEducator возвращает курсы преподавателя.
func (r *PostgresRepository) GetCoursesByEducator(ctx context.Context, educatorID int64) ([]model.Course, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+courseColumns+` FROM courses WHERE educator_id = $1 ORDER BY created_at DESC`,
		educatorID,
	)
	if err != nil {
		return nil, fmt.Errorf("select educator courses: %w", err)
	}
	return collectCourses(rows)
}

// GetEnrolledCourses возвращает курсы, на которые записан пользователь.
func (r *PostgresRepository) GetEnrolledCourses(ctx context.Context, userID int64) ([]model.Course, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT c.id, c.educator_id, c.title, c.description, c.thumbnail, c.price_cents,
		        c.discount, c.content, c.is_published, c.created_at, c.updated_at
		 FROM enrollments e
		 JOIN courses c ON c.id = e.course_id
		 WHERE e.user_id = $1
		 ORDER BY e.enrolled_at`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("select enrolled courses: %w", err)
	}
	return collectCourses(rows)
}

// GetEducatorEarnings возвращает сумму завершённых оплат по курсам преподавателя в минимальных единицах валюты.
func (r *PostgresRepository) GetEducatorEarnings(ctx context.Context, educatorID int64) (int64, error) {
	var total int64
	err := r.pool.QueryRow(ctx,
		`SELECT COALESCE(SUM(p.amount_cents), 0)
		 FROM purchases p
		 JOIN courses c ON c.id = p.course_id
		 WHERE c.educator_id = $1 AND p.status = $2`,
		educatorID, string(model.PaymentStatusCompleted),
	).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("sum earnings: %w", err)
	}
	return total, nil
}

// GetEnrolledStudents возвращает студентов, записанных на курсы преподавателя.
func (r *PostgresRepository) GetEnrolledStudents(ctx context.Context, educatorID int64) ([]model.EnrolledStudent, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT u.id, u.name, u.image_url, c.id, c.title, e.enrolled_at
		 FROM enrollments e
		 JOIN courses c ON c.id = e.course_id
		 JOIN users u ON u.id = e.user_id
		 WHERE c.educator_id = $1
		 ORDER BY e.enrolled_at DESC`,
		educatorID,
	)
	if err != nil {
		return nil, fmt.Errorf("select enrolled students: %w", err)
	}
	defer rows.Close()

	var res []model.EnrolledStudent
	for rows.Next() {
		var s model.EnrolledStudent
		if err := rows.Scan(&s.StudentID, &s.StudentName, &s.StudentImage, &s.CourseID, &s.CourseTitle, &s.PurchaseDate); err != nil {
			return nil, fmt.Errorf("scan enrolled student: %w", err)
		}
		res = append(res, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// UpsertRating сохраняет оценку пользователя. Повторная оценка заменяет предыдущую.
func (r *PostgresRepository) UpsertRating(ctx context.Context, courseID, userID int64, rating int) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO course_ratings (course_id, user_id, rating)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (course_id, user_id) DO UPDATE
		 SET rating = EXCLUDED.rating, updated_at = now()`,
		courseID, userID, rating,
	)
	if err != nil {
		return fmt.Errorf("upsert rating: %w", err)
	}
	return nil
}
