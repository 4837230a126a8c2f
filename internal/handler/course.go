package handler

import (
	"net/http"
	"time"

	"github.com/mmeshcher/coursemart/internal/model"
	"github.com/mmeshcher/coursemart/internal/service"
)

type courseRequest struct {
	Title       string          `json:"courseTitle" validate:"required"`
	Description string          `json:"courseDescription"`
	Thumbnail   string          `json:"courseThumbnail"`
	Price       float64         `json:"coursePrice" validate:"gte=0,lte=1000000000"`
	Discount    int             `json:"discount" validate:"gte=0,lte=100"`
	Content     []model.Chapter `json:"courseContent"`
	IsPublished *bool           `json:"isPublished"`
}

func (req courseRequest) input() service.CourseInput {
	published := true
	if req.IsPublished != nil {
		published = *req.IsPublished
	}
	return service.CourseInput{
		Title:       req.Title,
		Description: req.Description,
		Thumbnail:   req.Thumbnail,
		PriceCents:  service.ToCents(req.Price),
		Discount:    req.Discount,
		Content:     req.Content,
		IsPublished: published,
	}
}

type courseView struct {
	ID               int64           `json:"id"`
	EducatorID       int64           `json:"educator"`
	Title            string          `json:"courseTitle"`
	Description      string          `json:"courseDescription"`
	Thumbnail        string          `json:"courseThumbnail"`
	Price            float64         `json:"coursePrice"`
	Discount         int             `json:"discount"`
	FinalPrice       float64         `json:"finalPrice"`
	Content          []model.Chapter `json:"courseContent"`
	IsPublished      bool            `json:"isPublished"`
	EnrolledStudents []int64         `json:"enrolledStudents"`
	Ratings          []model.Rating  `json:"courseRatings"`
	CreatedAt        time.Time       `json:"createdAt"`
}

func newCourseView(c *model.Course) courseView {
	v := courseView{
		ID:               c.ID,
		EducatorID:       c.EducatorID,
		Title:            c.Title,
		Description:      c.Description,
		Thumbnail:        c.Thumbnail,
		Price:            service.FromCents(c.PriceCents),
		Discount:         c.Discount,
		FinalPrice:       service.FromCents(service.FinalPriceCents(c.PriceCents, c.Discount)),
		Content:          c.Content,
		IsPublished:      c.IsPublished,
		EnrolledStudents: c.EnrolledStudents,
		Ratings:          c.Ratings,
		CreatedAt:        c.CreatedAt,
	}
	if v.Content == nil {
		v.Content = []model.Chapter{}
	}
	if v.EnrolledStudents == nil {
		v.EnrolledStudents = []int64{}
	}
	if v.Ratings == nil {
		v.Ratings = []model.Rating{}
	}
	return v
}

func newCourseViews(courses []model.Course) []courseView {
	res := make([]courseView, 0, len(courses))
	for i := range courses {
		res = append(res, newCourseView(&courses[i]))
	}
	return res
}

type courseSummaryView struct {
	ID            int64     `json:"id"`
	EducatorID    int64     `json:"educator"`
	EducatorName  string    `json:"educatorName"`
	Title         string    `json:"courseTitle"`
	Description   string    `json:"courseDescription"`
	Thumbnail     string    `json:"courseThumbnail"`
	Price         float64   `json:"coursePrice"`
	Discount      int       `json:"discount"`
	FinalPrice    float64   `json:"finalPrice"`
	StudentsCount int       `json:"studentsCount"`
	RatingsCount  int       `json:"ratingsCount"`
	AverageRating float64   `json:"averageRating"`
	CreatedAt     time.Time `json:"createdAt"`
}

type courseResponse struct {
	Success bool       `json:"success"`
	Course  courseView `json:"courseData"`
}

type coursesResponse struct {
	Success bool         `json:"success"`
	Courses []courseView `json:"courses"`
}

// ListCourses возвращает опубликованные курсы каталога.
func (h *Handler) ListCourses(w http.ResponseWriter, r *http.Request) {
	courses, err := h.service.ListCourses(r.Context())
	if err != nil {
		h.writeError(w, "list courses", err)
		return
	}

	res := make([]courseSummaryView, 0, len(courses))
	for _, c := range courses {
		res = append(res, courseSummaryView{
			ID:            c.ID,
			EducatorID:    c.EducatorID,
			EducatorName:  c.EducatorName,
			Title:         c.Title,
			Description:   c.Description,
			Thumbnail:     c.Thumbnail,
			Price:         service.FromCents(c.PriceCents),
			Discount:      c.Discount,
			FinalPrice:    service.FromCents(service.FinalPriceCents(c.PriceCents, c.Discount)),
			StudentsCount: c.StudentsCount,
			RatingsCount:  c.RatingsCount,
			AverageRating: c.AverageRating,
			CreatedAt:     c.CreatedAt,
		})
	}

	writeJSON(w, http.StatusOK, struct {
		Success bool                `json:"success"`
		Courses []courseSummaryView `json:"courses"`
	}{Success: true, Courses: res})
}

// GetCourse возвращает курс по идентификатору.
func (h *Handler) GetCourse(w http.ResponseWriter, r *http.Request) {
	courseID, err := courseIDParam(r)
	if err != nil {
		h.writeError(w, "get course", err)
		return
	}

	c, err := h.service.GetCourse(r.Context(), courseID)
	if err != nil {
		h.writeError(w, "get course", err)
		return
	}

	writeJSON(w, http.StatusOK, courseResponse{Success: true, Course: newCourseView(c)})
}

// AddCourse создаёт курс от имени текущего преподавателя.
func (h *Handler) AddCourse(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentActor(r)
	if !ok {
		writeMessage(w, http.StatusUnauthorized, "not authorized, login again")
		return
	}

	var req courseRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, "add course", err)
		return
	}

	c, err := h.service.CreateCourse(r.Context(), actor, req.input())
	if err != nil {
		h.writeError(w, "add course", err)
		return
	}

	writeJSON(w, http.StatusCreated, courseResponse{Success: true, Course: newCourseView(c)})
}

// UpdateCourse перезаписывает курс текущего преподавателя.
func (h *Handler) UpdateCourse(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentActor(r)
	if !ok {
		writeMessage(w, http.StatusUnauthorized, "not authorized, login again")
		return
	}

	courseID, err := courseIDParam(r)
	if err != nil {
		h.writeError(w, "update course", err)
		return
	}

	var req courseRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, "update course", err)
		return
	}

	c, err := h.service.UpdateCourse(r.Context(), actor, courseID, req.input())
	if err != nil {
		h.writeError(w, "update course", err)
		return
	}

	writeJSON(w, http.StatusOK, courseResponse{Success: true, Course: newCourseView(c)})
}

// DeleteCourse удаляет курс текущего преподавателя.
func (h *Handler) DeleteCourse(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentActor(r)
	if !ok {
		writeMessage(w, http.StatusUnauthorized, "not authorized, login again")
		return
	}

	courseID, err := courseIDParam(r)
	if err != nil {
		h.writeError(w, "delete course", err)
		return
	}

	if err := h.service.DeleteCourse(r.Context(), actor, courseID); err != nil {
		h.writeError(w, "delete course", err)
		return
	}

	writeMessage(w, http.StatusOK, "course deleted")
}

// EducatorCourses возвращает курсы текущего преподавателя.
func (h *Handler) EducatorCourses(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentActor(r)
	if !ok {
		writeMessage(w, http.StatusUnauthorized, "not authorized, login again")
		return
	}

	courses, err := h.service.EducatorCourses(r.Context(), actor.UserID)
	if err != nil {
		h.writeError(w, "educator courses", err)
		return
	}

	writeJSON(w, http.StatusOK, coursesResponse{Success: true, Courses: newCourseViews(courses)})
}

// EducatorDashboard возвращает сводку текущего преподавателя.
func (h *Handler) EducatorDashboard(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentActor(r)
	if !ok {
		writeMessage(w, http.StatusUnauthorized, "not authorized, login again")
		return
	}

	dash, err := h.service.EducatorDashboard(r.Context(), actor.UserID)
	if err != nil {
		h.writeError(w, "educator dashboard", err)
		return
	}

	writeJSON(w, http.StatusOK, struct {
		Success   bool             `json:"success"`
		Dashboard *model.Dashboard `json:"dashboardData"`
	}{Success: true, Dashboard: dash})
}

// EnrolledStudents возвращает студентов, записанных на курсы текущего преподавателя.
func (h *Handler) EnrolledStudents(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentActor(r)
	if !ok {
		writeMessage(w, http.StatusUnauthorized, "not authorized, login again")
		return
	}

	students, err := h.service.EnrolledStudents(r.Context(), actor.UserID)
	if err != nil {
		h.writeError(w, "enrolled students", err)
		return
	}
	if students == nil {
		students = []model.EnrolledStudent{}
	}

	writeJSON(w, http.StatusOK, struct {
		Success  bool                    `json:"success"`
		Students []model.EnrolledStudent `json:"enrolledStudents"`
	}{Success: true, Students: students})
}
