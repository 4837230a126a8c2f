package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	custommiddleware "github.com/mmeshcher/coursemart/internal/middleware"
	"github.com/mmeshcher/coursemart/internal/model"
)

// SetupRouter настраивает HTTP-маршруты и middleware сервиса coursemart.
func (h *Handler) SetupRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Recoverer)
	r.Use(custommiddleware.Logger(h.logger))

	// Подпись вебхука проверяется по сырому телу, поэтому маршрут не проходит через gzip.
	r.Post("/webhook", h.GatewayWebhook)
	r.Post("/razorpay-webhook", h.GatewayWebhook)

	r.Group(func(r chi.Router) {
		r.Use(custommiddleware.GzipMiddleware)

		auth := h.authMiddleware.Middleware
		teachers := custommiddleware.RequireRole(model.RoleEducator, model.RoleAdmin)

		r.Get("/", h.Health)

		r.Route("/api/auth", func(r chi.Router) {
			r.Post("/register", h.Register)
			r.Post("/login", h.Login)

			r.Group(func(r chi.Router) {
				r.Use(auth)

				r.Get("/profile", h.Profile)
				r.Put("/profile", h.UpdateProfile)
				r.Put("/change-password", h.ChangePassword)
				r.Post("/logout", h.Logout)
			})
		})

		r.Route("/api/course", func(r chi.Router) {
			r.Get("/all", h.ListCourses)
			r.Get("/{id}", h.GetCourse)

			r.Group(func(r chi.Router) {
				r.Use(auth, teachers)

				r.Put("/{id}", h.UpdateCourse)
				r.Delete("/{id}", h.DeleteCourse)
			})
		})

		r.Route("/api/educator", func(r chi.Router) {
			r.Use(auth)

			r.Get("/update-role", h.UpdateRoleToEducator)

			r.Group(func(r chi.Router) {
				r.Use(teachers)

				r.Post("/add-course", h.AddCourse)
				r.Get("/courses", h.EducatorCourses)
				r.Get("/dashboard", h.EducatorDashboard)
				r.Get("/enrolled-students", h.EnrolledStudents)
			})
		})

		r.Route("/api/user", func(r chi.Router) {
			r.Use(auth)

			r.Get("/data", h.UserData)
			r.Get("/enrolled-courses", h.EnrolledCourses)
			r.Post("/purchase", h.Purchase)
			r.Post("/verify-payment", h.VerifyPayment)
			r.Post("/update-course-progress", h.UpdateProgress)
			r.Post("/get-course-progress", h.GetProgress)
			r.Post("/add-rating", h.AddRating)
		})

		r.With(auth).Post("/checkout", h.Purchase)
		r.With(auth).Post("/checkout/verify", h.VerifyPayment)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeMessage(w, http.StatusNotFound, http.StatusText(http.StatusNotFound))
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeMessage(w, http.StatusMethodNotAllowed, http.StatusText(http.StatusMethodNotAllowed))
	})

	return r
}
