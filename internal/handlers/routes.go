package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/harentsoaR/tabib-api/internal/middleware"
)

// RegisterRoutes mounts the public auth routes and the protected /api tree.
func (h *Handler) RegisterRoutes(r gin.IRouter) {
	authRoutes := r.Group("/auth")
	{
		authRoutes.POST("/register", h.RegisterUser)
		authRoutes.POST("/login", h.Login)
	}

	api := r.Group("/api")
	api.Use(middleware.AuthMiddleware(h.Auth)) // Protect all /api routes
	{
		api.POST("/logout", h.Logout)
		api.GET("/me", h.GetCurrentUser)
		api.PUT("/me", h.UpdateCurrentUser)
		api.GET("/roles", h.GetRoles)
		api.GET("/live", h.Live)

		api.GET("/doctors", h.ListDoctors)
		api.GET("/doctors/:id", h.GetDoctor)
		api.GET("/doctors/:id/slots", h.GetSlots)

		api.GET("/appointments", h.GetAppointments)
		api.POST("/appointments", h.CreateAppointment)
		api.GET("/appointments/:id", h.GetAppointment)
		api.PUT("/appointments/:id/status", h.UpdateAppointmentStatus)
		api.GET("/appointments/:id/messages", h.GetMessages)
		api.POST("/appointments/:id/messages", h.SendMessage)
	}

	doctor := api.Group("/doctor", middleware.RequireDoctor(h.Svc))
	{
		doctor.GET("/profile", h.GetDoctorProfile)
		doctor.PUT("/profile", h.UpdateDoctorProfile)
		doctor.GET("/appointments", h.GetDoctorAppointments)
		doctor.GET("/patients", h.GetDoctorPatients)
		doctor.GET("/stats", h.GetDoctorStats)
	}

	admin := api.Group("/admin", middleware.RequireAdmin(h.Svc))
	{
		admin.GET("/users", h.AdminListUsers)
		admin.PUT("/users/:id", h.AdminUpdateUser)
		admin.DELETE("/users/:id", h.AdminDeleteUser)
		admin.POST("/users/:id/admin", h.AdminMakeAdmin)
		admin.PUT("/users/:id/disabled", h.AdminDisableUser)

		admin.GET("/doctors", h.AdminListDoctors)
		admin.POST("/doctors", h.AdminCreateDoctor)
		admin.PUT("/doctors/:id", h.AdminUpdateDoctor)
		admin.DELETE("/doctors/:id", h.AdminDeleteDoctor)

		admin.GET("/appointments", h.AdminListAppointments)
		admin.GET("/stats", h.AdminStats)
	}
}
