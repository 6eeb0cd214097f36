package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/harentsoaR/tabib-api/internal/auth"
	"github.com/harentsoaR/tabib-api/internal/middleware"
	"github.com/harentsoaR/tabib-api/internal/models"
	"github.com/harentsoaR/tabib-api/internal/services"
)

type UpdateStatusRequest struct {
	Status models.Status `json:"status" binding:"required"`
}

type SendMessageRequest struct {
	Message string `json:"message" binding:"required,max=500"`
}

func (h *Handler) CreateAppointment(c *gin.Context) {
	var req services.BookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "doctorId, date and time are required")
		return
	}

	sess := middleware.Session(c)
	id, err := h.Svc.BookAppointment(c.Request.Context(), sess.UID, req)
	if err != nil {
		h.fail(c, err)
		return
	}
	created(c, id)
}

// GetAppointments lists the caller's own appointments, newest first.
func (h *Handler) GetAppointments(c *gin.Context) {
	sess := middleware.Session(c)
	views, err := h.Svc.UserAppointments(c.Request.Context(), sess.UID)
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, http.StatusOK, services.FilterAppointments(views, c.Query("status"), c.Query("q")))
}

func (h *Handler) GetAppointment(c *gin.Context) {
	appt, allowed := h.accessibleAppointment(c)
	if !allowed {
		return
	}
	ok(c, http.StatusOK, appt)
}

// UpdateAppointmentStatus is reserved to the appointment's doctor and to
// admins.
func (h *Handler) UpdateAppointmentStatus(c *gin.Context) {
	var req UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "status is required")
		return
	}

	ctx := c.Request.Context()
	sess := middleware.Session(c)
	appt, err := h.Svc.GetAppointment(ctx, c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	if !h.isDoctorOf(c, sess, appt) && !h.Svc.IsAdmin(ctx, sess) {
		forbidden(c)
		return
	}

	if err := h.Svc.UpdateAppointmentStatus(ctx, appt.ID, req.Status); err != nil {
		h.fail(c, err)
		return
	}
	done(c)
}

func (h *Handler) GetMessages(c *gin.Context) {
	appt, allowed := h.accessibleAppointment(c)
	if !allowed {
		return
	}
	msgs, err := h.Svc.AppointmentMessages(c.Request.Context(), appt.ID)
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, http.StatusOK, msgs)
}

func (h *Handler) SendMessage(c *gin.Context) {
	var req SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "message is required and limited to 500 characters")
		return
	}
	appt, allowed := h.accessibleAppointment(c)
	if !allowed {
		return
	}

	sess := middleware.Session(c)
	id, err := h.Svc.SendMessage(c.Request.Context(), appt.ID, sess.UID, senderName(sess), req.Message)
	if err != nil {
		h.fail(c, err)
		return
	}
	created(c, id)
}

// GetSlots returns the booking sheet of a doctor for ?date=.
func (h *Handler) GetSlots(c *gin.Context) {
	day, err := h.Svc.Slots(c.Request.Context(), c.Param("id"), c.Query("date"))
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, http.StatusOK, day)
}

// accessibleAppointment loads :id and checks the caller may see it. It
// writes the error response itself.
func (h *Handler) accessibleAppointment(c *gin.Context) (*models.Appointment, bool) {
	ctx := c.Request.Context()
	appt, err := h.Svc.GetAppointment(ctx, c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return nil, false
	}
	if !h.Svc.CanAccessAppointment(ctx, middleware.Session(c), appt) {
		forbidden(c)
		return nil, false
	}
	return appt, true
}

func (h *Handler) isDoctorOf(c *gin.Context, sess *auth.Session, appt *models.Appointment) bool {
	d, err := h.Svc.GetDoctorByEmail(c.Request.Context(), sess.Email)
	return err == nil && d.ID == appt.DoctorID
}

func senderName(sess *auth.Session) string {
	if sess.Name != "" {
		return sess.Name
	}
	if sess.DisplayName != "" {
		return sess.DisplayName
	}
	return sess.Email
}
