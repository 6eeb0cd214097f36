package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/harentsoaR/tabib-api/internal/models"
	"github.com/harentsoaR/tabib-api/internal/services"
)

type DisableUserRequest struct {
	Disabled bool `json:"disabled"`
}

func (h *Handler) AdminListUsers(c *gin.Context) {
	users, err := h.Svc.AllUsers(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, http.StatusOK, users)
}

func (h *Handler) AdminUpdateUser(c *gin.Context) {
	var updates map[string]any
	if err := c.ShouldBindJSON(&updates); err != nil || len(updates) == 0 {
		badRequest(c, "Invalid request body")
		return
	}
	if err := h.Svc.UpdateUser(c.Request.Context(), c.Param("id"), updates); err != nil {
		h.fail(c, err)
		return
	}
	done(c)
}

func (h *Handler) AdminDeleteUser(c *gin.Context) {
	if err := h.Svc.DeleteUser(c.Request.Context(), c.Param("id")); err != nil {
		h.fail(c, err)
		return
	}
	done(c)
}

func (h *Handler) AdminMakeAdmin(c *gin.Context) {
	if err := h.Svc.SetUserAsAdmin(c.Request.Context(), c.Param("id")); err != nil {
		h.fail(c, err)
		return
	}
	done(c)
}

// AdminDisableUser blocks or restores sign-in for an account. Live sessions
// of a disabled account stop working on their next request.
func (h *Handler) AdminDisableUser(c *gin.Context) {
	var req DisableUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}
	if err := h.Auth.SetDisabled(c.Request.Context(), c.Param("id"), req.Disabled); err != nil {
		h.fail(c, err)
		return
	}
	done(c)
}

func (h *Handler) AdminListDoctors(c *gin.Context) {
	doctors, err := h.Svc.ListDoctors(c.Request.Context(), c.Query("specialty"))
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, http.StatusOK, doctors)
}

// AdminCreateDoctor accepts the loose shapes the admin form sends, such as
// a numeric price or a string latitude.
func (h *Handler) AdminCreateDoctor(c *gin.Context) {
	var body map[string]any
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, "Invalid request body")
		return
	}
	var d models.Doctor
	if err := models.Decode(body, &d); err != nil {
		badRequest(c, err.Error())
		return
	}
	id, err := h.Svc.AddDoctor(c.Request.Context(), d)
	if err != nil {
		h.fail(c, err)
		return
	}
	created(c, id)
}

func (h *Handler) AdminUpdateDoctor(c *gin.Context) {
	var updates map[string]any
	if err := c.ShouldBindJSON(&updates); err != nil || len(updates) == 0 {
		badRequest(c, "Invalid request body")
		return
	}
	if err := h.Svc.UpdateDoctor(c.Request.Context(), c.Param("id"), updates); err != nil {
		h.fail(c, err)
		return
	}
	done(c)
}

func (h *Handler) AdminDeleteDoctor(c *gin.Context) {
	if err := h.Svc.DeleteDoctor(c.Request.Context(), c.Param("id")); err != nil {
		h.fail(c, err)
		return
	}
	done(c)
}

func (h *Handler) AdminListAppointments(c *gin.Context) {
	ctx := c.Request.Context()
	all, err := h.Svc.AllAppointments(ctx)
	if err != nil {
		h.fail(c, err)
		return
	}
	views, err := h.Svc.AdminViews(ctx, all)
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, http.StatusOK, services.FilterAppointments(views, c.Query("status"), c.Query("q")))
}

func (h *Handler) AdminStats(c *gin.Context) {
	st, err := h.Svc.AdminStats(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, http.StatusOK, st)
}
