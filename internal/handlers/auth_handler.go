package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/harentsoaR/tabib-api/internal/auth"
	"github.com/harentsoaR/tabib-api/internal/middleware"
)

type RegisterUserRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Phone    string `json:"phone"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type UpdateProfileRequest struct {
	Name  *string `json:"name"`
	Phone *string `json:"phone"`
}

// sessionBody is what register, login and /me return.
func (h *Handler) sessionBody(c *gin.Context, sess *auth.Session) gin.H {
	return gin.H{"session": sess, "roles": h.Svc.RolesOf(c.Request.Context(), sess)}
}

func (h *Handler) RegisterUser(c *gin.Context) {
	var req RegisterUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}

	sess, err := h.Auth.SignUp(c.Request.Context(), req.Email, req.Password, req.Name, req.Phone)
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, http.StatusCreated, h.sessionBody(c, sess))
}

func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}

	sess, err := h.Auth.SignIn(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, http.StatusOK, h.sessionBody(c, sess))
}

func (h *Handler) Logout(c *gin.Context) {
	if err := h.Auth.LogOut(c.Request.Context(), middleware.Session(c)); err != nil {
		h.fail(c, err)
		return
	}
	done(c)
}

func (h *Handler) GetCurrentUser(c *gin.Context) {
	ok(c, http.StatusOK, h.sessionBody(c, middleware.Session(c)))
}

// UpdateCurrentUser changes the caller's own name or phone.
func (h *Handler) UpdateCurrentUser(c *gin.Context) {
	var req UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}
	updates := map[string]any{}
	if req.Name != nil {
		updates["name"] = *req.Name
	}
	if req.Phone != nil {
		updates["phone"] = *req.Phone
	}
	if len(updates) == 0 {
		badRequest(c, "No fields to update")
		return
	}

	sess := middleware.Session(c)
	if err := h.Auth.UpdateUserData(c.Request.Context(), sess.UID, updates); err != nil {
		h.fail(c, err)
		return
	}
	done(c)
}

func (h *Handler) GetRoles(c *gin.Context) {
	ok(c, http.StatusOK, h.Svc.RolesOf(c.Request.Context(), middleware.Session(c)))
}
