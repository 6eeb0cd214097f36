package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/harentsoaR/tabib-api/internal/auth"
	"github.com/harentsoaR/tabib-api/internal/models"
	"github.com/harentsoaR/tabib-api/internal/services"
	"github.com/harentsoaR/tabib-api/internal/store"
)

// Handler carries the services every route needs.
type Handler struct {
	Auth *auth.Service
	Svc  *services.Service
	Log  zerolog.Logger
}

func NewHandler(authSvc *auth.Service, svc *services.Service, log zerolog.Logger) *Handler {
	return &Handler{
		Auth: authSvc,
		Svc:  svc,
		Log:  log.With().Str("component", "http").Logger(),
	}
}

func ok(c *gin.Context, status int, data any) {
	c.JSON(status, gin.H{"success": true, "data": data})
}

func created(c *gin.Context, key string) {
	c.JSON(http.StatusCreated, gin.H{"success": true, "key": key})
}

func done(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": msg})
}

func forbidden(c *gin.Context) {
	c.JSON(http.StatusForbidden, gin.H{"success": false, "error": "You do not have access to this resource"})
}

// fail maps a service error to its HTTP status. Store errors about the shape
// of the data keep their message; unclassified errors are logged and
// reported as a generic 500.
func (h *Handler) fail(c *gin.Context, err error) {
	var ae *auth.Error
	switch {
	case errors.As(err, &ae):
		c.JSON(authStatus(ae.Code), gin.H{"success": false, "error": ae.Message, "code": ae.Code})
	case errors.Is(err, services.ErrNotFound), errors.Is(err, auth.ErrAccountNotFound):
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": err.Error()})
	case errors.Is(err, models.ErrInvalidTransition):
		c.JSON(http.StatusConflict, gin.H{"success": false, "error": err.Error()})
	case errors.Is(err, services.ErrInvalidInput),
		errors.Is(err, models.ErrInvalidStatus),
		errors.Is(err, store.ErrInvalidPath),
		errors.Is(err, store.ErrNotObject),
		errors.Is(err, store.ErrRootWrite):
		badRequest(c, err.Error())
	case errors.Is(err, store.ErrClosed):
		c.JSON(http.StatusServiceUnavailable, gin.H{"success": false, "error": err.Error()})
	default:
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Internal server error"})
	}
}

func authStatus(code string) int {
	switch code {
	case auth.CodeEmailInUse:
		return http.StatusConflict
	case auth.CodeInvalidEmail, auth.CodeWeakPassword:
		return http.StatusBadRequest
	case auth.CodeUserNotFound, auth.CodeWrongPassword, auth.CodeInvalidCredential:
		return http.StatusUnauthorized
	case auth.CodeUserDisabled:
		return http.StatusForbidden
	case auth.CodeTooManyRequests:
		return http.StatusTooManyRequests
	case auth.CodeNetwork:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
