package handler

import (
	"errors"
	"net/http"

	"gestentre/internal/service"

	"github.com/gin-gonic/gin"
)

// response is the envelope every endpoint answers with.
type response struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
}

func newErrorResponse(c *gin.Context, statusCode int, errMessage string) {
	c.AbortWithStatusJSON(statusCode, response{Success: false, Message: errMessage})
}

func newSuccessResponse(c *gin.Context, data any, message string) {
	c.JSON(http.StatusOK, response{Success: true, Data: data, Message: message})
}

// statusFor maps a service error to its HTTP status and client message.
// Anything that is not a *service.Error is treated as an internal failure.
func statusFor(err error) (int, string) {
	var svcErr *service.Error
	if !errors.As(err, &svcErr) {
		return http.StatusInternalServerError, service.MsgInternal
	}

	switch svcErr.Kind {
	case service.KindValidation:
		return http.StatusBadRequest, svcErr.Message
	case service.KindAuthentication:
		return http.StatusUnauthorized, svcErr.Message
	case service.KindAuthorization:
		return http.StatusForbidden, svcErr.Message
	}
	return http.StatusInternalServerError, service.MsgInternal
}
