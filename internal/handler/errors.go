package handler

import (
	"errors"
	"net/http"

	"floatai/internal/conversation"
	"floatai/internal/service"

	"github.com/gin-gonic/gin"
)

// statusFor 把服务层错误映射为HTTP状态码
func statusFor(err error) int {
	var terr *service.TransportError
	switch {
	case errors.Is(err, service.ErrValidation),
		errors.Is(err, conversation.ErrEmptyInput),
		errors.Is(err, conversation.ErrIndexOutOfRange):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrMissingConfig):
		return http.StatusPreconditionFailed
	case errors.Is(err, conversation.ErrTurnInProgress),
		errors.Is(err, conversation.ErrTurnMismatch):
		return http.StatusConflict
	case errors.Is(err, service.ErrNotFound),
		errors.Is(err, service.ErrPromptNotFound),
		errors.Is(err, conversation.ErrViewNotFound):
		return http.StatusNotFound
	case errors.Is(err, conversation.ErrViewClosed):
		return http.StatusGone
	case errors.As(err, &terr):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func respondError(c *gin.Context, err error) {
	c.JSON(statusFor(err), gin.H{"error": err.Error()})
}
