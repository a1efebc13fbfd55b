package httpapi

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"certificatePortal/internal/auth"
	"certificatePortal/internal/common"
)

// statusFor maps an error kind to its HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, common.ErrValidation), errors.Is(err, common.ErrConflict):
		return http.StatusBadRequest
	case errors.Is(err, auth.ErrMissingToken):
		return http.StatusUnauthorized
	case errors.Is(err, auth.ErrInvalidToken), errors.Is(err, common.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, common.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, common.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// writeError renders err as {message[, error]}. Backend failures also carry
// the underlying cause.
func writeError(c *gin.Context, status int, err error) {
	body := gin.H{"message": common.Message(err)}
	if status >= http.StatusInternalServerError {
		if d := common.Detail(err); d != "" {
			body["error"] = d
		}
	}
	c.JSON(status, body)
}
