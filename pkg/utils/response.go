package utils

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// ErrorBody is the JSON shape of every error response.
type ErrorBody struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Error   interface{} `json:"error,omitempty"`
}

// MessageResponse sends {message} with the given status.
func MessageResponse(c *gin.Context, statusCode int, message string) {
	c.JSON(statusCode, gin.H{"message": message})
}

// ErrorResponse sends an error response. Server errors never echo err to
// the client; it is attached to the gin context for the access log.
func ErrorResponse(c *gin.Context, statusCode int, message string, err error) {
	if err != nil {
		_ = c.Error(err)
	}

	c.JSON(statusCode, ErrorBody{
		Success: false,
		Message: message,
	})
}

// ValidationErrorResponse sends a 400 listing the offending fields.
func ValidationErrorResponse(c *gin.Context, message string, fields []string) {
	body := ErrorBody{
		Success: false,
		Message: message,
	}
	if len(fields) > 0 {
		body.Error = fields
	}

	c.JSON(http.StatusBadRequest, body)
}
