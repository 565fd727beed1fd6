package response

import (
	"github.com/gin-gonic/gin"

	appErrors "github.com/noah-isme/school-portal-api/pkg/errors"
)

// EdgeError is the flat error body returned by the edge endpoints
// (/student-ai-chat, /bootstrap-admin).
type EdgeError struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// EdgeSuccess is the confirmation body returned by /bootstrap-admin.
type EdgeSuccess struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// EdgeFail renders err as {error, details?} with the status carried by the typed error.
func EdgeFail(c *gin.Context, err error) {
	appErr := appErrors.FromError(err)
	c.AbortWithStatusJSON(appErr.Status, EdgeError{Error: appErr.Message, Details: appErr.Details})
}

// EdgeOK renders {success:true, message}.
func EdgeOK(c *gin.Context, status int, message string) {
	c.JSON(status, EdgeSuccess{Success: true, Message: message})
}
