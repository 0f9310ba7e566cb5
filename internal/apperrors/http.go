package apperrors

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Write renders err as {"error", "kind"} with the status of its kind.
// Storage and unknown errors are not echoed to the client.
func Write(c *gin.Context, err error) {
	status := HTTPStatus(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		message = "internal error"
	}
	_ = c.Error(err)
	c.JSON(status, gin.H{"error": message, "kind": Kind(err)})
}

// BadRequest answers 400 for input that never reached a use case.
func BadRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": message, "kind": "validation_error"})
}
