package utils

import (
	"net/http"

	"tunnelout/internal/api/dto/common"

	"github.com/gin-gonic/gin"
)

// Response helpers keep every handler on the one envelope shape.

// HandleSuccess wraps data in the success envelope
func HandleSuccess(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, common.NewSuccessResponse(data))
}

// HandleCreated is HandleSuccess with a 201 status
func HandleCreated(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, common.NewSuccessResponse(data))
}

// HandleMessage responds with a bare informational message
func HandleMessage(c *gin.Context, message string) {
	c.JSON(http.StatusOK, common.NewMessageResponse(message))
}

// HandleNoContent responds 204 with an empty body
func HandleNoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}
