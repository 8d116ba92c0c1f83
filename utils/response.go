package utils

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RequestIDKey is the gin context key holding the request correlation id
const RequestIDKey = "request_id"

// JSONResponse writes the standard envelope with a data payload
func JSONResponse(c *gin.Context, status int, data any, message string) {
	c.JSON(status, gin.H{
		"status":  status,
		"message": message,
		"data":    data,
	})
}

// JSONMessage writes the standard envelope without a payload
func JSONMessage(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{
		"status":  status,
		"message": message,
	})
}

// JSONError writes an error envelope. The request id, when set, is echoed
// so clients can quote it. Error details are only sent for client errors;
// a 5xx body carries the message and request id alone.
func JSONError(c *gin.Context, status int, err error, message string) {
	body := gin.H{
		"status":  status,
		"message": message,
	}
	if status < http.StatusInternalServerError && err != nil {
		body["error"] = err.Error()
	}
	if id := c.GetString(RequestIDKey); id != "" {
		body["request_id"] = id
	}
	c.JSON(status, body)
}
