package httptransport

import "github.com/gin-gonic/gin"

// APIResponse is the uniform envelope returned by every endpoint.
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data"`
	Message string      `json:"message"`
	Code    int         `json:"code"`
}

// RespondSuccess writes a success envelope.
func RespondSuccess(c *gin.Context, httpStatus int, data interface{}, message string) {
	if message == "" {
		message = "ok"
	}
	c.JSON(httpStatus, APIResponse{
		Success: true,
		Message: message,
		Code:    httpStatus,
		Data:    data,
	})
}

// RespondError writes a failure envelope.
func RespondError(c *gin.Context, httpStatus int, message string, data interface{}) {
	c.JSON(httpStatus, APIResponse{
		Success: false,
		Message: message,
		Code:    httpStatus,
		Data:    data,
	})
}
