package httpapi

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"lead-intake/pkg/logger"

	"github.com/gin-gonic/gin"
)

// Envelope is the JSON shape of every API response.
type Envelope struct {
	Status  string `json:"status"`
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
	Errors  any    `json:"errors,omitempty"`
	// Debug carries the underlying error outside production only.
	Debug string `json:"debug,omitempty"`
}

func respond(c *gin.Context, code int, message string, data any) {
	c.JSON(code, Envelope{Status: "success", Code: code, Message: message, Data: data})
}

func respondError(c *gin.Context, code int, message string, errs any) {
	c.AbortWithStatusJSON(code, Envelope{Status: "error", Code: code, Message: message, Errors: errs})
}

// respondFailure reports a server-caused error. The cause is attached to the
// gin context for the request log and echoed as debug outside production.
func (h Handlers) respondFailure(c *gin.Context, message string, err error) {
	_ = c.Error(err)
	env := Envelope{Status: "error", Code: http.StatusInternalServerError, Message: message}
	if !h.Production && err != nil {
		env.Debug = err.Error()
	}
	c.AbortWithStatusJSON(http.StatusInternalServerError, env)
}

// recoverPanic turns a handler panic into an enveloped 500 so middleware
// above the recovery point still sees a completed response.
func (h Handlers) recoverPanic(c *gin.Context, rec any) {
	logger.FromGin(c).Error("handler panic", "panic", rec, "stack", string(debug.Stack()))
	h.respondFailure(c, "Internal server error", fmt.Errorf("panic: %v", rec))
}
