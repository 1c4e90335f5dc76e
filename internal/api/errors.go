package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mescon/timr/internal/format"
	"github.com/mescon/timr/internal/logger"
	"github.com/mescon/timr/internal/timeexpr"
	"github.com/mescon/timr/internal/timer"
)

// Standard error messages (don't leak internal details)
const (
	ErrMsgInvalidRequest = "Invalid request"
	ErrMsgInternalError  = "Internal server error"
	ErrMsgTimerNotFound  = "Timer not found"
	ErrMsgStartRequired  = "start is required"
	ErrMsgUnknownStatus  = "Unknown status"
)

// respondWithError sends a JSON error response and logs the actual error
func respondWithError(c *gin.Context, status int, publicMsg string, err error) {
	if err != nil {
		logger.Debugf("%s: %v", publicMsg, err)
	}
	c.JSON(status, gin.H{"error": publicMsg})
}

// respondBadRequest handles bad request errors, optionally exposing the error message
// Use exposeError=true only for validation errors safe to show users
func respondBadRequest(c *gin.Context, err error, exposeError bool) {
	if exposeError && err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	respondWithError(c, http.StatusBadRequest, ErrMsgInvalidRequest, err)
}

// respondNotFound handles not found errors
func respondNotFound(c *gin.Context, msg string) {
	c.JSON(http.StatusNotFound, gin.H{"error": msg})
}

// timerErrorStatus maps an error from the timer stack to an HTTP status: bad input
// is 400, a call the timer's state forbids is 409, anything else is 500.
func timerErrorStatus(err error) int {
	switch {
	case errors.Is(err, timeexpr.ErrType),
		errors.Is(err, timeexpr.ErrFormat),
		errors.Is(err, timeexpr.ErrNegative),
		errors.Is(err, timeexpr.ErrRange),
		errors.Is(err, timeexpr.ErrDateParse),
		errors.Is(err, format.ErrInvalidOption),
		errors.Is(err, timer.ErrType):
		return http.StatusBadRequest
	case errors.Is(err, timer.ErrZeroStartTime),
		errors.Is(err, timer.ErrInvalidTransition),
		errors.Is(err, timer.ErrDestroyed):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// respondTimerError reports err with the status timerErrorStatus picks. Client errors
// carry the error text; server errors only the generic message.
func respondTimerError(c *gin.Context, err error) {
	status := timerErrorStatus(err)
	if status == http.StatusInternalServerError {
		respondWithError(c, status, ErrMsgInternalError, err)
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
