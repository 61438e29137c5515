package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/drogue-iot/drogue-postgresql-pusher/internal/models"
)

// RespondWithError sends a standardized JSON error response and aborts the chain.
func RespondWithError(c *gin.Context, httpStatus int, appErrorCode string, message string, details interface{}) {
	errResp := models.APIError{
		Code:    appErrorCode,
		Message: message,
		Details: details,
	}
	c.AbortWithStatusJSON(httpStatus, errResp)
}

// RespondWithServiceError maps a pipeline error to its HTTP status.
// Errors caused by the event or the mapping are not acceptable, target
// failures are reported as a bad gateway.
func RespondWithServiceError(c *gin.Context, err error) {
	kind := models.KindOf(err)
	RespondWithError(c, statusForKind(kind), kind.ErrorCode(), err.Error(), nil)
}

func statusForKind(kind models.ErrorKind) int {
	switch kind {
	case models.ErrorKindSelector, models.ErrorKindPayloadParse, models.ErrorKindConversion:
		return http.StatusNotAcceptable
	case models.ErrorKindTarget:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// RespondWithSuccess sends a JSON body, or only the status when data is nil.
func RespondWithSuccess(c *gin.Context, httpStatus int, data interface{}) {
	if data != nil {
		c.JSON(httpStatus, data)
	} else {
		c.Status(httpStatus)
	}
}
