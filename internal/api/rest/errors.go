package rest

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/seedpool/seedpool-backend/internal/api/shared/errors"
)

// respondBadRequest responds with a bad request error
func respondBadRequest(c *gin.Context, message string, details ...string) {
	c.JSON(http.StatusBadRequest, errors.NewBadRequestError(message, details...))
}

// respondNotFound responds with a not found error
func respondNotFound(c *gin.Context, message string, details ...string) {
	c.JSON(http.StatusNotFound, errors.NewNotFoundError(message, details...))
}

// respondValidationError responds with a validation error
func respondValidationError(c *gin.Context, message string) {
	c.JSON(http.StatusUnprocessableEntity, errors.NewValidationError(message))
}

// respondConflict responds with a conflict error
func respondConflict(c *gin.Context, message string, details ...string) {
	c.JSON(http.StatusConflict, errors.NewConflictError(message, details...))
}

// respondUnauthorized responds with a uniform unauthorized error
func respondUnauthorized(c *gin.Context) {
	c.JSON(http.StatusUnauthorized, errors.NewUnauthorizedError("Authentication failed"))
}

// respondInternalError responds with an internal server error
func respondInternalError(c *gin.Context, message string, details ...string) {
	c.JSON(http.StatusInternalServerError, errors.NewInternalError(message, details...))
}
