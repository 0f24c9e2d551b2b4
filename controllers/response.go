package controllers

import (
	"errors"
	"log"
	"net/http"

	"backend/services"

	"github.com/gin-gonic/gin"
)

// Envelope convention: {success, data} on the happy path,
// {success, error} otherwise. 500-class messages stay generic so internals
// never leak; validation messages are specific because the caller can fix
// those.

func respondOK(c *gin.Context, status int, data interface{}) {
	c.JSON(status, gin.H{"success": true, "data": data})
}

func respondError(c *gin.Context, err error) {
	switch {
	case services.IsValidation(err):
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
	case services.IsNotFound(err):
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": err.Error()})
	default:
		var lce *services.LowConfidenceError
		if errors.As(err, &lce) {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"success": false, "error": "document could not be read with enough confidence"})
			return
		}
		log.Printf("%s %s: %v", c.Request.Method, c.Request.URL.Path, err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "internal error, please try again"})
	}
}

func userIDFromCtx(c *gin.Context) (uint, bool) {
	v, ok := c.Get("userID")
	if !ok {
		return 0, false
	}
	switch id := v.(type) {
	case uint:
		return id, true
	case int:
		return uint(id), true
	case int64:
		return uint(id), true
	default:
		return 0, false
	}
}

func requireUser(c *gin.Context) (uint, bool) {
	userID, ok := userIDFromCtx(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "unauthorized"})
	}
	return userID, ok
}
