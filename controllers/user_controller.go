package controllers

import (
	"net/http"

	"backend/services"

	"github.com/gin-gonic/gin"
)

type UserController struct {
	HealthData *services.HealthDataService
}

func NewUserController(hd *services.HealthDataService) *UserController {
	return &UserController{HealthData: hd}
}

func (h *UserController) GetProfile(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	profile, err := services.GetUserProfile(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, profile)
}

func (h *UserController) UpdateProfile(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	var input services.ProfileInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}

	if err := services.UpdateUserProfile(c.Request.Context(), userID, input); err != nil {
		respondError(c, err)
		return
	}

	respondOK(c, http.StatusOK, gin.H{"message": "profile updated successfully"})
}

// DeleteAccount removes the user's health data and disables the account.
func (h *UserController) DeleteAccount(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	counts, err := services.DeleteAccount(c.Request.Context(), userID, h.HealthData)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, gin.H{"message": "account deleted", "removed": counts})
}
