package controllers

import (
	"net/http"

	"backend/services"

	"github.com/gin-gonic/gin"
)

type SourceController struct {
	Svc *services.SyncService
}

func NewSourceController(svc *services.SyncService) *SourceController {
	return &SourceController{Svc: svc}
}

type ConnectSourceInput struct {
	AppName     string `json:"app_name" binding:"required"`
	AppType     string `json:"app_type" binding:"required,oneof=device app manual estimate"`
	Credentials string `json:"credentials"`
}

func (h *SourceController) Connect(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	var input ConnectSourceInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}
	src, err := h.Svc.ConnectSource(c.Request.Context(), userID, input.AppName, input.AppType, input.Credentials)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusCreated, src)
}

func (h *SourceController) List(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	sources, err := h.Svc.ListSources(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, sources)
}

func (h *SourceController) Disconnect(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	if err := h.Svc.DisconnectSource(c.Request.Context(), userID, c.Param("app")); err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, gin.H{"message": "source disconnected"})
}

// Sync ingests a batch of raw records reported by the client for one source.
// The client triggers this on app foreground.
func (h *SourceController) Sync(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	var body struct {
		Records []services.RawRecord `json:"records" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}

	appName := c.Param("app")
	res, err := h.Svc.IngestBatch(c.Request.Context(), userID, appName, body.Records)
	if err != nil {
		respondError(c, err)
		return
	}
	services.EmitSyncAlert(userID, appName, res)
	respondOK(c, http.StatusOK, res)
}
