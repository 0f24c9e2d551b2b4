package controllers

import (
	"io"
	"net/http"

	"backend/services"

	"github.com/gin-gonic/gin"
)

type UploadController struct {
	Svc *services.IngestionService
}

func NewUploadController(svc *services.IngestionService) *UploadController {
	return &UploadController{Svc: svc}
}

// UploadFile takes a multipart form with a single "file" field, caps it at
// 10MB, and runs it through the ingestion pipeline.
func (h *UploadController) UploadFile(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	header, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "missing file field"})
		return
	}
	if header.Size > services.MaxUploadBytes {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "file exceeds 10MB limit"})
		return
	}

	f, err := header.Open()
	if err != nil {
		respondError(c, err)
		return
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, services.MaxUploadBytes+1))
	if err != nil {
		respondError(c, err)
		return
	}

	mimeType := header.Header.Get("Content-Type")
	file, err := h.Svc.Ingest(c.Request.Context(), data, header.Filename, mimeType, userID)
	if err != nil {
		respondError(c, err)
		return
	}
	services.EmitExtractionAlert(userID, header.Filename, file)
	respondOK(c, http.StatusCreated, file)
}

func (h *UploadController) ListFiles(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	files, err := h.Svc.ListFiles(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, files)
}
