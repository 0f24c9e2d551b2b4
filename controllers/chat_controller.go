package controllers

import (
	"net/http"
	"strconv"

	"backend/services"

	"github.com/gin-gonic/gin"
)

type ChatController struct {
	Svc *services.ChatService
}

func NewChatController(svc *services.ChatService) *ChatController {
	return &ChatController{Svc: svc}
}

type ChatMessageInput struct {
	ConversationID uint   `json:"conversation_id"` // 0 starts a new conversation
	Content        string `json:"content" binding:"required"`
}

func (h *ChatController) SendMessage(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	var input ChatMessageInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}

	reply, err := h.Svc.SendMessage(c.Request.Context(), userID, input.ConversationID, input.Content)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, reply)
}

func (h *ChatController) ListConversations(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	convs, err := h.Svc.ListConversations(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, convs)
}

func (h *ChatController) GetMessages(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	convID, ok := conversationIDParam(c)
	if !ok {
		return
	}
	msgs, err := h.Svc.GetMessages(c.Request.Context(), userID, convID)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, msgs)
}

func (h *ChatController) UpdateTitle(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	convID, ok := conversationIDParam(c)
	if !ok {
		return
	}
	var body struct {
		Title string `json:"title" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}
	if err := h.Svc.UpdateTitle(c.Request.Context(), userID, convID, body.Title); err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, gin.H{"message": "title updated"})
}

func conversationIDParam(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid conversation id"})
		return 0, false
	}
	return uint(id), true
}
