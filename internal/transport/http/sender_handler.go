package httptransport

import (
	"github.com/gin-gonic/gin"

	"lettervault/internal/service"
	"lettervault/internal/storage"
)

// SenderHandler 发件人注册表端点。
type SenderHandler struct {
	senders *service.SenderRegistry
	store   storage.Store
}

// NewSenderHandler 创建发件人处理器
func NewSenderHandler(senders *service.SenderRegistry, store storage.Store) *SenderHandler {
	return &SenderHandler{senders: senders, store: store}
}

type resolveSenderRequest struct {
	Email string `json:"email" binding:"required"`
	Name  string `json:"name"`
}

// Resolve 解析或创建发件人，同时确保调用用户的设置存在。
func (h *SenderHandler) Resolve(c *gin.Context) {
	var req resolveSenderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	sender, err := h.senders.ResolveOrCreateSender(req.Email, req.Name)
	if err != nil {
		RespondError(c, err)
		return
	}
	settings, err := h.senders.ResolveOrCreateUserSettings(currentUserID(c), sender.ID)
	if err != nil {
		RespondError(c, err)
		return
	}

	Success(c, gin.H{
		"sender":   sender,
		"settings": settings,
	})
}

// Get 获取发件人及当前用户的设置。
func (h *SenderHandler) Get(c *gin.Context) {
	sender, err := h.store.GetSender(c.Param("id"))
	if err != nil {
		RespondError(c, err)
		return
	}

	response := gin.H{"sender": sender}
	if settings, err := h.store.GetSenderSettings(currentUserID(c), sender.ID); err == nil {
		response["settings"] = settings
	}
	Success(c, response)
}

type updateSettingsRequest struct {
	IsPrivate *bool   `json:"isPrivate"`
	FolderID  *string `json:"folderId"`
}

// UpdateSettings 更新当前用户对发件人的隐私开关与文件夹归属。
func (h *SenderHandler) UpdateSettings(c *gin.Context) {
	var req updateSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}
	if req.IsPrivate == nil && req.FolderID == nil {
		BadRequest(c, MsgRequestBodyEmpty)
		return
	}

	settings, err := h.senders.UpdateUserSettings(currentUserID(c), c.Param("id"), req.IsPrivate, req.FolderID)
	if err != nil {
		RespondError(c, err)
		return
	}
	Success(c, settings)
}
