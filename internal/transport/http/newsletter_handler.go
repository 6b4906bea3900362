package httptransport

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"lettervault/internal/domain"
	"lettervault/internal/service"
)

// NewsletterHandler 通讯的入库与读取端点。
type NewsletterHandler struct {
	newsletters *service.NewsletterService
	contents    *service.ContentStore
}

// NewNewsletterHandler 创建通讯处理器
func NewNewsletterHandler(newsletters *service.NewsletterService, contents *service.ContentStore) *NewsletterHandler {
	return &NewsletterHandler{newsletters: newsletters, contents: contents}
}

type storeNewsletterRequest struct {
	SenderID   string     `json:"senderId" binding:"required"`
	Subject    string     `json:"subject" binding:"required"`
	Body       string     `json:"body" binding:"required"`
	MessageID  string     `json:"messageId"`
	ReceivedAt *time.Time `json:"receivedAt"`
}

// Store 手动上传一封通讯入库。
func (h *NewsletterHandler) Store(c *gin.Context) {
	var req storeNewsletterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	input := service.StoreInput{
		UserID:    currentUserID(c),
		SenderID:  req.SenderID,
		Subject:   req.Subject,
		Body:      req.Body,
		MessageID: req.MessageID,
		Source:    domain.ChannelUpload,
	}
	if req.ReceivedAt != nil {
		input.ReceivedAt = req.ReceivedAt.UTC()
	}

	result, err := h.contents.Store(input)
	if err != nil {
		RespondError(c, err)
		return
	}

	if result.Outcome == service.OutcomeDuplicate {
		Success(c, gin.H{
			"outcome": result.Outcome,
			"reason":  result.Reason,
		})
		return
	}
	Created(c, gin.H{
		"outcome":    result.Outcome,
		"newsletter": result.Newsletter,
	})
}

// List 列出当前用户的通讯。
func (h *NewsletterHandler) List(c *gin.Context) {
	userID := currentUserID(c)
	includeHidden := c.Query("includeHidden") == "true"

	if folderID := c.Query("folderId"); folderID != "" {
		items, err := h.newsletters.ListByFolder(userID, folderID)
		if err != nil {
			RespondError(c, err)
			return
		}
		Success(c, gin.H{"items": items, "count": len(items)})
		return
	}

	items, err := h.newsletters.List(userID, includeHidden)
	if err != nil {
		RespondError(c, err)
		return
	}
	Success(c, gin.H{"items": items, "count": len(items)})
}

// Get 获取通讯详情。
func (h *NewsletterHandler) Get(c *gin.Context) {
	newsletter, err := h.newsletters.Get(currentUserID(c), c.Param("id"))
	if err != nil {
		RespondError(c, err)
		return
	}
	Success(c, newsletter)
}

// GetBody 取回通讯正文，直接返回 HTML。
func (h *NewsletterHandler) GetBody(c *gin.Context) {
	body, err := h.newsletters.GetBody(currentUserID(c), c.Param("id"))
	if err != nil {
		RespondError(c, err)
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", body)
}

// MarkRead 标记通讯已读。
func (h *NewsletterHandler) MarkRead(c *gin.Context) {
	if err := h.newsletters.MarkRead(currentUserID(c), c.Param("id")); err != nil {
		RespondError(c, err)
		return
	}
	NoContent(c)
}

type setNewsletterHiddenRequest struct {
	Hidden *bool `json:"hidden" binding:"required"`
}

// SetHidden 切换通讯隐藏状态。
func (h *NewsletterHandler) SetHidden(c *gin.Context) {
	var req setNewsletterHiddenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	if err := h.newsletters.SetHidden(currentUserID(c), c.Param("id"), *req.Hidden); err != nil {
		RespondError(c, err)
		return
	}
	NoContent(c)
}

// Delete 删除通讯引用。
func (h *NewsletterHandler) Delete(c *gin.Context) {
	if err := h.newsletters.Delete(currentUserID(c), c.Param("id")); err != nil {
		RespondError(c, err)
		return
	}
	NoContent(c)
}

type importSharedRequest struct {
	SenderID string `json:"senderId" binding:"required"`
}

// ImportShared 从社区内容库导入一份共享内容。
func (h *NewsletterHandler) ImportShared(c *gin.Context) {
	var req importSharedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	newsletter, err := h.contents.ImportSharedContent(currentUserID(c), c.Param("id"), req.SenderID)
	if err != nil {
		RespondError(c, err)
		return
	}
	Created(c, newsletter)
}
