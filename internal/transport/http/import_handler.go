package httptransport

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"

	"lettervault/internal/domain"
	"lettervault/internal/service"
)

// ImportHandler 批量导入端点。
type ImportHandler struct {
	imports *service.ImportService
}

// NewImportHandler 创建导入处理器
func NewImportHandler(imports *service.ImportService) *ImportHandler {
	return &ImportHandler{imports: imports}
}

type importDocument struct {
	SenderEmail string     `json:"senderEmail" binding:"required"`
	SenderName  string     `json:"senderName"`
	Subject     string     `json:"subject" binding:"required"`
	Body        string     `json:"body" binding:"required"`
	MessageID   string     `json:"messageId"`
	ReceivedAt  *time.Time `json:"receivedAt"`
}

type startBatchRequest struct {
	Documents []importDocument `json:"documents" binding:"required,min=1"`
}

// StartBatch 异步启动一个上传批次，返回可轮询的批次标识。
//
// 批次进度另经 WebSocket 推送。
func (h *ImportHandler) StartBatch(c *gin.Context) {
	var req startBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	docs := make([]service.SourceDocument, 0, len(req.Documents))
	for _, doc := range req.Documents {
		source := service.SourceDocument{
			SenderEmail: doc.SenderEmail,
			SenderName:  doc.SenderName,
			Subject:     doc.Subject,
			Body:        doc.Body,
			MessageID:   doc.MessageID,
			Source:      domain.ChannelUpload,
		}
		if doc.ReceivedAt != nil {
			source.ReceivedAt = doc.ReceivedAt.UTC()
		}
		docs = append(docs, source)
	}

	// 批次生命周期独立于本次请求
	batch, err := h.imports.StartBatch(context.WithoutCancel(c.Request.Context()), currentUserID(c), docs)
	if err != nil {
		RespondError(c, err)
		return
	}

	Created(c, gin.H{
		"batchId": batch.ID,
		"total":   batch.Total,
	})
}

type remoteImportRequest struct {
	SenderEmail string `json:"senderEmail" binding:"required"`
}

// ImportRemote 从远端邮箱同步导入某发件人的全部消息，完成后返回批次结果。
func (h *ImportHandler) ImportRemote(c *gin.Context) {
	var req remoteImportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	batch, err := h.imports.ImportFromRemote(c.Request.Context(), currentUserID(c), req.SenderEmail)
	if err != nil {
		RespondError(c, err)
		return
	}
	Success(c, batch.Snapshot(true))
}

// GetBatch 查询批次进度与逐项状态。
func (h *ImportHandler) GetBatch(c *gin.Context) {
	status, err := h.imports.GetBatch(currentUserID(c), c.Param("id"))
	if err != nil {
		RespondError(c, err)
		return
	}
	Success(c, status)
}
