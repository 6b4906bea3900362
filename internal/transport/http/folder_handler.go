package httptransport

import (
	"github.com/gin-gonic/gin"

	"lettervault/internal/service"
)

// FolderHandler 文件夹生命周期端点。
type FolderHandler struct {
	folders *service.FolderService
}

// NewFolderHandler 创建文件夹处理器
func NewFolderHandler(folders *service.FolderService) *FolderHandler {
	return &FolderHandler{folders: folders}
}

type createFolderRequest struct {
	Name       string `json:"name" binding:"required"`
	Color      string `json:"color"`
	Category   string `json:"category"`
	AutoRename bool   `json:"autoRename"`
}

// Create 创建文件夹。
func (h *FolderHandler) Create(c *gin.Context) {
	var req createFolderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	folder, err := h.folders.Create(service.CreateFolderInput{
		UserID:     currentUserID(c),
		Name:       req.Name,
		Color:      req.Color,
		Category:   req.Category,
		AutoRename: req.AutoRename,
	})
	if err != nil {
		RespondError(c, err)
		return
	}
	Created(c, folder)
}

// List 列出文件夹。
func (h *FolderHandler) List(c *gin.Context) {
	includeHidden := c.Query("includeHidden") == "true"
	folders, err := h.folders.List(currentUserID(c), includeHidden)
	if err != nil {
		RespondError(c, err)
		return
	}
	Success(c, gin.H{
		"items": folders,
		"count": len(folders),
	})
}

// Get 获取文件夹详情。
func (h *FolderHandler) Get(c *gin.Context) {
	folder, err := h.folders.Get(currentUserID(c), c.Param("id"))
	if err != nil {
		RespondError(c, err)
		return
	}
	Success(c, folder)
}

type renameFolderRequest struct {
	Name string `json:"name" binding:"required"`
}

// Rename 重命名文件夹。
func (h *FolderHandler) Rename(c *gin.Context) {
	var req renameFolderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	folder, err := h.folders.Rename(currentUserID(c), c.Param("id"), req.Name)
	if err != nil {
		RespondError(c, err)
		return
	}
	Success(c, folder)
}

type setHiddenRequest struct {
	Hidden *bool `json:"hidden" binding:"required"`
}

// SetHidden 切换文件夹隐藏状态。
func (h *FolderHandler) SetHidden(c *gin.Context) {
	var req setHiddenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	folder, err := h.folders.SetHidden(currentUserID(c), c.Param("id"), *req.Hidden)
	if err != nil {
		RespondError(c, err)
		return
	}
	Success(c, folder)
}

// Delete 删除文件夹。
func (h *FolderHandler) Delete(c *gin.Context) {
	if err := h.folders.Delete(currentUserID(c), c.Param("id")); err != nil {
		RespondError(c, err)
		return
	}
	NoContent(c)
}

type mergeFolderRequest struct {
	TargetFolderID string `json:"targetFolderId" binding:"required"`
}

// Merge 把当前文件夹合并进目标文件夹，返回可撤销的合并 ID。
func (h *FolderHandler) Merge(c *gin.Context) {
	var req mergeFolderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	result, err := h.folders.Merge(currentUserID(c), c.Param("id"), req.TargetFolderID)
	if err != nil {
		RespondError(c, err)
		return
	}
	Success(c, result)
}

// Undo 在窗口内撤销一次合并。
func (h *FolderHandler) Undo(c *gin.Context) {
	result, err := h.folders.Undo(currentUserID(c), c.Param("id"))
	if err != nil {
		RespondError(c, err)
		return
	}
	Success(c, result)
}
