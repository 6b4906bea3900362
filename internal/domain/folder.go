package domain

import "time"

// FolderUndoWindow 合并操作可撤销的时间窗口。
const FolderUndoWindow = 30 * time.Second

// Folder 用户拥有的发件人/通讯分组。
//
// 名称在同一用户内不区分大小写唯一；冲突通过追加递增数字后缀解决。
type Folder struct {
	ID        string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	UserID    string    `json:"userId" gorm:"type:varchar(36);index"`
	Name      string    `json:"name" gorm:"type:varchar(100)"`
	Color     string    `json:"color" gorm:"type:varchar(20)"`    // 十六进制颜色
	Category  string    `json:"category" gorm:"type:varchar(50)"` // 分类标签
	IsHidden  bool      `json:"isHidden" gorm:"default:false"`    // 隐藏后不计入聚合列表
	SortOrder int       `json:"sortOrder" gorm:"default:0"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// FolderMergeHistory 一次合并操作的撤销记录。
//
// 与合并原子写入，撤销或过期清扫时删除。ExpiresAt 恒等于 CreatedAt 加撤销
// 窗口；过期后即使尚未被清扫也不可再用于撤销。
type FolderMergeHistory struct {
	ID                 string      `json:"id" gorm:"primaryKey;type:varchar(36)"`
	UserID             string      `json:"userId" gorm:"type:varchar(36);index"`
	SourceName         string      `json:"sourceName" gorm:"type:varchar(100)"` // 源文件夹的展示属性
	SourceColor        string      `json:"sourceColor" gorm:"type:varchar(20)"`
	SourceCategory     string      `json:"sourceCategory" gorm:"type:varchar(50)"`
	TargetFolderID     string      `json:"targetFolderId" gorm:"type:varchar(36)"`
	MovedSettingIDs    StringSlice `json:"movedSettingIds" gorm:"type:text"` // 被移动的发件人设置行
	MovedNewsletterIDs StringSlice `json:"movedNewsletterIds" gorm:"type:text"`
	CreatedAt          time.Time   `json:"createdAt"`
	ExpiresAt          time.Time   `json:"expiresAt" gorm:"index"`
}

// Expired 判断撤销窗口是否已关闭。
func (h *FolderMergeHistory) Expired(now time.Time) bool {
	return now.After(h.ExpiresAt)
}

// MergeResult 合并操作的返回载荷。
type MergeResult struct {
	MergeID              string `json:"mergeId"`
	TargetFolderID       string `json:"targetFolderId"`
	MovedSettingCount    int    `json:"movedSettingCount"`
	MovedNewsletterCount int    `json:"movedNewsletterCount"`
}

// UndoResult 撤销操作的返回载荷。
//
// 合并与撤销之间被用户独立删除的行会被跳过并单独计数，不算失败。
type UndoResult struct {
	FolderID                string `json:"folderId"` // 重建出的文件夹
	RestoredSettingCount    int    `json:"restoredSettingCount"`
	RestoredNewsletterCount int    `json:"restoredNewsletterCount"`
	SkippedSettingCount     int    `json:"skippedSettingCount"`
	SkippedNewsletterCount  int    `json:"skippedNewsletterCount"`
}
