package domain

import "time"

// SourceChannel 通讯进入系统的渠道。
type SourceChannel string

const (
	ChannelInbox     SourceChannel = "inbox"     // 专属收件地址直投
	ChannelUpload    SourceChannel = "upload"    // 批量文件上传
	ChannelRemote    SourceChannel = "remote"    // 远程邮箱导入
	ChannelCommunity SourceChannel = "community" // 社区内容库导入
)

// ContentRef 通讯内容的存放位置，共享与私有二选一。
//
// 共享路径引用去重后的 NewsletterContent；私有路径持有用户级 Blob 键，
// 不参与跨用户去重。两个字段恰好一个非空，通过构造函数与 Validate 保证。
type ContentRef struct {
	ContentID      string `json:"contentId,omitempty" gorm:"type:varchar(36);index"`
	PrivateBlobKey string `json:"privateBlobKey,omitempty" gorm:"type:varchar(255)"`
}

// SharedRef 构造共享内容引用。
func SharedRef(contentID string) ContentRef {
	return ContentRef{ContentID: contentID}
}

// PrivateRef 构造私有内容引用。
func PrivateRef(blobKey string) ContentRef {
	return ContentRef{PrivateBlobKey: blobKey}
}

// IsPrivate 判断引用是否指向私有存储。
func (r ContentRef) IsPrivate() bool {
	return r.PrivateBlobKey != ""
}

// Validate 校验恰好一个引用字段非空。
func (r ContentRef) Validate() error {
	if r.ContentID == "" && r.PrivateBlobKey == "" {
		return ErrValidation("newsletter must reference shared content or a private blob")
	}
	if r.ContentID != "" && r.PrivateBlobKey != "" {
		return ErrValidation("newsletter cannot reference both shared content and a private blob")
	}
	return nil
}

// UserNewsletter 用户对一份通讯内容的个人引用。
type UserNewsletter struct {
	ID         string        `json:"id" gorm:"primaryKey;type:varchar(36)"`
	UserID     string        `json:"userId" gorm:"type:varchar(36);index:idx_newsletter_user"`
	SenderID   string        `json:"senderId" gorm:"type:varchar(36);index"`
	FolderID   *string       `json:"folderId,omitempty" gorm:"type:varchar(36);index"`
	Ref        ContentRef    `json:"ref" gorm:"embedded"`
	MessageID  string        `json:"messageId,omitempty" gorm:"type:varchar(255);index"` // 原始邮件标识，用于渠道级去重
	Subject    string        `json:"subject" gorm:"type:varchar(500)"`
	Source     SourceChannel `json:"source" gorm:"type:varchar(20)"`
	ReceivedAt time.Time     `json:"receivedAt" gorm:"index"`
	IsRead     bool          `json:"isRead" gorm:"default:false"`
	IsHidden   bool          `json:"isHidden" gorm:"default:false"`
	CreatedAt  time.Time     `json:"createdAt"`
	UpdatedAt  time.Time     `json:"updatedAt"`
}
