package domain

import "time"

// Sender 全局去重后的发件人身份，按规范化邮箱地址唯一。
//
// 记录只增不删（并发创建竞争产生的多余记录除外），计数器由注册表操作维护。
type Sender struct {
	ID              string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Email           string    `json:"email" gorm:"type:varchar(255);index"` // 规范化后的邮箱地址
	Name            string    `json:"name" gorm:"type:varchar(255)"`        // 显示名称，首次出现时可为空
	Domain          string    `json:"domain" gorm:"type:varchar(255);index"`
	SubscriberCount int       `json:"subscriberCount" gorm:"default:0"` // 订阅用户数
	NewsletterCount int       `json:"newsletterCount" gorm:"default:0"` // 已入库通讯数
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// UserSenderSettings 单个用户与某发件人的关系设置。
//
// 首次收到该发件人的投递时创建；隐私开关决定内容走共享还是私有存储分支。
type UserSenderSettings struct {
	ID        string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	UserID    string    `json:"userId" gorm:"type:varchar(36);index:idx_settings_user_sender"`
	SenderID  string    `json:"senderId" gorm:"type:varchar(36);index:idx_settings_user_sender"`
	IsPrivate bool      `json:"isPrivate" gorm:"default:false"`
	FolderID  *string   `json:"folderId,omitempty" gorm:"type:varchar(36);index"` // 所属文件夹，可为空
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
