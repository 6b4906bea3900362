package storage

import (
	"time"

	"lettervault/internal/domain"
)

// SenderRepository 定义发件人数据存取操作。
//
// ListSendersByEmail 按创建顺序返回同一地址的全部记录，供乐观插入后的
// 竞争修复使用（保留最早者，删除其余）。
type SenderRepository interface {
	SaveSender(sender *domain.Sender) error
	GetSender(id string) (*domain.Sender, error)
	GetSenderByEmail(email string) (*domain.Sender, error)
	ListSendersByEmail(email string) ([]*domain.Sender, error)
	UpdateSender(sender *domain.Sender) error
	DeleteSender(id string) error
	IncrementSubscriberCount(senderID string, delta int) error
	IncrementNewsletterCount(senderID string) error
}

// SettingsRepository 定义用户-发件人设置数据存取操作。
type SettingsRepository interface {
	SaveSenderSettings(settings *domain.UserSenderSettings) error
	GetSenderSettings(userID, senderID string) (*domain.UserSenderSettings, error)
	ListSenderSettings(userID, senderID string) ([]*domain.UserSenderSettings, error)
	ListSettingsByFolder(userID, folderID string) ([]*domain.UserSenderSettings, error)
	UpdateSenderSettings(settings *domain.UserSenderSettings) error
	DeleteSenderSettings(id string) error
}

// FolderRepository 定义文件夹数据存取操作。
//
// MoveFolderRefs 与 RestoreFolderRefs 是粗粒度原子操作：多行改写在一个
// 事务（或一次临界区）内完成，并发读者不会看到中间状态。
type FolderRepository interface {
	SaveFolder(folder *domain.Folder) error
	GetFolder(id string) (*domain.Folder, error)
	ListFolders(userID string) ([]*domain.Folder, error)
	UpdateFolder(folder *domain.Folder) error
	DeleteFolder(id string) error

	// MoveFolderRefs 将引用 fromFolderID 的全部设置与通讯改指到 toFolderID，
	// 返回被移动的行 ID 列表。
	MoveFolderRefs(userID, fromFolderID, toFolderID string) (settingIDs, newsletterIDs []string, err error)

	// ClearFolderRefs 清空对指定文件夹的全部引用（删除文件夹前调用）。
	ClearFolderRefs(userID, folderID string) error

	// RestoreFolderRefs 把仍然存在的行重新指回 folderID，返回恢复与跳过的数量。
	RestoreFolderRefs(userID, folderID string, settingIDs, newsletterIDs []string) (restoredSettings, restoredNewsletters, skippedSettings, skippedNewsletters int, err error)
}

// MergeHistoryRepository 定义合并撤销记录的存取操作。
type MergeHistoryRepository interface {
	SaveMergeHistory(history *domain.FolderMergeHistory) error
	GetMergeHistory(id string) (*domain.FolderMergeHistory, error)
	DeleteMergeHistory(id string) error
	// DeleteExpiredMergeHistories 删除已过期的撤销记录，返回删除数量。
	DeleteExpiredMergeHistories(before time.Time) (int, error)
}

// ContentRepository 定义共享通讯内容的存取操作。
type ContentRepository interface {
	SaveContent(content *domain.NewsletterContent) error
	GetContent(id string) (*domain.NewsletterContent, error)
	GetContentByHash(hash string) (*domain.NewsletterContent, error)
	// IncrementContentCounters 累加导入/读者计数。
	IncrementContentCounters(id string, imports, readers int) error
}

// NewsletterRepository 定义用户通讯引用的存取操作。
type NewsletterRepository interface {
	SaveNewsletter(newsletter *domain.UserNewsletter) error
	GetNewsletter(userID, id string) (*domain.UserNewsletter, error)
	DeleteNewsletter(userID, id string) error
	ListNewsletters(userID string, includeHidden bool) ([]*domain.UserNewsletter, error)
	ListNewslettersByFolder(userID, folderID string) ([]*domain.UserNewsletter, error)
	MarkNewsletterRead(userID, id string) error
	SetNewsletterHidden(userID, id string, hidden bool) error

	// HasNewsletterMeta 阶段一元数据查重：同发件人、同时间戳、同主题是否已存在。
	HasNewsletterMeta(userID, senderID string, receivedAt time.Time, subject string) (bool, error)
	// HasNewsletterMessageID 按原始邮件标识查重。
	HasNewsletterMessageID(userID, messageID string) (bool, error)
	// CountNewslettersSince 统计配额窗口内入库的通讯数量。
	CountNewslettersSince(userID string, since time.Time) (int, error)
}

// UserRepository 定义用户数据存取操作。
type UserRepository interface {
	CreateUser(user *domain.User) error
	GetUserByID(id string) (*domain.User, error)
	GetUserByEmail(email string) (*domain.User, error)
	GetUserByIntakeToken(token string) (*domain.User, error)
}

// Store 定义完整的存储接口。
type Store interface {
	SenderRepository
	SettingsRepository
	FolderRepository
	MergeHistoryRepository
	ContentRepository
	NewsletterRepository
	UserRepository

	// 工具方法
	Close() error
	Health() error
}
