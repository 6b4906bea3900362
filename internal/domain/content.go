package domain

import "time"

// NewsletterContent 内容寻址的共享通讯正文。
//
// 以规范化正文的哈希为键；首个唯一内容创建行，后续命中只增加计数，
// 除计数与共享策展元数据外不再修改。
type NewsletterContent struct {
	ID          string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	ContentHash string    `json:"contentHash" gorm:"type:varchar(64);uniqueIndex"` // BLAKE2b-256 十六进制
	BlobKey     string    `json:"blobKey" gorm:"type:varchar(255)"`                // 对调用方不透明
	ImportCount int       `json:"importCount" gorm:"default:0"`                    // 各渠道导入次数
	ReaderCount int       `json:"readerCount" gorm:"default:0"`                    // 引用该内容的用户数
	Title       string    `json:"title" gorm:"type:varchar(500)"`                  // 共享策展元数据
	IsFeatured  bool      `json:"isFeatured" gorm:"default:false"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}
