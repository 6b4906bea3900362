package sql

import (
	"errors"

	"gorm.io/gorm"

	"lettervault/internal/domain"
)

// SaveContent 保存共享通讯内容行。
//
// content_hash 上的唯一索引是并发首创竞争的权威裁决：竞争失败方收到
// Duplicate 后改走命中路径。
func (s *Store) SaveContent(content *domain.NewsletterContent) error {
	if err := s.db.Create(content).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return domain.ErrDuplicate("content hash already stored")
		}
		return translate(err, "")
	}
	return nil
}

// GetContent 根据 ID 获取共享内容。
func (s *Store) GetContent(id string) (*domain.NewsletterContent, error) {
	var content domain.NewsletterContent
	if err := s.db.First(&content, "id = ?", id).Error; err != nil {
		return nil, translate(err, "newsletter content not found")
	}
	return &content, nil
}

// GetContentByHash 根据内容哈希获取共享内容。
func (s *Store) GetContentByHash(hash string) (*domain.NewsletterContent, error) {
	var content domain.NewsletterContent
	if err := s.db.First(&content, "content_hash = ?", hash).Error; err != nil {
		return nil, translate(err, "newsletter content not found")
	}
	return &content, nil
}

// IncrementContentCounters 累加共享内容的导入/读者计数。
func (s *Store) IncrementContentCounters(id string, imports, readers int) error {
	result := s.db.Model(&domain.NewsletterContent{}).Where("id = ?", id).
		Updates(map[string]interface{}{
			"import_count": gorm.Expr("import_count + ?", imports),
			"reader_count": gorm.Expr("reader_count + ?", readers),
		})
	if result.Error != nil {
		return translate(result.Error, "")
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound("newsletter content not found")
	}
	return nil
}
