package sql

import (
	"time"

	"lettervault/internal/domain"
)

// SaveNewsletter 保存用户通讯引用。
func (s *Store) SaveNewsletter(newsletter *domain.UserNewsletter) error {
	if err := newsletter.Ref.Validate(); err != nil {
		return err
	}
	return translate(s.db.Create(newsletter).Error, "")
}

// GetNewsletter 获取用户的某条通讯引用。
func (s *Store) GetNewsletter(userID, id string) (*domain.UserNewsletter, error) {
	var newsletter domain.UserNewsletter
	err := s.db.First(&newsletter, "id = ? AND user_id = ?", id, userID).Error
	if err != nil {
		return nil, translate(err, "newsletter not found")
	}
	return &newsletter, nil
}

// DeleteNewsletter 删除用户的某条通讯引用。
func (s *Store) DeleteNewsletter(userID, id string) error {
	result := s.db.Delete(&domain.UserNewsletter{}, "id = ? AND user_id = ?", id, userID)
	if result.Error != nil {
		return translate(result.Error, "")
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound("newsletter not found")
	}
	return nil
}

// ListNewsletters 列出用户的通讯；默认排除隐藏条目与隐藏文件夹中的条目。
func (s *Store) ListNewsletters(userID string, includeHidden bool) ([]*domain.UserNewsletter, error) {
	query := s.db.Where("user_newsletters.user_id = ?", userID)
	if !includeHidden {
		query = query.Where("user_newsletters.is_hidden = ?", false).
			Where("user_newsletters.folder_id IS NULL OR user_newsletters.folder_id NOT IN (?)",
				s.db.Model(&domain.Folder{}).Select("id").Where("user_id = ? AND is_hidden = ?", userID, true))
	}

	var newsletters []*domain.UserNewsletter
	err := query.Order("received_at DESC").Find(&newsletters).Error
	if err != nil {
		return nil, translate(err, "")
	}
	return newsletters, nil
}

// ListNewslettersByFolder 列出指定文件夹中的通讯。
func (s *Store) ListNewslettersByFolder(userID, folderID string) ([]*domain.UserNewsletter, error) {
	var newsletters []*domain.UserNewsletter
	err := s.db.Where("user_id = ? AND folder_id = ?", userID, folderID).
		Order("received_at DESC").
		Find(&newsletters).Error
	if err != nil {
		return nil, translate(err, "")
	}
	return newsletters, nil
}

// MarkNewsletterRead 将通讯标记为已读。
func (s *Store) MarkNewsletterRead(userID, id string) error {
	result := s.db.Model(&domain.UserNewsletter{}).
		Where("id = ? AND user_id = ?", id, userID).
		Update("is_read", true)
	if result.Error != nil {
		return translate(result.Error, "")
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound("newsletter not found")
	}
	return nil
}

// SetNewsletterHidden 设置通讯的隐藏标记。
func (s *Store) SetNewsletterHidden(userID, id string, hidden bool) error {
	result := s.db.Model(&domain.UserNewsletter{}).
		Where("id = ? AND user_id = ?", id, userID).
		Select("is_hidden").
		Updates(map[string]interface{}{"is_hidden": hidden})
	if result.Error != nil {
		return translate(result.Error, "")
	}
	if result.RowsAffected == 0 {
		var count int64
		if err := s.db.Model(&domain.UserNewsletter{}).
			Where("id = ? AND user_id = ?", id, userID).Count(&count).Error; err != nil {
			return translate(err, "")
		}
		if count == 0 {
			return domain.ErrNotFound("newsletter not found")
		}
	}
	return nil
}

// HasNewsletterMeta 阶段一元数据查重。
func (s *Store) HasNewsletterMeta(userID, senderID string, receivedAt time.Time, subject string) (bool, error) {
	var count int64
	err := s.db.Model(&domain.UserNewsletter{}).
		Where("user_id = ? AND sender_id = ? AND received_at = ? AND subject = ?",
			userID, senderID, receivedAt, subject).
		Count(&count).Error
	if err != nil {
		return false, translate(err, "")
	}
	return count > 0, nil
}

// HasNewsletterMessageID 按原始邮件标识查重。
func (s *Store) HasNewsletterMessageID(userID, messageID string) (bool, error) {
	if messageID == "" {
		return false, nil
	}

	var count int64
	err := s.db.Model(&domain.UserNewsletter{}).
		Where("user_id = ? AND message_id = ?", userID, messageID).
		Count(&count).Error
	if err != nil {
		return false, translate(err, "")
	}
	return count > 0, nil
}

// CountNewslettersSince 统计配额窗口内入库的通讯数量。
func (s *Store) CountNewslettersSince(userID string, since time.Time) (int, error) {
	var count int64
	err := s.db.Model(&domain.UserNewsletter{}).
		Where("user_id = ? AND created_at >= ?", userID, since).
		Count(&count).Error
	if err != nil {
		return 0, translate(err, "")
	}
	return int(count), nil
}
