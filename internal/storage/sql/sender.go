package sql

import (
	"gorm.io/gorm"

	"lettervault/internal/domain"
)

// SaveSender 保存发件人记录。
func (s *Store) SaveSender(sender *domain.Sender) error {
	return translate(s.db.Create(sender).Error, "")
}

// GetSender 根据 ID 获取发件人。
func (s *Store) GetSender(id string) (*domain.Sender, error) {
	var sender domain.Sender
	if err := s.db.First(&sender, "id = ?", id).Error; err != nil {
		return nil, translate(err, "sender not found")
	}
	return &sender, nil
}

// GetSenderByEmail 根据邮箱获取发件人；存在多条时返回最早创建的。
func (s *Store) GetSenderByEmail(email string) (*domain.Sender, error) {
	var sender domain.Sender
	err := s.db.Where("email = ?", email).
		Order("created_at ASC, id ASC").
		First(&sender).Error
	if err != nil {
		return nil, translate(err, "sender not found")
	}
	return &sender, nil
}

// ListSendersByEmail 按创建顺序返回同一地址的全部发件人记录。
func (s *Store) ListSendersByEmail(email string) ([]*domain.Sender, error) {
	var senders []*domain.Sender
	err := s.db.Where("email = ?", email).
		Order("created_at ASC, id ASC").
		Find(&senders).Error
	if err != nil {
		return nil, translate(err, "")
	}
	return senders, nil
}

// UpdateSender 更新发件人记录。
func (s *Store) UpdateSender(sender *domain.Sender) error {
	result := s.db.Model(&domain.Sender{}).Where("id = ?", sender.ID).
		Updates(map[string]interface{}{
			"name":   sender.Name,
			"email":  sender.Email,
			"domain": sender.Domain,
		})
	if result.Error != nil {
		return translate(result.Error, "")
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound("sender not found")
	}
	return nil
}

// DeleteSender 删除发件人记录（仅用于并发创建的竞争修复）。
func (s *Store) DeleteSender(id string) error {
	result := s.db.Delete(&domain.Sender{}, "id = ?", id)
	if result.Error != nil {
		return translate(result.Error, "")
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound("sender not found")
	}
	return nil
}

// IncrementSubscriberCount 调整发件人的订阅用户计数，下限为零。
func (s *Store) IncrementSubscriberCount(senderID string, delta int) error {
	result := s.db.Model(&domain.Sender{}).Where("id = ?", senderID).
		Update("subscriber_count", gorm.Expr("GREATEST(subscriber_count + ?, 0)", delta))
	if result.Error != nil {
		return translate(result.Error, "")
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound("sender not found")
	}
	return nil
}

// IncrementNewsletterCount 累加发件人的通讯计数。
func (s *Store) IncrementNewsletterCount(senderID string) error {
	result := s.db.Model(&domain.Sender{}).Where("id = ?", senderID).
		Update("newsletter_count", gorm.Expr("newsletter_count + 1"))
	if result.Error != nil {
		return translate(result.Error, "")
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound("sender not found")
	}
	return nil
}

// SaveSenderSettings 保存用户-发件人设置。
func (s *Store) SaveSenderSettings(settings *domain.UserSenderSettings) error {
	return translate(s.db.Create(settings).Error, "")
}

// GetSenderSettings 获取某用户对某发件人的设置；存在多条时返回最早创建的。
func (s *Store) GetSenderSettings(userID, senderID string) (*domain.UserSenderSettings, error) {
	var settings domain.UserSenderSettings
	err := s.db.Where("user_id = ? AND sender_id = ?", userID, senderID).
		Order("created_at ASC, id ASC").
		First(&settings).Error
	if err != nil {
		return nil, translate(err, "sender settings not found")
	}
	return &settings, nil
}

// ListSenderSettings 按创建顺序返回某用户对某发件人的全部设置记录。
func (s *Store) ListSenderSettings(userID, senderID string) ([]*domain.UserSenderSettings, error) {
	var settings []*domain.UserSenderSettings
	err := s.db.Where("user_id = ? AND sender_id = ?", userID, senderID).
		Order("created_at ASC, id ASC").
		Find(&settings).Error
	if err != nil {
		return nil, translate(err, "")
	}
	return settings, nil
}

// ListSettingsByFolder 返回引用指定文件夹的全部设置。
func (s *Store) ListSettingsByFolder(userID, folderID string) ([]*domain.UserSenderSettings, error) {
	var settings []*domain.UserSenderSettings
	err := s.db.Where("user_id = ? AND folder_id = ?", userID, folderID).
		Find(&settings).Error
	if err != nil {
		return nil, translate(err, "")
	}
	return settings, nil
}

// UpdateSenderSettings 更新用户-发件人设置。
func (s *Store) UpdateSenderSettings(settings *domain.UserSenderSettings) error {
	result := s.db.Model(&domain.UserSenderSettings{}).Where("id = ?", settings.ID).
		Select("is_private", "folder_id").
		Updates(map[string]interface{}{
			"is_private": settings.IsPrivate,
			"folder_id":  settings.FolderID,
		})
	if result.Error != nil {
		return translate(result.Error, "")
	}
	if result.RowsAffected == 0 {
		// 无行变化也可能是值本身未变，确认行存在
		var count int64
		if err := s.db.Model(&domain.UserSenderSettings{}).Where("id = ?", settings.ID).Count(&count).Error; err != nil {
			return translate(err, "")
		}
		if count == 0 {
			return domain.ErrNotFound("sender settings not found")
		}
	}
	return nil
}

// DeleteSenderSettings 删除用户-发件人设置。
func (s *Store) DeleteSenderSettings(id string) error {
	result := s.db.Delete(&domain.UserSenderSettings{}, "id = ?", id)
	if result.Error != nil {
		return translate(result.Error, "")
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound("sender settings not found")
	}
	return nil
}
