package sql

import (
	"time"

	"gorm.io/gorm"

	"lettervault/internal/domain"
)

// SaveFolder 保存文件夹。
func (s *Store) SaveFolder(folder *domain.Folder) error {
	return translate(s.db.Create(folder).Error, "")
}

// GetFolder 根据 ID 获取文件夹。
func (s *Store) GetFolder(id string) (*domain.Folder, error) {
	var folder domain.Folder
	if err := s.db.First(&folder, "id = ?", id).Error; err != nil {
		return nil, translate(err, "folder not found")
	}
	return &folder, nil
}

// ListFolders 列出用户的全部文件夹。
func (s *Store) ListFolders(userID string) ([]*domain.Folder, error) {
	var folders []*domain.Folder
	err := s.db.Where("user_id = ?", userID).
		Order("sort_order ASC, created_at ASC").
		Find(&folders).Error
	if err != nil {
		return nil, translate(err, "")
	}
	return folders, nil
}

// UpdateFolder 更新文件夹。
func (s *Store) UpdateFolder(folder *domain.Folder) error {
	result := s.db.Model(&domain.Folder{}).Where("id = ?", folder.ID).
		Select("name", "color", "category", "is_hidden", "sort_order").
		Updates(map[string]interface{}{
			"name":       folder.Name,
			"color":      folder.Color,
			"category":   folder.Category,
			"is_hidden":  folder.IsHidden,
			"sort_order": folder.SortOrder,
		})
	if result.Error != nil {
		return translate(result.Error, "")
	}
	if result.RowsAffected == 0 {
		var count int64
		if err := s.db.Model(&domain.Folder{}).Where("id = ?", folder.ID).Count(&count).Error; err != nil {
			return translate(err, "")
		}
		if count == 0 {
			return domain.ErrNotFound("folder not found")
		}
	}
	return nil
}

// DeleteFolder 删除文件夹行本身，不处理引用。
func (s *Store) DeleteFolder(id string) error {
	result := s.db.Delete(&domain.Folder{}, "id = ?", id)
	if result.Error != nil {
		return translate(result.Error, "")
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound("folder not found")
	}
	return nil
}

// MoveFolderRefs 在一个事务内把引用 fromFolderID 的设置与通讯改指到 toFolderID。
func (s *Store) MoveFolderRefs(userID, fromFolderID, toFolderID string) ([]string, []string, error) {
	settingIDs := make([]string, 0)
	newsletterIDs := make([]string, 0)

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&domain.UserSenderSettings{}).
			Where("user_id = ? AND folder_id = ?", userID, fromFolderID).
			Pluck("id", &settingIDs).Error; err != nil {
			return err
		}
		if err := tx.Model(&domain.UserNewsletter{}).
			Where("user_id = ? AND folder_id = ?", userID, fromFolderID).
			Pluck("id", &newsletterIDs).Error; err != nil {
			return err
		}

		if err := tx.Model(&domain.UserSenderSettings{}).
			Where("user_id = ? AND folder_id = ?", userID, fromFolderID).
			Update("folder_id", toFolderID).Error; err != nil {
			return err
		}
		return tx.Model(&domain.UserNewsletter{}).
			Where("user_id = ? AND folder_id = ?", userID, fromFolderID).
			Update("folder_id", toFolderID).Error
	})
	if err != nil {
		return nil, nil, translate(err, "")
	}
	return settingIDs, newsletterIDs, nil
}

// ClearFolderRefs 清空对指定文件夹的全部引用。
func (s *Store) ClearFolderRefs(userID, folderID string) error {
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&domain.UserSenderSettings{}).
			Where("user_id = ? AND folder_id = ?", userID, folderID).
			Update("folder_id", nil).Error; err != nil {
			return err
		}
		return tx.Model(&domain.UserNewsletter{}).
			Where("user_id = ? AND folder_id = ?", userID, folderID).
			Update("folder_id", nil).Error
	})
	return translate(err, "")
}

// RestoreFolderRefs 在一个事务内把仍然存在的行重新指回 folderID。
//
// 合并与撤销之间被独立删除的行直接跳过并计数，不视为失败。
func (s *Store) RestoreFolderRefs(userID, folderID string, settingIDs, newsletterIDs []string) (int, int, int, int, error) {
	var restoredSettings, restoredNewsletters int

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if len(settingIDs) > 0 {
			result := tx.Model(&domain.UserSenderSettings{}).
				Where("user_id = ? AND id IN ?", userID, settingIDs).
				Update("folder_id", folderID)
			if result.Error != nil {
				return result.Error
			}
			restoredSettings = int(result.RowsAffected)
		}
		if len(newsletterIDs) > 0 {
			result := tx.Model(&domain.UserNewsletter{}).
				Where("user_id = ? AND id IN ?", userID, newsletterIDs).
				Update("folder_id", folderID)
			if result.Error != nil {
				return result.Error
			}
			restoredNewsletters = int(result.RowsAffected)
		}
		return nil
	})
	if err != nil {
		return 0, 0, 0, 0, translate(err, "")
	}

	skippedSettings := len(settingIDs) - restoredSettings
	skippedNewsletters := len(newsletterIDs) - restoredNewsletters
	return restoredSettings, restoredNewsletters, skippedSettings, skippedNewsletters, nil
}

// SaveMergeHistory 保存合并撤销记录。
func (s *Store) SaveMergeHistory(history *domain.FolderMergeHistory) error {
	return translate(s.db.Create(history).Error, "")
}

// GetMergeHistory 获取合并撤销记录。
func (s *Store) GetMergeHistory(id string) (*domain.FolderMergeHistory, error) {
	var history domain.FolderMergeHistory
	if err := s.db.First(&history, "id = ?", id).Error; err != nil {
		return nil, translate(err, "merge history not found")
	}
	return &history, nil
}

// DeleteMergeHistory 删除合并撤销记录（成功撤销后防止重放）。
func (s *Store) DeleteMergeHistory(id string) error {
	result := s.db.Delete(&domain.FolderMergeHistory{}, "id = ?", id)
	if result.Error != nil {
		return translate(result.Error, "")
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound("merge history not found")
	}
	return nil
}

// DeleteExpiredMergeHistories 删除已过期的撤销记录，返回删除数量。
func (s *Store) DeleteExpiredMergeHistories(before time.Time) (int, error) {
	result := s.db.Delete(&domain.FolderMergeHistory{}, "expires_at < ?", before)
	if result.Error != nil {
		return 0, translate(result.Error, "")
	}
	return int(result.RowsAffected), nil
}
