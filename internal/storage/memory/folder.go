package memory

import (
	"time"

	"lettervault/internal/domain"
)

// SaveFolder 保存文件夹。
func (s *Store) SaveFolder(folder *domain.Folder) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.folders[folder.ID] = folder
	if s.foldersByUser[folder.UserID] == nil {
		s.foldersByUser[folder.UserID] = make(map[string]*domain.Folder)
	}
	s.foldersByUser[folder.UserID][folder.ID] = folder
	return nil
}

// GetFolder 根据 ID 获取文件夹。
func (s *Store) GetFolder(id string) (*domain.Folder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	folder, ok := s.folders[id]
	if !ok {
		return nil, domain.ErrNotFound("folder not found")
	}
	return folder, nil
}

// ListFolders 列出用户的全部文件夹。
func (s *Store) ListFolders(userID string) ([]*domain.Folder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.Folder, 0, len(s.foldersByUser[userID]))
	for _, folder := range s.foldersByUser[userID] {
		result = append(result, folder)
	}
	return result, nil
}

// UpdateFolder 更新文件夹。
func (s *Store) UpdateFolder(folder *domain.Folder) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.folders[folder.ID]
	if !ok {
		return domain.ErrNotFound("folder not found")
	}
	folder.CreatedAt = existing.CreatedAt
	folder.UpdatedAt = time.Now().UTC()
	s.folders[folder.ID] = folder
	s.foldersByUser[folder.UserID][folder.ID] = folder
	return nil
}

// DeleteFolder 删除文件夹行本身，不处理引用。
func (s *Store) DeleteFolder(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	folder, ok := s.folders[id]
	if !ok {
		return domain.ErrNotFound("folder not found")
	}
	delete(s.folders, id)
	if byID := s.foldersByUser[folder.UserID]; byID != nil {
		delete(byID, id)
	}
	return nil
}

// MoveFolderRefs 原子地把引用 fromFolderID 的设置与通讯改指到 toFolderID。
func (s *Store) MoveFolderRefs(userID, fromFolderID, toFolderID string) ([]string, []string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	settingIDs := make([]string, 0)
	for _, settings := range s.settingsByUser[userID] {
		if settings.FolderID != nil && *settings.FolderID == fromFolderID {
			target := toFolderID
			settings.FolderID = &target
			settings.UpdatedAt = time.Now().UTC()
			settingIDs = append(settingIDs, settings.ID)
		}
	}

	newsletterIDs := make([]string, 0)
	for _, newsletter := range s.newslettersByUser[userID] {
		if newsletter.FolderID != nil && *newsletter.FolderID == fromFolderID {
			target := toFolderID
			newsletter.FolderID = &target
			newsletter.UpdatedAt = time.Now().UTC()
			newsletterIDs = append(newsletterIDs, newsletter.ID)
		}
	}

	return settingIDs, newsletterIDs, nil
}

// ClearFolderRefs 清空对指定文件夹的全部引用。
func (s *Store) ClearFolderRefs(userID, folderID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, settings := range s.settingsByUser[userID] {
		if settings.FolderID != nil && *settings.FolderID == folderID {
			settings.FolderID = nil
			settings.UpdatedAt = time.Now().UTC()
		}
	}
	for _, newsletter := range s.newslettersByUser[userID] {
		if newsletter.FolderID != nil && *newsletter.FolderID == folderID {
			newsletter.FolderID = nil
			newsletter.UpdatedAt = time.Now().UTC()
		}
	}
	return nil
}

// RestoreFolderRefs 把仍然存在的行重新指回 folderID。
//
// 合并与撤销之间被独立删除的行直接跳过并计数，不视为失败。
func (s *Store) RestoreFolderRefs(userID, folderID string, settingIDs, newsletterIDs []string) (int, int, int, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	restoredSettings, skippedSettings := 0, 0
	for _, id := range settingIDs {
		settings, ok := s.settings[id]
		if !ok || settings.UserID != userID {
			skippedSettings++
			continue
		}
		target := folderID
		settings.FolderID = &target
		settings.UpdatedAt = time.Now().UTC()
		restoredSettings++
	}

	restoredNewsletters, skippedNewsletters := 0, 0
	for _, id := range newsletterIDs {
		newsletter, ok := s.newsletters[id]
		if !ok || newsletter.UserID != userID {
			skippedNewsletters++
			continue
		}
		target := folderID
		newsletter.FolderID = &target
		newsletter.UpdatedAt = time.Now().UTC()
		restoredNewsletters++
	}

	return restoredSettings, restoredNewsletters, skippedSettings, skippedNewsletters, nil
}

// SaveMergeHistory 保存合并撤销记录。
func (s *Store) SaveMergeHistory(history *domain.FolderMergeHistory) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.mergeHistories[history.ID] = history
	return nil
}

// GetMergeHistory 获取合并撤销记录。
func (s *Store) GetMergeHistory(id string) (*domain.FolderMergeHistory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history, ok := s.mergeHistories[id]
	if !ok {
		return nil, domain.ErrNotFound("merge history not found")
	}
	return history, nil
}

// DeleteMergeHistory 删除合并撤销记录（成功撤销后防止重放）。
func (s *Store) DeleteMergeHistory(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.mergeHistories[id]; !ok {
		return domain.ErrNotFound("merge history not found")
	}
	delete(s.mergeHistories, id)
	return nil
}

// DeleteExpiredMergeHistories 删除已过期的撤销记录，返回删除数量。
func (s *Store) DeleteExpiredMergeHistories(before time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for id, history := range s.mergeHistories {
		if history.ExpiresAt.Before(before) {
			delete(s.mergeHistories, id)
			count++
		}
	}
	return count, nil
}
