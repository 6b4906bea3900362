package memory

import (
	"sort"
	"time"

	"lettervault/internal/domain"
)

// SaveSender 保存发件人记录。
func (s *Store) SaveSender(sender *domain.Sender) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.senders[sender.ID] = sender
	if s.sendersByEmail[sender.Email] == nil {
		s.sendersByEmail[sender.Email] = make(map[string]*domain.Sender)
	}
	s.sendersByEmail[sender.Email][sender.ID] = sender
	return nil
}

// GetSender 根据 ID 获取发件人。
func (s *Store) GetSender(id string) (*domain.Sender, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sender, ok := s.senders[id]
	if !ok {
		return nil, domain.ErrNotFound("sender not found")
	}
	return sender, nil
}

// GetSenderByEmail 根据邮箱获取发件人；存在多条时返回最早创建的。
func (s *Store) GetSenderByEmail(email string) (*domain.Sender, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	candidates := s.listSendersByEmailLocked(email)
	if len(candidates) == 0 {
		return nil, domain.ErrNotFound("sender not found")
	}
	return candidates[0], nil
}

// ListSendersByEmail 按创建顺序返回同一地址的全部发件人记录。
func (s *Store) ListSendersByEmail(email string) ([]*domain.Sender, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.listSendersByEmailLocked(email), nil
}

// listSendersByEmailLocked 需要持有读锁。
func (s *Store) listSendersByEmailLocked(email string) []*domain.Sender {
	byID := s.sendersByEmail[email]
	result := make([]*domain.Sender, 0, len(byID))
	for _, sender := range byID {
		result = append(result, sender)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ID < result[j].ID
		}
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result
}

// UpdateSender 更新发件人记录。
func (s *Store) UpdateSender(sender *domain.Sender) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.senders[sender.ID]; !ok {
		return domain.ErrNotFound("sender not found")
	}
	sender.UpdatedAt = time.Now().UTC()
	s.senders[sender.ID] = sender
	s.sendersByEmail[sender.Email][sender.ID] = sender
	return nil
}

// DeleteSender 删除发件人记录（仅用于并发创建的竞争修复）。
func (s *Store) DeleteSender(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sender, ok := s.senders[id]
	if !ok {
		return domain.ErrNotFound("sender not found")
	}
	delete(s.senders, id)
	if byID := s.sendersByEmail[sender.Email]; byID != nil {
		delete(byID, id)
		if len(byID) == 0 {
			delete(s.sendersByEmail, sender.Email)
		}
	}
	return nil
}

// IncrementSubscriberCount 调整发件人的订阅用户计数。
func (s *Store) IncrementSubscriberCount(senderID string, delta int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sender, ok := s.senders[senderID]
	if !ok {
		return domain.ErrNotFound("sender not found")
	}
	sender.SubscriberCount += delta
	if sender.SubscriberCount < 0 {
		sender.SubscriberCount = 0
	}
	sender.UpdatedAt = time.Now().UTC()
	return nil
}

// IncrementNewsletterCount 累加发件人的通讯计数。
func (s *Store) IncrementNewsletterCount(senderID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sender, ok := s.senders[senderID]
	if !ok {
		return domain.ErrNotFound("sender not found")
	}
	sender.NewsletterCount++
	sender.UpdatedAt = time.Now().UTC()
	return nil
}

// SaveSenderSettings 保存用户-发件人设置。
func (s *Store) SaveSenderSettings(settings *domain.UserSenderSettings) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.settings[settings.ID] = settings
	if s.settingsByUser[settings.UserID] == nil {
		s.settingsByUser[settings.UserID] = make(map[string]*domain.UserSenderSettings)
	}
	s.settingsByUser[settings.UserID][settings.ID] = settings
	return nil
}

// GetSenderSettings 获取某用户对某发件人的设置；存在多条时返回最早创建的。
func (s *Store) GetSenderSettings(userID, senderID string) (*domain.UserSenderSettings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	candidates := s.listSenderSettingsLocked(userID, senderID)
	if len(candidates) == 0 {
		return nil, domain.ErrNotFound("sender settings not found")
	}
	return candidates[0], nil
}

// ListSenderSettings 按创建顺序返回某用户对某发件人的全部设置记录。
func (s *Store) ListSenderSettings(userID, senderID string) ([]*domain.UserSenderSettings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.listSenderSettingsLocked(userID, senderID), nil
}

// listSenderSettingsLocked 需要持有读锁。
func (s *Store) listSenderSettingsLocked(userID, senderID string) []*domain.UserSenderSettings {
	result := make([]*domain.UserSenderSettings, 0, 1)
	for _, settings := range s.settingsByUser[userID] {
		if settings.SenderID == senderID {
			result = append(result, settings)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ID < result[j].ID
		}
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result
}

// ListSettingsByFolder 返回引用指定文件夹的全部设置。
func (s *Store) ListSettingsByFolder(userID, folderID string) ([]*domain.UserSenderSettings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.UserSenderSettings, 0)
	for _, settings := range s.settingsByUser[userID] {
		if settings.FolderID != nil && *settings.FolderID == folderID {
			result = append(result, settings)
		}
	}
	return result, nil
}

// UpdateSenderSettings 更新用户-发件人设置。
func (s *Store) UpdateSenderSettings(settings *domain.UserSenderSettings) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.settings[settings.ID]; !ok {
		return domain.ErrNotFound("sender settings not found")
	}
	settings.UpdatedAt = time.Now().UTC()
	s.settings[settings.ID] = settings
	s.settingsByUser[settings.UserID][settings.ID] = settings
	return nil
}

// DeleteSenderSettings 删除用户-发件人设置。
func (s *Store) DeleteSenderSettings(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	settings, ok := s.settings[id]
	if !ok {
		return domain.ErrNotFound("sender settings not found")
	}
	delete(s.settings, id)
	if byID := s.settingsByUser[settings.UserID]; byID != nil {
		delete(byID, id)
	}
	return nil
}
