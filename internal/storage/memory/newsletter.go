package memory

import (
	"sort"
	"time"

	"lettervault/internal/domain"
)

// SaveNewsletter 保存用户通讯引用。
func (s *Store) SaveNewsletter(newsletter *domain.UserNewsletter) error {
	if err := newsletter.Ref.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.newsletters[newsletter.ID] = newsletter
	if s.newslettersByUser[newsletter.UserID] == nil {
		s.newslettersByUser[newsletter.UserID] = make(map[string]*domain.UserNewsletter)
	}
	s.newslettersByUser[newsletter.UserID][newsletter.ID] = newsletter
	return nil
}

// GetNewsletter 获取用户的某条通讯引用。
func (s *Store) GetNewsletter(userID, id string) (*domain.UserNewsletter, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	newsletter, ok := s.newsletters[id]
	if !ok || newsletter.UserID != userID {
		return nil, domain.ErrNotFound("newsletter not found")
	}
	return newsletter, nil
}

// DeleteNewsletter 删除用户的某条通讯引用。
func (s *Store) DeleteNewsletter(userID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	newsletter, ok := s.newsletters[id]
	if !ok || newsletter.UserID != userID {
		return domain.ErrNotFound("newsletter not found")
	}
	delete(s.newsletters, id)
	if byID := s.newslettersByUser[userID]; byID != nil {
		delete(byID, id)
	}
	return nil
}

// ListNewsletters 列出用户的通讯；默认排除隐藏文件夹中的条目。
func (s *Store) ListNewsletters(userID string, includeHidden bool) ([]*domain.UserNewsletter, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.UserNewsletter, 0, len(s.newslettersByUser[userID]))
	for _, newsletter := range s.newslettersByUser[userID] {
		if !includeHidden {
			if newsletter.IsHidden {
				continue
			}
			if newsletter.FolderID != nil {
				if folder, ok := s.folders[*newsletter.FolderID]; ok && folder.IsHidden {
					continue
				}
			}
		}
		result = append(result, newsletter)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].ReceivedAt.After(result[j].ReceivedAt)
	})
	return result, nil
}

// ListNewslettersByFolder 列出指定文件夹中的通讯。
func (s *Store) ListNewslettersByFolder(userID, folderID string) ([]*domain.UserNewsletter, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.UserNewsletter, 0)
	for _, newsletter := range s.newslettersByUser[userID] {
		if newsletter.FolderID != nil && *newsletter.FolderID == folderID {
			result = append(result, newsletter)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].ReceivedAt.After(result[j].ReceivedAt)
	})
	return result, nil
}

// MarkNewsletterRead 将通讯标记为已读。
func (s *Store) MarkNewsletterRead(userID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	newsletter, ok := s.newsletters[id]
	if !ok || newsletter.UserID != userID {
		return domain.ErrNotFound("newsletter not found")
	}
	newsletter.IsRead = true
	newsletter.UpdatedAt = time.Now().UTC()
	return nil
}

// SetNewsletterHidden 设置通讯的隐藏标记。
func (s *Store) SetNewsletterHidden(userID, id string, hidden bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	newsletter, ok := s.newsletters[id]
	if !ok || newsletter.UserID != userID {
		return domain.ErrNotFound("newsletter not found")
	}
	newsletter.IsHidden = hidden
	newsletter.UpdatedAt = time.Now().UTC()
	return nil
}

// HasNewsletterMeta 阶段一元数据查重。
func (s *Store) HasNewsletterMeta(userID, senderID string, receivedAt time.Time, subject string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, newsletter := range s.newslettersByUser[userID] {
		if newsletter.SenderID == senderID &&
			newsletter.Subject == subject &&
			newsletter.ReceivedAt.Equal(receivedAt) {
			return true, nil
		}
	}
	return false, nil
}

// HasNewsletterMessageID 按原始邮件标识查重。
func (s *Store) HasNewsletterMessageID(userID, messageID string) (bool, error) {
	if messageID == "" {
		return false, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, newsletter := range s.newslettersByUser[userID] {
		if newsletter.MessageID == messageID {
			return true, nil
		}
	}
	return false, nil
}

// CountNewslettersSince 统计配额窗口内入库的通讯数量。
func (s *Store) CountNewslettersSince(userID string, since time.Time) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, newsletter := range s.newslettersByUser[userID] {
		if !newsletter.CreatedAt.Before(since) {
			count++
		}
	}
	return count, nil
}
