package memory

import (
	"time"

	"lettervault/internal/domain"
)

// SaveContent 保存共享通讯内容行。
func (s *Store) SaveContent(content *domain.NewsletterContent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existingID, exists := s.contentsByHash[content.ContentHash]; exists && existingID != content.ID {
		return domain.ErrDuplicate("content hash already stored")
	}

	s.contents[content.ID] = content
	s.contentsByHash[content.ContentHash] = content.ID
	return nil
}

// GetContent 根据 ID 获取共享内容。
func (s *Store) GetContent(id string) (*domain.NewsletterContent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	content, ok := s.contents[id]
	if !ok {
		return nil, domain.ErrNotFound("newsletter content not found")
	}
	return content, nil
}

// GetContentByHash 根据内容哈希获取共享内容。
func (s *Store) GetContentByHash(hash string) (*domain.NewsletterContent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.contentsByHash[hash]
	if !ok {
		return nil, domain.ErrNotFound("newsletter content not found")
	}
	return s.contents[id], nil
}

// IncrementContentCounters 累加共享内容的导入/读者计数。
func (s *Store) IncrementContentCounters(id string, imports, readers int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	content, ok := s.contents[id]
	if !ok {
		return domain.ErrNotFound("newsletter content not found")
	}
	content.ImportCount += imports
	content.ReaderCount += readers
	content.UpdatedAt = time.Now().UTC()
	return nil
}
