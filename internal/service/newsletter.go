package service

import (
	"go.uber.org/zap"

	"lettervault/internal/blob"
	"lettervault/internal/domain"
	"lettervault/internal/storage"
)

// NewsletterService 用户通讯的读取侧：列表、详情、正文与已读/隐藏标记。
type NewsletterService struct {
	store storage.Store
	blobs blob.Service
	log   *zap.Logger
}

// NewNewsletterService 创建通讯读取服务。
func NewNewsletterService(store storage.Store, blobs blob.Service, log *zap.Logger) *NewsletterService {
	if log == nil {
		log = zap.NewNop()
	}
	return &NewsletterService{store: store, blobs: blobs, log: log}
}

// List 列出用户的通讯；默认排除隐藏的通讯与隐藏文件夹内的通讯。
func (s *NewsletterService) List(userID string, includeHidden bool) ([]*domain.UserNewsletter, error) {
	if userID == "" {
		return nil, domain.ErrUnauthorized("caller identity is required")
	}
	return s.store.ListNewsletters(userID, includeHidden)
}

// ListByFolder 列出某文件夹内的通讯，校验文件夹归属。
func (s *NewsletterService) ListByFolder(userID, folderID string) ([]*domain.UserNewsletter, error) {
	folder, err := s.store.GetFolder(folderID)
	if err != nil {
		return nil, err
	}
	if folder.UserID != userID {
		return nil, domain.ErrForbidden("folder belongs to another user")
	}
	return s.store.ListNewslettersByFolder(userID, folderID)
}

// Get 获取单封通讯。存储按用户维度检索，他人的通讯等同不存在。
func (s *NewsletterService) Get(userID, newsletterID string) (*domain.UserNewsletter, error) {
	if userID == "" {
		return nil, domain.ErrUnauthorized("caller identity is required")
	}
	return s.store.GetNewsletter(userID, newsletterID)
}

// GetBody 取回通讯正文。
//
// 共享引用经内容行解析 Blob 键；私有引用直接持有 Blob 键，不经过
// 共享内容表。
func (s *NewsletterService) GetBody(userID, newsletterID string) ([]byte, error) {
	newsletter, err := s.Get(userID, newsletterID)
	if err != nil {
		return nil, err
	}

	if newsletter.Ref.IsPrivate() {
		return s.blobs.Get(newsletter.Ref.PrivateBlobKey)
	}

	content, err := s.store.GetContent(newsletter.Ref.ContentID)
	if err != nil {
		return nil, err
	}
	return s.blobs.Get(content.BlobKey)
}

// MarkRead 标记通讯为已读。首次已读时累加共享内容的阅读计数。
func (s *NewsletterService) MarkRead(userID, newsletterID string) error {
	newsletter, err := s.Get(userID, newsletterID)
	if err != nil {
		return err
	}
	if newsletter.IsRead {
		return nil
	}

	if err := s.store.MarkNewsletterRead(userID, newsletterID); err != nil {
		return err
	}
	if !newsletter.Ref.IsPrivate() {
		if err := s.store.IncrementContentCounters(newsletter.Ref.ContentID, 0, 1); err != nil &&
			!domain.IsKind(err, domain.KindNotFound) {
			s.log.Warn("failed to bump reader count",
				zap.String("newsletter_id", newsletterID),
				zap.Error(err),
			)
		}
	}
	return nil
}

// SetHidden 设置通讯隐藏标记。
func (s *NewsletterService) SetHidden(userID, newsletterID string, hidden bool) error {
	if _, err := s.Get(userID, newsletterID); err != nil {
		return err
	}
	return s.store.SetNewsletterHidden(userID, newsletterID, hidden)
}

// Delete 删除用户的通讯引用。共享内容行与 Blob 保留，私有 Blob 一并
// 成为孤儿由离线清理处理。
func (s *NewsletterService) Delete(userID, newsletterID string) error {
	if _, err := s.Get(userID, newsletterID); err != nil {
		return err
	}
	return s.store.DeleteNewsletter(userID, newsletterID)
}
