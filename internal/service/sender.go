package service

import (
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"lettervault/internal/domain"
	"lettervault/internal/storage"
)

// SenderRegistry 维护全局发件人记录与每用户的发件人设置。
//
// 后端文档存储不提供跨文档锁，创建走乐观插入：先查后插，插入后重新
// 查询同地址的全部记录，并发创建出的多余记录按"最早者保留"清理。
type SenderRegistry struct {
	store storage.Store
	log   *zap.Logger
}

// NewSenderRegistry 创建发件人注册表服务。
func NewSenderRegistry(store storage.Store, log *zap.Logger) *SenderRegistry {
	if log == nil {
		log = zap.NewNop()
	}
	return &SenderRegistry{store: store, log: log}
}

// ResolveOrCreateSender 解析或创建发件人。
//
// 已存在且缺少显示名而本次提供了名称时补写名称；并发创建产生的重复
// 记录删除后返回最早创建者。
func (r *SenderRegistry) ResolveOrCreateSender(email, name string) (*domain.Sender, error) {
	if err := domain.ValidateSenderEmail(email); err != nil {
		return nil, err
	}
	email = domain.NormalizeEmail(email)

	existing, err := r.store.GetSenderByEmail(email)
	if err == nil {
		if existing.Name == "" && name != "" {
			existing.Name = name
			if err := r.store.UpdateSender(existing); err != nil {
				return nil, err
			}
		}
		return existing, nil
	}
	if !domain.IsKind(err, domain.KindNotFound) {
		return nil, err
	}

	now := time.Now().UTC()
	sender := &domain.Sender{
		ID:        uuid.NewString(),
		Email:     email,
		Name:      name,
		Domain:    domain.EmailDomain(email),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := r.store.SaveSender(sender); err != nil {
		return nil, err
	}

	return r.reconcileSenders(email)
}

// reconcileSenders 插入后的竞争修复：同地址存在多条记录时保留最早者。
func (r *SenderRegistry) reconcileSenders(email string) (*domain.Sender, error) {
	candidates, err := r.store.ListSendersByEmail(email)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, domain.ErrNotFound("sender disappeared during reconciliation")
	}

	winner := candidates[0]
	for _, loser := range candidates[1:] {
		if err := r.store.DeleteSender(loser.ID); err != nil && !domain.IsKind(err, domain.KindNotFound) {
			r.log.Warn("failed to delete duplicate sender",
				zap.String("email", email),
				zap.String("sender_id", loser.ID),
				zap.Error(err),
			)
		}
	}
	if len(candidates) > 1 {
		r.log.Debug("reconciled concurrent sender creation",
			zap.String("email", email),
			zap.Int("duplicates", len(candidates)-1),
		)
	}
	return winner, nil
}

// ResolveOrCreateUserSettings 解析或创建用户对发件人的设置。
//
// 与发件人创建相同的插入后修复模式；只有修复后存活的记录增加发件人的
// 订阅计数，竞争失败方不会重复计数。
func (r *SenderRegistry) ResolveOrCreateUserSettings(userID, senderID string) (*domain.UserSenderSettings, error) {
	if userID == "" {
		return nil, domain.ErrUnauthorized("caller identity is required")
	}
	if _, err := r.store.GetSender(senderID); err != nil {
		return nil, err
	}

	existing, err := r.store.GetSenderSettings(userID, senderID)
	if err == nil {
		return existing, nil
	}
	if !domain.IsKind(err, domain.KindNotFound) {
		return nil, err
	}

	now := time.Now().UTC()
	settings := &domain.UserSenderSettings{
		ID:        uuid.NewString(),
		UserID:    userID,
		SenderID:  senderID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := r.store.SaveSenderSettings(settings); err != nil {
		return nil, err
	}

	candidates, err := r.store.ListSenderSettings(userID, senderID)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, domain.ErrNotFound("sender settings disappeared during reconciliation")
	}

	winner := candidates[0]
	for _, loser := range candidates[1:] {
		if err := r.store.DeleteSenderSettings(loser.ID); err != nil && !domain.IsKind(err, domain.KindNotFound) {
			r.log.Warn("failed to delete duplicate sender settings",
				zap.String("user_id", userID),
				zap.String("settings_id", loser.ID),
				zap.Error(err),
			)
		}
	}

	// 订阅计数只归属于本次创建且存活的记录
	if winner.ID == settings.ID {
		if err := r.store.IncrementSubscriberCount(senderID, 1); err != nil {
			return nil, err
		}
	}
	return winner, nil
}

// UpdateUserSettings 更新用户对发件人的隐私开关与文件夹归属。
func (r *SenderRegistry) UpdateUserSettings(userID, senderID string, isPrivate *bool, folderID *string) (*domain.UserSenderSettings, error) {
	settings, err := r.store.GetSenderSettings(userID, senderID)
	if err != nil {
		return nil, err
	}
	if settings.UserID != userID {
		return nil, domain.ErrForbidden("settings belong to another user")
	}

	if isPrivate != nil {
		settings.IsPrivate = *isPrivate
	}
	if folderID != nil {
		if *folderID == "" {
			settings.FolderID = nil
		} else {
			folder, err := r.store.GetFolder(*folderID)
			if err != nil {
				return nil, err
			}
			if folder.UserID != userID {
				return nil, domain.ErrForbidden("folder belongs to another user")
			}
			settings.FolderID = folderID
		}
	}

	if err := r.store.UpdateSenderSettings(settings); err != nil {
		return nil, err
	}
	return settings, nil
}

// IncrementNewsletterCount 累加发件人的通讯计数。
//
// 每成功入库一封通讯调用一次，与隐私分支无关；发件人已不存在时返回
// NotFound。
func (r *SenderRegistry) IncrementNewsletterCount(senderID string) error {
	return r.store.IncrementNewsletterCount(senderID)
}
