package service

import (
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"lettervault/internal/blob"
	"lettervault/internal/domain"
	"lettervault/internal/monitoring"
	"lettervault/internal/storage"
)

// HashCache 内容哈希 → 内容 ID 的读穿缓存，可选。
type HashCache interface {
	GetContentID(hash string) (string, bool)
	SetContentID(hash, contentID string)
}

// StoreInput 一次通讯入库请求。
type StoreInput struct {
	UserID     string
	SenderID   string
	Subject    string
	Body       string
	MessageID  string
	Source     domain.SourceChannel
	ReceivedAt time.Time
	// RecipientEmail 用于剥离正文中的逐收件人个性化内容
	RecipientEmail string
}

// StoreOutcome 入库结果分类。
type StoreOutcome string

const (
	OutcomeStored    StoreOutcome = "stored"
	OutcomeDuplicate StoreOutcome = "duplicate"
)

// DuplicateReason 重复判定的依据标签。
type DuplicateReason string

const (
	ReasonMessageID   DuplicateReason = "message_id"
	ReasonContentHash DuplicateReason = "content_hash"
)

// StoreResult 入库结果。重复时 Newsletter 为空。
type StoreResult struct {
	Outcome    StoreOutcome
	Reason     DuplicateReason // Outcome 为 duplicate 时有效
	Newsletter *domain.UserNewsletter
	ContentID  string // 共享分支命中或新建的内容 ID
}

// ContentStore 内容寻址的通讯存储，实现两阶段查重与隐私分支。
type ContentStore struct {
	store    storage.Store
	blobs    blob.Service
	registry *SenderRegistry
	cache    HashCache           // 可为 nil
	metrics  *monitoring.Metrics // 可为 nil
	log      *zap.Logger
}

// NewContentStore 创建内容存储服务。
func NewContentStore(store storage.Store, blobs blob.Service, registry *SenderRegistry, log *zap.Logger) *ContentStore {
	if log == nil {
		log = zap.NewNop()
	}
	return &ContentStore{
		store:    store,
		blobs:    blobs,
		registry: registry,
		log:      log,
	}
}

// SetHashCache 设置可选的哈希查找缓存。
func (c *ContentStore) SetHashCache(cache HashCache) {
	c.cache = cache
}

// SetMetrics 设置监控指标。
func (c *ContentStore) SetMetrics(m *monitoring.Metrics) {
	c.metrics = m
}

// CheckDuplicate 阶段一：廉价的元数据查重。
//
// 同用户、同发件人、同时间戳、同主题视为明显重复，在拉取并规范化全文
// 之前拦截；漏判交给阶段二兜底，不允许误判。
func (c *ContentStore) CheckDuplicate(userID, senderID string, receivedAt time.Time, subject string) (bool, error) {
	return c.store.HasNewsletterMeta(userID, senderID, receivedAt, subject)
}

// Store 按设置解析隐私分支后入库一封通讯。
//
// 共享分支执行两阶段查重：阶段一命中直接返回重复；阶段二规范化正文并
// 按哈希查找，命中则复用既有内容并累加计数，未命中先上传 Blob 再落内容
// 行。私有分支完全跳过规范化与查重，内容独立存放。两个分支成功后都会
// 累加发件人的通讯计数。
func (c *ContentStore) Store(input StoreInput) (*StoreResult, error) {
	if input.UserID == "" {
		return nil, domain.ErrUnauthorized("caller identity is required")
	}
	if input.ReceivedAt.IsZero() {
		input.ReceivedAt = time.Now().UTC()
	}

	settings, err := c.registry.ResolveOrCreateUserSettings(input.UserID, input.SenderID)
	if err != nil {
		return nil, err
	}

	if settings.IsPrivate {
		return c.storePrivate(input, settings)
	}
	return c.storeShared(input, settings)
}

// storeShared 共享分支：两阶段查重后复用或创建内容。
func (c *ContentStore) storeShared(input StoreInput, settings *domain.UserSenderSettings) (*StoreResult, error) {
	// 阶段一：元数据查重
	seen, err := c.CheckDuplicate(input.UserID, input.SenderID, input.ReceivedAt, input.Subject)
	if err != nil {
		return nil, err
	}
	if seen {
		if c.metrics != nil {
			c.metrics.RecordDuplicate(string(ReasonContentHash))
		}
		return &StoreResult{Outcome: OutcomeDuplicate, Reason: ReasonContentHash}, nil
	}

	// 阶段二：内容哈希查重（权威判定）
	normalized := NormalizeBody(input.Body, input.RecipientEmail)
	hash := ContentHash(normalized)

	content, err := c.lookupContent(hash)
	if err != nil && !domain.IsKind(err, domain.KindNotFound) {
		return nil, err
	}

	if content == nil {
		// 未命中：先上传 Blob，再落内容行；上传失败时不会留下半写记录
		key := blob.SharedKey(hash)
		if _, err := c.blobs.Put(key, []byte(normalized)); err != nil {
			return nil, err
		}

		now := time.Now().UTC()
		content = &domain.NewsletterContent{
			ID:          uuid.NewString(),
			ContentHash: hash,
			BlobKey:     key,
			ImportCount: 0,
			ReaderCount: 0,
			Title:       input.Subject,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := c.store.SaveContent(content); err != nil {
			// 并发写同一哈希：改走命中路径
			if domain.IsKind(err, domain.KindDuplicate) {
				content, err = c.store.GetContentByHash(hash)
				if err != nil {
					return nil, err
				}
			} else {
				return nil, err
			}
		} else if c.metrics != nil {
			c.metrics.ContentsCreated.Inc()
		}
	}

	if err := c.store.IncrementContentCounters(content.ID, 1, 0); err != nil {
		return nil, err
	}
	if c.cache != nil {
		c.cache.SetContentID(hash, content.ID)
	}

	newsletter, err := c.saveNewsletter(input, settings, domain.SharedRef(content.ID))
	if err != nil {
		return nil, err
	}
	return &StoreResult{Outcome: OutcomeStored, Newsletter: newsletter, ContentID: content.ID}, nil
}

// storePrivate 私有分支：跳过规范化/哈希/查重，内容仅对该用户可见。
//
// 私有内容不参与跨用户去重是有意取舍：避免通过去重命中向无关用户
// 泄露共享内容的存在。
func (c *ContentStore) storePrivate(input StoreInput, settings *domain.UserSenderSettings) (*StoreResult, error) {
	key := blob.PrivateKey(input.UserID, time.Now().UTC(), "html")
	if _, err := c.blobs.Put(key, []byte(input.Body)); err != nil {
		return nil, err
	}
	if c.metrics != nil {
		c.metrics.PrivateStores.Inc()
	}

	newsletter, err := c.saveNewsletter(input, settings, domain.PrivateRef(key))
	if err != nil {
		return nil, err
	}
	return &StoreResult{Outcome: OutcomeStored, Newsletter: newsletter}, nil
}

// lookupContent 按哈希查找共享内容，优先走缓存。
func (c *ContentStore) lookupContent(hash string) (*domain.NewsletterContent, error) {
	if c.cache != nil {
		if contentID, ok := c.cache.GetContentID(hash); ok {
			content, err := c.store.GetContent(contentID)
			if err == nil {
				return content, nil
			}
			// 缓存指向已消失的内容行：回落到存储查询
		}
	}
	return c.store.GetContentByHash(hash)
}

// saveNewsletter 落用户通讯引用并累加发件人计数。
func (c *ContentStore) saveNewsletter(input StoreInput, settings *domain.UserSenderSettings, ref domain.ContentRef) (*domain.UserNewsletter, error) {
	now := time.Now().UTC()
	newsletter := &domain.UserNewsletter{
		ID:         uuid.NewString(),
		UserID:     input.UserID,
		SenderID:   input.SenderID,
		FolderID:   settings.FolderID,
		Ref:        ref,
		MessageID:  input.MessageID,
		Subject:    input.Subject,
		Source:     input.Source,
		ReceivedAt: input.ReceivedAt,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := c.store.SaveNewsletter(newsletter); err != nil {
		return nil, err
	}

	if err := c.registry.IncrementNewsletterCount(input.SenderID); err != nil {
		return nil, err
	}
	if c.metrics != nil {
		c.metrics.RecordStored(string(input.Source))
	}
	return newsletter, nil
}

// ImportSharedContent 社区库导入：为调用用户引用一份既有共享内容。
//
// 不重新上传，只累加计数并创建个人引用。
func (c *ContentStore) ImportSharedContent(userID, contentID, senderID string) (*domain.UserNewsletter, error) {
	if userID == "" {
		return nil, domain.ErrUnauthorized("caller identity is required")
	}

	content, err := c.store.GetContent(contentID)
	if err != nil {
		return nil, err
	}

	settings, err := c.registry.ResolveOrCreateUserSettings(userID, senderID)
	if err != nil {
		return nil, err
	}

	if err := c.store.IncrementContentCounters(content.ID, 1, 0); err != nil {
		return nil, err
	}

	return c.saveNewsletter(StoreInput{
		UserID:     userID,
		SenderID:   senderID,
		Subject:    content.Title,
		Source:     domain.ChannelCommunity,
		ReceivedAt: time.Now().UTC(),
	}, settings, domain.SharedRef(content.ID))
}
