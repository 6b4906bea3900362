package service

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"lettervault/internal/domain"
	"lettervault/internal/fetcher"
	"lettervault/internal/monitoring"
	"lettervault/internal/pool"
	"lettervault/internal/storage"
)

// remoteFetchChunk 远端批量取回消息时的单次请求条数。
const remoteFetchChunk = 25

// SourceDocument 一份待导入的源文档（已解析的邮件类载荷）。
type SourceDocument struct {
	SenderEmail string               `json:"senderEmail"`
	SenderName  string               `json:"senderName"`
	Subject     string               `json:"subject"`
	Body        string               `json:"body"`
	MessageID   string               `json:"messageId"`
	Source      domain.SourceChannel `json:"source"`
	ReceivedAt  time.Time            `json:"receivedAt"`
}

// ItemStatus 批次内单项的最终状态。
type ItemStatus string

const (
	ItemPending   ItemStatus = "pending"
	ItemSuccess   ItemStatus = "success"
	ItemDuplicate ItemStatus = "duplicate"
	ItemSkipped   ItemStatus = "skipped"
	ItemError     ItemStatus = "error"
)

// ItemResult 批次内单项的处理结果，按提交位置索引。
type ItemResult struct {
	Index        int        `json:"index"`
	Status       ItemStatus `json:"status"`
	Reason       string     `json:"reason,omitempty"` // 重复依据或跳过原因
	Error        string     `json:"error,omitempty"`
	NewsletterID string     `json:"newsletterId,omitempty"`
}

// BatchStatus 批次的聚合进度快照。
type BatchStatus struct {
	BatchID   string       `json:"batchId"`
	Total     int          `json:"total"`
	Processed int          `json:"processed"`
	Success   int          `json:"success"`
	Duplicate int          `json:"duplicate"`
	Skipped   int          `json:"skipped"`
	Errors    int          `json:"errors"`
	Done      bool         `json:"done"`
	Items     []ItemResult `json:"items,omitempty"`
}

// Batch 一次导入批次。结果按位置而非文件名索引，重名文档互不覆盖。
type Batch struct {
	ID        string
	UserID    string
	Total     int
	CreatedAt time.Time

	mu        sync.Mutex
	items     []ItemResult
	processed int
	success   int
	duplicate int
	skipped   int
	errors    int
	done      bool
}

// setResult 记录单项结果并更新聚合计数。
func (b *Batch) setResult(result ItemResult) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.items[result.Index] = result
	b.processed++
	switch result.Status {
	case ItemSuccess:
		b.success++
	case ItemDuplicate:
		b.duplicate++
	case ItemSkipped:
		b.skipped++
	case ItemError:
		b.errors++
	}
}

// Snapshot 返回当前进度快照。includeItems 为真时携带逐项状态。
func (b *Batch) Snapshot(includeItems bool) BatchStatus {
	b.mu.Lock()
	defer b.mu.Unlock()

	status := BatchStatus{
		BatchID:   b.ID,
		Total:     b.Total,
		Processed: b.processed,
		Success:   b.success,
		Duplicate: b.duplicate,
		Skipped:   b.skipped,
		Errors:    b.errors,
		Done:      b.done,
	}
	if includeItems {
		status.Items = append([]ItemResult(nil), b.items...)
	}
	return status
}

// markDone 标记批次完成。
func (b *Batch) markDone() {
	b.mu.Lock()
	b.done = true
	b.mu.Unlock()
}

// ProgressPublisher 批次进度的推送出口，WebSocket 层实现。
type ProgressPublisher interface {
	PublishProgress(userID string, status BatchStatus)
}

// ImportConfig 导入编排器配置。
type ImportConfig struct {
	// FreeMonthlyQuota 免费套餐每月入库上限，0 表示不限制
	FreeMonthlyQuota int
	// RetryAttempts 限流重试总次数
	RetryAttempts int
	// RetryBaseDelay 限流重试的初始延迟，逐次翻倍
	RetryBaseDelay time.Duration
}

// ImportService 批量导入编排器。
//
// 批次内的全部文档投入共享的固定并发协程池处理，单项失败只记入该项的
// 状态，不中止批次；只有聚合计数与批次完成后的逐项状态保证一致，项与
// 项之间没有顺序保证。
type ImportService struct {
	store    storage.Store
	contents *ContentStore
	registry *SenderRegistry
	workers  *pool.WorkerPool
	fetch    fetcher.Fetcher // 可为 nil，此时远端导入不可用
	progress ProgressPublisher
	metrics  *monitoring.Metrics // 可为 nil
	cfg      ImportConfig
	log      *zap.Logger

	mu      sync.RWMutex
	batches map[string]*Batch
}

// NewImportService 创建导入编排器。
func NewImportService(
	store storage.Store,
	contents *ContentStore,
	registry *SenderRegistry,
	workers *pool.WorkerPool,
	cfg ImportConfig,
	log *zap.Logger,
) *ImportService {
	if cfg.RetryAttempts <= 0 {
		cfg.RetryAttempts = 3
	}
	if cfg.RetryBaseDelay <= 0 {
		cfg.RetryBaseDelay = 500 * time.Millisecond
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &ImportService{
		store:    store,
		contents: contents,
		registry: registry,
		workers:  workers,
		cfg:      cfg,
		log:      log,
		batches:  make(map[string]*Batch),
	}
}

// SetFetcher 设置远端邮箱拉取层。
func (s *ImportService) SetFetcher(f fetcher.Fetcher) { s.fetch = f }

// SetProgressPublisher 设置进度推送出口。
func (s *ImportService) SetProgressPublisher(p ProgressPublisher) { s.progress = p }

// SetMetrics 设置监控指标。
func (s *ImportService) SetMetrics(m *monitoring.Metrics) { s.metrics = m }

// ImportBatch 同步执行一个导入批次，返回完成后的批次。
func (s *ImportService) ImportBatch(ctx context.Context, userID string, docs []SourceDocument) (*Batch, error) {
	batch, quota, err := s.prepare(userID, docs)
	if err != nil {
		return nil, err
	}
	s.run(ctx, batch, docs, quota)
	return batch, nil
}

// StartBatch 异步启动一个导入批次，立即返回可供轮询的批次。
func (s *ImportService) StartBatch(ctx context.Context, userID string, docs []SourceDocument) (*Batch, error) {
	batch, quota, err := s.prepare(userID, docs)
	if err != nil {
		return nil, err
	}
	go s.run(ctx, batch, docs, quota)
	return batch, nil
}

// GetBatch 查询批次进度，校验归属。
func (s *ImportService) GetBatch(userID, batchID string) (*BatchStatus, error) {
	s.mu.RLock()
	batch, ok := s.batches[batchID]
	s.mu.RUnlock()
	if !ok {
		return nil, domain.ErrNotFound("import batch not found")
	}
	if batch.UserID != userID {
		return nil, domain.ErrForbidden("import batch belongs to another user")
	}
	status := batch.Snapshot(true)
	return &status, nil
}

// prepare 校验输入、计算配额余量并注册批次。
func (s *ImportService) prepare(userID string, docs []SourceDocument) (*Batch, *atomic.Int64, error) {
	if userID == "" {
		return nil, nil, domain.ErrUnauthorized("caller identity is required")
	}
	if len(docs) == 0 {
		return nil, nil, domain.ErrValidation("import batch is empty")
	}

	quota, err := s.quotaRemaining(userID)
	if err != nil {
		return nil, nil, err
	}

	batch := &Batch{
		ID:        uuid.NewString(),
		UserID:    userID,
		Total:     len(docs),
		CreatedAt: time.Now().UTC(),
		items:     make([]ItemResult, len(docs)),
	}
	for i := range batch.items {
		batch.items[i] = ItemResult{Index: i, Status: ItemPending}
	}

	s.mu.Lock()
	s.batches[batch.ID] = batch
	s.mu.Unlock()

	return batch, quota, nil
}

// quotaRemaining 计算调用者本自然月的剩余入库额度；不限额时返回 nil。
func (s *ImportService) quotaRemaining(userID string) (*atomic.Int64, error) {
	if s.cfg.FreeMonthlyQuota <= 0 {
		return nil, nil
	}
	user, err := s.store.GetUserByID(userID)
	if err != nil {
		return nil, err
	}
	if user.Plan != domain.PlanFree {
		return nil, nil
	}

	now := time.Now().UTC()
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	used, err := s.store.CountNewslettersSince(userID, monthStart)
	if err != nil {
		return nil, err
	}

	remaining := s.cfg.FreeMonthlyQuota - used
	if remaining < 0 {
		remaining = 0
	}
	var counter atomic.Int64
	counter.Store(int64(remaining))
	return &counter, nil
}

// run 把全部文档投入协程池并等待批次完成。
//
// ctx 取消后在途项自然结束并记录结果，尚未开始的项被放弃：保持 pending
// 状态，之后不再有任何状态更新或进度推送。
func (s *ImportService) run(ctx context.Context, batch *Batch, docs []SourceDocument, quota *atomic.Int64) {
	if s.metrics != nil {
		s.metrics.ImportBatchesTotal.Inc()
	}

	var wg sync.WaitGroup
	for i := range docs {
		index := i
		doc := docs[i]
		wg.Add(1)
		s.workers.Submit(func() {
			defer wg.Done()
			if ctx.Err() != nil {
				return
			}
			if s.metrics != nil {
				s.metrics.ImportInFlightItems.Inc()
				defer s.metrics.ImportInFlightItems.Dec()
			}
			result := s.processItem(batch.UserID, index, doc, quota)
			batch.setResult(result)
			if s.metrics != nil {
				s.metrics.RecordImportItem(string(result.Status))
			}
			if ctx.Err() == nil {
				s.publish(batch)
			}
		})
	}
	wg.Wait()

	if ctx.Err() != nil {
		status := batch.Snapshot(false)
		s.log.Info("import batch canceled",
			zap.String("batch_id", batch.ID),
			zap.String("user_id", batch.UserID),
			zap.Int("total", status.Total),
			zap.Int("processed", status.Processed),
		)
		return
	}

	batch.markDone()
	s.publish(batch)

	status := batch.Snapshot(false)
	s.log.Info("import batch finished",
		zap.String("batch_id", batch.ID),
		zap.String("user_id", batch.UserID),
		zap.Int("total", status.Total),
		zap.Int("success", status.Success),
		zap.Int("duplicate", status.Duplicate),
		zap.Int("skipped", status.Skipped),
		zap.Int("errors", status.Errors),
	)
}

// processItem 处理单份文档，任何失败都收敛为该项的状态。
func (s *ImportService) processItem(userID string, index int, doc SourceDocument, quota *atomic.Int64) ItemResult {
	result := ItemResult{Index: index}

	// 原始邮件标识查重，先于任何正文处理
	if doc.MessageID != "" {
		seen, err := s.store.HasNewsletterMessageID(userID, doc.MessageID)
		if err != nil {
			result.Status = ItemError
			result.Error = err.Error()
			return result
		}
		if seen {
			result.Status = ItemDuplicate
			result.Reason = string(ReasonMessageID)
			return result
		}
	}

	sender, err := s.registry.ResolveOrCreateSender(doc.SenderEmail, doc.SenderName)
	if err != nil {
		result.Status = ItemError
		result.Error = err.Error()
		return result
	}

	// 配额槽位先占后退：重复项不消耗额度
	if quota != nil && quota.Add(-1) < 0 {
		result.Status = ItemSkipped
		result.Reason = fmt.Sprintf("monthly quota of %d reached", s.cfg.FreeMonthlyQuota)
		return result
	}

	stored, err := s.contents.Store(StoreInput{
		UserID:     userID,
		SenderID:   sender.ID,
		Subject:    doc.Subject,
		Body:       doc.Body,
		MessageID:  doc.MessageID,
		Source:     doc.Source,
		ReceivedAt: doc.ReceivedAt,
	})
	if err != nil {
		if quota != nil {
			quota.Add(1)
		}
		result.Status = ItemError
		result.Error = err.Error()
		return result
	}

	if stored.Outcome == OutcomeDuplicate {
		if quota != nil {
			quota.Add(1)
		}
		result.Status = ItemDuplicate
		result.Reason = string(stored.Reason)
		return result
	}

	result.Status = ItemSuccess
	result.NewsletterID = stored.Newsletter.ID
	return result
}

// publish 推送批次进度，未配置出口时为空操作。
func (s *ImportService) publish(batch *Batch) {
	if s.progress == nil {
		return
	}
	s.progress.PublishProgress(batch.UserID, batch.Snapshot(false))
}

// ImportFromRemote 从远端邮箱导入某发件人的全部消息。
//
// 分页列出标识并分块取回消息体；限流在编排器内按指数退避重试，授权
// 失效立即中止整个批次。取回的消息转为源文档后走常规批次流程。
func (s *ImportService) ImportFromRemote(ctx context.Context, userID, senderEmail string) (*Batch, error) {
	if s.fetch == nil {
		return nil, domain.NewError(domain.KindInternal, "remote mailbox fetcher is not configured")
	}
	if err := domain.ValidateSenderEmail(senderEmail); err != nil {
		return nil, err
	}

	var ids []string
	pageToken := ""
	for {
		var pageIDs []string
		var next string
		err := s.withBackoff(ctx, func() error {
			var listErr error
			pageIDs, next, listErr = s.fetch.ListMessageIDs(ctx, senderEmail, pageToken)
			return listErr
		})
		if err != nil {
			return nil, err
		}
		ids = append(ids, pageIDs...)
		if next == "" {
			break
		}
		pageToken = next
	}
	if len(ids) == 0 {
		return nil, domain.ErrNotFound("remote mailbox has no messages for this sender")
	}

	var docs []SourceDocument
	for start := 0; start < len(ids); start += remoteFetchChunk {
		end := start + remoteFetchChunk
		if end > len(ids) {
			end = len(ids)
		}

		var messages []*fetcher.RemoteMessage
		err := s.withBackoff(ctx, func() error {
			var fetchErr error
			messages, fetchErr = s.fetch.FetchMessages(ctx, ids[start:end])
			return fetchErr
		})
		if err != nil {
			return nil, err
		}

		for _, msg := range messages {
			docs = append(docs, SourceDocument{
				SenderEmail: msg.SenderEmail,
				SenderName:  msg.SenderName,
				Subject:     msg.Subject,
				Body:        msg.Body,
				MessageID:   msg.MessageID,
				Source:      domain.ChannelRemote,
				ReceivedAt:  msg.ReceivedAt,
			})
		}
	}

	return s.ImportBatch(ctx, userID, docs)
}

// withBackoff 执行一次远端调用，仅对限流错误重试。
//
// 延迟从 RetryBaseDelay 开始逐次翻倍，总尝试 RetryAttempts 次；授权
// 失效等其他错误不重试直接上抛。
func (s *ImportService) withBackoff(ctx context.Context, fn func() error) error {
	delay := s.cfg.RetryBaseDelay
	var err error
	for attempt := 1; attempt <= s.cfg.RetryAttempts; attempt++ {
		err = fn()
		if err == nil || !domain.IsKind(err, domain.KindRateLimited) {
			return err
		}
		if attempt == s.cfg.RetryAttempts {
			break
		}

		if s.metrics != nil {
			s.metrics.ImportRetriesTotal.Inc()
		}
		s.log.Debug("remote mailbox rate limited, backing off",
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
		)
		select {
		case <-ctx.Done():
			return domain.WrapError(domain.KindInternal, "import canceled during backoff", ctx.Err())
		case <-time.After(delay):
		}
		delay *= 2
	}
	return err
}

// DropBatchesBefore 丢弃给定时刻之前创建的批次记录，限制内存占用。
func (s *ImportService) DropBatchesBefore(cutoff time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	dropped := 0
	for id, batch := range s.batches {
		if batch.CreatedAt.Before(cutoff) {
			delete(s.batches, id)
			dropped++
		}
	}
	return dropped
}
