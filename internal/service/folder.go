package service

import (
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"lettervault/internal/domain"
	"lettervault/internal/monitoring"
	"lettervault/internal/storage"
)

// mergeStripes 按用户分片串行化合并/撤销的互斥锁数量。
const mergeStripes = 64

// FolderService 文件夹的增删改、合并与限时撤销。
type FolderService struct {
	store      storage.Store
	undoWindow time.Duration
	metrics    *monitoring.Metrics // 可为 nil
	log        *zap.Logger
	// 同一用户的合并/撤销串行执行，避免并发合并交错改写引用
	mergeLocks [mergeStripes]sync.Mutex
}

// NewFolderService 创建文件夹服务。undoWindow 非正时使用默认 30 秒窗口。
func NewFolderService(store storage.Store, undoWindow time.Duration, log *zap.Logger) *FolderService {
	if undoWindow <= 0 {
		undoWindow = domain.FolderUndoWindow
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &FolderService{store: store, undoWindow: undoWindow, log: log}
}

// SetMetrics 设置监控指标。
func (s *FolderService) SetMetrics(m *monitoring.Metrics) {
	s.metrics = m
}

// lockFor 返回该用户的串行化互斥锁。
func (s *FolderService) lockFor(userID string) *sync.Mutex {
	h := fnv.New32a()
	h.Write([]byte(userID))
	return &s.mergeLocks[h.Sum32()%mergeStripes]
}

// CreateFolderInput 创建文件夹输入。
type CreateFolderInput struct {
	UserID   string `json:"-"`
	Name     string `json:"name" binding:"required"`
	Color    string `json:"color"`
	Category string `json:"category"`
	// AutoRename 为真时重名自动追加数字后缀；为假时重名返回 Duplicate
	AutoRename bool `json:"autoRename"`
}

// Create 创建文件夹。
func (s *FolderService) Create(input CreateFolderInput) (*domain.Folder, error) {
	if input.UserID == "" {
		return nil, domain.ErrUnauthorized("caller identity is required")
	}
	if err := domain.ValidateFolderName(input.Name); err != nil {
		return nil, err
	}

	name, err := s.resolveName(input.UserID, input.Name, "", input.AutoRename)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	folder := &domain.Folder{
		ID:        uuid.NewString(),
		UserID:    input.UserID,
		Name:      name,
		Color:     input.Color,
		Category:  input.Category,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.SaveFolder(folder); err != nil {
		return nil, err
	}
	return folder, nil
}

// Get 获取文件夹，校验归属。
func (s *FolderService) Get(userID, folderID string) (*domain.Folder, error) {
	folder, err := s.store.GetFolder(folderID)
	if err != nil {
		return nil, err
	}
	if folder.UserID != userID {
		return nil, domain.ErrForbidden("folder belongs to another user")
	}
	return folder, nil
}

// List 列出用户的文件夹；默认排除隐藏的。
func (s *FolderService) List(userID string, includeHidden bool) ([]*domain.Folder, error) {
	folders, err := s.store.ListFolders(userID)
	if err != nil {
		return nil, err
	}
	if includeHidden {
		return folders, nil
	}
	visible := make([]*domain.Folder, 0, len(folders))
	for _, folder := range folders {
		if !folder.IsHidden {
			visible = append(visible, folder)
		}
	}
	return visible, nil
}

// Rename 重命名文件夹，重名自动追加数字后缀。
func (s *FolderService) Rename(userID, folderID, name string) (*domain.Folder, error) {
	folder, err := s.Get(userID, folderID)
	if err != nil {
		return nil, err
	}
	if err := domain.ValidateFolderName(name); err != nil {
		return nil, err
	}

	// 冲突检查排除自身，改大小写不算与自己重名
	resolved, err := s.resolveName(userID, name, folderID, true)
	if err != nil {
		return nil, err
	}
	folder.Name = resolved
	if err := s.store.UpdateFolder(folder); err != nil {
		return nil, err
	}
	return folder, nil
}

// SetHidden 设置文件夹隐藏标记。隐藏不删除任何数据，只影响聚合列表。
func (s *FolderService) SetHidden(userID, folderID string, hidden bool) (*domain.Folder, error) {
	folder, err := s.Get(userID, folderID)
	if err != nil {
		return nil, err
	}
	folder.IsHidden = hidden
	if err := s.store.UpdateFolder(folder); err != nil {
		return nil, err
	}
	return folder, nil
}

// Delete 删除文件夹。先清空全部引用再删行，不级联删除内容。
func (s *FolderService) Delete(userID, folderID string) error {
	if _, err := s.Get(userID, folderID); err != nil {
		return err
	}
	if err := s.store.ClearFolderRefs(userID, folderID); err != nil {
		return err
	}
	return s.store.DeleteFolder(folderID)
}

// Merge 将 source 文件夹合并进 target。
//
// 原子地收集并改写引用源文件夹的全部设置与通讯行，写入一条携带源文件夹
// 展示属性与被移动行 ID 列表的撤销记录（窗口 undoWindow），随后删除源
// 文件夹。返回合并 ID 与移动数量。
func (s *FolderService) Merge(userID, sourceFolderID, targetFolderID string) (*domain.MergeResult, error) {
	if sourceFolderID == targetFolderID {
		return nil, domain.ErrValidation("cannot merge a folder into itself")
	}

	source, err := s.Get(userID, sourceFolderID)
	if err != nil {
		return nil, err
	}
	target, err := s.Get(userID, targetFolderID)
	if err != nil {
		return nil, err
	}

	lock := s.lockFor(userID)
	lock.Lock()
	defer lock.Unlock()

	settingIDs, newsletterIDs, err := s.store.MoveFolderRefs(userID, source.ID, target.ID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	history := &domain.FolderMergeHistory{
		ID:                 uuid.NewString(),
		UserID:             userID,
		SourceName:         source.Name,
		SourceColor:        source.Color,
		SourceCategory:     source.Category,
		TargetFolderID:     target.ID,
		MovedSettingIDs:    settingIDs,
		MovedNewsletterIDs: newsletterIDs,
		CreatedAt:          now,
		ExpiresAt:          now.Add(s.undoWindow),
	}
	if err := s.store.SaveMergeHistory(history); err != nil {
		return nil, err
	}

	if err := s.store.DeleteFolder(source.ID); err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.FolderMergesTotal.Inc()
	}
	s.log.Info("folder merged",
		zap.String("user_id", userID),
		zap.String("merge_id", history.ID),
		zap.Int("moved_settings", len(settingIDs)),
		zap.Int("moved_newsletters", len(newsletterIDs)),
	)

	return &domain.MergeResult{
		MergeID:              history.ID,
		TargetFolderID:       target.ID,
		MovedSettingCount:    len(settingIDs),
		MovedNewsletterCount: len(newsletterIDs),
	}, nil
}

// Undo 在窗口内撤销一次合并。
//
// 过期返回 Expired；窗口内重建携带源文件夹原始展示属性的新文件夹，把
// 仍然存在的行指回去（期间被独立删除的行跳过并计数），最后删除撤销
// 记录防止重放——第二次并发撤销会得到 NotFound。
func (s *FolderService) Undo(userID, mergeID string) (*domain.UndoResult, error) {
	history, err := s.store.GetMergeHistory(mergeID)
	if err != nil {
		return nil, err
	}
	if history.UserID != userID {
		return nil, domain.ErrForbidden("merge history belongs to another user")
	}
	if history.Expired(time.Now().UTC()) {
		return nil, domain.ErrExpired("undo window has closed")
	}

	lock := s.lockFor(userID)
	lock.Lock()
	defer lock.Unlock()

	// 源文件夹的名称可能在窗口内被占用，重建时同样走后缀解析
	name, err := s.resolveName(userID, history.SourceName, "", true)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	restored := &domain.Folder{
		ID:        uuid.NewString(),
		UserID:    userID,
		Name:      name,
		Color:     history.SourceColor,
		Category:  history.SourceCategory,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.SaveFolder(restored); err != nil {
		return nil, err
	}

	restoredSettings, restoredNewsletters, skippedSettings, skippedNewsletters, err :=
		s.store.RestoreFolderRefs(userID, restored.ID, history.MovedSettingIDs, history.MovedNewsletterIDs)
	if err != nil {
		return nil, err
	}

	if err := s.store.DeleteMergeHistory(history.ID); err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.FolderUndosTotal.Inc()
	}
	s.log.Info("folder merge undone",
		zap.String("user_id", userID),
		zap.String("merge_id", mergeID),
		zap.Int("restored_newsletters", restoredNewsletters),
		zap.Int("skipped_newsletters", skippedNewsletters),
	)

	return &domain.UndoResult{
		FolderID:                restored.ID,
		RestoredSettingCount:    restoredSettings,
		RestoredNewsletterCount: restoredNewsletters,
		SkippedSettingCount:     skippedSettings,
		SkippedNewsletterCount:  skippedNewsletters,
	}, nil
}

// SweepExpiredMerges 清扫已过期的撤销记录，限制历史表的增长。
//
// 幂等；过期判定不依赖清扫——过期未清扫的记录同样不可撤销。
func (s *FolderService) SweepExpiredMerges() (int, error) {
	deleted, err := s.store.DeleteExpiredMergeHistories(time.Now().UTC())
	if err != nil {
		return 0, err
	}
	if s.metrics != nil && deleted > 0 {
		s.metrics.MergeSweepDeleted.Add(float64(deleted))
	}
	return deleted, nil
}

// resolveName 解析唯一名称：按不区分大小写的规则与用户其余文件夹比较，
// 冲突时追加 " 2"、" 3" 等递增后缀。excludeID 指定重命名中排除的自身。
func (s *FolderService) resolveName(userID, name, excludeID string, autoRename bool) (string, error) {
	folders, err := s.store.ListFolders(userID)
	if err != nil {
		return "", err
	}

	taken := func(candidate string) bool {
		for _, folder := range folders {
			if folder.ID == excludeID {
				continue
			}
			if domain.FolderNamesEqual(folder.Name, candidate) {
				return true
			}
		}
		return false
	}

	if !taken(name) {
		return name, nil
	}
	if !autoRename {
		return "", domain.ErrDuplicate(fmt.Sprintf("folder %q already exists", name))
	}

	for suffix := 2; ; suffix++ {
		candidate := fmt.Sprintf("%s %d", name, suffix)
		if !taken(candidate) {
			return candidate, nil
		}
	}
}
