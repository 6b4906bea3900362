package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lettervault/internal/blob/filesystem"
	"lettervault/internal/domain"
	"lettervault/internal/storage/memory"
)

// newTestNewsletterService 组装读取服务及其依赖的内容存储。
func newTestNewsletterService(t *testing.T) (*NewsletterService, *ContentStore, *memory.Store, *SenderRegistry) {
	t.Helper()
	store := memory.NewStore()
	blobs, err := filesystem.NewStore(t.TempDir())
	require.NoError(t, err)
	registry := NewSenderRegistry(store, nil)
	contents := NewContentStore(store, blobs, registry, nil)
	return NewNewsletterService(store, blobs, nil), contents, store, registry
}

func TestNewsletterService_GetAndBody(t *testing.T) {
	svc, contents, _, registry := newTestNewsletterService(t)

	sender, err := registry.ResolveOrCreateSender("news@example.com", "")
	require.NoError(t, err)

	stored, err := contents.Store(StoreInput{
		UserID:   "u1",
		SenderID: sender.ID,
		Subject:  "Shared Issue",
		Body:     "shared issue body",
		Source:   domain.ChannelUpload,
	})
	require.NoError(t, err)

	t.Run("按 ID 获取自己的通讯", func(t *testing.T) {
		got, err := svc.Get("u1", stored.Newsletter.ID)
		require.NoError(t, err)
		assert.Equal(t, "Shared Issue", got.Subject)
	})

	t.Run("他人的通讯不可见", func(t *testing.T) {
		_, err := svc.Get("u2", stored.Newsletter.ID)
		assert.True(t, domain.IsKind(err, domain.KindNotFound))
	})

	t.Run("缺少调用者身份被拒绝", func(t *testing.T) {
		_, err := svc.Get("", stored.Newsletter.ID)
		assert.True(t, domain.IsKind(err, domain.KindUnauthorized))
	})

	t.Run("共享引用经内容行解析正文", func(t *testing.T) {
		body, err := svc.GetBody("u1", stored.Newsletter.ID)
		require.NoError(t, err)
		assert.Equal(t, "shared issue body", string(body))
	})

	t.Run("私有引用直接读取 Blob", func(t *testing.T) {
		private := true
		_, err := registry.UpdateUserSettings("u1", sender.ID, &private, nil)
		require.NoError(t, err)

		result, err := contents.Store(StoreInput{
			UserID:   "u1",
			SenderID: sender.ID,
			Subject:  "Private Issue",
			Body:     "private issue body",
			Source:   domain.ChannelInbox,
		})
		require.NoError(t, err)

		body, err := svc.GetBody("u1", result.Newsletter.ID)
		require.NoError(t, err)
		assert.Equal(t, "private issue body", string(body))
	})
}

func TestNewsletterService_MarkRead(t *testing.T) {
	svc, contents, store, registry := newTestNewsletterService(t)

	sender, err := registry.ResolveOrCreateSender("digest@example.com", "")
	require.NoError(t, err)

	stored, err := contents.Store(StoreInput{
		UserID:   "u1",
		SenderID: sender.ID,
		Subject:  "Read Me",
		Body:     "read me body",
		Source:   domain.ChannelUpload,
	})
	require.NoError(t, err)

	t.Run("首次已读累加阅读计数", func(t *testing.T) {
		require.NoError(t, svc.MarkRead("u1", stored.Newsletter.ID))

		got, err := store.GetNewsletter("u1", stored.Newsletter.ID)
		require.NoError(t, err)
		assert.True(t, got.IsRead)

		content, err := store.GetContent(stored.ContentID)
		require.NoError(t, err)
		assert.Equal(t, 1, content.ReaderCount)
	})

	t.Run("重复已读不再计数", func(t *testing.T) {
		require.NoError(t, svc.MarkRead("u1", stored.Newsletter.ID))

		content, err := store.GetContent(stored.ContentID)
		require.NoError(t, err)
		assert.Equal(t, 1, content.ReaderCount)
	})

	t.Run("他人标记已读被拒绝", func(t *testing.T) {
		err := svc.MarkRead("u2", stored.Newsletter.ID)
		assert.True(t, domain.IsKind(err, domain.KindNotFound))
	})
}

func TestNewsletterService_HideAndDelete(t *testing.T) {
	svc, contents, store, registry := newTestNewsletterService(t)

	sender, err := registry.ResolveOrCreateSender("news@example.com", "")
	require.NoError(t, err)

	stored, err := contents.Store(StoreInput{
		UserID:   "u1",
		SenderID: sender.ID,
		Subject:  "Manage Me",
		Body:     "manage me body",
		Source:   domain.ChannelUpload,
	})
	require.NoError(t, err)

	t.Run("隐藏后默认列表不可见", func(t *testing.T) {
		require.NoError(t, svc.SetHidden("u1", stored.Newsletter.ID, true))

		visible, err := svc.List("u1", false)
		require.NoError(t, err)
		assert.Empty(t, visible)

		all, err := svc.List("u1", true)
		require.NoError(t, err)
		assert.Len(t, all, 1)
	})

	t.Run("删除只移除个人引用", func(t *testing.T) {
		require.NoError(t, svc.Delete("u1", stored.Newsletter.ID))

		_, err := svc.Get("u1", stored.Newsletter.ID)
		assert.True(t, domain.IsKind(err, domain.KindNotFound))

		// 共享内容行保留
		_, err = store.GetContent(stored.ContentID)
		assert.NoError(t, err)
	})

	t.Run("他人的通讯不可删除", func(t *testing.T) {
		again, err := contents.Store(StoreInput{
			UserID:   "u1",
			SenderID: sender.ID,
			Subject:  "Keep Me",
			Body:     "keep me body",
			Source:   domain.ChannelUpload,
		})
		require.NoError(t, err)

		err = svc.Delete("u2", again.Newsletter.ID)
		assert.True(t, domain.IsKind(err, domain.KindNotFound))

		_, err = svc.Get("u1", again.Newsletter.ID)
		assert.NoError(t, err)
	})
}

func TestNewsletterService_ListByFolder(t *testing.T) {
	svc, _, store, _ := newTestNewsletterService(t)

	now := time.Now().UTC()
	folder := &domain.Folder{ID: "f1", UserID: "u1", Name: "Tech", CreatedAt: now, UpdatedAt: now}
	require.NoError(t, store.SaveFolder(folder))

	folderID := folder.ID
	require.NoError(t, store.SaveNewsletter(&domain.UserNewsletter{
		ID: "n1", UserID: "u1", SenderID: "sender-1", FolderID: &folderID,
		Ref: domain.SharedRef("content-1"), ReceivedAt: now, CreatedAt: now, UpdatedAt: now,
	}))

	t.Run("列出文件夹内的通讯", func(t *testing.T) {
		newsletters, err := svc.ListByFolder("u1", "f1")
		require.NoError(t, err)
		assert.Len(t, newsletters, 1)
	})

	t.Run("他人的文件夹不可列出", func(t *testing.T) {
		_, err := svc.ListByFolder("u2", "f1")
		assert.True(t, domain.IsKind(err, domain.KindForbidden))
	})
}
