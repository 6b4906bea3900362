package memory

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lettervault/internal/domain"
)

func newFolder(id, userID, name string) *domain.Folder {
	now := time.Now().UTC()
	return &domain.Folder{ID: id, UserID: userID, Name: name, CreatedAt: now, UpdatedAt: now}
}

func newSettings(id, userID, senderID string, folderID *string) *domain.UserSenderSettings {
	now := time.Now().UTC()
	return &domain.UserSenderSettings{ID: id, UserID: userID, SenderID: senderID, FolderID: folderID, CreatedAt: now, UpdatedAt: now}
}

func newNewsletter(id, userID, senderID string, folderID *string) *domain.UserNewsletter {
	now := time.Now().UTC()
	return &domain.UserNewsletter{
		ID: id, UserID: userID, SenderID: senderID, FolderID: folderID,
		Ref: domain.SharedRef("content-" + id), ReceivedAt: now, CreatedAt: now, UpdatedAt: now,
	}
}

func TestStore_MoveAndRestoreFolderRefs(t *testing.T) {
	store := NewStore()

	source := newFolder("f-src", "u1", "Source")
	target := newFolder("f-dst", "u1", "Target")
	require.NoError(t, store.SaveFolder(source))
	require.NoError(t, store.SaveFolder(target))

	srcID := source.ID
	require.NoError(t, store.SaveSenderSettings(newSettings("s1", "u1", "sender-1", &srcID)))
	require.NoError(t, store.SaveNewsletter(newNewsletter("n1", "u1", "sender-1", &srcID)))
	require.NoError(t, store.SaveNewsletter(newNewsletter("n2", "u1", "sender-1", &srcID)))
	// 其他用户的同名引用不受影响
	require.NoError(t, store.SaveFolder(newFolder("f-other", "u2", "Source")))

	t.Run("移动返回被改写的行 ID", func(t *testing.T) {
		settingIDs, newsletterIDs, err := store.MoveFolderRefs("u1", "f-src", "f-dst")
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"s1"}, settingIDs)
		assert.ElementsMatch(t, []string{"n1", "n2"}, newsletterIDs)

		moved, err := store.GetNewsletter("u1", "n1")
		require.NoError(t, err)
		assert.Equal(t, "f-dst", *moved.FolderID)
	})

	t.Run("恢复把仍存在的行指回新文件夹并统计跳过", func(t *testing.T) {
		// 其中一条在撤销前被独立删除
		require.NoError(t, store.DeleteNewsletter("u1", "n2"))

		restored := newFolder("f-restored", "u1", "Source")
		require.NoError(t, store.SaveFolder(restored))

		rs, rn, ss, sn, err := store.RestoreFolderRefs("u1", "f-restored", []string{"s1"}, []string{"n1", "n2"})
		require.NoError(t, err)
		assert.Equal(t, 1, rs)
		assert.Equal(t, 1, rn)
		assert.Equal(t, 0, ss)
		assert.Equal(t, 1, sn)

		back, err := store.GetNewsletter("u1", "n1")
		require.NoError(t, err)
		assert.Equal(t, "f-restored", *back.FolderID)
	})
}

func TestStore_MergeHistoryLifecycle(t *testing.T) {
	store := NewStore()
	now := time.Now().UTC()

	history := &domain.FolderMergeHistory{
		ID:        "m1",
		UserID:    "u1",
		CreatedAt: now,
		ExpiresAt: now.Add(30 * time.Second),
	}
	require.NoError(t, store.SaveMergeHistory(history))

	t.Run("删除后不可再取", func(t *testing.T) {
		require.NoError(t, store.DeleteMergeHistory("m1"))
		_, err := store.GetMergeHistory("m1")
		assert.True(t, domain.IsKind(err, domain.KindNotFound))
		assert.True(t, domain.IsKind(store.DeleteMergeHistory("m1"), domain.KindNotFound))
	})

	t.Run("清扫只删除已过期的记录", func(t *testing.T) {
		require.NoError(t, store.SaveMergeHistory(&domain.FolderMergeHistory{
			ID: "expired", UserID: "u1", ExpiresAt: now.Add(-time.Second),
		}))
		require.NoError(t, store.SaveMergeHistory(&domain.FolderMergeHistory{
			ID: "alive", UserID: "u1", ExpiresAt: now.Add(time.Minute),
		}))

		deleted, err := store.DeleteExpiredMergeHistories(now)
		require.NoError(t, err)
		assert.Equal(t, 1, deleted)

		_, err = store.GetMergeHistory("alive")
		assert.NoError(t, err)
	})
}

func TestStore_ContentHashUniqueness(t *testing.T) {
	store := NewStore()
	now := time.Now().UTC()

	first := &domain.NewsletterContent{ID: "c1", ContentHash: "hash-a", BlobKey: "k1", CreatedAt: now}
	require.NoError(t, store.SaveContent(first))

	t.Run("同哈希的第二次插入返回 Duplicate", func(t *testing.T) {
		err := store.SaveContent(&domain.NewsletterContent{ID: "c2", ContentHash: "hash-a", BlobKey: "k2"})
		assert.True(t, domain.IsKind(err, domain.KindDuplicate))
	})

	t.Run("同 ID 重写不算冲突", func(t *testing.T) {
		assert.NoError(t, store.SaveContent(first))
	})

	t.Run("计数累加", func(t *testing.T) {
		require.NoError(t, store.IncrementContentCounters("c1", 1, 0))
		require.NoError(t, store.IncrementContentCounters("c1", 1, 1))

		content, err := store.GetContentByHash("hash-a")
		require.NoError(t, err)
		assert.Equal(t, 2, content.ImportCount)
		assert.Equal(t, 1, content.ReaderCount)
	})
}

func TestStore_NewsletterQueries(t *testing.T) {
	store := NewStore()
	base := time.Date(2026, 8, 10, 12, 0, 0, 0, time.UTC)

	n1 := newNewsletter("n1", "u1", "sender-1", nil)
	n1.Subject = "Weekly Digest"
	n1.MessageID = "msg-1"
	n1.ReceivedAt = base
	n1.CreatedAt = base
	require.NoError(t, store.SaveNewsletter(n1))

	t.Run("元数据查重命中同发件人同时间同主题", func(t *testing.T) {
		seen, err := store.HasNewsletterMeta("u1", "sender-1", base, "Weekly Digest")
		require.NoError(t, err)
		assert.True(t, seen)

		seen, err = store.HasNewsletterMeta("u1", "sender-1", base.Add(time.Minute), "Weekly Digest")
		require.NoError(t, err)
		assert.False(t, seen)
	})

	t.Run("邮件标识查重空标识恒为未命中", func(t *testing.T) {
		seen, err := store.HasNewsletterMessageID("u1", "msg-1")
		require.NoError(t, err)
		assert.True(t, seen)

		seen, err = store.HasNewsletterMessageID("u1", "")
		require.NoError(t, err)
		assert.False(t, seen)
	})

	t.Run("配额窗口统计按创建时间", func(t *testing.T) {
		count, err := store.CountNewslettersSince("u1", base.Add(-time.Hour))
		require.NoError(t, err)
		assert.Equal(t, 1, count)

		count, err = store.CountNewslettersSince("u1", base.Add(time.Hour))
		require.NoError(t, err)
		assert.Equal(t, 0, count)
	})

	t.Run("隐藏文件夹中的通讯默认不可见", func(t *testing.T) {
		hidden := newFolder("f-hidden", "u1", "Hidden")
		hidden.IsHidden = true
		require.NoError(t, store.SaveFolder(hidden))

		hiddenID := hidden.ID
		require.NoError(t, store.SaveNewsletter(newNewsletter("n-hidden", "u1", "sender-1", &hiddenID)))

		visible, err := store.ListNewsletters("u1", false)
		require.NoError(t, err)
		for _, n := range visible {
			assert.NotEqual(t, "n-hidden", n.ID)
		}

		all, err := store.ListNewsletters("u1", true)
		require.NoError(t, err)
		assert.Len(t, all, 2)
	})
}

func TestStore_UserLookups(t *testing.T) {
	store := NewStore()
	now := time.Now().UTC()

	user := &domain.User{
		ID: "u1", Email: "reader@example.com", Plan: domain.PlanFree,
		IntakeToken: "tok123", CreatedAt: now, UpdatedAt: now,
	}
	require.NoError(t, store.CreateUser(user))

	t.Run("按收件令牌解析用户", func(t *testing.T) {
		got, err := store.GetUserByIntakeToken("tok123")
		require.NoError(t, err)
		assert.Equal(t, "u1", got.ID)

		_, err = store.GetUserByIntakeToken("unknown")
		assert.True(t, domain.IsKind(err, domain.KindNotFound))
	})

	t.Run("邮箱唯一", func(t *testing.T) {
		err := store.CreateUser(&domain.User{ID: "u2", Email: "reader@example.com"})
		assert.True(t, domain.IsKind(err, domain.KindDuplicate))
	})
}
