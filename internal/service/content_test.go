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

func newTestContentStore(t *testing.T) (*ContentStore, *memory.Store, *SenderRegistry) {
	t.Helper()
	store := memory.NewStore()
	blobs, err := filesystem.NewStore(t.TempDir())
	require.NoError(t, err)
	registry := NewSenderRegistry(store, nil)
	return NewContentStore(store, blobs, registry, nil), store, registry
}

func TestContentStore_SharedDeduplication(t *testing.T) {
	contents, store, registry := newTestContentStore(t)

	sender, err := registry.ResolveOrCreateSender("news@example.com", "News")
	require.NoError(t, err)

	body := "<html><body><p>Weekly digest body</p></body></html>"
	received := time.Date(2026, 8, 20, 9, 0, 0, 0, time.UTC)

	t.Run("首次入库创建共享内容", func(t *testing.T) {
		result, err := contents.Store(StoreInput{
			UserID:     "u1",
			SenderID:   sender.ID,
			Subject:    "Weekly Digest",
			Body:       body,
			Source:     domain.ChannelUpload,
			ReceivedAt: received,
		})
		require.NoError(t, err)
		assert.Equal(t, OutcomeStored, result.Outcome)
		require.NotNil(t, result.Newsletter)
		assert.False(t, result.Newsletter.Ref.IsPrivate())
		assert.Equal(t, result.ContentID, result.Newsletter.Ref.ContentID)

		content, err := store.GetContent(result.ContentID)
		require.NoError(t, err)
		assert.Equal(t, 1, content.ImportCount)
		assert.Equal(t, 0, content.ReaderCount)
	})

	t.Run("第二个用户导入相同正文复用同一内容", func(t *testing.T) {
		result, err := contents.Store(StoreInput{
			UserID:     "u2",
			SenderID:   sender.ID,
			Subject:    "Weekly Digest",
			Body:       body,
			Source:     domain.ChannelUpload,
			ReceivedAt: received.Add(time.Hour),
		})
		require.NoError(t, err)
		assert.Equal(t, OutcomeStored, result.Outcome)

		content, err := store.GetContent(result.ContentID)
		require.NoError(t, err)
		assert.Equal(t, 2, content.ImportCount, "两次导入累计到同一内容行")
	})

	t.Run("同用户同元数据命中阶段一查重", func(t *testing.T) {
		result, err := contents.Store(StoreInput{
			UserID:     "u1",
			SenderID:   sender.ID,
			Subject:    "Weekly Digest",
			Body:       "entirely different body",
			Source:     domain.ChannelUpload,
			ReceivedAt: received,
		})
		require.NoError(t, err)
		assert.Equal(t, OutcomeDuplicate, result.Outcome)
		assert.Nil(t, result.Newsletter)
	})

	t.Run("逐收件人个性化不破坏查重", func(t *testing.T) {
		personalized := body + "\n<p>Sent to u3@reader.example</p>"
		first, err := contents.Store(StoreInput{
			UserID:         "u3",
			SenderID:       sender.ID,
			Subject:        "Weekly Digest",
			Body:           personalized,
			Source:         domain.ChannelUpload,
			ReceivedAt:     received.Add(2 * time.Hour),
			RecipientEmail: "u3@reader.example",
		})
		require.NoError(t, err)

		depersonalized := body + "\n<p>Sent to </p>"
		second, err := contents.Store(StoreInput{
			UserID:     "u4",
			SenderID:   sender.ID,
			Subject:    "Weekly Digest",
			Body:       depersonalized,
			Source:     domain.ChannelUpload,
			ReceivedAt: received.Add(3 * time.Hour),
		})
		require.NoError(t, err)
		assert.Equal(t, first.ContentID, second.ContentID, "剥离收件人地址后哈希一致")
	})
}

func TestContentStore_PrivateBranch(t *testing.T) {
	contents, store, registry := newTestContentStore(t)

	sender, err := registry.ResolveOrCreateSender("secret@example.com", "")
	require.NoError(t, err)
	_, err = registry.ResolveOrCreateUserSettings("u1", sender.ID)
	require.NoError(t, err)
	private := true
	_, err = registry.UpdateUserSettings("u1", sender.ID, &private, nil)
	require.NoError(t, err)

	body := "private newsletter body"

	result, err := contents.Store(StoreInput{
		UserID:   "u1",
		SenderID: sender.ID,
		Subject:  "Private Issue",
		Body:     body,
		Source:   domain.ChannelInbox,
	})
	require.NoError(t, err)
	assert.Equal(t, OutcomeStored, result.Outcome)
	assert.Empty(t, result.ContentID)
	require.NotNil(t, result.Newsletter)
	assert.True(t, result.Newsletter.Ref.IsPrivate())

	t.Run("私有内容不参与跨用户去重", func(t *testing.T) {
		other, err := contents.Store(StoreInput{
			UserID:   "u2",
			SenderID: sender.ID,
			Subject:  "Private Issue",
			Body:     body,
			Source:   domain.ChannelInbox,
		})
		require.NoError(t, err)
		assert.Equal(t, OutcomeStored, other.Outcome, "其他用户走共享分支且无内容可命中")
		assert.NotEmpty(t, other.ContentID)

		_, err = store.GetContent(other.ContentID)
		assert.NoError(t, err)
	})

	t.Run("同一用户重复入库生成独立私有 Blob", func(t *testing.T) {
		repeat, err := contents.Store(StoreInput{
			UserID:   "u1",
			SenderID: sender.ID,
			Subject:  "Private Issue",
			Body:     body,
			Source:   domain.ChannelInbox,
		})
		require.NoError(t, err)
		assert.Equal(t, OutcomeStored, repeat.Outcome, "私有分支不做任何去重")

		newsletters, err := store.ListNewsletters("u1", true)
		require.NoError(t, err)

		keys := make(map[string]bool)
		for _, n := range newsletters {
			if n.Ref.IsPrivate() {
				require.NotEmpty(t, n.Ref.PrivateBlobKey)
				keys[n.Ref.PrivateBlobKey] = true
			}
		}
		assert.Len(t, keys, 2, "两封私有通讯各自持有独立的 Blob 键")
	})
}

func TestContentStore_ImportSharedContent(t *testing.T) {
	contents, store, registry := newTestContentStore(t)

	sender, err := registry.ResolveOrCreateSender("library@example.com", "")
	require.NoError(t, err)

	seeded, err := contents.Store(StoreInput{
		UserID:   "u1",
		SenderID: sender.ID,
		Subject:  "Library Issue",
		Body:     "shared library body",
		Source:   domain.ChannelUpload,
	})
	require.NoError(t, err)

	t.Run("社区导入复用内容并累计计数", func(t *testing.T) {
		newsletter, err := contents.ImportSharedContent("u2", seeded.ContentID, sender.ID)
		require.NoError(t, err)
		assert.Equal(t, "u2", newsletter.UserID)
		assert.Equal(t, seeded.ContentID, newsletter.Ref.ContentID)
		assert.Equal(t, domain.ChannelCommunity, newsletter.Source)

		content, err := store.GetContent(seeded.ContentID)
		require.NoError(t, err)
		assert.Equal(t, 2, content.ImportCount)
	})

	t.Run("内容不存在返回 NotFound", func(t *testing.T) {
		_, err := contents.ImportSharedContent("u2", "missing", sender.ID)
		assert.True(t, domain.IsKind(err, domain.KindNotFound))
	})

	t.Run("缺少调用者身份被拒绝", func(t *testing.T) {
		_, err := contents.ImportSharedContent("", seeded.ContentID, sender.ID)
		assert.True(t, domain.IsKind(err, domain.KindUnauthorized))
	})
}
