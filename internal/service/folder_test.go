package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lettervault/internal/domain"
	"lettervault/internal/storage/memory"
)

func TestFolderService_Create(t *testing.T) {
	store := memory.NewStore()
	svc := NewFolderService(store, 0, nil)

	t.Run("创建文件夹", func(t *testing.T) {
		folder, err := svc.Create(CreateFolderInput{UserID: "u1", Name: "Tech News", Color: "#3366ff"})
		require.NoError(t, err)
		assert.Equal(t, "Tech News", folder.Name)
		assert.NotEmpty(t, folder.ID)
	})

	t.Run("重名默认拒绝", func(t *testing.T) {
		_, err := svc.Create(CreateFolderInput{UserID: "u1", Name: "tech news"})
		assert.True(t, domain.IsKind(err, domain.KindDuplicate), "大小写不同也算重名")
	})

	t.Run("自动改名追加递增后缀", func(t *testing.T) {
		second, err := svc.Create(CreateFolderInput{UserID: "u1", Name: "Tech News", AutoRename: true})
		require.NoError(t, err)
		assert.Equal(t, "Tech News 2", second.Name)

		third, err := svc.Create(CreateFolderInput{UserID: "u1", Name: "Tech News", AutoRename: true})
		require.NoError(t, err)
		assert.Equal(t, "Tech News 3", third.Name)
	})

	t.Run("不同用户可重名", func(t *testing.T) {
		folder, err := svc.Create(CreateFolderInput{UserID: "u2", Name: "Tech News"})
		require.NoError(t, err)
		assert.Equal(t, "Tech News", folder.Name)
	})

	t.Run("缺少调用者身份被拒绝", func(t *testing.T) {
		_, err := svc.Create(CreateFolderInput{Name: "X"})
		assert.True(t, domain.IsKind(err, domain.KindUnauthorized))
	})

	t.Run("空名称不合法", func(t *testing.T) {
		_, err := svc.Create(CreateFolderInput{UserID: "u1", Name: "   "})
		assert.True(t, domain.IsKind(err, domain.KindValidation))
	})
}

func TestFolderService_RenameAndHide(t *testing.T) {
	store := memory.NewStore()
	svc := NewFolderService(store, 0, nil)

	folder, err := svc.Create(CreateFolderInput{UserID: "u1", Name: "Reading"})
	require.NoError(t, err)
	_, err = svc.Create(CreateFolderInput{UserID: "u1", Name: "Archive"})
	require.NoError(t, err)

	t.Run("重命名冲突时追加后缀", func(t *testing.T) {
		renamed, err := svc.Rename("u1", folder.ID, "Archive")
		require.NoError(t, err)
		assert.Equal(t, "Archive 2", renamed.Name)
	})

	t.Run("改成自己的名字不算冲突", func(t *testing.T) {
		renamed, err := svc.Rename("u1", folder.ID, "archive 2")
		require.NoError(t, err)
		assert.Equal(t, "archive 2", renamed.Name)
	})

	t.Run("隐藏后默认列表不可见", func(t *testing.T) {
		_, err := svc.SetHidden("u1", folder.ID, true)
		require.NoError(t, err)

		visible, err := svc.List("u1", false)
		require.NoError(t, err)
		for _, f := range visible {
			assert.NotEqual(t, folder.ID, f.ID)
		}

		all, err := svc.List("u1", true)
		require.NoError(t, err)
		assert.Len(t, all, 2)
	})

	t.Run("他人的文件夹不可操作", func(t *testing.T) {
		_, err := svc.Rename("u2", folder.ID, "Stolen")
		assert.True(t, domain.IsKind(err, domain.KindForbidden))
	})
}

// seedMergeFixture 准备一对文件夹和挂在源文件夹下的设置与通讯行。
func seedMergeFixture(t *testing.T, store *memory.Store, svc *FolderService) (source, target *domain.Folder) {
	t.Helper()

	source, err := svc.Create(CreateFolderInput{UserID: "u1", Name: "Source", Color: "#ff0000", Category: "tech"})
	require.NoError(t, err)
	target, err = svc.Create(CreateFolderInput{UserID: "u1", Name: "Target"})
	require.NoError(t, err)

	now := time.Now().UTC()
	srcID := source.ID
	require.NoError(t, store.SaveSenderSettings(&domain.UserSenderSettings{
		ID: "set-1", UserID: "u1", SenderID: "sender-1", FolderID: &srcID,
		CreatedAt: now, UpdatedAt: now,
	}))
	for _, id := range []string{"nl-1", "nl-2"} {
		require.NoError(t, store.SaveNewsletter(&domain.UserNewsletter{
			ID: id, UserID: "u1", SenderID: "sender-1", FolderID: &srcID,
			Ref: domain.SharedRef("content-" + id), ReceivedAt: now,
			CreatedAt: now, UpdatedAt: now,
		}))
	}
	return source, target
}

func TestFolderService_MergeAndUndo(t *testing.T) {
	store := memory.NewStore()
	svc := NewFolderService(store, 0, nil)
	source, target := seedMergeFixture(t, store, svc)

	result, err := svc.Merge("u1", source.ID, target.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, result.MovedSettingCount)
	assert.Equal(t, 2, result.MovedNewsletterCount)
	assert.Equal(t, target.ID, result.TargetFolderID)

	t.Run("合并后源文件夹消失且引用指向目标", func(t *testing.T) {
		_, err := svc.Get("u1", source.ID)
		assert.True(t, domain.IsKind(err, domain.KindNotFound))

		moved, err := store.GetNewsletter("u1", "nl-1")
		require.NoError(t, err)
		assert.Equal(t, target.ID, *moved.FolderID)
	})

	t.Run("撤销重建新文件夹并恢复引用", func(t *testing.T) {
		// 窗口内有一行被独立删除，撤销时应跳过
		require.NoError(t, store.DeleteNewsletter("u1", "nl-2"))

		undo, err := svc.Undo("u1", result.MergeID)
		require.NoError(t, err)
		assert.NotEqual(t, source.ID, undo.FolderID, "重建的文件夹使用新 ID")
		assert.Equal(t, 1, undo.RestoredSettingCount)
		assert.Equal(t, 1, undo.RestoredNewsletterCount)
		assert.Equal(t, 0, undo.SkippedSettingCount)
		assert.Equal(t, 1, undo.SkippedNewsletterCount)

		restored, err := svc.Get("u1", undo.FolderID)
		require.NoError(t, err)
		assert.Equal(t, "Source", restored.Name)
		assert.Equal(t, "#ff0000", restored.Color)
		assert.Equal(t, "tech", restored.Category)

		back, err := store.GetNewsletter("u1", "nl-1")
		require.NoError(t, err)
		assert.Equal(t, undo.FolderID, *back.FolderID)
	})

	t.Run("第二次撤销返回 NotFound", func(t *testing.T) {
		_, err := svc.Undo("u1", result.MergeID)
		assert.True(t, domain.IsKind(err, domain.KindNotFound))
	})
}

func TestFolderService_MergeValidation(t *testing.T) {
	store := memory.NewStore()
	svc := NewFolderService(store, 0, nil)
	source, target := seedMergeFixture(t, store, svc)

	t.Run("不能合并到自身", func(t *testing.T) {
		_, err := svc.Merge("u1", source.ID, source.ID)
		assert.True(t, domain.IsKind(err, domain.KindValidation))
	})

	t.Run("他人的文件夹不可合并", func(t *testing.T) {
		_, err := svc.Merge("u2", source.ID, target.ID)
		assert.True(t, domain.IsKind(err, domain.KindForbidden))
	})

	t.Run("撤销他人的合并被拒绝", func(t *testing.T) {
		result, err := svc.Merge("u1", source.ID, target.ID)
		require.NoError(t, err)

		_, err = svc.Undo("u2", result.MergeID)
		assert.True(t, domain.IsKind(err, domain.KindForbidden))
	})
}

func TestFolderService_UndoWindow(t *testing.T) {
	store := memory.NewStore()
	// 极短窗口，合并完成即过期
	svc := NewFolderService(store, time.Nanosecond, nil)
	source, target := seedMergeFixture(t, store, svc)

	result, err := svc.Merge("u1", source.ID, target.ID)
	require.NoError(t, err)

	time.Sleep(time.Millisecond)

	t.Run("窗口外撤销返回 Expired", func(t *testing.T) {
		_, err := svc.Undo("u1", result.MergeID)
		assert.True(t, domain.IsKind(err, domain.KindExpired))
	})

	t.Run("清扫删除过期记录", func(t *testing.T) {
		deleted, err := svc.SweepExpiredMerges()
		require.NoError(t, err)
		assert.Equal(t, 1, deleted)

		deleted, err = svc.SweepExpiredMerges()
		require.NoError(t, err)
		assert.Equal(t, 0, deleted)
	})

	t.Run("撤销重建时源名称被占用则追加后缀", func(t *testing.T) {
		longSvc := NewFolderService(store, time.Minute, nil)
		src2, err := longSvc.Create(CreateFolderInput{UserID: "u1", Name: "Source", AutoRename: true})
		require.NoError(t, err)

		result, err := longSvc.Merge("u1", src2.ID, target.ID)
		require.NoError(t, err)

		// 窗口内用户又创建了同名文件夹
		_, err = longSvc.Create(CreateFolderInput{UserID: "u1", Name: src2.Name})
		require.NoError(t, err)

		undo, err := longSvc.Undo("u1", result.MergeID)
		require.NoError(t, err)

		restored, err := longSvc.Get("u1", undo.FolderID)
		require.NoError(t, err)
		assert.NotEqual(t, src2.Name, restored.Name)
		assert.Contains(t, restored.Name, src2.Name)
	})

	t.Run("窗口边界以记录的 ExpiresAt 为准", func(t *testing.T) {
		boundarySvc := NewFolderService(store, time.Minute, nil)
		now := time.Now().UTC()

		// 恰好在 ExpiresAt 时刻窗口仍然开放，过一毫秒即关闭
		record := &domain.FolderMergeHistory{ExpiresAt: now}
		assert.False(t, record.Expired(now))
		assert.True(t, record.Expired(now.Add(time.Millisecond)))
		assert.False(t, record.Expired(now.Add(-time.Millisecond)))

		open := &domain.FolderMergeHistory{
			ID: "merge-open", UserID: "u1", SourceName: "Boundary Open",
			TargetFolderID: target.ID,
			CreatedAt:      now.Add(-30 * time.Second),
			ExpiresAt:      now.Add(30 * time.Second),
		}
		require.NoError(t, store.SaveMergeHistory(open))

		closed := &domain.FolderMergeHistory{
			ID: "merge-closed", UserID: "u1", SourceName: "Boundary Closed",
			TargetFolderID: target.ID,
			CreatedAt:      now.Add(-time.Minute),
			ExpiresAt:      now.Add(-time.Millisecond),
		}
		require.NoError(t, store.SaveMergeHistory(closed))

		_, err := boundarySvc.Undo("u1", closed.ID)
		assert.True(t, domain.IsKind(err, domain.KindExpired), "刚越过 ExpiresAt 即不可撤销")

		undo, err := boundarySvc.Undo("u1", open.ID)
		require.NoError(t, err, "ExpiresAt 之前可撤销")
		assert.NotEmpty(t, undo.FolderID)
	})
}

func TestFolderService_Delete(t *testing.T) {
	store := memory.NewStore()
	svc := NewFolderService(store, 0, nil)
	source, _ := seedMergeFixture(t, store, svc)

	require.NoError(t, svc.Delete("u1", source.ID))

	t.Run("删除清空引用但保留数据", func(t *testing.T) {
		newsletter, err := store.GetNewsletter("u1", "nl-1")
		require.NoError(t, err)
		assert.Nil(t, newsletter.FolderID)

		settings, err := store.GetSenderSettings("u1", "sender-1")
		require.NoError(t, err)
		assert.Nil(t, settings.FolderID)
	})

	t.Run("重复删除返回 NotFound", func(t *testing.T) {
		assert.True(t, domain.IsKind(svc.Delete("u1", source.ID), domain.KindNotFound))
	})
}
