package smtp

import (
	"strings"
	"testing"
	"time"

	gosmtp "github.com/emersion/go-smtp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lettervault/internal/blob/filesystem"
	"lettervault/internal/config"
	"lettervault/internal/domain"
	"lettervault/internal/service"
	"lettervault/internal/storage/memory"
)

func newTestBackend(t *testing.T) (*Backend, *memory.Store) {
	t.Helper()

	store := memory.NewStore()
	blobs, err := filesystem.NewStore(t.TempDir())
	require.NoError(t, err)
	registry := service.NewSenderRegistry(store, nil)
	contents := service.NewContentStore(store, blobs, registry, nil)

	cfg := config.IntakeConfig{
		Domain:   "in.lettervault.app",
		MaxConns: 10,
		MaxRate:  100,
	}
	backend := NewBackend(cfg, store, registry, contents, nil)

	now := time.Now().UTC()
	require.NoError(t, store.CreateUser(&domain.User{
		ID: "u1", Email: "reader@example.com", Plan: domain.PlanFree,
		IntakeToken: "tok123", CreatedAt: now, UpdatedAt: now,
	}))
	return backend, store
}

func smtpCode(t *testing.T, err error) int {
	t.Helper()
	var smtpErr *gosmtp.SMTPError
	require.ErrorAs(t, err, &smtpErr)
	return smtpErr.Code
}

func TestSession_Rcpt(t *testing.T) {
	backend, _ := newTestBackend(t)

	t.Run("收件令牌解析到用户", func(t *testing.T) {
		s := &session{backend: backend}
		require.NoError(t, s.Rcpt("tok123@in.lettervault.app", nil))
		require.Len(t, s.recipients, 1)
		assert.Equal(t, "u1", s.recipients[0].user.ID)
	})

	t.Run("域名大小写不敏感", func(t *testing.T) {
		s := &session{backend: backend}
		assert.NoError(t, s.Rcpt("tok123@IN.LETTERVAULT.APP", nil))
	})

	t.Run("外部域名 550 拒收", func(t *testing.T) {
		s := &session{backend: backend}
		err := s.Rcpt("someone@gmail.com", nil)
		assert.Equal(t, 550, smtpCode(t, err))
	})

	t.Run("未知令牌 550 拒收", func(t *testing.T) {
		s := &session{backend: backend}
		err := s.Rcpt("no-such-token@in.lettervault.app", nil)
		assert.Equal(t, 550, smtpCode(t, err))
	})

	t.Run("格式非法的地址 501 拒收", func(t *testing.T) {
		s := &session{backend: backend}
		err := s.Rcpt("@in.lettervault.app", nil)
		assert.Equal(t, 501, smtpCode(t, err))
	})
}

func TestSession_Data(t *testing.T) {
	backend, store := newTestBackend(t)

	raw := strings.Join([]string{
		"From: Example News <news@example.com>",
		"To: tok123@in.lettervault.app",
		"Subject: Weekly Digest",
		"Message-ID: <issue-1@mail.example.com>",
		"Date: Thu, 20 Aug 2026 09:30:00 +0000",
		"",
		"Hello, this is the weekly digest.",
	}, "\r\n")

	deliver := func() error {
		s := &session{backend: backend}
		if err := s.Mail("bounce@mailer.example.com", nil); err != nil {
			return err
		}
		if err := s.Rcpt("tok123@in.lettervault.app", nil); err != nil {
			return err
		}
		return s.Data(strings.NewReader(raw))
	}

	t.Run("投递成功并入库通讯", func(t *testing.T) {
		require.NoError(t, deliver())

		newsletters, err := store.ListNewsletters("u1", true)
		require.NoError(t, err)
		require.Len(t, newsletters, 1)
		assert.Equal(t, "Weekly Digest", newsletters[0].Subject)
		assert.Equal(t, domain.ChannelInbox, newsletters[0].Source)
		assert.Equal(t, "issue-1@mail.example.com", newsletters[0].MessageID)

		// 发件人取信头 From 而非信封地址
		sender, err := store.GetSenderByEmail("news@example.com")
		require.NoError(t, err)
		assert.Equal(t, "Example News", sender.Name)
	})

	t.Run("重复投递返回成功但不重复入库", func(t *testing.T) {
		require.NoError(t, deliver(), "查重命中不向发件方报错")

		newsletters, err := store.ListNewsletters("u1", true)
		require.NoError(t, err)
		assert.Len(t, newsletters, 1)
	})

	t.Run("无法解析的内容报错", func(t *testing.T) {
		s := &session{backend: backend}
		require.NoError(t, s.Rcpt("tok123@in.lettervault.app", nil))
		assert.Error(t, s.Data(strings.NewReader("garbage without headers")))
	})
}

func TestBackend_ConnectionLimit(t *testing.T) {
	store := memory.NewStore()
	blobs, err := filesystem.NewStore(t.TempDir())
	require.NoError(t, err)
	registry := service.NewSenderRegistry(store, nil)
	contents := service.NewContentStore(store, blobs, registry, nil)

	backend := NewBackend(config.IntakeConfig{
		Domain:   "in.lettervault.app",
		MaxConns: 1,
		MaxRate:  100,
	}, store, registry, contents, nil)

	first, err := backend.NewSession(nil)
	require.NoError(t, err)

	_, err = backend.NewSession(nil)
	assert.Equal(t, 421, smtpCode(t, err))

	// 会话结束归还许可后可再接新连接
	require.NoError(t, first.Logout())
	_, err = backend.NewSession(nil)
	assert.NoError(t, err)
}

func TestConnectionLimiter(t *testing.T) {
	limiter := NewConnectionLimiter(2, 100)

	assert.True(t, limiter.Acquire())
	assert.True(t, limiter.Acquire())
	assert.Equal(t, 2, limiter.Current())
	assert.False(t, limiter.Acquire(), "超过并发上限")

	limiter.Release()
	assert.True(t, limiter.Acquire())
}
