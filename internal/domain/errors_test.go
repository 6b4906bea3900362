package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorKinds(t *testing.T) {
	t.Run("每类构造函数携带对应类别", func(t *testing.T) {
		assert.Equal(t, KindUnauthorized, KindOf(ErrUnauthorized("x")))
		assert.Equal(t, KindForbidden, KindOf(ErrForbidden("x")))
		assert.Equal(t, KindNotFound, KindOf(ErrNotFound("x")))
		assert.Equal(t, KindDuplicate, KindOf(ErrDuplicate("x")))
		assert.Equal(t, KindValidation, KindOf(ErrValidation("x")))
		assert.Equal(t, KindExpired, KindOf(ErrExpired("x")))
		assert.Equal(t, KindRateLimited, KindOf(ErrRateLimited("x")))
		assert.Equal(t, KindTokenExpired, KindOf(ErrTokenExpired("x")))
	})

	t.Run("非业务错误归为 internal", func(t *testing.T) {
		assert.Equal(t, KindInternal, KindOf(errors.New("plain")))
		assert.Equal(t, KindInternal, KindOf(nil))
	})

	t.Run("包装后的错误保留类别并可解包", func(t *testing.T) {
		inner := errors.New("connection refused")
		wrapped := WrapError(KindRateLimited, "remote throttled", inner)

		assert.True(t, IsKind(wrapped, KindRateLimited))
		assert.ErrorIs(t, wrapped, inner)
		assert.Contains(t, wrapped.Error(), "remote throttled")
	})

	t.Run("经 fmt 包装后类别仍可识别", func(t *testing.T) {
		err := fmt.Errorf("store: %w", ErrNotFound("folder not found"))
		assert.True(t, IsKind(err, KindNotFound))
	})

	t.Run("errors.Is 按类别比较", func(t *testing.T) {
		assert.ErrorIs(t, ErrNotFound("a"), ErrNotFound("b"))
		assert.NotErrorIs(t, ErrNotFound("a"), ErrDuplicate("a"))
	})
}

func TestContentRefValidate(t *testing.T) {
	assert.NoError(t, SharedRef("content-1").Validate())
	assert.NoError(t, PrivateRef("private/u1/key").Validate())
	assert.Error(t, ContentRef{}.Validate())
	assert.Error(t, ContentRef{ContentID: "c", PrivateBlobKey: "k"}.Validate())

	assert.False(t, SharedRef("content-1").IsPrivate())
	assert.True(t, PrivateRef("private/u1/key").IsPrivate())
}
