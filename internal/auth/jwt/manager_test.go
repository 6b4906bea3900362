package jwt

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManager_GenerateAndValidate(t *testing.T) {
	manager := NewManager("test-secret", "lettervault", 15*time.Minute, 7*24*time.Hour)

	pair, err := manager.GenerateTokenPair("u1", "reader@example.com", "free")
	require.NoError(t, err)
	assert.NotEmpty(t, pair.AccessToken)
	assert.NotEmpty(t, pair.RefreshToken)
	assert.Equal(t, int64(900), pair.ExpiresIn)

	t.Run("访问令牌携带声明", func(t *testing.T) {
		claims, err := manager.ValidateToken(pair.AccessToken)
		require.NoError(t, err)
		assert.Equal(t, "u1", claims.UserID)
		assert.Equal(t, "reader@example.com", claims.Email)
		assert.Equal(t, "free", claims.Plan)
		assert.Equal(t, "lettervault", claims.Issuer)
	})

	t.Run("错误密钥验证失败", func(t *testing.T) {
		other := NewManager("wrong-secret", "lettervault", 15*time.Minute, 7*24*time.Hour)
		_, err := other.ValidateToken(pair.AccessToken)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("格式非法的令牌验证失败", func(t *testing.T) {
		_, err := manager.ValidateToken("not.a.token")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}

func TestManager_ExpiredToken(t *testing.T) {
	manager := NewManager("test-secret", "lettervault", -time.Minute, -time.Minute)

	pair, err := manager.GenerateTokenPair("u1", "reader@example.com", "free")
	require.NoError(t, err)

	_, err = manager.ValidateToken(pair.AccessToken)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestManager_RefreshAccessToken(t *testing.T) {
	manager := NewManager("test-secret", "lettervault", 15*time.Minute, 7*24*time.Hour)

	pair, err := manager.GenerateTokenPair("u1", "reader@example.com", "pro")
	require.NoError(t, err)

	t.Run("刷新令牌换取新访问令牌", func(t *testing.T) {
		access, err := manager.RefreshAccessToken(pair.RefreshToken)
		require.NoError(t, err)

		claims, err := manager.ValidateToken(access)
		require.NoError(t, err)
		assert.Equal(t, "u1", claims.UserID)
		assert.Equal(t, "pro", claims.Plan)
	})

	t.Run("过期的刷新令牌被拒绝", func(t *testing.T) {
		expired := NewManager("test-secret", "lettervault", 15*time.Minute, -time.Minute)
		stale, err := expired.GenerateTokenPair("u1", "reader@example.com", "free")
		require.NoError(t, err)

		_, err = manager.RefreshAccessToken(stale.RefreshToken)
		assert.ErrorIs(t, err, ErrExpiredToken)
	})
}
