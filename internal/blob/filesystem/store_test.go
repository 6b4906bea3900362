package filesystem

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lettervault/internal/blob"
	"lettervault/internal/domain"
)

func TestStore_PutGet(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	key := blob.SharedKey("abc123")
	returned, err := store.Put(key, []byte("newsletter body"))
	require.NoError(t, err)
	assert.Equal(t, key, returned)

	data, err := store.Get(key)
	require.NoError(t, err)
	assert.Equal(t, []byte("newsletter body"), data)

	t.Run("重写同键覆盖旧内容", func(t *testing.T) {
		_, err := store.Put(key, []byte("updated body"))
		require.NoError(t, err)

		data, err := store.Get(key)
		require.NoError(t, err)
		assert.Equal(t, []byte("updated body"), data)
	})
}

func TestStore_GetMissing(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	_, err = store.Get("shared/none")
	assert.True(t, domain.IsKind(err, domain.KindNotFound))
}

func TestStore_RejectsInvalidKeys(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	for _, key := range []string{"", "../outside", "a/../../outside", "/etc/passwd"} {
		_, err := store.Put(key, []byte("x"))
		assert.Error(t, err, "key %q", key)
		_, err = store.Get(key)
		assert.Error(t, err, "key %q", key)
	}
}

func TestNewStore_RequiresPath(t *testing.T) {
	_, err := NewStore("")
	assert.Error(t, err)
}
