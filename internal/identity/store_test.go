package identity

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "nested", "identity.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestOpenCreatesParentDirectory(t *testing.T) {
	store := newTestStore(t)
	assert.NotNil(t, store)
}

func TestGetMissingKey(t *testing.T) {
	store := newTestStore(t)

	value, err := store.Get("sessionId")
	require.NoError(t, err)
	assert.Nil(t, value)
}

func TestPutAndGet(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.Put("identity", []byte(`{"seed":"abc"}`)))

	value, err := store.Get("identity")
	require.NoError(t, err)
	assert.Equal(t, []byte(`{"seed":"abc"}`), value)
}

func TestPutReplaces(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.Put("pollCursor", []byte("10")))
	require.NoError(t, store.Put("pollCursor", []byte("42")))

	value, err := store.Get("pollCursor")
	require.NoError(t, err)
	assert.Equal(t, []byte("42"), value)
}

func TestDelete(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.Put("identity", []byte("blob")))
	require.NoError(t, store.Delete("identity"))

	value, err := store.Get("identity")
	require.NoError(t, err)
	assert.Nil(t, value)
}

func TestSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "identity.db")

	store, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, store.Put("sessionId", []byte("05abc")))
	require.NoError(t, store.Close())

	reopened, err := Open(path)
	require.NoError(t, err)
	defer reopened.Close()

	value, err := reopened.Get("sessionId")
	require.NoError(t, err)
	assert.Equal(t, []byte("05abc"), value)
}
