package storage

import (
	"errors"
	"io/fs"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStorageSaveReadDelete(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	_, err = store.Save("nested/users.csv", []byte("a,b\n"))
	require.NoError(t, err)
	_, err = store.Save("nested/users.csv", []byte("c,d\n"))
	require.NoError(t, err)

	data, err := store.Read("nested/users.csv")
	require.NoError(t, err)
	assert.Equal(t, "c,d\n", string(data))

	entries, err := os.ReadDir(store.Path("nested"))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files are left behind")

	require.NoError(t, store.Delete("nested/users.csv"))
	require.NoError(t, store.Delete("nested/users.csv"))
	_, err = store.Read("nested/users.csv")
	assert.True(t, errors.Is(err, fs.ErrNotExist))
}
