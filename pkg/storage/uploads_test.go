package storage

import (
	"bytes"
	"io"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *UploadStore {
	t.Helper()
	store, err := NewUploadStore(t.TempDir(), []string{"pdf", "txt", "png"})
	require.NoError(t, err)
	return store
}

func TestUploadStoreAllowed(t *testing.T) {
	store := newTestStore(t)

	assert.True(t, store.Allowed("apostila.pdf"))
	assert.True(t, store.Allowed("NOTES.TXT"))
	assert.False(t, store.Allowed("malware.exe"))
	assert.False(t, store.Allowed("noextension"))
}

func TestUploadStoreSanitize(t *testing.T) {
	store := newTestStore(t)
	now := time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)

	name := store.Sanitize("../../etc/passwd caderno 1.pdf", now)
	assert.Equal(t, "20240115103000_passwd_caderno_1.pdf", name)

	name = store.Sanitize("///", now)
	assert.Equal(t, "20240115103000_arquivo", name)
}

func TestUploadStoreSaveOpenDelete(t *testing.T) {
	store := newTestStore(t)

	stored, err := store.SaveStream("20240115103000_apostila.pdf", bytes.NewReader([]byte("conteudo")))
	require.NoError(t, err)

	file, err := store.Open(stored)
	require.NoError(t, err)
	data, err := io.ReadAll(file)
	require.NoError(t, err)
	require.NoError(t, file.Close())
	assert.Equal(t, "conteudo", string(data))

	require.NoError(t, store.Delete(stored))
	_, err = os.Stat(store.Path(stored))
	assert.True(t, os.IsNotExist(err))
}
