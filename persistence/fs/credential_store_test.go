package fs

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCredentialStore(t *testing.T) {
	store := NewCredentialStore(t.TempDir())

	has, err := store.HasCredentials("t-1")
	require.NoError(t, err)
	require.False(t, has)

	dir, err := store.Dir("t-1")
	require.NoError(t, err)
	require.DirExists(t, dir)

	// an empty dir is still "no credentials"
	has, err = store.HasCredentials("t-1")
	require.NoError(t, err)
	require.False(t, has)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "session.db"), []byte("blob"), 0o600))
	has, err = store.HasCredentials("t-1")
	require.NoError(t, err)
	require.True(t, has)

	require.NoError(t, store.Clear("t-1"))
	require.NoDirExists(t, dir)
	has, err = store.HasCredentials("t-1")
	require.NoError(t, err)
	require.False(t, has)
}

func TestClearUnknownTenantIsANoOp(t *testing.T) {
	store := NewCredentialStore(t.TempDir())
	require.NoError(t, store.Clear("nobody"))
}
