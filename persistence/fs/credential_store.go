package fs

import (
	"os"
	"path/filepath"

	"github.com/waflow/waflow/persistence"
)

var _ persistence.CredentialStore = new(fsCredentialStore)

// fsCredentialStore keeps one directory per tenant under root. The
// transport writes its session blob inside; Clear removes the whole
// directory so a wiped tenant re-pairs from scratch.
type fsCredentialStore struct {
	root string
}

func NewCredentialStore(root string) *fsCredentialStore {
	return &fsCredentialStore{
		root: root,
	}
}

func (cs *fsCredentialStore) Dir(tenantId string) (string, error) {
	dir := filepath.Join(cs.root, tenantId)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", persistence.StorageLayerError{Message: err.Error()}
	}
	return dir, nil
}

func (cs *fsCredentialStore) HasCredentials(tenantId string) (bool, error) {
	entries, err := os.ReadDir(filepath.Join(cs.root, tenantId))
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, persistence.StorageLayerError{Message: err.Error()}
	}
	return len(entries) > 0, nil
}

func (cs *fsCredentialStore) Clear(tenantId string) error {
	if err := os.RemoveAll(filepath.Join(cs.root, tenantId)); err != nil {
		return persistence.StorageLayerError{Message: err.Error()}
	}
	return nil
}
