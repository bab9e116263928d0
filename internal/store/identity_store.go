package store

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/fxamacker/cbor/v2"

	"synctrust/internal/domain"
	"synctrust/internal/util/memzero"
)

const (
	identityFilename = "identity.sealed"
	identityPurpose  = "synctrust/identity"
)

// ErrNoIdentity is returned by LoadIdentity before an identity was saved.
var ErrNoIdentity = errors.New("store: no identity, run init first")

// IdentityFileStore keeps the local identity in a passphrase sealed file.
type IdentityFileStore struct {
	mu   sync.Mutex
	path string
}

// NewIdentityFileStore returns an IdentityFileStore rooted at dir.
func NewIdentityFileStore(dir string) *IdentityFileStore {
	return &IdentityFileStore{path: filepath.Join(dir, identityFilename)}
}

// SaveIdentity seals id with passphrase, replacing any previous identity.
func (s *IdentityFileStore) SaveIdentity(passphrase string, id domain.Identity) error {
	raw, err := cbor.Marshal(id)
	if err != nil {
		return err
	}
	defer memzero.Zero(raw)
	sealed, err := seal(identityPurpose, passphrase, raw)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return err
	}
	return replaceFile(s.path, sealed, 0o600)
}

// LoadIdentity opens the identity file with passphrase.
func (s *IdentityFileStore) LoadIdentity(passphrase string) (domain.Identity, error) {
	s.mu.Lock()
	b, err := os.ReadFile(s.path)
	s.mu.Unlock()
	if errors.Is(err, fs.ErrNotExist) {
		return domain.Identity{}, ErrNoIdentity
	}
	if err != nil {
		return domain.Identity{}, err
	}

	raw, err := open(identityPurpose, passphrase, b)
	if err != nil {
		return domain.Identity{}, err
	}
	defer memzero.Zero(raw)
	var id domain.Identity
	if err := cbor.Unmarshal(raw, &id); err != nil {
		return domain.Identity{}, err
	}
	return id, nil
}

// Exists reports whether an identity file is present.
func (s *IdentityFileStore) Exists() bool {
	_, err := os.Stat(s.path)
	return err == nil
}

var _ domain.IdentityStore = (*IdentityFileStore)(nil)
