package store

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fxamacker/cbor/v2"
	bolt "go.etcd.io/bbolt"

	"synctrust/internal/crypto"
	"synctrust/internal/domain"
)

const (
	trustDBFilename = "trust.db"

	trustedKeysBucket = "trusted_keys"
	metadataBucket    = "metadata"
	versionKey        = "version"
	trustDBVersion    = 1
)

// ErrNotTrusted is returned by Revoke for a client id without a record.
var ErrNotTrusted = errors.New("store: client is not trusted")

// TrustStore keeps TrustedPublicKey records in bbolt, keyed by client id.
type TrustStore struct {
	sync.Mutex

	db  *bolt.DB
	enc cbor.EncMode
}

// OpenTrustStore opens (creating if needed) the trust database under dir.
func OpenTrustStore(dir string) (*TrustStore, error) {
	return OpenTrustStoreFile(filepath.Join(dir, trustDBFilename))
}

// OpenTrustStoreFile opens (creating if needed) the trust database at path.
func OpenTrustStoreFile(path string) (*TrustStore, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("store: open trust db: %w", err)
	}

	opts := cbor.CoreDetEncOptions()
	opts.Time = cbor.TimeRFC3339Nano
	enc, err := opts.EncMode()
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	if err := db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(trustedKeysBucket)); err != nil {
			return err
		}
		meta, err := tx.CreateBucketIfNotExists([]byte(metadataBucket))
		if err != nil {
			return err
		}
		if v := meta.Get([]byte(versionKey)); v != nil {
			if len(v) != 1 || v[0] != trustDBVersion {
				return fmt.Errorf("store: incompatible trust db version %v", v)
			}
			return nil
		}
		return meta.Put([]byte(versionKey), []byte{trustDBVersion})
	}); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &TrustStore{db: db, enc: enc}, nil
}

// Close closes the database.
func (s *TrustStore) Close() error { return s.db.Close() }

// IsTrusted reports whether info's key is exactly the key on record for its
// client id. A different key for a known client id is not trusted.
func (s *TrustStore) IsTrusted(info domain.PublicKeyInfo) (bool, error) {
	rec, ok, err := s.Get(info.ClientID)
	if err != nil || !ok {
		return false, err
	}
	return subtle.ConstantTimeCompare(rec.PublicKey, info.PublicKey) == 1, nil
}

// Trust records key, replacing any previous record for the same client id.
func (s *TrustStore) Trust(key domain.TrustedPublicKey) error {
	if key.ClientID == "" {
		return errors.New("store: trusted key without client id")
	}
	if _, _, err := domain.SplitPublicKey(key.PublicKey); err != nil {
		return fmt.Errorf("store: %w", err)
	}
	if key.PublicKeyHash == "" {
		key.PublicKeyHash = crypto.Fingerprint(key.PublicKey)
	}
	if key.ValidationDate.IsZero() {
		key.ValidationDate = time.Now()
	}
	key.ValidationDate = key.ValidationDate.UTC()

	raw, err := s.enc.Marshal(key)
	if err != nil {
		return err
	}

	s.Lock()
	defer s.Unlock()
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(trustedKeysBucket)).Put([]byte(key.ClientID), raw)
	})
}

// Get returns the record for clientID.
func (s *TrustStore) Get(clientID domain.ClientID) (domain.TrustedPublicKey, bool, error) {
	var rec domain.TrustedPublicKey
	found := false
	err := s.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket([]byte(trustedKeysBucket)).Get([]byte(clientID))
		if raw == nil {
			return nil
		}
		found = true
		return cbor.Unmarshal(raw, &rec)
	})
	if err != nil {
		return domain.TrustedPublicKey{}, false, fmt.Errorf("store: read %s: %w", clientID, err)
	}
	return rec, found, nil
}

// List returns every record, ordered by client id.
func (s *TrustStore) List() ([]domain.TrustedPublicKey, error) {
	var out []domain.TrustedPublicKey
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(trustedKeysBucket)).ForEach(func(k, v []byte) error {
			var rec domain.TrustedPublicKey
			if err := cbor.Unmarshal(v, &rec); err != nil {
				return fmt.Errorf("store: read %s: %w", k, err)
			}
			out = append(out, rec)
			return nil
		})
	})
	return out, err
}

// Revoke deletes the record for clientID.
func (s *TrustStore) Revoke(clientID domain.ClientID) error {
	s.Lock()
	defer s.Unlock()
	return s.db.Update(func(tx *bolt.Tx) error {
		bkt := tx.Bucket([]byte(trustedKeysBucket))
		if bkt.Get([]byte(clientID)) == nil {
			return ErrNotTrusted
		}
		return bkt.Delete([]byte(clientID))
	})
}

// Compile-time assertion that TrustStore implements domain.TrustStore.
var _ domain.TrustStore = (*TrustStore)(nil)
