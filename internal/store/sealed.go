package store

import (
	"crypto/rand"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fxamacker/cbor/v2"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/scrypt"

	"synctrust/internal/util/memzero"
)

const sealedFormatVersion = 2

// ErrWrongPassphrase is returned when the passphrase is incorrect or the
// sealed file was modified.
var ErrWrongPassphrase = errors.New("store: wrong passphrase or corrupted identity")

// kdf holds the scrypt cost parameters a file was sealed with.
type kdf struct {
	N int `cbor:"1,keyasint"`
	R int `cbor:"2,keyasint"`
	P int `cbor:"3,keyasint"`
}

var defaultKDF = kdf{N: 1 << 15, R: 8, P: 1}

// sealedHeader is authenticated as associated data, so neither the cost
// parameters nor the purpose can be swapped without the passphrase.
type sealedHeader struct {
	Version int    `cbor:"1,keyasint"`
	Purpose string `cbor:"2,keyasint"`
	KDF     kdf    `cbor:"3,keyasint"`
	Salt    []byte `cbor:"4,keyasint"`
	Nonce   []byte `cbor:"5,keyasint"`
}

type sealedFile struct {
	Header     sealedHeader `cbor:"1,keyasint"`
	Ciphertext []byte       `cbor:"2,keyasint"`
}

func deriveKey(passphrase string, salt []byte, p kdf) ([]byte, error) {
	return scrypt.Key([]byte(passphrase), salt, p.N, p.R, p.P, chacha20poly1305.KeySize)
}

// seal encrypts plaintext under a key derived from passphrase and returns
// the CBOR encoded file body.
func seal(purpose, passphrase string, plaintext []byte) ([]byte, error) {
	h := sealedHeader{
		Version: sealedFormatVersion,
		Purpose: purpose,
		KDF:     defaultKDF,
		Salt:    make([]byte, 16),
		Nonce:   make([]byte, chacha20poly1305.NonceSizeX),
	}
	if _, err := rand.Read(h.Salt); err != nil {
		return nil, err
	}
	if _, err := rand.Read(h.Nonce); err != nil {
		return nil, err
	}
	ad, err := cbor.Marshal(h)
	if err != nil {
		return nil, err
	}
	key, err := deriveKey(passphrase, h.Salt, h.KDF)
	if err != nil {
		return nil, err
	}
	defer memzero.Zero(key)
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, err
	}
	return cbor.Marshal(sealedFile{Header: h, Ciphertext: aead.Seal(nil, h.Nonce, plaintext, ad)})
}

// open reverses seal. A file sealed for another purpose does not open.
func open(purpose, passphrase string, b []byte) ([]byte, error) {
	var f sealedFile
	if err := cbor.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("store: malformed sealed file: %w", err)
	}
	h := f.Header
	if h.Version != sealedFormatVersion {
		return nil, fmt.Errorf("store: unsupported sealed file version %d", h.Version)
	}
	if h.Purpose != purpose {
		return nil, fmt.Errorf("store: sealed file holds %q, not %q", h.Purpose, purpose)
	}
	if len(h.Nonce) != chacha20poly1305.NonceSizeX {
		return nil, errors.New("store: malformed sealed file nonce")
	}
	ad, err := cbor.Marshal(h)
	if err != nil {
		return nil, err
	}
	key, err := deriveKey(passphrase, h.Salt, h.KDF)
	if err != nil {
		return nil, err
	}
	defer memzero.Zero(key)
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, err
	}
	pt, err := aead.Open(nil, h.Nonce, f.Ciphertext, ad)
	if err != nil {
		return nil, ErrWrongPassphrase
	}
	return pt, nil
}

// replaceFile writes b next to path and renames it into place.
func replaceFile(path string, b []byte, mode os.FileMode) (err error) {
	f, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = f.Close()
			_ = os.Remove(f.Name())
		}
	}()
	if _, err = f.Write(b); err != nil {
		return err
	}
	if err = f.Chmod(mode); err != nil {
		return err
	}
	if err = f.Sync(); err != nil {
		return err
	}
	if err = f.Close(); err != nil {
		return err
	}
	return os.Rename(f.Name(), path)
}
