package identity

import (
	"fmt"
	"unicode"

	"github.com/google/uuid"

	"synctrust/internal/crypto"
	"synctrust/internal/domain"
)

const minPassphraseLength = 12

// ErrWeakPassphrase is returned when the passphrase fails the strength policy.
var ErrWeakPassphrase = fmt.Errorf(
	"passphrase is too weak (at least %d characters mixing upper and lower case, digits and symbols)",
	minPassphraseLength,
)

// Service generates and loads the identity kept by a domain.IdentityStore.
//
// An identity is a random client id plus two key pairs: X25519 for the
// sealed boxes carrying the session password and key, and Ed25519 for relay
// login and cross-verification signatures. Peers trust the client id and
// the concatenated public halves together.
type Service struct {
	store domain.IdentityStore
}

func New(s domain.IdentityStore) *Service { return &Service{store: s} }

// GenerateIdentity creates a fresh identity sealed with passphrase and
// returns it with its fingerprint. Any saved identity is replaced, and with
// it every trust relationship other clients hold for the old client id.
func (s *Service) GenerateIdentity(passphrase string) (domain.Identity, domain.Fingerprint, error) {
	if err := checkPassphrase(passphrase); err != nil {
		return domain.Identity{}, "", err
	}
	id, err := newIdentity()
	if err != nil {
		return domain.Identity{}, "", err
	}
	if err := s.store.SaveIdentity(passphrase, id); err != nil {
		return domain.Identity{}, "", err
	}
	return id, Fingerprint(id), nil
}

func newIdentity() (domain.Identity, error) {
	xPriv, xPub, err := crypto.GenerateX25519()
	if err != nil {
		return domain.Identity{}, err
	}
	edPriv, edPub, err := crypto.GenerateEd25519()
	if err != nil {
		return domain.Identity{}, err
	}
	return domain.Identity{
		ClientID: domain.ClientID(uuid.NewString()),
		XPub:     xPub,
		XPriv:    xPriv,
		EdPub:    edPub,
		EdPriv:   edPriv,
	}, nil
}

func (s *Service) LoadIdentity(passphrase string) (domain.Identity, error) {
	return s.store.LoadIdentity(passphrase)
}

func (s *Service) FingerprintIdentity(passphrase string) (domain.Fingerprint, error) {
	id, err := s.store.LoadIdentity(passphrase)
	if err != nil {
		return "", err
	}
	return Fingerprint(id), nil
}

// Fingerprint is the fingerprint peers see for id.
func Fingerprint(id domain.Identity) domain.Fingerprint {
	return crypto.Fingerprint(domain.JoinPublicKey(id.XPub, id.EdPub))
}

func checkPassphrase(p string) error {
	if len([]rune(p)) < minPassphraseLength {
		return ErrWeakPassphrase
	}
	var classes [4]bool
	for _, r := range p {
		switch {
		case unicode.IsUpper(r):
			classes[0] = true
		case unicode.IsLower(r):
			classes[1] = true
		case unicode.IsDigit(r):
			classes[2] = true
		case unicode.IsPunct(r), unicode.IsSymbol(r):
			classes[3] = true
		}
	}
	for _, ok := range classes {
		if !ok {
			return ErrWeakPassphrase
		}
	}
	return nil
}

var _ domain.IdentityService = (*Service)(nil)
