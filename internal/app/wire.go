package app

import (
	"errors"
	"net/http"

	"synctrust/internal/relay"
	"synctrust/internal/services/identity"
	"synctrust/internal/store"
)

// Wire bundles the stores and clients that exist before an identity is
// loaded.
type Wire struct {
	Config   Config
	Identity *store.IdentityFileStore
	IDs      *identity.Service
	Trust    *store.TrustStore
	Relay    *relay.Client
	HTTP     *http.Client
}

// NewWire constructs the dependency graph from cfg.
func NewWire(cfg Config) (*Wire, error) {
	if cfg.Client == nil {
		return nil, errors.New("app: no client configuration")
	}
	if cfg.Log == nil {
		return nil, errors.New("app: no log backend")
	}

	identityStore := store.NewIdentityFileStore(cfg.Home)
	trustStore, err := store.OpenTrustStore(cfg.Home)
	if err != nil {
		return nil, err
	}

	httpClient := cfg.HTTP
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	return &Wire{
		Config:   cfg,
		Identity: identityStore,
		IDs:      identity.New(identityStore),
		Trust:    trustStore,
		Relay:    relay.New(cfg.Client.Relay.URL, httpClient),
		HTTP:     httpClient,
	}, nil
}

// Close releases the stores.
func (w *Wire) Close() error {
	return w.Trust.Close()
}
