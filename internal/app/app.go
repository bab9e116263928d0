package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"synctrust/internal/domain"
	"synctrust/internal/events"
	"synctrust/internal/relay"
	"synctrust/internal/services/connection"
	"synctrust/internal/services/session"
	"synctrust/internal/services/signature"
	"synctrust/internal/services/trust"
)

// App is a logged-in client instance.
type App struct {
	Party       domain.LocalParty
	Bus         *events.Bus
	Poller      *relay.Poller
	Connections *connection.Store
	Trust       *trust.Service
	Signatures  *signature.Service
	Sessions    *session.Service

	wire *Wire
}

// Start logs in to the relay as id, with a fresh instance id, and starts
// listening for events.
func Start(ctx context.Context, w *Wire, id domain.Identity) (*App, error) {
	cfg := w.Config
	if cfg.Confirmer == nil {
		return nil, errors.New("app: no confirmer")
	}
	proto := cfg.Client.Protocol

	party := domain.LocalParty{
		Endpoint: domain.ClientEndpoint{
			ClientID:   id.ClientID,
			InstanceID: domain.InstanceID(uuid.NewString()),
			Platform:   cfg.Client.Platform,
		},
		Identity: id,
		Version:  cfg.ProtocolVersion,
	}
	if err := w.Relay.Authenticate(ctx, party); err != nil {
		return nil, fmt.Errorf("app: relay login: %w", err)
	}
	party.Endpoint = w.Relay.Endpoint()

	bus := events.NewBus()
	trustSvc := trust.New(party, w.Relay, w.Trust, cfg.Confirmer, bus, cfg.Log.GetLogger("trust"), trust.Timing{
		WaitTimeSpan:  proto.WaitTimeSpan(),
		PeerTrustWait: proto.PeerTrustWait(),
	})
	sigSvc, err := signature.New(party, w.Relay, w.Trust, bus, cfg.Log.GetLogger("signature"))
	if err != nil {
		trustSvc.Close()
		return nil, err
	}
	conns := connection.NewStore()
	sessionSvc := session.New(party, w.Relay, trustSvc, sigSvc, w.Trust, conns, bus, cfg.Log.GetLogger("session"), session.Timing{
		WaitTimeSpan:       proto.WaitTimeSpan(),
		FinalizeRetries:    proto.FinalizeRetries,
		FinalizeRetryDelay: proto.FinalizeRetryDelay(),
	})

	poller := relay.NewPoller(w.Relay, bus, cfg.Log.GetLogger("poller"), cfg.Client.Relay.PollWait())
	poller.Start()

	return &App{
		Party:       party,
		Bus:         bus,
		Poller:      poller,
		Connections: conns,
		Trust:       trustSvc,
		Signatures:  sigSvc,
		Sessions:    sessionSvc,
		wire:        w,
	}, nil
}

// Close leaves every joined session and stops the services.
func (a *App) Close(ctx context.Context) {
	for _, id := range a.Connections.Sessions() {
		_ = a.Sessions.QuitSession(ctx, id)
	}
	a.Poller.Halt()
	a.Sessions.Close()
	a.Signatures.Close()
	a.Trust.Close()
}
