package relay

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"synctrust/internal/crypto"
	"synctrust/internal/domain"
	"synctrust/internal/domain/types"
)

// ErrNotAuthenticated is returned by protocol calls made before
// Authenticate succeeded.
var ErrNotAuthenticated = errors.New("relay: not authenticated")

// Client talks to one relay over HTTP.
type Client struct {
	base string
	http *http.Client

	mu       sync.RWMutex
	bearer   string
	endpoint domain.ClientEndpoint
}

// New returns a client for the relay at base, e.g. http://127.0.0.1:8080.
// A nil hc uses http.DefaultClient.
func New(base string, hc *http.Client) *Client {
	if hc == nil {
		hc = http.DefaultClient
	}
	return &Client{base: strings.TrimRight(base, "/"), http: hc}
}

var _ domain.RelayClient = (*Client)(nil)

func (c *Client) token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.bearer
}

// Endpoint returns the endpoint the relay registered for us, including the
// address it saw us connect from.
func (c *Client) Endpoint() domain.ClientEndpoint {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.endpoint
}

// Authenticate proves possession of the party's signing key and stores the
// bearer token for later calls.
func (c *Client) Authenticate(ctx context.Context, party domain.LocalParty) error {
	var ch types.ChallengeResponse
	err := c.post(ctx, "/auth/challenge", types.ChallengeRequest{
		Endpoint:      party.Endpoint,
		PublicKeyInfo: party.PublicKeyInfo(),
	}, &ch)
	if err != nil {
		return err
	}

	var login types.LoginResponse
	err = c.post(ctx, "/auth/login", types.LoginRequest{
		InstanceID: party.Endpoint.InstanceID,
		Signature:  crypto.Sign(party.Identity, crypto.LoginMessage(ch.Nonce, party.Endpoint.InstanceID)),
	}, &login)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.bearer = login.Token
	c.endpoint = login.Endpoint
	c.mu.Unlock()
	return nil
}

func sessionPath(id domain.SessionID, suffix string) string {
	return "/sessions/" + url.PathEscape(string(id)) + suffix
}

func (c *Client) status(ctx context.Context, path string, in any) (domain.RelayStatus, error) {
	if c.token() == "" {
		return "", ErrNotAuthenticated
	}
	var out types.StatusResponse
	if err := c.post(ctx, path, in, &out); err != nil {
		return "", err
	}
	return out.Status, nil
}

func (c *Client) CreateSession(ctx context.Context, req types.CreateSessionRequest) (types.SessionResponse, error) {
	var out types.SessionResponse
	return out, c.post(ctx, "/sessions", req, &out)
}

func (c *Client) GetSession(ctx context.Context, id domain.SessionID) (types.SessionResponse, error) {
	var out types.SessionResponse
	return out, c.getJSON(ctx, sessionPath(id, ""), &out)
}

func (c *Client) QuitSession(ctx context.Context, id domain.SessionID) (domain.RelayStatus, error) {
	return c.status(ctx, sessionPath(id, "/quit"), struct{}{})
}

func (c *Client) StartTrustCheck(ctx context.Context, id domain.SessionID, req types.StartTrustCheckRequest) (types.StartTrustCheckResponse, error) {
	var out types.StartTrustCheckResponse
	return out, c.post(ctx, sessionPath(id, "/trust/start"), req, &out)
}

func (c *Client) GiveMemberPublicKeyCheckData(ctx context.Context, id domain.SessionID, req types.GiveMemberPublicKeyCheckDataRequest) (domain.RelayStatus, error) {
	return c.status(ctx, sessionPath(id, "/trust/check-data"), req)
}

func (c *Client) RequestTrustPublicKey(ctx context.Context, id domain.SessionID, req types.RequestTrustPublicKeyRequest) (domain.RelayStatus, error) {
	return c.status(ctx, sessionPath(id, "/trust/request"), req)
}

func (c *Client) InformPublicKeyValidationIsFinished(ctx context.Context, id domain.SessionID, req types.InformPublicKeyValidationIsFinishedRequest) (domain.RelayStatus, error) {
	return c.status(ctx, sessionPath(id, "/trust/finished"), req)
}

func (c *Client) InformProtocolVersionIncompatible(ctx context.Context, id domain.SessionID, req types.InformProtocolVersionIncompatibleRequest) (domain.RelayStatus, error) {
	return c.status(ctx, sessionPath(id, "/trust/incompatible"), req)
}

func (c *Client) SendDigitalSignatures(ctx context.Context, id domain.SessionID, req types.SendDigitalSignaturesRequest) (domain.RelayStatus, error) {
	return c.status(ctx, sessionPath(id, "/signatures"), req)
}

func (c *Client) AskPasswordExchangeKey(ctx context.Context, id domain.SessionID, req types.AskPasswordExchangeKeyRequest) (domain.RelayStatus, error) {
	return c.status(ctx, sessionPath(id, "/password-key/ask"), req)
}

func (c *Client) GivePasswordExchangeKey(ctx context.Context, id domain.SessionID, req types.GivePasswordExchangeKeyRequest) (domain.RelayStatus, error) {
	return c.status(ctx, sessionPath(id, "/password-key/give"), req)
}

func (c *Client) AskJoinCloudSession(ctx context.Context, id domain.SessionID, req types.AskJoinCloudSessionRequest) (domain.RelayStatus, error) {
	return c.status(ctx, sessionPath(id, "/join/ask"), req)
}

func (c *Client) ValidateJoinCloudSession(ctx context.Context, id domain.SessionID, req types.ValidateJoinCloudSessionRequest) (domain.RelayStatus, error) {
	return c.status(ctx, sessionPath(id, "/join/validate"), req)
}

func (c *Client) InformPasswordIsWrong(ctx context.Context, id domain.SessionID, req types.InformPasswordIsWrongRequest) (domain.RelayStatus, error) {
	return c.status(ctx, sessionPath(id, "/join/wrong-password"), req)
}

func (c *Client) FinalizeJoinCloudSession(ctx context.Context, id domain.SessionID) (types.SessionResponse, error) {
	var out types.SessionResponse
	return out, c.post(ctx, sessionPath(id, "/join/finalize"), struct{}{}, &out)
}

// FetchEvents returns the unacknowledged events queued for us, waiting up
// to wait for one to arrive.
func (c *Client) FetchEvents(ctx context.Context, wait time.Duration) ([]types.EventEnvelope, error) {
	path := "/events"
	if sec := int(wait / time.Second); sec > 0 {
		path += "?wait=" + strconv.Itoa(sec)
	}
	var out []types.EventEnvelope
	return out, c.getJSON(ctx, path, &out)
}

// AckEvents drops every queued event up to and including upTo.
func (c *Client) AckEvents(ctx context.Context, upTo uint64) error {
	return c.post(ctx, "/events/ack", types.AckEventsRequest{UpTo: upTo}, nil)
}
