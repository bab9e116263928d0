package server

import (
	"crypto/rand"
	"net/http"

	"github.com/golang-jwt/jwt/v5"
	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"

	"synctrust/internal/crypto"
	"synctrust/internal/domain"
	"synctrust/internal/domain/types"
)

const (
	nonceSize = 32
	userKey   = "user"
	callerKey = "caller"
)

type clientClaims struct {
	ClientID   domain.ClientID   `json:"cid"`
	InstanceID domain.InstanceID `json:"iid"`
	jwt.RegisteredClaims
}

func (s *Server) postChallenge(c echo.Context) error {
	var req types.ChallengeRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	ep := req.Endpoint
	if ep.ClientID == "" || ep.InstanceID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "endpoint must name client and instance")
	}
	if req.PublicKeyInfo.ClientID != ep.ClientID {
		return echo.NewHTTPError(http.StatusBadRequest, "public key belongs to another client")
	}
	if _, _, err := domain.SplitPublicKey(req.PublicKeyInfo.PublicKey); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid public key")
	}

	nonce := make([]byte, nonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to generate challenge")
	}
	ep.IPAddress = c.RealIP()
	expires := s.now().Add(s.cfg.Server.ChallengeTTL())

	s.state.Lock()
	if cl := s.state.clients[ep.InstanceID]; cl != nil && cl.endpoint.ClientID != ep.ClientID {
		s.state.Unlock()
		return echo.NewHTTPError(http.StatusConflict, "instance id is taken")
	}
	s.state.challenges[ep.InstanceID] = &challenge{
		endpoint:  ep,
		keyInfo:   req.PublicKeyInfo,
		nonce:     nonce,
		expiresAt: expires,
	}
	s.state.Unlock()

	return c.JSON(http.StatusOK, types.ChallengeResponse{Nonce: nonce, ExpiresAt: expires})
}

func (s *Server) postLogin(c echo.Context) error {
	var req types.LoginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	s.state.Lock()
	ch := s.state.challenges[req.InstanceID]
	delete(s.state.challenges, req.InstanceID)
	s.state.Unlock()
	if ch == nil || s.now().After(ch.expiresAt) {
		return echo.NewHTTPError(http.StatusUnauthorized, "no pending challenge")
	}
	ok, err := crypto.VerifySignature(ch.keyInfo.PublicKey, crypto.LoginMessage(ch.nonce, req.InstanceID), req.Signature)
	if err != nil || !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "challenge failed")
	}

	s.state.Lock()
	// Client records are immutable; a new login replaces the record and
	// keeps the queue.
	q := newQueue(s.cfg.Server.QueueLimit, s.metrics.dropped.Inc)
	if prev := s.state.clients[req.InstanceID]; prev != nil {
		q = prev.queue
	}
	s.state.clients[req.InstanceID] = &client{endpoint: ch.endpoint, keyInfo: ch.keyInfo, queue: q}
	s.metrics.clients.Set(float64(len(s.state.clients)))
	s.state.Unlock()

	now := s.now()
	expires := now.Add(s.cfg.Server.TokenTTL())
	claims := &clientClaims{
		ClientID:   ch.endpoint.ClientID,
		InstanceID: ch.endpoint.InstanceID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodES256, claims).SignedString(s.signingKey)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to sign token")
	}
	s.log.Infof("Client %s instance %s logged in from %s", ch.endpoint.ClientID, ch.endpoint.InstanceID, ch.endpoint.IPAddress)
	return c.JSON(http.StatusOK, types.LoginResponse{Token: token, ExpiresAt: expires, Endpoint: ch.endpoint})
}

// requireAuth validates the bearer token and resolves the caller.
func (s *Server) requireAuth() echo.MiddlewareFunc {
	verify := echojwt.WithConfig(echojwt.Config{
		SigningKey:    &s.signingKey.PublicKey,
		SigningMethod: "ES256",
		ContextKey:    userKey,
		NewClaimsFunc: func(echo.Context) jwt.Claims { return new(clientClaims) },
	})
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return verify(func(c echo.Context) error {
			token, ok := c.Get(userKey).(*jwt.Token)
			if !ok {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing token")
			}
			claims, ok := token.Claims.(*clientClaims)
			if !ok {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid claims")
			}
			cl := s.state.client(claims.InstanceID)
			if cl == nil || cl.endpoint.ClientID != claims.ClientID {
				return echo.NewHTTPError(http.StatusUnauthorized, "unknown client")
			}
			c.Set(callerKey, cl)
			return next(c)
		})
	}
}

func caller(c echo.Context) *client {
	return c.Get(callerKey).(*client)
}
