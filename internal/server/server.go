package server

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"gopkg.in/op/go-logging.v1"

	"synctrust/internal/config"
	"synctrust/internal/domain"
	"synctrust/internal/events"
	"synctrust/internal/log"
	"synctrust/internal/util/worker"
)

const janitorInterval = 30 * time.Second

// Server is the relay.
type Server struct {
	worker.Worker

	cfg     *config.RelayServer
	log     *logging.Logger
	e       *echo.Echo
	state   *state
	metrics *metrics

	signingKey *ecdsa.PrivateKey
	now        func() time.Time
}

// New builds a relay from cfg. Call Start to listen, or mount Handler.
func New(cfg *config.RelayServer, backend *log.Backend) (*Server, error) {
	if cfg == nil {
		return nil, errors.New("server: nil config")
	}
	if err := cfg.FixupAndValidate(); err != nil {
		return nil, err
	}
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, err
	}

	s := &Server{
		cfg:        cfg,
		log:        backend.GetLogger("relay"),
		e:          echo.New(),
		state:      newState(),
		metrics:    newMetrics(),
		signingKey: key,
		now:        time.Now,
	}
	s.e.HideBanner = true
	s.e.HidePort = true

	accessLog, err := backend.GetLogWriter("http", "DEBUG")
	if err != nil {
		return nil, err
	}
	s.e.Use(middleware.Recover())
	s.e.Use(middleware.LoggerWithConfig(middleware.LoggerConfig{
		Format: "${remote_ip} ${method} ${uri} ${status} ${latency_human}\n",
		Output: accessLog,
	}))
	s.e.Use(middleware.BodyLimit(cfg.Server.BodyLimit))
	s.registerRoutes()

	s.Go(s.janitor)
	return s, nil
}

// Handler returns the relay's HTTP handler.
func (s *Server) Handler() http.Handler { return s.e }

// Start listens on the configured address until Shutdown.
func (s *Server) Start() error {
	s.log.Noticef("Listening on %s", s.cfg.Server.Address)
	err := s.e.Start(s.cfg.Server.Address)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown stops the listener and background work.
func (s *Server) Shutdown(ctx context.Context) error {
	s.Halt()
	return s.e.Shutdown(ctx)
}

func (s *Server) janitor() {
	t := time.NewTicker(janitorInterval)
	defer t.Stop()
	for {
		select {
		case <-s.HaltCh():
			return
		case <-t.C:
			if n := s.state.expireChallenges(s.now()); n > 0 {
				s.log.Debugf("Expired %d login challenges", n)
			}
		}
	}
}

// push queues an event for one client instance. Unknown instances are
// skipped; they have no queue to deliver to.
func (s *Server) push(to domain.InstanceID, kind domain.EventKind, sessionID domain.SessionID, ev any) {
	cl := s.state.client(to)
	if cl == nil {
		s.log.Warningf("Dropping %s for unknown instance %s", kind, to)
		return
	}
	env, err := events.Encode(kind, sessionID, ev)
	if err != nil {
		s.log.Errorf("Failed to encode %s: %v", kind, err)
		return
	}
	cl.queue.push(env)
	s.metrics.forwarded.WithLabelValues(string(kind)).Inc()
}
