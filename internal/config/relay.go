package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

const (
	defaultAddress         = "127.0.0.1:8080"
	defaultBodyLimit       = "64K"
	defaultTokenTTLSec     = 3600
	defaultChallengeTTLSec = 60
	defaultQueueLimit      = 1024
	defaultMaxPollWaitSec  = 30
)

// Server is the relay listener configuration.
type Server struct {
	// Address is the host:port the relay listens on.
	Address string

	// BodyLimit caps request bodies, in echo's size notation (e.g. "64K").
	BodyLimit string

	// TokenTTLSec is the lifetime of a login token.
	TokenTTLSec int

	// ChallengeTTLSec is the lifetime of an unanswered login challenge.
	ChallengeTTLSec int

	// QueueLimit is the maximum number of unacknowledged events kept per
	// client instance. Older events are dropped first.
	QueueLimit int

	// MaxPollWaitSec caps how long an event long-poll may block.
	MaxPollWaitSec int
}

func (s *Server) validate() error {
	if s.Address == "" {
		s.Address = defaultAddress
	}
	if s.BodyLimit == "" {
		s.BodyLimit = defaultBodyLimit
	}
	if s.TokenTTLSec < 0 || s.ChallengeTTLSec < 0 || s.QueueLimit < 0 || s.MaxPollWaitSec < 0 {
		return errors.New("config: Server: values must not be negative")
	}
	if s.TokenTTLSec == 0 {
		s.TokenTTLSec = defaultTokenTTLSec
	}
	if s.ChallengeTTLSec == 0 {
		s.ChallengeTTLSec = defaultChallengeTTLSec
	}
	if s.QueueLimit == 0 {
		s.QueueLimit = defaultQueueLimit
	}
	if s.MaxPollWaitSec == 0 {
		s.MaxPollWaitSec = defaultMaxPollWaitSec
	}
	return nil
}

func (s *Server) TokenTTL() time.Duration { return time.Duration(s.TokenTTLSec) * time.Second }

func (s *Server) ChallengeTTL() time.Duration {
	return time.Duration(s.ChallengeTTLSec) * time.Second
}

func (s *Server) MaxPollWait() time.Duration {
	return time.Duration(s.MaxPollWaitSec) * time.Second
}

// Metrics controls the Prometheus endpoint.
type Metrics struct {
	// Disable removes the /metrics route.
	Disable bool
}

// RelayServer is the relay configuration.
type RelayServer struct {
	Server  *Server
	Metrics *Metrics
	Logging *Logging
}

// FixupAndValidate applies defaults and validates the configuration.
func (c *RelayServer) FixupAndValidate() error {
	if c.Server == nil {
		c.Server = new(Server)
	}
	if c.Metrics == nil {
		c.Metrics = new(Metrics)
	}
	if c.Logging == nil {
		c.Logging = new(Logging)
	}
	if err := c.Server.validate(); err != nil {
		return err
	}
	return c.Logging.validate()
}

// LoadRelay parses and validates the provided buffer b as a relay config
// file body.
func LoadRelay(b []byte) (*RelayServer, error) {
	cfg := new(RelayServer)
	md, err := toml.Decode(string(b), cfg)
	if err != nil {
		return nil, err
	}
	if undecoded := md.Undecoded(); len(undecoded) != 0 {
		return nil, fmt.Errorf("config: Undecoded keys in config file: %v", undecoded)
	}
	if err := cfg.FixupAndValidate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadRelayFile loads, parses, and validates the provided file.
func LoadRelayFile(f string) (*RelayServer, error) {
	b, err := os.ReadFile(f)
	if err != nil {
		return nil, err
	}
	return LoadRelay(b)
}
