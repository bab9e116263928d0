package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"runtime"
	"time"

	"github.com/BurntSushi/toml"
)

const (
	defaultPollWaitSec          = 25
	defaultWaitTimeSpanMs       = 60_000
	defaultPeerTrustWaitMs      = 60_000
	defaultFinalizeRetries      = 5
	defaultFinalizeRetryDelayMs = 1_000
)

// Relay is how the client reaches the relay.
type Relay struct {
	// URL is the relay base URL, e.g. http://127.0.0.1:8080.
	URL string

	// PollWaitSec is how long one event long-poll may block on the relay.
	PollWaitSec int
}

func (r *Relay) validate() error {
	if r.URL == "" {
		return errors.New("config: Relay: URL is not set")
	}
	u, err := url.Parse(r.URL)
	if err != nil {
		return fmt.Errorf("config: Relay: URL '%v' is invalid: %w", r.URL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("config: Relay: URL '%v' must be http or https", r.URL)
	}
	if r.PollWaitSec <= 0 {
		r.PollWaitSec = defaultPollWaitSec
	}
	return nil
}

// PollWait returns PollWaitSec as a duration.
func (r *Relay) PollWait() time.Duration { return time.Duration(r.PollWaitSec) * time.Second }

// Protocol holds the timing of the join protocol. All values are in
// milliseconds.
type Protocol struct {
	// WaitTimeSpanMs bounds every wait on a relayed answer.
	WaitTimeSpanMs int

	// PeerTrustWaitMs bounds the wait for the other side's decision once
	// ours is recorded.
	PeerTrustWaitMs int

	// FinalizeRetries is how many times finalization is attempted while
	// the relay answers AuthIsNotChecked.
	FinalizeRetries int

	// FinalizeRetryDelayMs is the pause between finalization attempts.
	FinalizeRetryDelayMs int
}

func (p *Protocol) validate() error {
	if p.WaitTimeSpanMs < 0 || p.PeerTrustWaitMs < 0 || p.FinalizeRetries < 0 || p.FinalizeRetryDelayMs < 0 {
		return errors.New("config: Protocol: values must not be negative")
	}
	if p.WaitTimeSpanMs == 0 {
		p.WaitTimeSpanMs = defaultWaitTimeSpanMs
	}
	if p.PeerTrustWaitMs == 0 {
		p.PeerTrustWaitMs = defaultPeerTrustWaitMs
	}
	if p.FinalizeRetries == 0 {
		p.FinalizeRetries = defaultFinalizeRetries
	}
	if p.FinalizeRetryDelayMs == 0 {
		p.FinalizeRetryDelayMs = defaultFinalizeRetryDelayMs
	}
	return nil
}

func (p *Protocol) WaitTimeSpan() time.Duration {
	return time.Duration(p.WaitTimeSpanMs) * time.Millisecond
}

func (p *Protocol) PeerTrustWait() time.Duration {
	return time.Duration(p.PeerTrustWaitMs) * time.Millisecond
}

func (p *Protocol) FinalizeRetryDelay() time.Duration {
	return time.Duration(p.FinalizeRetryDelayMs) * time.Millisecond
}

// Client is the client configuration.
type Client struct {
	// Platform is announced to the relay as part of the endpoint.
	Platform string

	Relay    *Relay
	Protocol *Protocol
	Logging  *Logging
}

// FixupAndValidate applies defaults and validates the configuration.
func (c *Client) FixupAndValidate() error {
	if c.Platform == "" {
		c.Platform = runtime.GOOS
	}
	if c.Relay == nil {
		return errors.New("config: No Relay block was present")
	}
	if c.Protocol == nil {
		c.Protocol = new(Protocol)
	}
	if c.Logging == nil {
		c.Logging = new(Logging)
	}
	if err := c.Relay.validate(); err != nil {
		return err
	}
	if err := c.Protocol.validate(); err != nil {
		return err
	}
	return c.Logging.validate()
}

// LoadClient parses and validates the provided buffer b as a client config
// file body and returns the Client.
func LoadClient(b []byte) (*Client, error) {
	cfg := new(Client)
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

// LoadClientFile loads, parses, and validates the provided file.
func LoadClientFile(f string) (*Client, error) {
	b, err := os.ReadFile(f)
	if err != nil {
		return nil, err
	}
	return LoadClient(b)
}
