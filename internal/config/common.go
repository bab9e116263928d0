package config

import (
	"fmt"
	"strings"

	"synctrust/internal/log"
)

const defaultLogLevel = "NOTICE"

// Logging is the logging configuration.
type Logging struct {
	// Disable disables logging entirely.
	Disable bool

	// File specifies the log file, if omitted stdout will be used.
	File string

	// Level specifies the log level.
	Level string
}

func (l *Logging) validate() error {
	if l.Level == "" {
		l.Level = defaultLogLevel
	}
	if !log.ValidLevel(l.Level) {
		return fmt.Errorf("config: Logging: Level '%v' is invalid", l.Level)
	}
	l.Level = strings.ToUpper(l.Level)
	return nil
}

// NewBackend builds the log backend described by l.
func (l *Logging) NewBackend() (*log.Backend, error) {
	return log.New(l.File, l.Level, l.Disable)
}
