package app

import (
	"net/http"

	"synctrust/internal/config"
	"synctrust/internal/domain"
	"synctrust/internal/log"
)

// Config holds runtime wiring options for building the app.
type Config struct {
	Home      string           // state directory, e.g. $HOME/.synctrust
	Client    *config.Client   // validated client configuration
	HTTP      *http.Client     // optional; defaults to http.DefaultClient
	Log       *log.Backend     // log backend for every component
	Confirmer domain.Confirmer // asks the user to compare safety words

	// ProtocolVersion overrides the version announced to peers; zero
	// speaks domain.CurrentProtocolVersion.
	ProtocolVersion domain.ProtocolVersion
}
