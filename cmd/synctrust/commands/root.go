package commands

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"synctrust/internal/app"
	"synctrust/internal/config"
	"synctrust/internal/domain"
)

const defaultRelayURL = "http://127.0.0.1:8080"

var (
	home       string
	configFile string
	passphrase string
	relayURL   string
	protoVer   int

	wire *app.Wire
)

func Execute() error {
	root := &cobra.Command{
		Use:          "synctrust",
		Short:        "Establish trust with the members of an encrypted sync session",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if home == "" {
				dir, err := os.UserHomeDir()
				if err != nil {
					return err
				}
				home = filepath.Join(dir, ".synctrust")
			}
			if err := os.MkdirAll(home, 0o700); err != nil {
				return err
			}

			cfg, err := loadClientConfig()
			if err != nil {
				return err
			}
			backend, err := cfg.Logging.NewBackend()
			if err != nil {
				return err
			}
			wire, err = app.NewWire(app.Config{
				Home:            home,
				Client:          cfg,
				Log:             backend,
				Confirmer:       newTerminalConfirmer(os.Stdin, os.Stdout),
				ProtocolVersion: domain.ProtocolVersion(protoVer),
			})
			return err
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if wire == nil {
				return nil
			}
			err := wire.Close()
			_ = wire.Config.Log.Close()
			return err
		},
	}

	root.PersistentFlags().StringVar(&home, "home", "", "state dir (default ~/.synctrust)")
	root.PersistentFlags().StringVarP(&configFile, "config", "c", "", "client config file (default <home>/client.toml)")
	root.PersistentFlags().StringVarP(&passphrase, "passphrase", "p", "", "passphrase protecting the identity")
	root.PersistentFlags().StringVar(&relayURL, "relay", "", "relay base URL, overrides the config file")
	root.PersistentFlags().IntVar(&protoVer, "protocol-version", 0, "announce another protocol version")
	_ = root.PersistentFlags().MarkHidden("protocol-version")

	root.AddCommand(initCmd(), fingerprintCmd(), createCmd(), joinCmd(), trustedCmd())
	return root.Execute()
}

// loadClientConfig reads the config file, if any, and applies the flag
// overrides.
func loadClientConfig() (*config.Client, error) {
	path := configFile
	if path == "" {
		path = filepath.Join(home, "client.toml")
	}
	cfg, err := config.LoadClientFile(path)
	switch {
	case err == nil:
	case errors.Is(err, fs.ErrNotExist) && configFile == "":
		cfg = &config.Client{Relay: &config.Relay{URL: defaultRelayURL}}
	default:
		return nil, fmt.Errorf("loading %s: %w", path, err)
	}
	if relayURL != "" {
		cfg.Relay.URL = relayURL
	}
	if err := cfg.FixupAndValidate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func requirePassphrase() error {
	if passphrase == "" {
		return fmt.Errorf("passphrase required (-p)")
	}
	return nil
}
