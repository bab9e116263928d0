package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"synctrust/internal/config"
	"synctrust/internal/server"
)

const shutdownTimeout = 5 * time.Second

func main() {
	var (
		configFile string
		address    string
	)
	root := &cobra.Command{
		Use:          "relay",
		Short:        "Run the synctrust relay",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := new(config.RelayServer)
			if configFile != "" {
				var err error
				if cfg, err = config.LoadRelayFile(configFile); err != nil {
					return fmt.Errorf("loading %s: %w", configFile, err)
				}
			}
			if err := cfg.FixupAndValidate(); err != nil {
				return err
			}
			if address != "" {
				cfg.Server.Address = address
			}
			return run(cmd.Context(), cfg)
		},
	}
	root.Flags().StringVarP(&configFile, "config", "f", "", "relay config file")
	root.Flags().StringVar(&address, "address", "", "listen address, overrides the config file")

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.RelayServer) error {
	backend, err := cfg.Logging.NewBackend()
	if err != nil {
		return err
	}
	defer backend.Close()

	srv, err := server.New(cfg, backend)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case err := <-errCh:
		srv.Halt()
		return err
	case <-ctx.Done():
	}
	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		return err
	}
	return <-errCh
}
