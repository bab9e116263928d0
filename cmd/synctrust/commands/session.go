package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"synctrust/internal/app"
	"synctrust/internal/crypto"
	"synctrust/internal/domain"
	"synctrust/internal/services/session"
)

const closeTimeout = 5 * time.Second

var sessionPassword string

// startApp logs in with the local identity. The returned context is
// cancelled on SIGINT or SIGTERM.
func startApp(cmd *cobra.Command) (context.Context, *app.App, func(), error) {
	if err := requirePassphrase(); err != nil {
		return nil, nil, nil, err
	}
	if sessionPassword == "" {
		return nil, nil, nil, fmt.Errorf("session password required (--password)")
	}
	id, err := wire.IDs.LoadIdentity(passphrase)
	if err != nil {
		return nil, nil, nil, err
	}
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	a, err := app.Start(ctx, wire, id)
	if err != nil {
		stop()
		return nil, nil, nil, err
	}
	done := func() {
		stop()
		cctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
		defer cancel()
		a.Close(cctx)
	}
	return ctx, a, done, nil
}

func printSession(info domain.SessionInfo, self domain.InstanceID) {
	fmt.Printf("Session %s (protocol v%d), %d member(s):\n", info.SessionID, info.ProtocolVersion, len(info.Members))
	for _, m := range info.Members {
		var tags []string
		if m.Endpoint.InstanceID == info.CreatorInstanceID {
			tags = append(tags, "creator")
		}
		if m.Endpoint.InstanceID == self {
			tags = append(tags, "you")
		}
		line := fmt.Sprintf("  %s  %s", m.Endpoint.ClientID, crypto.ShortFingerprint(crypto.Fingerprint(m.PublicKeyInfo.PublicKey)))
		if len(tags) > 0 {
			line += "  (" + strings.Join(tags, ", ") + ")"
		}
		fmt.Println(line)
	}
}

func stayConnected(ctx context.Context) {
	fmt.Println("Connected. Press Ctrl-C to leave the session.")
	<-ctx.Done()
}

func createCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a sync session and admit joiners until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, a, done, err := startApp(cmd)
			if err != nil {
				return err
			}
			defer done()

			info, err := a.Sessions.CreateSession(ctx, sessionPassword)
			if err != nil {
				return err
			}
			printSession(info, a.Party.Endpoint.InstanceID)
			stayConnected(ctx)
			return nil
		},
	}
	cmd.Flags().StringVar(&sessionPassword, "password", "", "session password joiners must present")
	return cmd
}

func joinCmd() *cobra.Command {
	var opts domain.JoinOptions
	cmd := &cobra.Command{
		Use:   "join <session-id>",
		Short: "Join a sync session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, a, done, err := startApp(cmd)
			if err != nil {
				return err
			}
			defer done()

			info, err := a.Sessions.JoinSession(ctx, domain.SessionID(args[0]), sessionPassword, opts)
			if err != nil {
				return fmt.Errorf("join failed (%s): %w", session.StatusOf(err), err)
			}
			printSession(info, a.Party.Endpoint.InstanceID)
			stayConnected(ctx)
			return nil
		},
	}
	cmd.Flags().StringVar(&sessionPassword, "password", "", "session password")
	cmd.Flags().StringVar(&opts.ProfileClientID, "profile", "", "profile client id forwarded to the validator")
	cmd.Flags().StringVar(&opts.LobbyID, "lobby", "", "lobby id forwarded to the validator")
	return cmd
}
