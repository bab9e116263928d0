package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"synctrust/internal/crypto"
	"synctrust/internal/domain"
)

func fingerprintCmd() *cobra.Command {
	var showKey bool
	cmd := &cobra.Command{
		Use:   "fingerprint",
		Short: "Print identity fingerprint",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requirePassphrase(); err != nil {
				return err
			}
			id, err := wire.IDs.LoadIdentity(passphrase)
			if err != nil {
				return err
			}
			pub := domain.JoinPublicKey(id.XPub, id.EdPub)
			fmt.Printf("Client ID:   %s\nFingerprint: %s\n", id.ClientID, crypto.Fingerprint(pub))
			if showKey {
				fmt.Printf("Public key:  %s\n", crypto.KeyText(pub))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&showKey, "key", false, "also print the public key")
	return cmd
}
