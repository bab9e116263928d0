package commands

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"synctrust/internal/crypto"
	"synctrust/internal/domain"
)

func trustedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "trusted",
		Short: "Inspect the keys trusted so far",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List trusted keys",
			RunE: func(cmd *cobra.Command, args []string) error {
				recs, err := wire.Trust.List()
				if err != nil {
					return err
				}
				if len(recs) == 0 {
					fmt.Println("No trusted keys.")
					return nil
				}
				w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "CLIENT ID\tFINGERPRINT\tVALIDATED")
				for _, r := range recs {
					fmt.Fprintf(w, "%s\t%s\t%s\n", r.ClientID, crypto.ShortFingerprint(r.PublicKeyHash), r.ValidationDate.Local().Format("2006-01-02 15:04"))
				}
				return w.Flush()
			},
		},
		&cobra.Command{
			Use:   "revoke <client-id>",
			Short: "Forget the trusted key of a client",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				if err := wire.Trust.Revoke(domain.ClientID(args[0])); err != nil {
					return err
				}
				fmt.Printf("Revoked %s. The next session with it asks for safety words again.\n", args[0])
				return nil
			},
		},
	)
	return cmd
}
