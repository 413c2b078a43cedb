package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dukerupert/timebank/internal/push"
)

func init() {
	rootCmd.AddCommand(vapidCmd)
}

var vapidCmd = &cobra.Command{
	Use:   "vapid-keys",
	Short: "Generate a VAPID key pair for web push",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		pub, priv, err := push.GenerateVAPIDKeys()
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "PUSH_VAPID_PUBLIC_KEY=%s\n", pub)
		fmt.Fprintf(out, "PUSH_VAPID_PRIVATE_KEY=%s\n", priv)
		return nil
	},
}
