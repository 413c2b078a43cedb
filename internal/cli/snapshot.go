package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dukerupert/timebank/internal/archive"
)

func init() {
	rootCmd.AddCommand(snapshotCmd)
	rootCmd.AddCommand(fetchCmd)
	fetchCmd.Flags().StringP("out", "o", "", "write the decrypted object to this file instead of stdout")
}

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Upload an encrypted database snapshot to archive storage",
	Args:  cobra.NoArgs,
	RunE:  runSnapshot,
}

func runSnapshot(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()
	if a.Archiver == nil {
		return archive.ErrNotConfigured
	}

	key, err := a.Archiver.Snapshot(cmd.Context(), a.DB)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), key)
	return nil
}

var fetchCmd = &cobra.Command{
	Use:   "fetch KEY",
	Short: "Download and decrypt an archived account or snapshot",
	Args:  cobra.ExactArgs(1),
	RunE:  runFetch,
}

func runFetch(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()
	if a.Archiver == nil {
		return archive.ErrNotConfigured
	}

	data, err := a.Archiver.Fetch(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	if out, _ := cmd.Flags().GetString("out"); out != "" {
		return os.WriteFile(out, data, 0600)
	}
	_, err = cmd.OutOrStdout().Write(data)
	return err
}
