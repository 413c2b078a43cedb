package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/dukerupert/timebank/internal/ledger"
)

func init() {
	rootCmd.AddCommand(reconcileCmd)
	reconcileCmd.Flags().StringP("user", "u", "", "reconcile one student by user ID")
}

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Recompute balances from approved activities",
	Long: `Recompute each student's balance as the signed sum of their approved
activities and overwrite the stored value where it drifted.`,
	Args: cobra.NoArgs,
	RunE: runReconcile,
}

func runReconcile(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	userID, _ := cmd.Flags().GetString("user")
	var results []ledger.ReconcileResult
	if userID != "" {
		res, err := a.Engine.Reconcile(cmd.Context(), userID)
		if err != nil {
			return err
		}
		results = append(results, res)
	} else {
		results, err = a.Engine.ReconcileAll(cmd.Context())
		if err != nil {
			return err
		}
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "USER\tSTORED\tCOMPUTED\tDRIFT\tACTIVITIES")
	for _, r := range results {
		fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%d\n", r.UserID, r.Stored, r.Computed, r.Drift, r.Activities)
	}
	return w.Flush()
}
