package quota

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"transcribot/cmd/transcribot/cmd/settings"
	"transcribot/internal/app"
	"transcribot/internal/app/message"
)

var creditSeconds float64

// Cmd represents the quota command
var Cmd = &cobra.Command{
	Use:   "quota",
	Short: "Inspect or top up a user's transcription time",
}

var getCmd = &cobra.Command{
	Use:   "get <user>",
	Short: "Print a user's remaining transcription time",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := settings.Load(false)
		if err != nil {
			return err
		}
		ledger, cleanup, err := app.InitializeLedger(cmd.Context(), s)
		if err != nil {
			return err
		}
		defer cleanup()

		remaining, err := ledger.Balance(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		printBalance(cmd, args[0], remaining)
		return nil
	},
}

var creditCmd = &cobra.Command{
	Use:   "credit <user>",
	Short: "Add purchased transcription time to a user",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if creditSeconds <= 0 {
			return fmt.Errorf("--seconds must be positive")
		}
		s, err := settings.Load(false)
		if err != nil {
			return err
		}
		ledger, cleanup, err := app.InitializeLedger(cmd.Context(), s)
		if err != nil {
			return err
		}
		defer cleanup()

		remaining, err := ledger.Credit(cmd.Context(), args[0], decimal.NewFromFloat(creditSeconds))
		if err != nil {
			return err
		}
		printBalance(cmd, args[0], remaining)
		return nil
	},
}

func printBalance(cmd *cobra.Command, userID string, remaining decimal.Decimal) {
	fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s sec\t(%s)\n", userID, remaining.String(), message.RemainingTimeText(remaining))
}

func init() {
	creditCmd.Flags().Float64VarP(&creditSeconds, "seconds", "s", 0, "Seconds to add")
	creditCmd.MarkFlagRequired("seconds")

	Cmd.AddCommand(getCmd)
	Cmd.AddCommand(creditCmd)
}
