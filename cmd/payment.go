package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"
)

var paymentCmd = &cobra.Command{
	Use:   "payment",
	Short: "Payment operations",
	Long:  `Inspect and cancel payments from the command line`,
}

var paymentStatusCmd = &cobra.Command{
	Use:   "status [payment-id]",
	Short: "Show a payment with its status history",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid payment id %q", args[0])
		}

		deps, err := initializeDependencies()
		if err != nil {
			return err
		}
		defer deps.Close()

		ctx := context.Background()
		if refreshFirst {
			if _, err := deps.Payments.Refresh(ctx, id); err != nil {
				return err
			}
		}

		status, err := deps.Payments.PaymentStatus(ctx, id)
		if err != nil {
			return err
		}
		return printJSON(status)
	},
}

var paymentCancelCmd = &cobra.Command{
	Use:   "cancel [payment-id]",
	Short: "Cancel or refund a payment at the gateway",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid payment id %q", args[0])
		}
		var partial *int64
		if cancelAmount > 0 {
			partial = &cancelAmount
		}

		deps, err := initializeDependencies()
		if err != nil {
			return err
		}
		defer deps.Close()

		result, err := deps.Payments.Cancel(context.Background(), id, partial)
		if err != nil {
			return err
		}
		return printJSON(result)
	},
}

var (
	refreshFirst bool
	cancelAmount int64
)

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func init() {
	paymentStatusCmd.Flags().BoolVar(&refreshFirst, "refresh", false, "ask the gateway for the current state first")
	paymentCancelCmd.Flags().Int64Var(&cancelAmount, "amount", 0, "partial refund in minor units (default: full amount)")

	paymentCmd.AddCommand(paymentStatusCmd)
	paymentCmd.AddCommand(paymentCancelCmd)

	rootCmd.AddCommand(paymentCmd)
}
