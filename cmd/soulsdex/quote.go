package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"soulsdex/internal/config"
	"soulsdex/internal/dex"
)

func runQuote(cmd *cobra.Command, _ []string) error {
	values := make(map[string]string, 3)
	for _, name := range []string{"reserve-in", "reserve-out", "amount-in"} {
		raw, _ := cmd.Flags().GetString(name)
		if raw == "" {
			return fmt.Errorf("--%s is required", name)
		}
		values[name] = raw
	}

	reserveIn, err := config.ParseAmount(values["reserve-in"])
	if err != nil {
		return fmt.Errorf("reserve-in: %w", err)
	}
	reserveOut, err := config.ParseAmount(values["reserve-out"])
	if err != nil {
		return fmt.Errorf("reserve-out: %w", err)
	}
	amountIn, err := config.ParseAmount(values["amount-in"])
	if err != nil {
		return fmt.Errorf("amount-in: %w", err)
	}

	out, err := dex.GetAmountOut(amountIn, reserveIn, reserveOut)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), out.Dec())
	return err
}
