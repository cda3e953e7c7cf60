package main

import (
	"os"

	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "tipjar",
		Short: "Gasless tipping relay for the Mantle TipJar escrow",
		Long: `Relays fan-signed EIP-712 tip authorizations to the TipJar escrow contract,
paying gas with the relayer key.

Running without a subcommand starts the HTTP relay.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(nonceCmd())
	rootCmd.AddCommand(balanceCmd())
	rootCmd.AddCommand(signCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
