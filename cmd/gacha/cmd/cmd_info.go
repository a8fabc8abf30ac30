package cmd

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func newInfoCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Print the contract and network the CLI is configured for.",
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, args []string) error {
			ctx := newContext()

			app, err := loadApp(ctx)
			if err != nil {
				return err
			}
			defer app.Close(ctx)

			chainID, err := app.ChainID(ctx)
			if err != nil {
				return errors.Wrap(err, "chain id")
			}

			w := c.OutOrStdout()
			fmt.Fprintf(w, "Contract       : %s\n", app.Config.Gacha.ContractAddress)
			fmt.Fprintf(w, "Network        : %s\n", app.Config.Gacha.Network)
			fmt.Fprintf(w, "Required chain : %d\n", app.Config.RequiredChainID())
			fmt.Fprintf(w, "Ledger chain   : %s\n", chainID)

			if app.Contract == nil {
				fmt.Fprintf(w, "Ledger         : simulated\n")
				return nil
			}

			name, err := app.Contract.Name(ctx)
			if err != nil {
				return errors.Wrap(err, "name")
			}
			symbol, err := app.Contract.Symbol(ctx)
			if err != nil {
				return errors.Wrap(err, "symbol")
			}

			fmt.Fprintf(w, "Name           : %s\n", name)
			fmt.Fprintf(w, "Symbol         : %s\n", symbol)
			return nil
		},
	}
}
