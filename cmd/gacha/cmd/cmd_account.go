package cmd

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

const (
	FlagExport   = "export"
	FlagPassword = "password"
)

func newAccountCommand() *cobra.Command {
	c := &cobra.Command{
		Use:     "account",
		Short:   "Connect the configured wallet and print its address.",
		Example: "GACHA_PRIV_KEY=... gacha account --export ./key.json --password secret",
		Args:    cobra.NoArgs,
		RunE: func(c *cobra.Command, args []string) error {
			ctx := newContext()

			app, err := loadApp(ctx)
			if err != nil {
				return err
			}
			defer app.Close(ctx)

			account, err := app.Reconciler.Connect(ctx)
			if err != nil {
				return err
			}

			fmt.Fprintf(c.OutOrStdout(), "Account : %s\n", account)

			exportPath, _ := c.Flags().GetString(FlagExport)
			if len(exportPath) == 0 {
				return nil
			}

			password, _ := c.Flags().GetString(FlagPassword)
			if err := app.Wallet.Export(common.HexToAddress(account), exportPath,
				password); err != nil {
				return errors.Wrap(err, "export key")
			}

			fmt.Fprintf(c.OutOrStdout(), "Key file : %s\n", exportPath)
			return nil
		},
	}

	c.Flags().String(FlagExport, "", "Write the account key to an encrypted key file")
	c.Flags().String(FlagPassword, "", "Password for the exported key file")
	return c
}
