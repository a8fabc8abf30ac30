package cmd

import (
	"github.com/spf13/cobra"
)

func newCardsCommand() *cobra.Command {
	c := &cobra.Command{
		Use:     "cards [address]",
		Short:   "List the cards stored for an address, oldest first.",
		Long:    "List the cards stored for an address, oldest first. Without an address the connected wallet account is used.",
		Example: "gacha cards 0x7E5F4552091A69125d5DfCb7b8C2659029395Bdf --format json",
		Args:    cobra.MaximumNArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			format, _ := c.Flags().GetString(FlagFormat)
			if err := validFormat(format); err != nil {
				return err
			}

			ctx := newContext()

			app, err := loadApp(ctx)
			if err != nil {
				return err
			}
			defer app.Close(ctx)

			var identity string
			if len(args) > 0 {
				identity = args[0]
			} else {
				identity, err = app.Reconciler.Connect(ctx)
				if err != nil {
					return err
				}
			}

			records, err := app.Reconciler.ListOutcomes(ctx, identity)
			if err != nil {
				return err
			}

			return renderCards(c.OutOrStdout(), records, format)
		},
	}

	c.Flags().String(FlagFormat, FormatText, "Output format: text, json or yaml")
	return c
}
