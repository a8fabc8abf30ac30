package cmd

import (
	"github.com/tokenized/gacha/internal/platform/config"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func newConfigCommand() *cobra.Command {
	c := &cobra.Command{
		Use:   "config",
		Short: "Print the configuration with secrets masked.",
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, args []string) error {
			format, _ := c.Flags().GetString(FlagFormat)

			ctx := newContext()

			cfg, err := loadConfig(ctx)
			if err != nil {
				return err
			}

			safe := config.SafeConfig(*cfg)
			switch format {
			case FormatYAML:
				return renderYAML(c.OutOrStdout(), safe)
			case FormatJSON:
				return renderJSON(c.OutOrStdout(), safe)
			}
			return errors.Errorf("Unsupported config format %q", format)
		},
	}

	c.Flags().String(FlagFormat, FormatJSON, "Output format: json or yaml")
	return c
}
