package cmd

import (
	"context"

	"github.com/tokenized/gacha/cmd/gacha/bootstrap"

	"github.com/spf13/cobra"
)

const (
	FlagFormat = "format"
)

// Replaced by tests.
var (
	newContext = bootstrap.NewContextWithDevelopmentLogger
	loadConfig = bootstrap.NewConfigFromEnv
)

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "gacha",
		Short:         "Gacha CLI",
		Long:          "Pull collectible cards from the gacha contract and list the cards you own.",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	root.AddCommand(newAccountCommand())
	root.AddCommand(newPullCommand())
	root.AddCommand(newCardsCommand())
	root.AddCommand(newInfoCommand())
	root.AddCommand(newConfigCommand())

	return root
}

func Execute() error {
	return newRootCommand().Execute()
}

// loadApp builds the components for a command.
func loadApp(ctx context.Context) (*bootstrap.App, error) {
	cfg, err := loadConfig(ctx)
	if err != nil {
		return nil, err
	}

	return bootstrap.NewApp(ctx, cfg)
}
