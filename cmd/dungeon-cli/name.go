package main

import (
	"fmt"

	"github.com/cuongbtq/dungeon-forge/internal/dungeon/donjon"
	"github.com/spf13/cobra"
)

func newNameCmd(app *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "name",
		Short: "Print a random dungeon name",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, appLogger, err := app.load()
			if err != nil {
				return err
			}
			defer appLogger.Close()

			client, err := donjon.NewClient(donjon.Options{
				BaseURL:   cfg.Donjon.BaseURL,
				NameURL:   cfg.Donjon.NameURL,
				Timeout:   cfg.Donjon.HTTPTimeout,
				UserAgent: cfg.Donjon.UserAgent,
				Logger:    appLogger.Logger,
			})
			if err != nil {
				return err
			}

			name, err := client.RandomName(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), name)
			return nil
		},
	}
}
