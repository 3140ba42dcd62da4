package cmd

import (
	"github.com/emrgen/identity/internal/config"
	"github.com/emrgen/identity/internal/model"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "db commands",
}

func init() {
	dbCmd.AddCommand(Migrate())
}

func Migrate() *cobra.Command {
	command := &cobra.Command{
		Use:   "migrate",
		Short: "Migrate the database",
		RunE: func(cmd *cobra.Command, args []string) error {
			db := config.GetDb(config.LoadConfig())
			if err := model.Migrate(db); err != nil {
				return err
			}
			color.Green("database migrated")
			return nil
		},
	}

	return command
}
