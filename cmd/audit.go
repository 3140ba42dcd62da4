package cmd

import (
	"github.com/emrgen/identity/internal/config"
	"github.com/emrgen/identity/internal/jobs"
	"github.com/emrgen/identity/internal/store"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func auditCmd() *cobra.Command {
	command := &cobra.Command{
		Use:   "audit",
		Short: "report contacts whose linkage breaks the cluster shape",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.LoadConfig()
			audit := jobs.NewLinkageAudit(store.NewGormStore(config.GetDb(cfg)), "")

			n, err := audit.Audit(cmd.Context())
			if err != nil {
				return err
			}
			if n > 0 {
				color.Yellow("%d contacts with broken linkage", n)
			} else {
				color.Green("no linkage violations")
			}

			return nil
		},
	}

	return command
}
