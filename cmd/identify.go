package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/emrgen/identity/internal/config"
	"github.com/emrgen/identity/internal/server"
	"github.com/emrgen/identity/internal/service"
	"github.com/emrgen/identity/internal/store"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

// identifyCmd runs one resolution against the configured database.
func identifyCmd() *cobra.Command {
	var email, phone string

	command := &cobra.Command{
		Use:   "identify",
		Short: "resolve an email and/or phone number to its contact cluster",
		RunE: func(cmd *cobra.Command, args []string) error {
			if email == "" && phone == "" {
				color.Red(`missing: --email or --phone`)
				return service.ErrMissingIdentity
			}

			cfg := config.LoadConfig()
			contactStore := store.NewGormStore(config.GetDb(cfg))

			svc, closeService, err := server.NewIdentityService(cfg, contactStore)
			if err != nil {
				return err
			}
			defer closeService()

			view, err := svc.Identify(cmd.Context(), &service.IdentifyRequest{
				Email:       &email,
				PhoneNumber: &phone,
			})
			if err != nil {
				color.Red("identify failed: %v", err)
				return err
			}

			out, err := json.MarshalIndent(map[string]any{"contact": view}, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))

			return nil
		},
	}

	command.Flags().StringVarP(&email, "email", "e", "", "email address")
	command.Flags().StringVarP(&phone, "phone", "p", "", "phone number")

	return command
}
