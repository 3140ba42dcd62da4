package cmd

import (
	"github.com/emrgen/identity/internal/config"
	"github.com/emrgen/identity/internal/server"
	"github.com/spf13/cobra"
)

func serveCmd() *cobra.Command {
	var grpcPort, httpPort string

	command := &cobra.Command{
		Use:   "serve",
		Short: "start the identity service",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.LoadConfig()
			if grpcPort != "" {
				cfg.GrpcPort = grpcPort
			}
			if httpPort != "" {
				cfg.HttpPort = httpPort
			}
			return server.NewServer(cfg).Start()
		},
	}

	command.Flags().StringVar(&grpcPort, "grpc-port", "", "grpc port (default $GRPC_PORT)")
	command.Flags().StringVar(&httpPort, "http-port", "", "http port (default $HTTP_PORT)")

	return command
}
