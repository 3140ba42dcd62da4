package main

import (
	"os"

	"github.com/emrgen/identity/internal/config"
	"github.com/emrgen/identity/internal/server"
	"github.com/sirupsen/logrus"
)

func main() {
	cfg := config.LoadConfig()
	if cfg.DatabaseURL == "" {
		// local sqlite file so the service starts without a database server
		cfg.DBDriver = config.DriverSqlite
		cfg.DatabaseURL = "identity.db"
	}

	if err := server.NewServer(cfg).Start(); err != nil {
		logrus.Errorf("identity service stopped: %v", err)
		os.Exit(1)
	}
}
