package main

import (
	"os"
	"strings"

	"github.com/waveline/campaign-engine/internal/config"
	"github.com/waveline/campaign-engine/pkg/logger"
	"github.com/waveline/campaign-engine/pkg/pg"
)

// Migration runner. Usage:
//
//	cli --env=.env --dir=./migrations
func main() {
	if err := config.Load(argValue("--env=", ".env")); err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	pgConf := pg.Config{
		User:     config.Get().PostgresWriteUser,
		Host:     config.Get().PostgresWriteHost,
		Port:     config.Get().PostgresWritePort,
		Password: config.Get().PostgresWritePassword,
		Database: config.Get().PostgresWriteDatabase,
	}

	dir := argValue("--dir=", "./migrations")
	if err := pg.Migrate(pgConf, dir); err != nil {
		logger.Error("failed to run migrations", "dir", dir, "error", err)
		os.Exit(1)
	}
	logger.Info("migrations applied", "dir", dir)
}

func argValue(prefix, fallback string) string {
	for _, v := range os.Args[1:] {
		if strings.HasPrefix(v, prefix) {
			return strings.TrimPrefix(v, prefix)
		}
	}
	if _, err := os.Stat(fallback); err != nil {
		return ""
	}
	return fallback
}
