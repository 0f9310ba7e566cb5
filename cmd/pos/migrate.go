package main

import (
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"

	"github.com/matheusmosca/retail-pos/internal/database"
)

func migrateCommand() *cli.Command {
	return &cli.Command{
		Name:      "migrate",
		Usage:     "apply or revert the database schema",
		ArgsUsage: "up|down",
		Action: func(c *cli.Context) error {
			direction := c.Args().First()
			if direction != database.DirectionUp && direction != database.DirectionDown {
				return errors.Errorf("expected up or down, got %q", direction)
			}

			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}
			return database.Migrate(cfg.Database.KeyValueDSN(), direction, cfg.NewLogger(false))
		},
	}
}
