package main

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/allisson/gatekeeper/cmd/app/commands"
	"github.com/allisson/gatekeeper/internal/app"
	"github.com/allisson/gatekeeper/internal/config"
)

func getSystemCommands(version string) []*cli.Command {
	return []*cli.Command{
		{
			Name:  "server",
			Usage: "Start the HTTP server and background workers",
			Action: func(ctx context.Context, cmd *cli.Command) error {
				return commands.RunServer(ctx, version)
			},
		},
		{
			Name:  "migrate",
			Usage: "Run database migrations for the SQL storage drivers",
			Action: func(ctx context.Context, cmd *cli.Command) error {
				cfg := config.Load()
				container := app.NewContainer(cfg)
				defer func() { _ = container.Shutdown(ctx) }()

				return commands.RunMigrations(container.Logger(), cfg.StorageDriver, cfg.DBConnectionString)
			},
		},
		{
			Name:  "verify-audit-chain",
			Usage: "Recompute the audit hash chain and report the first broken link",
			Flags: []cli.Flag{
				&cli.Uint64Flag{
					Name:  "from",
					Value: 0,
					Usage: "First sequence to verify (0 means the first entry)",
				},
				&cli.Uint64Flag{
					Name:  "to",
					Value: 0,
					Usage: "Last sequence to verify (0 means the head)",
				},
				formatFlag(),
			},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				cfg := config.Load()
				container := app.NewContainer(cfg)
				defer func() { _ = container.Shutdown(ctx) }()

				auditLog, err := container.AuditLog()
				if err != nil {
					return err
				}

				return commands.RunVerifyAuditChain(
					ctx,
					auditLog,
					container.Logger(),
					commands.DefaultIO().Writer,
					cmd.Uint64("from"),
					cmd.Uint64("to"),
					cmd.String("format"),
				)
			},
		},
	}
}
