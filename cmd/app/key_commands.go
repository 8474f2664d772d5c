package main

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/allisson/gatekeeper/cmd/app/commands"
	"github.com/allisson/gatekeeper/internal/app"
	"github.com/allisson/gatekeeper/internal/config"
	cryptoService "github.com/allisson/gatekeeper/internal/crypto/service"
	gatewayDomain "github.com/allisson/gatekeeper/internal/gateway/domain"
)

func getKeyCommands() []*cli.Command {
	return []*cli.Command{
		{
			Name:  "create-kek",
			Usage: "Verify a KEK and print its KEK_KEY_URIS entry",
			Flags: []cli.Flag{
				&cli.UintFlag{
					Name:     "version",
					Aliases:  []string{"v"},
					Required: true,
					Usage:    "KEK version recorded in every blob it wraps",
				},
				&cli.StringFlag{
					Name:  "kms-key-uri",
					Value: "",
					Usage: "KMS key URI (gcpkms://, awskms://, azurekeyvault://, hashivault://); empty generates a local base64key://",
				},
				formatFlag(),
			},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				cfg := config.Load()
				container := app.NewContainer(cfg)
				defer func() { _ = container.Shutdown(ctx) }()

				return commands.RunCreateKek(
					ctx,
					cryptoService.NewKMSService(),
					container.Logger(),
					commands.DefaultIO().Writer,
					cmd.Uint("version"),
					cmd.String("kms-key-uri"),
					cmd.String("format"),
				)
			},
		},
		{
			Name:  "rewrap-resources",
			Usage: "Re-wrap every stored DEK under the active KEK version",
			Flags: []cli.Flag{
				formatFlag(),
			},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				cfg := config.Load()
				container := app.NewContainer(cfg)
				defer func() { _ = container.Shutdown(ctx) }()

				gateway, err := container.GatewayUseCase()
				if err != nil {
					return err
				}

				return commands.RunRewrapResources(
					ctx,
					gateway,
					cfg.KekActiveVersion,
					container.Logger(),
					commands.DefaultIO().Writer,
					cmd.String("format"),
				)
			},
		},
		{
			Name:  "encrypt-resource",
			Usage: "Encrypt a field value or file read from stdin",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:     "token",
					Required: true,
					Sources:  cli.EnvVars("GATEKEEPER_TOKEN"),
					Usage:    "Identity token of the writer",
				},
				&cli.StringFlag{
					Name:  "kind",
					Value: string(gatewayDomain.KindField),
					Usage: "Resource kind: 'field' or 'file'",
				},
				&cli.StringFlag{
					Name:     "type",
					Aliases:  []string{"t"},
					Required: true,
					Usage:    "Table name for fields, resource type for files",
				},
				&cli.StringFlag{
					Name:     "id",
					Aliases:  []string{"i"},
					Required: true,
					Usage:    "Row or file id",
				},
				&cli.StringFlag{
					Name:  "field",
					Usage: "Column name (fields only)",
				},
				&cli.StringFlag{
					Name:  "content-type",
					Value: "application/octet-stream",
					Usage: "Content type stored with files",
				},
				formatFlag(),
			},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				cfg := config.Load()
				container := app.NewContainer(cfg)
				defer func() { _ = container.Shutdown(ctx) }()

				gateway, err := container.GatewayUseCase()
				if err != nil {
					return err
				}

				ref := gatewayDomain.ResourceRef{
					Kind:  gatewayDomain.ResourceKind(cmd.String("kind")),
					Type:  cmd.String("type"),
					ID:    cmd.String("id"),
					Field: cmd.String("field"),
				}

				return commands.RunEncryptResource(
					ctx,
					gateway,
					container.Logger(),
					commands.DefaultIO(),
					cmd.String("token"),
					ref,
					cmd.String("content-type"),
					cmd.String("format"),
				)
			},
		},
	}
}
