package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/alexschlessinger/deskchat/client"
	"github.com/alexschlessinger/deskchat/internal/log"
	"github.com/alexschlessinger/deskchat/tools"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
)

func main() {
	app := newApp()
	err := app.Run(context.Background(), os.Args)
	log.Sync()
	if err != nil {
		if !errors.Is(err, errReported) {
			fmt.Fprintln(os.Stderr, errorStyle.Styled(fmt.Sprintf("Error: %v", err)))
		}
		os.Exit(1)
	}
}

func newApp() *cli.Command {
	return &cli.Command{
		Name:    "deskchat",
		Usage:   "Chat with LLMs through the deskchat backend",
		Version: tools.Version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "server",
				Usage: "Backend base URL",
			},
			&cli.StringFlag{
				Name:  "config",
				Usage: "Config file (default ~/.deskchat/config.yaml)",
			},
			&cli.DurationFlag{
				Name:  "timeout",
				Usage: "Timeout for non-streaming requests",
			},
			&cli.BoolFlag{
				Name:    "debug",
				Aliases: []string{"d"},
				Usage:   "Enable debug logging",
			},
		},
		Commands: []*cli.Command{
			chatCommand(),
			serveCommand(),
			conversationsCommand(),
			modelsCommand(),
			sysinfoCommand(),
			uploadCommand(),
			toolCommand(),
			compareCommand(),
			mcpCommand(),
			schemaCommand(),
		},
	}
}

// setup resolves the configuration and prepares logging and colors
func setup(cmd *cli.Command) (*Config, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	if cfg.Debug {
		log.InitLogger(log.ModeDebug)
	} else {
		log.InitLogger(log.ModeQuiet)
	}
	if isTerminal() {
		initColors()
	}
	zap.S().Debugw("config_resolved", "server", cfg.Server, "model", cfg.Model, "mode", cfg.Mode)
	return cfg, nil
}

func newClient(cfg *Config) *client.Client {
	return client.New(cfg.Server,
		client.WithTimeout(cfg.Timeout),
		client.WithLogger(zap.S()),
	)
}
