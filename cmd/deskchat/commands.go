package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/alexschlessinger/deskchat/client"
	"github.com/alexschlessinger/deskchat/internal/log"
	"github.com/alexschlessinger/deskchat/llm"
	"github.com/alexschlessinger/deskchat/messages"
	"github.com/alexschlessinger/deskchat/server"
	"github.com/alexschlessinger/deskchat/sessions"
	"github.com/urfave/cli/v3"
)

// clientAction is an action that talks to the backend
type clientAction func(ctx context.Context, cmd *cli.Command, c *client.Client) error

// withClient resolves the config and hands fn a client for it
func withClient(fn clientAction) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		cfg, err := setup(cmd)
		if err != nil {
			return err
		}
		return fn(ctx, cmd, newClient(cfg))
	}
}

// requireArgs checks the positional argument count
func requireArgs(cmd *cli.Command, n int) error {
	if cmd.Args().Len() < n {
		return fmt.Errorf("usage: %s %s", cmd.FullName(), cmd.ArgsUsage)
	}
	return nil
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the backend",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "addr", Usage: "Listen address (default " + server.DefaultAddr + ")"},
			&cli.StringFlag{Name: "data-dir", Usage: "Directory for stored conversations (default ~/.deskchat)"},
			&cli.StringFlag{Name: "model", Aliases: []string{"m"}, Usage: "Default model (default " + server.DefaultModel + ")"},
			&cli.BoolFlag{Name: "memory", Usage: "Keep conversations in memory only"},
			&cli.IntFlag{Name: "max-history", Usage: "Messages kept per conversation (0 keeps all)"},
		},
		Action: runServe,
	}
}

func runServe(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cfg.Debug {
		log.InitLogger(log.ModeDebug)
	} else {
		log.InitLogger(log.ModeServer)
	}

	store, err := openStore(cfg, cmd.Bool("memory"))
	if err != nil {
		return err
	}

	srv := server.New(store, llm.NewMultiPass(cfg.Providers), server.Config{
		DefaultModel: cfg.Model,
		Models:       cfg.Models,
	})

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	return srv.ListenAndServe(ctx, cfg.Addr)
}

// openStore returns the conversation store serve should use
func openStore(cfg *Config, memory bool) (sessions.Store, error) {
	storeCfg := &sessions.Config{DefaultModel: cfg.Model, MaxHistory: cfg.MaxHistory}
	if memory {
		return sessions.NewMemoryStore(storeCfg), nil
	}
	return sessions.NewFileStore(filepath.Join(cfg.DataDir, conversationDir), storeCfg)
}

func conversationsCommand() *cli.Command {
	return &cli.Command{
		Name:    "conversations",
		Aliases: []string{"conv"},
		Usage:   "Manage stored conversations",
		Action:  withClient(listConversations),
		Commands: []*cli.Command{
			{
				Name:   "list",
				Usage:  "List conversations, newest first",
				Action: withClient(listConversations),
			},
			{
				Name:  "new",
				Usage: "Start a new conversation",
				Action: withClient(func(ctx context.Context, cmd *cli.Command, c *client.Client) error {
					conv, err := c.NewConversation(ctx)
					if err != nil {
						return err
					}
					fmt.Printf("%s %s\n", conv.ID, conv.Title)
					return nil
				}),
			},
			{
				Name:      "switch",
				Usage:     "Make a conversation current and print it",
				ArgsUsage: "<id>",
				Action: withClient(func(ctx context.Context, cmd *cli.Command, c *client.Client) error {
					if err := requireArgs(cmd, 1); err != nil {
						return err
					}
					history, err := c.SwitchConversation(ctx, cmd.Args().First())
					if err != nil {
						return err
					}
					printHistory(os.Stdout, history)
					return nil
				}),
			},
			{
				Name:      "delete",
				Usage:     "Delete a conversation",
				ArgsUsage: "<id>",
				Action: withClient(func(ctx context.Context, cmd *cli.Command, c *client.Client) error {
					if err := requireArgs(cmd, 1); err != nil {
						return err
					}
					if err := c.DeleteConversation(ctx, cmd.Args().First()); err != nil {
						return err
					}
					fmt.Println(successStyle.Styled("Deleted " + cmd.Args().First()))
					return nil
				}),
			},
			{
				Name:      "rename",
				Usage:     "Set a conversation's title",
				ArgsUsage: "<id> <title>",
				Action: withClient(func(ctx context.Context, cmd *cli.Command, c *client.Client) error {
					if err := requireArgs(cmd, 2); err != nil {
						return err
					}
					title := strings.Join(cmd.Args().Tail(), " ")
					return c.RenameConversation(ctx, cmd.Args().First(), title)
				}),
			},
		},
	}
}

func listConversations(ctx context.Context, cmd *cli.Command, c *client.Client) error {
	convs, err := c.Conversations(ctx)
	if err != nil {
		return err
	}
	current, err := c.CurrentConversationID(ctx)
	if err != nil {
		return err
	}
	writeConversations(os.Stdout, convs, current, time.Now())
	return nil
}

func writeConversations(out io.Writer, convs []messages.Conversation, current string, now time.Time) {
	if len(convs) == 0 {
		fmt.Fprintln(out, dimStyle.Styled("No conversations"))
		return
	}
	for _, conv := range convs {
		marker := " "
		if conv.ID == current {
			marker = "*"
		}
		fmt.Fprintf(out, "%s %s  %s %s\n", marker, highlightStyle.Styled(conv.ID), conv.Title,
			dimStyle.Styled(fmt.Sprintf("(%d messages, %s)", conv.MessageCount, formatAge(now.Sub(conv.CreatedAt)))))
	}
}

// formatAge renders a duration the way a listing reads it
func formatAge(d time.Duration) string {
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
}

func modelsCommand() *cli.Command {
	return &cli.Command{
		Name:   "models",
		Usage:  "Show or select the backend's model",
		Action: withClient(listModels),
		Commands: []*cli.Command{
			{
				Name:   "list",
				Usage:  "List available models",
				Action: withClient(listModels),
			},
			{
				Name:      "set",
				Usage:     "Select the default model",
				ArgsUsage: "<provider/model>",
				Action: withClient(func(ctx context.Context, cmd *cli.Command, c *client.Client) error {
					if err := requireArgs(cmd, 1); err != nil {
						return err
					}
					return c.SetModel(ctx, cmd.Args().First())
				}),
			},
			{
				Name:  "current",
				Usage: "Print the default model",
				Action: withClient(func(ctx context.Context, cmd *cli.Command, c *client.Client) error {
					model, err := c.CurrentModel(ctx)
					if err != nil {
						return err
					}
					fmt.Println(model)
					return nil
				}),
			},
		},
	}
}

func listModels(ctx context.Context, cmd *cli.Command, c *client.Client) error {
	models, err := c.Models(ctx)
	if err != nil {
		return err
	}
	current, err := c.CurrentModel(ctx)
	if err != nil {
		return err
	}
	for _, m := range models {
		marker := " "
		if m.ID == current {
			marker = "*"
		}
		fmt.Printf("%s %-32s %s\n", marker, m.ID, dimStyle.Styled(m.Name+", "+m.Provider))
	}
	return nil
}

func sysinfoCommand() *cli.Command {
	return &cli.Command{
		Name:  "sysinfo",
		Usage: "Describe the host running the backend",
		Action: withClient(func(ctx context.Context, cmd *cli.Command, c *client.Client) error {
			info, err := c.SystemInfo(ctx)
			if err != nil {
				return err
			}
			for _, row := range [][2]string{{"OS", info.OS}, {"CPU", info.CPU}, {"RAM", info.RAM}, {"GPU", info.GPU}} {
				value := row[1]
				if value == "" {
					value = dimStyle.Styled("unknown")
				}
				fmt.Printf("%-4s %s\n", row[0], value)
			}
			return nil
		}),
	}
}

func uploadCommand() *cli.Command {
	return &cli.Command{
		Name:      "upload",
		Usage:     "Extract the text of a file through the backend",
		ArgsUsage: "<file>",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "json", Usage: "Print the full result as JSON"},
		},
		Action: withClient(func(ctx context.Context, cmd *cli.Command, c *client.Client) error {
			if err := requireArgs(cmd, 1); err != nil {
				return err
			}
			path := cmd.Args().First()
			f, err := os.Open(path)
			if err != nil {
				return err
			}
			defer f.Close()

			res, err := c.Upload(ctx, filepath.Base(path), f)
			if err != nil {
				return err
			}
			if cmd.Bool("json") {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(res)
			}
			fmt.Fprintln(os.Stderr, dimStyle.Styled(fmt.Sprintf("%s: %s, %d bytes", res.Meta.Name, res.Type, res.Meta.Size)))
			fmt.Println(res.Text)
			return nil
		}),
	}
}
