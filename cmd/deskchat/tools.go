package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"slices"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/alexschlessinger/deskchat/tools"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
)

const progressTitleRunes = 60

func mcpFlag() cli.Flag {
	return &cli.StringSliceFlag{
		Name:  "mcp",
		Usage: "MCP server config to load tools from (config.json or config.json#server, repeatable)",
	}
}

func toolCommand() *cli.Command {
	return &cli.Command{
		Name:      "tool",
		Usage:     "Run a tool",
		ArgsUsage: "<name>",
		// Argument values are free text
		DisableSliceFlagSeparator: true,
		Flags: []cli.Flag{
			&cli.StringSliceFlag{Name: "arg", Aliases: []string{"a"}, Usage: "Tool argument as key=value (repeatable)"},
			&cli.StringFlag{Name: "model", Aliases: []string{"m"}, Usage: "Model for the tool's requests (default: the backend's current model)"},
			mcpFlag(),
		},
		Action: runTool,
		Commands: []*cli.Command{
			{
				Name:                      "list",
				Usage:                     "List available tools and their arguments",
				DisableSliceFlagSeparator: true,
				Flags: []cli.Flag{
					mcpFlag(),
					&cli.StringFlag{Name: "category", Aliases: []string{"c"}, Usage: "Only list presets of a category (" + strings.Join(tools.Categories, ", ") + ")"},
				},
				Action: runToolList,
			},
		},
	}
}

func runToolList(ctx context.Context, cmd *cli.Command) error {
	cfg, err := setup(cmd)
	if err != nil {
		return err
	}
	category := cmd.String("category")
	if category != "" && !slices.Contains(tools.Categories, category) {
		return fmt.Errorf("unknown category %q (valid: %s)", category, strings.Join(tools.Categories, ", "))
	}

	registry, closeAll, err := buildRegistry(ctx, cfg, "", cmd.StringSlice("mcp"), nil)
	if err != nil {
		return err
	}
	defer closeAll()
	writeToolList(os.Stdout, registry, category)
	return nil
}

func runTool(ctx context.Context, cmd *cli.Command) error {
	cfg, err := setup(cmd)
	if err != nil {
		return err
	}
	if err := requireArgs(cmd, 1); err != nil {
		return err
	}
	name := cmd.Args().First()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	status := createStatusLine()
	status.Start()
	defer status.Stop()
	progress := func(text string) {
		status.ShowSpinner(progressTitle(text))
	}

	registry, closeAll, err := buildRegistry(ctx, cfg, cfg.Model, cmd.StringSlice("mcp"), progress)
	if err != nil {
		return err
	}
	defer closeAll()

	tool, ok := registry.Get(name)
	if !ok {
		return fmt.Errorf("%w: %s (see 'deskchat tool list')", tools.ErrUnknownTool, name)
	}
	args, err := tools.ParseArgs(tool.GetSchema(), cmd.StringSlice("arg"))
	if err != nil {
		return err
	}

	status.ShowSpinner("running " + name)
	result, err := registry.Execute(ctx, name, args)
	if err != nil {
		return err
	}
	fmt.Println(result)
	return nil
}

// buildRegistry registers the built-in tools, bound to the backend, plus the
// tools of every MCP server in specs. The returned func closes those servers.
func buildRegistry(ctx context.Context, cfg *Config, model string, specs []string, progress tools.Progress) (*tools.ToolRegistry, func(), error) {
	registry := tools.NewToolRegistry(tools.Builtins(tools.Surface{
		Streamer: newClient(cfg),
		Model:    model,
		Progress: progress,
	}))

	var clients []*tools.MCPClient
	closeAll := func() {
		for _, mc := range clients {
			if err := mc.Close(); err != nil {
				zap.S().Debugw("mcp_close_failed", "error", err)
			}
		}
	}

	for _, spec := range specs {
		mc, err := tools.NewMCPClient(ctx, spec)
		if err != nil {
			closeAll()
			return nil, nil, err
		}
		clients = append(clients, mc)

		external, err := mc.ListTools(ctx)
		if err != nil {
			closeAll()
			return nil, nil, fmt.Errorf("%s: %w", spec, err)
		}
		for _, tool := range external {
			registry.Register(tool)
		}
	}
	return registry, closeAll, nil
}

// writeToolList prints each tool with its arguments. A non-empty category
// keeps only the catalog presets in it.
func writeToolList(out io.Writer, registry *tools.ToolRegistry, category string) {
	for _, tool := range registry.All() {
		if category != "" {
			preset, ok := tool.(*tools.PresetTool)
			if !ok || preset.Category() != category {
				continue
			}
		}
		schema := tool.GetSchema()
		fmt.Fprintf(out, "%s  %s\n", highlightStyle.Styled(schema.Title), schema.Description)

		required := make(map[string]bool, len(schema.Required))
		for _, name := range schema.Required {
			required[name] = true
		}
		names := make([]string, 0, len(schema.Properties))
		for name := range schema.Properties {
			names = append(names, name)
		}
		sort.Strings(names)

		for _, name := range names {
			prop := schema.Properties[name]
			if prop == nil {
				continue
			}
			marker := " "
			if required[name] {
				marker = "*"
			}
			fmt.Fprintf(out, "  %s %-12s %-8s %s\n", marker, name, prop.Type, dimStyle.Styled(prop.Description))
		}
	}
}

// progressTitle squeezes streaming text onto one short title line, keeping the end
func progressTitle(text string) string {
	text = strings.Join(strings.Fields(text), " ")
	if n := utf8.RuneCountInString(text); n > progressTitleRunes {
		runes := []rune(text)
		text = "…" + string(runes[n-progressTitleRunes+1:])
	}
	return text
}

func mcpCommand() *cli.Command {
	return &cli.Command{
		Name:                      "mcp",
		Usage:                     "Serve the tools over MCP on stdio",
		DisableSliceFlagSeparator: true,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "model", Aliases: []string{"m"}, Usage: "Model for the tools' requests"},
			mcpFlag(),
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := setup(cmd)
			if err != nil {
				return err
			}
			registry, closeAll, err := buildRegistry(ctx, cfg, cfg.Model, cmd.StringSlice("mcp"), nil)
			if err != nil {
				return err
			}
			defer closeAll()

			ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
			defer stop()
			return tools.NewMCPServer(registry).Run(ctx)
		},
	}
}
