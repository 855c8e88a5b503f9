package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/alexschlessinger/deskchat/messages"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// comparison is one model's answer
type comparison struct {
	Model  string
	Text   string
	Failed bool
	Err    error
}

func compareCommand() *cli.Command {
	return &cli.Command{
		Name:      "compare",
		Usage:     "Send one prompt to several models at once",
		ArgsUsage: "[prompt]",
		// Model ids never contain commas, but prompts given via -p may
		DisableSliceFlagSeparator: true,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "prompt", Aliases: []string{"p"}, Usage: "Prompt text"},
			&cli.StringSliceFlag{Name: "model", Aliases: []string{"m"}, Usage: "Model to ask (repeat for each model)", Required: true},
			&cli.StringFlag{Name: "mode", Usage: "Mode: " + modeNames()},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := setup(cmd)
			if err != nil {
				return err
			}
			prompt := cmd.String("prompt")
			if prompt == "" {
				prompt = strings.Join(cmd.Args().Slice(), " ")
			}
			if strings.TrimSpace(prompt) == "" {
				return fmt.Errorf("no prompt given")
			}

			ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
			defer stop()

			status := createStatusLine()
			status.Start()
			models := cmd.StringSlice("model")
			status.ShowSpinner(fmt.Sprintf("comparing %d models", len(models)))

			req := messages.ChatRequest{Text: prompt, Mode: messages.Mode(cfg.Mode)}
			results, err := compareModels(ctx, newClient(cfg), req, models)
			status.Stop()

			writeComparison(os.Stdout, results)
			if err != nil {
				zap.S().Debugw("compare_transport_failed", "error", err)
				return errReported
			}
			for _, r := range results {
				if r.Failed {
					return errReported
				}
			}
			return nil
		},
	}
}

// compareModels streams req to every model concurrently, each stream with its
// own decoder, and returns the answers in the order the models were given.
// Every model runs to completion; the error is the first request that could
// not be made, and the same error is kept on that model's result.
func compareModels(ctx context.Context, c chatStreamer, req messages.ChatRequest, models []string) ([]comparison, error) {
	results := make([]comparison, len(models))

	var g errgroup.Group
	for i, model := range models {
		g.Go(func() error {
			r := req
			r.Model = model
			r.Ephemeral = true

			p := &collectProcessor{}
			text, err := c.StreamWith(ctx, r, p)
			results[i] = comparison{Model: model, Text: text, Failed: p.failed || err != nil, Err: err}
			zap.S().Debugw("compare_model_finished", "model", model, "length", len(text), "failed", results[i].Failed)
			if err != nil {
				return fmt.Errorf("%s: %w", model, err)
			}
			return nil
		})
	}
	err := g.Wait()
	return results, err
}

func writeComparison(out io.Writer, results []comparison) {
	for i, r := range results {
		if i > 0 {
			fmt.Fprintln(out)
		}
		fmt.Fprintln(out, highlightStyle.Styled("── "+r.Model+" ──"))
		switch {
		case r.Err != nil:
			if r.Text != "" {
				fmt.Fprintln(out, r.Text)
			}
			fmt.Fprintln(out, errorStyle.Styled("Error: "+r.Err.Error()))
		case r.Failed:
			fmt.Fprintln(out, errorStyle.Styled(r.Text))
		default:
			fmt.Fprintln(out, r.Text)
		}
	}
}
