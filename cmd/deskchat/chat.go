package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"

	"github.com/alexschlessinger/deskchat/client"
	"github.com/alexschlessinger/deskchat/messages"
	"github.com/alexschlessinger/deskchat/stream"
	"github.com/chzyer/readline"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
)

const (
	historyFileName = "history"
	quitHint        = "Use /exit or Ctrl-D to quit"
)

// errReported marks a failure that was already shown to the user
var errReported = errors.New("reply failed")

// chatStreamer starts a stream rendered by an EventProcessor; *client.Client
// satisfies it
type chatStreamer interface {
	StreamWith(ctx context.Context, req messages.ChatRequest, p messages.EventProcessor) (string, error)
}

func chatCommand() *cli.Command {
	return &cli.Command{
		Name:      "chat",
		Usage:     "Send a prompt and stream the reply",
		ArgsUsage: "[prompt]",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "prompt", Aliases: []string{"p"}, Usage: "Prompt text (reads stdin when piped)"},
			&cli.StringFlag{Name: "mode", Usage: "Mode: " + modeNames()},
			&cli.StringFlag{Name: "model", Aliases: []string{"m"}, Usage: "Model in provider/model form (default: the backend's current model)"},
			&cli.BoolFlag{Name: "web-search", Usage: "Ask for web search"},
			&cli.BoolFlag{Name: "ephemeral", Aliases: []string{"e"}, Usage: "Do not record the exchange in conversation history"},
		},
		Action: runChat,
	}
}

func runChat(ctx context.Context, cmd *cli.Command) error {
	cfg, err := setup(cmd)
	if err != nil {
		return err
	}
	c := newClient(cfg)

	req := messages.ChatRequest{
		Mode:      messages.Mode(cfg.Mode),
		Model:     cfg.Model,
		WebSearch: cmd.Bool("web-search"),
		Ephemeral: cmd.Bool("ephemeral"),
	}

	prompt := cmd.String("prompt")
	if prompt == "" && cmd.Args().Present() {
		prompt = strings.Join(cmd.Args().Slice(), " ")
	}
	if prompt == "" {
		if stdinIsTerminal() {
			lines, err := newTerminalReader(filepath.Join(cfg.DataDir, historyFileName))
			if err != nil {
				return err
			}
			return runInteractive(ctx, c, req, lines, os.Stdout, createStatusLine())
		}
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return fmt.Errorf("error reading stdin: %w", err)
		}
		prompt = string(data)
	}
	if strings.TrimSpace(prompt) == "" {
		return fmt.Errorf("no prompt given")
	}
	req.Text = prompt

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	_, err = streamReply(ctx, c, req, os.Stdout, createStatusLine())
	return err
}

// streamReply renders one reply on out. Cancelling ctx stops the stream and
// keeps the partial reply on screen; that is not an error.
func streamReply(ctx context.Context, c chatStreamer, req messages.ChatRequest, out io.Writer, status *Status) (string, error) {
	status.Start()
	defer status.Stop()
	status.ShowSpinner("waiting")

	p := newTerminalProcessor(out, status)
	text, err := c.StreamWith(ctx, req, p)
	p.Finish()

	switch {
	case err != nil:
		if partial, ok := stream.PartialText(err); ok {
			zap.S().Debugw("chat_stream_interrupted", "partial_length", len(partial))
		}
		return text, err
	case ctx.Err() != nil:
		fmt.Fprintln(out, dimStyle.Styled("[cancelled]"))
	case p.Failed():
		return text, errReported
	}
	return text, nil
}

// runInteractive reads prompts line by line until EOF or /exit. Ctrl-C
// cancels the reply in progress rather than the session.
func runInteractive(ctx context.Context, c *client.Client, req messages.ChatRequest, lines lineReader, out io.Writer, status *Status) error {
	defer lines.Close()
	fmt.Fprintln(out, dimStyle.Styled("deskchat: /help for commands, Ctrl-D to quit"))

	var mu sync.Mutex
	var cancelTurn context.CancelFunc

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt)
	done := make(chan struct{})
	defer func() {
		signal.Stop(sigs)
		close(done)
	}()
	go func() {
		for {
			select {
			case <-done:
				return
			case <-sigs:
				mu.Lock()
				if cancelTurn != nil {
					cancelTurn()
				} else {
					fmt.Fprintln(out, dimStyle.Styled(quitHint))
				}
				mu.Unlock()
			}
		}
	}()

	for {
		raw, err := lines.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			fmt.Fprintln(out, dimStyle.Styled(quitHint))
			continue
		}
		if errors.Is(err, io.EOF) {
			fmt.Fprintln(out)
			return nil
		}
		if err != nil {
			return err
		}

		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "/") {
			quit, err := handleSlashCommand(ctx, c, &req, line, out)
			if err != nil {
				fmt.Fprintln(out, errorStyle.Styled("Error: "+err.Error()))
			}
			if quit {
				return nil
			}
			continue
		}

		turn := req
		turn.Text = line
		tctx, cancel := context.WithCancel(ctx)
		mu.Lock()
		cancelTurn = cancel
		mu.Unlock()

		_, err = streamReply(tctx, c, turn, out, status)

		mu.Lock()
		cancelTurn = nil
		mu.Unlock()
		cancel()

		if err != nil && !errors.Is(err, errReported) {
			fmt.Fprintln(out, errorStyle.Styled("Error: "+err.Error()))
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}

// handleSlashCommand runs one interactive command, reporting whether to quit
func handleSlashCommand(ctx context.Context, c *client.Client, req *messages.ChatRequest, line string, out io.Writer) (bool, error) {
	name, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)

	switch name {
	case "/exit", "/quit":
		return true, nil

	case "/help":
		printInteractiveHelp(out)

	case "/new":
		conv, err := c.NewConversation(ctx)
		if err != nil {
			return false, err
		}
		fmt.Fprintf(out, "%s %s\n", successStyle.Styled("New conversation"), conv.ID)

	case "/mode":
		if arg != "" {
			mode, ok := messages.ParseMode(arg)
			if !ok {
				return false, fmt.Errorf("unknown mode %q (valid: %s)", arg, modeNames())
			}
			req.Mode = mode
		}
		fmt.Fprintf(out, "mode: %s\n", highlightStyle.Styled(string(req.Mode)))

	case "/model":
		if arg != "" {
			req.Model = arg
		}
		model := req.Model
		if model == "" {
			current, err := c.CurrentModel(ctx)
			if err != nil {
				return false, err
			}
			model = current + " (backend default)"
		}
		fmt.Fprintf(out, "model: %s\n", highlightStyle.Styled(model))

	case "/ephemeral":
		req.Ephemeral = !req.Ephemeral
		fmt.Fprintf(out, "ephemeral: %t\n", req.Ephemeral)

	case "/web":
		req.WebSearch = !req.WebSearch
		fmt.Fprintf(out, "web search: %t\n", req.WebSearch)

	case "/history":
		id, err := c.CurrentConversationID(ctx)
		if err != nil {
			return false, err
		}
		if id == "" {
			fmt.Fprintln(out, dimStyle.Styled("No current conversation"))
			return false, nil
		}
		history, err := c.SwitchConversation(ctx, id)
		if err != nil {
			return false, err
		}
		printHistory(out, history)

	default:
		return false, fmt.Errorf("unknown command %s, try /help", name)
	}
	return false, nil
}

func printInteractiveHelp(out io.Writer) {
	fmt.Fprintln(out, highlightStyle.Styled("Commands:"))
	for _, line := range [][2]string{
		{"/new", "start a new conversation"},
		{"/mode [name]", "show or set the mode"},
		{"/model [id]", "show or set the model"},
		{"/ephemeral", "toggle recording of exchanges"},
		{"/web", "toggle web search"},
		{"/history", "show the current conversation"},
		{"/exit", "quit"},
	} {
		fmt.Fprintf(out, "  %-14s %s\n", line[0], dimStyle.Styled(line[1]))
	}
}

// printHistory writes a conversation transcript with role labels
func printHistory(out io.Writer, history []messages.ChatMessage) {
	for _, msg := range history {
		fmt.Fprintf(out, "%s %s\n", roleStyle(msg.Role).Styled(msg.Role+":"), msg.Content)
	}
}
