package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/alexschlessinger/deskchat/messages"
	"github.com/chzyer/readline"
)

const promptText = "> "

// lineReader yields one prompt line per call. It returns io.EOF at the end of
// input and readline.ErrInterrupt when the user presses Ctrl-C at the prompt.
type lineReader interface {
	Readline() (string, error)
	Close() error
}

var slashCompleter = readline.NewPrefixCompleter(
	readline.PcItem("/new"),
	readline.PcItem("/mode",
		readline.PcItemDynamic(func(string) []string {
			names := make([]string, len(messages.Modes))
			for i, m := range messages.Modes {
				names[i] = string(m)
			}
			return names
		}),
	),
	readline.PcItem("/model"),
	readline.PcItem("/ephemeral"),
	readline.PcItem("/web"),
	readline.PcItem("/history"),
	readline.PcItem("/help"),
	readline.PcItem("/exit"),
)

// newTerminalReader opens a line editor on the terminal with persistent history
func newTerminalReader(historyFile string) (lineReader, error) {
	if err := os.MkdirAll(filepath.Dir(historyFile), 0755); err != nil {
		return nil, fmt.Errorf("failed to create history directory: %w", err)
	}
	rl, err := readline.NewEx(&readline.Config{
		Prompt:            userStyle.Styled(promptText),
		HistoryFile:       historyFile,
		AutoComplete:      slashCompleter,
		InterruptPrompt:   "^C",
		EOFPrompt:         "exit",
		HistorySearchFold: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start line editor: %w", err)
	}
	return rl, nil
}

// scanReader reads prompts from a plain stream, echoing the prompt to out
type scanReader struct {
	sc  *bufio.Scanner
	out io.Writer
}

func newScanReader(in io.Reader, out io.Writer) *scanReader {
	sc := bufio.NewScanner(in)
	sc.Buffer(make([]byte, 64*1024), 1<<20)
	return &scanReader{sc: sc, out: out}
}

func (r *scanReader) Readline() (string, error) {
	fmt.Fprint(r.out, userStyle.Styled(promptText))
	if r.sc.Scan() {
		return r.sc.Text(), nil
	}
	if err := r.sc.Err(); err != nil {
		return "", err
	}
	return "", io.EOF
}

func (r *scanReader) Close() error { return nil }
