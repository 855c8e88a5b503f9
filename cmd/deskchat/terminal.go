package main

import (
	"os"

	"github.com/muesli/termenv"
	"golang.org/x/term"
)

var (
	output = termenv.NewOutput(os.Stdout)

	// Set by initColors; the zero Style prints text unchanged
	highlightStyle termenv.Style
	errorStyle     termenv.Style
	successStyle   termenv.Style
	dimStyle       termenv.Style
	userStyle      termenv.Style
	assistantStyle termenv.Style
	systemStyle    termenv.Style
)

// initColors picks styles that read well on the terminal's background
func initColors() {
	if termenv.HasDarkBackground() {
		highlightStyle = output.String().Foreground(output.Color("179")).Bold()
		errorStyle = output.String().Foreground(output.Color("167"))
		successStyle = output.String().Foreground(output.Color("65"))
		dimStyle = output.String().Faint()
		userStyle = output.String().Foreground(output.Color("32")).Bold()
		assistantStyle = output.String().Foreground(output.Color("141"))
		systemStyle = output.String().Foreground(output.Color("244"))
	} else {
		highlightStyle = output.String().Foreground(output.Color("136")).Bold()
		errorStyle = output.String().Foreground(output.Color("160"))
		successStyle = output.String().Foreground(output.Color("28"))
		dimStyle = output.String().Foreground(output.Color("240"))
		userStyle = output.String().Foreground(output.Color("26")).Bold()
		assistantStyle = output.String().Foreground(output.Color("90"))
		systemStyle = output.String().Foreground(output.Color("238"))
	}
}

// roleStyle returns the style history lines of role are printed in
func roleStyle(role string) termenv.Style {
	switch role {
	case "user":
		return userStyle
	case "assistant":
		return assistantStyle
	default:
		return systemStyle
	}
}

// isTerminal checks if output is going to a terminal
func isTerminal() bool {
	return term.IsTerminal(int(os.Stdout.Fd())) && term.IsTerminal(int(os.Stderr.Fd()))
}

// stdinIsTerminal reports whether the user can type at us
func stdinIsTerminal() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// createStatusLine returns a title status line when stdout is a terminal
func createStatusLine() *Status {
	if isTerminal() {
		return NewStatus(os.Stderr)
	}
	return nil
}
