package main

import (
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/wagiedev/agentwire"
)

var (
	assistantColor = color.New(color.FgCyan)
	toolColor      = color.New(color.FgYellow)
	resultColor    = color.New(color.FgGreen, color.Bold)
	errorColor     = color.New(color.FgRed, color.Bold)
	dimColor       = color.New(color.Faint)
)

// printer renders session messages for a terminal.
type printer struct {
	w       io.Writer
	verbose bool
}

func (p *printer) print(msg agentwire.Message) {
	switch msg.Type() {
	case agentwire.MessageTypeAssistant:
		if text := strings.TrimSpace(msg.Text()); text != "" {
			assistantColor.Fprintln(p.w, text)
		}

		for _, tool := range msg.ToolUses() {
			toolColor.Fprintf(p.w, "→ %s\n", tool)
		}

	case agentwire.MessageTypeResult:
		if msg.IsError() {
			errorColor.Fprintf(p.w, "✗ %s\n", msg.Text())

			return
		}

		resultColor.Fprintln(p.w, "✓ done")

	case agentwire.MessageTypeSystem:
		if p.verbose {
			dimColor.Fprintf(p.w, "[system %s] session=%s\n", msg.Subtype(), msg.SessionID())
		}

	default:
		if p.verbose {
			dimColor.Fprintf(p.w, "[%s]\n", msg.Type())
		}
	}
}

func (p *printer) printError(err error) {
	errorColor.Fprintf(p.w, "Error: %v\n", err)
}
