package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"

	"ferry/internal/deps"
	"ferry/internal/preflight"
)

type statusKind int

const (
	statusInfo statusKind = iota
	statusOK
	statusWarn
	statusError
)

const (
	ansiReset = "\x1b[0m"
	ansiBlue  = "\x1b[34m"
)

var statusStyles = map[statusKind]struct{ label, color string }{
	statusInfo:  {"INFO", ansiBlue},
	statusOK:    {"OK", "\x1b[32m"},
	statusWarn:  {"WARN", "\x1b[33m"},
	statusError: {"ERROR", "\x1b[31m"},
}

// renderStatusLine lays out "  label:  [KIND] message" with the label padded
// to a fixed column.
func renderStatusLine(label string, kind statusKind, message string, colorize bool) string {
	style, ok := statusStyles[kind]
	if !ok {
		style = statusStyles[statusInfo]
	}
	var b strings.Builder
	fmt.Fprintf(&b, "  %-20s [%s]", label+":", style.label)
	if message != "" {
		b.WriteString(" " + message)
	}
	if !colorize {
		return b.String()
	}
	return style.color + b.String() + ansiReset
}

func renderSectionHeader(title string, colorize bool) []string {
	line := fmt.Sprintf("== %s ==", strings.TrimSpace(title))
	rule := strings.Repeat("-", len(line))
	if colorize {
		line = ansiBlue + line + ansiReset
		rule = ansiBlue + rule + ansiReset
	}
	return []string{line, rule}
}

// renderCheck maps a preflight result onto a status line. Checks that did not
// pass but are advisory render as warnings.
func renderCheck(result preflight.Result, advisory bool, colorize bool) string {
	kind := statusOK
	if !result.Passed {
		kind = statusError
		if advisory {
			kind = statusWarn
		}
	}
	return renderStatusLine(result.Name, kind, result.Detail, colorize)
}

func renderDependency(status deps.Status, colorize bool) string {
	switch {
	case status.Available:
		message := status.Command
		if status.Detail != "" {
			message += " (" + status.Detail + ")"
		}
		return renderStatusLine(status.Name, statusOK, message, colorize)
	case status.Optional:
		return renderStatusLine(status.Name, statusWarn, status.Detail+"; "+status.Description, colorize)
	default:
		return renderStatusLine(status.Name, statusError, status.Detail+"; "+status.Description, colorize)
	}
}

func shouldColorize(w io.Writer) bool {
	if f, ok := w.(*os.File); ok {
		return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	return false
}
