// Package cli provides status formatting helpers.
package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/opencode-ai/cadence/internal/models"
	"golang.org/x/term"
)

const (
	colorReset   = "\033[0m"
	colorRed     = "\033[31m"
	colorGreen   = "\033[32m"
	colorYellow  = "\033[33m"
	colorCyan    = "\033[36m"
	colorMagenta = "\033[35m"
)

func formatRunState(state models.RunState) string {
	label, color := statusLabelForRun(state)
	return colorize(formatStatusLabel(label, string(state)), color)
}

func statusLabelForRun(state models.RunState) (string, string) {
	switch state {
	case models.RunStateCompleted:
		return "OK", colorGreen
	case models.RunStateRunning:
		return "BUSY", colorCyan
	case models.RunStateCancelled:
		return "WARN", colorYellow
	case models.RunStateFailed:
		return "ERR", colorRed
	default:
		return "WARN", colorMagenta
	}
}

func formatStatusLabel(label, status string) string {
	normalized := strings.TrimSpace(status)
	if normalized != "" {
		normalized = strings.ReplaceAll(normalized, "_", " ")
	}
	if normalized == "" {
		return label
	}
	return fmt.Sprintf("%s %s", label, normalized)
}

func colorize(text, color string) string {
	if !colorEnabled() || color == "" {
		return text
	}
	return color + text + colorReset
}

func colorEnabled() bool {
	if noColor {
		return false
	}
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		return false
	}
	return term.IsTerminal(int(os.Stdout.Fd()))
}
