package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
)

var (
	colorPrimary      = lipgloss.Color("#635BFF") // Stripe blurple
	colorPrimaryLight = lipgloss.Color("#8F89FF")
	colorPrimaryDark  = lipgloss.Color("#4A43D9")
	colorText         = lipgloss.Color("#F6F9FC")
	colorMuted        = lipgloss.Color("240")
	colorWarning      = lipgloss.Color("#F59E0B")

	mutedStyle   = lipgloss.NewStyle().Foreground(colorMuted)
	sectionStyle = lipgloss.NewStyle().Foreground(colorPrimaryLight).Bold(true)
)

// sectionWidth is the width of the rules around a section title.
const sectionWidth = 60

// tone is the kind of a status line.
type tone int

const (
	toneSuccess tone = iota
	toneError
	toneWarning
	toneInfo
)

var tones = [...]struct {
	icon  string
	style lipgloss.Style
}{
	toneSuccess: {"✓", lipgloss.NewStyle().Foreground(lipgloss.Color("#22C55E")).Bold(true)},
	toneError:   {"✗", lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444")).Bold(true)},
	toneWarning: {"⚠", lipgloss.NewStyle().Foreground(colorWarning).Bold(true)},
	toneInfo:    {"●", lipgloss.NewStyle().Foreground(colorPrimary)},
}

// isTTY reports whether stdout is a terminal.
func isTTY() bool {
	return isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())
}

// paint renders s with style on a terminal and leaves it plain otherwise.
func paint(style lipgloss.Style, s string) string {
	if !isTTY() {
		return s
	}
	return style.Render(s)
}

// say prints one status line: the tone's icon, then the message.
func say(w io.Writer, t tone, format string, args ...any) {
	fmt.Fprintf(w, "%s %s\n", paint(tones[t].style, tones[t].icon), fmt.Sprintf(format, args...))
}

func printSuccess(w io.Writer, format string, args ...any) { say(w, toneSuccess, format, args...) }
func printError(w io.Writer, format string, args ...any)   { say(w, toneError, format, args...) }
func printWarning(w io.Writer, format string, args ...any) { say(w, toneWarning, format, args...) }
func printInfo(w io.Writer, format string, args ...any)    { say(w, toneInfo, format, args...) }

func printMuted(w io.Writer, format string, args ...any) {
	fmt.Fprintln(w, paint(mutedStyle, fmt.Sprintf(format, args...)))
}

// printSection prints a titled rule between the phases of a run.
func printSection(w io.Writer, title string) {
	rule := paint(mutedStyle, strings.Repeat("─", sectionWidth))
	fmt.Fprintf(w, "\n%s\n%s\n%s\n", rule, paint(sectionStyle, title), rule)
}

var markdownRenderer = sync.OnceValues(func() (*glamour.TermRenderer, error) {
	return glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(100))
})

// renderMarkdown renders the statistics and history tables. Piped output
// stays raw markdown.
func renderMarkdown(content string) string {
	if !isTTY() {
		return content
	}
	renderer, err := markdownRenderer()
	if err != nil {
		return content
	}
	rendered, err := renderer.Render(content)
	if err != nil {
		return content
	}
	return strings.TrimSpace(rendered)
}
