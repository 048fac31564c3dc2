package main

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	bannerFrameStyle   = lipgloss.NewStyle().Foreground(colorPrimary).Bold(true)
	bannerTitleStyle   = lipgloss.NewStyle().Foreground(colorText).Bold(true)
	bannerTaglineStyle = lipgloss.NewStyle().Foreground(colorPrimaryDark).Italic(true)
	bannerDryRunStyle  = lipgloss.NewStyle().Foreground(colorWarning).Bold(true)
)

func renderBanner() string {
	if !isTTY() {
		return "stripemirror: production → test\n"
	}

	frame := bannerFrameStyle.Render
	lines := []string{
		frame("╔═══════════════════════════════════════════╗"),
		frame("║") + "   " + bannerTitleStyle.Render("STRIPEMIRROR") + "  " + bannerTaglineStyle.Render("production → test") + "         " + frame("║"),
		frame("╚═══════════════════════════════════════════╝"),
	}
	return strings.Join(lines, "\n") + "\n"
}

func renderDryRunNotice() string {
	msg := "DRY RUN: nothing will be written to the test account"
	if !isTTY() {
		return msg + "\n"
	}
	return bannerDryRunStyle.Render("⚠  "+msg) + "\n"
}
