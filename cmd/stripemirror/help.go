package main

import (
	"fmt"
	"strings"
	"text/template"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
)

var (
	helpHeaderStyle = lipgloss.NewStyle().Foreground(colorPrimary).Bold(true)
	helpCmdStyle    = lipgloss.NewStyle().Foreground(colorPrimaryLight)
)

// envHelp lists the variables stripemirror.ConfigFromEnv reads.
var envHelp = []struct{ name, usage string }{
	{"STRIPE_SECRET_KEY", "production secret key (read only)"},
	{"STRIPE_SECRET_KEY_TEST", "test secret key (sk_test_*)"},
	{"STRIPE_API_BASE", "API endpoint override"},
	{"STRIPEMIRROR_MAPPINGS_DIR", "snapshot directory (default ./mappings)"},
	{"STRIPEMIRROR_LEDGER", `run ledger path, or "off"`},
	{"STRIPEMIRROR_RATE_LIMIT", "requests per second"},
}

func environmentHelp() string {
	width := 0
	for _, e := range envHelp {
		width = max(width, len(e.name))
	}
	var b strings.Builder
	for _, e := range envHelp {
		fmt.Fprintf(&b, "  %-*s  %s\n", width, e.name, paint(mutedStyle, e.usage))
	}
	return b.String()
}

var helpTemplateFuncs = template.FuncMap{
	"header":      func(s string) string { return paint(helpHeaderStyle, s) },
	"cmd":         func(s string) string { return paint(helpCmdStyle, s) },
	"muted":       func(s string) string { return paint(mutedStyle, s) },
	"environment": environmentHelp,
}

// The environment block is only shown on the root command.
const helpTemplate = `{{with .Long}}{{. | trimTrailingWhitespaces}}

{{end}}{{if or .Runnable .HasSubCommands}}{{header "Usage:"}}
  {{cmd .UseLine}}{{if .HasAvailableSubCommands}} {{muted "[command]"}}{{end}}

{{end}}{{if .HasAvailableSubCommands}}{{header "Commands:"}}
{{range .Commands}}{{if .IsAvailableCommand}}  {{cmd (rpad .Name .NamePadding)}} {{.Short}}
{{end}}{{end}}
{{end}}{{if .HasAvailableLocalFlags}}{{header "Flags:"}}
{{.LocalFlags.FlagUsages | trimTrailingWhitespaces}}

{{end}}{{if .HasAvailableInheritedFlags}}{{header "Global Flags:"}}
{{.InheritedFlags.FlagUsages | trimTrailingWhitespaces}}

{{end}}{{if not .HasParent}}{{header "Environment:"}}
{{environment}}
{{end}}{{if .HasAvailableSubCommands}}{{muted "Use"}} {{cmd (printf "%s [command] --help" .CommandPath)}} {{muted "for more information."}}
{{end}}`

// initHelp installs the styled help template. Subcommands inherit it from
// the root.
func initHelp(root *cobra.Command) {
	cobra.AddTemplateFuncs(helpTemplateFuncs)
	root.SetHelpTemplate(helpTemplate)
}
