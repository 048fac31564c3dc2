package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/hyperengineering/stripemirror"
	"github.com/hyperengineering/stripemirror/internal/copier"
	"github.com/spf13/cobra"
)

var (
	secretsMu sync.Mutex
	secrets   []string
)

// outputAsJSON writes any value as formatted JSON to the command's stdout.
func outputAsJSON(cmd *cobra.Command, v interface{}) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputError prints an error to w, ensuring no API keys are leaked.
func outputError(w io.Writer, err error) {
	printError(w, "Error: %s", scrubSensitiveData(err.Error()))
}

// rememberSecrets registers values that must never be printed.
func rememberSecrets(values ...string) {
	secretsMu.Lock()
	defer secretsMu.Unlock()
	for _, v := range values {
		if v != "" {
			secrets = append(secrets, v)
		}
	}
}

// scrubSensitiveData removes loaded API keys from a message.
func scrubSensitiveData(msg string) string {
	secretsMu.Lock()
	defer secretsMu.Unlock()
	for _, s := range secrets {
		msg = strings.ReplaceAll(msg, s, "[REDACTED]")
	}
	return msg
}

// statsMarkdown renders the per-kind counters of a run as a markdown table.
func statsMarkdown(report copier.Report) string {
	var b strings.Builder
	b.WriteString("| Entity | Created | Updated | Errors |\n")
	b.WriteString("|--------|--------:|--------:|-------:|\n")
	for _, kr := range report.Kinds {
		name := kr.Kind.String()
		if kr.Err != nil {
			name += " (aborted)"
		}
		fmt.Fprintf(&b, "| %s | %d | %d | %d |\n", name, kr.Stats.Created, kr.Stats.Updated, kr.Stats.Errors)
	}
	fmt.Fprintf(&b, "| **Total** | **%d** | **%d** | **%d** |\n",
		report.Summary.Created, report.Summary.Updated, report.Summary.Errors)
	return b.String()
}

// copyResult is the JSON form of a finished copy run.
type copyResult struct {
	RunID     string                                      `json:"run_id,omitempty"`
	DryRun    bool                                        `json:"dry_run"`
	Snapshot  string                                      `json:"snapshot,omitempty"`
	Stats     map[stripemirror.Kind]stripemirror.Counters `json:"stats"`
	Summary   stripemirror.Counters                       `json:"summary"`
	Aborted   map[stripemirror.Kind]string                `json:"aborted,omitempty"`
	Cancelled bool                                        `json:"cancelled,omitempty"`
}

func newCopyResult(report copier.Report, runID, snapshot string, dryRun bool) copyResult {
	res := copyResult{
		RunID:     runID,
		DryRun:    dryRun,
		Snapshot:  snapshot,
		Stats:     make(map[stripemirror.Kind]stripemirror.Counters, len(report.Kinds)),
		Summary:   report.Summary,
		Cancelled: report.Cancelled,
	}
	for _, kr := range report.Kinds {
		res.Stats[kr.Kind] = kr.Stats
	}
	for _, f := range report.Failures {
		if res.Aborted == nil {
			res.Aborted = map[stripemirror.Kind]string{}
		}
		res.Aborted[f.Kind] = scrubSensitiveData(f.Err.Error())
	}
	return res
}
