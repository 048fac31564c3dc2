package main

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/hyperengineering/stripemirror"
	"github.com/hyperengineering/stripemirror/internal/copier"
)

const progressClearPad = 5

// progress is a copier.Observer that keeps one status line per kind.
// In a terminal the line is redrawn in place; otherwise only the final
// line of each kind is printed.
type progress struct {
	mu       sync.Mutex
	w        io.Writer
	live     bool
	frames   []string
	tick     int
	kind     stripemirror.Kind
	counts   map[copier.Outcome]int
	clearLen int
}

func newProgress(w io.Writer, live bool) *progress {
	return &progress{
		w:      w,
		live:   live,
		frames: []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"},
		counts: map[copier.Outcome]int{},
	}
}

func (p *progress) Observe(e copier.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if e.Kind != p.kind {
		p.finishLocked()
		p.kind = e.Kind
		p.counts = map[copier.Outcome]int{}
	}
	p.counts[e.Action]++

	if e.Action == copier.OutcomeFailed {
		p.clearLocked()
		printError(p.w, "%s %s: %s", e.Kind, e.ProdID, scrubSensitiveData(errString(e.Err)))
	}

	if p.live {
		spinnerStyle := lipgloss.NewStyle().Foreground(colorPrimary)
		frame := p.frames[p.tick%len(p.frames)]
		p.tick++
		line := p.statusLocked()
		p.clearLen = len(line) + 2
		fmt.Fprintf(p.w, "\r%s %s", spinnerStyle.Render(frame), line)
	}
}

// Done terminates the current line.
func (p *progress) Done() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.finishLocked()
	p.kind = ""
}

func (p *progress) finishLocked() {
	if p.kind == "" {
		return
	}
	p.clearLocked()
	printMuted(p.w, "  %s", p.statusLocked())
}

func (p *progress) clearLocked() {
	if p.live && p.clearLen > 0 {
		fmt.Fprint(p.w, "\r"+strings.Repeat(" ", p.clearLen+progressClearPad)+"\r")
		p.clearLen = 0
	}
}

func (p *progress) statusLocked() string {
	total := 0
	for _, n := range p.counts {
		total += n
	}
	return fmt.Sprintf("%s: %d processed (%d created, %d updated, %d unchanged, %d errors)",
		p.kind, total,
		p.counts[copier.OutcomeCreated], p.counts[copier.OutcomeUpdated],
		p.counts[copier.OutcomeUntouched], p.counts[copier.OutcomeFailed])
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// observers fans events out to several observers.
type observers []copier.Observer

func (o observers) Observe(e copier.Event) {
	for _, obs := range o {
		if obs != nil {
			obs.Observe(e)
		}
	}
}
