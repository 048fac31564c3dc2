package copier

import (
	"context"
	"errors"
	"io"

	"github.com/hyperengineering/stripemirror"
	"github.com/sirupsen/logrus"
)

// KindReport is the result of copying one kind.
type KindReport struct {
	Kind  stripemirror.Kind     `json:"kind"`
	Stats stripemirror.Counters `json:"stats"`
	// Err is set when the kind was aborted before or during its record loop.
	Err error `json:"-"`
}

// KindFailure names a kind that could not be processed.
type KindFailure struct {
	Kind stripemirror.Kind
	Err  error
}

// Report summarises a run.
type Report struct {
	Kinds     []KindReport
	Summary   stripemirror.Counters
	Failures  []KindFailure
	Cancelled bool
}

// OK reports whether every record was copied without error and no kind was
// aborted.
func (r Report) OK() bool {
	return r.Summary.Errors == 0 && len(r.Failures) == 0
}

// Orchestrator runs kinds in dependency order.
type Orchestrator struct {
	copier *Copier
	log    logrus.FieldLogger
}

// NewOrchestrator creates an orchestrator around c.
func NewOrchestrator(c *Copier, log logrus.FieldLogger) *Orchestrator {
	if log == nil {
		discard := logrus.New()
		discard.SetOutput(io.Discard)
		log = discard
	}
	return &Orchestrator{copier: c, log: log}
}

// Run copies the requested kinds. Kinds always run in dependency order
// (tax rates, products, prices, coupons) so references can be resolved;
// duplicates and unknown kinds are ignored. A kind that fails to list is
// recorded in Report.Failures and the run moves on to the next kind.
// Cancellation stops the run between records and between kinds.
func (o *Orchestrator) Run(ctx context.Context, kinds []stripemirror.Kind) Report {
	want := make(map[stripemirror.Kind]bool, len(kinds))
	for _, k := range kinds {
		want[k] = true
	}

	var report Report
	for _, kind := range stripemirror.AllKinds() {
		if !want[kind] {
			continue
		}
		if ctx.Err() != nil {
			report.Cancelled = true
			break
		}

		o.log.WithField("kind", kind).Infof("copying %s", kind)
		stats, err := o.copier.Copy(ctx, kind)
		report.Kinds = append(report.Kinds, KindReport{Kind: kind, Stats: stats, Err: err})
		report.Summary = report.Summary.Add(stats)

		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				report.Cancelled = true
				break
			}
			o.log.WithField("kind", kind).WithError(err).Debug("kind aborted")
			report.Failures = append(report.Failures, KindFailure{Kind: kind, Err: err})
		}
	}
	return report
}
