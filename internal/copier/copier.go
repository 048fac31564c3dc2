package copier

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/hyperengineering/stripemirror"
	"github.com/sirupsen/logrus"
	"github.com/stripe/stripe-go/v81"
)

// Gateway abstracts the remote Stripe store.
// Implementations must refuse writes to stripemirror.Production with
// stripemirror.ErrForbiddenWrite.
type Gateway interface {
	// List returns every record of kind, paginating transparently. expand
	// names nested fields to return in full (e.g. "data.tiers").
	List(ctx context.Context, kind stripemirror.Kind, account stripemirror.Account, expand []string) ([]json.RawMessage, error)

	// Create creates a record and returns it.
	Create(ctx context.Context, kind stripemirror.Kind, account stripemirror.Account, params stripe.ParamsContainer) (json.RawMessage, error)

	// Update modifies record id and returns it.
	Update(ctx context.Context, kind stripemirror.Kind, id string, account stripemirror.Account, params stripe.ParamsContainer) (json.RawMessage, error)

	// Retrieve fetches one record.
	Retrieve(ctx context.Context, kind stripemirror.Kind, id string, account stripemirror.Account) (json.RawMessage, error)
}

// Outcome is what happened to one source record.
type Outcome string

const (
	OutcomeCreated Outcome = "created"
	OutcomeUpdated Outcome = "updated"
	// OutcomeUntouched means a match was found for a kind that cannot be
	// updated. No write happens and no counter moves.
	OutcomeUntouched Outcome = "untouched"
	OutcomeFailed    Outcome = "failed"
)

// Event reports the processing of one source record.
type Event struct {
	Kind   stripemirror.Kind
	ProdID string
	TestID string
	Action Outcome
	Err    error
}

// Observer receives an Event per processed source record.
type Observer interface {
	Observe(Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Event)

func (f ObserverFunc) Observe(e Event) { f(e) }

// Copier copies one kind at a time from production to test.
type Copier struct {
	gw       Gateway
	mapper   *stripemirror.Mapper
	log      logrus.FieldLogger
	observer Observer
}

// New creates a copier. A nil log discards log output.
func New(gw Gateway, mapper *stripemirror.Mapper, log logrus.FieldLogger) *Copier {
	if log == nil {
		discard := logrus.New()
		discard.SetOutput(io.Discard)
		log = discard
	}
	return &Copier{gw: gw, mapper: mapper, log: log}
}

// WithObserver registers an observer for per-record events.
func (c *Copier) WithObserver(o Observer) *Copier {
	c.observer = o
	return c
}

// Copy synchronises every record of kind and returns the kind's counters.
// An error is returned only when the kind could not be processed at all
// (listing failed or the context was cancelled); per-record failures are
// counted, logged and skipped.
func (c *Copier) Copy(ctx context.Context, kind stripemirror.Kind) (stripemirror.Counters, error) {
	var err error
	switch kind {
	case stripemirror.KindTaxRates:
		err = copyKind[TaxRate](ctx, c, taxRates{})
	case stripemirror.KindProducts:
		err = copyKind[Product](ctx, c, products{})
	case stripemirror.KindPrices:
		err = copyKind[Price](ctx, c, prices{mapper: c.mapper})
	case stripemirror.KindCoupons:
		err = copyKind[Coupon](ctx, c, coupons{mapper: c.mapper, log: c.log})
	default:
		return stripemirror.Counters{}, fmt.Errorf("copy %q: %w", kind, stripemirror.ErrUnknownResourceKind)
	}
	return c.mapper.KindStats(kind), err
}

// variant is the per-kind behaviour plugged into copyKind. The set of
// variants is closed: one per stripemirror.Kind.
type variant[T entity] interface {
	kind() stripemirror.Kind

	// supportsUpdate reports whether a matched record is updated in place.
	supportsUpdate() bool

	// listExpand names the nested list fields Stripe must return in full.
	listExpand() []string

	createParams(src T) (stripe.ParamsContainer, error)
	updateParams(src T) (stripe.ParamsContainer, error)

	// findMatch locates the test record corresponding to src.
	findMatch(src T, dst []T) (T, bool)
}

func copyKind[T entity](ctx context.Context, c *Copier, v variant[T]) error {
	kind := v.kind()
	log := c.log.WithField("kind", kind)

	log.Info("fetching from production")
	src, err := list[T](ctx, c.gw, kind, stripemirror.Production, v.listExpand())
	if err != nil {
		return fmt.Errorf("list %s from production: %w", kind, err)
	}
	log.Infof("%d %s found in production", len(src), kind)

	// The destination is listed once; records created below are not added
	// back, so matching always runs against the pre-run state.
	dst, err := list[T](ctx, c.gw, kind, stripemirror.Test, v.listExpand())
	if err != nil {
		return fmt.Errorf("list %s from test: %w", kind, err)
	}

	if len(src) == 0 {
		log.Infof("no %s to copy", kind)
		return nil
	}

	for _, s := range src {
		if err := ctx.Err(); err != nil {
			return err
		}

		testID, outcome, err := copyOne(ctx, c, v, s, dst)
		rlog := log.WithField("prod_id", s.EntityID())
		switch {
		case err != nil:
			outcome = OutcomeFailed
			c.mapper.IncrementStat(kind, stripemirror.StatErrors)
			// The observer reports the failure to the user.
			rlog.WithError(err).Debug("copy failed")
		case outcome == OutcomeCreated:
			c.mapper.IncrementStat(kind, stripemirror.StatCreated)
		case outcome == OutcomeUpdated:
			c.mapper.IncrementStat(kind, stripemirror.StatUpdated)
		case outcome == OutcomeUntouched:
			rlog.WithField("test_id", testID).Infof("%s cannot be updated, existing record left untouched", kind)
		}

		if c.observer != nil {
			c.observer.Observe(Event{Kind: kind, ProdID: s.EntityID(), TestID: testID, Action: outcome, Err: err})
		}
	}

	stats := c.mapper.KindStats(kind)
	log.Infof("%s: %d created, %d updated, %d errors", kind, stats.Created, stats.Updated, stats.Errors)
	return nil
}

func copyOne[T entity](ctx context.Context, c *Copier, v variant[T], s T, dst []T) (string, Outcome, error) {
	kind := v.kind()

	if match, ok := v.findMatch(s, dst); ok {
		if !v.supportsUpdate() {
			return match.EntityID(), OutcomeUntouched, nil
		}

		params, err := v.updateParams(s)
		if err != nil {
			return "", "", err
		}
		c.log.WithFields(logrus.Fields{"kind": kind, "prod_id": s.EntityID(), "test_id": match.EntityID()}).Debug("updating")
		if _, err := c.gw.Update(ctx, kind, match.EntityID(), stripemirror.Test, params); err != nil {
			return "", "", err
		}
		if err := c.mapper.AddMapping(kind, s.EntityID(), match.EntityID()); err != nil {
			return "", "", err
		}
		return match.EntityID(), OutcomeUpdated, nil
	}

	params, err := v.createParams(s)
	if err != nil {
		return "", "", err
	}
	tagOrigin(params, s.EntityID())

	c.log.WithFields(logrus.Fields{"kind": kind, "prod_id": s.EntityID()}).Debug("creating")
	raw, err := c.gw.Create(ctx, kind, stripemirror.Test, params)
	if err != nil {
		return "", "", err
	}
	var created struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(raw, &created); err != nil {
		return "", "", fmt.Errorf("decode created %s: %w", kind, err)
	}
	if created.ID == "" {
		return "", "", fmt.Errorf("created %s has no id", kind)
	}
	if err := c.mapper.AddMapping(kind, s.EntityID(), created.ID); err != nil {
		return "", "", err
	}
	return created.ID, OutcomeCreated, nil
}

func list[T entity](ctx context.Context, gw Gateway, kind stripemirror.Kind, account stripemirror.Account, expand []string) ([]T, error) {
	raws, err := gw.List(ctx, kind, account, expand)
	if err != nil {
		return nil, err
	}
	return decodeAll[T](raws)
}

// matchOrigin returns the first record tagged with src's id.
func matchOrigin[T entity](srcID string, dst []T) (T, bool) {
	var zero T
	if srcID == "" {
		return zero, false
	}
	for _, d := range dst {
		if d.EntityMetadata().Origin() == srcID {
			return d, true
		}
	}
	return zero, false
}

// claimable reports whether d may be matched to srcID by a weak rule such as
// name equality: it must not already carry another origin tag.
func claimable(d entity, srcID string) bool {
	origin := d.EntityMetadata().Origin()
	return origin == "" || origin == srcID
}
