package copier

import (
	"github.com/hyperengineering/stripemirror"
	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v81"
)

// percentageTolerance is the absolute difference under which two tax-rate
// percentages are considered equal.
var percentageTolerance = decimal.RequireFromString("0.01")

type taxRates struct{}

func (taxRates) kind() stripemirror.Kind { return stripemirror.KindTaxRates }
func (taxRates) supportsUpdate() bool { return true }
func (taxRates) listExpand() []string { return nil }

func (taxRates) createParams(src TaxRate) (stripe.ParamsContainer, error) {
	return &stripe.TaxRateParams{
		Params:       withMetadata(src.Metadata),
		DisplayName:  stripe.String(src.DisplayName),
		Inclusive:    stripe.Bool(src.Inclusive),
		Percentage:   float64Of(src.Percentage),
		Description:  nonEmpty(src.Description),
		Jurisdiction: nonEmpty(src.Jurisdiction),
		Country:      nonEmpty(src.Country),
		State:        nonEmpty(src.State),
	}, nil
}

// updateParams: Stripe only allows description, display name and metadata
// to change once a tax rate exists.
func (taxRates) updateParams(src TaxRate) (stripe.ParamsContainer, error) {
	return &stripe.TaxRateParams{
		Params:      withMetadata(src.Metadata.tagged(src.ID)),
		Description: src.Description,
		DisplayName: stripe.String(src.DisplayName),
	}, nil
}

// findMatch tries the origin tag first, then the
// (display name, percentage, jurisdiction) triple. A record tagged for another
// production tax rate never matches by triple.
func (taxRates) findMatch(src TaxRate, dst []TaxRate) (TaxRate, bool) {
	if d, ok := matchOrigin(src.ID, dst); ok {
		return d, true
	}

	for _, d := range dst {
		if !claimable(d, src.ID) || d.DisplayName != src.DisplayName {
			continue
		}
		if d.Percentage.Sub(src.Percentage).Abs().GreaterThanOrEqual(percentageTolerance) {
			continue
		}
		if !sameString(d.Jurisdiction, src.Jurisdiction) {
			continue
		}
		return d, true
	}
	return TaxRate{}, false
}

// nonEmpty returns s unless it points at an empty string.
func nonEmpty(s *string) *string {
	if s == nil || *s == "" {
		return nil
	}
	return s
}

// sameString compares two optional strings; two absent values are equal.
func sameString(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// presentInt64 reports whether both values are set and equal.
func presentInt64(a, b *int64) bool {
	return a != nil && b != nil && *a == *b
}
