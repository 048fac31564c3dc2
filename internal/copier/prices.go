package copier

import (
	"fmt"

	"github.com/hyperengineering/stripemirror"
	"github.com/stripe/stripe-go/v81"
)

const billingTiered = "tiered"

type prices struct {
	mapper *stripemirror.Mapper
}

func (prices) kind() stripemirror.Kind { return stripemirror.KindPrices }

// supportsUpdate is false: a price's amount, currency and product are fixed
// once created.
func (prices) supportsUpdate() bool { return false }

func (prices) listExpand() []string { return []string{"data.tiers"} }

func (v prices) createParams(src Price) (stripe.ParamsContainer, error) {
	if src.Currency == "" {
		return nil, fmt.Errorf("price %s has no currency", src.ID)
	}
	product, ok := v.mapper.TestID(stripemirror.KindProducts, string(src.Product))
	if !ok {
		return nil, fmt.Errorf("price %s: product %s not mapped: %w", src.ID, src.Product, stripemirror.ErrMissingDependency)
	}

	p := &stripe.PriceParams{
		Params:        withMetadata(src.Metadata),
		Currency:      stripe.String(src.Currency),
		Product:       stripe.String(product),
		BillingScheme: nonEmpty(src.BillingScheme),
		Active:        src.Active,
		Nickname:      nonEmpty(src.Nickname),
		LookupKey:     nonEmpty(src.LookupKey),
		TaxBehavior:   nonEmpty(src.TaxBehavior),
	}

	if src.UnitAmountDecimal != nil {
		p.UnitAmountDecimal = float64Of(*src.UnitAmountDecimal)
	} else if src.UnitAmount != nil {
		p.UnitAmount = stripe.Int64(*src.UnitAmount)
	}

	if r := src.Recurring; r != nil {
		p.Recurring = &stripe.PriceRecurringParams{
			Interval:        stripe.String(r.Interval),
			IntervalCount:   r.IntervalCount,
			UsageType:       nonEmpty(r.UsageType),
			TrialPeriodDays: r.TrialPeriodDays,
		}
	}

	if q := src.TransformQuantity; q != nil {
		p.TransformQuantity = &stripe.PriceTransformQuantityParams{
			DivideBy: stripe.Int64(q.DivideBy),
			Round:    stripe.String(q.Round),
		}
	}

	if src.BillingScheme != nil && *src.BillingScheme == billingTiered {
		// Tiered prices carry their amounts in the tiers.
		p.UnitAmount, p.UnitAmountDecimal = nil, nil
		for _, t := range src.Tiers {
			tier := &stripe.PriceTierParams{UnitAmount: t.UnitAmount, FlatAmount: t.FlatAmount}
			if t.UpTo == nil {
				tier.UpToInf = stripe.Bool(true)
			} else {
				tier.UpTo = stripe.Int64(*t.UpTo)
			}
			p.Tiers = append(p.Tiers, tier)
		}
		p.TiersMode = nonEmpty(src.TiersMode)
	}

	return p, nil
}

// updateParams holds the few fields Stripe lets a price change. The engine
// never calls it because supportsUpdate is false.
func (prices) updateParams(src Price) (stripe.ParamsContainer, error) {
	return &stripe.PriceParams{
		Params:   withMetadata(src.Metadata.tagged(src.ID)),
		Active:   src.Active,
		Nickname: src.Nickname,
	}, nil
}

// findMatch tries the origin tag, then the lookup key, then the structural
// rule. A lookup key is unique within an account, so a record holding it is
// the match whatever its tag says.
func (v prices) findMatch(src Price, dst []Price) (Price, bool) {
	if d, ok := matchOrigin(src.ID, dst); ok {
		return d, true
	}

	if key := nonEmpty(src.LookupKey); key != nil {
		for _, d := range dst {
			if d.LookupKey != nil && *d.LookupKey == *key {
				return d, true
			}
		}
	}

	product, ok := v.mapper.TestID(stripemirror.KindProducts, string(src.Product))
	if !ok {
		return Price{}, false
	}
	for _, d := range dst {
		if sameShape(src, d, product) {
			return d, true
		}
	}
	return Price{}, false
}

// sameShape reports whether d belongs to product and bills like src.
// Attributes missing from d never compare equal.
func sameShape(src, d Price, product string) bool {
	if string(d.Product) != product || d.Currency == "" || d.Currency != src.Currency {
		return false
	}
	if src.UnitAmount != nil && !presentInt64(src.UnitAmount, d.UnitAmount) {
		return false
	}
	if (src.Recurring == nil) != (d.Recurring == nil) {
		return false
	}
	if src.Recurring != nil {
		if d.Recurring.Interval == "" || d.Recurring.Interval != src.Recurring.Interval {
			return false
		}
		if src.Recurring.IntervalCount != nil && !presentInt64(src.Recurring.IntervalCount, d.Recurring.IntervalCount) {
			return false
		}
	}
	return true
}
