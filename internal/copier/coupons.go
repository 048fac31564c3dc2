package copier

import (
	"fmt"

	"github.com/hyperengineering/stripemirror"
	"github.com/sirupsen/logrus"
	"github.com/stripe/stripe-go/v81"
)

// couponIDPrefix keeps copied coupons apart from coupons created by hand in
// the test account.
const couponIDPrefix = "test_"

type coupons struct {
	mapper *stripemirror.Mapper
	log    logrus.FieldLogger
}

func (coupons) kind() stripemirror.Kind { return stripemirror.KindCoupons }
func (coupons) supportsUpdate() bool { return true }

func (coupons) listExpand() []string { return []string{"data.applies_to"} }

func (v coupons) createParams(src Coupon) (stripe.ParamsContainer, error) {
	p := &stripe.CouponParams{
		Params:           withMetadata(src.Metadata),
		ID:               stripe.String(couponIDPrefix + src.ID),
		Duration:         nonEmpty(&src.Duration),
		DurationInMonths: src.DurationInMonths,
		Name:             nonEmpty(src.Name),
		MaxRedemptions:   src.MaxRedemptions,
		RedeemBy:         src.RedeemBy,
	}

	switch {
	case src.PercentOff != nil:
		p.PercentOff = src.PercentOff
	case src.AmountOff != nil:
		if src.Currency == nil || *src.Currency == "" {
			return nil, fmt.Errorf("coupon %s has amount_off without currency", src.ID)
		}
		p.AmountOff = src.AmountOff
		p.Currency = src.Currency
	default:
		return nil, fmt.Errorf("coupon %s has neither percent_off nor amount_off", src.ID)
	}

	if src.AppliesTo != nil && len(src.AppliesTo.Products) > 0 {
		var mapped []*string
		for _, prodID := range src.AppliesTo.Products {
			testID, ok := v.mapper.TestID(stripemirror.KindProducts, prodID)
			if !ok {
				v.log.WithFields(logrus.Fields{"kind": stripemirror.KindCoupons, "prod_id": src.ID, "product": prodID}).
					Warn("coupon product not mapped, dropped from applies_to")
				continue
			}
			mapped = append(mapped, stripe.String(testID))
		}
		if len(mapped) > 0 {
			p.AppliesTo = &stripe.CouponAppliesToParams{Products: mapped}
		}
	}

	return p, nil
}

func (coupons) updateParams(src Coupon) (stripe.ParamsContainer, error) {
	return &stripe.CouponParams{
		Params: withMetadata(src.Metadata.tagged(src.ID)),
		Name:   src.Name,
	}, nil
}

func (coupons) findMatch(src Coupon, dst []Coupon) (Coupon, bool) {
	if d, ok := matchOrigin(src.ID, dst); ok {
		return d, true
	}

	want := couponIDPrefix + src.ID
	for _, d := range dst {
		if d.ID == want {
			return d, true
		}
	}

	if src.Name == nil || *src.Name == "" {
		return Coupon{}, false
	}
	for _, d := range dst {
		if d.Name != nil && *d.Name == *src.Name && claimable(d, src.ID) {
			return d, true
		}
	}
	return Coupon{}, false
}
