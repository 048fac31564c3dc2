package copier

import (
	"errors"

	"github.com/hyperengineering/stripemirror"
	"github.com/stripe/stripe-go/v81"
)

type products struct{}

func (products) kind() stripemirror.Kind { return stripemirror.KindProducts }
func (products) supportsUpdate() bool { return true }
func (products) listExpand() []string { return nil }

func (products) createParams(src Product) (stripe.ParamsContainer, error) {
	if src.Name == "" {
		return nil, errors.New("product has no name")
	}
	return productParams(src, src.Metadata), nil
}

func (products) updateParams(src Product) (stripe.ParamsContainer, error) {
	return productParams(src, src.Metadata.tagged(src.ID)), nil
}

func productParams(src Product, md Metadata) *stripe.ProductParams {
	p := &stripe.ProductParams{
		Params:              withMetadata(md),
		Name:                nonEmpty(&src.Name),
		Description:         nonEmpty(src.Description),
		Active:              src.Active,
		StatementDescriptor: nonEmpty(src.StatementDescriptor),
		UnitLabel:           nonEmpty(src.UnitLabel),
		URL:                 nonEmpty(src.URL),
		Shippable:           src.Shippable,
	}
	if len(src.Images) > 0 {
		p.Images = stripe.StringSlice(src.Images)
	}
	for _, f := range src.MarketingFeatures {
		if f.Name != "" {
			p.MarketingFeatures = append(p.MarketingFeatures, &stripe.ProductMarketingFeatureParams{Name: stripe.String(f.Name)})
		}
	}
	if src.TaxCode != nil && *src.TaxCode != "" {
		p.TaxCode = stripe.String(string(*src.TaxCode))
	}
	return p
}

func (products) findMatch(src Product, dst []Product) (Product, bool) {
	if d, ok := matchOrigin(src.ID, dst); ok {
		return d, true
	}
	for _, d := range dst {
		if d.Name == src.Name && claimable(d, src.ID) {
			return d, true
		}
	}
	return Product{}, false
}
