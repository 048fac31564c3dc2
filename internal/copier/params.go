package copier

import (
	"github.com/hyperengineering/stripemirror"
	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v81"
)

// withMetadata returns request params carrying a copy of md.
func withMetadata(md Metadata) stripe.Params {
	return stripe.Params{Metadata: md.Clone()}
}

// tagOrigin stamps the production id on outgoing params.
func tagOrigin(p stripe.ParamsContainer, prodID string) {
	p.GetParams().AddMetadata(stripemirror.OriginKey, prodID)
}

// float64Of converts an exact decimal to the float the SDK sends.
func float64Of(d decimal.Decimal) *float64 {
	return stripe.Float64(d.InexactFloat64())
}
