package copier

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/hyperengineering/stripemirror"
	"github.com/shopspring/decimal"
)

// Metadata is Stripe's free-form string map.
type Metadata map[string]string

// Origin returns the production id stamped on a test entity, if any.
func (m Metadata) Origin() string {
	return m[stripemirror.OriginKey]
}

// Clone returns a copy that is safe to modify. A nil map clones to nil.
func (m Metadata) Clone() Metadata {
	if m == nil {
		return nil
	}
	out := make(Metadata, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// tagged returns a copy of m carrying the origin tag for prodID.
func (m Metadata) tagged(prodID string) Metadata {
	out := m.Clone()
	if out == nil {
		out = Metadata{}
	}
	out[stripemirror.OriginKey] = prodID
	return out
}

// ExpandableID is a reference that Stripe returns either as a bare id string
// or, when expanded, as an object with an "id" field.
type ExpandableID string

func (e *ExpandableID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*e = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*e = ExpandableID(s)
		return nil
	}
	var obj struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("expandable id: %w", err)
	}
	*e = ExpandableID(obj.ID)
	return nil
}

// entity is what the engine needs from every record type.
type entity interface {
	EntityID() string
	EntityMetadata() Metadata
}

// TaxRate is a Stripe tax rate.
type TaxRate struct {
	ID           string          `json:"id"`
	DisplayName  string          `json:"display_name"`
	Inclusive    bool            `json:"inclusive"`
	Percentage   decimal.Decimal `json:"percentage"`
	Description  *string         `json:"description"`
	Jurisdiction *string         `json:"jurisdiction"`
	Country      *string         `json:"country"`
	State        *string         `json:"state"`
	Metadata     Metadata        `json:"metadata"`
}

func (t TaxRate) EntityID() string         { return t.ID }
func (t TaxRate) EntityMetadata() Metadata { return t.Metadata }

// Feature is a marketing feature line of a product.
type Feature struct {
	Name string `json:"name"`
}

// Product is a Stripe product.
type Product struct {
	ID                  string        `json:"id"`
	Name                string        `json:"name"`
	Description         *string       `json:"description"`
	Active              *bool         `json:"active"`
	Images              []string      `json:"images"`
	StatementDescriptor *string       `json:"statement_descriptor"`
	UnitLabel           *string       `json:"unit_label"`
	URL                 *string       `json:"url"`
	Shippable           *bool         `json:"shippable"`
	MarketingFeatures   []Feature     `json:"marketing_features"`
	TaxCode             *ExpandableID `json:"tax_code"`
	Metadata            Metadata      `json:"metadata"`
}

func (p Product) EntityID() string         { return p.ID }
func (p Product) EntityMetadata() Metadata { return p.Metadata }

// Recurring describes the billing cycle of a recurring price.
type Recurring struct {
	Interval        string  `json:"interval"`
	IntervalCount   *int64  `json:"interval_count"`
	UsageType       *string `json:"usage_type"`
	TrialPeriodDays *int64  `json:"trial_period_days"`
}

// Tier is one step of a tiered price. A nil UpTo is the open-ended last tier.
type Tier struct {
	UpTo       *int64 `json:"up_to"`
	UnitAmount *int64 `json:"unit_amount"`
	FlatAmount *int64 `json:"flat_amount"`
}

// TransformQuantity divides the reported quantity before billing.
type TransformQuantity struct {
	DivideBy int64  `json:"divide_by"`
	Round    string `json:"round"`
}

// Price is a Stripe price.
type Price struct {
	ID                string             `json:"id"`
	Currency          string             `json:"currency"`
	Product           ExpandableID       `json:"product"`
	UnitAmount        *int64             `json:"unit_amount"`
	UnitAmountDecimal *decimal.Decimal   `json:"unit_amount_decimal"`
	Recurring         *Recurring         `json:"recurring"`
	BillingScheme     *string            `json:"billing_scheme"`
	Tiers             []Tier             `json:"tiers"`
	TiersMode         *string            `json:"tiers_mode"`
	TransformQuantity *TransformQuantity `json:"transform_quantity"`
	Active            *bool              `json:"active"`
	Nickname          *string            `json:"nickname"`
	LookupKey         *string            `json:"lookup_key"`
	TaxBehavior       *string            `json:"tax_behavior"`
	Metadata          Metadata           `json:"metadata"`
}

func (p Price) EntityID() string         { return p.ID }
func (p Price) EntityMetadata() Metadata { return p.Metadata }

// AppliesTo restricts a coupon to a set of products.
type AppliesTo struct {
	Products []string `json:"products"`
}

// Coupon is a Stripe coupon.
type Coupon struct {
	ID               string     `json:"id"`
	Name             *string    `json:"name"`
	PercentOff       *float64   `json:"percent_off"`
	AmountOff        *int64     `json:"amount_off"`
	Currency         *string    `json:"currency"`
	Duration         string     `json:"duration"`
	DurationInMonths *int64     `json:"duration_in_months"`
	MaxRedemptions   *int64     `json:"max_redemptions"`
	RedeemBy         *int64     `json:"redeem_by"`
	AppliesTo        *AppliesTo `json:"applies_to"`
	Metadata         Metadata   `json:"metadata"`
}

func (c Coupon) EntityID() string         { return c.ID }
func (c Coupon) EntityMetadata() Metadata { return c.Metadata }

// decodeAll decodes raw gateway records into typed records.
func decodeAll[T any](raws []json.RawMessage) ([]T, error) {
	out := make([]T, 0, len(raws))
	for i, raw := range raws {
		var rec T
		if err := json.Unmarshal(raw, &rec); err != nil {
			return nil, fmt.Errorf("decode record %d: %w", i, err)
		}
		out = append(out, rec)
	}
	return out, nil
}
