package stripemirror

import "strings"

// Kind identifies a Stripe resource type handled by the copier.
// The string value doubles as the REST collection name and the key used in
// mapping snapshots.
type Kind string

const (
	KindTaxRates Kind = "tax_rates"
	KindProducts Kind = "products"
	KindPrices   Kind = "prices"
	KindCoupons  Kind = "coupons"
)

// AllKinds returns every supported kind in dependency order.
// Prices and coupons reference products, so products come first.
func AllKinds() []Kind {
	return []Kind{KindTaxRates, KindProducts, KindPrices, KindCoupons}
}

// Valid reports whether k is one of the supported kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindTaxRates, KindProducts, KindPrices, KindCoupons:
		return true
	}
	return false
}

func (k Kind) String() string { return string(k) }

// ParseKinds parses a comma-separated kind list.
// Recognised kinds are returned deduplicated and in dependency order;
// unrecognised names are returned separately so callers can warn about them.
func ParseKinds(csv string) (kinds []Kind, unknown []string) {
	requested := make(map[Kind]bool)
	for _, part := range strings.Split(csv, ",") {
		name := strings.TrimSpace(part)
		if name == "" {
			continue
		}
		k := Kind(name)
		if !k.Valid() {
			unknown = append(unknown, name)
			continue
		}
		requested[k] = true
	}

	for _, k := range AllKinds() {
		if requested[k] {
			kinds = append(kinds, k)
		}
	}
	return kinds, unknown
}

// Account selects one of the two Stripe accounts.
type Account int

const (
	// Production is the source account. It is never written to.
	Production Account = iota
	// Test is the destination account.
	Test
)

func (a Account) String() string {
	switch a {
	case Production:
		return "production"
	case Test:
		return "test"
	}
	return "unknown"
}

// Stat names a per-kind counter.
type Stat string

const (
	StatCreated Stat = "created"
	StatUpdated Stat = "updated"
	StatErrors  Stat = "errors"
)

// Counters holds the outcome counts for one kind, or totals across kinds.
type Counters struct {
	Created int `json:"created"`
	Updated int `json:"updated"`
	Errors  int `json:"errors"`
}

// Add returns the element-wise sum of c and o.
func (c Counters) Add(o Counters) Counters {
	return Counters{
		Created: c.Created + o.Created,
		Updated: c.Updated + o.Updated,
		Errors:  c.Errors + o.Errors,
	}
}

// OriginKey is the metadata key stamped on every test entity with the id of
// the production entity it was copied from.
const OriginKey = "prod_id"
