package stripemirror_test

import (
	"reflect"
	"testing"

	"github.com/hyperengineering/stripemirror"
)

func TestParseKinds(t *testing.T) {
	tests := []struct {
		name        string
		csv         string
		wantKinds   []stripemirror.Kind
		wantUnknown []string
	}{
		{"all", "tax_rates,products,prices,coupons", stripemirror.AllKinds(), nil},
		{"reordered", "coupons, prices ,products", []stripemirror.Kind{stripemirror.KindProducts, stripemirror.KindPrices, stripemirror.KindCoupons}, nil},
		{"duplicates", "products,products", []stripemirror.Kind{stripemirror.KindProducts}, nil},
		{"unknown", "products,customers,invoices", []stripemirror.Kind{stripemirror.KindProducts}, []string{"customers", "invoices"}},
		{"only unknown", "plans", nil, []string{"plans"}},
		{"empty", " , ", nil, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kinds, unknown := stripemirror.ParseKinds(tt.csv)
			if !reflect.DeepEqual(kinds, tt.wantKinds) {
				t.Errorf("kinds = %v, want %v", kinds, tt.wantKinds)
			}
			if !reflect.DeepEqual(unknown, tt.wantUnknown) {
				t.Errorf("unknown = %v, want %v", unknown, tt.wantUnknown)
			}
		})
	}
}

func TestKind_Valid(t *testing.T) {
	for _, k := range stripemirror.AllKinds() {
		if !k.Valid() {
			t.Errorf("%s.Valid() = false", k)
		}
	}
	if stripemirror.Kind("customers").Valid() {
		t.Error("customers.Valid() = true")
	}
}

func TestAccount_String(t *testing.T) {
	if stripemirror.Production.String() != "production" || stripemirror.Test.String() != "test" {
		t.Errorf("got %s/%s", stripemirror.Production, stripemirror.Test)
	}
	if stripemirror.Account(9).String() != "unknown" {
		t.Error("unexpected name for out-of-range account")
	}
}

func TestCounters_Add(t *testing.T) {
	a := stripemirror.Counters{Created: 1, Updated: 2, Errors: 3}
	b := stripemirror.Counters{Created: 10, Errors: 1}
	want := stripemirror.Counters{Created: 11, Updated: 2, Errors: 4}
	if got := a.Add(b); got != want {
		t.Errorf("Add() = %+v, want %+v", got, want)
	}
}
