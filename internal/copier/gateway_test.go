package copier

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/hyperengineering/stripemirror"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/form"
)

// writeCall records one Create or Update received by fakeGateway, with the
// params as they would be sent on the wire.
type writeCall struct {
	Kind   stripemirror.Kind
	ID     string
	Params url.Values
}

// fakeGateway is an in-memory Stripe with one record list per account and kind.
// Created records are appended to the test account so a second run sees them.
type fakeGateway struct {
	mu      sync.Mutex
	records map[stripemirror.Account]map[stripemirror.Kind][]json.RawMessage
	listErr map[stripemirror.Kind]error
	expand  map[stripemirror.Kind][]string
	creates []writeCall
	updates []writeCall
	nextID  int
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		records: map[stripemirror.Account]map[stripemirror.Kind][]json.RawMessage{
			stripemirror.Production: {},
			stripemirror.Test:       {},
		},
		listErr: map[stripemirror.Kind]error{},
		expand:  map[stripemirror.Kind][]string{},
	}
}

// seed adds records (any JSON-encodable values) to an account.
func (g *fakeGateway) seed(t *testing.T, account stripemirror.Account, kind stripemirror.Kind, recs ...any) {
	t.Helper()
	for _, r := range recs {
		raw, err := json.Marshal(r)
		if err != nil {
			t.Fatalf("seed: %v", err)
		}
		g.records[account][kind] = append(g.records[account][kind], raw)
	}
}

func (g *fakeGateway) List(_ context.Context, kind stripemirror.Kind, account stripemirror.Account, expand []string) ([]json.RawMessage, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if err := g.listErr[kind]; err != nil {
		return nil, err
	}
	g.expand[kind] = expand
	out := make([]json.RawMessage, len(g.records[account][kind]))
	copy(out, g.records[account][kind])
	return out, nil
}

func (g *fakeGateway) Create(_ context.Context, kind stripemirror.Kind, account stripemirror.Account, params stripe.ParamsContainer) (json.RawMessage, error) {
	if account == stripemirror.Production {
		return nil, stripemirror.ErrForbiddenWrite
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	vals := encode(params)
	g.creates = append(g.creates, writeCall{Kind: kind, Params: vals})

	id := vals.Get("id")
	if id == "" {
		g.nextID++
		id = fmt.Sprintf("test_%s_%d", kind, g.nextID)
	}
	raw, err := storedRecord(id, vals)
	if err != nil {
		return nil, err
	}
	g.records[stripemirror.Test][kind] = append(g.records[stripemirror.Test][kind], raw)
	return raw, nil
}

func (g *fakeGateway) Update(_ context.Context, kind stripemirror.Kind, id string, account stripemirror.Account, params stripe.ParamsContainer) (json.RawMessage, error) {
	if account == stripemirror.Production {
		return nil, stripemirror.ErrForbiddenWrite
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	vals := encode(params)
	g.updates = append(g.updates, writeCall{Kind: kind, ID: id, Params: vals})
	return storedRecord(id, vals)
}

func (g *fakeGateway) Retrieve(_ context.Context, kind stripemirror.Kind, id string, account stripemirror.Account) (json.RawMessage, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	for _, raw := range g.records[account][kind] {
		var head struct {
			ID string `json:"id"`
		}
		if err := json.Unmarshal(raw, &head); err == nil && head.ID == id {
			return raw, nil
		}
	}
	return nil, &stripemirror.APIError{Operation: "retrieve_" + kind.String(), StatusCode: 404, Message: "No such " + kind.String()}
}

func encode(params stripe.ParamsContainer) url.Values {
	vals := &form.Values{}
	form.AppendTo(vals, params)
	return vals.ToValues()
}

// storedRecord keeps what matching needs from a write: the id, the name and
// the metadata.
func storedRecord(id string, vals url.Values) (json.RawMessage, error) {
	rec := map[string]any{"id": id}
	if name := vals.Get("name"); name != "" {
		rec["name"] = name
	}
	if md := metadataOf(vals); len(md) > 0 {
		rec["metadata"] = md
	}
	return json.Marshal(rec)
}

// fields returns the params as they would be form-encoded.
func fields(t *testing.T, params stripe.ParamsContainer) url.Values {
	t.Helper()
	return encode(params)
}

// metadataOf extracts the metadata[key] entries of encoded params.
func metadataOf(vals url.Values) map[string]string {
	md := map[string]string{}
	for k := range vals {
		if key, ok := strings.CutPrefix(k, "metadata["); ok {
			md[strings.TrimSuffix(key, "]")] = vals.Get(k)
		}
	}
	return md
}

// numberIs reports whether the encoded value of key equals want, ignoring
// formatting.
func numberIs(vals url.Values, key, want string) bool {
	got, err := decimal.NewFromString(vals.Get(key))
	if err != nil {
		return false
	}
	return got.Equal(decimal.RequireFromString(want))
}

func decodeInto(s string, v any) error {
	return json.Unmarshal([]byte(s), v)
}

func discardLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func strPtr(s string) *string { return &s }
func int64Ptr(n int64) *int64 { return &n }
func floatPtr(f float64) *float64 { return &f }
func boolPtr(b bool) *bool { return &b }
