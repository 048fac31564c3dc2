package stripeapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hyperengineering/stripemirror"
	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"
	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/client"
	"github.com/stripe/stripe-go/v81/form"
	"golang.org/x/time/rate"
)

// pageSize is the largest page Stripe's list endpoints accept.
const pageSize = 100

// Client talks to Stripe on behalf of two accounts, one SDK client per
// account over a shared rate-limited backend.
// Production is read-only: Create and Update refuse it before anything else
// happens, dry run or not.
type Client struct {
	apis   map[stripemirror.Account]*client.API
	dryRun bool
	log    logrus.FieldLogger
	newID  func() string
}

// NewClient creates a client from a validated configuration.
func NewClient(cfg stripemirror.Config, log logrus.FieldLogger) *Client {
	if log == nil {
		discard := logrus.New()
		discard.SetOutput(io.Discard)
		log = discard
	}
	limit := cfg.RateLimit
	if limit <= 0 {
		limit = stripemirror.DefaultRateLimit
	}

	backendCfg := &stripe.BackendConfig{
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &limitedTransport{
				next:    http.DefaultTransport,
				limiter: rate.NewLimiter(rate.Limit(limit), 1),
			},
		},
		LeveledLogger:     sdkLogger{log: log},
		MaxNetworkRetries: stripe.Int64(0),
	}
	if base := strings.TrimSuffix(cfg.APIBaseURL, "/"); base != "" {
		backendCfg.URL = stripe.String(base)
	}
	backend := stripe.GetBackendWithConfig(stripe.APIBackend, backendCfg)
	backends := &stripe.Backends{API: backend, Connect: backend, Uploads: backend}

	return &Client{
		apis: map[stripemirror.Account]*client.API{
			stripemirror.Production: client.New(cfg.ProdKey, backends),
			stripemirror.Test:       client.New(cfg.TestKey, backends),
		},
		dryRun: cfg.DryRun,
		log:    log,
		newID:  func() string { return strings.ToLower(ulid.Make().String()) },
	}
}

// DryRun reports whether writes are simulated.
func (c *Client) DryRun() bool { return c.dryRun }

// iter is what List needs from the SDK's per-kind iterators.
type iter interface {
	Next() bool
	Err() error
	List() stripe.ListContainer
}

// List returns every record of kind in account. The SDK follows pagination;
// records keep the order Stripe returns them in.
func (c *Client) List(ctx context.Context, kind stripemirror.Kind, account stripemirror.Account, expand []string) ([]json.RawMessage, error) {
	op := "list_" + kind.String()
	api, err := c.api(op, account)
	if err != nil {
		return nil, err
	}

	lp := stripe.ListParams{Context: ctx, Limit: stripe.Int64(pageSize)}
	for _, e := range expand {
		lp.AddExpand(e)
	}

	var it iter
	switch kind {
	case stripemirror.KindTaxRates:
		it = api.TaxRates.List(&stripe.TaxRateListParams{ListParams: lp})
	case stripemirror.KindProducts:
		it = api.Products.List(&stripe.ProductListParams{ListParams: lp})
	case stripemirror.KindPrices:
		it = api.Prices.List(&stripe.PriceListParams{ListParams: lp})
	case stripemirror.KindCoupons:
		it = api.Coupons.List(&stripe.CouponListParams{ListParams: lp})
	default:
		return nil, fmt.Errorf("%s: %w", op, stripemirror.ErrUnknownResourceKind)
	}

	// Records are taken from each page's raw body: the SDK's typed objects
	// turn nulls into zero values.
	var (
		all  []json.RawMessage
		seen stripe.ListContainer
	)
	for it.Next() {
		page := it.List()
		if page == seen {
			continue
		}
		seen = page
		records, err := pageRecords(page)
		if err != nil {
			return nil, &stripemirror.APIError{Operation: op, Err: err}
		}
		all = append(all, records...)
	}
	if err := it.Err(); err != nil {
		return nil, toAPIError(ctx, op, err)
	}

	c.log.WithFields(logrus.Fields{"kind": kind, "account": account, "count": len(all)}).Debug("listed records")
	return all, nil
}

// Create creates a record of kind in account.
func (c *Client) Create(ctx context.Context, kind stripemirror.Kind, account stripemirror.Account, params stripe.ParamsContainer) (json.RawMessage, error) {
	if account == stripemirror.Production {
		return nil, fmt.Errorf("create %s: %w", kind, stripemirror.ErrForbiddenWrite)
	}

	if c.dryRun {
		c.log.WithFields(logrus.Fields{"kind": kind, "params": encode(params).Encode()}).Info("[DRY-RUN] create")
		return c.echo(kind, "", params)
	}
	return c.write(ctx, "create_"+kind.String(), kind, "", account, params)
}

// Update modifies the record id of kind in account.
func (c *Client) Update(ctx context.Context, kind stripemirror.Kind, id string, account stripemirror.Account, params stripe.ParamsContainer) (json.RawMessage, error) {
	if account == stripemirror.Production {
		return nil, fmt.Errorf("update %s %s: %w", kind, id, stripemirror.ErrForbiddenWrite)
	}

	if c.dryRun {
		c.log.WithFields(logrus.Fields{"kind": kind, "id": id, "params": encode(params).Encode()}).Info("[DRY-RUN] update")
		return c.echo(kind, id, params)
	}
	return c.write(ctx, "update_"+kind.String(), kind, id, account, params)
}

// write creates a record when id is empty and updates it otherwise.
func (c *Client) write(ctx context.Context, op string, kind stripemirror.Kind, id string, account stripemirror.Account, params stripe.ParamsContainer) (json.RawMessage, error) {
	api, err := c.api(op, account)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, &stripemirror.APIError{Operation: op, Err: err}
	}
	params.GetParams().Context = ctx

	var (
		obj  any
		resp *stripe.APIResponse
	)
	switch p := params.(type) {
	case *stripe.TaxRateParams:
		if kind != stripemirror.KindTaxRates {
			break
		}
		var r *stripe.TaxRate
		if id == "" {
			r, err = api.TaxRates.New(p)
		} else {
			r, err = api.TaxRates.Update(id, p)
		}
		if r != nil {
			obj, resp = r, r.LastResponse
		}
	case *stripe.ProductParams:
		if kind != stripemirror.KindProducts {
			break
		}
		var r *stripe.Product
		if id == "" {
			r, err = api.Products.New(p)
		} else {
			r, err = api.Products.Update(id, p)
		}
		if r != nil {
			obj, resp = r, r.LastResponse
		}
	case *stripe.PriceParams:
		if kind != stripemirror.KindPrices {
			break
		}
		var r *stripe.Price
		if id == "" {
			r, err = api.Prices.New(p)
		} else {
			r, err = api.Prices.Update(id, p)
		}
		if r != nil {
			obj, resp = r, r.LastResponse
		}
	case *stripe.CouponParams:
		if kind != stripemirror.KindCoupons {
			break
		}
		var r *stripe.Coupon
		if id == "" {
			r, err = api.Coupons.New(p)
		} else {
			r, err = api.Coupons.Update(id, p)
		}
		if r != nil {
			obj, resp = r, r.LastResponse
		}
	}

	if err != nil {
		return nil, toAPIError(ctx, op, err)
	}
	if obj == nil {
		return nil, &stripemirror.APIError{Operation: op, Err: fmt.Errorf("params %T do not fit %s", params, kind)}
	}
	return rawObject(op, obj, resp)
}

// Retrieve fetches a single record by id.
func (c *Client) Retrieve(ctx context.Context, kind stripemirror.Kind, id string, account stripemirror.Account) (json.RawMessage, error) {
	op := "retrieve_" + kind.String()
	api, err := c.api(op, account)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, &stripemirror.APIError{Operation: op, Err: err}
	}
	base := stripe.Params{Context: ctx}

	var (
		obj  any
		resp *stripe.APIResponse
	)
	switch kind {
	case stripemirror.KindTaxRates:
		var r *stripe.TaxRate
		if r, err = api.TaxRates.Get(id, &stripe.TaxRateParams{Params: base}); r != nil {
			obj, resp = r, r.LastResponse
		}
	case stripemirror.KindProducts:
		var r *stripe.Product
		if r, err = api.Products.Get(id, &stripe.ProductParams{Params: base}); r != nil {
			obj, resp = r, r.LastResponse
		}
	case stripemirror.KindPrices:
		var r *stripe.Price
		if r, err = api.Prices.Get(id, &stripe.PriceParams{Params: base}); r != nil {
			obj, resp = r, r.LastResponse
		}
	case stripemirror.KindCoupons:
		var r *stripe.Coupon
		if r, err = api.Coupons.Get(id, &stripe.CouponParams{Params: base}); r != nil {
			obj, resp = r, r.LastResponse
		}
	default:
		return nil, fmt.Errorf("%s: %w", op, stripemirror.ErrUnknownResourceKind)
	}

	if err != nil {
		return nil, toAPIError(ctx, op, err)
	}
	return rawObject(op, obj, resp)
}

func (c *Client) api(op string, account stripemirror.Account) (*client.API, error) {
	api, ok := c.apis[account]
	if !ok {
		return nil, &stripemirror.APIError{Operation: op, Err: fmt.Errorf("unknown account %q", account)}
	}
	return api, nil
}

// echo builds the synthetic record returned by dry-run writes: the
// top-level params as sent on the wire, the metadata and an id. The id comes
// from the update target, then from the params, and is otherwise generated.
func (c *Client) echo(kind stripemirror.Kind, id string, params stripe.ParamsContainer) (json.RawMessage, error) {
	record := map[string]any{}
	metadata := map[string]string{}
	for k, vs := range encode(params) {
		if key, ok := strings.CutPrefix(k, "metadata["); ok {
			metadata[strings.TrimSuffix(key, "]")] = vs[0]
			continue
		}
		if !strings.Contains(k, "[") {
			record[k] = vs[0]
		}
	}
	if len(metadata) > 0 {
		record["metadata"] = metadata
	}

	switch {
	case id != "":
		record["id"] = id
	case record["id"] != nil && record["id"] != "":
	default:
		record["id"] = "dryrun_" + kind.String() + "_" + c.newID()
	}

	out, err := json.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("dry run %s: %w", kind, err)
	}
	return out, nil
}

func encode(params stripe.ParamsContainer) url.Values {
	vals := &form.Values{}
	if params != nil {
		form.AppendTo(vals, params)
	}
	return vals.ToValues()
}

// pageRecords extracts the data array of a list page.
func pageRecords(page stripe.ListContainer) ([]json.RawMessage, error) {
	var resp *stripe.APIResponse
	switch p := page.(type) {
	case *stripe.TaxRateList:
		resp = p.LastResponse
	case *stripe.ProductList:
		resp = p.LastResponse
	case *stripe.PriceList:
		resp = p.LastResponse
	case *stripe.CouponList:
		resp = p.LastResponse
	}

	raw, err := rawBody(page, resp)
	if err != nil {
		return nil, err
	}
	var envelope struct {
		Data []json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, fmt.Errorf("decode page: %w", err)
	}
	return envelope.Data, nil
}

func rawObject(op string, obj any, resp *stripe.APIResponse) (json.RawMessage, error) {
	raw, err := rawBody(obj, resp)
	if err != nil {
		return nil, &stripemirror.APIError{Operation: op, Err: err}
	}
	return raw, nil
}

// rawBody returns the response body, re-encoding obj when the backend kept
// none.
func rawBody(obj any, resp *stripe.APIResponse) (json.RawMessage, error) {
	if resp != nil && len(resp.RawJSON) > 0 {
		return json.RawMessage(resp.RawJSON), nil
	}
	raw, err := json.Marshal(obj)
	if err != nil {
		return nil, fmt.Errorf("encode response: %w", err)
	}
	return raw, nil
}

// toAPIError maps SDK failures onto APIError. A cancelled context wins over
// whatever transport error it caused.
func toAPIError(ctx context.Context, op string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return &stripemirror.APIError{Operation: op, Err: ctxErr}
	}

	apiErr := &stripemirror.APIError{Operation: op, Err: err}
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		apiErr.StatusCode = stripeErr.HTTPStatusCode
		apiErr.Type = string(stripeErr.Type)
		apiErr.Code = string(stripeErr.Code)
		apiErr.Message = stripeErr.Msg
		apiErr.Err = fmt.Errorf("HTTP %d: %s", stripeErr.HTTPStatusCode, stripeErr.Msg)
	}
	return apiErr
}

// limitedTransport spaces out requests to stay under RateLimit.
type limitedTransport struct {
	next    http.RoundTripper
	limiter *rate.Limiter
}

func (t *limitedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if err := t.limiter.Wait(req.Context()); err != nil {
		return nil, err
	}
	return t.next.RoundTrip(req)
}

// sdkLogger routes the SDK's own messages to debug. Failures reach the
// caller as errors and are reported there.
type sdkLogger struct {
	log logrus.FieldLogger
}

func (l sdkLogger) Debugf(format string, v ...interface{}) { l.log.Debugf(format, v...) }
func (l sdkLogger) Infof(format string, v ...interface{})  { l.log.Debugf(format, v...) }
func (l sdkLogger) Warnf(format string, v ...interface{})  { l.log.Debugf(format, v...) }
func (l sdkLogger) Errorf(format string, v ...interface{}) { l.log.Debugf(format, v...) }
