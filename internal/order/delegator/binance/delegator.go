package binance

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/shopspring/decimal"
	"github.com/spf13/cast"
	"github.com/yanun0323/errors"
	"golang.org/x/time/rate"

	"spotengine/internal/candle"
	"spotengine/internal/order"
	"spotengine/internal/portfolio"
	"spotengine/pkg/exception"
)

const (
	DefaultBaseURL = "https://api.binance.us"

	_headerAPIKey   = "X-MBX-APIKEY"
	_requestTimeout = 15 * time.Second
)

// Credentials are the API key pair used for signed endpoints.
type Credentials struct {
	APIKey    string `json:"api_key"`
	SecretKey string `json:"secret_key"`
}

// Option tunes the REST client.
type Option struct {
	BaseURL           string
	RecvWindow        time.Duration
	RequestsPerSecond float64
}

// Delegator is the signed Binance spot REST client.
type Delegator struct {
	client     *http.Client
	baseURL    string
	cred       Credentials
	recvWindow int64
	limiter    *rate.Limiter
	now        func() time.Time
}

func NewDelegator(client *http.Client, cred Credentials, opt Option) *Delegator {
	if client == nil {
		client = http.DefaultClient
	}
	if opt.BaseURL == "" {
		opt.BaseURL = DefaultBaseURL
	}
	if opt.RecvWindow <= 0 {
		opt.RecvWindow = 5 * time.Second
	}
	limit := rate.Inf
	if opt.RequestsPerSecond > 0 {
		limit = rate.Limit(opt.RequestsPerSecond)
	}
	return &Delegator{
		client:     client,
		baseURL:    strings.TrimRight(opt.BaseURL, "/"),
		cred:       cred,
		recvWindow: opt.RecvWindow.Milliseconds(),
		limiter:    rate.NewLimiter(limit, 1),
		now:        time.Now,
	}
}

// Ping checks REST connectivity.
func (d *Delegator) Ping(ctx context.Context) error {
	return d.do(ctx, http.MethodGet, "/api/v3/ping", nil, false, nil)
}

// ServerTime returns the exchange clock in ms epoch.
func (d *Delegator) ServerTime(ctx context.Context) (int64, error) {
	var resp serverTimeResponse
	if err := d.do(ctx, http.MethodGet, "/api/v3/time", nil, false, &resp); err != nil {
		return 0, err
	}
	return resp.ServerTime, nil
}

// ExchangeInfo fetches lot size and notional filters for symbols.
func (d *Delegator) ExchangeInfo(ctx context.Context, symbols []string) (portfolio.FilterSet, error) {
	params := url.Values{}
	if len(symbols) != 0 {
		quoted := make([]string, len(symbols))
		for i, s := range symbols {
			quoted[i] = strconv.Quote(s)
		}
		params.Set("symbols", "["+strings.Join(quoted, ",")+"]")
	}

	var resp exchangeInfoResponse
	if err := d.do(ctx, http.MethodGet, "/api/v3/exchangeInfo", params, false, &resp); err != nil {
		return nil, err
	}

	set := make(portfolio.FilterSet, len(resp.Symbols))
	for _, s := range resp.Symbols {
		f := portfolio.Filters{BaseAsset: s.BaseAsset, QuoteAsset: s.QuoteAsset}
		for _, flt := range s.Filters {
			switch flt.FilterType {
			case "LOT_SIZE":
				f.StepSize = parseDecimal(flt.StepSize)
			case "MIN_NOTIONAL", "NOTIONAL":
				f.MinNotional = parseDecimal(flt.MinNotional)
			}
		}
		set[s.Symbol] = f
	}
	return set, nil
}

// Balances returns the account balance list. It implements
// order.AccountReader.
func (d *Delegator) Balances(ctx context.Context) ([]order.Balance, error) {
	var resp accountResponse
	if err := d.do(ctx, http.MethodGet, "/api/v3/account", url.Values{}, true, &resp); err != nil {
		return nil, err
	}

	out := make([]order.Balance, 0, len(resp.Balances))
	for _, b := range resp.Balances {
		free, err := cast.ToFloat64E(b.Free)
		if err != nil {
			return nil, errors.Wrap(err, "parse free balance").With("asset", b.Asset)
		}
		locked, err := cast.ToFloat64E(b.Locked)
		if err != nil {
			return nil, errors.Wrap(err, "parse locked balance").With("asset", b.Asset)
		}
		out = append(out, order.Balance{Asset: b.Asset, Free: free, Locked: locked})
	}
	return out, nil
}

// PlaceMarketOrder submits req. It implements order.Delegator.
func (d *Delegator) PlaceMarketOrder(ctx context.Context, req order.MarketOrderRequest) (order.Response, error) {
	params, err := orderParams(req)
	if err != nil {
		return order.Response{}, err
	}

	var resp orderResponse
	if err := d.do(ctx, http.MethodPost, "/api/v3/order", params, true, &resp); err != nil {
		return order.Response{}, err
	}
	return order.Response{
		OrderID:             resp.OrderID,
		ClientOrderID:       resp.ClientOrderID,
		Status:              resp.Status,
		ExecutedQty:         parseDecimal(resp.ExecutedQty),
		CummulativeQuoteQty: parseDecimal(resp.CummulativeQuoteQty),
		TransactTime:        resp.TransactTime,
	}, nil
}

// TestOrder validates req against the exchange without placing it.
func (d *Delegator) TestOrder(ctx context.Context, req order.MarketOrderRequest) error {
	params, err := orderParams(req)
	if err != nil {
		return err
	}
	return d.do(ctx, http.MethodPost, "/api/v3/order/test", params, true, nil)
}

// NewListenKey opens a user data stream and returns its key.
func (d *Delegator) NewListenKey(ctx context.Context) (string, error) {
	var resp listenKeyResponse
	if err := d.do(ctx, http.MethodPost, "/api/v3/userDataStream", nil, false, &resp); err != nil {
		return "", err
	}
	return resp.ListenKey, nil
}

// KeepAliveListenKey extends the listen key validity.
func (d *Delegator) KeepAliveListenKey(ctx context.Context, key string) error {
	return d.do(ctx, http.MethodPut, "/api/v3/userDataStream", url.Values{"listenKey": {key}}, false, nil)
}

// Klines fetches up to limit bars ending now. Bars whose close time has not
// passed are returned with Closed unset.
func (d *Delegator) Klines(ctx context.Context, symbol, interval string, limit int) ([]candle.Candle, error) {
	params := url.Values{
		"symbol":   {symbol},
		"interval": {interval},
		"limit":    {strconv.Itoa(limit)},
	}
	var rows [][]any
	if err := d.do(ctx, http.MethodGet, "/api/v3/klines", params, false, &rows); err != nil {
		return nil, err
	}

	now := d.now().UnixMilli()
	out := make([]candle.Candle, 0, len(rows))
	for _, row := range rows {
		c, err := parseKline(symbol, row)
		if err != nil {
			return nil, err
		}
		c.Closed = c.EndTime < now
		out = append(out, c)
	}
	return out, nil
}

func parseKline(symbol string, row []any) (candle.Candle, error) {
	if len(row) < 7 {
		return candle.Candle{}, errors.Errorf("kline row has %d fields", len(row))
	}
	var (
		c    = candle.Candle{Symbol: symbol}
		err  error
		errs = make([]error, 0, 7)
	)
	c.StartTime, err = cast.ToInt64E(row[0])
	errs = append(errs, err)
	c.Open, err = cast.ToFloat64E(row[1])
	errs = append(errs, err)
	c.High, err = cast.ToFloat64E(row[2])
	errs = append(errs, err)
	c.Low, err = cast.ToFloat64E(row[3])
	errs = append(errs, err)
	c.Close, err = cast.ToFloat64E(row[4])
	errs = append(errs, err)
	c.Volume, err = cast.ToFloat64E(row[5])
	errs = append(errs, err)
	c.EndTime, err = cast.ToInt64E(row[6])
	errs = append(errs, err)
	for _, e := range errs {
		if e != nil {
			return candle.Candle{}, errors.Wrap(e, "parse kline").With("symbol", symbol)
		}
	}
	return c, nil
}

func orderParams(req order.MarketOrderRequest) (url.Values, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	params := url.Values{
		"symbol": {req.Symbol},
		"side":   {string(req.Side)},
		"type":   {"MARKET"},
	}
	if req.HasQuantity() {
		params.Set("quantity", req.Quantity.String())
	} else {
		params.Set("quoteOrderQty", req.QuoteOrderQty.String())
	}
	if req.ClientOrderID != "" {
		params.Set("newClientOrderId", req.ClientOrderID)
	}
	params.Set("newOrderRespType", "RESULT")
	return params, nil
}

func (d *Delegator) do(ctx context.Context, method, path string, params url.Values, signed bool, out any) error {
	if err := d.limiter.Wait(ctx); err != nil {
		return err
	}

	query := ""
	if signed {
		if d.cred.APIKey == "" || d.cred.SecretKey == "" {
			return exception.ErrMissingAPIKey
		}
		if params == nil {
			params = url.Values{}
		}
		params.Set("timestamp", strconv.FormatInt(d.now().UnixMilli(), 10))
		params.Set("recvWindow", strconv.FormatInt(d.recvWindow, 10))
		query = params.Encode()
		query += "&signature=" + Sign(d.cred.SecretKey, query)
	} else if len(params) != 0 {
		query = params.Encode()
	}

	endpoint := d.baseURL + path
	if query != "" {
		endpoint += "?" + query
	}

	ctx, cancel := context.WithTimeout(ctx, _requestTimeout)
	defer cancel()
	r, err := http.NewRequestWithContext(ctx, method, endpoint, nil)
	if err != nil {
		return err
	}
	if d.cred.APIKey != "" {
		r.Header.Set(_headerAPIKey, d.cred.APIKey)
	}

	resp, err := d.client.Do(r)
	if err != nil {
		return errors.Wrap(err, "do request").With("path", path)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		var apiErr errorResponse
		if err := sonic.ConfigFastest.Unmarshal(body, &apiErr); err == nil && apiErr.Code != 0 {
			return &order.APIError{Code: apiErr.Code, Message: apiErr.Msg}
		}
		return fmt.Errorf("%w: %s %s status %d: %s", exception.ErrInResponseError, method, path, resp.StatusCode, body)
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := sonic.ConfigFastest.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrap(err, "decode response").With("path", path)
	}
	return nil
}

func parseDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}
