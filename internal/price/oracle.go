package price

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

const (
	// DefaultFeedURL is the cryptocompare single-price endpoint
	DefaultFeedURL = "https://min-api.cryptocompare.com/data/price"

	// QuoteCurrency is the fiat proxy every price is quoted in
	QuoteCurrency = "USDT"

	DefaultTimeout = 10 * time.Second
	DefaultBackoff = 1 * time.Second
)

// defaultAliases maps native token symbols to the symbol the feed lists them under
var defaultAliases = map[string]string{
	"MNT": "MANTLE",
}

// Options configures an Oracle
type Options struct {
	FeedURL string

	// Per-attempt timeout
	Timeout time.Duration

	// Wait between attempts
	Backoff time.Duration

	// CacheTTL enables a short-lived per-symbol cache when positive
	CacheTTL time.Duration

	// Extra aliases merged over the defaults
	Aliases map[string]string

	// OnZeroPrice is called when the feed answers 200 without a numeric price
	OnZeroPrice func(symbol string)
}

type cachedPrice struct {
	value     decimal.Decimal
	fetchedAt time.Time
}

// Oracle fetches native token prices. It retries forever with a fixed backoff;
// callers bound it with their context.
type Oracle struct {
	feedURL     string
	aliases     map[string]string
	client      *retryablehttp.Client
	cacheTTL    time.Duration
	onZeroPrice func(symbol string)

	mu    sync.RWMutex
	cache map[string]cachedPrice
}

// NewOracle creates a price oracle
func NewOracle(opts Options) *Oracle {
	if opts.FeedURL == "" {
		opts.FeedURL = DefaultFeedURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Backoff <= 0 {
		opts.Backoff = DefaultBackoff
	}

	aliases := make(map[string]string, len(defaultAliases)+len(opts.Aliases))
	for k, v := range defaultAliases {
		aliases[k] = v
	}
	for k, v := range opts.Aliases {
		aliases[strings.ToUpper(k)] = strings.ToUpper(v)
	}

	return &Oracle{
		feedURL:     opts.FeedURL,
		aliases:     aliases,
		client:      newRetryClient(opts.Timeout, opts.Backoff),
		cacheTTL:    opts.CacheTTL,
		onZeroPrice: opts.OnZeroPrice,
		cache:       make(map[string]cachedPrice),
	}
}

// NormalizeSymbol returns the symbol the feed expects for a native token symbol
func (o *Oracle) NormalizeSymbol(symbol string) string {
	s := strings.ToUpper(strings.TrimSpace(symbol))
	if alias, ok := o.aliases[s]; ok {
		return alias
	}
	return s
}

// FetchPrice returns the USD price of one unit of the token.
// A 200 answer without a numeric price yields zero and no error.
func (o *Oracle) FetchPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	fsym := o.NormalizeSymbol(symbol)
	if fsym == "" {
		return decimal.Zero, fmt.Errorf("empty token symbol")
	}

	if o.cacheTTL > 0 {
		o.mu.RLock()
		cached, ok := o.cache[fsym]
		o.mu.RUnlock()
		if ok && time.Since(cached.fetchedAt) < o.cacheTTL {
			return cached.value, nil
		}
	}

	q := url.Values{}
	q.Set("fsym", fsym)
	q.Set("tsyms", QuoteCurrency)

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, o.feedURL+"?"+q.Encode(), nil)
	if err != nil {
		return decimal.Zero, fmt.Errorf("error creating price request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		return decimal.Zero, fmt.Errorf("price feed for %s: %w", fsym, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return decimal.Zero, fmt.Errorf("reading price response: %w", err)
	}

	value := o.parsePrice(fsym, body)

	// zero means the feed had no price; ask again next time
	if o.cacheTTL > 0 && value.IsPositive() {
		o.mu.Lock()
		o.cache[fsym] = cachedPrice{value: value, fetchedAt: time.Now()}
		o.mu.Unlock()
	}

	return value, nil
}

func (o *Oracle) parsePrice(fsym string, body []byte) decimal.Decimal {
	var payload map[string]json.RawMessage
	if err := json.Unmarshal(body, &payload); err == nil {
		if raw, ok := payload[QuoteCurrency]; ok {
			s := strings.Trim(string(raw), `"`)
			if v, err := decimal.NewFromString(s); err == nil && !v.IsZero() {
				return v
			}
		}
	}

	// TODO: surface this as an error once callers can render "price unavailable" instead of a free fee.
	logrus.WithField("symbol", fsym).Warn("Price feed returned no numeric price, using zero")
	if o.onZeroPrice != nil {
		o.onZeroPrice(fsym)
	}
	return decimal.Zero
}
