package ebay

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	sentry "github.com/getsentry/sentry-go"
	log "github.com/sirupsen/logrus"
	"golang.org/x/oauth2/clientcredentials"

	"albumrank/config"
)

const (
	apiBaseURL = "https://api.ebay.com/buy/browse/v1"
	tokenURL   = "https://api.ebay.com/identity/v1/oauth2/token"

	// Vinyl records category on the Browse API.
	vinylCategory = "176985"
)

// Client talks to the eBay Browse API with an app (client-credentials) token.
type Client struct {
	http        *http.Client
	baseURL     string
	marketplace string
	deliveryCC  string
	sleep       func(time.Duration)
}

func NewClient(ctx context.Context, cfg config.EbayConfig) (*Client, error) {
	conf := &clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     tokenURL,
		Scopes:       []string{"https://api.ebay.com/oauth/api_scope"},
	}
	if _, err := conf.Token(ctx); err != nil {
		sentry.CaptureException(err)
		return nil, fmt.Errorf("ebay token exchange failed: %w", err)
	}

	httpClient := conf.Client(ctx)
	httpClient.Timeout = 100 * time.Second

	return &Client{
		http:        httpClient,
		baseURL:     apiBaseURL,
		marketplace: cfg.Marketplace,
		deliveryCC:  cfg.DeliveryCC,
		sleep:       time.Sleep,
	}, nil
}

// SearchPager walks one query's result pages by offset, stopping at maxPages
// or when the reported total is exhausted.
type SearchPager struct {
	client       *Client
	query        string
	limitPerPage int
	maxPages     int
	offset       int
	pages        int
	done         bool
}

func (c *Client) Search(query string, limitPerPage, maxPages int) *SearchPager {
	return &SearchPager{
		client:       c,
		query:        query,
		limitPerPage: limitPerPage,
		maxPages:     maxPages,
	}
}

// Next returns one page of listings, or nil when pagination is finished.
func (p *SearchPager) Next(ctx context.Context) ([]Listing, error) {
	if p.done || p.pages >= p.maxPages {
		return nil, nil
	}

	// url.Values escapes the spaces, braces and quotes these values carry.
	params := url.Values{}
	params.Set("q", p.query)
	params.Set("category_ids", vinylCategory)
	// Only 12" and 10" records; 7" singles are not wanted.
	params.Set("aspect_filter", fmt.Sprintf(`categoryId:%s,Record Size:{12"|10"}`, vinylCategory))
	params.Set("limit", strconv.Itoa(p.limitPerPage))
	params.Set("offset", strconv.Itoa(p.offset))
	// Server-side filter stays broad; exact cost filtering happens client-side.
	params.Set("filter", fmt.Sprintf("buyingOptions:{AUCTION|FIXED_PRICE},deliveryCountry:%s", p.client.deliveryCC))

	searchURL := p.client.baseURL + "/item_summary/search?" + params.Encode()

	body, err := p.client.get(ctx, searchURL)
	if err != nil {
		return nil, fmt.Errorf("ebay search %q: %w", p.query, err)
	}

	var page struct {
		Total         int           `json:"total"`
		ItemSummaries []itemSummary `json:"itemSummaries"`
	}
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, fmt.Errorf("ebay search %q: decode failed: %w", p.query, err)
	}

	p.offset += p.limitPerPage
	p.pages++
	if p.offset >= page.Total {
		p.done = true
	}
	log.Debugf("   ebay page %d for %q: got %d / total %d", p.pages, p.query, len(page.ItemSummaries), page.Total)

	listings := make([]Listing, 0, len(page.ItemSummaries))
	for _, item := range page.ItemSummaries {
		listings = append(listings, item.toListing())
	}
	return listings, nil
}

// get issues a GET with the marketplace headers. A 429 is retried once after
// Retry-After; anything else non-2xx is an error.
func (c *Client) get(ctx context.Context, rawURL string) ([]byte, error) {
	retried := false
	for {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("X-EBAY-C-MARKETPLACE-ID", c.marketplace)
		req.Header.Set("X-EBAY-C-ENDUSERCTX", "contextualLocation=country="+c.deliveryCC)

		res, err := c.http.Do(req)
		if err != nil {
			return nil, fmt.Errorf("ebay request failed: %w", err)
		}

		if res.StatusCode == http.StatusTooManyRequests && !retried {
			wait := retryAfter(res)
			io.Copy(io.Discard, res.Body)
			res.Body.Close()
			log.Warnf("429 from eBay, waiting %s before retrying", wait)
			c.sleep(wait)
			retried = true
			continue
		}

		body, readErr := io.ReadAll(res.Body)
		res.Body.Close()
		if res.StatusCode < 200 || res.StatusCode >= 300 {
			return nil, fmt.Errorf("ebay request failed: %d %s", res.StatusCode, string(body))
		}
		if readErr != nil {
			return nil, fmt.Errorf("ebay response read failed: %w", readErr)
		}
		return body, nil
	}
}

func retryAfter(res *http.Response) time.Duration {
	sec, err := strconv.Atoi(res.Header.Get("Retry-After"))
	if err != nil {
		return 2 * time.Second
	}
	if sec < 1 {
		sec = 1
	}
	return time.Duration(sec) * time.Second
}

// ---- Browse API response shapes ----

type amount struct {
	Value    string `json:"value"`
	Currency string `json:"currency"`
}

func (a *amount) pence() int64 {
	if a == nil {
		return 0
	}
	pence, err := config.ParsePence(a.Value)
	if err != nil {
		return 0
	}
	return pence
}

type itemSummary struct {
	ItemID     string `json:"itemId"`
	Title      string `json:"title"`
	ItemWebURL string `json:"itemWebUrl"`
	Image      struct {
		ImageURL string `json:"imageUrl"`
	} `json:"image"`
	Price           *amount `json:"price"`
	CurrentBidPrice *amount `json:"currentBidPrice"`
	ShippingOptions []struct {
		ShippingCost *amount `json:"shippingCost"`
	} `json:"shippingOptions"`
	ItemEndDate string `json:"itemEndDate"`
	Seller      struct {
		Username string `json:"username"`
	} `json:"seller"`
	BuyingOptions []string `json:"buyingOptions"`
}

func (it *itemSummary) toListing() Listing {
	// Auctions report the current bid; fall back to the listing price.
	price := it.CurrentBidPrice
	if price == nil {
		price = it.Price
	}
	currency := ""
	if price != nil {
		currency = price.Currency
	}

	var shipping *amount
	if len(it.ShippingOptions) > 0 {
		shipping = it.ShippingOptions[0].ShippingCost
	}

	// Shipping only adds to the total when the currencies agree.
	total := price.pence()
	var shippingPence int64
	if shipping != nil && shipping.Currency == currency {
		shippingPence = shipping.pence()
		total += shippingPence
	}

	var endTime *time.Time
	if it.ItemEndDate != "" {
		if t, err := time.Parse(time.RFC3339, it.ItemEndDate); err == nil {
			utc := t.UTC()
			endTime = &utc
		}
	}

	return Listing{
		ItemID:        it.ItemID,
		Title:         it.Title,
		URL:           it.ItemWebURL,
		ImageURL:      it.Image.ImageURL,
		Currency:      strings.ToUpper(currency),
		Price:         price.pence(),
		Shipping:      shippingPence,
		Total:         total,
		EndTime:       endTime,
		Seller:        it.Seller.Username,
		BuyingOptions: it.BuyingOptions,
	}
}
