package ebay

import (
	"context"
	"math/rand"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode"

	sentry "github.com/getsentry/sentry-go"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"albumrank/aggregate"
	"albumrank/config"
)

// OwnedSet tracks albums already purchased. Either signal removes an album
// from the marketplace search: a direct id hit, or a normalized artist|title
// key hit (which catches reissues under a new id).
type OwnedSet struct {
	ids  map[string]struct{}
	keys map[string]struct{}
}

func NewOwnedSet() *OwnedSet {
	return &OwnedSet{ids: map[string]struct{}{}, keys: map[string]struct{}{}}
}

func (o *OwnedSet) Add(albumID, artist, title string) {
	if albumID != "" {
		o.ids[albumID] = struct{}{}
	}
	o.keys[AlbumKey(artist, title)] = struct{}{}
}

func (o *OwnedSet) Contains(album *aggregate.Album) bool {
	if _, ok := o.ids[album.ID]; ok {
		return true
	}
	_, ok := o.keys[AlbumKey(album.PrimaryArtist(), album.Name)]
	return ok
}

func (o *OwnedSet) Len() int {
	return len(o.ids)
}

// NormalizeTitle strips edition suffixes: parentheticals and anything after
// " - " or ": " ("Album (Deluxe Edition)" -> "Album").
func NormalizeTitle(title string) string {
	if i := strings.Index(title, " ("); i > 0 {
		title = title[:i]
	}
	for _, sep := range []string{" - ", ": "} {
		if i := strings.Index(title, sep); i > 0 {
			title = title[:i]
			break
		}
	}
	return strings.TrimSpace(title)
}

// canon lowercases, straightens apostrophes and keeps only letters, digits,
// spaces and apostrophes.
func canon(s string) string {
	s = strings.TrimSpace(strings.ReplaceAll(strings.ToLower(s), "’", "'"))
	var b strings.Builder
	for _, r := range s {
		if r == ' ' || r == '\'' || unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// AlbumKey is the normalized "artist | title" identity used for owned-album
// matching across reissues.
func AlbumKey(artist, title string) string {
	return canon(artist) + " | " + canon(NormalizeTitle(title))
}

// MakeQuery derives the marketplace search term for an album.
func MakeQuery(album *aggregate.Album) string {
	artist := strings.ReplaceAll(strings.TrimSpace(album.PrimaryArtist()), "’", "'")
	title := strings.ReplaceAll(NormalizeTitle(album.Name), "’", "'")
	return artist + " " + title + " vinyl"
}

// AlbumQuery pairs a ranked album with its derived search term.
type AlbumQuery struct {
	Album *aggregate.Album
	Query string
}

// Queries removes owned albums and derives one search per remaining album,
// truncated to the configured album limit.
func Queries(ranked []*aggregate.Album, owned *OwnedSet, limit int) []AlbumQuery {
	queries := make([]AlbumQuery, 0, limit)
	for _, album := range ranked {
		if owned != nil && owned.Contains(album) {
			continue
		}
		queries = append(queries, AlbumQuery{Album: album, Query: MakeQuery(album)})
		if limit > 0 && len(queries) >= limit {
			break
		}
	}
	return queries
}

// Matcher fans the album queries out against the marketplace and reduces the
// result stream to the final filtered, deduplicated, ordered set.
type Matcher struct {
	Client *Client
	Config config.EbayConfig
	// jitter delays a worker between queries; defaults to 150-225ms.
	jitter func()
	// now is fixed per run so the auction window is consistent across workers.
	now func() time.Time
}

func NewMatcher(client *Client, cfg config.EbayConfig) *Matcher {
	return &Matcher{Client: client, Config: cfg}
}

// Run executes every query under bounded concurrency. A failed query logs and
// contributes zero results; all workers are awaited. Duplicate listing ids
// across queries keep the first seen copy.
func (m *Matcher) Run(ctx context.Context, queries []AlbumQuery) []Listing {
	span := sentry.StartSpan(ctx, "ebay.match")
	span.SetData("queries", len(queries))
	defer span.Finish()

	now := time.Now().UTC()
	if m.now != nil {
		now = m.now()
	}

	concurrency := m.Config.QueryConcurrency
	if concurrency < 1 {
		concurrency = 1
	}
	gate := make(chan struct{}, concurrency)

	var wg sync.WaitGroup
	var mu sync.Mutex
	unique := map[string]Listing{}

	log.Infof("eBay: querying %d album terms (concurrency %d)", len(queries), concurrency)
	for _, q := range queries {
		wg.Add(1)
		go func(q AlbumQuery) {
			defer wg.Done()
			gate <- struct{}{}
			defer func() { <-gate }()

			kept, err := m.runQuery(ctx, q, now)
			if err != nil {
				// Per-query isolation: a bad query is zero results, not a
				// failed run.
				log.Warnf("eBay query failed for %q: %v", q.Query, err)
				sentry.CaptureException(err)
			}

			mu.Lock()
			for _, listing := range kept {
				// A listing without an id can't collide with anything;
				// give it a fresh key so it isn't swallowed by the dedup.
				key := listing.ItemID
				if key == "" {
					key = uuid.NewString()
				}
				if _, dup := unique[key]; !dup {
					unique[key] = listing
				}
			}
			mu.Unlock()

			if m.jitter != nil {
				m.jitter()
			} else {
				time.Sleep(time.Duration(150+rand.Intn(75)) * time.Millisecond)
			}
		}(q)
	}
	wg.Wait()

	log.Infof("eBay: %d unique listings after filtering", len(unique))
	span.SetData("unique_listings", len(unique))

	all := make([]Listing, 0, len(unique))
	for _, listing := range unique {
		all = append(all, listing)
	}
	return OrderListings(all, m.Config.MaxResults)
}

func (m *Matcher) runQuery(ctx context.Context, q AlbumQuery, now time.Time) ([]Listing, error) {
	var kept []Listing
	pager := m.Client.Search(q.Query, m.Config.LimitPerPage, m.Config.PagesPerQuery)
	for {
		page, err := pager.Next(ctx)
		if err != nil {
			return kept, err
		}
		if page == nil {
			return kept, nil
		}
		for _, listing := range page {
			if m.keep(&listing, now) {
				kept = append(kept, listing)
			}
		}
	}
}

// keep applies the declared filters: target currency, inclusive price
// ceiling, auction-ending-soon or fixed-price only, vinyl-looking title.
func (m *Matcher) keep(l *Listing, now time.Time) bool {
	if !strings.EqualFold(l.Currency, m.Config.Currency) {
		return false
	}
	if l.Total > m.Config.MaxTotalPence {
		return false
	}
	switch {
	case l.IsAuction():
		// Ending within two days, inclusive at exactly two days.
		if l.EndTime == nil || l.EndTime.After(now.Add(48*time.Hour)) {
			return false
		}
	case l.IsFixedPrice():
		// fine as-is
	default:
		return false
	}
	return LooksLikeVinylTitle(l.Title)
}

// OrderListings sorts auctions first (cheapest, ties broken by soonest end),
// then fixed-price listings by cost, truncated to max.
func OrderListings(all []Listing, max int) []Listing {
	var auctions, fixed []Listing
	for _, l := range all {
		if l.IsAuction() {
			auctions = append(auctions, l)
		} else if l.IsFixedPrice() {
			fixed = append(fixed, l)
		}
	}

	sort.SliceStable(auctions, func(i, j int) bool {
		if auctions[i].Total != auctions[j].Total {
			return auctions[i].Total < auctions[j].Total
		}
		return endOrMax(&auctions[i]).Before(endOrMax(&auctions[j]))
	})
	sort.SliceStable(fixed, func(i, j int) bool {
		return fixed[i].Total < fixed[j].Total
	})

	ordered := append(auctions, fixed...)
	if max > 0 && len(ordered) > max {
		ordered = ordered[:max]
	}
	return ordered
}

var farFuture = time.Date(9999, 1, 1, 0, 0, 0, 0, time.UTC)

func endOrMax(l *Listing) time.Time {
	if l.EndTime == nil {
		return farFuture
	}
	return *l.EndTime
}
