package trackcache

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"albumrank/aggregate"
	"albumrank/exclusions"
	"albumrank/spotify"
)

func TestBackfillFetchesFiltersAndSorts(t *testing.T) {
	var fetches int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.Path, "/albums/broken/") {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		atomic.AddInt32(&fetches, 1)
		// Out of order on purpose; one track is excluded.
		fmt.Fprint(w, `{"items":[
			{"track_number":3,"name":"Three","uri":"spotify:track:three"},
			{"track_number":1,"name":"One","uri":"spotify:track:one"},
			{"track_number":2,"name":"Filler","uri":"spotify:track:filler"}
		],"next":null}`)
	}))
	defer srv.Close()

	excluded := exclusions.New()
	excluded.Add("spotify:track:filler", "fetched")

	albums := map[string]*aggregate.Album{
		"fetched": {ID: "fetched"},
		"cached":  {ID: "cached"},
		"broken":  {ID: "broken"},
	}

	cache := New(30 * 24 * time.Hour)
	cache.Put("cached", Entry{FetchedAt: time.Now().UTC(), Tracks: sampleTracks()})

	f := &Fetcher{
		Client:      spotify.NewClientWith(srv.Client(), srv.URL),
		Cache:       cache,
		Excluded:    excluded,
		Concurrency: 2,
		jitter:      func() {},
	}
	ids := map[string]struct{}{"fetched": {}, "cached": {}, "broken": {}}
	f.Backfill(context.Background(), albums, ids)

	if got := atomic.LoadInt32(&fetches); got != 1 {
		t.Errorf("server saw %d tracklist fetches, want 1 (cache hit skips, broken fails)", got)
	}

	fetched := albums["fetched"].Tracks
	if len(fetched) != 2 {
		t.Fatalf("fetched album has %d tracks, want 2 after exclusion", len(fetched))
	}
	if fetched[0].Number != 1 || fetched[1].Number != 3 {
		t.Errorf("tracks not sorted by number: %+v", fetched)
	}
	if fetched[0].URL != "https://open.spotify.com/track/one" {
		t.Errorf("track URL = %q", fetched[0].URL)
	}

	if len(albums["cached"].Tracks) != 2 {
		t.Errorf("cached album should reuse its cached tracklist")
	}

	// A failed fetch is isolated: empty list, no cache entry, run continues.
	if len(albums["broken"].Tracks) != 0 {
		t.Errorf("broken album should end with an empty tracklist")
	}
	if _, ok := cache.Fresh("broken", time.Now()); ok {
		t.Error("failed fetch must not produce a fresh cache entry")
	}

	// The successful fetch refreshed the cache.
	if _, ok := cache.Fresh("fetched", time.Now()); !ok {
		t.Error("successful fetch should write a fresh cache entry")
	}
}
