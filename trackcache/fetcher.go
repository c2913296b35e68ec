package trackcache

import (
	"context"
	"math/rand"
	"sort"
	"sync"
	"time"

	sentry "github.com/getsentry/sentry-go"
	log "github.com/sirupsen/logrus"

	"albumrank/aggregate"
	"albumrank/exclusions"
	"albumrank/spotify"
)

// Fetcher backfills missing or stale tracklists with a bounded number of
// concurrent workers.
type Fetcher struct {
	Client      *spotify.Client
	Cache       *Cache
	Excluded    *exclusions.Set
	Concurrency int
	// jitter delays a worker after each fetch; defaults to 100-150ms.
	jitter func()
}

// Backfill attaches a tracklist to every album in the enrichment set: from
// the cache when fresh, otherwise fetched concurrently. A failed fetch leaves
// that album with an empty tracklist and the backfill carries on; every
// worker is awaited before Backfill returns.
func (f *Fetcher) Backfill(ctx context.Context, albums map[string]*aggregate.Album, ids map[string]struct{}) {
	now := time.Now().UTC()

	var needsFetch []string
	cached := 0
	for id := range ids {
		album, ok := albums[id]
		if !ok {
			continue
		}
		if tracks, hit := f.Cache.Fresh(id, now); hit {
			album.Tracks = tracks
			cached++
		} else {
			needsFetch = append(needsFetch, id)
		}
	}
	sort.Strings(needsFetch) // deterministic fetch order for logs
	log.Infof("Preparing album tracklists for %d albums (cached %d, fetch %d)", len(ids), cached, len(needsFetch))

	concurrency := f.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}
	gate := make(chan struct{}, concurrency)

	var wg sync.WaitGroup
	var mu sync.Mutex
	done := 0

	for _, albumID := range needsFetch {
		wg.Add(1)
		go func(albumID string) {
			defer wg.Done()
			gate <- struct{}{}
			defer func() { <-gate }()

			f.fetchOne(ctx, albums[albumID], albumID)

			mu.Lock()
			done++
			if done%10 == 0 || done == len(needsFetch) {
				log.Infof("   fetched %d/%d album tracklists", done, len(needsFetch))
			}
			mu.Unlock()

			if f.jitter != nil {
				f.jitter()
			} else {
				time.Sleep(time.Duration(100+rand.Intn(50)) * time.Millisecond)
			}
		}(albumID)
	}
	wg.Wait()
}

func (f *Fetcher) fetchOne(ctx context.Context, album *aggregate.Album, albumID string) {
	tracks, err := f.Client.AllAlbumTracks(ctx, albumID)
	if err != nil {
		// Isolated per album: report it, leave the tracklist empty, move on.
		log.Errorf("tracklist fetch failed for album %s: %v", albumID, err)
		sentry.CaptureException(err)
		album.Tracks = nil
		return
	}

	list := make([]aggregate.TrackView, 0, len(tracks))
	for _, t := range tracks {
		if f.Excluded != nil && f.Excluded.Contains(t.URI) {
			continue // excluded tracks are never shown
		}
		list = append(list, aggregate.TrackView{
			Number: t.TrackNumber,
			Name:   t.Name,
			URI:    t.URI,
			URL:    spotify.OpenTrackURL(t.URI),
		})
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Number < list[j].Number })

	album.Tracks = list
	f.Cache.Put(albumID, Entry{FetchedAt: time.Now().UTC(), Tracks: list})
}

// Annotate stamps each displayed track with the highest rating tier it was
// seen in, after all tracklists are attached.
func Annotate(albums map[string]*aggregate.Album, ids map[string]struct{}, bestStars func(trackURI string) int) {
	for id := range ids {
		album, ok := albums[id]
		if !ok {
			continue
		}
		for i := range album.Tracks {
			album.Tracks[i].Stars = bestStars(album.Tracks[i].URI)
		}
	}
}
