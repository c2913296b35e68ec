package trackcache

import (
	"path/filepath"
	"testing"
	"time"

	"albumrank/aggregate"
)

func sampleTracks() []aggregate.TrackView {
	return []aggregate.TrackView{
		{Number: 1, Name: "Opener", URI: "spotify:track:a", URL: "https://open.spotify.com/track/a"},
		{Number: 2, Name: "Closer", URI: "spotify:track:b", URL: "https://open.spotify.com/track/b"},
	}
}

func TestFreshWithinTTL(t *testing.T) {
	ttl := 30 * 24 * time.Hour
	fetched := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		entry  Entry
		now    time.Time
		wantOK bool
	}{
		{
			name:   "young entry is a hit",
			entry:  Entry{FetchedAt: fetched, Tracks: sampleTracks()},
			now:    fetched.Add(24 * time.Hour),
			wantOK: true,
		},
		{
			name:   "exactly at TTL is a hit",
			entry:  Entry{FetchedAt: fetched, Tracks: sampleTracks()},
			now:    fetched.Add(ttl),
			wantOK: true,
		},
		{
			name:   "past TTL is stale",
			entry:  Entry{FetchedAt: fetched, Tracks: sampleTracks()},
			now:    fetched.Add(ttl + time.Second),
			wantOK: false,
		},
		{
			name:   "empty tracklist is stale even when young",
			entry:  Entry{FetchedAt: fetched, Tracks: nil},
			now:    fetched.Add(time.Hour),
			wantOK: false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cache := New(ttl)
			cache.Put("alb", tt.entry)
			_, ok := cache.Fresh("alb", tt.now)
			if ok != tt.wantOK {
				t.Errorf("Fresh() hit = %v, want %v", ok, tt.wantOK)
			}
		})
	}
}

func TestFreshUnknownAlbum(t *testing.T) {
	cache := New(time.Hour)
	if _, ok := cache.Fresh("missing", time.Now()); ok {
		t.Error("Fresh() on unknown album should miss")
	}
}

func TestStoreRoundTrip(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "cache.db")

	store, err := OpenStore(dbPath)
	if err != nil {
		t.Fatalf("OpenStore() error = %v", err)
	}

	cache := New(time.Hour)
	fetched := time.Date(2025, 2, 3, 4, 5, 6, 0, time.UTC)
	cache.Put("alb1", Entry{FetchedAt: fetched, Tracks: sampleTracks()})
	cache.Put("alb2", Entry{FetchedAt: fetched, Tracks: nil})

	if err := store.Save(cache); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	store.Close()

	reopened, err := OpenStore(dbPath)
	if err != nil {
		t.Fatalf("OpenStore() reopen error = %v", err)
	}
	defer reopened.Close()

	loaded := New(time.Hour)
	if err := reopened.Load(loaded); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.Len() != 2 {
		t.Fatalf("loaded %d entries, want 2", loaded.Len())
	}

	tracks, ok := loaded.Fresh("alb1", fetched.Add(time.Minute))
	if !ok {
		t.Fatal("expected alb1 to be fresh after reload")
	}
	if len(tracks) != 2 || tracks[0].Name != "Opener" || tracks[1].URI != "spotify:track:b" {
		t.Errorf("reloaded tracks = %+v", tracks)
	}
}

func TestLoadIntoDegradesToEmpty(t *testing.T) {
	cache := New(time.Hour)
	// A directory path that cannot be created as a file parent.
	store := LoadInto(cache, filepath.Join(t.TempDir(), "fresh", "cache.db"))
	if store == nil {
		t.Fatal("expected a store for a creatable path")
	}
	store.Close()
	if cache.Len() != 0 {
		t.Errorf("cache has %d entries, want 0", cache.Len())
	}
}

func TestAnnotateStampsBestStars(t *testing.T) {
	albums := map[string]*aggregate.Album{
		"alb": {ID: "alb", Tracks: sampleTracks()},
	}
	stars := map[string]int{"spotify:track:a": 5}

	Annotate(albums, map[string]struct{}{"alb": {}}, func(uri string) int { return stars[uri] })

	if got := albums["alb"].Tracks[0].Stars; got != 5 {
		t.Errorf("track a stars = %d, want 5", got)
	}
	if got := albums["alb"].Tracks[1].Stars; got != 0 {
		t.Errorf("track b stars = %d, want 0 (unrated)", got)
	}
}
