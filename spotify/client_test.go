package spotify

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func testClient(srv *httptest.Server, slept *[]time.Duration) *Client {
	return &Client{
		http:    srv.Client(),
		baseURL: srv.URL,
		sleep: func(d time.Duration) {
			*slept = append(*slept, d)
		},
	}
}

func TestPlaylistTracksPagination(t *testing.T) {
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("offset") {
		case "", "0":
			fmt.Fprintf(w, `{"items":[{"track":{"name":"One","uri":"spotify:track:aaa"}},{"track":null}],"next":"%s/playlists/p1/tracks?offset=100"}`, srv.URL)
		default:
			fmt.Fprint(w, `{"items":[{"track":{"name":"Two","uri":"spotify:track:bbb"}}],"next":null}`)
		}
	}))
	defer srv.Close()

	var slept []time.Duration
	c := testClient(srv, &slept)

	var got []string
	err := c.ForEachPlaylistTrack(context.Background(), "p1", func(tr PlaylistTrack) error {
		got = append(got, tr.URI)
		return nil
	})
	if err != nil {
		t.Fatalf("ForEachPlaylistTrack() error = %v", err)
	}
	want := []string{"spotify:track:aaa", "spotify:track:bbb"}
	if len(got) != len(want) {
		t.Fatalf("got %d tracks, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("track %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestForEachStopsEarly(t *testing.T) {
	pages := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		pages++
		fmt.Fprintf(w, `{"items":[{"track":{"name":"T","uri":"spotify:track:t%d"}}],"next":"http://%s/more?offset=%d"}`, pages, r.Host, pages)
	}))
	defer srv.Close()

	var slept []time.Duration
	c := testClient(srv, &slept)

	stop := fmt.Errorf("stop")
	err := c.ForEachPlaylistTrack(context.Background(), "p1", func(tr PlaylistTrack) error {
		return stop
	})
	if err != stop {
		t.Fatalf("ForEachPlaylistTrack() error = %v, want sentinel", err)
	}
	if pages != 1 {
		t.Errorf("fetched %d pages after early stop, want 1", pages)
	}
}

func TestRateLimitRetrySameURL(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.Header().Set("Retry-After", "5")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		fmt.Fprint(w, `{"items":[{"track":{"name":"One","uri":"spotify:track:aaa"}}],"next":null}`)
	}))
	defer srv.Close()

	var slept []time.Duration
	c := testClient(srv, &slept)

	tracks, err := c.PlaylistTracks("p1").Next(context.Background())
	if err != nil {
		t.Fatalf("Next() error = %v", err)
	}
	if len(tracks) != 1 {
		t.Fatalf("got %d tracks, want 1", len(tracks))
	}
	if calls != 2 {
		t.Errorf("server saw %d calls, want 2 (one 429 + one retry)", calls)
	}
	if len(slept) != 1 || slept[0] != 5*time.Second {
		t.Errorf("slept %v, want one 5s wait", slept)
	}
}

func TestNonRateLimitErrorIsFatal(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	var slept []time.Duration
	c := testClient(srv, &slept)

	if _, err := c.PlaylistTracks("p1").Next(context.Background()); err == nil {
		t.Fatal("Next() expected error on 500")
	}
	if calls != 1 {
		t.Errorf("server saw %d calls, want 1 (no retry on generic failure)", calls)
	}
}

func TestRetryAfter(t *testing.T) {
	tests := []struct {
		name   string
		header string
		want   time.Duration
	}{
		{name: "absent defaults to 2s", header: "", want: 2 * time.Second},
		{name: "garbage defaults to 2s", header: "soon", want: 2 * time.Second},
		{name: "zero floors at 1s", header: "0", want: time.Second},
		{name: "honored", header: "7", want: 7 * time.Second},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := &http.Response{Header: http.Header{}}
			if tt.header != "" {
				res.Header.Set("Retry-After", tt.header)
			}
			if got := retryAfter(res); got != tt.want {
				t.Errorf("retryAfter() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAlbumTracksPagination(t *testing.T) {
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("offset") == "" {
			fmt.Fprintf(w, `{"items":[{"track_number":2,"name":"B","uri":"spotify:track:b"}],"next":"%s/albums/a1/tracks?offset=50"}`, srv.URL)
			return
		}
		fmt.Fprint(w, `{"items":[{"track_number":1,"name":"A","uri":"spotify:track:a"}],"next":null}`)
	}))
	defer srv.Close()

	var slept []time.Duration
	c := testClient(srv, &slept)

	tracks, err := c.AllAlbumTracks(context.Background(), "a1")
	if err != nil {
		t.Fatalf("AllAlbumTracks() error = %v", err)
	}
	if len(tracks) != 2 {
		t.Fatalf("got %d tracks, want 2", len(tracks))
	}
	if tracks[0].TrackNumber != 2 || tracks[1].TrackNumber != 1 {
		t.Errorf("unexpected order: %+v (pager must not reorder, callers sort)", tracks)
	}
}

func TestLargestImage(t *testing.T) {
	images := []Image{
		{URL: "small", Width: 64},
		{URL: "large", Width: 640},
		{URL: "medium", Width: 300},
	}
	if got := LargestImage(images); got != "large" {
		t.Errorf("LargestImage() = %q, want %q", got, "large")
	}
	if got := LargestImage(nil); got != "" {
		t.Errorf("LargestImage(nil) = %q, want empty", got)
	}
}

func TestOpenTrackURL(t *testing.T) {
	if got := OpenTrackURL("spotify:track:abc123"); got != "https://open.spotify.com/track/abc123" {
		t.Errorf("OpenTrackURL() = %q", got)
	}
	if got := OpenTrackURL("spotify:episode:xyz"); got != "spotify:episode:xyz" {
		t.Errorf("OpenTrackURL() should pass through non-track URIs, got %q", got)
	}
}
