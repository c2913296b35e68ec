package spotify

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	sentry "github.com/getsentry/sentry-go"
	log "github.com/sirupsen/logrus"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2"
)

const apiBaseURL = "https://api.spotify.com/v1"

// Client talks to the Spotify Web API with a self-refreshing bearer token.
type Client struct {
	http    *http.Client
	baseURL string
	// sleep is swapped out in tests so 429 retries don't actually wait.
	sleep func(time.Duration)
}

// NewClient exchanges the refresh token for a token source and wraps it in an
// http.Client that re-authenticates as needed.
func NewClient(ctx context.Context, clientID, clientSecret, refreshToken string) (*Client, error) {
	conf := &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Endpoint: oauth2.Endpoint{
			TokenURL: spotifyauth.TokenURL,
		},
	}
	token := &oauth2.Token{RefreshToken: refreshToken}
	// Force an initial exchange so bad credentials fail here, not mid-pipeline.
	fresh, err := conf.TokenSource(ctx, token).Token()
	if err != nil {
		sentry.CaptureException(err)
		return nil, fmt.Errorf("spotify token exchange failed: %w", err)
	}

	httpClient := oauth2.NewClient(ctx, conf.TokenSource(ctx, fresh))
	httpClient.Timeout = 100 * time.Second

	return &Client{http: httpClient, baseURL: apiBaseURL, sleep: time.Sleep}, nil
}

// NewClientWith builds a client around an existing http.Client and base URL.
// Used by tests and anywhere a token source already exists.
func NewClientWith(httpClient *http.Client, baseURL string) *Client {
	return &Client{http: httpClient, baseURL: baseURL, sleep: time.Sleep}
}

// get issues a GET and retries the same URL for as long as Spotify answers
// 429, honoring Retry-After. Every other failure propagates.
func (c *Client) get(ctx context.Context, rawURL string) ([]byte, error) {
	for {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return nil, err
		}

		res, err := c.http.Do(req)
		if err != nil {
			return nil, fmt.Errorf("spotify request failed: %w", err)
		}

		if res.StatusCode == http.StatusTooManyRequests {
			wait := retryAfter(res)
			io.Copy(io.Discard, res.Body)
			res.Body.Close()
			log.Warnf("429 from Spotify, waiting %s before retrying", wait)
			c.sleep(wait)
			continue
		}

		body, readErr := io.ReadAll(res.Body)
		res.Body.Close()
		if res.StatusCode < 200 || res.StatusCode >= 300 {
			return nil, fmt.Errorf("spotify request failed: %s: %d %s", rawURL, res.StatusCode, string(body))
		}
		if readErr != nil {
			return nil, fmt.Errorf("spotify response read failed: %w", readErr)
		}
		return body, nil
	}
}

// retryAfter reads the Retry-After header in seconds: default 2, minimum 1.
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

// PlaylistTotal returns the playlist's declared track count. Diagnostics
// only; the pagers do not rely on it.
func (c *Client) PlaylistTotal(ctx context.Context, playlistID string) (int, error) {
	span := sentry.StartSpan(ctx, "spotify.playlist_total")
	span.SetTag("playlist_id", playlistID)
	defer span.Finish()

	body, err := c.get(ctx, fmt.Sprintf("%s/playlists/%s?fields=%s", c.baseURL, playlistID, url.QueryEscape("tracks(total)")))
	if err != nil {
		span.Status = sentry.SpanStatusInternalError
		return 0, fmt.Errorf("playlist total for %s: %w", playlistID, err)
	}

	var payload struct {
		Tracks struct {
			Total int `json:"total"`
		} `json:"tracks"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		span.Status = sentry.SpanStatusInternalError
		return 0, fmt.Errorf("playlist total for %s: %w", playlistID, err)
	}
	span.Status = sentry.SpanStatusOK
	return payload.Tracks.Total, nil
}

// PlaylistTracksPager pulls a playlist's tracks one page at a time following
// the server-returned next cursor. Dropping the pager mid-sequence fetches no
// further pages.
type PlaylistTracksPager struct {
	client *Client
	next   string
}

// PlaylistTracks starts a fresh pager over the playlist.
func (c *Client) PlaylistTracks(playlistID string) *PlaylistTracksPager {
	fields := url.QueryEscape("items(track(album(id,name,images,artists(name),uri,album_type,total_tracks,release_date,release_date_precision),name,uri)),next")
	return &PlaylistTracksPager{
		client: c,
		next:   fmt.Sprintf("%s/playlists/%s/tracks?limit=100&fields=%s", c.baseURL, playlistID, fields),
	}
}

// Next returns the next page of tracks, or nil once the cursor is exhausted.
func (p *PlaylistTracksPager) Next(ctx context.Context) ([]PlaylistTrack, error) {
	if p.next == "" {
		return nil, nil
	}
	body, err := p.client.get(ctx, p.next)
	if err != nil {
		return nil, err
	}

	var page struct {
		Items []struct {
			Track *PlaylistTrack `json:"track"`
		} `json:"items"`
		Next string `json:"next"`
	}
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, fmt.Errorf("playlist page decode failed: %w", err)
	}

	p.next = page.Next
	tracks := make([]PlaylistTrack, 0, len(page.Items))
	for _, item := range page.Items {
		if item.Track != nil {
			tracks = append(tracks, *item.Track)
		}
	}
	return tracks, nil
}

// ForEachPlaylistTrack streams every track in the playlist. A callback error
// stops the iteration without fetching further pages.
func (c *Client) ForEachPlaylistTrack(ctx context.Context, playlistID string, fn func(PlaylistTrack) error) error {
	span := sentry.StartSpan(ctx, "spotify.playlist_tracks")
	span.SetTag("playlist_id", playlistID)
	defer span.Finish()

	pager := c.PlaylistTracks(playlistID)
	for {
		tracks, err := pager.Next(ctx)
		if err != nil {
			span.Status = sentry.SpanStatusInternalError
			return fmt.Errorf("playlist %s: %w", playlistID, err)
		}
		if tracks == nil {
			span.Status = sentry.SpanStatusOK
			return nil
		}
		for _, t := range tracks {
			if err := fn(t); err != nil {
				span.Status = sentry.SpanStatusAborted
				return err
			}
		}
	}
}

// AlbumTracksPager pulls an album's tracklist one page at a time.
type AlbumTracksPager struct {
	client *Client
	next   string
}

func (c *Client) AlbumTracks(albumID string) *AlbumTracksPager {
	return &AlbumTracksPager{
		client: c,
		next:   fmt.Sprintf("%s/albums/%s/tracks?limit=50", c.baseURL, albumID),
	}
}

// Next returns the next page of album tracks, or nil once exhausted.
func (p *AlbumTracksPager) Next(ctx context.Context) ([]AlbumTrack, error) {
	if p.next == "" {
		return nil, nil
	}
	body, err := p.client.get(ctx, p.next)
	if err != nil {
		return nil, err
	}

	var page struct {
		Items []AlbumTrack `json:"items"`
		Next  string       `json:"next"`
	}
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, fmt.Errorf("album page decode failed: %w", err)
	}
	p.next = page.Next
	if page.Items == nil {
		page.Items = []AlbumTrack{}
	}
	return page.Items, nil
}

// AllAlbumTracks collects the full ordered tracklist for one album.
func (c *Client) AllAlbumTracks(ctx context.Context, albumID string) ([]AlbumTrack, error) {
	span := sentry.StartSpan(ctx, "spotify.album_tracks")
	span.SetTag("album_id", albumID)
	defer span.Finish()

	var all []AlbumTrack
	pager := c.AlbumTracks(albumID)
	for {
		tracks, err := pager.Next(ctx)
		if err != nil {
			span.Status = sentry.SpanStatusInternalError
			return nil, fmt.Errorf("album %s: %w", albumID, err)
		}
		if tracks == nil {
			span.Status = sentry.SpanStatusOK
			span.SetData("tracks_count", len(all))
			return all, nil
		}
		all = append(all, tracks...)
	}
}
