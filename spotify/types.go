package spotify

import "strings"

// PlaylistTrack is the slice of a playlist item the pipeline cares about,
// requested via the fields parameter so no follow-up calls are needed.
type PlaylistTrack struct {
	Name  string      `json:"name"`
	URI   string      `json:"uri"`
	Album *TrackAlbum `json:"album"`
}

type TrackAlbum struct {
	ID                   string   `json:"id"`
	Name                 string   `json:"name"`
	Artists              []Artist `json:"artists"`
	Images               []Image  `json:"images"`
	URI                  string   `json:"uri"`
	AlbumType            string   `json:"album_type"` // "album" | "single" | "compilation"
	TotalTracks          int      `json:"total_tracks"`
	ReleaseDate          string   `json:"release_date"` // "YYYY", "YYYY-MM" or "YYYY-MM-DD"
	ReleaseDatePrecision string   `json:"release_date_precision"`
}

type Artist struct {
	Name string `json:"name"`
}

type Image struct {
	URL    string `json:"url"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// AlbumTrack is one entry of an album's ordered tracklist.
type AlbumTrack struct {
	TrackNumber int    `json:"track_number"`
	Name        string `json:"name"`
	URI         string `json:"uri"`
}

// LargestImage returns the URL of the widest cover image, or "".
func LargestImage(images []Image) string {
	best := ""
	bestWidth := -1
	for _, img := range images {
		if img.Width > bestWidth {
			best = img.URL
			bestWidth = img.Width
		}
	}
	return best
}

const trackURIPrefix = "spotify:track:"

// IsTrackURI reports whether uri names a track (podcast episodes and local
// files carry other prefixes).
func IsTrackURI(uri string) bool {
	return strings.HasPrefix(uri, trackURIPrefix)
}

// OpenTrackURL converts a spotify:track: URI into an open.spotify.com link.
func OpenTrackURL(uri string) string {
	if IsTrackURI(uri) {
		return "https://open.spotify.com/track/" + uri[len(trackURIPrefix):]
	}
	return uri
}
