// Package aggregate folds rated playlist tracks into per-album score records.
package aggregate

import "albumrank/spotify"

// StarWeights is the non-linear contribution of each rating tier, indexed by
// stars. Top tiers dominate the percentage on purpose.
var StarWeights = [6]float64{0, 0.10, 0.30, 0.70, 1.00, 1.20}

// TrackView is one displayed tracklist row, annotated after enrichment with
// the highest star rating seen for the track.
type TrackView struct {
	Number int    `json:"number"`
	Name   string `json:"name"`
	URI    string `json:"uri"`
	URL    string `json:"url"`
	Stars  int    `json:"stars,omitempty"`
}

// Album is the aggregate record for one album, keyed by its catalog id.
type Album struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Artists     []string `json:"artists"`
	ImageURL    string   `json:"imageUrl"`
	URI         string   `json:"uri"`
	TotalTracks int      `json:"totalTracks"`
	ReleaseYear int      `json:"releaseYear,omitempty"` // 0 when unknown

	Count       int         `json:"count"` // unique rated tracks counted
	StarCounts  map[int]int `json:"starCounts"`
	WeightedSum float64     `json:"weightedSum"`
	Denominator int         `json:"denominator"`

	Tracks []TrackView `json:"tracks,omitempty"`
}

// RawPercent is the uncapped score used for ranking. Zero when the album has
// no eligible track slots.
func (a *Album) RawPercent() float64 {
	if a.Denominator <= 0 {
		return 0
	}
	return a.WeightedSum / float64(a.Denominator) * 100
}

// Percent is the display score, capped at 100.
func (a *Album) Percent() float64 {
	if p := a.RawPercent(); p < 100 {
		return p
	}
	return 100
}

// PrimaryArtist returns the first (primary) artist, or "".
func (a *Album) PrimaryArtist() string {
	if len(a.Artists) == 0 {
		return ""
	}
	return a.Artists[0]
}

func releaseYear(date string) int {
	if len(date) < 4 {
		return 0
	}
	year := 0
	for _, r := range date[:4] {
		if r < '0' || r > '9' {
			return 0
		}
		year = year*10 + int(r-'0')
	}
	return year
}

func newAlbum(album *spotify.TrackAlbum) *Album {
	artists := make([]string, 0, len(album.Artists))
	for _, artist := range album.Artists {
		artists = append(artists, artist.Name)
	}
	return &Album{
		ID:          album.ID,
		Name:        album.Name,
		Artists:     artists,
		ImageURL:    spotify.LargestImage(album.Images),
		URI:         album.URI,
		TotalTracks: album.TotalTracks,
		ReleaseYear: releaseYear(album.ReleaseDate),
		StarCounts:  map[int]int{1: 0, 2: 0, 3: 0, 4: 0, 5: 0},
	}
}
