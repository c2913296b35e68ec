package aggregate

import (
	"strings"

	log "github.com/sirupsen/logrus"

	"albumrank/exclusions"
	"albumrank/spotify"
)

// TierStats counts what happened while one rating tier was streamed.
type TierStats struct {
	Fetched      int
	Included     int
	SkipExcluded int
	SkipDup      int
	SkipNonAlbum int
}

// Engine accumulates album aggregates across all rating tiers. The dedup set
// lives for the whole process, so a track claimed by a higher tier is skipped
// by every later (lower) tier. Feed tiers from 5 stars down.
type Engine struct {
	excluded  *exclusions.Set
	seen      map[string]struct{}
	bestStars map[string]int
	albums    map[string]*Album
}

func NewEngine(excluded *exclusions.Set) *Engine {
	return &Engine{
		excluded:  excluded,
		seen:      map[string]struct{}{},
		bestStars: map[string]int{},
		albums:    map[string]*Album{},
	}
}

// Weight returns the score contribution of a tier, clamped to 1..5 stars.
func Weight(stars int) float64 {
	if stars < 1 {
		stars = 1
	}
	if stars > 5 {
		stars = 5
	}
	return StarWeights[stars]
}

// AddRated applies the skip chain to one rated track and, if it survives,
// counts it toward its album under the tier's weight.
func (e *Engine) AddRated(stars int, track spotify.PlaylistTrack, stats *TierStats) {
	if stats != nil {
		stats.Fetched++
	}

	if track.Album == nil || track.Album.ID == "" || !spotify.IsTrackURI(track.URI) {
		return
	}
	switch strings.ToLower(track.Album.AlbumType) {
	case "single", "compilation":
		if stats != nil {
			stats.SkipNonAlbum++
		}
		return
	}
	if e.excluded != nil && e.excluded.Contains(track.URI) {
		if stats != nil {
			stats.SkipExcluded++
		}
		return
	}
	if _, dup := e.seen[track.URI]; dup {
		if stats != nil {
			stats.SkipDup++
		}
		return
	}
	e.seen[track.URI] = struct{}{}

	album, ok := e.albums[track.Album.ID]
	if !ok {
		album = newAlbum(track.Album)
		e.albums[track.Album.ID] = album
	} else if album.TotalTracks == 0 && track.Album.TotalTracks > 0 {
		album.TotalTracks = track.Album.TotalTracks
	}

	album.Count++
	album.StarCounts[clampStars(stars)]++
	album.WeightedSum += Weight(stars)

	// Tiers run high to low, but keep the max-wins rule explicit anyway.
	if prev, ok := e.bestStars[track.URI]; !ok || stars > prev {
		e.bestStars[track.URI] = stars
	}

	if stats != nil {
		stats.Included++
	}
}

func clampStars(stars int) int {
	if stars < 1 {
		return 1
	}
	if stars > 5 {
		return 5
	}
	return stars
}

// Finalize computes every album's denominator: declared track count (or the
// counted tracks when the catalog reported none) minus tracks excluded on the
// album, floored at zero. Denominator zero means ineligible for ranking.
func (e *Engine) Finalize() {
	for _, album := range e.albums {
		total := album.TotalTracks
		if total == 0 {
			total = album.Count
		}
		excludedOnAlbum := 0
		if e.excluded != nil {
			excludedOnAlbum = e.excluded.ExcludedOnAlbum(album.ID)
		}
		album.Denominator = total - excludedOnAlbum
		if album.Denominator < 0 {
			album.Denominator = 0
		}
	}
	log.Infof("Aggregated %d albums", len(e.albums))
}

// Albums returns the aggregate map keyed by album id.
func (e *Engine) Albums() map[string]*Album {
	return e.albums
}

// BestStars reports the highest tier a track was rated in, 0 if unrated.
func (e *Engine) BestStars(trackURI string) int {
	return e.bestStars[trackURI]
}
