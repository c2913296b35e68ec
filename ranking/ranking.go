// Package ranking orders album aggregates into the global top list and the
// per-year top tens.
package ranking

import (
	"sort"
	"time"

	"albumrank/aggregate"
)

// FirstYear is the earliest year page produced, even when empty.
const FirstYear = 2000

const perYear = 10

// Less is the strict total order used everywhere: uncapped percent, then
// five-star count, then counted tracks (all descending), then name ascending.
func Less(a, b *aggregate.Album) bool {
	if a.RawPercent() != b.RawPercent() {
		return a.RawPercent() > b.RawPercent()
	}
	if a.StarCounts[5] != b.StarCounts[5] {
		return a.StarCounts[5] > b.StarCounts[5]
	}
	if a.Count != b.Count {
		return a.Count > b.Count
	}
	return a.Name < b.Name
}

// Eligible filters out albums with no rankable track slots.
func Eligible(albums map[string]*aggregate.Album) []*aggregate.Album {
	eligible := make([]*aggregate.Album, 0, len(albums))
	for _, album := range albums {
		if album.Denominator > 0 {
			eligible = append(eligible, album)
		}
	}
	return eligible
}

// Order returns a sorted copy; the input slice is left alone.
func Order(albums []*aggregate.Album) []*aggregate.Album {
	ranked := make([]*aggregate.Album, len(albums))
	copy(ranked, albums)
	sort.SliceStable(ranked, func(i, j int) bool { return Less(ranked[i], ranked[j]) })
	return ranked
}

// Top returns the best n albums.
func Top(albums []*aggregate.Album, n int) []*aggregate.Album {
	ranked := Order(albums)
	if n > 0 && len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked
}

// ByYear builds the top ten per release year over the full eligible set (not
// just the global top N). Every year from FirstYear through now appears, empty
// when nothing was released in it.
func ByYear(albums []*aggregate.Album, now time.Time) map[int][]*aggregate.Album {
	byYear := map[int][]*aggregate.Album{}
	for _, album := range albums {
		if album.ReleaseYear > 0 {
			byYear[album.ReleaseYear] = append(byYear[album.ReleaseYear], album)
		}
	}
	years := map[int][]*aggregate.Album{}
	for year := FirstYear; year <= now.UTC().Year(); year++ {
		years[year] = Top(byYear[year], perYear)
	}
	return years
}

// EnrichmentSet is the union of album ids across the global top list and all
// year lists; these are the albums whose tracklists get fetched.
func EnrichmentSet(top []*aggregate.Album, years map[int][]*aggregate.Album) map[string]struct{} {
	ids := map[string]struct{}{}
	for _, album := range top {
		ids[album.ID] = struct{}{}
	}
	for _, list := range years {
		for _, album := range list {
			ids[album.ID] = struct{}{}
		}
	}
	return ids
}
