package pipeline

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"albumrank/aggregate"
	"albumrank/ebay"
)

// albumJSON adds the derived percentages next to the aggregate fields so the
// renderer never recomputes scores.
type albumJSON struct {
	*aggregate.Album
	RawPercent float64 `json:"rawPercent"`
	Percent    float64 `json:"percent"`
}

func toAlbumJSON(albums []*aggregate.Album) []albumJSON {
	out := make([]albumJSON, 0, len(albums))
	for _, album := range albums {
		out = append(out, albumJSON{Album: album, RawPercent: album.RawPercent(), Percent: album.Percent()})
	}
	return out
}

type searchedAlbumJSON struct {
	Artist string `json:"artist"`
	Title  string `json:"title"`
	URI    string `json:"uri"`
}

func writeJSON(outputDir, name string, payload any) error {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory %s: %w", outputDir, err)
	}
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", name, err)
	}
	path := filepath.Join(outputDir, name)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

func writeAlbumArtifacts(outputDir string, ranked []*aggregate.Album, byYear map[int][]*aggregate.Album, totalEligible int) error {
	main := struct {
		TotalEligible int         `json:"totalEligible"`
		Albums        []albumJSON `json:"albums"`
	}{
		TotalEligible: totalEligible,
		Albums:        toAlbumJSON(ranked),
	}
	if err := writeJSON(outputDir, "albums.json", main); err != nil {
		return err
	}

	years := make(map[string][]albumJSON, len(byYear))
	for year, list := range byYear {
		years[strconv.Itoa(year)] = toAlbumJSON(list)
	}
	return writeJSON(outputDir, "years.json", years)
}

func writeSearchedAlbums(outputDir string, queries []ebay.AlbumQuery) error {
	searched := make([]searchedAlbumJSON, 0, len(queries))
	for _, q := range queries {
		searched = append(searched, searchedAlbumJSON{
			Artist: q.Album.PrimaryArtist(),
			Title:  q.Album.Name,
			URI:    q.Album.URI,
		})
	}
	return writeJSON(outputDir, "searched-albums.json", searched)
}

func writeListings(outputDir string, listings []ebay.Listing) error {
	if listings == nil {
		listings = []ebay.Listing{}
	}
	return writeJSON(outputDir, "ebay.json", listings)
}
