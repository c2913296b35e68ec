// Package exclusions builds the set of tracks that must never count toward
// an album's score, plus how many of each album's tracks were excluded.
package exclusions

import (
	"context"

	log "github.com/sirupsen/logrus"

	"albumrank/spotify"
)

type Set struct {
	tracks   map[string]struct{}
	perAlbum map[string]int
}

func New() *Set {
	return &Set{
		tracks:   map[string]struct{}{},
		perAlbum: map[string]int{},
	}
}

// Add records one excluded track and bumps its album's excluded counter.
// Adding the same URI from two playlists is additive on the counter, matching
// the union-of-playlists semantics.
func (s *Set) Add(trackURI, albumID string) {
	s.tracks[trackURI] = struct{}{}
	if albumID != "" {
		s.perAlbum[albumID]++
	}
}

func (s *Set) Contains(trackURI string) bool {
	_, ok := s.tracks[trackURI]
	return ok
}

// ExcludedOnAlbum returns how many excluded tracks belong to the album.
func (s *Set) ExcludedOnAlbum(albumID string) int {
	return s.perAlbum[albumID]
}

func (s *Set) Len() int {
	return len(s.tracks)
}

// Build streams every configured exclusion playlist into one Set. Empty
// playlist ids are skipped so the optional excluded playlist can stay unset.
func Build(ctx context.Context, client *spotify.Client, playlistIDs ...string) (*Set, error) {
	set := New()
	for _, id := range playlistIDs {
		if id == "" {
			continue
		}
		log.Infof("Loading exclusion playlist %s", id)
		err := client.ForEachPlaylistTrack(ctx, id, func(t spotify.PlaylistTrack) error {
			if !spotify.IsTrackURI(t.URI) {
				return nil
			}
			albumID := ""
			if t.Album != nil {
				albumID = t.Album.ID
			}
			set.Add(t.URI, albumID)
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	log.Infof("Exclusion set: %d tracks", set.Len())
	return set, nil
}
