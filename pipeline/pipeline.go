// Package pipeline wires the stages together: rated playlists are aggregated
// into album scores, ranked, enriched with tracklists and cross-referenced
// against the marketplace. Data flows one way; each stage completes before
// the next starts.
package pipeline

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"albumrank/aggregate"
	"albumrank/config"
	"albumrank/ebay"
	"albumrank/exclusions"
	"albumrank/ranking"
	"albumrank/sentry"
	"albumrank/spotify"
	"albumrank/trackcache"
)

// Run executes one full pipeline pass. Anything returned here is fatal; the
// enrichment and marketplace stages isolate their per-item failures
// internally.
func Run(ctx context.Context, cfg *config.ConfigStruct) error {
	client, err := spotify.NewClient(ctx, cfg.Spotify.ClientID, cfg.Spotify.ClientSecret, cfg.Spotify.RefreshToken)
	if err != nil {
		return err
	}

	owned, err := loadOwned(ctx, client, cfg.Spotify.PurchasedPlaylistID)
	if err != nil {
		return err
	}

	excluded, err := exclusions.Build(ctx, client, cfg.Spotify.FillerPlaylistID, cfg.Spotify.ExcludedPlaylistID)
	if err != nil {
		return err
	}

	engine := aggregate.NewEngine(excluded)
	if err := aggregateTiers(ctx, client, cfg, engine); err != nil {
		return err
	}
	engine.Finalize()

	eligible := ranking.Eligible(engine.Albums())
	ranked := ranking.Top(eligible, cfg.Options.TopN)
	byYear := ranking.ByYear(eligible, time.Now())
	enrich := ranking.EnrichmentSet(ranked, byYear)
	log.Infof("Ranked %d eligible albums, top %d kept, %d need tracklists", len(eligible), len(ranked), len(enrich))

	cache := trackcache.New(time.Duration(cfg.Cache.TTLDays) * 24 * time.Hour)
	store := trackcache.LoadInto(cache, cfg.Cache.DBPath)

	fetcher := &trackcache.Fetcher{
		Client:      client,
		Cache:       cache,
		Excluded:    excluded,
		Concurrency: cfg.Cache.FetchConcurrency,
	}
	fetcher.Backfill(ctx, engine.Albums(), enrich)
	trackcache.Annotate(engine.Albums(), enrich, engine.BestStars)

	if err := writeAlbumArtifacts(cfg.Options.OutputDir, ranked, byYear, len(eligible)); err != nil {
		return err
	}

	if err := runMarketplace(ctx, cfg, ranked, owned); err != nil {
		return err
	}

	if store != nil {
		if err := store.Save(cache); err != nil {
			log.Warnf("Track cache save failed: %v", err)
			sentry.ReportMessage("track cache save failed: " + err.Error())
		}
		store.Close()
	} else {
		// Degraded run: everything fetched this time gets refetched next run.
		sentry.ReportMessage("track cache store unavailable, tracklists not persisted")
	}

	log.Infof("Pipeline complete: wrote artifacts to %s", cfg.Options.OutputDir)
	return nil
}

// loadOwned builds the already-purchased set from the optional purchased
// playlist.
func loadOwned(ctx context.Context, client *spotify.Client, playlistID string) (*ebay.OwnedSet, error) {
	owned := ebay.NewOwnedSet()
	if playlistID == "" {
		return owned, nil
	}

	log.Infof("Loading purchased playlist %s", playlistID)
	err := client.ForEachPlaylistTrack(ctx, playlistID, func(t spotify.PlaylistTrack) error {
		if t.Album == nil || t.Album.ID == "" {
			return nil
		}
		artist := ""
		if len(t.Album.Artists) > 0 {
			artist = t.Album.Artists[0].Name
		}
		owned.Add(t.Album.ID, artist, t.Album.Name)
		return nil
	})
	if err != nil {
		return nil, err
	}
	log.Infof("Purchased: %d albums", owned.Len())
	return owned, nil
}

// aggregateTiers streams every star playlist through the engine, highest
// tier first so the best rating claims a track.
func aggregateTiers(ctx context.Context, client *spotify.Client, cfg *config.ConfigStruct, engine *aggregate.Engine) error {
	for _, stars := range cfg.Spotify.TiersDescending() {
		playlistID := cfg.Spotify.StarPlaylists[stars]

		expected, err := client.PlaylistTotal(ctx, playlistID)
		if err != nil {
			return fmt.Errorf("failed to read %d-star playlist %s: %w", stars, playlistID, err)
		}
		log.Infof("Reading %d-star playlist %s (weight %.2f, expected ~%d items)", stars, playlistID, aggregate.Weight(stars), expected)

		var stats aggregate.TierStats
		err = client.ForEachPlaylistTrack(ctx, playlistID, func(t spotify.PlaylistTrack) error {
			engine.AddRated(stars, t, &stats)
			return nil
		})
		if err != nil {
			return err
		}

		log.Infof("   %d-star: fetched %d/%d, included %d, skipped excluded %d, dup %d, non-album %d",
			stars, stats.Fetched, expected, stats.Included, stats.SkipExcluded, stats.SkipDup, stats.SkipNonAlbum)
	}
	return nil
}

// runMarketplace runs the eBay stage when credentials are configured.
func runMarketplace(ctx context.Context, cfg *config.ConfigStruct, ranked []*aggregate.Album, owned *ebay.OwnedSet) error {
	if !cfg.Ebay.IsEnabled() {
		log.Info("eBay: EBAY_CLIENT_ID/EBAY_CLIENT_SECRET not set, skipping marketplace stage")
		return nil
	}

	queries := ebay.Queries(ranked, owned, cfg.Ebay.AlbumLimit)
	log.Infof("eBay: using %d albums (limit %d) after removing purchased", len(queries), cfg.Ebay.AlbumLimit)

	if err := writeSearchedAlbums(cfg.Options.OutputDir, queries); err != nil {
		return err
	}

	client, err := ebay.NewClient(ctx, cfg.Ebay)
	if err != nil {
		return err
	}

	listings := ebay.NewMatcher(client, cfg.Ebay).Run(ctx, queries)
	if len(listings) == 0 {
		log.Info("eBay: no matches found, writing an empty results artifact")
	}
	return writeListings(cfg.Options.OutputDir, listings)
}
