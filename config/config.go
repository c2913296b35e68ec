package config

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
)

type ConfigStruct struct {
	Spotify SpotifyConfig
	Cache   CacheConfig
	Ebay    EbayConfig
	Options Options
}

type SpotifyConfig struct {
	ClientID     string
	ClientSecret string
	RefreshToken string

	// StarPlaylists maps a rating tier (1..5) to a playlist id.
	StarPlaylists       map[int]string
	FillerPlaylistID    string
	ExcludedPlaylistID  string
	PurchasedPlaylistID string
}

type CacheConfig struct {
	DBPath  string
	TTLDays int
	// FetchConcurrency bounds the tracklist backfill workers.
	FetchConcurrency int
}

type EbayConfig struct {
	ClientID     string
	ClientSecret string
	Marketplace  string
	DeliveryCC   string
	Currency     string
	// MaxTotalPence is the inclusive price+shipping ceiling in minor units.
	MaxTotalPence    int64
	PagesPerQuery    int
	LimitPerPage     int
	QueryConcurrency int
	MaxResults       int
	AlbumLimit       int
}

type Options struct {
	OutputDir    string
	TopN         int
	ServeResults bool
	Port         string
}

func (e *EbayConfig) IsEnabled() bool {
	return e.ClientID != "" && e.ClientSecret != ""
}

var Config *ConfigStruct

func NewConfig() {
	config := &ConfigStruct{
		Spotify: SpotifyConfig{
			ClientID:            os.Getenv("SPOTIFY_CLIENT_ID"),
			ClientSecret:        os.Getenv("SPOTIFY_CLIENT_SECRET"),
			RefreshToken:        os.Getenv("SPOTIFY_REFRESH_TOKEN"),
			StarPlaylists:       map[int]string{},
			FillerPlaylistID:    NormalizePlaylistID(os.Getenv("FILLER_PLAYLIST_ID")),
			ExcludedPlaylistID:  NormalizePlaylistID(os.Getenv("EXCLUDED_PLAYLIST_ID")),
			PurchasedPlaylistID: NormalizePlaylistID(os.Getenv("PURCHASED_PLAYLIST_ID")),
		},
		Cache: CacheConfig{
			DBPath:           getString("CACHE_DB_PATH", "/app/data/albumrank.db"),
			TTLDays:          getInt("CACHE_TTL_DAYS", 30),
			FetchConcurrency: getInt("DETAIL_FETCH_CONCURRENCY", 4),
		},
		Ebay: EbayConfig{
			ClientID:         strings.TrimSpace(os.Getenv("EBAY_CLIENT_ID")),
			ClientSecret:     strings.TrimSpace(os.Getenv("EBAY_CLIENT_SECRET")),
			Marketplace:      getString("EBAY_MARKETPLACE", "EBAY_GB"),
			DeliveryCC:       getString("EBAY_DELIVERY_CC", "GB"),
			Currency:         getString("EBAY_CURRENCY", "GBP"),
			MaxTotalPence:    getPence("EBAY_MAX_PRICE", 2500),
			PagesPerQuery:    getInt("EBAY_PAGES_PER_QUERY", 2),
			LimitPerPage:     getInt("EBAY_LIMIT_PER_PAGE", 50),
			QueryConcurrency: getInt("EBAY_QUERY_CONCURRENCY", 3),
			MaxResults:       getInt("EBAY_MAX_RESULTS", 400),
			AlbumLimit:       getInt("EBAY_ALBUM_LIMIT", 250),
		},
		Options: Options{
			OutputDir:    os.Getenv("OUTPUT_DIR"),
			TopN:         getInt("TOP_N", 250),
			ServeResults: os.Getenv("SERVE_RESULTS") == "true",
			Port:         os.Getenv("PORT"),
		},
	}

	if raw := os.Getenv("STAR_PLAYLISTS"); raw != "" {
		if playlists, err := ParseStarPlaylists(raw); err == nil {
			config.Spotify.StarPlaylists = playlists
		}
	}

	Config = config
}

// Validate fails fast on anything that would otherwise only surface mid-run.
// Called before any network request is made.
func (c *ConfigStruct) Validate() error {
	if c.Spotify.ClientID == "" || c.Spotify.ClientSecret == "" || c.Spotify.RefreshToken == "" {
		return fmt.Errorf("SPOTIFY_CLIENT_ID, SPOTIFY_CLIENT_SECRET and SPOTIFY_REFRESH_TOKEN are required")
	}
	if c.Options.OutputDir == "" {
		return fmt.Errorf("missing environment variable: OUTPUT_DIR")
	}
	if raw := os.Getenv("STAR_PLAYLISTS"); raw == "" {
		return fmt.Errorf("missing environment variable: STAR_PLAYLISTS")
	} else if _, err := ParseStarPlaylists(raw); err != nil {
		return err
	}
	for stars, id := range c.Spotify.StarPlaylists {
		if err := requireBase62(fmt.Sprintf("%d-star entry in STAR_PLAYLISTS", stars), id); err != nil {
			return err
		}
	}
	if c.Spotify.FillerPlaylistID == "" {
		return fmt.Errorf("missing environment variable: FILLER_PLAYLIST_ID")
	}
	if err := requireBase62("FILLER_PLAYLIST_ID", c.Spotify.FillerPlaylistID); err != nil {
		return err
	}
	if c.Spotify.ExcludedPlaylistID != "" {
		if err := requireBase62("EXCLUDED_PLAYLIST_ID", c.Spotify.ExcludedPlaylistID); err != nil {
			return err
		}
	}
	if c.Spotify.PurchasedPlaylistID != "" {
		if err := requireBase62("PURCHASED_PLAYLIST_ID", c.Spotify.PurchasedPlaylistID); err != nil {
			return err
		}
	}
	return nil
}

// ParseStarPlaylists parses "5:<id>,4:<id>,..." and requires all tiers 1..5.
func ParseStarPlaylists(raw string) (map[int]string, error) {
	playlists := map[int]string{}
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		kv := strings.SplitN(part, ":", 2)
		if len(kv) != 2 {
			return nil, fmt.Errorf("invalid STAR_PLAYLISTS segment %q (expected like 5:abc123)", part)
		}
		stars, err := strconv.Atoi(strings.TrimSpace(kv[0]))
		if err != nil || stars < 1 || stars > 5 {
			return nil, fmt.Errorf("invalid STAR_PLAYLISTS segment %q (expected like 5:abc123)", part)
		}
		playlists[stars] = NormalizePlaylistID(strings.TrimSpace(kv[1]))
	}
	for stars := 1; stars <= 5; stars++ {
		if playlists[stars] == "" {
			return nil, fmt.Errorf("STAR_PLAYLISTS must include all 1..5 entries, missing %d", stars)
		}
	}
	return playlists, nil
}

// NormalizePlaylistID accepts a bare id, a spotify:playlist: URI or an
// open.spotify.com URL and returns the bare playlist id.
func NormalizePlaylistID(s string) string {
	s = strings.Trim(strings.TrimSpace(s), `"'`)
	if s == "" {
		return ""
	}
	const uriPrefix = "spotify:playlist:"
	if strings.HasPrefix(strings.ToLower(s), uriPrefix) {
		return s[len(uriPrefix):]
	}
	if idx := strings.Index(strings.ToLower(s), "/playlist/"); idx >= 0 {
		rest := s[idx+len("/playlist/"):]
		fields := strings.FieldsFunc(rest, func(r rune) bool {
			return r == '?' || r == '/' || r == '"' || r == '\'' || r == ' '
		})
		if len(fields) > 0 && fields[0] != "" {
			return fields[0]
		}
	}
	return s
}

// IsBase62 reports whether id looks like a Spotify id: 22 alphanumeric chars.
func IsBase62(id string) bool {
	if len(id) != 22 {
		return false
	}
	for _, r := range id {
		if !(r >= '0' && r <= '9' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z') {
			return false
		}
	}
	return true
}

func requireBase62(label, id string) error {
	if !IsBase62(id) {
		return fmt.Errorf("%s is not a valid Spotify playlist id (expected 22 alphanumeric chars), got %q", label, id)
	}
	return nil
}

// TiersDescending returns the configured star tiers sorted high to low.
// Processing order matters: the highest tier must claim a track first.
func (s *SpotifyConfig) TiersDescending() []int {
	tiers := make([]int, 0, len(s.StarPlaylists))
	for stars := range s.StarPlaylists {
		tiers = append(tiers, stars)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(tiers)))
	return tiers
}

func getString(name, fallback string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return fallback
}

func getInt(name string, fallback int) int {
	v := os.Getenv(name)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

func getPence(name string, fallback int64) int64 {
	v := os.Getenv(name)
	if v == "" {
		return fallback
	}
	pence, err := ParsePence(v)
	if err != nil || pence <= 0 {
		return fallback
	}
	return pence
}

// ParsePence converts a decimal money string like "24.99" into integer minor
// units. More than two decimal places is an error.
func ParsePence(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty amount")
	}
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	whole, frac, _ := strings.Cut(s, ".")
	if whole == "" {
		whole = "0"
	}
	major, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q", s)
	}
	var minor int64
	if frac != "" {
		if len(frac) > 2 {
			return 0, fmt.Errorf("invalid amount %q: too many decimal places", s)
		}
		for len(frac) < 2 {
			frac += "0"
		}
		minor, err = strconv.ParseInt(frac, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid amount %q", s)
		}
	}
	pence := major*100 + minor
	if neg {
		pence = -pence
	}
	return pence, nil
}
