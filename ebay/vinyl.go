package ebay

import "strings"

// LooksLikeVinylTitle is a heuristic over listing titles: marketplace search
// inside the vinyl category still surfaces CDs, tapes and 7" singles. Hard
// excludes run first; then the title must positively hint at a 10"/12" record.
func LooksLikeVinylTitle(title string) bool {
	if strings.TrimSpace(title) == "" {
		return false
	}
	t := strings.ToLower(title)

	// hard excludes
	if strings.Contains(t, " cd ") || strings.HasSuffix(t, " cd") || strings.HasPrefix(t, "cd ") || strings.Contains(t, " compact disc") {
		return false
	}
	if strings.Contains(t, "cassette") || strings.Contains(t, "tape") || strings.Contains(t, "minidisc") || strings.Contains(t, " md ") {
		return false
	}
	if strings.Contains(t, "dvd") || strings.Contains(t, "blu-ray") || strings.Contains(t, "vhs") {
		return false
	}

	// reject obvious 7" singles
	for _, seven := range []string{`7"`, "7”", " 7in", " 7 in", "7-inch", " 7 inch"} {
		if strings.Contains(t, seven) {
			return false
		}
	}

	if strings.Contains(t, "vinyl") {
		return true
	}

	// common LP hints; word-bounded so "help" does not match
	if strings.Contains(t, " lp ") || strings.HasSuffix(t, " lp") || strings.HasPrefix(t, "lp ") || strings.Contains(t, "(lp") {
		return true
	}

	// record sizes often stated on listings (12/10 only)
	if strings.Contains(t, `12"`) || strings.Contains(t, `10"`) {
		return true
	}

	return false
}
