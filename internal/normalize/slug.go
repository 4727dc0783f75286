package normalize

import (
	"sort"
	"strings"

	gslug "github.com/gosimple/slug"
)

const (
	maxTitleSlugLen = 500
	minGenreSlugLen = 2
	maxGenreSlugLen = 50
)

// genreMappings maps known raw tag spellings to their canonical slug.
// Lookup keys are trimmed and lowercased first.
var genreMappings = map[string]string{
	// fantasy variants
	"fantasy":       "fantasy",
	"high fantasy":  "high-fantasy",
	"urban fantasy": "urban-fantasy",
	"dark fantasy":  "dark-fantasy",

	// asian web novel genres
	"xianxia":     "xianxia",
	"xuanhuan":    "xuanhuan",
	"wuxia":       "wuxia",
	"cultivation": "cultivation",

	// common genres
	"action":          "action",
	"adventure":       "adventure",
	"romance":         "romance",
	"mystery":         "mystery",
	"horror":          "horror",
	"thriller":        "thriller",
	"sci-fi":          "science-fiction",
	"science fiction": "science-fiction",
	"scifi":           "science-fiction",
	"drama":           "drama",
	"comedy":          "comedy",
	"slice of life":   "slice-of-life",
	"psychological":   "psychological",
	"supernatural":    "supernatural",
	"martial arts":    "martial-arts",
	"historical":      "historical",
	"tragedy":         "tragedy",
	"seinen":          "seinen",
	"shounen":         "shounen",
	"isekai":          "isekai",
	"litrpg":          "litrpg",
	"progression":     "progression",
	"system":          "system",
}

// Slugify derives a lowercase ASCII URL-safe identifier from a title.
// Output is capped at 500 characters, cut at a hyphen boundary.
func Slugify(text string) string {
	s := gslug.Make(text)
	if len(s) > maxTitleSlugLen {
		s = s[:maxTitleSlugLen]
		if i := strings.LastIndex(s, "-"); i > 0 {
			s = s[:i]
		}
	}
	return s
}

// NormalizeGenre maps one raw genre tag to a canonical slug. Returns ""
// when the tag is empty or slugs to something outside 2..50 characters.
func NormalizeGenre(raw string) string {
	clean := strings.ToLower(strings.TrimSpace(raw))
	if clean == "" {
		return ""
	}

	if canonical, ok := genreMappings[clean]; ok {
		return canonical
	}

	s := gslug.Make(clean)
	// the generated slug may itself be a known synonym ("sci fi" -> "sci-fi")
	if canonical, ok := genreMappings[s]; ok {
		return canonical
	}
	if len(s) >= minGenreSlugLen && len(s) <= maxGenreSlugLen {
		return s
	}
	return ""
}

// NormalizeGenres normalizes a list of raw tags, dropping failures and
// duplicates. Output is sorted so repeated ingestion is deterministic.
func NormalizeGenres(raw []string) []string {
	if len(raw) == 0 {
		return nil
	}

	seen := make(map[string]struct{}, len(raw))
	for _, g := range raw {
		if s := NormalizeGenre(g); s != "" {
			seen[s] = struct{}{}
		}
	}

	out := make([]string, 0, len(seen))
	for s := range seen {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// GenreDisplayName derives the display form stored on a lazily created
// genre row: separators become spaces, words are title-cased.
func GenreDisplayName(slug string) string {
	words := strings.Split(slug, "-")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
