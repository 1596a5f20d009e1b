package locale

import (
	"math"
	"sort"
	"strconv"
	"strings"
)

// Preference is one language range from an Accept-Language header.
type Preference struct {
	// Range is the lowercased language range as sent ("en-us").
	Range string
	// Tag is the lowercased primary language subtag ("en" for "en-US").
	Tag    string
	Weight float64
}

// ParseAcceptLanguage parses an Accept-Language header into preferences
// sorted by descending weight. Ties keep header order.
//
// Parsing is lenient: empty tokens are skipped, a missing q parameter means
// weight 1, and a q value that is not a finite number is also treated as 1.
func ParseAcceptLanguage(header string) []Preference {
	if strings.TrimSpace(header) == "" {
		return nil
	}

	tokens := strings.Split(header, ",")
	prefs := make([]Preference, 0, len(tokens))

	for _, token := range tokens {
		params := strings.Split(token, ";")
		rng := strings.ToLower(strings.TrimSpace(params[0]))
		tag := primaryTag(rng)
		if tag == "" {
			continue
		}

		weight := 1.0
		for _, param := range params[1:] {
			key, value, found := strings.Cut(strings.TrimSpace(param), "=")
			if !found || !strings.EqualFold(strings.TrimSpace(key), "q") {
				continue
			}
			weight = parseWeight(value)
		}

		prefs = append(prefs, Preference{Range: rng, Tag: tag, Weight: weight})
	}

	sort.SliceStable(prefs, func(i, j int) bool {
		return prefs[i].Weight > prefs[j].Weight
	})

	return prefs
}

// MatchAcceptLanguage returns the supported locale with the highest weight in
// header. A range matches a locale spelled exactly like it first, then one
// equal to its primary subtag. Ranges with a weight of zero or less never
// match.
func (r *Registry) MatchAcceptLanguage(header string) (string, bool) {
	for _, pref := range ParseAcceptLanguage(header) {
		if pref.Weight <= 0 {
			continue
		}
		if code, ok := r.Lookup(pref.Range); ok {
			return code, true
		}
		if code, ok := r.Lookup(pref.Tag); ok {
			return code, true
		}
	}
	return "", false
}

func primaryTag(tag string) string {
	if i := strings.IndexByte(tag, '-'); i >= 0 {
		tag = tag[:i]
	}
	return tag
}

func parseWeight(value string) float64 {
	w, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil || math.IsNaN(w) || math.IsInf(w, 0) {
		return 1
	}
	return w
}
