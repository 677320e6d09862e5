package negotiate

import (
	"math"
	"strconv"
	"strings"
)

// ParseAccept reads the value of an Accept header. The entries are returned
// in the order given, with media type parameters removed. A missing or
// malformed q-value counts as 1. Entries with q=0 are not acceptable and are
// left out.
func ParseAccept(header string) []Preference {
	var result []Preference
	for _, item := range strings.Split(header, ",") {
		name, q, ok := parseItem(item)
		if !ok || q == 0 {
			continue
		}
		result = append(result, Preference{MimeType: name, Q: q})
	}
	return result
}

// ParseAcceptEncoding reads the value of an Accept-Encoding header.
func ParseAcceptEncoding(header string) EncodingSet {
	result := make(EncodingSet)
	for _, item := range strings.Split(header, ",") {
		name, q, ok := parseItem(item)
		if !ok {
			continue
		}
		result[name] = q > 0
	}
	return result
}

// parseItem splits one list element like "text/html;level=1;q=0.5" into its
// lowercased name and q-value.
func parseItem(item string) (string, float64, bool) {
	pieces := strings.Split(item, ";")
	name := strings.ToLower(strings.TrimSpace(pieces[0]))
	if name == "" {
		return "", 0, false
	}
	q := 1.0
	for _, param := range pieces[1:] {
		kv := strings.SplitN(param, "=", 2)
		if len(kv) != 2 || strings.ToLower(strings.TrimSpace(kv[0])) != "q" {
			continue
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(kv[1]), 64)
		if err != nil || math.IsNaN(v) {
			continue
		}
		switch {
		case v < 0:
			v = 0
		case v > 1:
			v = 1
		}
		q = v
	}
	return name, q, true
}
