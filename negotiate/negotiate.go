// Package negotiate picks which stored variant of a resource to send to a
// client, given the client's Accept and Accept-Encoding preferences.
//
// Matching is deliberately simple. MIME types must be equal byte for byte:
// there is no wildcard or parameter matching. Content-codings only need to
// be acceptable; their q-values do not rank them.
package negotiate

import (
	"sort"

	"github.com/ndlib/webpub/entity"
)

// A Preference is one entry of an Accept header.
type Preference struct {
	MimeType string
	Q        float64
}

// An EncodingSet records the content-codings a client accepts. A coding
// mapped to false was refused explicitly (q=0). The key "*" stands for any
// coding not otherwise listed. See Accepts.
type EncodingSet map[string]bool

// Accepts reports whether content in the given coding may be sent. The
// empty string means identity. Identity is acceptable unless refused, either
// by name or through "*". Other codings must be listed, by name or through
// "*". So an empty set accepts identity only.
func (s EncodingSet) Accepts(coding string) bool {
	if coding == "" {
		coding = entity.Identity
	}
	if ok, found := s[coding]; found {
		return ok
	}
	star, found := s["*"]
	if coding == entity.Identity {
		return !found || star
	}
	return found && star
}

// Negotiate chooses the variant to return. Preferences are tried in order of
// decreasing q-value, and preferences with equal q-values are tried in the
// order given. For each preference the variants with exactly that MIME type
// are considered, and the last one in the list whose coding is acceptable is
// returned. The boolean is false if nothing matched.
func Negotiate(variants entity.List, accept []Preference, encodings EncodingSet) (entity.Entity, bool) {
	if len(variants) == 0 {
		return entity.Entity{}, false
	}
	prefs := make([]Preference, len(accept))
	copy(prefs, accept)
	sort.SliceStable(prefs, func(i, j int) bool {
		return prefs[i].Q > prefs[j].Q
	})

	index := indexVariants(variants)
	for _, p := range prefs {
		candidates := index[p.MimeType]
		for i := len(candidates) - 1; i >= 0; i-- {
			if encodings.Accepts(candidates[i].Encoding) {
				return candidates[i], true
			}
		}
	}
	return entity.Entity{}, false
}

// indexVariants groups the variants by MIME type. Within a type the list
// order is kept, except that a later variant replaces an earlier one with
// the same coding.
func indexVariants(variants entity.List) map[string][]entity.Entity {
	index := make(map[string][]entity.Entity)
outer:
	for _, v := range variants {
		group := index[v.MimeType]
		for i := range group {
			if group[i].Coding() == v.Coding() {
				group = append(group[:i], group[i+1:]...)
				index[v.MimeType] = append(group, v)
				continue outer
			}
		}
		index[v.MimeType] = append(group, v)
	}
	return index
}
