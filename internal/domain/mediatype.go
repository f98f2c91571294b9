// Package domain – MediaType
//
// MediaType is the closed set of catalog entry kinds. The set is fixed at
// compile time and handled exhaustively: parsing rejects anything outside
// it rather than falling back to a generic kind.
package domain

import (
	"fmt"
	"strings"
)

// MediaType identifies the kind of a catalog entry.
type MediaType string

// The full set of supported media types.
const (
	MediaMovie   MediaType = "Movie"
	MediaWebShow MediaType = "WebShow"
	MediaSong    MediaType = "Song"
	MediaCartoon MediaType = "Cartoon"
)

// MediaTypes lists every supported type in display order.
func MediaTypes() []MediaType {
	return []MediaType{MediaMovie, MediaWebShow, MediaSong, MediaCartoon}
}

// ParseMediaType maps user input onto a MediaType. Matching is
// case-insensitive; unknown values return an error naming the valid set.
func ParseMediaType(s string) (MediaType, error) {
	for _, t := range MediaTypes() {
		if strings.EqualFold(strings.TrimSpace(s), string(t)) {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown media type %q (valid: Movie, WebShow, Song, Cartoon)", s)
}

// Valid reports whether t is one of the supported types.
func (t MediaType) Valid() bool {
	switch t {
	case MediaMovie, MediaWebShow, MediaSong, MediaCartoon:
		return true
	default:
		return false
	}
}

// String returns the canonical spelling of the type.
func (t MediaType) String() string { return string(t) }

// Details renders a one-line description of a titled media entry, e.g.
// "Movie: Inception". The switch is exhaustive over the closed set.
func (t MediaType) Details(title string) string {
	switch t {
	case MediaMovie:
		return "Movie: " + title
	case MediaWebShow:
		return "WebShow: " + title
	case MediaSong:
		return "Song: " + title
	case MediaCartoon:
		return "Cartoon: " + title
	default:
		return title
	}
}
