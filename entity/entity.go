// Package entity defines the records kept for each published URL path and
// the binary encoding used to store them.
//
// A path maps to a List of Entity values. Each Entity is one representation
// of the resource: a MIME type, an optional content-coding, and either a body
// or a redirect target. A List is always stored as a single value so that it
// is written and read atomically.
package entity

import (
	"github.com/pkg/errors"
)

// Identity is the content-coding of an Entity with an empty Encoding.
const Identity = "identity"

// Entity is one representable form of the resource at a path.
// Exactly one of Body and RedirectTo is used. An Entity with a non-empty
// RedirectTo is a redirect; otherwise Body holds the content, which may be
// empty.
type Entity struct {
	MimeType   string
	Encoding   string // empty means identity
	Body       []byte
	RedirectTo string
}

// List is the ordered set of variants stored at a path. Storing an empty
// List deletes the path.
type List []Entity

// Errors shared by the storage and serving layers. Callers should compare
// against these with errors.Cause, since they are usually wrapped.
var (
	// ErrStorageUnavailable means the database for a site could not be
	// opened, read, or committed.
	ErrStorageUnavailable = errors.New("storage unavailable")

	// ErrCorrupt means stored bytes did not decode as a variant list.
	ErrCorrupt = errors.New("corrupt variant list")

	// ErrInvalidInput means a path, site name, or entity cannot be
	// represented.
	ErrInvalidInput = errors.New("invalid input")
)

// IsRedirect reports whether this entity redirects rather than carries a
// body.
func (e Entity) IsRedirect() bool {
	return e.RedirectTo != ""
}

// Coding returns the content-coding of e, substituting Identity for an empty
// Encoding.
func (e Entity) Coding() string {
	if e.Encoding == "" {
		return Identity
	}
	return e.Encoding
}

// Validate checks that e can be stored. Every entity needs a MIME type, and
// an entity may not carry both a body and a redirect.
func (e Entity) Validate() error {
	if e.MimeType == "" {
		return errors.Wrap(ErrInvalidInput, "entity has no mime type")
	}
	if e.IsRedirect() && len(e.Body) > 0 {
		return errors.Wrap(ErrInvalidInput, "entity has both body and redirect")
	}
	return nil
}

// Validate checks every entity in the list.
func (l List) Validate() error {
	for i := range l {
		if err := l[i].Validate(); err != nil {
			return errors.Wrapf(err, "entity %d", i)
		}
	}
	return nil
}

// NewBody returns a single entity list holding body with the given MIME type.
func NewBody(mimetype string, body []byte) List {
	return List{{MimeType: mimetype, Body: body}}
}

// NewRedirect returns a single entity list redirecting to target. The MIME
// type should be that of the target, so the redirect negotiates the same way
// the target does.
func NewRedirect(mimetype, target string) List {
	return List{{MimeType: mimetype, RedirectTo: target}}
}
