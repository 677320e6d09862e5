package site

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"

	raven "github.com/getsentry/raven-go"
	"github.com/pkg/errors"

	"github.com/ndlib/webpub/entity"
)

// A Registry opens site databases by name. Each site lives in its own
// directory under the registry root.
//
// Opened stores are cached and are never evicted. Reopening a database is
// expensive and the set of sites served by one process is small, so the
// handles are kept until the process exits (or Close is called during
// shutdown).
type Registry struct {
	root    string
	opening opener

	mu     sync.Mutex // protects stores
	stores map[string]*Store
}

// Errors for site names which cannot be used as directory names.
var (
	ErrNameEmpty      = errors.New("site name is empty")
	ErrNameReserved   = errors.New("site name is reserved")
	ErrNameSlash      = errors.New("site name contains a slash")
	ErrNameNonUnicode = errors.New("site name contains a non-Unicode character")
	ErrNameWhiteSpace = errors.New("site name contains white space")
	ErrNameControl    = errors.New("site name contains a control character")
)

// NewRegistry returns a registry keeping its sites under root.
func NewRegistry(root string) *Registry {
	r := &Registry{
		root:   root,
		stores: make(map[string]*Store),
	}
	r.opening.open = r.open
	return r
}

// Root returns the directory holding the site directories.
func (r *Registry) Root() string { return r.root }

// Get returns the store for the named site, opening or creating it if
// necessary.
func (r *Registry) Get(name string) (*Store, error) {
	if err := ValidName(name); err != nil {
		return nil, errors.Wrap(entity.ErrInvalidInput, err.Error())
	}
	r.mu.Lock()
	s, ok := r.stores[name]
	r.mu.Unlock()
	if ok {
		return s, nil
	}
	return r.opening.Open(name)
}

// Exists reports whether the named site has been created. It never creates
// anything, so it is used on paths anonymous requests can reach.
func (r *Registry) Exists(name string) bool {
	if ValidName(name) != nil {
		return false
	}
	r.mu.Lock()
	_, ok := r.stores[name]
	r.mu.Unlock()
	if ok {
		return true
	}
	fi, err := os.Stat(filepath.Join(r.root, name))
	return err == nil && fi.IsDir()
}

func (r *Registry) open(name string) (*Store, error) {
	// someone may have finished opening it since we last looked
	r.mu.Lock()
	s, ok := r.stores[name]
	r.mu.Unlock()
	if ok {
		return s, nil
	}

	dir := filepath.Join(r.root, name)
	// Ignore the error. The directory may already exist, and a real
	// problem will make the open fail anyway.
	_ = os.MkdirAll(dir, 0755)
	s, err := OpenStore(dir)
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	r.stores[name] = s
	r.mu.Unlock()
	return s, nil
}

// List returns the names of all the sites, in sorted order. It lists the
// site directories, so a site which has never had content stored still
// appears.
func (r *Registry) List() ([]string, error) {
	entries, err := os.ReadDir(r.root)
	if err != nil {
		raven.CaptureError(err, map[string]string{"Root": r.root})
		return nil, errors.Wrapf(entity.ErrStorageUnavailable, "listing sites: %s", err.Error())
	}
	var result []string
	for _, e := range entries {
		if e.IsDir() {
			result = append(result, e.Name())
		}
	}
	sort.Strings(result)
	return result, nil
}

// Close closes every open store. It is only meant for process shutdown;
// the registry should not be used afterwards.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	var firsterr error
	for name, s := range r.stores {
		if err := s.Close(); err != nil && firsterr == nil {
			firsterr = err
		}
		delete(r.stores, name)
	}
	return firsterr
}

// ValidName checks that name can be used as a site directory name.
func ValidName(name string) error {
	switch name {
	case "":
		return ErrNameEmpty
	case ".", "..":
		return ErrNameReserved
	}
	if !utf8.ValidString(name) {
		return ErrNameNonUnicode
	}
	if strings.ContainsAny(name, `/\`) {
		return ErrNameSlash
	}
	for _, r := range name {
		if unicode.IsSpace(r) {
			return ErrNameWhiteSpace
		}
		if unicode.IsControl(r) {
			return ErrNameControl
		}
	}
	return nil
}
