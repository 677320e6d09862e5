package site

import (
	"context"

	"github.com/ndlib/webpub/entity"
)

// A Getter reads the entity list at one path. A path with nothing stored
// gives an empty list and no error.
type Getter interface {
	Get(ctx context.Context) (entity.List, error)
}

// A Setter replaces the entity list at one path. Setting an empty list
// deletes the path.
type Setter interface {
	Set(ctx context.Context, list entity.List) error
}

// A Site hands out capabilities for individual paths. It is implemented by
// *Store and by remote connections.
type Site interface {
	Getter(path string) Getter
	Setter(path string) Setter
}

var _ Site = &Store{}

// A Cell binds one path of one site. It is not given to other code
// directly; pass on only the Getter or Setter derived from it.
type Cell struct {
	store *Store
	path  string
}

// Cell returns the cell for path.
func (s *Store) Cell(path string) Cell {
	return Cell{store: s, path: path}
}

// Path returns the path this cell is bound to.
func (c Cell) Path() string { return c.path }

// AsGetter returns the read half of c.
func (c Cell) AsGetter() Getter { return getter{c: c} }

// AsSetter returns the write half of c.
func (c Cell) AsSetter() Setter { return setter{c: c} }

// getter and setter each wrap the cell, and each has only one method, so
// neither can be converted into the other.
type getter struct{ c Cell }

type setter struct{ c Cell }

func (g getter) Get(ctx context.Context) (entity.List, error) {
	list, _, err := g.c.store.Read(ctx, g.c.path)
	return list, err
}

func (s setter) Set(ctx context.Context, list entity.List) error {
	return s.c.store.Write(ctx, s.c.path, list)
}
