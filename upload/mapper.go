// Package upload copies a tree of files into a site.
//
// Each regular file becomes the content at the URL path given by its
// location relative to the upload root. A file named index.html instead
// becomes the content of its directory, at the directory path with a
// trailing slash, and both the slashless directory path and the index.html
// path redirect there.
//
// Uploads are not atomic. Every path is written in its own transaction, and
// the first error stops the upload, leaving whatever was already written in
// place.
package upload

import (
	"bytes"
	"context"
	"io/fs"
	"log"
	"path"
	"strings"
	"unicode/utf8"

	"github.com/klauspost/compress/gzip"
	"github.com/pkg/errors"

	"github.com/ndlib/webpub/entity"
	"github.com/ndlib/webpub/site"
)

// IndexFile is the name of the file which holds the content for its
// directory.
const IndexFile = "index.html"

// A Mapper uploads files into Site.
type Mapper struct {
	Site site.Site

	// Gzip adds a gzip encoded variant next to the plain one for
	// text-like files.
	Gzip bool

	// Verbose logs every path written.
	Verbose bool
}

// Upload writes every file under root in fsys. If root names a single file
// only that file is uploaded, at the top of the site.
//
// Directories are walked with an explicit stack instead of recursion, so the
// depth of the tree is not limited by the goroutine stack. Symbolic links to
// files are followed; symbolic links to directories and other irregular
// files are skipped.
func (m *Mapper) Upload(ctx context.Context, fsys fs.FS, root string) error {
	root = path.Clean(root)
	info, err := fs.Stat(fsys, root)
	if err != nil {
		return errors.Wrapf(err, "upload %s", root)
	}
	if !info.IsDir() {
		return m.UploadFile(ctx, fsys, path.Dir(root), root)
	}

	stack := []string{root}
	for len(stack) > 0 {
		dir := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		entries, err := fs.ReadDir(fsys, dir)
		if err != nil {
			return errors.Wrapf(err, "reading directory %s", dir)
		}
		for _, e := range entries {
			if err := ctx.Err(); err != nil {
				return err
			}
			name := path.Join(dir, e.Name())
			mode := e.Type()
			if mode&fs.ModeSymlink != 0 {
				fi, err := fs.Stat(fsys, name)
				if err != nil {
					return errors.Wrapf(err, "following link %s", name)
				}
				if fi.IsDir() {
					log.Println("upload: skipping link to directory", name)
					continue
				}
				mode = fi.Mode().Type()
			}
			switch {
			case mode.IsDir():
				stack = append(stack, name)
			case mode.IsRegular():
				if err := m.UploadFile(ctx, fsys, root, name); err != nil {
					return err
				}
			default:
				log.Println("upload: skipping irregular file", name)
			}
		}
	}
	return nil
}

// UploadFile writes the single file name, which is inside root.
func (m *Mapper) UploadFile(ctx context.Context, fsys fs.FS, root, name string) error {
	urlpath, err := URLPath(root, name)
	if err != nil {
		return err
	}
	mimetype := MimeType(name)
	body, err := fs.ReadFile(fsys, name)
	if err != nil {
		return errors.Wrapf(err, "reading %s", name)
	}
	content, err := m.variants(mimetype, body)
	if err != nil {
		return errors.Wrapf(err, "compressing %s", name)
	}

	if path.Base(name) != IndexFile {
		return m.set(ctx, urlpath, content)
	}

	parent := path.Dir(urlpath)
	canonical := parent
	if !strings.HasSuffix(canonical, "/") {
		canonical += "/"
	}
	if err := m.set(ctx, canonical, content); err != nil {
		return err
	}
	// the site root has no slashless form
	if parent != "/" {
		if err := m.set(ctx, parent, entity.NewRedirect(mimetype, canonical)); err != nil {
			return err
		}
	}
	return m.set(ctx, urlpath, entity.NewRedirect(mimetype, canonical))
}

func (m *Mapper) set(ctx context.Context, urlpath string, list entity.List) error {
	if err := m.Site.Setter(urlpath).Set(ctx, list); err != nil {
		return errors.Wrapf(err, "writing %s", urlpath)
	}
	if m.Verbose {
		log.Println("wrote", urlpath)
	}
	return nil
}

func (m *Mapper) variants(mimetype string, body []byte) (entity.List, error) {
	result := entity.NewBody(mimetype, body)
	if !m.Gzip || !compressible(mimetype) {
		return result, nil
	}
	var buf bytes.Buffer
	w, err := gzip.NewWriterLevel(&buf, gzip.BestCompression)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(body); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return append(result, entity.Entity{
		MimeType: mimetype,
		Encoding: "gzip",
		Body:     buf.Bytes(),
	}), nil
}

// URLPath returns the URL path for the file name inside root. Both are
// slash separated fs.FS paths.
func URLPath(root, name string) (string, error) {
	if !utf8.ValidString(name) {
		return "", errors.Wrapf(entity.ErrInvalidInput, "path %q is not UTF-8", name)
	}
	rel := name
	if root != "." {
		if !strings.HasPrefix(name, root+"/") {
			return "", errors.Wrapf(entity.ErrInvalidInput, "%s is not inside %s", name, root)
		}
		rel = name[len(root)+1:]
	}
	return "/" + rel, nil
}
