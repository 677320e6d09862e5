package bclientapi

import (
	"bytes"
	"context"
	"io/ioutil"
	"net/http"

	"github.com/pkg/errors"

	"github.com/ndlib/webpub/entity"
	"github.com/ndlib/webpub/site"
	"github.com/ndlib/webpub/util"
)

var _ site.Site = &Connection{}

// Getter returns a read capability for path on the server. The token must
// have the Read role.
func (c *Connection) Getter(path string) site.Getter { return remoteGetter{c: c, path: path} }

// Setter returns a write capability for path on the server. The token must
// have the Write role.
func (c *Connection) Setter(path string) site.Setter { return remoteSetter{c: c, path: path} }

type remoteGetter struct {
	c    *Connection
	path string
}

type remoteSetter struct {
	c    *Connection
	path string
}

// Get returns the entity list at the path. A path with nothing stored gives
// an empty list.
func (g remoteGetter) Get(ctx context.Context) (entity.List, error) {
	target := g.c.entityURL(g.path)
	req, err := http.NewRequestWithContext(ctx, "GET", target, nil)
	if err != nil {
		return nil, errors.Wrap(entity.ErrInvalidInput, err.Error())
	}
	resp, err := g.c.do(req)
	if err != nil {
		return nil, errors.Wrap(entity.ErrStorageUnavailable, err.Error())
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case 200:
		break
	case 404:
		return nil, nil
	default:
		return nil, statusError(resp, "GET", target)
	}
	hw := util.NewHashWriterPlain()
	data, err := ioutil.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(entity.ErrStorageUnavailable, err.Error())
	}
	hw.Write(data)
	if sum := resp.Header.Get("X-Content-Md5"); sum != "" && sum != hw.HexMD5() {
		return nil, ErrChecksumMismatch
	}
	return entity.Decode(data)
}

// Set replaces the entity list at the path. An empty list deletes the path.
func (s remoteSetter) Set(ctx context.Context, list entity.List) error {
	var body = new(bytes.Buffer)
	hw := util.NewMD5Writer(body)
	if len(list) > 0 {
		data, err := list.Encode()
		if err != nil {
			return err
		}
		hw.Write(data)
	}
	target := s.c.entityURL(s.path)
	req, err := http.NewRequestWithContext(ctx, "PUT", target, body)
	if err != nil {
		return errors.Wrap(entity.ErrInvalidInput, err.Error())
	}
	req.Header.Set("Content-Type", "application/cbor")
	req.Header.Set("X-Upload-Md5", hw.HexMD5())
	resp, err := s.c.do(req)
	if err != nil {
		return errors.Wrap(entity.ErrStorageUnavailable, err.Error())
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case 200, 204:
		return nil
	case 400:
		msg, _ := ioutil.ReadAll(resp.Body)
		return errors.Wrapf(entity.ErrInvalidInput, "PUT %s: %s", target, bytes.TrimSpace(msg))
	}
	return statusError(resp, "PUT", target)
}
