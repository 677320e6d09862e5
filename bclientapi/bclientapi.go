// Package bclientapi talks to a webpub server. A Connection is a site.Site
// whose getters and setters read and replace entity lists over HTTP, so the
// upload mapper can publish to a remote server the same way it publishes to
// a local store.
package bclientapi

import (
	"context"
	"fmt"
	"io"
	"io/ioutil"
	"log"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/antonholmquist/jason"
	"github.com/pkg/errors"
)

// A Connection represents a connection with a webpub server for one site.
// It can be shared between multiple goroutines.
type Connection struct {
	// The webpub server this connection is to
	HostURL string

	// Token is sent as the API key. It may be empty.
	Token string

	// Site is the site all paths refer to.
	Site string

	clientOnce sync.Once
	client     *http.Client
}

// Exported errors
var (
	ErrNotAuthorized    = errors.New("Access Denied")
	ErrUnexpectedResp   = errors.New("Unexpected Response Code")
	ErrChecksumMismatch = errors.New("Checksum mismatch")
	ErrServerError      = errors.New("Server Error")
)

// New returns a connection to the server at hostURL for the named site.
func New(hostURL, token, site string) *Connection {
	return &Connection{
		HostURL: hostURL,
		Token:   token,
		Site:    site,
	}
}

// ListSites returns the names of the sites the token may see.
func (c *Connection) ListSites(ctx context.Context) ([]string, error) {
	v, err := c.doJasonGet(ctx, "/admin/sites", nil)
	if err != nil {
		return nil, err
	}
	return v.GetStringArray("Sites")
}

// Paths returns every path stored in this connection's site.
func (c *Connection) Paths(ctx context.Context) ([]string, error) {
	v, err := c.doJasonGet(ctx, "/admin/sites/"+url.PathEscape(c.Site), nil)
	if err != nil {
		return nil, err
	}
	return v.GetStringArray("Paths")
}

// entityURL returns the capability URL for path in our site.
func (c *Connection) entityURL(path string) string {
	u := url.URL{Path: "/entities" + path}
	q := url.Values{}
	if c.Site != "" {
		q.Set("site", c.Site)
	}
	return c.HostURL + u.EscapedPath() + "?" + q.Encode()
}

// do performs an http request using our client with a timeout. The
// timeout is arbitrary, and is just there so we don't hang indefinitely
// should the server never close the connection.
func (c *Connection) do(req *http.Request) (*http.Response, error) {
	if c.Token != "" {
		req.Header.Add("X-Api-Key", c.Token)
	}
	c.clientOnce.Do(func() {
		c.client = &http.Client{
			Timeout: 10 * time.Minute, // arbitrary
		}
	})
	return c.client.Do(req)
}

func (c *Connection) doJasonGet(ctx context.Context, path string, query url.Values) (*jason.Object, error) {
	path = c.HostURL + path
	if len(query) > 0 {
		path += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, "GET", path, nil)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Accept-Encoding", "application/json")
	resp, err := c.do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case 200:
		return jason.NewObjectFromReader(resp.Body)
	default:
		return nil, statusError(resp, "GET", path)
	}
}

// statusError turns an unsuccessful response into one of our errors.
func statusError(resp *http.Response, verb, path string) error {
	msg, _ := ioutil.ReadAll(io.LimitReader(resp.Body, 512))
	switch {
	case resp.StatusCode == 401:
		return ErrNotAuthorized
	case resp.StatusCode == 412:
		return ErrChecksumMismatch
	case resp.StatusCode >= 500:
		log.Printf("Received HTTP status %d for %s %s: %s", resp.StatusCode, verb, path, msg)
		return errors.Wrapf(ErrServerError, "%s %s: %s", verb, path, msg)
	}
	return errors.Wrap(ErrUnexpectedResp, fmt.Sprintf("%s %s: status %d: %s", verb, path, resp.StatusCode, msg))
}
