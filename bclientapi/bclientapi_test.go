package bclientapi

import (
	"context"
	"fmt"
	"io/ioutil"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"testing/fstest"

	"github.com/pkg/errors"

	"github.com/ndlib/webpub/entity"
	"github.com/ndlib/webpub/server"
	"github.com/ndlib/webpub/site"
	"github.com/ndlib/webpub/upload"
)

// newTestServer starts a webpub server wrapped in an ErrorServer.
func newTestServer(t *testing.T, validator server.TokenDecoder) (*httptest.Server, *ErrorServer) {
	s := &server.RESTServer{
		Sites:     site.NewRegistry(t.TempDir()),
		Validator: validator,
	}
	es := &ErrorServer{h: s.Handler()}
	ts := httptest.NewServer(es)
	t.Cleanup(func() {
		ts.Close()
		s.Sites.Close()
	})
	return ts, es
}

func TestSetGet(t *testing.T) {
	ctx := context.Background()
	ts, _ := newTestServer(t, nil)
	c := New(ts.URL, "", "blog")

	list, err := c.Getter("/a b.html").Get(ctx)
	if err != nil || len(list) != 0 {
		t.Fatalf("Received %v, %v for missing path", list, err)
	}
	want := entity.List{
		{MimeType: "text/html", Body: []byte("page")},
		{MimeType: "text/html", Encoding: "gzip", Body: []byte("zipped")},
	}
	if err = c.Setter("/a b.html").Set(ctx, want); err != nil {
		t.Fatal(err)
	}
	list, err = c.Getter("/a b.html").Get(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 || string(list[0].Body) != "page" || list[1].Encoding != "gzip" {
		t.Errorf("Received %#v", list)
	}

	// delete
	if err = c.Setter("/a b.html").Set(ctx, nil); err != nil {
		t.Fatal(err)
	}
	list, err = c.Getter("/a b.html").Get(ctx)
	if err != nil || len(list) != 0 {
		t.Errorf("Received %v, %v after delete", list, err)
	}

	// invalid lists are not sent
	err = c.Setter("/x").Set(ctx, entity.List{{Body: []byte("no type")}})
	if errors.Cause(err) != entity.ErrInvalidInput {
		t.Errorf("Received %v, expected %v", err, entity.ErrInvalidInput)
	}
}

func TestUploadThroughConnection(t *testing.T) {
	ctx := context.Background()
	ts, _ := newTestServer(t, nil)
	c := New(ts.URL, "", "docs")
	fsys := fstest.MapFS{
		"index.html":       {Data: []byte("home")},
		"guide/index.html": {Data: []byte("guide")},
		"guide/style.css":  {Data: []byte("p{}")},
	}
	m := &upload.Mapper{Site: c}
	if err := m.Upload(ctx, fsys, "."); err != nil {
		t.Fatal(err)
	}

	sites, err := c.ListSites(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(sites) != 1 || sites[0] != "docs" {
		t.Errorf("Received sites %v", sites)
	}
	paths, err := c.Paths(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(paths) != 6 {
		t.Errorf("Received paths %v", paths)
	}

	resp, err := http.Get(ts.URL + "/site/docs/guide/")
	if err != nil {
		t.Fatal(err)
	}
	body, _ := ioutil.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != 200 || string(body) != "guide" {
		t.Errorf("Received %d %q", resp.StatusCode, body)
	}
}

func TestServerErrors(t *testing.T) {
	ctx := context.Background()
	ts, es := newTestServer(t, nil)
	c := New(ts.URL, "", "blog")
	list := entity.NewBody("text/plain", []byte("x"))

	var table = []struct {
		status int
		err    error
	}{
		{500, ErrServerError},
		{503, ErrServerError},
		{401, ErrNotAuthorized},
		{412, ErrChecksumMismatch},
		{409, ErrUnexpectedResp},
		{400, entity.ErrInvalidInput},
	}
	for _, row := range table {
		es.Reset([]Play{{When: 0, Status: row.status, Body: "injected"}})
		err := c.Setter("/x").Set(ctx, list)
		if errors.Cause(err) != row.err {
			t.Errorf("For status %d received %v, expected %v", row.status, err, row.err)
		}
	}

	// after the playbook runs out requests go through
	es.Reset([]Play{{When: 0, Status: 500}})
	if _, err := c.Getter("/x").Get(ctx); errors.Cause(err) != ErrServerError {
		t.Errorf("Received %v, expected %v", err, ErrServerError)
	}
	if err := c.Setter("/x").Set(ctx, list); err != nil {
		t.Errorf("Received %v", err)
	}
}

func TestTokens(t *testing.T) {
	ctx := context.Background()
	tokens, err := server.NewListDecoderString("blog write w1\nblog read r1\n")
	if err != nil {
		t.Fatal(err)
	}
	ts, _ := newTestServer(t, tokens)
	writer := New(ts.URL, "w1", "blog")
	reader := New(ts.URL, "r1", "blog")
	list := entity.NewBody("text/plain", []byte("x"))

	if err := writer.Setter("/x").Set(ctx, list); err != nil {
		t.Fatal(err)
	}
	if _, err := writer.Getter("/x").Get(ctx); err != ErrNotAuthorized {
		t.Errorf("Writer received %v, expected %v", err, ErrNotAuthorized)
	}
	if err := reader.Setter("/x").Set(ctx, list); err != ErrNotAuthorized {
		t.Errorf("Reader received %v, expected %v", err, ErrNotAuthorized)
	}
	got, err := reader.Getter("/x").Get(ctx)
	if err != nil || len(got) != 1 {
		t.Errorf("Reader received %v, %v", got, err)
	}
	other := New(ts.URL, "w1", "news")
	if err := other.Setter("/x").Set(ctx, list); err != ErrNotAuthorized {
		t.Errorf("Received %v for another site, expected %v", err, ErrNotAuthorized)
	}
}

func TestConcurrentUse(t *testing.T) {
	ctx := context.Background()
	ts, _ := newTestServer(t, nil)
	c := New(ts.URL, "", "blog")

	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			p := fmt.Sprintf("/page%d.txt", i)
			if err := c.Setter(p).Set(ctx, entity.NewBody("text/plain", []byte(p))); err != nil {
				errs <- err
				return
			}
			if _, err := c.Getter(p).Get(ctx); err != nil {
				errs <- err
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
	paths, err := c.Paths(ctx)
	if err != nil || len(paths) != 10 {
		t.Errorf("Received %v, %v", paths, err)
	}
}
