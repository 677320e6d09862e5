package main

import (
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/ndlib/webpub/server"
	"github.com/ndlib/webpub/site"
)

func TestRunUpload(t *testing.T) {
	s := &server.RESTServer{Sites: site.NewRegistry(t.TempDir())}
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()
	defer s.Sites.Close()

	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "index.html"), []byte("home"), 0644); err != nil {
		t.Fatal(err)
	}

	var table = []struct {
		args []string
		ok   bool
	}{
		{[]string{"--server", ts.URL, "--site", "blog", "--gzip", "upload", dir}, true},
		{[]string{"--server", ts.URL, "--site", "blog", "get", "/"}, true},
		{[]string{"--server", ts.URL, "--site", "blog", "get", "/missing"}, false},
		{[]string{"--server", ts.URL, "sites"}, true},
		// every-site access needs --site
		{[]string{"--server", ts.URL, "upload", dir}, false},
		{[]string{"--server", ts.URL, "--site", "blog", "upload"}, false},
		{[]string{"--server", ts.URL, "--site", "blog", "upload", filepath.Join(dir, "missing")}, false},
		{[]string{"--server", ts.URL, "frobnicate"}, false},
		{[]string{}, false},
	}
	for _, row := range table {
		err := run(row.args)
		if (err == nil) != row.ok {
			t.Errorf("%v: received %v", row.args, err)
		}
	}

	store, err := s.Sites.Get("blog")
	if err != nil {
		t.Fatal(err)
	}
	list, ok, err := store.Read(context.Background(), "/")
	if !ok || err != nil || len(list) != 2 {
		t.Errorf("Received %v %v %v, expected identity and gzip variants", list, ok, err)
	}
}

func TestRunSiteFromToken(t *testing.T) {
	tokens, err := server.NewListDecoderString("blog write w1\nblog read r1\n")
	if err != nil {
		t.Fatal(err)
	}
	s := &server.RESTServer{
		Sites:     site.NewRegistry(t.TempDir()),
		Validator: tokens,
	}
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()
	defer s.Sites.Close()

	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "a.txt"), []byte("a"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := run([]string{"--server", ts.URL, "--token", "w1", "upload", dir}); err != nil {
		t.Fatal(err)
	}
	if err := run([]string{"--server", ts.URL, "--token", "r1", "get", "/a.txt"}); err != nil {
		t.Errorf("get: %s", err)
	}
	if err := run([]string{"--server", ts.URL, "--token", "w1", "--site", "other", "upload", dir}); err == nil {
		t.Errorf("upload to another site succeeded")
	}
	store, err := s.Sites.Get("blog")
	if err != nil {
		t.Fatal(err)
	}
	if _, ok, err := store.Read(context.Background(), "/a.txt"); !ok || err != nil {
		t.Errorf("Received %v %v, expected /a.txt in blog", ok, err)
	}
}
