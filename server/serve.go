package server

import (
	"fmt"
	"log"
	"net/http"
	"strconv"

	"github.com/julienschmidt/httprouter"
	"github.com/pkg/errors"

	"github.com/ndlib/webpub/entity"
	"github.com/ndlib/webpub/negotiate"
)

// SiteHandler handles requests to GET /site/:site/*path
func (s *RESTServer) SiteHandler(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	name := ps.ByName("site")
	s.serveSite(w, r, name, ps.ByName("path"), "/site/"+name)
}

// HostHandler serves the site of a virtual host at the root of the host.
func (s *RESTServer) HostHandler(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	name, _ := r.Context().Value(hostSiteKey{}).(string)
	s.serveSite(w, r, name, ps.ByName("path"), "")
}

// serveSite returns the variant of path in the named site which best
// matches the request headers. Redirects are relative to the site, so
// prefix is added to them.
func (s *RESTServer) serveSite(w http.ResponseWriter, r *http.Request, name, path, prefix string) {
	// don't create sites for anonymous requests
	if !s.Sites.Exists(name) {
		notFound(w)
		return
	}
	store, err := s.Sites.Get(name)
	if err != nil {
		writeError(w, err)
		return
	}
	list, err := store.Getter(path).Get(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	var accept []negotiate.Preference
	if h := r.Header.Get("Accept"); h != "" {
		accept = negotiate.ParseAccept(h)
	} else {
		accept = storedTypes(list)
	}
	encodings := negotiate.ParseAcceptEncoding(r.Header.Get("Accept-Encoding"))
	e, ok := negotiate.Negotiate(list, accept, encodings)
	if !ok {
		notFound(w)
		return
	}

	w.Header().Set("Vary", "Accept, Accept-Encoding")
	if e.IsRedirect() {
		xRedirects.Add(1)
		w.Header().Set("Location", prefix+e.RedirectTo)
		w.WriteHeader(http.StatusMovedPermanently)
		return
	}
	xServed.Add(1)
	w.Header().Set("Content-Type", e.MimeType)
	if e.Coding() != entity.Identity {
		w.Header().Set("Content-Encoding", e.Encoding)
	}
	w.Header().Set("Content-Length", strconv.Itoa(len(e.Body)))
	w.WriteHeader(http.StatusOK)
	if r.Method == "HEAD" {
		return
	}
	w.Write(e.Body)
}

// storedTypes makes one preference for each MIME type in list, in list
// order. It stands in for a missing Accept header.
func storedTypes(list entity.List) []negotiate.Preference {
	var result []negotiate.Preference
	seen := make(map[string]bool)
	for _, e := range list {
		if seen[e.MimeType] {
			continue
		}
		seen[e.MimeType] = true
		result = append(result, negotiate.Preference{MimeType: e.MimeType, Q: 1})
	}
	return result
}

func notFound(w http.ResponseWriter) {
	xNotFound.Add(1)
	w.WriteHeader(404)
	fmt.Fprintln(w, "Not Found")
}

// writeError turns an error from the site package into a response. Input
// errors are the caller's fault. Everything else is logged.
func writeError(w http.ResponseWriter, err error) {
	switch errors.Cause(err) {
	case entity.ErrInvalidInput:
		w.WriteHeader(400)
	default:
		xErrors.Add(1)
		log.Println(err)
		w.WriteHeader(500)
	}
	fmt.Fprintln(w, err.Error())
}
