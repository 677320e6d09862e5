package server

import (
	"html/template"
	"net/http"

	"github.com/julienschmidt/httprouter"
)

// ListSitesHandler handles requests to GET /admin/sites. A token for a
// single site only sees that site.
func (s *RESTServer) ListSitesHandler(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	result := SiteList{Sites: []string{}}
	if name := ps.ByName("site"); name != "" {
		if s.Sites.Exists(name) {
			result.Sites = append(result.Sites, name)
		}
		writeHTMLorJSON(w, r, listSitesTemplate, result)
		return
	}
	sites, err := s.Sites.List()
	if err != nil {
		writeError(w, err)
		return
	}
	result.Sites = append(result.Sites, sites...)
	writeHTMLorJSON(w, r, listSitesTemplate, result)
}

// SiteList is returned by ListSitesHandler.
type SiteList struct {
	Sites []string
}

var (
	listSitesTemplate = template.Must(template.New("listsites").Parse(`<html>
<h1>Sites</h1>
<ol>
{{ range .Sites }}
	<li><a href="/admin/sites/{{ . }}">{{ . }}</a></li>
{{ else }}
	<li>No Sites</li>
{{ end }}
</ol>
</html>`))
)

// SiteInfo is returned by SiteInfoHandler.
type SiteInfo struct {
	Name  string
	Paths []string
}

// SiteInfoHandler handles requests to GET /admin/sites/:site
func (s *RESTServer) SiteInfoHandler(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	name := ps.ByName("site")
	if !s.Sites.Exists(name) {
		notFound(w)
		return
	}
	store, err := s.Sites.Get(name)
	if err != nil {
		writeError(w, err)
		return
	}
	paths, err := store.Paths(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeHTMLorJSON(w, r, siteInfoTemplate, SiteInfo{Name: name, Paths: paths})
}

var (
	siteInfoTemplate = template.Must(template.New("siteinfo").Parse(`<html>
<h1>Site {{ .Name }}</h1>
{{ $name := .Name }}
<ul>
{{ range .Paths }}
	<li><a href="/site/{{ $name }}{{ . }}">{{ . }}</a></li>
{{ else }}
	<li>No Content</li>
{{ end }}
</ul>
<a href="/admin/sites">Back</a>
</html>`))
)
