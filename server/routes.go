package server

import (
	"context"
	"encoding/json"
	"expvar"
	"fmt"
	"html/template"
	"log"
	"net"
	"net/http"
	_ "net/http/pprof" // for pprof server
	"strings"

	"github.com/facebookgo/httpdown"
	"github.com/julienschmidt/httprouter"

	"github.com/ndlib/webpub/site"
	"github.com/ndlib/webpub/util"
)

// Version is reported by the welcome page. It is set at link time.
var Version = "dev"

// RESTServer holds the configuration for a webpub server.
//
// Set all the public fields and then call Run. Run will listen on the given
// port and handle requests. Do not change any fields after calling Run.
type RESTServer struct {
	// Port number to run webpub on. defaults to 14000
	PortNumber string
	PProfPort  string

	// Sites opens the per-site databases. Run will panic if Sites is nil.
	Sites *site.Registry

	// Validator does authentication by validating any user tokens
	// presented to the API. If this is nil then every caller is an admin
	// on every site.
	Validator TokenDecoder

	// Hosts maps an HTTP host name to the site served at the root of
	// that host. Requests for other hosts use the /site/ routes.
	Hosts map[string]string

	// MaxWriters bounds the number of entity lists being stored at one
	// time. defaults to 8
	MaxWriters int

	server  httpdown.Server // used to close our listening socket
	writers *util.Gate
}

// DefaultMaxWriters is used when MaxWriters is not set.
const DefaultMaxWriters = 8

// counters exported on /debug/vars
var (
	xServed    = expvar.NewInt("webpub.served")
	xRedirects = expvar.NewInt("webpub.redirects")
	xNotFound  = expvar.NewInt("webpub.notfound")
	xWrites    = expvar.NewInt("webpub.writes")
	xErrors    = expvar.NewInt("webpub.errors")
)

// Run initializes the server and then blocks listening for and handling
// http requests.
func (s *RESTServer) Run() error {
	log.Println("==========")
	log.Printf("Starting webpub server version %s", Version)
	log.Printf("Sites = %s", s.Sites.Root())

	if s.PortNumber == "" {
		s.PortNumber = "14000"
	}

	// for pprof
	if s.PProfPort != "" {
		log.Println("Starting PProf on port", s.PProfPort)
		go func() {
			log.Println(http.ListenAndServe(":"+s.PProfPort, nil))
		}()
	}
	log.Println("Listening on", s.PortNumber)

	h := httpdown.HTTP{}
	var err error
	s.server, err = h.ListenAndServe(&http.Server{
		Addr:    ":" + s.PortNumber,
		Handler: s.Handler(),
	})
	if err != nil {
		log.Println(err)
		return err
	}
	return s.server.Wait()
}

// Stop will stop the server and return when all the server goroutines have
// exited and the socket closed. Writes in progress are allowed to finish.
func (s *RESTServer) Stop() error {
	var err error
	if s.server != nil {
		err = s.server.Stop()
	}
	if s.writers != nil {
		s.writers.Stop()
	}
	if cerr := s.Sites.Close(); err == nil {
		err = cerr
	}
	return err
}

// Handler returns the http.Handler serving every route. Run calls it; tests
// may use it directly.
func (s *RESTServer) Handler() http.Handler {
	if s.Sites == nil {
		panic("No site registry given. Sites is nil.")
	}
	if s.Validator == nil {
		log.Println("No Validator given")
		s.Validator = NewNobodyDecoder()
	}
	if s.MaxWriters <= 0 {
		s.MaxWriters = DefaultMaxWriters
	}
	if s.writers == nil {
		s.writers = util.NewGate(s.MaxWriters)
	}
	return &hostSwitch{
		hosts:   lowerKeys(s.Hosts),
		byhost:  s.hostRoutes(),
		primary: s.addRoutes(),
	}
}

func (s *RESTServer) addRoutes() http.Handler {
	var routes = []struct {
		method  string
		route   string
		role    Role // RoleUnknown means no API key is needed to access
		handler httprouter.Handle
	}{
		// published content
		{"GET", "/site/:site/*path", RoleUnknown, s.SiteHandler},
		{"HEAD", "/site/:site/*path", RoleUnknown, s.SiteHandler},

		// the getter and setter capabilities
		{"GET", "/entities/*path", RoleRead, s.GetEntitiesHandler},
		{"PUT", "/entities/*path", RoleWrite, s.PutEntitiesHandler},

		// admin
		{"GET", "/admin/sites", RoleAdmin, s.ListSitesHandler},
		{"GET", "/admin/sites/:site", RoleAdmin, s.SiteInfoHandler},

		// other
		{"GET", "/", RoleUnknown, WelcomeHandler},
		{"HEAD", "/", RoleUnknown, WelcomeHandler},
		{"GET", "/debug/vars", RoleUnknown, VarHandler}, // standard route for expvars data
	}

	r := httprouter.New()
	for _, route := range routes {
		r.Handle(route.method,
			route.route,
			logWrapper(s.authzWrapper(route.handler, route.role)))
	}
	return r
}

// hostRoutes serves a whole site at the root of a virtual host. The site
// name is filled in by hostSwitch.
func (s *RESTServer) hostRoutes() http.Handler {
	r := httprouter.New()
	// the virtual host owns its whole path space
	r.RedirectTrailingSlash = false
	r.RedirectFixedPath = false
	r.GET("/*path", logWrapper(s.HostHandler))
	r.HEAD("/*path", logWrapper(s.HostHandler))
	return r
}

// hostSwitch sends requests for a configured virtual host to the byhost
// handler, and everything else to the primary one.
type hostSwitch struct {
	hosts   map[string]string
	byhost  http.Handler
	primary http.Handler
}

func (h *hostSwitch) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if name := h.lookup(r.Host); name != "" {
		ctx := context.WithValue(r.Context(), hostSiteKey{}, name)
		h.byhost.ServeHTTP(w, r.WithContext(ctx))
		return
	}
	h.primary.ServeHTTP(w, r)
}

// lookup returns the site configured for host, ignoring any port.
func (h *hostSwitch) lookup(host string) string {
	if len(h.hosts) == 0 {
		return ""
	}
	if hostname, _, err := net.SplitHostPort(host); err == nil {
		host = hostname
	}
	return h.hosts[strings.ToLower(host)]
}

func lowerKeys(m map[string]string) map[string]string {
	result := make(map[string]string, len(m))
	for k, v := range m {
		result[strings.ToLower(k)] = v
	}
	return result
}

// hostSiteKey is the context key for the site chosen by hostSwitch.
type hostSiteKey struct{}

// General route handlers and convenience functions

// VarHandler adapts the expvar default handler to the httprouter three parameter handler.
func VarHandler(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	// this code is taken from the stdlib expvar package.
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	fmt.Fprintf(w, "{\n")
	first := true
	expvar.Do(func(kv expvar.KeyValue) {
		if !first {
			fmt.Fprintf(w, ",\n")
		}
		first = false
		fmt.Fprintf(w, "%q: %s", kv.Key, kv.Value)
	})
	fmt.Fprintf(w, "\n}\n")
}

// writeHTMLorJSON will either return val as JSON or as rendered using the
// given template, depending on the request header "Accept-Encoding".
func writeHTMLorJSON(w http.ResponseWriter,
	r *http.Request,
	tmpl *template.Template,
	val interface{}) {

	if r.Header.Get("Accept-Encoding") == "application/json" {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		json.NewEncoder(w).Encode(val)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	tmpl.Execute(w, val)
}

// authzWrapper returns a Handler which will first verify the user token as
// allowing the given Role. The site the token is good for is put into the
// parameter "site". A token for every site ("*") takes the site from the
// route or from the "site" query parameter.
func (s *RESTServer) authzWrapper(handler httprouter.Handle, need Role) httprouter.Handle {
	if need == RoleUnknown {
		return handler
	}
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		token := r.Header.Get("X-Api-Key")
		tsite, role, err := s.Validator.TokenDecode(token)
		if err != nil {
			w.WriteHeader(500)
			fmt.Fprintln(w, err.Error())
			return
		}

		// is role valid?
		if !role.Allows(need) {
			w.WriteHeader(401)
			fmt.Fprintln(w, "Forbidden")
			return
		}

		requested := ps.ByName("site")
		if requested == "" {
			requested = r.URL.Query().Get("site")
		}
		var name string
		switch {
		case tsite == AnySite:
			name = requested
		case requested == "" || requested == tsite:
			name = tsite
		default:
			w.WriteHeader(401)
			fmt.Fprintln(w, "Forbidden")
			return
		}

		// replace any previous site
		for i := range ps {
			if ps[i].Key == "site" {
				ps[i].Value = name
				goto out
			}
		}
		// add a new site if none found
		ps = append(ps, httprouter.Param{Key: "site", Value: name})
	out:
		handler(w, r, ps)
	}
}

// logWrapper takes a handler and returns a handler which does the same thing,
// after first logging the request URL.
func logWrapper(handler httprouter.Handle) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		log.Println(r.Method, r.Host, r.URL)
		handler(w, r, ps)
	}
}
