package server

import (
	"bytes"
	"fmt"
	"io/ioutil"
	"net/http"
	"strconv"

	"github.com/julienschmidt/httprouter"

	"github.com/ndlib/webpub/entity"
	"github.com/ndlib/webpub/util"
)

// GetEntitiesHandler handles requests to GET /entities/*path. It returns the
// whole encoded entity list for the path.
func (s *RESTServer) GetEntitiesHandler(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	name := ps.ByName("site")
	if name == "" {
		w.WriteHeader(400)
		fmt.Fprintln(w, "no site given")
		return
	}
	if !s.Sites.Exists(name) {
		notFound(w)
		return
	}
	store, err := s.Sites.Get(name)
	if err != nil {
		writeError(w, err)
		return
	}
	list, err := store.Getter(ps.ByName("path")).Get(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if len(list) == 0 {
		notFound(w)
		return
	}
	data, err := list.Encode()
	if err != nil {
		writeError(w, err)
		return
	}
	hw := util.NewHashWriterPlain()
	hw.Write(data)
	w.Header().Set("Content-Type", EntityMimeType)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set("X-Content-Md5", hw.HexMD5())
	w.Write(data)
}

// EntityMimeType is the content type of an encoded entity list.
const EntityMimeType = "application/cbor"

// PutEntitiesHandler handles requests to PUT /entities/*path. The body is an
// encoded entity list which replaces whatever is stored at the path. An
// empty body deletes the path. If the header X-Upload-Md5 is present the body
// must have that hex encoded MD5 hash.
func (s *RESTServer) PutEntitiesHandler(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	name := ps.ByName("site")
	if name == "" {
		w.WriteHeader(400)
		fmt.Fprintln(w, "no site given")
		return
	}
	if !s.writers.Enter() {
		w.WriteHeader(503)
		fmt.Fprintln(w, "server is shutting down")
		return
	}
	defer s.writers.Leave()

	body, err := ioutil.ReadAll(r.Body)
	if err != nil {
		w.WriteHeader(400)
		fmt.Fprintln(w, err)
		return
	}
	if md5 := r.Header.Get("X-Upload-Md5"); md5 != "" {
		ok, err := util.VerifyStreamMD5(bytes.NewReader(body), md5)
		if err != nil {
			w.WriteHeader(400)
			fmt.Fprintln(w, "bad MD5 string")
			return
		}
		if !ok {
			w.WriteHeader(412)
			fmt.Fprintln(w, "MD5 mismatch")
			return
		}
	}
	var list entity.List
	if len(body) > 0 {
		list, err = entity.Decode(body)
		if err != nil {
			w.WriteHeader(400)
			fmt.Fprintln(w, err)
			return
		}
	}
	store, err := s.Sites.Get(name)
	if err != nil {
		writeError(w, err)
		return
	}
	err = store.Setter(ps.ByName("path")).Set(r.Context(), list)
	if err != nil {
		writeError(w, err)
		return
	}
	xWrites.Add(1)
	w.WriteHeader(204)
}
