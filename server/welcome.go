package server

import (
	"fmt"
	"net/http"

	"github.com/julienschmidt/httprouter"
)

func WelcomeHandler(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if r.Method == "HEAD" {
		return
	}
	fmt.Fprintf(w, "webpub (%s)\n", Version)
}
