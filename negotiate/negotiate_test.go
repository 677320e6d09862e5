package negotiate

import (
	"testing"

	"github.com/ndlib/webpub/entity"
)

var (
	htmlPlain = entity.Entity{MimeType: "text/html", Body: []byte("plain")}
	htmlGzip  = entity.Entity{MimeType: "text/html", Encoding: "gzip", Body: []byte("gzipped")}
	jsonPlain = entity.Entity{MimeType: "application/json", Body: []byte("{}")}
)

func TestNegotiateEncoding(t *testing.T) {
	variants := entity.List{htmlPlain, htmlGzip}
	accept := []Preference{{"text/html", 1.0}}
	var table = []struct {
		name      string
		encodings EncodingSet
		match     bool
		body      string
	}{
		{"gzip accepted", EncodingSet{"gzip": true}, true, "gzipped"},
		{"identity only", EncodingSet{}, true, "plain"},
		{"nil set", nil, true, "plain"},
		{"gzip refused", EncodingSet{"gzip": false}, true, "plain"},
		{"neither", EncodingSet{"identity": false}, false, ""},
		{"star refuses identity", EncodingSet{"*": false}, false, ""},
		{"star accepts gzip", EncodingSet{"*": true}, true, "gzipped"},
	}
	for _, row := range table {
		result, ok := Negotiate(variants, accept, row.encodings)
		if ok != row.match {
			t.Errorf("%s: received match %v, expected %v", row.name, ok, row.match)
			continue
		}
		if ok && string(result.Body) != row.body {
			t.Errorf("%s: received %q, expected %q", row.name, result.Body, row.body)
		}
	}
}

func TestNegotiateQOrder(t *testing.T) {
	variants := entity.List{htmlPlain, jsonPlain}
	var table = [][]Preference{
		{{"text/html", 0.5}, {"application/json", 0.9}},
		{{"application/json", 0.9}, {"text/html", 0.5}},
	}
	for _, accept := range table {
		result, ok := Negotiate(variants, accept, nil)
		if !ok || result.MimeType != "application/json" {
			t.Errorf("For %v received %v %v, expected application/json", accept, result.MimeType, ok)
		}
	}
}

func TestNegotiateStableTieBreak(t *testing.T) {
	variants := entity.List{htmlPlain, jsonPlain}
	result, _ := Negotiate(variants, []Preference{{"text/html", 0.8}, {"application/json", 0.8}}, nil)
	if result.MimeType != "text/html" {
		t.Errorf("Received %s, expected text/html", result.MimeType)
	}
	result, _ = Negotiate(variants, []Preference{{"application/json", 0.8}, {"text/html", 0.8}}, nil)
	if result.MimeType != "application/json" {
		t.Errorf("Received %s, expected application/json", result.MimeType)
	}
}

func TestNegotiateFallsThrough(t *testing.T) {
	// the first choice exists only in a coding the client refuses
	variants := entity.List{htmlGzip, jsonPlain}
	accept := []Preference{{"text/html", 1}, {"application/json", 0.1}}
	result, ok := Negotiate(variants, accept, EncodingSet{})
	if !ok || result.MimeType != "application/json" {
		t.Errorf("Received %v %v, expected application/json", result.MimeType, ok)
	}
}

func TestNegotiateExactOnly(t *testing.T) {
	variants := entity.List{htmlPlain}
	var table = [][]Preference{
		nil,
		{{"*/*", 1}},
		{{"text/*", 1}},
		{{"text/html;level=1", 1}},
		{{"application/json", 1}},
	}
	for _, accept := range table {
		if _, ok := Negotiate(variants, accept, nil); ok {
			t.Errorf("For %v received a match, expected none", accept)
		}
	}
}

func TestNegotiateEmpty(t *testing.T) {
	if _, ok := Negotiate(nil, []Preference{{"text/html", 1}}, nil); ok {
		t.Errorf("Received a match from an empty list")
	}
}

func TestNegotiateDuplicateLastWins(t *testing.T) {
	first := entity.Entity{MimeType: "text/plain", Body: []byte("first")}
	second := entity.Entity{MimeType: "text/plain", Body: []byte("second")}
	result, ok := Negotiate(entity.List{first, second}, []Preference{{"text/plain", 1}}, nil)
	if !ok || string(result.Body) != "second" {
		t.Errorf("Received %q, expected %q", result.Body, "second")
	}
}

func TestNegotiateRedirect(t *testing.T) {
	variants := entity.NewRedirect("text/html", "/blog/")
	result, ok := Negotiate(variants, []Preference{{"text/html", 1}}, nil)
	if !ok || result.RedirectTo != "/blog/" {
		t.Errorf("Received %#v %v, expected redirect", result, ok)
	}
}

func TestNegotiateDoesNotReorderInput(t *testing.T) {
	accept := []Preference{{"text/html", 0.1}, {"application/json", 1}}
	Negotiate(entity.List{htmlPlain}, accept, nil)
	if accept[0].MimeType != "text/html" {
		t.Errorf("Negotiate sorted the caller's slice")
	}
}
