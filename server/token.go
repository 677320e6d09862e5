package server

import (
	"bufio"
	"io"
	"os"
	"sort"
	"strings"
)

// A TokenDecoder validates and decodes user tokens passed into the web API.
// A token is good for one site, or for every site if the site is AnySite.
// If the given token is not valid, for whatever reason, the site "" with a
// role of RoleUnknown is returned. An error is returned only if there is some
// kind of error doing the lookup and the ultimate status of the token is
// unknown.
type TokenDecoder interface {
	TokenDecode(token string) (site string, role Role, err error)
}

// AnySite is the site name for tokens which are good for every site.
const AnySite = "*"

type Role int

const (
	RoleUnknown Role = iota
	RoleRead         // may use the getter capability
	RoleWrite        // may use the setter capability
	RoleAdmin        // may do everything
)

func atoRole(s string) Role {
	switch strings.ToLower(s) {
	case "read":
		return RoleRead
	case "write":
		return RoleWrite
	case "admin":
		return RoleAdmin
	default:
		return RoleUnknown
	}
}

// Allows returns whether a holder of role r may do something needing the
// role need. Read and Write are separate capabilities: a writer cannot
// read and a reader cannot write. Admin allows everything.
func (r Role) Allows(need Role) bool {
	switch need {
	case RoleUnknown:
		return true
	case RoleRead, RoleWrite:
		return r == need || r == RoleAdmin
	case RoleAdmin:
		return r == RoleAdmin
	}
	return false
}

func (r Role) String() string {
	switch r {
	case RoleRead:
		return "Read"
	case RoleWrite:
		return "Write"
	case RoleAdmin:
		return "Admin"
	}
	return "Unknown"
}

// NewNobodyDecoder creates a TokenDecoder that for every possible token
// returns the Admin role on every site.
func NewNobodyDecoder() TokenDecoder {
	return new(nobodyDecoder)
}

type nobodyDecoder struct{}

func (_ nobodyDecoder) TokenDecode(token string) (string, Role, error) {
	return AnySite, RoleAdmin, nil
}

// A ListDecoder is backed by a predefined list of tokens, which are read from r upon creation.
// The reader r should consist of a sequence of token entries, separated by newlines.
// Each entry has the form:
//
//	<site name>  <role>  <token>
//
// The fields are delineated by whitespace (spaces or tabs).
// This decoder does not permit spaces in either the site
// name or the token. The site name "*" gives the token access to every site.
// The role is one of "Read", "Write", "Admin" (case insensitive). Empty lines
// and lines beginning with a hash '#' are skipped.
func NewListDecoder(r io.Reader) (TokenDecoder, error) {
	entries, err := parseListFile(r)
	if err != nil {
		return nil, err
	}
	sort.Sort(byToken(entries))
	return listDecoder{entries}, nil
}

// NewListDecoderFile is a convenience function that reads the contents of
// the given file into a ListDecoder. The file should have the same format
// that NewListDecoder expects.
func NewListDecoderFile(fname string) (TokenDecoder, error) {
	f, err := os.Open(fname)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return NewListDecoder(f)
}

// NewListDecoderString is a convenience function that passes the given string
// into a ListDecoder. The format of the string is the same as that expected
// by NewListDecoder.
func NewListDecoderString(data string) (TokenDecoder, error) {
	return NewListDecoder(strings.NewReader(data))
}

func parseListFile(r io.Reader) ([]tokenEntry, error) {
	var result []tokenEntry
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		// split on whitespace
		pieces := strings.Fields(scanner.Text())
		// skip blank lines or lines beginning with a '#'
		if len(pieces) == 0 || pieces[0][0] == '#' {
			continue
		}
		if len(pieces) != 3 {
			// wrong number of columns
			continue
		}
		result = append(result, tokenEntry{
			token: pieces[2],
			site:  pieces[0],
			role:  atoRole(pieces[1]),
		})
	}
	return result, scanner.Err()
}

type listDecoder struct {
	data []tokenEntry
}

type byToken []tokenEntry

func (te byToken) Len() int           { return len(te) }
func (te byToken) Less(i, j int) bool { return te[i].token < te[j].token }
func (te byToken) Swap(i, j int)      { te[i], te[j] = te[j], te[i] }

type tokenEntry struct {
	token string
	site  string
	role  Role
}

func (ld listDecoder) TokenDecode(token string) (string, Role, error) {
	entries := ld.data
	if token == "" {
		return "", RoleUnknown, nil
	}
	i := sort.Search(len(entries), func(i int) bool { return entries[i].token >= token })
	if i < len(entries) && entries[i].token == token {
		return entries[i].site, entries[i].role, nil
	}
	return "", RoleUnknown, nil
}
