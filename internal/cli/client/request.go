package client

import (
	"io"
	"net/url"
	"strings"
)

// ResponseKind tells the pipeline how to treat a successful body
type ResponseKind int

const (
	// ResponseJSON expects a {code, message, data} envelope
	ResponseJSON ResponseKind = iota
	// ResponseBlob returns the raw body unless the server answered with an envelope
	ResponseBlob
)

// Request describes one call. Path is relative to the API base URL.
type Request struct {
	Method   string
	Path     string
	Query    url.Values
	Body     any // nil, *Multipart, or any JSON-serializable value
	Response ResponseKind
}

// Multipart is a multipart/form-data body, used for file uploads
type Multipart struct {
	Fields []Field
	Files  []FilePart
}

// Field is a plain form value
type Field struct {
	Name  string
	Value string
}

// FilePart is a streamed file
type FilePart struct {
	Field    string
	FileName string
	Content  io.Reader
}

// DefaultPublicPaths are the authentication endpoints that never receive a
// credential: they exist to obtain a new one or to reset access.
var DefaultPublicPaths = []string{
	"/auth/send-code",
	"/auth/send-login-code",
	"/auth/login",
	"/auth/register",
	"/auth/send-reset-code",
	"/auth/reset-password",
}

// PathSet is an allow-list of request paths
type PathSet map[string]struct{}

// NewPathSet builds a set from paths
func NewPathSet(paths ...string) PathSet {
	set := make(PathSet, len(paths))
	for _, p := range paths {
		set[normalizePath(p)] = struct{}{}
	}
	return set
}

// Match reports whether path is in the set. Query strings and trailing
// slashes are ignored.
func (s PathSet) Match(path string) bool {
	_, ok := s[normalizePath(path)]
	return ok
}

func normalizePath(p string) string {
	if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}
	p = strings.TrimRight(p, "/")
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return p
}

var defaultPublic = NewPathSet(DefaultPublicPaths...)

// IsPublic reports whether path is on the default public allow-list
func IsPublic(path string) bool {
	return defaultPublic.Match(path)
}
