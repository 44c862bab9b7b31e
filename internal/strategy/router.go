package strategy

import (
	"net/http"
	"path"
	"strings"
)

const (
	PolicyCacheFirst   = "cache-first"
	PolicyNetworkFirst = "network-first"
	PolicyPassThrough  = "pass-through"
)

// Generations names the two live cache partitions.
type Generations struct {
	Static  string
	Dynamic string
}

type Decision struct {
	Policy     string
	Generation string
}

var imageExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".gif":  true,
	".webp": true,
	".svg":  true,
	".ico":  true,
	".avif": true,
}

// Decide applies the routing rule, in priority order: images are
// cache-first against the dynamic generation, /api/ paths are
// network-first against the dynamic generation, everything else is
// cache-first against the static generation. Non-GET requests and
// non-http schemes are not intercepted at all.
func Decide(req *http.Request, gens Generations) Decision {
	if req.Method != http.MethodGet || !isWebScheme(req) {
		return Decision{Policy: PolicyPassThrough}
	}

	if destination(req) == "image" {
		return Decision{Policy: PolicyCacheFirst, Generation: gens.Dynamic}
	}
	if strings.HasPrefix(req.URL.Path, "/api/") {
		return Decision{Policy: PolicyNetworkFirst, Generation: gens.Dynamic}
	}
	return Decision{Policy: PolicyCacheFirst, Generation: gens.Static}
}

// isWebScheme reports whether the request travels over http or https.
// Requests received by a server handler carry an empty scheme; those
// arrived over http(s) by construction.
func isWebScheme(req *http.Request) bool {
	switch req.URL.Scheme {
	case "", "http", "https":
		return true
	}
	return false
}

// destination mirrors the browser's request destination. Browsers send it
// as Sec-Fetch-Dest; for clients that do not, fall back to the path
// extension.
func destination(req *http.Request) string {
	if dest := req.Header.Get("Sec-Fetch-Dest"); dest != "" {
		return dest
	}
	if imageExtensions[strings.ToLower(path.Ext(req.URL.Path))] {
		return "image"
	}
	return ""
}
