// Package paths joins logical node paths onto the configured root prefix
// and expands a path into the chain of nodes that must exist for it.
//
// All paths handled here are slash-separated and absolute. Joining never
// produces a double separator:
//
//	Join("/metadata", "svc/node")  = "/metadata/svc/node"
//	Join("/metadata/", "/svc/")    = "/metadata/svc"
//	Join("/metadata", "")          = "/metadata"
package paths

import (
	"path"
	"strings"
)

// Separator is the node path separator.
const Separator = "/"

// Join returns sub appended to root as a clean absolute path.
func Join(root, sub string) string {
	return path.Join(Separator, root, sub)
}

// Clean normalizes p into an absolute path without trailing separator.
func Clean(p string) string {
	return path.Join(Separator, p)
}

// Chain returns every cumulative prefix of p, shortest first, including p
// itself. The root "/" is never part of the chain.
//
//	Chain("/a/b/c") = ["/a", "/a/b", "/a/b/c"]
//	Chain("/")      = []
func Chain(p string) []string {
	clean := Clean(p)
	if clean == Separator {
		return nil
	}

	parts := strings.Split(strings.TrimPrefix(clean, Separator), Separator)
	chain := make([]string, 0, len(parts))
	current := ""
	for _, part := range parts {
		current += Separator + part
		chain = append(chain, current)
	}
	return chain
}

// Parent returns the parent of p, or "/" for top-level nodes.
func Parent(p string) string {
	return path.Dir(Clean(p))
}
