package sync

import "strings"

// Resolve maps a source object's relative path onto the destination root.
//
// A root without a trailing slash names one specific object and relPath is
// ignored. Otherwise the relative path is appended to the root, and container
// objects get a trailing slash so they resolve to directories.
func Resolve(root, relPath string, container bool) Identity {
	if !strings.HasSuffix(root, "/") {
		return PathIdentity(root)
	}
	path := root + strings.TrimPrefix(relPath, "/")
	if container && !strings.HasSuffix(path, "/") {
		path += "/"
	}
	return PathIdentity(path)
}
