package sync

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolve(t *testing.T) {
	tests := []struct {
		root      string
		rel       string
		container bool
		want      string
	}{
		{"/", "a.txt", false, "/a.txt"},
		{"/", "/a.txt", false, "/a.txt"},
		{"/data/", "a/b.txt", false, "/data/a/b.txt"},
		{"/data/", "dir", true, "/data/dir/"},
		{"/data/", "dir/", true, "/data/dir/"},
		{"/", "", true, "/"},
		{"/data/", "", true, "/data/"},
		{"/exact.bin", "ignored.txt", false, "/exact.bin"},
		{"/exact", "dir", true, "/exact"},
	}

	for _, tt := range tests {
		got := Resolve(tt.root, tt.rel, tt.container)
		assert.Equal(t, PathIdentity(tt.want), got, "Resolve(%q, %q, %v)", tt.root, tt.rel, tt.container)
	}
}

func TestIdentity(t *testing.T) {
	assert.True(t, PathIdentity("/").IsRoot())
	assert.True(t, PathIdentity("/").IsDirectory())
	assert.True(t, PathIdentity("/a/").IsDirectory())
	assert.False(t, PathIdentity("/a").IsDirectory())
	assert.False(t, OpaqueIdentity("abc/").IsDirectory())
	assert.False(t, OpaqueIdentity("abc").IsPath())
	assert.True(t, Identity{}.IsZero())
	assert.Equal(t, "abc", OpaqueIdentity("abc").String())
}
