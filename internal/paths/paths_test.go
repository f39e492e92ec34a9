package paths

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestJoin(t *testing.T) {
	tests := []struct {
		root string
		sub  string
		want string
	}{
		{"/metadata", "/svc/node", "/metadata/svc/node"},
		{"/metadata", "svc/node", "/metadata/svc/node"},
		{"/metadata/", "/svc/", "/metadata/svc"},
		{"/metadata", "", "/metadata"},
		{"/metadata", "/", "/metadata"},
		{"metadata", "a", "/metadata/a"},
		{"/", "/a//b", "/a/b"},
		{"", "", "/"},
	}

	for _, tc := range tests {
		t.Run(tc.root+"+"+tc.sub, func(t *testing.T) {
			assert.Equal(t, tc.want, Join(tc.root, tc.sub))
		})
	}
}

func TestChain(t *testing.T) {
	assert.Equal(t, []string{"/a", "/a/b", "/a/b/c"}, Chain("/a/b/c"))
	assert.Equal(t, []string{"/a", "/a/b"}, Chain("a/b/"))
	assert.Equal(t, []string{"/metadata"}, Chain("/metadata"))
	assert.Empty(t, Chain("/"))
	assert.Empty(t, Chain(""))
}

func TestParent(t *testing.T) {
	assert.Equal(t, "/a/b", Parent("/a/b/c"))
	assert.Equal(t, "/", Parent("/a"))
	assert.Equal(t, "/", Parent("/"))
}
