package route

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMatch(t *testing.T) {
	tests := []struct {
		name    string
		path    string
		pattern string
		want    map[string]string
		ok      bool
	}{
		{"literal", "users", "users", map[string]string{}, true},
		{"named placeholder", "users/123", "users/{{user_id}}", map[string]string{"user_id": "123"}, true},
		{"two placeholders", "users/123/posts/9", "users/{{user_id}}/posts/{{post_id}}", map[string]string{"user_id": "123", "post_id": "9"}, true},
		{"anonymous placeholder", "users/123/permissions", "users/{{}}/permissions", map[string]string{}, true},
		{"slashes stripped", "/users/123/", "users/{{id}}", map[string]string{"id": "123"}, true},
		{"segment count mismatch", "users/123/extra", "users/{{id}}", nil, false},
		{"literal mismatch", "accounts/123", "users/{{id}}", nil, false},
		{"case sensitive", "Users", "users", nil, false},
		{"no partial segment", "users/abc123", "users/abc{{id}}", nil, false},
		{"root", "/", "", map[string]string{}, true},
		{"value kept verbatim", "files/a.b-c", "files/{{name}}", map[string]string{"name": "a.b-c"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Match(tt.path, tt.pattern)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMatchIgnoresAccessWildcard(t *testing.T) {
	// <> belongs to the access-list grammar and is a literal here.
	_, ok := Match("users/123", "users/<>")
	assert.False(t, ok)
}

func TestSegments(t *testing.T) {
	assert.Equal(t, []string{}, Segments("/"))
	assert.Equal(t, []string{"a", "b"}, Segments("/a/b/"))
}

func TestFind(t *testing.T) {
	patterns := []string{"users", "users/{{id}}", "users/{{}}", "users/{{id}}/orders"}

	tests := []struct {
		name       string
		path       string
		wantIndex  int
		wantParams map[string]string
	}{
		{name: "first literal", path: "/users/", wantIndex: 0, wantParams: map[string]string{}},
		{name: "first placeholder wins", path: "users/7", wantIndex: 1, wantParams: map[string]string{"id": "7"}},
		{name: "deeper", path: "users/7/orders", wantIndex: 3, wantParams: map[string]string{"id": "7"}},
		{name: "none", path: "orders", wantIndex: -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			idx, params := Find(tt.path, patterns)
			assert.Equal(t, tt.wantIndex, idx)
			assert.Equal(t, tt.wantParams, params)
		})
	}
}
