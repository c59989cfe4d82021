package cache

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildKey(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		target   string
		tenant   string
		ignore   []string
		expected string
	}{
		{
			name:     "no query",
			target:   "/v0/apis",
			tenant:   "t1",
			expected: "t1|GET:/v0/apis",
		},
		{
			name:     "query is sorted",
			target:   "/v0/apis?$top=2&$select=title,id&$count=true",
			tenant:   "t1",
			expected: "t1|GET:/v0/apis?$count=true&$select=title,id&$top=2",
		},
		{
			name:     "ignored parameter dropped",
			target:   "/v0/apis?compact=true&$top=1",
			tenant:   "t1",
			ignore:   []string{"compact"},
			expected: "t1|GET:/v0/apis?$top=1",
		},
		{
			name:     "only ignored parameter",
			target:   "/v0/apis?compact=true",
			tenant:   "t2",
			ignore:   []string{"compact"},
			expected: "t2|GET:/v0/apis",
		},
		{
			name:     "repeated values sorted",
			target:   "/v0/apis?b=2&a=z&a=y",
			tenant:   "t1",
			expected: "t1|GET:/v0/apis?a=y&a=z&b=2",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			r := httptest.NewRequest(http.MethodGet, tt.target, nil)
			assert.Equal(t, tt.expected, BuildKey(r, tt.tenant, tt.ignore...))
		})
	}
}

func TestBuildKey_TenantsDiffer(t *testing.T) {
	t.Parallel()

	r := httptest.NewRequest(http.MethodGet, "/v0/apis", nil)
	assert.NotEqual(t, BuildKey(r, "a"), BuildKey(r, "b"))
}

func TestBuildKey_LongKeysAreHashed(t *testing.T) {
	t.Parallel()

	r := httptest.NewRequest(http.MethodGet, "/v0/apis?$filter="+strings.Repeat("x", 300), nil)
	key := BuildKey(r, "t1")

	assert.True(t, strings.HasPrefix(key, "sha256:"))
	assert.Len(t, key, len("sha256:")+64)
	assert.Equal(t, key, BuildKey(r, "t1"))
}

func TestHashKey(t *testing.T) {
	t.Parallel()

	assert.Equal(t,
		"e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855",
		HashKey(""))
}
