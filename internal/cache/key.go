package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"slices"
	"strings"
)

// maxKeyLength is the length above which keys are replaced by their hash.
const maxKeyLength = 256

// BuildKey derives a deterministic key for a catalog read from the
// tenant, method, path and query of r. Query parameters are sorted by
// name and value; parameters named in ignore are left out so responses
// that differ only in post-processing share an entry.
func BuildKey(r *http.Request, tenant string, ignore ...string) string {
	var sb strings.Builder
	sb.WriteString(tenant)
	sb.WriteByte('|')
	sb.WriteString(r.Method)
	sb.WriteByte(':')
	sb.WriteString(r.URL.Path)

	query := r.URL.Query()
	names := make([]string, 0, len(query))
	for name := range query {
		if !slices.Contains(ignore, name) {
			names = append(names, name)
		}
	}
	slices.Sort(names)

	for i, name := range names {
		if i == 0 {
			sb.WriteByte('?')
		}
		values := slices.Clone(query[name])
		slices.Sort(values)
		for j, v := range values {
			if i > 0 || j > 0 {
				sb.WriteByte('&')
			}
			sb.WriteString(name)
			sb.WriteByte('=')
			sb.WriteString(v)
		}
	}

	key := sb.String()
	if len(key) > maxKeyLength {
		return "sha256:" + HashKey(key)
	}
	return key
}

// HashKey returns the hex SHA-256 of key.
func HashKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}
