package hedge

import (
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"sort"
	"strings"
)

// coalesceKey identifies logically identical requests for deduplication.
// Query parameters are sorted so equivalent URLs written in different
// orders coalesce, and the whole key is hashed to keep it bounded.
func coalesceKey(req *http.Request) string {
	u := req.URL

	query := u.Query()
	params := make([]string, 0, len(query))
	for key, values := range query {
		sort.Strings(values)
		for _, v := range values {
			params = append(params, key+"="+v)
		}
	}
	sort.Strings(params)

	parts := []string{
		req.Method,
		u.Scheme + "://" + u.Host + u.Path,
		strings.Join(params, "&"),
	}

	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:])
}
