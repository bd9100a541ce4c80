package gateway

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"sort"
	"strings"

	"github.com/fairyhunter13/stock-signal-fabric/internal/domain"
)

// Fingerprint keys a cache entry on (service, method, path, query). The
// query is canonicalized: keys sorted, values URL-decoded, repeated values
// kept in their incoming order. Two requests that differ only in query-key
// ordering or percent-encoding share an entry.
func Fingerprint(kind domain.ServiceKind, method, path string, query url.Values) string {
	var sb strings.Builder
	sb.WriteString(string(kind))
	sb.WriteByte('|')
	sb.WriteString(method)
	sb.WriteByte('|')
	sb.WriteString(path)
	sb.WriteByte('|')
	sb.WriteString(canonicalQuery(query))
	sum := sha256.Sum256([]byte(sb.String()))
	return hex.EncodeToString(sum[:])
}

func canonicalQuery(query url.Values) string {
	if len(query) == 0 {
		return ""
	}
	keys := make([]string, 0, len(query))
	for k := range query {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var sb strings.Builder
	for i, k := range keys {
		if i > 0 {
			sb.WriteByte('&')
		}
		for j, v := range query[k] {
			if j > 0 {
				sb.WriteByte('&')
			}
			sb.WriteString(k)
			sb.WriteByte('=')
			sb.WriteString(v)
		}
	}
	return sb.String()
}
