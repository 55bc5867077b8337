package cache

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// KeyPrefix namespaces every key written by this package.
const KeyPrefix = "presupuesto"

// CacheKey identifies a cached endpoint result.
type CacheKey struct {
	// Endpoint is the API route (e.g., "/api/presupuesto-detalle")
	Endpoint string

	// Query are the request parameters (e.g., {"fecha_desde": "2024-01-01"})
	Query url.Values
}

// String generates a deterministic cache key string.
// Format: presupuesto:endpoint:param1=val1:param2=val2
//
// Example:
//
//	presupuesto:api/presupuesto-detalle:fecha_desde=2024-01-01:fecha_hasta=2024-01-31
//
// Empty parameters are skipped so "?vendedor=" and no vendedor share an entry.
// Repeated parameters are joined with commas.
func (k CacheKey) String() string {
	parts := []string{KeyPrefix}

	endpoint := strings.Trim(k.Endpoint, "/")
	if endpoint != "" {
		parts = append(parts, endpoint)
	}

	if len(k.Query) > 0 {
		keys := make([]string, 0, len(k.Query))
		for key := range k.Query {
			keys = append(keys, key)
		}
		sort.Strings(keys)

		for _, key := range keys {
			value := strings.Join(k.Query[key], ",")
			if value == "" {
				continue
			}
			parts = append(parts, fmt.Sprintf("%s=%s", key, value))
		}
	}

	return strings.Join(parts, ":")
}
