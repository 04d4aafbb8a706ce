package gateway

import (
	"fmt"
	"net/url"
	"strings"
)

// Query holds request query parameters. Values may be a string, a []string or
// anything fmt can print; list values are sent comma-separated, which is how
// the API expects multi-valued parameters.
type Query map[string]any

// Encode renders q the way url.Values does, with keys sorted.
func (q Query) Encode() string {
	if len(q) == 0 {
		return ""
	}
	vals := url.Values{}
	for k, v := range q {
		switch tv := v.(type) {
		case nil:
			continue
		case string:
			vals.Set(k, tv)
		case []string:
			vals.Set(k, strings.Join(tv, ","))
		case []any:
			parts := make([]string, 0, len(tv))
			for _, p := range tv {
				parts = append(parts, fmt.Sprint(p))
			}
			vals.Set(k, strings.Join(parts, ","))
		default:
			vals.Set(k, fmt.Sprint(tv))
		}
	}
	return vals.Encode()
}
