package uri

import "strings"

type Pair struct{ Key, Value string }

// ParseQuery splits an application/x-www-form-urlencoded string into
// percent-decoded pairs in their original order. Decoded keys and values are raw
// octets, the caller interprets them in the charset of the request.
// Pairs without '=' and pairs with an empty value are dropped.
func ParseQuery(qs string) []Pair {
	pairs := make([]Pair, 0)

	for _, part := range strings.Split(qs, "&") {
		if part == "" {
			continue
		}

		key, value, found := strings.Cut(part, "=")
		if !found || value == "" {
			continue
		}

		pairs = append(pairs, Pair{Key: unquoteForm(key), Value: unquoteForm(value)})
	}

	return pairs
}
