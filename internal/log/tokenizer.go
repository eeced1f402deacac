package log

import (
	"fmt"
	"strings"
)

// token is a single key=value pair of a configuration line. A value wrapped
// in brackets is unwrapped, with inside set to '['.
type token struct {
	key    string
	value  string
	inside rune
}

// tokenize splits a `key=value,key2=[v1,v2]` configuration line into tokens.
func tokenize(line string) ([]token, error) {
	var tokens []token
	for rest := line; rest != ""; {
		var key string
		var found bool
		key, rest, found = strings.Cut(rest, "=")
		if !found || key == "" {
			return nil, fmt.Errorf("key `%s` with no value", key)
		}

		var t token
		t.key = key
		if strings.HasPrefix(rest, "[") {
			end := strings.IndexByte(rest, ']')
			if end < 0 {
				return nil, fmt.Errorf("key `%s` has an unclosed `[`", key)
			}
			t.value, t.inside = rest[1:end], '['
			rest = rest[end+1:]
			if rest != "" && rest[0] != ',' {
				return nil, fmt.Errorf("key `%s` has trailing characters after `]`", key)
			}
			rest = strings.TrimPrefix(rest, ",")
		} else {
			t.value, rest, _ = strings.Cut(rest, ",")
		}

		if t.value == "" && t.inside == 0 {
			return nil, fmt.Errorf("key `%s=` with no value", key)
		}
		tokens = append(tokens, t)
	}

	return tokens, nil
}
