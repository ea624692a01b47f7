package normalize

import "bytes"

var nonFinite = [][]byte{
	[]byte("-Infinity"),
	[]byte("Infinity"),
	[]byte("NaN"),
}

// SanitizeNonFinite rewrites bare NaN, Infinity and -Infinity tokens
// outside of string literals to null. Input without such tokens is
// returned unchanged.
func SanitizeNonFinite(body []byte) []byte {
	if !bytes.Contains(body, []byte("NaN")) && !bytes.Contains(body, []byte("Infinity")) {
		return body
	}

	out := make([]byte, 0, len(body))
	inString := false
	escaped := false
	for i := 0; i < len(body); {
		c := body[i]
		if inString {
			out = append(out, c)
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			i++
			continue
		}
		if c == '"' {
			inString = true
			out = append(out, c)
			i++
			continue
		}
		replaced := false
		for _, tok := range nonFinite {
			if bytes.HasPrefix(body[i:], tok) {
				out = append(out, "null"...)
				i += len(tok)
				replaced = true
				break
			}
		}
		if !replaced {
			out = append(out, c)
			i++
		}
	}
	return out
}
