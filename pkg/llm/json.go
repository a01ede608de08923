package llm

import (
	"encoding/json"
	"errors"
	"strings"
)

// ErrNoJSONObject is returned when a reply contains no balanced, valid JSON object.
var ErrNoJSONObject = errors.New("no JSON object found in response")

// ExtractObject returns the first balanced {...} span in a free-form model reply.
// Braces inside JSON strings are ignored. Markdown fences and surrounding prose are skipped.
func ExtractObject(response string) (string, error) {
	s := response
	for {
		start := strings.IndexByte(s, '{')
		if start < 0 {
			return "", ErrNoJSONObject
		}
		if obj, ok := balancedObject(s[start:]); ok {
			if json.Valid([]byte(obj)) {
				return obj, nil
			}
		} else {
			// 从这里开始不可能再闭合
			return "", ErrNoJSONObject
		}
		s = s[start+1:]
	}
}

// balancedObject returns the prefix of s (which starts with '{') up to its matching '}'.
func balancedObject(s string) (string, bool) {
	depth := 0
	inString := false
	escaped := false

	for i := 0; i < len(s); i++ {
		c := s[i]

		if escaped {
			escaped = false
			continue
		}
		if c == '\\' && inString {
			escaped = true
			continue
		}
		if c == '"' {
			inString = !inString
			continue
		}
		if inString {
			continue
		}

		switch c {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[:i+1], true
			}
		}
	}
	return "", false
}
