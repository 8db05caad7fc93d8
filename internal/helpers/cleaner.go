package helpers

import (
	"errors"
	"strings"
)

// StripCodeFences removes an enclosing Markdown code fence from s, keeping the
// inner content. Content that is not wrapped in a fence is returned unchanged
// apart from surrounding whitespace. Supports ``` and ~~~ fences with an
// optional language tag on the opening line.
func StripCodeFences(s string) string {
	s = trimBOM(strings.TrimSpace(s))
	for _, fence := range []string{"```", "~~~"} {
		if !strings.HasPrefix(s, fence) || !strings.HasSuffix(s, fence) {
			continue
		}
		inner := s[len(fence) : len(s)-len(fence)]
		// Drop the optional language tag after the opening fence.
		if nl := strings.IndexByte(inner, '\n'); nl != -1 {
			first := strings.TrimSpace(inner[:nl])
			if first == "" || isLangTag(first) {
				inner = inner[nl+1:]
			}
		}
		return strings.TrimSpace(inner)
	}
	return s
}

func isLangTag(s string) bool {
	for _, r := range s {
		if r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == '_' || r == '-' || r == '+' {
			continue
		}
		return false
	}
	return true
}

// ExtractJSON finds and returns the first JSON object or array in s.
// Code fences are stripped first, then a balanced {...} or [...] is scanned
// out, ignoring braces and brackets inside strings.
func ExtractJSON(s string) (string, error) {
	s = StripCodeFences(s)

	if len(s) > 0 && (s[0] == '{' || s[0] == '[') {
		if out, ok := extractBalancedJSONFrom(s, 0); ok {
			return out, nil
		}
	}
	for i := 0; i < len(s); i++ {
		if s[i] == '{' || s[i] == '[' {
			if out, ok := extractBalancedJSONFrom(s, i); ok {
				return out, nil
			}
		}
	}
	return "", errors.New("no balanced JSON object/array found")
}

// ExtractJSONArray is ExtractJSON restricted to arrays. Planner responses must
// be a bare list; a leading object is skipped over rather than returned.
func ExtractJSONArray(s string) (string, error) {
	s = StripCodeFences(s)
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '[':
			if out, ok := extractBalancedJSONFrom(s, i); ok {
				return out, nil
			}
		case '{':
			// Arrays nested inside an object do not count as a bare list.
			if obj, ok := extractBalancedJSONFrom(s, i); ok {
				i += len(obj) - 1
			}
		}
	}
	return "", errors.New("no balanced JSON array found")
}

// extractBalancedJSONFrom attempts to extract a balanced JSON value starting
// at startIdx. Handles nested objects/arrays, strings, and escape sequences.
func extractBalancedJSONFrom(s string, startIdx int) (string, bool) {
	if startIdx < 0 || startIdx >= len(s) {
		return "", false
	}
	open := s[startIdx]
	if open != '{' && open != '[' {
		return "", false
	}

	var (
		stack    []byte
		inString bool
		escape   bool
	)
	stack = append(stack, open)

	for i := startIdx + 1; i < len(s); i++ {
		c := s[i]
		if inString {
			if escape {
				escape = false
				continue
			}
			switch c {
			case '\\':
				escape = true
			case '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{', '[':
			stack = append(stack, c)
		case '}', ']':
			if len(stack) == 0 {
				return "", false
			}
			top := stack[len(stack)-1]
			if (top == '{' && c != '}') || (top == '[' && c != ']') {
				return "", false
			}
			stack = stack[:len(stack)-1]
			if len(stack) == 0 {
				return s[startIdx : i+1], true
			}
		}
	}
	return "", false
}

// trimBOM removes an optional UTF-8 BOM.
func trimBOM(s string) string {
	return strings.TrimPrefix(s, "\uFEFF")
}
