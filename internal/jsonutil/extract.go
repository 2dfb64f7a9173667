// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package jsonutil recovers JSON objects from free-form model replies.
package jsonutil

import (
	"encoding/json"
	"errors"
	"strings"
)

// ErrNoObject is returned when no JSON object can be recovered.
var ErrNoObject = errors.New("no JSON object found")

// ExtractObject returns the first balanced {...} span in s. Braces inside
// JSON string literals are ignored.
func ExtractObject(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	for start >= 0 {
		if end, ok := matchBrace(s, start); ok {
			return s[start : end+1], true
		}
		next := strings.IndexByte(s[start+1:], '{')
		if next < 0 {
			break
		}
		start += next + 1
	}
	return "", false
}

// matchBrace returns the index of the brace closing the one at open.
func matchBrace(s string, open int) (int, bool) {
	depth := 0
	inString := false
	escaped := false
	for i := open; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i, true
			}
		}
	}
	return 0, false
}

// Decode unmarshals a model reply into v. It tries, in order: the whole
// reply, the first balanced object, and the slice from the first '{' to the
// last '}'.
func Decode(s string, v any) error {
	s = stripFences(strings.TrimSpace(s))
	if s == "" {
		return ErrNoObject
	}
	if err := json.Unmarshal([]byte(s), v); err == nil {
		return nil
	}

	var lastErr error = ErrNoObject
	if obj, ok := ExtractObject(s); ok {
		err := json.Unmarshal([]byte(obj), v)
		if err == nil {
			return nil
		}
		lastErr = err
	}

	first := strings.IndexByte(s, '{')
	last := strings.LastIndexByte(s, '}')
	if first >= 0 && last > first {
		err := json.Unmarshal([]byte(s[first:last+1]), v)
		if err == nil {
			return nil
		}
		lastErr = err
	}
	return lastErr
}

// stripFences removes a surrounding ```json ... ``` fence.
func stripFences(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
