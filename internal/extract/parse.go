package extract

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ParseResponse finds the first brace-delimited JSON object in the model's
// response text and decodes it. Absence of a parsable object is an extraction
// failure, not a panic or a partial result.
func ParseResponse(text string) (RawFestival, error) {
	objText, ok := firstJSONObject(text)
	if !ok {
		return RawFestival{}, fmt.Errorf("no JSON object found in model response")
	}
	var raw RawFestival
	if err := json.Unmarshal([]byte(objText), &raw); err != nil {
		return RawFestival{}, fmt.Errorf("decode extracted JSON: %w", err)
	}
	return raw, nil
}

// firstJSONObject scans for the first balanced {...} span, ignoring braces
// inside JSON strings.
func firstJSONObject(text string) (string, bool) {
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
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
				return text[start : i+1], true
			}
		}
	}
	return "", false
}
