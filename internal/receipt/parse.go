package receipt

import (
	"bytes"
	"encoding/json"
	"regexp"
	"strings"
)

// maxRepairAttempts bounds how many cut points are tried when closing truncated JSON.
const maxRepairAttempts = 64

var fencePattern = regexp.MustCompile("(?s)```[a-zA-Z]*\\s*(.*?)\\s*(```|$)")

// stripCodeFences returns the content of the first fenced block, or the input unchanged.
func stripCodeFences(text string) string {
	if m := fencePattern.FindStringSubmatch(text); m != nil {
		return m[1]
	}
	return text
}

type cutPoint struct {
	pos     int
	closers string
}

// locateJSONObject finds the first JSON object in text. When the object is balanced it is
// returned as is; when the text ends first, the object is closed at the last position where
// a complete member or element ended. repaired reports whether any closing was needed.
func locateJSONObject(text string) (obj string, repaired bool, ok bool) {
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return "", false, false
	}
	s := text[start:]

	var (
		stack    []byte
		inString bool
		escaped  bool
		cuts     []cutPoint
	)
	closersFor := func() string {
		b := make([]byte, len(stack))
		for i := range stack {
			if stack[len(stack)-1-i] == '{' {
				b[i] = '}'
			} else {
				b[i] = ']'
			}
		}
		return string(b)
	}

	for i := 0; i < len(s); i++ {
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
		case '{', '[':
			// An empty object is never a useful array element.
			inArray := len(stack) > 0 && stack[len(stack)-1] == '['
			stack = append(stack, c)
			if c == '[' || !inArray {
				cuts = append(cuts, cutPoint{pos: i + 1, closers: closersFor()})
			}
		case '}', ']':
			if len(stack) == 0 {
				return "", false, false
			}
			stack = stack[:len(stack)-1]
			if len(stack) == 0 {
				return s[:i+1], false, true
			}
			cuts = append(cuts, cutPoint{pos: i + 1, closers: closersFor()})
		case ',':
			cuts = append(cuts, cutPoint{pos: i, closers: closersFor()})
		}
	}

	// Truncated: first try closing right where the text ended.
	if !inString {
		tail := strings.TrimRight(s, " \t\r\n")
		if candidate := tail + closersFor(); json.Valid([]byte(candidate)) {
			return candidate, true, true
		}
	}
	for n, j := 0, len(cuts)-1; j >= 0 && n < maxRepairAttempts; j, n = j-1, n+1 {
		candidate := strings.TrimRight(s[:cuts[j].pos], " \t\r\n") + cuts[j].closers
		if json.Valid([]byte(candidate)) {
			return candidate, true, true
		}
	}
	return "", false, false
}

// decodeObject decodes a JSON object keeping numbers as json.Number.
func decodeObject(obj string) (map[string]interface{}, error) {
	dec := json.NewDecoder(bytes.NewReader([]byte(obj)))
	dec.UseNumber()
	var out map[string]interface{}
	if err := dec.Decode(&out); err != nil {
		return nil, err
	}
	return out, nil
}

var salvagePatterns = map[string]*regexp.Regexp{
	"total_amount":  regexp.MustCompile(`"total_amount"\s*:\s*"?([^",}\n]+)`),
	"merchant_name": regexp.MustCompile(`"merchant_name"\s*:\s*"([^"]+)"`),
	"date":          regexp.MustCompile(`"date"\s*:\s*"([^"]+)"`),
	"currency":      regexp.MustCompile(`"currency"\s*:\s*"([^"]+)"`),
	"category":      regexp.MustCompile(`"category"\s*:\s*"([^"]+)"`),
}

// salvageFields pulls top-level scalar fields out of text that could not be parsed as JSON.
// Only fields actually present in the text are returned.
func salvageFields(text string) map[string]interface{} {
	out := make(map[string]interface{})
	for key, re := range salvagePatterns {
		if m := re.FindStringSubmatch(text); m != nil {
			out[key] = strings.TrimSpace(m[1])
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// parseResponse turns untrusted model text into a field map. recovered is true when the
// fields came from JSON repair or salvage rather than a well-formed object.
func parseResponse(text string) (fields map[string]interface{}, recovered bool) {
	body := stripCodeFences(strings.TrimSpace(text))
	if obj, repaired, ok := locateJSONObject(body); ok {
		if m, err := decodeObject(obj); err == nil {
			return m, repaired
		}
	}
	return salvageFields(body), true
}
