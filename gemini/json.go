package gemini

import (
	"encoding/json"
	"fmt"
	"strings"
)

// MalformedResponseError reports model output that could not be coerced into
// JSON even after fence stripping.
type MalformedResponseError struct {
	Raw string
}

func (e *MalformedResponseError) Error() string {
	raw := e.Raw
	if len(raw) > 200 {
		raw = raw[:200] + "..."
	}
	return fmt.Sprintf("model response is not valid JSON: %q", raw)
}

// ExtractJSON coerces free-form model text into a JSON payload. Models often
// wrap their output in markdown code fences despite instructions not to, so
// the common fence markers are stripped before parsing. Returns a
// *MalformedResponseError if the remainder still is not valid JSON.
func ExtractJSON(raw string) ([]byte, error) {
	s := strings.TrimSpace(raw)

	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		if idx := strings.LastIndex(s, "```"); idx >= 0 {
			s = s[:idx]
		}
		s = strings.TrimSpace(s)
	}

	if !json.Valid([]byte(s)) {
		return nil, &MalformedResponseError{Raw: raw}
	}
	return []byte(s), nil
}

// UnmarshalResponse extracts the JSON payload from model text and decodes it
// into v. All call sites share this instead of re-implementing fence
// stripping.
func UnmarshalResponse(raw string, v any) error {
	payload, err := ExtractJSON(raw)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(payload, v); err != nil {
		return &MalformedResponseError{Raw: raw}
	}
	return nil
}
