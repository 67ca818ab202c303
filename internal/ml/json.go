package ml

import (
	"encoding/json"
	"errors"
	"regexp"
)

// ErrNoJSON is returned when a model reply holds no JSON object.
var ErrNoJSON = errors.New("no JSON object found in response")

var jsonObject = regexp.MustCompile(`\{[\s\S]*\}`)

// ExtractJSON decodes a model reply into v. The reply is tried as-is first;
// models often wrap the object in prose or code fences, so the span from the
// first '{' to the last '}' is tried next.
func ExtractJSON(text string, v any) error {
	if err := json.Unmarshal([]byte(text), v); err == nil {
		return nil
	}
	match := jsonObject.FindString(text)
	if match == "" {
		return ErrNoJSON
	}
	return json.Unmarshal([]byte(match), v)
}
