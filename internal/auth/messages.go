package auth

import (
	"encoding/json"
	"slices"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const nonFieldErrors = "non_field_errors"

// errorBody is what the backend sends with a non 2xx response: either
// {"detail": "..."} or field keyed lists such as {"email": ["..."]}.
type errorBody struct {
	Detail string
	Fields map[string][]string
}

// ignoredErrorKeys are machine readable companions of detail.
var ignoredErrorKeys = []string{"detail", "code", "messages", "status_code"}

func parseErrorBody(body []byte) errorBody {

	var parsed errorBody

	var raw map[string]any
	if err := json.Unmarshal(body, &raw); err != nil {
		return parsed
	}

	if detail, ok := raw["detail"].(string); ok {
		parsed.Detail = strings.TrimSpace(detail)
	}

	for key, value := range raw {
		if slices.Contains(ignoredErrorKeys, key) {
			continue
		}

		var messages []string

		switch v := value.(type) {
		case string:
			messages = append(messages, v)
		case []any:
			for _, item := range v {
				if str, ok := item.(string); ok {
					messages = append(messages, str)
				}
			}
		}

		if len(messages) == 0 {
			continue
		}

		if parsed.Fields == nil {
			parsed.Fields = make(map[string][]string)
		}
		parsed.Fields[key] = messages
	}

	return parsed
}

// FieldMessages flattens field errors into one message per field, sorted
// by field name with non field errors first.
func (e errorBody) FieldMessages() []string {

	keys := make([]string, 0, len(e.Fields))
	for key := range e.Fields {
		if key != nonFieldErrors {
			keys = append(keys, key)
		}
	}
	slices.Sort(keys)

	var messages []string

	if general, ok := e.Fields[nonFieldErrors]; ok {
		messages = append(messages, strings.Join(general, " "))
	}

	for _, key := range keys {
		messages = append(messages, humanizeField(key)+": "+strings.Join(e.Fields[key], " "))
	}

	return messages
}

// Message picks the single best human readable message, or fallback.
func (e errorBody) Message(fallback string) string {
	if len(e.Detail) > 0 {
		return e.Detail
	}
	if messages := e.FieldMessages(); len(messages) > 0 {
		return strings.Join(messages, " ")
	}
	return fallback
}

// humanizeField turns first_name into "First Name". Casers hold state, so
// one is built per call.
func humanizeField(key string) string {
	return cases.Title(language.English).String(strings.ReplaceAll(key, "_", " "))
}
