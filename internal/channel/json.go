package channel

import (
	"encoding/json"
	"fmt"
	"html"
	"html/template"

	"autocomplete/internal/models"
)

// DefaultJSONFields are the record columns a JSONFrontend emits when none
// are configured.
var DefaultJSONFields = []string{"id", "name"}

// JSONFrontend renders results as JSON objects, for clients that build
// their own markup. json.Marshal escapes <, > and &, so the output is safe
// to embed as HTML text.
type JSONFrontend struct {
	fields []string
}

func NewJSONFrontend(fields ...string) (*JSONFrontend, error) {
	if len(fields) == 0 {
		fields = DefaultJSONFields
	}
	for _, f := range fields {
		if !models.IsSearchField(f) {
			return nil, fmt.Errorf("%w: %q", ErrUnknownField, f)
		}
	}
	return &JSONFrontend{fields: append([]string(nil), fields...)}, nil
}

func (f *JSONFrontend) Fields() []string { return append([]string(nil), f.fields...) }

// ResultValue is the object ResultAsHTML encodes.
func (f *JSONFrontend) ResultValue(result models.Record) map[string]string {
	out := make(map[string]string, len(f.fields))
	for _, name := range f.fields {
		out[name], _ = result.Field(name)
	}
	return out
}

func (f *JSONFrontend) ResultAsHTML(_ *Channel, result models.Record) (template.HTML, error) {
	b, err := json.Marshal(f.ResultValue(result))
	if err != nil {
		return "", err
	}
	return template.HTML(b), nil
}

// RenderAutocomplete emits a placeholder element carrying the channel's
// widget settings for client code to pick up.
func (f *JSONFrontend) RenderAutocomplete(ch *Channel) (template.HTML, error) {
	w, err := ch.Describe()
	if err != nil {
		return "", err
	}
	b, err := json.Marshal(w)
	if err != nil {
		return "", err
	}
	return template.HTML(`<span class="autocomplete-light-json" data-channel="` + html.EscapeString(string(b)) + `"></span>`), nil
}
