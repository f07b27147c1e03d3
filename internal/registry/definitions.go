package registry

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/goccy/go-yaml"
	"github.com/kaptinlin/jsonschema"

	"autocomplete/internal/channel"
	"autocomplete/internal/models"
	"autocomplete/internal/store"
)

// ErrInvalidDefinition reports a definitions file that does not match the
// schema.
var ErrInvalidDefinition = errors.New("invalid channel definitions")

//go:embed schema.json
var schemaJSON []byte

var compiledSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	compiler.AssertFormat = true
	schema, err := compiler.Compile(schemaJSON)
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return schema, nil
})

// Definition declares one channel. Kind selects a single record kind;
// otherwise Kinds, or every kind when both are empty. Format "json" swaps
// the template frontend for a JSON one emitting Fields.
type Definition struct {
	Name                 string   `json:"name"`
	Kind                 string   `json:"kind,omitempty"`
	Kinds                []string `json:"kinds,omitempty"`
	SearchField          string   `json:"search_field,omitempty"`
	Limit                int      `json:"limit,omitempty"`
	Bootstrap            string   `json:"bootstrap,omitempty"`
	Placeholder          string   `json:"placeholder,omitempty"`
	Static               []string `json:"static,omitempty"`
	ResultTemplate       []string `json:"result_template,omitempty"`
	AutocompleteTemplate []string `json:"autocomplete_template,omitempty"`
	Format               string   `json:"format,omitempty"`
	Fields               []string `json:"fields,omitempty"`
}

const (
	FormatHTML = "html"
	FormatJSON = "json"
)

// File is a parsed definitions document. Records are optional seed data.
type File struct {
	Channels []Definition    `json:"channels"`
	Records  []models.Record `json:"records,omitempty"`
}

// Deps are the collaborators every built channel shares.
type Deps struct {
	Source   store.Source
	Renderer channel.Renderer
	URLs     channel.URLResolver
}

// Parse reads a YAML or JSON definitions document and validates it.
func Parse(data []byte) (File, error) {
	raw, err := yaml.YAMLToJSON(data)
	if err != nil {
		return File{}, fmt.Errorf("%w: %v", ErrInvalidDefinition, err)
	}
	schema, err := compiledSchema()
	if err != nil {
		return File{}, err
	}
	if result := schema.ValidateJSON(raw); !result.IsValid() {
		return File{}, fmt.Errorf("%w: %v", ErrInvalidDefinition, result.Errors)
	}
	var f File
	if err := json.Unmarshal(raw, &f); err != nil {
		return File{}, fmt.Errorf("%w: %v", ErrInvalidDefinition, err)
	}
	return f, nil
}

func ParseFile(path string) (File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return File{}, fmt.Errorf("read definitions: %w", err)
	}
	return Parse(data)
}

// Build constructs the channel a definition describes.
func (d Definition) Build(deps Deps) (*channel.Channel, error) {
	opts := channel.Options{
		LimitResults: d.Limit,
		Bootstrap:    d.Bootstrap,
		Placeholder:  d.Placeholder,
		StaticList:   d.Static,
	}
	var b channel.Backend
	var err error
	if d.Kind != "" {
		b, err = channel.NewModelBackend(deps.Source, d.Kind, d.SearchField)
	} else {
		b, err = channel.NewGenericBackend(deps.Source, d.Kinds, d.SearchField)
	}
	if err != nil {
		return nil, fmt.Errorf("channel %s: %w", d.Name, err)
	}
	f, err := d.frontend(deps)
	if err != nil {
		return nil, fmt.Errorf("channel %s: %w", d.Name, err)
	}
	ch, err := channel.New(d.Name, b, f, deps.URLs, opts)
	if err != nil {
		return nil, fmt.Errorf("channel %s: %w", d.Name, err)
	}
	return ch, nil
}

func (d Definition) frontend(deps Deps) (channel.Frontend, error) {
	switch d.Format {
	case FormatJSON:
		if len(d.ResultTemplate) > 0 || len(d.AutocompleteTemplate) > 0 {
			return nil, fmt.Errorf("%w: templates do not apply to json channels", ErrInvalidDefinition)
		}
		jf, err := channel.NewJSONFrontend(d.Fields...)
		if err != nil {
			return nil, err
		}
		return jf, nil
	case "", FormatHTML:
		if len(d.Fields) > 0 {
			return nil, fmt.Errorf("%w: fields only apply to json channels", ErrInvalidDefinition)
		}
		return &channel.TemplateFrontend{
			Renderer:             deps.Renderer,
			ResultTemplate:       d.ResultTemplate,
			AutocompleteTemplate: d.AutocompleteTemplate,
		}, nil
	default:
		return nil, fmt.Errorf("%w: unknown format %q", ErrInvalidDefinition, d.Format)
	}
}

// Load builds and registers every channel in f. Nothing is registered when
// any definition fails.
func (r *Registry) Load(f File, deps Deps) error {
	built := make([]*channel.Channel, 0, len(f.Channels))
	seen := make(map[string]struct{}, len(f.Channels))
	for _, d := range f.Channels {
		if _, dup := seen[d.Name]; dup {
			return fmt.Errorf("%w: %s", ErrAlreadyExists, d.Name)
		}
		seen[d.Name] = struct{}{}
		if _, ok := r.Get(d.Name); ok {
			return fmt.Errorf("%w: %s", ErrAlreadyExists, d.Name)
		}
		ch, err := d.Build(deps)
		if err != nil {
			return err
		}
		built = append(built, ch)
	}
	for _, ch := range built {
		if err := r.Register(ch); err != nil {
			return err
		}
	}
	return nil
}
