package channel

import (
	"fmt"
	"html/template"
	"strings"

	"autocomplete/internal/models"
)

// Renderer renders the first resolvable template among names.
type Renderer interface {
	Render(names []string, data any) (string, error)
}

// Frontend is the display half of a channel.
type Frontend interface {
	ResultAsHTML(ch *Channel, result models.Record) (template.HTML, error)
	RenderAutocomplete(ch *Channel) (template.HTML, error)
}

// ResultContext is the data the result template is executed with.
type ResultContext struct {
	Channel *Channel
	Result  models.Record
}

// AutocompleteContext is the data the autocomplete box template is executed
// with.
type AutocompleteContext struct {
	Channel *Channel
}

// TemplateFrontend renders through template candidate lists. Empty lists
// are filled from the channel name when the channel is built.
type TemplateFrontend struct {
	Renderer             Renderer
	ResultTemplate       []string
	AutocompleteTemplate []string
}

func NewTemplateFrontend(r Renderer) *TemplateFrontend {
	return &TemplateFrontend{Renderer: r}
}

// forChannel returns a copy with default candidates for name filled in, so
// one frontend value can be shared by several channels.
func (f *TemplateFrontend) forChannel(name string) *TemplateFrontend {
	c := *f
	lower := strings.ToLower(name)
	if len(c.ResultTemplate) == 0 {
		c.ResultTemplate = []string{
			fmt.Sprintf("autocomplete_light/%s/result.html", lower),
			"autocomplete_light/result.html",
		}
	} else {
		c.ResultTemplate = append([]string(nil), c.ResultTemplate...)
	}
	if len(c.AutocompleteTemplate) == 0 {
		c.AutocompleteTemplate = []string{
			fmt.Sprintf("autocomplete_light/%s/autocomplete.html", lower),
			"autocomplete_light/autocomplete.html",
		}
	} else {
		c.AutocompleteTemplate = append([]string(nil), c.AutocompleteTemplate...)
	}
	return &c
}

func (f *TemplateFrontend) ResultAsHTML(ch *Channel, result models.Record) (template.HTML, error) {
	out, err := f.Renderer.Render(f.ResultTemplate, ResultContext{Channel: ch, Result: result})
	if err != nil {
		return "", err
	}
	return template.HTML(out), nil
}

func (f *TemplateFrontend) RenderAutocomplete(ch *Channel) (template.HTML, error) {
	out, err := f.Renderer.Render(f.AutocompleteTemplate, AutocompleteContext{Channel: ch})
	if err != nil {
		return "", err
	}
	return template.HTML(out), nil
}
