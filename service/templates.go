package service

import (
	"embed"
	"fmt"
	"strings"

	"github.com/altovisual/artist-management-sub002/model"
)

//go:embed templates/*.html
var builtinTemplates embed.FS

// TemplateLibrary holds the built-in document templates used when a contract
// has no stored HTML
type TemplateLibrary struct {
	defaultType string
	templates   map[string]string
}

// NewTemplateLibrary loads the embedded modern and simple templates
func NewTemplateLibrary(defaultType string) (*TemplateLibrary, error) {
	templates := make(map[string]string, 2)
	for _, kind := range []string{model.TemplateModern, model.TemplateSimple} {
		data, err := builtinTemplates.ReadFile("templates/" + kind + ".html")
		if err != nil {
			return nil, fmt.Errorf("failed to load %s template: %w", kind, err)
		}
		templates[kind] = string(data)
	}
	return NewTemplateLibraryFrom(defaultType, templates), nil
}

// NewTemplateLibraryFrom builds a library over the given templates, keyed by type
func NewTemplateLibraryFrom(defaultType string, templates map[string]string) *TemplateLibrary {
	if defaultType == "" {
		defaultType = model.TemplateModern
	}
	return &TemplateLibrary{defaultType: defaultType, templates: templates}
}

// Get returns the template for a type hint. Unknown or empty hints fall back
// to the default type.
func (l *TemplateLibrary) Get(hint string) string {
	if tmpl, ok := l.templates[strings.ToLower(strings.TrimSpace(hint))]; ok {
		return tmpl
	}
	return l.templates[l.defaultType]
}

// Resolve picks the stored template HTML when present, otherwise the built-in
// for the template type. It fails with KindTemplateMissing when neither
// yields any HTML.
func (l *TemplateLibrary) Resolve(tmpl *model.Template) (string, error) {
	var hint string
	if tmpl != nil {
		if tmpl.HTML != nil && strings.TrimSpace(*tmpl.HTML) != "" {
			return *tmpl.HTML, nil
		}
		hint = tmpl.Type
	}

	if src := l.Get(hint); strings.TrimSpace(src) != "" {
		return src, nil
	}
	return "", &PipelineError{
		Kind:    KindTemplateMissing,
		Message: "Document rendering failed",
		Details: fmt.Sprintf("no template HTML resolvable for type %q", hint),
	}
}
