// Package document loads YAML page documents describing one template and its
// values.
//
//	title: Demo
//	template: "<h1>{title}</h1><p>{counter}</p>"
//	values:
//	  title: Hello
//	  counter:
//	    component: counter
//	    props: {label: Clicks}
//
// A value that is a mapping with a "component" key is built through the
// component registry. Lists are resolved element by element.
package document

import (
	"bytes"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/conneroisu/slotter/internal/config"
	"github.com/conneroisu/slotter/internal/errors"
	"github.com/conneroisu/slotter/internal/registry"
	"github.com/conneroisu/slotter/pkg/template"
)

// Document is a page document.
type Document struct {
	Title           string            `yaml:"title"`
	Template        string            `yaml:"template"`
	TemplateFile    string            `yaml:"template_file"`
	Values          map[string]any    `yaml:"values"`
	ValueTags       map[string]string `yaml:"value_tags"`
	DefaultValueTag string            `yaml:"default_value_tag"`
	ValuePattern    string            `yaml:"value_pattern"`
	EscapeValues    *bool             `yaml:"escape_values"`
	As              string            `yaml:"as"`
	Attrs           map[string]string `yaml:"attrs"`

	path string
}

// Load reads and validates the document at path. A template_file is read
// relative to the document.
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewIOError(errors.ErrCodeFileNotFound, "document not found", err).WithFile(path)
		}
		return nil, errors.NewIOError(errors.ErrCodeFileNotFound, "reading document", err).WithFile(path)
	}

	doc, err := Parse(data)
	if err != nil {
		if se, ok := err.(*errors.SlotterError); ok {
			return nil, se.WithFile(path)
		}
		return nil, err
	}
	doc.path = path

	if doc.TemplateFile != "" {
		file := doc.templatePath()
		body, err := os.ReadFile(file)
		if err != nil {
			return nil, errors.NewIOError(errors.ErrCodeFileNotFound, "reading template file", err).WithFile(file)
		}
		doc.Template = string(body)
	}
	return doc, nil
}

// Parse decodes a document. Unknown fields are rejected. A template_file is
// not read.
func Parse(data []byte) (*Document, error) {
	var doc Document
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, errors.NewValidationError(errors.ErrCodeDocumentInvalid, "invalid document").
			WithContext("cause", err.Error())
	}
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	return &doc, nil
}

// Validate checks that exactly one template source is set.
func (d *Document) Validate() error {
	switch {
	case d.Template != "" && d.TemplateFile != "":
		return errors.NewValidationError(errors.ErrCodeDocumentInvalid, "template and template_file are mutually exclusive")
	case d.Template == "" && d.TemplateFile == "":
		return errors.NewValidationError(errors.ErrCodeDocumentInvalid, "document has no template")
	}
	return nil
}

// Path returns the file the document was loaded from.
func (d *Document) Path() string {
	return d.path
}

func (d *Document) templatePath() string {
	if filepath.IsAbs(d.TemplateFile) || d.path == "" {
		return d.TemplateFile
	}
	return filepath.Join(filepath.Dir(d.path), d.TemplateFile)
}

// Files returns the files the document depends on.
func (d *Document) Files() []string {
	var files []string
	if d.path != "" {
		files = append(files, d.path)
	}
	if d.TemplateFile != "" {
		files = append(files, d.templatePath())
	}
	return files
}

// ToProps resolves the values through reg and returns the template props.
func (d *Document) ToProps(reg *registry.ComponentRegistry) (template.Props, error) {
	values := make(map[string]any, len(d.Values))
	for name, v := range d.Values {
		resolved, err := Resolve(v, reg)
		if err != nil {
			if se, ok := err.(*errors.SlotterError); ok {
				return template.Props{}, se.WithContext("value", name)
			}
			return template.Props{}, err
		}
		values[name] = resolved
	}

	props := template.Props{
		String:          d.Template,
		Values:          values,
		ValueTags:       d.ValueTags,
		DefaultValueTag: d.DefaultValueTag,
		ValuePattern:    d.ValuePattern,
		DisableEscape:   d.EscapeValues != nil && !*d.EscapeValues,
		As:              d.As,
		Attrs:           d.Attrs,
	}
	return props, props.Validate()
}

// PropsWith is ToProps with the settings the document leaves unset taken
// from defaults, including whether values are escaped.
func (d *Document) PropsWith(reg *registry.ComponentRegistry, defaults config.TemplateConfig) (template.Props, error) {
	props, err := d.ToProps(reg)
	if err != nil {
		return template.Props{}, err
	}
	defaults.Apply(&props)
	if d.EscapeValues == nil {
		props.DisableEscape = !defaults.EscapeValues
	}
	return props, props.Validate()
}

// Resolve builds component references in v. Mappings and lists are walked
// and component props are resolved before the component is built, so
// components may contain components.
func Resolve(v any, reg *registry.ComponentRegistry) (any, error) {
	switch x := v.(type) {
	case []any:
		out := make([]any, len(x))
		for i, item := range x {
			r, err := Resolve(item, reg)
			if err != nil {
				return nil, err
			}
			out[i] = r
		}
		return out, nil
	case map[string]any:
		name, ok := x["component"].(string)
		if !ok {
			out := make(map[string]any, len(x))
			for k, item := range x {
				r, err := Resolve(item, reg)
				if err != nil {
					return nil, err
				}
				out[k] = r
			}
			return out, nil
		}
		props := map[string]any{}
		if raw, ok := x["props"].(map[string]any); ok {
			for k, pv := range raw {
				r, err := Resolve(pv, reg)
				if err != nil {
					return nil, err
				}
				props[k] = r
			}
		}
		c, err := reg.Build(name, props)
		if err != nil {
			return nil, err
		}
		return c, nil
	default:
		return v, nil
	}
}
