package claim

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
)

//go:embed templates/preauth.json
var defaultPreauthTemplate []byte

// Template is the canonical claim document shared by all submissions.
// It is read-only after construction; callers obtain copies via Document.
type Template struct {
	source string
	doc    map[string]any
}

// ParseTemplate parses a JSON claim template
func ParseTemplate(data []byte, source string) (*Template, error) {
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing claim template %s: %w", source, err)
	}
	if doc == nil {
		return nil, fmt.Errorf("parsing claim template %s: document is empty", source)
	}
	return &Template{source: source, doc: doc}, nil
}

// LoadTemplate reads a JSON claim template from disk
func LoadTemplate(path string) (*Template, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading claim template: %w", err)
	}
	return ParseTemplate(data, path)
}

// DefaultTemplate returns the built-in pre-authorization template
func DefaultTemplate() *Template {
	tmpl, err := ParseTemplate(defaultPreauthTemplate, "builtin:preauth.json")
	if err != nil {
		panic(err)
	}
	return tmpl
}

// Source names where the template was loaded from
func (t *Template) Source() string {
	return t.source
}

// Document returns an isolated deep copy of the template
func (t *Template) Document() Document {
	return Document(deepCopy(t.doc).(map[string]any))
}

// MissingEntries lists the addressed resource types the template lacks.
// Composition still works against such a template; the fields are skipped.
func (t *Template) MissingEntries() []string {
	view := Document(t.doc)
	var missing []string
	for _, rt := range []string{ResourcePatient, ResourcePreauth} {
		if view.Resource(rt) == nil {
			missing = append(missing, rt)
		}
	}
	return missing
}
