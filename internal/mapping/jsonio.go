package mapping

import (
	"encoding/json"
	"fmt"
)

// templateDocument is the interchange schema used to share templates across
// providers and installations.
type templateDocument struct {
	Version int    `json:"version"`
	Name    string `json:"name"`
	Lines   []Line `json:"lines"`
}

const templateDocumentVersion = 1

// ExportJSON serializes a template for sharing.
func ExportJSON(t *Template) ([]byte, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}
	doc := templateDocument{
		Version: templateDocumentVersion,
		Name:    t.Name,
		Lines:   t.Lines,
	}
	return json.MarshalIndent(doc, "", "  ")
}

// ImportJSON parses a shared template document and validates it.
func ImportJSON(data []byte) (*Template, error) {
	var doc templateDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("mapping: parse template document: %w", err)
	}
	if doc.Version != templateDocumentVersion {
		return nil, fmt.Errorf("mapping: unsupported template document version %d", doc.Version)
	}
	t := &Template{Name: doc.Name, Lines: doc.Lines}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return t, nil
}
