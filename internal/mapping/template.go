// Package mapping resolves supplier columns to canonical catalog fields
// through user-defined templates with per-line transforms.
//
// A template is the only bridge between a feed's arbitrary headers and typed
// target fields; runs without an active template are rejected before any row
// is read.
package mapping

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNoTemplate indicates a run was attempted without an active mapping
// template. There is no sensible default mapping.
var ErrNoTemplate = errors.New("mapping: no active template for provider")

// TransformType enumerates per-line value transforms.
type TransformType string

const (
	TransformNone           TransformType = "none"
	TransformStrip          TransformType = "strip"
	TransformUpper          TransformType = "upper"
	TransformLower          TransformType = "lower"
	TransformReplace        TransformType = "replace"
	TransformDivide         TransformType = "divide"
	TransformMultiply       TransformType = "multiply"
	TransformDefaultIfEmpty TransformType = "default_if_empty"
	TransformConcat         TransformType = "concat"
	TransformLiteral        TransformType = "literal"
	TransformDateStart      TransformType = "extract_date_start"
	TransformDateEnd        TransformType = "extract_date_end"
)

// UpdateMode controls how a mapped field is applied to an existing catalog
// entry.
type UpdateMode string

const (
	UpdateReplace     UpdateMode = "replace"
	UpdateFillIfEmpty UpdateMode = "fill_if_empty"
)

// Line maps one source column to one target field.
type Line struct {
	SourceColumn    string        `json:"source_column"`
	TargetField     string        `json:"target_field"`
	Transform       TransformType `json:"transform"`
	TransformValue  string        `json:"transform_value,omitempty"`
	TransformValue2 string        `json:"transform_value2,omitempty"`
	ConcatColumn    string        `json:"concat_column,omitempty"`
	ConcatSeparator string        `json:"concat_separator,omitempty"`
	SkipIfEmpty     bool          `json:"skip_if_empty,omitempty"`
	Required        bool          `json:"required,omitempty"`
	UpdateMode      UpdateMode    `json:"update_mode,omitempty"`
	Active          bool          `json:"active"`
}

// Template is an ordered list of mapping lines owned by a provider.
type Template struct {
	ID    int64  `json:"-"`
	Name  string `json:"name"`
	Lines []Line `json:"lines"`
}

// ActiveLines returns the template's active lines in order.
func (t *Template) ActiveLines() []Line {
	if t == nil {
		return nil
	}
	out := make([]Line, 0, len(t.Lines))
	for _, line := range t.Lines {
		if line.Active {
			out = append(out, line)
		}
	}
	return out
}

// Validate checks structural soundness before a template is stored or used.
func (t *Template) Validate() error {
	if t == nil || strings.TrimSpace(t.Name) == "" {
		return errors.New("mapping: template name is required")
	}
	for i, line := range t.Lines {
		if strings.TrimSpace(line.TargetField) == "" {
			return fmt.Errorf("mapping: line %d has no target field", i+1)
		}
		if line.Transform != TransformLiteral && strings.TrimSpace(line.SourceColumn) == "" {
			return fmt.Errorf("mapping: line %d (%s) has no source column", i+1, line.TargetField)
		}
		switch line.Transform {
		case "", TransformNone, TransformStrip, TransformUpper, TransformLower,
			TransformReplace, TransformDivide, TransformMultiply,
			TransformDefaultIfEmpty, TransformConcat, TransformLiteral,
			TransformDateStart, TransformDateEnd:
		default:
			return fmt.Errorf("mapping: line %d has unknown transform %q", i+1, line.Transform)
		}
	}
	return nil
}
