package mapping

import (
	"fmt"
	"strings"
)

// RejectReason classifies why a whole row was rejected by the engine.
type RejectReason string

const (
	ReasonMissingRequiredField RejectReason = "missing_required_field"
)

// RowError reports a structured per-row rejection.
type RowError struct {
	Reason RejectReason
	Field  string
}

func (e *RowError) Error() string {
	return fmt.Sprintf("mapping: %s (field %q)", e.Reason, e.Field)
}

// Engine applies one template to tokenized rows sharing a header list.
// Header resolution is case-insensitive and computed once.
type Engine struct {
	template *Template
	lines    []Line
	index    map[string]int
}

// NewEngine binds a template to a header list. A nil template or one with no
// active lines yields ErrNoTemplate: callers must abort before reading rows.
func NewEngine(t *Template, headers []string) (*Engine, error) {
	if t == nil {
		return nil, ErrNoTemplate
	}
	lines := t.ActiveLines()
	if len(lines) == 0 {
		return nil, ErrNoTemplate
	}

	index := make(map[string]int, len(headers))
	for i, h := range headers {
		key := strings.ToLower(strings.TrimSpace(h))
		if _, ok := index[key]; !ok {
			index[key] = i
		}
	}
	return &Engine{template: t, lines: lines, index: index}, nil
}

// Apply projects one tokenized row to {target field: value}. Lines resolve
// independently; skip_if_empty omits empty results, required rejects the
// whole row.
func (e *Engine) Apply(cells []string) (map[string]string, error) {
	out := make(map[string]string, len(e.lines))
	for _, line := range e.lines {
		value := e.resolve(line, cells)
		value = applyTransform(line, value, e.lookup(line.ConcatColumn, cells))

		if value == "" {
			if line.Required {
				return nil, &RowError{Reason: ReasonMissingRequiredField, Field: line.TargetField}
			}
			if line.SkipIfEmpty {
				continue
			}
		}
		out[line.TargetField] = value
	}
	return out, nil
}

// UpdateModes returns the per-field update policy for the engine's lines.
func (e *Engine) UpdateModes() map[string]UpdateMode {
	modes := make(map[string]UpdateMode, len(e.lines))
	for _, line := range e.lines {
		mode := line.UpdateMode
		if mode == "" {
			mode = UpdateReplace
		}
		modes[line.TargetField] = mode
	}
	return modes
}

func (e *Engine) resolve(line Line, cells []string) string {
	if line.Transform == TransformLiteral {
		return line.TransformValue
	}
	return e.lookup(line.SourceColumn, cells)
}

func (e *Engine) lookup(column string, cells []string) string {
	if column == "" {
		return ""
	}
	idx, ok := e.index[strings.ToLower(strings.TrimSpace(column))]
	if !ok || idx >= len(cells) {
		return ""
	}
	return strings.TrimSpace(cells[idx])
}
