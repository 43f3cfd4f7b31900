// Package output formats cru results for the terminal.
package output

import (
	"fmt"
	"io"
	"strings"

	"github.com/jmylchreest/cru/internal/model"
)

// Formatter writes a value in one output format.
type Formatter interface {
	Format(w io.Writer, v any) error
}

// FormatType represents an output format type.
type FormatType string

const (
	FormatText FormatType = "text"
	FormatJSON FormatType = "json"
	FormatYAML FormatType = "yaml"
)

// FormatTypes lists the supported formats.
var FormatTypes = []FormatType{FormatText, FormatJSON, FormatYAML}

// ParseFormat parses a format name.
func ParseFormat(s string) (FormatType, error) {
	switch f := FormatType(strings.ToLower(s)); f {
	case FormatText, FormatJSON, FormatYAML:
		return f, nil
	case "", "plain":
		return FormatText, nil
	default:
		return "", fmt.Errorf("unknown output format %q (want text, json or yaml)", s)
	}
}

// NewFormatter creates a formatter for the specified format type.
func NewFormatter(format FormatType) Formatter {
	switch format {
	case FormatJSON:
		return NewJSONFormatter()
	case FormatYAML:
		return NewYAMLFormatter()
	default:
		return NewTextFormatter()
	}
}

// ModelineView describes a calculated mode.
type ModelineView struct {
	ModeName  string          `json:"mode_name" yaml:"mode_name"`
	Algorithm model.Algorithm `json:"algorithm" yaml:"algorithm"`
	Line      string          `json:"line" yaml:"line"`
	Modeline  model.Modeline  `json:"modeline" yaml:"modeline"`
}

// NewModelineView builds a ModelineView.
func NewModelineView(req model.TimingRequest, m model.Modeline) ModelineView {
	return ModelineView{
		ModeName:  req.ModeName(),
		Algorithm: req.EffectiveAlgorithm(),
		Line:      m.String(),
		Modeline:  m,
	}
}

// Detection is the detected backend and its outputs.
type Detection struct {
	Backend  model.DisplayBackend `json:"backend" yaml:"backend"`
	Name     string               `json:"name" yaml:"name"`
	Displays []string             `json:"displays" yaml:"displays"`
}

// NewDetection builds a Detection.
func NewDetection(backend model.DisplayBackend, displays []string) Detection {
	return Detection{Backend: backend, Name: backend.String(), Displays: displays}
}
