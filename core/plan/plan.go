// Package plan models the edit plan applied to a parsed tag tree: one rule
// per tag, name, or sensitivity category, each mapping to keep, delete, or
// replace. Plans are built by the caller (CLI flags or a YAML file) and are
// immutable once applied.
package plan

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Action is what happens to a matched tag.
type Action string

const (
	Keep    Action = "keep"
	Delete  Action = "delete"
	Replace Action = "replace"
)

// Value is a replacement value. Exactly one field is set; the mutation
// engine encodes it against the original entry's type/count contract and
// rejects the edit when they are incompatible.
type Value struct {
	// ASCII replaces an ASCII entry (NUL terminator handled by the codec).
	ASCII *string `yaml:"ascii,omitempty"`
	// Ints replaces an integral entry; length must equal the entry count.
	Ints []int64 `yaml:"ints,omitempty"`
	// Rationals replaces a rational entry with exact numerator/denominator
	// pairs; length must equal the entry count.
	Rationals [][2]int64 `yaml:"rationals,omitempty"`
}

// Rule matches tags by exactly one of raw ID, registry name, or category,
// optionally scoped to a single IFD.
type Rule struct {
	// Tag is a raw tag ID (YAML accepts 0x-hex). Requires IFD when the ID
	// is ambiguous across namespaces.
	Tag *uint16 `yaml:"tag,omitempty"`
	// Name is a registry tag name, e.g. "Model" or "GPSLatitude".
	Name string `yaml:"name,omitempty"`
	// Category matches every tag of a sensitivity class: location, device,
	// timestamp, software, description, other.
	Category string `yaml:"category,omitempty"`
	// IFD scopes the rule: primary, thumbnail, exif, gps, interop.
	// Empty matches every IFD.
	IFD string `yaml:"ifd,omitempty"`

	Action Action `yaml:"action"`
	Value  *Value `yaml:"value,omitempty"`
}

// Plan is the full edit plan. With StripAll set, every tag not matched by
// an explicit keep rule is deleted; otherwise unmatched tags are kept.
type Plan struct {
	StripAll bool   `yaml:"strip_all,omitempty"`
	Rules    []Rule `yaml:"rules,omitempty"`

	// KeepStructural protects pixel-layout tags from StripAll. The
	// pipeline sets it for bare TIFF containers, where deleting strip
	// offsets would destroy the image.
	KeepStructural bool `yaml:"-"`
}

// StripAllPlan is the default plan: remove every metadata tag.
func StripAllPlan() *Plan {
	return &Plan{StripAll: true}
}

// Validate rejects rules that match nothing or match ambiguously.
func (p *Plan) Validate() error {
	for i, r := range p.Rules {
		n := 0
		if r.Tag != nil {
			n++
		}
		if r.Name != "" {
			n++
		}
		if r.Category != "" {
			n++
		}
		if n != 1 {
			return fmt.Errorf("rule %d: exactly one of tag, name, category required", i)
		}
		switch r.Action {
		case Keep, Delete:
		case Replace:
			if r.Value == nil {
				return fmt.Errorf("rule %d: replace requires a value", i)
			}
		default:
			return fmt.Errorf("rule %d: unknown action %q", i, r.Action)
		}
	}
	return nil
}

// Decode parses a YAML plan document.
func Decode(data []byte) (*Plan, error) {
	var p Plan
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("plan: %w", err)
	}
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("plan: %w", err)
	}
	return &p, nil
}

// Load reads and decodes a YAML plan file.
func Load(path string) (*Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Decode(data)
}
