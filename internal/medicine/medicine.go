// Package medicine holds the static medicine reference table and the whitelist
// filter applied to model-suggested medication lists.
package medicine

import (
	_ "embed"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed medicines.yaml
var defaultTable []byte

// Medicine is one immutable reference entry.
type Medicine struct {
	Name        string   `yaml:"name" json:"name"`
	Category    string   `yaml:"category" json:"category"`
	Uses        []string `yaml:"uses" json:"uses"`
	Dosage      string   `yaml:"dosage" json:"dosage"`
	MaxDaily    string   `yaml:"max_daily" json:"max_daily"`
	SideEffects []string `yaml:"side_effects" json:"side_effects"`
	Precautions []string `yaml:"precautions" json:"precautions"`
}

// KnowledgeBase is a read-only, ordered lookup table of medicines keyed by
// canonical lowercase name.
type KnowledgeBase struct {
	ordered []Medicine
	byName  map[string]int
}

// LoadDefault parses the embedded reference table.
func LoadDefault() (*KnowledgeBase, error) {
	return Parse(defaultTable)
}

// Parse builds a knowledge base from a YAML list of medicines.
func Parse(data []byte) (*KnowledgeBase, error) {
	var entries []Medicine
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("failed to parse medicine table: %w", err)
	}
	return New(entries)
}

// New builds a knowledge base from entries. Names are canonicalized and must be unique.
func New(entries []Medicine) (*KnowledgeBase, error) {
	kb := &KnowledgeBase{
		ordered: make([]Medicine, 0, len(entries)),
		byName:  make(map[string]int, len(entries)),
	}
	for _, m := range entries {
		m.Name = Normalize(m.Name)
		if m.Name == "" {
			return nil, fmt.Errorf("medicine entry without a name")
		}
		if _, dup := kb.byName[m.Name]; dup {
			return nil, fmt.Errorf("duplicate medicine %q", m.Name)
		}
		if m.Uses == nil {
			m.Uses = []string{}
		}
		if m.SideEffects == nil {
			m.SideEffects = []string{}
		}
		if m.Precautions == nil {
			m.Precautions = []string{}
		}
		kb.byName[m.Name] = len(kb.ordered)
		kb.ordered = append(kb.ordered, m)
	}
	return kb, nil
}

// Normalize canonicalizes a medicine name: trimmed, lowercase, without periods.
func Normalize(name string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), ".", "")
}

// Lookup returns the entry for name after normalization.
func (kb *KnowledgeBase) Lookup(name string) (Medicine, bool) {
	i, ok := kb.byName[Normalize(name)]
	if !ok {
		return Medicine{}, false
	}
	return kb.ordered[i], true
}

// All returns every entry in table order.
func (kb *KnowledgeBase) All() []Medicine {
	out := make([]Medicine, len(kb.ordered))
	copy(out, kb.ordered)
	return out
}

// Len returns the number of entries.
func (kb *KnowledgeBase) Len() int {
	return len(kb.ordered)
}

// SearchByUse returns entries with at least one use containing term,
// case-insensitively, in table order.
func (kb *KnowledgeBase) SearchByUse(term string) []Medicine {
	term = strings.ToLower(term)
	results := []Medicine{}
	for _, m := range kb.ordered {
		for _, use := range m.Uses {
			if strings.Contains(strings.ToLower(use), term) {
				results = append(results, m)
				break
			}
		}
	}
	return results
}

// ExtractValid filters a free-text, comma or semicolon separated medicine list down
// to canonical names present in the table. A candidate matches an entry when either
// name contains the other. Results keep first-seen order without duplicates.
// Nothing outside the table is ever returned.
func (kb *KnowledgeBase) ExtractValid(text string) []string {
	out := []string{}
	seen := make(map[string]bool)

	parts := strings.Split(strings.ReplaceAll(text, ";", ","), ",")
	for _, part := range parts {
		candidate, _, _ := strings.Cut(part, "(")
		candidate = Normalize(candidate)
		if candidate == "" {
			continue
		}
		for _, m := range kb.ordered {
			if seen[m.Name] {
				continue
			}
			if strings.Contains(candidate, m.Name) || strings.Contains(m.Name, candidate) {
				seen[m.Name] = true
				out = append(out, m.Name)
			}
		}
	}
	return out
}

// Details returns the entries for the given canonical names, skipping unknown ones.
func (kb *KnowledgeBase) Details(names []string) map[string]Medicine {
	details := make(map[string]Medicine, len(names))
	for _, name := range names {
		if m, ok := kb.Lookup(name); ok {
			details[m.Name] = m
		}
	}
	return details
}
