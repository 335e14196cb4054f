package mel

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultGroupDefinitions is the built-in group catalog. Order is priority:
// when listing a sector, equipment is assigned to the first definition it
// matches.
var DefaultGroupDefinitions = []GroupDefinition{
	{Key: "ventilador-pulmonar", DisplayName: "Ventilador Pulmonar", Patterns: []string{"ventilador pulmonar", "ventilador mecanico", "ventilador", "respirador"}},
	{Key: "desfibrilador", DisplayName: "Desfibrilador / Cardioversor", Patterns: []string{"desfibrilador", "cardioversor"}},
	{Key: "monitor-multiparametrico", DisplayName: "Monitor Multiparamétrico", Patterns: []string{"monitor multiparametrico", "monitor de sinais vitais", "monitor"}},
	{Key: "bomba-infusao", DisplayName: "Bomba de Infusão", Patterns: []string{"bomba de infusao", "bomba infusora", "bomba de seringa", "infusora"}},
	{Key: "eletrocardiografo", DisplayName: "Eletrocardiógrafo", Patterns: []string{"eletrocardiografo", "ecg"}},
	{Key: "oximetro", DisplayName: "Oxímetro de Pulso", Patterns: []string{"oximetro"}},
	{Key: "aspirador", DisplayName: "Aspirador Cirúrgico", Patterns: []string{"aspirador"}},
	{Key: "berco-aquecido", DisplayName: "Berço Aquecido", Patterns: []string{"berco aquecido", "berco de calor radiante"}},
	{Key: "incubadora", DisplayName: "Incubadora Neonatal", Patterns: []string{"incubadora"}},
	{Key: "aparelho-anestesia", DisplayName: "Aparelho de Anestesia", Patterns: []string{"aparelho de anestesia", "carro de anestesia", "estacao de anestesia"}},
	{Key: "bisturi-eletrico", DisplayName: "Bisturi Elétrico", Patterns: []string{"bisturi", "eletrocauterio"}},
	{Key: "foco-cirurgico", DisplayName: "Foco Cirúrgico", Patterns: []string{"foco cirurgico"}},
}

// Catalog holds the ordered group definitions and the known sectors.
// It is immutable after construction and safe for concurrent use.
type Catalog struct {
	groups   []GroupDefinition
	patterns [][]string
	byKey    map[string]int
	sectors  []Sector
}

type catalogFile struct {
	Groups  []GroupDefinition `yaml:"groups"`
	Sectors []Sector          `yaml:"sectors"`
}

// NewCatalog validates and indexes the given definitions.
func NewCatalog(groups []GroupDefinition, sectors []Sector) (*Catalog, error) {
	c := &Catalog{
		groups:   make([]GroupDefinition, 0, len(groups)),
		patterns: make([][]string, 0, len(groups)),
		byKey:    make(map[string]int, len(groups)),
		sectors:  append([]Sector(nil), sectors...),
	}
	for i, g := range groups {
		key := strings.TrimSpace(g.Key)
		if key == "" {
			return nil, fmt.Errorf("group definition %d has an empty key", i)
		}
		if _, dup := c.byKey[key]; dup {
			return nil, fmt.Errorf("duplicate group definition key %q", key)
		}
		g.Key = key
		if g.DisplayName == "" {
			g.DisplayName = key
		}
		g.Patterns = append([]string(nil), g.Patterns...)

		folded := make([]string, 0, len(g.Patterns))
		for _, p := range g.Patterns {
			if f := Fold(p); f != "" {
				folded = append(folded, f)
			}
		}

		c.byKey[key] = len(c.groups)
		c.groups = append(c.groups, g)
		c.patterns = append(c.patterns, folded)
	}
	for i, s := range c.sectors {
		if strings.TrimSpace(s.ID) == "" {
			return nil, fmt.Errorf("sector %d has an empty id", i)
		}
	}
	return c, nil
}

// DefaultCatalog returns the built-in definitions with no known sectors.
func DefaultCatalog() *Catalog {
	c, err := NewCatalog(DefaultGroupDefinitions, nil)
	if err != nil {
		panic(err)
	}
	return c
}

// LoadCatalog reads a YAML catalog. A file without groups keeps the built-in
// definitions; an empty path returns DefaultCatalog.
func LoadCatalog(path string) (*Catalog, error) {
	if path == "" {
		return DefaultCatalog(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog file: %w", err)
	}
	return ParseCatalog(data)
}

// ParseCatalog parses a YAML catalog document.
func ParseCatalog(data []byte) (*Catalog, error) {
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}
	groups := file.Groups
	if len(groups) == 0 {
		groups = DefaultGroupDefinitions
	}
	return NewCatalog(groups, file.Sectors)
}

// Groups returns a copy of the definitions in priority order.
func (c *Catalog) Groups() []GroupDefinition {
	out := make([]GroupDefinition, len(c.groups))
	copy(out, c.groups)
	return out
}

// Group looks up a definition by key.
func (c *Catalog) Group(key string) (GroupDefinition, bool) {
	i, ok := c.byKey[key]
	if !ok {
		return GroupDefinition{}, false
	}
	return c.groups[i], true
}

// Sectors returns a copy of the known sectors.
func (c *Catalog) Sectors() []Sector {
	return append([]Sector(nil), c.sectors...)
}

// matches reports whether e matches any pattern of the definition at index i.
func (c *Catalog) matches(i int, e Equipment) bool {
	patterns := c.patterns[i]
	if len(patterns) == 0 {
		return false
	}
	fields := [3]string{Fold(e.Name), Fold(e.Model), Fold(e.Manufacturer)}
	for _, p := range patterns {
		for _, f := range fields {
			if f != "" && strings.Contains(f, p) {
				return true
			}
		}
	}
	return false
}
