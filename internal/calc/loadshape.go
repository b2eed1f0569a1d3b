package calc

import (
	"fmt"
	"sort"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"
)

// HoursPerYear is the length of every load shape.
const HoursPerYear = 8760

// LoadShapeSource says where a load shape came from.
type LoadShapeSource string

const (
	SourceReference LoadShapeSource = "reference"
	SourceMetered   LoadShapeSource = "metered"
)

// LoadShape distributes annual savings over the hours of a year. Weights[h-1]
// is the fraction for hour_of_year h.
type LoadShape struct {
	Name    string
	Source  LoadShapeSource
	Weights []float64
}

// LoadShapeTable is the set of shapes available to a run. It is read-only
// once built and safe for concurrent use.
type LoadShapeTable struct {
	shapes map[string]*LoadShape
	names  []string
}

// NewLoadShapeTable indexes shapes by upper-cased name.
func NewLoadShapeTable(shapes ...LoadShape) (*LoadShapeTable, error) {
	t := &LoadShapeTable{shapes: make(map[string]*LoadShape, len(shapes))}
	for i := range shapes {
		s := shapes[i]
		key := strings.ToUpper(strings.TrimSpace(s.Name))
		if key == "" {
			return nil, fmt.Errorf("load shape %d has no name", i)
		}
		if len(s.Weights) != HoursPerYear {
			return nil, fmt.Errorf("load shape %s has %d hours, want %d", key, len(s.Weights), HoursPerYear)
		}
		if _, dup := t.shapes[key]; dup {
			return nil, fmt.Errorf("duplicate load shape %s", key)
		}
		s.Name = key
		t.shapes[key] = &s
		t.names = append(t.names, key)
	}
	sort.Strings(t.names)
	return t, nil
}

// Lookup finds a shape by case-insensitive name.
func (t *LoadShapeTable) Lookup(name string) (*LoadShape, bool) {
	if t == nil {
		return nil, false
	}
	s, ok := t.shapes[strings.ToUpper(strings.TrimSpace(name))]
	return s, ok
}

// Names returns the sorted shape names.
func (t *LoadShapeTable) Names() []string {
	if t == nil {
		return nil
	}
	return append([]string(nil), t.names...)
}

func (t *LoadShapeTable) Len() int {
	if t == nil {
		return 0
	}
	return len(t.names)
}

// Resolve finds the shape for a project: the name itself first, then the
// utility-prefixed name. With zero savings a missing shape is not an error
// and Resolve returns nil.
func (t *LoadShapeTable) Resolve(utility, name string, savings float64) (*LoadShape, error) {
	if s, ok := t.Lookup(name); ok {
		return s, nil
	}
	prefixed := NormalizeUtility(utility) + "_" + strings.ToUpper(strings.TrimSpace(name))
	if s, ok := t.Lookup(prefixed); ok {
		return s, nil
	}
	if savings == 0 {
		return nil, nil
	}
	detail := fmt.Sprintf("neither %q nor %q is loaded; known shapes: [%s]",
		strings.ToUpper(strings.TrimSpace(name)), prefixed, strings.Join(t.Names(), ", "))
	if s := t.suggest(name); len(s) > 0 {
		detail += fmt.Sprintf("; did you mean %s?", strings.Join(s, " or "))
	}
	return nil, &DataError{Err: ErrLoadShapeNotFound, Detail: detail}
}

func (t *LoadShapeTable) suggest(name string) []string {
	if t.Len() == 0 || strings.TrimSpace(name) == "" {
		return nil
	}
	ranks := fuzzy.RankFindNormalizedFold(strings.TrimSpace(name), t.names)
	sort.Sort(ranks)
	var out []string
	for i := 0; i < len(ranks) && i < 3; i++ {
		out = append(out, ranks[i].Target)
	}
	return out
}
