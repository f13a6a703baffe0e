package restriction

import "sync"

// Combinator joins restriction results.
type Combinator string

const (
	All Combinator = "all"
	Any Combinator = "any"
)

// ParseCombinator falls back to All for unknown values.
func ParseCombinator(s string) Combinator {
	if Combinator(s) == Any {
		return Any
	}
	return All
}

func (c Combinator) combine(results []bool) bool {
	if len(results) == 0 {
		return true
	}
	if c == Any {
		for _, r := range results {
			if r {
				return true
			}
		}
		return false
	}
	for _, r := range results {
		if !r {
			return false
		}
	}
	return true
}

// SetParams is the authored form of a restriction set.
type SetParams struct {
	Operator     string   `json:"operator" yaml:"operator"`
	Restrictions []Params `json:"restrictions" yaml:"restrictions"`
}

// RestrictionsParams is the authored form of a stage's access restrictions.
type RestrictionsParams struct {
	Operator string      `json:"operator" yaml:"operator"`
	Sets     []SetParams `json:"sets" yaml:"sets"`
}

// IsEmpty reports whether no restriction is authored at all.
func (p *RestrictionsParams) IsEmpty() bool {
	if p == nil {
		return true
	}
	for _, s := range p.Sets {
		if len(s.Restrictions) > 0 {
			return false
		}
	}
	return true
}

// Set is a group of restrictions joined by one combinator.
type Set struct {
	combinator   Combinator
	restrictions []Restriction
}

func (s *Set) Combinator() Combinator      { return s.combinator }
func (s *Set) Restrictions() []Restriction { return s.restrictions }

func (s *Set) Check() bool {
	results := make([]bool, len(s.restrictions))
	for i, r := range s.restrictions {
		results[i] = r.Check()
	}
	return s.combinator.combine(results)
}

// Restrictions is the full access check of a stage.
type Restrictions struct {
	combinator Combinator
	sets       []*Set
}

// Registry maps restriction type names to factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry returns a registry with the built-in types.
func NewRegistry() *Registry {
	r := &Registry{factories: make(map[string]Factory)}
	r.Register(TypeTotalScore, newTotalScore)
	r.Register(TypeStageScore, newStageScore)
	r.Register(TypeTime, newTime)
	r.Register(TypeExpression, newExpression)
	return r
}

// DefaultRegistry is used by New.
var DefaultRegistry = NewRegistry()

// Register adds or replaces the factory for a type name.
func (r *Registry) Register(typ string, f Factory) {
	if typ == "" || f == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[typ] = f
}

// Build creates a single restriction, reporting false when the type is
// unknown or the params are invalid.
func (r *Registry) Build(p Params, values Values) (Restriction, bool) {
	if values == nil {
		return nil, false
	}
	r.mu.RLock()
	f, ok := r.factories[p.Type]
	r.mu.RUnlock()
	if !ok {
		return nil, false
	}
	restriction, ok := f(p, values)
	if !ok || restriction == nil || !isValidOperator(p.Operator, restriction.ValidOperators()) {
		return nil, false
	}
	return restriction, true
}

// New builds restrictions from authored params with the default registry.
func New(p *RestrictionsParams, values Values) *Restrictions {
	return DefaultRegistry.New(p, values)
}

// New builds restrictions from authored params. Invalid restrictions are
// dropped, and sets left empty are dropped with them.
func (r *Registry) New(p *RestrictionsParams, values Values) *Restrictions {
	rs := &Restrictions{combinator: All}
	if p == nil {
		return rs
	}
	rs.combinator = ParseCombinator(p.Operator)
	for _, sp := range p.Sets {
		set := &Set{combinator: ParseCombinator(sp.Operator)}
		for _, rp := range sp.Restrictions {
			if restriction, ok := r.Build(rp, values); ok {
				set.restrictions = append(set.restrictions, restriction)
			}
		}
		if len(set.restrictions) > 0 {
			rs.sets = append(rs.sets, set)
		}
	}
	return rs
}

// Sets returns the surviving restriction sets.
func (rs *Restrictions) Sets() []*Set {
	if rs == nil {
		return nil
	}
	return rs.sets
}

// IsEmpty reports whether nothing restricts access.
func (rs *Restrictions) IsEmpty() bool {
	return rs == nil || len(rs.sets) == 0
}

// AllPassed evaluates every set against the current values. A nil or
// empty Restrictions always passes.
func (rs *Restrictions) AllPassed() bool {
	if rs.IsEmpty() {
		return true
	}
	results := make([]bool, len(rs.sets))
	for i, s := range rs.sets {
		results[i] = s.Check()
	}
	return rs.combinator.combine(results)
}

// Failed returns the type names of restrictions that currently fail,
// in authored order. Useful as a payload for the locked-access message.
func (rs *Restrictions) Failed() []string {
	if rs.IsEmpty() {
		return nil
	}
	var failed []string
	for _, s := range rs.sets {
		for _, r := range s.restrictions {
			if !r.Check() {
				failed = append(failed, r.Type())
			}
		}
	}
	return failed
}
