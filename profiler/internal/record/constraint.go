package record

import (
	"fmt"

	"github.com/modelperf/modelperf/profiler/internal/config"
)

// Violation describes one constraint bound a measurement missed.
type Violation struct {
	Tag   string
	Op    string // "<=" for max bounds, ">=" for min bounds
	Bound float64
	Value float64
}

func (v Violation) String() string {
	return fmt.Sprintf("%s = %g violates %s %s %g %s",
		v.Tag, v.Value, v.Tag, v.Op, v.Bound, Unit(v.Tag))
}

// ConstraintManager evaluates measurements against the profile's constraint
// sets: per-model constraints when configured, the default set otherwise.
type ConstraintManager struct {
	cfg *config.Config
}

// NewConstraintManager creates a manager bound to the given profile config.
func NewConstraintManager(cfg *config.Config) *ConstraintManager {
	return &ConstraintManager{cfg: cfg}
}

// Evaluate checks m against the effective constraints for its model, sets
// m.Passed, and returns any violations. A measurement with an error never
// passes. A measurement missing a constrained metric fails that constraint —
// absence of evidence is not a pass.
func (cm *ConstraintManager) Evaluate(m *Measurement) []Violation {
	if m.Err != nil {
		m.Passed = false
		return nil
	}

	constraints := cm.cfg.ConstraintsFor(m.Model)
	var violations []Violation
	for tag, bound := range constraints {
		v, ok := m.Get(tag)
		if !ok {
			violations = append(violations, Violation{Tag: tag, Op: "present", Value: 0})
			continue
		}
		if bound.Max != 0 && v > bound.Max {
			violations = append(violations, Violation{Tag: tag, Op: "<=", Bound: bound.Max, Value: v})
		}
		if bound.Min != 0 && v < bound.Min {
			violations = append(violations, Violation{Tag: tag, Op: ">=", Bound: bound.Min, Value: v})
		}
	}

	m.Passed = len(violations) == 0
	return violations
}
