// Package rule implements the declarative rule table: topic filters,
// firing conditions, payload parsing and condition evaluation.
package rule

import (
	"encoding/json"
	"fmt"
	"sort"
)

// Rule binds a topic filter to an executable action with optional firing
// conditions. Rules are immutable after load.
type Rule struct {
	Topic       string       `json:"topic"`                 // Topic filter, may contain + and # wildcards
	Script      string       `json:"script"`                // Path of the executable to launch
	Description string       `json:"description,omitempty"` // Optional rule description
	Enabled     *bool        `json:"enabled,omitempty"`     // Absent means enabled
	Conditions  ConditionSet `json:"conditions,omitempty"`  // Conjunction; empty means unconditional
}

// IsEnabled reports whether the rule participates in dispatch.
func (r *Rule) IsEnabled() bool {
	return r.Enabled == nil || *r.Enabled
}

// ConditionKind discriminates the two condition forms.
type ConditionKind int

const (
	// KindEquals compares the payload field against a literal scalar.
	KindEquals ConditionKind = iota
	// KindCompare compares a numeric payload field against a threshold.
	KindCompare
)

// Condition is a single field condition, decided at configuration-load time
// as either an equality literal or a numeric comparison.
type Condition struct {
	Field     string
	Kind      ConditionKind
	Equals    interface{} // string, float64 or bool when Kind == KindEquals
	Operator  string      // comparison operator when Kind == KindCompare
	Threshold float64     // comparison threshold when Kind == KindCompare
}

// ConditionSet is the conjunction of per-field conditions for one rule.
// Order is deterministic (sorted by field name).
type ConditionSet []Condition

// Comparison operators
const (
	OpGreaterThan    = ">"
	OpLessThan       = "<"
	OpGreaterOrEqual = ">="
	OpLessOrEqual    = "<="
	OpEqual          = "=="
	OpNotEqual       = "!="
)

// ValidOperators contains all valid comparison operators
var ValidOperators = map[string]bool{
	OpGreaterThan:    true,
	OpLessThan:       true,
	OpGreaterOrEqual: true,
	OpLessOrEqual:    true,
	OpEqual:          true,
	OpNotEqual:       true,
}

// comparisonForm is the wire shape of a structured comparison condition.
// "value" is accepted as a legacy alias for "threshold".
type comparisonForm struct {
	Operator  string   `json:"operator"`
	Threshold *float64 `json:"threshold"`
	Value     *float64 `json:"value"`
}

// UnmarshalJSON decodes the configuration form of a condition map:
//
//	{"temperature": {"operator": ">", "threshold": 25.0}, "status": "offline"}
//
// Literal values become equality conditions; objects must carry a known
// operator and a numeric threshold. Anything else is a load error.
func (cs *ConditionSet) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("conditions must be an object: %w", err)
	}

	fields := make([]string, 0, len(raw))
	for field := range raw {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	out := make(ConditionSet, 0, len(raw))
	for _, field := range fields {
		cond, err := parseCondition(field, raw[field])
		if err != nil {
			return err
		}
		out = append(out, cond)
	}

	*cs = out
	return nil
}

func parseCondition(field string, data json.RawMessage) (Condition, error) {
	if len(data) > 0 && data[0] == '{' {
		var form comparisonForm
		if err := json.Unmarshal(data, &form); err != nil {
			return Condition{}, fmt.Errorf("condition %q: %w", field, err)
		}
		if !ValidOperators[form.Operator] {
			return Condition{}, &ValidationError{
				Field:   field,
				Message: fmt.Sprintf("unknown operator: %q", form.Operator),
			}
		}
		threshold := form.Threshold
		if threshold == nil {
			threshold = form.Value
		}
		if threshold == nil {
			return Condition{}, &ValidationError{
				Field:   field,
				Message: "comparison condition requires a numeric threshold",
			}
		}
		return Condition{
			Field:     field,
			Kind:      KindCompare,
			Operator:  form.Operator,
			Threshold: *threshold,
		}, nil
	}

	var literal interface{}
	if err := json.Unmarshal(data, &literal); err != nil {
		return Condition{}, fmt.Errorf("condition %q: %w", field, err)
	}
	switch literal.(type) {
	case string, bool, float64:
		return Condition{Field: field, Kind: KindEquals, Equals: literal}, nil
	default:
		return Condition{}, &ValidationError{
			Field:   field,
			Message: "equality condition must be a string, number or boolean",
		}
	}
}

// ValidationError represents a rule validation error
type ValidationError struct {
	Field   string
	Message string
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}
