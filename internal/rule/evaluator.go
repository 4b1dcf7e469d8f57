package rule

import (
	"encoding/json"
	"fmt"
)

// Evaluate reports whether every declared condition holds against the parsed
// payload. The empty condition set always holds. Evaluation is pure and
// fails closed: a missing field, a scalar payload, or a type mismatch makes
// the conjunction false rather than raising an error.
func Evaluate(conditions ConditionSet, payload *Payload) bool {
	ok, _ := EvaluateWithReason(conditions, payload)
	return ok
}

// EvaluateWithReason is Evaluate plus a short reason string for dispatch
// decision logging when the result is false.
func EvaluateWithReason(conditions ConditionSet, payload *Payload) (bool, string) {
	if len(conditions) == 0 {
		return true, ""
	}
	if payload == nil || !payload.IsObject() {
		return false, "payload is not a JSON object"
	}

	for i := range conditions {
		cond := &conditions[i]
		value, exists := payload.Fields[cond.Field]
		if !exists {
			return false, fmt.Sprintf("field %q not present in payload", cond.Field)
		}
		if !evaluateCondition(cond, value) {
			return false, fmt.Sprintf("condition on field %q not met", cond.Field)
		}
	}

	return true, ""
}

func evaluateCondition(cond *Condition, value interface{}) bool {
	switch cond.Kind {
	case KindEquals:
		return equalsScalar(value, cond.Equals)
	case KindCompare:
		f, ok := toNumber(value)
		if !ok {
			return false
		}
		return compareNumber(f, cond.Operator, cond.Threshold)
	default:
		return false
	}
}

// equalsScalar compares type-aware: string against string, bool against
// bool, number against number. No implicit coercion between types.
func equalsScalar(value, want interface{}) bool {
	switch w := want.(type) {
	case string:
		v, ok := value.(string)
		return ok && v == w
	case bool:
		v, ok := value.(bool)
		return ok && v == w
	default:
		wf, ok := toNumber(want)
		if !ok {
			return false
		}
		vf, ok := toNumber(value)
		return ok && vf == wf
	}
}

func compareNumber(value float64, operator string, threshold float64) bool {
	switch operator {
	case OpGreaterThan:
		return value > threshold
	case OpLessThan:
		return value < threshold
	case OpGreaterOrEqual:
		return value >= threshold
	case OpLessOrEqual:
		return value <= threshold
	case OpEqual:
		return value == threshold
	case OpNotEqual:
		return value != threshold
	default:
		return false
	}
}

// toNumber accepts only numeric runtime values. Strings and booleans are
// deliberately excluded so that comparisons fail closed on non-numeric
// fields.
func toNumber(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}
