package rule

import (
	"fmt"
	"strings"
)

// Validate performs full validation of a rule: filter syntax, script path
// and condition shape. Called by the loader; any error is fatal at startup.
func Validate(rule *Rule) error {
	if rule == nil {
		return &ValidationError{
			Field:   "rule",
			Message: "rule cannot be nil",
		}
	}

	if err := validateTopicFilter(rule.Topic); err != nil {
		return &ValidationError{
			Field:   "topic",
			Message: err.Error(),
		}
	}

	if rule.Script == "" {
		return &ValidationError{
			Field:   "script",
			Message: "script path cannot be empty",
		}
	}

	for i := range rule.Conditions {
		if err := validateCondition(&rule.Conditions[i]); err != nil {
			return &ValidationError{
				Field:   fmt.Sprintf("conditions[%s]", rule.Conditions[i].Field),
				Message: err.Error(),
			}
		}
	}

	return nil
}

// validateTopicFilter checks if a topic filter pattern is valid
func validateTopicFilter(topic string) error {
	if topic == "" {
		return fmt.Errorf("topic filter cannot be empty")
	}

	segments := strings.Split(topic, "/")
	for i, segment := range segments {
		if segment == "" && i != 0 && i != len(segments)-1 {
			return fmt.Errorf("empty segment not allowed in middle of topic filter")
		}

		if strings.Contains(segment, "#") {
			if segment != "#" {
				return fmt.Errorf("# wildcard must occupy entire segment")
			}
			if i != len(segments)-1 {
				return fmt.Errorf("# wildcard must be the last segment")
			}
		}

		if strings.Contains(segment, "+") {
			if segment != "+" {
				return fmt.Errorf("+ wildcard must occupy entire segment")
			}
		}
	}

	return nil
}

// validateCondition validates a single condition
func validateCondition(cond *Condition) error {
	if cond.Field == "" {
		return fmt.Errorf("field cannot be empty")
	}

	switch cond.Kind {
	case KindEquals:
		switch cond.Equals.(type) {
		case string, bool, float64, int:
			return nil
		default:
			return fmt.Errorf("equality value must be a string, number or boolean")
		}
	case KindCompare:
		if !ValidOperators[cond.Operator] {
			return fmt.Errorf("invalid operator: %s", cond.Operator)
		}
		return nil
	default:
		return fmt.Errorf("unknown condition kind")
	}
}
