package rule

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEvaluateEmptyConditions(t *testing.T) {
	payloads := []*Payload{
		ParsePayload([]byte(`{"anything": 1}`)),
		ParsePayload([]byte("plain text")),
		ParsePayload(nil),
	}
	for _, p := range payloads {
		assert.True(t, Evaluate(nil, p))
		assert.True(t, Evaluate(ConditionSet{}, p))
	}
}

func TestEvaluateEquality(t *testing.T) {
	tests := []struct {
		name    string
		cond    Condition
		payload string
		want    bool
	}{
		{
			name:    "string equal",
			cond:    Condition{Field: "status", Kind: KindEquals, Equals: "offline"},
			payload: `{"status": "offline"}`,
			want:    true,
		},
		{
			name:    "string not equal",
			cond:    Condition{Field: "status", Kind: KindEquals, Equals: "offline"},
			payload: `{"status": "online"}`,
			want:    false,
		},
		{
			name:    "number equal",
			cond:    Condition{Field: "code", Kind: KindEquals, Equals: float64(3)},
			payload: `{"code": 3}`,
			want:    true,
		},
		{
			name:    "bool equal",
			cond:    Condition{Field: "armed", Kind: KindEquals, Equals: true},
			payload: `{"armed": true}`,
			want:    true,
		},
		{
			name:    "no coercion string to number",
			cond:    Condition{Field: "code", Kind: KindEquals, Equals: float64(3)},
			payload: `{"code": "3"}`,
			want:    false,
		},
		{
			name:    "no coercion number to string",
			cond:    Condition{Field: "status", Kind: KindEquals, Equals: "3"},
			payload: `{"status": 3}`,
			want:    false,
		},
		{
			name:    "no coercion bool to number",
			cond:    Condition{Field: "armed", Kind: KindEquals, Equals: float64(1)},
			payload: `{"armed": true}`,
			want:    false,
		},
		{
			name:    "missing field fails closed",
			cond:    Condition{Field: "status", Kind: KindEquals, Equals: "offline"},
			payload: `{"other": "offline"}`,
			want:    false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Evaluate(ConditionSet{tt.cond}, ParsePayload([]byte(tt.payload)))
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEvaluateComparison(t *testing.T) {
	tests := []struct {
		name     string
		operator string
		value    string
		want     bool
	}{
		{name: "gt true", operator: ">", value: "30.5", want: true},
		{name: "gt false", operator: ">", value: "20", want: false},
		{name: "gt boundary", operator: ">", value: "25.0", want: false},
		{name: "lt true", operator: "<", value: "20", want: true},
		{name: "gte boundary", operator: ">=", value: "25.0", want: true},
		{name: "lte boundary", operator: "<=", value: "25.0", want: true},
		{name: "eq true", operator: "==", value: "25.0", want: true},
		{name: "neq true", operator: "!=", value: "26", want: true},
		{name: "neq false", operator: "!=", value: "25.0", want: false},
		{name: "non-numeric field fails closed", operator: ">", value: `"hot"`, want: false},
		{name: "boolean field fails closed", operator: ">", value: "true", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conds := ConditionSet{
				{Field: "temperature", Kind: KindCompare, Operator: tt.operator, Threshold: 25.0},
			}
			payload := ParsePayload([]byte(`{"temperature": ` + tt.value + `}`))
			assert.Equal(t, tt.want, Evaluate(conds, payload))
		})
	}
}

func TestEvaluateConjunction(t *testing.T) {
	conds := ConditionSet{
		{Field: "humidity", Kind: KindCompare, Operator: "<", Threshold: 50},
		{Field: "temperature", Kind: KindCompare, Operator: ">", Threshold: 25.0},
	}

	assert.True(t, Evaluate(conds, ParsePayload([]byte(`{"temperature": 30.5, "humidity": 45}`))))
	assert.False(t, Evaluate(conds, ParsePayload([]byte(`{"temperature": 20, "humidity": 45}`))))
	assert.False(t, Evaluate(conds, ParsePayload([]byte(`{"temperature": 30.5, "humidity": 60}`))))
	assert.False(t, Evaluate(conds, ParsePayload([]byte(`{"temperature": 30.5}`))))
}

func TestEvaluateScalarPayload(t *testing.T) {
	conds := ConditionSet{
		{Field: "status", Kind: KindEquals, Equals: "offline"},
	}

	// conditions declared against a non-object payload never fire
	assert.False(t, Evaluate(conds, ParsePayload([]byte("offline"))))
	assert.False(t, Evaluate(conds, ParsePayload([]byte("42"))))
	assert.False(t, Evaluate(conds, nil))
}

func TestEvaluateWithReason(t *testing.T) {
	conds := ConditionSet{
		{Field: "temperature", Kind: KindCompare, Operator: ">", Threshold: 25.0},
	}

	ok, reason := EvaluateWithReason(conds, ParsePayload([]byte(`{"temperature": 30}`)))
	assert.True(t, ok)
	assert.Empty(t, reason)

	ok, reason = EvaluateWithReason(conds, ParsePayload([]byte(`{"temperature": 20}`)))
	assert.False(t, ok)
	assert.Contains(t, reason, "temperature")

	ok, reason = EvaluateWithReason(conds, ParsePayload([]byte(`{"humidity": 20}`)))
	assert.False(t, ok)
	assert.Contains(t, reason, "not present")

	ok, reason = EvaluateWithReason(conds, ParsePayload([]byte("plain")))
	assert.False(t, ok)
	assert.Contains(t, reason, "not a JSON object")
}

func TestEvaluateIsPure(t *testing.T) {
	conds := ConditionSet{
		{Field: "temperature", Kind: KindCompare, Operator: ">", Threshold: 25.0},
		{Field: "humidity", Kind: KindCompare, Operator: "<", Threshold: 50},
	}
	payload := ParsePayload([]byte(`{"temperature": 20, "humidity": 45}`))

	for i := 0; i < 3; i++ {
		assert.False(t, Evaluate(conds, payload))
	}
	// short-circuiting must not mutate inputs
	assert.Equal(t, 20.0, payload.Fields["temperature"])
	assert.Len(t, conds, 2)
}
