package automation

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"crm-messaging/internal/domain/record"
)

type Operator string

const (
	OpAnd       Operator = "and"
	OpOr        Operator = "or"
	OpNot       Operator = "not"
	OpEq        Operator = "eq"
	OpNeq       Operator = "neq"
	OpGt        Operator = "gt"
	OpGte       Operator = "gte"
	OpLt        Operator = "lt"
	OpLte       Operator = "lte"
	OpContains  Operator = "contains"
	OpIn        Operator = "in"
	OpExists    Operator = "exists"
	OpNotExists Operator = "not_exists"
)

// ConditionSpec is the stored JSON form of a trigger condition:
//
//	{"op":"and","conditions":[...]}
//	{"op":"not","condition":{...}}
//	{"field":"status","op":"eq","value":"new"}
type ConditionSpec struct {
	Op         Operator        `json:"op"`
	Field      string          `json:"field,omitempty"`
	Value      any             `json:"value,omitempty"`
	Conditions []ConditionSpec `json:"conditions,omitempty"`
	Condition  *ConditionSpec  `json:"condition,omitempty"`
}

// Condition is a predicate over record data.
type Condition interface {
	Eval(data map[string]any) bool
}

type Comparison struct {
	Field string
	Op    Operator
	Value any
}

type All []Condition

type Any []Condition

type Not struct {
	Inner Condition
}

// Compile turns the stored spec into an evaluable condition tree.
func (s ConditionSpec) Compile() (Condition, error) {
	switch s.Op {
	case OpAnd, OpOr:
		if len(s.Conditions) == 0 {
			return nil, fmt.Errorf("%s requires at least one condition", s.Op)
		}
		children := make([]Condition, 0, len(s.Conditions))
		for _, child := range s.Conditions {
			c, err := child.Compile()
			if err != nil {
				return nil, err
			}
			children = append(children, c)
		}
		if s.Op == OpAnd {
			return All(children), nil
		}
		return Any(children), nil
	case OpNot:
		if s.Condition == nil {
			return nil, fmt.Errorf("not requires a condition")
		}
		inner, err := s.Condition.Compile()
		if err != nil {
			return nil, err
		}
		return Not{Inner: inner}, nil
	case OpEq, OpNeq, OpGt, OpGte, OpLt, OpLte, OpContains, OpIn, OpExists, OpNotExists:
		if s.Field == "" {
			return nil, fmt.Errorf("%s requires a field", s.Op)
		}
		if s.Op == OpIn {
			if _, ok := s.Value.([]any); !ok {
				return nil, fmt.Errorf("in requires a list value")
			}
		}
		return Comparison{Field: s.Field, Op: s.Op, Value: s.Value}, nil
	}
	return nil, fmt.Errorf("unknown operator %q", s.Op)
}

func (a All) Eval(data map[string]any) bool {
	for _, c := range a {
		if !c.Eval(data) {
			return false
		}
	}
	return true
}

func (a Any) Eval(data map[string]any) bool {
	for _, c := range a {
		if c.Eval(data) {
			return true
		}
	}
	return false
}

func (n Not) Eval(data map[string]any) bool {
	return !n.Inner.Eval(data)
}

func (c Comparison) Eval(data map[string]any) bool {
	actual, present := data[c.Field]
	present = present && actual != nil && record.FormatValue(actual) != ""

	switch c.Op {
	case OpExists:
		return present
	case OpNotExists:
		return !present
	case OpEq:
		return present && compare(actual, c.Value) == 0
	case OpNeq:
		return !present || compare(actual, c.Value) != 0
	case OpGt:
		return present && compare(actual, c.Value) > 0
	case OpGte:
		return present && compare(actual, c.Value) >= 0
	case OpLt:
		return present && compare(actual, c.Value) < 0
	case OpLte:
		return present && compare(actual, c.Value) <= 0
	case OpContains:
		if !present {
			return false
		}
		if list, ok := actual.([]any); ok {
			for _, item := range list {
				if compare(item, c.Value) == 0 {
					return true
				}
			}
			return false
		}
		return strings.Contains(record.FormatValue(actual), record.FormatValue(c.Value))
	case OpIn:
		if !present {
			return false
		}
		list, _ := c.Value.([]any)
		for _, item := range list {
			if compare(actual, item) == 0 {
				return true
			}
		}
		return false
	}
	return false
}

// compare orders two values numerically, then as RFC3339/date times, then as strings.
func compare(a, b any) int {
	as, bs := record.FormatValue(a), record.FormatValue(b)
	if af, err := strconv.ParseFloat(as, 64); err == nil {
		if bf, err := strconv.ParseFloat(bs, 64); err == nil {
			switch {
			case af < bf:
				return -1
			case af > bf:
				return 1
			}
			return 0
		}
	}
	if at, ok := ParseTime(as); ok {
		if bt, ok := ParseTime(bs); ok {
			return at.Compare(bt)
		}
	}
	return strings.Compare(as, bs)
}

var timeLayouts = []string{time.RFC3339Nano, time.RFC3339, "2006-01-02 15:04:05", "2006-01-02T15:04", "2006-01-02"}

// ParseTime accepts the date formats record forms emit.
func ParseTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
