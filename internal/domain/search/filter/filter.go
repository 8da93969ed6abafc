package filter

import (
	"fmt"
	"strconv"
)

// MaxConditions is the maximum number of conditions in one expression.
const MaxConditions = 16

// Expression is a conjunction of equality conditions over item metadata.
// An empty expression places no constraint.
type Expression struct {
	must []Condition
}

// NewExpression validates and creates a filter Expression.
func NewExpression(must ...Condition) (Expression, error) {
	if len(must) > MaxConditions {
		return Expression{}, fmt.Errorf("too many filter conditions (max %d)", MaxConditions)
	}
	seen := make(map[string]string, len(must))
	for _, c := range must {
		if prev, ok := seen[c.key]; ok && prev != c.match {
			return Expression{}, fmt.Errorf("conflicting conditions for key %q", c.key)
		}
		seen[c.key] = c.match
	}
	return Expression{must: must}, nil
}

// Must returns the conditions.
func (e Expression) Must() []Condition { return e.must }

// IsEmpty reports whether the expression has no conditions.
func (e Expression) IsEmpty() bool { return len(e.must) == 0 }

// Matches reports whether every condition holds for the given fields.
func (e Expression) Matches(fields map[string]string) bool {
	for _, c := range e.must {
		if fields[c.key] != c.match {
			return false
		}
	}
	return true
}

// AsMap returns the conditions as key/value pairs, or nil when empty.
func (e Expression) AsMap() map[string]string {
	if len(e.must) == 0 {
		return nil
	}
	m := make(map[string]string, len(e.must))
	for _, c := range e.must {
		m[c.key] = c.match
	}
	return m
}

// Condition is a single exact-match clause.
type Condition struct {
	key   string
	match string
}

// NewMatch creates an exact match condition.
func NewMatch(key, match string) (Condition, error) {
	if key == "" {
		return Condition{}, fmt.Errorf("filter key is required")
	}
	if match == "" {
		return Condition{}, fmt.Errorf("match value is required for key %q", key)
	}
	return Condition{key: key, match: match}, nil
}

// NewFlag creates a boolean equality condition.
func NewFlag(key string, v bool) (Condition, error) {
	return NewMatch(key, strconv.FormatBool(v))
}

// Key returns the field name.
func (c Condition) Key() string { return c.key }

// Match returns the exact match value.
func (c Condition) Match() string { return c.match }
