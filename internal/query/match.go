package query

import (
	"reflect"
	"strings"
	"time"
)

// Lookup resolves a dotted path inside a document.
func Lookup(doc map[string]any, path string) (any, bool) {
	var cur any = doc

	for _, part := range strings.Split(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}

		if cur, ok = m[part]; !ok {
			return nil, false
		}
	}

	return cur, true
}

// Match evaluates e against an open document with document-store semantics:
// a missing field satisfies ne, nin and exists=false, and a condition on an
// array field matches when any element does.
func Match(e Expr, doc map[string]any) bool {
	switch t := e.(type) {
	case None:
		return false
	case And:
		for _, child := range t {
			if !Match(child, doc) {
				return false
			}
		}

		return true
	case Or:
		for _, child := range t {
			if Match(child, doc) {
				return true
			}
		}

		return false
	case Cond:
		return matchCond(t, doc)
	default:
		return false
	}
}

func matchCond(c Cond, doc map[string]any) bool {
	v, present := Lookup(doc, c.Field)

	switch c.Op {
	case OpExists:
		want, _ := c.Value.(bool)
		return present == want
	case OpEq:
		return matchEq(v, present, c.Value)
	case OpNe:
		return !matchEq(v, present, c.Value)
	case OpIn:
		return matchIn(v, present, c.Value)
	case OpNin:
		return !matchIn(v, present, c.Value)
	case OpGt, OpGte, OpLt, OpLte:
		return present && anyElement(v, func(x any) bool { return compareOp(c.Op, x, c.Value) })
	case OpRegex:
		r, ok := c.Value.(Regex)
		if !ok || !present {
			return false
		}

		re, err := compileRegex(r.Pattern, r.Options)
		if err != nil {
			return false
		}

		return anyElement(v, func(x any) bool {
			s, ok := x.(string)
			return ok && re.MatchString(s)
		})
	case OpContains:
		term, _ := c.Value.(string)
		if !present {
			return false
		}

		return anyElement(v, func(x any) bool {
			s, ok := x.(string)
			return ok && strings.Contains(strings.ToLower(s), strings.ToLower(term))
		})
	default:
		return false
	}
}

func matchEq(v any, present bool, want any) bool {
	if want == nil {
		return !present || v == nil
	}

	if !present {
		return false
	}

	if equal(v, want) {
		return true
	}

	return anyElement(v, func(x any) bool { return equal(x, want) })
}

func matchIn(v any, present bool, want any) bool {
	values, _ := want.([]any)
	for _, w := range values {
		if matchEq(v, present, w) {
			return true
		}
	}

	return false
}

// anyElement applies fn to v, or to each element when v is an array.
func anyElement(v any, fn func(any) bool) bool {
	if arr, ok := v.([]any); ok {
		for _, x := range arr {
			if fn(x) {
				return true
			}
		}

		return false
	}

	return fn(v)
}

func equal(a, b any) bool {
	if fa, ok := toFloat(a); ok {
		fb, ok := toFloat(b)
		return ok && fa == fb
	}

	if ta, ok := a.(time.Time); ok {
		tb, ok := b.(time.Time)
		return ok && ta.Equal(tb)
	}

	return reflect.DeepEqual(a, b)
}

func compareOp(op Op, a, b any) bool {
	c, ok := compare(a, b)
	if !ok {
		return false
	}

	switch op {
	case OpGt:
		return c > 0
	case OpGte:
		return c >= 0
	case OpLt:
		return c < 0
	case OpLte:
		return c <= 0
	default:
		return false
	}
}

// compare orders two values of the same kind; ok is false for mixed kinds.
func compare(a, b any) (int, bool) {
	if fa, ok := toFloat(a); ok {
		fb, ok := toFloat(b)
		if !ok {
			return 0, false
		}

		switch {
		case fa < fb:
			return -1, true
		case fa > fb:
			return 1, true
		default:
			return 0, true
		}
	}

	if sa, ok := a.(string); ok {
		sb, ok := b.(string)
		if !ok {
			return 0, false
		}

		return strings.Compare(sa, sb), true
	}

	if ta, ok := a.(time.Time); ok {
		tb, ok := b.(time.Time)
		if !ok {
			return 0, false
		}

		return ta.Compare(tb), true
	}

	return 0, false
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}
