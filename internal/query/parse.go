package query

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

var (
	fieldPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z0-9_]+)*$`)
	regexLiteral = regexp.MustCompile(`^/(.*)/([ims]*)$`)
	intPattern   = regexp.MustCompile(`^-?\d+$`)
	floatPattern = regexp.MustCompile(`^-?\d*\.\d+([eE][-+]?\d+)?$`)
)

// Field validates a client supplied field path and maps "id" to the identifier field.
func Field(name string) (string, error) {
	if name == "id" {
		return IDField, nil
	}

	if !fieldPattern.MatchString(name) {
		return "", errors.Wrapf(ErrInvalidField, "%q", name)
	}

	return name, nil
}

// ParseFilter parses a raw query string into a filter tree. Clauses whose key is
// in reserved are skipped. Clauses are ANDed; repeated fields add constraints.
//
// Grammar, one clause per '&' separated segment:
//
//	field=value      equal              field!=value   not equal
//	field>value      greater than       field>=value   greater or equal
//	field<value      less than          field<=value   less or equal
//	field=a,b        in                 field!=a,b     not in
//	field            exists             !field         does not exist
//	field=/re/i      regular expression
func ParseFilter(raw string, reserved map[string]struct{}) (Expr, error) {
	out := And{}

	for _, segment := range strings.Split(raw, "&") {
		if segment == "" {
			continue
		}

		key, _, _ := strings.Cut(segment, "=")
		if name, err := url.QueryUnescape(key); err == nil {
			if _, skip := reserved[name]; skip {
				continue
			}
		}

		cond, err := parseClause(segment)
		if err != nil {
			return None{}, err
		}

		out = append(out, cond)
	}

	return out, nil
}

func parseClause(segment string) (Cond, error) {
	rawKey, rawValue, hasEq := strings.Cut(segment, "=")

	key, err := url.QueryUnescape(rawKey)
	if err != nil {
		return Cond{}, errors.Wrap(ErrMalformedClause, segment)
	}

	if !hasEq {
		return parseBareClause(key)
	}

	value, err := url.QueryUnescape(rawValue)
	if err != nil {
		return Cond{}, errors.Wrap(ErrMalformedClause, segment)
	}

	op := OpEq

	switch {
	case strings.HasSuffix(key, "!"):
		op, key = OpNe, strings.TrimSuffix(key, "!")
	case strings.HasSuffix(key, ">"):
		op, key = OpGte, strings.TrimSuffix(key, ">")
	case strings.HasSuffix(key, "<"):
		op, key = OpLte, strings.TrimSuffix(key, "<")
	}

	field, err := Field(key)
	if err != nil {
		return Cond{}, err
	}

	switch op {
	case OpEq, OpNe:
		return equalityClause(field, op, value)
	default:
		v, err := parseScalar(value)
		if err != nil {
			return Cond{}, err
		}

		return Cond{Field: field, Op: op, Value: v}, nil
	}
}

// parseBareClause handles segments without '=': existence tests and strict comparisons.
func parseBareClause(key string) (Cond, error) {
	if i := strings.IndexAny(key, "<>"); i >= 0 {
		op := OpGt
		if key[i] == '<' {
			op = OpLt
		}

		field, err := Field(key[:i])
		if err != nil {
			return Cond{}, err
		}

		v, err := parseScalar(key[i+1:])
		if err != nil {
			return Cond{}, err
		}

		return Cond{Field: field, Op: op, Value: v}, nil
	}

	present := true
	if strings.HasPrefix(key, "!") {
		present, key = false, key[1:]
	}

	field, err := Field(key)
	if err != nil {
		return Cond{}, err
	}

	return Exists(field, present), nil
}

func equalityClause(field string, op Op, value string) (Cond, error) {
	if m := regexLiteral.FindStringSubmatch(value); m != nil {
		if op == OpNe {
			return Cond{}, errors.Wrap(ErrMalformedClause, "negated regular expressions are not supported")
		}

		if _, err := compileRegex(m[1], m[2]); err != nil {
			return Cond{}, err
		}

		return Cond{Field: field, Op: OpRegex, Value: Regex{Pattern: m[1], Options: m[2]}}, nil
	}

	if strings.Contains(value, ",") {
		parts := strings.Split(value, ",")
		values := make([]any, 0, len(parts))

		for _, p := range parts {
			v, err := parseScalar(p)
			if err != nil {
				return Cond{}, err
			}

			values = append(values, v)
		}

		if op == OpNe {
			return Cond{Field: field, Op: OpNin, Value: values}, nil
		}

		return Cond{Field: field, Op: OpIn, Value: values}, nil
	}

	v, err := parseScalar(value)
	if err != nil {
		return Cond{}, err
	}

	return Cond{Field: field, Op: op, Value: v}, nil
}

// parseScalar types a literal: booleans, null, integers, floats, RFC3339 dates,
// string(...) for forced strings and plain strings otherwise.
func parseScalar(s string) (any, error) {
	switch {
	case s == "true":
		return true, nil
	case s == "false":
		return false, nil
	case s == "null":
		return nil, nil
	case strings.HasPrefix(s, "string(") && strings.HasSuffix(s, ")"):
		return s[len("string(") : len(s)-1], nil
	case intPattern.MatchString(s):
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, errors.Wrap(ErrMalformedClause, s)
		}

		return n, nil
	case floatPattern.MatchString(s):
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, errors.Wrap(ErrMalformedClause, s)
		}

		return f, nil
	}

	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}

	return s, nil
}

func compileRegex(pattern, options string) (*regexp.Regexp, error) {
	expr := pattern
	if options != "" {
		expr = "(?" + options + ")" + pattern
	}

	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, errors.Wrap(ErrInvalidRegex, err.Error())
	}

	return re, nil
}
