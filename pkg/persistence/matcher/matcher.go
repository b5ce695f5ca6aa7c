// Copyright 2025 UMH Systems GmbH
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package matcher evaluates MongoDB-style filters against rows and documents.
//
// Supported per-field operators: $eq, $ne, $in, $nin, $regex (+ $options),
// $gt, $gte, $lt, $lte and $exists. Several operators under one key and all keys
// of a filter are ANDed. Before comparing, email fields are trimmed and
// case-folded, phone fields are reduced to canonical digits and "_id" goes through
// ids.NormalizeID, on both sides.
package matcher

import (
	"fmt"
	"reflect"
	"regexp"
	"sort"
	"strings"

	"github.com/rentalhub/rental-core/pkg/constants"
	"github.com/rentalhub/rental-core/pkg/persistence"
	"github.com/rentalhub/rental-core/pkg/persistence/ids"
	"github.com/rentalhub/rental-core/pkg/persistence/marshal"
)

// Options configure how fields are normalized.
type Options struct {
	Schema persistence.Schema
}

// DefaultOptions uses persistence.DefaultSchema.
func DefaultOptions() Options {
	return Options{Schema: persistence.DefaultSchema()}
}

type predicate func(record map[string]interface{}) bool

// Matcher is a compiled filter. It is safe for concurrent use.
type Matcher struct {
	predicates []predicate
}

// Compile validates filter and prepares it for matching. An empty filter matches everything.
func Compile(filter persistence.Filter, opts Options) (*Matcher, error) {
	m := &Matcher{}

	// sorted for deterministic error messages
	fields := make([]string, 0, len(filter))
	for field := range filter {
		fields = append(fields, field)
	}

	sort.Strings(fields)

	for _, field := range fields {
		preds, err := compileField(field, filter[field], normalizerFor(field, opts.Schema))
		if err != nil {
			return nil, err
		}

		m.predicates = append(m.predicates, preds...)
	}

	return m, nil
}

// Matches reports whether record satisfies every condition.
func (m *Matcher) Matches(record map[string]interface{}) bool {
	for _, p := range m.predicates {
		if !p(record) {
			return false
		}
	}

	return true
}

// Matches compiles filter with DefaultOptions and evaluates it once.
// An invalid filter matches nothing.
func Matches(record map[string]interface{}, filter persistence.Filter) bool {
	m, err := Compile(filter, DefaultOptions())
	if err != nil {
		return false
	}

	return m.Matches(record)
}

// normalizer maps a value into the form it is compared in.
type normalizer func(v interface{}) interface{}

func identity(v interface{}) interface{} { return v }

func normalizerFor(field string, schema persistence.Schema) normalizer {
	if field == constants.FieldID {
		return func(v interface{}) interface{} {
			if id, ok := ids.NormalizeID(v); ok {
				return id
			}

			return nil
		}
	}

	switch schema.Kind(field) {
	case persistence.KindEmail:
		return func(v interface{}) interface{} {
			if v == nil {
				return nil
			}

			return strings.ToLower(strings.TrimSpace(fmt.Sprint(v)))
		}
	case persistence.KindPhone:
		return func(v interface{}) interface{} {
			if v == nil {
				return nil
			}

			return marshal.CanonicalPhone(v)
		}
	default:
		return identity
	}
}

// lookup returns a field's value. Empty cells count as absent.
func lookup(record map[string]interface{}, field string) (interface{}, bool) {
	v, ok := record[field]
	if !ok || v == nil {
		return nil, false
	}

	if s, isString := v.(string); isString && s == "" {
		return nil, false
	}

	return v, true
}

func compileField(field string, cond interface{}, norm normalizer) ([]predicate, error) {
	ops, isOps := operatorMap(cond)
	if !isOps {
		return []predicate{eqPredicate(field, cond, norm)}, nil
	}

	if _, ok := ops[string(persistence.Options)]; ok {
		if _, hasRegex := ops[string(persistence.Regex)]; !hasRegex {
			return nil, fmt.Errorf("%w: $options without $regex on field %q", persistence.ErrInvalidFilter, field)
		}
	}

	names := make([]string, 0, len(ops))
	for op := range ops {
		names = append(names, op)
	}

	sort.Strings(names)

	var preds []predicate

	for _, op := range names {
		operand := ops[op]

		switch persistence.Operator(op) {
		case persistence.Eq:
			preds = append(preds, eqPredicate(field, operand, norm))

		case persistence.Ne:
			eq := eqPredicate(field, operand, norm)
			preds = append(preds, func(r map[string]interface{}) bool { return !eq(r) })

		case persistence.In, persistence.Nin:
			list, ok := asList(operand)
			if !ok {
				return nil, fmt.Errorf("%w: %s on field %q expects an array, got %T", persistence.ErrInvalidFilter, op, field, operand)
			}

			in := inPredicate(field, list, norm)
			if persistence.Operator(op) == persistence.Nin {
				preds = append(preds, func(r map[string]interface{}) bool { return !in(r) })
			} else {
				preds = append(preds, in)
			}

		case persistence.Regex:
			re, err := compileRegex(operand, ops[string(persistence.Options)])
			if err != nil {
				return nil, fmt.Errorf("%w: field %q: %w", persistence.ErrInvalidFilter, field, err)
			}

			preds = append(preds, regexPredicate(field, re, norm))

		case persistence.Options:
			// consumed by $regex

		case persistence.Gt, persistence.Gte, persistence.Lt, persistence.Lte:
			preds = append(preds, rangePredicate(field, persistence.Operator(op), norm(operand), norm))

		case persistence.Exists:
			want, ok := operand.(bool)
			if !ok {
				return nil, fmt.Errorf("%w: $exists on field %q expects a bool, got %T", persistence.ErrInvalidFilter, field, operand)
			}

			preds = append(preds, func(r map[string]interface{}) bool {
				_, present := lookup(r, field)

				return present == want
			})

		default:
			return nil, fmt.Errorf("%w: unknown operator %q on field %q", persistence.ErrInvalidFilter, op, field)
		}
	}

	return preds, nil
}

// operatorMap returns cond as an operator map if all of its keys start with "$".
// A map without "$" keys is a literal to compare against.
func operatorMap(cond interface{}) (map[string]interface{}, bool) {
	var m map[string]interface{}

	switch t := cond.(type) {
	case map[string]interface{}:
		m = t
	case persistence.Filter:
		m = t
	case persistence.Document:
		m = t
	default:
		return nil, false
	}

	if len(m) == 0 {
		return nil, false
	}

	for k := range m {
		if !strings.HasPrefix(k, "$") {
			return nil, false
		}
	}

	return m, true
}

func eqPredicate(field string, want interface{}, norm normalizer) predicate {
	target := norm(want)

	return func(r map[string]interface{}) bool {
		v, present := lookup(r, field)
		if !present {
			return target == nil
		}

		return equal(norm(v), target)
	}
}

func inPredicate(field string, list []interface{}, norm normalizer) predicate {
	targets := make([]interface{}, len(list))
	for i, item := range list {
		targets[i] = norm(item)
	}

	return func(r map[string]interface{}) bool {
		v, present := lookup(r, field)

		var got interface{}
		if present {
			got = norm(v)
		}

		for _, t := range targets {
			if (got == nil && t == nil) || (got != nil && equal(got, t)) {
				return true
			}
		}

		return false
	}
}

func regexPredicate(field string, re *regexp.Regexp, norm normalizer) predicate {
	return func(r map[string]interface{}) bool {
		v, present := lookup(r, field)
		if !present {
			return false
		}

		switch t := norm(v).(type) {
		case string:
			return re.MatchString(t)
		case float64, int, int64, bool:
			return re.MatchString(fmt.Sprint(t))
		default:
			return false
		}
	}
}

func rangePredicate(field string, op persistence.Operator, bound interface{}, norm normalizer) predicate {
	return func(r map[string]interface{}) bool {
		v, present := lookup(r, field)
		if !present {
			return false
		}

		c, ok := compare(norm(v), bound)
		if !ok {
			return false
		}

		switch op {
		case persistence.Gt:
			return c > 0
		case persistence.Gte:
			return c >= 0
		case persistence.Lt:
			return c < 0
		default:
			return c <= 0
		}
	}
}

func asList(v interface{}) ([]interface{}, bool) {
	if list, ok := v.([]interface{}); ok {
		return list, true
	}

	rv := reflect.ValueOf(v)
	if !rv.IsValid() || (rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array) {
		return nil, false
	}

	out := make([]interface{}, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}

	return out, true
}

// compileRegex builds a Go regexp from a pattern and MongoDB $options flags.
// The x flag strips unescaped whitespace and # comments from the pattern.
func compileRegex(pattern interface{}, options interface{}) (*regexp.Regexp, error) {
	if re, ok := pattern.(*regexp.Regexp); ok && options == nil {
		return re, nil
	}

	src, ok := pattern.(string)
	if !ok {
		return nil, fmt.Errorf("$regex expects a string, got %T", pattern)
	}

	var flags string
	if options != nil {
		opts, ok := options.(string)
		if !ok {
			return nil, fmt.Errorf("$options expects a string, got %T", options)
		}

		for _, f := range opts {
			switch f {
			case 'i', 'm', 's':
				if !strings.ContainsRune(flags, f) {
					flags += string(f)
				}
			case 'x':
				src = stripExtended(src)
			default:
				return nil, fmt.Errorf("unsupported $options flag %q", f)
			}
		}
	}

	if flags != "" {
		src = "(?" + flags + ")" + src
	}

	return regexp.Compile(src)
}

func stripExtended(src string) string {
	var b strings.Builder

	escaped := false
	inClass := false

	for i := 0; i < len(src); i++ {
		c := src[i]

		switch {
		case escaped:
			escaped = false
		case c == '\\':
			escaped = true
		case c == '[':
			inClass = true
		case c == ']':
			inClass = false
		case !inClass && (c == ' ' || c == '\t' || c == '\n' || c == '\r'):
			continue
		case !inClass && c == '#':
			for i < len(src) && src[i] != '\n' {
				i++
			}

			continue
		}

		b.WriteByte(c)
	}

	return b.String()
}
