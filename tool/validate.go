package tool

import (
	"fmt"
	"reflect"
	"regexp"
	"sort"
	"unicode/utf8"
)

// ValidateArgs checks args against the declared parameters and returns every
// violation, sorted for stable messages. Unknown arguments are violations.
func ValidateArgs(params []Parameter, args map[string]any) []string {
	var problems []string
	declared := make(map[string]Parameter, len(params))
	for _, p := range params {
		declared[p.Name] = p
		if _, ok := args[p.Name]; !ok && p.Required {
			problems = append(problems, fmt.Sprintf("missing required parameter %q", p.Name))
		}
	}

	for name, value := range args {
		p, ok := declared[name]
		if !ok {
			problems = append(problems, fmt.Sprintf("unknown parameter %q", name))
			continue
		}
		if value == nil {
			if p.Required {
				problems = append(problems, fmt.Sprintf("parameter %q must not be null", name))
			}
			continue
		}
		if !isValidType(value, p.Type) {
			problems = append(problems, fmt.Sprintf("parameter %q: expected %s, got %T", name, p.Type, value))
			continue
		}
		if p.Rules != nil {
			problems = append(problems, checkRules(name, value, *p.Rules)...)
		}
	}
	sort.Strings(problems)
	return problems
}

func checkRules(name string, value any, rules Rules) []string {
	var problems []string
	if size, ok := measure(value); ok {
		if rules.Min != nil && size < *rules.Min {
			problems = append(problems, fmt.Sprintf("parameter %q: %v is below minimum %v", name, size, *rules.Min))
		}
		if rules.Max != nil && size > *rules.Max {
			problems = append(problems, fmt.Sprintf("parameter %q: %v is above maximum %v", name, size, *rules.Max))
		}
	}
	if rules.Pattern != "" {
		if s, ok := value.(string); ok {
			re, err := regexp.Compile(rules.Pattern)
			switch {
			case err != nil:
				problems = append(problems, fmt.Sprintf("parameter %q: invalid pattern %q", name, rules.Pattern))
			case !re.MatchString(s):
				problems = append(problems, fmt.Sprintf("parameter %q: %q does not match %s", name, s, rules.Pattern))
			}
		}
	}
	if len(rules.Enum) > 0 && !inEnum(value, rules.Enum) {
		problems = append(problems, fmt.Sprintf("parameter %q: %v is not one of %v", name, value, rules.Enum))
	}
	return problems
}

// measure returns the numeric value of numbers and the length of strings and
// arrays.
func measure(value any) (float64, bool) {
	switch v := value.(type) {
	case string:
		return float64(utf8.RuneCountInString(v)), true
	case []any:
		return float64(len(v)), true
	case []string:
		return float64(len(v)), true
	}
	return toFloat(value)
}

func toFloat(value any) (float64, bool) {
	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(rv.Uint()), true
	case reflect.Float32, reflect.Float64:
		return rv.Float(), true
	}
	return 0, false
}

func inEnum(value any, enum []any) bool {
	for _, e := range enum {
		if reflect.DeepEqual(value, e) {
			return true
		}
		a, aok := toFloat(value)
		b, bok := toFloat(e)
		if aok && bok && a == b {
			return true
		}
	}
	return false
}

// isValidType checks a decoded value against a declared type. JSON numbers
// decode to float64, so integral floats satisfy "integer".
func isValidType(value any, expected ParamType) bool {
	switch expected {
	case TypeString:
		_, ok := value.(string)
		return ok
	case TypeInteger:
		switch v := value.(type) {
		case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
			return true
		case float64:
			return v == float64(int64(v))
		case float32:
			return v == float32(int64(v))
		}
		return false
	case TypeNumber:
		_, ok := toFloat(value)
		return ok
	case TypeBoolean:
		_, ok := value.(bool)
		return ok
	case TypeArray:
		switch value.(type) {
		case []any, []string:
			return true
		}
		return false
	case TypeObject:
		switch value.(type) {
		case map[string]any, map[string]string:
			return true
		}
		return false
	default:
		return true
	}
}
