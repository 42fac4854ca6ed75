package schema

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/mesh-intelligence/multirow/pkg/types"
)

func (f *field) compileRules() error {
	r := f.Rules
	if (r.MinLength != nil || r.MaxLength != nil) && f.Kind != types.KindString {
		return invalid("length rules apply to string fields only")
	}
	if (r.Min != nil || r.Max != nil) && f.Kind != types.KindInteger && f.Kind != types.KindNumber {
		return invalid("min/max rules apply to numeric fields only")
	}
	if r.MinLength != nil && r.MaxLength != nil && *r.MinLength > *r.MaxLength {
		return invalid("minLength %d exceeds maxLength %d", *r.MinLength, *r.MaxLength)
	}
	if r.Min != nil && r.Max != nil && *r.Min > *r.Max {
		return invalid("min %v exceeds max %v", *r.Min, *r.Max)
	}
	if r.Pattern != "" {
		re, err := regexp.Compile(r.Pattern)
		if err != nil {
			return invalid("pattern %q: %v", r.Pattern, err)
		}
		f.pattern = re
	}
	return nil
}

// kindMessages are reported when a value cannot be coerced to its kind.
var kindMessages = map[types.FieldKind]string{
	types.KindString:  "%s must be a string.",
	types.KindInteger: "%s must be an integer.",
	types.KindNumber:  "%s must be a number.",
	types.KindBoolean: "%s must be either true or false.",
}

// check coerces raw and applies the field's rules. It returns the coerced
// value and the messages for every failed rule.
func (f *field) check(raw any) (any, []string) {
	v, err := f.Kind.Coerce(raw)
	if err != nil {
		return raw, []string{fmt.Sprintf(kindMessages[f.Kind], f.label)}
	}

	if isBlank(v) {
		if f.Required {
			return v, []string{fmt.Sprintf("%s cannot be blank.", f.label)}
		}
		return v, nil
	}

	var msgs []string
	r := f.Rules
	switch val := v.(type) {
	case string:
		n := utf8.RuneCountInString(val)
		if r.MinLength != nil && n < *r.MinLength {
			msgs = append(msgs, fmt.Sprintf("%s is too short (minimum is %d characters).", f.label, *r.MinLength))
		}
		if r.MaxLength != nil && n > *r.MaxLength {
			msgs = append(msgs, fmt.Sprintf("%s is too long (maximum is %d characters).", f.label, *r.MaxLength))
		}
		if f.pattern != nil && !f.pattern.MatchString(val) {
			msgs = append(msgs, fmt.Sprintf("%s is invalid.", f.label))
		}
	case int64:
		msgs = append(msgs, f.checkRange(float64(val))...)
	case float64:
		msgs = append(msgs, f.checkRange(val)...)
	}

	if len(r.Enum) > 0 && !inEnum(r.Enum, v) {
		msgs = append(msgs, fmt.Sprintf("%s is not in the list.", f.label))
	}
	return v, msgs
}

func (f *field) checkRange(n float64) []string {
	var msgs []string
	if f.Rules.Min != nil && n < *f.Rules.Min {
		msgs = append(msgs, fmt.Sprintf("%s is too small (minimum is %s).", f.label, formatNumber(*f.Rules.Min)))
	}
	if f.Rules.Max != nil && n > *f.Rules.Max {
		msgs = append(msgs, fmt.Sprintf("%s is too big (maximum is %s).", f.label, formatNumber(*f.Rules.Max)))
	}
	return msgs
}

func isBlank(v any) bool {
	if v == nil {
		return true
	}
	s, ok := v.(string)
	return ok && strings.TrimSpace(s) == ""
}

func inEnum(enum []string, v any) bool {
	s := fmt.Sprint(v)
	for _, e := range enum {
		if e == s {
			return true
		}
	}
	return false
}

func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
