package mapping

import (
	"regexp"
	"strconv"
	"strings"
)

var datePattern = regexp.MustCompile(`\d{2}/\d{2}/\d{4}`)

// applyTransform runs one line's transform over the resolved value.
// Numeric transforms leave non-numeric values untouched rather than failing:
// bad cells become quarantine material downstream, not engine errors.
func applyTransform(line Line, value, concatValue string) string {
	switch line.Transform {
	case "", TransformNone, TransformLiteral:
		return value
	case TransformStrip:
		return strings.TrimSpace(value)
	case TransformUpper:
		return strings.ToUpper(value)
	case TransformLower:
		return strings.ToLower(value)
	case TransformReplace:
		return strings.ReplaceAll(value, line.TransformValue, line.TransformValue2)
	case TransformDivide:
		return applyNumeric(value, line.TransformValue, func(v, f float64) float64 { return v / f })
	case TransformMultiply:
		return applyNumeric(value, line.TransformValue, func(v, f float64) float64 { return v * f })
	case TransformDefaultIfEmpty:
		if strings.TrimSpace(value) == "" {
			return line.TransformValue
		}
		return value
	case TransformConcat:
		separator := line.ConcatSeparator
		if separator == "" {
			separator = " "
		}
		switch {
		case value == "":
			return concatValue
		case concatValue == "":
			return value
		default:
			return value + separator + concatValue
		}
	case TransformDateStart:
		if dates := datePattern.FindAllString(value, -1); len(dates) > 0 {
			return dates[0]
		}
		return ""
	case TransformDateEnd:
		if dates := datePattern.FindAllString(value, -1); len(dates) > 0 {
			return dates[len(dates)-1]
		}
		return ""
	default:
		return value
	}
}

func applyNumeric(value, factorStr string, op func(v, f float64) float64) string {
	v, err := parseDecimal(value)
	if err != nil {
		return value
	}
	f, err := parseDecimal(factorStr)
	if err != nil || f == 0 {
		return value
	}
	return strconv.FormatFloat(op(v, f), 'f', -1, 64)
}

// parseDecimal accepts both dot and comma decimal separators.
func parseDecimal(s string) (float64, error) {
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", "."))
	return strconv.ParseFloat(s, 64)
}
