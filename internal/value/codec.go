package value

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// ColumnType selects how the cells of a column are parsed and displayed.
type ColumnType string

const (
	ColumnText       ColumnType = "text"
	ColumnNumber     ColumnType = "number"
	ColumnPercentage ColumnType = "percentage"
	ColumnCurrency   ColumnType = "currency"
)

// ParseColumnType validates a column type name.
func ParseColumnType(s string) (ColumnType, error) {
	switch ct := ColumnType(strings.ToLower(strings.TrimSpace(s))); ct {
	case ColumnText, ColumnNumber, ColumnPercentage, ColumnCurrency:
		return ct, nil
	case "":
		return ColumnText, nil
	}
	return "", fmt.Errorf("unknown column type %q", s)
}

// IsNumeric reports whether cells of this type carry a float64 underlying value.
func (ct ColumnType) IsNumeric() bool {
	return ct == ColumnNumber || ct == ColumnPercentage || ct == ColumnCurrency
}

// RowValue is a single parsed cell.
type RowValue struct {
	ReadValue       string `json:"readValue"`
	WriteValue      string `json:"writeValue"`
	UnderlyingValue any    `json:"underlyingValue"`
	Error           string `json:"error,omitempty"`
}

// numeral is the grammar shared by every numeric column type: optional sign,
// digits optionally grouped by commas in blocks of three, optional fraction.
var numeral = regexp.MustCompile(`^-?(?:\d{1,3}(?:,\d{3})+|\d+)(?:\.\d+)?$`)

// Parse converts raw cell text into a RowValue according to ct. A parse
// failure is reported through RowValue.Error, never as a silent zero.
func Parse(raw string, ct ColumnType) RowValue {
	switch ct {
	case ColumnNumber:
		return parseNumber(raw)
	case ColumnPercentage:
		return parsePercentage(raw)
	case ColumnCurrency:
		return parseCurrency(raw)
	default:
		return parseText(raw)
	}
}

// Format renders an underlying value as the canonical editable text for ct.
// Parse(Format(v, ct), ct) reproduces v.
func Format(underlying any, ct ColumnType) string {
	if underlying == nil {
		return ""
	}
	if !ct.IsNumeric() {
		return fmt.Sprint(underlying)
	}
	switch n := underlying.(type) {
	case float64:
		return strconv.FormatFloat(n, 'f', -1, 64)
	case int:
		return strconv.Itoa(n)
	case string:
		return n
	}
	return fmt.Sprint(underlying)
}

func parseText(raw string) RowValue {
	rv := RowValue{ReadValue: raw, WriteValue: raw}
	if raw != "" {
		rv.UnderlyingValue = raw
	}
	return rv
}

func parseNumber(raw string) RowValue {
	s := strings.TrimSpace(raw)
	if s == "" {
		return RowValue{}
	}
	canon, f, err := parseNumeral(s)
	if err != nil {
		return failed(raw, err)
	}
	return RowValue{ReadValue: canon, WriteValue: canon, UnderlyingValue: f}
}

func parsePercentage(raw string) RowValue {
	s := strings.TrimSpace(raw)
	if s == "" {
		return RowValue{}
	}
	if prefix, ok := strings.CutSuffix(s, "%"); ok {
		canon, _, err := parseNumeral(strings.TrimSpace(prefix))
		if err != nil {
			return failed(raw, err)
		}
		write := shiftDecimal(canon, -2)
		f, _ := strconv.ParseFloat(write, 64)
		return RowValue{ReadValue: canon + "%", WriteValue: write, UnderlyingValue: f}
	}
	canon, f, err := parseNumeral(s)
	if err != nil {
		return failed(raw, err)
	}
	return RowValue{ReadValue: shiftDecimal(canon, 2) + "%", WriteValue: canon, UnderlyingValue: f}
}

func parseCurrency(raw string) RowValue {
	s := strings.TrimSpace(raw)
	if s == "" {
		return RowValue{}
	}
	switch {
	case strings.HasPrefix(s, "-$"):
		s = "-" + s[2:]
	case strings.HasPrefix(s, "$"):
		s = s[1:]
	}
	canon, f, err := parseNumeral(s)
	if err != nil {
		return failed(raw, err)
	}
	return RowValue{ReadValue: "$" + canon, WriteValue: canon, UnderlyingValue: f}
}

func failed(raw string, err error) RowValue {
	return RowValue{ReadValue: raw, WriteValue: raw, Error: err.Error()}
}

// parseNumeral validates s against the numeral grammar and returns its
// canonical decimal form along with the parsed float.
func parseNumeral(s string) (string, float64, error) {
	if !numeral.MatchString(s) {
		return "", 0, fmt.Errorf("%q is not a valid number", s)
	}
	canon := canonical(strings.ReplaceAll(s, ",", ""))
	f, err := strconv.ParseFloat(canon, 64)
	if err != nil {
		return "", 0, fmt.Errorf("%q is not a valid number: %w", s, err)
	}
	return canon, f, nil
}

// canonical normalises a comma-free decimal: no redundant leading or trailing
// zeros, no trailing point, no negative zero.
func canonical(s string) string {
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")
	intPart, frac, _ := strings.Cut(s, ".")

	intPart = strings.TrimLeft(intPart, "0")
	if intPart == "" {
		intPart = "0"
	}
	frac = strings.TrimRight(frac, "0")

	out := intPart
	if frac != "" {
		out += "." + frac
	}
	if neg && out != "0" {
		out = "-" + out
	}
	return out
}

// shiftDecimal moves the decimal point of a canonical decimal by places
// (positive multiplies by powers of ten). It works on digits so that
// percentages never pick up binary floating point noise.
func shiftDecimal(s string, places int) string {
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")
	intPart, frac, _ := strings.Cut(s, ".")

	digits := intPart + frac
	point := len(intPart) + places
	if point < 1 {
		digits = strings.Repeat("0", 1-point) + digits
		point = 1
	}
	if point > len(digits) {
		digits += strings.Repeat("0", point-len(digits))
	}

	out := digits[:point] + "." + digits[point:]
	if neg {
		out = "-" + out
	}
	return canonical(out)
}
