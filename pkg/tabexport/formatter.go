package tabexport

import (
	"encoding/json"
	"fmt"
	"math"
	"math/big"
	"reflect"
	"strconv"
	"strings"
	"time"
)

// NumberFormat is a spreadsheet number format code such as `"$"#,##0`.
type NumberFormat string

// FormattedValue is the outcome of formatting one cell. Text is what flat
// output writes; Value is what a spreadsheet cell stores (int64, float64,
// time.Time or string).
type FormattedValue struct {
	Text  string
	Value interface{}
}

// Empty reports whether the cell has no content.
func (v FormattedValue) Empty() bool {
	return v.Text == "" && v.Value == nil
}

// FormatContext carries the per sheet settings the formatter needs.
type FormatContext struct {
	Locale     Locale
	DateFormat string
	DateLayout string
	// Item is handed to custom formatters.
	Item interface{}
}

func (fc FormatContext) dateFormat() string {
	if fc.DateFormat == "" {
		return DefaultDateFormat
	}
	return fc.DateFormat
}

func (fc FormatContext) dateLayout() string {
	if fc.DateLayout == "" {
		return DefaultDateLayout
	}
	return fc.DateLayout
}

// Format renders raw according to the binding. The returned value is always
// usable: a non-nil error means the cell was degraded (raw text instead of
// the typed rendering, or the custom formatter was skipped) and should be
// logged.
func Format(raw interface{}, binding *ColumnBinding, fc FormatContext) (FormattedValue, NumberFormat, error) {
	if isEmpty(raw) {
		return FormattedValue{}, "", nil
	}

	out, numFmt, err := formatByType(raw, binding, fc)
	if err != nil {
		text := rawText(raw)
		out, numFmt = FormattedValue{Text: text, Value: text}, ""
		err = &CellFormattingError{Key: binding.Key, Err: err}
	}

	if binding.Formatter != nil {
		custom, cerr := callFormatter(binding.Formatter, raw, fc.Item, binding.Key)
		if cerr != nil {
			return out, numFmt, &CellFormattingError{Key: binding.Key, Err: cerr}
		}
		if custom != nil {
			text := rawText(custom)
			return FormattedValue{Text: text, Value: text}, "", err
		}
	}
	return out, numFmt, err
}

func formatByType(raw interface{}, b *ColumnBinding, fc FormatContext) (FormattedValue, NumberFormat, error) {
	switch b.Type.Family() {
	case TypeInteger:
		v, err := toInt64(raw, fc.Locale)
		if err != nil {
			return FormattedValue{}, "", err
		}
		text := decorateText(b.Prefix, fc.Locale.FormatInt(v, b.ThousandsSeparator), b.Suffix)
		return FormattedValue{Text: text, Value: v}, IntegerPattern(b.Prefix, b.Suffix, b.ThousandsSeparator), nil

	case TypeFloat:
		v, err := toFloat64(raw, fc.Locale)
		if err != nil {
			return FormattedValue{}, "", err
		}
		text := decorateText(b.Prefix, fc.Locale.FormatFloat(v, b.ThousandsSeparator), b.Suffix)
		return FormattedValue{Text: text, Value: v}, FloatPattern(b.Prefix, b.Suffix, b.ThousandsSeparator), nil

	case TypeDate:
		t, err := toTime(raw)
		if err != nil {
			return FormattedValue{}, "", err
		}
		return FormattedValue{Text: fc.Locale.FormatDate(t, fc.dateLayout()), Value: t}, NumberFormat(fc.dateFormat()), nil

	case TypeBoolean:
		v, err := toBool(raw)
		if err != nil {
			return FormattedValue{}, "", err
		}
		text := strconv.FormatBool(v)
		if b.BoolFormatter != nil {
			custom, cerr := callFormatter(b.BoolFormatter, v, fc.Item, b.Key)
			if cerr != nil {
				return FormattedValue{}, "", cerr
			}
			if custom != nil {
				text = rawText(custom)
			}
		}
		return FormattedValue{Text: text, Value: text}, "", nil

	default:
		text := rawText(raw)
		if b.Prefix != "" || b.Suffix != "" {
			text = b.Prefix + text + b.Suffix
		}
		return FormattedValue{Text: text, Value: text}, "", nil
	}
}

// IntegerPattern builds the number format of an integer column.
func IntegerPattern(prefix, suffix string, grouping bool) NumberFormat {
	core := "0"
	if grouping {
		core = "#,##0"
	}
	return decoratePattern(prefix, core, suffix)
}

// FloatPattern builds the number format of a decimal column.
func FloatPattern(prefix, suffix string, grouping bool) NumberFormat {
	core := "0.00"
	if grouping {
		core = "#,##0.00"
	}
	return decoratePattern(prefix, core, suffix)
}

func decoratePattern(prefix, core, suffix string) NumberFormat {
	var sb strings.Builder
	if prefix != "" {
		sb.WriteString(strconv.Quote(prefix))
	}
	sb.WriteString(core)
	if suffix != "" {
		sb.WriteString(strconv.Quote(" " + suffix))
	}
	return NumberFormat(sb.String())
}

// decorateText mirrors decoratePattern so that flat and structured output
// read the same.
func decorateText(prefix, number, suffix string) string {
	text := prefix + number
	if suffix != "" {
		text += " " + suffix
	}
	return text
}

func callFormatter(f CellFormatterFunc, value, item interface{}, key string) (out interface{}, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("formatter panicked: %v", r)
		}
	}()
	out = f(value, item, key)
	if e, ok := out.(error); ok {
		return nil, e
	}
	return out, nil
}

func isEmpty(raw interface{}) bool {
	if raw == nil {
		return true
	}
	switch v := raw.(type) {
	case string:
		return v == ""
	case []byte:
		return len(v) == 0
	}
	rv := reflect.ValueOf(raw)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Interface, reflect.Map, reflect.Slice:
		return rv.IsNil()
	}
	return false
}

func rawText(raw interface{}) string {
	switch v := raw.(type) {
	case nil:
		return ""
	case string:
		return v
	case []byte:
		return string(v)
	case *big.Rat:
		if v == nil {
			return ""
		}
		prec, exact := v.FloatPrec()
		if !exact {
			prec = 10
		}
		return v.FloatString(prec)
	case fmt.Stringer:
		return v.String()
	}
	rv := reflect.ValueOf(raw)
	if rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			return ""
		}
		return rawText(rv.Elem().Interface())
	}
	return fmt.Sprint(raw)
}

func toInt64(raw interface{}, loc Locale) (int64, error) {
	switch v := raw.(type) {
	case int:
		return int64(v), nil
	case int8:
		return int64(v), nil
	case int16:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case int64:
		return v, nil
	case uint:
		return int64(v), nil
	case uint8:
		return int64(v), nil
	case uint16:
		return int64(v), nil
	case uint32:
		return int64(v), nil
	case uint64:
		if v > math.MaxInt64 {
			return 0, fmt.Errorf("integer %d overflows int64", v)
		}
		return int64(v), nil
	case float32:
		return integral(float64(v))
	case float64:
		return integral(v)
	case json.Number:
		return v.Int64()
	case *big.Int:
		if !v.IsInt64() {
			return 0, fmt.Errorf("integer %s overflows int64", v)
		}
		return v.Int64(), nil
	case string:
		return loc.ParseInt(v)
	case []byte:
		return loc.ParseInt(string(v))
	}
	rv := reflect.ValueOf(raw)
	if rv.Kind() == reflect.Ptr && !rv.IsNil() {
		return toInt64(rv.Elem().Interface(), loc)
	}
	return 0, fmt.Errorf("cannot use %T as integer", raw)
}

// int64 bounds as float64; 2^63 itself is out of range.
const (
	minInt64Float = -9.223372036854775808e18
	maxInt64Float = 9.223372036854775808e18
)

func integral(f float64) (int64, error) {
	if math.IsInf(f, 0) || math.IsNaN(f) || f != math.Trunc(f) {
		return 0, fmt.Errorf("value %v is not an integer", f)
	}
	if f < minInt64Float || f >= maxInt64Float {
		return 0, fmt.Errorf("value %v overflows int64", f)
	}
	return int64(f), nil
}

// toFloat64 narrows arbitrary precision inputs to float64. Precision beyond
// float64 is dropped; NaN and infinities are rejected since workbooks cannot
// hold them.
func toFloat64(raw interface{}, loc Locale) (float64, error) {
	f, err := narrowFloat(raw, loc)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("value %v is not a finite number", f)
	}
	return f, nil
}

func narrowFloat(raw interface{}, loc Locale) (float64, error) {
	switch v := raw.(type) {
	case float32:
		return float64(v), nil
	case float64:
		return v, nil
	case *big.Float:
		f, _ := v.Float64()
		return f, nil
	case *big.Rat:
		f, _ := v.Float64()
		return f, nil
	case *big.Int:
		f, _ := new(big.Float).SetInt(v).Float64()
		return f, nil
	case json.Number:
		return v.Float64()
	case string:
		return loc.ParseFloat(v)
	case []byte:
		return loc.ParseFloat(string(v))
	}
	if i, err := toInt64(raw, loc); err == nil {
		return float64(i), nil
	}
	rv := reflect.ValueOf(raw)
	if rv.Kind() == reflect.Ptr && !rv.IsNil() {
		return narrowFloat(rv.Elem().Interface(), loc)
	}
	return 0, fmt.Errorf("cannot use %T as decimal", raw)
}

func toTime(raw interface{}) (time.Time, error) {
	switch v := raw.(type) {
	case time.Time:
		return v, nil
	case *time.Time:
		return *v, nil
	}
	return time.Time{}, fmt.Errorf("cannot use %T as date", raw)
}

func toBool(raw interface{}) (bool, error) {
	switch v := raw.(type) {
	case bool:
		return v, nil
	case *bool:
		return *v, nil
	case string:
		return strconv.ParseBool(v)
	}
	return false, fmt.Errorf("cannot use %T as boolean", raw)
}
