package tabexport

import (
	"encoding/json"
	"errors"
	"math"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormat_EmptyValues(t *testing.T) {
	var nilInt *int
	for _, typ := range []DataType{TypeInteger, TypeLong, TypeShort, TypeFloat, TypeDouble, TypeBigDecimal, TypeDate, TypeBoolean} {
		for _, raw := range []interface{}{nil, "", nilInt} {
			out, numFmt, err := Format(raw, &ColumnBinding{Key: "k", Type: typ, Prefix: "$", ThousandsSeparator: true}, FormatContext{})
			require.NoError(t, err)
			assert.True(t, out.Empty(), "%s %#v", typ, raw)
			assert.Empty(t, numFmt, "%s %#v", typ, raw)
		}
	}
}

func TestFormat_Integer(t *testing.T) {
	binding := &ColumnBinding{Key: "amount", Type: TypeInteger, Prefix: "$", ThousandsSeparator: true}

	out, numFmt, err := Format(1234567, binding, FormatContext{Locale: English})
	require.NoError(t, err)
	assert.Equal(t, "$1,234,567", out.Text)
	assert.Equal(t, int64(1234567), out.Value)
	assert.Equal(t, NumberFormat(`"$"#,##0`), numFmt)

	out, _, err = Format(1234567, binding, FormatContext{Locale: German})
	require.NoError(t, err)
	assert.Equal(t, "$1.234.567", out.Text)

	plain := &ColumnBinding{Key: "count", Type: TypeLong, Suffix: "pcs"}
	out, numFmt, err = Format(int64(1234567), plain, FormatContext{Locale: English})
	require.NoError(t, err)
	assert.Equal(t, "1234567 pcs", out.Text)
	assert.Equal(t, NumberFormat(`0" pcs"`), numFmt)
}

func TestFormat_IntegerFromLocaleText(t *testing.T) {
	binding := &ColumnBinding{Key: "n", Type: TypeShort, ThousandsSeparator: true}

	out, _, err := Format("1.234", binding, FormatContext{Locale: German})
	require.NoError(t, err)
	assert.Equal(t, int64(1234), out.Value)
	assert.Equal(t, "1.234", out.Text)

	out, _, err = Format(float64(42), binding, FormatContext{Locale: English})
	require.NoError(t, err)
	assert.Equal(t, int64(42), out.Value)

	out, _, err = Format(4.5, binding, FormatContext{Locale: English})
	var cellErr *CellFormattingError
	require.True(t, errors.As(err, &cellErr))
	assert.Equal(t, "n", cellErr.Key)
	assert.Equal(t, "4.5", out.Text)
}

func TestFormat_IntegerOverflowDegrades(t *testing.T) {
	binding := &ColumnBinding{Key: "n", Type: TypeInteger, ThousandsSeparator: true}

	for raw, text := range map[interface{}]string{
		float64(1e20):                       "1e+20",
		float64(-1e20):                      "-1e+20",
		float64(math.MaxInt64):              "9.223372036854776e+18",
		json.Number("98765432109876543210"): "98765432109876543210",
	} {
		out, numFmt, err := Format(raw, binding, FormatContext{Locale: English})
		var cellErr *CellFormattingError
		require.True(t, errors.As(err, &cellErr), "%v", raw)
		assert.Equal(t, text, out.Text)
		assert.Equal(t, text, out.Value)
		assert.Empty(t, numFmt)
	}

	out, _, err := Format(float64(math.MinInt64), binding, FormatContext{Locale: English})
	require.NoError(t, err)
	assert.Equal(t, int64(math.MinInt64), out.Value)

	out, _, err = Format(json.Number("9007199254740993"), binding, FormatContext{Locale: English})
	require.NoError(t, err)
	assert.Equal(t, "9,007,199,254,740,993", out.Text)
}

func TestFormat_NonFiniteFloatsDegrade(t *testing.T) {
	for _, typ := range []DataType{TypeDouble, TypeBigDecimal, TypeInteger} {
		for _, raw := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
			out, numFmt, err := Format(raw, &ColumnBinding{Key: "x", Type: typ}, FormatContext{})
			var cellErr *CellFormattingError
			require.True(t, errors.As(err, &cellErr), "%s %v", typ, raw)
			assert.IsType(t, "", out.Value)
			assert.Empty(t, numFmt)
		}
	}
}

func TestFormat_DecimalTextUnderGerman(t *testing.T) {
	grouped := &ColumnBinding{Key: "amount", Type: TypeBigDecimal, ThousandsSeparator: true}

	out, _, err := Format("1.234,56", grouped, FormatContext{Locale: German})
	require.NoError(t, err)
	assert.Equal(t, 1234.56, out.Value)
	assert.Equal(t, "1.234,56", out.Text)

	out, _, err = Format("1234,5", &ColumnBinding{Key: "rate", Type: TypeFloat}, FormatContext{Locale: German})
	require.NoError(t, err)
	assert.Equal(t, 1234.5, out.Value)
	assert.Equal(t, "1234,50", out.Text)

	// canonical decimals are not locale text
	rat, ok := new(big.Rat).SetString("1234.56")
	require.True(t, ok)
	out, _, err = Format(rat, grouped, FormatContext{Locale: German})
	require.NoError(t, err)
	assert.Equal(t, 1234.56, out.Value)
	assert.Equal(t, "1.234,56", out.Text)

	out, _, err = Format(json.Number("1234.56"), grouped, FormatContext{Locale: German})
	require.NoError(t, err)
	assert.Equal(t, "1.234,56", out.Text)
}

func TestFormat_DecimalTextFallback(t *testing.T) {
	rat, ok := new(big.Rat).SetString("12.50")
	require.True(t, ok)
	out, _, err := Format(rat, &ColumnBinding{Key: "t"}, FormatContext{})
	require.NoError(t, err)
	assert.Equal(t, "12.5", out.Text)

	third := big.NewRat(1, 3)
	out, _, err = Format(third, &ColumnBinding{Key: "t"}, FormatContext{})
	require.NoError(t, err)
	assert.Equal(t, "0.3333333333", out.Text)
}

func TestFormat_Float(t *testing.T) {
	binding := &ColumnBinding{Key: "rate", Type: TypeFloat}

	out, numFmt, err := Format(3.1, binding, FormatContext{})
	require.NoError(t, err)
	assert.Equal(t, "3.10", out.Text)
	assert.Equal(t, 3.1, out.Value)
	assert.Equal(t, NumberFormat("0.00"), numFmt)

	out, _, err = Format(2.0/3.0, binding, FormatContext{})
	require.NoError(t, err)
	assert.Equal(t, "0.67", out.Text)

	grouped := &ColumnBinding{Key: "total", Type: TypeDouble, Prefix: "€", ThousandsSeparator: true}
	out, numFmt, err = Format(1234.5, grouped, FormatContext{Locale: German})
	require.NoError(t, err)
	assert.Equal(t, "€1.234,50", out.Text)
	assert.Equal(t, NumberFormat(`"€"#,##0.00`), numFmt)

	out, _, err = Format(float32(7), grouped, FormatContext{Locale: English})
	require.NoError(t, err)
	assert.Equal(t, "€7.00", out.Text)
}

func TestFormat_BigDecimalIsNarrowed(t *testing.T) {
	binding := &ColumnBinding{Key: "share", Type: TypeBigDecimal}

	out, _, err := Format(big.NewRat(1, 3), binding, FormatContext{})
	require.NoError(t, err)
	assert.Equal(t, "0.33", out.Text)
	assert.IsType(t, float64(0), out.Value)

	huge, ok := new(big.Float).SetString("12345678901234567890.123456789")
	require.True(t, ok)
	out, _, err = Format(huge, binding, FormatContext{})
	require.NoError(t, err)
	f, _ := huge.Float64()
	assert.Equal(t, f, out.Value)
}

func TestFormat_Date(t *testing.T) {
	day := time.Date(2024, time.March, 5, 14, 30, 0, 0, time.UTC)
	binding := &ColumnBinding{Key: "hired", Type: TypeDate}

	out, numFmt, err := Format(day, binding, FormatContext{Locale: English})
	require.NoError(t, err)
	assert.Equal(t, "Tue, 05.03.2024", out.Text)
	assert.Equal(t, day, out.Value)
	assert.Equal(t, NumberFormat(DefaultDateFormat), numFmt)

	out, _, err = Format(&day, binding, FormatContext{Locale: German})
	require.NoError(t, err)
	assert.Equal(t, "Di, 05.03.2024", out.Text)

	out, numFmt, err = Format(day, binding, FormatContext{DateFormat: "yyyy-mm-dd", DateLayout: "2006-01-02"})
	require.NoError(t, err)
	assert.Equal(t, "2024-03-05", out.Text)
	assert.Equal(t, NumberFormat("yyyy-mm-dd"), numFmt)

	_, _, err = Format("yesterday", binding, FormatContext{})
	assert.Error(t, err)
}

func TestFormat_Boolean(t *testing.T) {
	binding := &ColumnBinding{Key: "active", Type: TypeBoolean}

	out, numFmt, err := Format(true, binding, FormatContext{})
	require.NoError(t, err)
	assert.Equal(t, "true", out.Text)
	assert.Empty(t, numFmt)

	yesNo, ok := lookupFormatter("yes_no")
	require.True(t, ok)
	binding.BoolFormatter = yesNo
	out, _, err = Format(false, binding, FormatContext{})
	require.NoError(t, err)
	assert.Equal(t, "No", out.Text)

	out, _, err = Format("true", binding, FormatContext{})
	require.NoError(t, err)
	assert.Equal(t, "Yes", out.Text)
}

func TestFormat_Text(t *testing.T) {
	out, numFmt, err := Format("abc", &ColumnBinding{Key: "code"}, FormatContext{})
	require.NoError(t, err)
	assert.Equal(t, "abc", out.Text)
	assert.Empty(t, numFmt)

	out, _, err = Format("abc", &ColumnBinding{Key: "code", Prefix: "<", Suffix: ">"}, FormatContext{})
	require.NoError(t, err)
	assert.Equal(t, "<abc>", out.Text)

	out, _, err = Format([]byte("raw"), &ColumnBinding{Key: "code"}, FormatContext{})
	require.NoError(t, err)
	assert.Equal(t, "raw", out.Text)

	// unknown tags dispatch as text
	out, _, err = Format(12, &ColumnBinding{Key: "code", Type: DataType(99)}, FormatContext{})
	require.NoError(t, err)
	assert.Equal(t, "12", out.Text)
}

func TestFormat_CustomFormatter(t *testing.T) {
	type employee struct{ Name string }
	var seen []interface{}
	binding := &ColumnBinding{
		Key:  "salary",
		Type: TypeInteger,
		Formatter: func(value, item interface{}, key string) interface{} {
			seen = append(seen, value, item, key)
			if value.(int) > 100 {
				return "high"
			}
			return nil
		},
	}
	item := employee{Name: "Ada"}

	out, numFmt, err := Format(500, binding, FormatContext{Item: item})
	require.NoError(t, err)
	assert.Equal(t, "high", out.Text)
	assert.Equal(t, "high", out.Value)
	assert.Empty(t, numFmt)
	assert.Equal(t, []interface{}{500, item, "salary"}, seen)

	out, numFmt, err = Format(50, binding, FormatContext{})
	require.NoError(t, err)
	assert.Equal(t, int64(50), out.Value, "nil result keeps the typed rendering")
	assert.Equal(t, NumberFormat("0"), numFmt)

	binding.Formatter = func(interface{}, interface{}, string) interface{} { return errors.New("nope") }
	out, _, err = Format(50, binding, FormatContext{})
	assert.Error(t, err)
	assert.Equal(t, "50", out.Text)
}

func TestPatterns(t *testing.T) {
	assert.Equal(t, NumberFormat("0"), IntegerPattern("", "", false))
	assert.Equal(t, NumberFormat("#,##0"), IntegerPattern("", "", true))
	assert.Equal(t, NumberFormat(`"$"#,##0" USD"`), IntegerPattern("$", "USD", true))
	assert.Equal(t, NumberFormat("0.00"), FloatPattern("", "", false))
	assert.Equal(t, NumberFormat(`#,##0.00" %"`), FloatPattern("", "%", true))
}
