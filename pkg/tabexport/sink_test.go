package tabexport

import (
	"bytes"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

type pos struct{ row, col int }

// recordingSink keeps every call in memory so layout can be asserted
// without decoding a workbook.
type recordingSink struct {
	sheets    []SheetRef
	values    map[SheetRef]map[pos]interface{}
	styles    map[SheetRef]map[pos]StyleHandle
	merges    map[SheetRef][]MergedRegion
	freezes   map[SheetRef]pos
	autosized map[SheetRef][]int
	interned  map[styleKey]StyleHandle
	failValue error
}

func newRecordingSink() *recordingSink {
	return &recordingSink{
		values:    make(map[SheetRef]map[pos]interface{}),
		styles:    make(map[SheetRef]map[pos]StyleHandle),
		merges:    make(map[SheetRef][]MergedRegion),
		freezes:   make(map[SheetRef]pos),
		autosized: make(map[SheetRef][]int),
		interned:  make(map[styleKey]StyleHandle),
	}
}

func (s *recordingSink) CreateSheet(name string) (SheetRef, error) {
	ref := SheetRef(name)
	for _, existing := range s.sheets {
		if existing == ref {
			return ref, nil
		}
	}
	s.sheets = append(s.sheets, ref)
	s.values[ref] = make(map[pos]interface{})
	s.styles[ref] = make(map[pos]StyleHandle)
	return ref, nil
}

func (s *recordingSink) CreateRow(sheet SheetRef, rowIdx int) RowRef {
	return RowRef{Sheet: sheet, Index: rowIdx}
}

func (s *recordingSink) CreateCell(row RowRef, colIdx int) CellRef {
	return CellRef{Sheet: row.Sheet, Row: row.Index, Col: colIdx}
}

func (s *recordingSink) SetCellValue(cell CellRef, value interface{}) error {
	if s.failValue != nil {
		return sinkError("set value", s.failValue)
	}
	s.values[cell.Sheet][pos{cell.Row, cell.Col}] = value
	return nil
}

func (s *recordingSink) SetCellStyle(cell CellRef, style StyleHandle) error {
	s.styles[cell.Sheet][pos{cell.Row, cell.Col}] = style
	return nil
}

func (s *recordingSink) AddMergedRegion(sheet SheetRef, region MergedRegion) error {
	s.merges[sheet] = append(s.merges[sheet], region)
	return nil
}

func (s *recordingSink) SetFreezePane(sheet SheetRef, col, row int) error {
	s.freezes[sheet] = pos{row, col}
	return nil
}

func (s *recordingSink) AutosizeColumn(sheet SheetRef, colIdx int) error {
	s.autosized[sheet] = append(s.autosized[sheet], colIdx)
	return nil
}

func (s *recordingSink) Style(tmpl *StyleTemplate, numFmt NumberFormat) (StyleHandle, error) {
	key := newStyleKey(tmpl, numFmt)
	if key.zero() {
		return 0, nil
	}
	if h, ok := s.interned[key]; ok {
		return h, nil
	}
	h := StyleHandle(len(s.interned) + 1)
	s.interned[key] = h
	return h, nil
}

func (s *recordingSink) value(sheet string, row, col int) (interface{}, bool) {
	v, ok := s.values[SheetRef(sheet)][pos{row, col}]
	return v, ok
}

func (s *recordingSink) style(sheet string, row, col int) StyleHandle {
	return s.styles[SheetRef(sheet)][pos{row, col}]
}

func TestExcelSink_CreateSheetIsIdempotent(t *testing.T) {
	sink := NewExcelSink()
	defer sink.Close()

	first, err := sink.CreateSheet("Employees")
	require.NoError(t, err)
	again, err := sink.CreateSheet("Employees")
	require.NoError(t, err)
	_, err = sink.CreateSheet("Salaries")
	require.NoError(t, err)

	assert.Equal(t, first, again)
	assert.Equal(t, []string{"Employees", "Salaries"}, sink.File().GetSheetList())
}

func TestExcelSink_StylesAreInterned(t *testing.T) {
	sink := NewExcelSink()
	defer sink.Close()

	a, err := sink.Style(DefaultContentStyle(), "")
	require.NoError(t, err)
	b, err := sink.Style(DefaultContentStyle(), "")
	require.NoError(t, err)
	c, err := sink.Style(DefaultContentStyle(), "0.00")
	require.NoError(t, err)
	none, err := sink.Style(nil, "")
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Equal(t, StyleHandle(0), none)
	assert.Equal(t, 2, sink.StyleCount())
}

func TestExcelSink_WritesCellsAndMerges(t *testing.T) {
	sink := NewExcelSink()
	ref, err := sink.CreateSheet("Report")
	require.NoError(t, err)

	cell := sink.CreateCell(sink.CreateRow(ref, 2), 1)
	require.NoError(t, sink.SetCellValue(cell, "hello"))
	require.NoError(t, sink.AddMergedRegion(ref, MergedRegion{StartRow: 0, EndRow: 0, StartCol: 0, EndCol: 3}))

	err = sink.AddMergedRegion(ref, MergedRegion{StartRow: 1, EndRow: 0, StartCol: 0, EndCol: 0})
	var sinkErr *SinkIOError
	require.True(t, errors.As(err, &sinkErr))

	var buf bytes.Buffer
	_, err = sink.WriteTo(&buf)
	require.NoError(t, err)
	require.NoError(t, sink.Close())

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	v, err := f.GetCellValue("Report", "B3")
	require.NoError(t, err)
	assert.Equal(t, "hello", v)

	merges, err := f.GetMergeCells("Report")
	require.NoError(t, err)
	require.Len(t, merges, 1)
	assert.Equal(t, "A1", merges[0].GetStartAxis())
	assert.Equal(t, "D1", merges[0].GetEndAxis())
}

func TestExcelSink_NonFiniteValuesAreText(t *testing.T) {
	assert.Equal(t, "NaN", finiteOrText(math.NaN()))
	assert.Equal(t, "+Inf", finiteOrText(math.Inf(1)))
	assert.Equal(t, "-Inf", finiteOrText(float32(math.Inf(-1))))
	assert.Equal(t, 1.5, finiteOrText(1.5))
	assert.Equal(t, "x", finiteOrText("x"))

	sink := NewExcelSink()
	ref, err := sink.CreateSheet("Report")
	require.NoError(t, err)
	require.NoError(t, sink.SetCellValue(sink.CreateCell(sink.CreateRow(ref, 0), 0), math.NaN()))

	var buf bytes.Buffer
	_, err = sink.WriteTo(&buf)
	require.NoError(t, err)
	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	v, err := f.GetCellValue("Report", "A1")
	require.NoError(t, err)
	assert.Equal(t, "NaN", v)
}

func TestExcelSink_AutosizeColumn(t *testing.T) {
	sink := NewExcelSink()
	defer sink.Close()
	ref, err := sink.CreateSheet("Widths")
	require.NoError(t, err)

	long := "a rather long caption for one cell"
	require.NoError(t, sink.SetCellValue(sink.CreateCell(sink.CreateRow(ref, 0), 0), long))
	require.NoError(t, sink.SetCellValue(sink.CreateCell(sink.CreateRow(ref, 1), 0), "x"))
	require.NoError(t, sink.SetCellValue(sink.CreateCell(sink.CreateRow(ref, 0), 1), "y"))
	// wide merged banner text must not widen column C
	require.NoError(t, sink.SetCellValue(sink.CreateCell(sink.CreateRow(ref, 5), 2), long+long))
	require.NoError(t, sink.AddMergedRegion(ref, MergedRegion{StartRow: 5, EndRow: 5, StartCol: 2, EndCol: 4}))

	for col := 0; col < 3; col++ {
		require.NoError(t, sink.AutosizeColumn(ref, col))
	}

	a, err := sink.File().GetColWidth("Widths", "A")
	require.NoError(t, err)
	b, err := sink.File().GetColWidth("Widths", "B")
	require.NoError(t, err)
	c, err := sink.File().GetColWidth("Widths", "C")
	require.NoError(t, err)

	assert.InDelta(t, float64(len(long))*1.2, a, 0.01)
	assert.InDelta(t, float64(minColumnWidth), b, 0.01)
	assert.InDelta(t, float64(minColumnWidth), c, 0.01)
}

func TestExcelSink_AutosizeIsCapped(t *testing.T) {
	sink := NewExcelSink()
	defer sink.Close()
	ref, err := sink.CreateSheet("Capped")
	require.NoError(t, err)

	text := make([]byte, 200)
	for i := range text {
		text[i] = 'w'
	}
	require.NoError(t, sink.SetCellValue(sink.CreateCell(sink.CreateRow(ref, 0), 0), string(text)))
	require.NoError(t, sink.AutosizeColumn(ref, 0))

	width, err := sink.File().GetColWidth("Capped", "A")
	require.NoError(t, err)
	assert.InDelta(t, float64(defaultMaxColumnWidth), width, 0.01)
}
