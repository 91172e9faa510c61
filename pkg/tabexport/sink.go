package tabexport

import (
	"fmt"
	"io"
	"math"
	"strconv"
	"time"

	"github.com/mattn/go-runewidth"
	"github.com/xuri/excelize/v2"
)

// StyleHandle references a style owned by a sink. Zero means no style.
// Handles are shared between cells and must not be changed after use.
type StyleHandle int

// SheetRef names a sheet created by a sink.
type SheetRef string

// RowRef addresses a zero based row of a sheet.
type RowRef struct {
	Sheet SheetRef
	Index int
}

// CellRef addresses a zero based cell.
type CellRef struct {
	Sheet    SheetRef
	Row, Col int
}

// SheetSink is the spreadsheet surface the layout engine writes through.
type SheetSink interface {
	// CreateSheet returns the sheet with the given name, creating it on
	// first use.
	CreateSheet(name string) (SheetRef, error)
	CreateRow(sheet SheetRef, rowIdx int) RowRef
	CreateCell(row RowRef, colIdx int) CellRef
	SetCellValue(cell CellRef, value interface{}) error
	SetCellStyle(cell CellRef, style StyleHandle) error
	AddMergedRegion(sheet SheetRef, region MergedRegion) error
	SetFreezePane(sheet SheetRef, col, row int) error
	AutosizeColumn(sheet SheetRef, colIdx int) error
	// Style interns tmpl combined with a number format.
	Style(tmpl *StyleTemplate, numFmt NumberFormat) (StyleHandle, error)
}

const (
	defaultMaxColumnWidth = 50
	minColumnWidth        = 8
	dateCellWidth         = 16
)

type cellPos struct{ row, col int }

// ExcelSink writes into an in-memory excelize workbook.
type ExcelSink struct {
	file           *excelize.File
	created        map[SheetRef]bool
	firstClaimed   bool
	styles         map[styleKey]StyleHandle
	widths         map[SheetRef]map[cellPos]float64
	merged         map[SheetRef][]MergedRegion
	MaxColumnWidth float64
}

// NewExcelSink creates a sink over a fresh workbook.
func NewExcelSink() *ExcelSink {
	return &ExcelSink{
		file:           excelize.NewFile(),
		created:        make(map[SheetRef]bool),
		styles:         make(map[styleKey]StyleHandle),
		widths:         make(map[SheetRef]map[cellPos]float64),
		merged:         make(map[SheetRef][]MergedRegion),
		MaxColumnWidth: defaultMaxColumnWidth,
	}
}

// File exposes the workbook.
func (s *ExcelSink) File() *excelize.File { return s.file }

func (s *ExcelSink) CreateSheet(name string) (SheetRef, error) {
	ref := SheetRef(name)
	if s.created[ref] {
		return ref, nil
	}
	// The first sheet takes over the workbook's default "Sheet1".
	if !s.firstClaimed {
		if err := s.file.SetSheetName("Sheet1", name); err != nil {
			return "", sinkError("create sheet", err)
		}
		s.firstClaimed = true
	} else if idx, _ := s.file.GetSheetIndex(name); idx == -1 {
		if _, err := s.file.NewSheet(name); err != nil {
			return "", sinkError("create sheet", err)
		}
	}
	s.created[ref] = true
	s.widths[ref] = make(map[cellPos]float64)
	return ref, nil
}

func (s *ExcelSink) CreateRow(sheet SheetRef, rowIdx int) RowRef {
	return RowRef{Sheet: sheet, Index: rowIdx}
}

func (s *ExcelSink) CreateCell(row RowRef, colIdx int) CellRef {
	return CellRef{Sheet: row.Sheet, Row: row.Index, Col: colIdx}
}

func cellName(row, col int) (string, error) {
	return excelize.CoordinatesToCellName(col+1, row+1)
}

func (s *ExcelSink) SetCellValue(cell CellRef, value interface{}) error {
	name, err := cellName(cell.Row, cell.Col)
	if err != nil {
		return sinkError("set value", err)
	}
	value = finiteOrText(value)
	if err := s.file.SetCellValue(string(cell.Sheet), name, value); err != nil {
		return sinkError("set value", err)
	}
	if widths, ok := s.widths[cell.Sheet]; ok {
		widths[cellPos{cell.Row, cell.Col}] = displayWidth(value)
	}
	return nil
}

// finiteOrText stores NaN and infinities as text; a numeric cell holding
// them makes Excel reject the workbook.
func finiteOrText(value interface{}) interface{} {
	var f float64
	switch v := value.(type) {
	case float64:
		f = v
	case float32:
		f = float64(v)
	default:
		return value
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return strconv.FormatFloat(f, 'g', -1, 64)
	}
	return value
}

func (s *ExcelSink) SetCellStyle(cell CellRef, style StyleHandle) error {
	name, err := cellName(cell.Row, cell.Col)
	if err != nil {
		return sinkError("set style", err)
	}
	if err := s.file.SetCellStyle(string(cell.Sheet), name, name, int(style)); err != nil {
		return sinkError("set style", err)
	}
	return nil
}

func (s *ExcelSink) AddMergedRegion(sheet SheetRef, region MergedRegion) error {
	if !region.valid() {
		return sinkError("merge", fmt.Errorf("invalid region %+v", region))
	}
	start, err := cellName(region.StartRow, region.StartCol)
	if err != nil {
		return sinkError("merge", err)
	}
	end, err := cellName(region.EndRow, region.EndCol)
	if err != nil {
		return sinkError("merge", err)
	}
	if err := s.file.MergeCell(string(sheet), start, end); err != nil {
		return sinkError("merge", err)
	}
	s.merged[sheet] = append(s.merged[sheet], region)
	return nil
}

// SetFreezePane keeps col columns and row rows visible while scrolling.
func (s *ExcelSink) SetFreezePane(sheet SheetRef, col, row int) error {
	if col <= 0 && row <= 0 {
		return nil
	}
	topLeft, err := cellName(row, col)
	if err != nil {
		return sinkError("freeze", err)
	}
	active := "bottomRight"
	switch {
	case col <= 0:
		active = "bottomLeft"
	case row <= 0:
		active = "topRight"
	}
	err = s.file.SetPanes(string(sheet), &excelize.Panes{
		Freeze:      true,
		XSplit:      col,
		YSplit:      row,
		TopLeftCell: topLeft,
		ActivePane:  active,
	})
	return sinkError("freeze", err)
}

// AutosizeColumn fits the column to its widest cell, ignoring cells that
// belong to multi column merged regions.
func (s *ExcelSink) AutosizeColumn(sheet SheetRef, colIdx int) error {
	width := 0.0
	for pos, w := range s.widths[sheet] {
		if pos.col != colIdx || s.inWideMerge(sheet, pos) {
			continue
		}
		if w > width {
			width = w
		}
	}
	adjusted := width * 1.2
	if adjusted < minColumnWidth {
		adjusted = minColumnWidth
	}
	if s.MaxColumnWidth > 0 && adjusted > s.MaxColumnWidth {
		adjusted = s.MaxColumnWidth
	}
	col, err := excelize.ColumnNumberToName(colIdx + 1)
	if err != nil {
		return sinkError("autosize", err)
	}
	return sinkError("autosize", s.file.SetColWidth(string(sheet), col, col, adjusted))
}

func (s *ExcelSink) inWideMerge(sheet SheetRef, pos cellPos) bool {
	for _, r := range s.merged[sheet] {
		if r.EndCol > r.StartCol && pos.row >= r.StartRow && pos.row <= r.EndRow &&
			pos.col >= r.StartCol && pos.col <= r.EndCol {
			return true
		}
	}
	return false
}

func (s *ExcelSink) Style(tmpl *StyleTemplate, numFmt NumberFormat) (StyleHandle, error) {
	key := newStyleKey(tmpl, numFmt)
	if key.zero() {
		return 0, nil
	}
	if h, ok := s.styles[key]; ok {
		return h, nil
	}
	id, err := s.file.NewStyle(key.excelStyle())
	if err != nil {
		return 0, sinkError("create style", err)
	}
	s.styles[key] = StyleHandle(id)
	return StyleHandle(id), nil
}

// StyleCount reports how many distinct styles were interned.
func (s *ExcelSink) StyleCount() int { return len(s.styles) }

// WriteTo serializes the workbook.
func (s *ExcelSink) WriteTo(w io.Writer) (int64, error) {
	n, err := s.file.WriteTo(w)
	if err != nil {
		return n, sinkError("write", err)
	}
	return n, nil
}

// Close releases the workbook.
func (s *ExcelSink) Close() error {
	return s.file.Close()
}

func displayWidth(value interface{}) float64 {
	switch v := value.(type) {
	case nil:
		return 0
	case string:
		return float64(runewidth.StringWidth(v))
	case time.Time:
		return dateCellWidth
	case int64:
		// room for grouping separators and a short prefix
		digits := len(strconv.FormatInt(v, 10))
		return float64(digits + digits/3 + 2)
	case float64:
		digits := len(strconv.FormatFloat(v, 'f', 2, 64))
		return float64(digits + digits/3 + 2)
	default:
		return float64(runewidth.StringWidth(fmt.Sprint(v)))
	}
}
